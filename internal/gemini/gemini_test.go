package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/ordered"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/weather"
)

// generateRequest is the part of the generateContent body the fake checks.
type generateRequest struct {
	GenerationConfig struct {
		MaxOutputTokens int     `json:"maxOutputTokens"`
		Temperature     float64 `json:"temperature"`
	} `json:"generationConfig"`
}

// ladderServer answers per "key/model" with a status code; 200 returns text.
type ladderServer struct {
	mu     sync.Mutex
	status map[string]int
	text   string
	calls  []string
}

func (s *ladderServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	model := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1beta/models/"), ":generateContent")
	id := r.Header.Get("x-goog-api-key") + "/" + model

	s.mu.Lock()
	s.calls = append(s.calls, id)
	status, ok := s.status[id]
	s.mu.Unlock()

	if !ok {
		status = http.StatusInternalServerError
	}
	switch status {
	case http.StatusOK:
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GenerationConfig.MaxOutputTokens != maxOutputTokens || req.GenerationConfig.Temperature != temperature {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, s.text)
	case -1:
		fmt.Fprint(w, `{"candidates":`)
	case -2:
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"  "}]}}]}`)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"error":{"code":%d,"message":"rejected","status":%q}}`, status, http.StatusText(status))
	}
}

func newLadder(t *testing.T, s *ladderServer, keys, models []string) *Client {
	t.Helper()
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return NewClient(keys, models, WithBaseURL(srv.URL))
}

func TestGenerate_Ladder(t *testing.T) {
	tests := []struct {
		name      string
		status    map[string]int
		wantCalls []string
		wantErr   error
	}{
		{
			name:      "first combination answers",
			status:    map[string]int{"k1/m1": 200},
			wantCalls: []string{"k1/m1"},
		},
		{
			name:      "rate limit skips to next key",
			status:    map[string]int{"k1/m1": 429, "k2/m1": 404, "k2/m2": 200},
			wantCalls: []string{"k1/m1", "k2/m1", "k2/m2"},
		},
		{
			name:      "forbidden skips to next key",
			status:    map[string]int{"k1/m1": 403, "k2/m1": 200},
			wantCalls: []string{"k1/m1", "k2/m1"},
		},
		{
			name:      "bad payload tries next model",
			status:    map[string]int{"k1/m1": -1, "k1/m2": 200},
			wantCalls: []string{"k1/m1", "k1/m2"},
		},
		{
			name:      "blank text tries next model",
			status:    map[string]int{"k1/m1": -2, "k1/m2": 200},
			wantCalls: []string{"k1/m1", "k1/m2"},
		},
		{
			name:      "unauthorized skips to next key",
			status:    map[string]int{"k1/m1": 401, "k2/m1": 200},
			wantCalls: []string{"k1/m1", "k2/m1"},
		},
		{
			name:      "everything fails",
			status:    map[string]int{},
			wantCalls: []string{"k1/m1", "k1/m2", "k2/m1", "k2/m2"},
			wantErr:   ErrExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &ladderServer{status: tt.status, text: "BMKG Prakirakan Hujan"}
			c := newLadder(t, s, []string{"k1", "k2"}, []string{"m1", "m2"})

			got, err := c.Generate(context.Background(), "judul")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Generate() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && got != "BMKG Prakirakan Hujan" {
				t.Errorf("Generate() = %q", got)
			}
			if strings.Join(s.calls, ",") != strings.Join(tt.wantCalls, ",") {
				t.Errorf("calls = %v, want %v", s.calls, tt.wantCalls)
			}
		})
	}
}

func TestGenerate_ExhaustedReason(t *testing.T) {
	c := newLadder(t, &ladderServer{}, []string{"a", "b", "c"}, []string{"m"})
	_, err := c.Generate(context.Background(), "judul")
	if err == nil || !strings.Contains(err.Error(), "Semua 3 API key dan 1 model tidak tersedia") {
		t.Errorf("error = %v", err)
	}
}

func TestGenerate_ConnectionErrorMovesToNextKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient([]string{"a", "b"}, []string{"m1", "m2"}, WithBaseURL(base))
	if _, err := c.Generate(context.Background(), "judul"); !errors.Is(err, ErrExhausted) {
		t.Errorf("error = %v, want ErrExhausted", err)
	}
}

func TestGenerate_TimeoutMovesToNextModel(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		model := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1beta/models/"), ":generateContent")
		mu.Lock()
		calls = append(calls, r.Header.Get("x-goog-api-key")+"/"+model)
		mu.Unlock()
		if model == "slow" {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"Cerah"}]}}]}`)
	}))
	t.Cleanup(srv.Close)

	c := NewClient([]string{"k1", "k2"}, []string{"slow", "fast"}, WithBaseURL(srv.URL), WithTimeout(50*time.Millisecond))
	got, err := c.Generate(context.Background(), "judul")
	if err != nil || got != "Cerah" {
		t.Fatalf("Generate() = %q, %v", got, err)
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(calls, ",") != "k1/slow,k1/fast" {
		t.Errorf("calls = %v", calls)
	}
}

func TestGenerate_InputErrors(t *testing.T) {
	c := NewClient([]string{"k"}, []string{"m"})
	if _, err := c.Generate(context.Background(), "  "); !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("blank prompt error = %v", err)
	}
	if _, err := NewClient(nil, []string{"m"}).Generate(context.Background(), "x"); !errors.Is(err, ErrNoKeys) {
		t.Errorf("no keys error = %v", err)
	}
}

type fakeGen struct {
	text  string
	err   error
	calls int
}

func (f *fakeGen) Generate(context.Context, string) (string, error) {
	f.calls++
	return f.text, f.err
}

func report(names ...string) *weather.Report {
	r := ordered.New[string, weather.Observation]()
	for _, n := range names {
		r.Set(n, weather.Observation{Datetime: "2026-01-05 06:00:00", Weather: "Hujan Ringan", Temperature: 27, Humidity: 85, Timezone: "WIB"})
	}
	return r
}

func TestEnhance(t *testing.T) {
	cities := report("Medan", "Kota Bandung", "Denpasar", "Jayapura")

	tests := []struct {
		name   string
		answer string
		want   string
		wantOK bool
	}{
		{"foreign big city rejected", "Waspada Hujan di Jakarta dan Medan Hari Ini", "", false},
		{"alias of foreign city rejected", "BMKG: Jogja dan Medan Diguyur Hujan", "", false},
		{"cities from the report accepted", "BMKG Ingatkan Hujan di Medan dan Bandung", "BMKG Ingatkan Hujan di Medan dan Bandung", true},
		{"cleanup applied", "**Judul: \"BMKG Prakirakan Hujan di Denpasar\"**\n\nPenjelasan", "BMKG Prakirakan Hujan di Denpasar", true},
		{"empty after cleanup", "****", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEnhancer(&fakeGen{text: tt.answer}, nil)
			got, ok := e.Enhance(context.Background(), cities)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Enhance() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
			if !e.Available() {
				t.Error("a rejected title must not disable the enhancer")
			}
		})
	}
}

func TestEnhancer_Latch(t *testing.T) {
	gen := &fakeGen{err: fmt.Errorf("%w: %s", ErrExhausted, ExhaustedReason(2, 4))}
	e := NewEnhancer(gen, nil)

	if _, ok := e.Enhance(context.Background(), report("Medan")); ok {
		t.Fatal("Enhance succeeded on exhausted generator")
	}
	if e.Available() {
		t.Fatal("enhancer still available after exhaustion")
	}
	if !strings.Contains(e.Status(), "Semua 2 API key dan 4 model tidak tersedia") {
		t.Errorf("Status() = %q", e.Status())
	}

	gen.err, gen.text = nil, "BMKG Medan Cerah"
	if _, ok := e.Paragraph(context.Background(), Closing, report("Medan")); ok {
		t.Error("latched enhancer produced a paragraph")
	}
	if gen.calls != 1 {
		t.Errorf("generator called %d times after latch, want 1", gen.calls)
	}

	other := NewEnhancer(gen, nil)
	if !other.Available() {
		t.Error("latch leaked into another enhancer")
	}
}

func TestEnhancer_CancelDoesNotLatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewEnhancer(&fakeGen{err: context.Canceled}, nil)
	if _, ok := e.Enhance(ctx, report("Medan")); ok {
		t.Fatal("cancelled call succeeded")
	}
	if !e.Available() {
		t.Error("cancellation latched the enhancer")
	}
}

func TestEnhancer_Disabled(t *testing.T) {
	var c *Client
	e := NewEnhancer(c, nil)
	if e.Available() {
		t.Error("nil client should give an unavailable enhancer")
	}
	if _, ok := e.Enhance(context.Background(), report("Medan")); ok {
		t.Error("disabled enhancer returned a title")
	}
}

func TestParagraph(t *testing.T) {
	e := NewEnhancer(&fakeGen{text: "  **Masyarakat** diimbau waspada.  "}, nil)
	got, ok := e.Paragraph(context.Background(), Intro, report("Medan"))
	if !ok || got != "Masyarakat diimbau waspada." {
		t.Errorf("Paragraph() = %q, %v", got, ok)
	}
	if _, ok := e.Paragraph(context.Background(), ParagraphKind("middle"), report("Medan")); ok {
		t.Error("unknown kind accepted")
	}
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		text, word string
		want       bool
	}{
		{"hujan di kota padang", "padang", true},
		{"cuaca padangsidimpuan", "padang", false},
		{"padang, bukittinggi", "padang", true},
		{"bandar lampung", "bandung", false},
		{"", "medan", false},
		{"medan", "", false},
	}
	for _, tt := range tests {
		if got := containsWord(tt.text, tt.word); got != tt.want {
			t.Errorf("containsWord(%q, %q) = %v, want %v", tt.text, tt.word, got, tt.want)
		}
	}
}

func TestClosingPrompt(t *testing.T) {
	r := ordered.New[string, weather.Observation]()
	r.Set("Ambon", weather.Observation{Weather: "Hujan Petir", Temperature: 26})
	r.Set("Kupang", weather.Observation{Weather: "Cerah", Temperature: 33})
	p := closingPrompt(r)
	if !strings.Contains(p, "Kota dengan hujan: Ambon | Kota dengan suhu tinggi: Kupang") {
		t.Errorf("closingPrompt() = %q", p)
	}
}
