package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/article"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/gemini"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/ordered"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/session"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/userlog"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/weather"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/wilayah"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/wilayah/wilayahtest"
)

// fakeFetcher answers every selected city except those in fail.
type fakeFetcher struct {
	fail map[string]bool
	seen []string
}

func (f *fakeFetcher) FetchMany(_ context.Context, sel *ordered.Map[string, wilayah.City], opts weather.ManyOptions) *weather.Report {
	report := ordered.New[string, weather.Observation]()
	sel.Each(func(name string, c wilayah.City) bool {
		f.seen = append(f.seen, name)
		if f.fail[name] {
			return true
		}
		report.Set(name, weather.Observation{
			Datetime:    "2026-01-05 06:00:00",
			Temperature: 27,
			Humidity:    80,
			Weather:     "Hujan Ringan",
			TargetHour:  opts.TargetHour,
			Timezone:    string(c.Timezone),
		})
		return true
	})
	return report
}

type fixedGen string

func (g fixedGen) Generate(context.Context, string) (string, error) { return string(g), nil }

func setup(t *testing.T, gen gemini.Generator, fetcher Fetcher, useAI bool) (*Pipeline, *session.Session) {
	t.Helper()
	store := wilayahtest.Seeded(t)
	sessions := session.NewManager(store, gen, nil, nil)
	p := New(fetcher, store, Options{TargetHour: 6, UseAI: useAI}, nil)
	return p, sessions.Get(context.Background(), userlog.NewKey("telegram", 1))
}

func TestBuild_Random(t *testing.T) {
	p, sess := setup(t, nil, &fakeFetcher{}, false)

	var stages []string
	res, err := p.Build(context.Background(), sess, Request{}, ReporterFunc(func(e Event) {
		stages = append(stages, e.Stage)
		if e.RunID == "" {
			t.Error("event without run id")
		}
	}))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if got := strings.Join(stages, ","); got != "select,fetch,render,done" {
		t.Errorf("stages = %s", got)
	}
	if len(res.Article.Cities) != 4 {
		t.Fatalf("cities = %v", res.Article.Cities)
	}
	for _, name := range res.Article.Cities {
		if strings.Count(res.Article.Body, name) != 1 {
			t.Errorf("%s appears %d times in body", name, strings.Count(res.Article.Body, name))
		}
	}
	if res.Article.AIEnhanced || !strings.HasPrefix(res.Article.Title, "BMKG Hari Ini:") {
		t.Errorf("title = %q", res.Article.Title)
	}
	if res.Summary == "" || res.RunID == "" {
		t.Errorf("result = %+v", res)
	}
}

func TestBuild_RequestedCitiesAreFilled(t *testing.T) {
	p, sess := setup(t, nil, &fakeFetcher{}, false)

	res, err := p.Build(context.Background(), sess, Request{Cities: []string{"Sorong"}}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.Article.Cities[0] != "Sorong" {
		t.Errorf("requested city not first: %v", res.Article.Cities)
	}
	zones := sess.Selector.SelectedByTimezone()
	if zones[wilayah.WIB] != 2 || zones[wilayah.WITA] != 1 || zones[wilayah.WIT] != 1 {
		t.Errorf("zone counts = %v", zones)
	}
}

func TestBuild_UnknownCity(t *testing.T) {
	p, sess := setup(t, nil, &fakeFetcher{}, false)

	_, err := p.Build(context.Background(), sess, Request{Cities: []string{"Bandung", "Atlantis"}}, nil)
	var nf *NotFoundError
	if !errors.As(err, &nf) || len(nf.Names) != 1 || nf.Names[0] != "Atlantis" {
		t.Fatalf("error = %v, want NotFoundError for Atlantis", err)
	}
}

func TestBuild_TooManyCities(t *testing.T) {
	p, sess := setup(t, nil, &fakeFetcher{}, false)
	sess.Selector.AddSpecific(context.Background(), "Sorong")

	names := []string{"Bandung", "Banjar", "Denpasar", "Sorong", "Kota Bandung"}
	_, err := p.Build(context.Background(), sess, Request{Cities: names}, nil)
	var verr *article.ValidationError
	if !errors.As(err, &verr) || verr.Max != 4 || verr.Got != 5 {
		t.Fatalf("error = %v, want ValidationError for 5 cities", err)
	}
	if got := sess.Selector.Names(); len(got) != 1 || got[0] != "Sorong" {
		t.Errorf("selection changed to %v", got)
	}
}

func TestBuild_NotEnoughData(t *testing.T) {
	fetcher := &fakeFetcher{fail: map[string]bool{"Sorong": true}}
	p, sess := setup(t, nil, fetcher, false)

	_, err := p.Build(context.Background(), sess, Request{}, nil)
	if !errors.Is(err, ErrNotEnoughData) {
		t.Fatalf("error = %v, want ErrNotEnoughData", err)
	}
}

func TestBuild_AITitle(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		wantAI bool
	}{
		{"accepted", "BMKG Prakirakan Hujan Ringan di Sorong", true},
		{"mentions absent city", "BMKG: Jakarta dan Sorong Hujan Ringan", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, sess := setup(t, fixedGen(tt.answer), &fakeFetcher{}, true)
			res, err := p.Build(context.Background(), sess, Request{Cities: []string{"Sorong"}}, nil)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if res.Article.AIEnhanced != tt.wantAI {
				t.Errorf("AIEnhanced = %v, title %q", res.Article.AIEnhanced, res.Article.Title)
			}
			if tt.wantAI && res.Article.Title != tt.answer {
				t.Errorf("title = %q", res.Article.Title)
			}
		})
	}
}

func TestBuild_AIParagraphs(t *testing.T) {
	store := wilayahtest.Seeded(t)
	sess := session.NewManager(store, fixedGen("Masyarakat diimbau waspada."), nil, nil).New()
	p := New(&fakeFetcher{}, store, Options{TargetHour: 6, UseAI: true, AIParagraphs: true}, nil)

	res, err := p.Build(context.Background(), sess, Request{}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	parts := strings.Split(res.Article.Body, "\n\n")
	if len(parts) != 7 || parts[0] != "Masyarakat diimbau waspada." || parts[6] != parts[0] {
		t.Errorf("body paragraphs = %d: %q", len(parts), res.Article.Body)
	}
}
