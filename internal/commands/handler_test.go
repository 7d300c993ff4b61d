package commands

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/article"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/db"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/ordered"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/pipeline"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/session"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/userlog"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/weather"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/wilayah"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/wilayah/wilayahtest"
)

type fakeForecaster struct {
	fail map[string]bool
}

func (f *fakeForecaster) obs(c wilayah.City) weather.Observation {
	return weather.Observation{
		Datetime:      "2026-01-05 06:00:00",
		Temperature:   27.4,
		Humidity:      81,
		Weather:       "Berawan",
		WindSpeed:     5,
		WindDirection: "SE",
		TargetHour:    6,
		Timezone:      string(c.Timezone),
	}
}

func (f *fakeForecaster) FetchCity(_ context.Context, c wilayah.City, _ int) (*weather.Observation, error) {
	if f.fail[c.Name] {
		return nil, weather.ErrNoForecast
	}
	o := f.obs(c)
	return &o, nil
}

func (f *fakeForecaster) FetchMany(_ context.Context, sel *ordered.Map[string, wilayah.City], _ weather.ManyOptions) *weather.Report {
	report := ordered.New[string, weather.Observation]()
	sel.Each(func(name string, c wilayah.City) bool {
		if !f.fail[name] {
			report.Set(name, f.obs(c))
		}
		return true
	})
	return report
}

type fixture struct {
	h    *Handler
	logs *userlog.Store
}

func newFixture(t *testing.T, fc *fakeForecaster) *fixture {
	t.Helper()
	return newFixtureWithBuilder(t, fc, nil)
}

// newFixtureWithBuilder uses builder instead of a real pipeline when non-nil.
func newFixtureWithBuilder(t *testing.T, fc *fakeForecaster, builder Builder) *fixture {
	t.Helper()
	store := wilayahtest.Seeded(t)

	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	logs := userlog.NewStore(conn, nil)
	if err := logs.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	sessions := session.NewManager(store, nil, logs, nil)
	if builder == nil {
		builder = pipeline.New(fc, store, pipeline.Options{TargetHour: 6}, nil)
	}
	h := NewHandler(sessions, store, fc, builder, logs, Options{TargetHour: 6}, nil)
	return &fixture{h: h, logs: logs}
}

func (f *fixture) send(text string, tr Transport) []Reply {
	var replies []Reply
	f.h.Handle(context.Background(), Message{UserID: 7, Username: "sari", Name: "Sari", Text: text, Transport: tr}, func(r Reply) {
		replies = append(replies, r)
	})
	return replies
}

func joined(replies []Reply) string {
	var parts []string
	for _, r := range replies {
		parts = append(parts, r.Text)
	}
	return strings.Join(parts, "\n---\n")
}

func TestParse(t *testing.T) {
	tests := []struct {
		in       string
		wantCmd  string
		wantArgs []string
	}{
		{"/artikel@BMKGBot Bandung  Sorong", "artikel", []string{"Bandung", "Sorong"}},
		{"/CUACA", "cuaca", []string{}},
		{"halo bot", "", []string{"halo", "bot"}},
		{"", "", nil},
	}
	for _, tt := range tests {
		cmd, args := Parse(tt.in)
		if cmd != tt.wantCmd || len(args) != len(tt.wantArgs) || (len(args) > 0 && !reflect.DeepEqual(args, tt.wantArgs)) {
			t.Errorf("Parse(%q) = %q, %v; want %q, %v", tt.in, cmd, args, tt.wantCmd, tt.wantArgs)
		}
	}
}

func TestParseCityArgs(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{nil, nil},
		{[]string{"Jakarta", "Bandung"}, []string{"Jakarta", "Bandung"}},
		{[]string{"Banda", "aceh", "Medan"}, []string{"Banda aceh", "Medan"}},
		{[]string{"kota", "baru"}, []string{"kota baru"}},
		{[]string{"A", "B", "C", "D", "E"}, []string{"A", "B", "C", "D", "E"}},
	}
	for _, tt := range tests {
		if got := ParseCityArgs(tt.args); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseCityArgs(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func TestHandle_StaticReplies(t *testing.T) {
	f := newFixture(t, &fakeForecaster{})

	tests := []struct {
		text string
		want string
	}{
		{"/start", "Selamat datang di BMKG Weather Bot"},
		{"/mulai", "Selamat datang"},
		{"/help", "Panduan Penggunaan"},
		{"/bantuan", "Panduan Penggunaan"},
		{"/foo", "tidak mengerti"},
		{"Halo!", "Selamat datang"},
		{"menu", "Panduan Penggunaan"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := joined(f.send(tt.text, Telegram))
			if !strings.Contains(got, tt.want) {
				t.Errorf("reply to %q = %q, want it to contain %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestHandle_Artikel(t *testing.T) {
	f := newFixture(t, &fakeForecaster{})

	replies := f.send("/artikel Sorong", Telegram)
	if len(replies) != 4 {
		t.Fatalf("got %d replies: %s", len(replies), joined(replies))
	}
	if !strings.HasPrefix(replies[1].Text, "📰 *") || !replies[1].Markdown {
		t.Errorf("title reply = %+v", replies[1])
	}
	if replies[2].Markdown || !strings.Contains(replies[2].Text, "Sorong") {
		t.Errorf("body reply = %+v", replies[2])
	}
	if !strings.Contains(replies[3].Text, "• Sorong (WIT)") {
		t.Errorf("city list = %q", replies[3].Text)
	}

	if got := joined(f.send("/artikel Bandung Atlantis", Telegram)); !strings.Contains(got, "Kota tidak ditemukan: Atlantis") {
		t.Errorf("unknown city reply = %q", got)
	}
	if got := joined(f.send("/artikel A B C D E", Telegram)); !strings.Contains(got, "Maksimal 4 kota") {
		t.Errorf("too many cities reply = %q", got)
	}
}

func TestHandle_ArtikelNotEnoughData(t *testing.T) {
	f := newFixture(t, &fakeForecaster{fail: map[string]bool{"Denpasar": true}})
	if got := joined(f.send("/artikel", WhatsApp)); !strings.Contains(got, "Gagal mengambil data cuaca dari BMKG") {
		t.Errorf("reply = %q", got)
	}
}

type failingBuilder struct{ err error }

func (b failingBuilder) Build(context.Context, *session.Session, pipeline.Request, pipeline.Reporter) (*pipeline.Result, error) {
	return nil, b.err
}

func TestHandle_ArtikelErrorReplies(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    string
		notWant string
	}{
		{"internal error is hidden", errors.New("db locked"), errorText, "db locked"},
		{"validation error is shown", &article.ValidationError{Max: 4, Got: 5}, "Maksimal 4 kota untuk 1 artikel", ""},
		{"unknown city is shown", &pipeline.NotFoundError{Names: []string{"Atlantis"}}, "Kota tidak ditemukan: Atlantis", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixtureWithBuilder(t, &fakeForecaster{}, failingBuilder{tt.err})
			for _, tr := range []Transport{Telegram, WhatsApp} {
				got := joined(f.send("/artikel", tr))
				if !strings.Contains(got, tt.want) {
					t.Errorf("%s reply = %q, want %q", tr, got, tt.want)
				}
				if tt.notWant != "" && strings.Contains(got, tt.notWant) {
					t.Errorf("%s reply leaks %q: %q", tr, tt.notWant, got)
				}
			}
		})
	}
}

func TestHandle_Cuaca(t *testing.T) {
	f := newFixture(t, &fakeForecaster{fail: map[string]bool{"Banjar": true}})

	got := joined(f.send("/cuaca sorong", Telegram))
	for _, want := range []string{"Cuaca Sorong", "Senin, 5 Januari 2026", "06.00 WIT", "Suhu: 27°C", "dari SE"} {
		if !strings.Contains(got, want) {
			t.Errorf("cuaca reply missing %q: %s", want, got)
		}
	}

	if got := joined(f.send("Denpasar", WhatsApp)); !strings.Contains(got, "Cuaca Denpasar") {
		t.Errorf("plain text should look up weather, got %q", got)
	}
	if got := joined(f.send("/cuaca Atlantis", Telegram)); !strings.Contains(got, "tidak ditemukan") {
		t.Errorf("unknown city reply = %q", got)
	}
	if got := joined(f.send("/cuaca Banjar", Telegram)); !strings.Contains(got, "Gagal mengambil data cuaca untuk Banjar") {
		t.Errorf("fetch failure reply = %q", got)
	}
	if got := joined(f.send("/cuaca", Telegram)); !strings.Contains(got, "Gunakan format") {
		t.Errorf("missing arg reply = %q", got)
	}
}

func TestHandle_Cuaca3(t *testing.T) {
	f := newFixture(t, &fakeForecaster{})
	got := joined(f.send("/cuaca3", Telegram))
	for _, want := range []string{"*Bandung* (WIB)", "*Denpasar* (WITA)", "*Sorong* (WIT)", "📅 5 Januari 2026"} {
		if !strings.Contains(got, want) {
			t.Errorf("cuaca3 reply missing %q: %s", want, got)
		}
	}
}

func TestHandle_Cari(t *testing.T) {
	f := newFixture(t, &fakeForecaster{})
	got := joined(f.send("/cari band", Telegram))
	if !strings.Contains(got, "Ditemukan 2 kota.") || !strings.Contains(got, "`32.73.01.1001`") {
		t.Errorf("cari reply = %q", got)
	}
	if got := joined(f.send("/cari zzz", Telegram)); !strings.Contains(got, "Tidak ditemukan kota") {
		t.Errorf("empty search reply = %q", got)
	}
}

func TestHandle_KotaAndRandom(t *testing.T) {
	f := newFixture(t, &fakeForecaster{})

	got := joined(f.send("/kota", Telegram))
	if !strings.Contains(got, "Total: 4 kota") || !strings.Contains(got, "*WIT (UTC+9):*") {
		t.Errorf("kota reply = %q", got)
	}

	got = joined(f.send("/random", Telegram))
	if !strings.Contains(got, "Kota baru berhasil dipilih") || !strings.Contains(got, "• Sorong") {
		t.Errorf("random reply = %q", got)
	}

	var saved struct {
		Cities []wilayah.City `json:"cities"`
	}
	if ok, err := f.logs.LoadSession(context.Background(), userlog.NewKey("telegram", 7), &saved); !ok || err != nil || len(saved.Cities) != 4 {
		t.Errorf("persisted session = %v, %v, %+v", ok, err, saved)
	}
}

func TestHandle_ProvinsiAndList(t *testing.T) {
	f := newFixture(t, &fakeForecaster{})

	got := joined(f.send("/provinsi", Telegram))
	if !strings.Contains(got, "`32` Jawa Barat") || !strings.Contains(got, "`91` Papua Barat") {
		t.Errorf("provinsi reply = %q", got)
	}
	if got := joined(f.send("/provinsi 51", Telegram)); !strings.Contains(got, "• Denpasar (WITA)") {
		t.Errorf("provinsi 51 reply = %q", got)
	}
	if got := joined(f.send("/provinsi 99", Telegram)); !strings.Contains(got, "Tidak ada kota") {
		t.Errorf("unknown province reply = %q", got)
	}
	if got := joined(f.send("/daftar", Telegram)); !strings.Contains(got, "*Total:* 4 kota") {
		t.Errorf("list reply = %q", got)
	}
}

func TestHandle_Stats(t *testing.T) {
	f := newFixture(t, &fakeForecaster{})
	got := joined(f.send("/stats", Telegram))
	for _, want := range []string{"Total kota: *4*", "WIB (UTC+7): 2 kota", "Total pengguna: 1", "AI Enhancement: tidak tersedia"} {
		if !strings.Contains(got, want) {
			t.Errorf("stats reply missing %q: %s", want, got)
		}
	}

	acts, err := f.logs.UserActivity(context.Background(), userlog.NewKey("telegram", 7), 5)
	if err != nil || len(acts) != 1 || acts[0].Command != "/stats" {
		t.Errorf("activity = %+v, %v", acts, err)
	}
}

func TestHandle_TransportsKeptApart(t *testing.T) {
	f := newFixture(t, &fakeForecaster{})
	ctx := context.Background()

	f.send("/random", Telegram)
	f.send("/help", WhatsApp)
	f.send("/help", WhatsApp)

	if n, err := f.logs.TotalUsers(ctx); err != nil || n != 2 {
		t.Errorf("TotalUsers() = %d, %v; want one user per transport", n, err)
	}
	wa, err := f.logs.User(ctx, userlog.NewKey("whatsapp", 7))
	if err != nil || wa == nil || wa.TotalCommands != 2 {
		t.Fatalf("whatsapp user = %+v, %v", wa, err)
	}

	var saved struct {
		Cities []wilayah.City `json:"cities"`
	}
	if ok, _ := f.logs.LoadSession(ctx, userlog.NewKey("whatsapp", 7), &saved); ok && len(saved.Cities) > 0 {
		t.Errorf("whatsapp user inherited the telegram selection: %+v", saved)
	}
	if n := f.h.sessions.Len(); n != 2 {
		t.Errorf("live sessions = %d, want one per transport", n)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abc", 5); got != "abc" {
		t.Errorf("truncate short = %q", got)
	}
	// "é" is two bytes; cutting inside it must back off.
	if got := truncate("aé", 2); got != "a" {
		t.Errorf("truncate mid-rune = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "0s"},
		{45 * time.Second, "45s"},
		{2*time.Minute + 5*time.Second, "2m 5s"},
		{3*time.Hour + 4*time.Minute, "3h 4m 0s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
