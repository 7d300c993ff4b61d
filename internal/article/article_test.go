package article

import (
	"errors"
	"strings"
	"testing"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/ordered"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/weather"
)

type cityWeather struct {
	name, weather string
}

func buildReport(cities ...cityWeather) *weather.Report {
	r := ordered.New[string, weather.Observation]()
	zones := []string{"WIB", "WIB", "WITA", "WIT"}
	for i, c := range cities {
		r.Set(c.name, weather.Observation{
			Datetime:    "2026-01-05 06:00:00",
			Temperature: 27.6,
			Humidity:    84.2,
			Weather:     c.weather,
			TargetHour:  6,
			Timezone:    zones[i%len(zones)],
		})
	}
	return r
}

func TestDates(t *testing.T) {
	tests := []struct {
		in, day, date, hour string
	}{
		{"2026-01-05 06:00:00", "Senin", "5 Januari 2026", "06.00"},
		{"2026-08-17 13:00:00", "Senin", "17 Agustus 2026", "13.00"},
		{"2026-12-27 21:00:00", "Minggu", "27 Desember 2026", "21.00"},
		{"2026-05-01 00:00:00", "Jumat", "1 Mei 2026", "00.00"},
		{"not a date", "Senin", "not a date", "00.00"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := DayName(tt.in); got != tt.day {
				t.Errorf("DayName = %q, want %q", got, tt.day)
			}
			if got := FormatDate(tt.in); got != tt.date {
				t.Errorf("FormatDate = %q, want %q", got, tt.date)
			}
			if got := FormatHour(tt.in); got != tt.hour {
				t.Errorf("FormatHour = %q, want %q", got, tt.hour)
			}
		})
	}
}

func TestRender_TooFewCities(t *testing.T) {
	report := buildReport(cityWeather{"Medan", "Cerah"}, cityWeather{"Ambon", "Berawan"}, cityWeather{"Palu", "Hujan"})
	_, err := Render(report)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Render() error = %v, want ValidationError", err)
	}
	if verr.Need != 4 || verr.Got != 3 {
		t.Errorf("ValidationError = %+v", verr)
	}
}

func TestRender_EachCityOnce(t *testing.T) {
	report := buildReport(
		cityWeather{"Medan", "Cerah Berawan"},
		cityWeather{"Bandung", "Hujan Ringan"},
		cityWeather{"Denpasar", "Berawan"},
		cityWeather{"Jayapura", "Hujan Petir"},
	)
	body, err := Render(report)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	paragraphs := strings.Split(body, "\n\n")
	if len(paragraphs) != 5 {
		t.Fatalf("got %d paragraphs, want 5", len(paragraphs))
	}
	for _, name := range []string{"Medan", "Bandung", "Denpasar", "Jayapura"} {
		if n := strings.Count(body, name); n != 1 {
			t.Errorf("%s appears %d times, want 1", name, n)
		}
	}
	for _, want := range []string{"Senin, 5 Januari 2026", "06.00 WIB", "28 derajat Celcius", "84 persen", "hujan petir", "(*)"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestRender_UsesFirstFour(t *testing.T) {
	report := buildReport(
		cityWeather{"A1", "Cerah"}, cityWeather{"B2", "Cerah"},
		cityWeather{"C3", "Cerah"}, cityWeather{"D4", "Cerah"}, cityWeather{"E5", "Cerah"},
	)
	body, err := Render(report)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(body, "E5") {
		t.Error("fifth city must not be rendered")
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name   string
		cities []cityWeather
		want   string
	}{
		{
			name:   "thunder beats rain and order",
			cities: []cityWeather{{"Medan", "Hujan Ringan"}, {"Bandung", "Cerah"}, {"Ambon", "Hujan Petir"}, {"Palu", "Berawan"}},
			want:   "Waspada Hujan Petir di Ambon 5 Januari 2026, Medan Hujan Ringan",
		},
		{
			name:   "rain main with merged contrasts",
			cities: []cityWeather{{"Medan", "Cerah"}, {"Bandung", "Hujan Sedang"}, {"Ambon", "cerah "}, {"Palu", "Berawan"}},
			want:   "BMKG Hari Ini: Bandung Hujan Sedang 5 Januari 2026, Beberapa Kota Lainnya Cerah",
		},
		{
			name:   "default first city",
			cities: []cityWeather{{"Medan", "Cerah"}, {"Bandung", "Berawan"}, {"Ambon", "Kabut"}, {"Palu", "Cerah"}},
			want:   "BMKG: Cuaca Medan 5 Januari 2026 Diprakirakan Cerah, Bandung Berawan",
		},
		{
			name:   "heavy rain keyword",
			cities: []cityWeather{{"Medan", "Berawan"}, {"Bandung", "Hujan Lebat"}},
			want:   "Waspada Hujan Lebat di Bandung 5 Januari 2026, Medan Berawan",
		},
		{
			name:   "single city",
			cities: []cityWeather{{"Medan", "Cerah"}},
			want:   "BMKG: Cuaca Medan 5 Januari 2026 Diprakirakan Cerah",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Title(buildReport(tt.cities...)); got != tt.want {
				t.Errorf("Title() =\n %q\nwant\n %q", got, tt.want)
			}
		})
	}

	if got := Title(buildReport()); got != "Prakiraan Cuaca BMKG" {
		t.Errorf("empty Title() = %q", got)
	}
}

func TestCompose(t *testing.T) {
	a := &Article{Title: "Judul", Body: "Isi"}
	want := "Judul\n" + strings.Repeat("=", 80) + "\n\nIsi"
	if got := a.Text(); got != want {
		t.Errorf("Text() = %q", got)
	}
}

func TestSummary(t *testing.T) {
	got := Summary(buildReport(cityWeather{"Medan", "Cerah"}, cityWeather{"Bandung", "Hujan"}))
	want := "Medan (WIB): Cerah, 28°C, kelembapan 84%\nBandung (WIB): Hujan, 28°C, kelembapan 84%"
	if got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}
