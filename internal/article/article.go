package article

import (
	"fmt"
	"math"
	"strings"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/weather"
)

// MinCities is the number of cities the narrative is written around.
const MinCities = 4

// ValidationError reports input the template cannot be rendered from.
// Max is set when too many cities were requested.
type ValidationError struct {
	Need int
	Max  int
	Got  int
}

func (e *ValidationError) Error() string {
	if e.Max > 0 && e.Got > e.Max {
		return fmt.Sprintf("Maksimal %d kota untuk 1 artikel (diminta %d)", e.Max, e.Got)
	}
	return fmt.Sprintf("Minimal %d kota diperlukan untuk generate artikel (tersedia %d)", e.Need, e.Got)
}

// Article is a rendered news piece.
type Article struct {
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Cities     []string `json:"cities"`
	AIEnhanced bool     `json:"ai_enhanced"`
}

// Text returns the article in its saved-file layout.
func (a *Article) Text() string {
	return Compose(a.Title, a.Body)
}

// Compose joins a title and body with an 80 character rule.
func Compose(title, body string) string {
	return title + "\n" + strings.Repeat("=", 80) + "\n\n" + body
}

type cityObs struct {
	name string
	obs  weather.Observation
}

func firstN(report *weather.Report, n int) []cityObs {
	var out []cityObs
	report.Each(func(name string, obs weather.Observation) bool {
		out = append(out, cityObs{name, obs})
		return len(out) < n
	})
	return out
}

const closingParagraph = "BMKG juga mengingatkan bahwa kondisi cuaca dapat berubah sewaktu-waktu. " +
	"Masyarakat diimbau untuk selalu memantau informasi terkini dari sumber resmi dan " +
	"mempersiapkan diri sesuai dengan kondisi cuaca di lokasi masing-masing. (*)"

// Render writes the five-paragraph narrative for the first four cities of
// report. Each city name appears exactly once.
func Render(report *weather.Report) (string, error) {
	if report.Len() < MinCities {
		return "", &ValidationError{Need: MinCities, Got: report.Len()}
	}
	c := firstN(report, MinCities)
	c1, c2, c3, c4 := c[0], c[1], c[2], c[3]

	paragraphs := []string{
		fmt.Sprintf("Badan Meteorologi, Klimatologi dan Geofisika (BMKG) memprakirakan cuaca di Kota %s %s pada hari %s, %s. "+
			"Berdasarkan pantauan di laman resmi BMKG.go.id pada pukul %s %s, suhu udara di kota tersebut berkisar %s derajat Celcius. "+
			"Sementara, tingkat kelembapan udara berada pada %s persen.",
			c1.name, strings.ToLower(c1.obs.Weather), DayName(c1.obs.Datetime), FormatDate(c1.obs.Datetime),
			FormatHour(c1.obs.Datetime), c1.obs.Timezone, round(c1.obs.Temperature), round(c1.obs.Humidity)),

		fmt.Sprintf("Berbeda dengan kota sebelumnya, %s pada pukul %s %s diprakirakan %s dengan suhu udara berkisar %s derajat Celcius. "+
			"Sementara, untuk tingkat kelembapan udara berada pada angka %s persen.",
			c2.name, FormatHour(c2.obs.Datetime), c2.obs.Timezone, strings.ToLower(c2.obs.Weather),
			round(c2.obs.Temperature), round(c2.obs.Humidity)),

		fmt.Sprintf("Kota %s diprakirakan terjadi %s pada pukul %s %s. Suhu udara kota ini berkisar %s derajat Celcius. "+
			"Tingkat kelembapan udaranya berada pada angka %s persen.",
			c3.name, strings.ToLower(c3.obs.Weather), FormatHour(c3.obs.Datetime), c3.obs.Timezone,
			round(c3.obs.Temperature), round(c3.obs.Humidity)),

		fmt.Sprintf("Berbeda dengan kota-kota yang telah dilaporkan, pada pukul %s %s di kota %s diprakirakan %s. "+
			"Suhu udara di kota tersebut berkisar %s derajat Celcius, dengan tingkat kelembapan udara berada pada angka %s persen.",
			FormatHour(c4.obs.Datetime), c4.obs.Timezone, c4.name, strings.ToLower(c4.obs.Weather),
			round(c4.obs.Temperature), round(c4.obs.Humidity)),

		closingParagraph,
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

// Summary lists every city as "Name (TZ): weather, t°C, hu%".
func Summary(report *weather.Report) string {
	var b strings.Builder
	report.Each(func(name string, obs weather.Observation) bool {
		fmt.Fprintf(&b, "%s (%s): %s, %s°C, kelembapan %s%%\n",
			name, obs.Timezone, obs.Weather, round(obs.Temperature), round(obs.Humidity))
		return true
	})
	return strings.TrimRight(b.String(), "\n")
}

// round formats a reading without decimals.
func round(v float64) string {
	return fmt.Sprintf("%d", int(math.Round(v)))
}
