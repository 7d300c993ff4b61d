package article

import (
	"fmt"
	"strings"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/weather"
)

var (
	severeKeywords = []string{"petir", "lebat", "badai"}
	rainKeywords   = []string{"hujan"}
)

func containsAny(text string, keywords []string) bool {
	text = strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Title builds the rule-based headline. The main city is the first with
// thunder or heavy rain, else the first with rain, else the first city.
// Up to two other cities are used as contrast: when both report the same
// weather they are merged into one collective phrase, otherwise the first
// one is named.
func Title(report *weather.Report) string {
	cities := firstN(report, report.Len())
	if len(cities) == 0 {
		return "Prakiraan Cuaca BMKG"
	}

	mainIdx, severity := 0, 0
	for i, c := range cities {
		if containsAny(c.obs.Weather, severeKeywords) {
			mainIdx, severity = i, 2
			break
		}
	}
	if severity == 0 {
		for i, c := range cities {
			if containsAny(c.obs.Weather, rainKeywords) {
				mainIdx, severity = i, 1
				break
			}
		}
	}
	main := cities[mainIdx]

	var contrasts []cityObs
	for i, c := range cities {
		if i != mainIdx {
			contrasts = append(contrasts, c)
		}
		if len(contrasts) == 2 {
			break
		}
	}

	date := FormatDate(main.obs.Datetime)
	var head string
	switch severity {
	case 2:
		head = fmt.Sprintf("Waspada %s di %s %s", main.obs.Weather, main.name, date)
	case 1:
		head = fmt.Sprintf("BMKG Hari Ini: %s %s %s", main.name, main.obs.Weather, date)
	default:
		head = fmt.Sprintf("BMKG: Cuaca %s %s Diprakirakan %s", main.name, date, main.obs.Weather)
	}

	switch {
	case len(contrasts) == 2 && sameWeather(contrasts[0].obs.Weather, contrasts[1].obs.Weather):
		return fmt.Sprintf("%s, Beberapa Kota Lainnya %s", head, contrasts[0].obs.Weather)
	case len(contrasts) >= 1:
		return fmt.Sprintf("%s, %s %s", head, contrasts[0].name, contrasts[0].obs.Weather)
	default:
		return head
	}
}

func sameWeather(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
