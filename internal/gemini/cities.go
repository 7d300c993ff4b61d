package gemini

import (
	"strings"
	"unicode"
)

// Landmark is a well-known city the model likes to put into headlines.
type Landmark struct {
	Name    string   // Display name
	Aliases []string // Alternative spellings (Jogja, DKI, ...)
}

// Landmarks lists the cities a generated title may only mention when they
// are part of the report.
var Landmarks = []Landmark{
	{Name: "Jakarta", Aliases: []string{"DKI"}},
	{Name: "Surabaya"},
	{Name: "Bandung"},
	{Name: "Medan"},
	{Name: "Semarang"},
	{Name: "Makassar", Aliases: []string{"Ujung Pandang"}},
	{Name: "Palembang"},
	{Name: "Denpasar"},
	{Name: "Yogyakarta", Aliases: []string{"Jogja", "Jogjakarta", "Yogya"}},
	{Name: "Balikpapan"},
	{Name: "Manado"},
	{Name: "Pontianak"},
	{Name: "Banjarmasin"},
	{Name: "Padang"},
	{Name: "Pekanbaru"},
	{Name: "Malang"},
	{Name: "Batam"},
	{Name: "Bogor"},
	{Name: "Jayapura"},
	{Name: "Ambon"},
	{Name: "Kupang"},
	{Name: "Mataram"},
}

// FindLandmarksInText returns every landmark mentioned in text by name or
// alias, in table order.
func FindLandmarksInText(text string) []Landmark {
	lower := strings.ToLower(text)
	var found []Landmark
	for _, lm := range Landmarks {
		if containsWord(lower, strings.ToLower(lm.Name)) {
			found = append(found, lm)
			continue
		}
		for _, alias := range lm.Aliases {
			if containsWord(lower, strings.ToLower(alias)) {
				found = append(found, lm)
				break
			}
		}
	}
	return found
}

// mentionsForeignCity reports whether title names a landmark that none of
// the given city names refer to.
func mentionsForeignCity(title string, cities []string) (string, bool) {
	for _, lm := range FindLandmarksInText(title) {
		if !lm.matchesAny(cities) {
			return lm.Name, true
		}
	}
	return "", false
}

func (lm Landmark) matchesAny(cities []string) bool {
	for _, c := range cities {
		c = strings.ToLower(c)
		if containsWord(c, strings.ToLower(lm.Name)) {
			return true
		}
		for _, alias := range lm.Aliases {
			if containsWord(c, strings.ToLower(alias)) {
				return true
			}
		}
	}
	return false
}

// containsWord checks that word occurs in text bounded by non-letters.
func containsWord(text, word string) bool {
	if word == "" {
		return false
	}
	for offset := 0; offset <= len(text)-len(word); {
		i := strings.Index(text[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)
		if !letterBefore(text, start) && !letterAt(text, end) {
			return true
		}
		offset = start + 1
	}
	return false
}

func letterBefore(s string, i int) bool {
	if i == 0 {
		return false
	}
	r := rune(s[i-1])
	return r < 0x80 && unicode.IsLetter(r)
}

func letterAt(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r := rune(s[i])
	return r < 0x80 && unicode.IsLetter(r)
}
