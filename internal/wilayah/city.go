package wilayah

import (
	"strings"
	"unicode"
)

// Code lengths for each administrative level.
const (
	provinceCodeLen = 2  // 11
	cityCodeLen     = 5  // 11.71
	districtCodeLen = 8  // 11.71.01
	villageCodeLen  = 13 // 11.71.01.2001
)

// Unit is one administrative unit as stored in the region table.
type Unit struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// City is a city or regency resolved to a village-level lookup code, which
// is what the forecast API accepts.
type City struct {
	Name           string `json:"name"`
	Code           string `json:"code"`
	Timezone       Zone   `json:"timezone"`
	TimezoneOffset int    `json:"timezone_offset"`
}

// Province returns the two-digit province prefix of the city code.
func (c City) Province() string {
	if len(c.Code) < provinceCodeLen {
		return c.Code
	}
	return c.Code[:provinceCodeLen]
}

func newCity(rawName, leafCode string) City {
	zone, offset := TimezoneFor(leafCode)
	return City{
		Name:           CleanName(rawName),
		Code:           leafCode,
		Timezone:       zone,
		TimezoneOffset: offset,
	}
}

// CleanName strips the "KAB. " and "KOTA " markers and title-cases the rest,
// turning "KOTA BANDA ACEH" into "Banda Aceh".
func CleanName(name string) string {
	name = strings.ReplaceAll(name, "KAB. ", "")
	name = strings.ReplaceAll(name, "KOTA ", "")
	return titleCase(strings.TrimSpace(name))
}

// titleCase upper-cases every letter that follows a non-letter and
// lower-cases the rest, so "PARE-PARE" becomes "Pare-Pare".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
