package wilayah

import (
	"sort"
	"strings"
)

// Zone is one of Indonesia's three civil time zones.
type Zone string

const (
	WIB  Zone = "WIB"  // UTC+7
	WITA Zone = "WITA" // UTC+8
	WIT  Zone = "WIT"  // UTC+9
)

// Zones lists every zone in west-to-east order.
var Zones = []Zone{WIB, WITA, WIT}

// Offset returns the UTC offset in hours.
func (z Zone) Offset() int {
	switch z {
	case WITA:
		return 8
	case WIT:
		return 9
	default:
		return 7
	}
}

// Valid reports whether z is one of the three known zones.
func (z Zone) Valid() bool {
	return z == WIB || z == WITA || z == WIT
}

// ParseZone parses a zone name case-insensitively. The empty string is
// returned for unknown names.
func ParseZone(s string) Zone {
	z := Zone(strings.ToUpper(strings.TrimSpace(s)))
	if z.Valid() {
		return z
	}
	return ""
}

// provinceZones maps the two-digit province prefix to its zone.
var provinceZones = map[string]Zone{
	// Sumatera
	"11": WIB, "12": WIB, "13": WIB, "14": WIB, "15": WIB,
	"16": WIB, "17": WIB, "18": WIB, "19": WIB, "21": WIB,
	// Jawa
	"31": WIB, "32": WIB, "33": WIB, "34": WIB, "35": WIB, "36": WIB,
	// Kalimantan Barat
	"61": WIB,

	// Kalimantan Tengah, Selatan, Timur, Utara
	"62": WITA, "63": WITA, "64": WITA, "65": WITA,
	// Bali, Nusa Tenggara
	"51": WITA, "52": WITA, "53": WITA,
	// Sulawesi
	"71": WITA, "72": WITA, "73": WITA, "74": WITA, "75": WITA, "76": WITA,

	// Maluku, Papua
	"81": WIT, "82": WIT,
	"91": WIT, "92": WIT, "93": WIT, "94": WIT, "95": WIT, "96": WIT,
}

// TimezoneFor returns the zone and UTC offset for an administrative code.
// Codes whose province prefix is unmapped fall back to WIB.
func TimezoneFor(code string) (Zone, int) {
	prefix := code
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	z, ok := provinceZones[prefix]
	if !ok {
		z = WIB
	}
	return z, z.Offset()
}

// ProvincesIn returns the province prefixes mapped to zone, sorted.
func ProvincesIn(zone Zone) []string {
	var out []string
	for code, z := range provinceZones {
		if z == zone {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out
}
