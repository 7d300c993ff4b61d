package wilayah

import "testing"

func TestTimezoneFor(t *testing.T) {
	tests := []struct {
		code       string
		wantZone   Zone
		wantOffset int
	}{
		{"11.71.01.1001", WIB, 7},
		{"31.71", WIB, 7},
		{"61", WIB, 7},
		{"62.71.01.1001", WITA, 8},
		{"51.71", WITA, 8},
		{"76.01", WITA, 8},
		{"81.71", WIT, 9},
		{"96.01", WIT, 9},
		{"99.01", WIB, 7},
		{"", WIB, 7},
		{"7", WIB, 7},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			zone, offset := TimezoneFor(tt.code)
			if zone != tt.wantZone || offset != tt.wantOffset {
				t.Errorf("TimezoneFor(%q) = (%s, %d), want (%s, %d)", tt.code, zone, offset, tt.wantZone, tt.wantOffset)
			}
		})
	}
}

func TestTimezoneFor_AlwaysKnownZone(t *testing.T) {
	for a := '0'; a <= '9'; a++ {
		for b := '0'; b <= '9'; b++ {
			code := string([]rune{a, b}) + ".71"
			zone, offset := TimezoneFor(code)
			if !zone.Valid() || offset != zone.Offset() {
				t.Fatalf("TimezoneFor(%q) = (%s, %d)", code, zone, offset)
			}
		}
	}
}

func TestProvincesIn(t *testing.T) {
	total := 0
	for _, z := range Zones {
		for _, p := range ProvincesIn(z) {
			if got, _ := TimezoneFor(p); got != z {
				t.Errorf("province %s listed under %s but maps to %s", p, z, got)
			}
			total++
		}
	}
	if total != len(provinceZones) {
		t.Errorf("listed %d provinces, map has %d", total, len(provinceZones))
	}
}

func TestParseZone(t *testing.T) {
	tests := map[string]Zone{"wib": WIB, " WITA ": WITA, "Wit": WIT, "UTC": "", "": ""}
	for in, want := range tests {
		if got := ParseZone(in); got != want {
			t.Errorf("ParseZone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"KOTA BANDA ACEH", "Banda Aceh"},
		{"KAB. ACEH BESAR", "Aceh Besar"},
		{"KOTA PARE-PARE", "Pare-Pare"},
		{"KOTA ADM. JAKARTA PUSAT", "Adm. Jakarta Pusat"},
		{"SURABAYA", "Surabaya"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := CleanName(tt.in); got != tt.want {
				t.Errorf("CleanName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
