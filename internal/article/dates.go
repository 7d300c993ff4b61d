package article

import (
	"fmt"
	"time"
)

const datetimeLayout = "2006-01-02 15:04:05"

var dayNames = [...]string{"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"}

var monthNames = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// DayName returns the Indonesian weekday of a "YYYY-MM-DD HH:MM:SS"
// datetime, or "Senin" when it cannot be parsed.
func DayName(datetime string) string {
	t, err := time.Parse(datetimeLayout, datetime)
	if err != nil {
		return "Senin"
	}
	return dayNames[t.Weekday()]
}

// FormatDate renders a datetime as "5 Januari 2026". Unparseable input is
// returned unchanged.
func FormatDate(datetime string) string {
	t, err := time.Parse(datetimeLayout, datetime)
	if err != nil {
		return datetime
	}
	return fmt.Sprintf("%d %s %d", t.Day(), monthNames[t.Month()-1], t.Year())
}

// FormatHour renders the hour of a datetime as "06.00".
func FormatHour(datetime string) string {
	t, err := time.Parse(datetimeLayout, datetime)
	if err != nil {
		return "00.00"
	}
	return fmt.Sprintf("%02d.00", t.Hour())
}
