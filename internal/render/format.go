package render

import (
	"fmt"
	"strconv"
	"time"
)

// French display tables, indexed by time.Weekday (0=Sunday) and by
// month number minus one. Month names stay lower-cased mid-sentence.
var weekdaysFR = [7]string{
	"Dimanche", "Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi", "Samedi",
}

var monthsFR = [12]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// FormatDateFull renders "Lundi 10 mars 2025". The time's own calendar
// fields are used as-is; store timestamps are already in display time.
func FormatDateFull(t time.Time) string {
	return fmt.Sprintf("%s %d %s %d", weekdaysFR[int(t.Weekday())], t.Day(), monthsFR[int(t.Month())-1], t.Year())
}

// FormatTime renders "14:05", 24-hour, zero-padded.
func FormatTime(t time.Time) string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// FormatPrice renders "45€" or "37.5€"; "—" when the price is unknown.
func FormatPrice(p *float64) string {
	if p == nil {
		return "—"
	}
	return strconv.FormatFloat(*p, 'f', -1, 64) + "€"
}
