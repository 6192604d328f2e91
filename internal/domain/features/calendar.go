package features

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/flightrisk/internal/domain/model"
)

var timeBlocks = [24]string{
	"Late Night (0-3)", "Late Night (0-3)", "Late Night (0-3)",
	"Early Morning (3-6)", "Early Morning (3-6)", "Early Morning (3-6)",
	"Morning (6-9)", "Morning (6-9)", "Morning (6-9)",
	"Mid-Day (9-12)", "Mid-Day (9-12)", "Mid-Day (9-12)",
	"Afternoon (12-15)", "Afternoon (12-15)", "Afternoon (12-15)",
	"Evening (15-18)", "Evening (15-18)", "Evening (15-18)",
	"Night (18-21)", "Night (18-21)", "Night (18-21)",
	"Late Night (21-24)", "Late Night (21-24)", "Late Night (21-24)",
}

// timeBlock maps an hour onto its 3-hour block label.
func timeBlock(hour int) (string, bool) {
	if hour < 0 || hour > 23 {
		return "", false
	}
	return timeBlocks[hour], true
}

var dayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// splitHHMM decomposes an HHMM-encoded clock value.
func splitHHMM(t float64) (hour, minute float64) {
	return math.Floor(t / 100), math.Mod(t, 100)
}

// isRedeye reports an HHMM time within [0000, 0600).
func isRedeye(t float64) bool { return t >= 0 && t < 600 }

// calendarDate builds a date and rejects combinations that time.Date
// would silently normalise, such as February 30.
func calendarDate(year, month, day int) (time.Time, error) {
	if year <= 0 || month <= 0 || day <= 0 {
		return time.Time{}, fmt.Errorf("%w: %04d-%02d-%02d", model.ErrDateConstruction, year, month, day)
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, fmt.Errorf("%w: %04d-%02d-%02d", model.ErrDateConstruction, year, month, day)
	}
	return d, nil
}

func cyc(v, period float64) (float64, float64) {
	a := 2 * math.Pi * v / period
	return math.Sin(a), math.Cos(a)
}

func boolNum(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
