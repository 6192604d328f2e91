package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Weekday is a day-of-week as the client sent it: either a number or a
// three-letter name. Each feature pipeline reads it under its own convention.
type Weekday struct {
	Num  *int
	Name string
}

// WeekdayNum builds a numeric weekday.
func WeekdayNum(n int) Weekday { return Weekday{Num: &n} }

// WeekdayName builds a named weekday.
func WeekdayName(name string) Weekday { return Weekday{Name: name} }

// IsZero reports whether no weekday was supplied.
func (w Weekday) IsZero() bool { return w.Num == nil && w.Name == "" }

var shortNames = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

// SundayIndex resolves the weekday under the 0=Sunday convention.
// Names are matched on their first three letters, case-insensitively.
func (w Weekday) SundayIndex() (int, bool) {
	if w.Num != nil {
		return *w.Num, *w.Num >= 0 && *w.Num <= 6
	}
	name := strings.ToLower(strings.TrimSpace(w.Name))
	if len(name) < 3 {
		return 0, false
	}
	n, ok := shortNames[name[:3]]
	return n, ok
}

// String renders the weekday as supplied.
func (w Weekday) String() string {
	if w.Num != nil {
		return strconv.Itoa(*w.Num)
	}
	return w.Name
}

// MarshalJSON writes the number or the name; an empty weekday is null.
func (w Weekday) MarshalJSON() ([]byte, error) {
	switch {
	case w.Num != nil:
		return []byte(strconv.Itoa(*w.Num)), nil
	case w.Name != "":
		return json.Marshal(w.Name)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a number, a numeric string or a day name.
func (w *Weekday) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*w = Weekday{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if n, err := strconv.Atoi(s); err == nil {
			w.Num = &n
			return nil
		}
		w.Name = s
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("%w: week must be a number or a day name", ErrInvalidRequest)
	}
	n := int(f)
	w.Num = &n
	return nil
}
