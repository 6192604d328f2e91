// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// FlightRequest carries the raw attributes a client supplies for one flight.
// Optional numeric inputs are pointers so absence is distinguishable from zero.
type FlightRequest struct {
	Year               int      `json:"year,omitempty" validate:"omitempty,min=1900,max=2999"`
	Week               Weekday  `json:"week"`
	Month              int      `json:"month,omitempty" validate:"omitempty,min=1,max=12"`
	Day                int      `json:"day,omitempty" validate:"omitempty,min=1,max=31"`
	Airline            string   `json:"airline,omitempty" validate:"omitempty,max=3"`
	FlightNumber       string   `json:"flightNumber,omitempty" validate:"omitempty,max=8"`
	Origin             string   `json:"from" validate:"required,len=3,alpha"`
	Destination        string   `json:"to" validate:"required,len=3,alpha"`
	Distance           float64  `json:"distance,omitempty" validate:"gte=0"`
	DepTime            *float64 `json:"depTime,omitempty" validate:"omitempty,gte=0,lt=2400"`
	ArrTime            *float64 `json:"arrTime,omitempty" validate:"omitempty,gte=0,lt=2400"`
	ExtremeWeather     *int     `json:"extremeWeather,omitempty" validate:"omitempty,oneof=0 1"`
	DestExtremeWeather *int     `json:"destExtremeWeather,omitempty" validate:"omitempty,oneof=0 1"`
	Rainfall           *float64 `json:"rainfall,omitempty"`
	DestRainfall       *float64 `json:"destRainfall,omitempty"`
	Time               string   `json:"time,omitempty"`
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses the request timestamp in any of the accepted layouts.
func (r *FlightRequest) ParseTime() (time.Time, bool) {
	s := strings.TrimSpace(r.Time)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Normalize canonicalises codes, clamps rainfall and fills calendar fields
// from the timestamp when they were not supplied. It returns the names of
// the fields that were derived or defaulted.
func (r *FlightRequest) Normalize(defaultAirline string) []string {
	var filled []string

	r.Origin = strings.ToUpper(strings.TrimSpace(r.Origin))
	r.Destination = strings.ToUpper(strings.TrimSpace(r.Destination))
	r.FlightNumber = strings.ToUpper(strings.TrimSpace(r.FlightNumber))
	r.Airline = strings.ToUpper(strings.TrimSpace(r.Airline))

	if r.Airline == "" {
		if len(r.FlightNumber) >= 2 {
			r.Airline = r.FlightNumber[:2]
		} else {
			r.Airline = strings.ToUpper(defaultAirline)
		}
		filled = append(filled, "airline")
	}

	if r.Distance < 0 {
		r.Distance = 0
	}
	r.Rainfall = clampNonNegative(r.Rainfall)
	r.DestRainfall = clampNonNegative(r.DestRainfall)

	t, ok := r.ParseTime()
	if !ok {
		if r.Time != "" {
			filled = append(filled, "time")
		}
		return filled
	}
	if r.Year == 0 {
		r.Year = t.Year()
		filled = append(filled, "year")
	}
	if r.Month == 0 {
		r.Month = int(t.Month())
		filled = append(filled, "month")
	}
	if r.Day == 0 {
		r.Day = t.Day()
		filled = append(filled, "day")
	}
	if r.Week.IsZero() {
		r.Week = WeekdayNum(int(t.Weekday()))
		filled = append(filled, "week")
	}
	if r.DepTime == nil {
		hhmm := float64(t.Hour()*100 + t.Minute())
		r.DepTime = &hhmm
		filled = append(filled, "depTime")
	}
	return filled
}

func clampNonNegative(v *float64) *float64 {
	if v == nil || *v >= 0 {
		return v
	}
	zero := 0.0
	return &zero
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
