package loadgen

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"

	"github.com/okian/flightrisk/internal/domain/model"
	"github.com/okian/flightrisk/pkg/logger"
)

const randomFloatDivisor = 1000000

var (
	airports = []string{
		"ATL", "DFW", "DEN", "ORD", "LAX", "JFK", "CLT", "LAS", "MCO", "MIA",
		"PHX", "SEA", "SFO", "EWR", "IAH", "BOS", "FLL", "MSP", "LGA", "DTW",
		"PHL", "SLC", "BWI", "DCA", "SAN", "IAD", "TPA", "BNA", "AUS", "HNL",
	}
	airlines = []string{"AA", "DL", "UA", "WN", "B6", "AS", "NK", "F9"}
	dayNames = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
)

// Probabilities shaping the generated traffic.
const (
	extremeWeatherRate = 0.08
	missingRainRate    = 0.2
	namedWeekdayRate   = 0.5
	maxRainfall        = 3.0
	minBlockMinutes    = 45
	blockRangeMinutes  = 360
)

// getRandomInt returns a uniform integer in [0, n) using crypto/rand.
func getRandomInt(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	return float64(getRandomInt(randomFloatDivisor)) / float64(randomFloatDivisor)
}

func pick(xs []string) string { return xs[getRandomInt(len(xs))] }

// Generate creates n random flight requests.
func Generate(ctx context.Context, n, year int) ([]model.FlightRequest, error) {
	logger.Get().Debug(ctx, "generating flights", logger.Int("count", n))

	flights := make([]model.FlightRequest, n)
	for i := range flights {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during flight generation: %w", err)
		}
		flights[i] = generateFlight(year)
	}
	return flights, nil
}

func generateFlight(year int) model.FlightRequest {
	origin := pick(airports)
	dest := pick(airports)
	for dest == origin {
		dest = pick(airports)
	}
	airline := pick(airlines)

	depMinutes := getRandomInt(24 * 60)
	arrMinutes := (depMinutes + minBlockMinutes + getRandomInt(blockRangeMinutes)) % (24 * 60)
	dep := float64(depMinutes/60*100 + depMinutes%60)
	arr := float64(arrMinutes/60*100 + arrMinutes%60)

	day := getRandomInt(len(dayNames))
	week := model.WeekdayNum(day)
	if getRandomFloat() < namedWeekdayRate {
		week = model.WeekdayName(dayNames[day])
	}

	f := model.FlightRequest{
		Year:               year,
		Week:               week,
		Month:              1 + getRandomInt(12),
		Day:                1 + getRandomInt(28),
		Airline:            airline,
		FlightNumber:       airline + strconv.Itoa(1+getRandomInt(9999)),
		Origin:             origin,
		Destination:        dest,
		DepTime:            &dep,
		ArrTime:            &arr,
		ExtremeWeather:     flag(extremeWeatherRate),
		DestExtremeWeather: flag(extremeWeatherRate),
		DestRainfall:       rain(),
	}
	if getRandomFloat() >= missingRainRate {
		f.Rainfall = rain()
	}
	return f
}

func flag(rate float64) *int {
	v := 0
	if getRandomFloat() < rate {
		v = 1
	}
	return &v
}

func rain() *float64 {
	v := getRandomFloat() * maxRainfall
	return &v
}
