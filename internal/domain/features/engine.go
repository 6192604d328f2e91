package features

import (
	"math"

	"github.com/okian/flightrisk/internal/domain/distance"
	"github.com/okian/flightrisk/internal/domain/model"
)

// Fixed derivation constants.
const (
	cruiseSpeedMPH      = 500.0
	maxDistanceMiles    = 3000.0
	workweekMidpoint    = 2.0
	defaultArrHour      = 12
	defaultArrBlock     = "Mid-Day (9-12)"
	defaultArrTimeOfDay = "Afternoon (12-18)"
	defaultDistanceCat  = "Medium (600-1000 mi)"
	defaultDayName      = "Monday"
)

// Engine derives the three pipeline vectors. It is stateless apart from
// the read-only airport sets and safe for concurrent use.
type Engine struct {
	airports Airports
}

// NewEngine creates an engine using the given airport sets.
func NewEngine(airports Airports) *Engine {
	return &Engine{airports: airports}
}

// SchemaFor returns the schema of a model kind.
func SchemaFor(kind model.Kind) (Schema, bool) {
	switch kind {
	case model.KindCancellation:
		return CancellationSchema, true
	case model.KindDeparture:
		return DepartureSchema, true
	case model.KindArrival:
		return ArrivalSchema, true
	default:
		return Schema{}, false
	}
}

func resolvedDistance(req *model.FlightRequest) float64 {
	if distance.Valid(req.Distance) {
		return req.Distance
	}
	return distance.Unknown
}

func setOptionalFloat(v *Vector, name string, p *float64) {
	if p == nil {
		v.Default(name, Num(0))
		return
	}
	v.Set(name, Num(*p))
}

func setOptionalInt(v *Vector, name string, p *int) {
	if p == nil {
		v.Default(name, Num(0))
		return
	}
	v.Set(name, Num(float64(*p)))
}

func setCategory(v *Vector, name, s string) {
	if s == "" {
		return
	}
	v.Set(name, Cat(s))
}

// Cancellation derives the cancellation vector. WEEK follows the
// 0=Sunday convention; names are mapped into it.
func (e *Engine) Cancellation(req *model.FlightRequest) *Vector {
	v := NewVector()

	if req.Year > 0 {
		v.Set("YEAR", Num(float64(req.Year)))
	}

	weekend := false
	switch {
	case req.Week.Num != nil:
		v.Set("WEEK", Num(float64(*req.Week.Num)))
		weekend = *req.Week.Num == 0 || *req.Week.Num == 6
	default:
		if idx, ok := req.Week.SundayIndex(); ok {
			v.Set("WEEK", Num(float64(idx)))
			weekend = idx == 0 || idx == 6
		} else {
			// Same Monday fallback as the departure pipeline.
			v.Default("WEEK", Num(1))
		}
	}
	v.Set("IS_WEEKEND", Flag(weekend))

	setCategory(v, "MKT_AIRLINE", req.Airline)
	setCategory(v, "ORIGIN_IATA", req.Origin)
	setCategory(v, "DEST_IATA", req.Destination)

	redeye := false
	morning, evening := false, false
	if req.DepTime != nil {
		t := *req.DepTime
		v.Set("DEP_TIME", Num(t))
		redeye = isRedeye(t)
		morning = t >= 700 && t < 1000
		if !morning {
			evening = t >= 1600 && t < 1900
		}
	}
	if req.ArrTime != nil && isRedeye(*req.ArrTime) {
		redeye = true
	}
	v.Set("IS_REDEYE", Flag(redeye))
	v.Set("IS_MORNING_PEAK", Flag(morning))
	v.Set("IS_EVENING_PEAK", Flag(evening))

	setOptionalInt(v, "EXTREME_WEATHER", req.ExtremeWeather)
	setOptionalInt(v, "DEST_EXTREME_WEATHER", req.DestExtremeWeather)
	v.Set("DISTANCE", Num(resolvedDistance(req)))
	setOptionalFloat(v, "PRCP", req.Rainfall)
	setOptionalFloat(v, "DEST_PRCP", req.DestRainfall)

	CancellationSchema.Complete(v)
	return v
}

// Departure derives the departure-delay vector. DAY_OF_WEEK is computed
// from the calendar date under the Monday=1..Saturday=6, Sunday=0
// convention; an unbuildable date falls back to Monday.
func (e *Engine) Departure(req *model.FlightRequest) *Vector {
	v := NewVector()

	setCategory(v, "ORIGIN_IATA", req.Origin)
	setCategory(v, "DEST_IATA", req.Destination)
	setCategory(v, "MKT_AIRLINE", req.Airline)
	if req.Year > 0 {
		v.Set("YEAR", Num(float64(req.Year)))
	}
	if req.Month > 0 {
		v.Set("MONTH", Num(float64(req.Month)))
	}
	if req.Day > 0 {
		v.Set("DAY", Num(float64(req.Day)))
	}

	redeye := false
	morning, evening := false, false
	if req.DepTime != nil {
		t := *req.DepTime
		v.Set("SCH_DEP_TIME", Num(t))
		redeye = isRedeye(t)

		h, m := splitHHMM(t)
		mins := h*60 + m
		v.Set("DEP_HOUR", Num(h))
		v.Set("DEP_MINUTE", Num(m))
		v.Set("TIME_MINS", Num(mins))
		s, c := cyc(h, 24)
		v.Set("HOUR_SIN", Num(s))
		v.Set("HOUR_COS", Num(c))
		v.Set("NORMALIZED_TIME", Num(mins/(24*60)))
		s, c = cyc(h, 12)
		v.Set("HALFDAY_SIN", Num(s))
		v.Set("HALFDAY_COS", Num(c))
		s, c = cyc(h, 6)
		v.Set("QUARTER_DAY_SIN", Num(s))
		v.Set("QUARTER_DAY_COS", Num(c))

		morning = h >= 7 && h <= 9
		evening = h >= 16 && h <= 19
		if block, ok := timeBlock(int(h)); ok {
			v.Set("TIME_BLOCK", Cat(block))
		}
	}
	if req.ArrTime != nil && isRedeye(*req.ArrTime) {
		redeye = true
	}
	v.Set("IS_REDEYE", Flag(redeye))
	v.Set("IS_MORNING_PEAK", Flag(morning))
	v.Set("IS_EVENING_PEAK", Flag(evening))

	e.departureDay(v, req)

	// Airport membership and regions.
	dist := resolvedDistance(req)
	hubO, hubD := e.airports.hubs.has(req.Origin), e.airports.hubs.has(req.Destination)
	westO, eastO := e.airports.west.has(req.Origin), e.airports.east.has(req.Origin)
	westD, eastD := e.airports.west.has(req.Destination), e.airports.east.has(req.Destination)
	v.Set("IS_MAJOR_HUB_ORIGIN", Flag(hubO))
	v.Set("IS_MAJOR_HUB_DEST", Flag(hubD))
	v.Set("IS_HUB_TO_HUB", Flag(hubO && hubD))
	v.Set("IS_WEST_COAST_ORIGIN", Flag(westO))
	v.Set("IS_EAST_COAST_ORIGIN", Flag(eastO))
	v.Set("IS_CENTRAL_ORIGIN", Flag(e.airports.central.has(req.Origin)))
	v.Set("IS_WEST_COAST_DEST", Flag(westD))
	v.Set("IS_EAST_COAST_DEST", Flag(eastD))
	v.Set("IS_CENTRAL_DEST", Flag(e.airports.central.has(req.Destination)))
	v.Set("IS_TRANSCON", Flag((westO && eastD) || (eastO && westD)))

	v.Set("DISTANCE", Num(dist))
	v.Set("DISTANCE_CAT", Cat(departureDistanceCategory(dist)))
	v.Set("NORMALIZED_DISTANCE", Num(dist/maxDistanceMiles))
	v.Set("LOG_DISTANCE", Num(math.Log1p(dist)))

	// Weather.
	setOptionalFloat(v, "PRCP", req.Rainfall)
	setOptionalInt(v, "EXTREME_WEATHER", req.ExtremeWeather)
	severity := rainSeverity(v.Number("PRCP"))
	score := severity + 3*v.Number("EXTREME_WEATHER")
	v.Set("RAIN_SEVERITY", Num(severity))
	v.Set("WEATHER_SCORE", Num(score))
	v.Set("HUB_WEATHER_IMPACT", Num(boolNum(hubO)*score))
	v.Set("PEAK_WEATHER_IMPACT", Num(boolNum(morning || evening)*score))

	DepartureSchema.Complete(v)
	return v
}

func (e *Engine) departureDay(v *Vector, req *model.FlightRequest) {
	d, err := calendarDate(req.Year, req.Month, req.Day)
	if err != nil {
		// Fixed Monday fallback keeps every dependent feature consistent.
		s, c := cyc(1, 7)
		v.Default("DAY_OF_WEEK", Num(1))
		v.Default("DAY_NAME", Cat(defaultDayName))
		v.Default("IS_WEEKEND", Num(0))
		v.Default("DAY_SIN", Num(s))
		v.Default("DAY_COS", Num(c))
		v.Default("WEEKDAY_SIN", Num(0))
		v.Default("WEEKDAY_COS", Num(1))
		v.Default("WORKWEEK_DAY", Num(0))
		v.Default("WORKWEEK_SIN", Num(0))
		v.Default("WORKWEEK_COS", Num(1))
		return
	}

	dow := int(d.Weekday()) // Sunday=0, Monday=1 ... Saturday=6
	weekend := dow == 0 || dow == 6
	v.Set("DAY_OF_WEEK", Num(float64(dow)))
	v.Set("DAY_NAME", Cat(dayNames[dow]))
	v.Set("IS_WEEKEND", Flag(weekend))
	s, c := cyc(float64(dow), 7)
	v.Set("DAY_SIN", Num(s))
	v.Set("DAY_COS", Num(c))
	w := boolNum(weekend)
	v.Set("WEEKDAY_SIN", Num(math.Sin(math.Pi*w)))
	v.Set("WEEKDAY_COS", Num(math.Cos(math.Pi*w)))

	work := workweekMidpoint
	if !weekend {
		work = float64(dow - 1)
	}
	v.Set("WORKWEEK_DAY", Num(work))
	s, c = cyc(work, 5)
	v.Set("WORKWEEK_SIN", Num(s))
	v.Set("WORKWEEK_COS", Num(c))
}

// Arrival derives the arrival-delay vector. depDelay is the departure
// stage's predicted minutes.
func (e *Engine) Arrival(req *model.FlightRequest, depDelay float64) *Vector {
	v := NewVector()
	dist := resolvedDistance(req)

	late := false
	arrHour := defaultArrHour
	block := defaultArrBlock
	timeOfDay := defaultArrTimeOfDay
	morning, evening := false, false

	if req.DepTime != nil {
		h, m := splitHHMM(*req.DepTime)
		flightHours := dist / cruiseSpeedMPH
		est := math.Mod(h+m/60+flightHours, 24)
		if est < 0 {
			est += 24
		}
		v.Set("EST_FLIGHT_HOURS", Num(flightHours))
		v.Set("EST_ARR_DECIMAL_HOUR", Num(est))

		late = est >= 22 || est < 6
		timeOfDay = arrivalTimeOfDay(est)
		arrHour = int(est)
		if b, ok := timeBlock(arrHour); ok {
			block = b
		}
		morning = arrHour >= 8 && arrHour <= 10
		evening = arrHour >= 17 && arrHour <= 19
	} else {
		v.defaulted = append(v.defaulted, "ARR_HOUR", "ARR_TIME_BLOCK", "ARR_TIME_OF_DAY")
	}
	v.Set("IS_LATE_NIGHT_ARR", Flag(late))
	v.Set("ARR_TIME_OF_DAY", Cat(timeOfDay))
	v.Set("ARR_HOUR", Num(float64(arrHour)))
	v.Set("ARR_TIME_BLOCK", Cat(block))
	v.Set("IS_MORNING_RUSH_ARR", Flag(morning))
	v.Set("IS_EVENING_RUSH_ARR", Flag(evening))

	dayName, weekend := defaultDayName, false
	if idx, ok := req.Week.SundayIndex(); ok {
		dayName = dayNames[idx]
		weekend = idx == 0 || idx == 6
	} else {
		v.defaulted = append(v.defaulted, "DAY_NAME")
	}
	v.Set("DAY_NAME", Cat(dayName))
	v.Set("IS_WEEKEND", Flag(weekend))

	setCategory(v, "MKT_AIRLINE", req.Airline)
	setCategory(v, "ORIGIN_IATA", req.Origin)
	setCategory(v, "DEST_IATA", req.Destination)
	v.Set("FLIGHT_DISTANCE_CAT", Cat(arrivalDistanceCategory(dist)))

	setOptionalInt(v, "EXTREME_WEATHER", req.ExtremeWeather)
	setOptionalInt(v, "DEST_EXTREME_WEATHER", req.DestExtremeWeather)
	v.Set("DISTANCE", Num(dist))
	setOptionalFloat(v, "PRCP", req.Rainfall)
	setOptionalFloat(v, "DEST_PRCP", req.DestRainfall)
	v.Set("DEP_DELAY", Num(depDelay))

	ArrivalSchema.Complete(v)
	return v
}

// departureDistanceCategory bins right-inclusive: (0,500], (500,1000], ...
func departureDistanceCategory(d float64) string {
	switch {
	case d <= 500:
		return "Very Short"
	case d <= 1000:
		return "Short"
	case d <= 1500:
		return "Medium"
	case d <= 2000:
		return "Long"
	default:
		return "Very Long"
	}
}

func arrivalDistanceCategory(d float64) string {
	switch {
	case d <= 0:
		return defaultDistanceCat
	case d <= 300:
		return "Very Short (<300 mi)"
	case d <= 600:
		return "Short (300-600 mi)"
	case d <= 1000:
		return "Medium (600-1000 mi)"
	case d <= 1500:
		return "Long (1000-1500 mi)"
	default:
		return "Very Long (>1500 mi)"
	}
}

// rainSeverity bins precipitation into 0..4.
func rainSeverity(prcp float64) float64 {
	switch {
	case prcp <= 0:
		return 0
	case prcp <= 0.1:
		return 1
	case prcp <= 0.5:
		return 2
	case prcp <= 1.0:
		return 3
	default:
		return 4
	}
}

// arrivalTimeOfDay bins the estimated arrival hour; the first bin includes 0.
func arrivalTimeOfDay(h float64) string {
	switch {
	case h <= 6:
		return "Early Morning (0-6)"
	case h <= 12:
		return "Morning (6-12)"
	case h <= 18:
		return "Afternoon (12-18)"
	case h <= 22:
		return "Evening (18-22)"
	default:
		return "Night (22-24)"
	}
}
