package features

// FieldType distinguishes numeric from categorical features.
type FieldType int

// Field types.
const (
	Numeric FieldType = iota
	Categorical
)

// UnknownCategory replaces a categorical feature that could not be derived.
const UnknownCategory = "unknown"

// Field is one entry of a schema.
type Field struct {
	Name string
	Type FieldType
}

// Schema is the ordered, typed feature set a pipeline must produce.
type Schema struct {
	Name   string
	Fields []Field
}

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Complete fills every absent field with its policy default: "unknown"
// for categories and 0 for numbers.
func (s Schema) Complete(v *Vector) {
	for _, f := range s.Fields {
		if v.Has(f.Name) {
			continue
		}
		if f.Type == Categorical {
			v.Default(f.Name, Cat(UnknownCategory))
			continue
		}
		v.Default(f.Name, Num(0))
	}
}

func num(name string) Field { return Field{Name: name, Type: Numeric} }
func cat(name string) Field { return Field{Name: name, Type: Categorical} }

// CancellationSchema uses WEEK under the 0=Sunday convention.
var CancellationSchema = Schema{
	Name: "cancellation",
	Fields: []Field{
		num("YEAR"), num("WEEK"), cat("MKT_AIRLINE"), cat("ORIGIN_IATA"), cat("DEST_IATA"),
		num("IS_REDEYE"), num("IS_WEEKEND"), num("IS_MORNING_PEAK"), num("IS_EVENING_PEAK"),
		num("EXTREME_WEATHER"), num("DEST_EXTREME_WEATHER"), num("DISTANCE"), num("PRCP"), num("DEST_PRCP"),
	},
}

// DepartureSchema uses DAY_OF_WEEK under the Monday=1..Saturday=6, Sunday=0 convention.
var DepartureSchema = Schema{
	Name: "departure",
	Fields: []Field{
		num("SCH_DEP_TIME"), cat("ORIGIN_IATA"), cat("DEST_IATA"), num("DISTANCE"), num("PRCP"),
		num("MONTH"), num("DAY"), num("YEAR"), cat("MKT_AIRLINE"), num("EXTREME_WEATHER"),
		num("IS_REDEYE"),
		num("DEP_HOUR"), num("DEP_MINUTE"), num("TIME_MINS"), num("HOUR_SIN"), num("HOUR_COS"),
		num("NORMALIZED_TIME"), num("HALFDAY_SIN"), num("HALFDAY_COS"), num("QUARTER_DAY_SIN"),
		num("QUARTER_DAY_COS"), num("IS_MORNING_PEAK"), num("IS_EVENING_PEAK"), cat("TIME_BLOCK"),
		num("DAY_OF_WEEK"), cat("DAY_NAME"), num("IS_WEEKEND"), num("DAY_SIN"), num("DAY_COS"),
		num("WEEKDAY_SIN"), num("WEEKDAY_COS"), num("WORKWEEK_DAY"), num("WORKWEEK_SIN"), num("WORKWEEK_COS"),
		num("IS_MAJOR_HUB_ORIGIN"), num("IS_MAJOR_HUB_DEST"), num("IS_HUB_TO_HUB"),
		num("IS_WEST_COAST_ORIGIN"), num("IS_EAST_COAST_ORIGIN"), num("IS_CENTRAL_ORIGIN"),
		num("IS_WEST_COAST_DEST"), num("IS_EAST_COAST_DEST"), num("IS_CENTRAL_DEST"), num("IS_TRANSCON"),
		cat("DISTANCE_CAT"), num("NORMALIZED_DISTANCE"), num("LOG_DISTANCE"),
		num("RAIN_SEVERITY"), num("WEATHER_SCORE"), num("HUB_WEATHER_IMPACT"), num("PEAK_WEATHER_IMPACT"),
	},
}

// ArrivalSchema accepts WEEK as a three-letter name or 0=Sunday number.
var ArrivalSchema = Schema{
	Name: "arrival",
	Fields: []Field{
		cat("DAY_NAME"), cat("ARR_TIME_BLOCK"), cat("MKT_AIRLINE"), cat("ORIGIN_IATA"), cat("DEST_IATA"),
		cat("FLIGHT_DISTANCE_CAT"), cat("IS_LATE_NIGHT_ARR"), cat("IS_WEEKEND"), cat("IS_MORNING_RUSH_ARR"),
		cat("IS_EVENING_RUSH_ARR"), cat("EXTREME_WEATHER"), cat("DEST_EXTREME_WEATHER"),
		num("DISTANCE"), num("PRCP"), num("DEST_PRCP"), num("DEP_DELAY"),
	},
}
