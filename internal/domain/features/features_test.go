package features_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/flightrisk/internal/config"
	"github.com/okian/flightrisk/internal/domain/features"
	"github.com/okian/flightrisk/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func newEngine() *features.Engine {
	a := config.New().Airports
	return features.NewEngine(features.NewAirports(a.Hubs, a.WestCoast, a.EastCoast, a.Central))
}

func baseRequest() *model.FlightRequest {
	return &model.FlightRequest{
		Year:        2024,
		Month:       5,
		Day:         15,
		Week:        model.WeekdayNum(3),
		Airline:     "DL",
		Origin:      "JFK",
		Destination: "LAX",
		Distance:    2475,
		DepTime:     model.Float(1345),
		Rainfall:    model.Float(0.1),
	}
}

func cat(v *features.Vector, name string) string {
	val, _ := v.Get(name)
	return val.Cat
}

func TestCancellationPipeline(t *testing.T) {
	e := newEngine()

	Convey("Given the cancellation pipeline", t, func() {
		Convey("When the departure time is in the early morning", func() {
			req := baseRequest()
			req.DepTime = model.Float(530)
			v := e.Cancellation(req)

			So(v.Number("IS_REDEYE"), ShouldEqual, 1)
			So(v.Number("IS_MORNING_PEAK"), ShouldEqual, 0)
		})

		Convey("When the departure time is in the morning peak", func() {
			req := baseRequest()
			req.DepTime = model.Float(830)
			v := e.Cancellation(req)

			So(v.Number("IS_MORNING_PEAK"), ShouldEqual, 1)
			So(v.Number("IS_EVENING_PEAK"), ShouldEqual, 0)
			So(v.Number("IS_REDEYE"), ShouldEqual, 0)
		})

		Convey("When the departure time is in the evening peak", func() {
			req := baseRequest()
			req.DepTime = model.Float(1730)
			v := e.Cancellation(req)

			So(v.Number("IS_EVENING_PEAK"), ShouldEqual, 1)
			So(v.Number("IS_MORNING_PEAK"), ShouldEqual, 0)
		})

		Convey("When only the arrival time is a redeye", func() {
			req := baseRequest()
			req.ArrTime = model.Float(545)
			So(e.Cancellation(req).Number("IS_REDEYE"), ShouldEqual, 1)
		})

		Convey("When the weekday is given by name", func() {
			req := baseRequest()
			req.Week = model.WeekdayName("Sat")
			v := e.Cancellation(req)

			So(v.Number("WEEK"), ShouldEqual, 6)
			So(v.Number("IS_WEEKEND"), ShouldEqual, 1)
		})

		Convey("When the weekday is absent or unrecognised", func() {
			for _, week := range []model.Weekday{{}, model.WeekdayName("Someday")} {
				req := baseRequest()
				req.Week = week
				v := e.Cancellation(req)

				So(v.Number("WEEK"), ShouldEqual, 1)
				So(v.Number("IS_WEEKEND"), ShouldEqual, 0)
				So(v.Defaulted(), ShouldContain, "WEEK")
			}
		})

		Convey("When the distance is not a finite mileage", func() {
			for _, d := range []float64{math.NaN(), math.Inf(1)} {
				req := baseRequest()
				req.Distance = d
				So(e.Cancellation(req).Number("DISTANCE"), ShouldEqual, 1.0)
			}
		})

		Convey("When weather inputs are absent", func() {
			v := e.Cancellation(baseRequest())

			So(v.Number("EXTREME_WEATHER"), ShouldEqual, 0)
			So(v.Number("DEST_PRCP"), ShouldEqual, 0)
			So(v.Defaulted(), ShouldContain, "DEST_PRCP")
			So(v.Number("PRCP"), ShouldEqual, 0.1)
		})
	})
}

func TestRedeyeProperty(t *testing.T) {
	e := newEngine()

	Convey("Given every HHMM departure time", t, func() {
		for h := 0; h < 24; h++ {
			for _, m := range []int{0, 15, 59} {
				tm := float64(h*100 + m)
				req := baseRequest()
				req.DepTime = &tm
				want := 0.0
				if tm < 600 {
					want = 1
				}
				So(e.Cancellation(req).Number("IS_REDEYE"), ShouldEqual, want)
				So(e.Departure(req).Number("IS_REDEYE"), ShouldEqual, want)
			}
		}
	})
}

func TestDeparturePipeline(t *testing.T) {
	e := newEngine()

	Convey("Given the departure pipeline", t, func() {
		Convey("When deriving a Wednesday afternoon transcontinental flight", func() {
			v := e.Departure(baseRequest())

			Convey("Then time features decompose the HHMM value", func() {
				So(v.Number("DEP_HOUR"), ShouldEqual, 13)
				So(v.Number("DEP_MINUTE"), ShouldEqual, 45)
				So(v.Number("TIME_MINS"), ShouldEqual, 825)
				So(v.Number("HOUR_SIN"), ShouldAlmostEqual, math.Sin(2*math.Pi*13/24), 1e-12)
				So(cat(v, "TIME_BLOCK"), ShouldEqual, "Afternoon (12-15)")
			})

			Convey("Then calendar features use the Monday=1 convention", func() {
				So(v.Number("DAY_OF_WEEK"), ShouldEqual, 3)
				So(cat(v, "DAY_NAME"), ShouldEqual, "Wednesday")
				So(v.Number("IS_WEEKEND"), ShouldEqual, 0)
				So(v.Number("WORKWEEK_DAY"), ShouldEqual, 2)
				So(v.Number("WEEKDAY_COS"), ShouldEqual, 1)
			})

			Convey("Then airport and distance features are set", func() {
				So(v.Number("IS_EAST_COAST_ORIGIN"), ShouldEqual, 1)
				So(v.Number("IS_WEST_COAST_DEST"), ShouldEqual, 1)
				So(v.Number("IS_TRANSCON"), ShouldEqual, 1)
				So(v.Number("IS_MAJOR_HUB_DEST"), ShouldEqual, 1)
				So(v.Number("IS_HUB_TO_HUB"), ShouldEqual, 0)
				So(cat(v, "DISTANCE_CAT"), ShouldEqual, "Very Long")
				So(v.Number("LOG_DISTANCE"), ShouldAlmostEqual, math.Log1p(2475), 1e-12)
			})

			Convey("Then weather severity and score follow the bins", func() {
				So(v.Number("RAIN_SEVERITY"), ShouldEqual, 1)
				So(v.Number("WEATHER_SCORE"), ShouldEqual, 1)
				So(v.Number("PEAK_WEATHER_IMPACT"), ShouldEqual, 0)
			})
		})

		Convey("When the date falls on a Saturday", func() {
			req := baseRequest()
			req.Day = 18
			v := e.Departure(req)

			So(v.Number("DAY_OF_WEEK"), ShouldEqual, 6)
			So(v.Number("IS_WEEKEND"), ShouldEqual, 1)
			So(v.Number("WORKWEEK_DAY"), ShouldEqual, 2)
		})

		Convey("When the date cannot be constructed", func() {
			req := baseRequest()
			req.Month, req.Day = 2, 30
			v := e.Departure(req)

			Convey("Then the Monday fallback is applied consistently", func() {
				So(v.Number("DAY_OF_WEEK"), ShouldEqual, 1)
				So(cat(v, "DAY_NAME"), ShouldEqual, "Monday")
				So(v.Number("IS_WEEKEND"), ShouldEqual, 0)
				So(v.Number("DAY_SIN"), ShouldAlmostEqual, math.Sin(2*math.Pi/7), 1e-12)
				So(v.Number("WEEKDAY_SIN"), ShouldEqual, 0)
				So(v.Number("WORKWEEK_COS"), ShouldEqual, 1)
				So(v.Defaulted(), ShouldContain, "DAY_OF_WEEK")
			})
		})

		Convey("When rainfall and extreme weather stack", func() {
			req := baseRequest()
			req.Rainfall = model.Float(1.5)
			req.ExtremeWeather = model.Int(1)
			req.DepTime = model.Float(800)
			v := e.Departure(req)

			So(v.Number("RAIN_SEVERITY"), ShouldEqual, 4)
			So(v.Number("WEATHER_SCORE"), ShouldEqual, 7)
			So(v.Number("PEAK_WEATHER_IMPACT"), ShouldEqual, 7)
		})
	})
}

func TestArrivalPipeline(t *testing.T) {
	e := newEngine()

	Convey("Given the arrival pipeline", t, func() {
		Convey("When a 2300 departure flies 500 miles", func() {
			req := baseRequest()
			req.DepTime = model.Float(2300)
			req.Distance = 500
			v := e.Arrival(req, 12)

			Convey("Then the estimated arrival is around midnight and late night", func() {
				So(v.Number("EST_FLIGHT_HOURS"), ShouldEqual, 1)
				So(v.Number("EST_ARR_DECIMAL_HOUR"), ShouldAlmostEqual, 0, 1e-9)
				So(v.Number("IS_LATE_NIGHT_ARR"), ShouldEqual, 1)
				So(cat(v, "ARR_TIME_BLOCK"), ShouldEqual, "Late Night (0-3)")
				So(cat(v, "FLIGHT_DISTANCE_CAT"), ShouldEqual, "Short (300-600 mi)")
				So(v.Number("DEP_DELAY"), ShouldEqual, 12)
			})
		})

		Convey("When the arrival lands in the evening rush", func() {
			req := baseRequest()
			req.DepTime = model.Float(1500)
			req.Distance = 1000
			v := e.Arrival(req, 0)

			So(v.Number("ARR_HOUR"), ShouldEqual, 17)
			So(v.Number("IS_EVENING_RUSH_ARR"), ShouldEqual, 1)
			So(v.Number("IS_MORNING_RUSH_ARR"), ShouldEqual, 0)
		})

		Convey("When the weekday is a short name", func() {
			req := baseRequest()
			req.Week = model.WeekdayName("Sun")
			v := e.Arrival(req, 0)

			So(cat(v, "DAY_NAME"), ShouldEqual, "Sunday")
			So(v.Number("IS_WEEKEND"), ShouldEqual, 1)
		})

		Convey("When the departure time is missing", func() {
			req := baseRequest()
			req.DepTime = nil
			v := e.Arrival(req, 0)

			So(v.Number("ARR_HOUR"), ShouldEqual, 12)
			So(cat(v, "ARR_TIME_BLOCK"), ShouldEqual, "Mid-Day (9-12)")
			So(cat(v, "ARR_TIME_OF_DAY"), ShouldEqual, "Afternoon (12-18)")
			So(v.Number("IS_LATE_NIGHT_ARR"), ShouldEqual, 0)
		})
	})
}

func TestEmptyRequestCompleteness(t *testing.T) {
	e := newEngine()

	Convey("Given a request missing every optional field", t, func() {
		req := &model.FlightRequest{}

		Convey("Then every pipeline produces a schema-conformant vector", func() {
			for _, tc := range []struct {
				schema features.Schema
				vec    *features.Vector
			}{
				{features.CancellationSchema, e.Cancellation(req)},
				{features.DepartureSchema, e.Departure(req)},
				{features.ArrivalSchema, e.Arrival(req, 0)},
			} {
				vals, err := tc.vec.Project(tc.schema.Names())
				So(err, ShouldBeNil)
				So(vals, ShouldHaveLength, len(tc.schema.Fields))
				So(tc.vec.Number("DISTANCE"), ShouldEqual, 1.0)
			}
		})

		Convey("Then absent categories become unknown", func() {
			So(cat(e.Cancellation(req), "MKT_AIRLINE"), ShouldEqual, features.UnknownCategory)
			So(cat(e.Departure(req), "TIME_BLOCK"), ShouldEqual, features.UnknownCategory)
		})
	})
}

func TestVectorProject(t *testing.T) {
	Convey("Given a vector missing schema members", t, func() {
		v := features.NewVector()
		v.Set("A", features.Num(1))

		_, err := v.Project([]string{"A", "B", "C"})

		Convey("Then all absent names are reported", func() {
			So(errors.Is(err, model.ErrMissingFeatures), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "B, C")
		})
	})
}

func TestImputeBatch(t *testing.T) {
	Convey("Given a batch with partially supplied rainfall", t, func() {
		reqs := []model.FlightRequest{
			{Rainfall: model.Float(0.2)},
			{Rainfall: model.Float(0.6)},
			{Rainfall: model.Float(1.0)},
			{},
		}

		imp := features.ImputeBatch(reqs)

		Convey("Then the median fills the gap", func() {
			So(*imp.Rainfall, ShouldEqual, 0.6)
			So(*reqs[3].Rainfall, ShouldEqual, 0.6)
			So(imp.DestRainfall, ShouldBeNil)
			So(reqs[3].DestRainfall, ShouldBeNil)
			So(imp.Rows, ShouldEqual, 1)
		})
	})

	Convey("Given a single request", t, func() {
		reqs := []model.FlightRequest{{}}
		imp := features.ImputeBatch(reqs)

		So(imp.Rainfall, ShouldBeNil)
		So(reqs[0].Rainfall, ShouldBeNil)
	})
}
