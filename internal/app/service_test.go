package service_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	service "github.com/okian/flightrisk/internal/app"
	"github.com/okian/flightrisk/internal/domain/features"
	"github.com/okian/flightrisk/internal/domain/model"
	"github.com/okian/flightrisk/internal/registry"
	"github.com/okian/flightrisk/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// stubDispatcher answers fixed outcomes per kind and can fail or stall a kind.
type stubDispatcher struct {
	fail map[model.Kind]error
	slow map[model.Kind]bool

	mu       sync.Mutex
	years    map[model.Kind]int
	rainfall map[string]float64
	depDelay float64
}

func newStub() *stubDispatcher {
	return &stubDispatcher{
		fail:     map[model.Kind]error{},
		slow:     map[model.Kind]bool{},
		years:    map[model.Kind]int{},
		rainfall: map[string]float64{},
	}
}

func (d *stubDispatcher) ResolveYear(_ model.Kind, year int) (int, error) { return year, nil }

func (d *stubDispatcher) Predict(ctx context.Context, kind model.Kind, year int, vec *features.Vector) (registry.Outcome, error) {
	out := registry.Outcome{Kind: kind, Year: year, Paths: []string{"stub/" + string(kind)}}
	if d.slow[kind] {
		<-ctx.Done()
		return out, ctx.Err()
	}
	if err := d.fail[kind]; err != nil {
		return out, err
	}
	origin, _ := vec.Get("ORIGIN_IATA")

	d.mu.Lock()
	d.years[kind] = year
	if kind == model.KindCancellation {
		d.rainfall[origin.Cat] = vec.Number("PRCP")
	}
	if kind == model.KindArrival {
		d.depDelay = vec.Number("DEP_DELAY")
	}
	d.mu.Unlock()

	switch kind {
	case model.KindCancellation:
		if origin.Cat == "BAD" {
			return out, model.ErrInference
		}
		out.Probability, out.Output = 0.25, "probability"
	case model.KindDeparture:
		out.Probability, out.Minutes, out.HasMinutes, out.Delayed = 0.6, 30, true, true
	case model.KindArrival:
		out.Probability, out.Minutes, out.HasMinutes, out.Delayed = 0.7, 20, true, true
	}
	return out, nil
}

type stubResolver map[string]float64

func (r stubResolver) Resolve(_ context.Context, origin, destination string) float64 {
	if d, ok := r[origin+destination]; ok {
		return d
	}
	return 1.0
}

func flight() *model.FlightRequest {
	return &model.FlightRequest{
		Year: 2024, Month: 5, Day: 15, Week: model.WeekdayNum(3),
		Airline: "DL", Origin: "JFK", Destination: "LAX",
		DepTime: model.Float(800),
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(8),
			service.WithQueueSize(50),
			service.WithMaxBatchSize(10),
			service.WithConfidence(0.9),
			service.WithDefaultAirline("UA"),
		)

		Convey("Then it should be created successfully", func() {
			So(svc, ShouldNotBeNil)
			So(svc.IsReady(), ShouldBeFalse)
		})

		Convey("Then starting without a dispatcher fails", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, service.ErrNotConfigured), ShouldBeTrue)
		})

		Convey("Then it reports every kind without models", func() {
			info := svc.Models()
			So(info, ShouldHaveLength, 3)
			So(info[0].Kind, ShouldEqual, model.KindCancellation)
			So(info[0].Years, ShouldBeEmpty)
		})
	})
}

func TestService_Predict(t *testing.T) {
	Convey("Given a service over a stub dispatcher", t, func() {
		stub := newStub()
		svc := service.New(
			service.WithDispatcher(stub),
			service.WithDistanceResolver(stubResolver{"JFKLAX": 2475, "JFKSEA": math.NaN()}),
			service.WithStageTimeouts(service.StageTimeouts{Departure: 20 * time.Millisecond, Arrival: 20 * time.Millisecond}),
			service.WithClock(func() time.Time { return time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC) }),
		)
		ctx := context.Background()

		Convey("When the context carries a request id", func() {
			res, err := svc.Predict(model.WithRequestID(ctx, "abc-123"), flight())
			So(err, ShouldBeNil)
			So(res.RequestID, ShouldEqual, "abc-123")
		})

		Convey("When every stage succeeds", func() {
			res, err := svc.Predict(ctx, flight())
			So(err, ShouldBeNil)

			Convey("Then the result aggregates all three stages", func() {
				So(res.RequestID, ShouldNotBeEmpty)
				So(res.CancellationProbability, ShouldEqual, 0.25)
				So(res.CancellationOutput, ShouldEqual, "probability")
				So(res.IsPeakHour, ShouldBeTrue)
				So(res.IsRedeye, ShouldBeFalse)
				So(*res.DelayProbability, ShouldEqual, 0.6)
				So(*res.PredictedDelayMinutes, ShouldEqual, 30)
				So(res.DelayConfidenceInterval.Lower, ShouldEqual, 0)
				So(res.DelayConfidenceInterval.Confidence, ShouldEqual, 0.95)
				So(res.ArrivalDelay, ShouldNotBeNil)
				So(res.ArrivalDelay.DelayPredicted, ShouldBeTrue)
				So(res.ArrivalDelay.DelayMinutes, ShouldEqual, 20)
				So(res.DelayError, ShouldBeEmpty)
				So(res.ArrivalDelayError, ShouldBeEmpty)
			})

			Convey("Then a fresh request id is minted", func() {
				again, err := svc.Predict(ctx, flight())
				So(err, ShouldBeNil)
				So(again.RequestID, ShouldNotEqual, res.RequestID)
			})

			Convey("Then the predicted departure minutes feed the arrival stage", func() {
				So(stub.depDelay, ShouldEqual, 30)
			})

			Convey("Then the resolved distance reaches the models", func() {
				So(res.ModelInput["DISTANCE"], ShouldEqual, 2475.0)
				So(res.ModelYears[model.KindCancellation], ShouldEqual, 2024)
				So(res.ModelYears[model.KindArrival], ShouldEqual, 2024)
			})

			Convey("Then the caller's request is left untouched", func() {
				req := flight()
				_, _ = svc.Predict(ctx, req)
				So(req.Distance, ShouldEqual, 0)
			})
		})

		Convey("When the request has no year", func() {
			req := flight()
			req.Year = 0
			res, err := svc.Predict(ctx, req)
			So(err, ShouldBeNil)

			Convey("Then the current year is used", func() {
				So(res.ModelYears[model.KindCancellation], ShouldEqual, 2023)
				So(res.ModelInput["YEAR"], ShouldEqual, 2023.0)
			})
		})

		Convey("When the airport pair is unknown", func() {
			req := flight()
			req.Destination = "xyz"
			res, err := svc.Predict(ctx, req)
			So(err, ShouldBeNil)
			So(res.ModelInput["DISTANCE"], ShouldEqual, 1.0)
		})

		Convey("When the supplied distance is not a finite mileage", func() {
			req := flight()
			req.Distance = math.NaN()
			res, err := svc.Predict(ctx, req)
			So(err, ShouldBeNil)
			So(res.ModelInput["DISTANCE"], ShouldEqual, 2475.0)
		})

		Convey("When the resolver answers a non-finite mileage", func() {
			req := flight()
			req.Destination = "SEA"
			req.Distance = math.Inf(1)
			res, err := svc.Predict(ctx, req)
			So(err, ShouldBeNil)
			So(res.ModelInput["DISTANCE"], ShouldEqual, 1.0)
		})

		Convey("When the cancellation stage fails", func() {
			stub.fail[model.KindCancellation] = model.ErrModelNotFound
			res, err := svc.Predict(ctx, flight())

			Convey("Then the whole request fails with a stage error", func() {
				So(res, ShouldBeNil)
				So(errors.Is(err, model.ErrModelNotFound), ShouldBeTrue)
				var serr *model.StageError
				So(errors.As(err, &serr), ShouldBeTrue)
				So(serr.Stage, ShouldEqual, model.StageCancellation)
				So(serr.Path, ShouldEqual, "stub/cancellation")
			})
		})

		Convey("When the departure stage fails", func() {
			stub.fail[model.KindDeparture] = model.ErrModelLoad
			res, err := svc.Predict(ctx, flight())
			So(err, ShouldBeNil)

			Convey("Then cancellation survives and arrival is skipped", func() {
				So(res.CancellationProbability, ShouldEqual, 0.25)
				So(res.DelayError, ShouldContainSubstring, "model load failed")
				So(res.DelayProbability, ShouldBeNil)
				So(res.ArrivalDelay, ShouldBeNil)
				So(res.ArrivalDelayError, ShouldBeEmpty)
			})
		})

		Convey("When the departure stage stalls", func() {
			stub.slow[model.KindDeparture] = true
			res, err := svc.Predict(ctx, flight())
			So(err, ShouldBeNil)

			Convey("Then it is downgraded to a timeout error", func() {
				So(res.DelayError, ShouldContainSubstring, model.ErrStageTimeout.Error())
				So(res.CancellationProbability, ShouldEqual, 0.25)
			})
		})

		Convey("When the arrival stage fails", func() {
			stub.fail[model.KindArrival] = model.ErrInference
			res, err := svc.Predict(ctx, flight())
			So(err, ShouldBeNil)

			Convey("Then departure results are kept", func() {
				So(*res.PredictedDelayMinutes, ShouldEqual, 30)
				So(res.ArrivalDelay, ShouldBeNil)
				So(res.ArrivalDelayError, ShouldContainSubstring, "arrival stage failed")
			})
		})

		Convey("When the request is nil", func() {
			_, err := svc.Predict(ctx, nil)
			So(errors.Is(err, service.ErrInvalidRequest), ShouldBeTrue)
		})
	})
}

func TestService_PredictBatch(t *testing.T) {
	Convey("Given a started service over a stub dispatcher", t, func() {
		stub := newStub()
		svc := service.New(
			service.WithDispatcher(stub),
			service.WithWorkerCount(2),
			service.WithQueueSize(4),
			service.WithMaxBatchSize(3),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a batch mixes good and failing rows", func() {
			a, b, c := flight(), flight(), flight()
			a.Origin, a.Rainfall = "AAA", model.Float(1)
			b.Origin = "BAD"
			c.Origin, c.Rainfall = "CCC", model.Float(3)
			items, err := svc.PredictBatch(ctx, []model.FlightRequest{*a, *b, *c})
			So(err, ShouldBeNil)

			Convey("Then items come back in input order", func() {
				So(items, ShouldHaveLength, 3)
				for i, item := range items {
					So(item.Index, ShouldEqual, i)
				}
				So(items[0].Result, ShouldNotBeNil)
				So(items[1].Result, ShouldBeNil)
				So(items[1].Error, ShouldContainSubstring, "cancellation stage failed")
				So(items[2].Result, ShouldNotBeNil)
			})

			Convey("Then absent rainfall is imputed with the batch median", func() {
				stub.mu.Lock()
				defer stub.mu.Unlock()
				So(stub.rainfall["BAD"], ShouldEqual, 2.0)
				So(stub.rainfall["AAA"], ShouldEqual, 1.0)
			})
		})

		Convey("When the caller supplied a correlation id", func() {
			items, err := svc.PredictBatch(model.WithRequestID(ctx, "req-7"), []model.FlightRequest{*flight(), *flight()})
			So(err, ShouldBeNil)
			So(items[0].Result.RequestID, ShouldEqual, "req-7-0")
			So(items[1].Result.RequestID, ShouldEqual, "req-7-1")
		})

		Convey("When the batch is larger than allowed", func() {
			reqs := make([]model.FlightRequest, 4)
			_, err := svc.PredictBatch(ctx, reqs)
			So(errors.Is(err, service.ErrBatchTooLarge), ShouldBeTrue)
		})

		Convey("When the batch is empty", func() {
			_, err := svc.PredictBatch(ctx, nil)
			So(errors.Is(err, service.ErrEmptyBatch), ShouldBeTrue)
		})
	})

	Convey("Given a started service with a tiny queue", t, func() {
		stub := newStub()
		svc := service.New(
			service.WithDispatcher(stub),
			service.WithWorkerCount(1),
			service.WithQueueSize(1),
		)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When the batch does not fit", func() {
			_, err := svc.PredictBatch(ctx, []model.FlightRequest{*flight(), *flight()})

			Convey("Then it is rejected with backpressure", func() {
				So(errors.Is(err, service.ErrBackpressure), ShouldBeTrue)
			})
		})
	})

	Convey("Given a service that was never started", t, func() {
		svc := service.New(service.WithDispatcher(newStub()))
		_, err := svc.PredictBatch(context.Background(), []model.FlightRequest{*flight()})
		So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
	})
}
