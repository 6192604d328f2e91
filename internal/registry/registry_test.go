package registry_test

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/flightrisk/internal/adapters/artifacts"
	"github.com/okian/flightrisk/internal/config"
	"github.com/okian/flightrisk/internal/domain/features"
	"github.com/okian/flightrisk/internal/domain/model"
	"github.com/okian/flightrisk/internal/registry"
	"github.com/okian/flightrisk/internal/registry/registrytest"
	"github.com/okian/flightrisk/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() { _ = logger.Init() }

// countingSource counts opens per artifact name.
type countingSource struct {
	artifacts.Source
	mu    sync.Mutex
	opens map[string]int
}

func (s *countingSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	s.mu.Lock()
	s.opens[name]++
	s.mu.Unlock()
	return s.Source.Open(ctx, name)
}

func (s *countingSource) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens[name]
}

func newEngine() *features.Engine {
	a := config.New().Airports
	return features.NewEngine(features.NewAirports(a.Hubs, a.WestCoast, a.EastCoast, a.Central))
}

func request() *model.FlightRequest {
	return &model.FlightRequest{
		Year: 2024, Month: 5, Day: 15, Week: model.WeekdayNum(3),
		Airline: "DL", Origin: "JFK", Destination: "LAX", Distance: 2475,
		DepTime: model.Float(1345),
	}
}

func TestResolveYear(t *testing.T) {
	avail := []int{2021, 2022, 2023, 2024}

	Convey("Given the default trained years", t, func() {
		So(registry.ResolveYear(2022, avail), ShouldEqual, 2022)
		So(registry.ResolveYear(2030, avail), ShouldEqual, 2024)
		So(registry.ResolveYear(1999, avail), ShouldEqual, 2021)
		So(registry.ResolveYear(0, avail), ShouldEqual, 2021)
	})

	Convey("Given equidistant candidates", t, func() {
		So(registry.ResolveYear(2022, []int{2024, 2020}), ShouldEqual, 2020)
		So(registry.ResolveYear(2021, []int{2020, 2022}), ShouldEqual, 2020)
	})

	Convey("Given every requested year", t, func() {
		for y := 1990; y <= 2040; y++ {
			got := registry.ResolveYear(y, avail)
			best := avail[0]
			for _, v := range avail {
				if abs(v-y) < abs(best-y) {
					best = v
				}
			}
			So(got, ShouldEqual, best)
		}
	})

	Convey("Given no years", t, func() {
		So(registry.ResolveYear(2024, nil), ShouldEqual, 0)
	})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestRegistry(t *testing.T) {
	Convey("Given artifacts for 2022 and 2024", t, func() {
		dir := t.TempDir()
		cfg := config.New()
		cfg.Models.Cancellation.Years = []int{2022, 2024}
		cfg.Models.Departure.Years = []int{2022, 2024}
		cfg.Models.Arrival.Years = []int{2022, 2024}
		So(registrytest.Write(dir, cfg.Models, 2022, 2024), ShouldBeNil)

		src := &countingSource{Source: artifacts.NewFileSource(dir), opens: map[string]int{}}
		reg := registry.New(src, cfg.Models)
		d := registry.NewDispatcher(reg)
		engine := newEngine()
		ctx := context.Background()

		Convey("When predicting cancellation for an unavailable year", func() {
			out, err := d.Predict(ctx, model.KindCancellation, 2030, engine.Cancellation(request()))
			So(err, ShouldBeNil)

			Convey("Then the nearest year serves the request", func() {
				So(out.Year, ShouldEqual, 2024)
				So(out.Probability, ShouldAlmostEqual, registrytest.CancellationBase, 1e-12)
				So(out.Output, ShouldEqual, "probability")
				So(out.Paths[0], ShouldEndWith, "cancel_model_2024.json")
			})
		})

		Convey("When predicting a departure delay", func() {
			out, err := d.Predict(ctx, model.KindDeparture, 2024, engine.Departure(request()))
			So(err, ShouldBeNil)

			Convey("Then the shared preprocessor feeds both heads", func() {
				So(out.HasMinutes, ShouldBeTrue)
				So(out.Probability, ShouldAlmostEqual, registrytest.DepartureProbability(825), 1e-9)
				So(out.Minutes, ShouldAlmostEqual, registrytest.DepartureMinutes(825), 1e-9)
				So(out.Paths[0], ShouldContainSubstring, "resnet_preprocessor_2021.json")
			})
		})

		Convey("When predicting an arrival delay", func() {
			out, err := d.Predict(ctx, model.KindArrival, 2022, engine.Arrival(request(), 30))
			So(err, ShouldBeNil)
			So(out.Probability, ShouldAlmostEqual, registrytest.ArrivalProbHigh, 1e-12)
			So(out.Delayed, ShouldBeTrue)
			So(out.Minutes, ShouldEqual, registrytest.ArrivalMinutesHigh)
		})

		Convey("When many callers load the same key at once", func() {
			var wg sync.WaitGroup
			var failures atomic.Int32
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := reg.Get(ctx, model.KindArrival, 2024); err != nil {
						failures.Add(1)
					}
				}()
			}
			wg.Wait()

			Convey("Then the artifact is read once and cached", func() {
				So(failures.Load(), ShouldEqual, 0)
				p, _ := cfg.Models.Arrival.Path(config.RoleClassifier, 2024)
				So(src.count(p), ShouldEqual, 1)
				So(reg.Loaded(), ShouldHaveLength, 1)
			})

			Convey("Then invalidation forces a reload", func() {
				reg.Invalidate()
				So(reg.Loaded(), ShouldBeEmpty)
				_, err := reg.Get(ctx, model.KindArrival, 2024)
				So(err, ShouldBeNil)
				p, _ := cfg.Models.Arrival.Path(config.RoleClassifier, 2024)
				So(src.count(p), ShouldEqual, 2)
			})
		})

		Convey("When an artifact file is missing", func() {
			cfg.Models.Arrival.Years = []int{2021}
			reg := registry.New(artifacts.NewFileSource(dir), cfg.Models)
			_, err := registry.NewDispatcher(reg).Predict(ctx, model.KindArrival, 2021, engine.Arrival(request(), 0))

			Convey("Then the failure is ModelNotFound with the attempted path", func() {
				So(errors.Is(err, model.ErrModelNotFound), ShouldBeTrue)
				So(registry.PathOf(err), ShouldEndWith, filepath.Join("year_2021", "arr_delay_class_model_2021.json"))
			})
		})

		Convey("When an artifact is corrupt", func() {
			p, _ := cfg.Models.Departure.Path(config.RoleClassifier, 2024)
			So(registrytest.WriteFile(filepath.Join(dir, filepath.FromSlash(p)), []byte("{not json")), ShouldBeNil)

			_, err := d.Predict(ctx, model.KindDeparture, 2024, engine.Departure(request()))

			Convey("Then the failure is ModelLoadError", func() {
				So(errors.Is(err, model.ErrModelLoad), ShouldBeTrue)
				So(registry.PathOf(err), ShouldEndWith, "resnet_classifier_2024.json")
			})

			Convey("Then failed loads are not cached", func() {
				So(reg.Loaded(), ShouldBeEmpty)
			})
		})

		Convey("When the network width disagrees with the preprocessor", func() {
			_, c, _ := registrytest.DepartureNetworks()
			c.InputDim = 3
			c.Head[0].Weight = [][]float64{{0, 0, 0}}
			p, _ := cfg.Models.Departure.Path(config.RoleClassifier, 2022)
			So(registrytest.WriteJSON(filepath.Join(dir, filepath.FromSlash(p)), c), ShouldBeNil)

			_, err := reg.Get(ctx, model.KindDeparture, 2022)
			So(errors.Is(err, model.ErrModelLoad), ShouldBeTrue)
		})

		Convey("When the vector lacks a feature the artifact was trained on", func() {
			vec := features.NewVector()
			vec.Set("YEAR", features.Num(2024))
			_, err := d.Predict(ctx, model.KindCancellation, 2024, vec)
			So(errors.Is(err, model.ErrMissingFeatures), ShouldBeTrue)
		})

		Convey("When a numeric feature carries a category", func() {
			vec := engine.Cancellation(request())
			vec.Set("DISTANCE", features.Cat("far"))
			_, err := d.Predict(ctx, model.KindCancellation, 2024, vec)
			So(errors.Is(err, model.ErrInference), ShouldBeTrue)
		})

		Convey("When warming every configured model", func() {
			So(reg.Warm(ctx), ShouldBeNil)
			So(reg.Loaded(), ShouldHaveLength, 6)
			So(reg.Loaded()[0].Kind, ShouldEqual, model.KindCancellation)
		})

		Convey("When the caller's context is already done", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := reg.Get(cctx, model.KindCancellation, 2022)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}
