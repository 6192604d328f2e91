package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/flightrisk/internal/adapters/http/api"
	service "github.com/okian/flightrisk/internal/app"
	"github.com/okian/flightrisk/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// mockDeps records the last request and answers canned results.
type mockDeps struct {
	ready      bool
	predictErr error
	batchErr   error
	last       *model.FlightRequest
	lastID     string
	lastBatch  []model.FlightRequest
}

func (m *mockDeps) Predict(ctx context.Context, req *model.FlightRequest) (*model.Result, error) {
	m.last = req
	m.lastID, _ = model.RequestIDFrom(ctx)
	if m.predictErr != nil {
		return nil, m.predictErr
	}
	p := 0.4
	return &model.Result{
		RequestID:               "req-1",
		CancellationProbability: 0.1,
		CancellationOutput:      "probability",
		DelayProbability:        &p,
		ModelYears:              map[model.Kind]int{model.KindCancellation: 2024},
	}, nil
}

func (m *mockDeps) PredictBatch(_ context.Context, reqs []model.FlightRequest) ([]model.BatchItem, error) {
	m.lastBatch = reqs
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	out := make([]model.BatchItem, len(reqs))
	for i := range reqs {
		out[i] = model.BatchItem{Index: i, Result: &model.Result{CancellationProbability: 0.2}}
	}
	return out, nil
}

func (m *mockDeps) Models() []service.ModelInfo {
	return []service.ModelInfo{{Kind: model.KindCancellation, Years: []int{2021, 2024}}}
}

func (m *mockDeps) IsReady() bool { return m.ready }

func setup(deps *mockDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestPredictHandler(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := &mockDeps{ready: true}
		mux := setup(deps)

		Convey("When posting the web client envelope", func() {
			w := do(mux, http.MethodPost, "/predict-cancellation",
				`{"flightData": {"from": "atl", "to": "LAX", "week": "Sat", "depTime": 730, "rainfall": 1.5}}`)

			Convey("Then the flight is predicted", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
				body := decode(w)
				So(body["cancellation_probability"], ShouldEqual, 0.1)
				So(body["delay_probability"], ShouldEqual, 0.4)
				So(body, ShouldNotContainKey, "arrival_delay")
				So(deps.last.Origin, ShouldEqual, "atl")
				So(deps.last.Week.Name, ShouldEqual, "Sat")
				So(*deps.last.DepTime, ShouldEqual, 730)
			})
		})

		Convey("When the caller sends a request id", func() {
			req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"from": "JFK", "to": "LAX"}`))
			req.Header.Set(api.RequestIDHeader, "trace-42")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "trace-42")
			So(deps.lastID, ShouldEqual, "trace-42")
		})

		Convey("When no request id is sent", func() {
			w := do(mux, http.MethodPost, "/predict", `{"from": "JFK", "to": "LAX"}`)
			So(w.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)
			So(deps.lastID, ShouldEqual, w.Header().Get(api.RequestIDHeader))
		})

		Convey("When posting a bare flight", func() {
			w := do(mux, http.MethodPost, "/predict", `{"from": "JFK", "to": "LAX", "week": 3}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(*deps.last.Week.Num, ShouldEqual, 3)
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/predict", `{not json`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["error"], ShouldContainSubstring, "bad request")
		})

		Convey("When a required airport is missing", func() {
			w := do(mux, http.MethodPost, "/predict", `{"flightData": {"from": "JFK"}}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["error"], ShouldContainSubstring, "Destination")
			So(deps.last, ShouldBeNil)
		})

		Convey("When the departure time is out of range", func() {
			w := do(mux, http.MethodPost, "/predict", `{"from": "JFK", "to": "LAX", "depTime": 2500}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the cancellation stage fails", func() {
			deps.predictErr = &model.StageError{Stage: model.StageCancellation, Err: model.ErrModelNotFound}
			w := do(mux, http.MethodPost, "/predict", `{"from": "JFK", "to": "LAX"}`)

			Convey("Then the request fails with 500 and an error body", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				body := decode(w)
				So(body["error"], ShouldContainSubstring, "cancellation stage failed")
				So(body["code"], ShouldEqual, "model_not_found")
			})
		})

		Convey("When a browser sends a preflight", func() {
			w := do(mux, http.MethodOptions, "/predict", "")
			So(w.Code, ShouldEqual, http.StatusNoContent)
			So(w.Header().Get("Access-Control-Allow-Methods"), ShouldContainSubstring, "POST")
		})

		Convey("When using the wrong method", func() {
			w := do(mux, http.MethodGet, "/predict", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestBatchHandler(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := &mockDeps{ready: true}
		mux := setup(deps)
		body := `{"flights": [{"from": "JFK", "to": "LAX"}, {"from": "ATL", "to": "ORD", "rainfall": 0.2}]}`

		Convey("When posting a batch", func() {
			w := do(mux, http.MethodPost, "/predict/batch", body)

			Convey("Then every row is answered", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				results, ok := decode(w)["results"].([]any)
				So(ok, ShouldBeTrue)
				So(results, ShouldHaveLength, 2)
				So(deps.lastBatch, ShouldHaveLength, 2)
			})
		})

		Convey("When a row is invalid", func() {
			w := do(mux, http.MethodPost, "/predict/batch", `{"flights": [{"from": "JFK"}]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(deps.lastBatch, ShouldBeNil)
		})

		Convey("When the batch is empty", func() {
			w := do(mux, http.MethodPost, "/predict/batch", `{"flights": []}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		for _, tc := range []struct {
			err    error
			status int
		}{
			{service.ErrBackpressure, http.StatusTooManyRequests},
			{fmt.Errorf("%w: 600 > 500", service.ErrBatchTooLarge), http.StatusRequestEntityTooLarge},
			{service.ErrNotStarted, http.StatusServiceUnavailable},
		} {
			Convey(fmt.Sprintf("When the service answers %v", tc.err), func() {
				deps.batchErr = tc.err
				w := do(mux, http.MethodPost, "/predict/batch", body)
				So(w.Code, ShouldEqual, tc.status)
			})
		}
	})
}

func TestModelsAndHealth(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := &mockDeps{ready: true}
		mux := setup(deps)

		Convey("When listing models", func() {
			w := do(mux, http.MethodGet, "/models", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			models, ok := decode(w)["models"].([]any)
			So(ok, ShouldBeTrue)
			So(models, ShouldHaveLength, 1)
		})

		Convey("When checking health", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["status"], ShouldEqual, "ok")
		})

		Convey("When the service has not started", func() {
			deps.ready = false
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When scraping metrics", func() {
			do(mux, http.MethodGet, "/healthz", "")
			w := do(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "http_requests")
		})
	})
}
