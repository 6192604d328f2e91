package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"github.com/okian/flightrisk/internal/domain/model"
	"github.com/okian/flightrisk/pkg/logger"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body and a fresh X-Request-ID.
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	return c.client.Do(req)
}

// outcome is the result of one HTTP call covering one or more flights.
type outcome struct {
	status      int
	flights     int
	succeeded   int
	stageErrors int
	latency     time.Duration
	err         error
}

type batchBody struct {
	Flights []model.FlightRequest `json:"flights"`
}

type batchReply struct {
	Results []model.BatchItem `json:"results"`
}

// chunk splits flights into the units submitted by one call each.
func chunk(flights []model.FlightRequest, size int) [][]model.FlightRequest {
	if size <= 0 {
		size = 1
	}
	out := make([][]model.FlightRequest, 0, (len(flights)+size-1)/size)
	for start := 0; start < len(flights); start += size {
		end := min(start+size, len(flights))
		out = append(out, flights[start:end])
	}
	return out
}

// submitFlights posts flights concurrently using a worker pool and fills stats.
func submitFlights(ctx context.Context, config *Config, flights []model.FlightRequest, st *Stats) {
	log := logger.Get().Named("loadgen")
	client := newHTTPClient(config.Timeout)
	units := chunk(flights, config.BatchSize)

	workers := max(1, min(config.Workers, len(units)))
	log.Info(ctx, "submitting flights",
		logger.Int("flights", len(flights)),
		logger.Int("calls", len(units)),
		logger.Int("workers", workers))

	work := make(chan []model.FlightRequest, workers*WorkerChannelMultiplier)
	results := make(chan outcome, workers*WorkerChannelMultiplier)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for unit := range work {
				results <- submitUnit(ctx, client, config, unit)
			}
		}()
	}

	go func() {
		defer close(work)
		for _, unit := range units {
			select {
			case <-ctx.Done():
				return
			case work <- unit:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	latencies := make(stats.Float64Data, 0, len(units))
	for o := range results {
		st.Statuses[o.status]++
		st.Submitted += o.flights
		st.Succeeded += o.succeeded
		st.Failed += o.flights - o.succeeded
		st.StageErrors += o.stageErrors
		latencies = append(latencies, float64(o.latency))
		if o.err != nil && config.Verbose {
			log.Warn(ctx, "request failed", logger.Int("status", o.status), logger.Error(o.err))
		}
	}
	summarizeLatency(latencies, st)
}

func submitUnit(ctx context.Context, client *HTTPClient, config *Config, unit []model.FlightRequest) outcome {
	o := outcome{flights: len(unit)}
	url := config.BaseURL + "/predict"
	var body any = unit[0]
	if config.BatchSize > 0 {
		url = config.BaseURL + "/predict/batch"
		body = batchBody{Flights: unit}
	}

	start := time.Now()
	resp, err := client.Post(ctx, url, body)
	if err != nil {
		o.latency = time.Since(start)
		o.err = err
		return o
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	o.latency = time.Since(start)
	o.status = resp.StatusCode
	if err != nil {
		o.err = fmt.Errorf("read body: %w", err)
		return o
	}
	if resp.StatusCode != http.StatusOK {
		o.err = fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
		return o
	}

	if config.BatchSize > 0 {
		var reply batchReply
		if err := json.Unmarshal(data, &reply); err != nil {
			o.err = fmt.Errorf("decode batch reply: %w", err)
			return o
		}
		for _, item := range reply.Results {
			if item.Error != "" || item.Result == nil {
				continue
			}
			o.succeeded++
			o.stageErrors += countStageErrors(item.Result)
		}
		return o
	}

	var res model.Result
	if err := json.Unmarshal(data, &res); err != nil {
		o.err = fmt.Errorf("decode reply: %w", err)
		return o
	}
	o.succeeded = 1
	o.stageErrors = countStageErrors(&res)
	return o
}

func countStageErrors(r *model.Result) int {
	if r.DelayError != "" || r.ArrivalDelayError != "" {
		return 1
	}
	return 0
}

func summarizeLatency(latencies stats.Float64Data, st *Stats) {
	if len(latencies) == 0 {
		return
	}
	percentile := func(p float64) time.Duration {
		v, err := latencies.Percentile(p)
		if err != nil {
			return 0
		}
		return time.Duration(v)
	}
	st.LatencyP50 = percentile(50)
	st.LatencyP95 = percentile(95)
	st.LatencyP99 = percentile(99)
	if m, err := latencies.Max(); err == nil {
		st.LatencyMax = time.Duration(m)
	}
}
