package loadgen

import (
	"runtime"
	"time"
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
	PercentageMultiplier    = 100
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Requests   int           // Number of flights to generate and submit
	Workers    int           // Number of concurrent workers
	BatchSize  int           // Flights per /predict/batch call; 0 posts single flights to /predict
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Optional JSON file receiving the generated flights
	Year       int           // Year stamped on generated flights; 0 leaves it to the server
	Verbose    bool          // Log every failed request
}

// DefaultConfig returns a Config aimed at a local server.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:  "http://localhost:9080",
		Requests: 1000,
		Workers:  runtime.NumCPU() * 2,
		Timeout:  30 * time.Second,
	}
}

// Stats holds the outcome of a load run.
type Stats struct {
	Generated int
	Submitted int
	Succeeded int
	Failed    int
	// Statuses counts HTTP responses by status code; transport errors count under 0.
	Statuses map[int]int
	// StageErrors counts flights whose delay or arrival stage reported an error.
	StageErrors int

	LatencyP50 time.Duration
	LatencyP95 time.Duration
	LatencyP99 time.Duration
	LatencyMax time.Duration

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// SuccessRate is the share of submitted flights answered with 200, in percent.
func (s *Stats) SuccessRate() float64 {
	if s.Submitted == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Submitted) * PercentageMultiplier
}

// Throughput is the number of flights submitted per second.
func (s *Stats) Throughput() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Submitted) / s.Duration.Seconds()
}
