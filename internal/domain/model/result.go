package model

// Kind names a family of trained models.
type Kind string

// Model kinds.
const (
	KindCancellation Kind = "cancellation"
	KindDeparture    Kind = "departure"
	KindArrival      Kind = "arrival"
)

// Kinds lists every model kind in pipeline order.
var Kinds = []Kind{KindCancellation, KindDeparture, KindArrival}

// Interval is a two-sided confidence band around a delay estimate.
type Interval struct {
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
	Confidence float64 `json:"confidence"`
}

// ArrivalDelay is the arrival stage sub-result.
type ArrivalDelay struct {
	DelayPredicted     bool    `json:"delay_predicted"`
	DelayProbability   float64 `json:"delay_probability"`
	DelayMinutes       float64 `json:"delay_minutes"`
	DelayLowerBound    float64 `json:"delay_lower_bound"`
	DelayUpperBound    float64 `json:"delay_upper_bound"`
	IsWeekend          bool    `json:"is_weekend"`
	IsLateNightArrival bool    `json:"is_late_night_arrival"`
	IsMorningRush      bool    `json:"is_morning_rush"`
	IsEveningRush      bool    `json:"is_evening_rush"`
}

// Result aggregates every stage that produced an answer. Optional parts are
// nil when their stage failed or did not run.
type Result struct {
	RequestID               string  `json:"request_id"`
	CancellationProbability float64 `json:"cancellation_probability"`
	CancellationOutput      string  `json:"cancellation_output"`
	IsRedeye                bool    `json:"is_redeye"`
	IsWeekend               bool    `json:"is_weekend"`
	IsPeakHour              bool    `json:"is_peak_hour"`

	DelayProbability        *float64  `json:"delay_probability,omitempty"`
	PredictedDelayMinutes   *float64  `json:"predicted_delay_minutes,omitempty"`
	DelayConfidenceInterval *Interval `json:"delay_confidence_interval,omitempty"`
	DelayError              string    `json:"delay_error,omitempty"`

	ArrivalDelay      *ArrivalDelay `json:"arrival_delay,omitempty"`
	ArrivalDelayError string        `json:"arrival_delay_error,omitempty"`

	ModelInput        map[string]any `json:"model_input"`
	DelayModelInput   map[string]any `json:"delay_model_input,omitempty"`
	ArrivalModelInput map[string]any `json:"arrival_model_input,omitempty"`
	ModelYears        map[Kind]int   `json:"model_years"`
}

// BatchItem is one row of a batch response: a result or the error that
// aborted that row.
type BatchItem struct {
	Index  int     `json:"index"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}
