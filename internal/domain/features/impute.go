package features

import (
	"github.com/montanaflynn/stats"

	"github.com/okian/flightrisk/internal/domain/model"
)

// Imputation reports the medians applied to a batch.
type Imputation struct {
	Rainfall     *float64
	DestRainfall *float64
	// Rows counts the requests that received at least one imputed value.
	Rows int
}

// ImputeBatch fills absent precipitation inputs with the median of the rows
// that supplied one. A column nobody supplied is left absent so the
// pipelines fall back to 0. Single requests are never imputed.
func ImputeBatch(reqs []model.FlightRequest) Imputation {
	var out Imputation
	if len(reqs) < 2 {
		return out
	}
	out.Rainfall = median(reqs, func(r *model.FlightRequest) *float64 { return r.Rainfall })
	out.DestRainfall = median(reqs, func(r *model.FlightRequest) *float64 { return r.DestRainfall })

	for i := range reqs {
		touched := false
		if reqs[i].Rainfall == nil && out.Rainfall != nil {
			v := *out.Rainfall
			reqs[i].Rainfall = &v
			touched = true
		}
		if reqs[i].DestRainfall == nil && out.DestRainfall != nil {
			v := *out.DestRainfall
			reqs[i].DestRainfall = &v
			touched = true
		}
		if touched {
			out.Rows++
		}
	}
	return out
}

func median(reqs []model.FlightRequest, field func(*model.FlightRequest) *float64) *float64 {
	var data stats.Float64Data
	for i := range reqs {
		if p := field(&reqs[i]); p != nil {
			data = append(data, *p)
		}
	}
	if len(data) == 0 || len(data) == len(reqs) {
		return nil
	}
	m, err := stats.Median(data)
	if err != nil {
		return nil
	}
	return &m
}
