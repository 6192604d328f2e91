package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	eventqueue "github.com/okian/flightrisk/internal/adapters/mq/queue"
	"github.com/okian/flightrisk/internal/domain/features"
	"github.com/okian/flightrisk/internal/domain/model"
	"github.com/okian/flightrisk/pkg/logger"
	"github.com/okian/flightrisk/pkg/metrics"
)

// PredictBatch predicts every flight of a batch through the worker pool.
// Absent precipitation is imputed with the batch median first. Items come
// back in input order; a row whose cancellation stage failed carries its
// error instead of a result.
func (s *Service) PredictBatch(ctx context.Context, reqs []model.FlightRequest) ([]model.BatchItem, error) {
	start := time.Now()
	items, err := s.predictBatch(ctx, reqs)
	outcome := "success"
	switch {
	case errors.Is(err, ErrBackpressure):
		outcome = "rejected"
	case err != nil:
		outcome = "error"
	}
	metrics.RecordPrediction("batch", outcome, float64(time.Since(start).Microseconds())/1000)
	return items, err
}

func (s *Service) predictBatch(ctx context.Context, reqs []model.FlightRequest) ([]model.BatchItem, error) {
	s.mu.RLock()
	started, q := s.started, s.jobQueue
	s.mu.RUnlock()

	if !started {
		return nil, ErrNotStarted
	}
	if len(reqs) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(reqs) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(reqs), s.maxBatchSize)
	}
	if free := q.Capacity() - q.Len(ctx); len(reqs) > free {
		return nil, ErrBackpressure
	}

	rows := slices.Clone(reqs)
	if imp := features.ImputeBatch(rows); imp.Rows > 0 {
		fields := []logger.Field{logger.Int("rows", imp.Rows)}
		if imp.Rainfall != nil {
			fields = append(fields, logger.Float64("rainfall_median", *imp.Rainfall))
			metrics.RecordDegradedInput("batch", "rainfall")
		}
		if imp.DestRainfall != nil {
			fields = append(fields, logger.Float64("dest_rainfall_median", *imp.DestRainfall))
			metrics.RecordDegradedInput("batch", "destRainfall")
		}
		s.logger.Debug(ctx, "batch imputed", fields...)
	}

	batchID, hasID := model.RequestIDFrom(ctx)
	reply := make(chan model.BatchItem, len(rows))
	sent := 0
	for i := range rows {
		jobCtx := ctx
		if hasID {
			jobCtx = model.WithRequestID(ctx, batchID+"-"+strconv.Itoa(i))
		}
		job := eventqueue.Job{Ctx: jobCtx, Index: i, Request: rows[i], Reply: reply}
		if !q.Enqueue(ctx, job) {
			break
		}
		sent++
	}

	if sent < len(rows) {
		// Rows already queued finish on their own and reply into the
		// buffered channel.
		s.logger.Warn(ctx, "batch queue filled while enqueuing",
			logger.Int("rows", len(rows)),
			logger.Int("enqueued", sent))
		return nil, ErrBackpressure
	}

	out := make([]model.BatchItem, len(rows))
	for received := 0; received < sent; received++ {
		select {
		case item := <-reply:
			out[item.Index] = item
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}
