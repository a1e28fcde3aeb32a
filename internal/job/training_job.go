package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"trendcast/internal/ml/training"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Trainer interface {
	Train(ctx context.Context, modelKey string, symbols []string, now time.Time) (training.ModelTrainResult, error)
}

// ModelInvalidator drops cached artifacts after a promotion.
type ModelInvalidator interface {
	Invalidate(key string)
}

// ErrTrainingInProgress is returned when a run is requested while another
// one has not finished.
var ErrTrainingInProgress = errors.New("training already in progress")

// TrainingJob retrains the shared model once a day at a fixed UTC hour.
type TrainingJob struct {
	tracer    trace.Tracer
	log       zerolog.Logger
	trainer   Trainer
	cache     ModelInvalidator
	modelKey  string
	symbols   []string
	trainHour int
	now       func() time.Time
	running   sync.Mutex
}

func NewTrainingJob(
	tracer trace.Tracer,
	logger zerolog.Logger,
	trainer Trainer,
	cache ModelInvalidator,
	modelKey string,
	symbols []string,
	trainHourUTC int,
) *TrainingJob {
	if trainHourUTC < 0 || trainHourUTC > 23 {
		trainHourUTC = 0
	}
	return &TrainingJob{
		tracer:    tracer,
		log:       logger,
		trainer:   trainer,
		cache:     cache,
		modelKey:  modelKey,
		symbols:   append([]string(nil), symbols...),
		trainHour: trainHourUTC,
		now:       time.Now,
	}
}

func (j *TrainingJob) Start(ctx context.Context) {
	if j.trainer == nil || len(j.symbols) == 0 {
		j.log.Info().Msg("training job disabled")
		<-ctx.Done()
		return
	}
	for {
		next := nextRunUTC(j.now().UTC(), j.trainHour)
		wait := next.Sub(j.now())
		if wait < time.Second {
			wait = time.Second
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			_, _ = j.RunOnce(ctx)
		}
	}
}

// RunOnce trains and, on promotion, invalidates the cached artifact. Only
// one run proceeds at a time.
func (j *TrainingJob) RunOnce(ctx context.Context) (training.ModelTrainResult, error) {
	ctx, span := j.tracer.Start(ctx, "training-job.run-once")
	defer span.End()
	span.SetAttributes(attribute.String("model_key", j.modelKey))

	if j.trainer == nil || len(j.symbols) == 0 {
		return training.ModelTrainResult{}, fmt.Errorf("training job has no trainer or symbols")
	}
	if !j.running.TryLock() {
		return training.ModelTrainResult{}, ErrTrainingInProgress
	}
	defer j.running.Unlock()

	r, err := j.trainer.Train(ctx, j.modelKey, j.symbols, j.now().UTC())
	if err != nil {
		span.RecordError(err)
		j.log.Error().Err(err).Str("model_key", j.modelKey).Msg("training failed")
		return r, err
	}
	j.log.Info().
		Str("model_key", r.ModelKey).
		Int("version", r.Version).
		Float64("mae", r.MAE).
		Float64("direction_accuracy", r.DirectionAccuracy).
		Bool("promoted", r.Promoted).
		Msg("training finished")
	if r.Promoted && j.cache != nil {
		j.cache.Invalidate("")
	}
	return r, nil
}

func nextRunUTC(now time.Time, hour int) time.Time {
	run := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !run.After(now) {
		run = run.Add(24 * time.Hour)
	}
	return run
}
