package domain

import (
	"math"
	"time"
)

// ForecastOutcome is a logged forecast and, once the target bar has closed,
// what actually happened.
type ForecastOutcome struct {
	ID                 int64           `json:"id"`
	Symbol             string          `json:"symbol"`
	Interval           string          `json:"interval"`
	Stage              Stage           `json:"stage"`
	ModelVersion       string          `json:"model_version,omitempty"`
	Direction          Direction       `json:"direction"`
	Confidence         float64         `json:"confidence"`
	ConfidenceScale    ConfidenceScale `json:"confidence_scale"`
	BasePrice          float64         `json:"base_price"`
	PredictedPrice     float64         `json:"predicted_price"`
	PredictedChangePct float64         `json:"predicted_change_pct"`
	GeneratedAt        time.Time       `json:"generated_at"`
	TargetTime         time.Time       `json:"target_time"`

	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	ActualPrice       *float64   `json:"actual_price,omitempty"`
	RealizedChangePct *float64   `json:"realized_change_pct,omitempty"`
	Correct           *bool      `json:"correct,omitempty"`
}

// StageAccuracy summarises resolved outcomes for one stage.
type StageAccuracy struct {
	Stage           Stage   `json:"stage"`
	Resolved        int     `json:"resolved"`
	Correct         int     `json:"correct"`
	HitRate         float64 `json:"hit_rate"`
	MeanAbsErrorPct float64 `json:"mean_abs_error_pct"`
}

// IntervalStep is the duration of one bar, or zero for an unknown interval.
func IntervalStep(interval string) time.Duration {
	switch interval {
	case "1h":
		return time.Hour
	case "1d":
		return 24 * time.Hour
	case "1wk":
		return 7 * 24 * time.Hour
	}
	return 0
}

// NextBarTime is the start of the bar after the one containing t.
func NextBarTime(t time.Time, interval string) time.Time {
	step := IntervalStep(interval)
	if step == 0 {
		step = 24 * time.Hour
	}
	return t.UTC().Truncate(step).Add(step)
}

// DirectionHit reports whether a realized move agrees with a call. A
// NEUTRAL call is a hit when the move stays within band percent.
func DirectionHit(d Direction, realizedPct, band float64) bool {
	switch d {
	case DirectionUp:
		return realizedPct > 0
	case DirectionDown:
		return realizedPct < 0
	}
	return math.Abs(realizedPct) <= band
}
