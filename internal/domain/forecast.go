package domain

import (
	"encoding/json"
	"time"
)

type Direction string

const (
	DirectionUp      Direction = "UP"
	DirectionDown    Direction = "DOWN"
	DirectionNeutral Direction = "NEUTRAL"
)

// Stage names the fallback stage that produced a forecast.
type Stage string

const (
	StageModel     Stage = "model"
	StageIndicator Stage = "indicator"
	StageRule      Stage = "rule"
)

// ConfidenceScale tells consumers how to read Forecast.Confidence:
// "percent" is 0-100 (indicator path), "unit" is 0-1 (price-diff path).
type ConfidenceScale string

const (
	ScalePercent ConfidenceScale = "percent"
	ScaleUnit    ConfidenceScale = "unit"
)

// InvalidPriceMessage is the error text returned for a missing or
// non-positive current price.
const InvalidPriceMessage = "Invalid price data"

// Forecast is the per-request result record. It is never mutated after the
// forecast engine returns it. When Error is set, it serializes to
// {"error": "..."} only.
type Forecast struct {
	Symbol             string          `json:"symbol"`
	Stage              Stage           `json:"stage"`
	Direction          Direction       `json:"direction"`
	Confidence         float64         `json:"confidence"`
	ConfidenceScale    ConfidenceScale `json:"confidence_scale"`
	CurrentPrice       float64         `json:"current_price"`
	PredictedPrice     float64         `json:"predicted_price"`
	PredictedChangePct float64         `json:"predicted_change_pct"`
	Factors            []string        `json:"factors"`
	ModelVersion       string          `json:"model_version,omitempty"`
	Analysis           *Analysis       `json:"analysis,omitempty"`
	Technical          *Technical      `json:"technical,omitempty"`
	GeneratedAt        time.Time       `json:"generated_at"`

	Error string `json:"error,omitempty"`
}

// Analysis summarizes the price window used by the indicator path.
type Analysis struct {
	CurrentPrice float64  `json:"current_price"`
	AvgPrice     float64  `json:"avg_price"`
	StdPrice     float64  `json:"std_price"`
	MinPrice     float64  `json:"min_price"`
	MaxPrice     float64  `json:"max_price"`
	LatestRSI    *float64 `json:"latest_rsi"`
	LatestMACD   float64  `json:"latest_macd"`
	LatestBBPos  float64  `json:"latest_bb_position"`
}

// Technical holds trailing indicator series for charting. Undefined points
// are encoded as null.
type Technical struct {
	Dates      []time.Time `json:"dates"`
	Close      []float64   `json:"close"`
	RSI        []*float64  `json:"rsi"`
	MACD       []*float64  `json:"macd"`
	MACDSignal []*float64  `json:"macd_signal"`
	MACDHist   []*float64  `json:"macd_hist"`
	BBUpper    []*float64  `json:"bb_upper"`
	BBMiddle   []*float64  `json:"bb_middle"`
	BBLower    []*float64  `json:"bb_lower"`
}

// ErrorForecast builds the error-only record.
func ErrorForecast(msg string) *Forecast {
	return &Forecast{Error: msg}
}

// IsError reports whether the record carries only an error.
func (f Forecast) IsError() bool {
	return f.Error != ""
}

func (f Forecast) MarshalJSON() ([]byte, error) {
	if f.Error != "" {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{Error: f.Error})
	}
	type plain Forecast
	return json.Marshal(plain(f))
}
