package features

import (
	"fmt"
	"math"

	"trendcast/internal/domain"
	"trendcast/internal/ta"
)

const (
	featureSpecVersion = "v2"

	// MinBars is the shortest history that yields a complete feature vector.
	MinBars = 30

	volumeWindow     = 20
	volatilityWindow = 10
)

// FeatureNames lists the vector layout produced by the engine.
var FeatureNames = []string{
	"ret_1",
	"ret_5",
	"ret_10",
	"volatility_10",
	"volume_z_20",
	"rsi_14",
	"macd_hist_pct",
	"bb_pos",
	"bb_width",
}

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

func FeatureSpecVersion() string {
	return featureSpecVersion
}

// Latest returns the feature vector for the last bar of the series.
func (e *Engine) Latest(series domain.PriceSeries) ([]float64, error) {
	if series.Len() < MinBars {
		return nil, fmt.Errorf("need %d bars, have %d: %w", MinBars, series.Len(), domain.ErrDataInsufficient)
	}
	closes := series.Closes()
	set := ta.Compute(closes)
	values, ok := vectorAt(set, series.Volumes(), len(closes)-1)
	if !ok {
		return nil, fmt.Errorf("feature vector for %s: %w", series.Symbol, domain.ErrComputation)
	}
	return values, nil
}

// BuildRows returns one row per bar with a complete vector. TargetPct is
// the percent change horizon bars ahead, nil when that bar does not exist.
func (e *Engine) BuildRows(series domain.PriceSeries, horizon int) []domain.FeatureRow {
	if series.Len() < MinBars {
		return nil
	}
	if horizon <= 0 {
		horizon = 1
	}
	closes := series.Closes()
	volumes := series.Volumes()
	times := series.Times()
	set := ta.Compute(closes)

	rows := make([]domain.FeatureRow, 0, len(closes)-MinBars+1)
	for i := MinBars - 1; i < len(closes); i++ {
		values, ok := vectorAt(set, volumes, i)
		if !ok {
			continue
		}
		var target *float64
		if j := i + horizon; j < len(closes) {
			pct := (closes[j]/closes[i] - 1) * 100
			target = &pct
		}
		rows = append(rows, domain.FeatureRow{
			Symbol:    series.Symbol,
			OpenTime:  times[i].UTC(),
			Values:    values,
			TargetPct: target,
		})
	}
	return rows
}

// Dataset keeps the labelled rows and splits them into inputs and targets.
func Dataset(rows []domain.FeatureRow) ([][]float64, []float64) {
	x := make([][]float64, 0, len(rows))
	y := make([]float64, 0, len(rows))
	for i := range rows {
		if rows[i].TargetPct == nil {
			continue
		}
		x = append(x, rows[i].Values)
		y = append(y, *rows[i].TargetPct)
	}
	return x, y
}

func vectorAt(set ta.IndicatorSet, volumes []float64, i int) ([]float64, bool) {
	closes := set.Closes
	ret1 := pctReturn(closes, i, 1)
	ret5 := pctReturn(closes, i, 5)
	ret10 := pctReturn(closes, i, 10)
	vol := rollingVolatility(closes, i, volatilityWindow)
	volZ := rollingZ(volumes, i, volumeWindow)

	rsi := set.RSI[i]
	hist := set.MACDHist[i]
	upper, middle, lower := set.BBUpper[i], set.BBMiddle[i], set.BBLower[i]
	if anyNaN(ret1, ret5, ret10, vol, volZ, rsi, hist, upper, middle, lower) {
		return nil, false
	}
	bbWidth := 0.0
	if middle != 0 {
		bbWidth = (upper - lower) / middle
	}
	histPct := 0.0
	if closes[i] != 0 {
		histPct = hist / closes[i] * 100
	}
	values := []float64{
		ret1,
		ret5,
		ret10,
		vol,
		volZ,
		rsi,
		histPct,
		ta.BBPosition(closes[i], upper, lower),
		bbWidth,
	}
	if anyNaN(values...) {
		return nil, false
	}
	return values, true
}

func pctReturn(values []float64, idx int, lag int) float64 {
	if idx-lag < 0 || idx >= len(values) {
		return math.NaN()
	}
	base := values[idx-lag]
	if base == 0 {
		return math.NaN()
	}
	return (values[idx] / base) - 1
}

func rollingVolatility(closes []float64, idx int, window int) float64 {
	if window <= 1 || idx-window+1 <= 0 || idx >= len(closes) {
		return math.NaN()
	}
	rets := make([]float64, 0, window)
	for j := idx - window + 1; j <= idx; j++ {
		if closes[j-1] == 0 {
			return math.NaN()
		}
		rets = append(rets, (closes[j]/closes[j-1])-1)
	}
	_, std := ta.MeanStd(rets)
	return std
}

func rollingZ(values []float64, idx int, window int) float64 {
	if window <= 0 || idx-window < 0 || idx >= len(values) {
		return math.NaN()
	}
	mean, std := ta.MeanStd(values[idx-window : idx])
	if std == 0 {
		return 0
	}
	return (values[idx] - mean) / std
}

func anyNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
