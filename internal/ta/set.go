package ta

import "math"

// IndicatorSet is a read-only view of every indicator over one close
// series. All slices have the same length as Closes.
type IndicatorSet struct {
	Closes     []float64
	RSI        []float64
	MACD       []float64
	MACDSignal []float64
	MACDHist   []float64
	BBUpper    []float64
	BBMiddle   []float64
	BBLower    []float64
}

// Snapshot is the trailing value of each indicator with neutral defaults
// already substituted.
type Snapshot struct {
	Price        float64
	RSI          float64
	RSIAvailable bool
	MACD         float64
	MACDHist     float64
	BBPos        float64
	BBAvailable  bool
}

// Compute builds the set with the standard windows (RSI 14, MACD 12/26/9,
// Bollinger 20/2).
func Compute(closes []float64) IndicatorSet {
	macd, signal, hist := MACDSeries(closes, MACDFast, MACDSlow, MACDSignal)
	middle, upper, lower := BollingerSeries(closes, BollingerWindow, BollingerK)
	return IndicatorSet{
		Closes:     closes,
		RSI:        RSISeries(closes, RSIWindow),
		MACD:       macd,
		MACDSignal: signal,
		MACDHist:   hist,
		BBUpper:    upper,
		BBMiddle:   middle,
		BBLower:    lower,
	}
}

func (s IndicatorSet) Len() int { return len(s.Closes) }

// Latest returns the snapshot at the last index. The second result is false
// for an empty set.
func (s IndicatorSet) Latest() (Snapshot, bool) {
	n := len(s.Closes)
	if n == 0 {
		return Snapshot{}, false
	}
	i := n - 1
	snap := Snapshot{
		Price: s.Closes[i],
		RSI:   NeutralRSI,
		BBPos: NeutralBBPos,
	}
	if i < len(s.RSI) && finite(s.RSI[i]) {
		snap.RSI = s.RSI[i]
		snap.RSIAvailable = true
	}
	if i < len(s.MACDHist) && finite(s.MACDHist[i]) {
		snap.MACD = s.MACD[i]
		snap.MACDHist = s.MACDHist[i]
	}
	if i < len(s.BBUpper) && finite(s.BBUpper[i]) && finite(s.BBLower[i]) {
		snap.BBAvailable = true
		snap.BBPos = BBPosition(snap.Price, s.BBUpper[i], s.BBLower[i])
	}
	return snap, true
}

// Tail returns the last n points of a series with undefined values as nil.
func Tail(series []float64, n int) []*float64 {
	if n > len(series) {
		n = len(series)
	}
	out := make([]*float64, 0, n)
	for _, v := range series[len(series)-n:] {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out = append(out, nil)
			continue
		}
		val := v
		out = append(out, &val)
	}
	return out
}
