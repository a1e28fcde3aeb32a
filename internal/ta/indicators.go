package ta

import "math"

const (
	RSIWindow       = 14
	MACDFast        = 12
	MACDSlow        = 26
	MACDSignal      = 9
	BollingerWindow = 20
	BollingerK      = 2.0

	// NeutralRSI replaces an RSI that cannot be computed (no losses in the
	// window, or a non-finite ratio).
	NeutralRSI = 50.0
	// NeutralBBPos replaces a band position that cannot be computed.
	NeutralBBPos = 0.5
)

// MeanStd returns the mean and population standard deviation.
func MeanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean := Mean(values)
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleStd returns the n-1 standard deviation, or 0 for fewer than two values.
func SampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(values)-1))
}

// SMASeries returns the trailing simple moving average; the first period-1
// points are NaN.
func SMASeries(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMASeries uses alpha = 2/(period+1), seeded with the first value and no
// bias adjustment. Every point is defined.
func EMASeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	if period <= 1 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSISeries averages gains and losses with a trailing simple mean over the
// last period deltas. Points before index period are NaN.
func RSISeries(closes []float64, period int) []float64 {
	series := nanSeries(len(closes))
	if period <= 0 || len(closes) <= period {
		return series
	}
	for i := period; i < len(closes); i++ {
		var gainSum, lossSum float64
		for j := i - period + 1; j <= i; j++ {
			delta := closes[j] - closes[j-1]
			gainSum += math.Max(delta, 0)
			lossSum += math.Max(-delta, 0)
		}
		series[i] = rsiFromAvg(gainSum/float64(period), lossSum/float64(period))
	}
	return series
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return NeutralRSI
	}
	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))
	if math.IsNaN(rsi) || math.IsInf(rsi, 0) {
		return NeutralRSI
	}
	return rsi
}

// MACDSeries returns the MACD line, its signal line and the histogram.
// No minimum length is enforced; early points are valid but noisy.
func MACDSeries(values []float64, fast, slow, signal int) ([]float64, []float64, []float64) {
	if len(values) == 0 {
		return nil, nil, nil
	}
	fastEMA := EMASeries(values, fast)
	slowEMA := EMASeries(values, slow)
	macdLine := make([]float64, len(values))
	for i := range values {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := EMASeries(macdLine, signal)
	hist := make([]float64, len(values))
	for i := range values {
		hist[i] = macdLine[i] - signalLine[i]
	}
	return macdLine, signalLine, hist
}

// BollingerSeries returns middle, upper and lower bands using the sample
// standard deviation over period. Points before period-1 are NaN.
func BollingerSeries(values []float64, period int, stdDevs float64) ([]float64, []float64, []float64) {
	if len(values) == 0 {
		return nil, nil, nil
	}
	middle := nanSeries(len(values))
	upper := nanSeries(len(values))
	lower := nanSeries(len(values))
	if period <= 0 {
		return middle, upper, lower
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		mean := Mean(window)
		std := SampleStd(window)
		middle[i] = mean
		upper[i] = mean + stdDevs*std
		lower[i] = mean - stdDevs*std
	}
	return middle, upper, lower
}

// BBPosition locates price inside the bands: 0 at the lower band, 1 at the
// upper. Zero width or an undefined band yields NeutralBBPos.
func BBPosition(price, upper, lower float64) float64 {
	if !finite(price) || !finite(upper) || !finite(lower) {
		return NeutralBBPos
	}
	width := upper - lower
	if width == 0 {
		return NeutralBBPos
	}
	pos := (price - lower) / width
	if !finite(pos) {
		return NeutralBBPos
	}
	return pos
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
