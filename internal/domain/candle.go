package domain

import "time"

// Candle represents a single OHLCV bar for an instrument at a given interval.
type Candle struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Quote is the latest market snapshot for an instrument.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name,omitempty"`
	Price         float64   `json:"price"`
	Open          float64   `json:"open"`
	PreviousClose float64   `json:"previous_close"`
	DayHigh       float64   `json:"day_high"`
	DayLow        float64   `json:"day_low"`
	Volume        float64   `json:"volume"`
	MarketCap     float64   `json:"market_cap,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Change returns the absolute change against the previous close.
func (q Quote) Change() float64 {
	if q.PreviousClose == 0 {
		return 0
	}
	return q.Price - q.PreviousClose
}

// ChangePct returns the percent change against the previous close.
func (q Quote) ChangePct() float64 {
	if q.PreviousClose == 0 {
		return 0
	}
	return (q.Price - q.PreviousClose) / q.PreviousClose * 100
}

// CompanyProfile carries the optional company metadata used for explanations.
type CompanyProfile struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	MarketCap float64   `json:"market_cap"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultInterval is the bar size used for history when none is requested.
const DefaultInterval = "1d"

// SupportedIntervals defines the candle intervals we store.
var SupportedIntervals = []string{"1h", "1d", "1wk"}

// IsSupportedInterval reports whether interval is one we store.
func IsSupportedInterval(interval string) bool {
	for _, si := range SupportedIntervals {
		if si == interval {
			return true
		}
	}
	return false
}
