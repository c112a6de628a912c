package market_data

import "time"

// Bar is one OHLCV candle. Prices are plain floats; NaN marks a missing value.
type Bar struct {
	Timestamp time.Time `ch:"open_time" json:"timestamp"`
	Open      float64   `ch:"open" json:"open"`
	High      float64   `ch:"high" json:"high"`
	Low       float64   `ch:"low" json:"low"`
	Close     float64   `ch:"close" json:"close"`
	Volume    float64   `ch:"volume" json:"volume"`
}

// BarQuery selects a bar history for one instrument
type BarQuery struct {
	Exchange  string
	Symbol    string
	Timeframe string // 1m, 5m, 15m, 1h, 4h, 1d
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}
