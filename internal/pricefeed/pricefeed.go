// Package pricefeed streams asset quotes over WebSocket and applies them to
// the asset definition store.
package pricefeed

// Quote is one price update from the feed.
type Quote struct {
	Ticker      string  `json:"ticker"`
	Price       float64 `json:"price"`
	TimestampMs int64   `json:"timestamp_ms"`
}

// feed wire messages

type feedMessage struct {
	Type   string  `json:"type"`
	Ticker string  `json:"ticker,omitempty"`
	Price  float64 `json:"price,omitempty"`
	// TimestampMs is the exchange-side quote time.
	TimestampMs int64 `json:"timestamp_ms,omitempty"`
	// Error carries the reason on type "error".
	Error string `json:"error,omitempty"`
}

type subscribeRequest struct {
	Type    string   `json:"type"`
	Tickers []string `json:"tickers"`
}

const (
	msgTypeSubscribe = "subscribe"
	msgTypeQuote     = "quote"
	msgTypeError     = "error"
)
