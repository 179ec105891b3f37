package models

import "time"

// Network identifies the chain scoping all price lookups
type Network string

const (
	NetworkEthereum Network = "ethereum"
	NetworkPolygon  Network = "polygon"
)

// IsValid reports whether the network is one the oracle serves
func (n Network) IsValid() bool {
	return n == NetworkEthereum || n == NetworkPolygon
}

// PriceSource records how a price was obtained
type PriceSource string

const (
	// SourceLive marks prices fetched from the external provider
	SourceLive PriceSource = "live"
	// SourceInterpolated marks prices estimated from neighboring records
	SourceInterpolated PriceSource = "interpolated"
)

// TokenPrice represents one daily price record (one per token/network/date).
// Records are immutable once written.
type TokenPrice struct {
	Token     string      `json:"token" db:"token"`
	Network   Network     `json:"network" db:"network"`
	Date      time.Time   `json:"date" db:"date"`
	Price     float64     `json:"price" db:"price"`
	Source    PriceSource `json:"source" db:"source"`
	Timestamp int64       `json:"timestamp" db:"timestamp"` // start-of-day UTC, unix seconds
}

// StartOfDayUTC truncates t to the beginning of its UTC calendar day.
func StartOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewTokenPrice builds a record for the UTC day containing date.
func NewTokenPrice(token string, network Network, date time.Time, price float64, source PriceSource) *TokenPrice {
	day := StartOfDayUTC(date)
	return &TokenPrice{
		Token:     token,
		Network:   network,
		Date:      day,
		Price:     price,
		Source:    source,
		Timestamp: day.Unix(),
	}
}
