package types

import "time"

type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

type Quote struct {
	Symbol    string
	Price     float64
	PrevClose float64
	Volume    float64
	Timestamp time.Time
}

// OptionType distinguishes calls from puts in chain data and strategy legs.
type OptionType string

const (
	OptionCall OptionType = "CALL"
	OptionPut  OptionType = "PUT"
)

// OptionQuote is one contract row of an options chain snapshot.
type OptionQuote struct {
	Symbol       string
	Type         OptionType
	Strike       float64
	LastPrice    float64
	Bid          float64
	Ask          float64
	Volume       float64
	OpenInterest float64
	Expiry       time.Time
}

// OptionChain is a point-in-time snapshot of all listed contracts for a symbol.
type OptionChain struct {
	Symbol    string
	Spot      float64
	Expiries  []time.Time
	Contracts []OptionQuote
	Timestamp time.Time
}

// ForExpiry returns the contracts expiring on the given date.
func (c *OptionChain) ForExpiry(expiry time.Time) []OptionQuote {
	var out []OptionQuote
	for _, q := range c.Contracts {
		if q.Expiry.Equal(expiry) {
			out = append(out, q)
		}
	}
	return out
}

// Contract finds a specific contract in the chain, or nil if not listed.
func (c *OptionChain) Contract(optType OptionType, strike float64, expiry time.Time) *OptionQuote {
	for i := range c.Contracts {
		q := &c.Contracts[i]
		if q.Type == optType && q.Strike == strike && q.Expiry.Equal(expiry) {
			return q
		}
	}
	return nil
}
