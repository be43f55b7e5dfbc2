package market

import (
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/options"
	"github.com/piquette/finance-go/quote"

	"github.com/BlockByBlockAI/stocktrading/pkg/types"
)

// YahooProvider implements DataProvider and OptionsProvider on top of the
// Yahoo Finance endpoints. Chain snapshots cover the first few listed
// expiries, which is all the strategy builders look at.
type YahooProvider struct {
	numExpiries int
	retries     int
	retryWait   time.Duration
}

func NewYahooProvider() *YahooProvider {
	return &YahooProvider{
		numExpiries: 3,
		retries:     3,
		retryWait:   2 * time.Second,
	}
}

// Quote returns the current market quote for a symbol.
func (y *YahooProvider) Quote(symbol string) (types.Quote, error) {
	var out types.Quote
	err := y.withRetry(func() error {
		q, err := quote.Get(symbol)
		if err != nil {
			return fmt.Errorf("failed to get quote for %s: %w", symbol, err)
		}
		out = types.Quote{
			Symbol:    symbol,
			Price:     q.RegularMarketPrice,
			PrevClose: q.RegularMarketPreviousClose,
			Volume:    float64(q.RegularMarketVolume),
			Timestamp: time.Now(),
		}
		return nil
	})
	return out, err
}

// HistoricalData returns up to the requested number of trailing daily bars.
func (y *YahooProvider) HistoricalData(symbol string, bars int) ([]types.OHLCV, error) {
	end := time.Now()
	// Calendar days overshoot trading days; fetch a wide window and trim.
	start := end.AddDate(0, 0, -(bars*2 + 7))

	var out []types.OHLCV
	err := y.withRetry(func() error {
		iter := chart.Get(&chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: datetime.OneDay,
		})

		out = out[:0]
		for iter.Next() {
			b := iter.Bar()
			open, _ := b.Open.Float64()
			high, _ := b.High.Float64()
			low, _ := b.Low.Float64()
			closePrice, _ := b.Close.Float64()
			out = append(out, types.OHLCV{
				Open:      open,
				High:      high,
				Low:       low,
				Close:     closePrice,
				Volume:    float64(b.Volume),
				Timestamp: time.Unix(int64(b.Timestamp), 0),
			})
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to get history for %s: %w", symbol, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(out) > bars {
		out = out[len(out)-bars:]
	}
	return out, nil
}

// Chain returns an options-chain snapshot covering the nearest expiries.
func (y *YahooProvider) Chain(symbol string) (*types.OptionChain, error) {
	q, err := y.Quote(symbol)
	if err != nil {
		return nil, err
	}

	chainSnap := &types.OptionChain{
		Symbol:    symbol,
		Spot:      q.Price,
		Timestamp: time.Now(),
	}

	err = y.withRetry(func() error {
		iter := options.GetStraddleP(&options.Params{UnderlyingSymbol: symbol})
		meta := iter.Meta()
		if meta == nil {
			return fmt.Errorf("no options metadata for %s", symbol)
		}

		expiries := meta.AllExpirationDates
		if len(expiries) > y.numExpiries {
			expiries = expiries[:y.numExpiries]
		}

		chainSnap.Expiries = chainSnap.Expiries[:0]
		chainSnap.Contracts = chainSnap.Contracts[:0]
		for _, exp := range expiries {
			expiry := time.Unix(int64(exp), 0).UTC()
			chainSnap.Expiries = append(chainSnap.Expiries, expiry)

			expIter := options.GetStraddleP(&options.Params{
				UnderlyingSymbol: symbol,
				Expiration:       datetime.FromUnix(exp),
			})
			for expIter.Next() {
				st := expIter.Straddle()
				if st.Call != nil {
					chainSnap.Contracts = append(chainSnap.Contracts,
						contractQuote(symbol, types.OptionCall, st.Call.Strike, st.Call.LastPrice,
							st.Call.Bid, st.Call.Ask, float64(st.Call.Volume), float64(st.Call.OpenInterest), expiry))
				}
				if st.Put != nil {
					chainSnap.Contracts = append(chainSnap.Contracts,
						contractQuote(symbol, types.OptionPut, st.Put.Strike, st.Put.LastPrice,
							st.Put.Bid, st.Put.Ask, float64(st.Put.Volume), float64(st.Put.OpenInterest), expiry))
				}
			}
			if err := expIter.Err(); err != nil {
				return fmt.Errorf("failed to get chain for %s exp %s: %w", symbol, expiry.Format("2006-01-02"), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chainSnap, nil
}

func contractQuote(symbol string, t types.OptionType, strike, last, bid, ask, vol, oi float64, expiry time.Time) types.OptionQuote {
	return types.OptionQuote{
		Symbol:       symbol,
		Type:         t,
		Strike:       strike,
		LastPrice:    last,
		Bid:          bid,
		Ask:          ask,
		Volume:       vol,
		OpenInterest: oi,
		Expiry:       expiry,
	}
}

func (y *YahooProvider) withRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < y.retries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt < y.retries-1 {
			time.Sleep(y.retryWait * time.Duration(attempt+1))
		}
	}
	return err
}

// StaticRatingsProvider serves analyst consensus from a fixed table, for
// simulation runs and tests. Symbols without an entry report no data.
type StaticRatingsProvider struct {
	table map[string]Ratings
}

func NewStaticRatingsProvider(table map[string]Ratings) *StaticRatingsProvider {
	if table == nil {
		table = map[string]Ratings{}
	}
	return &StaticRatingsProvider{table: table}
}

func (p *StaticRatingsProvider) Ratings(symbol string) (Ratings, error) {
	r, ok := p.table[symbol]
	if !ok {
		return Ratings{}, fmt.Errorf("no analyst ratings for %s", symbol)
	}
	return r, nil
}
