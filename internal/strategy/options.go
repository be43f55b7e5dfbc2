package strategy

import (
	"sort"
	"time"

	"github.com/BlockByBlockAI/stocktrading/pkg/types"
)

// contractMultiplier converts per-share option premiums to dollars per
// contract.
const contractMultiplier = 100.0

// Structure is a fully priced multi-leg options position candidate. MaxLoss
// and MaxProfit are dollars per structure, premiums already multiplied out.
type Structure struct {
	Kind           types.InstrumentType
	Legs           []types.OptionLeg
	Expiry         time.Time
	NetDebit       float64 // dollars per structure; negative for net credit
	MaxLoss        float64
	MaxProfit      float64
	BreakEvenLower float64
	BreakEvenUpper float64
}

// StructureConfig holds strike and expiry selection parameters.
type StructureConfig struct {
	StrikeWidthPct float64 // band around spot for candidate strikes
	MinExpiryDays  int
	MaxExpiryDays  int
}

// StructureBuilder prices multi-leg structures off an options chain
// snapshot. Builders return nil when the chain cannot support the structure:
// no expiry in the window, too few strikes in the band, or missing or
// unpriced contracts. A nil structure is not an error, just no trade.
type StructureBuilder struct {
	config StructureConfig
}

func NewStructureBuilder(config StructureConfig) *StructureBuilder {
	return &StructureBuilder{config: config}
}

// selectExpiry picks the nearest chain expiry inside the configured window.
func (b *StructureBuilder) selectExpiry(chain *types.OptionChain, now time.Time) (time.Time, bool) {
	if chain == nil {
		return time.Time{}, false
	}
	for _, exp := range chain.Expiries {
		days := int(exp.Sub(now).Hours() / 24)
		if days >= b.config.MinExpiryDays && days <= b.config.MaxExpiryDays {
			return exp, true
		}
	}
	return time.Time{}, false
}

// strikesFor returns the distinct strikes listed at the given expiry within
// the configured band around spot, sorted ascending.
func (b *StructureBuilder) strikesFor(chain *types.OptionChain, expiry time.Time) []float64 {
	lower := chain.Spot * (1 - b.config.StrikeWidthPct)
	upper := chain.Spot * (1 + b.config.StrikeWidthPct)

	seen := make(map[float64]bool)
	var strikes []float64
	for _, q := range chain.ForExpiry(expiry) {
		if q.Strike >= lower && q.Strike <= upper && !seen[q.Strike] {
			seen[q.Strike] = true
			strikes = append(strikes, q.Strike)
		}
	}
	sort.Float64s(strikes)
	return strikes
}

// premium returns the last traded price for a contract, or false if the
// contract is missing or has never traded.
func premium(chain *types.OptionChain, t types.OptionType, strike float64, expiry time.Time) (float64, bool) {
	q := chain.Contract(t, strike, expiry)
	if q == nil || q.LastPrice <= 0 {
		return 0, false
	}
	return q.LastPrice, true
}

// BuildVerticalSpread prices a bull call spread (long) or bear put spread
// (short): buy the strike nearer the money, sell the strike further out.
func (b *StructureBuilder) BuildVerticalSpread(chain *types.OptionChain, direction types.Direction, now time.Time) *Structure {
	expiry, ok := b.selectExpiry(chain, now)
	if !ok {
		return nil
	}
	strikes := b.strikesFor(chain, expiry)
	if len(strikes) < 2 {
		return nil
	}

	if direction == types.DirectionLong {
		return b.bullCallSpread(chain, strikes, expiry)
	}
	return b.bearPutSpread(chain, strikes, expiry)
}

func (b *StructureBuilder) bullCallSpread(chain *types.OptionChain, strikes []float64, expiry time.Time) *Structure {
	longStrike := strikes[0]
	shortStrike := strikes[len(strikes)-1]

	longPrem, ok1 := premium(chain, types.OptionCall, longStrike, expiry)
	shortPrem, ok2 := premium(chain, types.OptionCall, shortStrike, expiry)
	if !ok1 || !ok2 {
		return nil
	}

	debit := (longPrem - shortPrem) * contractMultiplier
	if debit <= 0 {
		return nil
	}
	width := (shortStrike - longStrike) * contractMultiplier

	return &Structure{
		Kind: types.InstrumentBullCallSpread,
		Legs: []types.OptionLeg{
			{Type: types.OptionCall, Action: types.LegBuy, Strike: longStrike, Premium: longPrem, Quantity: 1},
			{Type: types.OptionCall, Action: types.LegSell, Strike: shortStrike, Premium: shortPrem, Quantity: 1},
		},
		Expiry:         expiry,
		NetDebit:       debit,
		MaxLoss:        debit,
		MaxProfit:      width - debit,
		BreakEvenLower: longStrike + debit/contractMultiplier,
		BreakEvenUpper: longStrike + debit/contractMultiplier,
	}
}

func (b *StructureBuilder) bearPutSpread(chain *types.OptionChain, strikes []float64, expiry time.Time) *Structure {
	longStrike := strikes[len(strikes)-1]
	shortStrike := strikes[0]

	longPrem, ok1 := premium(chain, types.OptionPut, longStrike, expiry)
	shortPrem, ok2 := premium(chain, types.OptionPut, shortStrike, expiry)
	if !ok1 || !ok2 {
		return nil
	}

	debit := (longPrem - shortPrem) * contractMultiplier
	if debit <= 0 {
		return nil
	}
	width := (longStrike - shortStrike) * contractMultiplier

	return &Structure{
		Kind: types.InstrumentBearPutSpread,
		Legs: []types.OptionLeg{
			{Type: types.OptionPut, Action: types.LegBuy, Strike: longStrike, Premium: longPrem, Quantity: 1},
			{Type: types.OptionPut, Action: types.LegSell, Strike: shortStrike, Premium: shortPrem, Quantity: 1},
		},
		Expiry:         expiry,
		NetDebit:       debit,
		MaxLoss:        debit,
		MaxProfit:      width - debit,
		BreakEvenLower: longStrike - debit/contractMultiplier,
		BreakEvenUpper: longStrike - debit/contractMultiplier,
	}
}

// BuildIronCondor prices a four-leg range play: sell an inner put and call,
// buy an outer put and call as wings. Collected credit is the max profit;
// the narrower wing minus the credit is the max loss.
func (b *StructureBuilder) BuildIronCondor(chain *types.OptionChain, now time.Time) *Structure {
	expiry, ok := b.selectExpiry(chain, now)
	if !ok {
		return nil
	}
	strikes := b.strikesFor(chain, expiry)
	if len(strikes) < 4 {
		return nil
	}

	longPutStrike := strikes[0]
	shortPutStrike := strikes[1]
	shortCallStrike := strikes[len(strikes)-2]
	longCallStrike := strikes[len(strikes)-1]

	longPut, ok1 := premium(chain, types.OptionPut, longPutStrike, expiry)
	shortPut, ok2 := premium(chain, types.OptionPut, shortPutStrike, expiry)
	shortCall, ok3 := premium(chain, types.OptionCall, shortCallStrike, expiry)
	longCall, ok4 := premium(chain, types.OptionCall, longCallStrike, expiry)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil
	}

	credit := (shortPut + shortCall - longPut - longCall) * contractMultiplier
	if credit <= 0 {
		return nil
	}

	putWing := shortPutStrike - longPutStrike
	callWing := longCallStrike - shortCallStrike
	wing := putWing
	if callWing < wing {
		wing = callWing
	}
	maxLoss := wing*contractMultiplier - credit
	if maxLoss <= 0 {
		return nil
	}

	return &Structure{
		Kind: types.InstrumentIronCondor,
		Legs: []types.OptionLeg{
			{Type: types.OptionPut, Action: types.LegBuy, Strike: longPutStrike, Premium: longPut, Quantity: 1},
			{Type: types.OptionPut, Action: types.LegSell, Strike: shortPutStrike, Premium: shortPut, Quantity: 1},
			{Type: types.OptionCall, Action: types.LegSell, Strike: shortCallStrike, Premium: shortCall, Quantity: 1},
			{Type: types.OptionCall, Action: types.LegBuy, Strike: longCallStrike, Premium: longCall, Quantity: 1},
		},
		Expiry:         expiry,
		NetDebit:       -credit,
		MaxLoss:        maxLoss,
		MaxProfit:      credit,
		BreakEvenLower: shortPutStrike - credit/contractMultiplier,
		BreakEvenUpper: shortCallStrike + credit/contractMultiplier,
	}
}

// BuildButterfly prices a long call butterfly: buy the lowest and highest
// strikes in the band, sell two of the middle strike.
func (b *StructureBuilder) BuildButterfly(chain *types.OptionChain, now time.Time) *Structure {
	expiry, ok := b.selectExpiry(chain, now)
	if !ok {
		return nil
	}
	strikes := b.strikesFor(chain, expiry)
	if len(strikes) < 3 {
		return nil
	}

	lowerStrike := strikes[0]
	midStrike := strikes[len(strikes)/2]
	upperStrike := strikes[len(strikes)-1]
	if midStrike == lowerStrike || midStrike == upperStrike {
		return nil
	}

	lower, ok1 := premium(chain, types.OptionCall, lowerStrike, expiry)
	mid, ok2 := premium(chain, types.OptionCall, midStrike, expiry)
	upper, ok3 := premium(chain, types.OptionCall, upperStrike, expiry)
	if !ok1 || !ok2 || !ok3 {
		return nil
	}

	debit := (lower - 2*mid + upper) * contractMultiplier
	if debit <= 0 {
		return nil
	}
	maxProfit := (midStrike-lowerStrike)*contractMultiplier - debit
	if maxProfit <= 0 {
		return nil
	}

	return &Structure{
		Kind: types.InstrumentButterfly,
		Legs: []types.OptionLeg{
			{Type: types.OptionCall, Action: types.LegBuy, Strike: lowerStrike, Premium: lower, Quantity: 1},
			{Type: types.OptionCall, Action: types.LegSell, Strike: midStrike, Premium: mid, Quantity: 2},
			{Type: types.OptionCall, Action: types.LegBuy, Strike: upperStrike, Premium: upper, Quantity: 1},
		},
		Expiry:         expiry,
		NetDebit:       debit,
		MaxLoss:        debit,
		MaxProfit:      maxProfit,
		BreakEvenLower: lowerStrike + debit/contractMultiplier,
		BreakEvenUpper: upperStrike - debit/contractMultiplier,
	}
}

// MarkStructure values an open multi-leg position against a fresh chain
// snapshot and returns the mark-to-market P&L per structure in dollars.
// Long legs gain when their premium rises, short legs when it falls. A
// missing or unpriced leg leaves its contribution at entry value (zero),
// which is conservative for exit checks.
func MarkStructure(legs []types.OptionLeg, expiry time.Time, chain *types.OptionChain) float64 {
	pnl := 0.0
	for _, leg := range legs {
		last, ok := premium(chain, leg.Type, leg.Strike, expiry)
		if !ok {
			continue
		}
		change := (last - leg.Premium) * contractMultiplier * float64(leg.Quantity)
		if leg.Action == types.LegSell {
			change = -change
		}
		pnl += change
	}
	return pnl
}
