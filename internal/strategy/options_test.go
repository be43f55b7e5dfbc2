package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BlockByBlockAI/stocktrading/pkg/types"
)

func testBuilder() *StructureBuilder {
	return NewStructureBuilder(StructureConfig{
		StrikeWidthPct: 0.05,
		MinExpiryDays:  30,
		MaxExpiryDays:  60,
	})
}

func testChain(spot float64, expiry time.Time, contracts ...types.OptionQuote) *types.OptionChain {
	return &types.OptionChain{
		Symbol:    "AAPL",
		Spot:      spot,
		Expiries:  []time.Time{expiry},
		Contracts: contracts,
	}
}

func contract(t types.OptionType, strike, last float64, expiry time.Time) types.OptionQuote {
	return types.OptionQuote{Type: t, Strike: strike, LastPrice: last, Expiry: expiry}
}

func TestBuildVerticalSpread_BullCall(t *testing.T) {
	now := time.Now()
	expiry := now.AddDate(0, 0, 45)
	chain := testChain(100, expiry,
		contract(types.OptionCall, 95, 7.0, expiry),
		contract(types.OptionCall, 105, 2.0, expiry),
	)

	s := testBuilder().BuildVerticalSpread(chain, types.DirectionLong, now)
	require.NotNil(t, s)

	assert.Equal(t, types.InstrumentBullCallSpread, s.Kind)
	assert.InDelta(t, 500.0, s.NetDebit, 1e-9)
	assert.InDelta(t, 500.0, s.MaxLoss, 1e-9)
	assert.InDelta(t, 500.0, s.MaxProfit, 1e-9)
	assert.InDelta(t, 100.0, s.BreakEvenLower, 1e-9)
	require.Len(t, s.Legs, 2)
	assert.Equal(t, types.LegBuy, s.Legs[0].Action)
	assert.Equal(t, 95.0, s.Legs[0].Strike)
	assert.Equal(t, types.LegSell, s.Legs[1].Action)
	assert.Equal(t, 105.0, s.Legs[1].Strike)
}

func TestBuildVerticalSpread_BearPut(t *testing.T) {
	now := time.Now()
	expiry := now.AddDate(0, 0, 45)
	chain := testChain(100, expiry,
		contract(types.OptionPut, 95, 2.0, expiry),
		contract(types.OptionPut, 105, 7.0, expiry),
	)

	s := testBuilder().BuildVerticalSpread(chain, types.DirectionShort, now)
	require.NotNil(t, s)

	assert.Equal(t, types.InstrumentBearPutSpread, s.Kind)
	assert.InDelta(t, 500.0, s.MaxLoss, 1e-9)
	assert.InDelta(t, 500.0, s.MaxProfit, 1e-9)
	assert.Equal(t, types.LegBuy, s.Legs[0].Action)
	assert.Equal(t, 105.0, s.Legs[0].Strike)
}

func TestBuildIronCondor(t *testing.T) {
	now := time.Now()
	expiry := now.AddDate(0, 0, 45)
	chain := testChain(100, expiry,
		contract(types.OptionPut, 95, 1.0, expiry),
		contract(types.OptionPut, 98, 2.0, expiry),
		contract(types.OptionCall, 102, 2.2, expiry),
		contract(types.OptionCall, 105, 1.1, expiry),
	)

	s := testBuilder().BuildIronCondor(chain, now)
	require.NotNil(t, s)

	assert.Equal(t, types.InstrumentIronCondor, s.Kind)
	// credit = 2.0 + 2.2 - 1.0 - 1.1 = 2.1 per share
	assert.InDelta(t, 210.0, s.MaxProfit, 1e-9)
	// narrower wing is 3 points: 300 - 210 = 90
	assert.InDelta(t, 90.0, s.MaxLoss, 1e-9)
	assert.InDelta(t, -210.0, s.NetDebit, 1e-9)
	assert.InDelta(t, 95.9, s.BreakEvenLower, 1e-9)
	assert.InDelta(t, 104.1, s.BreakEvenUpper, 1e-9)
	assert.Len(t, s.Legs, 4)
}

func TestBuildButterfly(t *testing.T) {
	now := time.Now()
	expiry := now.AddDate(0, 0, 45)
	chain := testChain(100, expiry,
		contract(types.OptionCall, 95, 7.0, expiry),
		contract(types.OptionCall, 100, 3.0, expiry),
		contract(types.OptionCall, 105, 1.0, expiry),
	)

	s := testBuilder().BuildButterfly(chain, now)
	require.NotNil(t, s)

	assert.Equal(t, types.InstrumentButterfly, s.Kind)
	// debit = 7 - 2*3 + 1 = 2 per share
	assert.InDelta(t, 200.0, s.MaxLoss, 1e-9)
	assert.InDelta(t, 300.0, s.MaxProfit, 1e-9)
	require.Len(t, s.Legs, 3)
	assert.Equal(t, 2, s.Legs[1].Quantity)
	assert.Equal(t, types.LegSell, s.Legs[1].Action)
}

func TestBuild_NoExpiryInWindow(t *testing.T) {
	now := time.Now()
	expiry := now.AddDate(0, 0, 10) // too close
	chain := testChain(100, expiry,
		contract(types.OptionCall, 95, 7.0, expiry),
		contract(types.OptionCall, 105, 2.0, expiry),
	)

	assert.Nil(t, testBuilder().BuildVerticalSpread(chain, types.DirectionLong, now))
	assert.Nil(t, testBuilder().BuildIronCondor(chain, now))
	assert.Nil(t, testBuilder().BuildButterfly(chain, now))
}

func TestBuild_TooFewStrikes(t *testing.T) {
	now := time.Now()
	expiry := now.AddDate(0, 0, 45)
	chain := testChain(100, expiry,
		contract(types.OptionCall, 100, 3.0, expiry),
	)

	assert.Nil(t, testBuilder().BuildVerticalSpread(chain, types.DirectionLong, now))
	assert.Nil(t, testBuilder().BuildButterfly(chain, now))
}

func TestBuild_CreditSpreadRejected(t *testing.T) {
	now := time.Now()
	expiry := now.AddDate(0, 0, 45)
	// inverted pricing, would be a net credit
	chain := testChain(100, expiry,
		contract(types.OptionCall, 95, 2.0, expiry),
		contract(types.OptionCall, 105, 7.0, expiry),
	)

	assert.Nil(t, testBuilder().BuildVerticalSpread(chain, types.DirectionLong, now))
}

func TestMarkStructure(t *testing.T) {
	now := time.Now()
	expiry := now.AddDate(0, 0, 45)
	legs := []types.OptionLeg{
		{Type: types.OptionCall, Action: types.LegBuy, Strike: 95, Premium: 7.0, Quantity: 1},
		{Type: types.OptionCall, Action: types.LegSell, Strike: 105, Premium: 2.0, Quantity: 1},
	}
	chain := testChain(104, expiry,
		contract(types.OptionCall, 95, 9.0, expiry),
		contract(types.OptionCall, 105, 3.0, expiry),
	)

	// long leg gained 2.0, short leg lost 1.0
	assert.InDelta(t, 100.0, MarkStructure(legs, expiry, chain), 1e-9)
}

func TestMarkStructure_MissingLegStaysAtEntry(t *testing.T) {
	now := time.Now()
	expiry := now.AddDate(0, 0, 45)
	legs := []types.OptionLeg{
		{Type: types.OptionCall, Action: types.LegBuy, Strike: 95, Premium: 7.0, Quantity: 1},
		{Type: types.OptionCall, Action: types.LegSell, Strike: 105, Premium: 2.0, Quantity: 1},
	}
	chain := testChain(104, expiry,
		contract(types.OptionCall, 95, 9.0, expiry),
	)

	assert.InDelta(t, 200.0, MarkStructure(legs, expiry, chain), 1e-9)
}
