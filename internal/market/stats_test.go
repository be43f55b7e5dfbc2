package market

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BlockByBlockAI/stocktrading/pkg/types"
)

func statsChain() *types.OptionChain {
	return &types.OptionChain{
		Symbol: "AAPL",
		Spot:   100,
		Contracts: []types.OptionQuote{
			{Type: types.OptionCall, Strike: 100, LastPrice: 5, Volume: 900},
			{Type: types.OptionCall, Strike: 105, LastPrice: 2, Volume: 100},
			{Type: types.OptionPut, Strike: 95, LastPrice: 3, Volume: 400},
		},
	}
}

func TestComputeChainStats_Flow(t *testing.T) {
	s := ComputeChainStats(statsChain())

	// Calls: 900*5*100 + 100*2*100 = 470,000. Puts: 400*3*100 = 120,000.
	assert.Equal(t, 1000.0, s.TotalCallVolume)
	assert.Equal(t, 400.0, s.TotalPutVolume)
	assert.InDelta(t, 470000.0, s.TotalCallValue, 1e-9)
	assert.InDelta(t, 120000.0, s.TotalPutValue, 1e-9)
	assert.InDelta(t, 0.4, s.PutCallRatio, 1e-9)
	assert.InDelta(t, 350000.0, s.NetMoneyFlow, 1e-9)
	assert.InDelta(t, 350000.0/590000.0, s.MoneyFlowRatio, 1e-9)

	assert.True(t, s.BullishFlow())
	assert.True(t, s.StrongFlow())
	assert.True(t, s.HighActivity())
}

func TestComputeChainStats_NilChain(t *testing.T) {
	s := ComputeChainStats(nil)

	assert.Equal(t, 0.0, s.NetMoneyFlow)
	assert.False(t, s.BullishFlow())
	assert.False(t, s.HighActivity())
}

func TestComputeChainStats_PutsOnly(t *testing.T) {
	chain := &types.OptionChain{
		Contracts: []types.OptionQuote{
			{Type: types.OptionPut, Strike: 95, LastPrice: 3, Volume: 50},
		},
	}

	s := ComputeChainStats(chain)

	// Call volume floors at 1 so the ratio stays finite.
	assert.Equal(t, 50.0, s.PutCallRatio)
	assert.False(t, s.BullishFlow())
	assert.True(t, s.StrongFlow())
}
