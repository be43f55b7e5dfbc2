package market

import "github.com/BlockByBlockAI/stocktrading/pkg/types"

// ChainStats summarizes options-flow activity for one chain snapshot.
// Money flow weighs each contract's traded value (volume × last × 100)
// positive for calls and negative for puts.
type ChainStats struct {
	TotalCallVolume float64
	TotalPutVolume  float64
	TotalCallValue  float64
	TotalPutValue   float64
	PutCallRatio    float64
	NetMoneyFlow    float64
	MoneyFlowRatio  float64
}

// BullishFlow reports whether more money is flowing into calls than puts.
func (s ChainStats) BullishFlow() bool { return s.NetMoneyFlow > 0 }

// StrongFlow reports a pronounced directional bias in the money flow.
func (s ChainStats) StrongFlow() bool {
	return s.MoneyFlowRatio > 0.3 || s.MoneyFlowRatio < -0.3
}

// HighActivity reports whether total contract volume is heavy enough to
// treat the flow as a meaningful signal.
func (s ChainStats) HighActivity() bool {
	return s.TotalCallVolume+s.TotalPutVolume > 1000
}

// ComputeChainStats derives flow statistics from a chain snapshot.
func ComputeChainStats(chain *types.OptionChain) ChainStats {
	var s ChainStats
	if chain == nil {
		return s
	}

	for _, q := range chain.Contracts {
		value := q.Volume * q.LastPrice * 100
		switch q.Type {
		case types.OptionCall:
			s.TotalCallVolume += q.Volume
			s.TotalCallValue += value
		case types.OptionPut:
			s.TotalPutVolume += q.Volume
			s.TotalPutValue += value
		}
	}

	callVol := s.TotalCallVolume
	if callVol < 1 {
		callVol = 1
	}
	s.PutCallRatio = s.TotalPutVolume / callVol

	s.NetMoneyFlow = s.TotalCallValue - s.TotalPutValue
	if total := s.TotalCallValue + s.TotalPutValue; total > 0 {
		s.MoneyFlowRatio = s.NetMoneyFlow / total
	}
	return s
}
