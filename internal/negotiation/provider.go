package negotiation

import (
	"context"

	"chainsim/internal/sim"
)

// EconContext is the economic situation handed to the external provider so
// it can reason about a proposal without reaching back into game state.
type EconContext struct {
	Params       sim.EconomicParams
	History      []int
	RoundsPlayed int
	TotalRounds  int
}

// HistoryStats summarizes the demand series for prompt building.
func (ec EconContext) HistoryStats() (min, max int, mean float64) {
	if len(ec.History) == 0 {
		return 0, 0, 0
	}
	min, max = ec.History[0], ec.History[0]
	var sum int
	for _, v := range ec.History {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	return min, max, float64(sum) / float64(len(ec.History))
}

// Provider is the external supplier brain: it judges initial proposals and
// carries the free-form chat. Implementations may be backed by an LLM or
// any other decision procedure. Callers must tolerate failure — every
// error is recovered locally via Evaluate or a static chat message and is
// never surfaced to the student as a hard failure.
type Provider interface {
	// EvaluateProposal decides accept or reject for an initial proposal.
	// It never counters; counteroffers only emerge from chat.
	EvaluateProposal(ctx context.Context, proposed sim.Contract, econ EconContext) (Decision, string, error)

	// ContinueChat produces the supplier's next message given the full
	// transcript, and optionally a draft contract when it detects the
	// student has agreed to terms. The draft's contract type must be
	// fixedType; callers clamp and validate whatever comes back.
	ContinueChat(ctx context.Context, transcript []Turn, draft *sim.Contract, econ EconContext, fixedType sim.ContractType) (string, *sim.Contract, error)
}
