// Package game holds the session aggregate and the engine that orchestrates
// rounds and negotiations over it. All economic math lives in sim; all
// negotiation vocabulary lives in negotiation. This package owns the rules
// about what may happen when: precondition checks, the negotiation life
// cycle, and the terminal closing of a game.
package game

import (
	"time"

	"chainsim/internal/negotiation"
	"chainsim/internal/sim"
)

// RoundSummary is the immutable record of one played round: the simulation
// result plus a snapshot of the contract terms it was priced under. The
// snapshot is taken after the round, so RemainingRounds reflects the
// coverage left once the round consumed one.
type RoundSummary struct {
	Round    int             `json:"round"`
	Result   sim.RoundResult `json:"result"`
	Contract sim.Contract    `json:"contract"`

	CumulativeBuyerProfit    float64 `json:"cumulative_buyer_profit"`
	CumulativeSupplierProfit float64 `json:"cumulative_supplier_profit"`
}

// Session is the aggregate root for one student's game. It is not
// self-locking; the SessionStore serializes access so at most one request
// mutates a session at a time.
type Session struct {
	ID          string           `json:"session_id"`
	CreatedAt   time.Time        `json:"created_at"`
	TotalRounds int              `json:"total_rounds"`
	RoundNumber int              `json:"round_number"`
	Method      sim.DemandMethod `json:"demand_method"`
	EndedEarly  bool             `json:"ended_early"`

	// Contract is the zero value until a negotiation accepts one.
	Contract sim.Contract `json:"contract"`

	CumulativeBuyerProfit    float64 `json:"cumulative_buyer_profit"`
	CumulativeSupplierProfit float64 `json:"cumulative_supplier_profit"`

	TotalDemand    int `json:"total_demand"`
	TotalSales     int `json:"total_sales"`
	TotalReturns   int `json:"total_returns"`
	TotalLeftovers int `json:"total_leftovers"`

	// DemandHistory starts as the configured seed series and grows by one
	// realized value per round, so bootstrap draws resample an expanding
	// population.
	DemandHistory []int `json:"demand_history"`

	Rounds []RoundSummary `json:"rounds"`

	// Open is the at-most-one negotiation in progress, nil when none.
	Open *negotiation.State `json:"open_negotiation,omitempty"`

	// NegotiationHistory is append-only; closed negotiations never change.
	NegotiationHistory []negotiation.Record `json:"negotiation_history"`

	// summarized guards the one-shot game-end recording hook.
	summarized bool
}

// GameOver reports whether the session accepts further gameplay. A game
// ends when all rounds are played or the student ends it early; an expired
// contract alone does not end the game.
func (s *Session) GameOver() bool {
	return s.EndedEarly || s.RoundNumber >= s.TotalRounds
}

// RoundsPlayed returns the number of completed rounds.
func (s *Session) RoundsPlayed() int {
	return s.RoundNumber
}
