package game

import (
	"context"

	"chainsim/internal/negotiation"
)

// Summary is the post-game report card: totals, cumulative profits, and
// derived performance metrics. Rates are zero, not NaN, when their
// denominator is zero.
type Summary struct {
	SessionID    string `json:"session_id"`
	TotalRounds  int    `json:"total_rounds"`
	RoundsPlayed int    `json:"rounds_played"`
	EndedEarly   bool   `json:"ended_early"`

	CumulativeBuyerProfit    float64 `json:"cumulative_buyer_profit"`
	CumulativeSupplierProfit float64 `json:"cumulative_supplier_profit"`

	TotalDemand    int `json:"total_demand"`
	TotalSales     int `json:"total_sales"`
	TotalReturns   int `json:"total_returns"`
	TotalLeftovers int `json:"total_leftovers"`

	AverageDemand float64 `json:"average_demand"`
	// FillRate is sales over demand, ReturnRate returns over sales, and
	// LeftoverRate leftovers over units the buyer ended up holding.
	FillRate     float64 `json:"fill_rate"`
	ReturnRate   float64 `json:"return_rate"`
	LeftoverRate float64 `json:"leftover_rate"`

	Rounds             []RoundSummary       `json:"rounds"`
	NegotiationHistory []negotiation.Record `json:"negotiation_history"`
}

// Summary builds the final report for a finished game. Calling it on a
// running game fails with ErrGameNotOver. Any negotiation still open at
// game end is folded into history first; repeated calls deduplicate.
func (e *Engine) Summary(ctx context.Context, s *Session) (Summary, error) {
	if !s.GameOver() {
		return Summary{}, ErrGameNotOver
	}
	e.closeOpenAtGameEnd(ctx, s)

	sum := Summary{
		SessionID:                s.ID,
		TotalRounds:              s.TotalRounds,
		RoundsPlayed:             s.RoundsPlayed(),
		EndedEarly:               s.EndedEarly,
		CumulativeBuyerProfit:    s.CumulativeBuyerProfit,
		CumulativeSupplierProfit: s.CumulativeSupplierProfit,
		TotalDemand:              s.TotalDemand,
		TotalSales:               s.TotalSales,
		TotalReturns:             s.TotalReturns,
		TotalLeftovers:           s.TotalLeftovers,
		Rounds:                   s.Rounds,
		NegotiationHistory:       s.NegotiationHistory,
	}
	if sum.RoundsPlayed > 0 {
		sum.AverageDemand = float64(sum.TotalDemand) / float64(sum.RoundsPlayed)
	}
	if sum.TotalDemand > 0 {
		sum.FillRate = float64(sum.TotalSales) / float64(sum.TotalDemand)
	}
	if sum.TotalSales > 0 {
		sum.ReturnRate = float64(sum.TotalReturns) / float64(sum.TotalSales)
	}
	if held := sum.TotalSales + sum.TotalLeftovers; held > 0 {
		sum.LeftoverRate = float64(sum.TotalLeftovers) / float64(held)
	}

	if e.rec != nil && !s.summarized {
		s.summarized = true
		if err := e.rec.RecordGameEnd(ctx, s.ID, sum); err != nil {
			e.log.Warn("game end audit record failed", "session_id", s.ID, "error", err)
		}
	}
	return sum, nil
}
