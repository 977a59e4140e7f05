package negotiation

import "chainsim/internal/sim"

// Margin thresholds for the fallback evaluation. The supplier needs at
// least one dollar of margin over cost, four more before demand risk is
// worth carrying, and a dollar of daylight between wholesale and buyback.
const (
	minMarginOverCost = 1.0
	riskBuffer        = 4.0
	minBuybackSpread  = 1.0
)

// Evaluate is the pure supplier-side evaluation of an initial proposal,
// used whenever no external decision provider is configured or it fails.
// It only ever accepts or rejects; counteroffers come from chat.
func Evaluate(proposed sim.Contract, params sim.EconomicParams) (Decision, string) {
	if proposed.BuybackPrice >= proposed.WholesalePrice {
		return DecisionReject,
			"I cannot accept a buyback price that is greater than or equal to the wholesale price. The contract structure must be balanced."
	}

	minWholesale := params.SupplierCost + minMarginOverCost
	acceptableWholesale := minWholesale + riskBuffer

	if proposed.WholesalePrice < minWholesale {
		return DecisionReject,
			"The wholesale price is too low for me to operate profitably. Please propose a higher wholesale price."
	}
	if proposed.BuybackPrice > proposed.WholesalePrice-minBuybackSpread {
		return DecisionReject,
			"The buyback price is too high relative to the wholesale price. The buyback should be at least $1 below the wholesale price."
	}
	if proposed.WholesalePrice < acceptableWholesale {
		return DecisionReject,
			"The wholesale price is too low given the demand risk. I'd need a higher price to make this work."
	}

	return DecisionAccept, "These terms are acceptable to me. The contract is now active."
}
