package negotiation

import (
	"fmt"

	"chainsim/internal/sim"
)

// CapTypeRule restricts which cap types proposals may use.
type CapTypeRule string

const (
	CapAllowFraction CapTypeRule = "fraction"
	CapAllowUnit     CapTypeRule = "unit"
	CapAllowBoth     CapTypeRule = "both"
)

// Constraints are the instructor-configured bounds a proposal must fall
// within before the supplier even looks at it. Drafts coming back from the
// chat provider are clamped into the same bounds.
type Constraints struct {
	ContractTypes   []sim.ContractType `yaml:"contract_types_available"`
	LengthMin       int                `yaml:"length_min"`
	LengthMax       int                `yaml:"length_max"`
	CapTypeAllowed  CapTypeRule        `yaml:"cap_type_allowed"`
	CapValueMin     float64            `yaml:"cap_value_min"`
	CapValueMax     float64            `yaml:"cap_value_max"`
	RevenueShareMin float64            `yaml:"revenue_share_min"`
	RevenueShareMax float64            `yaml:"revenue_share_max"`
}

// DefaultConstraints mirrors the built-in negotiation configuration.
func DefaultConstraints() Constraints {
	return Constraints{
		ContractTypes:   []sim.ContractType{sim.ContractBuyback, sim.ContractRevenueSharing, sim.ContractHybrid},
		LengthMin:       1,
		LengthMax:       10,
		CapTypeAllowed:  CapAllowFraction,
		CapValueMin:     0.0,
		CapValueMax:     0.5,
		RevenueShareMin: 0.0,
		RevenueShareMax: 1.0,
	}
}

// TypeAllowed reports whether the instructor permits the contract type.
func (c Constraints) TypeAllowed(t sim.ContractType) bool {
	for _, allowed := range c.ContractTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

func (c Constraints) capTypeAllowed(t sim.CapType) bool {
	switch c.CapTypeAllowed {
	case CapAllowBoth:
		return t == sim.CapFraction || t == sim.CapUnit
	case CapAllowUnit:
		return t == sim.CapUnit
	default:
		return t == sim.CapFraction
	}
}

// Validate checks an initial proposal against the constraints. The
// returned error describes the first violated bound; a nil error means the
// proposal may be handed to the supplier.
func (c Constraints) Validate(proposed sim.Contract) error {
	if !sim.ValidContractType(proposed.Type) || !c.TypeAllowed(proposed.Type) {
		return fmt.Errorf("contract type %q is not available", proposed.Type)
	}
	if proposed.Length < c.LengthMin || proposed.Length > c.LengthMax {
		return fmt.Errorf("contract length must be between %d and %d rounds", c.LengthMin, c.LengthMax)
	}
	if !c.capTypeAllowed(proposed.CapType) {
		return fmt.Errorf("cap type %q is not allowed", proposed.CapType)
	}
	if proposed.CapValue < c.CapValueMin || proposed.CapValue > c.CapValueMax {
		return fmt.Errorf("cap value must be between %g and %g", c.CapValueMin, c.CapValueMax)
	}
	if proposed.WholesalePrice < 0 || proposed.BuybackPrice < 0 {
		return fmt.Errorf("prices must be non-negative")
	}
	if proposed.Type == sim.ContractRevenueSharing || proposed.Type == sim.ContractHybrid {
		if proposed.RevenueShare < c.RevenueShareMin || proposed.RevenueShare > c.RevenueShareMax {
			return fmt.Errorf("revenue share must be between %g and %g", c.RevenueShareMin, c.RevenueShareMax)
		}
	}
	return nil
}

// ClampDraft sanitizes a draft contract returned by the chat provider.
// The fixed contract type is enforced, out-of-range fields are pulled back
// into bounds, and structurally invalid drafts are discarded (nil, false).
func (c Constraints) ClampDraft(draft sim.Contract, fixedType sim.ContractType) (sim.Contract, bool) {
	if draft.WholesalePrice <= 0 || draft.BuybackPrice < 0 || draft.BuybackPrice >= draft.WholesalePrice {
		return sim.Contract{}, false
	}

	draft.Type = fixedType
	if !sim.ValidContractType(draft.Type) {
		draft.Type = sim.ContractBuyback
	}
	if !c.capTypeAllowed(draft.CapType) {
		if c.CapTypeAllowed == CapAllowUnit {
			draft.CapType = sim.CapUnit
		} else {
			draft.CapType = sim.CapFraction
		}
	}

	if draft.Length < c.LengthMin {
		draft.Length = c.LengthMin
	}
	if draft.Length > c.LengthMax {
		draft.Length = c.LengthMax
	}

	if draft.CapValue < c.CapValueMin {
		draft.CapValue = c.CapValueMin
	}
	if draft.CapType == sim.CapFraction && draft.CapValue > c.CapValueMax {
		draft.CapValue = c.CapValueMax
	}

	if draft.RevenueShare < c.RevenueShareMin {
		draft.RevenueShare = c.RevenueShareMin
	}
	if draft.RevenueShare > c.RevenueShareMax {
		draft.RevenueShare = c.RevenueShareMax
	}

	return draft, true
}
