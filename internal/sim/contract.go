package sim

// ContractType selects which profit mechanics apply in a round.
type ContractType string

const (
	ContractBuyback        ContractType = "buyback"
	ContractRevenueSharing ContractType = "revenue_sharing"
	ContractHybrid         ContractType = "hybrid"
)

// ValidContractType reports whether t is one of the three supported types.
func ValidContractType(t ContractType) bool {
	switch t {
	case ContractBuyback, ContractRevenueSharing, ContractHybrid:
		return true
	}
	return false
}

// CapType determines how a contract's return cap is interpreted.
type CapType string

const (
	// CapFraction caps returns at CapValue * orderQuantity.
	CapFraction CapType = "fraction"
	// CapUnit caps returns at an absolute unit count.
	CapUnit CapType = "unit"
)

// Contract is the agreement between buyer and supplier. Drafts produced
// during negotiation use the same shape; they only become binding once the
// negotiation accepts them.
type Contract struct {
	WholesalePrice  float64      `json:"wholesale_price"`
	BuybackPrice    float64      `json:"buyback_price"`
	CapType         CapType      `json:"cap_type"`
	CapValue        float64      `json:"cap_value"`
	Length          int          `json:"length"`
	RemainingRounds int          `json:"remaining_rounds"`
	Type            ContractType `json:"contract_type"`
	RevenueShare    float64      `json:"revenue_share"`
}

// NewContract returns c with RemainingRounds initialized to its length.
// Called when a negotiation accepts a contract and it goes into force.
func NewContract(c Contract) Contract {
	c.RemainingRounds = c.Length
	return c
}

// Active reports whether the contract still covers upcoming rounds.
func (c Contract) Active() bool {
	return c.RemainingRounds > 0
}
