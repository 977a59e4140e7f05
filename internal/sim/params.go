// Package sim contains the economics of the supply-chain game: contract
// terms, per-round profit calculation for each contract type, and the
// stochastic demand generator.
package sim

// EconomicParams defines the economic environment every round is priced
// against. One snapshot is taken per round so a config reload never changes
// a calculation mid-flight.
type EconomicParams struct {
	RetailPrice            float64 `yaml:"retail_price" json:"retail_price"`
	BuyerSalvageValue      float64 `yaml:"buyer_salvage_value" json:"buyer_salvage_value"`
	SupplierSalvageValue   float64 `yaml:"supplier_salvage_value" json:"supplier_salvage_value"`
	SupplierCost           float64 `yaml:"supplier_cost" json:"supplier_cost"`
	ReturnShippingBuyer    float64 `yaml:"return_shipping_buyer" json:"return_shipping_buyer"`
	ReturnHandlingSupplier float64 `yaml:"return_handling_supplier" json:"return_handling_supplier"`
}

// DefaultParams returns the built-in economic environment, used when no
// config file is present.
func DefaultParams() EconomicParams {
	return EconomicParams{
		RetailPrice:            50.0,
		BuyerSalvageValue:      3.0,
		SupplierSalvageValue:   12.0,
		SupplierCost:           12.0,
		ReturnShippingBuyer:    1.0,
		ReturnHandlingSupplier: 0.5,
	}
}
