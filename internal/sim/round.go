package sim

import "math"

// RoundResult is the full economic outcome of one round. Every monetary
// component is reported individually so downstream reporting can reconcile
// the aggregated totals:
//
//	BuyerRevenue  = RetailRevenue + SalvageRevenueBuyer + BuybackRefundBuyer
//	BuyerCost     = WholesaleCostBuyer + ReturnShippingCostBuyer + RevenueSharePaymentBuyer
//	BuyerProfit   = BuyerRevenue - BuyerCost
//
// and symmetrically for the supplier.
type RoundResult struct {
	OrderQuantity  int `json:"order_quantity"`
	RealizedDemand int `json:"realized_demand"`

	Sales     int `json:"sales"`
	Unsold    int `json:"unsold"`
	Returns   int `json:"returns"`
	Leftovers int `json:"leftovers"`

	BuyerRevenue    float64 `json:"buyer_revenue"`
	BuyerCost       float64 `json:"buyer_cost"`
	BuyerProfit     float64 `json:"buyer_profit"`
	SupplierRevenue float64 `json:"supplier_revenue"`
	SupplierCost    float64 `json:"supplier_cost"`
	SupplierProfit  float64 `json:"supplier_profit"`

	RetailRevenue            float64 `json:"retail_revenue"`
	SalvageRevenueBuyer      float64 `json:"salvage_revenue_buyer"`
	BuybackRefundBuyer       float64 `json:"buyback_refund_buyer"`
	WholesaleCostBuyer       float64 `json:"wholesale_cost_buyer"`
	ReturnShippingCostBuyer  float64 `json:"return_shipping_cost_buyer"`
	RevenueSharePaymentBuyer float64 `json:"revenue_share_payment_buyer"`

	WholesaleRevenueSupplier    float64 `json:"wholesale_revenue_supplier"`
	SalvageRevenueSupplier      float64 `json:"salvage_revenue_supplier"`
	ProductionCostSupplier      float64 `json:"production_cost_supplier"`
	BuybackCostSupplier         float64 `json:"buyback_cost_supplier"`
	ReturnHandlingCostSupplier  float64 `json:"return_handling_cost_supplier"`
	RevenueShareRevenueSupplier float64 `json:"revenue_share_revenue_supplier"`
}

// returnCap converts the contract cap to a unit ceiling for a given order.
func returnCap(c Contract, order int) int {
	if c.CapType == CapFraction {
		return int(math.Floor(c.CapValue * float64(order)))
	}
	return int(math.Floor(c.CapValue))
}

func clampShare(share float64) float64 {
	return math.Max(0, math.Min(share, 1))
}

// SimulateRound prices one round under the given contract and parameters.
// It is pure: the caller is responsible for decrementing the contract's
// RemainingRounds and for recording the result.
func SimulateRound(c Contract, p EconomicParams, order, demand int) RoundResult {
	sales := min(order, demand)
	unsold := max(order-demand, 0)

	r := RoundResult{
		OrderQuantity:  order,
		RealizedDemand: demand,
		Sales:          sales,
		Unsold:         unsold,
		Leftovers:      unsold,
	}

	switch c.Type {
	case ContractBuyback:
		r.Returns = min(unsold, returnCap(c, order))
		r.Leftovers = unsold - r.Returns

		r.RetailRevenue = p.RetailPrice * float64(sales)
		r.SalvageRevenueBuyer = p.BuyerSalvageValue * float64(r.Leftovers)
		r.BuybackRefundBuyer = c.BuybackPrice * float64(r.Returns)
		r.WholesaleCostBuyer = c.WholesalePrice * float64(order)
		r.ReturnShippingCostBuyer = p.ReturnShippingBuyer * float64(r.Returns)

		r.WholesaleRevenueSupplier = c.WholesalePrice * float64(order)
		r.SalvageRevenueSupplier = p.SupplierSalvageValue * float64(r.Returns)
		r.ProductionCostSupplier = p.SupplierCost * float64(order)
		r.BuybackCostSupplier = c.BuybackPrice * float64(r.Returns)
		r.ReturnHandlingCostSupplier = p.ReturnHandlingSupplier * float64(r.Returns)

	case ContractRevenueSharing:
		// No returns under pure revenue sharing; the buyer keeps unsold units.
		share := clampShare(c.RevenueShare)

		r.RetailRevenue = p.RetailPrice * float64(sales)
		r.RevenueSharePaymentBuyer = share * r.RetailRevenue
		r.SalvageRevenueBuyer = p.BuyerSalvageValue * float64(r.Leftovers)
		r.WholesaleCostBuyer = c.WholesalePrice * float64(order)

		r.WholesaleRevenueSupplier = c.WholesalePrice * float64(order)
		r.RevenueShareRevenueSupplier = share * r.RetailRevenue
		r.ProductionCostSupplier = p.SupplierCost * float64(order)

	case ContractHybrid:
		// Union of both mechanisms: buyback returns plus the revenue-share
		// transfer on retail sales.
		r.Returns = min(unsold, returnCap(c, order))
		r.Leftovers = unsold - r.Returns
		share := clampShare(c.RevenueShare)

		r.RetailRevenue = p.RetailPrice * float64(sales)
		r.RevenueSharePaymentBuyer = share * r.RetailRevenue
		r.SalvageRevenueBuyer = p.BuyerSalvageValue * float64(r.Leftovers)
		r.BuybackRefundBuyer = c.BuybackPrice * float64(r.Returns)
		r.WholesaleCostBuyer = c.WholesalePrice * float64(order)
		r.ReturnShippingCostBuyer = p.ReturnShippingBuyer * float64(r.Returns)

		r.WholesaleRevenueSupplier = c.WholesalePrice * float64(order)
		r.RevenueShareRevenueSupplier = share * r.RetailRevenue
		r.SalvageRevenueSupplier = p.SupplierSalvageValue * float64(r.Returns)
		r.ProductionCostSupplier = p.SupplierCost * float64(order)
		r.BuybackCostSupplier = c.BuybackPrice * float64(r.Returns)
		r.ReturnHandlingCostSupplier = p.ReturnHandlingSupplier * float64(r.Returns)

	default:
		// Plain wholesale: no returns, no revenue share.
		r.RetailRevenue = p.RetailPrice * float64(sales)
		r.SalvageRevenueBuyer = p.BuyerSalvageValue * float64(r.Leftovers)
		r.WholesaleCostBuyer = c.WholesalePrice * float64(order)

		r.WholesaleRevenueSupplier = c.WholesalePrice * float64(order)
		r.ProductionCostSupplier = p.SupplierCost * float64(order)
	}

	r.BuyerRevenue = r.RetailRevenue + r.SalvageRevenueBuyer + r.BuybackRefundBuyer
	r.BuyerCost = r.WholesaleCostBuyer + r.ReturnShippingCostBuyer + r.RevenueSharePaymentBuyer
	r.BuyerProfit = r.BuyerRevenue - r.BuyerCost

	r.SupplierRevenue = r.WholesaleRevenueSupplier + r.SalvageRevenueSupplier + r.RevenueShareRevenueSupplier
	r.SupplierCost = r.ProductionCostSupplier + r.BuybackCostSupplier + r.ReturnHandlingCostSupplier
	r.SupplierProfit = r.SupplierRevenue - r.SupplierCost

	return r
}
