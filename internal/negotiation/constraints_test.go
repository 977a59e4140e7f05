package negotiation

import (
	"testing"
	"time"

	"chainsim/internal/sim"
)

func TestConstraintsValidate(t *testing.T) {
	c := DefaultConstraints()

	ok := sim.Contract{
		WholesalePrice: 17, BuybackPrice: 5,
		CapType: sim.CapFraction, CapValue: 0.3,
		Length: 3, Type: sim.ContractBuyback,
	}
	if err := c.Validate(ok); err != nil {
		t.Fatalf("valid proposal rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(sim.Contract) sim.Contract
	}{
		{"bad_type", func(p sim.Contract) sim.Contract { p.Type = "consignment"; return p }},
		{"length_low", func(p sim.Contract) sim.Contract { p.Length = 0; return p }},
		{"length_high", func(p sim.Contract) sim.Contract { p.Length = 11; return p }},
		{"cap_type", func(p sim.Contract) sim.Contract { p.CapType = sim.CapUnit; return p }},
		{"cap_value_high", func(p sim.Contract) sim.Contract { p.CapValue = 0.9; return p }},
		{"negative_price", func(p sim.Contract) sim.Contract { p.WholesalePrice = -1; return p }},
	}
	for _, tc := range tests {
		if err := c.Validate(tc.mutate(ok)); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestConstraintsValidateRevenueShareBounds(t *testing.T) {
	c := DefaultConstraints()
	c.RevenueShareMin = 0.1
	c.RevenueShareMax = 0.4

	p := sim.Contract{
		WholesalePrice: 17, BuybackPrice: 5,
		CapType: sim.CapFraction, CapValue: 0.3,
		Length: 3, Type: sim.ContractRevenueSharing, RevenueShare: 0.05,
	}
	if err := c.Validate(p); err == nil {
		t.Fatalf("revenue share below minimum should fail")
	}
	p.RevenueShare = 0.2
	if err := c.Validate(p); err != nil {
		t.Fatalf("in-range revenue share rejected: %v", err)
	}

	// Share bounds do not apply to plain buyback contracts.
	p.Type = sim.ContractBuyback
	p.RevenueShare = 0
	if err := c.Validate(p); err != nil {
		t.Fatalf("buyback proposal should ignore share bounds: %v", err)
	}
}

func TestClampDraft(t *testing.T) {
	c := DefaultConstraints()

	draft := sim.Contract{
		WholesalePrice: 18, BuybackPrice: 6,
		CapType: sim.CapUnit, CapValue: 0.9,
		Length: 25, Type: sim.ContractRevenueSharing, RevenueShare: 1.5,
	}
	got, ok := c.ClampDraft(draft, sim.ContractBuyback)
	if !ok {
		t.Fatalf("structurally valid draft discarded")
	}
	if got.Type != sim.ContractBuyback {
		t.Fatalf("fixed type not enforced: %s", got.Type)
	}
	if got.CapType != sim.CapFraction {
		t.Fatalf("cap type not clamped to allowed rule: %s", got.CapType)
	}
	if got.Length != 10 {
		t.Fatalf("length = %d, want clamp to 10", got.Length)
	}
	if got.CapValue != 0.5 {
		t.Fatalf("cap value = %v, want clamp to 0.5", got.CapValue)
	}
	if got.RevenueShare != 1.0 {
		t.Fatalf("revenue share = %v, want clamp to 1.0", got.RevenueShare)
	}
}

func TestClampDraftDiscardsInvalidStructure(t *testing.T) {
	c := DefaultConstraints()
	invalid := []sim.Contract{
		{WholesalePrice: 0, BuybackPrice: 0},
		{WholesalePrice: 10, BuybackPrice: 10},
		{WholesalePrice: 10, BuybackPrice: 12},
		{WholesalePrice: 10, BuybackPrice: -1},
	}
	for i, d := range invalid {
		if _, ok := c.ClampDraft(d, sim.ContractBuyback); ok {
			t.Fatalf("draft %d should be discarded: %+v", i, d)
		}
	}
}

func TestRecordMatches(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	state := &State{
		FixedType: sim.ContractBuyback,
		StartedAt: start,
	}
	state.Append(RoleStudent, "how about $15 wholesale?")
	state.Append(RoleSupplier, "too low for me")

	rec := state.Close(DecisionReject, nil, start.Add(time.Minute))
	if !rec.Matches(state) {
		t.Fatalf("record should match the state it was closed from")
	}

	// Any additional turn breaks the match.
	state.Append(RoleStudent, "then $18?")
	if rec.Matches(state) {
		t.Fatalf("record should not match after transcript grew")
	}

	other := &State{StartedAt: start.Add(time.Second)}
	if rec.Matches(other) {
		t.Fatalf("record should not match a different start time")
	}
	if rec.Matches(nil) {
		t.Fatalf("record should not match nil state")
	}
}

func TestCloseCopiesTranscript(t *testing.T) {
	state := &State{StartedAt: time.Now()}
	state.Append(RoleStudent, "hello")
	rec := state.Close(DecisionAbandoned, nil, time.Now())

	state.Transcript[0].Text = "mutated"
	if rec.Transcript[0].Text != "hello" {
		t.Fatalf("closed record transcript should be an independent copy")
	}
}
