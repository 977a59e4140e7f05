package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"chainsim/internal/game"
	"chainsim/internal/negotiation"
	"chainsim/internal/sim"
)

func openTestLog(t *testing.T) *AuditLog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.sqlite")
	a, err := Open(DialectSQLite, "sqlite", path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestBindPlaceholders(t *testing.T) {
	sqlite := &AuditLog{dialect: DialectSQLite}
	if got := sqlite.bind(2); got != "?" {
		t.Fatalf("sqlite bind = %q", got)
	}
	pg := &AuditLog{dialect: DialectPostgres}
	if got := pg.bind(2); got != "$2" {
		t.Fatalf("postgres bind = %q", got)
	}

	q := pg.insertQuery("rounds", []string{"a", "b", "c"})
	want := "INSERT INTO rounds (a, b, c) VALUES ($1, $2, $3)"
	if q != want {
		t.Fatalf("insert query = %q, want %q", q, want)
	}
}

func TestRecordAndReadBack(t *testing.T) {
	a := openTestLog(t)
	ctx := context.Background()

	round := game.RoundSummary{
		Round: 1,
		Result: sim.RoundResult{
			OrderQuantity:  100,
			RealizedDemand: 70,
			Sales:          70,
			BuyerProfit:    2590,
			SupplierProfit: 25,
		},
		Contract: sim.Contract{WholesalePrice: 9, BuybackPrice: 4, Type: sim.ContractBuyback},
	}
	if err := a.RecordRound(ctx, "sess-1", round); err != nil {
		t.Fatalf("record round: %v", err)
	}
	if err := a.RecordRound(ctx, "sess-1", round); err != nil {
		t.Fatalf("record round 2: %v", err)
	}

	n, err := a.SessionRoundCount(ctx, "sess-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("round count = %d, want 2", n)
	}

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := negotiation.Record{
		Transcript:    []negotiation.Turn{{Role: negotiation.RoleStudent, Text: "deal?"}},
		FinalDecision: negotiation.DecisionAccept,
		StartedAt:     start,
		EndedAt:       start.Add(time.Minute),
	}
	if err := a.RecordNegotiation(ctx, "sess-1", rec); err != nil {
		t.Fatalf("record negotiation: %v", err)
	}

	sum := game.Summary{
		SessionID:             "sess-1",
		TotalRounds:           5,
		RoundsPlayed:          5,
		CumulativeBuyerProfit: 1000,
		FillRate:              0.9,
	}
	if err := a.RecordGameEnd(ctx, "sess-1", sum); err != nil {
		t.Fatalf("record game end: %v", err)
	}

	results, err := a.RecentResults(ctx, 10)
	if err != nil {
		t.Fatalf("recent results: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	got := results[0]
	if got.SessionID != "sess-1" || got.RoundsPlayed != 5 || got.FillRate != 0.9 {
		t.Fatalf("result = %+v", got)
	}
	if got.EndedEarly {
		t.Fatalf("ended early should be false")
	}
}

func TestRecentResultsNewestFirst(t *testing.T) {
	a := openTestLog(t)
	ctx := context.Background()

	for _, id := range []string{"first", "second", "third"} {
		if err := a.RecordGameEnd(ctx, id, game.Summary{SessionID: id, TotalRounds: 1, RoundsPlayed: 1}); err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}

	results, err := a.RecentResults(ctx, 2)
	if err != nil {
		t.Fatalf("recent results: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 (limit)", len(results))
	}
	if results[0].SessionID != "third" || results[1].SessionID != "second" {
		t.Fatalf("order = [%s %s], want newest first", results[0].SessionID, results[1].SessionID)
	}
}
