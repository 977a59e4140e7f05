package sim

import (
	"errors"
	mathrand "math/rand"
	"testing"
)

func TestGenerateDemandBootstrapReturnsHistoryValue(t *testing.T) {
	history := []int{450, 520, 480, 600, 550}
	seen := make(map[int]bool, len(history))
	for _, v := range history {
		seen[v] = true
	}

	rng := mathrand.New(mathrand.NewSource(7))
	for i := 0; i < 200; i++ {
		d, err := GenerateDemand(rng, history, DemandBootstrap)
		if err != nil {
			t.Fatalf("bootstrap draw %d: %v", i, err)
		}
		if !seen[d] {
			t.Fatalf("bootstrap returned %d, not in history", d)
		}
	}
}

func TestGenerateDemandNormalNonNegative(t *testing.T) {
	rng := mathrand.New(mathrand.NewSource(11))
	history := []int{2, 3, 1, 2, 4}
	for i := 0; i < 500; i++ {
		d, err := GenerateDemand(rng, history, DemandNormal)
		if err != nil {
			t.Fatalf("normal draw %d: %v", i, err)
		}
		if d < 0 {
			t.Fatalf("normal draw produced negative demand %d", d)
		}
	}
}

func TestGenerateDemandNormalSingleValueHistory(t *testing.T) {
	// stdev falls back to 1 so a one-element history still draws.
	rng := mathrand.New(mathrand.NewSource(3))
	d, err := GenerateDemand(rng, []int{500}, DemandNormal)
	if err != nil {
		t.Fatalf("single-value history: %v", err)
	}
	if d < 490 || d > 510 {
		t.Fatalf("draw %d implausibly far from mean 500 with stdev 1", d)
	}
}

func TestGenerateDemandErrors(t *testing.T) {
	rng := mathrand.New(mathrand.NewSource(1))

	if _, err := GenerateDemand(rng, nil, DemandBootstrap); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("empty history error = %v, want ErrNoHistory", err)
	}
	if _, err := GenerateDemand(rng, []int{1}, DemandMethod("poisson")); !errors.Is(err, ErrUnknownDemandMethod) {
		t.Fatalf("unknown method error = %v, want ErrUnknownDemandMethod", err)
	}
}

func TestHistoryStats(t *testing.T) {
	mean, stdev := historyStats([]int{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 {
		t.Fatalf("mean = %v, want 5", mean)
	}
	// Sample stdev of the classic series is ~2.138.
	if stdev < 2.13 || stdev > 2.15 {
		t.Fatalf("stdev = %v, want ~2.14", stdev)
	}

	mean, stdev = historyStats([]int{42})
	if mean != 42 || stdev != 1 {
		t.Fatalf("single element stats = %v/%v, want 42/1", mean, stdev)
	}
}

func TestValidDemandMethod(t *testing.T) {
	if !ValidDemandMethod(DemandBootstrap) || !ValidDemandMethod(DemandNormal) {
		t.Fatalf("known methods should validate")
	}
	if ValidDemandMethod(DemandMethod("uniform")) {
		t.Fatalf("unknown method should not validate")
	}
}
