package sim

import (
	"errors"
	"math"
	"math/rand"
)

// DemandMethod selects how per-round demand is drawn from history.
type DemandMethod string

const (
	// DemandBootstrap resamples uniformly from the observed history.
	DemandBootstrap DemandMethod = "bootstrap"
	// DemandNormal fits a normal distribution to the history and draws
	// from it, clamped at zero.
	DemandNormal DemandMethod = "normal"
)

var (
	// ErrNoHistory is returned when demand is requested with an empty
	// history series.
	ErrNoHistory = errors.New("demand history is empty")
	// ErrUnknownDemandMethod is returned for a method outside
	// {bootstrap, normal}.
	ErrUnknownDemandMethod = errors.New("unknown demand generation method")
)

// ValidDemandMethod reports whether m is a supported generation method.
func ValidDemandMethod(m DemandMethod) bool {
	return m == DemandBootstrap || m == DemandNormal
}

// GenerateDemand draws one demand value from history using the given
// method. The caller appends the returned value back onto the session's
// history, so bootstrap draws are path-dependent across a game: every
// realized round enlarges the resampling population.
func GenerateDemand(rng *rand.Rand, history []int, method DemandMethod) (int, error) {
	if len(history) == 0 {
		return 0, ErrNoHistory
	}

	switch method {
	case DemandBootstrap:
		return history[rng.Intn(len(history))], nil

	case DemandNormal:
		mean, stdev := historyStats(history)
		d := int(rng.NormFloat64()*stdev + mean)
		if d < 0 {
			d = 0
		}
		return d, nil

	default:
		return 0, ErrUnknownDemandMethod
	}
}

// historyStats returns the sample mean and sample standard deviation.
// A single-element history gets stdev 1 to avoid division by zero.
func historyStats(history []int) (mean, stdev float64) {
	n := float64(len(history))
	var sum float64
	for _, v := range history {
		sum += float64(v)
	}
	mean = sum / n

	if len(history) == 1 {
		return mean, 1
	}

	var ss float64
	for _, v := range history {
		d := float64(v) - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / (n - 1))
}
