// Package config loads the instructor-editable game configuration:
// economic parameters and negotiation constraints from YAML, and the seed
// demand history from CSV. A Service holds the in-memory snapshot and
// swaps it atomically on reload, so a round that started before a reload
// never sees mixed values.
package config

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"

	"chainsim/internal/negotiation"
	"chainsim/internal/sim"
)

// Paths names the files a Service reads from. Zero-value fields fall back
// to compiled-in defaults instead of failing, so the server runs with no
// config directory at all.
type Paths struct {
	EconomicParams string
	Negotiation    string
	DemandHistory  string
}

// DefaultPaths matches the repository's config/ and data/ layout.
func DefaultPaths() Paths {
	return Paths{
		EconomicParams: "config/economic_params.yaml",
		Negotiation:    "config/negotiation.yaml",
		DemandHistory:  "data/demand_history.csv",
	}
}

// DefaultHistory is the seed demand series used when no CSV is present.
func DefaultHistory() []int {
	return []int{450, 520, 480, 600, 550, 530, 490}
}

type snapshot struct {
	params      sim.EconomicParams
	history     []int
	constraints negotiation.Constraints
}

// Service serves consistent configuration snapshots and supports hot
// reload. Reads never observe a half-applied reload.
type Service struct {
	paths Paths
	log   *slog.Logger

	mu   sync.RWMutex
	snap snapshot
}

// Load builds a Service from the given paths, reading everything once.
// Missing or malformed files are logged and replaced by defaults; only an
// unreadable-but-present YAML file is treated as fatal on first load.
func Load(paths Paths, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{paths: paths, log: log}
	snap, err := s.read()
	if err != nil {
		return nil, err
	}
	s.snap = snap
	return s, nil
}

// Params returns the current economic parameters snapshot.
func (s *Service) Params() sim.EconomicParams {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.params
}

// History returns a copy of the seed demand history.
func (s *Service) History() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int, len(s.snap.history))
	copy(out, s.snap.history)
	return out
}

// Negotiation returns the current negotiation constraints snapshot.
func (s *Service) Negotiation() negotiation.Constraints {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.constraints
}

// Reload re-reads all files and swaps the snapshot atomically. Sessions
// already in flight observe the new values only for rounds simulated after
// the swap; nothing is recomputed retroactively.
func (s *Service) Reload() error {
	snap, err := s.read()
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	s.log.Info("configuration reloaded",
		"retail_price", snap.params.RetailPrice,
		"supplier_cost", snap.params.SupplierCost,
		"history_len", len(snap.history),
	)
	return nil
}

func (s *Service) read() (snapshot, error) {
	params, err := loadEconomicParams(s.paths.EconomicParams, s.log)
	if err != nil {
		return snapshot{}, err
	}
	constraints, err := loadConstraints(s.paths.Negotiation, s.log)
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{
		params:      params,
		history:     loadDemandHistory(s.paths.DemandHistory, s.log),
		constraints: constraints,
	}, nil
}

func loadEconomicParams(path string, log *slog.Logger) (sim.EconomicParams, error) {
	params := sim.DefaultParams()
	if path == "" {
		return params, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("economic params file missing, using defaults", "path", path)
			return params, nil
		}
		return params, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &params); err != nil {
		return params, fmt.Errorf("parse %s: %w", path, err)
	}
	return params, nil
}

func loadConstraints(path string, log *slog.Logger) (negotiation.Constraints, error) {
	constraints := negotiation.DefaultConstraints()
	if path == "" {
		return constraints, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("negotiation config missing, using defaults", "path", path)
			return constraints, nil
		}
		return constraints, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &constraints); err != nil {
		return constraints, fmt.Errorf("parse %s: %w", path, err)
	}
	return constraints, nil
}

// loadDemandHistory parses the first column of a CSV file as integers,
// skipping headers and blank rows. Any failure falls back to the default
// series; an unusable history would otherwise brick every new game.
func loadDemandHistory(path string, log *slog.Logger) []int {
	if path == "" {
		return DefaultHistory()
	}
	f, err := os.Open(path)
	if err != nil {
		log.Warn("demand history file missing, using defaults", "path", path)
		return DefaultHistory()
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var values []int
	rows, err := reader.ReadAll()
	if err != nil {
		log.Warn("demand history unreadable, using defaults", "path", path, "error", err)
		return DefaultHistory()
	}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		v, err := strconv.Atoi(row[0])
		if err != nil {
			continue // header or bad row
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		log.Warn("demand history has no usable rows, using defaults", "path", path)
		return DefaultHistory()
	}
	return values
}
