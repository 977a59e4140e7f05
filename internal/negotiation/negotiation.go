// Package negotiation models the contract negotiation between the student
// buyer and the supplier: transcripts, open and closed negotiation records,
// the external supplier decision capability, and the pure fallback
// evaluation used when no provider is available.
package negotiation

import (
	"time"

	"chainsim/internal/sim"
)

// Role identifies who authored a transcript turn.
type Role string

const (
	RoleStudent  Role = "student"
	RoleSupplier Role = "supplier"
)

// Turn is one message in a negotiation transcript.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Decision is the terminal outcome of a negotiation, or of a single
// proposal evaluation.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
	// DecisionOngoing marks a negotiation cut off by game end while a
	// draft was still on the table.
	DecisionOngoing Decision = "ongoing"
	// DecisionAbandoned marks a negotiation displaced by a brand-new
	// proposal before it resolved.
	DecisionAbandoned Decision = "abandoned"
)

// State is the single open negotiation a session may carry. The contract
// type is fixed by the initial proposal and never changes within one
// attempt, even when terms are renegotiated in chat.
type State struct {
	Transcript []Turn           `json:"transcript"`
	Draft      *sim.Contract    `json:"draft,omitempty"`
	FixedType  sim.ContractType `json:"fixed_type"`
	StartedAt  time.Time        `json:"started_at"`
}

// Append adds one turn to the transcript.
func (s *State) Append(role Role, text string) {
	s.Transcript = append(s.Transcript, Turn{Role: role, Text: text})
}

// Record is a closed negotiation, append-only once written.
type Record struct {
	Transcript    []Turn        `json:"transcript"`
	FinalDecision Decision      `json:"final_decision"`
	FinalContract *sim.Contract `json:"final_contract,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	EndedAt       time.Time     `json:"ended_at"`
}

// Matches reports whether r was produced from the given open negotiation:
// same start time and an identical transcript. Used to deduplicate the
// terminal closing path when it runs twice for the same game end.
func (r Record) Matches(s *State) bool {
	if s == nil || !r.StartedAt.Equal(s.StartedAt) || len(r.Transcript) != len(s.Transcript) {
		return false
	}
	for i, turn := range r.Transcript {
		if turn != s.Transcript[i] {
			return false
		}
	}
	return true
}

// Close converts the open negotiation into a Record with the given
// outcome. The transcript is copied so later mutation of the state cannot
// alter history.
func (s *State) Close(decision Decision, final *sim.Contract, endedAt time.Time) Record {
	transcript := make([]Turn, len(s.Transcript))
	copy(transcript, s.Transcript)
	return Record{
		Transcript:    transcript,
		FinalDecision: decision,
		FinalContract: final,
		StartedAt:     s.StartedAt,
		EndedAt:       endedAt,
	}
}
