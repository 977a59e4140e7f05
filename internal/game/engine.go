package game

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"chainsim/internal/config"
	"chainsim/internal/negotiation"
	"chainsim/internal/sim"
)

// Supplier chat lines injected by the engine itself. The student's accept
// and reject clicks become transcript turns so the provider keeps context.
const (
	acceptDraftMessage = "I accept the counteroffer."
	rejectDraftMessage = "I've rejected the previous counteroffer. Let's continue discussing terms."

	// chatFallbackMessage is used when no chat provider is configured.
	chatFallbackMessage = "I'm open to discussing contract terms. What would you like to adjust?"
	// chatErrorMessage is used when the provider call fails; the existing
	// draft, if any, is left untouched.
	chatErrorMessage = "I'm having trouble processing that. Could you rephrase your proposal?"
)

// Recorder receives append-only audit events. Implementations must not
// block gameplay; the engine logs and drops recorder errors.
type Recorder interface {
	RecordRound(ctx context.Context, sessionID string, round RoundSummary) error
	RecordNegotiation(ctx context.Context, sessionID string, rec negotiation.Record) error
	RecordGameEnd(ctx context.Context, sessionID string, sum Summary) error
}

// Engine executes gameplay operations against sessions. It is safe for
// concurrent use across sessions; callers serialize per session via the
// SessionStore.
type Engine struct {
	cfg      *config.Service
	provider negotiation.Provider
	rec      Recorder
	log      *slog.Logger
	now      func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine wires an engine. provider and rec may be nil; the engine then
// falls back to the built-in supplier evaluation and skips audit recording.
func NewEngine(cfg *config.Service, provider negotiation.Provider, rec Recorder, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		provider: provider,
		rec:      rec,
		log:      log,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start creates a new session seeded with the configured demand history.
// No contract is active yet; the student must negotiate one first.
func (e *Engine) Start(totalRounds int, method sim.DemandMethod) (*Session, error) {
	if totalRounds < 1 {
		return nil, fmt.Errorf("%w: total rounds must be at least 1", ErrInvalidArgument)
	}
	if method == "" {
		method = sim.DemandBootstrap
	}
	if !sim.ValidDemandMethod(method) {
		return nil, fmt.Errorf("%w: unknown demand method %q", ErrInvalidArgument, method)
	}

	s := &Session{
		ID:            uuid.NewString(),
		CreatedAt:     e.now(),
		TotalRounds:   totalRounds,
		Method:        method,
		DemandHistory: e.cfg.History(),
	}
	e.log.Info("game started",
		"session_id", s.ID,
		"total_rounds", totalRounds,
		"demand_method", method,
	)
	return s, nil
}

// PlaceOrder runs one round: draw demand, price the round under the active
// contract, and fold the result into the session. Preconditions are checked
// in order; a failed order leaves the session untouched.
func (e *Engine) PlaceOrder(ctx context.Context, s *Session, quantity int) (sim.RoundResult, error) {
	if s.GameOver() {
		return sim.RoundResult{}, ErrGameOver
	}
	if !s.Contract.Active() {
		return sim.RoundResult{}, ErrNoActiveContract
	}
	if quantity < 0 {
		return sim.RoundResult{}, fmt.Errorf("%w: order quantity must be non-negative", ErrInvalidArgument)
	}

	demand, err := e.draw(s.DemandHistory, s.Method)
	if err != nil {
		return sim.RoundResult{}, err
	}

	result := sim.SimulateRound(s.Contract, e.cfg.Params(), quantity, demand)

	s.Contract.RemainingRounds--
	s.RoundNumber++
	s.DemandHistory = append(s.DemandHistory, demand)
	s.CumulativeBuyerProfit += result.BuyerProfit
	s.CumulativeSupplierProfit += result.SupplierProfit
	s.TotalDemand += demand
	s.TotalSales += result.Sales
	s.TotalReturns += result.Returns
	s.TotalLeftovers += result.Leftovers

	summary := RoundSummary{
		Round:                    s.RoundNumber,
		Result:                   result,
		Contract:                 s.Contract,
		CumulativeBuyerProfit:    s.CumulativeBuyerProfit,
		CumulativeSupplierProfit: s.CumulativeSupplierProfit,
	}
	s.Rounds = append(s.Rounds, summary)

	if e.rec != nil {
		if err := e.rec.RecordRound(ctx, s.ID, summary); err != nil {
			e.log.Warn("round audit record failed", "session_id", s.ID, "error", err)
		}
	}
	e.log.Info("round played",
		"session_id", s.ID,
		"round", s.RoundNumber,
		"order", quantity,
		"demand", demand,
		"buyer_profit", result.BuyerProfit,
	)
	return result, nil
}

// Propose submits an initial contract proposal to the supplier. The
// proposal is validated against the instructor constraints before any state
// changes; only then is a still-open negotiation abandoned and a fresh one
// opened. The supplier answers accept or reject, never a counteroffer.
func (e *Engine) Propose(ctx context.Context, s *Session, proposed sim.Contract) (negotiation.Decision, string, error) {
	if s.GameOver() {
		return "", "", ErrGameOver
	}
	if s.Contract.Active() {
		return "", "", ErrContractAlreadyActive
	}
	if err := e.cfg.Negotiation().Validate(proposed); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	now := e.now()
	e.abandonOpen(ctx, s, now)
	s.Open = &negotiation.State{FixedType: proposed.Type, StartedAt: now}

	decision, message := e.judgeProposal(ctx, s, proposed)
	if decision == negotiation.DecisionAccept {
		s.Contract = sim.NewContract(proposed)
		activated := s.Contract
		e.closeNegotiation(ctx, s, negotiation.DecisionAccept, &activated)
		e.log.Info("contract accepted",
			"session_id", s.ID,
			"contract_type", activated.Type,
			"wholesale_price", activated.WholesalePrice,
			"length", activated.Length,
		)
	} else {
		// Rejection keeps the negotiation open; the student may continue
		// in chat with the supplier's objection already on the record.
		s.Open.Append(negotiation.RoleSupplier, message)
	}
	return decision, message, nil
}

// Chat exchanges one free-form message with the supplier. With no open
// negotiation a chat implicitly opens one fixed to the buyback type. The
// returned draft is non-nil only when this exchange produced a new one.
func (e *Engine) Chat(ctx context.Context, s *Session, message string) (string, *sim.Contract, error) {
	if s.GameOver() {
		return "", nil, ErrGameOver
	}
	if s.Open == nil {
		s.Open = &negotiation.State{FixedType: sim.ContractBuyback, StartedAt: e.now()}
	}
	s.Open.Append(negotiation.RoleStudent, message)

	reply, rawDraft := e.supplierReply(ctx, s)
	s.Open.Append(negotiation.RoleSupplier, reply)

	var newDraft *sim.Contract
	if rawDraft != nil {
		if clamped, ok := e.cfg.Negotiation().ClampDraft(*rawDraft, s.Open.FixedType); ok {
			s.Open.Draft = &clamped
			newDraft = s.Open.Draft
		} else {
			e.log.Warn("discarded structurally invalid draft", "session_id", s.ID)
		}
	}
	return reply, newDraft, nil
}

// ResolveDraft accepts or rejects the draft currently on the table.
// Accepting activates it and closes the negotiation; rejecting clears the
// draft but keeps the conversation alive. Rejecting with no draft is a
// no-op so a stale client cannot corrupt the transcript.
func (e *Engine) ResolveDraft(ctx context.Context, s *Session, accept bool) error {
	if s.GameOver() {
		return ErrGameOver
	}
	if accept {
		if s.Open == nil || s.Open.Draft == nil {
			return ErrNoDraftAvailable
		}
		s.Open.Append(negotiation.RoleStudent, acceptDraftMessage)
		s.Contract = sim.NewContract(*s.Open.Draft)
		activated := s.Contract
		e.closeNegotiation(ctx, s, negotiation.DecisionAccept, &activated)
		e.log.Info("draft contract accepted",
			"session_id", s.ID,
			"contract_type", activated.Type,
			"wholesale_price", activated.WholesalePrice,
		)
		return nil
	}
	if s.Open != nil && s.Open.Draft != nil {
		s.Open.Append(negotiation.RoleStudent, rejectDraftMessage)
		s.Open.Draft = nil
	}
	return nil
}

// EndEarly finishes the game before all rounds are played. Any negotiation
// still open is closed into history immediately.
func (e *Engine) EndEarly(ctx context.Context, s *Session) error {
	if s.GameOver() {
		return ErrGameOver
	}
	s.EndedEarly = true
	e.closeOpenAtGameEnd(ctx, s)
	e.log.Info("game ended early", "session_id", s.ID, "rounds_played", s.RoundsPlayed())
	return nil
}

// draw serializes demand generation; the shared rng is not goroutine safe.
func (e *Engine) draw(history []int, method sim.DemandMethod) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sim.GenerateDemand(e.rng, history, method)
}

func (e *Engine) econContext(s *Session) negotiation.EconContext {
	return negotiation.EconContext{
		Params:       e.cfg.Params(),
		History:      s.DemandHistory,
		RoundsPlayed: s.RoundsPlayed(),
		TotalRounds:  s.TotalRounds,
	}
}

// judgeProposal routes a proposal to the provider, falling back to the pure
// evaluation when the provider is absent, fails, or answers outside
// accept/reject. A buyback at or above wholesale never reaches the
// provider; that rejection is structural.
func (e *Engine) judgeProposal(ctx context.Context, s *Session, proposed sim.Contract) (negotiation.Decision, string) {
	params := e.cfg.Params()
	if proposed.BuybackPrice >= proposed.WholesalePrice || e.provider == nil {
		return negotiation.Evaluate(proposed, params)
	}

	decision, message, err := e.provider.EvaluateProposal(ctx, proposed, e.econContext(s))
	if err != nil {
		e.log.Warn("proposal evaluation provider failed, using fallback", "session_id", s.ID, "error", err)
		return negotiation.Evaluate(proposed, params)
	}
	if decision != negotiation.DecisionAccept && decision != negotiation.DecisionReject {
		e.log.Warn("provider returned non-terminal decision, using fallback", "session_id", s.ID, "decision", decision)
		return negotiation.Evaluate(proposed, params)
	}
	return decision, message
}

func (e *Engine) supplierReply(ctx context.Context, s *Session) (string, *sim.Contract) {
	if e.provider == nil {
		return chatFallbackMessage, nil
	}
	reply, draft, err := e.provider.ContinueChat(ctx, s.Open.Transcript, s.Open.Draft, e.econContext(s), s.Open.FixedType)
	if err != nil {
		e.log.Warn("chat provider failed, using fallback", "session_id", s.ID, "error", err)
		return chatErrorMessage, nil
	}
	return reply, draft
}

// closeNegotiation closes the open negotiation with a terminal decision,
// appends the record, and clears the open state.
func (e *Engine) closeNegotiation(ctx context.Context, s *Session, decision negotiation.Decision, final *sim.Contract) {
	rec := s.Open.Close(decision, final, e.now())
	s.NegotiationHistory = append(s.NegotiationHistory, rec)
	s.Open = nil
	e.recordNegotiation(ctx, s.ID, rec)
}

// abandonOpen records a still-open negotiation as abandoned before a new
// proposal replaces it. An untouched negotiation (no turns, no draft)
// leaves no record.
func (e *Engine) abandonOpen(ctx context.Context, s *Session, now time.Time) {
	o := s.Open
	if o == nil {
		return
	}
	s.Open = nil
	if len(o.Transcript) == 0 && o.Draft == nil {
		return
	}
	rec := o.Close(negotiation.DecisionAbandoned, nil, now)
	s.NegotiationHistory = append(s.NegotiationHistory, rec)
	e.recordNegotiation(ctx, s.ID, rec)
}

// closeOpenAtGameEnd folds an in-flight negotiation into history when the
// game ends. With a draft on the table the outcome is recorded as ongoing,
// otherwise as rejected. The open state is kept so that if both terminal
// paths run (end-early then summary) the Matches check deduplicates the
// second record.
func (e *Engine) closeOpenAtGameEnd(ctx context.Context, s *Session) {
	o := s.Open
	if o == nil || (len(o.Transcript) == 0 && o.Draft == nil) {
		return
	}
	if n := len(s.NegotiationHistory); n > 0 && s.NegotiationHistory[n-1].Matches(o) {
		return
	}
	decision := negotiation.DecisionReject
	var final *sim.Contract
	if o.Draft != nil {
		decision = negotiation.DecisionOngoing
		d := *o.Draft
		final = &d
	}
	rec := o.Close(decision, final, e.now())
	s.NegotiationHistory = append(s.NegotiationHistory, rec)
	e.recordNegotiation(ctx, s.ID, rec)
}

func (e *Engine) recordNegotiation(ctx context.Context, sessionID string, rec negotiation.Record) {
	if e.rec == nil {
		return
	}
	if err := e.rec.RecordNegotiation(ctx, sessionID, rec); err != nil {
		e.log.Warn("negotiation audit record failed", "session_id", sessionID, "error", err)
	}
}
