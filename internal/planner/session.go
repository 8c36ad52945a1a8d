package planner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"meal-order-assistant/internal/catering"
	"meal-order-assistant/internal/llm"
)

// Session drives one end-to-end planning flow: slot selection, enrichment,
// plan generation, user review and batch execution. All state is in-memory
// and discarded when the session closes. Methods are safe for concurrent use:
// callers such as webhook handlers may deliver simultaneous updates, so every
// state transition is serialized on an internal mutex and confirmation is
// first-wins; a batch never runs twice for one approval.
type Session struct {
	client catering.Client
	gen    llm.TextGenerator // nil while the AI provider is unconfigured
	prefs  Preferences
	log    *zap.Logger
	now    func() time.Time

	mu        sync.Mutex // guards everything below
	state     State
	steps     []string // user-visible running log
	slots     []catering.Slot
	enriched  []EnrichedSlot
	history   []catering.HistoricalOrder
	proposals []Proposal
	discarded []Discarded
	results   []ExecutionResult
	lastMeta  llm.CallMeta
	err       error
}

// NewSession creates an idle planning session. gen may be nil when the AI
// provider configuration is incomplete; Start then routes to config
// collection instead of failing.
func NewSession(client catering.Client, gen llm.TextGenerator, prefs Preferences, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		client: client,
		gen:    gen,
		prefs:  prefs,
		log:    logger,
		now:    time.Now,
		state:  StateIdle,
	}
}

// Start runs the flow up to the review state. Calling it again re-enters the
// same entry point from scratch, discarding prior proposals.
func (s *Session) Start(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start(ctx)
}

// start runs the planning flow. Callers hold s.mu.
func (s *Session) start(ctx context.Context) State {
	s.reset()

	if s.gen == nil {
		s.note("AI provider is not configured; collect credentials and retry")
		s.state = StateConfigNeeded
		return s.state
	}

	from, to := WeekRange(s.now())
	s.note("fetching calendar %s to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	slots, err := s.client.FetchCalendar(ctx, from, to)
	if err != nil {
		return s.fail(fmt.Errorf("fetch calendar: %w", err))
	}
	s.slots = slots

	eligible := EligibleSlots(slots, s.prefs)
	if len(eligible) == 0 {
		s.note("no open slots left this week")
		s.state = StateFullyPlanned
		return s.state
	}
	s.note("%d slot(s) eligible for planning", len(eligible))

	s.enriched = s.enrich(ctx, eligible)
	if len(s.enriched) == 0 {
		return s.fail(ErrNoUsableMenus)
	}

	s.history = s.fetchHistory(ctx)

	proposals, discarded, meta, err := s.generate(ctx)
	s.lastMeta = meta
	if err != nil {
		return s.fail(fmt.Errorf("generate plan: %w", err))
	}
	s.discarded = discarded
	for _, d := range discarded {
		s.note("discarded generator item %s/%s: %s", d.Date, d.Period, d.Reason)
	}
	if len(proposals) == 0 {
		return s.fail(ErrNoUsablePlan)
	}
	s.proposals = proposals

	s.note("%d proposal(s) ready for review", len(proposals))
	s.state = StateReview
	return s.state
}

// enrich fetches each eligible slot's menu. Slots whose menu fetch fails or
// comes back empty are dropped from the set, not fatal for the batch.
func (s *Session) enrich(ctx context.Context, eligible []catering.Slot) []EnrichedSlot {
	var enriched []EnrichedSlot
	for _, slot := range eligible {
		menu, err := s.client.FetchDishes(ctx, slot.Channel, catering.TargetTime(slot.Period))
		if err != nil {
			s.log.Warn("menu fetch failed, dropping slot",
				zap.String("date", slot.Date), zap.String("period", string(slot.Period)), zap.Error(err))
			s.note("skipping %s %s: menu unavailable", slot.Date, slot.Period)
			continue
		}
		if len(menu) == 0 {
			s.log.Warn("empty menu, dropping slot",
				zap.String("date", slot.Date), zap.String("period", string(slot.Period)))
			s.note("skipping %s %s: empty menu", slot.Date, slot.Period)
			continue
		}
		enriched = append(enriched, EnrichedSlot{Slot: slot, Menu: menu})
	}
	return enriched
}

// fetchHistory loads the trailing order history. Failure degrades to an empty
// history rather than aborting the session.
func (s *Session) fetchHistory(ctx context.Context) []catering.HistoricalOrder {
	to := s.now()
	from := to.Add(-historyWindow)
	history, err := s.client.FetchOrderHistory(ctx, from, to)
	if err != nil {
		s.log.Warn("history fetch failed, proceeding without personalization", zap.Error(err))
		s.note("order history unavailable; planning from stated preferences only")
		return nil
	}
	return history
}

// RemoveProposal drops one proposal during review.
func (s *Session) RemoveProposal(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReview {
		return fmt.Errorf("cannot edit proposals in state %s", s.state)
	}
	if i < 0 || i >= len(s.proposals) {
		return fmt.Errorf("proposal index %d out of range", i)
	}
	s.note("removed proposal %s (%s)", s.proposals[i].DishName, s.proposals[i].Date)
	s.proposals = append(s.proposals[:i], s.proposals[i+1:]...)
	return nil
}

// Regenerate discards the current proposals and re-runs the flow.
func (s *Session) Regenerate(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateExecuting {
		return s.state, ErrBatchRunning
	}
	return s.start(ctx), nil
}

// Execute submits every approved proposal sequentially and never
// short-circuits on individual failure: the result list always has exactly
// one entry per proposal, in input order. The review-to-executing transition
// is atomic, so of two concurrent confirmations only the first runs the
// batch; the other gets a state error. The lock is released while orders are
// in flight so state queries stay responsive during submission.
func (s *Session) Execute(ctx context.Context) ([]ExecutionResult, error) {
	s.mu.Lock()
	if s.state != StateReview {
		s.mu.Unlock()
		return nil, fmt.Errorf("cannot execute in state %s", s.state)
	}
	if len(s.proposals) == 0 {
		s.mu.Unlock()
		return nil, ErrEmptyPlan
	}
	s.state = StateExecuting
	proposals := make([]Proposal, len(s.proposals))
	copy(proposals, s.proposals)
	slots := s.slots
	defaultAddressID := s.prefs.DefaultAddressID
	s.mu.Unlock()

	ex := newBatchExecutor(s.client, s.log, func(format string, args ...any) {
		s.mu.Lock()
		s.note(format, args...)
		s.mu.Unlock()
	})
	ex.seedPreferredName(ctx, defaultAddressID, proposals, slots)
	results := ex.run(ctx, proposals)

	s.mu.Lock()
	s.results = results
	s.state = StateCompleted
	ok, failed := s.summary()
	s.note("batch complete: %d ordered, %d failed", ok, failed)
	s.mu.Unlock()
	return results, nil
}

// Cancel discards session state. Not available once batch execution has
// started; an in-flight batch always runs to completion.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateExecuting {
		return ErrBatchRunning
	}
	s.reset()
	return nil
}

// Summary counts succeeded and failed execution results.
func (s *Session) Summary() (succeeded, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary()
}

func (s *Session) summary() (succeeded, failed int) {
	for _, r := range s.results {
		if r.OK {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the session-fatal error, if the session failed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Proposals returns a copy of the current proposal list.
func (s *Session) Proposals() []Proposal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Proposal, len(s.proposals))
	copy(out, s.proposals)
	return out
}

// Discarded returns the generator items dropped during reconciliation.
func (s *Session) Discarded() []Discarded {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Discarded, len(s.discarded))
	copy(out, s.discarded)
	return out
}

// Results returns the batch execution results.
func (s *Session) Results() []ExecutionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ExecutionResult, len(s.results))
	copy(out, s.results)
	return out
}

// Steps returns the user-visible running log.
func (s *Session) Steps() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.steps))
	copy(out, s.steps)
	return out
}

// LastMeta returns usage metadata for the most recent generator call.
func (s *Session) LastMeta() llm.CallMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMeta
}

func (s *Session) fail(err error) State {
	s.err = err
	s.state = StateFailed
	s.note("planning failed: %v", err)
	s.log.Error("planning session failed", zap.Error(err))
	return s.state
}

func (s *Session) reset() {
	s.state = StateIdle
	s.steps = nil
	s.slots = nil
	s.enriched = nil
	s.history = nil
	s.proposals = nil
	s.discarded = nil
	s.results = nil
	s.err = nil
}

// note appends to the running log. Callers hold s.mu.
func (s *Session) note(format string, args ...any) {
	s.steps = append(s.steps, fmt.Sprintf(format, args...))
}
