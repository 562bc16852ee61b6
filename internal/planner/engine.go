// Package planner runs the staged trip planning pipeline over persisted
// sessions: clarify, validate, produce, respond. Turns within a session
// are serialized; state is persisted atomically at the end of a
// successful turn and never mid-pipeline.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/tripflow/internal/domain"
	"github.com/ashureev/tripflow/internal/llm"
	"github.com/ashureev/tripflow/internal/store"
)

// Config tunes the engine.
type Config struct {
	// SessionTTL bounds how long an idle session survives. Zero or
	// negative keeps sessions until reset.
	SessionTTL time.Duration

	// TurnTimeout bounds a whole turn, queueing behind the session lock
	// included. Zero disables the bound.
	TurnTimeout time.Duration

	// TurnLog receives one audit event per turn when set.
	TurnLog *TurnLogger
}

// Engine drives the planning pipeline. Safe for concurrent use.
type Engine struct {
	cache    store.Cache
	gen      llm.Generator
	messages *store.MessageLog
	locks    *sessionLocks
	cfg      Config
}

// New builds an engine over the given store and generator.
func New(cache store.Cache, gen llm.Generator, cfg Config) *Engine {
	return &Engine{
		cache:    cache,
		gen:      gen,
		messages: store.NewMessageLog(cache, cfg.SessionTTL),
		locks:    newSessionLocks(),
		cfg:      cfg,
	}
}

// SubmitTurn runs one conversation turn for a session. Turns for the same
// session run one at a time, in arrival order of their lock acquisition.
//
// On success the returned state is the newly persisted one. On error the
// store is untouched and the previously persisted state is returned (nil
// for a fresh session); the error matches ErrStorage,
// ErrGenerationUnavailable or ErrTurnTimeout via errors.Is where one of
// those classes applies.
func (e *Engine) SubmitTurn(ctx context.Context, sessionID, input string) (*domain.TripState, error) {
	start := time.Now()
	turnID := uuid.NewString()

	if e.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.TurnTimeout)
		defer cancel()
	}

	release, err := e.locks.acquire(ctx, sessionID)
	if err != nil {
		err = classify(ctx, fmt.Errorf("acquire session: %w", err))
		e.logTurn(sessionID, turnID, input, nil, 0, start, err)
		return nil, err
	}
	defer release()

	raw, err := e.cache.Get(ctx, store.NamespaceState, sessionID)
	if err != nil {
		err = classify(ctx, fmt.Errorf("%w: load session state: %v", ErrStorage, err))
		e.logTurn(sessionID, turnID, input, nil, 0, start, err)
		return nil, err
	}

	prev, st, err := loadState(sessionID, raw)
	if err != nil {
		err = fmt.Errorf("%w: decode session state: %v", ErrStorage, err)
		e.logTurn(sessionID, turnID, input, nil, 0, start, err)
		return nil, err
	}

	st.BeginTurn(input)
	stageMark := len(st.StageLog)

	if err := e.runPipeline(ctx, st); err != nil {
		err = classify(ctx, err)
		e.logTurn(sessionID, turnID, input, st, stageMark, start, err)
		return prev, err
	}

	st.EndTurn()

	if err := e.saveState(ctx, st); err != nil {
		err = classify(ctx, err)
		e.logTurn(sessionID, turnID, input, st, stageMark, start, err)
		return prev, err
	}

	e.appendMessages(ctx, st)
	e.logTurn(sessionID, turnID, input, st, stageMark, start, nil)
	return st, nil
}

// GetSession returns the persisted state for a session, or (nil, nil)
// when the session is absent or expired. Reads do not take the session
// lock; a read concurrent with a turn sees the state from before it.
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*domain.TripState, error) {
	raw, err := e.cache.Get(ctx, store.NamespaceState, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: load session state: %v", ErrStorage, err)
	}
	if raw == nil {
		return nil, nil
	}

	st, err := decodeState(sessionID, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decode session state: %v", ErrStorage, err)
	}
	return st, nil
}

// Messages returns the session's transcript from the message log.
// Unknown sessions yield an empty list.
func (e *Engine) Messages(ctx context.Context, sessionID string) ([]domain.TurnEntry, error) {
	entries, err := e.messages.Messages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: load message log: %v", ErrStorage, err)
	}
	return entries, nil
}

// ResetSession removes every stored view of a session. It waits for a
// running turn to finish first so that turn's end-of-turn write cannot
// resurrect the session.
func (e *Engine) ResetSession(ctx context.Context, sessionID string) error {
	release, err := e.locks.acquire(ctx, sessionID)
	if err != nil {
		return classify(ctx, fmt.Errorf("acquire session: %w", err))
	}
	defer release()

	if err := e.cache.ClearSession(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: clear session: %v", ErrStorage, err)
	}
	return nil
}

// runPipeline advances the state machine until it reaches the terminal
// stage. Any stage error aborts the turn.
func (e *Engine) runPipeline(ctx context.Context, st *domain.TripState) error {
	for s := stageClarify; s != stageDone; s = nextStage(s, st) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.runStage(ctx, s, st); err != nil {
			return fmt.Errorf("stage %s: %w", s, err)
		}
	}
	return nil
}

// loadState decodes the stored snapshot into two independent copies: one
// to return untouched if the turn fails, one for the pipeline to mutate.
func loadState(sessionID string, raw []byte) (prev, working *domain.TripState, err error) {
	if raw == nil {
		return nil, domain.NewTripState(sessionID), nil
	}
	if prev, err = decodeState(sessionID, raw); err != nil {
		return nil, nil, err
	}
	if working, err = decodeState(sessionID, raw); err != nil {
		return nil, nil, err
	}
	return prev, working, nil
}

func decodeState(sessionID string, raw []byte) (*domain.TripState, error) {
	st := &domain.TripState{}
	if err := json.Unmarshal(raw, st); err != nil {
		return nil, err
	}
	st.SessionID = sessionID
	if st.Preferences == nil {
		st.Preferences = make(map[string]any)
	}
	return st, nil
}

func (e *Engine) saveState(ctx context.Context, st *domain.TripState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("%w: encode session state: %v", ErrStorage, err)
	}
	if err := e.cache.Set(ctx, store.NamespaceState, st.SessionID, raw, e.cfg.SessionTTL); err != nil {
		return fmt.Errorf("%w: persist session state: %v", ErrStorage, err)
	}
	return nil
}

// appendMessages mirrors the turn's two transcript entries into the
// message log. The log is a secondary view: append failures are reported
// but never fail a turn whose state already persisted.
func (e *Engine) appendMessages(ctx context.Context, st *domain.TripState) {
	for _, entry := range st.RecentHistory(2) {
		if err := e.messages.Append(ctx, st.SessionID, entry.Role, entry.Content); err != nil {
			slog.Warn("message log append failed",
				"session_id", st.SessionID,
				"role", entry.Role,
				"error", err)
		}
	}
}

// classify maps raw pipeline errors onto the engine's error classes. A
// deadline hit wins over whatever error it surfaced as; cancellation
// passes through untouched so callers can tell an aborted request from a
// slow one.
func classify(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStorage),
		errors.Is(err, ErrTurnTimeout),
		errors.Is(err, ErrGenerationUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTurnTimeout, err)
	case errors.Is(err, llm.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	default:
		return err
	}
}

func (e *Engine) logTurn(sessionID, turnID, input string, st *domain.TripState, stageMark int, start time.Time, err error) {
	if e.cfg.TurnLog == nil {
		return
	}

	ev := TurnLogEvent{
		Timestamp:  time.Now().UTC(),
		SessionID:  sessionID,
		TurnID:     turnID,
		UserInput:  input,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if st != nil {
		ev.Response = st.ResponseText
		ev.NeedsClarification = st.NeedsClarification
		if stageMark <= len(st.StageLog) {
			ev.Stages = append([]string(nil), st.StageLog[stageMark:]...)
		}
	}
	if err != nil {
		ev.Error = err.Error()
	}
	e.cfg.TurnLog.Log(ev)
}
