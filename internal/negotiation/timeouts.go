package negotiation

import (
	"time"

	"github.com/xenocomm/coordinator/internal/model"
)

// CheckTimeout expires sessionID if it is non-terminal and past its
// deadline, applying the session's timeout_policy. Idempotent: calling
// this after a session has already reached a terminal state is a no-op
// (spec.md §5 "Cancellation and timeouts").
func (e *Engine) CheckTimeout(sessionID string) (*model.NegotiationSession, error) {
	s, err := e.get(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.State.IsTerminal() {
		return s.Clone(), nil
	}
	e.expireLocked(s)
	return s.Clone(), nil
}

// CheckAllTimeouts sweeps every active session, expiring those past
// their deadline. Safe to call at any cadence.
func (e *Engine) CheckAllTimeouts() []*model.NegotiationSession {
	e.mu.Lock()
	defer e.mu.Unlock()

	var touched []*model.NegotiationSession
	for _, s := range e.sessions {
		if s.State.IsTerminal() {
			continue
		}
		if time.Now().UTC().Before(s.ExpiresAt) {
			continue
		}
		e.expireLocked(s)
		touched = append(touched, s.Clone())
	}
	return touched
}

// expireLocked applies the session's timeout policy. Caller must hold e.mu.
func (e *Engine) expireLocked(s *model.NegotiationSession) {
	if time.Now().UTC().Before(s.ExpiresAt) {
		return
	}

	switch s.TimeoutPolicy {
	case model.TimeoutPolicyAutoAccept:
		if s.CounterParams != nil {
			final := *s.CounterParams
			s.FinalParams = &final
		} else {
			final := s.ProposedParams
			s.FinalParams = &final
		}
		s.State = model.StateFinalized
		s.UpdatedAt = time.Now().UTC()
		e.archiveLocked(s)
		e.emit("timeout_auto_accept", model.SeverityWarning, s, "session auto-accepted on timeout")

	case model.TimeoutPolicyExtend:
		if s.ExtendCount >= s.MaxExtensions {
			s.State = model.StateTimedOut
			s.UpdatedAt = time.Now().UTC()
			e.archiveLocked(s)
			e.emit("timeout", model.SeverityWarning, s, "session timed out after exhausting extensions")
			return
		}
		s.ExtendCount++
		s.ExpiresAt = s.ExpiresAt.Add(time.Duration(e.cfg.DefaultTimeoutSeconds) * time.Second)
		s.UpdatedAt = time.Now().UTC()
		e.emit("timeout_extend", model.SeverityInfo, s, "session deadline extended")

	default: // FAIL
		s.State = model.StateTimedOut
		s.UpdatedAt = time.Now().UTC()
		e.archiveLocked(s)
		e.emit("timeout", model.SeverityWarning, s, "session timed out")
	}
}
