package service

import (
	"context"
	"log/slog"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/health"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/resilience"
)

// startRecovery launches the recovery routine of e. The caller has already
// set e.recovering under e.mu, so at most one routine runs per agent.
func (s *Supervisor) startRecovery(e *agentEntry) {
	s.wg.Add(1)
	go s.recover(e)
}

// recover waits the recovery window and then runs the agent's self-test. A
// passing self-test marks the agent healthy but leaves the breaker to its own
// timeout and half-open successes; a failing one records a breaker failure
// and leaves the agent unhealthy. Supervisor.Close cancels the wait.
func (s *Supervisor) recover(e *agentEntry) {
	defer s.wg.Done()
	defer func() {
		e.mu.Lock()
		e.recovering = false
		e.mu.Unlock()
	}()

	name := e.spec.Name
	e.mu.Lock()
	from := e.record.Status
	e.record.MarkRecovering()
	e.mu.Unlock()
	s.transition(s.ctx, name, from, health.StatusRecovering)

	slog.Info("agent recovery started", "agent", name, "window", s.cfg.RecoveryWindow)

	if err := resilience.Sleep(s.ctx, s.cfg.RecoveryWindow); err != nil {
		e.mu.Lock()
		e.record.Refresh()
		e.mu.Unlock()
		slog.Debug("agent recovery cancelled", "agent", name)
		return
	}

	err := s.selfTest(e)

	e.mu.Lock()
	from = e.record.Status
	if err == nil {
		e.record.MarkRecovered()
	} else {
		e.record.MarkFailedRecovery()
	}
	to := e.record.Status
	e.mu.Unlock()

	if err == nil {
		slog.Info("agent recovered", "agent", name, "breaker", e.breaker.State().String())
	} else {
		e.breaker.RecordFailure()
		slog.Warn("agent self-test failed", "agent", name, "error", err)
	}
	s.transition(s.ctx, name, from, to)
}

func (s *Supervisor) selfTest(e *agentEntry) error {
	if e.spec.SelfTest == nil {
		return nil
	}
	ctx := s.ctx
	if s.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()
	}
	_, err := runAttempt(ctx, 0, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.spec.SelfTest(ctx)
	})
	return err
}
