package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	aotel "github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/otel"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/config"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/health"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/broadcast"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/llm"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/resilience"
)

// ErrUnknownAgent is returned for calls naming an agent that was never registered.
var ErrUnknownAgent = errors.New("unknown agent")

// AgentCategory selects the canned fallback of an agent.
type AgentCategory string

const (
	CategoryIntent       AgentCategory = "intent"
	CategorySlotFilling  AgentCategory = "slot_filling"
	CategoryRetrieval    AgentCategory = "retrieval"
	CategoryExecution    AgentCategory = "execution"
	CategoryOrchestrator AgentCategory = "orchestrator"
	CategoryMemory       AgentCategory = "memory"
)

// Registered agent names.
const (
	AgentIntent      = "intent_classifier"
	AgentSlotFilling = "slot_filling"
	AgentRetrieval   = "retrieval"
	AgentExecution   = "execution"
	AgentRouter      = "orchestrator_router"
	AgentResponder   = "orchestrator_responder"
	AgentMemory      = "memory"
)

// AgentSpec describes an agent to the supervisor.
type AgentSpec struct {
	Name     string
	Category AgentCategory
	// SelfTest is a lightweight probe run by recovery routines. Nil always passes.
	SelfTest func(ctx context.Context) error
	// Default produces the agent's own fallback result. Its dynamic type must
	// match the result type of the supervised operation to be used.
	Default func(ctx context.Context, cause error) (any, error)
}

// FallbackSource says where a supervised call's result came from.
type FallbackSource string

const (
	SourcePrimary      FallbackSource = "primary"
	SourceCaller       FallbackSource = "caller_fallback"
	SourceAgentDefault FallbackSource = "agent_default"
	SourceCanned       FallbackSource = "canned"
	SourceNone         FallbackSource = "none"
)

// Outcome describes how a supervised call was served.
type Outcome struct {
	Agent    string
	Source   FallbackSource
	Attempts int
	Blocked  bool
	Latency  time.Duration
	Err      error // last failure when a fallback was used
}

// Degraded reports whether the result came from anywhere but the primary operation.
func (o Outcome) Degraded() bool {
	return o.Source != SourcePrimary
}

// Fallback is a caller-supplied fallback for a supervised operation.
type Fallback[T any] func(ctx context.Context, cause error) (T, error)

// SupervisorConfig holds retry, timeout and recovery settings.
type SupervisorConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	CallTimeout    time.Duration
	RecoveryWindow time.Duration
	Breaker        resilience.BreakerConfig
}

// SupervisorConfigFrom maps the loaded configuration.
func SupervisorConfigFrom(sup config.Supervisor, br config.Breaker) SupervisorConfig {
	return SupervisorConfig{
		MaxRetries:     sup.MaxRetries,
		InitialBackoff: sup.InitialBackoff,
		CallTimeout:    sup.CallTimeout,
		RecoveryWindow: sup.RecoveryWindow,
		Breaker: resilience.BreakerConfig{
			FailureThreshold: br.FailureThreshold,
			SuccessThreshold: br.SuccessThreshold,
			RecoveryTimeout:  br.RecoveryTimeout,
		},
	}
}

type agentEntry struct {
	mu         sync.Mutex
	spec       AgentSpec
	breaker    *resilience.Breaker
	record     *health.Record
	recovering bool
}

// Supervisor owns the health and breaker registry of all agents and wraps
// every agent call with breaker checks, retries and fallback resolution.
type Supervisor struct {
	cfg         SupervisorConfig
	broadcaster broadcast.Broadcaster
	metrics     *aotel.Metrics
	now         func() time.Time

	mu     sync.RWMutex
	agents map[string]*agentEntry

	degraded atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSupervisor creates an empty registry. A nil broadcaster discards health events.
func NewSupervisor(cfg SupervisorConfig, bc broadcast.Broadcaster) *Supervisor {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if bc == nil {
		bc = broadcast.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		cfg:         cfg,
		broadcaster: bc,
		now:         time.Now,
		agents:      make(map[string]*agentEntry),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetMetrics attaches metric instruments.
func (s *Supervisor) SetMetrics(m *aotel.Metrics) {
	s.metrics = m
}

// Register adds an agent to the registry.
func (s *Supervisor) Register(spec AgentSpec) error {
	if spec.Name == "" {
		return errors.New("agent name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[spec.Name]; ok {
		return fmt.Errorf("agent %q already registered", spec.Name)
	}
	s.agents[spec.Name] = &agentEntry{
		spec:    spec,
		breaker: resilience.NewBreaker(s.cfg.Breaker),
		record:  health.NewRecord(spec.Name, string(spec.Category)),
	}
	slog.Debug("agent registered", "agent", spec.Name, "category", spec.Category)
	return nil
}

// Close cancels in-flight recovery routines and waits for them to exit.
func (s *Supervisor) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Supervisor) entry(name string) (*agentEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.agents[name]
	return e, ok
}

// Health returns a snapshot of every agent's health record, sorted by name.
func (s *Supervisor) Health() []health.Record {
	s.mu.RLock()
	entries := make([]*agentEntry, 0, len(s.agents))
	for _, e := range s.agents {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]health.Record, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snapshot())
	}
	slices.SortFunc(out, func(a, b health.Record) int {
		switch {
		case a.Agent < b.Agent:
			return -1
		case a.Agent > b.Agent:
			return 1
		}
		return 0
	})
	return out
}

// AgentHealth returns the health record of one agent.
func (s *Supervisor) AgentHealth(name string) (health.Record, bool) {
	e, ok := s.entry(name)
	if !ok {
		return health.Record{}, false
	}
	return e.snapshot(), true
}

// DegradationMode reports whether more than half of the registered agents are unhealthy.
func (s *Supervisor) DegradationMode() bool {
	records := s.Health()
	if len(records) == 0 {
		return false
	}
	unhealthy := 0
	for i := range records {
		if records[i].Status == health.StatusUnhealthy {
			unhealthy++
		}
	}
	return unhealthy*2 > len(records)
}

func (e *agentEntry) snapshot() health.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.record.Snapshot()
	r.BreakerState = e.breaker.State().String()
	return r
}

// ExecuteWithHealing runs op for the named agent under the supervisor's
// breaker, retry and timeout policy. On failure, including a call blocked by
// an open breaker, the result is resolved from the caller fallback, then the
// agent's registered default, then the canned result of the agent category.
// It never returns an error; the Outcome says how the result was produced and
// carries the last failure when a fallback was used.
func ExecuteWithHealing[T any](ctx context.Context, s *Supervisor, agent string, op func(ctx context.Context) (T, error), fallback Fallback[T]) (T, Outcome) {
	out := Outcome{Agent: agent}
	start := s.now()

	e, ok := s.entry(agent)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownAgent, agent)
		slog.ErrorContext(ctx, "supervised call to unregistered agent", "agent", agent)
		return resolveFallback(ctx, s, nil, fallback, err, out)
	}

	ctx, span := aotel.StartAgentSpan(ctx, agent, string(e.spec.Category))
	defer span.End()
	attrs := metric.WithAttributes(attribute.String("agent", agent))
	if s.metrics != nil {
		s.metrics.AgentCalls.Add(ctx, 1, attrs)
	}

	if !e.breaker.CanExecute() {
		out.Blocked = true
		s.observeFailure(ctx, e, 0, true)
		span.SetAttributes(attribute.Bool("agent.blocked", true))
		slog.WarnContext(ctx, "agent call blocked by open circuit", "agent", agent)
		result, o := resolveFallback(ctx, s, e, fallback, resilience.ErrCircuitOpen, out)
		s.finish(ctx, span, attrs, &o, start)
		return result, o
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries+1; attempt++ {
		if attempt > 1 {
			if err := resilience.Sleep(ctx, resilience.Backoff(s.cfg.InitialBackoff, attempt-1)); err != nil {
				lastErr = errors.Join(lastErr, err)
				break
			}
		}
		out.Attempts = attempt

		result, err := runAttempt(ctx, s.cfg.CallTimeout, op)
		if err == nil {
			s.observeSuccess(ctx, e, s.now().Sub(start))
			out.Source = SourcePrimary
			s.finish(ctx, span, attrs, &out, start)
			return result, out
		}
		lastErr = err
		slog.DebugContext(ctx, "agent attempt failed", "agent", agent, "attempt", attempt, "error", err)

		if ctx.Err() != nil || resilience.IsPermanent(err) || errors.Is(err, llm.ErrUnavailable) {
			break
		}
	}

	// A caller that went away is not the agent's failure.
	if ctx.Err() == nil {
		s.observeFailure(ctx, e, s.now().Sub(start), false)
	}
	span.RecordError(lastErr)
	slog.WarnContext(ctx, "agent call failed, using fallback", "agent", agent, "attempts", out.Attempts, "error", lastErr)
	result, o := resolveFallback(ctx, s, e, fallback, lastErr, out)
	s.finish(ctx, span, attrs, &o, start)
	return result, o
}

// runAttempt runs one try of op bounded by timeout, converting panics into errors.
func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (result T, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent panic: %v", r)
		}
	}()
	return op(ctx)
}

// resolveFallback walks the fallback chain. e may be nil for unregistered agents.
func resolveFallback[T any](ctx context.Context, s *Supervisor, e *agentEntry, fallback Fallback[T], cause error, out Outcome) (T, Outcome) {
	out.Err = cause

	if fallback != nil {
		v, err := runFallback[T](ctx, fallback, cause)
		if err == nil {
			out.Source = SourceCaller
			return v, out
		}
		slog.WarnContext(ctx, "caller fallback failed", "agent", out.Agent, "error", err)
	}

	if e != nil && e.spec.Default != nil {
		v, err := runFallback[any](ctx, e.spec.Default, cause)
		if err == nil {
			if typed, ok := v.(T); ok {
				out.Source = SourceAgentDefault
				return typed, out
			}
		} else {
			slog.WarnContext(ctx, "agent default fallback failed", "agent", out.Agent, "error", err)
		}
	}

	if e != nil {
		if typed, ok := cannedResult(e.spec.Category).(T); ok {
			out.Source = SourceCanned
			return typed, out
		}
	}

	var zero T
	out.Source = SourceNone
	slog.ErrorContext(ctx, "all fallbacks exhausted", "agent", out.Agent, "error", cause)
	return zero, out
}

func runFallback[T any](ctx context.Context, fn func(context.Context, error) (T, error), cause error) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fallback panic: %v", r)
		}
	}()
	return fn(ctx, cause)
}

func (s *Supervisor) finish(ctx context.Context, span trace.Span, attrs metric.MeasurementOption, out *Outcome, start time.Time) {
	out.Latency = s.now().Sub(start)
	span.SetAttributes(
		attribute.String("agent.source", string(out.Source)),
		attribute.Int("agent.attempts", out.Attempts),
	)
	if out.Source == SourceNone {
		span.SetStatus(codes.Error, "fallbacks exhausted")
	}
	if s.metrics == nil {
		return
	}
	s.metrics.AgentLatency.Record(ctx, out.Latency.Seconds(), attrs)
	if out.Degraded() {
		s.metrics.AgentFailures.Add(ctx, 1, attrs)
		s.metrics.AgentFallbacks.Add(ctx, 1, metric.WithAttributes(
			attribute.String("agent", out.Agent),
			attribute.String("source", string(out.Source)),
		))
	}
}

func (s *Supervisor) observeSuccess(ctx context.Context, e *agentEntry, latency time.Duration) {
	e.breaker.RecordSuccess()

	e.mu.Lock()
	from := e.record.Status
	e.record.ObserveSuccess(latency, s.now())
	to := e.record.Status
	e.mu.Unlock()

	s.transition(ctx, e.spec.Name, from, to)
}

// observeFailure records a failed call. Blocked calls count against health
// but leave the breaker alone so its recovery timeout keeps running.
func (s *Supervisor) observeFailure(ctx context.Context, e *agentEntry, latency time.Duration, blocked bool) {
	if !blocked {
		e.breaker.RecordFailure()
	}

	e.mu.Lock()
	from := e.record.Status
	e.record.ObserveFailure(latency, s.now())
	to := e.record.Status
	schedule := !e.recovering && (to == health.StatusDegraded || to == health.StatusUnhealthy)
	if schedule {
		e.recovering = true
	}
	e.mu.Unlock()

	s.transition(ctx, e.spec.Name, from, to)
	if schedule {
		s.startRecovery(e)
	}
}

// transition logs and broadcasts a status change and any change of degradation mode.
func (s *Supervisor) transition(ctx context.Context, agent string, from, to health.Status) {
	if from == to {
		return
	}
	slog.InfoContext(ctx, "agent health changed", "agent", agent, "from", from, "to", to)
	s.broadcaster.BroadcastEvent(ctx, broadcast.EventAgentHealth, health.Transition{
		Agent: agent, From: from, To: to, At: s.now(),
	})

	mode := s.DegradationMode()
	if s.degraded.Swap(mode) != mode {
		if mode {
			slog.WarnContext(ctx, "entering degradation mode")
		} else {
			slog.InfoContext(ctx, "leaving degradation mode")
		}
		s.broadcaster.BroadcastEvent(ctx, broadcast.EventDegradation, map[string]bool{"degradation_mode": mode})
	}
}
