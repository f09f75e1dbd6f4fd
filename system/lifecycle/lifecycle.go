// Package lifecycle implements the server-wide state machine (C8): the
// startup/ready/draining gate the HTTP layer consults before serving
// traffic and the pool coordinates shutdown against.
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/r3e-network/algoserver/infrastructure/logging"
)

// State is one phase of the server lifecycle.
type State string

const (
	StateInitialized  State = "initialized"
	StateProvisioning State = "provisioning"
	StateReady        State = "ready"
	StateRunning      State = "running"
	StateDraining     State = "draining"
	StateStopped      State = "stopped"
	StateFailed       State = "failed"
)

func (s State) String() string { return string(s) }

// Hook runs as part of a transition into a state. A hook error aborts the
// transition and drives the machine into StateFailed.
type Hook func(ctx context.Context) error

// legalTransitions enumerates the only state pairs a transition may cross.
// Everything else fails fast.
var legalTransitions = map[State]map[State]bool{
	StateInitialized:  {StateProvisioning: true, StateFailed: true},
	StateProvisioning: {StateReady: true, StateFailed: true},
	StateReady:        {StateRunning: true, StateDraining: true, StateFailed: true},
	StateRunning:      {StateDraining: true, StateFailed: true},
	StateDraining:     {StateStopped: true, StateFailed: true},
	StateStopped:      {},
	StateFailed:       {},
}

// Machine is the server's lifecycle gate. Zero value is not usable; build
// one with New.
type Machine struct {
	mu     sync.Mutex
	state  State
	ready  bool
	hooks  map[State][]Hook
	logger *logging.Logger
}

// New builds a Machine starting in StateInitialized.
func New(logger *logging.Logger) *Machine {
	return &Machine{
		state:  StateInitialized,
		hooks:  make(map[State][]Hook),
		logger: logger,
	}
}

// State returns the current lifecycle phase.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsReady reports whether the state is one the HTTP readiness probe should
// accept traffic for: ready or running.
func (m *Machine) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// ReadyFlag returns a pointer that mirrors IsReady, for wiring directly into
// middleware.ReadinessHandler. The pointer is stable for the Machine's
// lifetime; Transition updates the value it points to under the same lock
// that serializes transitions, matching the plain-bool contract
// ReadinessHandler already expects.
func (m *Machine) ReadyFlag() *bool {
	return &m.ready
}

// On registers a hook to run when the machine transitions into state.
// Hooks for a given state run in registration order.
func (m *Machine) On(state State, hook Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[state] = append(m.hooks[state], hook)
}

// OnProvisioning registers a hook for the provisioning transition.
func (m *Machine) OnProvisioning(hook Hook) { m.On(StateProvisioning, hook) }

// OnReady registers a hook for the ready transition. cmd/algoserver attaches
// the executor backend's Start here.
func (m *Machine) OnReady(hook Hook) { m.On(StateReady, hook) }

// OnRunning registers a hook for the running transition.
func (m *Machine) OnRunning(hook Hook) { m.On(StateRunning, hook) }

// OnDraining registers a hook for the draining transition. cmd/algoserver
// attaches the executor backend's Shutdown(wait=true) here.
func (m *Machine) OnDraining(hook Hook) { m.On(StateDraining, hook) }

// OnStopped registers a hook for the stopped transition.
func (m *Machine) OnStopped(hook Hook) { m.On(StateStopped, hook) }

// Transition drives the machine to target, running target's registered
// hooks in order. An illegal transition is rejected without running any
// hook. A hook error drives the machine to StateFailed (itself a legal
// target from every non-terminal state) and returns the aggregated hook
// errors.
func (m *Machine) Transition(ctx context.Context, target State) error {
	m.mu.Lock()
	from := m.state
	allowed := legalTransitions[from][target]
	if !allowed {
		m.mu.Unlock()
		return fmt.Errorf("lifecycle: illegal transition %s -> %s", from, target)
	}
	hooks := append([]Hook(nil), m.hooks[target]...)
	m.mu.Unlock()

	var errs *multierror.Error
	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if errs.ErrorOrNil() != nil {
		m.state = StateFailed
		m.ready = false
		if m.logger != nil {
			m.logger.WithContext(ctx).WithError(errs).Error("lifecycle transition failed, entering failed state")
		}
		return fmt.Errorf("lifecycle: transition %s -> %s: %w", from, target, errs)
	}

	m.state = target
	m.ready = target == StateReady || target == StateRunning
	if m.logger != nil {
		m.logger.WithContext(ctx).Info(fmt.Sprintf("lifecycle transition %s -> %s", from, target))
	}
	return nil
}

// Provision transitions initialized -> provisioning.
func (m *Machine) Provision(ctx context.Context) error {
	return m.Transition(ctx, StateProvisioning)
}

// MarkReady transitions provisioning -> ready.
func (m *Machine) MarkReady(ctx context.Context) error {
	return m.Transition(ctx, StateReady)
}

// Run transitions ready -> running.
func (m *Machine) Run(ctx context.Context) error {
	return m.Transition(ctx, StateRunning)
}

// Drain transitions ready or running -> draining.
func (m *Machine) Drain(ctx context.Context) error {
	return m.Transition(ctx, StateDraining)
}

// Stop transitions draining -> stopped.
func (m *Machine) Stop(ctx context.Context) error {
	return m.Transition(ctx, StateStopped)
}
