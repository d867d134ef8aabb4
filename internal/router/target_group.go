package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/joel-cunningham/cdk-example/internal/config"
	"github.com/joel-cunningham/cdk-example/internal/metrics"
)

// State is the health state of a registered target.
type State string

const (
	StateInitial   State = "initial"
	StateHealthy   State = "healthy"
	StateUnhealthy State = "unhealthy"
	StateDraining  State = "draining"
	// StateUnused is reported for targets that are not registered.
	StateUnused State = "unused"
)

var allStates = []State{StateInitial, StateHealthy, StateUnhealthy, StateDraining}

var (
	ErrNoHealthyTargets   = errors.New("no healthy targets")
	ErrUnknownTarget      = errors.New("target is not registered")
	ErrAlreadyRegistered  = errors.New("target is already registered")
	ErrInvalidHealthCheck = errors.New("invalid health check")
)

// HealthCheck holds the target health-check parameters. Every field must be
// set; there are no implicit defaults.
type HealthCheck struct {
	Path               string
	Interval           time.Duration
	Timeout            time.Duration
	HealthyThreshold   int
	UnhealthyThreshold int
}

// HealthCheckFromConfig converts the router configuration.
func HealthCheckFromConfig(c config.HealthCheckConfig) HealthCheck {
	return HealthCheck{
		Path:               c.Path,
		Interval:           c.Interval,
		Timeout:            c.Timeout,
		HealthyThreshold:   c.HealthyThreshold,
		UnhealthyThreshold: c.UnhealthyThreshold,
	}
}

// Validate rejects unset parameters.
func (h HealthCheck) Validate() error {
	switch {
	case h.Path == "":
		return fmt.Errorf("%w: path is required", ErrInvalidHealthCheck)
	case h.Interval <= 0:
		return fmt.Errorf("%w: interval must be positive", ErrInvalidHealthCheck)
	case h.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidHealthCheck)
	case h.HealthyThreshold < 1:
		return fmt.Errorf("%w: healthy threshold must be at least 1", ErrInvalidHealthCheck)
	case h.UnhealthyThreshold < 1:
		return fmt.Errorf("%w: unhealthy threshold must be at least 1", ErrInvalidHealthCheck)
	}
	return nil
}

// TargetStatus is a snapshot of one target.
type TargetStatus struct {
	ID       string
	Address  string
	State    State
	InFlight int
}

type target struct {
	id         string
	addr       string
	state      State
	passes     int
	failures   int
	drainUntil time.Time
	conns      map[*Conn]struct{}
}

// TargetGroup routes connections to registered targets.
type TargetGroup struct {
	name       string
	check      HealthCheck
	drainDelay time.Duration
	clock      clockwork.Clock

	mu       sync.Mutex
	targets  map[string]*target
	order    []string
	next     int
	hooks    map[int]func(id string)
	nextHook int
}

// NewTargetGroup creates an empty target group.
func NewTargetGroup(name string, check HealthCheck, drainDelay time.Duration, clock clockwork.Clock) (*TargetGroup, error) {
	if err := check.Validate(); err != nil {
		return nil, err
	}
	if drainDelay < 0 {
		return nil, fmt.Errorf("deregistration delay must not be negative, got %v", drainDelay)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	tg := &TargetGroup{
		name:       name,
		check:      check,
		drainDelay: drainDelay,
		clock:      clock,
		targets:    make(map[string]*target),
		hooks:      make(map[int]func(string)),
	}
	tg.recordLocked()
	return tg, nil
}

// Name returns the target group name.
func (tg *TargetGroup) Name() string { return tg.name }

// HealthCheck returns the health-check parameters.
func (tg *TargetGroup) HealthCheck() HealthCheck { return tg.check }

// DrainDelay returns the deregistration delay.
func (tg *TargetGroup) DrainDelay() time.Duration { return tg.drainDelay }

// Register adds a target in the initial state. A draining target may be
// registered again; it restarts from the initial state and keeps its
// in-flight connections.
func (tg *TargetGroup) Register(id, addr string) error {
	hooks, err := tg.register(id, addr)
	if err != nil {
		return err
	}
	for _, fn := range hooks {
		fn(id)
	}
	return nil
}

func (tg *TargetGroup) register(id, addr string) ([]func(string), error) {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.sweepLocked()

	if t, ok := tg.targets[id]; ok {
		if t.state != StateDraining {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, id)
		}
		t.state = StateInitial
		t.passes, t.failures = 0, 0
		t.drainUntil = time.Time{}
		if addr != "" {
			t.addr = addr
		}
		tg.recordLocked()
		return tg.hooksLocked(), nil
	}

	tg.targets[id] = &target{id: id, addr: addr, state: StateInitial, conns: make(map[*Conn]struct{})}
	tg.order = append(tg.order, id)
	tg.recordLocked()
	return tg.hooksLocked(), nil
}

// OnRegister calls fn with the ID of every target registered from now on,
// including draining targets registered again, until cancel is called. fn
// runs on the registering goroutine without the group lock held.
func (tg *TargetGroup) OnRegister(fn func(id string)) (cancel func()) {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	key := tg.nextHook
	tg.nextHook++
	tg.hooks[key] = fn
	return func() {
		tg.mu.Lock()
		defer tg.mu.Unlock()
		delete(tg.hooks, key)
	}
}

func (tg *TargetGroup) hooksLocked() []func(string) {
	hooks := make([]func(string), 0, len(tg.hooks))
	for _, fn := range tg.hooks {
		hooks = append(hooks, fn)
	}
	return hooks
}

// Deregister starts draining a target. It receives no new connections and
// its in-flight connections are closed once the deregistration delay has
// elapsed.
func (tg *TargetGroup) Deregister(id string) error {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.sweepLocked()

	t, ok := tg.targets[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, id)
	}
	if t.state == StateDraining {
		return nil
	}
	t.state = StateDraining
	t.drainUntil = tg.clock.Now().Add(tg.drainDelay)
	if tg.drainDelay == 0 {
		tg.removeLocked(t)
	}
	tg.recordLocked()
	return nil
}

// RecordCheck applies one health check result and returns the state before
// and after it. Results for draining targets are ignored.
func (tg *TargetGroup) RecordCheck(id string, passed bool) (from, to State, err error) {
	tg.mu.Lock()
	defer tg.mu.Unlock()

	t, ok := tg.targets[id]
	if !ok {
		return StateUnused, StateUnused, fmt.Errorf("%w: %s", ErrUnknownTarget, id)
	}
	from = t.state
	if t.state == StateDraining {
		return from, from, nil
	}
	metrics.RecordHealthCheck(tg.name, passed)

	if passed {
		t.failures = 0
		t.passes++
		if t.state != StateHealthy && t.passes >= tg.check.HealthyThreshold {
			t.state = StateHealthy
		}
	} else {
		t.passes = 0
		t.failures++
		if t.state != StateUnhealthy && t.failures >= tg.check.UnhealthyThreshold {
			t.state = StateUnhealthy
		}
	}
	if t.state != from {
		tg.recordLocked()
	}
	return from, t.state, nil
}

// Pick returns the next healthy target in round-robin order.
func (tg *TargetGroup) Pick() (TargetStatus, error) {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.sweepLocked()

	t, err := tg.pickLocked()
	if err != nil {
		return TargetStatus{}, err
	}
	return tg.statusLocked(t), nil
}

func (tg *TargetGroup) pickLocked() (*target, error) {
	n := len(tg.order)
	for i := 0; i < n; i++ {
		t := tg.targets[tg.order[(tg.next+i)%n]]
		if t.state == StateHealthy {
			tg.next = (tg.next + i + 1) % n
			return t, nil
		}
	}
	return nil, ErrNoHealthyTargets
}

// Connect opens a connection to the next healthy target.
func (tg *TargetGroup) Connect() (*Conn, error) {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.sweepLocked()

	t, err := tg.pickLocked()
	if err != nil {
		return nil, err
	}
	c := &Conn{tg: tg, target: t.id}
	t.conns[c] = struct{}{}
	metrics.RecordConnection(tg.name)
	return c, nil
}

// Sweep removes targets whose drain delay has elapsed, closing their
// remaining connections, and returns their IDs.
func (tg *TargetGroup) Sweep() []string {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	return tg.sweepLocked()
}

func (tg *TargetGroup) sweepLocked() []string {
	now := tg.clock.Now()
	var removed []string
	for _, id := range tg.order {
		t := tg.targets[id]
		if t.state == StateDraining && !now.Before(t.drainUntil) {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		tg.removeLocked(tg.targets[id])
	}
	if len(removed) > 0 {
		tg.recordLocked()
	}
	return removed
}

func (tg *TargetGroup) removeLocked(t *target) {
	for c := range t.conns {
		c.forced = true
		c.closed = true
	}
	delete(tg.targets, t.id)
	for i, id := range tg.order {
		if id == t.id {
			tg.order = append(tg.order[:i], tg.order[i+1:]...)
			if tg.next > i {
				tg.next--
			}
			break
		}
	}
	if len(tg.order) == 0 || tg.next >= len(tg.order) {
		tg.next = 0
	}
}

// WaitDrained blocks until the target has left the draining state, either
// because the drain delay elapsed or because it was registered again.
func (tg *TargetGroup) WaitDrained(ctx context.Context, id string) error {
	for {
		tg.mu.Lock()
		tg.sweepLocked()
		t, ok := tg.targets[id]
		if !ok || t.state != StateDraining {
			tg.mu.Unlock()
			return nil
		}
		remaining := t.drainUntil.Sub(tg.clock.Now())
		tg.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tg.clock.After(remaining):
		}
	}
}

// State returns the state of a target, or StateUnused when it is not
// registered.
func (tg *TargetGroup) State(id string) State {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.sweepLocked()
	if t, ok := tg.targets[id]; ok {
		return t.state
	}
	return StateUnused
}

func (tg *TargetGroup) status(id string) (TargetStatus, bool) {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.sweepLocked()
	t, ok := tg.targets[id]
	if !ok {
		return TargetStatus{State: StateUnused}, false
	}
	return tg.statusLocked(t), true
}

// Targets returns a snapshot of all registered targets in registration
// order.
func (tg *TargetGroup) Targets() []TargetStatus {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.sweepLocked()
	out := make([]TargetStatus, 0, len(tg.order))
	for _, id := range tg.order {
		out = append(out, tg.statusLocked(tg.targets[id]))
	}
	return out
}

// HealthyCount returns the number of healthy targets.
func (tg *TargetGroup) HealthyCount() int {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.sweepLocked()
	n := 0
	for _, t := range tg.targets {
		if t.state == StateHealthy {
			n++
		}
	}
	return n
}

func (tg *TargetGroup) statusLocked(t *target) TargetStatus {
	return TargetStatus{ID: t.id, Address: t.addr, State: t.state, InFlight: len(t.conns)}
}

func (tg *TargetGroup) recordLocked() {
	counts := make(map[string]int, len(allStates))
	for _, s := range allStates {
		counts[string(s)] = 0
	}
	for _, t := range tg.targets {
		counts[string(t.state)]++
	}
	metrics.RecordRouterTargets(tg.name, counts)
}

// Conn is a connection routed to one target.
type Conn struct {
	tg     *TargetGroup
	target string
	closed bool
	forced bool
}

// Target returns the ID of the target serving the connection.
func (c *Conn) Target() string { return c.target }

// Close ends the connection. Closing twice is a no-op.
func (c *Conn) Close() {
	c.tg.mu.Lock()
	defer c.tg.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if t, ok := c.tg.targets[c.target]; ok {
		delete(t.conns, c)
	}
}

// Closed reports whether the connection has ended. It sweeps first, so a
// connection to a target whose drain delay elapsed reports closed.
func (c *Conn) Closed() bool {
	c.tg.mu.Lock()
	defer c.tg.mu.Unlock()
	c.tg.sweepLocked()
	return c.closed
}

// Terminated reports whether the connection was cut at the end of draining
// rather than closed by its owner.
func (c *Conn) Terminated() bool {
	c.tg.mu.Lock()
	defer c.tg.mu.Unlock()
	c.tg.sweepLocked()
	return c.forced
}
