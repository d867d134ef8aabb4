package rollout

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/joel-cunningham/cdk-example/internal/router"
)

// flap makes host report unhealthy for a while.
type flap struct {
	host     string
	duration time.Duration
}

// fakeRouter keeps target states in memory. Registering a host listed in
// flapOnRegister makes another host report unhealthy for a while.
type fakeRouter struct {
	mu             sync.Mutex
	clock          clockwork.Clock
	start          time.Time
	states         map[string]router.State
	addrs          map[string]string
	neverHealthy   map[string]bool
	flapOnRegister map[string]flap
	unhealthyUntil map[string]time.Time

	deregisteredAt map[string]time.Duration
	// lowestHealthy is the smallest healthy count seen right after a
	// deregistration.
	lowestHealthy int
}

func newFakeRouter(clock clockwork.Clock, states map[string]router.State) *fakeRouter {
	r := &fakeRouter{
		clock:          clock,
		start:          clock.Now(),
		states:         make(map[string]router.State),
		addrs:          make(map[string]string),
		neverHealthy:   make(map[string]bool),
		flapOnRegister: make(map[string]flap),
		unhealthyUntil: make(map[string]time.Time),
		deregisteredAt: make(map[string]time.Duration),
		lowestHealthy:  1 << 30,
	}
	for id, s := range states {
		r.states[id] = s
		r.addrs[id] = id + ":80"
	}
	return r
}

func (r *fakeRouter) stateLocked(id string) router.State {
	s, ok := r.states[id]
	if !ok {
		return router.StateUnused
	}
	if until, ok := r.unhealthyUntil[id]; ok && s == router.StateHealthy && r.clock.Now().Before(until) {
		return router.StateUnhealthy
	}
	return s
}

func (r *fakeRouter) healthyLocked() int {
	n := 0
	for id := range r.states {
		if r.stateLocked(id) == router.StateHealthy {
			n++
		}
	}
	return n
}

func (r *fakeRouter) Register(id, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.neverHealthy[id] {
		r.states[id] = router.StateUnhealthy
	} else {
		r.states[id] = router.StateHealthy
	}
	r.addrs[id] = addr
	if f, ok := r.flapOnRegister[id]; ok {
		r.unhealthyUntil[f.host] = r.clock.Now().Add(f.duration)
	}
	return nil
}

func (r *fakeRouter) Deregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.states[id]; !ok {
		return router.ErrUnknownTarget
	}
	r.states[id] = router.StateDraining
	r.deregisteredAt[id] = r.clock.Now().Sub(r.start)
	if h := r.healthyLocked(); h < r.lowestHealthy {
		r.lowestHealthy = h
	}
	return nil
}

func (r *fakeRouter) WaitDrained(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, id)
	return nil
}

func (r *fakeRouter) State(id string) router.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked(id)
}

func (r *fakeRouter) Targets() []router.TargetStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.states))
	for id := range r.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]router.TargetStatus, 0, len(ids))
	for _, id := range ids {
		out = append(out, router.TargetStatus{ID: id, Address: r.addrs[id], State: r.stateLocked(id)})
	}
	return out
}

func (r *fakeRouter) deregistrationOffset(id string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deregisteredAt[id]
}

// slowInstaller takes a fixed time per host on the fake clock.
type slowInstaller struct {
	clock    clockwork.Clock
	duration time.Duration
	fail     map[string]bool

	mu        sync.Mutex
	installed []string
}

func (s *slowInstaller) Install(ctx context.Context, hostID string, _ Revision) error {
	if s.duration > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(s.duration):
		}
	}
	if s.fail[hostID] {
		return errors.New("appspec hook ApplicationStart exited 1")
	}
	s.mu.Lock()
	s.installed = append(s.installed, hostID)
	s.mu.Unlock()
	return nil
}

func (s *slowInstaller) hosts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.installed...)
}

type runResult struct {
	d   *Deployment
	err error
}

// runAdvancing runs fn while stepping the fake clock until fn returns.
func runAdvancing(clock *clockwork.FakeClock, step time.Duration, fn func() (*Deployment, error)) runResult {
	done := make(chan runResult, 1)
	go func() {
		d, err := fn()
		done <- runResult{d, err}
	}()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case r := <-done:
			return r
		case <-timeout:
			return runResult{err: errors.New("deployment did not finish")}
		default:
			clock.Advance(step)
			time.Sleep(100 * time.Microsecond)
		}
	}
}
