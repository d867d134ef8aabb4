package router

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
)

// Checker performs one health check against a target address.
type Checker interface {
	Check(ctx context.Context, addr string) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, addr string) error

// Check calls f.
func (f CheckerFunc) Check(ctx context.Context, addr string) error { return f(ctx, addr) }

// HTTPChecker issues GET requests against the health-check path and treats
// any 2xx status as passing.
type HTTPChecker struct {
	Client *http.Client
	Path   string
}

// Check implements Checker.
func (c HTTPChecker) Check(ctx context.Context, addr string) error {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+c.Path, nil)
	if err != nil {
		return fmt.Errorf("failed to build health check request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// Prober runs health checks against the targets of a group. Each target
// is checked when it registers and then once per interval.
type Prober struct {
	tg      *TargetGroup
	checker Checker
}

// NewProber creates a prober for a target group.
func NewProber(tg *TargetGroup, checker Checker) *Prober {
	return &Prober{tg: tg, checker: checker}
}

// ProbeOnce checks every target once, each bounded by the health-check
// timeout.
func (p *Prober) ProbeOnce(ctx context.Context) {
	log := logr.FromContextOrDiscard(ctx).WithValues("targetGroup", p.tg.Name())
	p.tg.Sweep()

	for _, t := range p.tg.Targets() {
		p.checkTarget(ctx, log, t)
	}
}

// CheckTarget checks one target now, the way a target is checked when it
// registers while Run is active.
func (p *Prober) CheckTarget(ctx context.Context, id string) {
	if t, ok := p.tg.status(id); ok {
		p.checkTarget(ctx, logr.FromContextOrDiscard(ctx).WithValues("targetGroup", p.tg.Name()), t)
	}
}

func (p *Prober) checkTarget(ctx context.Context, log logr.Logger, t TargetStatus) {
	if t.State == StateDraining || t.State == StateUnused {
		return
	}
	checkCtx, cancel := context.WithTimeout(ctx, p.tg.check.Timeout)
	err := p.checker.Check(checkCtx, t.Address)
	cancel()

	from, to, recErr := p.tg.RecordCheck(t.ID, err == nil)
	if recErr != nil {
		// Deregistered and swept while the check ran.
		return
	}
	if from != to {
		log.Info("Target health changed", "target", t.ID, "from", from, "to", to)
	} else if err != nil {
		log.V(1).Info("Health check failed", "target", t.ID, "error", err.Error())
	}
}

// Run checks every registered target at once and every target registered
// later at its registration, then each on its own interval until ctx is
// done. A draining target registered again starts a fresh interval.
func (p *Prober) Run(ctx context.Context) error {
	s := &schedule{p: p, ctx: ctx, loops: make(map[string]*targetLoop)}

	stop := p.tg.OnRegister(s.start)
	for _, t := range p.tg.Targets() {
		s.start(t.ID)
	}

	<-ctx.Done()
	stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
	return ctx.Err()
}

type targetLoop struct {
	ticker clockwork.Ticker
	reset  chan struct{}
}

type schedule struct {
	p   *Prober
	ctx context.Context
	wg  sync.WaitGroup

	mu     sync.Mutex
	loops  map[string]*targetLoop
	closed bool
}

// start creates the target's ticker on the calling goroutine so the
// interval is anchored at registration.
func (s *schedule) start(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	interval := s.p.tg.check.Interval
	if l, ok := s.loops[id]; ok {
		l.ticker.Reset(interval)
		select {
		case l.reset <- struct{}{}:
		default:
		}
		return
	}

	l := &targetLoop{ticker: s.p.tg.clock.NewTicker(interval), reset: make(chan struct{}, 1)}
	s.loops[id] = l
	s.wg.Add(1)
	go s.run(id, l)
}

func (s *schedule) run(id string, l *targetLoop) {
	defer s.wg.Done()
	defer l.ticker.Stop()

	s.check(id)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-l.reset:
			// Drop a tick from the interval that was just replaced.
			select {
			case <-l.ticker.Chan():
			default:
			}
			s.check(id)
		case <-l.ticker.Chan():
			if s.retire(id) {
				return
			}
			s.check(id)
		}
	}
}

func (s *schedule) check(id string) {
	s.p.CheckTarget(s.ctx, id)
}

// retire stops the loop of a target that has left the group. Holding s.mu
// keeps a concurrent registration from signalling a loop that is exiting.
func (s *schedule) retire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.p.tg.State(id) != StateUnused {
		return false
	}
	delete(s.loops, id)
	return true
}
