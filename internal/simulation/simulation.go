package simulation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"

	"github.com/joel-cunningham/cdk-example/internal/config"
	"github.com/joel-cunningham/cdk-example/internal/fleet"
	"github.com/joel-cunningham/cdk-example/internal/rollout"
	"github.com/joel-cunningham/cdk-example/internal/router"
	"github.com/joel-cunningham/cdk-example/internal/util/naming"
)

// ErrNotHealthy is returned when the fleet never reaches full health before
// the rollout starts.
var ErrNotHealthy = errors.New("fleet did not become healthy")

// Options tune a simulation run.
type Options struct {
	Revision rollout.Revision
	// BrokenHosts fail every health check once the revision is installed.
	BrokenHosts []string
	// FailInstall makes the install step itself fail on these hosts.
	FailInstall []string
	// FailBootstrap makes the bootstrap payload fail on these hosts.
	FailBootstrap []string
	// FailChecks hosts fail every health check from launch.
	FailChecks []string
	// InstallDuration is the simulated time one install takes.
	InstallDuration time.Duration
	// Step is how far the fake clock advances per tick.
	Step time.Duration
	// Deadline bounds the wall-clock time of the rollout stage.
	Deadline time.Duration
	Timeouts *config.Timeouts
	// BaseDir resolves a user data file named by the configuration.
	BaseDir string
}

func (o *Options) applyDefaults() {
	if o.Step <= 0 {
		o.Step = time.Second
	}
	if o.Deadline <= 0 {
		o.Deadline = 30 * time.Second
	}
	if o.Timeouts == nil {
		o.Timeouts = config.LoadTimeouts()
	}
	if o.Revision.Key == "" {
		o.Revision.Key = "release.zip"
	}
	if o.Revision.Bucket == "" {
		o.Revision.Bucket = "releases"
	}
}

// Report is the outcome of a run. Durations are in simulated time.
// Replaced lists the members the fleet replaced before the rollout and
// Access the requests CI made to publish the revision.
type Report struct {
	Stack         string
	TargetGroup   string
	Members       []fleet.Member
	TimeToHealthy time.Duration
	Replaced      []string
	Access        []AccessCheck
	Deployment    *rollout.Deployment
	Targets       []router.TargetStatus
}

// hosts stands in for the instances behind the fleet.
type hosts struct {
	port  int
	clock clockwork.Clock

	mu           sync.Mutex
	seq          int
	byAddr       map[string]string
	bootstrapped map[string]bool
	broken       map[string]bool
	failBoot     map[string]bool
	dead         map[string]bool
}

func newHosts(port int, clock clockwork.Clock) *hosts {
	return &hosts{
		port:         port,
		clock:        clock,
		byAddr:       make(map[string]string),
		bootstrapped: make(map[string]bool),
		broken:       make(map[string]bool),
		failBoot:     make(map[string]bool),
		dead:         make(map[string]bool),
	}
}

func (h *hosts) Launch(_ context.Context, id string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	addr := fmt.Sprintf("10.0.%d.%d:%d", 10+h.seq/250, 10+h.seq%250, h.port)
	h.byAddr[addr] = id
	return addr, nil
}

func (h *hosts) Bootstrap(_ context.Context, id, _ string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failBoot[id] {
		return fmt.Errorf("%s: cloud-init exited 1", id)
	}
	h.bootstrapped[id] = true
	return nil
}

func (h *hosts) Terminate(_ context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for addr, owner := range h.byAddr {
		if owner == id {
			delete(h.byAddr, addr)
		}
	}
	delete(h.bootstrapped, id)
	return nil
}

// Check passes for bootstrapped hosts whose installed revision works.
func (h *hosts) Check(_ context.Context, addr string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.byAddr[addr]
	switch {
	case !ok:
		return fmt.Errorf("no host at %s", addr)
	case !h.bootstrapped[id]:
		return fmt.Errorf("%s has not run its bootstrap payload", id)
	case h.dead[id]:
		return fmt.Errorf("%s refused the connection", id)
	case h.broken[id]:
		return fmt.Errorf("%s returned status 500", id)
	}
	return nil
}

func (h *hosts) installer(duration time.Duration, broken, failing []string) rollout.Installer {
	brokenSet, failSet := toSet(broken), toSet(failing)
	return rollout.InstallerFunc(func(ctx context.Context, id string, _ rollout.Revision) error {
		if duration > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-h.clock.After(duration):
			}
		}
		if failSet[id] {
			return errors.New("lifecycle hook ApplicationStart exited 1")
		}
		h.mu.Lock()
		h.broken[id] = brokenSet[id]
		h.mu.Unlock()
		return nil
	})
}

func toSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

// Run simulates launching the fleet for cfg and rolling a revision onto it.
// The report is returned even when the rollout fails, together with the
// error that halted it.
func Run(ctx context.Context, cfg *config.Config, payload string, opts Options) (*Report, error) {
	opts.applyDefaults()
	log := logr.FromContextOrDiscard(ctx).WithName("simulate")
	clock := clockwork.NewFakeClock()
	start := clock.Now()

	check := router.HealthCheckFromConfig(cfg.Router.HealthCheck)
	tg, err := router.NewTargetGroup(naming.TargetGroup(cfg.StackName), check, cfg.Router.DeregistrationDelay, clock)
	if err != nil {
		return nil, fmt.Errorf("failed to create target group: %w", err)
	}

	h := newHosts(cfg.Router.TargetPort, clock)
	h.failBoot, h.dead = toSet(opts.FailBootstrap), toSet(opts.FailChecks)
	fl, err := fleet.New(fleet.SpecFromConfig(cfg, payload), h, tg, clock)
	if err != nil {
		return nil, fmt.Errorf("failed to create fleet: %w", err)
	}
	if err := fl.Reconcile(ctx); err != nil {
		return nil, fmt.Errorf("failed to launch fleet: %w", err)
	}

	report := &Report{Stack: cfg.StackName, TargetGroup: tg.Name()}
	prober := router.NewProber(tg, h)

	// 1. Warm up: check on every interval and replace members the router
	// reports unhealthy until all members are healthy
	for {
		prober.ProbeOnce(ctx)
		replaced, err := heal(ctx, tg, fl, prober)
		if err != nil {
			return report, fmt.Errorf("failed to replace unhealthy members: %w", err)
		}
		report.Replaced = append(report.Replaced, replaced...)

		if tg.HealthyCount() >= fl.Desired() {
			break
		}
		if clock.Since(start) >= opts.Timeouts.HostHealthy {
			report.Members = fl.Members()
			report.Targets = tg.Targets()
			return report, fmt.Errorf("%w: %d of %d healthy after %v",
				ErrNotHealthy, tg.HealthyCount(), fl.Desired(), clock.Since(start))
		}
		clock.Advance(check.Interval)
	}
	report.TimeToHealthy = clock.Since(start)
	log.Info("Fleet healthy", "members", fl.Desired(), "after", report.TimeToHealthy)

	// 2. CI publishes the revision through the deploy role
	report.Access, err = publish(ctx, cfg, opts.BaseDir, clock, opts.Revision)
	if err != nil {
		report.Members = fl.Members()
		report.Targets = tg.Targets()
		return report, err
	}

	// 3. Rollout with the prober running on the fake clock
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = prober.Run(runCtx) }()

	engine := rollout.NewEngine(tg, h.installer(opts.InstallDuration, opts.BrokenHosts, opts.FailInstall), rollout.Options{
		MinimumHealthyHosts: cfg.Pipeline.MinimumHealthyHosts,
		PauseTimeout:        opts.Timeouts.RolloutPause,
		HealthyTimeout:      opts.Timeouts.HostHealthy,
		PollInterval:        opts.Timeouts.RolloutPoll,
		Clock:               clock,
	})

	d, err := advance(runCtx, clock, opts.Step, opts.Deadline, func() (*rollout.Deployment, error) {
		return engine.Run(runCtx, opts.Revision)
	})
	cancel()

	report.Deployment = d
	report.Members = fl.Members()
	report.Targets = tg.Targets()
	if d != nil {
		log.Info("Rollout finished", "deployment", d.ID, "status", d.Status, "paused", d.Paused)
	}
	return report, err
}

// heal marks members whose targets are unhealthy, reconciles the fleet and
// checks each replacement once at its registration. It returns the IDs of
// the members that were replaced.
func heal(ctx context.Context, tg *router.TargetGroup, fl *fleet.Fleet, prober *router.Prober) ([]string, error) {
	for _, t := range tg.Targets() {
		if t.State == router.StateUnhealthy {
			fl.MarkUnhealthy(t.ID)
		}
	}

	before := make(map[string]bool)
	for _, m := range fl.Members() {
		before[m.ID] = true
	}
	if err := fl.Reconcile(ctx); err != nil {
		return nil, err
	}

	var replaced []string
	for _, m := range fl.Members() {
		if before[m.ID] {
			delete(before, m.ID)
			continue
		}
		if m.State == fleet.StateInService {
			prober.CheckTarget(ctx, m.ID)
		}
	}
	for id := range before {
		replaced = append(replaced, id)
	}
	sort.Strings(replaced)
	return replaced, nil
}

// advance runs fn while stepping the fake clock until fn returns or the
// wall-clock deadline passes.
func advance(ctx context.Context, clock *clockwork.FakeClock, step, deadline time.Duration,
	fn func() (*rollout.Deployment, error)) (*rollout.Deployment, error) {
	type result struct {
		d   *rollout.Deployment
		err error
	}
	done := make(chan result, 1)
	go func() {
		d, err := fn()
		done <- result{d, err}
	}()

	timeout := time.After(deadline)
	for {
		select {
		case r := <-done:
			return r.d, r.err
		case <-timeout:
			return nil, fmt.Errorf("rollout did not finish within %v of wall-clock time", deadline)
		case <-ctx.Done():
			r := <-done
			return r.d, r.err
		default:
			clock.Advance(step)
			time.Sleep(100 * time.Microsecond)
		}
	}
}
