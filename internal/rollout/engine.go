package rollout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/joel-cunningham/cdk-example/internal/config"
	"github.com/joel-cunningham/cdk-example/internal/metrics"
	"github.com/joel-cunningham/cdk-example/internal/router"
)

// Status is the state of a deployment.
type Status string

const (
	StatusCreated    Status = "Created"
	StatusInProgress Status = "InProgress"
	StatusSucceeded  Status = "Succeeded"
	StatusFailed     Status = "Failed"
	StatusStopped    Status = "Stopped"
)

// HostResult is the outcome for one host.
type HostResult string

const (
	HostPending   HostResult = "pending"
	HostSucceeded HostResult = "succeeded"
	HostFailed    HostResult = "failed"
	HostSkipped   HostResult = "skipped"
)

var (
	ErrMinimumHealthyHosts = errors.New("minimum healthy hosts cannot be maintained")
	ErrHostUnhealthy       = errors.New("host did not become healthy")
	ErrInstallFailed       = errors.New("revision install failed")
	ErrNoHosts             = errors.New("no hosts to deploy to")
)

// Revision identifies the application bundle being deployed.
type Revision struct {
	Bucket  string
	Key     string
	Version string
}

func (r Revision) String() string {
	s := fmt.Sprintf("s3://%s/%s", r.Bucket, r.Key)
	if r.Version != "" {
		s += "?versionId=" + r.Version
	}
	return s
}

// Router is the part of the target group the engine drives.
type Router interface {
	Register(id, addr string) error
	Deregister(id string) error
	WaitDrained(ctx context.Context, id string) error
	State(id string) router.State
	Targets() []router.TargetStatus
}

// Installer puts a revision onto a host.
type Installer interface {
	Install(ctx context.Context, hostID string, rev Revision) error
}

// InstallerFunc adapts a function to Installer.
type InstallerFunc func(ctx context.Context, hostID string, rev Revision) error

// Install calls f.
func (f InstallerFunc) Install(ctx context.Context, hostID string, rev Revision) error {
	return f(ctx, hostID, rev)
}

// Options tune the engine.
type Options struct {
	MinimumHealthyHosts config.MinimumHealthyHostsConfig
	// PauseTimeout bounds how long the rollout waits for the floor to allow
	// the next host to be taken down.
	PauseTimeout time.Duration
	// HealthyTimeout bounds how long a re-registered host may take to pass
	// its health checks.
	HealthyTimeout time.Duration
	PollInterval   time.Duration
	Clock          clockwork.Clock
}

// HostOutcome records what happened to one host.
type HostOutcome struct {
	HostID string
	Result HostResult
	Error  string
}

// Deployment is the record of one rollout.
type Deployment struct {
	ID         string
	Revision   Revision
	Status     Status
	MinHealthy int
	Hosts      []HostOutcome
	Paused     time.Duration
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

// Counts returns the number of hosts per result.
func (d *Deployment) Counts() map[HostResult]int {
	out := make(map[HostResult]int)
	for _, h := range d.Hosts {
		out[h.Result]++
	}
	return out
}

// Engine runs deployments.
type Engine struct {
	router    Router
	installer Installer
	opts      Options
}

// NewEngine creates a deployment engine.
func NewEngine(r Router, installer Installer, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	return &Engine{router: r, installer: installer, opts: opts}
}

// NewDeploymentID returns an identifier in the d-XXXXXXXXX form.
func NewDeploymentID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "d-" + strings.ToUpper(id[:9])
}

// Run deploys rev to every host registered with the router. It returns the
// deployment record and, when the deployment did not succeed, the error that
// halted it. A failed deployment is never rolled back.
func (e *Engine) Run(ctx context.Context, rev Revision) (*Deployment, error) {
	clock := e.opts.Clock
	d := &Deployment{
		ID:        NewDeploymentID(),
		Revision:  rev,
		Status:    StatusCreated,
		StartedAt: clock.Now(),
	}
	log := logr.FromContextOrDiscard(ctx).WithValues("deployment", d.ID, "revision", rev.String())

	addrs := make(map[string]string)
	var hosts []string
	for _, t := range e.router.Targets() {
		if t.State == router.StateDraining || t.State == router.StateUnused {
			continue
		}
		hosts = append(hosts, t.ID)
		addrs[t.ID] = t.Address
	}
	sort.Strings(hosts)
	if len(hosts) == 0 {
		return e.finish(d, StatusFailed, ErrNoHosts)
	}

	d.MinHealthy = e.opts.MinimumHealthyHosts.Resolve(len(hosts))
	outcomes := make(map[string]int, len(hosts))
	for i, h := range hosts {
		d.Hosts = append(d.Hosts, HostOutcome{HostID: h, Result: HostPending})
		outcomes[h] = i
	}
	d.Status = StatusInProgress
	log.Info("Deployment started", "hosts", len(hosts), "minHealthy", d.MinHealthy)

	pending := append([]string(nil), hosts...)
	var pausedSince time.Time
	for len(pending) > 0 {
		idx := e.nextHost(hosts, pending, d.MinHealthy)
		if idx < 0 {
			if pausedSince.IsZero() {
				pausedSince = clock.Now()
				log.Info("Rollout paused to keep minimum healthy hosts", "healthy", e.healthy(hosts), "minHealthy", d.MinHealthy)
			}
			if clock.Since(pausedSince) >= e.opts.PauseTimeout {
				d.Paused += clock.Since(pausedSince)
				err := fmt.Errorf("%w: %d healthy, %d required, paused for %v",
					ErrMinimumHealthyHosts, e.healthy(hosts), d.MinHealthy, e.opts.PauseTimeout)
				return e.finish(d, StatusFailed, err)
			}
			select {
			case <-ctx.Done():
				return e.finish(d, StatusStopped, ctx.Err())
			case <-clock.After(e.opts.PollInterval):
			}
			continue
		}
		if !pausedSince.IsZero() {
			d.Paused += clock.Since(pausedSince)
			pausedSince = time.Time{}
			log.Info("Rollout resumed")
		}

		host := pending[idx]
		pending = append(pending[:idx], pending[idx+1:]...)

		err := e.updateHost(ctx, host, addrs[host], rev)
		out := &d.Hosts[outcomes[host]]
		if err != nil {
			out.Result = HostFailed
			out.Error = err.Error()
			metrics.RecordRolloutHost(string(HostFailed))
			log.Info("Host update failed", "host", host, "error", err.Error())
			if ctx.Err() != nil {
				return e.finish(d, StatusStopped, ctx.Err())
			}
			return e.finish(d, StatusFailed, fmt.Errorf("host %s: %w", host, err))
		}
		out.Result = HostSucceeded
		metrics.RecordRolloutHost(string(HostSucceeded))
		log.Info("Host updated", "host", host)
	}

	return e.finish(d, StatusSucceeded, nil)
}

// nextHost returns the index in pending of the next host that can be taken
// down, or -1 when the floor forbids it. Hosts that are not healthy can be
// taken at any time since removing them does not lower the healthy count.
func (e *Engine) nextHost(hosts, pending []string, floor int) int {
	for i, h := range pending {
		if e.router.State(h) != router.StateHealthy {
			return i
		}
	}
	if e.healthy(hosts)-1 >= floor {
		return 0
	}
	return -1
}

func (e *Engine) healthy(hosts []string) int {
	n := 0
	for _, h := range hosts {
		if e.router.State(h) == router.StateHealthy {
			n++
		}
	}
	return n
}

func (e *Engine) updateHost(ctx context.Context, host, addr string, rev Revision) error {
	clock := e.opts.Clock

	if err := e.router.Deregister(host); err != nil && !errors.Is(err, router.ErrUnknownTarget) {
		return fmt.Errorf("deregister: %w", err)
	}
	if err := e.router.WaitDrained(ctx, host); err != nil {
		return fmt.Errorf("drain: %w", err)
	}
	if err := e.installer.Install(ctx, host, rev); err != nil {
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}
	if err := e.router.Register(host, addr); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	deadline := clock.Now().Add(e.opts.HealthyTimeout)
	for {
		if e.router.State(host) == router.StateHealthy {
			return nil
		}
		if !clock.Now().Before(deadline) {
			return fmt.Errorf("%w within %v", ErrHostUnhealthy, e.opts.HealthyTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(e.opts.PollInterval):
		}
	}
}

func (e *Engine) finish(d *Deployment, status Status, err error) (*Deployment, error) {
	d.Status = status
	d.Err = err
	d.FinishedAt = e.opts.Clock.Now()
	if status != StatusSucceeded {
		for i := range d.Hosts {
			if d.Hosts[i].Result == HostPending {
				d.Hosts[i].Result = HostSkipped
			}
		}
	}
	metrics.RecordDeployment(string(status), d.FinishedAt.Sub(d.StartedAt).Seconds())
	return d, err
}
