package fleet

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
	"github.com/joel-cunningham/cdk-example/internal/metrics"
)

// MemberState is the lifecycle state of a fleet member.
type MemberState string

const (
	StatePending   MemberState = "pending"
	StateInService MemberState = "in_service"
	StateUnhealthy MemberState = "unhealthy"
)

var ErrCapacityOutOfRange = errors.New("capacity out of range")

// Member is one instance of the fleet.
type Member struct {
	ID         string
	Address    string
	State      MemberState
	LaunchedAt time.Time

	seq        int
	registered bool
}

// Launcher starts and stops instances.
type Launcher interface {
	// Launch starts an instance and returns its address.
	Launch(ctx context.Context, id string) (string, error)
	// Bootstrap runs the bootstrap payload on a launched instance.
	Bootstrap(ctx context.Context, id, payload string) error
	Terminate(ctx context.Context, id string) error
}

// Registrar receives members that are ready for traffic.
type Registrar interface {
	Register(id, addr string) error
	Deregister(id string) error
}

// Spec sizes a fleet.
type Spec struct {
	Name        string
	Min         int
	Max         int
	Desired     int
	Payload     string
	GracePeriod time.Duration
}

// SpecFromConfig builds a fleet spec from the stack configuration.
func SpecFromConfig(cfg *config.Config, payload string) Spec {
	return Spec{
		Name:        cfg.StackName + "-fleet",
		Min:         cfg.Fleet.MinCapacity,
		Max:         cfg.Fleet.MaxCapacity,
		Desired:     cfg.Fleet.Desired(),
		Payload:     payload,
		GracePeriod: cfg.Fleet.HealthCheckGracePeriod,
	}
}

// Fleet is the autoscaling group model.
type Fleet struct {
	spec      Spec
	launcher  Launcher
	registrar Registrar
	clock     clockwork.Clock

	mu      sync.Mutex
	desired int
	members map[string]*Member
	seq     int
}

// New creates an empty fleet. Call Reconcile to launch members.
func New(spec Spec, launcher Launcher, registrar Registrar, clock clockwork.Clock) (*Fleet, error) {
	if spec.Min < 1 {
		return nil, fmt.Errorf("%w: minimum capacity must be at least 1, got %d", ErrCapacityOutOfRange, spec.Min)
	}
	if spec.Max < spec.Min {
		return nil, fmt.Errorf("%w: maximum capacity %d is below minimum %d", ErrCapacityOutOfRange, spec.Max, spec.Min)
	}
	desired := spec.Desired
	if desired == 0 {
		desired = spec.Min
	}
	if desired < spec.Min || desired > spec.Max {
		return nil, fmt.Errorf("%w: desired capacity %d outside [%d, %d]", ErrCapacityOutOfRange, desired, spec.Min, spec.Max)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Fleet{
		spec:      spec,
		launcher:  launcher,
		registrar: registrar,
		clock:     clock,
		desired:   desired,
		members:   make(map[string]*Member),
	}, nil
}

// Name returns the fleet name.
func (f *Fleet) Name() string { return f.spec.Name }

// Desired returns the desired capacity.
func (f *Fleet) Desired() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.desired
}

// SetDesiredCapacity changes the desired capacity. Values outside
// [min, max] are rejected.
func (f *Fleet) SetDesiredCapacity(n int) error {
	if n < f.spec.Min || n > f.spec.Max {
		return fmt.Errorf("%w: desired capacity %d outside [%d, %d]", ErrCapacityOutOfRange, n, f.spec.Min, f.spec.Max)
	}
	f.mu.Lock()
	f.desired = n
	f.mu.Unlock()
	return nil
}

// MarkUnhealthy flags a member for replacement. It returns false when the
// member is unknown or still inside its health check grace period.
func (f *Fleet) MarkUnhealthy(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok || m.State == StateUnhealthy {
		return false
	}
	if f.clock.Since(m.LaunchedAt) < f.spec.GracePeriod {
		return false
	}
	m.State = StateUnhealthy
	f.recordLocked()
	return true
}

// Reconcile replaces unhealthy members and then launches or terminates
// members until the fleet matches the desired capacity. A member whose
// bootstrap payload fails stays unhealthy and is replaced on the next
// reconcile.
func (f *Fleet) Reconcile(ctx context.Context) error {
	log := logr.FromContextOrDiscard(ctx).WithValues("fleet", f.spec.Name)

	for _, m := range f.membersIn(StateUnhealthy) {
		log.Info("Replacing unhealthy member", "member", m.ID)
		if err := f.terminate(ctx, m.ID); err != nil {
			return err
		}
		metrics.RecordFleetReplacement(f.spec.Name, "unhealthy")
	}

	for {
		f.mu.Lock()
		count, desired := len(f.members), f.desired
		f.mu.Unlock()

		switch {
		case count < desired:
			if err := f.launch(ctx, log); err != nil {
				return err
			}
		case count > desired:
			victim := f.scaleInVictim()
			log.Info("Scaling in", "member", victim)
			if err := f.terminate(ctx, victim); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (f *Fleet) launch(ctx context.Context, log logr.Logger) error {
	f.mu.Lock()
	f.seq++
	seq := f.seq
	id := fmt.Sprintf("%s-i-%04d", f.spec.Name, seq)
	f.mu.Unlock()

	addr, err := f.launcher.Launch(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to launch member %s: %w", id, err)
	}

	m := &Member{ID: id, Address: addr, State: StatePending, LaunchedAt: f.clock.Now(), seq: seq}
	f.mu.Lock()
	f.members[id] = m
	f.recordLocked()
	f.mu.Unlock()

	if err := f.launcher.Bootstrap(ctx, id, f.spec.Payload); err != nil {
		log.Info("Bootstrap failed, member left unhealthy", "member", id, "error", err.Error())
		f.setState(id, StateUnhealthy)
		return nil
	}

	if err := f.registrar.Register(id, addr); err != nil {
		return fmt.Errorf("failed to register member %s: %w", id, err)
	}
	f.mu.Lock()
	if m, ok := f.members[id]; ok {
		m.State = StateInService
		m.registered = true
		f.recordLocked()
	}
	f.mu.Unlock()
	log.Info("Member in service", "member", id, "address", addr)
	return nil
}

func (f *Fleet) terminate(ctx context.Context, id string) error {
	f.mu.Lock()
	m, ok := f.members[id]
	f.mu.Unlock()
	if !ok {
		return nil
	}
	if m.registered {
		if err := f.registrar.Deregister(id); err != nil {
			return fmt.Errorf("failed to deregister member %s: %w", id, err)
		}
	}
	if err := f.launcher.Terminate(ctx, id); err != nil {
		return fmt.Errorf("failed to terminate member %s: %w", id, err)
	}
	f.mu.Lock()
	delete(f.members, id)
	f.recordLocked()
	f.mu.Unlock()
	return nil
}

// scaleInVictim picks the newest member.
func (f *Fleet) scaleInVictim() string {
	members := f.Members()
	return members[len(members)-1].ID
}

func (f *Fleet) setState(id string, state MemberState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.members[id]; ok {
		m.State = state
		f.recordLocked()
	}
}

// Members returns a snapshot of all members, oldest first.
func (f *Fleet) Members() []Member {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Member, 0, len(f.members))
	for _, m := range f.members {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LaunchedAt.Equal(out[j].LaunchedAt) {
			return out[i].LaunchedAt.Before(out[j].LaunchedAt)
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// InService returns the members that completed bootstrap.
func (f *Fleet) InService() []Member {
	return f.membersIn(StateInService)
}

func (f *Fleet) membersIn(state MemberState) []Member {
	var out []Member
	for _, m := range f.Members() {
		if m.State == state {
			out = append(out, m)
		}
	}
	return out
}

func (f *Fleet) recordLocked() {
	counts := map[string]int{
		string(StatePending):   0,
		string(StateInService): 0,
		string(StateUnhealthy): 0,
	}
	for _, m := range f.members {
		counts[string(m.State)]++
	}
	metrics.RecordFleetMembers(f.spec.Name, counts)
}
