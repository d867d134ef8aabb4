package rollout

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joel-cunningham/cdk-example/internal/config"
	"github.com/joel-cunningham/cdk-example/internal/router"
)

func TestRollout(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Rollout Suite")
}

func healthyHosts(ids ...string) map[string]router.State {
	out := make(map[string]router.State, len(ids))
	for _, id := range ids {
		out[id] = router.StateHealthy
	}
	return out
}

var _ = Describe("Engine", func() {
	var (
		clock     *clockwork.FakeClock
		installer *slowInstaller
		rev       Revision
	)

	BeforeEach(func() {
		clock = clockwork.NewFakeClock()
		installer = &slowInstaller{clock: clock, duration: 10 * time.Second, fail: map[string]bool{}}
		rev = Revision{Bucket: "releases", Key: "app/v2.zip"}
	})

	engine := func(r Router, floor config.MinimumHealthyHostsConfig) *Engine {
		return NewEngine(r, installer, Options{
			MinimumHealthyHosts: floor,
			PauseTimeout:        2 * time.Minute,
			HealthyTimeout:      time.Minute,
			PollInterval:        5 * time.Second,
			Clock:               clock,
		})
	}

	Context("when the floor leaves room for one host", func() {
		It("updates every host and never drops below the floor", func() {
			r := newFakeRouter(clock, healthyHosts("a", "b", "c"))
			e := engine(r, config.MinimumHealthyHostsConfig{Type: config.HostCount, Value: 2})

			res := runAdvancing(clock, time.Second, func() (*Deployment, error) {
				return e.Run(context.Background(), rev)
			})

			Expect(res.err).NotTo(HaveOccurred())
			Expect(res.d.Status).To(Equal(StatusSucceeded))
			Expect(res.d.ID).To(HavePrefix("d-"))
			Expect(res.d.MinHealthy).To(Equal(2))
			Expect(installer.hosts()).To(Equal([]string{"a", "b", "c"}))
			Expect(res.d.Counts()[HostSucceeded]).To(Equal(3))
			Expect(r.lowestHealthy).To(BeNumerically(">=", 2))
		})
	})

	Context("when hosts are already unhealthy", func() {
		It("takes them first without counting against the floor", func() {
			states := healthyHosts("a", "b")
			states["c"] = router.StateUnhealthy
			r := newFakeRouter(clock, states)
			e := engine(r, config.MinimumHealthyHostsConfig{Type: config.FleetPercent, Value: 50})

			res := runAdvancing(clock, time.Second, func() (*Deployment, error) {
				return e.Run(context.Background(), rev)
			})

			Expect(res.err).NotTo(HaveOccurred())
			Expect(installer.hosts()[0]).To(Equal("c"))
			Expect(res.d.MinHealthy).To(Equal(2))
		})
	})

	Context("when no host can be taken down", func() {
		It("pauses and then fails without touching any host", func() {
			r := newFakeRouter(clock, healthyHosts("a", "b"))
			e := engine(r, config.MinimumHealthyHostsConfig{Type: config.HostCount, Value: 2})

			res := runAdvancing(clock, time.Second, func() (*Deployment, error) {
				return e.Run(context.Background(), rev)
			})

			Expect(res.err).To(MatchError(ErrMinimumHealthyHosts))
			Expect(res.d.Status).To(Equal(StatusFailed))
			Expect(res.d.Paused).To(BeNumerically(">=", 2*time.Minute))
			Expect(installer.hosts()).To(BeEmpty())
			Expect(res.d.Counts()[HostSkipped]).To(Equal(2))
			Expect(r.Targets()).To(HaveLen(2))
		})
	})

	Context("when an updated host flaps", func() {
		It("pauses until it recovers and then resumes", func() {
			r := newFakeRouter(clock, healthyHosts("a", "b", "c", "d"))
			r.flapOnRegister["b"] = flap{host: "a", duration: 40 * time.Second}
			e := engine(r, config.MinimumHealthyHostsConfig{Type: config.HostCount, Value: 3})

			res := runAdvancing(clock, time.Second, func() (*Deployment, error) {
				return e.Run(context.Background(), rev)
			})

			Expect(res.err).NotTo(HaveOccurred())
			Expect(res.d.Status).To(Equal(StatusSucceeded))
			Expect(res.d.Paused).To(BeNumerically(">", 0))
			// b's install takes 10s, then a is unhealthy for 40s after b returns.
			Expect(r.deregistrationOffset("c") - r.deregistrationOffset("b")).To(BeNumerically(">=", 50*time.Second))
			Expect(r.lowestHealthy).To(BeNumerically(">=", 3))
		})
	})

	Context("when a host fails after the update", func() {
		It("halts the deployment without rolling back", func() {
			r := newFakeRouter(clock, healthyHosts("a", "b", "c"))
			r.neverHealthy["a"] = true
			e := engine(r, config.MinimumHealthyHostsConfig{Type: config.HostCount, Value: 1})

			res := runAdvancing(clock, time.Second, func() (*Deployment, error) {
				return e.Run(context.Background(), rev)
			})

			Expect(res.err).To(MatchError(ErrHostUnhealthy))
			Expect(res.d.Status).To(Equal(StatusFailed))
			Expect(res.d.Hosts[0].Result).To(Equal(HostFailed))
			Expect(res.d.Hosts[1].Result).To(Equal(HostSkipped))
			Expect(installer.hosts()).To(Equal([]string{"a"}))
		})

		It("reports install failures", func() {
			r := newFakeRouter(clock, healthyHosts("a", "b"))
			installer.fail["a"] = true
			e := engine(r, config.MinimumHealthyHostsConfig{Type: config.HostCount, Value: 1})

			res := runAdvancing(clock, time.Second, func() (*Deployment, error) {
				return e.Run(context.Background(), rev)
			})

			Expect(res.err).To(MatchError(ErrInstallFailed))
			Expect(res.d.Hosts[0].Error).To(ContainSubstring("exited 1"))
		})
	})

	Context("when there are no hosts", func() {
		It("fails at once", func() {
			e := engine(newFakeRouter(clock, nil), config.MinimumHealthyHostsConfig{Type: config.HostCount})
			d, err := e.Run(context.Background(), rev)
			Expect(err).To(MatchError(ErrNoHosts))
			Expect(d.Status).To(Equal(StatusFailed))
		})
	})

	Context("when the context is canceled", func() {
		It("stops the deployment", func() {
			r := newFakeRouter(clock, healthyHosts("a", "b"))
			e := engine(r, config.MinimumHealthyHostsConfig{Type: config.HostCount, Value: 2})
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			d, err := e.Run(ctx, rev)
			Expect(err).To(MatchError(context.Canceled))
			Expect(d.Status).To(Equal(StatusStopped))
		})
	})
})
