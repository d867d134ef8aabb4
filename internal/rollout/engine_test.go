package rollout

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joel-cunningham/cdk-example/internal/config"
	"github.com/joel-cunningham/cdk-example/internal/router"
)

func TestNewDeploymentID(t *testing.T) {
	t.Parallel()

	id := NewDeploymentID()
	assert.Regexp(t, regexp.MustCompile(`^d-[0-9A-F]{9}$`), id)
	assert.NotEqual(t, id, NewDeploymentID())
}

func TestRevisionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "s3://releases/app.zip", Revision{Bucket: "releases", Key: "app.zip"}.String())
	assert.Equal(t, "s3://releases/app.zip?versionId=3", Revision{Bucket: "releases", Key: "app.zip", Version: "3"}.String())
}

// TestRun_WithTargetGroup drives the engine against the real target group
// and a prober, so a re-registered host only counts as healthy after the
// configured number of passing checks.
func TestRun_WithTargetGroup(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	tg, err := router.NewTargetGroup("web", router.HealthCheck{
		Path: "/", Interval: 10 * time.Second, Timeout: 5 * time.Second,
		HealthyThreshold: 2, UnhealthyThreshold: 2,
	}, 10*time.Second, clock)
	require.NoError(t, err)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, tg.Register(id, id+":80"))
		for i := 0; i < 2; i++ {
			_, _, err := tg.RecordCheck(id, true)
			require.NoError(t, err)
		}
	}

	prober := router.NewProber(tg, router.CheckerFunc(func(context.Context, string) error { return nil }))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = prober.Run(ctx) }()

	e := NewEngine(tg, InstallerFunc(func(context.Context, string, Revision) error { return nil }), Options{
		MinimumHealthyHosts: config.MinimumHealthyHostsConfig{Type: config.FleetPercent, Value: 50},
		PauseTimeout:        10 * time.Minute,
		HealthyTimeout:      5 * time.Minute,
		PollInterval:        5 * time.Second,
		Clock:               clock,
	})

	res := runAdvancing(clock, time.Second, func() (*Deployment, error) {
		return e.Run(ctx, Revision{Bucket: "releases", Key: "app.zip"})
	})
	require.NoError(t, res.err)
	assert.Equal(t, StatusSucceeded, res.d.Status)
	assert.Equal(t, 3, tg.HealthyCount())
}
