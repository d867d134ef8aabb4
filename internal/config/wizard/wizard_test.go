package wizard

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joel-cunningham/cdk-example/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	cfg := BuildConfig(&Result{
		StackName:    "web",
		Region:       "eu-west-1",
		CIDR:         "10.2.0.0/16",
		InstanceType: "t3.small",
		MinCapacity:  "2",
		MaxCapacity:  "5",
		Repository:   "acme/web",
		Branch:       "release",
		Encryption:   "s3-managed",
	})

	assert.Equal(t, "web", cfg.StackName)
	assert.Equal(t, "10.2.0.0/16", cfg.Network.CIDR)
	assert.Equal(t, 2, cfg.Fleet.MinCapacity)
	assert.Equal(t, 5, cfg.Fleet.MaxCapacity)
	assert.Equal(t, "repo:acme/web:ref:refs/heads/release", cfg.Trust.SubjectPattern)
	assert.Equal(t, []string{GitHubThumbprint}, cfg.Trust.Thumbprints)

	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
}

func TestBuildConfig_MaxRaisedToMin(t *testing.T) {
	t.Parallel()

	cfg := BuildConfig(&Result{StackName: "web", MinCapacity: "3", MaxCapacity: "1"})
	assert.Equal(t, 3, cfg.Fleet.MaxCapacity)
	assert.Equal(t, "repo::ref:refs/heads/main", cfg.Trust.SubjectPattern)
}

func TestWriteConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), config.DefaultConfigFilename)
	cfg := BuildConfig(&Result{
		StackName:   "web",
		Region:      "us-east-1",
		CIDR:        "10.0.0.0/16",
		MinCapacity: "2",
		MaxCapacity: "2",
		Repository:  "acme/web",
	})
	require.NoError(t, WriteConfig(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# cdk-example stack definition"))
	assert.Contains(t, string(data), "stack_name: web")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "repo:acme/web:ref:refs/heads/main", loaded.Trust.SubjectPattern)
}

func TestWriteConfig_InvalidPath(t *testing.T) {
	t.Parallel()

	err := WriteConfig(&config.Config{}, filepath.Join(t.TempDir(), "missing", "stack.yaml"))
	require.Error(t, err)
}

func TestValidators(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, validateStackName(""), errStackNameRequired)
	assert.ErrorIs(t, validateStackName("1web"), errStackNameInvalid)
	assert.NoError(t, validateStackName("web-prod"))

	assert.ErrorIs(t, validateCIDR(""), errCIDRRequired)
	assert.ErrorIs(t, validateCIDR("10.0.0.0/8"), errCIDRInvalid)
	assert.ErrorIs(t, validateCIDR("nope"), errCIDRInvalid)
	assert.NoError(t, validateCIDR("10.0.0.0/16"))

	assert.ErrorIs(t, validateRepository(""), errRepositoryRequired)
	assert.ErrorIs(t, validateRepository("acme"), errRepositoryInvalid)
	assert.NoError(t, validateRepository("acme/web"))

	assert.ErrorIs(t, validateCapacity("0"), errCapacityInvalid)
	assert.ErrorIs(t, validateCapacity("x"), errCapacityInvalid)
	assert.NoError(t, validateCapacity("3"))
}
