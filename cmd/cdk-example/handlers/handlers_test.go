package handlers

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joel-cunningham/cdk-example/internal/audit"
	"github.com/joel-cunningham/cdk-example/internal/config"
	"github.com/joel-cunningham/cdk-example/internal/config/wizard"
	awsplatform "github.com/joel-cunningham/cdk-example/internal/platform/aws"
	"github.com/joel-cunningham/cdk-example/internal/rollout"
	"github.com/joel-cunningham/cdk-example/internal/simulation"
	cdktesting "github.com/joel-cunningham/cdk-example/internal/testing"
	"github.com/joel-cunningham/cdk-example/internal/topology"
)

func TestLoadConfig_NoFileFound(t *testing.T) {
	orig := findConfigFile
	findConfigFile = func() (string, error) { return "", errors.New("config file stack.yaml not found") }
	t.Cleanup(func() { findConfigFile = orig })

	_, _, err := loadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cdk-example init")
}

func TestLoadConfig_BaseDir(t *testing.T) {
	useConfig(t, cdktesting.MinimalConfig())

	cfg, baseDir, err := loadConfig(filepath.Join("stacks", "prod", "stack.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "web", cfg.StackName)
	assert.Equal(t, filepath.Join("stacks", "prod"), baseDir)
}

func TestSynth_WritesTemplate(t *testing.T) {
	useConfig(t, cdktesting.MinimalConfig())
	outDir := t.TempDir()

	var out bytes.Buffer
	err := Synth(context.Background(), &out, SynthOptions{ConfigPath: "stack.yaml", OutDir: outDir})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "web.template.json"))
	require.NoError(t, err)
	tmpl, err := topology.ParseTemplate(data)
	require.NoError(t, err)
	assert.NotEmpty(t, tmpl.Resources)
	assert.NotEmpty(t, tmpl.Outputs)

	assert.Contains(t, out.String(), "Synthesized web")
	assert.Contains(t, out.String(), "AWS::EC2::VPC")
}

func TestSynth_Idempotent(t *testing.T) {
	useConfig(t, cdktesting.FullConfig())
	outDir := t.TempDir()
	path := filepath.Join(outDir, "web.template.yaml")

	opts := SynthOptions{ConfigPath: "stack.yaml", OutDir: outDir, Format: FormatYAML}
	require.NoError(t, Synth(context.Background(), &bytes.Buffer{}, opts))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, Synth(context.Background(), &bytes.Buffer{}, opts))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestSynth_UnsupportedFormat(t *testing.T) {
	err := Synth(context.Background(), &bytes.Buffer{}, SynthOptions{Format: "toml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

type fakeLookup struct {
	calls int
}

func (f *fakeLookup) AccountID(context.Context) (string, error) {
	f.calls++
	return "210987654321", nil
}

func (f *fakeLookup) AvailabilityZones(context.Context) ([]string, error) {
	f.calls++
	return []string{"eu-west-1a", "eu-west-1b", "eu-west-1c", "eu-west-1d"}, nil
}

func (f *fakeLookup) ResolveImage(_ context.Context, parameter string) (string, error) {
	f.calls++
	if parameter == "" {
		return "", errors.New("no parameter")
	}
	return "ami-0123456789abcdef0", nil
}

func TestSynth_Lookup(t *testing.T) {
	cfg := cdktesting.MinimalConfig()
	cfg.Account = ""
	useConfig(t, cfg)

	fake := &fakeLookup{}
	orig := newLookup
	newLookup = func(context.Context, string) (Lookup, error) { return fake, nil }
	t.Cleanup(func() { newLookup = orig })

	err := Synth(context.Background(), &bytes.Buffer{}, SynthOptions{
		ConfigPath: "stack.yaml",
		OutDir:     t.TempDir(),
		Lookup:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, fake.calls)
	assert.Equal(t, "210987654321", cfg.Account)
	assert.Equal(t, "ami-0123456789abcdef0", cfg.Fleet.MachineImage.ID)
	assert.Len(t, cfg.Network.AvailabilityZones, cfg.Network.MaxAZs)
	assert.Equal(t, "eu-west-1a", cfg.Network.AvailabilityZones[0])
}

func TestSynth_LookupClientError(t *testing.T) {
	useConfig(t, cdktesting.MinimalConfig())

	orig := newLookup
	newLookup = func(context.Context, string) (Lookup, error) { return nil, errors.New("no credentials") }
	t.Cleanup(func() { newLookup = orig })

	err := Synth(context.Background(), &bytes.Buffer{}, SynthOptions{ConfigPath: "stack.yaml", OutDir: t.TempDir(), Lookup: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials")
}

func TestValidate(t *testing.T) {
	useConfig(t, cdktesting.FullConfig())

	var out bytes.Buffer
	require.NoError(t, Validate(context.Background(), &out, "stack.yaml"))
	assert.Contains(t, out.String(), "web is valid")
}

func TestDiff(t *testing.T) {
	dir := t.TempDir()
	deployed := filepath.Join(dir, "deployed.json")

	useConfig(t, cdktesting.MinimalConfig())
	require.NoError(t, Synth(context.Background(), &bytes.Buffer{}, SynthOptions{ConfigPath: "stack.yaml", OutDir: dir}))
	require.NoError(t, os.Rename(filepath.Join(dir, "web.template.json"), deployed))

	t.Run("no changes", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, Diff(context.Background(), &out, "stack.yaml", deployed))
		assert.Contains(t, out.String(), "no changes")
	})

	t.Run("changes", func(t *testing.T) {
		useConfig(t, cdktesting.FullConfig())

		var out bytes.Buffer
		err := Diff(context.Background(), &out, "stack.yaml", deployed)
		require.ErrorIs(t, err, ErrChangesDetected)
		assert.Contains(t, out.String(), "changes")
		assert.Contains(t, out.String(), "+ ")
	})

	t.Run("missing template", func(t *testing.T) {
		err := Diff(context.Background(), &bytes.Buffer{}, "stack.yaml", filepath.Join(dir, "missing.json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read template")
	})
}

func TestDestroyPlan(t *testing.T) {
	useConfig(t, cdktesting.FullConfig())

	var out bytes.Buffer
	require.NoError(t, DestroyPlan(context.Background(), &out, "stack.yaml"))
	assert.Contains(t, out.String(), "Teardown of web")
	assert.Contains(t, out.String(), "retain")
	assert.Contains(t, out.String(), "must be removed by hand")
}

func TestSimulate(t *testing.T) {
	useConfig(t, cdktesting.MinimalConfig())

	var got simulation.Options
	orig := runSimulation
	runSimulation = func(_ context.Context, cfg *config.Config, _ string, opts simulation.Options) (*simulation.Report, error) {
		got = opts
		return &simulation.Report{
			Stack:         cfg.StackName,
			TargetGroup:   "web-tg",
			TimeToHealthy: 90 * time.Second,
			Replaced:      []string{"web-fleet-i-0002"},
			Access: []simulation.AccessCheck{
				{Name: "upload v2", Want: true, Allowed: true},
				{Name: "assume role from a fork", Want: false, Allowed: false},
			},
			Deployment: &rollout.Deployment{
				ID:         "d-TEST",
				Revision:   opts.Revision,
				Status:     rollout.StatusSucceeded,
				MinHealthy: 1,
				Hosts: []rollout.HostOutcome{
					{HostID: "i-0001", Result: rollout.HostSucceeded},
					{HostID: "i-0002", Result: rollout.HostFailed, Error: "install failed"},
				},
			},
		}, nil
	}
	t.Cleanup(func() { runSimulation = orig })

	var out bytes.Buffer
	err := Simulate(context.Background(), &out, SimulateOptions{
		ConfigPath:  "stack.yaml",
		Revision:    "v2",
		FailInstall: []string{"i-0002"},
	})
	require.NoError(t, err)

	assert.Equal(t, "v2", got.Revision.Key)
	assert.Equal(t, []string{"i-0002"}, got.FailInstall)
	assert.Contains(t, out.String(), "Simulation of web")
	assert.Contains(t, out.String(), "d-TEST")
	assert.Contains(t, out.String(), "install failed")
	assert.Contains(t, out.String(), "web-fleet-i-0002")
	assert.Contains(t, out.String(), "assume role from a fork refused")
	assert.NotEmpty(t, got.BaseDir)
}

func TestSimulate_FailurePrintsReport(t *testing.T) {
	useConfig(t, cdktesting.MinimalConfig())

	orig := runSimulation
	runSimulation = func(context.Context, *config.Config, string, simulation.Options) (*simulation.Report, error) {
		return &simulation.Report{Stack: "web"}, errors.New("fleet never became healthy")
	}
	t.Cleanup(func() { runSimulation = orig })

	var out bytes.Buffer
	err := Simulate(context.Background(), &out, SimulateOptions{ConfigPath: "stack.yaml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fleet never became healthy")
	assert.Contains(t, out.String(), "Simulation of web")
}

type fakeAuditReader struct {
	err error
}

func (f *fakeAuditReader) AccountID(context.Context) (string, error) {
	return cdktesting.Account, nil
}

func (f *fakeAuditReader) BucketSecurity(context.Context, string) (*awsplatform.BucketSecurity, error) {
	return nil, f.err
}

func (f *fakeAuditReader) KeyForAlias(context.Context, string) (*awsplatform.Key, error) {
	return &awsplatform.Key{}, f.err
}

func (f *fakeAuditReader) OIDCProvider(context.Context, string) (*awsplatform.OIDCProvider, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &awsplatform.OIDCProvider{URL: "https://example.com"}, nil
}

func (f *fakeAuditReader) VPCEndpoints(context.Context, string) ([]awsplatform.Endpoint, error) {
	return nil, f.err
}

func TestAudit(t *testing.T) {
	useConfig(t, cdktesting.MinimalConfig())

	tests := []struct {
		name    string
		reader  *fakeAuditReader
		wantErr error
		errText string
	}{
		{
			name:    "violations",
			reader:  &fakeAuditReader{},
			wantErr: ErrAuditFailed,
		},
		{
			name:    "read error",
			reader:  &fakeAuditReader{err: errors.New("AccessDenied")},
			errText: "AccessDenied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := newAuditReader
			newAuditReader = func(context.Context, string) (audit.Reader, error) { return tt.reader, nil }
			t.Cleanup(func() { newAuditReader = orig })

			var out bytes.Buffer
			err := Audit(context.Background(), &out, AuditOptions{ConfigPath: "stack.yaml"})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, out.String(), "Audit of web")
			}
			if tt.errText != "" {
				assert.Contains(t, err.Error(), tt.errText)
			}
		})
	}
}

type fakeReleaser struct {
	upload    awsplatform.Upload
	request   awsplatform.DeploymentRequest
	waited    bool
	waitError error
}

func (f *fakeReleaser) UploadRevision(_ context.Context, up awsplatform.Upload) (*awsplatform.UploadResult, error) {
	f.upload = up
	return &awsplatform.UploadResult{VersionID: "3HL4kqtJ", ETag: `"abc"`}, nil
}

func (f *fakeReleaser) StartDeployment(_ context.Context, req awsplatform.DeploymentRequest) (string, error) {
	f.request = req
	return "d-RELEASE1", nil
}

func (f *fakeReleaser) WaitForDeployment(context.Context, string, time.Duration) (*awsplatform.DeploymentStatus, error) {
	f.waited = true
	status := &awsplatform.DeploymentStatus{ID: "d-RELEASE1", Status: "Succeeded", Succeeded: 2}
	if f.waitError != nil {
		status.Status = "Failed"
	}
	return status, f.waitError
}

func writeBundle(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.zip")
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04bundle"), 0o600))
	return path
}

func useReleaser(t *testing.T, r Releaser) {
	t.Helper()
	orig := newReleaser
	newReleaser = func(context.Context, string) (Releaser, error) { return r, nil }
	t.Cleanup(func() { newReleaser = orig })
}

func TestRelease(t *testing.T) {
	useConfig(t, cdktesting.FullConfig())
	fake := &fakeReleaser{}
	useReleaser(t, fake)

	var out bytes.Buffer
	err := Release(context.Background(), &out, ReleaseOptions{
		ConfigPath: "stack.yaml",
		Bundle:     writeBundle(t),
		Revision:   "releases/v2.zip",
		Bucket:     "web-releases",
		Wait:       true,
	})
	require.NoError(t, err)

	assert.Equal(t, "web-releases", fake.upload.Bucket)
	assert.Equal(t, "releases/v2.zip", fake.upload.Key)
	assert.Equal(t, "alias/web-releases", fake.upload.KMSKeyID)
	assert.Equal(t, "web-app", fake.request.Application)
	assert.Equal(t, "web-fleet", fake.request.DeploymentGroup)
	assert.Equal(t, "3HL4kqtJ", fake.request.Revision.Version)
	assert.True(t, fake.waited)
	assert.Contains(t, out.String(), "d-RELEASE1")
	assert.Contains(t, out.String(), "2 succeeded")
}

func TestRelease_Errors(t *testing.T) {
	useConfig(t, cdktesting.MinimalConfig())

	t.Run("missing flags", func(t *testing.T) {
		err := Release(context.Background(), &bytes.Buffer{}, ReleaseOptions{Bundle: "app.zip"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--revision")
	})

	t.Run("generated bucket name", func(t *testing.T) {
		err := Release(context.Background(), &bytes.Buffer{}, ReleaseOptions{
			ConfigPath: "stack.yaml", Bundle: "app.zip", Revision: "v1",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--bucket")
	})

	t.Run("failed deployment", func(t *testing.T) {
		fake := &fakeReleaser{waitError: awsplatform.ErrDeploymentFailed}
		useReleaser(t, fake)

		var out bytes.Buffer
		err := Release(context.Background(), &out, ReleaseOptions{
			ConfigPath: "stack.yaml", Bundle: writeBundle(t), Revision: "v1", Bucket: "b", Wait: true,
		})
		require.ErrorIs(t, err, awsplatform.ErrDeploymentFailed)
		assert.Empty(t, fake.upload.KMSKeyID)
		assert.Contains(t, out.String(), "Failed")
	})
}

func TestInit(t *testing.T) {
	origRun, origWrite, origExists := runWizard, writeConfig, fileExists
	t.Cleanup(func() {
		runWizard, writeConfig, fileExists = origRun, origWrite, origExists
	})

	runWizard = func(context.Context) (*wizard.Result, error) {
		return &wizard.Result{
			StackName:    "shop",
			Region:       "eu-central-1",
			CIDR:         "10.20.0.0/16",
			InstanceType: "t3.small",
			MinCapacity:  "2",
			MaxCapacity:  "4",
			Repository:   "acme/shop",
			Encryption:   config.EncryptionS3Managed,
		}, nil
	}
	var written *config.Config
	writeConfig = func(cfg *config.Config, _ string) error {
		written = cfg
		return nil
	}
	fileExists = func(string) bool { return true }

	var out bytes.Buffer
	require.NoError(t, Init(context.Background(), &out, "shop.yaml"))

	require.NotNil(t, written)
	assert.Equal(t, "shop", written.StackName)
	assert.Equal(t, "repo:acme/shop:ref:refs/heads/main", written.Trust.SubjectPattern)
	assert.Contains(t, out.String(), "already exists")
	assert.Contains(t, out.String(), "cdk-example synth -c shop.yaml")
}

func TestInit_WizardCanceled(t *testing.T) {
	origRun, origExists := runWizard, fileExists
	t.Cleanup(func() { runWizard, fileExists = origRun, origExists })

	runWizard = func(context.Context) (*wizard.Result, error) { return nil, errors.New("user aborted") }
	fileExists = func(string) bool { return false }

	err := Init(context.Background(), &bytes.Buffer{}, "stack.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wizard canceled")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, 1).WithName("synth")

	log.Info("Declared resource", "id", "Vpc")
	log.V(1).Info("Retrying")
	log.V(2).Info("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "synth: "))
	assert.Contains(t, lines[0], `"msg"="Declared resource"`)
	assert.Contains(t, lines[0], `"id"="Vpc"`)
	assert.Contains(t, lines[1], `"msg"="Retrying"`)
}
