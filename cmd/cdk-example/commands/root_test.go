package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "cdk-example", cmd.Use)
	assert.Equal(t, "Synthesize a single-region application stack", cmd.Short)
}

func TestRoot_HasSubcommands(t *testing.T) {
	cmd := Root()

	expectedSubcommands := []string{
		"init",
		"synth",
		"validate",
		"diff",
		"destroy-plan",
		"simulate",
		"audit",
		"release",
		"version",
		"completion",
	}

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}

	for _, expected := range expectedSubcommands {
		assert.True(t, subcommands[expected], "Expected subcommand %s not found", expected)
	}
	assert.Len(t, cmd.Commands(), len(expectedSubcommands))
}

func TestRoot_VerbosityFlag(t *testing.T) {
	cmd := Root()

	flag := cmd.PersistentFlags().Lookup("verbosity")
	require.NotNil(t, flag)
	assert.Equal(t, "v", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flags   []string
	}{
		{"synth", []string{"config", "output", "format", "lookup"}},
		{"validate", []string{"config"}},
		{"diff", []string{"config", "against"}},
		{"destroy-plan", []string{"config"}},
		{"simulate", []string{"config", "revision", "broken", "fail-install", "metrics"}},
		{"audit", []string{"config", "bucket", "vpc-id", "provider-arn"}},
		{"release", []string{"config", "bundle", "revision", "bucket", "wait"}},
		{"init", []string{"output"}},
	}

	root := Root()
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			cmd, _, err := root.Find([]string{tt.command})
			require.NoError(t, err)
			require.Equal(t, tt.command, cmd.Name())
			for _, name := range tt.flags {
				assert.NotNil(t, cmd.Flags().Lookup(name), "flag --%s", name)
			}
			assert.NotNil(t, cmd.RunE)
		})
	}
}

func TestSynth_Defaults(t *testing.T) {
	cmd := Synth()

	assert.Equal(t, "cdk.out", cmd.Flags().Lookup("output").DefValue)
	assert.Equal(t, "json", cmd.Flags().Lookup("format").DefValue)
	assert.Equal(t, "false", cmd.Flags().Lookup("lookup").DefValue)
}

func TestDiff_RequiresAgainst(t *testing.T) {
	root := Root()
	root.SetArgs([]string{"diff"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "against")
}

func TestRelease_RequiresBundleAndRevision(t *testing.T) {
	root := Root()
	root.SetArgs([]string{"release"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bundle")
	assert.Contains(t, err.Error(), "revision")
}

func TestValidate_MissingConfigFile(t *testing.T) {
	root := Root()
	root.SetArgs([]string{"validate", "-c", "does-not-exist.yaml"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}
