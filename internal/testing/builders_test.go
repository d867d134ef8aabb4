package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joel-cunningham/cdk-example/internal/config"
)

func TestConfigBuilder_ProducesValidConfigs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{"minimal", MinimalConfig()},
		{"full", FullConfig()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.NoError(t, tt.cfg.Validate())
		})
	}
}

func TestConfigBuilder_Immutable(t *testing.T) {
	t.Parallel()

	base := NewConfigBuilder()
	changed := base.WithStackName("api").WithNATGateways(1)

	assert.Equal(t, "web", base.Build().StackName)
	assert.Nil(t, base.Build().Network.NATGateways)
	assert.Equal(t, "api", changed.Build().StackName)
	assert.Equal(t, 1, *changed.Build().Network.NATGateways)
}
