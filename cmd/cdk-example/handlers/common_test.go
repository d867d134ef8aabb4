package handlers

import (
	"testing"

	"github.com/joel-cunningham/cdk-example/internal/config"
)

// useConfig makes every handler load cfg regardless of the path it is given.
// Tests calling it swap package state and must not run in parallel.
func useConfig(t *testing.T, cfg *config.Config) {
	t.Helper()
	orig := loadConfigFile
	loadConfigFile = func(string) (*config.Config, error) {
		return cfg, nil
	}
	t.Cleanup(func() { loadConfigFile = orig })
}
