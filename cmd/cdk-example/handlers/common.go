// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers write human output to the writer they are
// given and can be tested independently of the CLI framework.
package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joel-cunningham/cdk-example/internal/config"
	"github.com/joel-cunningham/cdk-example/internal/orchestration"
	awsplatform "github.com/joel-cunningham/cdk-example/internal/platform/aws"
	"github.com/joel-cunningham/cdk-example/internal/topology"
)

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfigFile loads config from file (for testing injection).
	loadConfigFile = config.LoadFile

	// findConfigFile finds stack.yaml in the working directory or a parent.
	findConfigFile = config.FindConfigFile

	// readFile reads a file (for testing injection).
	readFile = os.ReadFile

	// writeFile writes data to a file (for testing injection).
	writeFile = os.WriteFile

	// synthesize builds the resource graph of a stack.
	synthesize = func(ctx context.Context, cfg *config.Config, baseDir string) (*topology.Graph, error) {
		return orchestration.NewSynthesizer(cfg, orchestration.WithBaseDir(baseDir)).Synthesize(ctx)
	}

	// newAWSClient creates the AWS client used by lookups, audits and releases.
	newAWSClient = func(ctx context.Context, region string) (*awsplatform.Client, error) {
		return awsplatform.NewClient(ctx, region, awsplatform.Credentials{})
	}
)

// loadConfig loads the stack file at configPath, or the nearest stack.yaml
// when configPath is empty. It returns the directory relative paths in the
// file are resolved against.
func loadConfig(configPath string) (*config.Config, string, error) {
	if configPath == "" {
		path, err := findConfigFile()
		if err != nil {
			return nil, "", fmt.Errorf("no config file found: %w\nRun 'cdk-example init' to create one", err)
		}
		configPath = path
	}

	cfg, err := loadConfigFile(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, filepath.Dir(configPath), nil
}
