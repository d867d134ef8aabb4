package wizard

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joel-cunningham/cdk-example/internal/config"
	"gopkg.in/yaml.v3"
)

// GitHubThumbprint is the published intermediate certificate thumbprint of
// token.actions.githubusercontent.com.
const GitHubThumbprint = "6938fd4d98bab03faadb97b34396831e3780aea1"

// BuildConfig creates a Config from the wizard result. Only the answers are
// set; everything else is left to config defaults.
func BuildConfig(result *Result) *config.Config {
	minCap, _ := strconv.Atoi(strings.TrimSpace(result.MinCapacity))
	maxCap, _ := strconv.Atoi(strings.TrimSpace(result.MaxCapacity))
	if maxCap < minCap {
		maxCap = minCap
	}

	branch := result.Branch
	if branch == "" {
		branch = "main"
	}

	cfg := &config.Config{
		StackName: result.StackName,
		Region:    result.Region,
		Network: config.NetworkConfig{
			CIDR: result.CIDR,
		},
		Fleet: config.FleetConfig{
			InstanceType: result.InstanceType,
			MinCapacity:  minCap,
			MaxCapacity:  maxCap,
		},
		Trust: config.TrustConfig{
			Thumbprints:    []string{GitHubThumbprint},
			SubjectPattern: fmt.Sprintf("repo:%s:ref:refs/heads/%s", strings.TrimSpace(result.Repository), branch),
		},
		ArtifactStore: config.ArtifactStoreConfig{
			Encryption:  result.Encryption,
			KMSKeyAlias: result.KMSKeyAlias,
		},
	}
	return cfg
}

// WriteConfig writes the config to a YAML file with a descriptive header.
func WriteConfig(cfg *config.Config, outputPath string) error {
	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(generateHeader(outputPath))
	sb.WriteString("\n")
	sb.Write(yamlBytes)

	if err := os.WriteFile(outputPath, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// generateHeader creates the YAML file header comment.
func generateHeader(outputPath string) string {
	return fmt.Sprintf(`# cdk-example stack definition
# Generated by: cdk-example init
# Generated at: %s
#
# Usage:
#   cdk-example validate -c %s
#   cdk-example synth -c %s
`, time.Now().Format(time.RFC3339), outputPath, outputPath)
}
