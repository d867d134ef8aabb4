package orchestration

import (
	"context"
	"fmt"

	"github.com/joel-cunningham/cdk-example/internal/config"
	"github.com/joel-cunningham/cdk-example/internal/provisioning"
	"github.com/joel-cunningham/cdk-example/internal/provisioning/compute"
	"github.com/joel-cunningham/cdk-example/internal/provisioning/delivery"
	"github.com/joel-cunningham/cdk-example/internal/provisioning/identity"
	"github.com/joel-cunningham/cdk-example/internal/provisioning/infrastructure"
	"github.com/joel-cunningham/cdk-example/internal/provisioning/storage"
	"github.com/joel-cunningham/cdk-example/internal/topology"
)

// Metadata keys written to every template.
const (
	MetadataStack  = "cdk-example:stack"
	MetadataRegion = "cdk-example:region"
)

// Synthesizer turns a configuration into a resource graph.
type Synthesizer struct {
	config   *config.Config
	baseDir  string
	observer provisioning.Observer

	// Phases
	validation *provisioning.ValidationPhase
	phases     []provisioning.Phase
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithBaseDir resolves a relative user_data_file against dir.
func WithBaseDir(dir string) Option {
	return func(s *Synthesizer) { s.baseDir = dir }
}

// WithObserver replaces the observer built from the context logger.
func WithObserver(o provisioning.Observer) Option {
	return func(s *Synthesizer) { s.observer = o }
}

// NewSynthesizer creates a synthesizer for cfg.
func NewSynthesizer(cfg *config.Config, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		config:     cfg,
		validation: provisioning.NewValidationPhase(),
		phases: []provisioning.Phase{
			infrastructure.NewProvisioner(),
			compute.NewProvisioner(),
			delivery.NewProvisioner(),
			identity.NewProvisioner(),
			storage.NewProvisioner(),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize builds the graph for cfg with default options.
func Synthesize(ctx context.Context, cfg *config.Config) (*topology.Graph, error) {
	return NewSynthesizer(cfg).Synthesize(ctx)
}

// Synthesize validates the configuration, runs every phase and freezes the
// result. It fails on the first violated constraint.
func (s *Synthesizer) Synthesize(ctx context.Context) (*topology.Graph, error) {
	// 1. Validation happens before the layout is planned
	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	userData, err := s.config.UserData(s.baseDir)
	if err != nil {
		return nil, err
	}

	// 2. Setup Provisioning Context
	pCtx, err := provisioning.NewContext(ctx, s.config, userData)
	if err != nil {
		return nil, err
	}
	if s.observer != nil {
		pCtx.Observer = s.observer
	}
	pCtx.Builder.SetMetadata(MetadataStack, s.config.StackName)
	pCtx.Builder.SetMetadata(MetadataRegion, s.config.Region)

	// 3. Sequential Execution of Provisioning Phases
	phases := append([]provisioning.Phase{s.validation}, s.phases...)
	if err := provisioning.RunPhases(pCtx, phases); err != nil {
		return nil, err
	}

	// 4. Freeze and check
	g, err := pCtx.Builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build topology: %w", err)
	}
	if err := CheckInvariants(pCtx, g); err != nil {
		return nil, err
	}

	pCtx.Observer.Printf("Synthesized %d resources", g.Len())
	return g, nil
}
