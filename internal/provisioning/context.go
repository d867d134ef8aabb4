package provisioning

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/joel-cunningham/cdk-example/internal/config"
	"github.com/joel-cunningham/cdk-example/internal/topology"
	"github.com/joel-cunningham/cdk-example/internal/util/labels"
)

// Context wraps all dependencies and state needed for a provisioning phase.
type Context struct {
	context.Context
	Config   *config.Config
	Layout   *config.NetworkLayout
	Builder  *topology.Builder
	State    *State
	Observer Observer
	Timeouts *config.Timeouts

	// UserData is the bootstrap payload handed to every fleet member.
	UserData string
}

// NewContext creates a new provisioning context. The observer writes to the
// logger carried by ctx.
func NewContext(ctx context.Context, cfg *config.Config, userData string) (*Context, error) {
	layout, err := cfg.Layout()
	if err != nil {
		return nil, fmt.Errorf("failed to plan network: %w", err)
	}
	return &Context{
		Context:  ctx,
		Config:   cfg,
		Layout:   layout,
		Builder:  topology.NewBuilder(cfg.Description),
		State:    NewState(),
		Observer: NewLogObserver(logr.FromContextOrDiscard(ctx).WithName("synth")),
		Timeouts: config.LoadTimeouts(),
		UserData: userData,
	}, nil
}

// Declare adds a resource to the builder and reports it to the observer.
func (c *Context) Declare(phase string, r topology.Resource) error {
	if err := c.Builder.Add(r); err != nil {
		LogResourceFailed(c.Observer, phase, r.Type, r.LogicalID, err)
		return fmt.Errorf("failed to declare %s: %w", r.LogicalID, err)
	}
	LogResourceDeclared(c.Observer, phase, r.Type, r.LogicalID)
	return nil
}

// Tags starts the tag set of a resource in the given component, including
// the stack-wide tags from the configuration.
func (c *Context) Tags(component topology.Component) *labels.TagBuilder {
	return labels.NewTagBuilder(c.Config.StackName).
		Merge(c.Config.Tags).
		WithComponent(string(component))
}
