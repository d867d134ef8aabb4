package destroy

import (
	"fmt"

	"github.com/joel-cunningham/cdk-example/internal/provisioning"
	"github.com/joel-cunningham/cdk-example/internal/topology"
)

// Action is what teardown does with one resource.
type Action string

const (
	ActionDelete Action = "delete"
	ActionRetain Action = "retain"
)

// Step is one resource in teardown order.
type Step struct {
	LogicalID string
	Type      string
	Component topology.Component
	Action    Action
}

// Plan is the ordered teardown of a stack.
type Plan struct {
	Stack string
	Steps []Step
}

// Provisioner plans stack destruction.
type Provisioner struct{}

// NewProvisioner creates a new destroy provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name returns the phase name.
func (p *Provisioner) Name() string {
	return "destroy"
}

// Plan returns the teardown of g, dependents before their dependencies.
func (p *Provisioner) Plan(ctx *provisioning.Context, g *topology.Graph) (*Plan, error) {
	if g == nil {
		return nil, fmt.Errorf("no topology to destroy")
	}
	ctx.Observer.Printf("[Destroy] Planning teardown for: %s", ctx.Config.StackName)

	plan := &Plan{Stack: ctx.Config.StackName}
	for _, id := range g.DestroyOrder() {
		r, ok := g.Resource(id)
		if !ok {
			return nil, fmt.Errorf("resource %s missing from graph", id)
		}
		step := Step{LogicalID: id, Type: r.Type, Component: r.Component, Action: ActionDelete}
		if r.DeletionPolicy == topology.DeletionRetain {
			step.Action = ActionRetain
			ctx.Observer.Printf("[Destroy] %s (%s) is retained and must be removed by hand", id, r.Type)
		}
		plan.Steps = append(plan.Steps, step)
	}

	ctx.Observer.Printf("[Destroy] %d resources deleted, %d retained", len(plan.Deleted()), len(plan.Retained()))
	return plan, nil
}

// Deleted returns the logical IDs teardown removes, in order.
func (p *Plan) Deleted() []string {
	return p.ids(ActionDelete)
}

// Retained returns the logical IDs teardown leaves in place.
func (p *Plan) Retained() []string {
	return p.ids(ActionRetain)
}

func (p *Plan) ids(a Action) []string {
	var out []string
	for _, s := range p.Steps {
		if s.Action == a {
			out = append(out, s.LogicalID)
		}
	}
	return out
}
