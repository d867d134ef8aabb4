package provisioning

// Logger is the printf-style logging surface phases use for free-form
// progress messages.
type Logger interface {
	Printf(format string, v ...any)
}

// Phase defines the interface for a provisioning phase.
type Phase interface {
	// Name returns the human-readable name of this phase.
	Name() string

	// Provision declares the resources of this phase on ctx.Builder.
	Provision(ctx *Context) error
}
