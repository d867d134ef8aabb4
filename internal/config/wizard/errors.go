package wizard

import "errors"

// Validation errors for the interactive wizard.
var (
	errStackNameRequired  = errors.New("stack name is required")
	errStackNameInvalid   = errors.New("stack name must start with a letter and contain only letters, digits or hyphens")
	errCIDRRequired       = errors.New("CIDR is required")
	errCIDRInvalid        = errors.New("invalid CIDR format (expected: x.x.x.x/16 to x.x.x.x/28)")
	errRepositoryRequired = errors.New("repository is required")
	errRepositoryInvalid  = errors.New("repository must be owner/name")
	errCapacityInvalid    = errors.New("capacity must be a positive number")
)
