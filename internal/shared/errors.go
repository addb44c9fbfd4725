package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Store errors
	ErrNotFound         = fmt.Errorf("record not found")
	ErrStoreUnavailable = fmt.Errorf("store unavailable")

	// Matching errors
	ErrInvalidEntry = fmt.Errorf("invalid predb entry")
	ErrGroupLocked  = fmt.Errorf("group is already being processed")
	ErrInvalidStage = fmt.Errorf("invalid stage target")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
