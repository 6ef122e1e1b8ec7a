package spatial

import "errors"

// Error kinds shared by every core subsystem. Callers match with errors.Is;
// producing sites wrap with fmt.Errorf("%w: ...") to add context.
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrOutOfRange      = errors.New("out of range")
)
