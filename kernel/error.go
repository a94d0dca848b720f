package kernel

// Error describes a kernel error. All kernel errors must be defined as
// global variables that are pointers to the Error structure so that the
// boot path performs no allocations while reporting them.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
