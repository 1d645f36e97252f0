package core

import "fmt"

// Protocol error codes, mirroring the wl_display error enum. A
// ProtocolError is fatal to the connection that caused it and to
// nothing else.
const (
	ErrInvalidObject uint32 = iota
	ErrInvalidMethod
	ErrNoMemory
	ErrImplementation
)

// ProtocolError indicates a malformed or out-of-order client request.
// The offending connection is terminated; the compositor and all
// other clients continue.
type ProtocolError struct {
	Object uint32
	Code   uint32
	Reason string
}

func (err *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error on object %v (code %v): %v", err.Object, err.Code, err.Reason)
}

// RoleError indicates an operation invalid for a surface's current
// role. The request fails; the connection survives.
type RoleError struct {
	Role Role
	Op   string
}

func (err *RoleError) Error() string {
	return fmt.Sprintf("operation %q invalid for surface role %v", err.Op, err.Role)
}
