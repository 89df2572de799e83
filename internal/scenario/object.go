package scenario

import "multilateration-sim/internal/common"

// Object is anything placed in a scenario.
type Object interface {
	// GetPosition returns a copy of the object's position.
	GetPosition() common.Vector
	// SetPosition moves the object. The dimension must not change.
	SetPosition(pos common.Vector) error
	// GetID returns the unique identifier of the object.
	GetID() string
}
