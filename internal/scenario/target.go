package scenario

import (
	"fmt"

	"multilateration-sim/internal/common"

	"github.com/google/uuid"
)

// Target is a signal source whose position the solver estimates.
type Target struct {
	id       string
	position common.Vector
}

// NewTarget creates a new target at a given position.
func NewTarget(pos common.Vector) *Target {
	return &Target{
		id:       fmt.Sprintf("target-%s", uuid.NewString()[:8]),
		position: pos.Clone(),
	}
}

// GetID returns the unique identifier of the target.
func (t *Target) GetID() string {
	return t.id
}

// GetPosition returns the current position of the target.
func (t *Target) GetPosition() common.Vector {
	return t.position.Clone()
}

// SetPosition sets the position of the target.
func (t *Target) SetPosition(pos common.Vector) error {
	if pos.Dimension() != t.position.Dimension() {
		return fmt.Errorf("dimension mismatch: expected %d, got %d", t.position.Dimension(), pos.Dimension())
	}
	t.position = pos.Clone()
	return nil
}

func (t *Target) String() string {
	return fmt.Sprintf("Target[%s] Pos: %s", t.id, t.position)
}
