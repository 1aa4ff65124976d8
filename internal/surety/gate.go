package surety

import (
	"fmt"

	"flight_surety/internal/models"
)

// IsOperational is readable while paused so monitors can check the gate
func (e *Engine) IsOperational() bool {
	return e.operational
}

// SetOperational opens or closes the gate. Only the owner may call it, and it stays
// callable while paused.
func (e *Engine) SetOperational(c Call, operational bool) error {
	if c.Caller != e.owner {
		return fmt.Errorf("%w: only the owner can change operational status", ErrUnauthorized)
	}
	if err := requireNoValue(c); err != nil {
		return err
	}
	if e.operational == operational {
		return nil
	}
	e.operational = operational
	e.host.Emit(models.NewOperationalChangedEvent(c.Caller, operational))
	return nil
}

func (e *Engine) requireOperational() error {
	if !e.operational {
		return ErrSystemPaused
	}
	return nil
}
