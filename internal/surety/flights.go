package surety

import (
	"fmt"

	"flight_surety/internal/models"
)

// RegisterFlight registers a flight for the calling airline
func (e *Engine) RegisterFlight(c Call, flight string, timestamp int64) error {
	if err := e.requireOperational(); err != nil {
		return err
	}
	if err := requireNoValue(c); err != nil {
		return err
	}
	flight = models.NormalizeFlight(flight)
	if flight == "" {
		return fmt.Errorf("%w: flight designator is required", ErrInvalidArgument)
	}
	if !e.IsFunded(c.Caller) {
		return fmt.Errorf("%w: caller %s is not a funded airline", ErrUnauthorized, c.Caller)
	}

	key := models.FlightKey{Airline: c.Caller, Flight: flight, Timestamp: timestamp}
	if _, ok := e.flights[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFlight, key)
	}

	e.flights[key] = &models.Flight{
		Key:        key,
		Status:     models.StatusUnknown,
		Registered: true,
		UpdatedAt:  e.host.BlockNumber(),
	}
	e.host.Emit(models.NewFlightEvent(models.EventFlightRegistered, key))
	return nil
}

func (e *Engine) IsFlight(key models.FlightKey) bool {
	f, ok := e.flights[key.Normalized()]
	return ok && f.Registered
}

// Flight returns a copy of the flight record
func (e *Engine) Flight(key models.FlightKey) (models.Flight, bool) {
	f, ok := e.flights[key.Normalized()]
	if !ok {
		return models.Flight{}, false
	}
	return *f, true
}

// setStatus records the consensus status of a flight. A flight is finalized at most once;
// later settlements for the same flight under another index do not change it.
func (e *Engine) setStatus(key models.FlightKey, status models.StatusCode) bool {
	f, ok := e.flights[key]
	if !ok || f.Finalized {
		return false
	}
	f.Status = status
	f.Finalized = true
	f.UpdatedAt = e.host.BlockNumber()
	e.host.Emit(models.NewFlightStatusFinalizedEvent(key, status))
	return true
}
