package surety

import (
	"fmt"
	"log/slog"
	"slices"

	"flight_surety/internal/models"
)

// airline returns the record for addr, creating an Unregistered one on first reference
func (e *Engine) airline(addr models.Address) *models.Airline {
	a, ok := e.airlines[addr]
	if !ok {
		a = &models.Airline{Address: addr, Status: models.AirlineUnregistered}
		e.airlines[addr] = a
	}
	return a
}

func (e *Engine) status(addr models.Address) models.AirlineStatus {
	if a, ok := e.airlines[addr]; ok {
		return a.Status
	}
	return models.AirlineUnregistered
}

// IsRegistered is true for Registered and Funded airlines
func (e *Engine) IsRegistered(addr models.Address) bool {
	return e.status(addr) != models.AirlineUnregistered
}

func (e *Engine) IsFunded(addr models.Address) bool {
	return e.status(addr) == models.AirlineFunded
}

// FundedCount is the number of airlines allowed to act in the consortium
func (e *Engine) FundedCount() int {
	return e.fundedCount
}

// Airline returns a copy of the airline record
func (e *Engine) Airline(addr models.Address) models.Airline {
	a, ok := e.airlines[addr]
	if !ok {
		return models.Airline{Address: addr, Status: models.AirlineUnregistered}
	}
	cp := *a
	cp.Votes = slices.Clone(a.Votes)
	return cp
}

// RegisterAirline admits candidate. While fewer than BootstrapAirlines airlines are funded,
// any funded airline admits unilaterally; afterwards each call is one vote and the candidate
// is admitted once votes*2 >= funded airlines.
func (e *Engine) RegisterAirline(c Call, candidate models.Address) error {
	if err := e.requireOperational(); err != nil {
		return err
	}
	if err := requireNoValue(c); err != nil {
		return err
	}
	if candidate.IsZero() {
		return fmt.Errorf("%w: candidate address is required", ErrInvalidArgument)
	}
	if !e.IsFunded(c.Caller) {
		return fmt.Errorf("%w: caller %s is not a funded airline", ErrUnauthorized, c.Caller)
	}

	if e.status(candidate) != models.AirlineUnregistered {
		return nil
	}

	n := e.fundedCount
	if n < e.params.BootstrapAirlines {
		e.admit(e.airline(candidate))
		return nil
	}

	if a, ok := e.airlines[candidate]; ok && slices.Contains(a.Votes, c.Caller) {
		return fmt.Errorf("%w: %s already voted for %s", ErrDuplicateVote, c.Caller, candidate)
	}

	a := e.airline(candidate)
	a.Votes = append(a.Votes, c.Caller)
	e.host.Emit(models.NewAccountEvent(models.EventAirlineVoted, candidate))
	slog.Debug("Airline admission vote",
		"candidate", candidate,
		"voter", c.Caller,
		"votes", len(a.Votes),
		"funded_airlines", n,
	)

	if len(a.Votes)*2 >= n {
		e.admit(a)
	}
	return nil
}

func (e *Engine) admit(a *models.Airline) {
	a.Status = models.AirlineRegistered
	a.Votes = nil
	e.host.Emit(models.NewAccountEvent(models.EventAirlineRegistered, a.Address))
}

// Fund stakes the airline fee. Only a Registered airline attaching exactly the fee may fund;
// any other stake, including one from an unregistered account, is an invalid amount.
func (e *Engine) Fund(c Call) error {
	if err := e.requireOperational(); err != nil {
		return err
	}
	switch e.status(c.Caller) {
	case models.AirlineFunded:
		return fmt.Errorf("%w: %s", ErrDuplicateFunding, c.Caller)
	case models.AirlineUnregistered:
		return fmt.Errorf("%w: %s is not a registered airline", ErrInvalidAmount, c.Caller)
	}
	if !c.Value.Equal(e.params.AirlineFee) {
		return fmt.Errorf("%w: airline fee is %s ether, got %s",
			ErrInvalidAmount, models.FormatEther(e.params.AirlineFee), models.FormatEther(c.Value))
	}

	e.airlines[c.Caller].Status = models.AirlineFunded
	e.fundedCount++
	e.host.Emit(models.NewValueEvent(models.EventAirlineFunded, c.Caller, nil, c.Value))
	return nil
}
