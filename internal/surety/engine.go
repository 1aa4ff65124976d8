// Package surety implements the flight-delay insurance engine: airline admission,
// flight registry, insurance escrow and payouts, and oracle consensus on flight status.
//
// The engine is not safe for concurrent use. The host ledger serializes every call and
// rolls back the value movements of a rejected transaction; the engine guarantees that a
// rejected call leaves its own state untouched.
package surety

import (
	"fmt"

	"flight_surety/internal/models"

	"github.com/shopspring/decimal"
)

// Host is the ledger the engine runs on
type Host interface {
	// Transfer sends value held by the engine to an account. On error the
	// enclosing transaction is rolled back by the host.
	Transfer(to models.Address, amount decimal.Decimal) error
	// Emit queues a notification, broadcast once the transaction commits
	Emit(ev models.Event)
	// BlockNumber is the monotonic ordering reference of the current transaction
	BlockNumber() uint64
}

// Call carries the identity and attached value of the transaction being applied
type Call struct {
	Caller models.Address
	Value  decimal.Decimal
}

type flightPolicies struct {
	holders []models.Address // purchase order
	stakes  map[models.Address]decimal.Decimal
	settled bool
}

// Engine holds all insurance state
type Engine struct {
	host    Host
	params  Params
	indexes IndexSource

	owner       models.Address
	operational bool

	airlines    map[models.Address]*models.Airline
	fundedCount int

	flights  map[models.FlightKey]*models.Flight
	policies map[models.FlightKey]*flightPolicies
	credits  map[models.Address]decimal.Decimal
	escrow   decimal.Decimal

	oracles  map[models.Address]models.Indexes
	requests map[models.RequestKey]*models.OracleRequest
}

// New deploys the engine. The owner controls the operational gate for the engine's lifetime;
// firstAirline is admitted as Registered without a vote.
func New(host Host, owner, firstAirline models.Address, params Params, src IndexSource) (*Engine, error) {
	if host == nil {
		return nil, fmt.Errorf("host is required")
	}
	if src == nil {
		return nil, fmt.Errorf("index source is required")
	}
	if owner.IsZero() || firstAirline.IsZero() {
		return nil, fmt.Errorf("owner and first airline are required")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	e := &Engine{
		host:        host,
		params:      params,
		indexes:     src,
		owner:       owner,
		operational: true,
		airlines:    make(map[models.Address]*models.Airline),
		flights:     make(map[models.FlightKey]*models.Flight),
		policies:    make(map[models.FlightKey]*flightPolicies),
		credits:     make(map[models.Address]decimal.Decimal),
		escrow:      decimal.Zero,
		oracles:     make(map[models.Address]models.Indexes),
		requests:    make(map[models.RequestKey]*models.OracleRequest),
	}
	e.admit(e.airline(firstAirline))
	return e, nil
}

// Params returns the deployment constants
func (e *Engine) Params() Params {
	return e.params
}

// Owner returns the account allowed to toggle the operational gate
func (e *Engine) Owner() models.Address {
	return e.owner
}

// Stats is a snapshot of engine-wide counters
type Stats struct {
	Operational       bool
	FundedAirlines    int
	Flights           int
	Oracles           int
	OpenRequests      int
	Escrow            decimal.Decimal
	OutstandingCredit decimal.Decimal
}

func (e *Engine) Stats() Stats {
	s := Stats{
		Operational:       e.operational,
		FundedAirlines:    e.fundedCount,
		Flights:           len(e.flights),
		Oracles:           len(e.oracles),
		Escrow:            e.escrow,
		OutstandingCredit: decimal.Zero,
	}
	for _, req := range e.requests {
		if req.Open {
			s.OpenRequests++
		}
	}
	for _, c := range e.credits {
		s.OutstandingCredit = s.OutstandingCredit.Add(c)
	}
	return s
}

// requireNoValue rejects value attached to an operation that does not accept payment
func requireNoValue(c Call) error {
	if !c.Value.IsZero() {
		return fmt.Errorf("%w: operation does not accept value", ErrInvalidAmount)
	}
	return nil
}
