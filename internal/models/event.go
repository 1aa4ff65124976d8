package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventKind names a notification emitted by the engine
type EventKind string

const (
	// Consumed by external oracle processes and monitors
	EventOracleRequest         EventKind = "OracleRequest"
	EventOracleReport          EventKind = "OracleReport"
	EventAirlineRegistered     EventKind = "AirlineRegistered"
	EventFlightStatusFinalized EventKind = "FlightStatusFinalized"

	// Bookkeeping
	EventAirlineVoted       EventKind = "AirlineVoted"
	EventAirlineFunded      EventKind = "AirlineFunded"
	EventFlightRegistered   EventKind = "FlightRegistered"
	EventInsurancePurchased EventKind = "InsurancePurchased"
	EventInsureeCredited    EventKind = "InsureeCredited"
	EventCreditPaid         EventKind = "CreditPaid"
	EventOracleRegistered   EventKind = "OracleRegistered"
	EventOperationalChanged EventKind = "OperationalChanged"
)

// Event is a notification broadcast by the host ledger after the emitting transaction commits.
// Only the fields relevant to Kind are set.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Kind       EventKind       `json:"kind"`
	Block      uint64          `json:"block"`
	OccurredAt time.Time       `json:"occurred_at"`
	Address    Address         `json:"address,omitempty"` // airline, passenger or oracle the event is about
	Flight     *FlightKey      `json:"flight,omitempty"`
	Index      *uint8          `json:"index,omitempty"`
	Status     *StatusCode     `json:"status,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Flag       *bool           `json:"flag,omitempty"`
}

// PartitionKey groups events for ordered delivery: by flight when present, otherwise by account
func (e Event) PartitionKey() string {
	if e.Flight != nil {
		return e.Flight.String()
	}
	return e.Address.String()
}

func NewOracleRequestEvent(key RequestKey) Event {
	flight := key.FlightKey
	idx := key.Index
	return Event{Kind: EventOracleRequest, Flight: &flight, Index: &idx}
}

func NewOracleReportEvent(oracle Address, key RequestKey, status StatusCode) Event {
	flight := key.FlightKey
	idx := key.Index
	return Event{Kind: EventOracleReport, Address: oracle, Flight: &flight, Index: &idx, Status: &status}
}

func NewFlightStatusFinalizedEvent(key FlightKey, status StatusCode) Event {
	return Event{Kind: EventFlightStatusFinalized, Flight: &key, Status: &status}
}

// NewAccountEvent covers events about a single account (airline admission, funding, oracle registration)
func NewAccountEvent(kind EventKind, addr Address) Event {
	return Event{Kind: kind, Address: addr}
}

func NewFlightEvent(kind EventKind, key FlightKey) Event {
	return Event{Kind: kind, Address: key.Airline, Flight: &key}
}

func NewValueEvent(kind EventKind, addr Address, flight *FlightKey, amount decimal.Decimal) Event {
	return Event{Kind: kind, Address: addr, Flight: flight, Amount: amount}
}

func NewOperationalChangedEvent(owner Address, operational bool) Event {
	return Event{Kind: EventOperationalChanged, Address: owner, Flag: &operational}
}
