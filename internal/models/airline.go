package models

// AirlineStatus is the lifecycle stage of an airline account
type AirlineStatus uint8

const (
	AirlineUnregistered AirlineStatus = iota
	AirlineRegistered
	AirlineFunded
)

func (s AirlineStatus) String() string {
	switch s {
	case AirlineRegistered:
		return "registered"
	case AirlineFunded:
		return "funded"
	default:
		return "unregistered"
	}
}

// Airline is a participant in the consortium.
// Votes is only populated while the candidate waits for majority admission.
type Airline struct {
	Address Address
	Status  AirlineStatus
	Votes   []Address
}
