package models

import (
	"fmt"
	"strconv"
	"strings"
)

// StatusCode is the flight status reported by oracles
type StatusCode uint8

// Flight status codes, as reported by oracle processes
const (
	StatusUnknown       StatusCode = 0
	StatusOnTime        StatusCode = 10
	StatusLateAirline   StatusCode = 20
	StatusLateWeather   StatusCode = 30
	StatusLateTechnical StatusCode = 40
	StatusLateOther     StatusCode = 50
)

var statusNames = map[StatusCode]string{
	StatusUnknown:       "unknown",
	StatusOnTime:        "on_time",
	StatusLateAirline:   "late_airline",
	StatusLateWeather:   "late_weather",
	StatusLateTechnical: "late_technical",
	StatusLateOther:     "late_other",
}

// Valid returns true for the six defined status codes
func (s StatusCode) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

func (s StatusCode) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "status_" + strconv.Itoa(int(s))
}

// ParseStatusCode accepts either the numeric code or its name
func ParseStatusCode(s string) (StatusCode, error) {
	for code, name := range statusNames {
		if name == s {
			return code, nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown status code: %s", s)
	}
	code := StatusCode(n)
	if !code.Valid() {
		return 0, fmt.Errorf("unknown status code: %d", n)
	}
	return code, nil
}

// FlightKey identifies a flight. Designator and departure time are only unique per airline.
type FlightKey struct {
	Airline   Address `json:"airline"`
	Flight    string  `json:"flight"`
	Timestamp int64   `json:"timestamp"` // departure, unix seconds
}

// NormalizeFlight is the canonical form of a flight designator
func NormalizeFlight(flight string) string {
	return strings.TrimSpace(flight)
}

// Normalized returns k with its designator in canonical form
func (k FlightKey) Normalized() FlightKey {
	k.Flight = NormalizeFlight(k.Flight)
	return k
}

func (k FlightKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.Airline, k.Flight, k.Timestamp)
}

// Flight is a registered flight and its current status
type Flight struct {
	Key        FlightKey
	Status     StatusCode
	Registered bool
	Finalized  bool   // status was set by oracle consensus
	UpdatedAt  uint64 // block of the last status change
}
