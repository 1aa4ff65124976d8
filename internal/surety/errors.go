package surety

import "errors"

// Code is a machine-readable error kind
type Code string

const (
	CodeUnknown           Code = "UNKNOWN"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeInvalidAmount     Code = "INVALID_AMOUNT"
	CodeInvalidFee        Code = "INVALID_FEE"
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeDuplicateFlight   Code = "DUPLICATE_FLIGHT"
	CodeDuplicatePolicy   Code = "DUPLICATE_POLICY"
	CodeDuplicateOracle   Code = "DUPLICATE_ORACLE"
	CodeDuplicateVote     Code = "DUPLICATE_VOTE"
	CodeDuplicateResponse Code = "DUPLICATE_RESPONSE"
	CodeDuplicateFunding  Code = "DUPLICATE_FUNDING"
	CodeUnknownFlight     Code = "UNKNOWN_FLIGHT"
	CodeNoSuchRequest     Code = "NO_SUCH_REQUEST"
	CodeNotRegistered     Code = "NOT_REGISTERED"
	CodeNoCredit          Code = "NO_CREDIT"
	CodeSystemPaused      Code = "SYSTEM_PAUSED"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidFee        = errors.New("invalid fee")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrDuplicateFlight   = errors.New("flight already registered")
	ErrDuplicatePolicy   = errors.New("policy already exists")
	ErrDuplicateOracle   = errors.New("oracle already registered")
	ErrDuplicateVote     = errors.New("vote already cast")
	ErrDuplicateResponse = errors.New("oracle already responded")
	ErrDuplicateFunding  = errors.New("airline already funded")
	ErrUnknownFlight     = errors.New("unknown flight")
	ErrNoSuchRequest     = errors.New("no such oracle request")
	ErrNotRegistered     = errors.New("oracle not registered")
	ErrNoCredit          = errors.New("no credit")
	ErrSystemPaused      = errors.New("system paused")
)

var codes = []struct {
	err  error
	code Code
}{
	{ErrUnauthorized, CodeUnauthorized},
	{ErrInvalidAmount, CodeInvalidAmount},
	{ErrInvalidFee, CodeInvalidFee},
	{ErrInvalidArgument, CodeInvalidArgument},
	{ErrDuplicateFlight, CodeDuplicateFlight},
	{ErrDuplicatePolicy, CodeDuplicatePolicy},
	{ErrDuplicateOracle, CodeDuplicateOracle},
	{ErrDuplicateVote, CodeDuplicateVote},
	{ErrDuplicateResponse, CodeDuplicateResponse},
	{ErrDuplicateFunding, CodeDuplicateFunding},
	{ErrUnknownFlight, CodeUnknownFlight},
	{ErrNoSuchRequest, CodeNoSuchRequest},
	{ErrNotRegistered, CodeNotRegistered},
	{ErrNoCredit, CodeNoCredit},
	{ErrSystemPaused, CodeSystemPaused},
}

// CodeOf classifies an error returned by the engine
func CodeOf(err error) Code {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeUnknown
}
