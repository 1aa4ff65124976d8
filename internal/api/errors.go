package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"flight_surety/internal/ledger"
	"flight_surety/internal/surety"
)

const codeInsufficientFunds = "INSUFFICIENT_FUNDS"

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps an engine error code to an HTTP status
func statusFor(code surety.Code) int {
	switch code {
	case surety.CodeUnauthorized:
		return http.StatusForbidden
	case surety.CodeSystemPaused:
		return http.StatusServiceUnavailable
	case surety.CodeDuplicateFlight, surety.CodeDuplicatePolicy, surety.CodeDuplicateOracle,
		surety.CodeDuplicateVote, surety.CodeDuplicateResponse, surety.CodeDuplicateFunding:
		return http.StatusConflict
	case surety.CodeUnknownFlight, surety.CodeNoSuchRequest, surety.CodeNotRegistered:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := string(surety.CodeOf(err))
	if errors.Is(err, ledger.ErrInsufficientFunds) {
		code = codeInsufficientFunds
	}
	writeJSON(w, statusFor(surety.Code(code)), errorResponse{Error: err.Error(), Code: code})
}

// writeBadRequest reports a malformed request that never reached the engine
func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: string(surety.CodeInvalidArgument)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
