package surety

import (
	"fmt"
	"log/slog"
	"slices"

	"flight_surety/internal/models"
)

// RegisterOracle registers the caller as an oracle and assigns its three indexes
func (e *Engine) RegisterOracle(c Call) error {
	if err := e.requireOperational(); err != nil {
		return err
	}
	if !c.Value.Equal(e.params.OracleFee) {
		return fmt.Errorf("%w: registration fee is %s ether, got %s",
			ErrInvalidFee, models.FormatEther(e.params.OracleFee), models.FormatEther(c.Value))
	}
	if _, ok := e.oracles[c.Caller]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateOracle, c.Caller)
	}

	ix := generateIndexes(e.indexes, c.Caller, e.params.IndexBound)
	e.oracles[c.Caller] = ix
	e.host.Emit(models.NewAccountEvent(models.EventOracleRegistered, c.Caller))
	slog.Debug("Oracle registered", "oracle", c.Caller, "indexes", ix)
	return nil
}

// Indexes returns the indexes assigned to oracle
func (e *Engine) Indexes(oracle models.Address) (models.Indexes, error) {
	ix, ok := e.oracles[oracle]
	if !ok {
		return models.Indexes{}, fmt.Errorf("%w: %s", ErrNotRegistered, oracle)
	}
	return ix, nil
}

// FetchStatus opens a status request for a flight under a freshly drawn index and
// announces it to oracle processes. Drawing an index whose request already settled
// leaves it settled and emits nothing.
func (e *Engine) FetchStatus(c Call, key models.FlightKey) (models.RequestKey, error) {
	if err := e.requireOperational(); err != nil {
		return models.RequestKey{}, err
	}
	if err := requireNoValue(c); err != nil {
		return models.RequestKey{}, err
	}
	key = key.Normalized()
	if key.Airline.IsZero() || key.Flight == "" {
		return models.RequestKey{}, fmt.Errorf("%w: airline and flight are required", ErrInvalidArgument)
	}

	rk := models.RequestKey{
		Index:     e.indexes.Index(c.Caller, e.params.IndexBound),
		FlightKey: key,
	}
	req, ok := e.requests[rk]
	if ok && !req.Open {
		slog.Debug("Status request already settled", "index", rk.Index, "flight", key.String())
		return rk, nil
	}
	if !ok {
		e.requests[rk] = &models.OracleRequest{
			Key:       rk,
			Requester: c.Caller,
			Open:      true,
			Responses: make(map[models.StatusCode][]models.Address),
		}
	}
	e.host.Emit(models.NewOracleRequestEvent(rk))
	return rk, nil
}

// Request returns a copy of the request state
func (e *Engine) Request(rk models.RequestKey) (models.OracleRequest, bool) {
	rk.FlightKey = rk.FlightKey.Normalized()
	req, ok := e.requests[rk]
	if !ok {
		return models.OracleRequest{}, false
	}
	cp := *req
	cp.Responses = make(map[models.StatusCode][]models.Address, len(req.Responses))
	for status, voters := range req.Responses {
		cp.Responses[status] = slices.Clone(voters)
	}
	return cp, true
}

// SubmitResponse records an oracle's report. The caller must hold rk.Index. Reports against a
// settled request are ignored; a second report from the same oracle is rejected whatever its status.
// Once MinResponses oracles agree, the request settles, the flight status is finalized, and
// policyholders are credited if the airline is at fault.
func (e *Engine) SubmitResponse(c Call, rk models.RequestKey, status models.StatusCode) error {
	if err := e.requireOperational(); err != nil {
		return err
	}
	if err := requireNoValue(c); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status code %d", ErrInvalidArgument, status)
	}
	rk.FlightKey = rk.FlightKey.Normalized()
	ix, ok := e.oracles[c.Caller]
	if !ok || !ix.Contains(rk.Index) {
		return fmt.Errorf("%w: %s does not hold index %d", ErrUnauthorized, c.Caller, rk.Index)
	}
	req, ok := e.requests[rk]
	if !ok {
		return fmt.Errorf("%w: index %d for %s", ErrNoSuchRequest, rk.Index, rk.FlightKey)
	}
	if !req.Open {
		slog.Debug("Ignoring report for settled request",
			"oracle", c.Caller,
			"index", rk.Index,
			"flight", rk.FlightKey.String(),
			"status", status.String(),
		)
		return nil
	}
	if req.Responded(c.Caller) {
		return fmt.Errorf("%w: %s on index %d for %s", ErrDuplicateResponse, c.Caller, rk.Index, rk.FlightKey)
	}

	req.Responses[status] = append(req.Responses[status], c.Caller)
	e.host.Emit(models.NewOracleReportEvent(c.Caller, rk, status))

	if len(req.Responses[status]) >= e.params.MinResponses {
		e.settle(req, status)
	}
	return nil
}

func (e *Engine) settle(req *models.OracleRequest, status models.StatusCode) {
	req.Open = false
	req.Status = status
	slog.Info("Oracle request settled",
		"index", req.Key.Index,
		"flight", req.Key.FlightKey.String(),
		"status", status.String(),
	)

	if !e.setStatus(req.Key.FlightKey, status) {
		return
	}
	e.releaseEscrow(req.Key.FlightKey)
	if status == models.StatusLateAirline {
		e.creditInsurees(req.Key.FlightKey)
	}
}
