package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"flight_surety/internal/database"
	"flight_surety/internal/ledger"
	"flight_surety/internal/models"
	"flight_surety/internal/surety"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const (
	headerCaller = "X-Caller"
	headerValue  = "X-Value"
)

type Handlers struct {
	ledger  *ledger.Ledger
	engine  *surety.Engine
	journal database.JournalRepository
}

// NewHandlers serves the engine over HTTP. journal may be nil, which disables the /journal routes.
func NewHandlers(l *ledger.Ledger, engine *surety.Engine, journal database.JournalRepository) *Handlers {
	return &Handlers{
		ledger:  l,
		engine:  engine,
		journal: journal,
	}
}

type flightRequest struct {
	Airline   models.Address `json:"airline"`
	Flight    string         `json:"flight"`
	Timestamp int64          `json:"timestamp"`
}

func (f flightRequest) key() (models.FlightKey, error) {
	airline, err := models.ParseAddress(string(f.Airline))
	if err != nil {
		return models.FlightKey{}, err
	}
	return models.FlightKey{Airline: airline, Flight: f.Flight, Timestamp: f.Timestamp}.Normalized(), nil
}

type airlineResponse struct {
	Address models.Address   `json:"address"`
	Status  string           `json:"status"`
	Votes   []models.Address `json:"votes"`
}

type flightResponse struct {
	models.FlightKey
	Status     models.StatusCode `json:"status"`
	StatusName string            `json:"status_name"`
	Finalized  bool              `json:"finalized"`
	UpdatedAt  uint64            `json:"updated_block"`
}

type requestResponse struct {
	models.RequestKey
	Requester models.Address    `json:"requester"`
	Open      bool              `json:"open"`
	Status    models.StatusCode `json:"status"`
	Responses map[string]int    `json:"responses"`
}

type amountResponse struct {
	Address models.Address  `json:"address"`
	Wei     decimal.Decimal `json:"wei"`
	Ether   string          `json:"ether"`
}

func newAmountResponse(addr models.Address, wei decimal.Decimal) amountResponse {
	return amountResponse{Address: addr, Wei: wei, Ether: models.FormatEther(wei)}
}

func newAirlineResponse(a models.Airline) airlineResponse {
	votes := a.Votes
	if votes == nil {
		votes = []models.Address{}
	}
	return airlineResponse{Address: a.Address, Status: a.Status.String(), Votes: votes}
}

func newRequestResponse(req models.OracleRequest) requestResponse {
	counts := make(map[string]int, len(req.Responses))
	for status, oracles := range req.Responses {
		counts[strconv.Itoa(int(status))] = len(oracles)
	}
	return requestResponse{
		RequestKey: req.Key,
		Requester:  req.Requester,
		Open:       req.Open,
		Status:     req.Status,
		Responses:  counts,
	}
}

// caller reads the transaction sender from the X-Caller header
func caller(r *http.Request) (models.Address, error) {
	raw := r.Header.Get(headerCaller)
	if raw == "" {
		return "", fmt.Errorf("missing %s header", headerCaller)
	}
	return models.ParseAddress(raw)
}

// value reads the attached wei from the X-Value header; absent means zero
func value(r *http.Request) (decimal.Decimal, error) {
	raw := r.Header.Get(headerValue)
	if raw == "" {
		return decimal.Zero, nil
	}
	return models.Wei(raw)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func flightKeyFromPath(r *http.Request) (models.FlightKey, error) {
	airline, err := models.ParseAddress(chi.URLParam(r, "airline"))
	if err != nil {
		return models.FlightKey{}, err
	}
	ts, err := strconv.ParseInt(chi.URLParam(r, "timestamp"), 10, 64)
	if err != nil {
		return models.FlightKey{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	return models.FlightKey{Airline: airline, Flight: chi.URLParam(r, "flight"), Timestamp: ts}.Normalized(), nil
}

// execute runs fn as one ledger transaction sent by the request's caller.
// It writes the error response and returns false when the transaction is rejected.
func (h *Handlers) execute(w http.ResponseWriter, r *http.Request, op string, fn func(c surety.Call) error) bool {
	from, err := caller(r)
	if err != nil {
		writeBadRequest(w, err)
		return false
	}
	wei, err := value(r)
	if err != nil {
		writeBadRequest(w, err)
		return false
	}
	if err := h.ledger.Execute(r.Context(), op, from, wei, fn); err != nil {
		writeError(w, err)
		return false
	}
	return true
}

func (h *Handlers) GetOperational(w http.ResponseWriter, r *http.Request) {
	var operational bool
	h.ledger.View(func() { operational = h.engine.IsOperational() })
	writeJSON(w, http.StatusOK, map[string]bool{"operational": operational})
}

func (h *Handlers) SetOperational(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Operational *bool `json:"operational"`
	}
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if req.Operational == nil {
		writeBadRequest(w, fmt.Errorf("operational is required"))
		return
	}

	if !h.execute(w, r, "set_operational", func(c surety.Call) error {
		return h.engine.SetOperational(c, *req.Operational)
	}) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"operational": *req.Operational})
}

func (h *Handlers) RegisterAirline(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Airline models.Address `json:"airline"`
	}
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	candidate, err := models.ParseAddress(string(req.Airline))
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	var airline models.Airline
	if !h.execute(w, r, "register_airline", func(c surety.Call) error {
		if err := h.engine.RegisterAirline(c, candidate); err != nil {
			return err
		}
		airline = h.engine.Airline(candidate)
		return nil
	}) {
		return
	}
	writeJSON(w, http.StatusOK, newAirlineResponse(airline))
}

func (h *Handlers) FundAirline(w http.ResponseWriter, r *http.Request) {
	var airline models.Airline
	if !h.execute(w, r, "fund", func(c surety.Call) error {
		if err := h.engine.Fund(c); err != nil {
			return err
		}
		airline = h.engine.Airline(c.Caller)
		return nil
	}) {
		return
	}
	writeJSON(w, http.StatusOK, newAirlineResponse(airline))
}

func (h *Handlers) GetAirline(w http.ResponseWriter, r *http.Request) {
	addr, err := models.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	var airline models.Airline
	h.ledger.View(func() { airline = h.engine.Airline(addr) })
	writeJSON(w, http.StatusOK, newAirlineResponse(airline))
}

func (h *Handlers) RegisterFlight(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Flight    string `json:"flight"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	var key models.FlightKey
	if !h.execute(w, r, "register_flight", func(c surety.Call) error {
		key = models.FlightKey{Airline: c.Caller, Flight: models.NormalizeFlight(req.Flight), Timestamp: req.Timestamp}
		return h.engine.RegisterFlight(c, req.Flight, req.Timestamp)
	}) {
		return
	}
	writeJSON(w, http.StatusCreated, key)
}

func (h *Handlers) GetFlight(w http.ResponseWriter, r *http.Request) {
	key, err := flightKeyFromPath(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	var (
		flight models.Flight
		ok     bool
	)
	h.ledger.View(func() { flight, ok = h.engine.Flight(key) })
	if !ok {
		writeError(w, fmt.Errorf("%w: %s", surety.ErrUnknownFlight, key))
		return
	}
	writeJSON(w, http.StatusOK, flightResponse{
		FlightKey:  flight.Key,
		Status:     flight.Status,
		StatusName: flight.Status.String(),
		Finalized:  flight.Finalized,
		UpdatedAt:  flight.UpdatedAt,
	})
}

func (h *Handlers) BuyInsurance(w http.ResponseWriter, r *http.Request) {
	var req flightRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	key, err := req.key()
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	var coverage amountResponse
	if !h.execute(w, r, "buy", func(c surety.Call) error {
		if err := h.engine.Buy(c, key); err != nil {
			return err
		}
		coverage = newAmountResponse(c.Caller, h.engine.Coverage(c.Caller, key))
		return nil
	}) {
		return
	}
	writeJSON(w, http.StatusCreated, coverage)
}

func (h *Handlers) GetCoverage(w http.ResponseWriter, r *http.Request) {
	passenger, err := caller(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	key, err := flightKeyFromPath(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	var stake decimal.Decimal
	h.ledger.View(func() { stake = h.engine.Coverage(passenger, key) })
	writeJSON(w, http.StatusOK, newAmountResponse(passenger, stake))
}

func (h *Handlers) GetCredit(w http.ResponseWriter, r *http.Request) {
	passenger, err := caller(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	var credit decimal.Decimal
	h.ledger.View(func() { credit = h.engine.Credit(passenger) })
	writeJSON(w, http.StatusOK, newAmountResponse(passenger, credit))
}

func (h *Handlers) PayCredit(w http.ResponseWriter, r *http.Request) {
	var paid amountResponse
	if !h.execute(w, r, "pay", func(c surety.Call) error {
		amount := h.engine.Credit(c.Caller)
		if err := h.engine.Pay(c); err != nil {
			return err
		}
		paid = newAmountResponse(c.Caller, amount)
		return nil
	}) {
		return
	}
	writeJSON(w, http.StatusOK, paid)
}

func (h *Handlers) RegisterOracle(w http.ResponseWriter, r *http.Request) {
	var indexes models.Indexes
	if !h.execute(w, r, "register_oracle", func(c surety.Call) error {
		if err := h.engine.RegisterOracle(c); err != nil {
			return err
		}
		var err error
		indexes, err = h.engine.Indexes(c.Caller)
		return err
	}) {
		return
	}
	writeJSON(w, http.StatusCreated, map[string]models.Indexes{"indexes": indexes})
}

func (h *Handlers) GetOracleIndexes(w http.ResponseWriter, r *http.Request) {
	oracle, err := caller(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	var indexes models.Indexes
	h.ledger.View(func() { indexes, err = h.engine.Indexes(oracle) })
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]models.Indexes{"indexes": indexes})
}

func (h *Handlers) FetchFlightStatus(w http.ResponseWriter, r *http.Request) {
	var req flightRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	key, err := req.key()
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	var rk models.RequestKey
	if !h.execute(w, r, "fetch_flight_status", func(c surety.Call) error {
		var err error
		rk, err = h.engine.FetchStatus(c, key)
		return err
	}) {
		return
	}
	writeJSON(w, http.StatusAccepted, rk)
}

func (h *Handlers) GetOracleRequest(w http.ResponseWriter, r *http.Request) {
	key, err := flightKeyFromPath(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	idx, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 8)
	if err != nil {
		writeBadRequest(w, fmt.Errorf("invalid index: %w", err))
		return
	}
	rk := models.RequestKey{Index: uint8(idx), FlightKey: key}

	var (
		req models.OracleRequest
		ok  bool
	)
	h.ledger.View(func() { req, ok = h.engine.Request(rk) })
	if !ok {
		writeError(w, fmt.Errorf("%w: index %d for %s", surety.ErrNoSuchRequest, rk.Index, key))
		return
	}
	writeJSON(w, http.StatusOK, newRequestResponse(req))
}

func (h *Handlers) SubmitOracleResponse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		flightRequest
		Index  uint8             `json:"index"`
		Status models.StatusCode `json:"status"`
	}
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	key, err := req.key()
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	rk := models.RequestKey{Index: req.Index, FlightKey: key}

	var state models.OracleRequest
	if !h.execute(w, r, "submit_oracle_response", func(c surety.Call) error {
		if err := h.engine.SubmitResponse(c, rk, req.Status); err != nil {
			return err
		}
		state, _ = h.engine.Request(rk)
		return nil
	}) {
		return
	}
	writeJSON(w, http.StatusOK, newRequestResponse(state))
}

func (h *Handlers) GetWallet(w http.ResponseWriter, r *http.Request) {
	addr, err := models.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAmountResponse(addr, h.ledger.Balance(addr)))
}

func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeBadRequest(w, fmt.Errorf("invalid limit: %q", raw))
			return
		}
		limit = n
	}

	events, err := h.journal.ListEvents(models.EventKind(r.URL.Query().Get("kind")), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []*models.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handlers) GetJournaledStatus(w http.ResponseWriter, r *http.Request) {
	key, err := flightKeyFromPath(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	status, ok, err := h.journal.FlightStatus(key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		writeError(w, fmt.Errorf("%w: no journaled status for %s", surety.ErrUnknownFlight, key))
		return
	}
	writeJSON(w, http.StatusOK, flightResponse{
		FlightKey:  key,
		Status:     status,
		StatusName: status.String(),
		Finalized:  true,
	})
}
