package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"flight_surety/internal/ledger"
	"flight_surety/internal/models"
	"flight_surety/internal/surety"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cyclingSource hands out 1, 2, 3 in turn, so every oracle holds {1, 2, 3}
// and every status request lands on an index all oracles hold.
type cyclingSource struct {
	next uint8
}

func (s *cyclingSource) Index(_ models.Address, bound uint8) uint8 {
	v := s.next%3 + 1
	s.next++
	return v % bound
}

type fakeJournal struct {
	events   []*models.Event
	statuses map[models.FlightKey]models.StatusCode
}

func (j *fakeJournal) InsertBatch(events []*models.Event) error {
	j.events = append(j.events, events...)
	return nil
}

func (j *fakeJournal) ListEvents(kind models.EventKind, limit int) ([]*models.Event, error) {
	var out []*models.Event
	for _, ev := range j.events {
		if kind == "" || ev.Kind == kind {
			out = append(out, ev)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (j *fakeJournal) FetchUnpublished(limit int) ([]*models.Event, error) {
	return nil, nil
}

func (j *fakeJournal) MarkPublished(ids []uuid.UUID) error {
	return nil
}

func (j *fakeJournal) CountEvents() (int, error) {
	return len(j.events), nil
}

func (j *fakeJournal) FlightStatus(key models.FlightKey) (models.StatusCode, bool, error) {
	s, ok := j.statuses[key]
	return s, ok, nil
}

var (
	contract  = models.AddressFromIndex(0xc0)
	owner     = models.AddressFromIndex(1)
	airline   = models.AddressFromIndex(2)
	passenger = models.AddressFromIndex(500)
	oracles   = []models.Address{
		models.AddressFromIndex(900),
		models.AddressFromIndex(901),
		models.AddressFromIndex(902),
	}
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	ledger  *ledger.Ledger
	journal *fakeJournal
}

func newTestServer(t *testing.T) *testServer {
	genesis := map[models.Address]decimal.Decimal{
		owner:     models.MustEther("100"),
		airline:   models.MustEther("20"),
		passenger: models.MustEther("5"),
	}
	for _, o := range oracles {
		genesis[o] = models.MustEther("5")
	}

	l := ledger.New(contract, genesis)
	engine, err := ledger.Deploy(context.Background(), l, owner, airline, surety.DefaultParams(), &cyclingSource{})
	require.NoError(t, err)

	journal := &fakeJournal{statuses: make(map[models.FlightKey]models.StatusCode)}
	return &testServer{
		t:       t,
		handler: NewRouter(NewHandlers(l, engine, journal)),
		ledger:  l,
		journal: journal,
	}
}

func (s *testServer) do(method, path string, caller models.Address, value string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != "" {
		req.Header.Set(headerCaller, caller.String())
	}
	if value != "" {
		req.Header.Set(headerValue, value)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func wei(ether string) string {
	return models.MustEther(ether).String()
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Code
}

func flightPath(prefix string, key models.FlightKey) string {
	return fmt.Sprintf("%s/%s/%s/%d", prefix, key.Airline, key.Flight, key.Timestamp)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestOperational(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/operational", airline, "", map[string]bool{"operational": false})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))

	rec = s.do(http.MethodPost, "/operational", owner, "", map[string]bool{"operational": false})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/operational", "", "", nil)
	assert.JSONEq(t, `{"operational":false}`, rec.Body.String())

	rec = s.do(http.MethodPost, "/airlines/fund", airline, wei("10"), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SYSTEM_PAUSED", errorCode(t, rec))

	// the rejected stake went back to the airline
	assert.True(t, models.MustEther("20").Equal(s.ledger.Balance(airline)))

	rec = s.do(http.MethodPost, "/operational", owner, "", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/airlines/fund", "", wei("10"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/airlines/fund", airline, "1.5", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ARGUMENT", errorCode(t, rec))

	rec = s.do(http.MethodGet, "/flights/not-an-address/ND1309/1", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/oracles/indexes", oracles[0], "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_REGISTERED", errorCode(t, rec))
}

func TestAirlines(t *testing.T) {
	s := newTestServer(t)
	candidate := models.AddressFromIndex(3)

	rec := s.do(http.MethodPost, "/airlines/fund", airline, wei("5"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_AMOUNT", errorCode(t, rec))

	// a stake from an account that is not an airline is an invalid amount, whatever its size
	for _, value := range []string{wei("1"), wei("10")} {
		rec = s.do(http.MethodPost, "/airlines/fund", passenger, value, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_AMOUNT", errorCode(t, rec))
	}
	assert.True(t, models.MustEther("5").Equal(s.ledger.Balance(passenger)))

	rec = s.do(http.MethodPost, "/airlines", airline, "", map[string]string{"airline": candidate.String()})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/airlines/fund", airline, wei("30"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeInsufficientFunds, errorCode(t, rec))

	rec = s.do(http.MethodPost, "/airlines/fund", airline, wei("10"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/airlines/fund", airline, wei("10"), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/airlines", airline, "", map[string]string{"airline": candidate.String()})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp airlineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "registered", resp.Status)

	rec = s.do(http.MethodGet, "/airlines/"+candidate.String(), "", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, candidate, resp.Address)
	assert.Equal(t, "registered", resp.Status)
}

func TestFlightSettlementScenario(t *testing.T) {
	s := newTestServer(t)
	key := models.FlightKey{Airline: airline, Flight: "ND1309", Timestamp: 1700000000}
	body := flightRequest{Airline: key.Airline, Flight: key.Flight, Timestamp: key.Timestamp}

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/airlines/fund", airline, wei("10"), nil).Code)

	rec := s.do(http.MethodPost, "/flights", airline, "", map[string]any{"flight": key.Flight, "timestamp": key.Timestamp})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPost, "/flights", airline, "", map[string]any{"flight": key.Flight, "timestamp": key.Timestamp})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/insurance", passenger, wei("0.2"), body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, flightPath("/insurance", key), passenger, "", nil)
	var amount amountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &amount))
	assert.Equal(t, "0.2", amount.Ether)

	for _, o := range oracles {
		rec = s.do(http.MethodPost, "/oracles", o, wei("1"), nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"indexes":[1,2,3]}`, rec.Body.String())
	}

	rec = s.do(http.MethodPost, "/oracles/requests", passenger, "", body)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var rk models.RequestKey
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rk))
	assert.Equal(t, key, rk.FlightKey)

	for i, o := range oracles {
		rec = s.do(http.MethodPost, "/oracles/responses", o, "", map[string]any{
			"index":     rk.Index,
			"airline":   key.Airline,
			"flight":    key.Flight,
			"timestamp": key.Timestamp,
			"status":    models.StatusLateAirline,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var state requestResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
		assert.Equal(t, i < len(oracles)-1, state.Open)
	}

	rec = s.do(http.MethodGet, fmt.Sprintf("/oracles/requests/%d/%s/%s/%d", rk.Index, key.Airline, key.Flight, key.Timestamp), "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, flightPath("/flights", key), "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var flight flightResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flight))
	assert.Equal(t, models.StatusLateAirline, flight.Status)
	assert.True(t, flight.Finalized)

	rec = s.do(http.MethodGet, "/credits", passenger, "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &amount))
	assert.Equal(t, "0.3", amount.Ether)

	rec = s.do(http.MethodPost, "/credits/pay", passenger, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &amount))
	assert.True(t, models.MustEther("0.3").Equal(amount.Wei))

	rec = s.do(http.MethodPost, "/credits/pay", passenger, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "NO_CREDIT", errorCode(t, rec))

	rec = s.do(http.MethodGet, "/wallets/"+passenger.String(), "", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &amount))
	assert.Equal(t, "5.1", amount.Ether)
}

func TestFlightDesignatorIsTrimmed(t *testing.T) {
	s := newTestServer(t)
	key := models.FlightKey{Airline: airline, Flight: "MM100", Timestamp: 1700000000}
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/airlines/fund", airline, wei("10"), nil).Code)

	rec := s.do(http.MethodPost, "/flights", airline, "", map[string]any{"flight": "MM100 ", "timestamp": key.Timestamp})
	require.Equal(t, http.StatusCreated, rec.Code)
	var registered models.FlightKey
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registered))
	assert.Equal(t, key, registered)

	rec = s.do(http.MethodGet, flightPath("/flights", registered), "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, fmt.Sprintf("/flights/%s/MM100%%20/%d", airline, key.Timestamp), "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var flight flightResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flight))
	assert.Equal(t, key, flight.FlightKey)

	body := flightRequest{Airline: airline, Flight: " MM100", Timestamp: key.Timestamp}
	rec = s.do(http.MethodPost, "/insurance", passenger, wei("0.2"), body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, flightPath("/insurance", key), passenger, "", nil)
	var amount amountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &amount))
	assert.Equal(t, "0.2", amount.Ether)

	rec = s.do(http.MethodPost, "/oracles/requests", passenger, "", body)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var rk models.RequestKey
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rk))
	assert.Equal(t, key, rk.FlightKey)
}

func TestUnknownFlightAndRequest(t *testing.T) {
	s := newTestServer(t)
	key := models.FlightKey{Airline: airline, Flight: "XX1", Timestamp: 1}

	rec := s.do(http.MethodGet, flightPath("/flights", key), "", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "UNKNOWN_FLIGHT", errorCode(t, rec))

	rec = s.do(http.MethodGet, flightPath("/oracles/requests/4", key), "", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NO_SUCH_REQUEST", errorCode(t, rec))
}

func TestJournalRoutes(t *testing.T) {
	s := newTestServer(t)
	key := models.FlightKey{Airline: airline, Flight: "ND1309", Timestamp: 1}
	funded := models.NewAccountEvent(models.EventAirlineFunded, airline)
	final := models.NewFlightStatusFinalizedEvent(key, models.StatusOnTime)
	require.NoError(t, s.journal.InsertBatch([]*models.Event{&funded, &final}))
	s.journal.statuses[key] = models.StatusOnTime

	rec := s.do(http.MethodGet, "/journal/events?kind=AirlineFunded", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []models.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, airline, events[0].Address)

	rec = s.do(http.MethodGet, "/journal/events?limit=0", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, flightPath("/journal/flights", key), "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var flight flightResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flight))
	assert.Equal(t, "on_time", flight.StatusName)

	other := models.FlightKey{Airline: airline, Flight: "ND1310", Timestamp: 1}
	rec = s.do(http.MethodGet, flightPath("/journal/flights", other), "", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
