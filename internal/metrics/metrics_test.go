package metrics

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"flight_surety/internal/models"
	"flight_surety/internal/surety"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_CountsEvents(t *testing.T) {
	m := New()
	passenger := models.AddressFromIndex(7)
	key := models.FlightKey{Airline: models.AddressFromIndex(2), Flight: "ND1309", Timestamp: 1}

	events := []models.Event{
		models.NewValueEvent(models.EventInsurancePurchased, passenger, &key, models.MustEther("0.2")),
		models.NewFlightStatusFinalizedEvent(key, models.StatusLateAirline),
		models.NewValueEvent(models.EventInsureeCredited, passenger, &key, models.MustEther("0.3")),
		models.NewValueEvent(models.EventCreditPaid, passenger, nil, models.MustEther("0.3")),
		models.NewValueEvent(models.EventInsurancePurchased, passenger, &key, models.MustEther("0.5")),
	}
	require.NoError(t, m.Publish(context.Background(), events))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("InsurancePurchased")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("CreditPaid")))
	assert.InDelta(t, 0.7, testutil.ToFloat64(m.premiums), 1e-9)
	assert.InDelta(t, 0.3, testutil.ToFloat64(m.credited), 1e-9)
	assert.InDelta(t, 0.3, testutil.ToFloat64(m.paidOut), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.finalized.WithLabelValues("late_airline")))
}

func TestRejected_ByCode(t *testing.T) {
	m := New()

	m.Rejected("buy", fmt.Errorf("stake: %w", surety.ErrInvalidAmount))
	m.Rejected("buy", surety.ErrInvalidAmount)
	m.Rejected("pay", surety.ErrNoCredit)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rejected.WithLabelValues("buy", "INVALID_AMOUNT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected.WithLabelValues("pay", "NO_CREDIT")))
}

func TestRecordStats(t *testing.T) {
	m := New()

	m.RecordStats(surety.Stats{
		Operational:       true,
		FundedAirlines:    4,
		Flights:           3,
		Oracles:           20,
		OpenRequests:      1,
		Escrow:            models.MustEther("1.5"),
		OutstandingCredit: models.MustEther("0.3"),
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operational))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.airlines))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.oracles))
	assert.InDelta(t, 1.5, testutil.ToFloat64(m.escrow), 1e-9)

	m.RecordStats(surety.Stats{})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.operational))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Rejected("fund", surety.ErrInvalidFee)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `surety_rejected_transactions_total{code="INVALID_FEE",op="fund"} 1`)
}
