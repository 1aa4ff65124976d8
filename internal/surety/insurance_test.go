package surety

import (
	"errors"
	"testing"

	"flight_surety/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFlight = models.FlightKey{Airline: firstAirline, Flight: "MM100", Timestamp: 1700000000}

func setupFlight(t *testing.T) (*Engine, *fakeHost, *scriptedSource) {
	e, host, src := setupEngine(t)
	fund(t, e, firstAirline)
	require.NoError(t, e.RegisterFlight(call(firstAirline), testFlight.Flight, testFlight.Timestamp))
	return e, host, src
}

func TestRegisterFlight(t *testing.T) {
	e, _, _ := setupEngine(t)

	err := e.RegisterFlight(call(firstAirline), "MM100", 1700000000)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, e.IsFlight(testFlight))

	fund(t, e, firstAirline)
	require.NoError(t, e.RegisterFlight(call(firstAirline), "MM100", 1700000000))
	assert.True(t, e.IsFlight(testFlight))

	f, ok := e.Flight(testFlight)
	require.True(t, ok)
	assert.Equal(t, models.StatusUnknown, f.Status)
	assert.True(t, f.Registered)
	assert.False(t, f.Finalized)

	err = e.RegisterFlight(call(firstAirline), "MM100", 1700000000)
	assert.ErrorIs(t, err, ErrDuplicateFlight)

	// same designator at another time is a different flight
	assert.NoError(t, e.RegisterFlight(call(firstAirline), "MM100", 1700086400))

	err = e.RegisterFlight(call(firstAirline), "  ", 1700000000)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRegisterFlight_UniquePerAirline(t *testing.T) {
	e, _, _ := setupEngine(t)
	airlines := setupFundedAirlines(t, e, 2)

	require.NoError(t, e.RegisterFlight(call(airlines[0]), "MM100", 1700000000))
	require.NoError(t, e.RegisterFlight(call(airlines[1]), "MM100", 1700000000))
	assert.True(t, e.IsFlight(models.FlightKey{Airline: airlines[1], Flight: "MM100", Timestamp: 1700000000}))
}

func TestFlightKey_PaddedDesignatorResolvesToSameFlight(t *testing.T) {
	e, host, src := setupEngine(t)
	fund(t, e, firstAirline)
	require.NoError(t, e.RegisterFlight(call(firstAirline), " MM100 ", testFlight.Timestamp))
	assert.True(t, e.IsFlight(testFlight))

	padded := testFlight
	padded.Flight = "MM100\t"
	assert.True(t, e.IsFlight(padded))

	err := e.RegisterFlight(call(firstAirline), "MM100", testFlight.Timestamp)
	assert.ErrorIs(t, err, ErrDuplicateFlight)

	passenger := addr(500)
	require.NoError(t, e.Buy(pay(passenger, models.MustEther("0.5")), padded))
	assert.True(t, models.MustEther("0.5").Equal(e.Coverage(passenger, testFlight)))
	assert.True(t, models.MustEther("0.5").Equal(e.Coverage(passenger, padded)))

	src.push(4)
	rk, err := e.FetchStatus(call(passenger), padded)
	require.NoError(t, err)
	assert.Equal(t, testFlight, rk.FlightKey)
	_, ok := e.Request(models.RequestKey{Index: 4, FlightKey: padded})
	assert.True(t, ok)

	last := host.events[len(host.events)-1]
	require.NotNil(t, last.Flight)
	assert.Equal(t, "MM100", last.Flight.Flight)

	_, err = e.FetchStatus(call(passenger), models.FlightKey{Airline: firstAirline, Flight: "   ", Timestamp: 1})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestBuy_RejectsOutOfRangeStake(t *testing.T) {
	e, host, _ := setupFlight(t)
	passenger := addr(500)
	before := len(host.events)

	for _, amount := range []decimal.Decimal{
		decimal.Zero,
		models.MustEther("-0.2"),
		models.MustEther("10"),
		models.MustEther("1").Add(decimal.NewFromInt(1)),
	} {
		err := e.Buy(pay(passenger, amount), testFlight)
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %s", amount)
	}

	assert.True(t, e.Coverage(passenger, testFlight).IsZero())
	assert.True(t, e.Credit(passenger).IsZero())
	assert.True(t, e.Escrow().IsZero())
	assert.Len(t, host.events, before)
}

func TestBuy(t *testing.T) {
	e, host, _ := setupFlight(t)
	passenger := addr(500)
	stake := models.MustEther("0.2")

	err := e.Buy(pay(passenger, stake), models.FlightKey{Airline: firstAirline, Flight: "XX1", Timestamp: 1})
	assert.ErrorIs(t, err, ErrUnknownFlight)

	require.NoError(t, e.Buy(pay(passenger, stake), testFlight))
	assert.True(t, stake.Equal(e.Coverage(passenger, testFlight)))
	assert.True(t, stake.Equal(e.Escrow()))
	assert.Equal(t, 1, host.count(models.EventInsurancePurchased))

	err = e.Buy(pay(passenger, stake), testFlight)
	assert.ErrorIs(t, err, ErrDuplicatePolicy)
	assert.True(t, stake.Equal(e.Escrow()))

	// the cap itself is allowed
	require.NoError(t, e.Buy(pay(addr(501), e.Params().MaxInsurance), testFlight))
}

func TestPayout_Floor(t *testing.T) {
	assert.Equal(t, "4", payout(decimal.NewFromInt(3)).String())
	assert.Equal(t, "1", payout(decimal.NewFromInt(1)).String())
	assert.True(t, models.MustEther("0.3").Equal(payout(models.MustEther("0.2"))))
	assert.True(t, models.MustEther("1.5").Equal(payout(models.MustEther("1"))))
}

func TestCreditInsurees_Idempotent(t *testing.T) {
	e, host, _ := setupFlight(t)
	require.NoError(t, e.Buy(pay(addr(500), models.MustEther("0.2")), testFlight))
	require.NoError(t, e.Buy(pay(addr(501), decimal.NewFromInt(3)), testFlight))

	e.creditInsurees(testFlight)
	e.creditInsurees(testFlight)

	assert.True(t, models.MustEther("0.3").Equal(e.Credit(addr(500))))
	assert.Equal(t, "4", e.Credit(addr(501)).String())
	assert.Equal(t, 2, host.count(models.EventInsureeCredited))
}

func TestPay(t *testing.T) {
	e, host, _ := setupFlight(t)
	passenger := addr(500)

	err := e.Pay(call(passenger))
	assert.ErrorIs(t, err, ErrNoCredit)

	require.NoError(t, e.Buy(pay(passenger, models.MustEther("0.2")), testFlight))
	e.creditInsurees(testFlight)
	credit := e.Credit(passenger)

	require.NoError(t, e.Pay(call(passenger)))
	assert.True(t, e.Credit(passenger).IsZero())
	assert.True(t, credit.Equal(host.transfers[passenger]))

	err = e.Pay(call(passenger))
	assert.ErrorIs(t, err, ErrNoCredit)
	assert.True(t, credit.Equal(host.transfers[passenger]))
}

func TestPay_TransferFailureKeepsCredit(t *testing.T) {
	e, host, _ := setupFlight(t)
	passenger := addr(500)
	require.NoError(t, e.Buy(pay(passenger, models.MustEther("0.2")), testFlight))
	e.creditInsurees(testFlight)

	host.transferErr = errors.New("insufficient funds")
	err := e.Pay(call(passenger))
	assert.Error(t, err)
	assert.True(t, models.MustEther("0.3").Equal(e.Credit(passenger)))
	assert.Equal(t, 0, host.count(models.EventCreditPaid))
}

func TestPay_ReentrantCallSeesNoCredit(t *testing.T) {
	e, host, _ := setupFlight(t)
	passenger := addr(500)
	require.NoError(t, e.Buy(pay(passenger, models.MustEther("0.2")), testFlight))
	e.creditInsurees(testFlight)

	var reentrantErr error
	host.onTransfer = func(to models.Address) {
		host.onTransfer = nil
		reentrantErr = e.Pay(call(to))
	}

	require.NoError(t, e.Pay(call(passenger)))
	assert.ErrorIs(t, reentrantErr, ErrNoCredit)
	assert.True(t, models.MustEther("0.3").Equal(host.transfers[passenger]))
	assert.Equal(t, 1, host.count(models.EventCreditPaid))
}
