package surety

import (
	"fmt"
	"log/slog"

	"flight_surety/internal/models"

	"github.com/shopspring/decimal"
)

var (
	payoutNum = decimal.NewFromInt(3)
	payoutDen = decimal.NewFromInt(2)
)

// payout returns floor(stake * 3 / 2)
func payout(stake decimal.Decimal) decimal.Decimal {
	q, _ := stake.Mul(payoutNum).QuoRem(payoutDen, 0)
	return q
}

// Buy insures the caller against key with the attached value as stake
func (e *Engine) Buy(c Call, key models.FlightKey) error {
	if err := e.requireOperational(); err != nil {
		return err
	}
	key = key.Normalized()
	amount := c.Value
	if !amount.IsPositive() || amount.GreaterThan(e.params.MaxInsurance) {
		return fmt.Errorf("%w: stake must be in (0, %s] ether, got %s",
			ErrInvalidAmount, models.FormatEther(e.params.MaxInsurance), models.FormatEther(amount))
	}
	if !e.IsFlight(key) {
		return fmt.Errorf("%w: %s", ErrUnknownFlight, key)
	}
	fp := e.policies[key]
	if fp != nil {
		if _, ok := fp.stakes[c.Caller]; ok {
			return fmt.Errorf("%w: %s on %s", ErrDuplicatePolicy, c.Caller, key)
		}
	}

	if fp == nil {
		fp = &flightPolicies{stakes: make(map[models.Address]decimal.Decimal)}
		e.policies[key] = fp
	}
	fp.holders = append(fp.holders, c.Caller)
	fp.stakes[c.Caller] = amount
	if !e.flights[key].Finalized {
		e.escrow = e.escrow.Add(amount)
	}

	flight := key
	e.host.Emit(models.NewValueEvent(models.EventInsurancePurchased, c.Caller, &flight, amount))
	return nil
}

// Coverage returns the stake passenger holds on key, zero when uninsured
func (e *Engine) Coverage(passenger models.Address, key models.FlightKey) decimal.Decimal {
	if fp, ok := e.policies[key.Normalized()]; ok {
		if stake, ok := fp.stakes[passenger]; ok {
			return stake
		}
	}
	return decimal.Zero
}

// Escrow is the stake held against flights whose status is not final yet
func (e *Engine) Escrow() decimal.Decimal {
	return e.escrow
}

// releaseEscrow drops the stakes on key from escrow once its status is final. Airline-caused
// delays turn them into credit; otherwise the contract keeps them.
func (e *Engine) releaseEscrow(key models.FlightKey) {
	fp := e.policies[key]
	if fp == nil {
		return
	}
	for _, p := range fp.holders {
		e.escrow = e.escrow.Sub(fp.stakes[p])
	}
}

// creditInsurees credits every policyholder of key with 1.5x their stake.
// A flight is credited at most once.
func (e *Engine) creditInsurees(key models.FlightKey) {
	fp := e.policies[key]
	if fp == nil {
		fp = &flightPolicies{stakes: make(map[models.Address]decimal.Decimal)}
		e.policies[key] = fp
	}
	if fp.settled {
		return
	}
	fp.settled = true

	flight := key
	for _, p := range fp.holders {
		amount := payout(fp.stakes[p])
		e.credits[p] = e.Credit(p).Add(amount)
		e.host.Emit(models.NewValueEvent(models.EventInsureeCredited, p, &flight, amount))
	}
	slog.Info("Credited insurees", "flight", key.String(), "policies", len(fp.holders))
}

// Credit returns the payout balance owed to passenger
func (e *Engine) Credit(passenger models.Address) decimal.Decimal {
	if c, ok := e.credits[passenger]; ok {
		return c
	}
	return decimal.Zero
}

// Pay withdraws the caller's whole credit. The balance is zeroed before the transfer so a
// reentrant Pay from the recipient sees no credit.
func (e *Engine) Pay(c Call) error {
	if err := e.requireOperational(); err != nil {
		return err
	}
	if err := requireNoValue(c); err != nil {
		return err
	}
	amount := e.Credit(c.Caller)
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrNoCredit, c.Caller)
	}

	delete(e.credits, c.Caller)
	if err := e.host.Transfer(c.Caller, amount); err != nil {
		e.credits[c.Caller] = e.Credit(c.Caller).Add(amount)
		return fmt.Errorf("payout transfer to %s: %w", c.Caller, err)
	}

	e.host.Emit(models.NewValueEvent(models.EventCreditPaid, c.Caller, nil, amount))
	return nil
}
