// Package ledger is an in-process host ledger for the surety engine. It keeps wallet
// balances, applies transactions one at a time, and broadcasts events only after a
// transaction commits.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"flight_surety/internal/models"
	"flight_surety/internal/surety"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

// Sink receives committed events
type Sink interface {
	Publish(ctx context.Context, events []models.Event) error
}

// ReceiveHook runs when value is transferred to an account, inside the sending transaction
type ReceiveHook func(amount decimal.Decimal)

// RejectObserver is told about every rejected transaction
type RejectObserver interface {
	Rejected(op string, err error)
}

type transfer struct {
	from, to models.Address
	amount   decimal.Decimal
}

// Ledger implements surety.Host
type Ledger struct {
	mu       sync.Mutex
	contract models.Address
	wallets  map[models.Address]decimal.Decimal
	hooks    map[models.Address]ReceiveHook
	block    uint64
	now      func() time.Time

	// per-transaction journal, valid while mu is held inside Execute
	inTx      bool
	journal   []transfer
	pending   []models.Event
	sinks     []Sink
	observers []RejectObserver
}

// New creates a ledger whose contract account holds the engine's funds
func New(contract models.Address, genesis map[models.Address]decimal.Decimal) *Ledger {
	wallets := make(map[models.Address]decimal.Decimal, len(genesis))
	for a, v := range genesis {
		wallets[a] = v
	}
	return &Ledger{
		contract: contract,
		wallets:  wallets,
		hooks:    make(map[models.Address]ReceiveHook),
		now:      time.Now,
	}
}

// AddSink registers a destination for committed events
func (l *Ledger) AddSink(s Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, s)
}

// AddRejectObserver registers an observer for rejected transactions
func (l *Ledger) AddRejectObserver(o RejectObserver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, o)
}

// SetReceiveHook simulates a contract account that runs code when it receives value
func (l *Ledger) SetReceiveHook(addr models.Address, hook ReceiveHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if hook == nil {
		delete(l.hooks, addr)
		return
	}
	l.hooks[addr] = hook
}

// Execute applies one transaction: the attached value moves from caller to the contract,
// then fn runs. If fn fails every value movement is reverted and its events are dropped.
// Events of a committed transaction are published before Execute returns, even when ctx
// is cancelled; ctx only carries request-scoped values to the sinks.
func (l *Ledger) Execute(ctx context.Context, op string, caller models.Address, value decimal.Decimal, fn func(c surety.Call) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.block++
	l.inTx = true
	l.journal = l.journal[:0]
	l.pending = nil
	defer func() { l.inTx = false }()

	err := l.apply(caller, value, fn)
	if err != nil {
		l.rollback()
		for _, o := range l.observers {
			o.Rejected(op, err)
		}
		slog.Warn("Transaction rejected",
			"op", op,
			"caller", caller,
			"value", models.FormatEther(value),
			"block", l.block,
			"error", err,
		)
		return err
	}

	events := l.pending
	l.pending = nil
	slog.Debug("Transaction committed", "op", op, "caller", caller, "block", l.block, "events", len(events))

	// The transaction is final: a caller that has gone away must not stop its events
	deliverCtx := context.WithoutCancel(ctx)
	for _, s := range l.sinks {
		if err := s.Publish(deliverCtx, events); err != nil {
			slog.Error("Error publishing events", "op", op, "block", l.block, "error", err)
		}
	}
	return nil
}

func (l *Ledger) apply(caller models.Address, value decimal.Decimal, fn func(c surety.Call) error) error {
	if value.IsNegative() {
		// the host cannot move a negative amount; the engine still validates the stake
		return fn(surety.Call{Caller: caller, Value: value})
	}
	if value.IsPositive() {
		if err := l.move(caller, l.contract, value); err != nil {
			return err
		}
	}
	return fn(surety.Call{Caller: caller, Value: value})
}

func (l *Ledger) move(from, to models.Address, amount decimal.Decimal) error {
	if l.wallets[from].LessThan(amount) {
		return fmt.Errorf("%w: %s holds %s ether, needs %s",
			ErrInsufficientFunds, from, models.FormatEther(l.wallets[from]), models.FormatEther(amount))
	}
	l.wallets[from] = l.wallets[from].Sub(amount)
	l.wallets[to] = l.wallets[to].Add(amount)
	l.journal = append(l.journal, transfer{from: from, to: to, amount: amount})
	return nil
}

func (l *Ledger) rollback() {
	for i := len(l.journal) - 1; i >= 0; i-- {
		t := l.journal[i]
		l.wallets[t.to] = l.wallets[t.to].Sub(t.amount)
		l.wallets[t.from] = l.wallets[t.from].Add(t.amount)
	}
	l.journal = l.journal[:0]
	l.pending = nil
}

// Transfer pays out of the contract account. Must be called from within Execute.
func (l *Ledger) Transfer(to models.Address, amount decimal.Decimal) error {
	if !l.inTx {
		return fmt.Errorf("transfer outside of a transaction")
	}
	if !amount.IsPositive() {
		return fmt.Errorf("transfer amount must be positive, got %s", amount)
	}
	if err := l.move(l.contract, to, amount); err != nil {
		return err
	}
	if hook, ok := l.hooks[to]; ok {
		hook(amount)
	}
	return nil
}

// Emit stamps and buffers an event for publication on commit
func (l *Ledger) Emit(ev models.Event) {
	ev.ID = uuid.New()
	ev.Block = l.block
	ev.OccurredAt = l.now().UTC()
	l.pending = append(l.pending, ev)
}

func (l *Ledger) BlockNumber() uint64 {
	return l.block
}

// View runs fn with exclusive access, for reads between transactions
func (l *Ledger) View(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
}

// Balance returns the wallet balance of addr
func (l *Ledger) Balance(addr models.Address) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wallets[addr]
}

// Contract is the account holding escrowed value and fees
func (l *Ledger) Contract() models.Address {
	return l.contract
}

// ContractBalance is the value held by the engine
func (l *Ledger) ContractBalance() decimal.Decimal {
	return l.Balance(l.contract)
}

// Deploy constructs the engine inside a transaction sent by owner, so deployment events
// are broadcast like those of any other transaction.
func Deploy(ctx context.Context, l *Ledger, owner, firstAirline models.Address, params surety.Params, src surety.IndexSource) (*surety.Engine, error) {
	var engine *surety.Engine
	err := l.Execute(ctx, "deploy", owner, decimal.Zero, func(c surety.Call) error {
		var err error
		engine, err = surety.New(l, c.Caller, firstAirline, params, src)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to deploy engine: %w", err)
	}
	return engine, nil
}
