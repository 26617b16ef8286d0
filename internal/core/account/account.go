// Package account provides the business logic of the ledger: applying
// credits and debits to provisioned accounts within their limits and
// reading account statements.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rschio/ledger/internal/web"
	"go.opentelemetry.io/otel/attribute"
)

// Set of errors for account API.
var (
	ErrNotFound         = errors.New("account not found")
	ErrInvalidRequest   = errors.New("account invalid request")
	ErrLimitExceeded    = errors.New("account transaction limit exceeded")
	ErrInvalidProvision = errors.New("account invalid provision")
)

// Store is used to keep account's data.
type Store interface {
	// ExecUnderTx executes fn with exclusive access to the store. Everything
	// fn does through tx is atomic with respect to other callers. If fn
	// returns an error it is returned as is.
	ExecUnderTx(ctx context.Context, fn func(tx Store) error) error

	QueryByID(ctx context.Context, accountID int) (Account, error)
	// AddTransaction records t and sets the balance of a.ID to a.Balance.
	AddTransaction(ctx context.Context, a Account, t Transaction) error
	// QueryTransactions returns the most recent transactions, newest first.
	QueryTransactions(ctx context.Context, accountID int) ([]Transaction, error)
}

// Recorder receives every accepted transaction. Record is called while the
// store is held, so it must not block.
type Recorder interface {
	Record(t Transaction)
}

type nopRecorder struct{}

func (nopRecorder) Record(Transaction) {}

// Option configures a Core.
type Option func(*Core)

// WithRecorder sets the recorder notified of accepted transactions.
func WithRecorder(r Recorder) Option {
	return func(c *Core) {
		c.recorder = r
	}
}

// WithClock sets the function used to timestamp transactions and statements.
func WithClock(now func() time.Time) Option {
	return func(c *Core) {
		c.now = now
	}
}

// Core deals with account's business logic.
type Core struct {
	store    Store
	recorder Recorder
	now      func() time.Time
}

// NewCore constructs a Core over store.
func NewCore(store Store, options ...Option) *Core {
	c := Core{
		store:    store,
		recorder: nopRecorder{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range options {
		o(&c)
	}
	return &c
}

// AddTransaction applies nt to the account and returns the account with its
// new balance. The account is resolved before nt is validated, so an unknown
// account is reported as ErrNotFound whatever nt holds.
func (c *Core) AddTransaction(ctx context.Context, accountID int, nt NewTransaction) (Account, error) {
	ctx, span := web.AddSpan(ctx, "core.account.AddTransaction", attribute.Int("account_id", accountID))
	defer span.End()

	var acc Account
	fn := func(tx Store) error {
		a, err := tx.QueryByID(ctx, accountID)
		if err != nil {
			return err
		}

		t, err := newTransaction(accountID, nt)
		if err != nil {
			return err
		}

		a, err = settle(a, t)
		if err != nil {
			return err
		}

		t.Date = c.now().Round(time.Microsecond)
		if err := tx.AddTransaction(ctx, a, t); err != nil {
			return fmt.Errorf("failed to add transaction: %w", err)
		}
		c.recorder.Record(t)

		acc = a
		return nil
	}

	if err := c.store.ExecUnderTx(ctx, fn); err != nil {
		return Account{}, err
	}

	return acc, nil
}

// Statement returns the balance, limit and last transactions of the account.
func (c *Core) Statement(ctx context.Context, accountID int) (Statement, error) {
	ctx, span := web.AddSpan(ctx, "core.account.Statement", attribute.Int("account_id", accountID))
	defer span.End()

	var s Statement
	fn := func(tx Store) error {
		a, err := tx.QueryByID(ctx, accountID)
		if err != nil {
			return err
		}

		ts, err := tx.QueryTransactions(ctx, accountID)
		if err != nil {
			return fmt.Errorf("failed to query transactions: %w", err)
		}

		s = Statement{
			Balance:          a.Balance,
			Limit:            a.Limit,
			Date:             c.now().Round(time.Microsecond),
			LastTransactions: ts,
		}
		return nil
	}

	if err := c.store.ExecUnderTx(ctx, fn); err != nil {
		return Statement{}, err
	}

	return s, nil
}

// QueryByID returns the current state of the account.
func (c *Core) QueryByID(ctx context.Context, accountID int) (Account, error) {
	return c.store.QueryByID(ctx, accountID)
}
