// Package accountmem contains account related CRUD functionality kept in
// memory.
package accountmem

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/rschio/ledger/internal/core/account"
	"github.com/rschio/ledger/internal/core/account/history"
)

type entry struct {
	limit   int64
	balance int64
	history *history.Buffer[account.Transaction]
}

type state struct {
	mu       sync.Mutex
	accounts map[int]*entry
}

// Store manages the set of accounts. A single mutex guards every account.
type Store struct {
	log   *slog.Logger
	state *state
	inTx  bool
}

// NewStore constructs a store holding the provisioned accounts, each with a
// zero balance and an empty history.
func NewStore(log *slog.Logger, provisions []account.Provision) *Store {
	accounts := make(map[int]*entry, len(provisions))
	for _, p := range provisions {
		accounts[p.ID] = &entry{
			limit:   p.Limit,
			history: history.New[account.Transaction](account.HistorySize),
		}
	}

	return &Store{
		log:   log,
		state: &state{accounts: accounts},
	}
}

// ExecUnderTx holds the store mutex while fn runs. Calls made through the
// tx store passed to fn do not lock again.
func (s *Store) ExecUnderTx(ctx context.Context, fn func(tx account.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	return fn(&Store{log: s.log, state: s.state, inTx: true})
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.state.mu.Lock()
	return s.state.mu.Unlock
}

// QueryByID gets the specified account from the store.
func (s *Store) QueryByID(ctx context.Context, accountID int) (account.Account, error) {
	defer s.lock()()

	e, ok := s.state.accounts[accountID]
	if !ok {
		return account.Account{}, fmt.Errorf("query id[%d]: %w", accountID, account.ErrNotFound)
	}

	return account.Account{
		ID:      accountID,
		Limit:   e.limit,
		Balance: e.balance,
	}, nil
}

// AddTransaction sets the account balance and pushes t to its history. A
// balance that goes down must stay within the limit.
func (s *Store) AddTransaction(ctx context.Context, a account.Account, t account.Transaction) error {
	defer s.lock()()

	e, ok := s.state.accounts[a.ID]
	if !ok {
		return fmt.Errorf("add transaction id[%d]: %w", a.ID, account.ErrNotFound)
	}
	if a.Balance < e.balance && a.Balance < -e.limit {
		return fmt.Errorf("add transaction id[%d]: balance %d below limit %d: %w", a.ID, a.Balance, e.limit, account.ErrLimitExceeded)
	}

	e.balance = a.Balance
	e.history.Push(t)

	s.log.DebugContext(ctx, "accountmem.AddTransaction", "account_id", a.ID, "transaction_id", t.ID, "balance", e.balance)

	return nil
}

// QueryTransactions returns a copy of the account history, newest first.
func (s *Store) QueryTransactions(ctx context.Context, accountID int) ([]account.Transaction, error) {
	defer s.lock()()

	e, ok := s.state.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("query transactions id[%d]: %w", accountID, account.ErrNotFound)
	}

	return slices.Collect(e.history.Snapshot()), nil
}
