package account

import (
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

// HistorySize is the number of transactions kept per account.
const HistorySize = 10

// MaxDescriptionLen is the maximum number of characters of a description.
const MaxDescriptionLen = 10

func newTransaction(accountID int, nt NewTransaction) (Transaction, error) {
	kind, err := ParseKind(nt.Kind)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	t := Transaction{
		ID:          uuid.New(),
		AccountID:   accountID,
		Value:       nt.Value,
		Kind:        kind,
		Description: nt.Description,
	}
	if err := t.validate(); err != nil {
		return Transaction{}, err
	}

	return t, nil
}

func (t Transaction) validate() error {
	switch n := utf8.RuneCountInString(t.Description); {
	case t.Value <= 0:
		return fmt.Errorf("%w: value must be positive, got %d", ErrInvalidRequest, t.Value)
	case n < 1 || n > MaxDescriptionLen:
		return fmt.Errorf("%w: description must have 1 to %d characters, got %d", ErrInvalidRequest, MaxDescriptionLen, n)
	}

	return nil
}

// settle applies t to a and returns the account with its new balance.
// It fails with ErrLimitExceeded when a debit would take the balance below
// -Limit, in which case a is left as it was. Credits never lower the
// balance, so they are never rejected.
func settle(a Account, t Transaction) (Account, error) {
	adjustment := t.Kind.adjustment(t.Value)
	candidate := addBalance(a.Balance, adjustment)
	if adjustment < 0 && candidate < -a.Limit {
		return a, fmt.Errorf("%w: balance %d, limit %d, %s %d", ErrLimitExceeded, a.Balance, a.Limit, t.Kind, t.Value)
	}

	a.Balance = candidate
	return a, nil
}

// addBalance panics on overflow. Balances are expected to stay far from the
// int64 range, reaching it means state can no longer be trusted.
func addBalance(balance, adjustment int64) int64 {
	sum := balance + adjustment
	if (adjustment > 0 && sum < balance) || (adjustment < 0 && sum > balance) {
		panic(fmt.Sprintf("account: balance overflow: %d %+d", balance, adjustment))
	}
	return sum
}
