package account

import (
	"time"

	"github.com/google/uuid"
)

// Account is the balance state of a provisioned account.
type Account struct {
	ID      int
	Limit   int64
	Balance int64
}

// NewTransaction is what a caller submits to move an account balance.
type NewTransaction struct {
	Value       int64
	Kind        string
	Description string
}

// Transaction is an accepted movement of an account balance.
type Transaction struct {
	ID          uuid.UUID
	AccountID   int
	Value       int64
	Kind        Kind
	Description string
	Date        time.Time
}

// Statement is a point in time view of an account and its most recent
// transactions, newest first.
type Statement struct {
	Balance          int64
	Limit            int64
	Date             time.Time
	LastTransactions []Transaction
}
