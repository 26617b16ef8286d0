package journaldb

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rschio/ledger/internal/core/account"
)

type dbTransaction struct {
	ID          uuid.UUID `db:"id"`
	AccountID   int       `db:"account_id"`
	Value       int64     `db:"value"`
	Kind        string    `db:"kind"`
	Description string    `db:"description"`
	Date        time.Time `db:"date_created"`
}

func toDBTransaction(t account.Transaction) dbTransaction {
	return dbTransaction{
		ID:          t.ID,
		AccountID:   t.AccountID,
		Value:       t.Value,
		Kind:        t.Kind.String(),
		Description: t.Description,
		Date:        t.Date,
	}
}

func toTransactions(dbts []dbTransaction) ([]account.Transaction, error) {
	ts := make([]account.Transaction, len(dbts))
	for i, dbt := range dbts {
		kind, err := account.ParseKind(dbt.Kind)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", dbt.ID, err)
		}

		ts[i] = account.Transaction{
			ID:          dbt.ID,
			AccountID:   dbt.AccountID,
			Value:       dbt.Value,
			Kind:        kind,
			Description: dbt.Description,
			Date:        dbt.Date.UTC(),
		}
	}
	return ts, nil
}
