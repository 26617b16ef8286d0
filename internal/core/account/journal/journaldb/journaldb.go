// Package journaldb writes the transaction journal to PostgreSQL.
package journaldb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rschio/ledger/internal/core/account"
	db "github.com/rschio/ledger/internal/data/dbsql/pgx"
	"github.com/rschio/ledger/internal/web"
	"go.opentelemetry.io/otel/attribute"
)

// Sink manages the set of APIs for journal database access.
type Sink struct {
	log *slog.Logger
	db  db.DB
}

// NewSink constructs the api for data access.
func NewSink(log *slog.Logger, database db.DB) *Sink {
	return &Sink{
		log: log,
		db:  database,
	}
}

// Write inserts the transactions. Transactions already in the journal are
// skipped, so writing a batch again is harmless.
func (s *Sink) Write(ctx context.Context, ts []account.Transaction) error {
	ctx, span := web.AddSpan(ctx, "journal.journaldb.Write", attribute.Int("transactions", len(ts)))
	defer span.End()

	const q = `
	INSERT INTO transactions
		(id, account_id, value, kind, description, date_created)
	VALUES
		(@id, @account_id, @value, @kind, @description, @date_created)`

	for _, t := range ts {
		err := db.NamedExec(ctx, s.log, s.db, q, toDBTransaction(t))
		switch {
		case errors.Is(err, db.ErrDBDuplicatedEntry):
			s.log.WarnContext(ctx, "journaldb.Write: duplicated transaction", "transaction_id", t.ID)
		case err != nil:
			return fmt.Errorf("insert transaction[%s]: %w", t.ID, err)
		}
	}

	return nil
}

// queryByAccount returns the journal of an account, newest first. The sink
// is write-only in the service; this reads it back in tests.
func (s *Sink) queryByAccount(ctx context.Context, accountID int, pageNumber int, rowsPerPage int) ([]account.Transaction, error) {
	data := struct {
		AccountID   int `db:"account_id"`
		Offset      int `db:"offset"`
		RowsPerPage int `db:"rows_per_page"`
	}{
		AccountID:   accountID,
		Offset:      (pageNumber - 1) * rowsPerPage,
		RowsPerPage: rowsPerPage,
	}

	const q = `
	SELECT
		id, account_id, value, kind, description, date_created
	FROM
		transactions
	WHERE
		account_id = @account_id
	ORDER BY
		date_created DESC
	OFFSET @offset ROWS FETCH NEXT @rows_per_page ROWS ONLY`

	dbts, err := db.NamedQuerySlice[dbTransaction](ctx, s.log, s.db, q, data)
	if err != nil {
		return nil, fmt.Errorf("query account[%d]: %w", accountID, err)
	}

	return toTransactions(dbts)
}
