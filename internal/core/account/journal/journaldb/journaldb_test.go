package journaldb

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/rschio/ledger/internal/core/account"
	"github.com/rschio/ledger/internal/data/dbtest"
)

func genTransaction(accountID int, value int64, date time.Time) account.Transaction {
	return account.Transaction{
		ID:          uuid.New(),
		AccountID:   accountID,
		Value:       value,
		Kind:        account.Debit,
		Description: "desc",
		Date:        date.Round(time.Microsecond),
	}
}

func TestWriteAndQuery(t *testing.T) {
	ctx := context.Background()
	log, database, teardown := dbtest.NewUnit(t, dbtest.WithMigrations())
	t.Cleanup(teardown)

	sink := NewSink(log, database)

	accountID := 3
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	ts := make([]account.Transaction, 25)
	for i := range ts {
		ts[i] = genTransaction(accountID, 750, start.Add(time.Duration(i)*time.Second))
	}

	if err := sink.Write(ctx, ts); err != nil {
		t.Fatalf("failed to write transactions: %v", err)
	}

	// Writing the same batch again must not fail.
	if err := sink.Write(ctx, ts[:5]); err != nil {
		t.Fatalf("failed to write duplicated transactions: %v", err)
	}

	got, err := sink.queryByAccount(ctx, accountID, 1, 10)
	if err != nil {
		t.Fatalf("failed to query transactions: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("got %d transactions, want %d", len(got), 10)
	}

	opt := cmp.Comparer(func(a, b account.Kind) bool { return a == b })
	if diff := cmp.Diff(ts[24], got[0], opt); diff != "" {
		t.Errorf("wrong newest transaction (-want +got):\n%s", diff)
	}

	got, err = sink.queryByAccount(ctx, accountID, 3, 10)
	if err != nil {
		t.Fatalf("failed to query transactions: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("got %d transactions on last page, want %d", len(got), 5)
	}

	got, err = sink.queryByAccount(ctx, 1, 1, 10)
	if err != nil {
		t.Fatalf("failed to query transactions: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d should return 0 transactions", len(got))
	}
}
