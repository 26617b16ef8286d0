package journal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rschio/ledger/internal/core/account"
)

type memSink struct {
	mu      sync.Mutex
	ts      []account.Transaction
	batches int
	err     error
}

func (s *memSink) Write(ctx context.Context, ts []account.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.ts = append(s.ts, ts...)
	s.batches++
	return nil
}

func (s *memSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ts)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func genTransaction(value int64) account.Transaction {
	return account.Transaction{
		ID:          uuid.New(),
		AccountID:   1,
		Value:       value,
		Kind:        account.Credit,
		Description: "desc",
		Date:        time.Now().UTC(),
	}
}

func TestJournalFlushesOnClose(t *testing.T) {
	var sink memSink
	j := New(discard(), &sink, Config{BatchSize: 4, FlushInterval: time.Hour})
	j.Start(context.Background())

	for i := range 10 {
		j.Record(genTransaction(int64(i + 1)))
	}
	j.Close()

	if sink.len() != 10 {
		t.Fatalf("got %d written want %d", sink.len(), 10)
	}
	for i, tr := range sink.ts {
		if tr.Value != int64(i+1) {
			t.Fatalf("transaction %d out of order: value %d", i, tr.Value)
		}
	}
	if j.Written() != 10 || j.Dropped() != 0 {
		t.Fatalf("got written %d dropped %d", j.Written(), j.Dropped())
	}
}

func TestJournalCloseWithoutStart(t *testing.T) {
	var sink memSink
	j := New(discard(), &sink, Config{BatchSize: 4})

	for i := range 6 {
		j.Record(genTransaction(int64(i + 1)))
	}
	j.Close()
	j.Close()

	if sink.len() != 6 {
		t.Fatalf("got %d written want %d", sink.len(), 6)
	}
	if sink.batches != 2 {
		t.Fatalf("got %d batches want %d", sink.batches, 2)
	}

	j.Start(context.Background())
	j.Record(genTransaction(7))
	j.Close()

	if sink.len() != 6 {
		t.Fatalf("got %d written after close want %d", sink.len(), 6)
	}
}

func TestJournalRecordAfterClose(t *testing.T) {
	var sink memSink
	j := New(discard(), &sink, Config{FlushInterval: time.Hour})
	j.Start(context.Background())

	j.Record(genTransaction(1))
	j.Close()

	for i := range 3 {
		j.Record(genTransaction(int64(i + 2)))
	}

	if j.Written() != 1 {
		t.Fatalf("got written %d want %d", j.Written(), 1)
	}
	if j.Dropped() != 3 {
		t.Fatalf("got dropped %d want %d", j.Dropped(), 3)
	}
	if sink.len() != 1 {
		t.Fatalf("got %d in sink want %d", sink.len(), 1)
	}
}

func TestJournalFlushesOnInterval(t *testing.T) {
	var sink memSink
	j := New(discard(), &sink, Config{BatchSize: 100, FlushInterval: 10 * time.Millisecond})
	j.Start(context.Background())
	t.Cleanup(j.Close)

	j.Record(genTransaction(1))

	deadline := time.Now().Add(2 * time.Second)
	for sink.len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("transaction was not flushed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestJournalDropsWhenFull(t *testing.T) {
	var sink memSink
	j := New(discard(), &sink, Config{BufferSize: 2})

	for i := range 5 {
		j.Record(genTransaction(int64(i + 1)))
	}

	if j.Dropped() != 3 {
		t.Fatalf("got %d dropped want %d", j.Dropped(), 3)
	}

	ctx, cancel := context.WithCancel(context.Background())
	j.Start(ctx)
	cancel()
	j.Close()

	if sink.len() != 2 {
		t.Fatalf("got %d written want %d", sink.len(), 2)
	}
}

func TestJournalSinkError(t *testing.T) {
	sink := memSink{err: errors.New("down")}
	j := New(discard(), &sink, Config{})
	j.Start(context.Background())

	j.Record(genTransaction(1))
	j.Close()

	if j.Written() != 0 {
		t.Fatalf("got %d written want 0", j.Written())
	}
}

func TestMulti(t *testing.T) {
	var a, b memSink
	failing := memSink{err: errors.New("down")}

	err := Multi(&a, &failing, &b).Write(context.Background(), []account.Transaction{genTransaction(1)})
	if !errors.Is(err, failing.err) {
		t.Fatalf("got err %v want %v", err, failing.err)
	}
	if a.len() != 1 || b.len() != 1 {
		t.Fatalf("healthy sinks not written: %d %d", a.len(), b.len())
	}
}

func TestJournalWithCore(t *testing.T) {
	var sink memSink
	j := New(discard(), &sink, Config{})
	j.Start(context.Background())

	store := &fakeStore{a: account.Account{ID: 1, Limit: 10}}
	core := account.NewCore(store, account.WithRecorder(j))

	if _, err := core.AddTransaction(context.Background(), 1, account.NewTransaction{Value: 5, Kind: "d", Description: "x"}); err != nil {
		t.Fatalf("add transaction: %v", err)
	}
	j.Close()

	if sink.len() != 1 || sink.ts[0].Kind != account.Debit {
		t.Fatalf("wrong journal content: %+v", sink.ts)
	}
}

type fakeStore struct {
	a account.Account
}

func (s *fakeStore) ExecUnderTx(ctx context.Context, fn func(tx account.Store) error) error {
	return fn(s)
}

func (s *fakeStore) QueryByID(ctx context.Context, accountID int) (account.Account, error) {
	if accountID != s.a.ID {
		return account.Account{}, account.ErrNotFound
	}
	return s.a, nil
}

func (s *fakeStore) AddTransaction(ctx context.Context, a account.Account, t account.Transaction) error {
	s.a = a
	return nil
}

func (s *fakeStore) QueryTransactions(ctx context.Context, accountID int) ([]account.Transaction, error) {
	return nil, nil
}
