// Package journalredis appends the transaction journal to a Redis stream.
package journalredis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rschio/ledger/internal/core/account"
	"github.com/rschio/ledger/internal/web"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultStream is the stream written when none is configured.
const DefaultStream = "ledger:transactions"

// Sink writes transactions as entries of a capped stream.
type Sink struct {
	log    *slog.Logger
	client redis.Cmdable
	stream string
	maxLen int64
}

// NewSink constructs a sink writing to stream, keeping about maxLen entries.
// A zero maxLen leaves the stream uncapped.
func NewSink(log *slog.Logger, client redis.Cmdable, stream string, maxLen int64) *Sink {
	if stream == "" {
		stream = DefaultStream
	}
	return &Sink{
		log:    log,
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// Write appends the transactions to the stream in a single round trip.
func (s *Sink) Write(ctx context.Context, ts []account.Transaction) error {
	ctx, span := web.AddSpan(ctx, "journal.journalredis.Write", attribute.Int("transactions", len(ts)))
	defer span.End()

	pipe := s.client.Pipeline()
	for _, t := range ts {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			MaxLen: s.maxLen,
			Approx: s.maxLen > 0,
			Values: toValues(t),
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}

	s.log.DebugContext(ctx, "journalredis.Write", "stream", s.stream, "transactions", len(ts))
	return nil
}

// rangeN returns up to count entries of the stream, oldest first. The sink
// is write-only in the service; this reads it back in tests.
func (s *Sink) rangeN(ctx context.Context, count int64) ([]account.Transaction, error) {
	msgs, err := s.client.XRangeN(ctx, s.stream, "-", "+", count).Result()
	if err != nil {
		return nil, fmt.Errorf("xrange %s: %w", s.stream, err)
	}

	ts := make([]account.Transaction, len(msgs))
	for i, m := range msgs {
		t, err := fromValues(m.Values)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", m.ID, err)
		}
		ts[i] = t
	}
	return ts, nil
}

func toValues(t account.Transaction) map[string]any {
	return map[string]any{
		"id":          t.ID.String(),
		"account_id":  t.AccountID,
		"value":       t.Value,
		"kind":        t.Kind.String(),
		"description": t.Description,
		"date":        t.Date.Format(time.RFC3339Nano),
	}
}

func fromValues(v map[string]any) (account.Transaction, error) {
	str := func(key string) string {
		s, _ := v[key].(string)
		return s
	}

	id, err := uuid.Parse(str("id"))
	if err != nil {
		return account.Transaction{}, fmt.Errorf("id: %w", err)
	}
	accountID, err := strconv.Atoi(str("account_id"))
	if err != nil {
		return account.Transaction{}, fmt.Errorf("account_id: %w", err)
	}
	value, err := strconv.ParseInt(str("value"), 10, 64)
	if err != nil {
		return account.Transaction{}, fmt.Errorf("value: %w", err)
	}
	kind, err := account.ParseKind(str("kind"))
	if err != nil {
		return account.Transaction{}, err
	}
	date, err := time.Parse(time.RFC3339Nano, str("date"))
	if err != nil {
		return account.Transaction{}, fmt.Errorf("date: %w", err)
	}

	return account.Transaction{
		ID:          id,
		AccountID:   accountID,
		Value:       value,
		Kind:        kind,
		Description: str("description"),
		Date:        date,
	}, nil
}
