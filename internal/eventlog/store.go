// Package eventlog persists received webhook deliveries. Rows are keyed by
// (delivery_id, action); inserting an existing key is a silent no-op.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mattjoyce/issuegate/internal/storage"
)

// TimeLayout is fixed-width UTC so received_at sorts lexically.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

const defaultListLimit = 20

// Event is one stored delivery.
type Event struct {
	DeliveryID  string  `json:"delivery_id"`
	Event       string  `json:"event"`
	Action      string  `json:"action"`
	IssueNumber *int64  `json:"issue_number"`
	Payload     *string `json:"payload,omitempty"`
	ReceivedAt  string  `json:"received_at"`
}

// Options tunes a Store.
type Options struct {
	// RecentKeys bounds the in-memory cache of keys known to be stored.
	// Zero disables the cache.
	RecentKeys   int
	RecentKeyTTL time.Duration
	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// ListOptions selects rows for List.
type ListOptions struct {
	Limit          int
	IncludePayload bool
}

// Store is the SQLite-backed event log.
type Store struct {
	db     *sql.DB
	recent *expirable.LRU[string, struct{}]
	now    func() time.Time
}

// Open opens the database at path and returns a Store that owns it.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	db, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	return New(db, opts), nil
}

// New wraps an already bootstrapped database handle.
func New(db *sql.DB, opts Options) *Store {
	s := &Store{db: db, now: opts.Now}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.RecentKeys > 0 {
		s.recent = expirable.NewLRU[string, struct{}](opts.RecentKeys, nil, opts.RecentKeyTTL)
	}
	return s
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores ev unless a row with the same (delivery_id, action) exists.
// It reports whether a new row was written. ReceivedAt is assigned here.
func (s *Store) Insert(ctx context.Context, ev Event) (bool, error) {
	key := cacheKey(ev.DeliveryID, ev.Action)
	if s.recent != nil && s.recent.Contains(key) {
		return false, nil
	}

	receivedAt := s.now().UTC().Format(TimeLayout)
	res, err := s.db.ExecContext(ctx, `
INSERT INTO events (delivery_id, event, action, issue_number, payload, received_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(delivery_id, action) DO NOTHING;
`, ev.DeliveryID, ev.Event, ev.Action, nullableInt(ev.IssueNumber), nullableString(ev.Payload), receivedAt)
	if err != nil {
		return false, fmt.Errorf("insert event %s/%s: %w", ev.DeliveryID, ev.Action, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert event rows affected: %w", err)
	}
	if s.recent != nil {
		s.recent.Add(key, struct{}{})
	}
	return n == 1, nil
}

// List returns stored events newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Event, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT delivery_id, event, action, issue_number, payload, received_at
FROM events
ORDER BY received_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := make([]Event, 0, limit)
	for rows.Next() {
		var (
			ev      Event
			issue   sql.NullInt64
			payload sql.NullString
		)
		if err := rows.Scan(&ev.DeliveryID, &ev.Event, &ev.Action, &issue, &payload, &ev.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if issue.Valid {
			n := issue.Int64
			ev.IssueNumber = &n
		}
		if opts.IncludePayload && payload.Valid {
			p := payload.String
			ev.Payload = &p
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// Count returns the number of stored events.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func cacheKey(deliveryID, action string) string {
	return deliveryID + "\x00" + action
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
