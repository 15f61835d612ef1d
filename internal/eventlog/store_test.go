package eventlog

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "events.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func TestInsertIsIdempotent(t *testing.T) {
	for _, cacheSize := range []int{0, 16} {
		t.Run(fmt.Sprintf("cache_%d", cacheSize), func(t *testing.T) {
			s := openTestStore(t, Options{RecentKeys: cacheSize})
			ctx := context.Background()
			ev := Event{DeliveryID: "d-1", Event: "issues", Action: "opened", IssueNumber: ptr(int64(5)), Payload: ptr(`{"action":"opened"}`)}

			inserted, err := s.Insert(ctx, ev)
			require.NoError(t, err)
			assert.True(t, inserted)

			for range 5 {
				inserted, err := s.Insert(ctx, ev)
				require.NoError(t, err)
				assert.False(t, inserted)
			}

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestSameDeliveryDifferentActionIsDistinct(t *testing.T) {
	s := openTestStore(t, Options{})
	ctx := context.Background()

	for _, action := range []string{"opened", "labeled", ""} {
		inserted, err := s.Insert(ctx, Event{DeliveryID: "d-1", Event: "issues", Action: action})
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestConcurrentDuplicateInserts(t *testing.T) {
	s := openTestStore(t, Options{RecentKeys: 8})
	ctx := context.Background()

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Insert(ctx, Event{DeliveryID: "dup", Event: "ping", Action: ""})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inserted)
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListNewestFirstWithLimit(t *testing.T) {
	clock := &stepClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s := openTestStore(t, Options{Now: clock.Now})
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := s.Insert(ctx, Event{DeliveryID: fmt.Sprintf("d-%d", i), Event: "issues", Action: "opened", Payload: ptr("{}")})
		require.NoError(t, err)
	}

	events, err := s.List(ctx, ListOptions{Limit: 3})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "d-5", events[0].DeliveryID)
	assert.Equal(t, "d-4", events[1].DeliveryID)
	assert.Equal(t, "d-3", events[2].DeliveryID)
	assert.Nil(t, events[0].Payload)
	assert.Equal(t, "2024-05-01T12:00:00.005000Z", events[0].ReceivedAt)
}

func TestListSameTimestampFallsBackToInsertOrder(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := openTestStore(t, Options{Now: func() time.Time { return fixed }})
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := s.Insert(ctx, Event{DeliveryID: id, Event: "ping"})
		require.NoError(t, err)
	}

	events, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{events[0].DeliveryID, events[1].DeliveryID, events[2].DeliveryID})
}

func TestListIncludePayloadAndNullIssue(t *testing.T) {
	s := openTestStore(t, Options{})
	ctx := context.Background()

	raw := `{"zen":"ok"}`
	_, err := s.Insert(ctx, Event{DeliveryID: "d-1", Event: "ping", Payload: &raw})
	require.NoError(t, err)

	events, err := s.List(ctx, ListOptions{Limit: 10, IncludePayload: true})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Nil(t, events[0].IssueNumber)
	require.NotNil(t, events[0].Payload)
	assert.Equal(t, raw, *events[0].Payload)
	assert.Equal(t, "", events[0].Action)
}

func TestEventsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	ctx := context.Background()

	s, err := Open(ctx, path, Options{})
	require.NoError(t, err)
	_, err = s.Insert(ctx, Event{DeliveryID: "d-1", Event: "issues", Action: "closed", IssueNumber: ptr(int64(9))})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	inserted, err := s.Insert(ctx, Event{DeliveryID: "d-1", Event: "issues", Action: "closed"})
	require.NoError(t, err)
	assert.False(t, inserted)

	events, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].IssueNumber)
	assert.Equal(t, int64(9), *events[0].IssueNumber)
}
