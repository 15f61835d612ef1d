package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	h := NewHub(4)
	ch, cancel := h.Subscribe()
	defer cancel()

	n := h.Publish("delivery.stored", map[string]string{"delivery_id": "d-1"})
	assert.Equal(t, int64(1), n.Seq)

	select {
	case got := <-ch:
		assert.Equal(t, "delivery.stored", got.Kind)
		assert.JSONEq(t, `{"delivery_id":"d-1"}`, string(got.Data))
	case <-time.After(time.Second):
		t.Fatal("notice not delivered")
	}
}

func TestSinceReplaysBoundedBacklog(t *testing.T) {
	h := NewHub(3)
	for i := 0; i < 5; i++ {
		h.Publish("tick", i)
	}

	all := h.Since(0)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{3, 4, 5}, []int64{all[0].Seq, all[1].Seq, all[2].Seq})

	tail := h.Since(4)
	require.Len(t, tail, 1)
	assert.Equal(t, int64(5), tail[0].Seq)
}

func TestCancelClosesChannel(t *testing.T) {
	h := NewHub(2)
	ch, cancel := h.Subscribe()
	assert.Equal(t, 1, h.Subscribers())

	cancel()
	cancel()
	assert.Equal(t, 0, h.Subscribers())

	_, open := <-ch
	assert.False(t, open)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(2)
	_, cancel := h.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			h.Publish("flood", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
}
