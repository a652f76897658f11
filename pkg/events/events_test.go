package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBus_DeliversOncePerQueue(t *testing.T) {
	bus := NewLocalBus()

	var (
		mu  sync.Mutex
		got = map[string][]BookingCreatedEvent{}
	)
	record := func(queue string) func(*Message) {
		return func(msg *Message) {
			var ev BookingCreatedEvent
			assert.NoError(t, json.Unmarshal(msg.Data, &ev))
			mu.Lock()
			got[queue] = append(got[queue], ev)
			mu.Unlock()
		}
	}

	require.NoError(t, bus.QueueSubscribe(BookingCreated, "notify", record("first")))
	require.NoError(t, bus.QueueSubscribe(BookingCreated, "notify", record("notify")))
	require.NoError(t, bus.QueueSubscribe(BookingCreated, "audit", record("audit")))

	require.NoError(t, bus.Publish(context.Background(), BookingCreated, BookingCreatedEvent{BookingID: "B1"}))
	require.NoError(t, bus.Publish(context.Background(), BookingDeleted, BookingDeletedEvent{BookingID: "B1"}))
	require.NoError(t, bus.Close())

	assert.Empty(t, got["first"])
	require.Len(t, got["notify"], 1)
	assert.Equal(t, "B1", got["notify"][0].BookingID)
	assert.Len(t, got["audit"], 1)
}

func TestLocalBus_PublishAfterClose(t *testing.T) {
	bus := NewLocalBus()
	require.NoError(t, bus.Close())
	assert.Error(t, bus.Publish(context.Background(), BookingCreated, BookingCreatedEvent{}))
}
