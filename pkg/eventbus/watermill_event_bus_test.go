package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/pkg/channels/gochannel"
	"github.com/loomworks/loom/pkg/events"
)

func TestWatermillEventBusRoundTrip(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)

	received := make(chan any, 1)

	err = bus.Handle(events.ExecutionCompletedEvent, func(_ context.Context, event interface{}) error {
		received <- event

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	event := events.ExecutionCompleted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionCompletedEvent, "wf-1"),
		ExecutionID: "exec-1",
		Cost:        7,
	}

	require.NoError(t, bus.Publish(ctx, "wf-1", event))

	select {
	case got := <-received:
		completed, ok := got.(*events.ExecutionCompleted)
		require.True(t, ok)
		assert.Equal(t, "exec-1", completed.ExecutionID)
		assert.Equal(t, int64(7), completed.Cost)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBusIgnoresUnhandledTypes(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered: publishing must not block or error.
	event := events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent, "wf-1"),
		ExecutionID: "exec-1",
	}

	require.NoError(t, bus.Publish(ctx, "wf-1", event))
}

func TestGenerateID(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
