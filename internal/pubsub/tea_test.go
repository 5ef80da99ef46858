package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestListenCmd_ReturnsEvent(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx := context.Background()
	ch := broker.Subscribe(ctx)

	broker.Publish(EmittedEvent, "ID 12345")

	cmd := ListenCmd(ctx, ch)
	msg := cmd()

	event, ok := msg.(Event[string])
	require.True(t, ok, "expected Event[string], got %T", msg)
	require.Equal(t, "ID 12345", event.Payload)
}

func TestListenCmd_NilOnContextCancel(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx)

	cancel()

	cmd := ListenCmd(ctx, ch)
	require.Nil(t, cmd(), "cancelled context should end the listen loop")
}

func TestListenCmd_NilOnClosedChannel(t *testing.T) {
	broker := NewBroker[string]()

	ctx := context.Background()
	ch := broker.Subscribe(ctx)

	broker.Close()

	cmd := ListenCmd(ctx, ch)
	require.Nil(t, cmd(), "closed channel should end the listen loop")
}

func TestContinuousListener_ReceivesSequence(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := NewContinuousListener(ctx, broker)

	go func() {
		broker.Publish(EmittedEvent, 1)
		broker.Publish(EmittedEvent, 2)
	}()

	for want := 1; want <= 2; want++ {
		msg := listener.Listen()()
		event, ok := msg.(Event[int])
		require.True(t, ok)
		require.Equal(t, want, event.Payload)
	}

	// No third event: a Listen with nothing pending blocks until cancel.
	got := make(chan any, 1)
	go func() { got <- listener.Listen()() }()
	cancel()

	select {
	case msg := <-got:
		require.Nil(t, msg)
	case <-time.After(time.Second):
		require.Fail(t, "listener did not observe cancellation")
	}
}
