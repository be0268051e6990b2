package eventbus

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubscribePublish(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	defer sub.Close()

	bus.Publish(Event{Kind: NewItem, RecordID: "abc"})

	ev := <-sub.Events()
	require.Equal(t, NewItem, ev.Kind)
	require.Equal(t, "abc", ev.RecordID)
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	bus := New()
	sub1 := bus.Subscribe()
	sub2 := bus.Subscribe()

	defer sub1.Close()
	defer sub2.Close()

	bus.Publish(Event{Kind: ItemDeleted, RecordID: "x"})

	require.Equal(t, Event{Kind: ItemDeleted, RecordID: "x"}, <-sub1.Events())
	require.Equal(t, Event{Kind: ItemDeleted, RecordID: "x"}, <-sub2.Events())
}

func TestPublishDropsOldestOnFullBuffer(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	defer sub.Close()

	for i := 0; i < defaultCapacity+10; i++ {
		bus.Publish(Event{Kind: ItemUpdated, RecordID: strconv.Itoa(i)})
	}

	// The buffer holds the newest defaultCapacity events in order; the 10
	// oldest were dropped to make room.
	count := 0

	for {
		select {
		case ev := <-sub.Events():
			require.Equal(t, strconv.Itoa(10+count), ev.RecordID)
			count++
		default:
			require.Equal(t, defaultCapacity, count)

			return
		}
	}
}

func TestCloseUnsubscribes(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	sub.Close()

	// Closing again must not panic.
	sub.Close()

	bus.Publish(Event{Kind: SettingsChanged})

	_, ok := <-sub.Events()
	require.False(t, ok)
}
