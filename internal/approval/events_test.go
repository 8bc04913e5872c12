package approval

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SubscribeFilters(t *testing.T) {
	b := NewBus(Hooks{})

	var added, all int
	b.Subscribe(EventAdded, func(Event) { added++ })
	b.SubscribeAll(func(Event) { all++ })

	b.Publish(Event{Type: EventAdded})
	b.Publish(Event{Type: EventApproved})

	assert.Equal(t, 1, added)
	assert.Equal(t, 2, all)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus(Hooks{})

	var n int
	unsub := b.Subscribe(EventAdded, func(Event) { n++ })
	b.Publish(Event{Type: EventAdded})
	unsub()
	unsub()
	b.Publish(Event{Type: EventAdded})

	assert.Equal(t, 1, n)
}

func TestBus_RecoversListenerPanic(t *testing.T) {
	var panics atomic.Int32
	b := NewBus(Hooks{
		OnPanic: func(Event, interface{}) { panics.Add(1) },
	})

	var after bool
	b.SubscribeAll(func(Event) { panic("boom") })
	b.SubscribeAll(func(Event) { after = true })

	assert.NotPanics(t, func() { b.Publish(Event{Type: EventRejected}) })
	assert.True(t, after)
	assert.Equal(t, int32(1), panics.Load())
}

func TestBus_OrderPreserved(t *testing.T) {
	b := NewBus(Hooks{})
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		b.SubscribeAll(func(Event) { order = append(order, i) })
	}
	b.Publish(Event{Type: EventAdded})
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestBus_Stream(t *testing.T) {
	var dropped atomic.Int32
	b := NewBus(Hooks{OnDrop: func(Event) { dropped.Add(1) }})

	ch, cancel := b.Stream(2)
	b.Publish(Event{Type: EventAdded})
	b.Publish(Event{Type: EventApproved})
	b.Publish(Event{Type: EventRejected})

	e := <-ch
	assert.Equal(t, EventAdded, e.Type)
	e = <-ch
	assert.Equal(t, EventApproved, e.Type)
	assert.Equal(t, int32(1), dropped.Load())

	cancel()
	cancel()
	_, open := <-ch
	require.False(t, open)

	assert.NotPanics(t, func() { b.Publish(Event{Type: EventAdded}) })
}
