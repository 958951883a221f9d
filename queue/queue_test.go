package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/gatekit/message"
)

func TestQueue_PushPopOrder(t *testing.T) {
	q, err := New(4, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		q.Push(message.Packet{Origin: "cmd", Timestamp: int64(i)})
	}

	assert.Equal(t, 3, q.Len())

	for i := 0; i < 3; i++ {
		pkt, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, int64(i), pkt.Timestamp)
	}

	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestQueue_OverflowDropsOldest(t *testing.T) {
	var dropped []message.Packet
	q, err := New(2, func(pkt message.Packet) { dropped = append(dropped, pkt) })
	require.NoError(t, err)

	q.Push(message.Packet{Timestamp: 1})
	q.Push(message.Packet{Timestamp: 2})
	q.Push(message.Packet{Timestamp: 3}) // evicts timestamp=1

	require.Len(t, dropped, 1)
	assert.Equal(t, int64(1), dropped[0].Timestamp)

	first, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, int64(2), first.Timestamp)
}

func TestQueue_PopWaitTimesOutWhenEmpty(t *testing.T) {
	q, err := New(4, nil)
	require.NoError(t, err)

	start := time.Now()
	_, ok := q.PopWait(30 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestQueue_PopWaitReturnsWhenAvailable(t *testing.T) {
	q, err := New(4, nil)
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Push(message.Packet{Timestamp: 42})
	}()

	pkt, ok := q.PopWait(200 * time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, int64(42), pkt.Timestamp)
}
