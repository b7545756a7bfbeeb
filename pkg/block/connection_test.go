package block

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduceKeepsOrderAndCopies(t *testing.T) {
	c := NewConnection(4)
	buf := []complex64{1, 2, 3}
	require.NoError(t, c.Produce(context.Background(), buf))
	buf[0] = 42
	require.NoError(t, c.Produce(context.Background(), buf[:1]))
	c.Shutdown()

	var got [][]complex64
	var nums []int
	for seg := range c.Segments() {
		got = append(got, seg.Data)
		nums = append(nums, seg.SegmentNumber)
	}
	assert.Equal(t, [][]complex64{{1, 2, 3}, {42}}, got)
	assert.Equal(t, []int{1, 2}, nums)
}

func TestProduceEmptyIsNoop(t *testing.T) {
	c := NewConnection(1)
	require.NoError(t, c.Produce(context.Background(), nil))
	assert.Len(t, c.Segments(), 0)
}

func TestProduceBlocksUntilCancelled(t *testing.T) {
	c := NewConnection(1)
	require.NoError(t, c.Produce(context.Background(), []complex64{1}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Produce(ctx, []complex64{2})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestShutdownTwice(t *testing.T) {
	c := NewConnection(1)
	c.Shutdown()
	assert.NotPanics(t, c.Shutdown)
	_, ok := <-c.Segments()
	assert.False(t, ok)
}
