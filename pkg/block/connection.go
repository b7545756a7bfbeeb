// Package block connects a single sample producer to its downstream
// consumer.
package block

import (
	"context"
	"sync"

	"github.com/norasector/turbine-common/types"
)

// Connection is a bounded one-to-one hand-off of complex sample segments.
// Producers block when the consumer falls behind.
type Connection struct {
	segments chan *types.SegmentComplex64
	once     sync.Once
	segNum   int
}

func NewConnection(capacity int) *Connection {
	if capacity < 1 {
		capacity = 1
	}
	return &Connection{
		segments: make(chan *types.SegmentComplex64, capacity),
	}
}

// Produce copies samples into a new segment and queues it. Empty batches are
// dropped without touching the queue. It returns ctx.Err() if ctx ends while
// waiting for room.
func (c *Connection) Produce(ctx context.Context, samples []complex64) error {
	if len(samples) == 0 {
		return nil
	}

	c.segNum++
	seg := &types.SegmentComplex64{
		Data:          make([]complex64, len(samples)),
		SegmentNumber: c.segNum,
	}
	copy(seg.Data, samples)

	select {
	case c.segments <- seg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown tells the consumer no more segments will arrive. Only the
// producer may call it; repeated calls are ignored.
func (c *Connection) Shutdown() {
	c.once.Do(func() {
		close(c.segments)
	})
}

// Segments is the consumer side. It is closed after Shutdown once drained.
func (c *Connection) Segments() <-chan *types.SegmentComplex64 {
	return c.segments
}
