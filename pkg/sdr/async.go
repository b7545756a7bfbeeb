package sdr

import (
	"sync/atomic"
	"time"
)

// AsyncQueue turns callback style hardware (rtl-sdr, hackrf) into a stream
// with a bounded-timeout Read. The hardware callback pushes byte chunks; the
// reader drains them in order. When the reader falls behind the oldest data
// is kept and new chunks are dropped, and the next Read reports ErrOverflow.
type AsyncQueue struct {
	chunks   chan []byte
	pending  []byte
	overflow int32
	closed   chan struct{}
	elemSize int
}

func NewAsyncQueue(depth, elemSize int) *AsyncQueue {
	return &AsyncQueue{
		chunks:   make(chan []byte, depth),
		closed:   make(chan struct{}),
		elemSize: elemSize,
	}
}

// Push copies buf into the queue. It never blocks.
func (q *AsyncQueue) Push(buf []byte) {
	chunk := make([]byte, len(buf))
	copy(chunk, buf)
	select {
	case q.chunks <- chunk:
	default:
		atomic.StoreInt32(&q.overflow, 1)
	}
}

// Close wakes any pending Read. Push must not be called afterwards.
func (q *AsyncQueue) Close() {
	select {
	case <-q.closed:
	default:
		close(q.closed)
	}
}

// Reset drops buffered data, used when a stream is reactivated.
func (q *AsyncQueue) Reset() {
	q.pending = nil
	atomic.StoreInt32(&q.overflow, 0)
	for {
		select {
		case <-q.chunks:
		default:
			return
		}
	}
}

func (q *AsyncQueue) Read(buf []byte, numElems int, timeout time.Duration) (int, StreamFlags, int64, error) {
	if atomic.CompareAndSwapInt32(&q.overflow, 1, 0) {
		return 0, 0, 0, ErrOverflow
	}

	if len(q.pending) == 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case chunk := <-q.chunks:
			q.pending = chunk
		case <-timer.C:
			return 0, 0, 0, ErrTimeout
		case <-q.closed:
			return 0, 0, 0, ErrStreamError
		}
	}

	want := numElems * q.elemSize
	if want > len(buf) {
		want = len(buf) - len(buf)%q.elemSize
	}
	n := copy(buf[:want], q.pending)
	n -= n % q.elemSize
	q.pending = q.pending[n:]
	if len(q.pending) < q.elemSize {
		q.pending = nil
	}
	return n / q.elemSize, 0, 0, nil
}
