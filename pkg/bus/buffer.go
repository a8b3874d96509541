package bus

import (
	"errors"
	"sync"
)

// DefaultCapacity is the default size of the receive buffer.
const DefaultCapacity = 4096

// ErrEmpty is returned by ReadByte when no byte is available.
var ErrEmpty = errors.New("no byte available")

// Buffer is the bounded receive buffer of the bus.
type Buffer struct {
	data      []byte
	head      int
	count     int
	overflows uint64
	lock      sync.Mutex

	activityCh chan struct{}
}

// NewBuffer creates a Buffer holding at most capacity bytes.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		data:       make([]byte, capacity),
		activityCh: make(chan struct{}, 1),
	}
}

// Write appends received bytes and raises activity. Bytes not fitting
// into the buffer are dropped and counted as overflow.
// It never blocks and always reports len(p) as written.
func (b *Buffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	b.lock.Lock()
	for _, c := range p {
		if b.count == len(b.data) {
			b.overflows++
			continue
		}
		b.data[(b.head+b.count)%len(b.data)] = c
		b.count++
	}
	b.lock.Unlock()
	b.Trigger()
	return len(p), nil
}

// Trigger raises activity without new data.
func (b *Buffer) Trigger() {
	select {
	case b.activityCh <- struct{}{}:
	default:
	}
}

// Available returns the number of buffered bytes.
func (b *Buffer) Available() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.count
}

// ReadByte removes and returns the oldest buffered byte.
func (b *Buffer) ReadByte() (byte, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.count == 0 {
		return 0, ErrEmpty
	}
	c := b.data[b.head]
	b.head = (b.head + 1) % len(b.data)
	b.count--
	return c, nil
}

// Activity returns the chan signaled when bytes arrived.
func (b *Buffer) Activity() <-chan struct{} {
	return b.activityCh
}

// Overflows returns the number of bytes dropped because the buffer was full.
func (b *Buffer) Overflows() uint64 {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.overflows
}
