package sniff

import (
	"context"
	"sync/atomic"

	"github.com/golang/glog"
)

// Source is the bus input as seen by the capture handler.
type Source interface {
	// Available returns the number of bytes ready to be read.
	Available() int
	// ReadByte returns one buffered byte and decrements availability.
	ReadByte() (byte, error)
	// Activity is signaled when bytes may be available. Arrivals are
	// coalesced into a single signal.
	Activity() <-chan struct{}
}

// FrameObserver receives every emitted frame. It is called from the
// capture path and must not block.
type FrameObserver interface {
	ObserveFrame(Frame)
}

// ObserveFrameFunc is the func form of FrameObserver.
type ObserveFrameFunc func(Frame)

// ObserveFrame implements FrameObserver.
func (f ObserveFrameFunc) ObserveFrame(frame Frame) {
	f(frame)
}

// CaptureHandler drains the bus on activity and emits one frame per drain.
type CaptureHandler struct {
	Source    Source
	Sink      *Sink
	Observers []FrameObserver

	frames uint64
	bytes  uint64
	buf    []byte
	line   []byte
}

// NewCaptureHandler creates a CaptureHandler.
func NewCaptureHandler(src Source, sink *Sink, observers ...FrameObserver) *CaptureHandler {
	return &CaptureHandler{Source: src, Sink: sink, Observers: observers}
}

// Name implements Named.
func (h *CaptureHandler) Name() string {
	return "capture"
}

// Run implements Runnable. Only one Handle runs at a time, activity raised
// while draining is picked up by the next iteration.
func (h *CaptureHandler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.Source.Activity():
			h.Handle()
		}
	}
}

// Handle drains all currently available bytes and emits them as one frame.
// With nothing available an empty frame is emitted.
func (h *CaptureHandler) Handle() Frame {
	data := h.buf[:0]
	for h.Source.Available() > 0 {
		b, err := h.Source.ReadByte()
		if err != nil {
			break
		}
		data = append(data, b)
	}
	h.buf = data

	h.line = AppendFrame(h.line[:0], data)
	if err := h.Sink.WriteFrame(h.line); err != nil {
		glog.Warningf("write frame error: %v", err)
	}
	atomic.AddUint64(&h.frames, 1)
	atomic.AddUint64(&h.bytes, uint64(len(data)))
	if glog.V(2) {
		glog.Infof("frame: %d bytes", len(data))
	}

	frame := make(Frame, len(data))
	copy(frame, data)
	for _, o := range h.Observers {
		o.ObserveFrame(frame)
	}
	return frame
}

// Frames returns the number of emitted frames.
func (h *CaptureHandler) Frames() uint64 {
	return atomic.LoadUint64(&h.frames)
}

// Bytes returns the number of captured bytes.
func (h *CaptureHandler) Bytes() uint64 {
	return atomic.LoadUint64(&h.bytes)
}
