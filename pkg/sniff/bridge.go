package sniff

import (
	"io"

	"github.com/golang/glog"

	fx "github.com/robotalks/sniff.go/pkg/framework"
)

// Stats are the bridge counters.
type Stats struct {
	Frames     uint64
	Bytes      uint64
	Heartbeats uint64
}

// Bridge connects a bus Source to the host link.
type Bridge struct {
	Sink     *Sink
	Capture  *CaptureHandler
	Liveness *LivenessScheduler
}

// NewBridge creates a Bridge writing to host.
func NewBridge(src Source, host io.Writer, indicator Indicator) *Bridge {
	sink := NewSink(host)
	return &Bridge{
		Sink:     sink,
		Capture:  NewCaptureHandler(src, sink),
		Liveness: NewLivenessScheduler(sink, indicator),
	}
}

// Observe adds frame observers.
func (b *Bridge) Observe(observers ...FrameObserver) *Bridge {
	b.Capture.Observers = append(b.Capture.Observers, observers...)
	return b
}

// Stats returns a snapshot of the counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Frames:     b.Capture.Frames(),
		Bytes:      b.Capture.Bytes(),
		Heartbeats: b.Liveness.Heartbeats(),
	}
}

// AddToLoop implements LoopAdder. Capture is event driven and runs on its
// own, the liveness scheduler ticks with the loop.
func (b *Bridge) AddToLoop(l *fx.Loop) {
	l.AddRunnable(b.Capture)
	l.Add(b.Liveness)
	l.OnExit(func() {
		st := b.Stats()
		glog.Infof("relayed %d frames (%d bytes), %d heartbeats", st.Frames, st.Bytes, st.Heartbeats)
	})
}
