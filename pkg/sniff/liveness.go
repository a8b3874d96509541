package sniff

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/sniff.go/pkg/framework"
)

// DefaultQuantum is the liveness quantum.
const DefaultQuantum = 500 * time.Millisecond

// Indicator is the visual activity indicator.
type Indicator interface {
	Set(on bool) error
}

// LivenessScheduler keeps the host link from going idle. The USB CDC
// transport of some boards stops transmitting unless written to regularly.
//
// It runs as a loop Controller: every iteration but the first writes the
// heartbeat closing the previous quantum, then toggles the indicator.
type LivenessScheduler struct {
	Sink      *Sink
	Indicator Indicator
	Quantum   time.Duration

	on         bool
	ticks      uint64
	heartbeats uint64
}

// NewLivenessScheduler creates a LivenessScheduler ticking every DefaultQuantum.
func NewLivenessScheduler(sink *Sink, indicator Indicator) *LivenessScheduler {
	return &LivenessScheduler{Sink: sink, Indicator: indicator, Quantum: DefaultQuantum}
}

// AddToLoop implements LoopAdder. The loop interval becomes Quantum.
func (s *LivenessScheduler) AddToLoop(l *fx.Loop) {
	l.Interval = s.Quantum
	if l.Interval <= 0 {
		l.Interval = DefaultQuantum
	}
	l.AddController(s)
}

// Control implements Controller.
func (s *LivenessScheduler) Control(fx.ControlContext) error {
	var err error
	if s.ticks > 0 {
		err = s.Sink.WriteHeartbeat()
		atomic.AddUint64(&s.heartbeats, 1)
	}
	s.ticks++
	s.toggle()
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

func (s *LivenessScheduler) toggle() {
	s.on = !s.on
	if s.Indicator == nil {
		return
	}
	if err := s.Indicator.Set(s.on); err != nil {
		glog.V(2).Infof("indicator error: %v", err)
	}
}

// Heartbeats returns the number of heartbeats written.
func (s *LivenessScheduler) Heartbeats() uint64 {
	return atomic.LoadUint64(&s.heartbeats)
}
