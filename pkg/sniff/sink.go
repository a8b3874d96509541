package sniff

import (
	"io"
	"sync"
)

// Sink is the host link shared by the capture handler and the liveness
// scheduler. Every write is exclusive, so a frame is never split by a
// heartbeat.
type Sink struct {
	w    io.Writer
	lock sync.Mutex
}

// NewSink wraps the host link writer.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

// WriteFrame writes an encoded frame in one exclusive write.
func (s *Sink) WriteFrame(encoded []byte) error {
	return s.write(encoded)
}

// WriteHeartbeat writes the heartbeat character.
func (s *Sink) WriteHeartbeat() error {
	return s.write([]byte(Heartbeat))
}

func (s *Sink) write(p []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	for len(p) > 0 {
		n, err := s.w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}
