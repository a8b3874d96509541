package bus

import (
	"context"
	"io"

	"github.com/golang/glog"

	fx "github.com/robotalks/sniff.go/pkg/framework"
)

// Reader pumps bytes from the bus port into a Buffer.
type Reader struct {
	Port   io.ReadCloser
	Buffer *Buffer
	// ChunkSize is the maximum number of bytes taken from Port per read.
	ChunkSize int
}

// DefaultChunkSize is the default read size.
const DefaultChunkSize = 64

// NewReader creates a Reader.
func NewReader(port io.ReadCloser, buf *Buffer) *Reader {
	return &Reader{Port: port, Buffer: buf, ChunkSize: DefaultChunkSize}
}

// Name implements Named.
func (r *Reader) Name() string {
	return "bus-reader"
}

// Run implements Runnable. The port is closed when ctx is canceled.
func (r *Reader) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, r.Port, r.readLoop)
}

func (r *Reader) readLoop() error {
	size := r.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	buf := make([]byte, size)
	var dropped uint64
	for {
		n, err := r.Port.Read(buf)
		if n > 0 {
			r.Buffer.Write(buf[:n])
			if o := r.Buffer.Overflows(); o != dropped {
				glog.Warningf("bus buffer overflow, %d bytes dropped", o-dropped)
				dropped = o
			}
		}
		if err != nil {
			if err == io.EOF {
				glog.Info("bus port closed")
			}
			return err
		}
	}
}
