// Package websocket streams captured frames to websocket observers.
package websocket

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/sniff.go/pkg/framework"
	"github.com/robotalks/sniff.go/pkg/sniff"
)

// DefaultQueueSize is the number of frames buffered per observer.
const DefaultQueueSize = 16

// Hub fans frames out to connected websocket clients. Each client gets
// the encoded frame lines as text messages.
type Hub struct {
	QueueSize int

	clients map[*client]struct{}
	lock    sync.Mutex
}

type client struct {
	frameCh chan []byte
	dropped int
}

// NewHub creates a Hub.
func NewHub() *Hub {
	return &Hub{QueueSize: DefaultQueueSize, clients: make(map[*client]struct{})}
}

// ObserveFrame implements FrameObserver. A client not keeping up loses frames.
func (h *Hub) ObserveFrame(frame sniff.Frame) {
	line := frame.Bytes()
	h.lock.Lock()
	defer h.lock.Unlock()
	for c := range h.clients {
		select {
		case c.frameCh <- line:
		default:
			c.dropped++
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

// Handler returns the websocket handler.
func (h *Hub) Handler() http.Handler {
	return websocket.Handler(h.serve)
}

func (h *Hub) serve(conn *websocket.Conn) {
	size := h.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	c := &client{frameCh: make(chan []byte, size)}
	h.lock.Lock()
	h.clients[c] = struct{}{}
	h.lock.Unlock()
	glog.V(2).Infof("websocket client %s connected", conn.Request().RemoteAddr)
	defer func() {
		h.lock.Lock()
		delete(h.clients, c)
		dropped := c.dropped
		h.lock.Unlock()
		glog.V(2).Infof("websocket client %s disconnected, %d frames dropped", conn.Request().RemoteAddr, dropped)
	}()

	closedCh := make(chan struct{})
	go func() {
		// clients never send, reading only detects the close.
		var discard []byte
		for websocket.Message.Receive(conn, &discard) == nil {
		}
		close(closedCh)
	}()
	for {
		select {
		case <-closedCh:
			return
		case line := <-c.frameCh:
			if err := websocket.Message.Send(conn, string(line)); err != nil {
				return
			}
		}
	}
}

// Server serves a Hub over HTTP.
type Server struct {
	Addr string
	Path string
	Hub  *Hub
}

// DefaultPath is the endpoint of the frame stream.
const DefaultPath = "/frames"

// NewServer creates a Server on addr.
func NewServer(addr string, hub *Hub) *Server {
	return &Server{Addr: addr, Path: DefaultPath, Hub: hub}
}

// Name implements Named.
func (s *Server) Name() string {
	return "websocket"
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle(s.Path, s.Hub.Handler())
	srv := &http.Server{Handler: mux}
	glog.Infof("websocket frames on ws://%s%s", ln.Addr(), s.Path)
	return fx.RunWithContextCancel(ctx, func() { srv.Close() }, func() error {
		return srv.Serve(ln)
	})
}
