package env

import (
	"io"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/sniff.go/pkg/bus"
	fx "github.com/robotalks/sniff.go/pkg/framework"
	"github.com/robotalks/sniff.go/pkg/indicator"
	"github.com/robotalks/sniff.go/pkg/mirror/mqtt"
	"github.com/robotalks/sniff.go/pkg/mirror/websocket"
	"github.com/robotalks/sniff.go/pkg/port"
	"github.com/robotalks/sniff.go/pkg/sniff"
)

var (
	openBus  = func(name string, baud int) (io.ReadCloser, error) { return port.Open(name, baud) }
	openHost = port.OpenHost
)

// Env is the assembled sniffer.
type Env struct {
	Config    *Config
	Host      io.WriteCloser
	Buffer    *bus.Buffer
	Reader    *bus.Reader
	Bridge    *sniff.Bridge
	Publisher *mqtt.Publisher
	Websocket *websocket.Server
}

// NewEnv opens the ports and builds the sniffer.
func (c *Config) NewEnv() (*Env, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	e := &Env{Config: c}
	if c.MQTTBrokerURL != "" {
		pub, err := mqtt.NewPublisher(c.MQTTBrokerURL, mqtt.Meta{ID: c.ID, Bus: c.BusPort, Baud: c.BusBaud})
		if err != nil {
			return nil, err
		}
		e.Publisher = pub
	}
	if c.WebsocketAddr != "" {
		e.Websocket = websocket.NewServer(c.WebsocketAddr, websocket.NewHub())
	}

	led, err := indicator.New(c.LED)
	if err != nil {
		glog.Warningf("indicator disabled: %v", err)
		led = indicator.Nop{}
	}

	busPort, err := openBus(c.BusPort, c.BusBaud)
	if err != nil {
		return nil, err
	}
	if e.Host, err = openHost(c.HostPort, c.HostBaud); err != nil {
		busPort.Close()
		return nil, err
	}
	glog.Infof("sniffing %s@%d to %s", c.BusPort, c.BusBaud, c.HostPort)

	e.Buffer = bus.NewBuffer(c.BufferSize)
	e.Reader = bus.NewReader(busPort, e.Buffer)
	e.Bridge = sniff.NewBridge(e.Buffer, e.Host, led)
	if e.Publisher != nil {
		e.Bridge.Observe(e.Publisher)
	}
	if e.Websocket != nil {
		e.Bridge.Observe(e.Websocket.Hub)
	}
	return e, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	e, err := c.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return e
}

// AddToLoop implements LoopAdder.
func (e *Env) AddToLoop(l *fx.Loop) {
	l.AddRunnable(e.Reader)
	l.Add(e.Bridge)
	if e.Publisher != nil {
		l.AddRunnable(e.Publisher)
	}
	if e.Websocket != nil {
		l.AddRunnable(e.Websocket)
	}
	l.OnExit(func() {
		e.Host.Close()
		if o := e.Buffer.Overflows(); o > 0 {
			glog.Warningf("%d bus bytes dropped on overflow", o)
		}
	})
}
