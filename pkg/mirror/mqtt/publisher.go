package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes/wrappers"

	"github.com/robotalks/sniff.go/pkg/sniff"
)

// Topic suffixes under <prefix><id>/.
const (
	TopicMeta  = "meta"
	TopicFrame = "frame"
	TopicRaw   = "raw"
)

// DefaultQueueSize is the number of frames buffered for publishing.
const DefaultQueueSize = 64

// Timeouts used unless changed on the Publisher.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultRetryInterval  = 5 * time.Second
	DefaultPublishTimeout = time.Second
)

// ErrTimeout is reported when the broker doesn't complete a request in time.
var ErrTimeout = errors.New("mqtt: timed out")

// Meta describes the sniffer, published retained while it is online.
type Meta struct {
	ID   string `json:"id"`
	Bus  string `json:"bus,omitempty"`
	Baud int    `json:"baud,omitempty"`
}

// Publisher publishes every observed frame.
type Publisher struct {
	Queue *Queue
	Meta  Meta

	// ConnectTimeout bounds each connect attempt, a failed attempt is
	// retried after RetryInterval. PublishTimeout bounds the wait for the
	// offline meta on shutdown.
	ConnectTimeout time.Duration
	RetryInterval  time.Duration
	PublishTimeout time.Duration

	metaJSON []byte
	frameCh  chan sniff.Frame
	dropped  uint64
}

// NewPublisher creates a Publisher connecting to brokerURL.
func NewPublisher(brokerURL string, meta Meta) (*Publisher, error) {
	metaJSON, err := json.Marshal(&meta)
	if err != nil {
		return nil, err
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetConnectTimeout(DefaultConnectTimeout)
	opts.SetBinaryWill(topicPrefix+meta.ID+"/"+TopicMeta, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("sniff:" + meta.ID)
	}
	p := &Publisher{
		Queue:          NewQueue(opts, topicPrefix),
		Meta:           meta,
		ConnectTimeout: DefaultConnectTimeout,
		RetryInterval:  DefaultRetryInterval,
		PublishTimeout: DefaultPublishTimeout,
		metaJSON:       metaJSON,
		frameCh:        make(chan sniff.Frame, DefaultQueueSize),
	}
	p.Queue.OnConnect = func(q *Queue) {
		q.PubWith(p.topic(TopicMeta), p.metaJSON, 1, true)
	}
	return p, nil
}

// Name implements Named.
func (p *Publisher) Name() string {
	return "mqtt"
}

// ObserveFrame implements FrameObserver. Frames are dropped while the
// publishing queue is full.
func (p *Publisher) ObserveFrame(frame sniff.Frame) {
	select {
	case p.frameCh <- frame:
	default:
		if n := atomic.AddUint64(&p.dropped, 1); n == 1 || n%100 == 0 {
			glog.Warningf("mqtt queue full, %d frames dropped", n)
		}
	}
}

// Run implements Runnable. Frames observed before the broker is reached
// are dropped. The client reconnects by itself once the first connect
// succeeded, until then connecting is retried here.
func (p *Publisher) Run(ctx context.Context) error {
	defer p.Queue.Close()
	connCh := p.connect()
	var retryCh <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			p.offline()
			return ctx.Err()
		case err := <-connCh:
			connCh = nil
			if err != nil {
				glog.Warningf("mqtt connect: %v, retry in %v", err, p.RetryInterval)
				retryCh = time.After(p.RetryInterval)
			}
		case <-retryCh:
			retryCh = nil
			connCh = p.connect()
		case frame := <-p.frameCh:
			p.publish(frame)
		}
	}
}

func (p *Publisher) connect() <-chan error {
	errCh := make(chan error, 1)
	token := p.Queue.Connect()
	go func() {
		if !token.WaitTimeout(p.ConnectTimeout) {
			errCh <- ErrTimeout
			return
		}
		errCh <- token.Error()
	}()
	return errCh
}

// offline clears the retained meta. A client which is reconnecting keeps
// QoS 1 messages without completing their tokens, so the wait is bounded.
func (p *Publisher) offline() {
	if !p.Queue.Client.IsConnectionOpen() {
		return
	}
	token := p.Queue.PubWith(p.topic(TopicMeta), nil, 1, true)
	if !token.WaitTimeout(p.PublishTimeout) {
		glog.Warningf("mqtt publish offline meta: %v", ErrTimeout)
		return
	}
	if err := token.Error(); err != nil {
		glog.Warningf("mqtt publish offline meta: %v", err)
	}
}

func (p *Publisher) publish(frame sniff.Frame) {
	if !p.Queue.Client.IsConnected() {
		return
	}
	p.Queue.Pub(p.topic(TopicFrame), frame.Bytes())
	raw, err := EncodeRaw(frame)
	if err != nil {
		glog.Errorf("encode frame: %v", err)
		return
	}
	p.Queue.Pub(p.topic(TopicRaw), raw)
}

func (p *Publisher) topic(suffix string) string {
	return p.Meta.ID + "/" + suffix
}

// EncodeRaw encodes frame bytes for the raw topic.
func EncodeRaw(frame sniff.Frame) ([]byte, error) {
	return proto.Marshal(&wrappers.BytesValue{Value: frame})
}

// DecodeRaw decodes a payload of the raw topic.
func DecodeRaw(payload []byte) (sniff.Frame, error) {
	var v wrappers.BytesValue
	if err := proto.Unmarshal(payload, &v); err != nil {
		return nil, err
	}
	return sniff.Frame(v.Value), nil
}
