package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/sniff.go/pkg/sniff"
)

func TestRawCodec(t *testing.T) {
	for _, frame := range []sniff.Frame{{0x12, 0xab, 0x00}, {0xff}} {
		payload, err := EncodeRaw(frame)
		require.NoError(t, err)
		decoded, err := DecodeRaw(payload)
		require.NoError(t, err)
		require.Equal(t, frame, decoded)
	}
	decoded, err := DecodeRaw(nil)
	require.NoError(t, err)
	require.Empty(t, decoded)
}

func TestPublisherTopics(t *testing.T) {
	p, err := NewPublisher("mqtt://localhost:1883/sniff/", Meta{ID: "dev1", Bus: "/dev/ttyS0", Baud: 4800})
	require.NoError(t, err)
	require.Equal(t, "sniff/", p.Queue.TopicPrefix)
	require.Equal(t, "dev1/frame", p.topic(TopicFrame))
	require.JSONEq(t, `{"id":"dev1","bus":"/dev/ttyS0","baud":4800}`, string(p.metaJSON))
}

func TestPublisherDropsWhenFull(t *testing.T) {
	p, err := NewPublisher("mqtt://localhost:1883/", Meta{ID: "dev1"})
	require.NoError(t, err)
	for i := 0; i < DefaultQueueSize+3; i++ {
		p.ObserveFrame(sniff.Frame{byte(i)})
	}
	require.Len(t, p.frameCh, DefaultQueueSize)
	require.EqualValues(t, 3, p.dropped)
	require.Equal(t, sniff.Frame{0}, <-p.frameCh)
}

// fakeToken completes immediately unless pending, a pending token never
// completes within any timeout.
type fakeToken struct {
	paho.Token
	pending bool
	err     error
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	if t.pending {
		time.Sleep(d)
		return false
	}
	return true
}

func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

// fakeClient hands out the scripted connect tokens in order, then
// successful ones.
type fakeClient struct {
	paho.Client
	connectTokens []*fakeToken
	stallQoS1     bool

	connects     int
	connected    bool
	disconnected bool
	published    []published
	lock         sync.Mutex
}

func (c *fakeClient) Connect() paho.Token {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.connects++
	if len(c.connectTokens) > 0 {
		token := c.connectTokens[0]
		c.connectTokens = c.connectTokens[1:]
		return token
	}
	c.connected = true
	return &fakeToken{}
}

func (c *fakeClient) IsConnected() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.connected
}

func (c *fakeClient) IsConnectionOpen() bool {
	return c.IsConnected()
}

func (c *fakeClient) Publish(topic string, qos byte, retain bool, payload interface{}) paho.Token {
	c.lock.Lock()
	defer c.lock.Unlock()
	data, _ := payload.([]byte)
	c.published = append(c.published, published{topic: topic, qos: qos, retain: retain, payload: data})
	return &fakeToken{pending: qos > 0 && c.stallQoS1}
}

func (c *fakeClient) Disconnect(uint) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.disconnected = true
	c.connected = false
}

func (c *fakeClient) snapshot() (int, []published) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.connects, append([]published(nil), c.published...)
}

func newTestPublisher(t *testing.T, client *fakeClient) *Publisher {
	p, err := NewPublisher("mqtt://localhost:1883/sniff/", Meta{ID: "dev1"})
	require.NoError(t, err)
	p.Queue.Client = client
	p.ConnectTimeout = 10 * time.Millisecond
	p.RetryInterval = 5 * time.Millisecond
	p.PublishTimeout = 20 * time.Millisecond
	return p
}

func TestPublisherRetriesConnect(t *testing.T) {
	client := &fakeClient{connectTokens: []*fakeToken{
		{err: errors.New("connection refused")},
		{pending: true},
	}}
	p := newTestPublisher(t, client)
	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan error, 1)
	go func() { doneCh <- p.Run(ctx) }()

	require.Eventually(t, client.IsConnected, time.Second, time.Millisecond)
	connects, _ := client.snapshot()
	require.Equal(t, 3, connects)

	p.ObserveFrame(sniff.Frame{0x12, 0xab})
	require.Eventually(t, func() bool {
		_, pubs := client.snapshot()
		return len(pubs) >= 2
	}, time.Second, time.Millisecond)
	_, pubs := client.snapshot()
	require.Equal(t, "sniff/dev1/frame", pubs[0].topic)
	require.Equal(t, "rx 12 ABh\r\n", string(pubs[0].payload))
	require.Equal(t, "sniff/dev1/raw", pubs[1].topic)

	cancel()
	require.Equal(t, context.Canceled, <-doneCh)
}

func TestPublisherStopsWhenOfflineMetaStalls(t *testing.T) {
	client := &fakeClient{stallQoS1: true}
	p := newTestPublisher(t, client)
	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan error, 1)
	go func() { doneCh <- p.Run(ctx) }()
	require.Eventually(t, client.IsConnected, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-doneCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("publisher not stopped")
	}
	_, pubs := client.snapshot()
	require.NotEmpty(t, pubs)
	last := pubs[len(pubs)-1]
	require.Equal(t, "sniff/dev1/meta", last.topic)
	require.EqualValues(t, 1, last.qos)
	require.True(t, last.retain)
	require.Empty(t, last.payload)
	require.True(t, client.disconnected)
}

func TestPublisherStopsWithoutBroker(t *testing.T) {
	client := &fakeClient{connectTokens: []*fakeToken{{pending: true}}}
	p := newTestPublisher(t, client)
	p.ConnectTimeout = 500 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan error, 1)
	go func() { doneCh <- p.Run(ctx) }()
	p.ObserveFrame(sniff.Frame{1})
	cancel()
	require.Equal(t, context.Canceled, <-doneCh)
	_, pubs := client.snapshot()
	require.Empty(t, pubs)
}
