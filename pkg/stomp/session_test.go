package stomp_test

import (
	"testing"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/busline/busline-go/internal/testharness/mock"
	"github.com/busline/busline-go/pkg/bus"
	"github.com/busline/busline-go/pkg/log"
	"github.com/busline/busline-go/pkg/stomp"
	"github.com/busline/busline-go/pkg/transport"
)

const testURL = "ws://broker.local:15674/ws"

type fixture struct {
	session *stomp.Session
	tr      *mock.Transport
	broker  *mock.Broker
	rec     *log.Recorder
}

func newFixture(t *testing.T, opts ...stomp.Option) *fixture {
	t.Helper()
	f := &fixture{broker: mock.NewBroker(), rec: log.NewRecorder()}
	f.tr = mock.NewTransport(testURL, transport.Events{
		OnOpen:    func() { f.session.HandleOpen() },
		OnMessage: func(data []byte) { f.session.HandleMessage(data) },
	})
	f.broker.Attach(f.tr)
	f.session = stomp.NewSession(f.tr, bus.SessionConfig{
		ConnectionID: "conn-1",
		URL:          testURL,
		Logger:       f.rec,
	}, opts...)
	return f
}

func (f *fixture) connect(t *testing.T, header map[string]string) {
	t.Helper()
	ready := 0
	f.session.Connect(header, func() { ready++ })
	f.tr.Open()
	require.Equal(t, 1, ready)
	require.True(t, f.session.Connected())
}

func TestSessionHandshake(t *testing.T) {
	f := newFixture(t)
	f.connect(t, map[string]string{"login": "guest", "passcode": "secret"})

	frames := f.tr.SentFrames()
	require.Len(t, frames, 1)
	c := frames[0]
	assert.Equal(t, frame.CONNECT, c.Command)
	assert.Equal(t, "1.2,1.1,1.0", c.Header.Get(frame.AcceptVersion))
	assert.Equal(t, "0,0", c.Header.Get(frame.HeartBeat))
	assert.Equal(t, "broker.local", c.Header.Get(frame.Host))
	assert.Equal(t, "guest", c.Header.Get(frame.Login))
	assert.Equal(t, "secret", c.Header.Get(frame.Passcode))

	assert.Equal(t, "1.2", f.session.Version())
	assert.Equal(t, "mock-broker/1.0", f.session.Server())
	assert.Equal(t, []string{frame.CONNECT}, f.rec.Commands(log.DirectionOut))
	assert.Equal(t, []string{frame.CONNECTED}, f.rec.Commands(log.DirectionIn))
}

func TestSessionConnectOnOpenTransport(t *testing.T) {
	f := newFixture(t, stomp.WithHost("vhost"))
	f.tr.Open()
	assert.Empty(t, f.tr.Sent(), "CONNECT must wait for Connect")

	ready := 0
	f.session.Connect(nil, func() { ready++ })
	assert.Equal(t, 1, ready)
	assert.Equal(t, "vhost", f.tr.SentFrames()[0].Header.Get(frame.Host))

	// Later opens and connects do not resend CONNECT.
	f.session.HandleOpen()
	f.session.Connect(nil, func() { ready++ })
	assert.Equal(t, 1, f.broker.Connects())
	assert.Equal(t, 1, ready)
}

func TestSessionSilentBroker(t *testing.T) {
	f := newFixture(t)
	f.broker.Silent = true

	ready := false
	f.session.Connect(nil, func() { ready = true })
	f.tr.Open()

	assert.False(t, ready)
	assert.False(t, f.session.Connected())
	_, err := f.session.Subscribe("/topic/a", func(bus.Message) {})
	assert.ErrorIs(t, err, stomp.ErrNotConnected)
	assert.ErrorIs(t, f.session.Send("/topic/a", nil, "{}"), stomp.ErrNotConnected)
}

func TestSessionSubscribeAndReceive(t *testing.T) {
	f := newFixture(t)
	f.connect(t, nil)

	var got []bus.Message
	sub, err := f.session.Subscribe("/topic/a", func(m bus.Message) { got = append(got, m) })
	require.NoError(t, err)
	assert.Equal(t, "sub-0", sub.ID())
	assert.Equal(t, "/topic/a", sub.Channel())
	assert.Equal(t, 1, f.broker.Subscriptions("/topic/a"))
	assert.True(t, bus.IssuedBy(sub, f.session))
	assert.False(t, bus.IssuedBy(sub, newFixture(t).session))

	require.NoError(t, f.session.Send("/topic/a", nil, `{"a":1}`))
	require.Len(t, got, 1)
	assert.Equal(t, "/topic/a", got[0].Channel)
	assert.Equal(t, "sub-0", got[0].SubscriptionID)
	assert.Equal(t, `{"a":1}`, string(got[0].Body))
	assert.Equal(t, "application/json", got[0].Header[frame.ContentType])

	var v map[string]int
	require.NoError(t, got[0].Decode(&v))
	assert.Equal(t, 1, v["a"])
}

func TestSessionSendHeaders(t *testing.T) {
	f := newFixture(t, stomp.WithContentType("text/plain"))
	f.connect(t, nil)

	require.NoError(t, f.session.Send("/queue/q", map[string]string{"priority": "9"}, "hello"))
	require.NoError(t, f.session.Send("/queue/q", map[string]string{frame.ContentType: "application/xml"}, "<x/>"))

	frames := f.tr.SentFrames()
	require.Len(t, frames, 3)
	send := frames[1]
	assert.Equal(t, frame.SEND, send.Command)
	assert.Equal(t, "/queue/q", send.Header.Get(frame.Destination))
	assert.Equal(t, "9", send.Header.Get("priority"))
	assert.Equal(t, "text/plain", send.Header.Get(frame.ContentType))
	assert.Equal(t, "5", send.Header.Get(frame.ContentLength))
	assert.Equal(t, "hello", string(send.Body))

	assert.Equal(t, "application/xml", frames[2].Header.Get(frame.ContentType))
}

func TestSessionUnsubscribeOnce(t *testing.T) {
	f := newFixture(t)
	f.connect(t, nil)

	sub, err := f.session.Subscribe("/topic/a", func(bus.Message) {})
	require.NoError(t, err)

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())
	assert.Equal(t, 1, f.broker.Unsubscribes())
	assert.Equal(t, 0, f.session.SubscriptionCount())

	var nilSub *stomp.Subscription
	assert.NoError(t, nilSub.Unsubscribe())
	assert.Empty(t, nilSub.ID())
}

func TestSessionUnknownSubscription(t *testing.T) {
	f := newFixture(t)
	f.connect(t, nil)

	f.tr.DeliverFrame(frame.New(frame.MESSAGE,
		frame.Destination, "/topic/x",
		frame.Subscription, "sub-99",
	))

	cat := log.CategoryError
	errs := f.rec.Filter(log.Filter{Category: &cat})
	require.Len(t, errs, 1)
	assert.Equal(t, "sub-99", errs[0].Error.Context)
}

func TestSessionErrorFrameLogged(t *testing.T) {
	f := newFixture(t)
	f.connect(t, nil)

	e := frame.New(frame.ERROR, frame.Message, "access refused")
	e.Body = []byte("no permission")
	f.tr.DeliverFrame(e)

	cat := log.CategoryError
	errs := f.rec.Filter(log.Filter{Category: &cat})
	require.Len(t, errs, 1)
	assert.Equal(t, "access refused", errs[0].Error.Message)
	assert.Equal(t, log.LayerBus, errs[0].Layer)
	assert.True(t, f.session.Connected())
}

func TestSessionHeartBeatIgnored(t *testing.T) {
	f := newFixture(t)
	f.connect(t, nil)
	before := len(f.rec.Events())

	f.tr.Deliver([]byte("\n"))
	assert.Len(t, f.rec.Events(), before)
}

func TestSessionDisconnect(t *testing.T) {
	f := newFixture(t)
	f.connect(t, nil)
	_, err := f.session.Subscribe("/topic/a", func(bus.Message) {})
	require.NoError(t, err)

	require.NoError(t, f.session.Disconnect())
	assert.Equal(t, []string{frame.CONNECT, frame.SUBSCRIBE, frame.DISCONNECT}, f.tr.Commands())
	assert.Equal(t, transport.StateClosed, f.tr.ReadyState())
	assert.Equal(t, transport.CloseNormal, f.tr.CloseCode())
	assert.False(t, f.session.Connected())
	assert.Equal(t, 0, f.session.SubscriptionCount())

	assert.ErrorIs(t, f.session.Disconnect(), stomp.ErrClosed)
	assert.ErrorIs(t, f.session.Send("/topic/a", nil, "{}"), stomp.ErrClosed)
}

func TestSessionCleanUpDropsSubscriptions(t *testing.T) {
	f := newFixture(t)
	f.connect(t, nil)

	received := 0
	sub, err := f.session.Subscribe("/topic/a", func(bus.Message) { received++ })
	require.NoError(t, err)

	f.session.CleanUp()
	f.session.CleanUp()

	// No UNSUBSCRIBE after cleanup; the transport is gone.
	require.NoError(t, sub.Unsubscribe())
	assert.Equal(t, 0, f.broker.Unsubscribes())

	f.tr.DeliverFrame(frame.New(frame.MESSAGE,
		frame.Destination, "/topic/a",
		frame.Subscription, sub.ID(),
	))
	assert.Equal(t, 0, received)

	cat := log.CategoryState
	states := f.rec.Filter(log.Filter{Category: &cat})
	require.NotEmpty(t, states)
	last := states[len(states)-1].StateChange
	assert.Equal(t, "CLOSED", last.NewState)
}

func TestSessionSendFailsOnClosedTransport(t *testing.T) {
	f := newFixture(t)
	f.connect(t, nil)
	f.tr.SetState(transport.StateClosed)

	err := f.session.Send("/topic/a", nil, "{}")
	assert.ErrorIs(t, err, transport.ErrNotOpen)
}

func TestSessionUnsupportedVersion(t *testing.T) {
	f := newFixture(t)
	f.broker.Version = "2.0"

	ready := 0
	f.session.Connect(nil, func() { ready++ })
	f.tr.Open()

	assert.Zero(t, ready)
	assert.False(t, f.session.Connected())
	assert.Equal(t, 1, f.tr.CloseCalls())
	assert.Equal(t, transport.CloseProtocol, f.tr.CloseCode())

	errs := f.rec.Filter(log.Filter{Category: ptr(log.CategoryError)})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error.Message, "unsupported version 2.0")
}

func TestSessionVersionDefaultsWhenMissing(t *testing.T) {
	f := newFixture(t)
	f.broker.Silent = true
	f.session.Connect(nil, nil)
	f.tr.Open()

	f.tr.DeliverFrame(frame.New(frame.CONNECTED))
	assert.True(t, f.session.Connected())
	assert.Equal(t, "1.0", f.session.Version())
}

func ptr[T any](v T) *T { return &v }
