package mqtt

import (
	"fmt"
	"net"

	"github.com/lithammer/shortuuid"
)

// Factory selects a client role, owns the per-endpoint session state, and constructs a fresh
// Engine for each new transport connection so that session state (the packet tables) survives
// a reconnect (§6's "Factory role").
type Factory struct {
	role       Role
	sessions   map[string]*PerAddressSessionState
	clock      Clock
	credential TokenCredentialProvider
}

// FactoryOption configures a Factory at construction time.
type FactoryOption func(*Factory) error

// NewFactory validates role and builds a Factory. Clients should create one Factory per
// process and reuse it across reconnects to the same set of endpoints.
func NewFactory(role Role, opts ...FactoryOption) (*Factory, error) {
	if role != RolePublisher && role != RoleSubscriber && role != RolePubSub {
		return nil, &ProfileError{Detail: fmt.Sprintf("unrecognized role %v", role)}
	}
	f := &Factory{role: role, sessions: make(map[string]*PerAddressSessionState), clock: NewRealClock()}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// WithClock overrides the Factory's Clock, used by tests to inject a FakeClock.
func WithClock(clock Clock) FactoryOption {
	return func(f *Factory) error {
		f.clock = clock
		return nil
	}
}

// WithCredentialProvider installs a TokenCredentialProvider every Client built by this
// Factory consults in place of a static password (§4.4.8).
func WithCredentialProvider(p TokenCredentialProvider) FactoryOption {
	return func(f *Factory) error {
		f.credential = p
		return nil
	}
}

func (f *Factory) sessionFor(address string) *PerAddressSessionState {
	if s, ok := f.sessions[address]; ok {
		return s
	}
	s := newPerAddressSessionState()
	f.sessions[address] = s
	return s
}

// Client is the public, per-endpoint handle applications use: a thin wrapper wiring a
// Transport to an Engine built from Factory-owned session state.
type Client struct {
	address string
	engine  *Engine
	factory *Factory
}

// NewClient builds a Client for the given broker address, reusing or creating the Factory's
// session state for that endpoint.
func (f *Factory) NewClient(address string) *Client {
	session := f.sessionFor(address)
	engine := NewEngine(f.role, session, f.clock)
	if f.credential != nil {
		engine.SetCredentialProvider(f.credential)
	}
	return &Client{address: address, engine: engine, factory: f}
}

// RandomClientID returns a fresh random client identifier suitable for the CONNECT ClientName
// field, using the same short, URL-safe alphabet the teacher's command line tools used.
func RandomClientID() string {
	return shortuuid.New()
}

// Dial opens a TCP connection to the client's broker address and begins the CONNECT
// handshake.
func (c *Client) Dial(opts ...ConnectOption) (*Signal[bool], error) {
	conn, err := net.Dial("tcp", c.address)
	if err != nil {
		return nil, err
	}
	transport := NewNetTransport(conn)
	signal := c.engine.Connect(transport, opts...)
	go readLoop(conn,
		func(msg *GenericMessage) { c.engine.HandleFrame(msg) },
		func(err error) { c.engine.OnTransportLost(err) },
	)
	return signal, nil
}

// Connect begins the CONNECT handshake over an already-established transport (used by tests
// with a MockConnection, and by hosts that manage their own dialing/TLS).
func (c *Client) Connect(transport Transport, opts ...ConnectOption) *Signal[bool] {
	return c.engine.Connect(transport, opts...)
}

// Disconnect implements the public disconnect() operation (§6).
func (c *Client) Disconnect() {
	c.engine.Disconnect()
}

// Publish implements the public publish() operation (§6).
func (c *Client) Publish(topic string, payload []byte, qos int, retain bool) *Signal[int] {
	return c.engine.Publish(topic, payload, qos, retain)
}

// Subscribe implements the public subscribe() operation (§6).
func (c *Client) Subscribe(filters []TopicFilter) *Signal[[]GrantedSubscription] {
	return c.engine.Subscribe(filters)
}

// Unsubscribe implements the public unsubscribe() operation (§6).
func (c *Client) Unsubscribe(topics []string) *Signal[int] {
	return c.engine.Unsubscribe(topics)
}

// SetWindowSize implements the public set_window_size() operation (§6).
func (c *Client) SetWindowSize(n int) error { return c.engine.SetWindowSize(n) }

// SetTimeout implements the public set_timeout() operation (§6).
func (c *Client) SetTimeout(seconds int) error { return c.engine.SetTimeout(seconds) }

// SetBandwidth implements the public set_bandwidth() operation (§6).
func (c *Client) SetBandwidth(bytesPerSec, factor float64) error {
	return c.engine.SetBandwidth(bytesPerSec, factor)
}

// SetOnPublish implements the public set_on_publish() operation (§6).
func (c *Client) SetOnPublish(cb func(topic string, payload []byte, qos int, dup bool, retain bool, packetID int)) {
	c.engine.SetOnPublish(cb)
}

// SetOnDisconnection implements the public set_on_disconnection() operation (§6).
func (c *Client) SetOnDisconnection(cb func(reason error)) {
	c.engine.SetOnDisconnection(cb)
}

// Stats returns a snapshot of the underlying engine's per-flow packet counters.
func (c *Client) Stats() StatsSnapshot {
	return c.engine.Stats()
}
