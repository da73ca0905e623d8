package mqtt

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const minConnAckTimeout = 10 * time.Second

// Engine is the protocol engine (§4.4): it owns one active transport, drives the connect/
// keepalive handshake, the QoS 0/1/2 publish flows in both directions, subscribe/unsubscribe,
// session resync on reconnect, and transport-loss cleanup. Every public method and every
// inbound frame is dispatched while holding mu, so the engine behaves as a single-threaded
// cooperative event loop (§5) even though it runs under a preemptive goroutine scheduler.
type Engine struct {
	mu sync.Mutex

	role    Role
	session *PerAddressSessionState
	clock   Clock

	transport Transport
	state     connState

	windowSize     int
	initialTimeout time.Duration
	bandwidth      float64
	backoffFactor  float64

	version    ProtocolVersion
	cleanStart bool
	keepalive  int
	credential TokenCredentialProvider

	connAckTimer  TimerHandle
	connAckSignal *Signal[bool]

	keepaliveTimer TimerHandle
	pingAckTimer   TimerHandle

	onPublish       func(topic string, payload []byte, qos int, dup bool, retain bool, packetID int)
	onDisconnection func(reason error)

	stats Stats

	// connID correlates every log line for one physical TCP connection's lifetime, so a
	// reconnect's log stream can be grepped apart from the previous connection's.
	connID string
}

// NewEngine constructs an Engine for one Factory-owned endpoint session, using default
// window/timeout/bandwidth/backoff settings (window 8, timeout 4s, bandwidth 1MB/s, factor 2).
func NewEngine(role Role, session *PerAddressSessionState, clock Clock) *Engine {
	return &Engine{
		role:           role,
		session:        session,
		clock:          clock,
		state:          stateIdle,
		windowSize:     8,
		initialTimeout: 4 * time.Second,
		bandwidth:      1 << 20,
		backoffFactor:  2,
	}
}

// SetWindowSize changes the in-flight admission window, n in [1,16] (§6).
func (e *Engine) SetWindowSize(n int) error {
	if n < 1 || n > 16 {
		return &ValueError{Field: "windowSize", Detail: "must be in [1, 16]"}
	}
	e.mu.Lock()
	e.windowSize = n
	e.mu.Unlock()
	return nil
}

// SetTimeout changes the initial retransmit timeout, seconds in [1,1024] (§6).
func (e *Engine) SetTimeout(seconds int) error {
	if seconds < 1 || seconds > 1024 {
		return &ValueError{Field: "timeout", Detail: "must be in [1, 1024] seconds"}
	}
	e.mu.Lock()
	e.initialTimeout = time.Duration(seconds) * time.Second
	e.mu.Unlock()
	return nil
}

// SetBandwidth changes the publisher-side retransmit shaping parameters (§6).
func (e *Engine) SetBandwidth(bytesPerSec, factor float64) error {
	if bytesPerSec <= 0 {
		return &ValueError{Field: "bandwidth", Detail: "must be positive"}
	}
	if factor <= 0 {
		return &ValueError{Field: "factor", Detail: "must be positive"}
	}
	e.mu.Lock()
	e.bandwidth = bytesPerSec
	e.backoffFactor = factor
	e.mu.Unlock()
	return nil
}

// SetOnPublish registers the callback fired for every inbound PUBLISH delivery.
func (e *Engine) SetOnPublish(cb func(topic string, payload []byte, qos int, dup bool, retain bool, packetID int)) {
	e.mu.Lock()
	e.onPublish = cb
	e.mu.Unlock()
}

// SetOnDisconnection registers the callback fired after transport-loss cleanup completes.
func (e *Engine) SetOnDisconnection(cb func(reason error)) {
	e.mu.Lock()
	e.onDisconnection = cb
	e.mu.Unlock()
}

// SetCredentialProvider installs a TokenCredentialProvider consulted by Connect in place of
// a static username/password (§4.4.8).
func (e *Engine) SetCredentialProvider(p TokenCredentialProvider) {
	e.mu.Lock()
	e.credential = p
	e.mu.Unlock()
}

// Stats returns a point-in-time snapshot of the engine's per-flow counters.
func (e *Engine) Stats() StatsSnapshot {
	return e.stats.Snapshot()
}

func (e *Engine) newInterval() *Interval {
	return NewInterval(e.initialTimeout, e.backoffFactor, e.bandwidth)
}

// write encodes and writes msg to the transport, tracking DUP delivery when dup is true.
func (e *Engine) write(msg *GenericMessage, dup bool) {
	var err error
	if dup {
		_, err = msg.WriteDupTo(e.transport)
	} else {
		_, err = msg.WriteTo(e.transport)
	}
	if err != nil {
		logrus.WithError(err).WithField("conn_id", e.connID).Warn("mqtt: write failed, aborting transport")
		e.abortLocked(&TransportClosedError{Reason: err.Error()})
	}
}

// Connect attaches transport as the active connection and begins the CONNECT handshake
// (§4.4.1). transport must not already be in use by another Engine.
func (e *Engine) Connect(transport Transport, opts ...ConnectOption) *Signal[bool] {
	e.mu.Lock()
	defer e.mu.Unlock()

	signal := NewSignal[bool]()
	if e.state != stateIdle {
		signal.Fail(&ProtocolStateError{Operation: "connect", State: e.state})
		return signal
	}

	username, password := "", ([]byte)(nil)
	var credErr error
	if e.credential != nil {
		username, password, credErr = e.credential.Credentials()
		if credErr != nil {
			signal.Fail(credErr)
			return signal
		}
		opts = append([]ConnectOption{UserName(username), Password(password)}, opts...)
	}

	req, err := NewConnectRequest(opts...)
	if err != nil {
		signal.Fail(err)
		return signal
	}

	e.transport = transport
	e.version = req.options.Version
	e.cleanStart = req.options.CleanStart
	e.keepalive = req.options.KeepAliveSeconds
	e.connAckSignal = signal
	e.state = stateConnecting
	e.connID = uuid.New().String()

	logrus.WithField("conn_id", e.connID).Debug("mqtt: sending CONNECT")
	e.write(req.makeMessage(), false)

	timeout := time.Duration(e.keepalive) * time.Second
	if timeout < minConnAckTimeout {
		timeout = minConnAckTimeout
	}
	e.connAckTimer = e.clock.Schedule(timeout, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.state != stateConnecting {
			return
		}
		e.abortLocked(&TimeoutError{Awaiting: "CONNACK"})
	})

	return signal
}

// HandleFrame dispatches one decoded inbound control packet (§6's streaming framing feeds
// this from a FrameAccumulator).
func (e *Engine) HandleFrame(msg *GenericMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch msg.Type() {
	case ConnAckType:
		e.handleConnAck(msg)
	case PublishType:
		e.handleIncomingPublish(msg)
	case PublishAckType:
		e.handlePubAck(msg)
	case PublishReceivedType:
		e.handlePubRec(msg)
	case PublishReleaseType:
		e.handlePubRel(msg)
	case PublishCompleteType:
		e.handlePubComp(msg)
	case SubAckType:
		e.handleSubAck(msg)
	case UnsubAckType:
		e.handleUnsubAck(msg)
	case PingRespType:
		e.stats.pingReceived++
		if e.pingAckTimer != 0 {
			e.clock.Cancel(e.pingAckTimer)
			e.pingAckTimer = 0
		}
	default:
		logrus.WithField("type", msg.Type()).Warn("mqtt: unsupported inbound packet type")
	}
}

func (e *Engine) handleConnAck(msg *GenericMessage) {
	if e.state != stateConnecting {
		return
	}
	ack, err := decodeConnAck(msg)
	if err != nil {
		e.abortLocked(err)
		return
	}
	e.clock.Cancel(e.connAckTimer)
	signal := e.connAckSignal
	e.connAckSignal = nil

	if ack.ResultCode != ConnectionAccepted {
		e.state = stateIdle
		if signal != nil {
			signal.Fail(&ValueError{Field: "CONNACK", Detail: "connection refused"})
		}
		return
	}

	e.state = stateConnected
	if signal != nil {
		signal.Resolve(ack.SessionPresent)
	}

	if !e.cleanStart {
		e.resync()
	} else {
		e.session.purge(e.clock, &SessionClearedError{})
	}

	e.armKeepalive()
}

func (e *Engine) armKeepalive() {
	if e.keepalive <= 0 {
		return
	}
	interval := time.Duration(e.keepalive) * time.Second
	e.keepaliveTimer = e.clock.Schedule(interval, e.sendPing)
}

func (e *Engine) sendPing() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateConnected {
		return
	}
	e.write(NewPingReq(), false)
	e.stats.pingSent++
	interval := time.Duration(e.keepalive) * time.Second
	e.pingAckTimer = e.clock.Schedule(interval, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.state == stateConnected {
			e.abortLocked(&TimeoutError{Awaiting: "PINGRESP"})
		}
	})
	e.keepaliveTimer = e.clock.Schedule(interval, e.sendPing)
}

// resync resends unacknowledged PUBREL then PUBLISH with DUP set, per §4.4.5.
func (e *Engine) resync() {
	for _, rel := range e.session.windowPubRelease {
		e.write(rel.Encoded, true)
		rel.Timer = e.armRetry(rel.interval, len(rel.Encoded.Body()), func() { e.retryRelease(rel) })
	}
	for _, pub := range e.session.windowPublish {
		e.write(pub.Encoded, true)
		pub.Timer = e.armRetry(pub.interval, len(pub.Encoded.Body()), func() { e.retryPublish(pub) })
	}
}

// armRetry schedules a retransmit callback using iv's payload-weighted backoff schedule.
func (e *Engine) armRetry(iv *Interval, size int, fn func()) TimerHandle {
	delay := iv.Next(size)
	return e.clock.Schedule(delay, fn)
}

func (e *Engine) retryPublish(pub *InFlightPublishOut) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.session.windowPublish[pub.PacketID]; !ok {
		return
	}
	pub.Retries++
	e.stats.retransmits++
	e.write(pub.Encoded, true)
	pub.Timer = e.armRetry(pub.interval, len(pub.Encoded.Body()), func() { e.retryPublish(pub) })
}

func (e *Engine) retryRelease(rel *InFlightRelease) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.session.windowPubRelease[rel.PacketID]; !ok {
		return
	}
	e.stats.retransmits++
	e.write(rel.Encoded, true)
	rel.Timer = e.armRetry(rel.interval, len(rel.Encoded.Body()), func() { e.retryRelease(rel) })
}

// Publish submits an outgoing PUBLISH (§4.4.2). For QoS 0 the completion signal resolves
// immediately with id 0; for QoS>=1 it resolves with the allocated packet id on PUBACK/PUBCOMP.
func (e *Engine) Publish(topic string, payload []byte, qos int, retain bool) *Signal[int] {
	e.mu.Lock()
	defer e.mu.Unlock()

	signal := NewSignal[int]()
	if qos < 0 || qos > 2 {
		signal.Fail(&ValueError{Field: "QoS", Detail: "must be 0, 1, or 2"})
		return signal
	}
	if e.state == stateIdle || (e.state == stateConnecting && e.role == RoleSubscriber) {
		signal.Fail(&ProtocolStateError{Operation: "publish", State: e.state})
		return signal
	}

	if qos == 0 {
		req, err := NewPublishRequest(PublishTopic(topic), PublishMessage(payload), PublishQoS(0), PublishRetain(retain))
		if err != nil {
			signal.Fail(err)
			return signal
		}
		e.write(req.makeMessage(), false)
		e.stats.publishSent++
		signal.Resolve(0)
		return signal
	}

	e.session.enqueuePublish(&pendingPublish{topic: topic, payload: payload, qos: qos, retain: retain, signal: signal})
	e.refillPublish()
	return signal
}

// refillPublish admits queued publishes into windowPublish until the window is full or the
// queue is empty (§4.4.2).
func (e *Engine) refillPublish() {
	for len(e.session.windowPublish) < e.windowSize {
		pending := e.session.dequeuePublish()
		if pending == nil {
			return
		}
		id, err := e.session.nextID()
		if err != nil {
			pending.signal.Fail(err)
			continue
		}
		req, err := NewPublishRequest(
			PublishTopic(pending.topic), PublishMessage(pending.payload),
			PublishQoS(pending.qos), PublishRetain(pending.retain), PublishPacketID(id))
		if err != nil {
			e.session.ids.release(id)
			pending.signal.Fail(err)
			continue
		}
		encoded := req.makeMessage()
		in := &InFlightPublishOut{
			PacketID: id, Topic: pending.topic, Payload: pending.payload,
			QoS: pending.qos, Retain: pending.retain, Encoded: encoded, Signal: pending.signal,
			interval: e.newInterval(),
		}
		e.session.windowPublish[id] = in
		e.write(encoded, false)
		e.stats.publishSent++
		in.Timer = e.armRetry(in.interval, len(encoded.Body()), func() { e.retryPublish(in) })
	}
}

func (e *Engine) handlePubAck(msg *GenericMessage) {
	id, err := decodePacketIDAck(msg, PublishAckType)
	if err != nil {
		e.abortLocked(err)
		return
	}
	e.stats.pubAckReceived++
	in, ok := e.session.windowPublish[id]
	if !ok {
		logrus.WithField("packetID", id).Debug("mqtt: duplicate or unknown PUBACK, ignoring")
		return
	}
	e.clock.Cancel(in.Timer)
	delete(e.session.windowPublish, id)
	e.session.ids.release(id)
	in.Signal.Resolve(id)
	e.refillPublish()
}

func (e *Engine) handlePubRec(msg *GenericMessage) {
	id, err := decodePacketIDAck(msg, PublishReceivedType)
	if err != nil {
		e.abortLocked(err)
		return
	}
	e.stats.pubRecReceived++
	in, ok := e.session.windowPublish[id]
	if !ok {
		logrus.WithField("packetID", id).Debug("mqtt: duplicate or unknown PUBREC, ignoring")
		return
	}
	e.clock.Cancel(in.Timer)
	delete(e.session.windowPublish, id)

	rel := &InFlightRelease{PacketID: id, Encoded: NewPubRel(id), Signal: in.Signal, interval: e.newInterval()}
	e.session.windowPubRelease[id] = rel
	e.write(rel.Encoded, false)
	e.stats.pubRelSent++
	rel.Timer = e.armRetry(rel.interval, len(rel.Encoded.Body()), func() { e.retryRelease(rel) })
}

func (e *Engine) handlePubComp(msg *GenericMessage) {
	id, err := decodePacketIDAck(msg, PublishCompleteType)
	if err != nil {
		e.abortLocked(err)
		return
	}
	e.stats.pubCompReceived++
	rel, ok := e.session.windowPubRelease[id]
	if !ok {
		logrus.WithField("packetID", id).Debug("mqtt: duplicate or unknown PUBCOMP, ignoring")
		return
	}
	e.clock.Cancel(rel.Timer)
	delete(e.session.windowPubRelease, id)
	e.session.ids.release(id)
	rel.Signal.Resolve(id)
	e.refillPublish()
}

func (e *Engine) handlePubRel(msg *GenericMessage) {
	id, err := decodePacketIDAck(msg, PublishReleaseType)
	if err != nil {
		e.abortLocked(err)
		return
	}
	e.stats.pubRelReceived++
	if in, ok := e.session.windowPubRx[id]; ok {
		delete(e.session.windowPubRx, id)
		e.deliver(in.Message)
	}
	e.write(NewPubComp(id), false)
	e.stats.pubCompSent++
}

func (e *Engine) deliver(msg *IncomingPublish) {
	if e.onPublish != nil {
		e.onPublish(msg.Topic, msg.Payload, msg.QoS, msg.Dup, msg.Retain, msg.PacketID)
	}
}

// handleIncomingPublish implements the three inbound QoS flows of §4.4.3.
func (e *Engine) handleIncomingPublish(msg *GenericMessage) {
	in, err := decodePublish(msg)
	if err != nil {
		e.abortLocked(err)
		return
	}
	e.stats.publishReceived++

	switch in.QoS {
	case 0:
		e.deliver(in)
	case 1:
		e.write(NewPubAck(in.PacketID), false)
		e.stats.pubAckSent++
		e.deliver(in)
	case 2:
		e.session.windowPubRx[in.PacketID] = &InFlightPublishIn{PacketID: in.PacketID, Message: in}
		e.write(NewPubRec(in.PacketID), false)
		e.stats.pubRecSent++
	}
}

// Subscribe submits an outgoing SUBSCRIBE (§4.4.4).
func (e *Engine) Subscribe(filters []TopicFilter) *Signal[[]GrantedSubscription] {
	e.mu.Lock()
	defer e.mu.Unlock()

	signal := NewSignal[[]GrantedSubscription]()
	if e.state != stateConnected {
		signal.Fail(&ProtocolStateError{Operation: "subscribe", State: e.state})
		return signal
	}
	if len(e.session.windowSubscribe) >= e.windowSize {
		signal.Fail(&WindowExceededError{Window: "subscribe", Size: e.windowSize})
		return signal
	}
	id, err := e.session.nextID()
	if err != nil {
		signal.Fail(err)
		return signal
	}
	req, err := NewSubscribeRequest(id, filters)
	if err != nil {
		e.session.ids.release(id)
		signal.Fail(err)
		return signal
	}
	encoded := req.makeMessage()
	in := &InFlightSubscribe{PacketID: id, Filters: filters, Encoded: encoded, Signal: signal, interval: e.newInterval()}
	e.session.windowSubscribe[id] = in
	e.write(encoded, false)
	in.Timer = e.armRetry(in.interval, len(encoded.Body()), func() { e.retrySubscribe(in) })
	return signal
}

func (e *Engine) retrySubscribe(in *InFlightSubscribe) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.session.windowSubscribe[in.PacketID]; !ok {
		return
	}
	e.stats.retransmits++
	e.write(in.Encoded, e.version == VersionV31)
	in.Timer = e.armRetry(in.interval, len(in.Encoded.Body()), func() { e.retrySubscribe(in) })
}

func (e *Engine) handleSubAck(msg *GenericMessage) {
	ack, err := decodeSubAck(msg)
	if err != nil {
		e.abortLocked(err)
		return
	}
	in, ok := e.session.windowSubscribe[ack.PacketID]
	if !ok {
		return
	}
	e.clock.Cancel(in.Timer)
	delete(e.session.windowSubscribe, ack.PacketID)
	e.session.ids.release(ack.PacketID)
	in.Signal.Resolve(ack.Results)
}

// Unsubscribe submits an outgoing UNSUBSCRIBE (§4.4.4).
func (e *Engine) Unsubscribe(topics []string) *Signal[int] {
	e.mu.Lock()
	defer e.mu.Unlock()

	signal := NewSignal[int]()
	if e.state != stateConnected {
		signal.Fail(&ProtocolStateError{Operation: "unsubscribe", State: e.state})
		return signal
	}
	if len(e.session.windowUnsubscribe) >= e.windowSize {
		signal.Fail(&WindowExceededError{Window: "unsubscribe", Size: e.windowSize})
		return signal
	}
	id, err := e.session.nextID()
	if err != nil {
		signal.Fail(err)
		return signal
	}
	req, err := NewUnsubscribeRequest(id, topics)
	if err != nil {
		e.session.ids.release(id)
		signal.Fail(err)
		return signal
	}
	encoded := req.makeMessage()
	in := &InFlightUnsubscribe{PacketID: id, Topics: topics, Encoded: encoded, Signal: signal, interval: e.newInterval()}
	e.session.windowUnsubscribe[id] = in
	e.write(encoded, false)
	in.Timer = e.armRetry(in.interval, len(encoded.Body()), func() { e.retryUnsubscribe(in) })
	return signal
}

func (e *Engine) retryUnsubscribe(in *InFlightUnsubscribe) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.session.windowUnsubscribe[in.PacketID]; !ok {
		return
	}
	e.stats.retransmits++
	e.write(in.Encoded, e.version == VersionV31)
	in.Timer = e.armRetry(in.interval, len(in.Encoded.Body()), func() { e.retryUnsubscribe(in) })
}

func (e *Engine) handleUnsubAck(msg *GenericMessage) {
	id, err := decodeUnsubAck(msg)
	if err != nil {
		e.abortLocked(err)
		return
	}
	in, ok := e.session.windowUnsubscribe[id]
	if !ok {
		return
	}
	e.clock.Cancel(in.Timer)
	delete(e.session.windowUnsubscribe, id)
	e.session.ids.release(id)
	in.Signal.Resolve(id)
}

// Disconnect sends DISCONNECT and tears down cleanly, per §4.3 CONNECTED -> IDLE.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateConnected {
		return
	}
	e.write(NewDisconnect(), false)
	e.teardown(nil)
	if e.transport != nil {
		_ = e.transport.Close()
	}
}

// abortLocked aborts the transport and tears the connection down; must be called with mu held.
func (e *Engine) abortLocked(reason error) {
	if e.transport != nil {
		_ = e.transport.Abort()
	}
	e.teardown(reason)
}

// OnTransportLost notifies the engine that the transport collaborator reported the
// connection lost (§4.4.6). Safe to call even if the engine already tore itself down.
func (e *Engine) OnTransportLost(reason error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == stateIdle {
		return
	}
	e.teardown(reason)
}

// teardown implements §4.4.6: stop keepalive/ping timers; if cleanStart, fail and clear every
// table; otherwise leave the tables intact for the next resync. Must be called with mu held.
func (e *Engine) teardown(reason error) {
	if e.keepaliveTimer != 0 {
		e.clock.Cancel(e.keepaliveTimer)
		e.keepaliveTimer = 0
	}
	if e.pingAckTimer != 0 {
		e.clock.Cancel(e.pingAckTimer)
		e.pingAckTimer = 0
	}
	if e.connAckTimer != 0 {
		e.clock.Cancel(e.connAckTimer)
		e.connAckTimer = 0
	}
	if sig := e.connAckSignal; sig != nil {
		e.connAckSignal = nil
		if reason == nil {
			reason = &TransportClosedError{}
		}
		sig.Fail(reason)
	}

	if e.cleanStart {
		lossReason := reason
		if lossReason == nil {
			lossReason = &TransportClosedError{}
		}
		e.session.purge(e.clock, lossReason)
	} else {
		e.session.cancelAllTimers(e.clock)
	}

	wasConnected := e.state == stateConnected
	e.state = stateIdle
	e.transport = nil

	if wasConnected {
		logrus.WithField("conn_id", e.connID).WithError(reason).Debug("mqtt: connection torn down")
	}

	pending := len(e.session.windowPublish) + len(e.session.windowPubRelease) +
		len(e.session.windowSubscribe) + len(e.session.windowUnsubscribe) + e.session.queuePublishTx.Len()
	cb := e.onDisconnection
	if cb != nil && wasConnected && (e.cleanStart || pending == 0) {
		go cb(reason)
	}
}
