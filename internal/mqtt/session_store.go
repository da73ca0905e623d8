package mqtt

import "container/list"

// InFlightPublishOut is a publisher-originated PUBLISH awaiting PUBACK (QoS 1) or PUBREC
// (QoS 2).
type InFlightPublishOut struct {
	PacketID int
	Topic    string
	Payload  []byte
	QoS      int
	Retain   bool
	Encoded  *GenericMessage
	Timer    TimerHandle
	Signal   *Signal[int]
	Retries  int
	interval *Interval
}

// InFlightRelease is a PUBREL awaiting PUBCOMP, carrying forward the completion signal of
// the PUBLISH it replaced (QoS 2, publisher side).
type InFlightRelease struct {
	PacketID int
	Encoded  *GenericMessage
	Timer    TimerHandle
	Signal   *Signal[int]
	interval *Interval
}

// InFlightPublishIn is a subscriber-received QoS-2 PUBLISH held between the outgoing PUBREC
// and the inbound PUBREL, so delivery happens exactly once.
type InFlightPublishIn struct {
	PacketID int
	Message  *IncomingPublish
}

// InFlightSubscribe is a SUBSCRIBE awaiting SUBACK.
type InFlightSubscribe struct {
	PacketID int
	Filters  []TopicFilter
	Encoded  *GenericMessage
	Timer    TimerHandle
	Signal   *Signal[[]GrantedSubscription]
	interval *Interval
}

// InFlightUnsubscribe is an UNSUBSCRIBE awaiting UNSUBACK.
type InFlightUnsubscribe struct {
	PacketID int
	Topics   []string
	Encoded  *GenericMessage
	Timer    TimerHandle
	Signal   *Signal[int]
	interval *Interval
}

// pendingPublish is one queued entry waiting on window admission.
type pendingPublish struct {
	topic   string
	payload []byte
	qos     int
	retain  bool
	signal  *Signal[int]
}

// PerAddressSessionState holds the six tables that must survive a transport drop when the
// session is not started clean: five maps keyed by packet-id (one of them the PUBREL table)
// and one FIFO admission queue, plus the packet-id allocator itself. Owned by the Factory,
// outliving any one protocol instance
// (§3's PerAddressSessionState).
type PerAddressSessionState struct {
	ids *packetIDAllocator

	windowPublish     map[int]*InFlightPublishOut
	windowPubRelease  map[int]*InFlightRelease
	windowPubRx       map[int]*InFlightPublishIn
	windowSubscribe   map[int]*InFlightSubscribe
	windowUnsubscribe map[int]*InFlightUnsubscribe
	queuePublishTx    *list.List // of *pendingPublish
}

// newPerAddressSessionState builds an empty session state table set for one broker endpoint.
func newPerAddressSessionState() *PerAddressSessionState {
	return &PerAddressSessionState{
		ids:               newPacketIDAllocator(),
		windowPublish:     make(map[int]*InFlightPublishOut),
		windowPubRelease:  make(map[int]*InFlightRelease),
		windowPubRx:       make(map[int]*InFlightPublishIn),
		windowSubscribe:   make(map[int]*InFlightSubscribe),
		windowUnsubscribe: make(map[int]*InFlightUnsubscribe),
		queuePublishTx:    list.New(),
	}
}

func (s *PerAddressSessionState) nextID() (int, error) {
	return s.ids.next()
}

func (s *PerAddressSessionState) enqueuePublish(p *pendingPublish) {
	s.queuePublishTx.PushBack(p)
}

func (s *PerAddressSessionState) dequeuePublish() *pendingPublish {
	front := s.queuePublishTx.Front()
	if front == nil {
		return nil
	}
	s.queuePublishTx.Remove(front)
	return front.Value.(*pendingPublish)
}

// purge empties every table, releasing their packet ids, and fails every pending completion
// signal with err (§4.2, invariant 4: a clean-start CONNACK purges with SessionClearedError;
// a clean-start transport loss, per §4.4.6, purges with the loss reason instead).
func (s *PerAddressSessionState) purge(clock Clock, err error) {
	for id, in := range s.windowPublish {
		clock.Cancel(in.Timer)
		in.Signal.Fail(err)
		s.ids.release(id)
	}
	for id, in := range s.windowPubRelease {
		clock.Cancel(in.Timer)
		in.Signal.Fail(err)
		s.ids.release(id)
	}
	for id, in := range s.windowSubscribe {
		clock.Cancel(in.Timer)
		in.Signal.Fail(err)
		s.ids.release(id)
	}
	for id, in := range s.windowUnsubscribe {
		clock.Cancel(in.Timer)
		in.Signal.Fail(err)
		s.ids.release(id)
	}
	for id := range s.windowPubRx {
		delete(s.windowPubRx, id)
	}
	for e := s.queuePublishTx.Front(); e != nil; e = e.Next() {
		e.Value.(*pendingPublish).signal.Fail(err)
	}

	s.windowPublish = make(map[int]*InFlightPublishOut)
	s.windowPubRelease = make(map[int]*InFlightRelease)
	s.windowPubRx = make(map[int]*InFlightPublishIn)
	s.windowSubscribe = make(map[int]*InFlightSubscribe)
	s.windowUnsubscribe = make(map[int]*InFlightUnsubscribe)
	s.queuePublishTx = list.New()
}

// cancelAllTimers stops every armed retransmit timer without touching the tables themselves,
// used on a non-clean transport-loss where the tables must survive for the next resync.
func (s *PerAddressSessionState) cancelAllTimers(clock Clock) {
	for _, in := range s.windowPublish {
		clock.Cancel(in.Timer)
	}
	for _, in := range s.windowPubRelease {
		clock.Cancel(in.Timer)
	}
	for _, in := range s.windowSubscribe {
		clock.Cancel(in.Timer)
	}
	for _, in := range s.windowUnsubscribe {
		clock.Cancel(in.Timer)
	}
}

