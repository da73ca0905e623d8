package mqtt

import "sync/atomic"

// Stats is a passive, lock-free snapshot of per-flow packet counts the engine updates on
// every write/dispatch. It is read-only from the host's perspective, exposed off Client for
// metrics/logging, and never consulted by the protocol logic itself.
type Stats struct {
	publishSent     uint64
	publishReceived uint64
	pubAckSent      uint64
	pubAckReceived  uint64
	pubRecSent      uint64
	pubRecReceived  uint64
	pubRelSent      uint64
	pubRelReceived  uint64
	pubCompSent     uint64
	pubCompReceived uint64
	pingSent        uint64
	pingReceived    uint64
	retransmits     uint64
}

// StatsSnapshot is a point-in-time copy of a Stats counter set.
type StatsSnapshot struct {
	PublishSent     uint64
	PublishReceived uint64
	PubAckSent      uint64
	PubAckReceived  uint64
	PubRecSent      uint64
	PubRecReceived  uint64
	PubRelSent      uint64
	PubRelReceived  uint64
	PubCompSent     uint64
	PubCompReceived uint64
	PingSent        uint64
	PingReceived    uint64
	Retransmits     uint64
}

// Snapshot copies the current counters without locking.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		PublishSent:     atomic.LoadUint64(&s.publishSent),
		PublishReceived: atomic.LoadUint64(&s.publishReceived),
		PubAckSent:      atomic.LoadUint64(&s.pubAckSent),
		PubAckReceived:  atomic.LoadUint64(&s.pubAckReceived),
		PubRecSent:      atomic.LoadUint64(&s.pubRecSent),
		PubRecReceived:  atomic.LoadUint64(&s.pubRecReceived),
		PubRelSent:      atomic.LoadUint64(&s.pubRelSent),
		PubRelReceived:  atomic.LoadUint64(&s.pubRelReceived),
		PubCompSent:     atomic.LoadUint64(&s.pubCompSent),
		PubCompReceived: atomic.LoadUint64(&s.pubCompReceived),
		PingSent:        atomic.LoadUint64(&s.pingSent),
		PingReceived:    atomic.LoadUint64(&s.pingReceived),
		Retransmits:     atomic.LoadUint64(&s.retransmits),
	}
}
