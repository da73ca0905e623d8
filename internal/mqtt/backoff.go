package mqtt

import (
	"math/rand"
	"time"
)

// Interval produces a payload-weighted, exponentially growing retransmit delay, with a
// small random jitter, on every call. Ported from the original twisted-mqtt client's
// IntervalLinear helper (mqtt/client/interval.py): interval = initial + k*size/bandwidth,
// k multiplying by factor on every call.
//
// A single Interval is shared by all the retries of one in-flight packet (PUBLISH, PUBREL,
// SUBSCRIBE, or UNSUBSCRIBE) so that its backoff grows across retransmissions of that one
// packet, and is discarded once the packet's flow completes.
type Interval struct {
	initial   time.Duration
	factor    float64
	bandwidth float64 // bytes/sec
	k         float64
}

// NewInterval creates an Interval with the given initial delay, backoff factor, and
// estimated bandwidth (bytes/sec) used to weight the delay by payload size.
func NewInterval(initial time.Duration, factor float64, bandwidth float64) *Interval {
	if bandwidth <= 0 {
		bandwidth = 1
	}
	if factor <= 0 {
		factor = 2
	}
	return &Interval{initial: initial, factor: factor, bandwidth: bandwidth, k: 1}
}

// Next returns the next retry delay for a packet of the given size in bytes, and grows the
// internal backoff multiplier for the following call.
func (iv *Interval) Next(size int) time.Duration {
	weighted := float64(iv.initial) + iv.k*float64(size)/iv.bandwidth*float64(time.Second)
	iv.k *= iv.factor
	jitter := time.Duration(rand.Int63n(int64(time.Second)))
	return time.Duration(weighted) + jitter
}
