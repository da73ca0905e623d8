package mqtt

import (
	"testing"
	"time"

	"github.com/kallstrom/embermqtt/internal/testutils"
)

func TestSessionStorePublishQueueFIFO(t *testing.T) {
	s := newPerAddressSessionState()
	s.enqueuePublish(&pendingPublish{topic: "a"})
	s.enqueuePublish(&pendingPublish{topic: "b"})

	first := s.dequeuePublish()
	testutils.CheckEqual(t, first.topic, "a")
	second := s.dequeuePublish()
	testutils.CheckEqual(t, second.topic, "b")
	testutils.CheckTrue(t, s.dequeuePublish() == nil)
}

func TestSessionStorePurgeFailsAllPendingSignals(t *testing.T) {
	s := newPerAddressSessionState()
	clock := NewFakeClock(time.Unix(0, 0))

	pubSignal := NewSignal[int]()
	id, _ := s.nextID()
	s.windowPublish[id] = &InFlightPublishOut{PacketID: id, Signal: pubSignal, Timer: clock.Schedule(time.Hour, func() {})}

	subSignal := NewSignal[[]GrantedSubscription]()
	subID, _ := s.nextID()
	s.windowSubscribe[subID] = &InFlightSubscribe{PacketID: subID, Signal: subSignal, Timer: clock.Schedule(time.Hour, func() {})}

	queued := NewSignal[int]()
	s.enqueuePublish(&pendingPublish{topic: "queued", signal: queued})

	s.purge(clock, &SessionClearedError{})

	_, err := pubSignal.Wait()
	if _, ok := err.(*SessionClearedError); !ok {
		t.Fatalf("expected SessionClearedError, got %v", err)
	}
	_, err = subSignal.Wait()
	if _, ok := err.(*SessionClearedError); !ok {
		t.Fatalf("expected SessionClearedError, got %v", err)
	}
	_, err = queued.Wait()
	if _, ok := err.(*SessionClearedError); !ok {
		t.Fatalf("expected SessionClearedError, got %v", err)
	}
	testutils.CheckEqual(t, len(s.windowPublish), 0)
	testutils.CheckEqual(t, len(s.windowSubscribe), 0)
}

func TestSessionStoreCancelAllTimersLeavesTablesIntact(t *testing.T) {
	s := newPerAddressSessionState()
	clock := NewFakeClock(time.Unix(0, 0))
	id, _ := s.nextID()
	s.windowPublish[id] = &InFlightPublishOut{PacketID: id, Signal: NewSignal[int](), Timer: clock.Schedule(time.Hour, func() {})}

	s.cancelAllTimers(clock)

	testutils.CheckEqual(t, len(s.windowPublish), 1)
	if _, _, resolved := s.windowPublish[id].Signal.TryResult(); resolved {
		t.Fatal("expected the completion signal to remain unresolved after a non-clean-start transport loss")
	}
}
