package mqtt

import (
	"testing"
	"time"

	"github.com/kallstrom/embermqtt/internal/testutils"
)

func TestFakeClockFiresInOrder(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	var order []int

	clock.Schedule(2*time.Second, func() { order = append(order, 2) })
	clock.Schedule(1*time.Second, func() { order = append(order, 1) })
	clock.Schedule(3*time.Second, func() { order = append(order, 3) })

	clock.Advance(3 * time.Second)
	testutils.CheckEqual(t, order, []int{1, 2, 3})
}

func TestFakeClockCancelPreventsFiring(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	fired := false
	handle := clock.Schedule(time.Second, func() { fired = true })
	clock.Cancel(handle)
	clock.Advance(2 * time.Second)
	testutils.CheckTrue(t, !fired)
}

func TestFakeClockChainedTimersFireWithinSameAdvance(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	count := 0
	var reschedule func()
	reschedule = func() {
		count++
		if count < 3 {
			clock.Schedule(time.Second, reschedule)
		}
	}
	clock.Schedule(time.Second, reschedule)
	clock.Advance(3 * time.Second)
	testutils.CheckEqual(t, count, 3)
}
