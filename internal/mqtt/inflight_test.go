package mqtt

import (
	"testing"

	"github.com/kallstrom/embermqtt/internal/testutils"
)

func TestPacketIDAllocatorSkipsZeroAndAvoidsReuse(t *testing.T) {
	a := newPacketIDAllocator()
	first, err := a.next()
	testutils.CheckNotError(t, err)
	testutils.CheckTrue(t, first != 0)

	second, err := a.next()
	testutils.CheckNotError(t, err)
	testutils.CheckTrue(t, second != first)
}

func TestPacketIDAllocatorReleaseAllowsReuse(t *testing.T) {
	a := newPacketIDAllocator()
	for i := 0; i < MaxPacketID; i++ {
		if _, err := a.next(); err != nil {
			t.Fatalf("unexpected exhaustion at iteration %d: %v", i, err)
		}
	}
	if _, err := a.next(); err == nil {
		t.Fatal("expected the allocator to report exhaustion once every id is claimed")
	}

	a.release(1)
	id, err := a.next()
	testutils.CheckNotError(t, err)
	testutils.CheckEqual(t, id, 1)
}

func TestPacketIDAllocatorClaim(t *testing.T) {
	a := newPacketIDAllocator()
	a.claim(5)
	testutils.CheckTrue(t, a.isSet(5))
}
