package mqtt

import (
	"testing"
	"time"

	"github.com/kallstrom/embermqtt/internal/testutils"
)

func TestNewFactoryRejectsUnknownRole(t *testing.T) {
	_, err := NewFactory(Role(99))
	if err == nil {
		t.Fatal("expected a profile error for an unrecognized role")
	}
}

func TestFactorySharesSessionStateAcrossClientsForSameAddress(t *testing.T) {
	f, err := NewFactory(RolePublisher, WithClock(NewFakeClock(time.Unix(0, 0))))
	testutils.CheckNotError(t, err)

	a := f.NewClient("broker:1883")
	b := f.NewClient("broker:1883")
	testutils.CheckTrue(t, a.engine.session == b.engine.session)

	c := f.NewClient("other:1883")
	testutils.CheckTrue(t, a.engine.session != c.engine.session)
}

func TestRandomClientIDIsNonEmptyAndVaries(t *testing.T) {
	a := RandomClientID()
	b := RandomClientID()
	testutils.CheckTrue(t, len(a) > 0)
	testutils.CheckTrue(t, a != b)
}
