package mqtt

import (
	"testing"

	"github.com/kallstrom/embermqtt/internal/testutils"
)

func TestMockConnectionWriteAndTakeWritten(t *testing.T) {
	conn := NewMockConnection()
	n, err := conn.Write([]byte("abc"))
	testutils.CheckNotError(t, err)
	testutils.CheckEqual(t, n, 3)
	testutils.CheckEqual(t, conn.TakeWritten(), []byte("abc"))
	testutils.CheckEqual(t, len(conn.Written()), 0)
}

func TestMockConnectionRemoteWriteInvokesCallback(t *testing.T) {
	conn := NewMockConnection()
	var received []byte
	conn.SetOnInbound(func(b []byte) { received = append(received, b...) })
	conn.RemoteWrite([]byte("xyz"))
	testutils.CheckEqual(t, received, []byte("xyz"))
}

func TestMockConnectionRejectsWritesAfterClose(t *testing.T) {
	conn := NewMockConnection()
	testutils.CheckNotError(t, conn.Close())
	_, err := conn.Write([]byte("abc"))
	if err == nil {
		t.Fatal("expected a write after Close to fail")
	}
	testutils.CheckTrue(t, conn.Closed())
}
