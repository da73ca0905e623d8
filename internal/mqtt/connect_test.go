package mqtt

import (
	"bytes"
	"testing"

	"github.com/kallstrom/embermqtt/internal/testutils"
)

func TestConnectRequestWireFormat(t *testing.T) {
	req, err := NewConnectRequest(ClientName("t"), CleanStart(true), KeepAliveSeconds(60))
	testutils.CheckNotError(t, err)

	var buf bytes.Buffer
	_, err = req.makeMessage().WriteTo(&buf)
	testutils.CheckNotError(t, err)

	got := buf.Bytes()
	testutils.CheckEqual(t, got[0], byte(ConnectType<<4))
	// remaining length byte, then "MQTT" proto name, level 4, connect flags (clean start bit), keepalive, clientId "t"
	want := []byte{
		ConnectType << 4, 13,
		0x00, 0x04, 'M', 'Q', 'T', 'T',
		0x04,
		CleanSessionFlag,
		0x00, 0x3C,
		0x00, 0x01, 't',
	}
	testutils.CheckEqual(t, got, want)
}

func TestConnectRequestValidation(t *testing.T) {
	_, err := NewConnectRequest(KeepAliveSeconds(-1))
	if err == nil {
		t.Fatal("expected a value error for negative keepalive")
	}
	_, err = NewConnectRequest(WillMessage([]byte("bye")))
	if err == nil {
		t.Fatal("expected a value error for a will message without a will topic")
	}
	_, err = NewConnectRequest(Password([]byte("secret")))
	if err == nil {
		t.Fatal("expected a value error for a password without a username")
	}
}

func TestConnectRequestV31ClientIDLimit(t *testing.T) {
	longID := make([]byte, 24)
	for i := range longID {
		longID[i] = 'a'
	}
	_, err := NewConnectRequest(ProtocolVersionOption(VersionV31), ClientName(string(longID)))
	if err == nil {
		t.Fatal("expected a value error for a clientId over 23 octets under v3.1")
	}
}

func TestDecodeConnAck(t *testing.T) {
	msg := &GenericMessage{fixedHeader: ConnAckType << 4, body: []byte{SessionPresentFlag, ConnectionAccepted}}
	ack, err := decodeConnAck(msg)
	testutils.CheckNotError(t, err)
	testutils.CheckTrue(t, ack.SessionPresent)
	testutils.CheckEqual(t, ack.ResultCode, byte(ConnectionAccepted))
}
