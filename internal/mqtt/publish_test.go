package mqtt

import (
	"bytes"
	"testing"

	"github.com/kallstrom/embermqtt/internal/testutils"
)

func TestPublishRequestQoS1WireFormat(t *testing.T) {
	req, err := NewPublishRequest(PublishTopic("t"), PublishMessage([]byte("m")), PublishQoS(1), PublishPacketID(1))
	testutils.CheckNotError(t, err)

	var buf bytes.Buffer
	_, err = req.makeMessage().WriteTo(&buf)
	testutils.CheckNotError(t, err)

	want := []byte{PublishType<<4 | QoSOne, 6, 0x00, 0x01, 't', 0x00, 0x01, 'm'}
	testutils.CheckEqual(t, buf.Bytes(), want)
}

func TestPublishRequestQoS0HasNoPacketID(t *testing.T) {
	req, err := NewPublishRequest(PublishTopic("t"), PublishMessage([]byte("m")))
	testutils.CheckNotError(t, err)

	var buf bytes.Buffer
	_, err = req.makeMessage().WriteTo(&buf)
	testutils.CheckNotError(t, err)

	want := []byte{PublishType << 4, 4, 0x00, 0x01, 't', 'm'}
	testutils.CheckEqual(t, buf.Bytes(), want)
}

func TestPublishRequestRejectsBadQoS(t *testing.T) {
	_, err := NewPublishRequest(PublishQoS(3))
	if err == nil {
		t.Fatal("expected a value error for QoS 3")
	}
}

func TestDecodePublishRoundTrip(t *testing.T) {
	req, err := NewPublishRequest(PublishTopic("a/b"), PublishMessage([]byte("payload")), PublishQoS(2), PublishPacketID(42), PublishRetain(true))
	testutils.CheckNotError(t, err)
	msg := req.makeMessage()

	decoded, err := decodePublish(msg)
	testutils.CheckNotError(t, err)
	testutils.CheckEqual(t, decoded.Topic, "a/b")
	testutils.CheckEqual(t, decoded.Payload, []byte("payload"))
	testutils.CheckEqual(t, decoded.QoS, 2)
	testutils.CheckEqual(t, decoded.PacketID, 42)
	testutils.CheckTrue(t, decoded.Retain)
	testutils.CheckTrue(t, !decoded.Dup)
}

func TestDecodePublishRejectsQoS3(t *testing.T) {
	msg := &GenericMessage{fixedHeader: byte(PublishType<<4 | 0x06), body: []byte{0x00, 0x01, 't', 'm'}}
	_, err := decodePublish(msg)
	if err == nil {
		t.Fatal("expected a decode error for QoS value 3")
	}
}
