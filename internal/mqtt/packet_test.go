package mqtt

import (
	"bytes"
	"testing"

	"github.com/kallstrom/embermqtt/internal/testutils"
)

func TestFrameAccumulatorSingleChunk(t *testing.T) {
	var acc FrameAccumulator
	var buf bytes.Buffer
	_, err := NewPubAck(1).WriteTo(&buf)
	testutils.CheckNotError(t, err)

	acc.Feed(buf.Bytes())
	msg, ok, err := acc.Next()
	testutils.CheckNotError(t, err)
	testutils.CheckTrue(t, ok)
	testutils.CheckEqual(t, msg.Type(), PublishAckType)

	_, ok, err = acc.Next()
	testutils.CheckNotError(t, err)
	testutils.CheckTrue(t, !ok)
}

func TestFrameAccumulatorSplitAcrossFeeds(t *testing.T) {
	var acc FrameAccumulator
	var buf bytes.Buffer
	_, err := NewPubAck(99).WriteTo(&buf)
	testutils.CheckNotError(t, err)
	encoded := buf.Bytes()

	acc.Feed(encoded[:2])
	_, ok, err := acc.Next()
	testutils.CheckNotError(t, err)
	testutils.CheckTrue(t, !ok)

	acc.Feed(encoded[2:])
	msg, ok, err := acc.Next()
	testutils.CheckNotError(t, err)
	testutils.CheckTrue(t, ok)
	id, err := decodePacketIDAck(msg, PublishAckType)
	testutils.CheckNotError(t, err)
	testutils.CheckEqual(t, id, 99)
}

func TestFrameAccumulatorTwoFramesInOneChunk(t *testing.T) {
	var acc FrameAccumulator
	var buf bytes.Buffer
	_, err := NewPingReq().WriteTo(&buf)
	testutils.CheckNotError(t, err)
	_, err = NewPingResp().WriteTo(&buf)
	testutils.CheckNotError(t, err)

	acc.Feed(buf.Bytes())
	first, ok, err := acc.Next()
	testutils.CheckNotError(t, err)
	testutils.CheckTrue(t, ok)
	testutils.CheckEqual(t, first.Type(), PingReqType)

	second, ok, err := acc.Next()
	testutils.CheckNotError(t, err)
	testutils.CheckTrue(t, ok)
	testutils.CheckEqual(t, second.Type(), PingRespType)
}

func TestWriteDupToOnlyAffectsPublish(t *testing.T) {
	ack := NewPubAck(1)
	var plain, dup bytes.Buffer
	_, err := ack.WriteTo(&plain)
	testutils.CheckNotError(t, err)
	_, err = ack.WriteDupTo(&dup)
	testutils.CheckNotError(t, err)
	testutils.CheckEqual(t, dup.Bytes(), plain.Bytes())
}
