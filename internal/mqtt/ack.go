package mqtt

import (
	"bytes"
	"fmt"
)

// makePubAckLike builds a PUBACK/PUBREC/PUBCOMP message: all three share the same
// (type-in-top-nibble, 0 flags, 2 byte packet-id body) shape.
func makePubAckLike(msgType byte, packetID int) *GenericMessage {
	var data bytes.Buffer
	Encode16BitIntTo(packetID, &data)
	return &GenericMessage{fixedHeader: msgType << 4, body: data.Bytes()}
}

// NewPubAck builds a PUBACK(packetID) message.
func NewPubAck(packetID int) *GenericMessage {
	return makePubAckLike(PublishAckType, packetID)
}

// NewPubRec builds a PUBREC(packetID) message.
func NewPubRec(packetID int) *GenericMessage {
	return makePubAckLike(PublishReceivedType, packetID)
}

// NewPubComp builds a PUBCOMP(packetID) message.
func NewPubComp(packetID int) *GenericMessage {
	return makePubAckLike(PublishCompleteType, packetID)
}

// NewPubRel builds a PUBREL(packetID) message. PUBREL carries a fixed reserved flags
// nibble (0010) rather than the all-zero nibble the other acks use.
func NewPubRel(packetID int) *GenericMessage {
	var data bytes.Buffer
	Encode16BitIntTo(packetID, &data)
	return &GenericMessage{fixedHeader: PublishReleaseType<<4 | PublishReleaseReserved, body: data.Bytes()}
}

// decodePacketIDAck decodes the 2 byte packet-id body shared by PUBACK/PUBREC/PUBREL/PUBCOMP,
// checking that msg is of the expected type.
func decodePacketIDAck(msg *GenericMessage, expectedType int) (int, error) {
	if msg.Type() != expectedType {
		return 0, &DecodeError{Reason: fmt.Sprintf("expected control packet type %d, got %d", expectedType, msg.Type())}
	}
	if len(msg.body) != 2 {
		return 0, &DecodeError{Reason: fmt.Sprintf("expected 2 byte packet-id body, got %d bytes", len(msg.body))}
	}
	packetID, _, err := Decode16BitInt(msg.body)
	return packetID, err
}
