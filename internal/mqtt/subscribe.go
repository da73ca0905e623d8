package mqtt

import (
	"bytes"
	"fmt"
)

// TopicFilter pairs a subscription topic filter with the QoS requested for it.
type TopicFilter struct {
	Topic string
	QoS   int
}

// SubscribeRequest describes an outgoing SUBSCRIBE packet.
type SubscribeRequest struct {
	PacketID int
	Filters  []TopicFilter
}

// NewSubscribeRequest validates filters (§4.4.4: each QoS in {0,1,2}, at least one filter)
// and builds a SubscribeRequest with the given packet id.
func NewSubscribeRequest(packetID int, filters []TopicFilter) (*SubscribeRequest, error) {
	if len(filters) == 0 {
		return nil, &ValueError{Field: "filters", Detail: "must contain at least one topic"}
	}
	for _, f := range filters {
		if f.QoS < 0 || f.QoS > 2 {
			return nil, &ValueError{Field: "QoS", Detail: fmt.Sprintf("must be 0, 1, or 2 for topic %q", f.Topic)}
		}
	}
	return &SubscribeRequest{PacketID: packetID, Filters: filters}, nil
}

func (r *SubscribeRequest) makeMessage() *GenericMessage {
	var data bytes.Buffer
	Encode16BitIntTo(r.PacketID, &data)
	for _, f := range r.Filters {
		EncodeStringTo(f.Topic, &data)
		data.WriteByte(byte(f.QoS))
	}
	return &GenericMessage{fixedHeader: SubscribeType<<4 | SubscribeReserved, body: data.Bytes()}
}

// GrantedSubscription is one entry of a decoded SUBACK: the QoS the broker actually granted,
// or Failed=true if it refused the subscription (bit 7 of the return code).
type GrantedSubscription struct {
	GrantedQoS int
	Failed     bool
}

// SubAck describes a decoded SUBACK packet.
type SubAck struct {
	PacketID int
	Results  []GrantedSubscription
}

func decodeSubAck(msg *GenericMessage) (*SubAck, error) {
	if msg.Type() != SubAckType {
		return nil, &DecodeError{Reason: "not a SUBACK packet"}
	}
	packetID, rest, err := Decode16BitInt(msg.body)
	if err != nil {
		return nil, err
	}
	results := make([]GrantedSubscription, 0, len(rest))
	for _, code := range rest {
		results = append(results, GrantedSubscription{
			GrantedQoS: int(code & 0x03),
			Failed:     code&SubAckFailureBit != 0,
		})
	}
	return &SubAck{PacketID: packetID, Results: results}, nil
}

// UnsubscribeRequest describes an outgoing UNSUBSCRIBE packet.
type UnsubscribeRequest struct {
	PacketID int
	Topics   []string
}

// NewUnsubscribeRequest validates that at least one topic is given.
func NewUnsubscribeRequest(packetID int, topics []string) (*UnsubscribeRequest, error) {
	if len(topics) == 0 {
		return nil, &ValueError{Field: "topics", Detail: "must contain at least one topic"}
	}
	return &UnsubscribeRequest{PacketID: packetID, Topics: topics}, nil
}

func (r *UnsubscribeRequest) makeMessage() *GenericMessage {
	var data bytes.Buffer
	Encode16BitIntTo(r.PacketID, &data)
	for _, topic := range r.Topics {
		EncodeStringTo(topic, &data)
	}
	return &GenericMessage{fixedHeader: UnsubscribeType<<4 | UnsubscribeReserved, body: data.Bytes()}
}

// decodeUnsubAck decodes an UNSUBACK packet, returning only its packet id (§6).
func decodeUnsubAck(msg *GenericMessage) (int, error) {
	if msg.Type() != UnsubAckType {
		return 0, &DecodeError{Reason: "not an UNSUBACK packet"}
	}
	packetID, _, err := Decode16BitInt(msg.body)
	return packetID, err
}
