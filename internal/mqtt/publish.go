package mqtt

import (
	"bytes"
	"fmt"
)

// PublishRequest describes an outgoing MQTT PUBLISH packet.
type PublishRequest struct {
	options PublishOptions
}

// NewPublishRequest creates an instance from default publish options plus the given options.
func NewPublishRequest(options ...PublishOption) (*PublishRequest, error) {
	opts := DefaultPublishOptions()
	for _, fOpt := range options {
		if err := fOpt(&opts); err != nil {
			return nil, err
		}
	}
	if opts.QoS < 0 || opts.QoS > 2 {
		return nil, &ValueError{Field: "QoS", Detail: "must be 0, 1, or 2"}
	}
	return &PublishRequest{options: opts}, nil
}

func (r *PublishRequest) fixedHeaderBits() byte {
	result := byte(PublishType << 4)
	switch r.options.QoS {
	case 1:
		result |= QoSOne
	case 2:
		result |= QoSTwo
	}
	if r.options.Retain {
		result |= RetainBit
	}
	if r.options.IsDuplicate {
		result |= DupBit
	}
	return result
}

func (r *PublishRequest) makeMessage() *GenericMessage {
	var data bytes.Buffer

	EncodeStringTo(r.options.Topic, &data)
	if r.options.QoS > 0 {
		Encode16BitIntTo(r.options.PacketID, &data)
	}
	// Payload has no length prefix of its own - it is the remainder of the packet.
	data.Write(r.options.Message)
	return &GenericMessage{fixedHeader: r.fixedHeaderBits(), body: data.Bytes()}
}

// PublishOptions contains options for a PublishRequest.
type PublishOptions struct {
	Topic       string
	Message     []byte
	QoS         int
	Retain      bool
	IsDuplicate bool
	PacketID    int
}

// PublishOption is an options-modifying function.
type PublishOption func(*PublishOptions) error

// DefaultPublishOptions returns the default options for making a MQTT publish at QoS 0.
func DefaultPublishOptions() PublishOptions {
	return PublishOptions{QoS: 0}
}

// PublishMessage returns a PublishOption for the message payload.
func PublishMessage(msg []byte) PublishOption {
	return func(o *PublishOptions) error {
		o.Message = msg
		return nil
	}
}

// PublishTopic returns a PublishOption for the topic.
func PublishTopic(topic string) PublishOption {
	return func(o *PublishOptions) error {
		o.Topic = topic
		return nil
	}
}

// PublishQoS returns a PublishOption for the QoS.
func PublishQoS(value int) PublishOption {
	return func(o *PublishOptions) error {
		o.QoS = value
		return nil
	}
}

// PublishRetain returns a PublishOption for the retain flag.
func PublishRetain(flag bool) PublishOption {
	return func(o *PublishOptions) error {
		o.Retain = flag
		return nil
	}
}

// PublishDuplicate returns a PublishOption indicating this is a duplicate delivery.
func PublishDuplicate(flag bool) PublishOption {
	return func(o *PublishOptions) error {
		o.IsDuplicate = flag
		return nil
	}
}

// PublishPacketID returns a PublishOption for the packet id.
func PublishPacketID(id int) PublishOption {
	return func(o *PublishOptions) error {
		if id < 0 || id > MaxPacketID {
			return &ValueError{Field: "PacketID", Detail: fmt.Sprintf("must be in [0, %d]", MaxPacketID)}
		}
		o.PacketID = id
		return nil
	}
}

// IncomingPublish describes a decoded inbound PUBLISH packet.
type IncomingPublish struct {
	Topic    string
	Payload  []byte
	QoS      int
	Dup      bool
	Retain   bool
	PacketID int // 0 for QoS 0 (no packet id on the wire)
}

// decodePublish decodes the body of a PUBLISH GenericMessage.
func decodePublish(msg *GenericMessage) (*IncomingPublish, error) {
	if msg.Type() != PublishType {
		return nil, &DecodeError{Reason: "not a PUBLISH packet"}
	}
	flags := msg.Flags()
	qos := int(flags&QoSMask) >> 1
	if qos > 2 {
		return nil, &DecodeError{Reason: "PUBLISH QoS field must be 0, 1, or 2"}
	}
	topic, rest, err := DecodeString(msg.body)
	if err != nil {
		return nil, err
	}
	packetID := 0
	if qos > 0 {
		packetID, rest, err = Decode16BitInt(rest)
		if err != nil {
			return nil, err
		}
	}
	return &IncomingPublish{
		Topic:    topic,
		Payload:  append([]byte(nil), rest...),
		QoS:      qos,
		Dup:      flags&DupBit != 0,
		Retain:   flags&RetainBit != 0,
		PacketID: packetID,
	}, nil
}
