package mqtt

import (
	"bytes"
	"fmt"
)

// ConnectRequest describes a MQTT CONNECT packet.
type ConnectRequest struct {
	options ConnectOptions
}

func (r *ConnectRequest) connectBits() byte {
	connectBits := byte(0)

	if r.options.CleanStart {
		connectBits |= CleanSessionFlag
	}
	if r.options.WillTopic != "" {
		connectBits |= WillFlag
		switch r.options.WillQoS {
		case 1:
			connectBits |= WillQoSOne
		case 2:
			connectBits |= WillQoSTwo
		}
		if r.options.WillRetain {
			connectBits |= WillRetainFlag
		}
	}
	if r.options.UserName != "" {
		connectBits |= UserNameFlag
	}
	if r.options.Password != nil {
		connectBits |= PasswordFlag
	}
	return connectBits
}

// makeMessage encodes the CONNECT request into a GenericMessage ready to write.
func (r *ConnectRequest) makeMessage() *GenericMessage {
	var data bytes.Buffer
	connectBits := r.connectBits()
	keepAlive := r.options.KeepAliveSeconds

	EncodeStringTo(r.options.Version.protocolName(), &data)
	data.WriteByte(byte(r.options.Version))
	data.WriteByte(connectBits)
	Encode16BitIntTo(keepAlive, &data)

	EncodeStringTo(r.options.ClientName, &data)

	if connectBits&WillFlag != 0 {
		EncodeStringTo(r.options.WillTopic, &data)
		EncodeBytesTo(r.options.WillMessage, &data)
	}
	if connectBits&UserNameFlag != 0 {
		EncodeStringTo(r.options.UserName, &data)
	}
	if connectBits&PasswordFlag != 0 {
		EncodeBytesTo(*r.options.Password, &data)
	}

	return &GenericMessage{fixedHeader: ConnectType<<4 | Reserved, body: data.Bytes()}
}

// NewConnectRequest constructs a new ConnectRequest based on a default set of options
// overridden by the given options, validating them per §4.4.1.
//
// For example:
//
//	request, err := NewConnectRequest(ClientName("abc"), WillTopic("lwt"), WillMessage([]byte("bye")))
func NewConnectRequest(options ...ConnectOption) (*ConnectRequest, error) {
	opts := DefaultConnectOptions()
	for _, fOpt := range options {
		if err := fOpt(&opts); err != nil {
			return nil, err
		}
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &ConnectRequest{options: opts}, nil
}

func (o *ConnectOptions) validate() error {
	if o.KeepAliveSeconds < 0 || o.KeepAliveSeconds > 0xFFFF {
		return &ValueError{Field: "KeepAliveSeconds", Detail: "must be in [0, 65535]"}
	}
	if o.Version == VersionV31 && len(o.ClientName) > 23 {
		return &ValueError{Field: "ClientName", Detail: "must be <= 23 octets for MQTT 3.1"}
	}
	if o.WillTopic == "" && o.WillMessage != nil {
		return &ValueError{Field: "WillMessage", Detail: "requires WillTopic to be set"}
	}
	if o.WillTopic != "" && o.WillMessage == nil {
		return &ValueError{Field: "WillTopic", Detail: "requires WillMessage to be set"}
	}
	if o.Password != nil && o.UserName == "" {
		return &ValueError{Field: "Password", Detail: "requires UserName to be set"}
	}
	if o.WillQoS < 0 || o.WillQoS > 2 {
		return &ValueError{Field: "WillQoS", Detail: "must be 0, 1, or 2"}
	}
	return nil
}

// DefaultConnectOptions returns the default options for making a MQTT connect using 3.1.1,
// a clean start, and a 10 second keepalive.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{Version: VersionV311, CleanStart: true, KeepAliveSeconds: 10}
}

// ConnectOptions contains options for a ConnectRequest.
type ConnectOptions struct {
	Version          ProtocolVersion
	CleanStart       bool
	KeepAliveSeconds int
	ClientName       string
	WillTopic        string
	WillMessage      []byte
	WillQoS          int
	WillRetain       bool
	UserName         string
	Password         *[]byte
}

// ConnectOption is an options-modifying function.
type ConnectOption func(*ConnectOptions) error

// ProtocolVersionOption sets the wire protocol version.
func ProtocolVersionOption(v ProtocolVersion) ConnectOption {
	return func(o *ConnectOptions) error {
		if v != VersionV31 && v != VersionV311 {
			return &ValueError{Field: "Version", Detail: fmt.Sprintf("unsupported protocol version %d", v)}
		}
		o.Version = v
		return nil
	}
}

// CleanStart returns a ConnectOption for CleanStart.
func CleanStart(flag bool) ConnectOption {
	return func(o *ConnectOptions) error {
		o.CleanStart = flag
		return nil
	}
}

// KeepAliveSeconds returns a ConnectOption for KeepAliveSeconds.
func KeepAliveSeconds(value int) ConnectOption {
	return func(o *ConnectOptions) error {
		o.KeepAliveSeconds = value
		return nil
	}
}

// ClientName returns a ConnectOption for ClientName.
func ClientName(value string) ConnectOption {
	return func(o *ConnectOptions) error {
		o.ClientName = value
		return nil
	}
}

// WillTopic returns a ConnectOption for WillTopic.
func WillTopic(value string) ConnectOption {
	return func(o *ConnectOptions) error {
		o.WillTopic = value
		return nil
	}
}

// WillMessage returns a ConnectOption for WillMessage.
func WillMessage(value []byte) ConnectOption {
	return func(o *ConnectOptions) error {
		o.WillMessage = value
		return nil
	}
}

// WillRetain returns a ConnectOption for WillRetain.
func WillRetain(value bool) ConnectOption {
	return func(o *ConnectOptions) error {
		o.WillRetain = value
		return nil
	}
}

// WillQoS returns a ConnectOption for WillQoS.
func WillQoS(value int) ConnectOption {
	return func(o *ConnectOptions) error {
		o.WillQoS = value
		return nil
	}
}

// UserName returns a ConnectOption for UserName.
func UserName(value string) ConnectOption {
	return func(o *ConnectOptions) error {
		o.UserName = value
		return nil
	}
}

// Password returns a ConnectOption for Password.
func Password(value []byte) ConnectOption {
	return func(o *ConnectOptions) error {
		o.Password = &value
		return nil
	}
}

// ConnAck describes a decoded CONNACK packet.
type ConnAck struct {
	SessionPresent bool
	ResultCode     byte
}

// decodeConnAck decodes the body of a CONNACK GenericMessage.
func decodeConnAck(msg *GenericMessage) (*ConnAck, error) {
	if msg.Type() != ConnAckType {
		return nil, &DecodeError{Reason: "not a CONNACK packet"}
	}
	if len(msg.body) != 2 {
		return nil, &DecodeError{Reason: fmt.Sprintf("CONNACK expects 2 byte body, got %d", len(msg.body))}
	}
	return &ConnAck{
		SessionPresent: msg.body[0]&SessionPresentFlag != 0,
		ResultCode:     msg.body[1],
	}, nil
}
