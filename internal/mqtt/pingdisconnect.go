package mqtt

// NewPingReq builds a PINGREQ message: no variable header, no payload.
func NewPingReq() *GenericMessage {
	return &GenericMessage{fixedHeader: PingReqType << 4}
}

// NewPingResp builds a PINGRESP message: no variable header, no payload.
func NewPingResp() *GenericMessage {
	return &GenericMessage{fixedHeader: PingRespType << 4}
}

// NewDisconnect builds a DISCONNECT message: no variable header, no payload.
func NewDisconnect() *GenericMessage {
	return &GenericMessage{fixedHeader: DisconnectType << 4}
}

// isPingResp reports whether msg is a PINGRESP packet.
func isPingResp(msg *GenericMessage) bool {
	return msg.Type() == PingRespType
}

// isDisconnect reports whether msg is a DISCONNECT packet.
func isDisconnect(msg *GenericMessage) bool {
	return msg.Type() == DisconnectType
}
