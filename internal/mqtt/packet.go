package mqtt

import (
	"bytes"
	"io"
)

// MessageWriter can write a MQTT message, or a duplicate of one, to a writer.
type MessageWriter interface {
	io.WriterTo
	WriteDupTo(writer io.Writer) (int64, error)
}

// GenericMessage is a generic MQTT message: a fixed-header byte plus the remaining-length
// body (variable header + payload, already encoded).
type GenericMessage struct {
	fixedHeader byte
	body        []byte
}

// Type returns the control-packet type (top nibble of the fixed header).
func (m *GenericMessage) Type() int {
	return int(m.fixedHeader >> 4)
}

// Flags returns the flags nibble of the fixed header.
func (m *GenericMessage) Flags() byte {
	return m.fixedHeader & 0x0F
}

// Body returns the decoded remaining-length body (variable header + payload).
func (m *GenericMessage) Body() []byte {
	return m.body
}

// WriteTo implements io.WriterTo for GenericMessage.
func (m *GenericMessage) WriteTo(writer io.Writer) (int64, error) {
	var data bytes.Buffer
	data.WriteByte(m.fixedHeader)
	EncodeVariableIntTo(len(m.body), &data)
	if len(m.body) > 0 {
		data.Write(m.body)
	}
	n, err := data.WriteTo(writer)
	return n, err
}

// WriteDupTo sets the DUP bit for PUBLISH messages and then writes to the given writer.
// Every other packet type, PUBREL included, is written with its flags unchanged. The
// original message is left unchanged.
func (m *GenericMessage) WriteDupTo(writer io.Writer) (int64, error) {
	out := m
	msgType := m.fixedHeader >> 4
	if msgType == PublishType {
		out = &GenericMessage{fixedHeader: m.fixedHeader | DupBit, body: m.body}
	}
	return out.WriteTo(writer)
}

// readFrame reads one complete MQTT frame (fixed header already consumed into
// fixedHeaderByte) from reader and returns it as a GenericMessage.
func readFrame(reader io.Reader, fixedHeaderByte byte) (*GenericMessage, error) {
	remainingLength, err := DecodeVariableInt(reader)
	if err != nil {
		return nil, err
	}
	if remainingLength > MaxRemainingLength {
		return nil, &DecodeError{Reason: "remaining length exceeds protocol maximum"}
	}
	body := make([]byte, remainingLength)
	n, err := io.ReadFull(reader, body)
	if err != nil {
		return nil, err
	}
	if n != remainingLength {
		return nil, &DecodeError{Reason: "short read of remaining-length body"}
	}
	return &GenericMessage{fixedHeader: fixedHeaderByte, body: body}, nil
}

// FrameAccumulator implements the streaming framing described in §6: bytes arrive in
// arbitrary chunks via Feed and complete frames are extracted greedily as soon as enough
// bytes are buffered, without blocking on reads.
type FrameAccumulator struct {
	buf bytes.Buffer
}

// Feed appends freshly-arrived bytes to the rolling buffer.
func (a *FrameAccumulator) Feed(chunk []byte) {
	a.buf.Write(chunk)
}

// Next extracts and returns the next complete frame buffered, if any. ok is false when the
// buffer holds only a partial frame (or is empty); the caller should Feed more bytes and
// retry. A malformed length field is reported as a DecodeError.
func (a *FrameAccumulator) Next() (msg *GenericMessage, ok bool, err error) {
	data := a.buf.Bytes()
	if len(data) < 2 {
		return nil, false, nil
	}
	fixedHeaderByte := data[0]

	remaining, lenLen, complete := decodeVariableIntFromSlice(data[1:])
	if !complete {
		if lenLen > 4 {
			return nil, false, &DecodeError{Reason: "malformed variable length field (more than 4 bytes)"}
		}
		return nil, false, nil
	}
	total := 1 + lenLen + remaining
	if len(data) < total {
		return nil, false, nil
	}
	body := make([]byte, remaining)
	copy(body, data[1+lenLen:total])
	a.buf.Next(total)
	return &GenericMessage{fixedHeader: fixedHeaderByte, body: body}, true, nil
}

// decodeVariableIntFromSlice mirrors DecodeVariableInt but operates on an in-memory slice
// without consuming bytes that don't yet form a complete field, returning complete=false
// when more bytes are needed.
func decodeVariableIntFromSlice(data []byte) (value int, lenLen int, complete bool) {
	multiplier := 1
	for i := 0; i < len(data) && i < 4; i++ {
		encodedByte := data[i]
		value += int(encodedByte&127) * multiplier
		multiplier *= 128
		if (encodedByte & 128) == 0 {
			return value, i + 1, true
		}
	}
	if len(data) >= 4 {
		// four continuation bytes were present and none terminated the field
		return 0, 5, false
	}
	return 0, 0, false
}
