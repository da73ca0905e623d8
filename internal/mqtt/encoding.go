package mqtt

import (
	"bytes"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// EncodeVariableInt produces a []byte with the integer encoded as a MQTT variable-length int.
func EncodeVariableInt(value int) []byte {
	var data bytes.Buffer

	for {
		encodedByte := byte(value % 128)
		value = value / 128
		// if there are more data to encode, set the top bit of this byte
		if value > 0 {
			encodedByte = (encodedByte | 128)
		}
		data.WriteByte(encodedByte)
		if !(value > 0) {
			break
		}
	}
	return data.Bytes()
}

// DecodeVariableInt decodes a variable-length int from the Reader stream, consuming it, and
// returns the value. Per §4.1 the field is at most 4 bytes; a 5th continuation byte is malformed.
func DecodeVariableInt(reader io.Reader) (int, error) {
	multiplier := 1
	value := 0
	buf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(reader, buf); err != nil {
			return 0, err
		}
		encodedByte := buf[0]
		value += int(encodedByte&127) * multiplier
		if multiplier > 128*128*128 {
			return 0, &DecodeError{Reason: "malformed variable length field (more than 4 bytes)"}
		}
		multiplier *= 128

		if (encodedByte & 128) == 0 {
			break
		}
	}
	return value, nil
}

// EncodeVariableIntTo encodes a given int into the given Buffer using MQTT variable int and
// returns the written length.
func EncodeVariableIntTo(value int, to *bytes.Buffer) int {
	encoded := EncodeVariableInt(value)
	to.Write(encoded)

	if log.IsLevelEnabled(log.DebugLevel) {
		var hexBytes string
		for _, b := range encoded {
			if len(hexBytes) != 0 {
				hexBytes += ", "
			}
			hexBytes += fmt.Sprintf("0x%x", b)
		}
		log.Debugf("Encoded Length %d into %d byte(s): [%s]", value, len(encoded), hexBytes)
	}
	return len(encoded)
}

// EncodeStringTo encodes a given string into the given buffer - 16 bit length + the content.
func EncodeStringTo(value string, to *bytes.Buffer) {
	strLength := len(value)
	to.WriteByte(byte(strLength >> 8))
	to.WriteByte(byte(strLength & 0xFF))
	to.WriteString(value)
}

// EncodeBytesTo encodes a given []byte into the given buffer - 16 bit length + the content.
func EncodeBytesTo(value []byte, to *bytes.Buffer) {
	bytesLength := len(value)
	to.WriteByte(byte(bytesLength >> 8))
	to.WriteByte(byte(bytesLength & 0xFF))
	to.Write(value)
}

// Encode16BitIntTo encodes a given int as a 16 bit big endian value into the buffer.
func Encode16BitIntTo(value int, to *bytes.Buffer) {
	to.WriteByte(byte(value >> 8))
	to.WriteByte(byte(value & 0xFF))
}

// Decode16BitInt reads a 16 bit big endian value from the front of buf, returning the value
// and the remaining bytes.
func Decode16BitInt(buf []byte) (int, []byte, error) {
	if len(buf) < 2 {
		return 0, buf, &DecodeError{Reason: "expected 2 bytes for 16 bit int"}
	}
	return int(buf[0])<<8 | int(buf[1]), buf[2:], nil
}

// DecodeString reads a length-prefixed UTF-8 string from the front of buf, returning the
// string and the remaining bytes.
func DecodeString(buf []byte) (string, []byte, error) {
	length, rest, err := Decode16BitInt(buf)
	if err != nil {
		return "", buf, &DecodeError{Reason: "truncated string length prefix"}
	}
	if len(rest) < length {
		return "", buf, &DecodeError{Reason: "truncated string contents"}
	}
	return string(rest[:length]), rest[length:], nil
}

// DecodeBytes reads a length-prefixed byte string from the front of buf, returning a copy of
// the bytes and the remaining bytes.
func DecodeBytes(buf []byte) ([]byte, []byte, error) {
	length, rest, err := Decode16BitInt(buf)
	if err != nil {
		return nil, buf, &DecodeError{Reason: "truncated byte-string length prefix"}
	}
	if len(rest) < length {
		return nil, buf, &DecodeError{Reason: "truncated byte-string contents"}
	}
	out := make([]byte, length)
	copy(out, rest[:length])
	return out, rest[length:], nil
}
