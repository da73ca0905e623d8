package mqtt

import (
	"io"
	"net"

	"github.com/sirupsen/logrus"
)

// Transport is the byte-oriented duplex the engine writes encoded packets to and reads
// inbound bytes from (§6). Production code uses netTransport; tests use MockConnection.
type Transport interface {
	io.Writer
	// Abort tears the connection down abruptly, e.g. after a decode error or timeout.
	Abort() error
	// Close shuts the connection down gracefully, e.g. after a user-initiated disconnect.
	Close() error
}

// netTransport adapts a net.Conn to the Transport interface.
type netTransport struct {
	conn net.Conn
}

// NewNetTransport wraps an already-dialed net.Conn as a Transport.
func NewNetTransport(conn net.Conn) Transport {
	return &netTransport{conn: conn}
}

func (t *netTransport) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}

func (t *netTransport) Abort() error {
	logrus.WithField("remote", t.conn.RemoteAddr()).Debug("aborting transport")
	return t.conn.Close()
}

func (t *netTransport) Close() error {
	return t.conn.Close()
}

// readLoop reads raw bytes from conn and feeds them through a FrameAccumulator, invoking
// onFrame for every complete packet decoded and onClosed once the connection ends.
func readLoop(conn net.Conn, onFrame func(*GenericMessage), onClosed func(error)) {
	var acc FrameAccumulator
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			acc.Feed(buf[:n])
			for {
				msg, ok, decodeErr := acc.Next()
				if decodeErr != nil {
					onClosed(decodeErr)
					return
				}
				if !ok {
					break
				}
				onFrame(msg)
			}
		}
		if err != nil {
			onClosed(err)
			return
		}
	}
}
