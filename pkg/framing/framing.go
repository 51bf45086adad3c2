// Package framing turns a stream connection into a sequence of discrete
// messages. Each message on the wire is a 4-byte big-endian unsigned length
// followed by that many bytes of UTF-8 JSON. The framer exclusively owns the
// connection's read buffering; a frame interrupted by a timeout leaves the
// stream position unusable, so the framer poisons itself and the connection
// must be closed.
package framing

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"net"
	"time"

	mcperrors "github.com/Maggot4703/Crew-sub000/pkg/errors"
)

// DefaultMaxMessageSize bounds memory use per frame: 16 MiB.
const DefaultMaxMessageSize = 16 << 20

// headerSize is the length prefix width in bytes.
const headerSize = 4

// Framer reads and writes length-prefixed messages on one connection.
// It is not safe for concurrent use; the protocol is half-duplex per
// connection.
type Framer struct {
	conn     net.Conn
	reader   *bufio.Reader
	maxSize  int
	poisoned bool
}

// New creates a framer over conn. maxMessageSize caps the declared length of
// incoming and outgoing frames; zero or negative selects
// DefaultMaxMessageSize.
func New(conn net.Conn, maxMessageSize int) *Framer {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	return &Framer{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		maxSize: maxMessageSize,
	}
}

// WriteMessage writes the length prefix and payload, blocking until the full
// frame is sent or the timeout expires. A zero timeout writes without a
// deadline.
func (f *Framer) WriteMessage(payload []byte, timeout time.Duration) error {
	// int comparison: a payload at or over 4 GiB must fail here, never wrap
	// in the length prefix
	if len(payload) > f.maxSize || uint64(len(payload)) > math.MaxUint32 {
		return mcperrors.FrameTooLarge(uint64(len(payload)), uint64(f.maxSize))
	}

	if timeout > 0 {
		if err := f.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return mcperrors.ConnectionClosed(f.remoteAddr(), err)
		}
		defer f.conn.SetWriteDeadline(time.Time{})
	}

	// single buffer so header and payload cannot be torn apart by an error
	// between two writes
	frame := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[headerSize:], payload)

	if _, err := f.conn.Write(frame); err != nil {
		if isTimeout(err) {
			return mcperrors.WriteTimeout(f.remoteAddr(), timeout)
		}
		return mcperrors.ConnectionClosed(f.remoteAddr(), err)
	}
	return nil
}

// ReadMessage reads exactly one frame, blocking until it is complete or the
// timeout expires. A zero timeout reads without a deadline. After a timeout
// the framer refuses further reads: the stream position inside a partially
// read frame is not resumable and the connection must be closed.
func (f *Framer) ReadMessage(timeout time.Duration) ([]byte, error) {
	if f.poisoned {
		return nil, mcperrors.InvalidState("read_message", "poisoned")
	}

	if timeout > 0 {
		if err := f.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, mcperrors.ConnectionClosed(f.remoteAddr(), err)
		}
		defer f.conn.SetReadDeadline(time.Time{})
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(f.reader, header); err != nil {
		return nil, f.readError(err, headerSize, timeout)
	}

	length := binary.BigEndian.Uint32(header)
	if uint64(length) > uint64(f.maxSize) {
		return nil, mcperrors.FrameTooLarge(uint64(length), uint64(f.maxSize))
	}

	payload := make([]byte, length)
	n, err := io.ReadFull(f.reader, payload)
	if err != nil {
		return nil, f.readError(err, int(length), timeout, n)
	}
	return payload, nil
}

// readError classifies a short read. EOF on a frame boundary is a plain
// closed connection; EOF inside a frame is a truncated frame; a deadline
// expiry is a timeout that poisons the framer.
func (f *Framer) readError(err error, wanted int, timeout time.Duration, got ...int) error {
	if isTimeout(err) {
		f.poisoned = true
		return mcperrors.ReadTimeout(f.remoteAddr(), timeout)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || (errors.Is(err, io.EOF) && len(got) > 0) {
		n := 0
		if len(got) > 0 {
			n = got[0]
		}
		return mcperrors.TruncatedFrame(wanted, n, err)
	}
	return mcperrors.ConnectionClosed(f.remoteAddr(), err)
}

func (f *Framer) remoteAddr() string {
	if addr := f.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
