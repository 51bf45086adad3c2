package framing

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/Maggot4703/Crew-sub000/pkg/errors"
)

func pipePair(t *testing.T, maxSize int) (*Framer, *Framer, net.Conn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return New(a, maxSize), New(b, maxSize), a, b
}

func TestRoundTrip(t *testing.T) {
	left, right, _, _ := pipePair(t, 0)

	payloads := [][]byte{
		[]byte(`{"hello":"world"}`),
		[]byte(`{}`),
		[]byte(`[1,2,3]`),
	}

	done := make(chan error, 1)
	go func() {
		for _, p := range payloads {
			if err := left.WriteMessage(p, time.Second); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	for _, want := range payloads {
		got, err := right.ReadMessage(time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	require.NoError(t, <-done)
}

func TestEmptyPayload(t *testing.T) {
	left, right, _, _ := pipePair(t, 0)

	go func() {
		left.WriteMessage(nil, time.Second)
	}()

	got, err := right.ReadMessage(time.Second)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteRejectsOversizePayload(t *testing.T) {
	left, _, _, _ := pipePair(t, 64)

	err := left.WriteMessage(make([]byte, 65), time.Second)
	require.Error(t, err)
	assert.True(t, mcperrors.IsProtocolError(err))
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeFrameTooLarge))
}

func TestReadRejectsOversizeDeclaredLength(t *testing.T) {
	_, right, a, _ := pipePair(t, 64)

	go func() {
		header := make([]byte, 4)
		binary.BigEndian.PutUint32(header, 1<<20)
		a.Write(header)
	}()

	_, err := right.ReadMessage(time.Second)
	require.Error(t, err)
	assert.True(t, mcperrors.IsProtocolError(err))
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeFrameTooLarge))
}

func TestReadTruncatedPayload(t *testing.T) {
	_, right, a, _ := pipePair(t, 0)

	go func() {
		frame := make([]byte, 4+3)
		binary.BigEndian.PutUint32(frame, 10)
		copy(frame[4:], "abc")
		a.Write(frame)
		a.Close()
	}()

	_, err := right.ReadMessage(time.Second)
	require.Error(t, err)
	assert.True(t, mcperrors.IsProtocolError(err))
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeTruncatedFrame))
	assert.Contains(t, err.Error(), "wanted 10")
}

func TestReadTruncatedHeader(t *testing.T) {
	_, right, a, _ := pipePair(t, 0)

	go func() {
		a.Write([]byte{0x00, 0x00})
		a.Close()
	}()

	_, err := right.ReadMessage(time.Second)
	require.Error(t, err)
	assert.True(t, mcperrors.IsProtocolError(err))
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeTruncatedFrame))
}

func TestReadCleanClose(t *testing.T) {
	_, right, a, _ := pipePair(t, 0)

	go a.Close()

	_, err := right.ReadMessage(time.Second)
	require.Error(t, err)
	assert.True(t, mcperrors.IsConnectionError(err))
	assert.False(t, mcperrors.IsTimeout(err))
}

func TestReadTimeoutPoisonsFramer(t *testing.T) {
	_, right, _, _ := pipePair(t, 0)

	start := time.Now()
	_, err := right.ReadMessage(100 * time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, mcperrors.IsTimeout(err))
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)

	// the stream position is unknown after a timeout; further reads refuse
	_, err = right.ReadMessage(100 * time.Millisecond)
	require.Error(t, err)
	assert.True(t, mcperrors.IsInvalidState(err))
}

func TestDefaultMaxMessageSize(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	f := New(a, 0)
	assert.Equal(t, DefaultMaxMessageSize, f.maxSize)
	assert.Equal(t, 16<<20, DefaultMaxMessageSize)

	err := f.WriteMessage(make([]byte, DefaultMaxMessageSize+1), 0)
	require.Error(t, err)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeFrameTooLarge))
}

func TestMaxMessageSizeAboveLengthPrefixRange(t *testing.T) {
	// a configured maximum over 4 GiB must not wrap; small frames still pass
	shift := 40
	left, right, _, _ := pipePair(t, 1<<shift)

	go func() {
		left.WriteMessage([]byte(`{"ok":true}`), time.Second)
	}()

	got, err := right.ReadMessage(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"ok":true}`), got)
}
