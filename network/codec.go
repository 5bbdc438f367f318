package network

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"time"

	"github.com/goccy/go-json"
)

// Frame = 4-byte big-endian length + that many bytes of UTF-8 JSON.

var (
	// ErrShortRead means the peer closed the socket before a full frame arrived.
	ErrShortRead = errors.New("short-read")
	// ErrTimeout means the read deadline expired before a full frame arrived.
	ErrTimeout = errors.New("timeout")
)

// MaxFrameSize bounds a single message; anything larger is a broken peer.
const MaxFrameSize = 16 << 20

// WriteMsg marshals v and writes it as one frame.
func WriteMsg(conn net.Conn, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(body)))
	copy(buf[4:], body)
	_, err = conn.Write(buf)
	return err
}

// ReadMsg reads one frame within the deadline and unmarshals it into v.
func ReadMsg(conn net.Conn, timeout time.Duration, v interface{}) error {
	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	var head [4]byte
	if _, err := io.ReadFull(conn, head[:]); err != nil {
		return mapReadErr(err)
	}
	n := binary.BigEndian.Uint32(head[:])
	if n > MaxFrameSize {
		return errors.New("frame too large")
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(conn, body); err != nil {
		return mapReadErr(err)
	}
	return json.Unmarshal(body, v)
}

func mapReadErr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrShortRead
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrTimeout
	}
	return err
}
