// Package ipc carries popd's JSON requests and responses over a Unix socket.
//
// On the wire each message is a frame: a uint32 body length in little-endian
// order followed by that many bytes of JSON. The server answers every request
// frame with one response frame and keeps the connection open for the next.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize is the largest body either side accepts or sends.
const MaxFrameSize = 8 << 20

const headerSize = 4

// ErrFrameTooLarge reports a body over MaxFrameSize. Readers return it
// before allocating, so a bogus header cannot force a large buffer.
var ErrFrameTooLarge = errors.New("ipc frame too large")

// ReadFrame returns the body of the next frame on r. A stream that ends
// inside a frame yields io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("%w: header announces %d bytes", ErrFrameTooLarge, size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return body, nil
}

// WriteFrame sends body as one frame, header and body in a single write.
func WriteFrame(w io.Writer, body []byte) error {
	if len(body) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(body))
	}
	frame := make([]byte, headerSize+len(body))
	binary.LittleEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[headerSize:], body)
	_, err := w.Write(frame)
	return err
}
