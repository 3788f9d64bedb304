// Package wire reads HTTP/1.0 requests from a single connection with bounded
// memory and a per-read idle timeout.
package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

var (
	ErrHeaderTooLarge = errors.New("wire: header too large")
	ErrReadTimeout    = errors.New("wire: read timeout")
	ErrBodyTooLarge   = errors.New("wire: body too large")
)

// deadliner is implemented by connections supporting read deadlines.
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// idleReader arms a fresh read deadline before every read of the source, so
// the timeout measures silence on the wire rather than total request time.
type idleReader struct {
	src  io.Reader
	idle time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	if d, ok := r.src.(deadliner); ok && r.idle > 0 {
		if err := d.SetReadDeadline(time.Now().Add(r.idle)); err != nil {
			return 0, err
		}
	}
	return r.src.Read(p)
}

// ByteReader is a buffered reader over a connection. It is reused across
// connections through Reset so its buffer is allocated once.
type ByteReader struct {
	src idleReader
	br  *bufio.Reader
}

// NewByteReader returns a ByteReader with a read buffer of size bytes and the
// given idle timeout. A zero idle disables deadlines.
func NewByteReader(size int, idle time.Duration) *ByteReader {
	r := &ByteReader{src: idleReader{idle: idle}}
	r.br = bufio.NewReaderSize(&r.src, size)
	return r
}

// Reset discards any buffered data and switches to src. Passing nil detaches
// the reader from its last connection.
func (r *ByteReader) Reset(src io.Reader) {
	r.src.src = src
	r.br.Reset(&r.src)
}

// Size returns the size of the read buffer.
func (r *ByteReader) Size() int {
	return r.br.Size()
}

// ReadLine reads through the next '\n' and appends it to dst[:0], terminator
// included. At most budget bytes are accepted; a longer line fails with
// ErrHeaderTooLarge. On io.EOF the partial line is returned with the error.
func (r *ByteReader) ReadLine(dst []byte, budget int) ([]byte, error) {
	line := dst[:0]
	for {
		frag, err := r.br.ReadSlice('\n')
		if len(line)+len(frag) > budget {
			return nil, ErrHeaderTooLarge
		}
		line = append(line, frag...)
		switch {
		case err == nil:
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return line, classify(err)
		}
	}
}

// ReadFull reads exactly len(p) bytes.
func (r *ByteReader) ReadFull(p []byte) error {
	if _, err := io.ReadFull(r.br, p); err != nil {
		return classify(err)
	}
	return nil
}

// classify maps deadline expiry to ErrReadTimeout and leaves other errors
// untouched.
func classify(err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrReadTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", ErrReadTimeout, err)
	}
	return err
}
