// Package stdio carries envelopes over byte streams, such as the standard input and output of a core process started
// by the IDE host.  Lines frames each message as one CRLF terminated line, which suits JSON; Frames prefixes each
// message with its length, which suits MessagePack.
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// MaxFrame is the largest message Frames will accept.
const MaxFrame = 64 << 20

// Lines returns a transport that reads and writes newline delimited messages.  Written messages end with CRLF; read
// messages may end with LF or CRLF.  Messages must not contain newlines, which JSON encoding guarantees.
func Lines(r io.Reader, w io.Writer, closers ...io.Closer) *Stream {
	return newStream(r, w, closers, readLine, writeLine)
}

// Frames returns a transport that reads and writes messages with a 4-byte little-endian length prefix.
func Frames(r io.Reader, w io.Writer, closers ...io.Closer) *Stream {
	return newStream(r, w, closers, readFrame, writeFrame)
}

// Stdio returns a transport over the standard input and output of this process, for a core started by the IDE host.
func Stdio(framed bool) *Stream {
	if framed {
		return Frames(os.Stdin, os.Stdout)
	}
	return Lines(os.Stdin, os.Stdout)
}

// A Stream is a transport over a reader and a writer.  Reading and writing happen in background goroutines so Read
// and Write can honor their contexts.
type Stream struct {
	w       io.Writer
	write   func(io.Writer, []byte) error
	closers []io.Closer

	reads  chan read
	writes chan outbound
	done   chan struct{}
	once   sync.Once
}

type read struct {
	data []byte
	err  error
}

type outbound struct {
	data []byte
	err  chan error
}

func newStream(
	r io.Reader, w io.Writer, closers []io.Closer,
	readFn func(*bufio.Reader) ([]byte, error), writeFn func(io.Writer, []byte) error,
) *Stream {
	s := &Stream{
		w:       w,
		write:   writeFn,
		closers: closers,
		reads:   make(chan read),
		writes:  make(chan outbound),
		done:    make(chan struct{}),
	}
	go s.readLoop(bufio.NewReader(r), readFn)
	go s.writeLoop()
	return s
}

// writeLoop writes messages one at a time, so a write abandoned by its caller still completes before the next one
// starts and never leaves half a message on the stream.
func (s *Stream) writeLoop() {
	for {
		select {
		case out := <-s.writes:
			out.err <- s.flush(out.data)
		case <-s.done:
			return
		}
	}
}

func (s *Stream) flush(data []byte) error {
	err := s.write(s.w, data)
	if err != nil {
		return err
	}
	if f, ok := s.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func (s *Stream) readLoop(r *bufio.Reader, readFn func(*bufio.Reader) ([]byte, error)) {
	for {
		data, err := readFn(r)
		select {
		case s.reads <- read{data, err}:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// Read returns the next message, or io.EOF when the stream ends.
func (s *Stream) Read(ctx context.Context) ([]byte, error) {
	select {
	case r, ok := <-s.reads:
		if !ok {
			return nil, io.EOF
		}
		if r.err == nil {
			return r.data, nil
		}
		close(s.reads)
		if errors.Is(r.err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, r.err
	case <-s.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Write writes one message.  If the context ends first, Write returns its error while the message is still queued or
// being written; a reader that never drains the stream blocks every later write the same way.
func (s *Stream) Write(ctx context.Context, data []byte) error {
	select {
	case <-s.done:
		return io.ErrClosedPipe
	default:
	}
	out := outbound{data, make(chan error, 1)}
	select {
	case s.writes <- out:
	case <-s.done:
		return io.ErrClosedPipe
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-out.err:
		return err
	case <-s.done:
		return io.ErrClosedPipe
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops reading and closes the underlying streams that were provided.
func (s *Stream) Close() error {
	var errs []error
	s.once.Do(func() {
		close(s.done)
		for _, c := range s.closers {
			errs = append(errs, c.Close())
		}
	})
	return errors.Join(errs...)
}

func readLine(r *bufio.Reader) ([]byte, error) {
	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			if len(line) > 0 && errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		line = bytes.TrimRight(line, "\r\n")
		if len(line) > 0 {
			return line, nil
		}
	}
}

func writeLine(w io.Writer, data []byte) error {
	if bytes.ContainsAny(data, "\r\n") {
		return fmt.Errorf(`message contains a line break`)
	}
	_, err := w.Write(append(data[:len(data):len(data)], '\r', '\n'))
	return err
}

func readFrame(r *bufio.Reader) ([]byte, error) {
	var length uint32
	err := binary.Read(r, binary.LittleEndian, &length)
	if err != nil {
		return nil, err
	}
	if length > MaxFrame {
		return nil, fmt.Errorf(`frame of %d bytes exceeds the limit of %d bytes`, length, MaxFrame)
	}
	buf := make([]byte, length)
	_, err = io.ReadFull(r, buf)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func writeFrame(w io.Writer, data []byte) error {
	buf := make([]byte, 4, 4+len(data))
	binary.LittleEndian.PutUint32(buf, uint32(len(data)))
	_, err := w.Write(append(buf, data...))
	return err
}
