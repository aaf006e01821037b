// Package pipe provides an in-process transport pair, for endpoints that share a process and for tests.
package pipe

import (
	"context"
	"io"
	"sync"
)

// New returns two connected ends of a pipe.  Messages written to one end are read from the other in order.  Closing
// either end closes the pipe; messages already written may still be read.
func New() (*End, *End) {
	p := &pipe{done: make(chan struct{})}
	ab := make(chan []byte, capacity)
	ba := make(chan []byte, capacity)
	return &End{pipe: p, in: ba, out: ab}, &End{pipe: p, in: ab, out: ba}
}

// capacity is the number of messages each direction buffers before Write blocks.
const capacity = 64

type pipe struct {
	done chan struct{}
	once sync.Once
}

func (p *pipe) close() { p.once.Do(func() { close(p.done) }) }

// An End is one end of a pipe.
type End struct {
	*pipe
	in  <-chan []byte
	out chan<- []byte
}

// Read returns the next message written to the other end, or io.EOF once the pipe is closed and drained.
func (e *End) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-e.in:
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.done:
		select {
		case data := <-e.in:
			return data, nil
		default:
			return nil, io.EOF
		}
	}
}

// Write sends a copy of data to the other end.
func (e *End) Write(ctx context.Context, data []byte) error {
	select {
	case <-e.done:
		return io.ErrClosedPipe
	default:
	}
	data = append([]byte(nil), data...)
	select {
	case e.out <- data:
		return nil
	case <-e.done:
		return io.ErrClosedPipe
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the pipe.
func (e *End) Close() error {
	e.close()
	return nil
}
