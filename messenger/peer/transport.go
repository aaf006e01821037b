package peer

import "context"

// A Transport carries encoded envelopes between two endpoints.  It is the only thing a Peer knows about the channel,
// which may be a websocket, a child process pipe, a message bus or an in-process pair.
//
// Write must be safe to call from multiple goroutines.  Read is only called by the Peer's read loop, and returns
// io.EOF when the far endpoint closes the channel in an orderly way.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}
