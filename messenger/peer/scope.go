package peer

import (
	"context"
	"fmt"
	"sync"

	"github.com/swdunlop/html-go/hog"
	"github.com/swdunlop/messenger-go/messenger/protocol"
)

// For creates a new scope for an inbound message.  Generally this is not necessary but it can be useful for testing
// middleware.
func For(ctx context.Context, p *Peer, t Transport, msg protocol.Message) *Scope {
	self := &Scope{Context: ctx, Message: msg, peer: p, transport: t}
	self.Context = context.WithValue(ctx, ctxKey{}, self)
	return self
}

// From returns the scope of the message being handled from a Go context.  May return nil if the context did not come
// from a handler.
func From(ctx context.Context) *Scope {
	scope, _ := ctx.Value(ctxKey{}).(*Scope)
	return scope
}

type ctxKey struct{}

// A Scope describes the handling of one inbound message.
type Scope struct {
	context.Context
	protocol.Message
	peer      *Peer
	transport Transport

	mu      sync.Mutex
	replied bool
}

// Peer returns the peer that received the message.
func (ctx *Scope) Peer() *Peer { return ctx.peer }

// Decode decodes the message payload into v using the peer's codec.
func (ctx *Scope) Decode(v any) error { return ctx.peer.cfg.codec.Unmarshal(ctx.Data, v) }

// Succ sends a success response.  Raw output is sent verbatim; nil and protocol.Empty send no payload.
func (ctx *Scope) Succ(output any) error {
	var data []byte
	switch output := output.(type) {
	case nil, protocol.Empty, *protocol.Empty:
	case Raw:
		data = output
	default:
		var err error
		data, err = ctx.peer.cfg.codec.Marshal(output)
		if err != nil {
			return ctx.Fail(protocol.CodeInternal, fmt.Sprintf(`%v while encoding output`, err))
		}
	}
	return ctx.respond(protocol.Message{Type: ctx.Type, ID: ctx.ID, Data: data, Reply: true})
}

// Fail sends an error response.
func (ctx *Scope) Fail(code int, msg string) error {
	return ctx.Reject(&protocol.Fail{Code: code, Message: msg})
}

// Reject sends an error response for err.  A protocol.Fail in the chain is sent as is, other errors become a Fail
// with code 500.
func (ctx *Scope) Reject(err error) error {
	fail := protocol.AsFail(err, protocol.CodeInternal)
	if ctx.Oneway() {
		hog.From(ctx).Warn().Err(fail).Msg(`fire-and-forget handler failed`)
	}
	return ctx.respond(protocol.Message{Type: ctx.Type, ID: ctx.ID, Error: fail, Reply: true})
}

// Replied returns true once a response has been sent, or would have been sent if the message expected one.
func (ctx *Scope) Replied() bool {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.replied
}

func (ctx *Scope) respond(msg protocol.Message) error {
	ctx.mu.Lock()
	if ctx.replied {
		ctx.mu.Unlock()
		return ErrResponded
	}
	ctx.replied = true
	ctx.mu.Unlock()
	if ctx.Oneway() {
		return nil
	}
	return ctx.peer.write(ctx, ctx.transport, msg)
}

// Raw is a payload that is already encoded with the peer's codec.  Handlers that relay responses from another peer
// return Raw so the payload is not encoded twice.
type Raw []byte

// A Handler is a function that handles an inbound message.  Handlers respond with Succ, Fail or Reject; a handler
// that returns without responding sends an empty success.
type Handler func(*Scope)

// Func adapts a typed function into a Handler, decoding its input and encoding its output with the peer's codec.
func Func[I, O any](fn func(*Scope, I) (O, error)) Handler {
	return func(ctx *Scope) {
		in := new(I)
		err := ctx.Decode(in)
		if err != nil {
			_ = ctx.Fail(protocol.CodeBadRequest, fmt.Sprintf(`%v while decoding input`, err))
			return
		}
		out, err := fn(ctx, *in)
		if err != nil {
			_ = ctx.Reject(err)
			return
		}
		_ = ctx.Succ(out)
	}
}
