// Package peer implements the correlation engine that runs on each side of a channel between two endpoints.  A Peer
// sends requests and waits for the response with the same id, sends fire-and-forget messages, and dispatches inbound
// messages to handlers registered by message type.
package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/swdunlop/html-go/hog"
	"github.com/swdunlop/messenger-go/messenger/protocol"
)

// A Peer is one side of a channel.  Handlers are registered when the peer is created or with On, before Serve binds a
// transport and starts the read loop.
type Peer struct {
	cfg config

	mu        sync.Mutex
	started   bool
	transport Transport
	waiters   map[string]chan protocol.Message
}

// New creates a peer with the given options.
func New(options ...Option) *Peer {
	p := &Peer{waiters: make(map[string]chan protocol.Message)}
	p.cfg.init(p, options...)
	return p
}

// Name returns the name of the peer.
func (p *Peer) Name() string { return p.cfg.name }

// Codec returns the codec the peer uses on the wire.
func (p *Peer) Codec() protocol.Codec { return p.cfg.codec }

// Connected returns true while the peer is serving a transport.
func (p *Peer) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transport != nil
}

// Handles returns true if a handler is registered for the message type.
func (p *Peer) Handles(messageType string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.handlers[messageType] != nil
}

// On registers a handler for a message type.  Registering a second handler for the same type replaces the first.
func (p *Peer) On(messageType string, handler Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrRegistrationClosed
	}
	p.cfg.handlers[messageType] = handler
	return nil
}

// Serve binds the transport and reads from it until it fails, the far endpoint closes it or the context ends.  When
// Serve returns, every request still waiting for a response from this transport fails with ErrClosed.  A peer serves
// one transport at a time; it may be served again after Serve returns.
func (p *Peer) Serve(ctx context.Context, t Transport) error {
	p.mu.Lock()
	if p.transport != nil {
		p.mu.Unlock()
		return ErrBusy
	}
	p.started = true
	p.transport = t
	p.mu.Unlock()

	ctx = hog.With(ctx, func(z zerolog.Context) zerolog.Context {
		return z.Str(`peer`, p.cfg.name)
	})
	ctx, cancel := context.WithCancel(ctx)
	var group sync.WaitGroup
	defer func() {
		cancel()
		p.detach(t)
		group.Wait()
	}()

	hog.From(ctx).Debug().Str(`codec`, p.cfg.codec.Name()).Msg(`peer connected`)
	for {
		data, err := t.Read(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), ctx.Err() != nil:
			hog.From(ctx).Debug().Msg(`peer disconnected`)
			return nil
		default:
			return fmt.Errorf(`%w while reading from %v`, err, p.cfg.name)
		}
		msg, err := p.cfg.codec.Decode(data)
		if err != nil {
			hog.From(ctx).Warn().Err(err).Int(`size`, len(data)).Msg(`dropped undecodable message`)
			continue
		}
		p.cfg.trace(true, msg)
		if p.resolve(msg) {
			continue
		}
		if msg.Reply {
			hog.From(ctx).Debug().Str(`type`, msg.Type).Str(`id`, msg.ID).Msg(`dropped unmatched response`)
			continue
		}
		group.Add(1)
		go func() {
			defer group.Done()
			p.dispatch(ctx, t, msg)
		}()
	}
}

// resolve delivers a response to the request waiting for it, returning false if no request is waiting for the id.
// Each waiter is removed before it is resolved, so it is resolved at most once.
func (p *Peer) resolve(msg protocol.Message) bool {
	if msg.ID == `` {
		return false
	}
	p.mu.Lock()
	ch, ok := p.waiters[msg.ID]
	if ok {
		delete(p.waiters, msg.ID)
	}
	p.mu.Unlock()
	if ok {
		ch <- msg
	}
	return ok
}

// detach unbinds the transport and rejects every pending waiter.
func (p *Peer) detach(t Transport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.transport != t {
		return
	}
	p.transport = nil
	for id, ch := range p.waiters {
		delete(p.waiters, id)
		close(ch)
	}
}

func (p *Peer) dispatch(ctx context.Context, t Transport, msg protocol.Message) {
	scope := For(ctx, p, t, msg)
	defer func() {
		if r := recover(); r != nil {
			hog.From(ctx).Error().Str(`type`, msg.Type).Str(`id`, msg.ID).Interface(`panic`, r).Msg(`handler panicked`)
			_ = scope.Fail(protocol.CodeInternal, fmt.Sprintf(`handler panicked: %v`, r))
			return
		}
		if !scope.Replied() {
			_ = scope.Succ(nil)
		}
	}()
	p.cfg.handler(scope)
}

// handleMessage is the innermost handler, which finds the handler registered for the message type.
func (p *Peer) handleMessage(ctx *Scope) {
	handler := p.cfg.handlers[ctx.Type]
	if handler != nil {
		handler(ctx)
		return
	}
	if ctx.Oneway() {
		hog.From(ctx).Warn().Str(`type`, ctx.Type).Msg(`dropped message with unknown type`)
		return
	}
	_ = ctx.Fail(protocol.CodeNotFound, fmt.Sprintf(`unknown message type %q`, ctx.Type))
}

// Request sends a request and waits for its response.  The response is returned even if it carries an error, which
// is also returned as a *protocol.Fail.  Cancelling the context abandons the request; a response that arrives later
// is dropped.
func (p *Peer) Request(ctx context.Context, messageType string, data []byte) (protocol.Message, error) {
	id := p.cfg.ids()
	ch := make(chan protocol.Message, 1)
	p.mu.Lock()
	t := p.transport
	if t == nil {
		p.mu.Unlock()
		return protocol.Message{}, ErrNotConnected
	}
	p.waiters[id] = ch
	p.mu.Unlock()
	defer p.forget(id)

	if p.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.timeout)
		defer cancel()
	}
	err := p.write(ctx, t, protocol.Message{Type: messageType, ID: id, Data: data})
	if err != nil {
		return protocol.Message{}, err
	}
	select {
	case msg, ok := <-ch:
		if !ok {
			return protocol.Message{}, ErrClosed
		}
		if msg.Error != nil {
			return msg, msg.Error
		}
		return msg, nil
	case <-ctx.Done():
		return protocol.Message{}, fmt.Errorf(`%w while waiting for %q response from %v`, ctx.Err(), messageType, p.cfg.name)
	}
}

func (p *Peer) forget(id string) {
	p.mu.Lock()
	delete(p.waiters, id)
	p.mu.Unlock()
}

// Pending returns the number of requests waiting for a response.
func (p *Peer) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

// Call encodes the input, sends a request and decodes the response into output, which may be nil to discard it.
func (p *Peer) Call(ctx context.Context, messageType string, input, output any) error {
	data, err := p.cfg.codec.Marshal(input)
	if err != nil {
		return fmt.Errorf(`%w while encoding %q input`, err, messageType)
	}
	msg, err := p.Request(ctx, messageType, data)
	if err != nil {
		return err
	}
	if output == nil {
		return nil
	}
	err = p.cfg.codec.Unmarshal(msg.Data, output)
	if err != nil {
		return fmt.Errorf(`%w while decoding %q output`, err, messageType)
	}
	return nil
}

// Send sends a fire-and-forget message.  No response is expected and none is waited for.
func (p *Peer) Send(ctx context.Context, messageType string, data []byte) error {
	p.mu.Lock()
	t := p.transport
	p.mu.Unlock()
	if t == nil {
		return ErrNotConnected
	}
	return p.write(ctx, t, protocol.Message{Type: messageType, Data: data})
}

// Invoke sends a typed request and waits for the typed response.
func Invoke[I, O any](ctx context.Context, p *Peer, def protocol.Def[I, O], input I) (O, error) {
	var output O
	err := p.Call(ctx, def.Name, input, &output)
	return output, err
}

// Notify sends a typed fire-and-forget message.
func Notify[I, O any](ctx context.Context, p *Peer, def protocol.Def[I, O], input I) error {
	data, err := p.cfg.codec.Marshal(input)
	if err != nil {
		return fmt.Errorf(`%w while encoding %q input`, err, def.Name)
	}
	return p.Send(ctx, def.Name, data)
}

func (p *Peer) write(ctx context.Context, t Transport, msg protocol.Message) error {
	data, err := p.cfg.codec.Encode(msg)
	if err != nil {
		return fmt.Errorf(`%w while encoding %q message`, err, msg.Type)
	}
	p.cfg.trace(false, msg)
	err = t.Write(ctx, data)
	if err != nil {
		return fmt.Errorf(`%w while writing %q message to %v`, err, msg.Type, p.cfg.name)
	}
	return nil
}
