// Package messenger routes messages between the three endpoints of an IDE extension: the webview that renders the
// UI, the core process that holds the logic, and the IDE host that runs this package and owns the IDE capabilities.
//
// The webview and the core never talk directly.  Each message they send is either handled by the IDE host or passed
// through to the other endpoint, as declared by the protocol tables.  A Messenger builds that route table once,
// checks it, and then serves one channel to each endpoint.
package messenger

import (
	"context"
	"errors"
	"fmt"

	"github.com/swdunlop/html-go/hog"
	"github.com/swdunlop/messenger-go/messenger/peer"
	"github.com/swdunlop/messenger-go/messenger/protocol"
	"golang.org/x/sync/errgroup"
)

// An Endpoint names one of the processes the IDE host talks to.
type Endpoint string

const (
	Webview Endpoint = `webview`
	Core    Endpoint = `core`
)

// ErrNotInTable is returned when the IDE host tries to send a message type it does not originate.
var ErrNotInTable = errors.New(`message type is not part of the IDE protocol table`)

// A Messenger is the IDE host's router.
type Messenger struct {
	webview *peer.Peer
	core    *peer.Peer
	ide     *protocol.Table
}

// New builds a Messenger.  The route table is checked before any handler is installed: every handled message type
// must be part of its origin's protocol table, may only be handled once per origin, and may not be both handled and
// passed through.
func New(options ...Option) (*Messenger, error) {
	var cfg config
	cfg.init()
	for _, opt := range options {
		err := opt(&cfg)
		if err != nil {
			return nil, err
		}
	}
	err := cfg.validate()
	if err != nil {
		return nil, err
	}

	m := &Messenger{ide: cfg.ide}
	webview := []peer.Option{peer.Name(string(Webview))}
	core := []peer.Option{peer.Name(string(Core))}
	for _, r := range cfg.routes {
		opt := peer.Handle(r.entry.MessageType(), r.handler)
		if r.origin == Webview {
			webview = append(webview, opt)
		} else {
			core = append(core, opt)
		}
	}
	for _, entry := range cfg.passThrough[Webview] {
		webview = append(webview, peer.Handle(entry.MessageType(), m.relay(Core)))
	}
	for _, entry := range cfg.passThrough[Core] {
		core = append(core, peer.Handle(entry.MessageType(), m.relay(Webview)))
	}
	m.webview = peer.New(append(webview, cfg.peers[Webview]...)...)
	m.core = peer.New(append(core, cfg.peers[Core]...)...)
	return m, nil
}

// Webview returns the peer that talks to the webview.
func (m *Messenger) Webview() *peer.Peer { return m.webview }

// Core returns the peer that talks to the core.
func (m *Messenger) Core() *peer.Peer { return m.core }

func (m *Messenger) endpoint(ep Endpoint) *peer.Peer {
	if ep == Webview {
		return m.webview
	}
	return m.core
}

// relay returns a handler that forwards a message to another endpoint and relays its response verbatim.
func (m *Messenger) relay(target Endpoint) peer.Handler {
	return func(ctx *peer.Scope) {
		from, to := ctx.Peer(), m.endpoint(target)
		data, err := protocol.Transcode(from.Codec(), to.Codec(), ctx.Data)
		if err != nil {
			_ = ctx.Fail(protocol.CodeBadRequest, fmt.Sprintf(`%v while forwarding to %v`, err, target))
			return
		}
		if ctx.Oneway() {
			err = to.Send(ctx, ctx.Type, data)
			if err != nil {
				hog.From(ctx).Warn().Err(err).Str(`type`, ctx.Type).Str(`to`, string(target)).Msg(`dropped forwarded message`)
			}
			return
		}
		msg, err := to.Request(ctx, ctx.Type, data)
		if err != nil {
			_ = ctx.Reject(relayFailure(err, target))
			return
		}
		data, err = protocol.Transcode(to.Codec(), from.Codec(), msg.Data)
		if err != nil {
			_ = ctx.Fail(protocol.CodeBadGateway, fmt.Sprintf(`%v while forwarding response from %v`, err, target))
			return
		}
		_ = ctx.Succ(peer.Raw(data))
	}
}

// relayFailure keeps a Fail from the far endpoint as is and classifies anything else.
func relayFailure(err error, target Endpoint) error {
	var fail *protocol.Fail
	switch {
	case errors.As(err, &fail):
		return fail
	case errors.Is(err, context.DeadlineExceeded):
		return protocol.Failf(protocol.CodeGatewayTimeout, `%v did not respond in time`, target)
	default:
		return protocol.Failf(protocol.CodeBadGateway, `%v while forwarding to %v`, err, target)
	}
}

// RequestCore sends a request originated by the IDE host to the core and waits for the response.
func RequestCore[I, O any](ctx context.Context, m *Messenger, def protocol.Def[I, O], input I) (O, error) {
	return request(ctx, m, Core, def, input)
}

// RequestWebview sends a request originated by the IDE host to the webview and waits for the response.
func RequestWebview[I, O any](ctx context.Context, m *Messenger, def protocol.Def[I, O], input I) (O, error) {
	return request(ctx, m, Webview, def, input)
}

// SendCore sends a fire-and-forget message originated by the IDE host to the core.
func SendCore[I, O any](ctx context.Context, m *Messenger, def protocol.Def[I, O], input I) error {
	return send(ctx, m, Core, def, input)
}

// SendWebview sends a fire-and-forget message originated by the IDE host to the webview.
func SendWebview[I, O any](ctx context.Context, m *Messenger, def protocol.Def[I, O], input I) error {
	return send(ctx, m, Webview, def, input)
}

func request[I, O any](ctx context.Context, m *Messenger, to Endpoint, def protocol.Def[I, O], input I) (O, error) {
	if !m.ide.Contains(def) {
		var zero O
		return zero, fmt.Errorf(`%w: %q`, ErrNotInTable, def.Name)
	}
	return peer.Invoke(ctx, m.endpoint(to), def, input)
}

func send[I, O any](ctx context.Context, m *Messenger, to Endpoint, def protocol.Def[I, O], input I) error {
	if !m.ide.Contains(def) {
		return fmt.Errorf(`%w: %q`, ErrNotInTable, def.Name)
	}
	return peer.Notify(ctx, m.endpoint(to), def, input)
}

// ServeWebview serves the channel to the webview until it closes or the context ends.
func (m *Messenger) ServeWebview(ctx context.Context, t peer.Transport) error {
	return m.webview.Serve(ctx, t)
}

// ServeCore serves the channel to the core until it closes or the context ends.
func (m *Messenger) ServeCore(ctx context.Context, t peer.Transport) error {
	return m.core.Serve(ctx, t)
}

// Serve serves both channels until both close, either one fails or the context ends.
func (m *Messenger) Serve(ctx context.Context, webview, core peer.Transport) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.ServeWebview(ctx, webview) })
	g.Go(func() error { return m.ServeCore(ctx, core) })
	return g.Wait()
}
