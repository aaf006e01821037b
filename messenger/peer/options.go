package peer

import (
	"maps"
	"slices"
	"time"

	"github.com/swdunlop/messenger-go/messenger/protocol"
)

// An Option affects the configuration of a Peer.
type Option func(*config)

type config struct {
	name     string
	codec    protocol.Codec
	ids      protocol.IDGenerator
	timeout  time.Duration
	handler  Handler
	handlers map[string]Handler
	traces   []func(Event)
}

// Name names the peer in logs and trace events, such as "webview" or "core".
func Name(name string) Option {
	return func(cfg *config) { cfg.name = name }
}

// Codec selects the codec used on the wire.  Defaults to protocol.JSON.
func Codec(codec protocol.Codec) Option {
	return func(cfg *config) { cfg.codec = codec }
}

// IDs selects how correlation ids are generated.  Defaults to protocol.UUIDs.
func IDs(ids protocol.IDGenerator) Option {
	return func(cfg *config) { cfg.ids = ids }
}

// Timeout bounds how long Request waits for a response when its context has no earlier deadline.  Defaults to zero,
// which waits until the response arrives, the context ends or the transport closes.
func Timeout(timeout time.Duration) Option {
	return func(cfg *config) { cfg.timeout = timeout }
}

// Use specifies middleware that is applied to all inbound messages that did not match a pending request.
func Use(fn func(Handler) Handler) Option {
	return func(cfg *config) {
		cfg.handler = fn(cfg.handler)
	}
}

// Handle registers a handler for a message type, replacing any previous handler.
func Handle(messageType string, handler Handler) Option {
	return func(cfg *config) { cfg.handlers[messageType] = handler }
}

// Fn registers a typed handler for a message type.
func Fn[I, O any](def protocol.Def[I, O], fn func(*Scope, I) (O, error)) Option {
	return Handle(def.Name, Func(fn))
}

// Trace registers a function that observes every envelope the peer sends or receives.  Trace functions are called
// from the read loop and from senders, so they must not block.
func Trace(fn func(Event)) Option {
	return func(cfg *config) { cfg.traces = append(cfg.traces, fn) }
}

// An Event describes one envelope observed by a Peer.
type Event struct {
	Peer    string
	Inbound bool
	Message protocol.Message
}

// HandledTypes lists the message types that the options register handlers for, in sorted order.
func HandledTypes(options ...Option) []string {
	var cfg config
	cfg.init(new(Peer), options...)
	return slices.Sorted(maps.Keys(cfg.handlers))
}

func (cfg *config) init(p *Peer, options ...Option) {
	cfg.codec = protocol.JSON
	cfg.ids = protocol.UUIDs()
	cfg.handlers = make(map[string]Handler, len(options))
	cfg.handler = p.handleMessage
	for _, opt := range options {
		opt(cfg)
	}
}

func (cfg *config) trace(inbound bool, msg protocol.Message) {
	for _, fn := range cfg.traces {
		fn(Event{Peer: cfg.name, Inbound: inbound, Message: msg})
	}
}
