// Package websocket carries envelopes over a WebSocket, which is how a webview served by the IDE host reaches it.
// JSON envelopes travel as text messages and MessagePack envelopes as binary messages.
package websocket

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/swdunlop/html-go/hog"
	"github.com/swdunlop/messenger-go/messenger/peer"
	"nhooyr.io/websocket"
)

// An Option affects a WebSocket transport.
type Option func(*config)

type config struct {
	binary    bool
	readLimit int64
	origins   []string
}

func (cfg *config) init(options ...Option) {
	cfg.readLimit = -1
	for _, opt := range options {
		opt(cfg)
	}
}

// Binary sends and expects binary messages, for the MessagePack codec.  Defaults to text messages.
func Binary(binary bool) Option {
	return func(cfg *config) { cfg.binary = binary }
}

// ReadLimit specifies the maximum size of a read message.  Defaults to -1 which imposes no limit.
func ReadLimit(limit int64) Option {
	return func(cfg *config) { cfg.readLimit = limit }
}

// OriginPatterns lists the host patterns allowed to connect from another origin, such as a webview served from a
// custom scheme.
func OriginPatterns(patterns ...string) Option {
	return func(cfg *config) { cfg.origins = append(cfg.origins, patterns...) }
}

// Conn is a transport over an established WebSocket.
type Conn struct {
	c   *websocket.Conn
	typ websocket.MessageType
}

// New wraps an established WebSocket.
func New(c *websocket.Conn, options ...Option) *Conn {
	var cfg config
	cfg.init(options...)
	return wrap(c, &cfg)
}

func wrap(c *websocket.Conn, cfg *config) *Conn {
	c.SetReadLimit(cfg.readLimit)
	conn := &Conn{c: c, typ: websocket.MessageText}
	if cfg.binary {
		conn.typ = websocket.MessageBinary
	}
	return conn
}

// Dial connects to a WebSocket server.
func Dial(ctx context.Context, url string, options ...Option) (*Conn, error) {
	var cfg config
	cfg.init(options...)
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return wrap(c, &cfg), nil
}

// Read returns the next message, skipping messages of the wrong type.  It returns io.EOF when the far side closes the
// WebSocket.
func (conn *Conn) Read(ctx context.Context) ([]byte, error) {
	for {
		mt, msg, err := conn.c.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) < 0 && !errors.Is(err, net.ErrClosed) {
				return nil, err
			}
			return nil, io.EOF
		}
		if mt != conn.typ {
			continue
		}
		return msg, nil
	}
}

// Write sends one message.
func (conn *Conn) Write(ctx context.Context, data []byte) error {
	return conn.c.Write(ctx, conn.typ, data)
}

// Close closes the WebSocket with a normal closure.
func (conn *Conn) Close() error {
	return conn.c.Close(websocket.StatusNormalClosure, ``)
}

// Handle returns a http.Handler that upgrades the connection to a WebSocket and serves it until either side closes
// it.
func Handle(serve func(context.Context, peer.Transport) error, options ...Option) http.Handler {
	h := &handler{serve: serve}
	h.cfg.init(options...)
	return h
}

type handler struct {
	cfg   config
	serve func(context.Context, peer.Transport) error
}

// ServeHTTP implements http.Handler.
func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := h.serveHTTP(w, r)
	if err != nil {
		hog.For(r).Error().Err(err).Msg(`WebSocket error`)
	}
}

func (h *handler) serveHTTP(w http.ResponseWriter, r *http.Request) error {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.cfg.origins})
	if err != nil {
		return err
	}
	defer func() { _ = c.CloseNow() }()
	err = h.serve(r.Context(), wrap(c, &h.cfg))
	switch {
	case errors.Is(err, peer.ErrBusy):
		hog.For(r).Warn().Msg(`rejected a second connection`)
		return c.Close(websocket.StatusTryAgainLater, `endpoint is already connected`)
	case err != nil:
		_ = c.Close(websocket.StatusInternalError, ``)
		return err
	}
	return c.Close(websocket.StatusNormalClosure, ``)
}
