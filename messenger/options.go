package messenger

import (
	"fmt"

	"github.com/swdunlop/messenger-go/messenger/peer"
	"github.com/swdunlop/messenger-go/messenger/protocol"
)

// An Option affects the construction of a Messenger.
type Option func(*config) error

type config struct {
	routes      []route
	tables      map[Endpoint]*protocol.Table
	ide         *protocol.Table
	passThrough map[Endpoint][]protocol.Entry
	peers       map[Endpoint][]peer.Option
}

type route struct {
	origin  Endpoint
	entry   protocol.Entry
	handler peer.Handler
}

func (cfg *config) init() {
	cfg.tables = map[Endpoint]*protocol.Table{
		Webview: protocol.FromWebview,
		Core:    protocol.FromCore,
	}
	cfg.ide = protocol.FromIDE
	cfg.passThrough = map[Endpoint][]protocol.Entry{
		Webview: protocol.WebviewToCore,
		Core:    protocol.CoreToWebview,
	}
	cfg.peers = make(map[Endpoint][]peer.Option, 2)
}

// OnWebview handles a message type sent by the webview.
func OnWebview[I, O any](def protocol.Def[I, O], fn func(*peer.Scope, I) (O, error)) Option {
	return Handle(Webview, def, peer.Func(fn))
}

// OnCore handles a message type sent by the core.
func OnCore[I, O any](def protocol.Def[I, O], fn func(*peer.Scope, I) (O, error)) Option {
	return Handle(Core, def, peer.Func(fn))
}

// OnWebviewOrCore handles a message type that either the webview or the core may send, which is how IDE capabilities
// are exposed.
func OnWebviewOrCore[I, O any](def protocol.Def[I, O], fn func(*peer.Scope, I) (O, error)) Option {
	handler := peer.Func(fn)
	return func(cfg *config) error {
		err := Handle(Webview, def, handler)(cfg)
		if err != nil {
			return err
		}
		return Handle(Core, def, handler)(cfg)
	}
}

// Handle handles a message type sent by an endpoint with an untyped handler.  The entry must be part of the
// endpoint's protocol table.
func Handle(origin Endpoint, entry protocol.Entry, handler peer.Handler) Option {
	return func(cfg *config) error {
		if origin != Webview && origin != Core {
			return fmt.Errorf(`unsupported origin %q`, origin)
		}
		cfg.routes = append(cfg.routes, route{origin, entry, handler})
		return nil
	}
}

// Options combines several options into one.
func Options(options ...Option) Option {
	return func(cfg *config) error {
		for _, opt := range options {
			err := opt(cfg)
			if err != nil {
				return err
			}
		}
		return nil
	}
}

// PassThrough replaces the list of message types forwarded from an endpoint to the other endpoint without being
// handled.  By default the webview forwards protocol.WebviewToCore and the core forwards protocol.CoreToWebview.
func PassThrough(origin Endpoint, entries ...protocol.Entry) Option {
	return func(cfg *config) error {
		if origin != Webview && origin != Core {
			return fmt.Errorf(`unsupported origin %q`, origin)
		}
		cfg.passThrough[origin] = entries
		return nil
	}
}

// Tables replaces the protocol tables for messages sent by the webview, the core and the IDE host.
func Tables(fromWebview, fromCore, fromIDE *protocol.Table) Option {
	return func(cfg *config) error {
		cfg.tables[Webview] = fromWebview
		cfg.tables[Core] = fromCore
		cfg.ide = fromIDE
		return nil
	}
}

// WebviewOptions adds options to the peer that talks to the webview, such as its codec.  Handlers must be added with
// Handle or OnWebview instead, so New rejects peer.Handle and peer.Fn here.
func WebviewOptions(options ...peer.Option) Option {
	return func(cfg *config) error {
		cfg.peers[Webview] = append(cfg.peers[Webview], options...)
		return nil
	}
}

// CoreOptions adds options to the peer that talks to the core.  Like WebviewOptions, it may not register handlers.
func CoreOptions(options ...peer.Option) Option {
	return func(cfg *config) error {
		cfg.peers[Core] = append(cfg.peers[Core], options...)
		return nil
	}
}

// PeerOptions adds options to both peers.  Like WebviewOptions, it may not register handlers.
func PeerOptions(options ...peer.Option) Option {
	return func(cfg *config) error {
		cfg.peers[Webview] = append(cfg.peers[Webview], options...)
		cfg.peers[Core] = append(cfg.peers[Core], options...)
		return nil
	}
}

// validate checks the route table before anything is installed.
func (cfg *config) validate() error {
	err := protocol.Validate(cfg.tables[Webview], cfg.tables[Core], cfg.ide)
	if err != nil {
		return err
	}
	for _, origin := range []Endpoint{Webview, Core} {
		err = protocol.Subset(cfg.tables[origin], cfg.passThrough[origin])
		if err != nil {
			return fmt.Errorf(`%w in the %v pass-through list`, err, origin)
		}
		if types := peer.HandledTypes(cfg.peers[origin]...); len(types) > 0 {
			return fmt.Errorf(`%q from the %v is handled by a peer option instead of a route`, types[0], origin)
		}
	}

	passing := make(map[Endpoint]map[string]bool, 2)
	for origin, entries := range cfg.passThrough {
		passing[origin] = make(map[string]bool, len(entries))
		for _, entry := range entries {
			passing[origin][entry.MessageType()] = true
		}
	}
	handled := make(map[Endpoint]map[string]bool, 2)
	for _, r := range cfg.routes {
		name := r.entry.MessageType()
		switch {
		case handled[r.origin][name]:
			return fmt.Errorf(`%q from the %v has more than one handler`, name, r.origin)
		case passing[r.origin][name]:
			return fmt.Errorf(`%q from the %v is both handled and passed through`, name, r.origin)
		case !cfg.tables[r.origin].Contains(r.entry):
			return fmt.Errorf(`%q is not part of the %v protocol table`, name, r.origin)
		}
		if handled[r.origin] == nil {
			handled[r.origin] = make(map[string]bool)
		}
		handled[r.origin][name] = true
	}
	return nil
}
