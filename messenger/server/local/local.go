// Package local listens for the host's HTTP server on a TCP address or a Unix socket.
package local

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/swdunlop/messenger-go/messenger/server"
	"github.com/swdunlop/messenger-go/messenger/server/hook"
)

// Listener returns a server option that adds a network listener.
func Listener(options ...Option) server.Option {
	return func(s *server.Server) error {
		var cfg config
		for _, option := range options {
			err := option(&cfg)
			if err != nil {
				return err
			}
		}
		if cfg.network == `` || cfg.address == `` {
			return errors.New(`local listeners must configure both network and address`)
		}
		s.Hook(&cfg)
		return nil
	}
}

// An Option is a function that configures a local listener.
type Option func(*config) error

type config struct {
	network   string
	address   string
	keepAlive time.Duration
	onListen  []func(net.Addr)
}

// TCP returns an Option that sets the listener to a TCP socket on the provided address.
func TCP(address string) Option {
	return Listen(`tcp`, address)
}

// Unix returns an Option that sets the listener to a Unix socket on the provided path.
func Unix(path string) Option {
	return Listen(`unix`, path)
}

// Listen returns an Option that sets the listener to the provided network and address.
func Listen(network, address string) Option {
	return func(cfg *config) error {
		cfg.network = network
		cfg.address = address
		return nil
	}
}

// KeepAlive specifies the keepalive duration for connections accepted by the listener.
func KeepAlive(keepalive time.Duration) Option {
	return func(cfg *config) error {
		cfg.keepAlive = keepalive
		return nil
	}
}

// OnListen adds a function that is called with the bound address once the listener is open, which is how callers
// learn the port chosen for an address like "127.0.0.1:0".
func OnListen(fn func(net.Addr)) Option {
	return func(cfg *config) error {
		cfg.onListen = append(cfg.onListen, fn)
		return nil
	}
}

// Listen implements hook.Listen.
func (cfg *config) Listen(ctx context.Context, lc *net.ListenConfig) (net.Listener, error) {
	lcf := *lc
	if cfg.keepAlive != 0 {
		lcf.KeepAlive = cfg.keepAlive
	}
	lr, err := lcf.Listen(ctx, cfg.network, cfg.address)
	if err != nil {
		return nil, err
	}
	for _, fn := range cfg.onListen {
		fn(lr.Addr())
	}
	return lr, nil
}

var _ hook.Listen = (*config)(nil)
