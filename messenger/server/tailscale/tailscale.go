// Package tailscale lets the host's HTTP server accept webview connections from a tailnet.
package tailscale

import (
	"context"
	"errors"
	"net"

	"github.com/swdunlop/messenger-go/messenger/server"
	"github.com/swdunlop/messenger-go/messenger/server/hook"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"
)

// Listener returns a server option that listens on the provided address of a Tailscale node.
func Listener(address string, options ...Option) server.Option {
	return func(s *server.Server) error {
		cfg := &config{listen: address}
		for _, option := range options {
			err := option(cfg)
			if err != nil {
				return err
			}
		}
		if cfg.funnel && cfg.noTLS {
			return errors.New(`funnels are required to use TLS by Tailscale`)
		}
		s.Hook(cfg)
		return nil
	}
}

type config struct {
	tsnet   tsnet.Server
	funnel  bool
	noTLS   bool
	upHooks []func(*tsnet.Server, *ipnstate.Status) error
	listen  string
	up      bool
}

// Listen implements hook.Listen by bringing the node up and listening on it.
func (cfg *config) Listen(ctx context.Context, _ *net.ListenConfig) (net.Listener, error) {
	status, err := cfg.tsnet.Up(ctx)
	if err != nil {
		return nil, err
	}
	cfg.up = true
	for _, fn := range cfg.upHooks {
		err = fn(&cfg.tsnet, status)
		if err != nil {
			_ = cfg.Close()
			return nil, err
		}
	}
	switch {
	case cfg.funnel:
		return cfg.tsnet.ListenFunnel(`tcp`, cfg.listen)
	case cfg.noTLS:
		return cfg.tsnet.Listen(`tcp`, cfg.listen)
	default:
		return cfg.tsnet.ListenTLS(`tcp`, cfg.listen)
	}
}

// Close implements hook.Closer by shutting down the node.
func (cfg *config) Close() error {
	if !cfg.up {
		return nil
	}
	cfg.up = false
	return cfg.tsnet.Close()
}

var (
	_ hook.Listen = (*config)(nil)
	_ hook.Closer = (*config)(nil)
)

// An Option configures the Tailscale node.
type Option func(*config) error

// Dir specifies the state directory of the node.
func Dir(dir string) Option {
	return func(cfg *config) error {
		cfg.tsnet.Dir = dir
		return nil
	}
}

// Hostname specifies the name of your Tailscale host.  Defaults to the system hostname.
func Hostname(hostname string) Option {
	return func(cfg *config) error {
		cfg.tsnet.Hostname = hostname
		return nil
	}
}

// Funnel tells Tailscale to allow public IPs to connect to your service.
func Funnel() Option {
	return func(cfg *config) error {
		cfg.funnel = true
		return nil
	}
}

// NoTLS tells Tailscale to not use TLS.  This is incompatible with Funnel.
func NoTLS() Option {
	return func(cfg *config) error {
		cfg.noTLS = true
		return nil
	}
}

// Logf sets the logging function for the Tailscale server.  Tailscale is EXTREMELY chatty.
func Logf(f func(format string, args ...any)) Option {
	return func(cfg *config) error {
		cfg.tsnet.Logf = f
		return nil
	}
}

// HookUp adds a function that will be called when the Tailscale connection is established and authorized.  If the
// hook returns an error, the Tailscale connection will be closed.
func HookUp(fn func(*tsnet.Server, *ipnstate.Status) error) Option {
	return func(cfg *config) error {
		cfg.upHooks = append(cfg.upHooks, fn)
		return nil
	}
}
