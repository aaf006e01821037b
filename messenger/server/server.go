// Package server manages the host's HTTP service: a set of hooks that contribute routes, listeners and server
// settings, served together until the context ends.  The webview channel and the trace stream are mounted on it.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/swdunlop/html-go/hog"
	"github.com/swdunlop/messenger-go/messenger/server/hook"
	"golang.org/x/sync/errgroup"
)

// New returns a new server configuration.
func New(options ...Option) (*Server, error) {
	s := new(Server)
	err := s.Apply(options...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// A Server is a configuration of hooks that can be served once.
type Server struct {
	serve   bool            // true once Serve has been called
	serving bool            // true after Serve has been called and before it returns
	hooks   []any           // hooks to apply
	done    <-chan struct{} // closed when the server starts to shut down
}

// Done returns a channel that will be closed when the server starts to shut down.  This is nil unless the server
// has been started with a context.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Hook adds hooks to the configuration, see the hook package for interfaces that hooks can implement.  This is
// normally done by various options.
func (s *Server) Hook(hooks ...any) {
	s.hooks = append(s.hooks, hooks...)
}

// Apply applies the given options to the server; should not be called after Serve.
func (s *Server) Apply(options ...Option) error {
	if s.serving {
		return errors.New(`cannot apply options while a server is running`)
	} else if s.serve {
		return errors.New(`cannot apply options after a server has been run`)
	}

	for _, option := range options {
		err := option(s)
		if err != nil {
			return err
		}
	}
	return nil
}

// Serve opens every configured listener and serves HTTP on all of them until the context is cancelled or one of them
// fails.
func (s *Server) Serve(ctx context.Context) error {
	if s.serve {
		return errors.New(`a server can only be served once`)
	}
	s.serve = true
	s.serving = true

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.done = ctx.Done()
	defer func() { s.done, s.serving = nil, false }()

	hooks := hook.Order(s.hooks...)
	defer closeHooks(ctx, hooks)

	mux := http.NewServeMux()
	for _, it := range hooks {
		if impl, ok := it.(hook.Mux); ok {
			impl.SetupMux(mux)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	var svr http.Server
	svr.Handler = mux
	svr.BaseContext = func(net.Listener) context.Context { return ctx }
	for _, it := range hooks {
		if impl, ok := it.(hook.Server); ok {
			impl.SetupServer(&svr)
		}
	}

	var lcf net.ListenConfig
	for _, it := range hooks {
		if impl, ok := it.(hook.ListenConfig); ok {
			impl.SetupListenConfig(&lcf)
		}
	}

	var listeners []net.Listener
	for _, it := range hooks {
		impl, ok := it.(hook.Listen)
		if !ok {
			continue
		}
		lr, err := impl.Listen(ctx, &lcf)
		if err != nil {
			for _, lr := range listeners {
				_ = lr.Close()
			}
			return err
		}
		listeners = append(listeners, lr)
	}
	if len(listeners) == 0 {
		return errors.New(`no listeners configured`)
	}

	for _, lr := range listeners {
		// no need to close lr, svr.Shutdown will close it
		g.Go(func() error {
			hog.From(ctx).Info().Str(`address`, lr.Addr().String()).Msg(`starting HTTP service`)
			err := svr.Serve(lr)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		return svr.Shutdown(context.Background())
	})
	err := g.Wait()
	hog.From(ctx).Info().Err(err).Msg(`HTTP service stopped`)
	return err
}

func closeHooks(ctx context.Context, hooks []any) {
	for i := len(hooks) - 1; i >= 0; i-- {
		impl, ok := hooks[i].(hook.Closer)
		if !ok {
			continue
		}
		err := impl.Close()
		if err != nil {
			hog.From(ctx).Warn().Err(err).Msg(`failed to close server hook`)
		}
	}
}

// An Option is a function that modifies a Server before it is served.
type Option func(*Server) error

// Hook returns an option that adds hooks to the server.
func Hook(hooks ...any) Option {
	return func(s *Server) error {
		s.Hook(hooks...)
		return nil
	}
}
