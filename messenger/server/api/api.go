// Package api contributes routes to the host's HTTP server.
package api

import (
	"io/fs"
	"net/http"
	"time"

	"github.com/swdunlop/html-go/hog"
	"github.com/swdunlop/messenger-go/messenger/server"
)

// Routes returns a server option that mounts the given routes.
func Routes(options ...Option) server.Option {
	return func(s *server.Server) error {
		var cfg config
		err := cfg.apply(options...)
		if err != nil {
			return err
		}
		s.Hook(&cfg)
		return nil
	}
}

// FS returns an option that serves the given file system at any of the given patterns.
func FS(filesystem fs.FS, patterns ...string) Option {
	return func(cfg *config) error {
		var handler http.Handler = http.FileServer(http.FS(filesystem))
		for _, pattern := range patterns {
			err := Handle(pattern, handler)(cfg)
			if err != nil {
				return err
			}
		}
		return nil
	}
}

// Use returns an option that applies the given middleware to all subsequent handlers.  You can stack middleware
// multiple times, the earliest middleware added will be the outermost layer and therefore will be run first.
func Use(fn func(http.Handler) http.Handler) Option {
	return func(cfg *config) error {
		cfg.middleware = append(cfg.middleware, fn)
		return nil
	}
}

// HandleFunc accepts a http.ServeMux pattern and a handler function.
func HandleFunc(pattern string, fn func(w http.ResponseWriter, r *http.Request)) Option {
	return Handle(pattern, http.HandlerFunc(fn))
}

// Handle accepts a http.ServeMux pattern and a http.Handler.
func Handle(pattern string, handler http.Handler) Option {
	return func(cfg *config) error {
		for i := len(cfg.middleware) - 1; i >= 0; i-- {
			handler = cfg.middleware[i](handler)
		}
		cfg.patternHandlers = append(cfg.patternHandlers, patternHandler{
			pattern: pattern,
			handler: handler,
		})
		return nil
	}
}

// Group organizes a group of options into a single option.  This is useful for isolating a set of handlers and
// middleware so that the middleware does not affect handlers outside of the group.
func Group(options ...Option) Option {
	return func(cfg *config) error {
		old := cfg.middleware
		defer func() { cfg.middleware = old }()
		for _, option := range options {
			err := option(cfg)
			if err != nil {
				return err
			}
		}
		return nil
	}
}

// Log is middleware that logs each request at debug level once it completes.
func Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		hog.For(r).Debug().
			Str(`method`, r.Method).
			Str(`path`, r.URL.Path).
			Str(`remote`, r.RemoteAddr).
			Dur(`elapsed`, time.Since(started)).
			Msg(`request`)
	})
}

// An Option configures a set of routes.
type Option func(*config) error

type config struct {
	middleware      []func(http.Handler) http.Handler
	patternHandlers []patternHandler
}

// SetupMux adds the configured handlers to the provided ServeMux, implementing the hook.Mux interface.
func (cfg *config) SetupMux(mux *http.ServeMux) {
	for _, it := range cfg.patternHandlers {
		mux.Handle(it.pattern, it.handler)
	}
}

// Provides names the routes so other hooks can depend on them.
func (cfg *config) Provides() []string { return []string{`routes`} }

type patternHandler struct {
	pattern string
	handler http.Handler
}

func (cfg *config) apply(options ...Option) error {
	for _, option := range options {
		err := option(cfg)
		if err != nil {
			return err
		}
	}
	return nil
}
