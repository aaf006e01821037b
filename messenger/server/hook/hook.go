// Package hook defines interfaces that the server.Hook option recognizes and will apply at various stages of setting
// up the host's HTTP server.
package hook

import (
	"context"
	"net"
	"net/http"
	"sort"
)

// ListenConfig hooks are called before any listener is opened and may adjust the shared net.ListenConfig.
type ListenConfig interface {
	SetupListenConfig(*net.ListenConfig)
}

// Listen hooks open a listener for the server.  A server with no Listen hooks cannot be served.
type Listen interface {
	Listen(ctx context.Context, lc *net.ListenConfig) (net.Listener, error)
}

// Server hooks are called when the host is setting up a new HTTP server.
type Server interface {
	SetupServer(*http.Server)
}

// Mux hooks are called when the host is setting up a new HTTP multiplexer.
type Mux interface {
	SetupMux(*http.ServeMux)
}

// Closer hooks are closed after the server stops, in reverse order.
type Closer interface {
	Close() error
}

// Order will return the provided hooks in the order they were provided with adjustments made so that all dependent
// hooks are run after their dependencies.  Note that cyclic dependencies will not produce an error, the order will
// simply be best effort.
func Order(hooks ...any) []any {
	dependencies := make(map[string][]int, len(hooks))
	for i, hook := range hooks {
		if dependency, ok := hook.(Provider); ok {
			for _, name := range dependency.Provides() {
				dependencies[name] = append(dependencies[name], i)
			}
		}
	}
	order := make([]any, 0, len(hooks))
	placed := make([]bool, len(hooks))
	var place func(int)
	place = func(i int) {
		if placed[i] {
			return
		}
		placed[i] = true
		if dependent, ok := hooks[i].(Dependent); ok {
			names := dependent.DependsOn()
			items := make([]int, 0, len(names))
			for _, name := range names {
				items = append(items, dependencies[name]...)
			}
			sort.Ints(items) // try to preserve the original order as much as possible
			for _, j := range items {
				place(j)
			}
		}
		order = append(order, hooks[i])
	}
	for i := range hooks {
		place(i)
	}
	return order
}

// A Provider provides a name so that it can be referenced by a Dependent.
type Provider interface {
	Provides() []string
}

// A Dependent hook will not be called until all of its dependencies have been provided.
type Dependent interface {
	DependsOn() []string
}
