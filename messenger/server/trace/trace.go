// Package trace publishes every envelope the host routes as a stream of server-sent events, so a developer can watch
// the traffic between the webview, the host and the core.
package trace

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/swdunlop/html-go/hog"
	"github.com/swdunlop/messenger-go/messenger/peer"
	"github.com/swdunlop/messenger-go/messenger/protocol"
	"github.com/swdunlop/messenger-go/messenger/server"
	"github.com/swdunlop/messenger-go/messenger/server/hook"
	"github.com/tmaxmax/go-sse"
)

// Pattern is where the trace stream is mounted by default.
const Pattern = `GET /_messenger/trace`

// A Record is the data of one trace event.
type Record struct {
	Peer      string         `json:"peer"`
	Direction string         `json:"direction"` // "in" or "out", relative to the host
	Type      string         `json:"type"`
	ID        string         `json:"id,omitempty"`
	Reply     bool           `json:"reply,omitempty"`
	Error     *protocol.Fail `json:"error,omitempty"`
	Size      int            `json:"size"`
}

// A Trace fans envelopes out to every connected event stream.  Observe never blocks; envelopes that arrive while the
// buffer is full are counted and dropped.
type Trace struct {
	pattern string
	events  chan Record
	sse     sse.Server
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

// An Option configures a Trace.
type Option func(*Trace)

// Mount changes the pattern the stream is mounted at.
func Mount(pattern string) Option {
	return func(tr *Trace) { tr.pattern = pattern }
}

// Buffer changes how many envelopes may wait to be published.
func Buffer(n int) Option {
	return func(tr *Trace) { tr.events = make(chan Record, n) }
}

// New starts a trace; Close stops it.
func New(options ...Option) *Trace {
	tr := &Trace{
		pattern: Pattern,
		events:  make(chan Record, 256),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range options {
		opt(tr)
	}
	go tr.pump()
	return tr
}

// Server returns a server option that mounts the stream.
func (tr *Trace) Server() server.Option { return server.Hook(tr) }

// Observe implements a peer.Trace function.
func (tr *Trace) Observe(ev peer.Event) {
	rec := Record{
		Peer:      ev.Peer,
		Direction: `out`,
		Type:      ev.Message.Type,
		ID:        ev.Message.ID,
		Reply:     ev.Message.Reply,
		Error:     ev.Message.Error,
		Size:      len(ev.Message.Data),
	}
	if ev.Inbound {
		rec.Direction = `in`
	}
	select {
	case tr.events <- rec:
	case <-tr.done:
	default:
		tr.dropped.Add(1)
	}
}

// Dropped returns how many envelopes were dropped because the buffer was full.
func (tr *Trace) Dropped() uint64 { return tr.dropped.Load() }

func (tr *Trace) pump() {
	defer close(tr.stopped)
	for {
		select {
		case <-tr.done:
			return
		case rec := <-tr.events:
			data, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			msg := &sse.Message{Type: sse.Type(`message`)}
			msg.AppendData(string(data))
			err = tr.sse.Publish(msg)
			if err != nil {
				hog.From(context.Background()).Debug().Err(err).Msg(`failed to publish trace`)
			}
		}
	}
}

// ServeHTTP streams events to one client until it disconnects or the trace is closed.
func (tr *Trace) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tr.sse.ServeHTTP(w, r)
}

// DependsOn implements hook.Dependent, so the stream is mounted after the routes it reports on and closed before them.
func (tr *Trace) DependsOn() []string { return []string{`routes`} }

var (
	_ hook.Mux       = (*Trace)(nil)
	_ hook.Closer    = (*Trace)(nil)
	_ hook.Dependent = (*Trace)(nil)
)

// SetupMux implements hook.Mux.
func (tr *Trace) SetupMux(mux *http.ServeMux) {
	mux.Handle(tr.pattern, tr)
}

// Close stops publishing and disconnects every stream.
func (tr *Trace) Close() error {
	var err error
	tr.once.Do(func() {
		close(tr.done)
		<-tr.stopped
		err = tr.sse.Shutdown(context.Background())
	})
	return err
}
