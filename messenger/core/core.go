// Package core implements a small core endpoint: the process that holds the extension's logic and talks to the IDE
// host over a single channel.  It keeps chat history and development data, reports indexing progress to the webview,
// and calls back into IDE capabilities through the host.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/swdunlop/html-go/hog"
	"github.com/swdunlop/messenger-go/internal/history"
	"github.com/swdunlop/messenger-go/messenger/peer"
	"github.com/swdunlop/messenger-go/messenger/protocol"
)

// An Option affects the construction of a Core.
type Option func(*Core) error

// Store sets the history store; without one, history and development data are kept in memory.
func Store(store *history.Store) Option {
	return func(c *Core) error {
		c.store = store
		return nil
	}
}

// Profile sets the profile the core describes to the webview.
func Profile(id, title string, models ...string) Option {
	return func(c *Core) error {
		if id == `` {
			return errors.New(`profile id is required`)
		}
		c.profile = protocol.ProfileDescription{ID: id, Title: title}
		c.models = models
		return nil
	}
}

// PeerOptions adds options to the peer that talks to the host, such as its codec.
func PeerOptions(options ...peer.Option) Option {
	return func(c *Core) error {
		c.options = append(c.options, options...)
		return nil
	}
}

// A Core answers the messages the host forwards from the webview and the messages the host originates.
type Core struct {
	peer    *peer.Peer
	store   *history.Store
	ownsDB  bool
	options []peer.Option
	profile protocol.ProfileDescription
	models  []string

	mu      sync.Mutex
	paused  bool
	changed []string
	running map[int]context.CancelFunc
	seq     int
}

// New creates a core.
func New(ctx context.Context, options ...Option) (*Core, error) {
	c := &Core{
		profile: protocol.ProfileDescription{ID: `local`, Title: `Local`},
		running: make(map[int]context.CancelFunc),
	}
	for _, opt := range options {
		err := opt(c)
		if err != nil {
			return nil, err
		}
	}
	if c.store == nil {
		store, err := history.Open(``)
		if err != nil {
			return nil, err
		}
		err = store.Init(ctx)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		c.store, c.ownsDB = store, true
	}
	c.peer = peer.New(append([]peer.Option{
		peer.Name(`host`),
		peer.Fn(protocol.Ping, c.ping),
		peer.Fn(protocol.Abort, c.abort),
		peer.Fn(protocol.HistoryList, c.historyList),
		peer.Fn(protocol.HistoryLoad, c.historyLoad),
		peer.Fn(protocol.HistorySave, c.historySave),
		peer.Fn(protocol.HistoryDelete, c.historyDelete),
		peer.Fn(protocol.DevDataLogEvent, c.devDataLog),
		peer.Fn(protocol.StatsTokensPerDay, c.tokensPerDay),
		peer.Fn(protocol.GetSerializedProfileInfo, c.profileInfo),
		peer.Fn(protocol.ListProfiles, c.listProfiles),
		peer.Fn(protocol.IndexSetPaused, c.setPaused),
		peer.Fn(protocol.IndexForceReIndex, c.reindex),
		peer.Fn(protocol.FilesChanged, c.filesChanged),
	}, c.options...)...)
	return c, nil
}

// Peer returns the peer that talks to the host.
func (c *Core) Peer() *peer.Peer { return c.peer }

// Serve serves the channel to the host until it closes or the context ends.
func (c *Core) Serve(ctx context.Context, t peer.Transport) error {
	return c.peer.Serve(ctx, t)
}

// Close releases the in-memory store created by New; a store passed with the Store option is left open.
func (c *Core) Close() error {
	if c.ownsDB {
		return c.store.Close()
	}
	return nil
}

// Paused returns true if indexing is paused.
func (c *Core) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Changed returns the URIs reported by files/changed, oldest first.
func (c *Core) Changed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.changed...)
}

// track derives a context that abort cancels.
func (c *Core) track(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	id := c.seq
	c.seq++
	c.running[id] = cancel
	c.mu.Unlock()
	return ctx, func() {
		c.mu.Lock()
		delete(c.running, id)
		c.mu.Unlock()
		cancel()
	}
}

func (c *Core) ping(ctx *peer.Scope, in string) (string, error) {
	if in != `ping` {
		return ``, protocol.Failf(protocol.CodeBadRequest, `ping message incorrect: %q`, in)
	}
	return `pong`, nil
}

func (c *Core) abort(ctx *peer.Scope, _ protocol.Empty) (protocol.Empty, error) {
	c.mu.Lock()
	n := len(c.running)
	for id, cancel := range c.running {
		cancel()
		delete(c.running, id)
	}
	c.mu.Unlock()
	hog.From(ctx).Info().Int(`cancelled`, n).Msg(`abort`)
	return protocol.Empty{}, nil
}

func (c *Core) historyList(ctx *peer.Scope, in protocol.ListHistoryRequest) ([]protocol.SessionInfo, error) {
	return c.store.List(ctx, in.Offset, in.Limit)
}

func (c *Core) historyLoad(ctx *peer.Scope, in protocol.IDRequest) (protocol.Session, error) {
	session, err := c.store.Load(ctx, in.ID)
	if errors.Is(err, history.ErrNotFound) {
		return session, protocol.Failf(protocol.CodeNotFound, `%v`, err)
	}
	return session, err
}

func (c *Core) historySave(ctx *peer.Scope, in protocol.Session) (protocol.Empty, error) {
	if in.SessionID == `` {
		return protocol.Empty{}, protocol.Failf(protocol.CodeBadRequest, `session id is required`)
	}
	return protocol.Empty{}, c.store.Save(ctx, in)
}

func (c *Core) historyDelete(ctx *peer.Scope, in protocol.IDRequest) (protocol.Empty, error) {
	return protocol.Empty{}, c.store.Delete(ctx, in.ID)
}

func (c *Core) devDataLog(ctx *peer.Scope, in protocol.DevDataLog) (protocol.Empty, error) {
	err := c.store.LogDevData(ctx, in.TableName, in.Data)
	if err != nil {
		hog.From(ctx).Warn().Err(err).Str(`table`, in.TableName).Msg(`dropped devdata`)
	}
	return protocol.Empty{}, err
}

func (c *Core) tokensPerDay(ctx *peer.Scope, _ protocol.Empty) ([]protocol.DailyTokens, error) {
	return c.store.TokensPerDay(ctx)
}

// profileInfo asks the IDE host for the workspace directories, which is a request from the core to the host made
// while the host waits for this response.
func (c *Core) profileInfo(ctx *peer.Scope, _ protocol.Empty) (protocol.SerializedProfileInfo, error) {
	dirs, err := peer.Invoke(ctx, c.peer, protocol.GetWorkspaceDirs, protocol.Empty{})
	if err != nil {
		return protocol.SerializedProfileInfo{}, fmt.Errorf(`%w while listing workspace directories`, err)
	}
	return protocol.SerializedProfileInfo{
		ProfileID:     c.profile.ID,
		Title:         c.profile.Title,
		Models:        append([]string{}, c.models...),
		WorkspaceDirs: dirs,
	}, nil
}

func (c *Core) listProfiles(ctx *peer.Scope, _ protocol.Empty) ([]protocol.ProfileDescription, error) {
	return []protocol.ProfileDescription{c.profile}, nil
}

func (c *Core) setPaused(ctx *peer.Scope, paused bool) (protocol.Empty, error) {
	c.mu.Lock()
	c.paused = paused
	c.mu.Unlock()
	status := protocol.IndexingProgress{Progress: 1, Desc: `Indexing resumed`, Status: `done`}
	if paused {
		status = protocol.IndexingProgress{Desc: `Indexing paused`, Status: `paused`}
	}
	return protocol.Empty{}, c.progress(ctx, status)
}

// reindex walks the top level of each workspace directory through the host, reporting progress to the webview.
func (c *Core) reindex(scope *peer.Scope, in protocol.ReindexRequest) (protocol.Empty, error) {
	ctx, done := c.track(scope)
	defer done()
	if c.Paused() {
		return protocol.Empty{}, c.progress(ctx, protocol.IndexingProgress{Desc: `Indexing paused`, Status: `paused`})
	}
	dirs := in.Dirs
	if len(dirs) == 0 {
		var err error
		dirs, err = peer.Invoke(ctx, c.peer, protocol.GetWorkspaceDirs, protocol.Empty{})
		if err != nil {
			return protocol.Empty{}, err
		}
	}
	err := c.progress(ctx, protocol.IndexingProgress{Desc: `Loading`, Status: `loading`})
	if err != nil {
		return protocol.Empty{}, err
	}
	files := 0
	for i, dir := range dirs {
		entries, err := peer.Invoke(ctx, c.peer, protocol.ListDir, protocol.DirRequest{Dir: dir})
		if err != nil {
			_ = c.progress(scope, protocol.IndexingProgress{
				Progress: float64(i) / float64(len(dirs)),
				Desc:     err.Error(),
				Status:   `failed`,
			})
			return protocol.Empty{}, fmt.Errorf(`%w while indexing %v`, err, dir)
		}
		files += len(entries)
		err = c.progress(ctx, protocol.IndexingProgress{
			Progress: float64(i+1) / float64(len(dirs)),
			Desc:     fmt.Sprintf(`Indexing %v`, dir),
			Status:   `indexing`,
		})
		if err != nil {
			return protocol.Empty{}, err
		}
	}
	hog.From(ctx).Info().Int(`dirs`, len(dirs)).Int(`entries`, files).Msg(`indexed`)
	return protocol.Empty{}, c.progress(ctx, protocol.IndexingProgress{Progress: 1, Desc: `Indexing complete`, Status: `done`})
}

func (c *Core) progress(ctx context.Context, progress protocol.IndexingProgress) error {
	return peer.Notify(ctx, c.peer, protocol.IndexProgress, progress)
}

func (c *Core) filesChanged(ctx *peer.Scope, in protocol.FilesRequest) (protocol.Empty, error) {
	c.mu.Lock()
	c.changed = append(c.changed, in.URIs...)
	c.mu.Unlock()
	hog.From(ctx).Debug().Strs(`uris`, in.URIs).Msg(`files changed`)
	return protocol.Empty{}, nil
}
