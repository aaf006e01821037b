package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/swdunlop/html-go/hog"
	"github.com/swdunlop/messenger-go/internal/config"
	"github.com/swdunlop/messenger-go/internal/history"
	"github.com/swdunlop/messenger-go/messenger"
	"github.com/swdunlop/messenger-go/messenger/core"
	"github.com/swdunlop/messenger-go/messenger/ide"
	"github.com/swdunlop/messenger-go/messenger/ide/local"
	"github.com/swdunlop/messenger-go/messenger/ide/watcher"
	"github.com/swdunlop/messenger-go/messenger/peer"
	"github.com/swdunlop/messenger-go/messenger/protocol"
	"github.com/swdunlop/messenger-go/messenger/server"
	"github.com/swdunlop/messenger-go/messenger/server/api"
	listen "github.com/swdunlop/messenger-go/messenger/server/local"
	"github.com/swdunlop/messenger-go/messenger/server/tailscale"
	"github.com/swdunlop/messenger-go/messenger/server/trace"
	"github.com/swdunlop/messenger-go/messenger/transport/nats"
	"github.com/swdunlop/messenger-go/messenger/transport/pipe"
	"github.com/swdunlop/messenger-go/messenger/transport/stdio"
	"github.com/swdunlop/messenger-go/messenger/transport/websocket"
	"github.com/swdunlop/zugzug-go"
	"github.com/swdunlop/zugzug-go/zug/parser"
	"golang.org/x/sync/errgroup"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"
)

func init() {
	tasks = append(tasks, zugzug.Tasks{
		{Name: "host", Use: "Runs the IDE host, serving the webview channel and connecting to the core", Fn: runHost,
			Parser: parser.New(
				parser.String(&configFile, "config", "c", "The TOML configuration file"),
			),
			Settings: configSettings,
		},
	}...)
}

// WebviewPattern is where the webview opens its WebSocket.
const WebviewPattern = `GET /webview`

// AssetsPattern is where the files in the configured asset directory are served.
const AssetsPattern = `GET /`

func runHost(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lc, err := local.New(local.Workspace(cfg.Workspace...), local.StateDir(cfg.StateDir))
	if err != nil {
		return err
	}

	peerOptions := []peer.Option{peer.IDs(cfg.IDs()), peer.Timeout(cfg.Timeout.Duration)}
	var serverOptions []server.Option
	if cfg.Trace {
		tr := trace.New()
		peerOptions = append(peerOptions, peer.Trace(tr.Observe))
		serverOptions = append(serverOptions, tr.Server())
	}
	m, err := messenger.New(
		ide.Register(lc),
		messenger.PeerOptions(peerOptions...),
		messenger.WebviewOptions(peer.Codec(cfg.WebviewCodec())),
		messenger.CoreOptions(peer.Codec(cfg.CoreCodec())),
	)
	if err != nil {
		return err
	}

	serverOptions = append(serverOptions,
		webviewRoutes(cfg, m),
		listen.Listener(listen.TCP(cfg.Addr), listen.OnListen(func(addr net.Addr) {
			hog.From(ctx).Info().Str(`url`, `ws://`+addr.String()+`/webview`).Msg(`webview channel ready`)
		})),
	)
	if cfg.Tailnet != `` {
		serverOptions = append(serverOptions, tailnetListener(ctx, cfg))
	}
	svr, err := server.New(serverOptions...)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svr.Serve(ctx) })
	g.Go(func() error { return serveCore(ctx, cfg, m) })
	if cfg.Watch {
		g.Go(func() error { return watchWorkspace(ctx, lc, m) })
	}
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// webviewRoutes mounts the webview channel and, if an asset directory is configured, the files of the webview itself.
func webviewRoutes(cfg *config.Config, m *messenger.Messenger) server.Option {
	options := []api.Option{
		api.Use(api.Log),
		api.Handle(WebviewPattern, websocket.Handle(m.ServeWebview,
			websocket.Binary(cfg.WebviewCodec().Binary()),
			websocket.OriginPatterns(cfg.Origins...),
		)),
	}
	if cfg.Assets != `` {
		options = append(options, api.FS(os.DirFS(cfg.Assets), AssetsPattern))
	}
	return api.Routes(options...)
}

// tailnetListener serves the host on a Tailscale node named by cfg.Tailnet.
func tailnetListener(ctx context.Context, cfg *config.Config) server.Option {
	log := hog.From(ctx)
	address, scheme := `:443`, `wss`
	options := []tailscale.Option{
		tailscale.Hostname(cfg.Tailnet),
		tailscale.Logf(func(format string, args ...any) { log.Debug().Msgf(format, args...) }),
		tailscale.HookUp(func(_ *tsnet.Server, status *ipnstate.Status) error {
			if status.Self == nil {
				return nil
			}
			host := strings.TrimSuffix(status.Self.DNSName, `.`)
			log.Info().Str(`url`, scheme+`://`+host+`/webview`).Bool(`funnel`, cfg.TailnetFunnel).Msg(`tailnet webview channel ready`)
			return nil
		}),
	}
	if cfg.StateDir != `` {
		options = append(options, tailscale.Dir(filepath.Join(cfg.StateDir, `tailscale`)))
	}
	if cfg.TailnetFunnel {
		options = append(options, tailscale.Funnel())
	}
	if cfg.TailnetNoTLS {
		address, scheme = `:80`, `ws`
		options = append(options, tailscale.NoTLS())
	}
	return tailscale.Listener(address, options...)
}

// serveCore connects the messenger to the core over the configured transport until either side stops.
func serveCore(ctx context.Context, cfg *config.Config, m *messenger.Messenger) error {
	ctx = hog.With(ctx, func(z zerolog.Context) zerolog.Context {
		return z.Str(`core`, cfg.Core.Transport)
	})
	switch cfg.Core.Transport {
	case `spawn`:
		cmd := exec.CommandContext(ctx, cfg.Core.Command, cfg.Core.Args...)
		cmd.Stderr = os.Stderr
		stream, err := stdio.Spawn(cmd, cfg.CoreCodec().Binary())
		if err != nil {
			return err
		}
		defer stream.Close()
		hog.From(ctx).Info().Str(`command`, cmd.String()).Msg(`spawned core`)
		return m.ServeCore(ctx, stream)

	case `nats`:
		nc, err := nats.Connect(ctx, cfg.Core.NATSURL, `messenger-host`)
		if err != nil {
			return err
		}
		defer nc.Close()
		conn, err := nats.Host(nc, cfg.Core.Subject)
		if err != nil {
			return err
		}
		defer conn.Close()
		return m.ServeCore(ctx, conn)

	default:
		c, store, err := openCore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		near, far := pipe.New()
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return m.ServeCore(ctx, near) })
		g.Go(func() error { return c.Serve(ctx, far) })
		return g.Wait()
	}
}

// openCore opens the history store and builds a core that uses it.
func openCore(ctx context.Context, cfg *config.Config) (*core.Core, *history.Store, error) {
	store, err := history.Open(cfg.Core.History)
	if err != nil {
		return nil, nil, err
	}
	err = store.Init(ctx)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	c, err := core.New(ctx,
		core.Store(store),
		core.PeerOptions(peer.Codec(cfg.CoreCodec()), peer.IDs(cfg.IDs()), peer.Timeout(cfg.Timeout.Duration)),
	)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return c, store, nil
}

// A workspace lists the directories to watch, like ide.IDE.
type workspace interface {
	GetWorkspaceDirs(ctx context.Context) ([]string, error)
}

// watchWorkspace reports changed files to the core as they are written.
func watchWorkspace(ctx context.Context, ws workspace, m *messenger.Messenger) error {
	dirs, err := ws.GetWorkspaceDirs(ctx)
	if err != nil {
		return fmt.Errorf(`%w while resolving the workspace to watch`, err)
	}
	w, err := watcher.Start(watcher.Directory(dirs...), watcher.Exclude(`node_modules/**`, `**/node_modules/**`))
	if err != nil {
		return err
	}
	defer w.Shutdown()
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-w.Changes():
			if !ok {
				return nil
			}
			uris := make([]string, len(batch))
			for i, path := range batch {
				uris[i] = (&url.URL{Scheme: `file`, Path: filepath.ToSlash(path)}).String()
			}
			err := messenger.SendCore(ctx, m, protocol.FilesChanged, protocol.FilesRequest{URIs: uris})
			if err != nil {
				hog.From(ctx).Debug().Err(err).Int(`files`, len(uris)).Msg(`dropped file changes`)
			}
		}
	}
}
