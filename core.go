package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/swdunlop/html-go/hog"
	"github.com/swdunlop/messenger-go/messenger/peer"
	"github.com/swdunlop/messenger-go/messenger/transport/nats"
	"github.com/swdunlop/messenger-go/messenger/transport/stdio"
	"github.com/swdunlop/zugzug-go"
	"github.com/swdunlop/zugzug-go/zug/parser"
)

func init() {
	tasks = append(tasks, zugzug.Tasks{
		{Name: "core", Use: "Runs the core, speaking to the IDE host over stdio or NATS", Fn: runCore,
			Parser: parser.New(
				parser.String(&configFile, "config", "c", "The TOML configuration file"),
			),
			Settings: configSettings,
		},
	}...)
}

// runCore serves the core over NATS when the configured transport is "nats", and over stdin and stdout otherwise,
// which is how the host's spawn transport starts it.
func runCore(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, store, err := openCore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var t peer.Transport
	if cfg.Core.Transport == `nats` {
		nc, err := nats.Connect(ctx, cfg.Core.NATSURL, `messenger-core`)
		if err != nil {
			return err
		}
		defer nc.Close()
		conn, err := nats.Core(nc, cfg.Core.Subject)
		if err != nil {
			return err
		}
		t = conn
	} else {
		t = stdio.Stdio(cfg.CoreCodec().Binary())
	}
	defer t.Close()
	hog.From(ctx).Info().Str(`history`, store.Path()).Msg(`core ready`)
	return c.Serve(ctx, t)
}
