package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/swdunlop/messenger-go/messenger/peer"
	"github.com/swdunlop/messenger-go/messenger/protocol"
	"github.com/swdunlop/messenger-go/messenger/transport/websocket"
	"github.com/swdunlop/zugzug-go"
	"github.com/swdunlop/zugzug-go/zug/parser"
)

var callURL string

func init() {
	tasks = append(tasks, zugzug.Tasks{
		{Name: "call", Use: "Sends one request to a running host as the webview and prints the JSON response", Fn: runCall,
			Parser: parser.New(
				parser.String(&configFile, "config", "c", "The TOML configuration file"),
				parser.String(&callURL, "url", "u", "The webview channel URL (default: derived from the host address)"),
			),
			Settings: configSettings,
		},
	}...)
}

// runCall expects a message type and an optional JSON payload, such as `call ping '"ping"'`.
func runCall(ctx context.Context) error {
	args := parser.Args(ctx)
	if len(args) < 1 || len(args) > 2 {
		return errors.New(`expected a message type and an optional JSON payload`)
	}
	messageType, payload := args[0], ``
	if len(args) == 2 {
		payload = args[1]
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	codec := cfg.WebviewCodec()
	data, err := protocol.Transcode(protocol.JSON, codec, []byte(payload))
	if err != nil {
		return fmt.Errorf(`%w while encoding the payload`, err)
	}

	url := callURL
	if url == `` {
		url = `ws://` + cfg.Addr + strings.TrimPrefix(WebviewPattern, `GET `)
	}
	conn, err := websocket.Dial(ctx, url, websocket.Binary(codec.Binary()))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p := peer.New(peer.Name(`host`), peer.Codec(codec), peer.IDs(cfg.IDs()), peer.Timeout(cfg.Timeout.Duration))
	served := make(chan error, 1)
	go func() { served <- p.Serve(ctx, conn) }()

	msg, err := requestWhenConnected(ctx, p, messageType, data, served)
	if err != nil {
		return err
	}
	out, err := protocol.Transcode(codec, protocol.JSON, msg.Data)
	if err != nil {
		return err
	}
	if len(out) == 0 {
		out = []byte(`null`)
	}
	_, err = fmt.Fprintf(os.Stdout, "%s\n", out)
	return err
}

// requestWhenConnected waits for Serve to bind the connection before sending the request.
func requestWhenConnected(ctx context.Context, p *peer.Peer, messageType string, data []byte, served <-chan error) (protocol.Message, error) {
	for !p.Connected() {
		select {
		case err := <-served:
			if err == nil {
				err = peer.ErrClosed
			}
			return protocol.Message{}, err
		case <-ctx.Done():
			return protocol.Message{}, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
	return p.Request(ctx, messageType, data)
}
