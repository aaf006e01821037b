package websocket

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdunlop/messenger-go/messenger/peer"
	"github.com/swdunlop/messenger-go/messenger/protocol"
)

var echo = protocol.Define[string, string](`echo`)

func TestWebSocket(t *testing.T) {
	for _, codec := range []protocol.Codec{protocol.JSON, protocol.MessagePack} {
		t.Run(codec.Name(), func(t *testing.T) {
			server := peer.New(peer.Name(`server`), peer.Codec(codec),
				peer.Fn(echo, func(ctx *peer.Scope, in string) (string, error) {
					return strings.ToUpper(in), nil
				}),
			)
			srv := httptest.NewServer(Handle(server.Serve, Binary(codec.Binary())))
			defer srv.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			conn, err := Dial(ctx, `ws`+strings.TrimPrefix(srv.URL, `http`), Binary(codec.Binary()))
			require.NoError(t, err)

			client := peer.New(peer.Name(`client`), peer.Codec(codec))
			served := make(chan error, 1)
			go func() { served <- client.Serve(ctx, conn) }()
			require.Eventually(t, client.Connected, time.Second, time.Millisecond)

			out, err := peer.Invoke(ctx, client, echo, `hello`)
			require.NoError(t, err)
			assert.Equal(t, `HELLO`, out)

			// A second client is turned away while the first is connected.
			require.Eventually(t, server.Connected, time.Second, time.Millisecond)
			second, err := Dial(ctx, `ws`+strings.TrimPrefix(srv.URL, `http`), Binary(codec.Binary()))
			require.NoError(t, err)
			_, err = second.Read(ctx)
			assert.ErrorIs(t, err, io.EOF)

			cancel()
			assert.NoError(t, <-served)
		})
	}
}
