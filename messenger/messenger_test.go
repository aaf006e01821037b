package messenger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdunlop/messenger-go/messenger/peer"
	"github.com/swdunlop/messenger-go/messenger/protocol"
	"github.com/swdunlop/messenger-go/messenger/transport/pipe"
	"golang.org/x/sync/errgroup"
)

// serve connects a messenger to a webview peer and a core peer over pipes until the test ends.  A nil peer leaves
// that endpoint disconnected.
func serve(t *testing.T, m *Messenger, webview, core *peer.Peer) {
	ctx, cancel := context.WithCancel(context.Background())
	var g errgroup.Group
	if webview != nil {
		near, far := pipe.New()
		g.Go(func() error { return m.ServeWebview(ctx, near) })
		g.Go(func() error { return webview.Serve(ctx, far) })
	}
	if core != nil {
		near, far := pipe.New()
		g.Go(func() error { return m.ServeCore(ctx, near) })
		g.Go(func() error { return core.Serve(ctx, far) })
	}
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, g.Wait())
	})
	require.Eventually(t, func() bool {
		return (webview == nil || webview.Connected() && m.Webview().Connected()) &&
			(core == nil || core.Connected() && m.Core().Connected())
	}, time.Second, time.Millisecond)
}

func workspaceDirs(ctx *peer.Scope, _ protocol.Empty) ([]string, error) {
	return []string{`/src/project`}, nil
}

// largeInt is 2^53 + 1, the smallest positive integer a float64 cannot hold.
const largeInt = 9007199254740993

func TestRouting(t *testing.T) {
	codecs := []protocol.Codec{protocol.JSON, protocol.MessagePack}
	for _, webviewCodec := range codecs {
		for _, coreCodec := range codecs {
			t.Run(webviewCodec.Name()+`-`+coreCodec.Name(), func(t *testing.T) {
				testRouting(t, webviewCodec, coreCodec)
			})
		}
	}
}

func testRouting(t *testing.T, webviewCodec, coreCodec protocol.Codec) {
	m, err := New(
		OnWebviewOrCore(protocol.GetWorkspaceDirs, workspaceDirs),
		WebviewOptions(peer.Codec(webviewCodec)),
		CoreOptions(peer.Codec(coreCodec)),
	)
	require.NoError(t, err)

	webview := peer.New(peer.Name(`ui`), peer.Codec(webviewCodec),
		peer.Fn(protocol.GetDefaultModelTitle, func(ctx *peer.Scope, _ protocol.Empty) (string, error) {
			return `gpt`, nil
		}),
		peer.Fn(protocol.GetWebviewHistoryLength, func(ctx *peer.Scope, _ protocol.Empty) (int, error) {
			return largeInt, nil
		}),
	)
	core := peer.New(peer.Name(`logic`), peer.Codec(coreCodec),
		peer.Fn(protocol.Ping, func(ctx *peer.Scope, in string) (string, error) {
			return `pong: ` + in, nil
		}),
		peer.Fn(protocol.HistoryList, func(ctx *peer.Scope, in protocol.ListHistoryRequest) ([]protocol.SessionInfo, error) {
			return []protocol.SessionInfo{{SessionID: `s1`, Title: `first`, DateCreated: `1700000000000`}}, nil
		}),
		peer.Fn(protocol.StatsTokensPerDay, func(ctx *peer.Scope, _ protocol.Empty) ([]protocol.DailyTokens, error) {
			return []protocol.DailyTokens{{Day: `2024-01-01`, PromptTokens: largeInt, GeneratedTokens: -largeInt}}, nil
		}),
	)
	serve(t, m, webview, core)
	ctx := context.Background()

	// Both endpoints reach the same IDE capability.
	dirs, err := peer.Invoke(ctx, webview, protocol.GetWorkspaceDirs, protocol.Empty{})
	require.NoError(t, err)
	assert.Equal(t, []string{`/src/project`}, dirs)
	dirs, err = peer.Invoke(ctx, core, protocol.GetWorkspaceDirs, protocol.Empty{})
	require.NoError(t, err)
	assert.Equal(t, []string{`/src/project`}, dirs)

	// The webview reaches the core through the host.
	pong, err := peer.Invoke(ctx, webview, protocol.Ping, `hello`)
	require.NoError(t, err)
	assert.Equal(t, `pong: hello`, pong)

	sessions, err := peer.Invoke(ctx, webview, protocol.HistoryList, protocol.ListHistoryRequest{Limit: 10})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, `first`, sessions[0].Title)

	// The core reaches the webview through the host.
	title, err := peer.Invoke(ctx, core, protocol.GetDefaultModelTitle, protocol.Empty{})
	require.NoError(t, err)
	assert.Equal(t, `gpt`, title)

	// Integers beyond float64 precision survive relays in both directions.
	tokens, err := peer.Invoke(ctx, webview, protocol.StatsTokensPerDay, protocol.Empty{})
	require.NoError(t, err)
	assert.Equal(t, []protocol.DailyTokens{{Day: `2024-01-01`, PromptTokens: largeInt, GeneratedTokens: -largeInt}}, tokens)
	length, err := peer.Invoke(ctx, core, protocol.GetWebviewHistoryLength, protocol.Empty{})
	require.NoError(t, err)
	assert.Equal(t, largeInt, length)

	assert.Zero(t, m.Webview().Pending())
	assert.Zero(t, m.Core().Pending())
}

func TestFireAndForget(t *testing.T) {
	aborted := make(chan struct{}, 1)
	progress := make(chan protocol.IndexingProgress, 1)
	files := make(chan []string, 1)
	webview := peer.New(peer.Fn(protocol.IndexProgress, func(ctx *peer.Scope, in protocol.IndexingProgress) (protocol.Empty, error) {
		progress <- in
		return protocol.Empty{}, nil
	}))
	core := peer.New(peer.Codec(protocol.MessagePack),
		peer.Fn(protocol.Abort, func(ctx *peer.Scope, _ protocol.Empty) (protocol.Empty, error) {
			aborted <- struct{}{}
			return protocol.Empty{}, nil
		}),
		peer.Fn(protocol.FilesChanged, func(ctx *peer.Scope, in protocol.FilesRequest) (protocol.Empty, error) {
			files <- in.URIs
			return protocol.Empty{}, nil
		}),
	)
	m, err := New(CoreOptions(peer.Codec(protocol.MessagePack)))
	require.NoError(t, err)
	serve(t, m, webview, core)
	ctx := context.Background()

	require.NoError(t, peer.Notify(ctx, webview, protocol.Abort, protocol.Empty{}))
	<-aborted

	require.NoError(t, peer.Notify(ctx, core, protocol.IndexProgress, protocol.IndexingProgress{Progress: 0.25, Status: `indexing`}))
	assert.Equal(t, protocol.IndexingProgress{Progress: 0.25, Status: `indexing`}, <-progress)

	require.NoError(t, SendCore(ctx, m, protocol.FilesChanged, protocol.FilesRequest{URIs: []string{`file:///a.go`}}))
	assert.Equal(t, []string{`file:///a.go`}, <-files)

	assert.Zero(t, webview.Pending())
	assert.Zero(t, core.Pending())
	assert.Zero(t, m.Core().Pending())
}

func TestPassThroughFailures(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	webview := peer.New()
	core := peer.New(peer.Fn(protocol.Ping, func(ctx *peer.Scope, in string) (string, error) {
		return ``, protocol.Failf(418, `not a teapot: %v`, in)
	}))
	serve(t, m, webview, core)
	ctx := context.Background()

	_, err = peer.Invoke(ctx, webview, protocol.Ping, `x`)
	assert.ErrorIs(t, err, &protocol.Fail{Code: 418, Message: `not a teapot: x`})

	// The core has no handler for history/list, so it answers with 404 and the host relays it.
	_, err = peer.Invoke(ctx, webview, protocol.HistoryList, protocol.ListHistoryRequest{})
	assert.ErrorIs(t, err, &protocol.Fail{Code: protocol.CodeNotFound})

	// The host has no route for a type outside the tables.
	_, err = webview.Request(ctx, `not/a/type`, nil)
	assert.ErrorIs(t, err, &protocol.Fail{Code: protocol.CodeNotFound})
}

func TestCoreDisconnected(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	webview := peer.New()
	serve(t, m, webview, nil)

	_, err = peer.Invoke(context.Background(), webview, protocol.Ping, `x`)
	assert.ErrorIs(t, err, &protocol.Fail{Code: protocol.CodeUnavailable})
	assert.Zero(t, m.Webview().Pending())
}

func TestCustomPassThrough(t *testing.T) {
	// A host that forwards getWorkspaceDirs to the core instead of answering it.
	m, err := New(PassThrough(Webview, protocol.GetWorkspaceDirs))
	require.NoError(t, err)
	webview := peer.New()
	core := peer.New(peer.Fn(protocol.GetWorkspaceDirs, func(ctx *peer.Scope, _ protocol.Empty) ([]string, error) {
		return []string{`/from/core`}, nil
	}))
	serve(t, m, webview, core)
	ctx := context.Background()

	dirs, err := peer.Invoke(ctx, webview, protocol.GetWorkspaceDirs, protocol.Empty{})
	require.NoError(t, err)
	assert.Equal(t, []string{`/from/core`}, dirs)

	// ping is no longer forwarded.
	_, err = peer.Invoke(ctx, webview, protocol.Ping, `x`)
	assert.ErrorIs(t, err, &protocol.Fail{Code: protocol.CodeNotFound})
}

func TestValidation(t *testing.T) {
	_, err := New(
		OnWebview(protocol.GetWorkspaceDirs, workspaceDirs),
		OnWebviewOrCore(protocol.GetWorkspaceDirs, workspaceDirs),
	)
	assert.ErrorContains(t, err, `more than one handler`)

	_, err = New(OnWebview(protocol.Ping, func(ctx *peer.Scope, in string) (string, error) { return in, nil }))
	assert.ErrorContains(t, err, `both handled and passed through`)

	_, err = New(OnWebviewOrCore(protocol.Ping, func(ctx *peer.Scope, in string) (string, error) { return in, nil }))
	assert.ErrorContains(t, err, `both handled and passed through`)

	_, err = New(OnCore(protocol.Ping, func(ctx *peer.Scope, in string) (string, error) { return in, nil }))
	assert.ErrorContains(t, err, `not part of the core protocol table`)

	_, err = New(OnCore(protocol.Define[int, int](`getWorkspaceDirs`), func(ctx *peer.Scope, in int) (int, error) { return in, nil }))
	assert.ErrorContains(t, err, `not part of the core protocol table`)

	_, err = New(PassThrough(Core, protocol.Ping))
	assert.ErrorContains(t, err, `pass-through`)

	// Handlers smuggled in through peer options would silently replace routes and relays.
	local := func(ctx *peer.Scope, in string) (string, error) { return `local`, nil }
	_, err = New(WebviewOptions(peer.Fn(protocol.Ping, local)))
	assert.ErrorContains(t, err, `"ping" from the webview is handled by a peer option`)
	_, err = New(CoreOptions(peer.Codec(protocol.MessagePack), peer.Fn(protocol.GetWorkspaceDirs, workspaceDirs)))
	assert.ErrorContains(t, err, `"getWorkspaceDirs" from the core is handled by a peer option`)
	_, err = New(PeerOptions(peer.Handle(`custom`, nil)))
	assert.ErrorContains(t, err, `handled by a peer option`)
	_, err = New(PeerOptions(peer.Use(func(next peer.Handler) peer.Handler { return next })))
	assert.NoError(t, err)

	_, err = New(Handle(`ide`, protocol.Ping, nil))
	assert.Error(t, err)

	_, err = New(Tables(
		protocol.MustTable(`webview`, protocol.Ping),
		protocol.MustTable(`core`, protocol.Define[int, string](`ping`)),
		protocol.FromIDE,
	), PassThrough(Webview), PassThrough(Core))
	assert.ErrorContains(t, err, `"ping"`)
}

func TestIDEOriginated(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	webview := peer.New(peer.Fn(protocol.ConfigUpdate, func(ctx *peer.Scope, in protocol.SerializedProfileInfo) (protocol.Empty, error) {
		return protocol.Empty{}, nil
	}))
	serve(t, m, webview, nil)
	ctx := context.Background()

	_, err = RequestWebview(ctx, m, protocol.ConfigUpdate, protocol.SerializedProfileInfo{Title: `default`})
	require.NoError(t, err)

	_, err = RequestWebview(ctx, m, protocol.GetDefaultModelTitle, protocol.Empty{})
	assert.ErrorIs(t, err, ErrNotInTable)
	_, err = RequestCore(ctx, m, protocol.Ping, `x`)
	assert.ErrorIs(t, err, ErrNotInTable)
	assert.ErrorIs(t, SendWebview(ctx, m, protocol.Ping, `x`), ErrNotInTable)

	err = SendCore(ctx, m, protocol.FilesChanged, protocol.FilesRequest{})
	assert.ErrorIs(t, err, peer.ErrNotConnected)
}
