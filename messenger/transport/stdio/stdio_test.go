package stdio

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdunlop/messenger-go/messenger/peer"
	"github.com/swdunlop/messenger-go/messenger/protocol"
)

var echo = protocol.Define[string, string](`echo`)

// pair connects two streams with in-memory pipes.
func pair(framed bool) (*Stream, *Stream) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	if framed {
		return Frames(ar, aw, ar, aw), Frames(br, bw, br, bw)
	}
	return Lines(ar, aw, ar, aw), Lines(br, bw, br, bw)
}

func TestStreams(t *testing.T) {
	for _, tc := range []struct {
		name   string
		framed bool
		codec  protocol.Codec
	}{
		{`lines`, false, protocol.JSON},
		{`frames`, true, protocol.MessagePack},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a, b := pair(tc.framed)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			server := peer.New(peer.Codec(tc.codec), peer.Fn(echo, func(ctx *peer.Scope, in string) (string, error) {
				return strings.Repeat(in, 2), nil
			}))
			client := peer.New(peer.Codec(tc.codec))
			go func() { _ = server.Serve(ctx, b) }()
			served := make(chan error, 1)
			go func() { served <- client.Serve(ctx, a) }()
			require.Eventually(t, func() bool { return client.Connected() && server.Connected() }, time.Second, time.Millisecond)

			out, err := peer.Invoke(ctx, client, echo, `ab`)
			require.NoError(t, err)
			assert.Equal(t, `abab`, out)

			require.NoError(t, b.Close())
			assert.NoError(t, <-served)
		})
	}
}

func TestLines(t *testing.T) {
	var buf bytes.Buffer
	s := Lines(strings.NewReader("{\"a\":1}\r\n\n{\"b\":2}\n{\"c\""), &buf)
	ctx := context.Background()

	data, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
	data, err = s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(data))
	_, err = s.Read(ctx)
	assert.ErrorIs(t, err, io.EOF)
	_, err = s.Read(ctx)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, s.Write(ctx, []byte(`{}`)))
	assert.Equal(t, "{}\r\n", buf.String())
	assert.Error(t, s.Write(ctx, []byte("{\n}")))
}

func TestFrames(t *testing.T) {
	var buf bytes.Buffer
	s := Frames(strings.NewReader(``), &buf)
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, []byte(`hello`)))
	assert.Equal(t, []byte{5, 0, 0, 0, 'h', 'e', 'l', 'l', 'o'}, buf.Bytes()[:9])

	r := Frames(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff}), io.Discard)
	_, err := r.Read(ctx)
	assert.ErrorContains(t, err, `exceeds the limit`)
}

func TestWriteHonorsContext(t *testing.T) {
	r, w := io.Pipe()
	defer r.Close()
	s := Lines(strings.NewReader(``), w, w)
	defer s.Close()

	// Nothing reads the pipe, so the first write blocks in the writer and the second waits behind it.
	for range 2 {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		start := time.Now()
		err := s.Write(ctx, []byte(`{}`))
		cancel()
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), time.Second)
	}

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Write(context.Background(), []byte(`{}`)), io.ErrClosedPipe)
}

func TestSpawn(t *testing.T) {
	path, err := exec.LookPath(`cat`)
	if err != nil {
		t.Skip(`cat is not available`)
	}
	s, err := Spawn(exec.Command(path), false)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// cat sends every request back unchanged, which resolves it with its own payload.
	p := peer.New()
	go func() { _ = p.Serve(ctx, s) }()
	require.Eventually(t, p.Connected, time.Second, time.Millisecond)
	out, err := peer.Invoke(ctx, p, echo, `meow`)
	require.NoError(t, err)
	assert.Equal(t, `meow`, out)
	assert.NoError(t, s.Close())
}
