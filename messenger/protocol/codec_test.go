package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONEnvelope(t *testing.T) {
	data, err := JSON.Encode(Message{Type: `getWorkspaceDirs`, ID: `abc`, Data: []byte(`["/a","/b"]`), Reply: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"messageType":"getWorkspaceDirs","messageId":"abc","data":["/a","/b"],"reply":true}`, string(data))

	// A request posted by the webview, with no reply flag and no data.
	msg, err := JSON.Decode([]byte(`{"messageType":"ping","messageId":"1","data":null}`))
	require.NoError(t, err)
	assert.Equal(t, `ping`, msg.Type)
	assert.Equal(t, `1`, msg.ID)
	assert.Nil(t, msg.Data)
	assert.False(t, msg.Reply)
	assert.False(t, msg.Oneway())

	msg, err = JSON.Decode([]byte(`{"messageType":"abort"}`))
	require.NoError(t, err)
	assert.True(t, msg.Oneway())
}

func TestJSONFail(t *testing.T) {
	data, err := JSON.Encode(Message{Type: `readFile`, ID: `7`, Reply: true, Error: Failf(CodeInternal, `no such file %q`, `x`)})
	require.NoError(t, err)
	msg, err := JSON.Decode(data)
	require.NoError(t, err)
	require.NotNil(t, msg.Error)
	assert.Equal(t, CodeInternal, msg.Error.Code)
	assert.Equal(t, `no such file "x"`, msg.Error.Message)
}

func TestMessagePackEnvelope(t *testing.T) {
	payload, err := MessagePack.Marshal([]string{`/a`, `/b`})
	require.NoError(t, err)

	data, err := MessagePack.Encode(Message{Type: `getWorkspaceDirs`, ID: `abc`, Data: payload, Reply: true})
	require.NoError(t, err)
	msg, err := MessagePack.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, `getWorkspaceDirs`, msg.Type)
	assert.Equal(t, `abc`, msg.ID)
	assert.True(t, msg.Reply)
	assert.Nil(t, msg.Error)

	var dirs []string
	require.NoError(t, MessagePack.Unmarshal(msg.Data, &dirs))
	assert.Equal(t, []string{`/a`, `/b`}, dirs)

	data, err = MessagePack.Encode(Message{Type: `abort`, Error: &Fail{Code: CodeNotFound, Message: `unknown`}})
	require.NoError(t, err)
	msg, err = MessagePack.Decode(data)
	require.NoError(t, err)
	assert.Nil(t, msg.Data)
	require.NotNil(t, msg.Error)
	assert.Equal(t, CodeNotFound, msg.Error.Code)
}

func TestMessagePackStructPayload(t *testing.T) {
	in := Session{
		SessionID: `s1`,
		Title:     `hello`,
		History: []ChatHistoryItem{
			{Message: ChatMessage{Role: `user`, Content: `hi`}},
		},
	}
	data, err := MessagePack.Marshal(in)
	require.NoError(t, err)
	var out Session
	require.NoError(t, MessagePack.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	data, err = MessagePack.Marshal(DailyTokens{Day: `2024-01-01`, PromptTokens: 1 << 40})
	require.NoError(t, err)
	var tokens DailyTokens
	require.NoError(t, MessagePack.Unmarshal(data, &tokens))
	assert.Equal(t, 1<<40, tokens.PromptTokens)
}

func TestTranscode(t *testing.T) {
	data, err := Transcode(JSON, MessagePack, []byte(`{"progress":0.5,"desc":"indexing","status":"indexing"}`))
	require.NoError(t, err)
	var progress IndexingProgress
	require.NoError(t, MessagePack.Unmarshal(data, &progress))
	assert.Equal(t, IndexingProgress{Progress: 0.5, Desc: `indexing`, Status: `indexing`}, progress)

	back, err := Transcode(MessagePack, JSON, data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"progress":0.5,"desc":"indexing","status":"indexing"}`, string(back))

	same := []byte(`"pong"`)
	data, err = Transcode(JSON, JSON, same)
	require.NoError(t, err)
	assert.Equal(t, same, data)
}

func TestTranscodeLargeIntegers(t *testing.T) {
	const big = `{"id":9007199254740993,"max":18446744073709551615,"min":-9223372036854775808,"ratio":0.25,"list":[9007199254740995]}`
	data, err := Transcode(JSON, MessagePack, []byte(big))
	require.NoError(t, err)

	var v any
	require.NoError(t, MessagePack.Unmarshal(data, &v))
	fields := v.(map[string]any)
	assert.EqualValues(t, int64(9007199254740993), fields[`id`])
	assert.EqualValues(t, uint64(18446744073709551615), fields[`max`])

	back, err := Transcode(MessagePack, JSON, data)
	require.NoError(t, err)
	assert.JSONEq(t, big, string(back))
	assert.Contains(t, string(back), `9007199254740993`)

	data, err = Transcode(JSON, MessagePack, []byte(`9007199254740993`))
	require.NoError(t, err)
	var n int64
	require.NoError(t, MessagePack.Unmarshal(data, &n))
	assert.Equal(t, int64(9007199254740993), n)
}

func TestCodecNamed(t *testing.T) {
	codec, err := CodecNamed(`msgpack`)
	require.NoError(t, err)
	assert.Equal(t, MessagePack, codec)
	codec, err = CodecNamed(``)
	require.NoError(t, err)
	assert.Equal(t, JSON, codec)
	_, err = CodecNamed(`xml`)
	assert.Error(t, err)
}

func TestIDGenerators(t *testing.T) {
	for _, name := range []string{`uuid`, `ulid`} {
		next, err := IDsNamed(name)
		require.NoError(t, err, name)
		seen := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			id := next()
			require.False(t, seen[id], `%v repeated %q`, name, id)
			seen[id] = true
		}
	}
	_, err := IDsNamed(`serial`)
	assert.Error(t, err)
}

func TestFail(t *testing.T) {
	err := error(Failf(CodeNotFound, `unknown message type %q`, `nope`))
	assert.ErrorIs(t, err, &Fail{Code: CodeNotFound})
	assert.NotErrorIs(t, err, &Fail{Code: CodeInternal})
	assert.Equal(t, `unknown message type "nope" (404)`, err.Error())

	fail := AsFail(assert.AnError, CodeInternal)
	assert.Equal(t, CodeInternal, fail.Code)
	assert.Equal(t, assert.AnError.Error(), fail.Message)
	assert.Same(t, err, error(AsFail(err, CodeInternal)))
	assert.Nil(t, AsFail(nil, CodeInternal))
}
