package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdunlop/messenger-go/messenger/protocol"
)

func open(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Init(context.Background()))
	return store
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), `state`, `history.db`)
	store := open(t, path)
	assert.Equal(t, path, store.Path())

	list, err := store.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	session := protocol.Session{
		SessionID:          `s1`,
		Title:              `first`,
		WorkspaceDirectory: `/src`,
		History: []protocol.ChatHistoryItem{
			{Message: protocol.ChatMessage{Role: `user`, Content: `hello`}},
			{Message: protocol.ChatMessage{Role: `assistant`, Content: `hi`}},
		},
	}
	require.NoError(t, store.Save(ctx, session))
	require.NoError(t, store.Save(ctx, protocol.Session{SessionID: `s2`, Title: `second`}))

	loaded, err := store.Load(ctx, `s1`)
	require.NoError(t, err)
	assert.Equal(t, session, loaded)

	session.Title = `renamed`
	require.NoError(t, store.Save(ctx, session))
	list, err = store.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	titles := []string{list[0].Title, list[1].Title}
	assert.ElementsMatch(t, []string{`renamed`, `second`}, titles)
	assert.NotEmpty(t, list[0].DateCreated)

	list, err = store.List(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.Delete(ctx, `s1`))
	require.NoError(t, store.Delete(ctx, `s1`))
	_, err = store.Load(ctx, `s1`)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, store.Save(ctx, protocol.Session{}))
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), `history.db`)
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.Save(ctx, protocol.Session{SessionID: `kept`, Title: `kept`}))
	require.NoError(t, store.Close())

	store = open(t, path)
	session, err := store.Load(ctx, `kept`)
	require.NoError(t, err)
	assert.Equal(t, `kept`, session.Title)
	assert.Empty(t, session.History)
}

func TestDevData(t *testing.T) {
	ctx := context.Background()
	store := open(t, ``)
	require.NoError(t, store.LogDevData(ctx, `tokens_generated`, map[string]any{`model`: `m1`, `tokens`: 12}))
	require.NoError(t, store.LogDevData(ctx, `tokens_generated`, map[string]any{`model`: `m2`, `tokens`: 7}))
	require.NoError(t, store.LogDevData(ctx, `chat`, map[string]any{`accepted`: true}))
	assert.Error(t, store.LogDevData(ctx, `x; DROP TABLE devdata`, nil))

	seq, err := store.DevData(ctx, `tokens_generated`)
	require.NoError(t, err)
	require.Len(t, seq, 2)
	assert.Equal(t, `m1`, seq[0][`model`])
	assert.Equal(t, float64(7), seq[1][`tokens`])
}

func TestTokensPerDay(t *testing.T) {
	ctx := context.Background()
	store := open(t, ``)
	days, err := store.TokensPerDay(ctx)
	require.NoError(t, err)
	assert.Empty(t, days)

	require.NoError(t, store.LogDevData(ctx, TokensTable, map[string]any{`promptTokens`: 10, `generatedTokens`: 3}))
	require.NoError(t, store.LogDevData(ctx, TokensTable, map[string]any{`promptTokens`: 5, `generatedTokens`: 2}))
	require.NoError(t, store.LogDevData(ctx, `chat`, map[string]any{`promptTokens`: 1000}))
	days, err = store.TokensPerDay(ctx)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, 15, days[0].PromptTokens)
	assert.Equal(t, 5, days[0].GeneratedTokens)
	assert.Len(t, days[0].Day, len(`2006-01-02`))
}
