package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, `.git`), 0o755))
	wr, err := Start(Directory(dir), Exclude(`*.tmp`), Debounce(20*time.Millisecond))
	require.NoError(t, err)
	defer wr.Shutdown()

	require.NoError(t, os.WriteFile(filepath.Join(dir, `skip.tmp`), []byte(`x`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, `.git`, `index`), []byte(`x`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, `a.go`), []byte(`package a`), 0o644))

	select {
	case batch := <-wr.Changes():
		assert.Equal(t, []string{filepath.Join(dir, `a.go`)}, batch)
	case <-time.After(5 * time.Second):
		t.Fatal(`no changes reported`)
	}
}

func TestShouldInclude(t *testing.T) {
	wr := &watcher{directories: []string{`/src`}}
	var err error
	wr.includes, err = appendPatterns(nil, `*.go`, `**/*.go`)
	require.NoError(t, err)
	wr.excludes, err = appendPatterns(nil, `vendor/**`)
	require.NoError(t, err)

	assert.True(t, wr.shouldInclude(`/src/main.go`))
	assert.True(t, wr.shouldInclude(`/src/pkg/a.go`))
	assert.False(t, wr.shouldInclude(`/src/README.md`))
	assert.False(t, wr.shouldInclude(`/src/vendor/x/y.go`))
	assert.False(t, wr.shouldInclude(`/src/.git/config.go`))
}
