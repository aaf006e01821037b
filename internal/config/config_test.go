package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdunlop/messenger-go/messenger/protocol"
)

func TestDefaults(t *testing.T) {
	t.Setenv(FileVar, ``)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, `127.0.0.1:8080`, cfg.Addr)
	assert.Equal(t, protocol.JSON, cfg.WebviewCodec())
	assert.Equal(t, `inline`, cfg.Core.Transport)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
	assert.Zero(t, cfg.Timeout.Duration)
	assert.NotNil(t, cfg.IDs())
}

func TestFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, `messenger.toml`)
	require.NoError(t, os.WriteFile(path, []byte(`
addr = "127.0.0.1:9000"
workspace = ["/src/a", "/src/b"]
state_dir = "/var/lib/messenger"
tailnet = "ide"
timeout = "30s"
log_level = "debug"

[core]
transport = "spawn"
command = "messenger"
args = ["core"]
codec = "msgpack"
`), 0o644))
	t.Setenv(FileVar, path)
	t.Setenv(`MESSENGER_ADDR`, `127.0.0.1:9001`)
	t.Setenv(`MESSENGER_CORE_ARGS`, `core,--framed`)
	t.Setenv(`MESSENGER_ID_FORMAT`, `ulid`)
	t.Setenv(`MESSENGER_TAILNET_FUNNEL`, `true`)
	t.Setenv(`MESSENGER_ASSETS`, dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, `127.0.0.1:9001`, cfg.Addr)
	assert.Equal(t, []string{`/src/a`, `/src/b`}, cfg.Workspace)
	assert.Equal(t, 30*time.Second, cfg.Timeout.Duration)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
	assert.Equal(t, `spawn`, cfg.Core.Transport)
	assert.Equal(t, `messenger`, cfg.Core.Command)
	assert.Equal(t, []string{`core`, `--framed`}, cfg.Core.Args)
	assert.Equal(t, protocol.MessagePack, cfg.CoreCodec())
	assert.Equal(t, `ulid`, cfg.IDFormat)
	assert.True(t, cfg.TailnetFunnel)
	assert.False(t, cfg.TailnetNoTLS)
	assert.Equal(t, dir, cfg.Assets)
	assert.Equal(t, filepath.Join(`/var/lib/messenger`, `history.db`), cfg.Core.History)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		`codec`:     func(cfg *Config) { cfg.Codec = `xml` },
		`coreCodec`: func(cfg *Config) { cfg.Core.Codec = `cbor` },
		`ids`:       func(cfg *Config) { cfg.IDFormat = `serial` },
		`level`:     func(cfg *Config) { cfg.LogLevel = `loud` },
		`timeout`:   func(cfg *Config) { cfg.Timeout.Duration = -time.Second },
		`transport`: func(cfg *Config) { cfg.Core.Transport = `carrier-pigeon` },
		`spawn`:     func(cfg *Config) { cfg.Core.Transport = `spawn` },
		`nats`:      func(cfg *Config) { cfg.Core.Transport, cfg.Core.NATSURL = `nats`, `` },
		`funnel`:    func(cfg *Config) { cfg.Tailnet, cfg.TailnetFunnel, cfg.TailnetNoTLS = `ide`, true, true },
		`assets`:    func(cfg *Config) { cfg.Assets = filepath.Join(os.TempDir(), `messenger-missing-assets`) },
	} {
		cfg := Default()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
	assert.NoError(t, Default().Validate())

	file := filepath.Join(t.TempDir(), `index.html`)
	require.NoError(t, os.WriteFile(file, []byte(`<html></html>`), 0o644))
	cfg := Default()
	cfg.Assets = file
	assert.ErrorContains(t, cfg.Validate(), `must be a directory`)
	cfg.Assets = filepath.Dir(file)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), `messenger.toml`)
	require.NoError(t, os.WriteFile(path, []byte("origins = [\"vscode-webview://*\"]\n"), 0o644))
	t.Setenv(FileVar, filepath.Join(t.TempDir(), `ignored.toml`))
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{`vscode-webview://*`}, cfg.Origins)
}

func TestBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), `bad.toml`)
	require.NoError(t, os.WriteFile(path, []byte(`addr = `), 0o644))
	t.Setenv(FileVar, path)
	_, err := Load()
	assert.ErrorContains(t, err, path)
}
