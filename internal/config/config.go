// Package config loads the settings shared by the host and core tasks.  Defaults are overlaid by a TOML file named by
// MESSENGER_CONFIG, which is overlaid in turn by MESSENGER_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/swdunlop/messenger-go/messenger/protocol"
)

// FileVar names the environment variable that points at an optional TOML configuration file.
const FileVar = `MESSENGER_CONFIG`

// Prefix is the prefix of environment variables that override the configuration.
const Prefix = `MESSENGER`

// Config holds the configuration of the IDE host and the core.
type Config struct {
	// Addr is where the host serves the webview channel, such as "127.0.0.1:8080".
	Addr string `toml:"addr" envconfig:"ADDR"`

	// Origins lists host patterns, such as "vscode-webview://*", allowed to open the webview channel from another
	// origin.
	Origins []string `toml:"origins" envconfig:"ORIGINS"`

	// Tailnet is a tailnet hostname for the host to listen on in addition to Addr.  Empty disables it.
	Tailnet string `toml:"tailnet" envconfig:"TAILNET"`

	// TailnetFunnel lets the public internet reach the tailnet listener through Tailscale Funnel.
	TailnetFunnel bool `toml:"tailnet_funnel" envconfig:"TAILNET_FUNNEL"`

	// TailnetNoTLS serves plain HTTP on port 80 of the tailnet node instead of HTTPS on port 443.
	TailnetNoTLS bool `toml:"tailnet_no_tls" envconfig:"TAILNET_NO_TLS"`

	// Assets is a directory of webview files, such as a built index.html, served at the root of Addr.
	Assets string `toml:"assets" envconfig:"ASSETS"`

	// Workspace lists the workspace directories; the current directory is used if it is empty.
	Workspace []string `toml:"workspace" envconfig:"WORKSPACE"`

	// StateDir keeps state between runs, such as the IDE unique id and the core history database.
	StateDir string `toml:"state_dir" envconfig:"STATE_DIR"`

	// Codec is the codec spoken to the webview: "json" or "msgpack".
	Codec string `toml:"codec" envconfig:"CODEC"`

	// IDFormat selects correlation ids: "uuid" or "ulid".
	IDFormat string `toml:"id_format" envconfig:"ID_FORMAT"`

	// Timeout bounds every request the host sends.  Zero waits until the response arrives or the endpoint goes away.
	Timeout Duration `toml:"timeout" envconfig:"TIMEOUT"`

	// Watch reports workspace changes to the core as files/changed messages.
	Watch bool `toml:"watch" envconfig:"WATCH"`

	// Trace publishes every routed message as a server-sent event stream.
	Trace bool `toml:"trace" envconfig:"TRACE"`

	LogLevel string `toml:"log_level" envconfig:"LOG_LEVEL"`

	Core Core `toml:"core" envconfig:"CORE"`
}

// Core describes how the host reaches the core.
type Core struct {
	// Transport is one of "spawn", which starts Command and speaks over its stdio, "nats", which uses a subject pair
	// on NATSURL, or "inline", which runs the core in the host process.
	Transport string `toml:"transport" envconfig:"TRANSPORT"`

	// Command and Args start the core for the spawn transport.
	Command string   `toml:"command" envconfig:"COMMAND"`
	Args    []string `toml:"args" envconfig:"ARGS"`

	// Codec is the codec spoken to the core.
	Codec string `toml:"codec" envconfig:"CODEC"`

	NATSURL string `toml:"nats_url" envconfig:"NATS_URL"`
	Subject string `toml:"subject" envconfig:"SUBJECT"`

	// History is the core's SQLite database; defaults to history.db in StateDir.
	History string `toml:"history" envconfig:"HISTORY"`
}

// Duration is a time.Duration that TOML and the environment both spell like "30s".
type Duration struct{ time.Duration }

// UnmarshalText implements encoding.TextUnmarshaler, which both toml and envconfig use.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Addr:     `127.0.0.1:8080`,
		Codec:    protocol.JSON.Name(),
		IDFormat: `uuid`,
		LogLevel: `info`,
		Core: Core{
			Transport: `inline`,
			Codec:     protocol.JSON.Name(),
			NATSURL:   `nats://127.0.0.1:4222`,
			Subject:   `messenger`,
		},
	}
}

// Load loads the configuration from the defaults, the file named by MESSENGER_CONFIG and the environment.
func Load() (*Config, error) { return LoadFile(os.Getenv(FileVar)) }

// LoadFile is like Load but reads the named file instead, if the path is not empty.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != `` {
		_, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf(`%w while loading %v`, err, path)
		}
	}
	err := envconfig.Process(Prefix, cfg)
	if err != nil {
		return nil, err
	}
	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and fills in settings derived from others.
func (cfg *Config) Validate() error {
	if _, err := protocol.CodecNamed(cfg.Codec); err != nil {
		return fmt.Errorf(`%w for %v_CODEC`, err, Prefix)
	}
	if _, err := protocol.CodecNamed(cfg.Core.Codec); err != nil {
		return fmt.Errorf(`%w for %v_CORE_CODEC`, err, Prefix)
	}
	if _, err := protocol.IDsNamed(cfg.IDFormat); err != nil {
		return fmt.Errorf(`%w for %v_ID_FORMAT`, err, Prefix)
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf(`%w for %v_LOG_LEVEL`, err, Prefix)
	}
	if cfg.Timeout.Duration < 0 {
		return fmt.Errorf(`%v_TIMEOUT must not be negative`, Prefix)
	}
	if cfg.TailnetFunnel && cfg.TailnetNoTLS {
		return fmt.Errorf(`%v_TAILNET_FUNNEL requires TLS`, Prefix)
	}
	if cfg.Assets != `` {
		info, err := os.Stat(cfg.Assets)
		switch {
		case err != nil:
			return fmt.Errorf(`%w for %v_ASSETS`, err, Prefix)
		case !info.IsDir():
			return fmt.Errorf(`%v_ASSETS must be a directory`, Prefix)
		}
	}
	switch cfg.Core.Transport {
	case `inline`:
	case `spawn`:
		if cfg.Core.Command == `` {
			return fmt.Errorf(`%v_CORE_COMMAND is required for the spawn transport`, Prefix)
		}
	case `nats`:
		if cfg.Core.NATSURL == `` || cfg.Core.Subject == `` {
			return fmt.Errorf(`%v_CORE_NATS_URL and %v_CORE_SUBJECT are required for the nats transport`, Prefix, Prefix)
		}
	default:
		return fmt.Errorf(`unsupported core transport %q`, cfg.Core.Transport)
	}
	if cfg.Core.History == `` && cfg.StateDir != `` {
		cfg.Core.History = filepath.Join(cfg.StateDir, `history.db`)
	}
	return nil
}

// WebviewCodec returns the codec spoken to the webview.
func (cfg *Config) WebviewCodec() protocol.Codec {
	codec, _ := protocol.CodecNamed(cfg.Codec)
	return codec
}

// CoreCodec returns the codec spoken to the core.
func (cfg *Config) CoreCodec() protocol.Codec {
	codec, _ := protocol.CodecNamed(cfg.Core.Codec)
	return codec
}

// IDs returns the correlation id generator.
func (cfg *Config) IDs() protocol.IDGenerator {
	ids, _ := protocol.IDsNamed(cfg.IDFormat)
	return ids
}

// Level returns the log level.
func (cfg *Config) Level() zerolog.Level {
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	return level
}
