package main

import (
	"os"
	"sort"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/swdunlop/messenger-go/internal/config"
	"github.com/swdunlop/zugzug-go"
)

func init() {
	// stdout belongs to the protocol when the core is spawned by the host, so logs go to stderr.
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: `2006-01-02 15:04:05`}).With().Timestamp().Logger()
	zlog.Logger = log
	zerolog.DefaultContextLogger = &log
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
}

var tasks = zugzug.Tasks{}

func main() {
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Name < tasks[j].Name })
	zugzug.Main(tasks)
}

// configFile overrides MESSENGER_CONFIG when set by a task's --config flag.
var configFile string

var configSettings = zugzug.Settings{
	{Var: &configFile, Name: config.FileVar,
		Use: "TOML configuration file; MESSENGER_* variables override its settings"},
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(cfg.Level())
	return cfg, nil
}
