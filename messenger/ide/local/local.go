// Package local implements the IDE capabilities over the local filesystem for a host that has no editor attached,
// such as a terminal session or a test.  Editor actions are recorded and logged instead of being shown.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/swdunlop/html-go/hog"
	"github.com/swdunlop/messenger-go/messenger/ide"
	"github.com/swdunlop/messenger-go/messenger/protocol"
)

var _ ide.IDE = (*Local)(nil)

// New creates a local IDE with the provided options.
func New(options ...Option) (*Local, error) {
	lc := &Local{
		info: protocol.IdeInfo{
			IdeType:          `headless`,
			Name:             `messenger-go`,
			Version:          `0.0.0`,
			RemoteName:       `local`,
			ExtensionVersion: `0.0.0`,
		},
		shell: `/bin/sh`,
		ids:   protocol.ULIDs(),
	}
	for _, option := range options {
		err := option(lc)
		if err != nil {
			return nil, err
		}
	}
	if len(lc.dirs) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		lc.dirs = []string{wd}
	}
	return lc, nil
}

// An Option is a function that can manipulate a local IDE during construction.
type Option func(*Local) error

// Workspace specifies the workspace directories.  If none are specified, the current working directory is used.
func Workspace(dirs ...string) Option {
	return func(lc *Local) error {
		for _, dir := range dirs {
			abs, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf(`%w while resolving workspace %q`, err, dir)
			}
			lc.dirs = append(lc.dirs, abs)
		}
		return nil
	}
}

// Info replaces the description returned by getIdeInfo.
func Info(info protocol.IdeInfo) Option {
	return func(lc *Local) error {
		lc.info = info
		return nil
	}
}

// StateDir specifies where the IDE keeps state between runs, such as its unique id.  Without one, state is lost when
// the process exits.
func StateDir(dir string) Option {
	return func(lc *Local) error {
		lc.stateDir = dir
		return nil
	}
}

// Telemetry specifies the answer to isTelemetryEnabled.
func Telemetry(enabled bool) Option {
	return func(lc *Local) error {
		lc.telemetry = enabled
		return nil
	}
}

// Shell specifies the shell used to run subprocess commands.  Defaults to /bin/sh.
func Shell(path string) Option {
	return func(lc *Local) error {
		lc.shell = path
		return nil
	}
}

// Local is a headless IDE.
type Local struct {
	dirs      []string
	info      protocol.IdeInfo
	stateDir  string
	telemetry bool
	shell     string
	ids       protocol.IDGenerator

	mu       sync.Mutex
	uniqueID string
	open     []string
	current  string
	terminal string
	actions  []Action
}

// An Action is an editor action the local IDE recorded instead of showing it.
type Action struct {
	Kind   string // "openFile", "showDiff", "showLines", "showToast" or "runCommand"
	Path   string
	Detail string
}

// Actions returns the editor actions recorded so far.
func (lc *Local) Actions() []Action {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return append([]Action(nil), lc.actions...)
}

func (lc *Local) record(ctx context.Context, action Action) {
	lc.mu.Lock()
	lc.actions = append(lc.actions, action)
	lc.mu.Unlock()
	hog.From(ctx).Info().Str(`action`, action.Kind).Str(`path`, action.Path).Msg(action.Detail)
}

// resolve converts a file URI or a workspace relative path into a local path.
func (lc *Local) resolve(path string) string {
	path = strings.TrimPrefix(path, `file://`)
	if path == `` {
		return lc.dirs[0]
	}
	if !filepath.IsAbs(path) {
		return filepath.Join(lc.dirs[0], path)
	}
	return filepath.Clean(path)
}

func (lc *Local) GetIdeInfo(ctx context.Context) (protocol.IdeInfo, error) { return lc.info, nil }

func (lc *Local) GetWorkspaceDirs(ctx context.Context) ([]string, error) {
	return append([]string(nil), lc.dirs...), nil
}

func (lc *Local) ReadFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(lc.resolve(path))
	if err != nil {
		return ``, err
	}
	return string(data), nil
}

func (lc *Local) WriteFile(ctx context.Context, path, contents string) error {
	path = lc.resolve(path)
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(contents), 0o644)
}

func (lc *Local) ListDir(ctx context.Context, dir string) ([]protocol.DirEntry, error) {
	entries, err := os.ReadDir(lc.resolve(dir))
	if err != nil {
		return nil, err
	}
	list := make([]protocol.DirEntry, 0, len(entries))
	for _, entry := range entries {
		var kind protocol.FileType
		switch mode := entry.Type(); {
		case mode&fs.ModeSymlink != 0:
			kind = protocol.FileTypeSymlink
		case mode.IsDir():
			kind = protocol.FileTypeDirectory
		case mode.IsRegular():
			kind = protocol.FileTypeFile
		}
		list = append(list, protocol.DirEntry{Name: entry.Name(), Type: kind})
	}
	return list, nil
}

func (lc *Local) FileExists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(lc.resolve(path))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (lc *Local) OpenFile(ctx context.Context, path string) error {
	path = lc.resolve(path)
	lc.mu.Lock()
	lc.current = path
	found := false
	for _, it := range lc.open {
		found = found || it == path
	}
	if !found {
		lc.open = append(lc.open, path)
	}
	lc.mu.Unlock()
	lc.record(ctx, Action{Kind: `openFile`, Path: path, Detail: `opened file`})
	return nil
}

func (lc *Local) ShowDiff(ctx context.Context, path, newContents string, stepIndex int) error {
	path = lc.resolve(path)
	before, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	lc.record(ctx, Action{
		Kind:   `showDiff`,
		Path:   path,
		Detail: unified(path, string(before), newContents),
	})
	return nil
}

func (lc *Local) ShowLines(ctx context.Context, path string, startLine, endLine int) error {
	lc.record(ctx, Action{
		Kind:   `showLines`,
		Path:   lc.resolve(path),
		Detail: fmt.Sprintf(`lines %d-%d`, startLine, endLine),
	})
	return nil
}

func (lc *Local) ShowToast(ctx context.Context, kind, message string) error {
	lc.record(ctx, Action{Kind: `showToast`, Detail: kind + `: ` + message})
	return nil
}

func (lc *Local) RunCommand(ctx context.Context, command string) error {
	lc.record(ctx, Action{Kind: `runCommand`, Detail: command})
	return nil
}

// Subprocess runs a command with the shell.  A command that exits with a non-zero status is not an error; its output
// is returned like any other.
func (lc *Local) Subprocess(ctx context.Context, command, cwd string) (string, string, error) {
	cmd := exec.CommandContext(ctx, lc.shell, `-c`, command)
	cmd.Dir = lc.resolve(cwd)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	err := cmd.Run()
	var exit *exec.ExitError
	if err != nil && !errors.As(err, &exit) {
		return ``, ``, fmt.Errorf(`%w while running %q`, err, command)
	}
	lc.mu.Lock()
	lc.terminal = stdout.String() + stderr.String()
	lc.mu.Unlock()
	return stdout.String(), stderr.String(), nil
}

func (lc *Local) GetOpenFiles(ctx context.Context) ([]string, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return append([]string(nil), lc.open...), nil
}

func (lc *Local) GetCurrentFile(ctx context.Context) (*protocol.CurrentFile, error) {
	lc.mu.Lock()
	path := lc.current
	lc.mu.Unlock()
	if path == `` {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &protocol.CurrentFile{IsUntitled: true, Path: path}, nil
	}
	if err != nil {
		return nil, err
	}
	return &protocol.CurrentFile{Path: path, Contents: string(data)}, nil
}

// GetUniqueID returns an id for this installation, which is kept in the state directory if there is one.
func (lc *Local) GetUniqueID(ctx context.Context) (string, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.uniqueID != `` {
		return lc.uniqueID, nil
	}
	if lc.stateDir == `` {
		lc.uniqueID = lc.ids()
		return lc.uniqueID, nil
	}
	path := filepath.Join(lc.stateDir, `unique-id`)
	data, err := os.ReadFile(path)
	switch {
	case err == nil && len(bytes.TrimSpace(data)) > 0:
		lc.uniqueID = string(bytes.TrimSpace(data))
		return lc.uniqueID, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return ``, err
	}
	id := lc.ids()
	err = os.MkdirAll(lc.stateDir, 0o700)
	if err == nil {
		err = os.WriteFile(path, []byte(id+"\n"), 0o600)
	}
	if err != nil {
		return ``, fmt.Errorf(`%w while saving unique id`, err)
	}
	lc.uniqueID = id
	return id, nil
}

func (lc *Local) GetTerminalContents(ctx context.Context) (string, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.terminal, nil
}

func (lc *Local) IsTelemetryEnabled(ctx context.Context) (bool, error) { return lc.telemetry, nil }
