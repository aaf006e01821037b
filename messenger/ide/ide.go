// Package ide defines the capabilities the IDE host offers to both the webview and the core, and installs them on a
// Messenger.
package ide

import (
	"context"

	"github.com/swdunlop/messenger-go/messenger"
	"github.com/swdunlop/messenger-go/messenger/peer"
	"github.com/swdunlop/messenger-go/messenger/protocol"
)

// IDE is implemented by the IDE host.  Every method answers one capability message, whichever endpoint sent it.
type IDE interface {
	GetIdeInfo(ctx context.Context) (protocol.IdeInfo, error)
	GetWorkspaceDirs(ctx context.Context) ([]string, error)
	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path, contents string) error
	ListDir(ctx context.Context, dir string) ([]protocol.DirEntry, error)
	FileExists(ctx context.Context, path string) (bool, error)
	OpenFile(ctx context.Context, path string) error
	ShowDiff(ctx context.Context, path, newContents string, stepIndex int) error
	ShowLines(ctx context.Context, path string, startLine, endLine int) error
	ShowToast(ctx context.Context, kind, message string) error
	RunCommand(ctx context.Context, command string) error
	Subprocess(ctx context.Context, command, cwd string) (stdout, stderr string, err error)
	GetSearchResults(ctx context.Context, query string) (string, error)
	GetBranch(ctx context.Context, dir string) (string, error)
	GetRepoName(ctx context.Context, dir string) (string, error)
	GetGitRootPath(ctx context.Context, dir string) (string, error)
	GetDiff(ctx context.Context, includeUnstaged bool) ([]string, error)
	GetOpenFiles(ctx context.Context) ([]string, error)
	GetCurrentFile(ctx context.Context) (*protocol.CurrentFile, error)
	GetUniqueID(ctx context.Context) (string, error)
	GetTerminalContents(ctx context.Context) (string, error)
	IsTelemetryEnabled(ctx context.Context) (bool, error)
}

// Register installs every capability of the IDE so both the webview and the core can reach it.
func Register(ide IDE) messenger.Option {
	return messenger.Options(
		messenger.OnWebviewOrCore(protocol.GetIdeInfo, func(ctx *peer.Scope, _ protocol.Empty) (protocol.IdeInfo, error) {
			return ide.GetIdeInfo(ctx)
		}),
		messenger.OnWebviewOrCore(protocol.GetWorkspaceDirs, func(ctx *peer.Scope, _ protocol.Empty) ([]string, error) {
			return ide.GetWorkspaceDirs(ctx)
		}),
		messenger.OnWebviewOrCore(protocol.ReadFile, func(ctx *peer.Scope, in protocol.FilepathRequest) (string, error) {
			return ide.ReadFile(ctx, in.Filepath)
		}),
		messenger.OnWebviewOrCore(protocol.WriteFile, func(ctx *peer.Scope, in protocol.WriteFileRequest) (protocol.Empty, error) {
			return protocol.Empty{}, ide.WriteFile(ctx, in.Path, in.Contents)
		}),
		messenger.OnWebviewOrCore(protocol.ListDir, func(ctx *peer.Scope, in protocol.DirRequest) ([]protocol.DirEntry, error) {
			return ide.ListDir(ctx, in.Dir)
		}),
		messenger.OnWebviewOrCore(protocol.FileExists, func(ctx *peer.Scope, in protocol.FilepathRequest) (bool, error) {
			return ide.FileExists(ctx, in.Filepath)
		}),
		messenger.OnWebviewOrCore(protocol.OpenFile, func(ctx *peer.Scope, in protocol.OpenFileRequest) (protocol.Empty, error) {
			return protocol.Empty{}, ide.OpenFile(ctx, in.Path)
		}),
		messenger.OnWebviewOrCore(protocol.ShowDiff, func(ctx *peer.Scope, in protocol.ShowDiffRequest) (protocol.Empty, error) {
			return protocol.Empty{}, ide.ShowDiff(ctx, in.Filepath, in.NewContents, in.StepIndex)
		}),
		messenger.OnWebviewOrCore(protocol.ShowLines, func(ctx *peer.Scope, in protocol.ShowLinesRequest) (protocol.Empty, error) {
			return protocol.Empty{}, ide.ShowLines(ctx, in.Filepath, in.StartLine, in.EndLine)
		}),
		messenger.OnWebviewOrCore(protocol.ShowToast, func(ctx *peer.Scope, in protocol.ToastRequest) (protocol.Empty, error) {
			return protocol.Empty{}, ide.ShowToast(ctx, in.Type, in.Message)
		}),
		messenger.OnWebviewOrCore(protocol.RunCommand, func(ctx *peer.Scope, in protocol.CommandRequest) (protocol.Empty, error) {
			return protocol.Empty{}, ide.RunCommand(ctx, in.Command)
		}),
		messenger.OnWebviewOrCore(protocol.Subprocess, func(ctx *peer.Scope, in protocol.SubprocessRequest) ([2]string, error) {
			stdout, stderr, err := ide.Subprocess(ctx, in.Command, in.Cwd)
			return [2]string{stdout, stderr}, err
		}),
		messenger.OnWebviewOrCore(protocol.GetSearchResults, func(ctx *peer.Scope, in protocol.SearchRequest) (string, error) {
			return ide.GetSearchResults(ctx, in.Query)
		}),
		messenger.OnWebviewOrCore(protocol.GetBranch, func(ctx *peer.Scope, in protocol.DirRequest) (string, error) {
			return ide.GetBranch(ctx, in.Dir)
		}),
		messenger.OnWebviewOrCore(protocol.GetRepoName, func(ctx *peer.Scope, in protocol.DirRequest) (string, error) {
			return ide.GetRepoName(ctx, in.Dir)
		}),
		messenger.OnWebviewOrCore(protocol.GetGitRootPath, func(ctx *peer.Scope, in protocol.DirRequest) (string, error) {
			return ide.GetGitRootPath(ctx, in.Dir)
		}),
		messenger.OnWebviewOrCore(protocol.GetDiff, func(ctx *peer.Scope, in protocol.DiffRequest) ([]string, error) {
			return ide.GetDiff(ctx, in.IncludeUnstaged)
		}),
		messenger.OnWebviewOrCore(protocol.GetOpenFiles, func(ctx *peer.Scope, _ protocol.Empty) ([]string, error) {
			return ide.GetOpenFiles(ctx)
		}),
		messenger.OnWebviewOrCore(protocol.GetCurrentFile, func(ctx *peer.Scope, _ protocol.Empty) (*protocol.CurrentFile, error) {
			return ide.GetCurrentFile(ctx)
		}),
		messenger.OnWebviewOrCore(protocol.GetUniqueID, func(ctx *peer.Scope, _ protocol.Empty) (string, error) {
			return ide.GetUniqueID(ctx)
		}),
		messenger.OnWebviewOrCore(protocol.GetTerminalContents, func(ctx *peer.Scope, _ protocol.Empty) (string, error) {
			return ide.GetTerminalContents(ctx)
		}),
		messenger.OnWebviewOrCore(protocol.IsTelemetryEnabled, func(ctx *peer.Scope, _ protocol.Empty) (bool, error) {
			return ide.IsTelemetryEnabled(ctx)
		}),
	)
}
