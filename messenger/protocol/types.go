package protocol

// Position is a zero based line and character offset in a file.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a span between two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// RangeInFile is a span of a particular file.
type RangeInFile struct {
	Filepath string `json:"filepath"`
	Range    Range  `json:"range"`
}

// IdeInfo describes the IDE hosting the extension.
type IdeInfo struct {
	IdeType          string `json:"ideType"`
	Name             string `json:"name"`
	Version          string `json:"version"`
	RemoteName       string `json:"remoteName"`
	ExtensionVersion string `json:"extensionVersion"`
}

// FileType follows the IDE's numbering of directory entries.
type FileType int

const (
	FileTypeUnknown   FileType = 0
	FileTypeFile      FileType = 1
	FileTypeDirectory FileType = 2
	FileTypeSymlink   FileType = 64
)

// DirEntry is one entry returned by listDir.
type DirEntry struct {
	Name string   `json:"name"`
	Type FileType `json:"type"`
}

type FilepathRequest struct {
	Filepath string `json:"filepath"`
}

type DirRequest struct {
	Dir string `json:"dir"`
}

type WriteFileRequest struct {
	Path     string `json:"path"`
	Contents string `json:"contents"`
}

type OpenFileRequest struct {
	Path string `json:"path"`
}

type ShowLinesRequest struct {
	Filepath  string `json:"filepath"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
}

type ShowDiffRequest struct {
	Filepath    string `json:"filepath"`
	NewContents string `json:"newContents"`
	StepIndex   int    `json:"stepIndex"`
}

type ToastRequest struct {
	Type    string `json:"type"` // "info", "warning" or "error"
	Message string `json:"message"`
}

type CommandRequest struct {
	Command string `json:"command"`
}

// SubprocessRequest runs a command in a shell; the response is [stdout, stderr].
type SubprocessRequest struct {
	Command string `json:"command"`
	Cwd     string `json:"cwd,omitempty"`
}

type SearchRequest struct {
	Query string `json:"query"`
}

type DiffRequest struct {
	IncludeUnstaged bool `json:"includeUnstaged"`
}

// CurrentFile describes the file in the active editor.
type CurrentFile struct {
	IsUntitled bool   `json:"isUntitled"`
	Path       string `json:"path"`
	Contents   string `json:"contents"`
}

// SessionInfo summarizes a saved chat session.
type SessionInfo struct {
	SessionID          string `json:"sessionId"`
	Title              string `json:"title"`
	DateCreated        string `json:"dateCreated"`
	WorkspaceDirectory string `json:"workspaceDirectory"`
}

// ChatMessage is one turn of a chat.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatHistoryItem is a chat message and the context that accompanied it.
type ChatHistoryItem struct {
	Message      ChatMessage   `json:"message"`
	ContextItems []ContextItem `json:"contextItems,omitempty"`
}

// Session is a complete chat session.
type Session struct {
	SessionID          string            `json:"sessionId"`
	Title              string            `json:"title"`
	WorkspaceDirectory string            `json:"workspaceDirectory"`
	History            []ChatHistoryItem `json:"history"`
}

type ListHistoryRequest struct {
	Offset int `json:"offset,omitempty"`
	Limit  int `json:"limit,omitempty"`
}

type IDRequest struct {
	ID string `json:"id"`
}

// DevDataLog records a development data event into a named table.
type DevDataLog struct {
	TableName string         `json:"tableName"`
	Data      map[string]any `json:"data"`
}

// ProfileDescription names a configuration profile.
type ProfileDescription struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SerializedProfileInfo is the configuration the core shares with the webview.
type SerializedProfileInfo struct {
	ProfileID     string   `json:"profileId"`
	Title         string   `json:"title"`
	Models        []string `json:"models"`
	WorkspaceDirs []string `json:"workspaceDirs"`
}

type ProfilesUpdate struct {
	Profiles []ProfileDescription `json:"profiles"`
}

type IdeSettings struct {
	RemoteConfigServerURL string `json:"remoteConfigServerUrl,omitempty"`
	UserToken             string `json:"userToken,omitempty"`
	EnableIndexing        bool   `json:"enableIndexing"`
}

// ContextItem is content attached to a prompt.
type ContextItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URI         string `json:"uri,omitempty"`
}

type ContextItemsRequest struct {
	Name         string        `json:"name"`
	Query        string        `json:"query"`
	FullInput    string        `json:"fullInput"`
	SelectedCode []RangeInFile `json:"selectedCode"`
}

type CompleteRequest struct {
	Title             string         `json:"title"`
	Prompt            string         `json:"prompt"`
	CompletionOptions map[string]any `json:"completionOptions,omitempty"`
}

type ListModelsRequest struct {
	Title string `json:"title"`
}

type ReindexRequest struct {
	Dirs []string `json:"dirs,omitempty"`
}

// IndexingProgress reports the progress of the codebase index.
type IndexingProgress struct {
	Progress float64 `json:"progress"`
	Desc     string  `json:"desc"`
	Status   string  `json:"status"` // "loading", "indexing", "done", "failed", "paused" or "disabled"
}

// DailyTokens counts tokens used on one day.
type DailyTokens struct {
	Day             string `json:"day"`
	PromptTokens    int    `json:"promptTokens"`
	GeneratedTokens int    `json:"generatedTokens"`
}

type OnboardingRequest struct {
	Mode string `json:"mode"`
}

// ToolCall asks the core to run one tool.
type ToolCall struct {
	ID       string       `json:"id"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type ToolCallRequest struct {
	ToolCall ToolCall `json:"toolCall"`
}

type ToolCallResult struct {
	ContextItems []ContextItem `json:"contextItems"`
}

type FilesRequest struct {
	URIs []string `json:"uris"`
}
