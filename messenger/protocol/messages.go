package protocol

// Messages the webview sends to the core.  None of these are handled by the IDE host, which forwards them.
var (
	Ping                     = Define[string, string](`ping`)
	Abort                    = Define[Empty, Empty](`abort`)
	HistoryList              = Define[ListHistoryRequest, []SessionInfo](`history/list`)
	HistoryDelete            = Define[IDRequest, Empty](`history/delete`)
	HistoryLoad              = Define[IDRequest, Session](`history/load`)
	HistorySave              = Define[Session, Empty](`history/save`)
	DevDataLogEvent          = Define[DevDataLog, Empty](`devdata/log`)
	GetSerializedProfileInfo = Define[Empty, SerializedProfileInfo](`config/getSerializedProfileInfo`)
	IdeSettingsUpdate        = Define[IdeSettings, Empty](`config/ideSettingsUpdate`)
	ListProfiles             = Define[Empty, []ProfileDescription](`config/listProfiles`)
	GetContextItems          = Define[ContextItemsRequest, []ContextItem](`context/getContextItems`)
	LLMComplete              = Define[CompleteRequest, string](`llm/complete`)
	LLMListModels            = Define[ListModelsRequest, []string](`llm/listModels`)
	IndexSetPaused           = Define[bool, Empty](`index/setPaused`)
	IndexForceReIndex        = Define[ReindexRequest, Empty](`index/forceReIndex`)
	StatsTokensPerDay        = Define[Empty, []DailyTokens](`stats/getTokensPerDay`)
	CompleteOnboarding       = Define[OnboardingRequest, Empty](`completeOnboarding`)
	DidChangeSelectedProfile = Define[IDRequest, Empty](`didChangeSelectedProfile`)
	ToolsCall                = Define[ToolCallRequest, ToolCallResult](`tools/call`)
)

// Messages the core sends to the webview, forwarded by the IDE host.
var (
	ConfigUpdate               = Define[SerializedProfileInfo, Empty](`configUpdate`)
	IndexProgress              = Define[IndexingProgress, Empty](`indexProgress`)
	RefreshSubmenuItems        = Define[Empty, Empty](`refreshSubmenuItems`)
	DidChangeAvailableProfiles = Define[ProfilesUpdate, Empty](`didChangeAvailableProfiles`)
	GetDefaultModelTitle       = Define[Empty, string](`getDefaultModelTitle`)
	GetWebviewHistoryLength    = Define[Empty, int](`getWebviewHistoryLength`)
	OpenDialogMessage          = Define[string, Empty](`openDialogMessage`)
	SetTTSActive               = Define[bool, Empty](`setTTSActive`)
)

// Capabilities of the IDE host that both the webview and the core may request.
var (
	GetIdeInfo          = Define[Empty, IdeInfo](`getIdeInfo`)
	GetWorkspaceDirs    = Define[Empty, []string](`getWorkspaceDirs`)
	ReadFile            = Define[FilepathRequest, string](`readFile`)
	WriteFile           = Define[WriteFileRequest, Empty](`writeFile`)
	ListDir             = Define[DirRequest, []DirEntry](`listDir`)
	FileExists          = Define[FilepathRequest, bool](`fileExists`)
	OpenFile            = Define[OpenFileRequest, Empty](`openFile`)
	ShowDiff            = Define[ShowDiffRequest, Empty](`showDiff`)
	ShowLines           = Define[ShowLinesRequest, Empty](`showLines`)
	ShowToast           = Define[ToastRequest, Empty](`showToast`)
	RunCommand          = Define[CommandRequest, Empty](`runCommand`)
	Subprocess          = Define[SubprocessRequest, [2]string](`subprocess`)
	GetSearchResults    = Define[SearchRequest, string](`getSearchResults`)
	GetBranch           = Define[DirRequest, string](`getBranch`)
	GetRepoName         = Define[DirRequest, string](`getRepoName`)
	GetGitRootPath      = Define[DirRequest, string](`getGitRootPath`)
	GetDiff             = Define[DiffRequest, []string](`getDiff`)
	GetOpenFiles        = Define[Empty, []string](`getOpenFiles`)
	GetCurrentFile      = Define[Empty, *CurrentFile](`getCurrentFile`)
	GetUniqueID         = Define[Empty, string](`getUniqueId`)
	GetTerminalContents = Define[Empty, string](`getTerminalContents`)
	IsTelemetryEnabled  = Define[Empty, bool](`isTelemetryEnabled`)
)

// Messages the IDE host originates.
var (
	FilesChanged              = Define[FilesRequest, Empty](`files/changed`)
	FilesOpened               = Define[FilesRequest, Empty](`files/opened`)
	DidChangeActiveTextEditor = Define[FilepathRequest, Empty](`didChangeActiveTextEditor`)
	SetColors                 = Define[map[string]string, Empty](`setColors`)
	FocusInput                = Define[Empty, Empty](`focusInput`)
	NewSession                = Define[Empty, Empty](`newSession`)
)

// IDECapabilities lists the messages the IDE host answers for both the webview and the core.
var IDECapabilities = []Entry{
	GetIdeInfo, GetWorkspaceDirs, ReadFile, WriteFile, ListDir, FileExists,
	OpenFile, ShowDiff, ShowLines, ShowToast, RunCommand, Subprocess,
	GetSearchResults, GetBranch, GetRepoName, GetGitRootPath, GetDiff,
	GetOpenFiles, GetCurrentFile, GetUniqueID, GetTerminalContents, IsTelemetryEnabled,
}

// WebviewToCore lists the messages the IDE host forwards from the webview to the core without handling them.
var WebviewToCore = []Entry{
	Ping, Abort,
	HistoryList, HistoryDelete, HistoryLoad, HistorySave,
	DevDataLogEvent,
	GetSerializedProfileInfo, IdeSettingsUpdate, ListProfiles,
	GetContextItems,
	LLMComplete, LLMListModels,
	IndexSetPaused, IndexForceReIndex,
	StatsTokensPerDay,
	CompleteOnboarding,
	DidChangeSelectedProfile,
	ToolsCall,
}

// CoreToWebview lists the messages the IDE host forwards from the core to the webview without handling them.
var CoreToWebview = []Entry{
	ConfigUpdate, IndexProgress, RefreshSubmenuItems,
	DidChangeAvailableProfiles, GetDefaultModelTitle, GetWebviewHistoryLength,
	OpenDialogMessage, SetTTSActive,
	DidChangeSelectedProfile,
}

// Directional protocol tables.  A message type may appear in more than one table, but always with the same Def.
var (
	// FromWebview lists what the webview may send; the core or the IDE host handles it.
	FromWebview = MustTable(`webview`, concat(WebviewToCore, IDECapabilities)...)

	// FromCore lists what the core may send; the webview or the IDE host handles it.
	FromCore = MustTable(`core`, concat(CoreToWebview, IDECapabilities)...)

	// FromIDE lists what the IDE host may send on its own behalf; the webview or the core handles it.
	FromIDE = MustTable(`ide`,
		FilesChanged, FilesOpened, DidChangeActiveTextEditor,
		SetColors, FocusInput, NewSession,
		IndexProgress, ConfigUpdate,
	)
)

func concat(lists ...[]Entry) []Entry {
	var seq []Entry
	for _, list := range lists {
		seq = append(seq, list...)
	}
	return seq
}
