package content

type Kind string

const (
	KindSessionHeader    Kind = "session_header"
	KindUserText         Kind = "user_text"
	KindUserSlashCommand Kind = "user_slash_command"
	KindSlashCommand     Kind = "slash_command"
	KindCommandOutput    Kind = "command_output"
	KindBashInput        Kind = "bash_input"
	KindBashOutput       Kind = "bash_output"
	KindCompactedSummary Kind = "compacted_summary"
	KindUserMemory       Kind = "user_memory"
	KindUserSteering     Kind = "user_steering"
	KindAssistantText    Kind = "assistant_text"
	KindThinking         Kind = "thinking"
	KindToolUse          Kind = "tool_use"
	KindToolResult       Kind = "tool_result"
	KindSystem           Kind = "system"
	KindHookSummary      Kind = "hook_summary"
	KindImage            Kind = "image"
	KindUnknown          Kind = "unknown"
	KindDedupNotice      Kind = "dedup_notice"
)

// Content is the closed set of message payloads. Every variant is defined in
// this package.
type Content interface {
	Kind() Kind
	sealed()
}

// UserSide reports whether k is produced by the human side of a conversation.
func UserSide(k Kind) bool {
	switch k {
	case KindUserText, KindUserSlashCommand, KindSlashCommand, KindCommandOutput,
		KindBashInput, KindBashOutput, KindCompactedSummary, KindUserMemory, KindUserSteering:
		return true
	}
	return false
}

type SessionHeader struct {
	SessionID string
	Summary   string
	CWD       string
}

type IDENotification struct {
	Type    string // opened_file, selection, diagnostics
	Content string
	// Diagnostics holds the decoded diagnostics array when it parsed as JSON.
	Diagnostics []map[string]any
}

type UserText struct {
	Text string
	IDE  []IDENotification
}

// UserSlashCommand is the prompt a slash command expands to (meta user entry).
type UserSlashCommand struct {
	Text string
}

type SlashCommand struct {
	Name     string
	Args     string
	Contents string
}

type CommandOutput struct {
	Stdout   string
	Markdown bool
}

type BashInput struct {
	Command string
}

type BashOutput struct {
	Stdout string
	Stderr string
}

type CompactedSummary struct {
	Text string
}

type UserMemory struct {
	Text string
}

// UserSteering is input the user queued while the agent was working.
type UserSteering struct {
	Text string
}

type AssistantText struct {
	Text string
}

type Thinking struct {
	Text      string
	Signature string
}

type Decoding string

const (
	DecodedStrict  Decoding = "strict"
	DecodedLenient Decoding = "lenient"
	DecodedGeneric Decoding = "generic"
)

type ToolUse struct {
	ID       string
	Name     string
	Input    ToolInput
	Decoding Decoding
}

type ToolResult struct {
	ToolUseID string
	// ToolName is resolved from the matching invocation, empty when unseen.
	ToolName string
	IsError  bool
	Text     string
	Output   ToolOutput
}

type System struct {
	Level   string
	Subtype string
	Text    string
}

type HookSummary struct {
	HasOutput bool
	Errors    []string
	Commands  []string
}

type Image struct {
	MediaType string
	Size      int
}

type Unknown struct {
	Type string
}

// DedupNotice replaces content that repeats a tool result shown elsewhere.
type DedupNotice struct {
	Text     string
	Target   int
	Original Content
}

func (SessionHeader) Kind() Kind    { return KindSessionHeader }
func (UserText) Kind() Kind         { return KindUserText }
func (UserSlashCommand) Kind() Kind { return KindUserSlashCommand }
func (SlashCommand) Kind() Kind     { return KindSlashCommand }
func (CommandOutput) Kind() Kind    { return KindCommandOutput }
func (BashInput) Kind() Kind        { return KindBashInput }
func (BashOutput) Kind() Kind       { return KindBashOutput }
func (CompactedSummary) Kind() Kind { return KindCompactedSummary }
func (UserMemory) Kind() Kind       { return KindUserMemory }
func (UserSteering) Kind() Kind     { return KindUserSteering }
func (AssistantText) Kind() Kind    { return KindAssistantText }
func (Thinking) Kind() Kind         { return KindThinking }
func (ToolUse) Kind() Kind          { return KindToolUse }
func (ToolResult) Kind() Kind       { return KindToolResult }
func (System) Kind() Kind           { return KindSystem }
func (HookSummary) Kind() Kind      { return KindHookSummary }
func (Image) Kind() Kind            { return KindImage }
func (Unknown) Kind() Kind          { return KindUnknown }
func (DedupNotice) Kind() Kind      { return KindDedupNotice }

func (SessionHeader) sealed()    {}
func (UserText) sealed()         {}
func (UserSlashCommand) sealed() {}
func (SlashCommand) sealed()     {}
func (CommandOutput) sealed()    {}
func (BashInput) sealed()        {}
func (BashOutput) sealed()       {}
func (CompactedSummary) sealed() {}
func (UserMemory) sealed()       {}
func (UserSteering) sealed()     {}
func (AssistantText) sealed()    {}
func (Thinking) sealed()         {}
func (ToolUse) sealed()          {}
func (ToolResult) sealed()       {}
func (System) sealed()           {}
func (HookSummary) sealed()      {}
func (Image) sealed()            {}
func (Unknown) sealed()          {}
func (DedupNotice) sealed()      {}

// Text returns the primary text carried by c, used for previews and matching.
func Text(c Content) string {
	switch v := c.(type) {
	case SessionHeader:
		return v.Summary
	case UserText:
		return v.Text
	case UserSlashCommand:
		return v.Text
	case SlashCommand:
		return v.Name
	case CommandOutput:
		return v.Stdout
	case BashInput:
		return v.Command
	case BashOutput:
		if v.Stdout == "" {
			return v.Stderr
		}
		return v.Stdout
	case CompactedSummary:
		return v.Text
	case UserMemory:
		return v.Text
	case UserSteering:
		return v.Text
	case AssistantText:
		return v.Text
	case Thinking:
		return v.Text
	case ToolUse:
		return v.Name
	case ToolResult:
		return v.Text
	case System:
		return v.Text
	case DedupNotice:
		return v.Text
	}
	return ""
}
