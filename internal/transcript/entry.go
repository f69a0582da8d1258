package transcript

import (
	"encoding/json"
	"time"
)

type Kind string

const (
	KindUser           Kind = "user"
	KindAssistant      Kind = "assistant"
	KindSystem         Kind = "system"
	KindSummary        Kind = "summary"
	KindQueueOperation Kind = "queue-operation"

	// KindSessionStart marks a session boundary. Only Normalize produces it.
	KindSessionStart Kind = "session-start"
)

type ItemType string

const (
	ItemText       ItemType = "text"
	ItemToolUse    ItemType = "tool_use"
	ItemToolResult ItemType = "tool_result"
	ItemThinking   ItemType = "thinking"
	ItemImage      ItemType = "image"
)

// Item is one content block of an entry. Which fields are set depends on Type.
type Item struct {
	Type ItemType

	Text string

	// tool_use
	ToolID   string
	ToolName string
	Input    json.RawMessage

	// tool_result
	ToolUseID string
	Result    json.RawMessage
	IsError   bool

	// thinking
	Thinking  string
	Signature string

	// image
	MediaType string
	Data      string
}

type Usage struct {
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
}

type HookInfo struct {
	Command string
}

type Entry struct {
	Kind       Kind
	Timestamp  time.Time
	SessionID  string
	UUID       string
	ParentUUID string
	Sidechain  bool
	AgentID    string
	IsMeta     bool
	CWD        string

	// assistant
	RequestID string
	MessageID string
	Model     string
	Usage     *Usage

	Content []Item

	// system
	Level      string
	Subtype    string
	Text       string
	HasOutput  bool
	HookErrors []string
	HookInfos  []HookInfo

	// summary
	Summary  string
	LeafUUID string

	// queue-operation
	Operation string

	// Source file and 1-based line, for diagnostics.
	Source string
	Line   int
}

// TextContent joins the text items of the entry.
func (e Entry) TextContent() string {
	var out string
	for _, it := range e.Content {
		if it.Type != ItemText {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += it.Text
	}
	if out == "" && e.Kind != KindUser && e.Kind != KindAssistant {
		return e.Text
	}
	return out
}

func (e Entry) hasType(t ItemType) bool {
	for _, it := range e.Content {
		if it.Type == t {
			return true
		}
	}
	return false
}
