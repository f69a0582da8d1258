package content

import (
	"strings"

	"ctxtree/internal/transcript"
)

type toolCall struct {
	name  string
	input ToolInput
}

// Classifier maps entries to content variants. It remembers the tool
// invocations it has seen so that results can be decoded with their tool's
// parser. Use one Classifier per document.
type Classifier struct {
	summaries map[string]string
	calls     map[string]toolCall
}

func NewClassifier(summaries map[string]string) *Classifier {
	return &Classifier{
		summaries: summaries,
		calls:     map[string]toolCall{},
	}
}

// Classify returns one Content per displayable content block of e, in order.
// Empty text blocks produce nothing. Entries with no content blocks (system,
// session markers, queue operations) produce exactly one Content.
func (c *Classifier) Classify(e transcript.Entry) []Content {
	switch e.Kind {
	case transcript.KindSessionStart:
		return []Content{SessionHeader{SessionID: e.SessionID, Summary: c.summaries[e.SessionID], CWD: e.CWD}}
	case transcript.KindSystem:
		return []Content{classifySystem(e)}
	case transcript.KindQueueOperation:
		text := strings.TrimSpace(e.Text)
		if text == "" {
			text = strings.TrimSpace(e.TextContent())
		}
		if text == "" {
			return nil
		}
		return []Content{UserSteering{Text: text}}
	}

	out := make([]Content, 0, len(e.Content))
	for _, it := range e.Content {
		if ct, ok := c.classifyItem(e, it); ok {
			out = append(out, ct)
		}
	}
	return out
}

func classifySystem(e transcript.Entry) Content {
	if e.Subtype == "stop_hook_summary" {
		h := HookSummary{HasOutput: e.HasOutput, Errors: e.HookErrors}
		for _, info := range e.HookInfos {
			h.Commands = append(h.Commands, info.Command)
		}
		return h
	}
	return System{Level: e.Level, Subtype: e.Subtype, Text: strings.TrimSpace(e.Text)}
}

func (c *Classifier) classifyItem(e transcript.Entry, it transcript.Item) (Content, bool) {
	switch it.Type {
	case transcript.ItemToolUse:
		input, decoding := DecodeInput(it.ToolName, it.Input)
		c.calls[callKey(e.SessionID, it.ToolID)] = toolCall{name: it.ToolName, input: input}
		return ToolUse{ID: it.ToolID, Name: it.ToolName, Input: input, Decoding: decoding}, true
	case transcript.ItemToolResult:
		return c.toolResult(e, it), true
	case transcript.ItemThinking:
		if strings.TrimSpace(it.Thinking) == "" {
			return nil, false
		}
		return Thinking{Text: it.Thinking, Signature: it.Signature}, true
	case transcript.ItemImage:
		return Image{MediaType: it.MediaType, Size: len(it.Data)}, true
	case transcript.ItemText:
		if strings.TrimSpace(it.Text) == "" {
			return nil, false
		}
		if e.Kind == transcript.KindAssistant {
			return AssistantText{Text: it.Text}, true
		}
		if e.IsMeta {
			return UserSlashCommand{Text: it.Text}, true
		}
		return classifyUserText(it.Text)
	}
	return Unknown{Type: string(it.Type)}, true
}

func (c *Classifier) toolResult(e transcript.Entry, it transcript.Item) ToolResult {
	text := ResultText(it.Result)
	res := ToolResult{ToolUseID: it.ToolUseID, IsError: it.IsError, Text: text}
	call, ok := c.calls[callKey(e.SessionID, it.ToolUseID)]
	if !ok {
		res.Output = &GenericResult{Text: text}
		return res
	}
	res.ToolName = call.name
	res.Output = DecodeOutput(call.name, text, filePathOf(call.input), it.IsError)
	return res
}

func callKey(sessionID, toolID string) string {
	return sessionID + "\x00" + toolID
}
