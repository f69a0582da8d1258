package capture

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ctxtree/internal/transcript"
)

var ErrNotTranscript = errors.New("not a transcript line")

// skippedTypes are line types Claude writes for its own bookkeeping.
var skippedTypes = map[string]bool{
	"file-history-snapshot": true,
	"progress":              true,
	"custom-title":          true,
}

type rawUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

type rawMessage struct {
	ID      string          `json:"id"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
	Usage   *rawUsage       `json:"usage"`
}

type rawItem struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
	Thinking  string          `json:"thinking"`
	Signature string          `json:"signature"`
	Source    *struct {
		MediaType string `json:"media_type"`
		Data      string `json:"data"`
	} `json:"source"`
}

type rawLine struct {
	Type          string          `json:"type"`
	UUID          string          `json:"uuid"`
	ParentUUID    *string         `json:"parentUuid"`
	SessionID     string          `json:"sessionId"`
	Timestamp     string          `json:"timestamp"`
	IsSidechain   bool            `json:"isSidechain"`
	IsMeta        bool            `json:"isMeta"`
	AgentID       string          `json:"agentId"`
	CWD           string          `json:"cwd"`
	RequestID     string          `json:"requestId"`
	Message       *rawMessage     `json:"message"`
	ToolUseResult json.RawMessage `json:"toolUseResult"`

	Content    json.RawMessage `json:"content"`
	Level      string          `json:"level"`
	Subtype    string          `json:"subtype"`
	HasOutput  bool            `json:"hasOutput"`
	HookErrors []string        `json:"hookErrors"`
	HookInfos  []struct {
		Command string `json:"command"`
	} `json:"hookInfos"`

	Summary   string `json:"summary"`
	LeafUUID  string `json:"leafUuid"`
	Operation string `json:"operation"`
}

// FindProjectDir maps a working directory to its folder under
// ~/.claude/projects.
func FindProjectDir(projectDir string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}

	projectsDir := filepath.Join(homeDir, ".claude", "projects")
	if _, err := os.Stat(projectsDir); os.IsNotExist(err) {
		return "", fmt.Errorf("claude projects directory not found at %s", projectsDir)
	}

	dir := filepath.Join(projectsDir, ProjectFolder(projectDir))
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return "", fmt.Errorf("no Claude transcripts found for this project at %s", dir)
	}
	return dir, nil
}

// ProjectFolder is the folder name Claude uses for a project path:
// "/home/me/app" becomes "-home-me-app".
func ProjectFolder(projectDir string) string {
	clean := filepath.ToSlash(filepath.Clean(projectDir))
	return "-" + strings.ReplaceAll(strings.TrimPrefix(clean, "/"), "/", "-")
}

// FindTranscriptFiles lists the session transcripts directly inside dir.
// Sub-agent files are loaded through their parent session instead.
func FindTranscriptFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == ".jsonl" && !strings.HasPrefix(info.Name(), "agent-") {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// LoadSession parses a session file together with the sub-agent files it
// references. Each agent's entries are spliced in right after the first
// entry that names the agent.
func LoadSession(path string) ([]transcript.Entry, []transcript.Diagnostic, error) {
	return loadSession(path, map[string]bool{})
}

func loadSession(path string, loaded map[string]bool) ([]transcript.Entry, []transcript.Diagnostic, error) {
	if loaded[path] {
		return nil, nil, nil
	}
	loaded[path] = true

	entries, diags, err := ParseFile(path)
	if err != nil {
		return nil, diags, err
	}

	agents := map[string][]transcript.Entry{}
	for _, e := range entries {
		if e.AgentID == "" || e.Sidechain {
			continue
		}
		if _, seen := agents[e.AgentID]; seen {
			continue
		}
		agentFile := findAgentFile(path, e.AgentID)
		if agentFile == "" {
			continue
		}
		agentEntries, agentDiags, err := loadSession(agentFile, loaded)
		diags = append(diags, agentDiags...)
		if err != nil {
			diags = append(diags, transcript.Diagnostic{Source: agentFile, Err: err})
			continue
		}
		agents[e.AgentID] = agentEntries
	}
	if len(agents) == 0 {
		return entries, diags, nil
	}

	out := make([]transcript.Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
		if e.Sidechain || e.AgentID == "" {
			continue
		}
		if agentEntries, ok := agents[e.AgentID]; ok {
			out = append(out, agentEntries...)
			delete(agents, e.AgentID)
		}
	}
	return out, diags, nil
}

func findAgentFile(sessionPath, agentID string) string {
	dir := filepath.Dir(sessionPath)
	name := "agent-" + agentID + ".jsonl"
	candidates := []string{
		filepath.Join(dir, name),
		filepath.Join(dir, strings.TrimSuffix(filepath.Base(sessionPath), ".jsonl"), "subagents", name),
	}
	for _, c := range candidates {
		if c == sessionPath {
			continue
		}
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func ParseFile(path string) ([]transcript.Entry, []transcript.Diagnostic, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()
	return ParseReader(f, path)
}

// ParseReader reads Claude JSONL. Lines that are not transcript entries are
// reported as diagnostics and skipped; only read failures return an error.
func ParseReader(r io.Reader, source string) ([]transcript.Entry, []transcript.Diagnostic, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)

	var entries []transcript.Entry
	var diags []transcript.Diagnostic
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var rl rawLine
		if err := json.Unmarshal(line, &rl); err != nil {
			diags = append(diags, transcript.Diagnostic{
				Source: source,
				Line:   lineNo,
				Err:    fmt.Errorf("%w: %v", ErrNotTranscript, err),
			})
			continue
		}
		if skippedTypes[rl.Type] {
			continue
		}

		e, err := rl.entry()
		if err != nil {
			diags = append(diags, transcript.Diagnostic{Source: source, Line: lineNo, Err: err})
			continue
		}
		e.Source = source
		e.Line = lineNo
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, diags, fmt.Errorf("read %s: %w", source, err)
	}
	return entries, diags, nil
}

func (rl rawLine) entry() (transcript.Entry, error) {
	e := transcript.Entry{
		Kind:      transcript.Kind(rl.Type),
		SessionID: rl.SessionID,
		UUID:      rl.UUID,
		Sidechain: rl.IsSidechain,
		AgentID:   rl.AgentID,
		IsMeta:    rl.IsMeta,
		CWD:       rl.CWD,
		RequestID: rl.RequestID,
		Level:     rl.Level,
		Subtype:   rl.Subtype,
		HasOutput: rl.HasOutput,

		HookErrors: rl.HookErrors,
		Summary:    rl.Summary,
		LeafUUID:   rl.LeafUUID,
		Operation:  rl.Operation,
	}
	if rl.ParentUUID != nil {
		e.ParentUUID = *rl.ParentUUID
	}
	if rl.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, rl.Timestamp)
		if err != nil {
			return e, fmt.Errorf("%w: bad timestamp %q", ErrNotTranscript, rl.Timestamp)
		}
		e.Timestamp = ts
	}
	for _, h := range rl.HookInfos {
		e.HookInfos = append(e.HookInfos, transcript.HookInfo{Command: h.Command})
	}
	if e.AgentID == "" && len(rl.ToolUseResult) > 0 {
		var tr struct {
			AgentID string `json:"agentId"`
		}
		if json.Unmarshal(rl.ToolUseResult, &tr) == nil {
			e.AgentID = tr.AgentID
		}
	}

	if rl.Message != nil {
		e.MessageID = rl.Message.ID
		e.Model = rl.Message.Model
		if u := rl.Message.Usage; u != nil {
			e.Usage = &transcript.Usage{
				InputTokens:         u.InputTokens,
				OutputTokens:        u.OutputTokens,
				CacheCreationTokens: u.CacheCreationInputTokens,
				CacheReadTokens:     u.CacheReadInputTokens,
			}
		}
		items, err := parseItems(rl.Message.Content)
		if err != nil {
			return e, err
		}
		e.Content = items
		return e, nil
	}

	// system and queue-operation lines carry content at the top level
	if len(rl.Content) > 0 {
		var text string
		if json.Unmarshal(rl.Content, &text) == nil {
			e.Text = text
		} else {
			items, err := parseItems(rl.Content)
			if err != nil {
				return e, err
			}
			e.Content = items
		}
	}
	return e, nil
}

func parseItems(raw json.RawMessage) ([]transcript.Item, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return []transcript.Item{{Type: transcript.ItemText, Text: text}}, nil
	}

	var blocks []rawItem
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, fmt.Errorf("%w: content: %v", ErrNotTranscript, err)
	}
	items := make([]transcript.Item, 0, len(blocks))
	for _, b := range blocks {
		it := transcript.Item{
			Type:      transcript.ItemType(b.Type),
			Text:      b.Text,
			ToolID:    b.ID,
			ToolName:  b.Name,
			Input:     b.Input,
			ToolUseID: b.ToolUseID,
			Result:    b.Content,
			IsError:   b.IsError,
			Thinking:  b.Thinking,
			Signature: b.Signature,
		}
		if b.Source != nil {
			it.MediaType = b.Source.MediaType
			it.Data = b.Source.Data
		}
		items = append(items, it)
	}
	return items, nil
}
