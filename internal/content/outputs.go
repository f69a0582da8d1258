package content

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// ToolOutput is the decoded payload of a tool result.
type ToolOutput interface {
	toolOutput()
}

type ReadResult struct {
	FilePath       string
	Content        string
	StartLine      int
	NumLines       int
	SystemReminder string
}

type EditResult struct {
	FilePath  string
	Snippet   string
	StartLine int
}

type WriteResult struct {
	FilePath string
	Message  string
}

type BashResult struct {
	Content string
	HasANSI bool
}

type TaskResult struct {
	Result string
}

type Answer struct {
	Question string
	Answer   string
}

type AskUserQuestionResult struct {
	Answers []Answer
	Raw     string
}

type ExitPlanModeResult struct {
	Message  string
	Approved bool
}

type GenericResult struct {
	Text string
}

func (*ReadResult) toolOutput()            {}
func (*EditResult) toolOutput()            {}
func (*WriteResult) toolOutput()           {}
func (*BashResult) toolOutput()            {}
func (*TaskResult) toolOutput()            {}
func (*AskUserQuestionResult) toolOutput() {}
func (*ExitPlanModeResult) toolOutput()    {}
func (*GenericResult) toolOutput()         {}

// outputParser returns nil when text does not have the tool's result shape.
type outputParser func(text, filePath string) ToolOutput

var (
	catNLineRe       = regexp.MustCompile(`^\s+(\d+)→(.*)$`)
	answeredRe       = regexp.MustCompile(`(?s)^User has answered your questions?: (.+)\. You can now continue`)
	questionAnswerRe = regexp.MustCompile(`"([^"]+)"="([^"]+)"`)
)

const approvedPlanMarker = "## Approved Plan:"

// DecodeOutput parses result text for the named tool. filePath comes from the
// matching invocation's parameters. Unparseable results become GenericResult.
func DecodeOutput(name, text, filePath string, isError bool) ToolOutput {
	if spec, ok := tools[name]; ok && spec.output != nil && !isError && text != "" {
		if out := spec.output(text, filePath); out != nil {
			return out
		}
	}
	return &GenericResult{Text: text}
}

// ResultText flattens a tool_result content field, which is either a string
// or a list of blocks, to text.
func ResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == "text" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

type catN struct {
	code      string
	reminder  string
	startLine int
}

// parseCatN reads "   12→code" lines, collecting any system-reminder block,
// until the first line that is neither.
func parseCatN(lines []string) (catN, bool) {
	var (
		res        catN
		code       []string
		reminder   []string
		inReminder bool
	)
	res.startLine = 1
	for _, line := range lines {
		if strings.Contains(line, "<system-reminder>") {
			inReminder = true
			continue
		}
		if strings.Contains(line, "</system-reminder>") {
			inReminder = false
			continue
		}
		if inReminder {
			reminder = append(reminder, line)
			continue
		}
		if m := catNLineRe.FindStringSubmatch(line); m != nil {
			if len(code) == 0 {
				res.startLine, _ = strconv.Atoi(m[1])
			}
			code = append(code, m[2])
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		break
	}
	if len(code) == 0 {
		return res, false
	}
	res.code = strings.Join(code, "\n")
	res.reminder = strings.TrimSpace(strings.Join(reminder, "\n"))
	return res, true
}

func parseReadOutput(text, filePath string) ToolOutput {
	if filePath == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if !catNLineRe.MatchString(lines[0]) {
		return nil
	}
	snippet, ok := parseCatN(lines)
	if !ok {
		return nil
	}
	return &ReadResult{
		FilePath:       filePath,
		Content:        snippet.code,
		StartLine:      snippet.startLine,
		NumLines:       strings.Count(snippet.code, "\n") + 1,
		SystemReminder: snippet.reminder,
	}
}

func parseEditOutput(text, filePath string) ToolOutput {
	if filePath == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if !catNLineRe.MatchString(line) {
			continue
		}
		snippet, ok := parseCatN(lines[i:])
		if !ok {
			return nil
		}
		return &EditResult{FilePath: filePath, Snippet: snippet.code, StartLine: snippet.startLine}
	}
	return nil
}

func parseWriteOutput(text, filePath string) ToolOutput {
	if filePath == "" {
		return nil
	}
	first, _, _ := strings.Cut(text, "\n")
	if first == "" {
		return nil
	}
	return &WriteResult{FilePath: filePath, Message: first}
}

func parseBashOutput(text, _ string) ToolOutput {
	return &BashResult{Content: text, HasANSI: strings.Contains(text, "\x1b[")}
}

func parseTaskOutput(text, _ string) ToolOutput {
	return &TaskResult{Result: text}
}

func parseAskUserQuestionOutput(text, _ string) ToolOutput {
	m := answeredRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	pairs := questionAnswerRe.FindAllStringSubmatch(m[1], -1)
	if len(pairs) == 0 {
		return nil
	}
	out := &AskUserQuestionResult{Raw: text}
	for _, p := range pairs {
		out.Answers = append(out.Answers, Answer{Question: p[1], Answer: p[2]})
	}
	return out
}

func parseExitPlanModeOutput(text, _ string) ToolOutput {
	approved := strings.Contains(text, "User has approved your plan")
	msg := text
	if approved {
		if i := strings.Index(text, approvedPlanMarker); i > 0 {
			msg = strings.TrimRight(text[:i], " \t\r\n")
		}
	}
	return &ExitPlanModeResult{Message: msg, Approved: approved}
}
