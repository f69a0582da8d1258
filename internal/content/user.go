package content

import (
	"encoding/json"
	"regexp"
	"strings"
)

const compactedPrefix = "This session is being continued from a previous conversation that ran out of context"

var (
	commandNameRe     = regexp.MustCompile(`<command-name>([^<]+)</command-name>`)
	commandArgsRe     = regexp.MustCompile(`<command-args>([^<]*)</command-args>`)
	commandContentsRe = regexp.MustCompile(`(?s)<command-contents>(.+?)</command-contents>`)
	localStdoutRe     = regexp.MustCompile(`(?s)<local-command-stdout>(.*?)</local-command-stdout>`)
	markdownHeadingRe = regexp.MustCompile(`(?m)^#+\s+`)
	bashInputRe       = regexp.MustCompile(`(?s)<bash-input>(.*?)</bash-input>`)
	bashStdoutRe      = regexp.MustCompile(`(?s)<bash-stdout>(.*?)</bash-stdout>`)
	bashStderrRe      = regexp.MustCompile(`(?s)<bash-stderr>(.*?)</bash-stderr>`)
	userMemoryRe      = regexp.MustCompile(`(?s)<user-memory-input>(.*?)</user-memory-input>`)

	ideOpenedFileRe  = regexp.MustCompile(`(?s)<ide_opened_file>(.*?)</ide_opened_file>`)
	ideSelectionRe   = regexp.MustCompile(`(?s)<ide_selection>(.*?)</ide_selection>`)
	ideDiagnosticsRe = regexp.MustCompile(`(?s)<post-tool-use-hook>\s*<ide_diagnostics>(.*?)</ide_diagnostics>\s*</post-tool-use-hook>`)
)

// classifyUserText picks the user-side variant for one text block by its
// embedded markers. ok is false when nothing displayable remains.
func classifyUserText(text string) (Content, bool) {
	switch {
	case strings.Contains(text, "<command-name>") && strings.Contains(text, "<command-message>"):
		if c, ok := parseSlashCommand(text); ok {
			return c, true
		}
	case strings.Contains(text, "<local-command-stdout>"):
		if m := localStdoutRe.FindStringSubmatch(text); m != nil {
			out := strings.TrimSpace(m[1])
			return CommandOutput{Stdout: out, Markdown: markdownHeadingRe.MatchString(out)}, true
		}
	case strings.Contains(text, "<bash-input>") && strings.Contains(text, "</bash-input>"):
		if m := bashInputRe.FindStringSubmatch(text); m != nil {
			return BashInput{Command: strings.TrimSpace(m[1])}, true
		}
	case strings.Contains(text, "<bash-stdout>") || strings.Contains(text, "<bash-stderr>"):
		return BashOutput{
			Stdout: firstGroup(bashStdoutRe, text),
			Stderr: firstGroup(bashStderrRe, text),
		}, true
	case strings.HasPrefix(text, compactedPrefix):
		return CompactedSummary{Text: text}, true
	}

	if m := userMemoryRe.FindStringSubmatch(text); m != nil {
		return UserMemory{Text: strings.TrimSpace(m[1])}, true
	}

	ide, rest := extractIDE(text)
	rest = strings.TrimSpace(rest)
	if rest == "" && len(ide) == 0 {
		return nil, false
	}
	return UserText{Text: rest, IDE: ide}, true
}

func parseSlashCommand(text string) (SlashCommand, bool) {
	m := commandNameRe.FindStringSubmatch(text)
	if m == nil {
		return SlashCommand{}, false
	}
	cmd := SlashCommand{
		Name: strings.TrimSpace(m[1]),
		Args: firstGroup(commandArgsRe, text),
	}
	if contents := firstGroup(commandContentsRe, text); contents != "" {
		var payload struct {
			Text *string `json:"text"`
		}
		if err := json.Unmarshal([]byte(contents), &payload); err == nil && payload.Text != nil {
			contents = *payload.Text
		}
		cmd.Contents = contents
	}
	return cmd, true
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// extractIDE pulls IDE notification tags out of text and returns what is left.
func extractIDE(text string) ([]IDENotification, string) {
	var out []IDENotification
	for _, m := range ideOpenedFileRe.FindAllStringSubmatch(text, -1) {
		out = append(out, IDENotification{Type: "opened_file", Content: strings.TrimSpace(m[1])})
	}
	text = ideOpenedFileRe.ReplaceAllString(text, "")

	for _, m := range ideSelectionRe.FindAllStringSubmatch(text, -1) {
		out = append(out, IDENotification{Type: "selection", Content: strings.TrimSpace(m[1])})
	}
	text = ideSelectionRe.ReplaceAllString(text, "")

	for _, m := range ideDiagnosticsRe.FindAllStringSubmatch(text, -1) {
		raw := strings.TrimSpace(m[1])
		n := IDENotification{Type: "diagnostics", Content: raw}
		var diags []map[string]any
		if err := json.Unmarshal([]byte(raw), &diags); err == nil {
			n.Diagnostics = diags
		}
		out = append(out, n)
	}
	text = ideDiagnosticsRe.ReplaceAllString(text, "")
	return out, text
}
