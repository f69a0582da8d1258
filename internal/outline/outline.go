package outline

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"ctxtree/internal/content"
	"ctxtree/internal/tree"

	"github.com/mattn/go-isatty"
)

const defaultWidth = 100

type Options struct {
	Color bool
	// Width caps each preview, in runes. Zero means 100.
	Width int
}

// ColorEnabled resolves a colour mode ("auto", "always" or "never") against
// the file the outline is written to.
func ColorEnabled(mode string, f *os.File) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if f == nil || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type Formatter struct {
	opts   Options
	styles styles
}

func New(w io.Writer, opts Options) *Formatter {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	return &Formatter{opts: opts, styles: newStyles(w, opts.Color)}
}

// Write prints t as an indented outline, two spaces per level. Nodes with
// children end with a count of what they contain.
func (f *Formatter) Write(w io.Writer, t *tree.Tree) error {
	for _, fn := range tree.Flatten(t) {
		line := strings.Repeat("  ", fn.Depth) + f.line(t, fn.Index)
		if n := t.Node(fn.Index); len(n.Children) > 0 {
			if folded := foldSummary(t.KindCounts(fn.Index, false)); folded != "" {
				line += " " + f.styles.dim.Render("["+folded+"]")
			}
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// WriteFlat prints one tab-separated row per node in preorder:
// index, depth, parent, kind, preview.
func (f *Formatter) WriteFlat(w io.Writer, t *tree.Tree) error {
	for _, fn := range tree.Flatten(t) {
		n := t.Node(fn.Index)
		preview := f.preview(content.Text(n.Content))
		if _, err := fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\n", fn.Index, fn.Depth, fn.Parent, n.Content.Kind(), preview); err != nil {
			return err
		}
	}
	return nil
}

func (f *Formatter) line(t *tree.Tree, idx int) string {
	n := t.Node(idx)
	m := t.Message(idx)
	s := f.styles

	var label, body string
	switch c := n.Content.(type) {
	case content.SessionHeader:
		label = s.session.Render("Session " + c.SessionID)
		body = c.Summary
		if body == "" {
			body = c.CWD
		}
	case content.UserText, content.UserSlashCommand, content.CompactedSummary, content.UserMemory:
		label = s.user.Render(labelFor(c.Kind()))
		body = content.Text(c)
	case content.UserSteering:
		label = s.user.Render("Steering")
		body = c.Text
	case content.SlashCommand:
		label = s.user.Render("Command")
		body = strings.TrimSpace(c.Name + " " + c.Args)
	case content.BashInput:
		label = s.user.Render("Shell")
		body = "$ " + c.Command
	case content.CommandOutput, content.BashOutput:
		label = s.dim.Render("Output")
		body = content.Text(c)
	case content.AssistantText:
		label = s.assistant.Render("Assistant")
		body = c.Text
	case content.Thinking:
		label = s.thinking.Render("Thinking")
		body = c.Text
	case content.ToolUse:
		label = s.tool.Render("Tool " + c.Name)
		body = toolBrief(c.Input)
	case content.ToolResult:
		if c.IsError {
			label = s.failed.Render("Error")
		} else {
			label = s.result.Render("Result")
		}
		body = c.Text
	case content.System:
		label = s.system.Render("System " + c.Level)
		body = c.Text
	case content.HookSummary:
		label = s.system.Render("Hooks")
		body = strings.Join(c.Commands, ", ")
		if len(c.Errors) > 0 {
			body += fmt.Sprintf(" (%d failed)", len(c.Errors))
		}
	case content.Image:
		label = s.dim.Render("Image")
		body = c.MediaType
	case content.DedupNotice:
		label = s.dim.Render("Duplicate")
		body = fmt.Sprintf("%s #%d", c.Text, c.Target)
	case content.Unknown:
		label = s.dim.Render("Unknown")
		body = c.Type
	default:
		label = string(n.Content.Kind())
	}

	out := label
	if p := f.preview(body); p != "" {
		out += " " + p
	}
	if m != nil && m.Pair != nil && m.Pair.Role == tree.PairLast && m.Pair.Duration > 0 {
		out += " " + s.dim.Render("("+m.Pair.Duration.Round(time.Millisecond).String()+")")
	}
	return out
}

func labelFor(k content.Kind) string {
	switch k {
	case content.KindUserSlashCommand:
		return "Prompt"
	case content.KindCompactedSummary:
		return "Compacted"
	case content.KindUserMemory:
		return "Memory"
	}
	return "User"
}

func toolBrief(in content.ToolInput) string {
	switch p := in.(type) {
	case *content.BashParams:
		return p.Command
	case *content.ReadParams:
		return p.FilePath
	case *content.WriteParams:
		return p.FilePath
	case *content.EditParams:
		return p.FilePath
	case *content.MultiEditParams:
		return fmt.Sprintf("%s (%d edits)", p.FilePath, len(p.Edits))
	case *content.GlobParams:
		return p.Pattern
	case *content.GrepParams:
		return p.Pattern
	case *content.TaskParams:
		if p.Description != "" {
			return p.Description
		}
		return p.Prompt
	case *content.TodoWriteParams:
		return fmt.Sprintf("%d todos", len(p.Todos))
	case *content.AskUserQuestionParams:
		if len(p.Questions) > 0 {
			return p.Questions[0].Question
		}
		return p.Question
	case *content.ExitPlanModeParams:
		return p.Plan
	}
	return ""
}

// preview keeps the first line of s, cut to the formatter width.
func (f *Formatter) preview(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i]) + " …"
	}
	r := []rune(s)
	if len(r) > f.opts.Width {
		return string(r[:f.opts.Width-1]) + "…"
	}
	return s
}

func foldSummary(counts map[content.Kind]int) string {
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%d %s", counts[content.Kind(k)], k))
	}
	return strings.Join(parts, ", ")
}
