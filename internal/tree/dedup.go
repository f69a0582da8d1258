package tree

import (
	"regexp"
	"slices"
	"strings"

	"ctxtree/internal/content"
)

const DedupNoticeText = "Task summary (see result above)"

var agentIDTrailerRe = regexp.MustCompile(`(?i)\n*agentId:\s*\w+\s*\([^)]*\)\s*$`)

// normalizeForDedup drops the trailing agentId line sub-agent results carry.
func normalizeForDedup(s string) string {
	s = agentIDTrailerRe.ReplaceAllString(s, "")
	return strings.ToLower(strings.TrimSpace(s))
}

// Dedup returns a copy of t in which each sub-agent's final reply that repeats
// its spawning tool result is shown as a DedupNotice pointing at the result.
// The replaced node's children move up to its parent, right after it. The
// input tree and all messages are left untouched.
func Dedup(t *Tree) (*Tree, int) {
	out := t.Clone()
	replaced := 0
	for _, f := range Flatten(t) {
		res, ok := t.reg.Get(f.Index).Content.(content.ToolResult)
		if !ok || !content.IsSubagentTool(res.ToolName) {
			continue
		}
		target := normalizeForDedup(res.Text)
		if target == "" {
			continue
		}
		node := out.nodes[f.Index]
		for i := len(node.Children) - 1; i >= 0; i-- {
			child := node.Children[i]
			m := t.reg.Get(child)
			reply, ok := m.Content.(content.AssistantText)
			if !ok || !m.Meta.Sidechain || normalizeForDedup(reply.Text) != target {
				continue
			}
			out.replace(child, content.DedupNotice{Text: DedupNoticeText, Target: f.Index, Original: reply})
			replaced++
			break
		}
	}
	return out, replaced
}

// replace swaps the content of idx and splices its children into its
// parent's child list directly after it.
func (t *Tree) replace(idx int, c content.Content) {
	n := t.nodes[idx]
	n.Content = c
	if len(n.Children) == 0 {
		return
	}

	orphans := n.Children
	n.Children = nil
	for _, o := range orphans {
		t.nodes[o].Parent = n.Parent
	}

	if n.Parent < 0 {
		pos := slices.Index(t.roots, idx)
		t.roots = slices.Insert(t.roots, pos+1, orphans...)
		return
	}
	p := t.nodes[n.Parent]
	pos := slices.Index(p.Children, idx)
	p.Children = slices.Insert(p.Children, pos+1, orphans...)
}
