package tree

import (
	"ctxtree/internal/content"
)

// adjacentPairs lists the kinds that pair with the message directly after them.
var adjacentPairs = map[content.Kind]content.Kind{
	content.KindSlashCommand:     content.KindCommandOutput,
	content.KindUserSlashCommand: content.KindCommandOutput,
	content.KindBashInput:        content.KindBashOutput,
	content.KindThinking:         content.KindAssistantText,
}

type toolKey struct {
	session string
	id      string
}

// PairMessages links request-like messages in seq to their responses and
// returns the number of links made. Adjacent rules are tried first, then tool
// ids, system parent ids and slash commands whose parent is a system message.
// A message takes part in at most one link; results with no open invocation
// stay unpaired.
func PairMessages(r *Registry, seq []int) int {
	var (
		links    int
		consumed = make(map[int]bool, len(seq))
		tools    = map[toolKey]int{}
		systems  = map[string]int{}
		slashes  = map[string]int{}
	)
	for _, idx := range seq {
		m := r.Get(idx)
		if m == nil || m.Meta.ParentUUID == "" {
			continue
		}
		if k := m.Kind(); k != content.KindSlashCommand && k != content.KindUserSlashCommand {
			continue
		}
		if _, ok := slashes[m.Meta.ParentUUID]; !ok {
			slashes[m.Meta.ParentUUID] = idx
		}
	}
	link := func(first, last *Message) {
		first.Pair = &Pair{Role: PairFirst, Partner: last.Index}
		d := last.Meta.Timestamp.Sub(first.Meta.Timestamp)
		if d < 0 {
			d = 0
		}
		last.Pair = &Pair{Role: PairLast, Partner: first.Index, Duration: d}
		consumed[first.Index] = true
		consumed[last.Index] = true
		links++
	}

	for i := 0; i < len(seq); i++ {
		m := r.Get(seq[i])
		if m == nil || consumed[m.Index] {
			continue
		}

		if i+1 < len(seq) {
			next := r.Get(seq[i+1])
			if next != nil && !consumed[next.Index] && adjacent(m, next) {
				link(m, next)
				i++
				continue
			}
		}

		switch c := m.Content.(type) {
		case content.ToolUse:
			if c.ID != "" {
				tools[toolKey{m.Meta.SessionID, c.ID}] = m.Index
			}
		case content.ToolResult:
			key := toolKey{m.Meta.SessionID, c.ToolUseID}
			if fi, ok := tools[key]; ok && !consumed[fi] {
				link(r.Get(fi), m)
				delete(tools, key)
			}
		case content.System:
			if pi, ok := systems[m.Meta.ParentUUID]; ok && m.Meta.ParentUUID != "" && !consumed[pi] {
				link(r.Get(pi), m)
				delete(systems, m.Meta.ParentUUID)
				continue
			}
			if m.Meta.UUID == "" {
				continue
			}
			if si, ok := slashes[m.Meta.UUID]; ok && !consumed[si] {
				link(m, r.Get(si))
				continue
			}
			systems[m.Meta.UUID] = m.Index
		}
	}
	return links
}

// adjacent reports whether next answers m. Both must come from the same
// session and the same agent run, so a main-line message never pairs with
// an interleaved sub-agent message.
func adjacent(m, next *Message) bool {
	want, ok := adjacentPairs[m.Kind()]
	if !ok || next.Kind() != want {
		return false
	}
	return m.Meta.SessionID == next.Meta.SessionID &&
		m.Meta.Sidechain == next.Meta.Sidechain &&
		m.Meta.AgentID == next.Meta.AgentID
}

// Relocate returns seq with every pair's last member moved directly after its
// first member. All other messages keep their relative order.
func Relocate(r *Registry, seq []int) []int {
	present := make(map[int]bool, len(seq))
	for _, idx := range seq {
		present[idx] = true
	}

	out := make([]int, 0, len(seq))
	for _, idx := range seq {
		m := r.Get(idx)
		if m.Pair != nil && m.Pair.Role == PairLast && present[m.Pair.Partner] {
			continue
		}
		out = append(out, idx)
		if m.Pair != nil && m.Pair.Role == PairFirst && present[m.Pair.Partner] {
			out = append(out, m.Pair.Partner)
		}
	}
	return out
}
