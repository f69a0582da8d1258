package tree

import (
	"ctxtree/internal/content"
)

type agentKey struct {
	session string
	agent   string
}

// PlaceSidechains moves each sub-agent's messages directly after the main-line
// tool result that reports the agent's id. Sub-agent messages with no such
// result keep their position.
func PlaceSidechains(r *Registry, seq []int) []int {
	anchors := map[agentKey]int{}
	for _, idx := range seq {
		m := r.Get(idx)
		if m.Meta.Sidechain || m.Meta.AgentID == "" || m.Kind() != content.KindToolResult {
			continue
		}
		key := agentKey{m.Meta.SessionID, m.Meta.AgentID}
		if _, ok := anchors[key]; !ok {
			anchors[key] = idx
		}
	}
	if len(anchors) == 0 {
		return seq
	}

	groups := map[agentKey][]int{}
	for _, idx := range seq {
		m := r.Get(idx)
		if !m.Meta.Sidechain || m.Meta.AgentID == "" {
			continue
		}
		key := agentKey{m.Meta.SessionID, m.Meta.AgentID}
		if _, ok := anchors[key]; ok {
			groups[key] = append(groups[key], idx)
		}
	}

	out := make([]int, 0, len(seq))
	for _, idx := range seq {
		m := r.Get(idx)
		key := agentKey{m.Meta.SessionID, m.Meta.AgentID}
		if m.Meta.Sidechain && m.Meta.AgentID != "" {
			if _, ok := anchors[key]; ok {
				continue
			}
		}
		out = append(out, idx)
		if a, ok := anchors[key]; ok && a == idx && !m.Meta.Sidechain {
			out = append(out, groups[key]...)
		}
	}
	return out
}

// DropRestatedPrompts removes the opening message of each sub-agent when it
// is a user text. That message repeats the prompt of the tool call that
// spawned the agent. Later user texts of the same agent are kept even when
// main-line messages interrupt its run. Dropped messages stay in the registry.
func DropRestatedPrompts(r *Registry, seq []int) []int {
	out := make([]int, 0, len(seq))
	seen := map[agentKey]bool{}
	for _, idx := range seq {
		m := r.Get(idx)
		if m.Meta.Sidechain {
			key := agentKey{m.Meta.SessionID, m.Meta.AgentID}
			opening := !seen[key]
			seen[key] = true
			if opening && m.Kind() == content.KindUserText {
				continue
			}
		}
		out = append(out, idx)
	}
	return out
}
