package tree

import (
	"errors"
	"fmt"

	"ctxtree/internal/content"
	"ctxtree/internal/transcript"
)

// ErrStructural reports a sequence that violates the nesting rules, which
// means an earlier phase did not run or ran out of order.
var ErrStructural = errors.New("structural inconsistency")

const (
	RankSession = iota
	RankUser
	RankReply
	RankTool
	RankSidechainReply
	RankSidechainTool
)

// RankOf maps a content kind to its nesting class. modifier is the system
// level for system notices and the entry role for images and unknown blocks.
func RankOf(kind content.Kind, sidechain bool, modifier string) int {
	switch kind {
	case content.KindSessionHeader:
		return RankSession
	case content.KindToolUse, content.KindToolResult:
		if sidechain {
			return RankSidechainTool
		}
		return RankTool
	case content.KindAssistantText, content.KindThinking, content.KindHookSummary, content.KindDedupNotice:
		if sidechain {
			return RankSidechainReply
		}
		return RankReply
	case content.KindSystem:
		if sidechain {
			return RankSidechainReply
		}
		if modifier == "info" || modifier == "warning" {
			return RankTool
		}
		return RankReply
	case content.KindImage, content.KindUnknown:
		if modifier == string(transcript.KindUser) {
			return RankOf(content.KindUserText, sidechain, "")
		}
		return RankOf(content.KindAssistantText, sidechain, "")
	}
	if sidechain {
		return RankSidechainReply
	}
	return RankUser
}

func rankOf(m *Message) int {
	modifier := string(m.Meta.Role)
	if s, ok := m.Content.(content.System); ok {
		modifier = s.Level
	}
	return RankOf(m.Kind(), m.Meta.Sidechain, modifier)
}

type frame struct {
	rank  int
	level int
	index int
}

// BuildHierarchy assigns Rank, Level and Ancestry to every message in seq.
// Ancestry is nearest-first. Roots sit at Level 0 and every other message
// sits one Level below its parent.
func BuildHierarchy(r *Registry, seq []int) error {
	pos := make(map[int]int, len(seq))
	for i, idx := range seq {
		if r.Get(idx) == nil {
			return fmt.Errorf("%w: unknown message %d", ErrStructural, idx)
		}
		if _, dup := pos[idx]; dup {
			return fmt.Errorf("%w: message %d emitted twice", ErrStructural, idx)
		}
		pos[idx] = i
	}

	stack := make([]frame, 0, RankSidechainTool+1)
	for i, idx := range seq {
		m := r.Get(idx)
		if m.Pair != nil && m.Pair.Role == PairLast {
			if p, ok := pos[m.Pair.Partner]; ok && p > i {
				return fmt.Errorf("%w: message %d precedes its pair partner %d", ErrStructural, idx, m.Pair.Partner)
			}
		}

		rank := rankOf(m)
		if rank < RankSession || rank > RankSidechainTool {
			return fmt.Errorf("%w: message %d has rank %d", ErrStructural, idx, rank)
		}
		for len(stack) > 0 && stack[len(stack)-1].rank >= rank {
			stack = stack[:len(stack)-1]
		}

		ancestry := make([]int, len(stack))
		for j := range stack {
			ancestry[j] = stack[len(stack)-1-j].index
		}
		level := 0
		if len(stack) > 0 {
			level = stack[len(stack)-1].level + 1
		}

		m.Rank = rank
		m.Level = level
		m.Ancestry = ancestry
		stack = append(stack, frame{rank: rank, level: level, index: idx})
	}
	return nil
}
