package transcript

import (
	"strings"
	"time"
	"unicode/utf8"

	"ctxtree/internal/tokens"
)

const DefaultPreviewLength = 1000

type SessionAggregate struct {
	SessionID      string
	FirstTimestamp time.Time
	LastTimestamp  time.Time
	MessageCount   int

	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
	// EstimatedTokens covers text the log carries no usage for (user input,
	// assistant entries without a usage block).
	EstimatedTokens int

	FirstUserMessage string
	Summary          string
	CWD              string
}

func (a SessionAggregate) TotalTokens() int {
	return a.InputTokens + a.OutputTokens + a.CacheCreationTokens + a.CacheReadTokens
}

// Aggregate computes per-session statistics over a normalized stream, in
// session order. previewLen <= 0 uses DefaultPreviewLength.
func Aggregate(n *Normalized, previewLen int) []SessionAggregate {
	if previewLen <= 0 {
		previewLen = DefaultPreviewLength
	}

	idx := map[string]int{}
	out := make([]SessionAggregate, 0, len(n.Sessions))
	for _, sid := range n.Sessions {
		idx[sid] = len(out)
		out = append(out, SessionAggregate{SessionID: sid, Summary: n.Summaries[sid]})
	}

	seenRequests := map[string]bool{}
	for _, e := range n.Entries {
		i, ok := idx[e.SessionID]
		if !ok || e.Kind == KindSessionStart || e.Kind == KindSystem {
			continue
		}
		a := &out[i]

		if a.FirstTimestamp.IsZero() || e.Timestamp.Before(a.FirstTimestamp) {
			a.FirstTimestamp = e.Timestamp
		}
		if e.Timestamp.After(a.LastTimestamp) {
			a.LastTimestamp = e.Timestamp
		}
		a.MessageCount++
		if a.CWD == "" {
			a.CWD = e.CWD
		}

		switch e.Kind {
		case KindAssistant:
			if e.Usage == nil {
				a.EstimatedTokens += tokens.Estimate(e.TextContent(), tokens.FamilyOf(e.Model))
				continue
			}
			if e.RequestID != "" {
				if seenRequests[e.RequestID] {
					continue
				}
				seenRequests[e.RequestID] = true
			}
			a.InputTokens += e.Usage.InputTokens
			a.OutputTokens += e.Usage.OutputTokens
			a.CacheCreationTokens += e.Usage.CacheCreationTokens
			a.CacheReadTokens += e.Usage.CacheReadTokens
		case KindUser:
			text := e.TextContent()
			if !e.IsMeta {
				a.EstimatedTokens += tokens.Estimate(text, tokens.FamilyClaude)
			}
			if a.FirstUserMessage == "" && !e.Sidechain && !e.IsMeta && sessionStarter(text) {
				a.FirstUserMessage = preview(text, previewLen)
			}
		}
	}
	return out
}

func sessionStarter(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed == "Warmup" {
		return false
	}
	if strings.Contains(text, "<command-name>") {
		return strings.Contains(text, "<command-name>init") || strings.Contains(text, "<command-name>/init")
	}
	if strings.HasPrefix(trimmed, "<local-command-stdout>") || strings.HasPrefix(trimmed, "Caveat:") {
		return false
	}
	return true
}

func preview(text string, max int) string {
	if strings.Contains(text, "<command-name>") && strings.Contains(text, "<command-contents>") {
		text = "/init: initialize codebase documentation"
	}
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
