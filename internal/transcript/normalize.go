package transcript

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrMalformedEntry = errors.New("malformed entry")

// sessionNamespace seeds the deterministic origin ids of session-start markers.
var sessionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("ctxtree:session"))

type Diagnostic struct {
	Source string
	Line   int
	Err    error
}

func (d Diagnostic) String() string {
	if d.Source == "" {
		return fmt.Sprintf("line %d: %v", d.Line, d.Err)
	}
	return fmt.Sprintf("%s:%d: %v", d.Source, d.Line, d.Err)
}

type Options struct {
	// SkipWarmup drops sessions whose only user input is the "Warmup" message.
	SkipWarmup bool
	// Dedup collapses entries that were logged twice with the same timestamp.
	Dedup bool
}

func DefaultOptions() Options {
	return Options{SkipWarmup: true, Dedup: true}
}

// Normalized is the output of Normalize: one time-ordered stream, grouped by
// session, each group led by a KindSessionStart marker.
type Normalized struct {
	Entries     []Entry
	Sessions    []string
	Summaries   map[string]string
	Diagnostics []Diagnostic
}

// Normalize validates, deduplicates, orders and groups raw entries. Malformed
// entries are dropped and reported; they never fail the run.
func Normalize(entries []Entry, opts Options) *Normalized {
	n := &Normalized{Summaries: map[string]string{}}

	var summaries []Entry
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		switch e.Kind {
		case KindSummary:
			summaries = append(summaries, e)
			continue
		case KindQueueOperation:
			if e.Operation != "remove" {
				continue
			}
		case KindUser, KindAssistant, KindSystem:
		default:
			n.diagnose(e, fmt.Errorf("%w: unknown entry type %q", ErrMalformedEntry, e.Kind))
			continue
		}
		if e.Timestamp.IsZero() {
			n.diagnose(e, fmt.Errorf("%w: missing timestamp", ErrMalformedEntry))
			continue
		}
		if e.SessionID == "" {
			n.diagnose(e, fmt.Errorf("%w: missing session id", ErrMalformedEntry))
			continue
		}
		kept = append(kept, e)
	}

	if opts.Dedup {
		kept = dedupEntries(kept)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Timestamp.Before(kept[j].Timestamp)
	})

	if opts.SkipWarmup {
		kept = dropWarmupSessions(kept)
	}

	n.group(kept)
	n.attachSummaries(kept, summaries)
	return n
}

func (n *Normalized) diagnose(e Entry, err error) {
	n.Diagnostics = append(n.Diagnostics, Diagnostic{Source: e.Source, Line: e.Line, Err: err})
}

func (n *Normalized) group(entries []Entry) {
	bySession := map[string][]Entry{}
	for _, e := range entries {
		if _, ok := bySession[e.SessionID]; !ok {
			n.Sessions = append(n.Sessions, e.SessionID)
		}
		bySession[e.SessionID] = append(bySession[e.SessionID], e)
	}

	n.Entries = make([]Entry, 0, len(entries)+len(n.Sessions))
	for _, sid := range n.Sessions {
		group := bySession[sid]
		n.Entries = append(n.Entries, SessionMarker(sid, group[0].Timestamp, firstCWD(group)))
		n.Entries = append(n.Entries, group...)
	}
}

// SessionMarker builds the boundary entry placed before a session's first entry.
func SessionMarker(sessionID string, ts time.Time, cwd string) Entry {
	return Entry{
		Kind:      KindSessionStart,
		Timestamp: ts,
		SessionID: sessionID,
		UUID:      uuid.NewSHA1(sessionNamespace, []byte(sessionID)).String(),
		CWD:       cwd,
	}
}

func firstCWD(entries []Entry) string {
	for _, e := range entries {
		if e.CWD != "" {
			return e.CWD
		}
	}
	return ""
}

func (n *Normalized) attachSummaries(entries []Entry, summaries []Entry) {
	if len(summaries) == 0 {
		return
	}
	owner := map[string]string{}
	for _, e := range entries {
		if e.Kind == KindAssistant && e.UUID != "" {
			owner[e.UUID] = e.SessionID
		}
	}
	for _, e := range entries {
		if e.UUID == "" {
			continue
		}
		if _, ok := owner[e.UUID]; !ok {
			owner[e.UUID] = e.SessionID
		}
	}
	for _, s := range summaries {
		if sid, ok := owner[s.LeafUUID]; ok {
			n.Summaries[sid] = s.Summary
		}
	}
}

type dedupKey struct {
	kind       string
	ts         time.Time
	meta       bool
	session    string
	contentKey string
}

// dedupEntries drops entries logged twice with the same timestamp. The first
// occurrence keeps its position; a later user text duplicate with more
// content replaces it in place.
func dedupEntries(entries []Entry) []Entry {
	seen := map[dedupKey]int{}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		key := dedupKey{kind: string(e.Kind), ts: e.Timestamp, meta: e.IsMeta, session: e.SessionID}
		userText := false
		switch e.Kind {
		case KindSystem:
			key.kind = "system-" + e.Level
		case KindAssistant:
			key.contentKey = e.MessageID
		case KindUser:
			key.contentKey = firstToolResultID(e)
			userText = key.contentKey == ""
		}

		if idx, ok := seen[key]; ok {
			if userText && len(e.Content) > len(out[idx].Content) {
				out[idx] = e
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, e)
	}
	return out
}

func firstToolResultID(e Entry) string {
	for _, it := range e.Content {
		if it.Type == ItemToolResult {
			return it.ToolUseID
		}
	}
	return ""
}

// dropWarmupSessions removes sessions in which every user text is "Warmup".
func dropWarmupSessions(entries []Entry) []Entry {
	warmup := map[string]bool{}
	for _, e := range entries {
		if e.Kind != KindUser || e.hasType(ItemToolResult) {
			continue
		}
		isWarmup := strings.TrimSpace(e.TextContent()) == "Warmup"
		prev, seen := warmup[e.SessionID]
		if !seen {
			warmup[e.SessionID] = isWarmup
			continue
		}
		warmup[e.SessionID] = prev && isWarmup
	}

	out := entries[:0:0]
	for _, e := range entries {
		if warmup[e.SessionID] {
			continue
		}
		out = append(out, e)
	}
	return out
}
