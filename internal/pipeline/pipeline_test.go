package pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ctxtree/internal/content"
	"ctxtree/internal/transcript"
	"ctxtree/internal/tree"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type entryOpt func(*transcript.Entry)

func sidechain(agent string) entryOpt {
	return func(e *transcript.Entry) {
		e.Sidechain = true
		e.AgentID = agent
	}
}

func agentID(agent string) entryOpt {
	return func(e *transcript.Entry) { e.AgentID = agent }
}

func entry(kind transcript.Kind, session string, sec int, item transcript.Item, opts ...entryOpt) transcript.Entry {
	e := transcript.Entry{
		Kind:      kind,
		SessionID: session,
		Timestamp: t0.Add(time.Duration(sec) * time.Second),
		Content:   []transcript.Item{item},
	}
	for _, o := range opts {
		o(&e)
	}
	return e
}

func say(session string, sec int, text string, opts ...entryOpt) transcript.Entry {
	return entry(transcript.KindUser, session, sec, transcript.Item{Type: transcript.ItemText, Text: text}, opts...)
}

func reply(session string, sec int, text string, opts ...entryOpt) transcript.Entry {
	return entry(transcript.KindAssistant, session, sec, transcript.Item{Type: transcript.ItemText, Text: text}, opts...)
}

func call(session string, sec int, id, name, input string, opts ...entryOpt) transcript.Entry {
	return entry(transcript.KindAssistant, session, sec,
		transcript.Item{Type: transcript.ItemToolUse, ToolID: id, ToolName: name, Input: json.RawMessage(input)}, opts...)
}

func result(session string, sec int, id, text string, opts ...entryOpt) transcript.Entry {
	raw, _ := json.Marshal(text)
	return entry(transcript.KindUser, session, sec,
		transcript.Item{Type: transcript.ItemToolResult, ToolUseID: id, Result: raw}, opts...)
}

func TestRunToolPairing(t *testing.T) {
	res := Run(Document{Name: "a", Entries: []transcript.Entry{
		say("s1", 0, "list files"),
		call("s1", 1, "t1", "Bash", `{"command":"ls"}`),
		result("s1", 3, "t1", "main.go"),
	}}, DefaultOptions())

	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Links)
	var use, out *tree.Message
	for _, idx := range res.Sequence {
		m := res.Registry.Get(idx)
		switch m.Kind() {
		case content.KindToolUse:
			use = m
		case content.KindToolResult:
			out = m
		}
	}
	require.NotNil(t, use)
	require.NotNil(t, out)
	assert.Equal(t, tree.PairFirst, use.Pair.Role)
	assert.Equal(t, out.Index, use.Pair.Partner)
	assert.Equal(t, 2*time.Second, out.Pair.Duration)
	assert.Equal(t, &content.BashResult{Content: "main.go"}, out.Content.(content.ToolResult).Output)
}

func TestRunInterleavedSessions(t *testing.T) {
	res := Run(Document{Name: "mixed", Entries: []transcript.Entry{
		say("A", 1, "a question"),
		say("B", 2, "b question"),
		reply("A", 3, "a answer"),
		reply("B", 4, "b answer"),
		reply("A", 5, "a followup"),
	}}, DefaultOptions())

	require.NoError(t, res.Err)
	roots := res.Tree.Roots()
	require.Len(t, roots, 2)
	for _, idx := range res.Sequence {
		m := res.Registry.Get(idx)
		outer := m
		if len(m.Ancestry) > 0 {
			outer = res.Registry.Get(m.Ancestry[len(m.Ancestry)-1])
		}
		assert.Equal(t, content.KindSessionHeader, outer.Kind())
		assert.Equal(t, m.Meta.SessionID, outer.Meta.SessionID)
	}
	require.Len(t, res.Sessions, 2)
	assert.Equal(t, "A", res.Sessions[0].SessionID)
	assert.Equal(t, 3, res.Sessions[0].MessageCount)
}

func TestRunSubagentDedup(t *testing.T) {
	entries := []transcript.Entry{
		say("s1", 0, "find go files"),
		call("s1", 1, "task", "Task", `{"prompt":"find go files","subagent_type":"Explore"}`),
		say("s1", 2, "find go files", sidechain("ag")),
		call("s1", 3, "g1", "Glob", `{"pattern":"**/*.go"}`, sidechain("ag")),
		result("s1", 4, "g1", "a.go\nb.go", sidechain("ag")),
		reply("s1", 5, "Found 2 files.", sidechain("ag")),
		result("s1", 6, "task", "Found 2 files.\n\nagentId: ag (for resuming)", agentID("ag")),
		reply("s1", 7, "Two files."),
	}

	res := Run(Document{Name: "agent", Entries: entries}, DefaultOptions())

	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Deduplicated)

	taskResult, dup := -1, -1
	for _, idx := range res.Sequence {
		m := res.Registry.Get(idx)
		if r, ok := m.Content.(content.ToolResult); ok && r.ToolName == "Task" {
			taskResult = idx
		}
		if a, ok := m.Content.(content.AssistantText); ok && a.Text == "Found 2 files." {
			dup = idx
		}
	}
	require.NotEqual(t, -1, taskResult)
	require.NotEqual(t, -1, dup)

	notice, ok := res.Tree.Node(dup).Content.(content.DedupNotice)
	require.True(t, ok)
	assert.Equal(t, taskResult, notice.Target)
	assert.Equal(t, content.AssistantText{Text: "Found 2 files."}, res.Assembled.Node(dup).Content)

	// the restated prompt is registered but not placed in the tree
	assert.Equal(t, res.Registry.Len()-1, res.Tree.Len())
}

func TestRunBackgroundAgentDoesNotPairAcrossSidechain(t *testing.T) {
	thinking := func(session string, sec int, text string, opts ...entryOpt) transcript.Entry {
		return entry(transcript.KindAssistant, session, sec, transcript.Item{Type: transcript.ItemThinking, Thinking: text}, opts...)
	}
	entries := []transcript.Entry{
		say("s1", 0, "review the repo"),
		call("s1", 1, "task", "Task", `{"prompt":"scan for TODOs","subagent_type":"Explore"}`),
		say("s1", 2, "scan for TODOs", sidechain("ag")),
		thinking("s1", 3, "the agent is still running"),
		reply("s1", 4, "No TODOs found.", sidechain("ag")),
		reply("s1", 5, "Waiting on the scan."),
		result("s1", 6, "task", "No TODOs found.", agentID("ag")),
	}

	res := Run(Document{Name: "background", Entries: entries}, DefaultOptions())

	require.NoError(t, res.Err)
	for _, idx := range res.Sequence {
		m := res.Registry.Get(idx)
		if m.Pair == nil {
			continue
		}
		partner := res.Registry.Get(m.Pair.Partner)
		assert.Equal(t, m.Meta.Sidechain, partner.Meta.Sidechain, "message %d pairs across a sidechain", idx)
	}
	assert.Equal(t, 1, res.Links)
	assert.Equal(t, 1, res.Deduplicated)
}

func TestRunWithoutDedup(t *testing.T) {
	opts := DefaultOptions()
	opts.Dedup = false

	res := Run(Document{Entries: []transcript.Entry{say("s1", 0, "hi")}}, opts)

	require.NoError(t, res.Err)
	assert.Same(t, res.Assembled, res.Tree)
}

func TestRunReportsMalformedEntries(t *testing.T) {
	res := Run(Document{Entries: []transcript.Entry{
		{Kind: transcript.KindUser, Line: 7},
		say("s1", 0, "hi"),
	}}, DefaultOptions())

	require.NoError(t, res.Err)
	require.Len(t, res.Diagnostics, 1)
	assert.ErrorIs(t, res.Diagnostics[0].Err, transcript.ErrMalformedEntry)
	assert.Equal(t, 2, res.Tree.Len())
}

func TestRunUsageOncePerRequest(t *testing.T) {
	a := reply("s1", 1, "one")
	a.RequestID = "req"
	a.Usage = &transcript.Usage{InputTokens: 10}
	b := call("s1", 2, "t1", "Bash", `{"command":"ls"}`)
	b.RequestID = "req"
	b.Usage = a.Usage

	res := Run(Document{Entries: []transcript.Entry{say("s1", 0, "go"), a, b}}, DefaultOptions())

	require.NoError(t, res.Err)
	withUsage := 0
	for i := 0; i < res.Registry.Len(); i++ {
		if res.Registry.Get(i).Meta.Usage != nil {
			withUsage++
		}
	}
	assert.Equal(t, 1, withUsage)
}

// brokenDocument pairs a sub-agent tool call with a main-line result that
// comes before the agent's anchor, so placing the sub-agent breaks ordering.
func brokenDocument() Document {
	return Document{Name: "broken", Entries: []transcript.Entry{
		say("s1", 0, "go"),
		call("s1", 1, "x", "Bash", `{"command":"ls"}`, sidechain("ag")),
		result("s1", 2, "x", "out"),
		call("s1", 3, "task", "Task", `{"prompt":"p"}`),
		result("s1", 4, "task", "done", agentID("ag")),
	}}
}

func TestRunStructuralErrorIsPerDocument(t *testing.T) {
	good := Document{Name: "good", Entries: []transcript.Entry{say("s1", 0, "hi"), reply("s1", 1, "hello")}}

	results, err := RunAll(context.Background(), []Document{good, brokenDocument(), good}, DefaultOptions(), 2)

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, tree.ErrStructural)
	assert.Equal(t, "broken", results[1].Document)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, 3, results[2].Tree.Len())
}

func TestRunAllMatchesSequential(t *testing.T) {
	docs := []Document{
		{Name: "one", Entries: []transcript.Entry{say("a", 0, "x"), reply("a", 1, "y")}},
		{Name: "two", Entries: []transcript.Entry{say("b", 0, "x"), call("b", 1, "t", "Read", `{"file_path":"/f"}`), result("b", 2, "t", "     1→x")}},
		{Name: "three", Entries: []transcript.Entry{say("c", 0, "x")}},
	}

	results, err := RunAll(context.Background(), docs, DefaultOptions(), 0)
	require.NoError(t, err)

	for i, doc := range docs {
		want := Run(doc, DefaultOptions())
		assert.Equal(t, doc.Name, results[i].Document)
		assert.Equal(t, want.Sequence, results[i].Sequence)
		assert.Equal(t, tree.Flatten(want.Tree), tree.Flatten(results[i].Tree))
	}
}

func TestRunAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := RunAll(ctx, []Document{{Name: "x"}}, DefaultOptions(), 1)

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}
