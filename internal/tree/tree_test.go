package tree

import (
	"testing"
	"time"

	"ctxtree/internal/content"
	"ctxtree/internal/transcript"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type msg struct {
	c         content.Content
	sec       int
	session   string
	sidechain bool
	agent     string
	role      transcript.Kind
	uuid      string
	parent    string
}

func build(msgs ...msg) *Registry {
	r := NewRegistry()
	for _, m := range msgs {
		session := m.session
		if session == "" {
			session = "s1"
		}
		role := m.role
		if role == "" {
			role = transcript.KindAssistant
			if content.UserSide(m.c.Kind()) {
				role = transcript.KindUser
			}
		}
		r.Add(Meta{
			Timestamp:  t0.Add(time.Duration(m.sec) * time.Second),
			SessionID:  session,
			Sidechain:  m.sidechain,
			AgentID:    m.agent,
			Role:       role,
			UUID:       m.uuid,
			ParentUUID: m.parent,
		}, m.c)
	}
	return r
}

// process runs the ordering and nesting phases the way the pipeline does.
func process(t *testing.T, r *Registry) (*Tree, []int) {
	t.Helper()
	seq := r.Sequence()
	PairMessages(r, seq)
	seq = Relocate(r, seq)
	seq = PlaceSidechains(r, seq)
	seq = DropRestatedPrompts(r, seq)
	require.NoError(t, BuildHierarchy(r, seq))
	tr, err := Assemble(r, seq)
	require.NoError(t, err)
	return tr, seq
}

func header(session string) msg {
	return msg{c: content.SessionHeader{SessionID: session}, session: session, role: transcript.KindSessionStart}
}

func TestRegistryIndicesAreSequential(t *testing.T) {
	r := NewRegistry()
	a := r.Add(Meta{}, content.UserText{Text: "a"})
	b := r.Add(Meta{}, content.UserText{Text: "b"})

	assert.Equal(t, 0, a.Index)
	assert.Equal(t, 1, b.Index)
	assert.Same(t, b, r.Get(1))
	assert.Nil(t, r.Get(2))
	assert.Nil(t, r.Get(-1))
	assert.Equal(t, []int{0, 1}, r.Sequence())
}

func TestToolPairing(t *testing.T) {
	r := build(
		msg{c: content.ToolUse{ID: "t1", Name: "Bash"}, sec: 1},
		msg{c: content.ToolResult{ToolUseID: "t1", ToolName: "Bash"}, sec: 4},
	)

	links := PairMessages(r, r.Sequence())

	assert.Equal(t, 1, links)
	require.NotNil(t, r.Get(0).Pair)
	require.NotNil(t, r.Get(1).Pair)
	assert.Equal(t, Pair{Role: PairFirst, Partner: 1}, *r.Get(0).Pair)
	assert.Equal(t, Pair{Role: PairLast, Partner: 0, Duration: 3 * time.Second}, *r.Get(1).Pair)
}

func TestReasoningReplyNotice(t *testing.T) {
	r := build(
		header("s1"),
		msg{c: content.UserText{Text: "why?"}},
		msg{c: content.Thinking{Text: "hmm"}, sec: 1},
		msg{c: content.AssistantText{Text: "because"}, sec: 2},
		msg{c: content.System{Level: "error", Text: "api error"}, sec: 3, role: transcript.KindSystem},
	)

	tr, _ := process(t, r)

	thinking, reply, notice := r.Get(2), r.Get(3), r.Get(4)
	require.NotNil(t, thinking.Pair)
	assert.Equal(t, PairFirst, thinking.Pair.Role)
	assert.Equal(t, 3, thinking.Pair.Partner)
	assert.Equal(t, PairLast, reply.Pair.Role)
	assert.Nil(t, notice.Pair)
	assert.Equal(t, 2, notice.Level)
	assert.Equal(t, []int{1, 0}, notice.Ancestry)
	assert.Equal(t, []int{2, 3, 4}, tr.Node(1).Children)
}

func TestPairingKeepsSidechainsApart(t *testing.T) {
	r := build(
		msg{c: content.Thinking{Text: "main"}},
		msg{c: content.AssistantText{Text: "agent reply"}, sidechain: true, agent: "ag"},
		msg{c: content.AssistantText{Text: "main reply"}},
		msg{c: content.Thinking{Text: "agent"}, sidechain: true, agent: "ag"},
		msg{c: content.AssistantText{Text: "other agent"}, sidechain: true, agent: "ag2"},
	)

	links := PairMessages(r, r.Sequence())

	assert.Zero(t, links)
	for i := 0; i < r.Len(); i++ {
		assert.Nil(t, r.Get(i).Pair, "message %d", i)
	}
}

func TestPairingDurationClampsToZero(t *testing.T) {
	r := build(
		msg{c: content.BashInput{Command: "ls"}, sec: 5},
		msg{c: content.BashOutput{Stdout: "a"}, sec: 2},
	)

	PairMessages(r, r.Sequence())

	require.NotNil(t, r.Get(1).Pair)
	assert.Equal(t, time.Duration(0), r.Get(1).Pair.Duration)
}

func TestPairingConsumesEachMessageOnce(t *testing.T) {
	r := build(
		msg{c: content.SlashCommand{Name: "/cost"}},
		msg{c: content.CommandOutput{Stdout: "$0.10"}},
		msg{c: content.CommandOutput{Stdout: "again"}},
		msg{c: content.ToolUse{ID: "t1", Name: "Read"}},
		msg{c: content.ToolResult{ToolUseID: "t1"}},
		msg{c: content.ToolResult{ToolUseID: "t1"}},
		msg{c: content.ToolResult{ToolUseID: "t9"}},
	)

	links := PairMessages(r, r.Sequence())

	assert.Equal(t, 2, links)
	assert.Nil(t, r.Get(2).Pair)
	assert.Nil(t, r.Get(5).Pair)
	assert.Nil(t, r.Get(6).Pair)
}

func TestPairingToolIDsAreScopedBySession(t *testing.T) {
	r := build(
		msg{c: content.ToolUse{ID: "t1"}, session: "a"},
		msg{c: content.ToolResult{ToolUseID: "t1"}, session: "b"},
	)

	assert.Zero(t, PairMessages(r, r.Sequence()))
}

func TestPairingSystemParentChild(t *testing.T) {
	r := build(
		msg{c: content.System{Level: "info", Text: "compacting"}, role: transcript.KindSystem, uuid: "u1"},
		msg{c: content.UserText{Text: "x"}},
		msg{c: content.System{Level: "info", Text: "compacted"}, role: transcript.KindSystem, uuid: "u2", parent: "u1"},
	)

	PairMessages(r, r.Sequence())

	require.NotNil(t, r.Get(2).Pair)
	assert.Equal(t, 0, r.Get(2).Pair.Partner)
}

func TestPairingSystemWithSlashCommand(t *testing.T) {
	r := build(
		msg{c: content.System{Level: "info", Text: "running /compact"}, role: transcript.KindSystem, uuid: "c1"},
		msg{c: content.AssistantText{Text: "meanwhile"}, sec: 1},
		msg{c: content.SlashCommand{Name: "/compact"}, sec: 2, parent: "c1"},
		msg{c: content.UserSlashCommand{Text: "/compact again"}, sec: 3, parent: "c1"},
	)

	links := PairMessages(r, r.Sequence())

	assert.Equal(t, 1, links)
	require.NotNil(t, r.Get(0).Pair)
	assert.Equal(t, Pair{Role: PairFirst, Partner: 2}, *r.Get(0).Pair)
	assert.Equal(t, Pair{Role: PairLast, Partner: 0, Duration: 2 * time.Second}, *r.Get(2).Pair)
	assert.Nil(t, r.Get(3).Pair)

	seq := Relocate(r, r.Sequence())
	assert.Equal(t, []int{0, 2, 1, 3}, seq)
	require.NoError(t, BuildHierarchy(r, seq))
}

func TestPairingSystemChildWinsOverSlashCommand(t *testing.T) {
	r := build(
		msg{c: content.System{Level: "info", Text: "compacting"}, role: transcript.KindSystem, uuid: "u1"},
		msg{c: content.System{Level: "info", Text: "compacted"}, role: transcript.KindSystem, uuid: "u2", parent: "u1"},
		msg{c: content.SlashCommand{Name: "/compact"}, parent: "u2"},
	)

	links := PairMessages(r, r.Sequence())

	assert.Equal(t, 1, links)
	assert.Equal(t, 0, r.Get(1).Pair.Partner)
	assert.Nil(t, r.Get(2).Pair)
}

func TestRelocateMovesLastAfterFirst(t *testing.T) {
	r := build(
		msg{c: content.ToolUse{ID: "a"}, sec: 1},
		msg{c: content.ToolUse{ID: "b"}, sec: 1},
		msg{c: content.ToolResult{ToolUseID: "a"}, sec: 2},
		msg{c: content.ToolResult{ToolUseID: "b"}, sec: 3},
	)
	PairMessages(r, r.Sequence())

	seq := Relocate(r, r.Sequence())

	assert.Equal(t, []int{0, 2, 1, 3}, seq)
}

func TestPlaceSidechains(t *testing.T) {
	r := build(
		msg{c: content.ToolUse{ID: "task", Name: "Task"}},
		msg{c: content.UserText{Text: "prompt"}, sidechain: true, agent: "ag"},
		msg{c: content.AssistantText{Text: "working"}, sidechain: true, agent: "ag"},
		msg{c: content.UserText{Text: "next question"}},
		msg{c: content.ToolResult{ToolUseID: "task", ToolName: "Task"}, agent: "ag"},
		msg{c: content.AssistantText{Text: "orphan"}, sidechain: true, agent: "other"},
	)

	seq := PlaceSidechains(r, r.Sequence())
	assert.Equal(t, []int{0, 3, 4, 1, 2, 5}, seq)

	seq = DropRestatedPrompts(r, seq)
	assert.Equal(t, []int{0, 3, 4, 2, 5}, seq)
	assert.Equal(t, 6, r.Len())
}

func TestDropRestatedPromptsOncePerAgent(t *testing.T) {
	r := build(
		msg{c: content.UserText{Text: "prompt"}, sidechain: true, agent: "ag"},
		msg{c: content.AssistantText{Text: "looking"}, sidechain: true, agent: "ag"},
		msg{c: content.UserText{Text: "meanwhile"}},
		msg{c: content.UserText{Text: "follow-up"}, sidechain: true, agent: "ag"},
		msg{c: content.AssistantText{Text: "main reply"}},
		msg{c: content.UserText{Text: "and another"}, sidechain: true, agent: "ag"},
		msg{c: content.AssistantText{Text: "first"}, sidechain: true, agent: "ag2"},
		msg{c: content.UserText{Text: "kept"}, sidechain: true, agent: "ag2"},
	)

	seq := DropRestatedPrompts(r, r.Sequence())

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, seq)
}

func TestRankOf(t *testing.T) {
	tests := []struct {
		kind      content.Kind
		sidechain bool
		modifier  string
		want      int
	}{
		{content.KindSessionHeader, false, "", 0},
		{content.KindUserText, false, "", 1},
		{content.KindSlashCommand, false, "", 1},
		{content.KindUserText, true, "", 4},
		{content.KindAssistantText, false, "", 2},
		{content.KindThinking, true, "", 4},
		{content.KindSystem, false, "error", 2},
		{content.KindSystem, false, "info", 3},
		{content.KindSystem, false, "warning", 3},
		{content.KindSystem, true, "info", 4},
		{content.KindToolUse, false, "", 3},
		{content.KindToolResult, true, "", 5},
		{content.KindImage, false, "user", 1},
		{content.KindImage, false, "assistant", 2},
		{content.KindUnknown, true, "user", 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RankOf(tt.kind, tt.sidechain, tt.modifier), "%s sidechain=%v %s", tt.kind, tt.sidechain, tt.modifier)
	}
}

func TestHierarchyLevelsFollowParents(t *testing.T) {
	r := build(
		header("s1"),
		msg{c: content.UserText{Text: "hi"}},
		msg{c: content.ToolUse{ID: "t1"}},
		msg{c: content.ToolResult{ToolUseID: "t1"}},
		msg{c: content.AssistantText{Text: "done"}},
	)

	process(t, r)

	assert.Equal(t, 0, r.Get(0).Level)
	assert.Empty(t, r.Get(0).Ancestry)
	assert.Equal(t, 1, r.Get(1).Level)
	assert.Equal(t, RankTool, r.Get(2).Rank)
	assert.Equal(t, 2, r.Get(2).Level)
	assert.Equal(t, []int{1, 0}, r.Get(2).Ancestry)
	assert.Equal(t, []int{1, 0}, r.Get(3).Ancestry)
	assert.Equal(t, []int{1, 0}, r.Get(4).Ancestry)
}

func TestHierarchyRootsAreLevelZero(t *testing.T) {
	r := build(
		msg{c: content.AssistantText{Text: "resumed"}},
		msg{c: content.ToolUse{ID: "t1"}, sec: 1},
		msg{c: content.ToolResult{ToolUseID: "t1"}, sec: 2},
		msg{c: content.UserText{Text: "next"}, sec: 3},
	)

	process(t, r)

	assert.Equal(t, RankReply, r.Get(0).Rank)
	assert.Equal(t, 0, r.Get(0).Level)
	assert.Equal(t, 1, r.Get(1).Level)
	assert.Equal(t, RankUser, r.Get(3).Rank)
	assert.Equal(t, 0, r.Get(3).Level)
	assert.Empty(t, r.Get(3).Ancestry)
}

func TestHierarchyRejectsUnrelocatedPairs(t *testing.T) {
	r := build(
		msg{c: content.ToolUse{ID: "t1"}},
		msg{c: content.ToolResult{ToolUseID: "t1"}},
	)
	PairMessages(r, r.Sequence())

	err := BuildHierarchy(r, []int{1, 0})
	assert.ErrorIs(t, err, ErrStructural)

	err = BuildHierarchy(r, []int{0, 0})
	assert.ErrorIs(t, err, ErrStructural)

	err = BuildHierarchy(r, []int{0, 7})
	assert.ErrorIs(t, err, ErrStructural)
}

func TestAssembleRejectsMissingParent(t *testing.T) {
	r := build(
		msg{c: content.UserText{Text: "a"}},
		msg{c: content.AssistantText{Text: "b"}},
	)
	r.Get(0).Ancestry = []int{}
	r.Get(1).Ancestry = []int{0}

	_, err := Assemble(r, []int{1, 0})

	assert.ErrorIs(t, err, ErrStructural)
}

func TestInterleavedSessionRoots(t *testing.T) {
	r := build(
		header("A"),
		msg{c: content.UserText{Text: "a1"}, session: "A", sec: 1},
		msg{c: content.AssistantText{Text: "a2"}, session: "A", sec: 3},
		header("B"),
		msg{c: content.UserText{Text: "b1"}, session: "B", sec: 2},
		msg{c: content.AssistantText{Text: "b2"}, session: "B", sec: 4},
	)

	tr, _ := process(t, r)

	assert.Equal(t, []int{0, 3}, tr.Roots())
	for _, f := range Flatten(tr) {
		m := r.Get(f.Index)
		if len(m.Ancestry) == 0 {
			continue
		}
		root := r.Get(m.Ancestry[len(m.Ancestry)-1])
		assert.Equal(t, m.Meta.SessionID, root.Meta.SessionID)
	}
}

func TestKindCountsSkipPairLasts(t *testing.T) {
	r := build(
		msg{c: content.UserText{Text: "go"}},
		msg{c: content.ToolUse{ID: "t1"}},
		msg{c: content.ToolResult{ToolUseID: "t1"}},
		msg{c: content.AssistantText{Text: "ok"}},
	)
	tr, _ := process(t, r)

	counts := tr.KindCounts(0, false)

	assert.Equal(t, map[content.Kind]int{content.KindToolUse: 1, content.KindAssistantText: 1}, counts)
	assert.Equal(t, 3, tr.Descendants(0))
}
