package tree

import (
	"time"

	"ctxtree/internal/content"
	"ctxtree/internal/transcript"
)

// Meta is the identity block shared by every message cut from one entry.
type Meta struct {
	Timestamp  time.Time
	SessionID  string
	Sidechain  bool
	AgentID    string
	UUID       string
	ParentUUID string
	Role       transcript.Kind
	IsMeta     bool
	// Usage is set on the first message of an assistant entry only.
	Usage *transcript.Usage
}

// MetaOf copies the identity fields of e.
func MetaOf(e transcript.Entry) Meta {
	return Meta{
		Timestamp:  e.Timestamp,
		SessionID:  e.SessionID,
		Sidechain:  e.Sidechain,
		AgentID:    e.AgentID,
		UUID:       e.UUID,
		ParentUUID: e.ParentUUID,
		Role:       e.Kind,
		IsMeta:     e.IsMeta,
	}
}

type PairRole int

const (
	PairFirst PairRole = iota + 1
	PairLast
)

func (r PairRole) String() string {
	switch r {
	case PairFirst:
		return "first"
	case PairLast:
		return "last"
	}
	return "none"
}

type Pair struct {
	Role    PairRole
	Partner int
	// Duration is last.ts - first.ts, set on the last member only.
	Duration time.Duration
}

type Message struct {
	Index   int
	Meta    Meta
	Content content.Content

	Pair     *Pair
	Rank     int
	Level    int
	Ancestry []int
}

func (m *Message) Kind() content.Kind {
	return m.Content.Kind()
}

// Registry is the append-only arena of messages for one document. Indices
// are assigned in insertion order and never reused.
type Registry struct {
	msgs []*Message
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Add(meta Meta, c content.Content) *Message {
	m := &Message{Index: len(r.msgs), Meta: meta, Content: c}
	r.msgs = append(r.msgs, m)
	return m
}

// Get returns nil for an unknown index.
func (r *Registry) Get(i int) *Message {
	if i < 0 || i >= len(r.msgs) {
		return nil
	}
	return r.msgs[i]
}

func (r *Registry) Len() int {
	return len(r.msgs)
}

// Sequence returns every index in insertion order.
func (r *Registry) Sequence() []int {
	seq := make([]int, len(r.msgs))
	for i := range seq {
		seq[i] = i
	}
	return seq
}
