package tree

import (
	"fmt"

	"ctxtree/internal/content"
)

type Node struct {
	Index    int
	Parent   int // -1 for roots
	Children []int
	// Content is what the node displays. It starts as the message content and
	// only differs after deduplication.
	Content content.Content
}

// Tree is the nested view over a registry. Nodes are addressed by registry
// index; messages left out of the sequence have no node.
type Tree struct {
	reg   *Registry
	nodes []*Node
	roots []int
}

// Assemble builds the tree from the ancestry chains BuildHierarchy wrote.
// Children keep the order of seq.
func Assemble(r *Registry, seq []int) (*Tree, error) {
	t := &Tree{reg: r, nodes: make([]*Node, r.Len())}
	for _, idx := range seq {
		m := r.Get(idx)
		if m == nil {
			return nil, fmt.Errorf("%w: unknown message %d", ErrStructural, idx)
		}
		n := &Node{Index: idx, Parent: -1, Content: m.Content}
		if len(m.Ancestry) == 0 {
			t.nodes[idx] = n
			t.roots = append(t.roots, idx)
			continue
		}
		parent := m.Ancestry[0]
		if parent < 0 || parent >= len(t.nodes) || t.nodes[parent] == nil {
			return nil, fmt.Errorf("%w: parent %d of message %d not emitted before it", ErrStructural, parent, idx)
		}
		n.Parent = parent
		t.nodes[idx] = n
		t.nodes[parent].Children = append(t.nodes[parent].Children, idx)
	}
	return t, nil
}

func (t *Tree) Registry() *Registry {
	return t.reg
}

func (t *Tree) Roots() []int {
	return t.roots
}

// Node returns nil when idx is not part of the tree.
func (t *Tree) Node(idx int) *Node {
	if idx < 0 || idx >= len(t.nodes) {
		return nil
	}
	return t.nodes[idx]
}

func (t *Tree) Message(idx int) *Message {
	return t.reg.Get(idx)
}

// Len is the number of nodes in the tree.
func (t *Tree) Len() int {
	n := 0
	for _, node := range t.nodes {
		if node != nil {
			n++
		}
	}
	return n
}

// Clone copies the node structure. Messages are shared, not copied.
func (t *Tree) Clone() *Tree {
	c := &Tree{reg: t.reg, nodes: make([]*Node, len(t.nodes)), roots: append([]int(nil), t.roots...)}
	for i, n := range t.nodes {
		if n == nil {
			continue
		}
		cp := *n
		cp.Children = append([]int(nil), n.Children...)
		c.nodes[i] = &cp
	}
	return c
}

// Descendants counts the nodes below idx.
func (t *Tree) Descendants(idx int) int {
	n := t.Node(idx)
	if n == nil {
		return 0
	}
	total := 0
	stack := append([]int(nil), n.Children...)
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		total++
		stack = append(stack, t.nodes[top].Children...)
	}
	return total
}

// KindCounts tallies the displayed kinds below idx, either direct children
// only or the whole subtree. Pair members shown as a unit with their first
// message are not counted.
func (t *Tree) KindCounts(idx int, deep bool) map[content.Kind]int {
	counts := map[content.Kind]int{}
	n := t.Node(idx)
	if n == nil {
		return counts
	}
	stack := append([]int(nil), n.Children...)
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := t.nodes[top]
		if m := t.reg.Get(top); m.Pair == nil || m.Pair.Role != PairLast {
			counts[node.Content.Kind()]++
		}
		if deep {
			stack = append(stack, node.Children...)
		}
	}
	return counts
}
