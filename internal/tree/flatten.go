package tree

type FlatNode struct {
	Index  int
	Depth  int
	Parent int
}

// Flatten walks t in preorder. The result is derived on every call.
func Flatten(t *Tree) []FlatNode {
	out := make([]FlatNode, 0, len(t.nodes))
	type item struct{ idx, depth int }
	stack := make([]item, 0, len(t.roots))
	for i := len(t.roots) - 1; i >= 0; i-- {
		stack = append(stack, item{t.roots[i], 0})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := t.nodes[top.idx]
		out = append(out, FlatNode{Index: n.Index, Depth: top.depth, Parent: n.Parent})
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, item{n.Children[i], top.depth + 1})
		}
	}
	return out
}

// AncestryOf rebuilds nearest-first ancestry chains from a flat view's
// parent pointers.
func AncestryOf(flat []FlatNode) map[int][]int {
	parent := make(map[int]int, len(flat))
	for _, f := range flat {
		parent[f.Index] = f.Parent
	}
	out := make(map[int][]int, len(flat))
	for _, f := range flat {
		chain := []int{}
		for p := f.Parent; p >= 0; p = parent[p] {
			chain = append(chain, p)
		}
		out[f.Index] = chain
	}
	return out
}
