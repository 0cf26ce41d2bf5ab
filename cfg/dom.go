package cfg

// Dominator tree construction using the iterative dataflow algorithm of
// Cooper, Harvey and Kennedy ("A Simple, Fast Dominance Algorithm"). The
// same machinery runs on the reversed CFG to build the post-dominator tree,
// with a virtual exit block standing in when the function has several exits.

// DomTree is a (post-)dominator tree over the blocks of one function.
type DomTree struct {
	idom map[*Block]*Block
	root *Block
}

// NewDomTree builds the dominator tree of the function.
func NewDomTree(fn *Function) *DomTree {
	order := orderFrom(fn.Entry, func(b *Block) []*Block { return b.Succs })
	return build(order, fn.Entry, func(b *Block) []*Block { return b.Preds })
}

// NewPostDomTree builds the post-dominator tree of the function. With more
// than one exit block the tree is rooted at a synthetic exit.
func NewPostDomTree(fn *Function) *DomTree {
	var exits []*Block
	for _, b := range fn.Blocks {
		if len(b.Succs) == 0 {
			exits = append(exits, b)
		}
	}
	if len(exits) == 1 {
		order := orderFrom(exits[0], func(b *Block) []*Block { return b.Preds })
		return build(order, exits[0], func(b *Block) []*Block { return b.Succs })
	}
	virtual := &Block{BlockName: "<exit>", Index: -1}
	back := func(b *Block) []*Block {
		if b == virtual {
			return exits
		}
		return b.Preds
	}
	fwd := func(b *Block) []*Block {
		if len(b.Succs) == 0 {
			return []*Block{virtual}
		}
		return b.Succs
	}
	order := orderFrom(virtual, back)
	return build(order, virtual, fwd)
}

// orderFrom returns the nodes reachable from root via next in reverse
// postorder.
func orderFrom(root *Block, next func(*Block) []*Block) []*Block {
	seen := make(map[*Block]bool)
	var post []*Block
	var visit func(*Block)
	visit = func(b *Block) {
		seen[b] = true
		for _, s := range next(b) {
			if !seen[s] {
				visit(s)
			}
		}
		post = append(post, b)
	}
	if root != nil {
		visit(root)
	}
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

func build(order []*Block, root *Block, preds func(*Block) []*Block) *DomTree {
	t := &DomTree{idom: make(map[*Block]*Block), root: root}
	index := make(map[*Block]int, len(order))
	for i, b := range order {
		index[b] = i
	}
	processed := map[*Block]bool{root: true}
	t.idom[root] = root
	intersect := func(a, b *Block) *Block {
		for a != b {
			for index[a] > index[b] {
				a = t.idom[a]
			}
			for index[b] > index[a] {
				b = t.idom[b]
			}
		}
		return a
	}
	for changed := true; changed; {
		changed = false
		for _, b := range order {
			if b == root {
				continue
			}
			var newIdom *Block
			for _, p := range preds(b) {
				if !processed[p] {
					continue
				}
				if newIdom == nil {
					newIdom = p
				} else {
					newIdom = intersect(p, newIdom)
				}
			}
			if newIdom == nil {
				continue
			}
			processed[b] = true
			if t.idom[b] != newIdom {
				t.idom[b] = newIdom
				changed = true
			}
		}
	}
	delete(t.idom, root)
	return t
}

// Root returns the tree root; a synthetic block for multi-exit
// post-dominator trees.
func (t *DomTree) Root() *Block { return t.root }

// IDom returns the immediate dominator of b, nil at the root.
func (t *DomTree) IDom(b *Block) *Block { return t.idom[b] }

// Dominates reports whether a dominates b (reflexively).
func (t *DomTree) Dominates(a, b *Block) bool {
	for x := b; x != nil; x = t.idom[x] {
		if x == a {
			return true
		}
	}
	return false
}
