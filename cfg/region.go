package cfg

// Region is a single-entry control-flow subgraph chosen by the external
// detection pass. Its element list interleaves plain blocks and nested loop
// sub-regions in depth-first layout order, which is the traversal order the
// model builder relies on for sequential execution.
type Region struct {
	Entry    *Block
	Exit     *Block // first block after the region, nil for a function tail
	Loop     *Loop  // non-nil when this sub-region wraps a loop
	Elements []Element
}

// Element is either a *Block or a nested *Region.
type Element interface{}

// Blocks returns every block of the region, sub-regions included, in
// element order.
func (r *Region) Blocks() []*Block {
	var out []*Block
	var walk func(*Region)
	walk = func(reg *Region) {
		for _, el := range reg.Elements {
			switch e := el.(type) {
			case *Block:
				out = append(out, e)
			case *Region:
				walk(e)
			}
		}
	}
	walk(r)
	return out
}

// Contains reports whether the block belongs to the region.
func (r *Region) Contains(b *Block) bool {
	for _, x := range r.Blocks() {
		if x == b {
			return true
		}
	}
	return false
}

// BuildRegionTree arranges the blocks reachable from entry (stopping at
// exit) into a region tree nested by the loop forest. Blocks appear in
// reverse postorder, so iterating the elements depth-first reproduces
// execution order for well-structured regions.
func BuildRegionTree(fn *Function, li *LoopInfo, entry, exit *Block) *Region {
	var order []*Block
	for _, b := range orderFrom(entry, func(b *Block) []*Block {
		if b == exit {
			return nil
		}
		return b.Succs
	}) {
		if b != exit {
			order = append(order, b)
		}
	}
	root := &Region{Entry: entry, Exit: exit}
	root.Elements = nestElements(nil, order, li)
	return root
}

// nestElements groups the ordered blocks into loop sub-regions one nesting
// level at a time. enclosing is the loop whose body is being laid out, nil
// at the top level.
func nestElements(enclosing *Loop, order []*Block, li *LoopInfo) []Element {
	used := make(map[*Block]bool)
	var out []Element
	for _, b := range order {
		if used[b] {
			continue
		}
		top := outermostBelow(li.LoopFor(b), enclosing)
		if top == nil {
			used[b] = true
			out = append(out, b)
			continue
		}
		var body []*Block
		for _, x := range order {
			if !used[x] && top.Blocks[x] {
				used[x] = true
				body = append(body, x)
			}
		}
		sub := &Region{Entry: top.Header, Exit: top.ExitBlock(), Loop: top}
		sub.Elements = nestElements(top, body, li)
		out = append(out, sub)
	}
	return out
}

// outermostBelow walks up from l to the loop whose parent is enclosing;
// nil when l already is the enclosing loop (or not nested deeper).
func outermostBelow(l, enclosing *Loop) *Loop {
	if l == nil || l == enclosing {
		return nil
	}
	for l.Parent != enclosing {
		l = l.Parent
		if l == nil {
			return nil
		}
	}
	return l
}
