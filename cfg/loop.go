package cfg

// Natural-loop detection over the dominator tree: every edge latch->header
// where the header dominates the latch opens a loop whose body is everything
// that reaches the latch without passing through the header.

// Loop is one natural loop.
type Loop struct {
	Header   *Block
	Latch    *Block
	Blocks   map[*Block]bool
	Parent   *Loop
	Children []*Loop
}

// Contains reports whether the block belongs to the loop body.
func (l *Loop) Contains(b *Block) bool { return l.Blocks[b] }

// Depth returns the nesting depth, 1 for a top-level loop.
func (l *Loop) Depth() int {
	d := 0
	for x := l; x != nil; x = x.Parent {
		d++
	}
	return d
}

// ExitBlock returns the first successor outside the loop body, scanning the
// body in block-index order.
func (l *Loop) ExitBlock() *Block {
	for _, b := range l.orderedBlocks() {
		for _, s := range b.Succs {
			if !l.Blocks[s] {
				return s
			}
		}
	}
	return nil
}

func (l *Loop) orderedBlocks() []*Block {
	var out []*Block
	for b := range l.Blocks {
		out = append(out, b)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Index > out[j].Index; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// LoopInfo is the loop forest of one function.
type LoopInfo struct {
	Loops  []*Loop          // all loops, headers in block-index order
	loopOf map[*Block]*Loop // innermost containing loop
}

// LoopFor returns the innermost loop containing the block, or nil.
func (li *LoopInfo) LoopFor(b *Block) *Loop { return li.loopOf[b] }

// DetectLoops finds the natural loops of the function.
func DetectLoops(fn *Function, dom *DomTree) *LoopInfo {
	li := &LoopInfo{loopOf: make(map[*Block]*Loop)}
	latches := make(map[*Block][]*Block)
	var headers []*Block
	for _, b := range fn.Blocks {
		for _, s := range b.Succs {
			if dom.Dominates(s, b) {
				if len(latches[s]) == 0 {
					headers = append(headers, s)
				}
				latches[s] = append(latches[s], b)
			}
		}
	}
	for _, h := range headers {
		l := &Loop{Header: h, Latch: latches[h][0], Blocks: map[*Block]bool{h: true}}
		for _, latch := range latches[h] {
			collectBody(l, latch)
		}
		li.Loops = append(li.Loops, l)
	}
	// Nest loops: the parent is the smallest other loop containing the
	// header.
	for _, child := range li.Loops {
		var best *Loop
		for _, candidate := range li.Loops {
			if candidate == child || !candidate.Blocks[child.Header] {
				continue
			}
			if best == nil || len(candidate.Blocks) < len(best.Blocks) {
				best = candidate
			}
		}
		if best != nil {
			child.Parent = best
			best.Children = append(best.Children, child)
		}
	}
	// Record the innermost loop per block.
	for _, l := range li.Loops {
		for b := range l.Blocks {
			if cur := li.loopOf[b]; cur == nil || len(l.Blocks) < len(cur.Blocks) {
				li.loopOf[b] = l
			}
		}
	}
	return li
}

func collectBody(l *Loop, latch *Block) {
	work := []*Block{latch}
	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]
		if l.Blocks[b] {
			continue
		}
		l.Blocks[b] = true
		work = append(work, b.Preds...)
	}
}
