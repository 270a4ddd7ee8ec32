package ssa

// Layout orders blocks so gen.go can reconstruct structured control flow
// (§4.2 step 6): a reverse-postorder walk from the entry block, which
// for the `if`/`while` shaped CFGs internal/lower produces is already
// the nesting order `block`/`loop`/`if` needs (every loop header is
// visited before its body, every branch target is visited before any
// fallthrough past it). Natural loops are detected as single
// back-edge-dominated headers: a successor that is also an ancestor in
// the walk is marked BlockLoopHeader so gen.go wraps it in a Wasm
// `loop`.
func Layout(f *Function) error {
	order := make([]BlockID, 0, len(f.Blocks))
	visited := make([]bool, len(f.Blocks))
	onStack := make([]bool, len(f.Blocks))

	var walk func(id BlockID)
	walk = func(id BlockID) {
		if visited[id] {
			return
		}
		visited[id] = true
		onStack[id] = true
		blk := f.B(id)
		for _, s := range blk.Succs {
			if onStack[s.To] {
				f.B(s.To).Kind = BlockLoopHeader
				continue
			}
			walk(s.To)
		}
		onStack[id] = false
		order = append(order, id)
	}
	walk(f.Entry)

	// walk appends in postorder; reverse for a structured-control-flow
	// friendly reverse-postorder.
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	f.SetBlockOrder(order)
	return nil
}
