package wasmgen

import "github.com/cot-lang/cotc/internal/leb128"

// Assemble encodes c into a code-section entry: a byte-length prefix
// wrapping the locals declaration (run-length compressed over
// contiguous equal-type groups -- `local.get`'s index space is params
// followed by these groups in order, never locals individually) followed
// by c.Body and the function's closing `end`.
//
// Neither gen.go's Generate nor internal/arcrt's hand-assembled bodies
// include that closing `end` themselves (see Generate's doc comment);
// this is the one place it gets appended, so every Code is terminated
// identically regardless of which package produced it.
func Assemble(c *Code) []byte {
	groups := localRuns(c.LocalTypes)

	var locals []byte
	locals = append(locals, leb128.EncodeUint32(uint32(len(groups)))...)
	for _, g := range groups {
		locals = append(locals, leb128.EncodeUint32(uint32(g.count))...)
		locals = append(locals, g.typ)
	}

	body := append(locals, c.Body...)
	body = append(body, OpcodeEnd)

	out := leb128.EncodeUint32(uint32(len(body)))
	return append(out, body...)
}

type localRun struct {
	typ   ValueType
	count int
}

// localRuns collapses a per-local type slice into contiguous same-type
// runs, matching the core spec's `locals ::= vec(count, valtype)` body
// grammar (a naive one-run-per-local encoding would also decode
// correctly, but every real encoder compresses this, and cot's own
// allocLocal already assigns same-typed locals consecutively wherever
// possible, so runs are usually long).
func localRuns(types []ValueType) []localRun {
	var out []localRun
	for _, t := range types {
		if n := len(out); n > 0 && out[n-1].typ == t {
			out[n-1].count++
			continue
		}
		out = append(out, localRun{typ: t, count: 1})
	}
	return out
}
