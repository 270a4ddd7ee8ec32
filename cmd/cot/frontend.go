package main

import (
	"os"

	"github.com/cot-lang/cotc/internal/ast"
	"github.com/cot-lang/cotc/internal/ceerror"
	"github.com/cot-lang/cotc/internal/driver"
	"github.com/cot-lang/cotc/internal/lower"
)

// parseSource is the hook an external scanner, parser, and type checker
// would plug into: internal/ast defines the typed-AST shape the rest of
// the compiler consumes, but owns no decoder for source text itself (see
// its package doc). Until one is wired in, this always returns a
// diagnosable error in the same format every other frontend error would
// use, rather than guessing at source syntax.
func parseSource(path string, _ []byte) (*ast.Program, error) {
	return nil, ceerror.New(ceerror.KindUser,
		"no source frontend is linked into this binary (scanning, parsing, and type checking are supplied externally)").WithPos(path, 1, 1)
}

// compileCotSource reads path and, were a frontend available, would drive
// it through internal/lower and internal/driver to produce target's
// bytes. Both of those steps are fully wired below; only parseSource's
// absence stands in the way of a real compile today.
func compileCotSource(path, target string) ([]byte, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, ceerror.Wrap(ceerror.KindResource, err, "reading %s", path)
	}

	prog, err := parseSource(path, src)
	if err != nil {
		return nil, err
	}

	lowered, err := lower.Build(prog)
	if err != nil {
		return nil, err
	}

	switch target {
	case "native":
		return nil, ceerror.New(ceerror.KindUser,
			"target=native is not available yet: internal/driver has no native build entry point wired to internal/objfile").WithPos(path, 1, 1)
	default:
		return driver.BuildWasm(lowered)
	}
}

// aotCompileWasm would decode path's binary .wasm module and hand it to
// internal/wasm2clif -> internal/backend -> internal/objfile for an AOT
// native build. internal/wasmgen only ever encodes a Module it built
// itself; there is no decoder for an arbitrary input module, so this
// path is honest about the gap rather than inventing one.
func aotCompileWasm(path string) ([]byte, error) {
	if _, err := os.ReadFile(path); err != nil {
		return nil, ceerror.Wrap(ceerror.KindResource, err, "reading %s", path)
	}
	return nil, ceerror.New(ceerror.KindUser,
		"AOT-compiling an existing .wasm module is not available yet: no Wasm binary decoder is wired into this binary").WithPos(path, 1, 1)
}
