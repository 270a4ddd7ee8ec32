package main

import (
	"fmt"
	"path/filepath"
)

// matchTestFilter reports whether name matches the glob pattern given to
// `cot test --filter`. filepath.Match's glob syntax (*, ?, character
// classes) is what go test's own -run flag associates with "glob" in
// spirit, even though go test itself uses regexp; cot's inline test
// names are plain strings with no regexp metacharacters expected, so the
// simpler glob form is used instead of pulling in a matching library the
// rest of the compiler has no other use for.
func matchTestFilter(pattern, name string) (bool, error) {
	ok, err := filepath.Match(pattern, name)
	if err != nil {
		return false, fmt.Errorf("invalid --filter pattern %q: %w", pattern, err)
	}
	return ok, nil
}
