package binary

import (
	"fmt"
	"io/fs"
	"path/filepath"
)

// LocateExecutable walks root recursively and returns every regular file
// whose base name equals name, in lexical walk order. An empty result is
// the caller's fatal condition; when several candidates exist the first
// one wins and the rest are reported so the caller can log them.
// Lexical order makes the "first match" deterministic.
func LocateExecutable(root, name string) ([]string, error) {
	var matches []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && d.Name() == name {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search extracted tree: %w", err)
	}

	if len(matches) == 0 {
		return nil, fmt.Errorf("executable %q not found in extracted archive", name)
	}

	return matches, nil
}
