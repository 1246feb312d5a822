package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ExpandIncludeDirs resolves each -I entry into concrete directories,
// expanding doublestar globs like "vendor/**/include" the way
// core.FileWalker expands include/exclude patterns during a scan. A dir
// with no glob metacharacters passes through unresolved: the external
// preprocessor collaborator gets a literal -I for those, same as today.
func ExpandIncludeDirs(dirs []string) ([]string, error) {
	seen := make(map[string]struct{}, len(dirs))
	var out []string
	for _, d := range dirs {
		if !strings.ContainsAny(d, "*?[{") {
			if _, ok := seen[d]; !ok {
				seen[d] = struct{}{}
				out = append(out, d)
			}
			continue
		}
		matches, err := doublestar.FilepathGlob(d)
		if err != nil {
			return nil, fmt.Errorf("config: expand include pattern %q: %w", d, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out, nil
}
