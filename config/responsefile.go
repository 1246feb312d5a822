package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ExpandResponseFile reads a newline-delimited list of translation-unit
// paths from path, one input per line, blank lines and lines starting with
// '#' ignored — the same shape a response-file accepts for a `cc @file`
// style multi-file invocation. It does not recurse into nested response
// files.
func ExpandResponseFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open response file %s: %w", path, err)
	}
	defer f.Close()

	var inputs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		inputs = append(inputs, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read response file %s: %w", path, err)
	}
	return inputs, nil
}
