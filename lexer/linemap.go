package lexer

// LineMap maps a line number in the preprocessed byte stream handed to the
// core back to the (source file, source line) that produced it. The external
// preprocessor collaborator supplies this; the core never reads #line
// directives itself.
type LineMap struct {
	// Entries must be sorted by PPLine ascending. The mapping for a given
	// preprocessed line L is the last entry with PPLine <= L.
	Entries []LineMapEntry
}

// LineMapEntry anchors one contiguous run of preprocessed lines to a source
// file starting at SourceLine.
type LineMapEntry struct {
	PPLine     int
	SourceFile string
	SourceLine int
}

// Resolve returns the (file, line) a preprocessed line number maps to. If no
// entry applies, the preprocessed line/an empty file name is returned
// unchanged, meaning "no preprocessor was involved, trust the raw position."
func (m LineMap) Resolve(ppLine int) (file string, line int) {
	if len(m.Entries) == 0 || m.Entries[0].PPLine > ppLine {
		return "", ppLine
	}
	best := m.Entries[0]
	for _, e := range m.Entries {
		if e.PPLine > ppLine {
			break
		}
		best = e
	}
	delta := ppLine - best.PPLine
	return best.SourceFile, best.SourceLine + delta
}
