package compiler

// Batch compiles a sequence of translation units against one Session,
// sharing its string/type tables and persistent instantiation cache the way
// any multi-input flashcpp invocation does (§4's per-session state), whether
// the inputs came from the command line or a --response-file. A failing
// input never stops the run: each result is reported independently so the
// caller can write out every object that did compile before surfacing the
// failures (the original driver's "continue past a failed unit" behavior).
// Atomicity is per output file (WriteUnit's write-temp-then-rename), not
// across the batch — a partially successful batch leaves the successful
// objects written and the failed ones absent.
type Batch struct {
	Session *Session
}

// Result is one input's outcome within a Batch run. Err is non-nil only for
// an I/O failure reading the input (§7's IOError bucket); a parse/semantic
// failure is reported through Unit.Diags instead, with Unit.Obj left nil.
type Result struct {
	Input string
	Unit  Unit
	Err   error
}

// Run compiles every input in order, collecting one Result per input.
func (b *Batch) Run(inputs []string) []Result {
	results := make([]Result, 0, len(inputs))
	for _, input := range inputs {
		unit, err := CompileFile(b.Session, input)
		results = append(results, Result{Input: input, Unit: unit, Err: err})
	}
	return results
}

// Succeeded reports whether every result in results compiled without an I/O
// error or a diagnosed compile error.
func Succeeded(results []Result) bool {
	for _, r := range results {
		if r.Err != nil || r.Unit.Diags.HasErrors() {
			return false
		}
	}
	return true
}
