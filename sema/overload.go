package sema

import "github.com/oxhq/flashcpp/typetab"

// Candidate is one overload-set member being ranked against a call's
// argument list. Handle is opaque to this package (an ast.NodeID or a
// typetab.StructInfo member index, depending on caller) so sema doesn't
// need to import ast.
type Candidate struct {
	Handle int
	Sig    typetab.FunctionSig
}

// ResolveResult is the outcome of ResolveOverload.
type ResolveResult struct {
	Best       Candidate
	Found      bool
	Ambiguous  bool
	Candidates []Candidate // the tied or only-considered set, for diagnostics
}

// ResolveOverload implements §4.5's "a pure function over the [overload] set
// plus the argument TypedValues" (per §9's design note): rank every
// candidate's parameters against argTypes using RankConversion, discard
// non-viable candidates (arity mismatch or any RankNone parameter unless the
// candidate is variadic and the extra args fall in the ellipsis tail), and
// pick the one whose worst per-parameter rank is best. A tie among the best
// is reported as Ambiguous.
func ResolveOverload(table *typetab.Table, candidates []Candidate, argTypes []typetab.Index) ResolveResult {
	type scored struct {
		c     Candidate
		worst Rank
	}
	var viable []scored

	for _, c := range candidates {
		if len(argTypes) < len(c.Sig.Params) {
			continue
		}
		if len(argTypes) > len(c.Sig.Params) && !c.Sig.Variadic {
			continue
		}
		worst := RankExact
		ok := true
		for i, pt := range c.Sig.Params {
			r := RankConversion(table, argTypes[i], pt)
			if !r.Viable() {
				ok = false
				break
			}
			if r > worst {
				worst = r
			}
		}
		if !ok {
			continue
		}
		if len(argTypes) > len(c.Sig.Params) {
			worst = RankEllipsis // extra args bind to the "..." tail
		}
		viable = append(viable, scored{c, worst})
	}

	if len(viable) == 0 {
		return ResolveResult{Found: false}
	}

	best := viable[0]
	for _, v := range viable[1:] {
		if v.worst < best.worst {
			best = v
		}
	}
	var tied []Candidate
	for _, v := range viable {
		if v.worst == best.worst {
			tied = append(tied, v.c)
		}
	}
	if len(tied) > 1 {
		return ResolveResult{Found: true, Ambiguous: true, Candidates: tied}
	}
	return ResolveResult{Found: true, Best: best.c, Candidates: tied}
}
