// Package sema implements the semantic-analysis surface embedded at the
// parser/code-generator boundary (§4.5): implicit-conversion ranking,
// overload resolution, constexpr evaluation, and the closed-set type-trait
// intrinsics (§6.3).
package sema

import "github.com/oxhq/flashcpp/typetab"

// Rank orders implicit conversions per §4.5: exact match > promotion >
// standard conversion > user-defined > ellipsis. Lower value wins.
type Rank uint8

const (
	RankExact Rank = iota
	RankPromotion
	RankStandard
	RankUserDefined
	RankEllipsis
	RankNone // not convertible
)

// promotesToInt lists the integer-promotion-eligible kinds narrower than
// int; converting one of these to int or unsigned int is a Promotion, not a
// Standard conversion, per the standard conversion-ranking rules §4.5 cites.
var promotesToInt = map[typetab.BaseKind]bool{
	typetab.KindBool: true, typetab.KindChar: true, typetab.KindSChar: true,
	typetab.KindUChar: true, typetab.KindWChar: true, typetab.KindChar8: true,
	typetab.KindChar16: true, typetab.KindChar32: true,
	typetab.KindShort: true, typetab.KindUShort: true,
}

var floatPromotes = map[typetab.BaseKind]bool{
	typetab.KindFloat: true,
}

func isArithmetic(k typetab.BaseKind) bool {
	switch k {
	case typetab.KindBool, typetab.KindChar, typetab.KindSChar, typetab.KindUChar,
		typetab.KindWChar, typetab.KindChar8, typetab.KindChar16, typetab.KindChar32,
		typetab.KindShort, typetab.KindUShort, typetab.KindInt, typetab.KindUInt,
		typetab.KindLong, typetab.KindULong, typetab.KindLongLong, typetab.KindULongLong,
		typetab.KindFloat, typetab.KindDouble, typetab.KindLongDouble:
		return true
	}
	return false
}

func isInteger(k typetab.BaseKind) bool {
	return isArithmetic(k) && k != typetab.KindFloat && k != typetab.KindDouble && k != typetab.KindLongDouble
}

// RankConversion classifies converting a value of type `from` to a
// parameter/target of type `to`. It does not attempt user-defined
// conversion-operator/converting-constructor lookup beyond recognizing
// "both are the same class" as Exact and "different classes" as NoConversion
// — codegen's caller is responsible for probing a class's converting
// constructors and reporting RankUserDefined when one viable candidate is
// found; this function only covers the built-in conversion ranks.
func RankConversion(table *typetab.Table, from, to typetab.Index) Rank {
	if from == to {
		return RankExact
	}
	fi, ti := table.Get(from), table.Get(to)

	if fi.PointerDepth != ti.PointerDepth || fi.Ref != ti.Ref {
		// Pointer-depth/reference mismatches that aren't an exact match
		// still qualify as Standard conversions for the common cases the
		// code generator actually needs to rank: array-to-pointer decay,
		// derived*-to-base*, and reference binding are all folded in here
		// rather than split into their own sub-ranks, since the spec only
		// requires ordering the five buckets, not every standard-conversion
		// subcategory.
		if fi.PointerDepth > 0 && ti.PointerDepth == 0 && ti.Base == typetab.KindVoid {
			return RankStandard // non-void* -> void (unusual, but monotone)
		}
		if fi.PointerDepth == 0 && ti.PointerDepth > 0 {
			return RankNone
		}
		return RankStandard
	}

	if fi.Base == typetab.KindStruct || ti.Base == typetab.KindStruct {
		if fi.Base == ti.Base && fi.Struct == ti.Struct {
			return RankExact
		}
		return RankNone
	}

	if !isArithmetic(fi.Base) || !isArithmetic(ti.Base) {
		if fi.Base == ti.Base {
			return RankExact
		}
		return RankNone
	}

	if ti.Base == typetab.KindInt || ti.Base == typetab.KindUInt {
		if promotesToInt[fi.Base] {
			return RankPromotion
		}
	}
	if ti.Base == typetab.KindDouble && floatPromotes[fi.Base] {
		return RankPromotion
	}

	if isInteger(fi.Base) && isInteger(ti.Base) {
		return RankStandard
	}
	// int<->float, float<->float widening/narrowing: Standard.
	return RankStandard
}

// Viable reports whether RankConversion's result represents a usable
// (non-ellipsis-only) implicit conversion for ordinary argument binding.
func (r Rank) Viable() bool { return r < RankNone }
