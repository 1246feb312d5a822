package sema

import "github.com/oxhq/flashcpp/typetab"

// traitNames is the closed set of recognized type-trait spellings. Three
// take two TypeIndex arguments (__is_same, __is_base_of, __is_convertible);
// every other one takes a single argument.
var traitNames = map[string]bool{
	"__is_same": true, "__is_base_of": true, "__is_class": true, "__is_enum": true,
	"__is_union": true, "__is_polymorphic": true, "__is_abstract": true, "__is_final": true,
	"__is_empty": true, "__is_aggregate": true, "__is_standard_layout": true,
	"__is_trivially_copyable": true, "__is_trivial": true, "__is_pod": true,
	"__is_void": true, "__is_nullptr": true, "__is_integral": true, "__is_floating_point": true,
	"__is_array": true, "__is_bounded_array": true, "__is_unbounded_array": true,
	"__is_pointer": true, "__is_lvalue_reference": true, "__is_rvalue_reference": true,
	"__is_reference": true, "__is_arithmetic": true, "__is_fundamental": true,
	"__is_object": true, "__is_scalar": true, "__is_compound": true,
	"__is_member_object_pointer": true, "__is_member_function_pointer": true,
	"__is_function": true, "__is_const": true, "__is_volatile": true,
	"__is_signed": true, "__is_unsigned": true, "__is_convertible": true,
	"__has_unique_object_representations": true,
}

// IsTraitName reports whether name is one of the 39 closed-set type-trait
// intrinsics (§6.3).
func IsTraitName(name string) bool { return traitNames[name] }

var signedBases = map[typetab.BaseKind]bool{
	typetab.KindSChar: true, typetab.KindShort: true, typetab.KindInt: true,
	typetab.KindLong: true, typetab.KindLongLong: true, typetab.KindChar: true,
}

var unsignedBases = map[typetab.BaseKind]bool{
	typetab.KindUChar: true, typetab.KindUShort: true, typetab.KindUInt: true,
	typetab.KindULong: true, typetab.KindULongLong: true, typetab.KindBool: true,
	typetab.KindWChar: true, typetab.KindChar8: true, typetab.KindChar16: true, typetab.KindChar32: true,
}

// EvalTypeTrait computes the boolean (or, for __has_unique_object_representations,
// boolean-as-bool) result of a type-trait intrinsic over structurally
// inspected TypeInfo/StructInfo records, as §6.3 specifies. It returns an
// error for an unrecognized name or wrong argument count.
func EvalTypeTrait(table *typetab.Table, name string, types []typetab.Index) (bool, error) {
	if !IsTraitName(name) {
		return false, errTrait(name, "not a recognized type trait")
	}

	switch name {
	case "__is_same":
		if len(types) != 2 {
			return false, errTrait(name, "expects 2 arguments")
		}
		return types[0] == types[1], nil
	case "__is_base_of":
		if len(types) != 2 {
			return false, errTrait(name, "expects 2 arguments")
		}
		return isBaseOf(table, types[0], types[1]), nil
	case "__is_convertible":
		if len(types) != 2 {
			return false, errTrait(name, "expects 2 arguments")
		}
		return RankConversion(table, types[0], types[1]).Viable(), nil
	}

	if len(types) != 1 {
		return false, errTrait(name, "expects 1 argument")
	}
	info := table.Get(types[0])

	switch name {
	case "__is_void":
		return info.Base == typetab.KindVoid && info.PointerDepth == 0, nil
	case "__is_nullptr":
		return info.Base == typetab.KindNullptr, nil
	case "__is_class":
		return info.Base == typetab.KindStruct, nil
	case "__is_enum":
		return info.Base == typetab.KindEnum, nil
	case "__is_union":
		return info.Base == typetab.KindStruct && table.Struct(info.Struct).IsUnion, nil
	case "__is_pointer":
		return info.PointerDepth > 0, nil
	case "__is_lvalue_reference":
		return info.Ref == typetab.RefLValue, nil
	case "__is_rvalue_reference":
		return info.Ref == typetab.RefRValue, nil
	case "__is_reference":
		return info.Ref != typetab.RefNone, nil
	case "__is_array":
		return len(info.ArrayRank) > 0, nil
	case "__is_bounded_array":
		return len(info.ArrayRank) > 0 && info.ArrayRank[0] >= 0, nil
	case "__is_unbounded_array":
		return len(info.ArrayRank) > 0 && info.ArrayRank[0] < 0, nil
	case "__is_function":
		return info.Base == typetab.KindFunction, nil
	case "__is_member_function_pointer":
		return info.Base == typetab.KindFunction && info.PointerDepth > 0, nil
	case "__is_member_object_pointer":
		return info.Base == typetab.KindStruct && info.PointerDepth > 0, nil
	case "__is_integral":
		return isInteger(info.Base) && info.PointerDepth == 0, nil
	case "__is_floating_point":
		isFloat := info.Base == typetab.KindFloat || info.Base == typetab.KindDouble || info.Base == typetab.KindLongDouble
		return isFloat && info.PointerDepth == 0, nil
	case "__is_arithmetic":
		return isArithmetic(info.Base) && info.PointerDepth == 0, nil
	case "__is_fundamental":
		return (isArithmetic(info.Base) || info.Base == typetab.KindVoid || info.Base == typetab.KindNullptr) && info.PointerDepth == 0, nil
	case "__is_scalar":
		return info.PointerDepth > 0 || info.Base == typetab.KindEnum || info.Base == typetab.KindNullptr ||
			(isArithmetic(info.Base) && info.PointerDepth == 0), nil
	case "__is_object":
		return info.Base != typetab.KindVoid && info.Base != typetab.KindFunction && info.Ref == typetab.RefNone, nil
	case "__is_compound":
		fundamental := (isArithmetic(info.Base) || info.Base == typetab.KindVoid || info.Base == typetab.KindNullptr) && info.PointerDepth == 0
		return !fundamental, nil
	case "__is_const":
		return info.CV&typetab.CVConst != 0, nil
	case "__is_volatile":
		return info.CV&typetab.CVVolatile != 0, nil
	case "__is_signed":
		return signedBases[info.Base] || info.Base == typetab.KindFloat || info.Base == typetab.KindDouble || info.Base == typetab.KindLongDouble, nil
	case "__is_unsigned":
		return unsignedBases[info.Base], nil
	case "__is_polymorphic":
		return info.Base == typetab.KindStruct && table.Struct(info.Struct).IsPolymorphic, nil
	case "__is_abstract":
		return info.Base == typetab.KindStruct && table.Struct(info.Struct).IsAbstract, nil
	case "__is_final":
		return info.Base == typetab.KindStruct && table.Struct(info.Struct).IsFinal, nil
	case "__is_empty":
		return info.Base == typetab.KindStruct && table.Struct(info.Struct).IsEmpty, nil
	case "__is_aggregate":
		return info.Base == typetab.KindStruct && table.Struct(info.Struct).IsAggregate, nil
	case "__is_standard_layout":
		return info.Base == typetab.KindStruct && table.Struct(info.Struct).IsStandardLayout, nil
	case "__is_trivially_copyable":
		return info.Base != typetab.KindStruct || !table.Struct(info.Struct).HasUserDtor, nil
	case "__is_trivial":
		return info.Base != typetab.KindStruct || (!table.Struct(info.Struct).HasUserDtor && table.Struct(info.Struct).IsAggregate), nil
	case "__is_pod":
		if info.Base != typetab.KindStruct {
			return true, nil
		}
		si := table.Struct(info.Struct)
		return si.IsStandardLayout && !si.HasUserDtor && si.IsAggregate, nil
	case "__has_unique_object_representations":
		// Conservative structural approximation: true for non-pointer integral
		// types (bool and the character types included) and for classes with
		// no padding, i.e. standard-layout classes whose declared Size equals
		// the sum of member sizes (no bitfields).
		if info.Base != typetab.KindStruct {
			return info.PointerDepth == 0 && isArithmetic(info.Base) && info.Base != typetab.KindFloat && info.Base != typetab.KindDouble && info.Base != typetab.KindLongDouble, nil
		}
		si := table.Struct(info.Struct)
		if !si.IsStandardLayout {
			return false, nil
		}
		var memberBytes int64
		for _, m := range si.Members {
			if m.BitfieldWidth != 0 {
				return false, nil
			}
			memberBytes += sizeAlignOf(table.Get(m.Type), table)
		}
		return memberBytes == si.Size, nil
	}
	return false, errTrait(name, "unimplemented")
}

func isBaseOf(table *typetab.Table, base, derived typetab.Index) bool {
	if base == derived {
		return true
	}
	info := table.Get(derived)
	if info.Base != typetab.KindStruct {
		return false
	}
	for _, b := range table.Struct(info.Struct).Bases {
		if b.Deferred {
			continue
		}
		if isBaseOf(table, base, b.Type) {
			return true
		}
	}
	return false
}

func errTrait(name, msg string) error {
	return &TraitError{Name: name, Msg: msg}
}

// TraitError reports a malformed type-trait intrinsic use.
type TraitError struct {
	Name string
	Msg  string
}

func (e *TraitError) Error() string { return e.Name + ": " + e.Msg }
