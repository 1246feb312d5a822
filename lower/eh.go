package lower

import (
	"encoding/binary"

	"github.com/oxhq/flashcpp/asm"
)

// EHCatch is one `catch` arm bound to an EHRegion: the RTTI symbol emitThrow
// already names for the caught type (_ZTI_t%d), or an empty TypeSymbol for
// `catch (...)`.
type EHCatch struct {
	TypeSymbol string
}

// EHRegion is one try/catch statement's lowered extent: the code range the
// try body occupies, the landing pad every one of its catches is entered
// through (codegen emits exactly one shared landing pad per try, so a
// multi-catch try still has a single PC here — see emitException's doc
// comment on the pre-existing dispatch gap this inherits), and the unwind
// state assigned to it on Windows.
type EHRegion struct {
	TryStart   int64
	TryEnd     int64
	LandingPad int64
	Catches    []EHCatch

	// State/ParentState number this region for the Windows FH3 unwind map.
	// Unused on ELF, where the personality routine walks the call-site table
	// instead of a frame-resident state integer.
	State       int32
	ParentState int32

	landingPadLabel asm.LabelID
}

// uleb128 encodes v as DWARF/Itanium-C++-ABI unsigned LEB128.
func uleb128(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

// sleb128 encodes v as signed LEB128.
func sleb128(v int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

// BuildGccExceptTable assembles the Itanium C++ ABI LSDA (the
// ".gcc_except_table" GCC emits one of per function that has a try or a
// cleanup) for one function's try regions. Landing pad and call-site offsets
// are encoded relative to the function's own entry point (LPStartEncoding
// DW_EH_PE_omit), so nothing in this table needs a relocation — the
// personality routine recovers the function's runtime base address itself
// from the unwind context. Only the type table's type_info pointers do,
// since those name symbols outside this function entirely.
//
// Call-site and action records are never deduplicated across regions or
// catch types; a function with many identically-typed catches pays for an
// action record per occurrence. Type-table entries are shared per type
// symbol, except that every `catch (...)` takes its own slot. GCC itself
// deduplicates far more aggressively, but a bigger table costs nothing but
// object size here.
func BuildGccExceptTable(regions []EHRegion) (data []byte, relocs []asm.Reloc) {
	if len(regions) == 0 {
		return nil, nil
	}

	// Type table: filter k>0 (1-based) names typeSymbols[k-1]. An empty
	// TypeSymbol ("catch (...)") still occupies a slot, left all-zero, the
	// null type_info the personality treats as a catch-all.
	var typeSymbols []string
	typeFilter := map[string]int{}
	filterFor := func(sym string) int {
		if sym == "" {
			typeSymbols = append(typeSymbols, "")
			return len(typeSymbols)
		}
		if f, ok := typeFilter[sym]; ok {
			return f
		}
		typeSymbols = append(typeSymbols, sym)
		f := len(typeSymbols)
		typeFilter[sym] = f
		return f
	}

	var actionTable []byte
	prevRecLen := 0
	appendAction := func(filter int, isLast bool) int {
		rec := sleb128(int64(filter))
		next := int64(0)
		if !isLast {
			// The chain's next record is the one appended just before this
			// one; the displacement is measured from this record's own
			// next-offset field back to that record's start.
			next = -int64(prevRecLen + len(rec))
		}
		rec = append(rec, sleb128(next)...)
		prevRecLen = len(rec)
		idx := len(actionTable)
		actionTable = append(actionTable, rec...)
		return idx + 1 // action table indices are 1-based
	}

	type callSite struct{ start, length, landingPad, action uint64 }
	var callSites []callSite

	for _, r := range regions {
		action := uint64(0)
		if len(r.Catches) > 0 {
			// Built back to front so every non-last record's NextOffset (the
			// byte distance to the record right after it) is already known.
			firstIdx := 0
			for i := len(r.Catches) - 1; i >= 0; i-- {
				filter := filterFor(r.Catches[i].TypeSymbol)
				firstIdx = appendAction(filter, i == len(r.Catches)-1)
			}
			action = uint64(firstIdx)
		}
		callSites = append(callSites, callSite{
			start: uint64(r.TryStart), length: uint64(r.TryEnd - r.TryStart),
			landingPad: uint64(r.LandingPad), action: action,
		})
	}

	var callSiteTable []byte
	for _, cs := range callSites {
		callSiteTable = append(callSiteTable, uleb128(cs.start)...)
		callSiteTable = append(callSiteTable, uleb128(cs.length)...)
		callSiteTable = append(callSiteTable, uleb128(cs.landingPad)...)
		callSiteTable = append(callSiteTable, uleb128(cs.action)...)
	}

	const (
		dwEHPEOmit   = 0xff
		dwEHPEAbsptr = 0x00
		dwEHPEUleb   = 0x01
	)

	var header []byte
	header = append(header, dwEHPEOmit) // LPStart == function entry

	ttypeEncoding := byte(dwEHPEOmit)
	if len(typeSymbols) > 0 {
		ttypeEncoding = dwEHPEAbsptr
	}
	header = append(header, ttypeEncoding)

	if len(typeSymbols) > 0 {
		csLenField := uleb128(uint64(len(callSiteTable)))
		body := len(csLenField) + len(callSiteTable) + len(actionTable)
		header = append(header, uleb128(uint64(body))...)
	}

	header = append(header, dwEHPEUleb)
	header = append(header, uleb128(uint64(len(callSiteTable)))...)

	data = append(data, header...)
	data = append(data, callSiteTable...)
	data = append(data, actionTable...)

	// Type table, stored in reverse (filter 1 occupies the slot nearest the
	// end of the table, i.e. emitted last).
	for i := len(typeSymbols) - 1; i >= 0; i-- {
		sym := typeSymbols[i]
		off := int64(len(data))
		data = append(data, make([]byte, 8)...)
		if sym != "" {
			relocs = append(relocs, asm.Reloc{Offset: off, Symbol: sym, Kind: asm.RelAbs64})
		}
	}

	return data, relocs
}

// symCxxFrameHandler3 is the msvcrt personality routine every function
// compiled with exceptions points its UNWIND_INFO's ExceptionHandler field
// at.
const symCxxFrameHandler3 = "__CxxFrameHandler3"

// fh3Magic is FuncInfo's leading signature, fixed since Visual C++ 6.
const fh3Magic = 0x19930522

// fh3FuncInfoRelative marks every nested dispXxx field in this FuncInfo as
// an offset relative to the FuncInfo structure's own start rather than an
// absolute VA — the same encoding modern MSVC/clang-cl use under ASLR. It is
// the only flavor this object writer can produce without a real
// image-relative (ADDR32NB) relocation kind, which the object writer (see
// DESIGN.md) does not have; dispType/dispOfHandler/ExceptionHandler still
// cross into other sections and fall back to plain ADDR32 relocations,
// which a real PE linker would reject for these particular fields.
const fh3FuncInfoRelative = 0x00000004

// fh3HTIsStdDotDot marks a HandlerType as `catch (...)`.
const fh3HTIsStdDotDot = 0x40

// WindowsEH is one function's .xdata contents: a standard x64 UNWIND_INFO
// followed by the personality routine RVA and an FH3 FuncInfo with its
// UnwindMap, TryBlockMap and HandlerType arrays packed after it.
type WindowsEH struct {
	Data   []byte
	Relocs []asm.Reloc
}

func le32(v int32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return b[:]
}

// BuildWindowsEH assembles .xdata for a function whose prologue is
// prologueSize bytes (always push rbp; mov rbp, rsp; optionally sub rsp,
// imm32 — the fixed sequence emitPrologue emits) over a frameSize-byte local
// area, reserved via the UWOP_ALLOC_LARGE one-slot form. That slot holds
// frameSize/8 as a 16-bit value, so it describes frames up to 512K-8 bytes;
// a larger frame does not fit the slot.
//
// landingPadSymbols names, per region (same index as regions), the
// function-local symbol the caller already defined in .text at that
// region's landing pad offset.
func BuildWindowsEH(regions []EHRegion, landingPadSymbols []string, prologueSize int, frameSize int64) WindowsEH {
	type unwindCode struct {
		codeOffset byte
		opcode     byte
		opInfo     byte
		slot       uint16
		hasSlot    bool
	}
	const (
		uwopPushNonvol = 0
		uwopSetFPReg   = 3
		uwopAllocLarge = 1
	)
	var codes []unwindCode
	// Stored in execution-reverse order (last prologue instruction first),
	// per the Windows x64 ABI.
	if frameSize > 0 {
		codes = append(codes, unwindCode{codeOffset: byte(prologueSize), opcode: uwopAllocLarge, slot: uint16(frameSize / 8), hasSlot: true})
	}
	codes = append(codes, unwindCode{codeOffset: 4, opcode: uwopSetFPReg})
	codes = append(codes, unwindCode{codeOffset: 1, opcode: uwopPushNonvol, opInfo: byte(asm.RBP)})

	countOfCodes := 0
	for _, c := range codes {
		countOfCodes++
		if c.hasSlot {
			countOfCodes++
		}
	}

	var xdata []byte
	const unwFlagEHandler = 0x1
	const frameRegisterRBP = 5
	xdata = append(xdata, byte(1|unwFlagEHandler<<3), byte(prologueSize), byte(countOfCodes), byte(frameRegisterRBP))
	for _, c := range codes {
		xdata = append(xdata, c.codeOffset, c.opcode|c.opInfo<<4)
		if c.hasSlot {
			xdata = append(xdata, byte(c.slot), byte(c.slot>>8))
		}
	}
	if countOfCodes%2 != 0 {
		xdata = append(xdata, 0, 0) // pad the UNWIND_CODE array to a DWORD boundary
	}

	var relocs []asm.Reloc
	exceptionHandlerOff := len(xdata)
	xdata = append(xdata, make([]byte, 4)...)
	relocs = append(relocs, asm.Reloc{Offset: int64(exceptionHandlerOff), Symbol: symCxxFrameHandler3, Kind: asm.RelAddr32})

	// ---- FuncInfo (40-byte header) ----
	funcInfoOff := len(xdata)
	rel := func(target int) int32 { return int32(target - funcInfoOff) }

	maxState := int32(0)
	for _, r := range regions {
		if r.State+1 > maxState {
			maxState = r.State + 1
		}
	}

	unwindMapOff := funcInfoOff + 40
	toState := make([]int32, maxState)
	for i := range toState {
		toState[i] = -1
	}
	for _, r := range regions {
		toState[r.State] = r.ParentState
	}
	var unwindMap []byte
	for _, ts := range toState {
		unwindMap = append(unwindMap, le32(ts)...)
		unwindMap = append(unwindMap, le32(0)...) // no cleanup funclet modeled
	}

	tryBlockMapOff := unwindMapOff + len(unwindMap)
	handlerArrayBase := tryBlockMapOff + len(regions)*20
	var tryBlockMap []byte
	var handlerArrays [][]byte
	cursor := handlerArrayBase
	for _, r := range regions {
		var ha []byte
		for range r.Catches {
			ha = append(ha, le32(0)...) // adjectives, filled below per catch
			ha = append(ha, le32(0)...) // dispType
			ha = append(ha, le32(0)...) // dispCatchObj: no catch-object frame storage modeled
			ha = append(ha, le32(0)...) // dispOfHandler
		}
		tryBlockMap = append(tryBlockMap, le32(r.State)...)             // tryLow
		tryBlockMap = append(tryBlockMap, le32(r.State)...)             // tryHigh: nested-state ranges aren't modeled, one state per try
		tryBlockMap = append(tryBlockMap, le32(r.State)...)             // catchHigh: same simplification
		tryBlockMap = append(tryBlockMap, le32(int32(len(r.Catches)))...)
		tryBlockMap = append(tryBlockMap, le32(int32(cursor))...)
		handlerArrays = append(handlerArrays, ha)
		cursor += len(ha)
	}

	funcInfo := make([]byte, 40)
	binary.LittleEndian.PutUint32(funcInfo[0:], uint32(fh3Magic|fh3FuncInfoRelative))
	binary.LittleEndian.PutUint32(funcInfo[4:], uint32(maxState))
	binary.LittleEndian.PutUint32(funcInfo[8:], uint32(rel(unwindMapOff)))
	binary.LittleEndian.PutUint32(funcInfo[12:], uint32(len(regions)))
	binary.LittleEndian.PutUint32(funcInfo[16:], uint32(rel(tryBlockMapOff)))
	// funcInfo[20:24] nIPMapEntries, funcInfo[24:28] dispIPtoStateMap: x64
	// has no separate IP-to-state array in this model.
	// funcInfo[28:32] dispUnwindHelp: no /EHa unwind-help slot modeled.
	// funcInfo[32:36] dispESTypeList: no exception specifications modeled.
	// funcInfo[36:40] EHFlags: left zero.

	xdata = append(xdata, funcInfo...)
	xdata = append(xdata, unwindMap...)
	xdata = append(xdata, tryBlockMap...)

	for i, r := range regions {
		base := len(xdata)
		xdata = append(xdata, handlerArrays[i]...)
		for j, c := range r.Catches {
			entryOff := base + j*16
			if c.TypeSymbol == "" {
				binary.LittleEndian.PutUint32(xdata[entryOff:], fh3HTIsStdDotDot)
			} else {
				relocs = append(relocs, asm.Reloc{Offset: int64(entryOff + 4), Symbol: c.TypeSymbol, Kind: asm.RelAddr32})
			}
			relocs = append(relocs, asm.Reloc{Offset: int64(entryOff + 12), Symbol: landingPadSymbols[i], Kind: asm.RelAddr32})
		}
	}

	return WindowsEH{Data: xdata, Relocs: relocs}
}

// PdataEntry is one RUNTIME_FUNCTION record (the x64 exception-handling
// ABI's ".pdata" table): the function's code extent plus the RVA of its
// UNWIND_INFO, each field resolved through a relocation the same way every
// other cross-section reference in this package works. COFF relocations
// carry no separate addend field (the linker reads the addend straight out
// of the bytes already sitting at the relocated offset), so EndAddress's
// addend — the function's code size — is written into the buffer before its
// relocation is recorded.
type PdataEntry struct {
	FuncSymbol  string
	CodeSize    int64
	XdataSymbol string
}

func BuildPdata(entries []PdataEntry) (data []byte, relocs []asm.Reloc) {
	for _, e := range entries {
		off := int64(len(data))
		data = append(data, make([]byte, 12)...)
		binary.LittleEndian.PutUint32(data[off+4:], uint32(e.CodeSize))
		relocs = append(relocs,
			asm.Reloc{Offset: off, Symbol: e.FuncSymbol, Kind: asm.RelAddr32},
			asm.Reloc{Offset: off + 4, Symbol: e.FuncSymbol, Kind: asm.RelAddr32},
			asm.Reloc{Offset: off + 8, Symbol: e.XdataSymbol, Kind: asm.RelAddr32},
		)
	}
	return data, relocs
}
