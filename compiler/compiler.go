// Package compiler wires the lexer, parser, codegen and lower packages into
// one per-translation-unit pipeline, and assembles their per-function output
// into the single object file objfile writes to disk (§4, end to end).
package compiler

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/oxhq/flashcpp/abi"
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/cache"
	"github.com/oxhq/flashcpp/codegen"
	"github.com/oxhq/flashcpp/config"
	"github.com/oxhq/flashcpp/diag"
	"github.com/oxhq/flashcpp/ir"
	"github.com/oxhq/flashcpp/lexer"
	"github.com/oxhq/flashcpp/lower"
	"github.com/oxhq/flashcpp/objfile"
	"github.com/oxhq/flashcpp/parser"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/sym"
	"github.com/oxhq/flashcpp/typetab"
)

// Session holds the state shared across every translation unit a single
// flashcpp invocation compiles: the process-wide string and type tables
// (§3.4 requires they never reset mid-run) plus, when --cache-dir is given,
// the persistent instantiation cache every translation unit's template
// registry gets hydrated from and flushed back into.
type Session struct {
	Config  config.Config
	Strings *strtab.Table
	Types   *typetab.Table
	Cache   *cache.Store // nil when --cache-dir was not given
}

// NewSession constructs a Session for cfg, opening the persistent cache at
// cfg.CacheDir if set. The caller must call Close when every translation
// unit in the run has been compiled.
func NewSession(cfg config.Config) (*Session, error) {
	strs := strtab.New()
	s := &Session{
		Config:  cfg,
		Strings: strs,
		Types:   typetab.New(strs),
	}
	if cfg.CacheDir != "" {
		store, err := cache.Open(cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		s.Cache = store
	}
	return s, nil
}

// Close releases the session's persistent cache handle, if one was opened.
func (s *Session) Close() error {
	if s.Cache == nil {
		return nil
	}
	return s.Cache.Close()
}

// Unit is one compiled translation unit's diagnostics and, when compilation
// succeeded, its assembled object bytes. IRDump carries the generated IR's
// text rendering when the session runs verbose, for the driver to print.
type Unit struct {
	Path   string
	Diags  *diag.List
	Obj    []byte
	IRDump string
}

// CompileFile runs the full pipeline — lex, parse, generate, lower, assemble
// — over the preprocessed source at path. A non-nil error only ever wraps an
// I/O failure (§7's IOError bucket); parse/semantic failures are reported
// through Unit.Diags, with Unit.Obj left nil, so the caller can keep
// compiling the remaining files in a --response-file batch instead of
// aborting the whole run.
func CompileFile(sess *Session, path string) (Unit, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Unit{}, fmt.Errorf("compiler: read %s: %w", path, err)
	}

	diags := &diag.List{}
	arena := ast.NewArena()
	lex := lexer.New(src, path, lexer.LineMap{}, sess.Strings)
	namespaces := sym.NewNamespaceRegistry(sess.Strings)
	templates := sym.NewRegistry()

	if sess.Cache != nil {
		if err := sess.Cache.HydrateInto(templates.Cache); err != nil {
			return Unit{}, err
		}
	}

	p := parser.New(lex, sess.Strings, sess.Types, namespaces, templates, arena, diags)

	var decls []ast.NodeID
	p.ParseTranslationUnit(func(id ast.NodeID) { decls = append(decls, id) })

	if diags.HasErrors() {
		return Unit{Path: path, Diags: diags}, nil
	}

	gen := codegen.New(arena, sess.Strings, sess.Types, sess.Config.Target, p.Scopes, templates)
	gen.Instantiate = p.InstantiateFunctionTemplate
	gen.InstantiateClass = p.InstantiateClassTemplate
	genErr := gen.Generate(decls)

	// Flush after codegen, not after parse: instantiation is demand-driven
	// from call sites, so the cache only reaches its final contents once
	// every function body has been generated.
	if sess.Cache != nil {
		if err := sess.Cache.Flush(templates.Cache); err != nil {
			return Unit{}, err
		}
	}

	if genErr != nil {
		diags.Add(diag.New(diag.CodegenError, ast.Node{}.Pos, "%v", genErr))
		return Unit{Path: path, Diags: diags}, nil
	}

	obj, err := assemble(sess.Config.Target, sess.Types, sess.Strings, gen.Module)
	if err != nil {
		diags.Add(diag.New(diag.CodegenError, ast.Node{}.Pos, "%v", err))
		return Unit{Path: path, Diags: diags}, nil
	}

	unit := Unit{Path: path, Diags: diags, Obj: obj}
	if sess.Config.Verbose {
		unit.IRDump = ir.DumpModule(gen.Module)
	}
	return unit, nil
}

// assemble lowers every function in the module and packs the results into
// object sections: all code into .text (each function's symbol and
// relocation offsets rebased by the bytes already placed), globals into
// .data or .bss by whether they carry non-zero image bytes (§5), and each
// function's exception metadata into .gcc_except_table (ELF) or a
// .pdata/.xdata pair (Windows). The writer only sees finished bytes; it
// never re-orders or re-encodes anything (§4.8).
func assemble(target abi.Target, types *typetab.Table, strs *strtab.Table, module *ir.Module) ([]byte, error) {
	conv := &lower.Converter{Target: target, Types: types, Strings: strs}

	var code []byte
	var symbols []objfile.Symbol
	var relocs []objfile.Relocation
	var lsda, xdata, pdata []byte
	typeinfoSyms := map[string]bool{}

	noteTypeinfo := func(sym string) {
		if strings.HasPrefix(sym, "_ZTI_t") {
			typeinfoSyms[sym] = true
		}
	}

	for _, fn := range module.Functions {
		res, err := conv.Convert(fn)
		if err != nil {
			return nil, err
		}
		base := int64(len(code))

		fnSym := res.Symbol
		fnSym.Offset += base
		symbols = append(symbols, fnSym)

		for _, r := range res.Relocs {
			r.Offset += base
			noteTypeinfo(r.Symbol)
			relocs = append(relocs, r)
		}

		if len(res.EHRegions) > 0 {
			if target == abi.Windows {
				lpSyms := make([]string, len(res.EHRegions))
				for i, region := range res.EHRegions {
					lp := fmt.Sprintf("%s$lp%d", fn.MangledName, i)
					lpSyms[i] = lp
					symbols = append(symbols, objfile.Symbol{
						Name: lp, Section: ".text", Offset: base + region.LandingPad,
						Binding: objfile.BindLocal, Type: objfile.SymFunc,
					})
				}
				eh := lower.BuildWindowsEH(res.EHRegions, lpSyms, res.PrologueSize, res.FrameSize)
				xsym := fn.MangledName + "$xdata"
				xbase := int64(len(xdata))
				symbols = append(symbols, objfile.Symbol{
					Name: xsym, Section: ".xdata", Offset: xbase, Size: int64(len(eh.Data)),
					Binding: objfile.BindLocal, Type: objfile.SymObject,
				})
				for _, r := range eh.Relocs {
					noteTypeinfo(r.Symbol)
					relocs = append(relocs, objfile.Relocation{
						Section: ".xdata", Offset: xbase + r.Offset, Symbol: r.Symbol,
						Type: conv.ObjRelocType(r.Kind), Addend: r.Addend,
					})
				}
				xdata = append(xdata, eh.Data...)

				pd, pdRelocs := lower.BuildPdata([]lower.PdataEntry{{
					FuncSymbol: fn.MangledName, CodeSize: int64(len(res.Code)), XdataSymbol: xsym,
				}})
				pbase := int64(len(pdata))
				for _, r := range pdRelocs {
					relocs = append(relocs, objfile.Relocation{
						Section: ".pdata", Offset: pbase + r.Offset, Symbol: r.Symbol,
						Type: conv.ObjRelocType(r.Kind), Addend: r.Addend,
					})
				}
				pdata = append(pdata, pd...)
			} else {
				data, ehRelocs := lower.BuildGccExceptTable(res.EHRegions)
				lbase := int64(len(lsda))
				for _, r := range ehRelocs {
					noteTypeinfo(r.Symbol)
					relocs = append(relocs, objfile.Relocation{
						Section: ".gcc_except_table", Offset: lbase + r.Offset, Symbol: r.Symbol,
						Type: conv.ObjRelocType(r.Kind), Addend: r.Addend,
					})
				}
				lsda = append(lsda, data...)
			}
		}

		code = append(code, res.Code...)
	}

	var data []byte
	var bssSize int64
	for _, gv := range module.Globals {
		binding := objfile.BindGlobal
		if gv.IsStatic {
			binding = objfile.BindLocal
		}
		size := gv.Size
		if size < 1 {
			size = 8
		}
		if gv.Zero || len(gv.InitData) == 0 {
			bssSize = alignTo(bssSize, 8)
			symbols = append(symbols, objfile.Symbol{
				Name: gv.MangledName, Section: ".bss", Offset: bssSize, Size: size,
				Binding: binding, Type: objfile.SymObject,
			})
			bssSize += size
		} else {
			for int64(len(data))%8 != 0 {
				data = append(data, 0)
			}
			symbols = append(symbols, objfile.Symbol{
				Name: gv.MangledName, Section: ".data", Offset: int64(len(data)), Size: size,
				Binding: binding, Type: objfile.SymObject,
			})
			data = append(data, gv.InitData...)
		}
	}

	// Placeholder type descriptors for every thrown/caught type, so the
	// unit's EH relocations resolve without an external RTTI provider. Weak
	// binding lets identical descriptors from other units coalesce.
	rdataName := ".rodata"
	if target == abi.Windows {
		rdataName = ".rdata"
	}
	var rodata []byte
	tiNames := make([]string, 0, len(typeinfoSyms))
	for sym := range typeinfoSyms {
		tiNames = append(tiNames, sym)
	}
	sort.Strings(tiNames)
	for _, sym := range tiNames {
		symbols = append(symbols, objfile.Symbol{
			Name: sym, Section: rdataName, Offset: int64(len(rodata)), Size: 16,
			Binding: objfile.BindWeak, Type: objfile.SymObject,
		})
		rodata = append(rodata, make([]byte, 16)...)
	}

	// Declare every relocation target that nothing in this unit defines as
	// an undefined external, in first-reference order, so the writer can
	// emit the symbol entries the linker resolves (§4.8).
	defined := map[string]bool{}
	for _, s := range symbols {
		defined[s.Name] = true
	}
	for _, r := range relocs {
		if defined[r.Symbol] {
			continue
		}
		defined[r.Symbol] = true
		symbols = append(symbols, objfile.Symbol{Name: r.Symbol, Binding: objfile.BindGlobal})
	}

	sections := []objfile.Section{{Name: ".text", Data: code, Executable: true}}
	if len(data) > 0 {
		sections = append(sections, objfile.Section{Name: ".data", Data: data, Writable: true})
	}
	if bssSize > 0 {
		sections = append(sections, objfile.Section{Name: ".bss", NoBits: true, VirtualSize: bssSize, Writable: true})
	}
	if len(rodata) > 0 {
		sections = append(sections, objfile.Section{Name: rdataName, Data: rodata})
	}
	if len(lsda) > 0 {
		sections = append(sections, objfile.Section{Name: ".gcc_except_table", Data: lsda})
	}
	if len(xdata) > 0 {
		sections = append(sections, objfile.Section{Name: ".xdata", Data: xdata})
		sections = append(sections, objfile.Section{Name: ".pdata", Data: pdata})
	}

	obj := &objfile.Object{
		Sections:    sections,
		Symbols:     symbols,
		Relocations: relocs,
	}

	if target == abi.Windows {
		return objfile.WriteCOFF(obj)
	}
	return objfile.WriteELF64(obj)
}

func alignTo(n, align int64) int64 {
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + (align - rem)
}

// WriteUnit writes u.Obj atomically to outPath. Callers only call this after
// confirming u.Diags.HasErrors() is false.
func WriteUnit(u Unit, outPath string) error {
	return writeObjectFile(outPath, u.Obj)
}
