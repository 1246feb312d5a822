package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/flashcpp/abi"
	"github.com/oxhq/flashcpp/config"
)

func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestCompileFileProducesAnELFObjectForTrivialFunction(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "add.ii", `int add(int a, int b) { return a + b; }`)

	cfg := config.Default()
	cfg.Target = abi.SystemV
	sess, err := NewSession(cfg)
	require.NoError(t, err)
	defer sess.Close()

	unit, err := CompileFile(sess, path)
	require.NoError(t, err)
	require.False(t, unit.Diags.HasErrors())
	require.NotEmpty(t, unit.Obj)

	assert.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, unit.Obj[:4])
}

func TestCompileFileProducesCOFFObjectOnWindowsTarget(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "add.ii", `int add(int a, int b) { return a + b; }`)

	cfg := config.Default()
	cfg.Target = abi.Windows
	sess, err := NewSession(cfg)
	require.NoError(t, err)
	defer sess.Close()

	unit, err := CompileFile(sess, path)
	require.NoError(t, err)
	require.False(t, unit.Diags.HasErrors())
	require.NotEmpty(t, unit.Obj)
}

func TestCompileFileInstantiatesFunctionTemplateAtCallSite(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "max.ii", `
		template<class T>
		T max_(T a, T b) { return a > b ? a : b; }
		int main() { return max_(1, 2) == 2 ? 0 : 1; }
	`)

	cfg := config.Default()
	cfg.Target = abi.SystemV
	sess, err := NewSession(cfg)
	require.NoError(t, err)
	defer sess.Close()

	unit, err := CompileFile(sess, path)
	require.NoError(t, err)
	require.False(t, unit.Diags.HasErrors(), "template call must instantiate, not error")
	assert.NotEmpty(t, unit.Obj)
}

func TestCompileFileInstantiatesClassTemplate(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "box.ii", `
		template<class T>
		struct Box {
			T v;
			T get() { return v; }
		};
		int main() {
			Box<int> b;
			b.v = 42;
			return b.get() - 42;
		}
	`)

	cfg := config.Default()
	cfg.Target = abi.SystemV
	sess, err := NewSession(cfg)
	require.NoError(t, err)
	defer sess.Close()

	unit, err := CompileFile(sess, path)
	require.NoError(t, err)
	require.False(t, unit.Diags.HasErrors(), "class-template use must instantiate, not error")
	assert.NotEmpty(t, unit.Obj)
}

func TestCompileFileFoldsMathBuiltins(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "abs.ii", `
		int main() { return __builtin_labs(-42) - 42; }
	`)

	cfg := config.Default()
	cfg.Target = abi.SystemV
	sess, err := NewSession(cfg)
	require.NoError(t, err)
	defer sess.Close()

	unit, err := CompileFile(sess, path)
	require.NoError(t, err)
	require.False(t, unit.Diags.HasErrors())
	assert.NotEmpty(t, unit.Obj)
}

func TestCompileFileLowersVaArgBuiltins(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "va.ii", `
		int take(int last, char* ap) {
			__builtin_va_start(ap, last);
			return __builtin_va_arg(ap, int);
		}
	`)

	cfg := config.Default()
	cfg.Target = abi.SystemV
	sess, err := NewSession(cfg)
	require.NoError(t, err)
	defer sess.Close()

	unit, err := CompileFile(sess, path)
	require.NoError(t, err)
	require.False(t, unit.Diags.HasErrors())
	assert.NotEmpty(t, unit.Obj)
}

func TestCompileFileExpandsVariadicFoldExpression(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "sum.ii", `
		template<class... Args>
		int sum(Args... args) { return (args + ... + 0); }
		int main() { return sum(1, 2, 3) - 6; }
	`)

	cfg := config.Default()
	cfg.Target = abi.SystemV
	sess, err := NewSession(cfg)
	require.NoError(t, err)
	defer sess.Close()

	unit, err := CompileFile(sess, path)
	require.NoError(t, err)
	require.False(t, unit.Diags.HasErrors())
	assert.NotEmpty(t, unit.Obj)
}

func TestCompileFileGeneratesLambdaClosureAndCall(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "lam.ii", `
		int main() {
			int x = 40;
			auto f = [x](int y) { return x + y; };
			return f(2) - 42;
		}
	`)

	cfg := config.Default()
	cfg.Target = abi.SystemV
	sess, err := NewSession(cfg)
	require.NoError(t, err)
	defer sess.Close()

	unit, err := CompileFile(sess, path)
	require.NoError(t, err)
	require.False(t, unit.Diags.HasErrors())
	assert.NotEmpty(t, unit.Obj)
}

func TestCompileFilePlacesGlobalsInDataAndBss(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "glob.ii", `
		int counter = 5;
		int zeroed;
		int main() { counter = counter + 1; return zeroed; }
	`)

	cfg := config.Default()
	cfg.Target = abi.SystemV
	sess, err := NewSession(cfg)
	require.NoError(t, err)
	defer sess.Close()

	unit, err := CompileFile(sess, path)
	require.NoError(t, err)
	require.False(t, unit.Diags.HasErrors())
	require.NotEmpty(t, unit.Obj)
	assert.Contains(t, string(unit.Obj), ".data")
	assert.Contains(t, string(unit.Obj), ".bss")
	assert.Contains(t, string(unit.Obj), "counter")
}

func TestCompileFileEmitsExceptionTablesOnBothTargets(t *testing.T) {
	src := `
		int main() {
			try { throw 42; } catch (int e) { return e - 42; }
			return 1;
		}
	`
	for _, tc := range []struct {
		target  abi.Target
		section string
	}{
		{abi.SystemV, ".gcc_except_table"},
		{abi.Windows, ".pdata"},
	} {
		dir := t.TempDir()
		path := writeSource(t, dir, "exc.ii", src)
		cfg := config.Default()
		cfg.Target = tc.target
		sess, err := NewSession(cfg)
		require.NoError(t, err)

		unit, err := CompileFile(sess, path)
		require.NoError(t, err)
		require.False(t, unit.Diags.HasErrors())
		require.NotEmpty(t, unit.Obj)
		assert.Contains(t, string(unit.Obj), tc.section)
		require.NoError(t, sess.Close())
	}
}

func TestCompileFileReportsParseErrorsWithoutProducingAnObject(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "bad.ii", `int broken( {`)

	sess, err := NewSession(config.Default())
	require.NoError(t, err)
	defer sess.Close()

	unit, err := CompileFile(sess, path)
	require.NoError(t, err)
	assert.True(t, unit.Diags.HasErrors())
	assert.Nil(t, unit.Obj)
}

func TestCompileFileWithCacheDirPersistsAcrossSessions(t *testing.T) {
	cacheDir := t.TempDir()
	srcDir := t.TempDir()
	path := writeSource(t, srcDir, "add.ii", `int add(int a, int b) { return a + b; }`)

	cfg := config.Default()
	cfg.CacheDir = cacheDir

	sess1, err := NewSession(cfg)
	require.NoError(t, err)
	unit1, err := CompileFile(sess1, path)
	require.NoError(t, err)
	require.False(t, unit1.Diags.HasErrors())
	require.NoError(t, sess1.Close())

	sess2, err := NewSession(cfg)
	require.NoError(t, err)
	defer sess2.Close()
	unit2, err := CompileFile(sess2, path)
	require.NoError(t, err)
	assert.False(t, unit2.Diags.HasErrors())
}

func TestWriteUnitWritesObjectAtomically(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "add.ii", `int add(int a, int b) { return a + b; }`)

	sess, err := NewSession(config.Default())
	require.NoError(t, err)
	defer sess.Close()

	unit, err := CompileFile(sess, path)
	require.NoError(t, err)
	require.False(t, unit.Diags.HasErrors())

	outPath := filepath.Join(dir, "add.o")
	require.NoError(t, WriteUnit(unit, outPath))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, unit.Obj, data)

	_, err = os.Stat(outPath + ".flashcpp.tmp")
	assert.True(t, os.IsNotExist(err))
}
