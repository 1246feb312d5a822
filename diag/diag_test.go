package diag

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/flashcpp/token"
)

func TestDiagnosticErrorFormat(t *testing.T) {
	d := New(NameError, token.Position{File: "a.cpp", Line: 3, Column: 5}, "undeclared identifier %q", "foo")
	assert.Equal(t, `a.cpp:3:5: name error: undeclared identifier "foo"`, d.Error())
}

func TestPrinterRendersSourceLineAndCaret(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ColorNever)
	p.SourceLine = func(file string, line int) (string, bool) {
		return "int x = y;", true
	}
	p.Print(New(TypeError, token.Position{File: "a.cpp", Line: 1, Column: 9}, "unknown type"))

	out := buf.String()
	assert.Contains(t, out, "a.cpp:1:9: type error: unknown type\n")
	assert.Contains(t, out, "int x = y;\n")
	assert.Contains(t, out, "        ^") // 8 spaces then caret for column 9
}

func TestPrinterAppendsInstantiationChain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ColorNever)
	d := New(TemplateError, token.Position{File: "a.cpp", Line: 10, Column: 1}, "no viable specialization")
	d = d.WithChain([]InstantiationFrame{
		{TemplateName: "max_", Args: "int", Pos: token.Position{File: "a.cpp", Line: 20, Column: 3}},
	})
	p.Print(d)
	assert.Contains(t, buf.String(), "instantiated from max_<int> at a.cpp:20:3")
}

func TestListAccumulatesAndDoesNotStop(t *testing.T) {
	var l List
	require.False(t, l.HasErrors())
	l.Add(New(ParseError, token.Position{}, "unexpected token"))
	l.Add(New(ParseError, token.Position{}, "missing ;"))
	assert.True(t, l.HasErrors())
	assert.Equal(t, 2, l.Count())
}
