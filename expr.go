package livehtml

import (
	"fmt"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/compiler"
	"github.com/expr-lang/expr/conf"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
)

// Expr wraps one expression body (spec §6.1: "Expression bodies are
// opaque to the engine; they are parsed by an external expression
// parser"). The external parser bound here is github.com/expr-lang/expr,
// the same dependency the teacher uses for its own expression layer.
type Expr struct {
	Raw    string
	Pos    Pos // absolute template position of Raw[0]
	tree   *ast.Node
	prog   *vm.Program
	config *conf.Config
}

// ParseExpr parses code (already rewritten by exprlex.go: "@name" ->
// "assigns.name", ":name" index forms -> quoted member access) at the
// given absolute template position. A failure from the underlying parser
// is re-keyed onto the template position (spec §6.4, §9 Open Questions:
// "the source raises with the inner parser's position re-keyed to the
// template").
func ParseExpr(code string, pos Pos) (*Expr, error) {
	tree, err := parser.Parse(code)
	if err != nil {
		return nil, rekeyExprError(err, code, pos)
	}
	return &Expr{Raw: code, Pos: pos, tree: &tree.Node}, nil
}

// rekeyExprError converts an expr-lang parse/compile error, which
// reports a byte offset within code, into a ParseError at the template's
// absolute column.
func rekeyExprError(err error, code string, pos Pos) error {
	offset := exprErrorOffset(err)
	col := pos.Column
	if offset > 0 {
		col += uint32(runeOffset(code, offset))
	}
	return &ParseError{
		Line:        pos.Line,
		Column:      col,
		Description: fmt.Sprintf("invalid expression: %s", err),
	}
}

// exprErrorOffset extracts a byte offset from an expr-lang *file.Error,
// if the concrete error type exposes one. expr-lang's error type is not
// guaranteed stable across versions; an unrecognized shape yields 0,
// which simply points the caret at the start of the expression instead
// of the exact failing rune — still useful, never wrong.
func exprErrorOffset(err error) int {
	type positioned interface{ Position() (int, int) }
	if p, ok := err.(positioned); ok {
		_, col := p.Position()
		return col
	}
	return 0
}

func runeOffset(s string, byteOffset int) int {
	if byteOffset > len(s) {
		byteOffset = len(s)
	}
	return len([]rune(s[:byteOffset]))
}

// AST exposes the parsed expression tree for taint analysis.
func (e *Expr) AST() ast.Node {
	return *e.tree
}

// compile lazily compiles e for evaluation and caches the program. env
// is not consulted: the program is compiled against an empty
// conf.Config, which permits any field access (expr-lang's dynamic-env
// default, which this engine relies on since assigns maps are not
// statically typed).
func (e *Expr) compile(env any) (*vm.Program, error) {
	if e.prog != nil {
		return e.prog, nil
	}
	prog, err := compiler.Compile(*e.tree, &conf.Config{})
	if err != nil {
		return nil, rekeyExprError(err, e.Raw, e.Pos)
	}
	e.prog = prog
	return prog, nil
}

// Eval runs e against env (typically a map holding "assigns" and any
// restricted-scope bindings introduced by enclosing :for/:let/EExBlock
// constructs).
func (e *Expr) Eval(env any) (any, error) {
	prog, err := e.compile(env)
	if err != nil {
		return nil, err
	}
	return vm.Run(prog, env)
}
