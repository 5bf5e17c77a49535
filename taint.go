package livehtml

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr/ast"
)

// Keys is the derived change-tracking key set for one expression (spec
// §3.5): either "recompute unconditionally" or a pruned set of assign
// paths, any one of which being marked changed forces recomputation.
type Keys struct {
	All   bool
	Paths map[string]bool // dotted path strings, e.g. "user.profile.name"
}

// taintResult is the bottom-up accumulator the walker builds per
// sub-expression (spec §4.4.1).
type taintResult struct {
	tainted  bool            // Vars state reached Tainted
	strong   bool            // the bare `assigns` handle was read, collapsed to it, or an unrecognized construct was seen
	localVar bool            // a bare identifier that is neither `assigns`-rooted nor a template-bound name was read (spec §4.6's "local variable disables change tracking" warning)
	assigns  map[string]bool // dotted assign paths observed
}

func emptyResult() taintResult { return taintResult{assigns: map[string]bool{}} }

func mergeResults(rs ...taintResult) taintResult {
	out := emptyResult()
	for _, r := range rs {
		out.tainted = out.tainted || r.tainted
		out.strong = out.strong || r.strong
		out.localVar = out.localVar || r.localVar
		for k := range r.assigns {
			out.assigns[k] = true
		}
	}
	return out
}

// builtinIdents are expr-lang builtin function names that read as bare
// identifiers in a CallNode callee position; referencing them is not a
// variable read and must not taint (spec §4.4.1 rule 4: "any identifier
// that is not a known special").
var builtinIdents = map[string]bool{
	"len": true, "all": true, "any": true, "one": true, "none": true,
	"filter": true, "map": true, "find": true, "findIndex": true, "findLast": true,
	"findLastIndex": true, "count": true, "sum": true, "first": true, "last": true,
	"take": true, "reverse": true, "sort": true, "sortBy": true, "groupBy": true,
	"type": true, "string": true, "int": true, "float": true, "toJSON": true,
	"fromJSON": true, "now": true, "duration": true, "date": true, "trim": true,
	"upper": true, "lower": true, "split": true, "splitAfter": true, "replace": true,
	"repeat": true, "join": true, "indexOf": true, "lastIndexOf": true, "hasPrefix": true,
	"hasSuffix": true, "max": true, "min": true, "abs": true, "ceil": true, "floor": true,
	"round": true, "get": true, "nil": true,
}

// AnalyzeTaint runs taint analysis over e's AST (spec §4.4.1). bound
// names are variables already introduced by enclosing template-level
// constructs (a :for pattern, a :let pattern, an EExBlock clause
// pattern) that must not taint this expression — the template-level
// analog of rule 5's "Restricted" mode, since those bindings live
// outside any single expr-lang expression.
//
// ctx is optional (nil is a valid argument, e.g. from unit tests that
// only care about the returned Keys): when present, it records the two
// non-fatal diagnostics spec §4.6 attaches to taint widening — a
// Warning when the widen is caused by a bare local-variable read
// (res.localVar), and a Debug log for the generic conservative widen
// (an unrecognized AST construct, or a bare `assigns` read) that spec
// §4.6 does not itself promote to a Warning.
func AnalyzeTaint(ctx *compileCtx, e *Expr, bound map[string]bool) Keys {
	if bound == nil {
		bound = map[string]bool{}
	}
	res := walkTaint(e.AST(), bound)
	if ctx != nil && res.localVar {
		ctx.warnings = append(ctx.warnings, Warning{
			File: ctx.file, Line: e.Pos.Line, Column: e.Pos.Column,
			Description: fmt.Sprintf("local variable in %q disables change tracking for this fragment", e.Raw),
		})
	}
	if res.tainted || res.strong {
		if ctx != nil && ctx.logger != nil {
			ctx.logger.Debug("expression widened to unconditional recompute", "expr", e.Raw, "line", e.Pos.Line)
		}
		return Keys{All: true}
	}
	return Keys{Paths: prunePaths(res.assigns)}
}

func walkTaint(n ast.Node, bound map[string]bool) taintResult {
	if n == nil {
		return emptyResult()
	}

	switch v := n.(type) {
	case *ast.IdentifierNode:
		return walkIdentifier(v.Value, bound)

	case *ast.MemberNode:
		return walkMember(v, bound)

	case *ast.BinaryNode:
		return mergeResults(walkTaint(v.Left, bound), walkTaint(v.Right, bound))

	case *ast.UnaryNode:
		return walkTaint(v.Node, bound)

	case *ast.ConditionalNode:
		return mergeResults(walkTaint(v.Cond, bound), walkTaint(v.Exp1, bound), walkTaint(v.Exp2, bound))

	case *ast.CallNode:
		res := emptyResult()
		if id, ok := v.Callee.(*ast.IdentifierNode); ok && builtinIdents[id.Value] {
			// callee itself is not a variable read
		} else {
			res = walkTaint(v.Callee, bound)
		}
		for _, a := range v.Arguments {
			res = mergeResults(res, walkTaint(a, bound))
		}
		return res

	case *ast.BuiltinNode:
		res := emptyResult()
		for _, a := range v.Arguments {
			res = mergeResults(res, walkTaint(a, bound))
		}
		return res

	case *ast.ArrayNode:
		res := emptyResult()
		for _, e := range v.Nodes {
			res = mergeResults(res, walkTaint(e, bound))
		}
		return res

	case *ast.MapNode:
		res := emptyResult()
		for _, p := range v.Pairs {
			res = mergeResults(res, walkTaint(p, bound))
		}
		return res

	case *ast.PairNode:
		return mergeResults(walkTaint(v.Key, bound), walkTaint(v.Value, bound))

	case *ast.SliceNode:
		res := walkTaint(v.Node, bound)
		if v.From != nil {
			res = mergeResults(res, walkTaint(v.From, bound))
		}
		if v.To != nil {
			res = mergeResults(res, walkTaint(v.To, bound))
		}
		return res

	case *ast.SequenceNode:
		res := emptyResult()
		for _, e := range v.Nodes {
			res = mergeResults(res, walkTaint(e, bound))
		}
		return res

	case *ast.VariableDeclaratorNode:
		// `let NAME = value; expr` — scope-introducing (rule 5): value is
		// analyzed in the enclosing mode, expr with NAME newly bound.
		valRes := walkTaint(v.Value, bound)
		inner := cloneBound(bound)
		inner[v.Name] = true
		exprRes := walkTaint(v.Expr, inner)
		return mergeResults(valRes, exprRes)

	case *ast.ClosureNode:
		// filter/map/all/any/find lambda bodies (rule 5): the "#"
		// placeholder and positional closure args are Restricted.
		inner := cloneBound(bound)
		inner["#"] = true
		inner["#index"] = true
		inner["#acc"] = true
		return walkTaint(v.Node, inner)

	case *ast.PointerNode, *ast.ConstantNode, *ast.StringNode, *ast.IntegerNode,
		*ast.FloatNode, *ast.BoolNode, *ast.NilNode:
		return emptyResult()

	default:
		// Unrecognized construct: widen conservatively rather than risk a
		// stale render (spec §4.6: "Taint analysis never fails; it only
		// widens to :all on any unrecognized construct").
		return taintResult{tainted: true, strong: true, assigns: map[string]bool{}}
	}
}

func walkIdentifier(name string, bound map[string]bool) taintResult {
	switch {
	case name == "assigns":
		// Whole-assigns read is a strong taint (rule 3).
		return taintResult{strong: true, assigns: map[string]bool{}}
	case name == "_" || name == "nil" || bound[name]:
		return emptyResult()
	default:
		// A bare identifier that is neither `assigns`-rooted nor a
		// template-bound pattern name: the local-variable case spec
		// §4.6 warns about, since there is no assign path to key
		// change tracking on.
		return taintResult{tainted: true, localVar: true, assigns: map[string]bool{}}
	}
}

func walkMember(m *ast.MemberNode, bound map[string]bool) taintResult {
	if path, ok := assignPath(m); ok && len(path) > 0 {
		return taintResult{assigns: map[string]bool{strings.Join(path, "."): true}}
	}
	if isAssignsRooted(m.Node) {
		// A dynamic (non-constant) accessor on an assigns path: static
		// path tracking stops, so this collapses to whole-assign taint
		// (rule 2: "A dynamic accessor... collapses back to whole-assign
		// taint because static path tracking stops").
		return mergeResults(taintResult{strong: true, assigns: map[string]bool{}}, walkTaint(m.Property, bound))
	}
	return mergeResults(walkTaint(m.Node, bound), walkTaint(m.Property, bound))
}

// assignPath recursively walks a MemberNode chain rooted at the
// `assigns` identifier (after exprlex.go's @name/[:name] rewrite),
// returning the path of constant field/index names from the root assign
// name onward. ok is false if the chain does not root at `assigns` or
// any property along the way is not a compile-time constant.
func assignPath(n ast.Node) (path []string, ok bool) {
	switch v := n.(type) {
	case *ast.IdentifierNode:
		if v.Value == "assigns" {
			return []string{}, true
		}
		return nil, false
	case *ast.MemberNode:
		parent, parentOK := assignPath(v.Node)
		if !parentOK {
			return nil, false
		}
		name, propOK := memberPropertyName(v.Property)
		if !propOK {
			return nil, false
		}
		return append(append([]string{}, parent...), name), true
	default:
		return nil, false
	}
}

func memberPropertyName(n ast.Node) (string, bool) {
	switch v := n.(type) {
	case *ast.StringNode:
		return v.Value, true
	case *ast.IdentifierNode:
		return v.Value, true
	case *ast.ConstantNode:
		if s, ok := v.Value.(string); ok {
			return s, true
		}
	}
	return "", false
}

func isAssignsRooted(n ast.Node) bool {
	switch v := n.(type) {
	case *ast.IdentifierNode:
		return v.Value == "assigns"
	case *ast.MemberNode:
		return isAssignsRooted(v.Node)
	default:
		return false
	}
}

func cloneBound(b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(b)+2)
	for k, v := range b {
		out[k] = v
	}
	return out
}

// prunePaths removes any path whose strict parent path is also present
// (spec §3.5: "checking the parent covers the child").
func prunePaths(paths map[string]bool) map[string]bool {
	out := map[string]bool{}
	for p := range paths {
		parts := strings.Split(p, ".")
		covered := false
		for i := 1; i < len(parts); i++ {
			if paths[strings.Join(parts[:i], ".")] {
				covered = true
				break
			}
		}
		if !covered {
			out[p] = true
		}
	}
	return out
}

var identRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// patternNames extracts the variable names a :for/:let/EExBlock clause
// pattern binds, by scanning for identifier tokens. Patterns in this
// engine are not a full pattern-matching language (there is no
// destructuring grammar of their own to parse); this conservative
// approximation is enough to keep loop/let-bound names out of the
// enclosing expression's taint, matching rule 5's restricted-scope
// requirement without inventing a pattern parser the rest of the spec
// never asks for.
func patternNames(pattern string) map[string]bool {
	out := map[string]bool{}
	for _, m := range identRe.FindAllString(pattern, -1) {
		if m == "_" {
			continue
		}
		out[m] = true
	}
	return out
}
