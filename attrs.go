package livehtml

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr/ast"
)

// ClassifiedAttrKind discriminates the attribute classifier's output
// (spec §4.3).
type ClassifiedAttrKind int

const (
	AttrStatic ClassifiedAttrKind = iota
	AttrDynamic
	AttrRoot
	AttrDirectiveKind
)

// ClassifiedAttr is one attribute after classification.
type ClassifiedAttr struct {
	Kind ClassifiedAttrKind

	Name    string // AttrStatic, AttrDynamic
	Literal string // AttrStatic
	Delim   byte   // AttrStatic

	Expr *Expr // AttrDynamic, AttrRoot

	// special-name handling (spec §4.3): id/aria/class/data/style keep a
	// nil/false/true -> "" encoding at render time; class additionally
	// accepts a list joined with spaces after filtering nil/false.
	EmptyOnFalsy bool
	ClassList    bool
}

var emptyOnFalsyNames = map[string]bool{
	"id": true, "aria": true, "class": true, "data": true, "style": true,
}

// ClassifyAttrs partitions a node's Attrs/RootAttrs into the classifier's
// output form (spec §4.3), applying the compile-time constant-folding
// optimization for literal dynamic values.
func ClassifyAttrs(attrs []*Attr, root []*RootAttr) []ClassifiedAttr {
	out := make([]ClassifiedAttr, 0, len(attrs)+len(root))
	for _, a := range attrs {
		out = append(out, classifyAttr(a))
	}
	for _, r := range root {
		out = append(out, ClassifiedAttr{Kind: AttrRoot, Expr: r.Expr})
	}
	return out
}

func classifyAttr(a *Attr) ClassifiedAttr {
	base := strings.TrimPrefix(a.Name, ":")
	special := emptyOnFalsyNames[base] && !strings.HasPrefix(a.Name, ":")

	switch a.Value {
	case AttrValueNone:
		return ClassifiedAttr{Kind: AttrStatic, Name: a.Name, Literal: "", Delim: '"', EmptyOnFalsy: special, ClassList: base == "class"}
	case AttrValueStringLit:
		return ClassifiedAttr{Kind: AttrStatic, Name: a.Name, Literal: a.Text, Delim: a.Delim, EmptyOnFalsy: special, ClassList: base == "class"}
	case AttrValueExpr:
		if lit, ok := constString(a.Expr); ok {
			return ClassifiedAttr{Kind: AttrStatic, Name: a.Name, Literal: lit, Delim: '"', EmptyOnFalsy: special, ClassList: base == "class"}
		}
		return ClassifiedAttr{Kind: AttrDynamic, Name: a.Name, Expr: a.Expr, EmptyOnFalsy: special, ClassList: base == "class"}
	}
	return ClassifiedAttr{}
}

// constString reports whether e's AST is a bare string constant, so the
// classifier can lower it into static output instead of a dynamic slot
// (spec §4.3 "Compile-time optimization").
func constString(e *Expr) (string, bool) {
	n := e.AST()
	if c, ok := n.(*ast.StringNode); ok {
		return c.Value, true
	}
	if c, ok := n.(*ast.ConstantNode); ok {
		if s, ok := c.Value.(string); ok {
			return s, true
		}
	}
	return "", false
}

// EscapeHTML performs HTML-escaping for a dynamic attribute or text
// value rendered at runtime (spec §4.3: "rendered via HTML-escape at
// runtime").
func EscapeHTML(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&#39;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EncodeAttrValue applies the special id/aria/class/data/style encoding
// rules (spec §4.3): nil/false/true collapse to "", and class joins a
// list with spaces after filtering out nil/false entries.
func EncodeAttrValue(ca ClassifiedAttr, v any) string {
	if !ca.EmptyOnFalsy {
		return EscapeHTML(toAttrString(v))
	}
	switch val := v.(type) {
	case nil:
		return ""
	case bool:
		if !val {
			return ""
		}
		return ""
	case []any:
		if !ca.ClassList {
			return EscapeHTML(toAttrString(v))
		}
		var parts []string
		for _, item := range val {
			if item == nil {
				continue
			}
			if b, ok := item.(bool); ok && !b {
				continue
			}
			parts = append(parts, toAttrString(item))
		}
		return EscapeHTML(strings.Join(parts, " "))
	default:
		return EscapeHTML(toAttrString(v))
	}
}

func toAttrString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}
