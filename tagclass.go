package livehtml

import "strings"

// ClassifiedKind is the result of classifying a raw tag name (spec
// §4.2 "Tag classification").
type ClassifiedKind int

const (
	ClassTag ClassifiedKind = iota
	ClassVoidTag
	ClassLocalComponent
	ClassRemoteComponent
	ClassSlot
)

// voidTags is the fixed set from spec §3.3.
var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "param": true,
	"command": true, "keygen": true, "source": true,
}

// TagHandler is the external collaborator spec §6.1 names: it decides
// how a raw tag name maps onto the node kinds the structural analyzer
// builds, and offers attribute/annotation hooks so the engine is
// reusable with a different HTML profile.
type TagHandler interface {
	ClassifyType(name string) ClassifiedKind
	Void(name string) bool
	// HandleAttributes lets a handler rewrite or quote a tag's raw
	// attribute list before classification (spec §6.1's
	// "handle_attributes(ast, meta) -> {Attributes([(name, value)]),
	// Quoted(expr)}"). Returning ok=false leaves the parser's own parsed
	// attrs untouched, which is the common case and DefaultTagHandler's
	// answer; a handler that wants to, say, expand a custom shorthand
	// attribute into several literal ones, or fold an entire tag's
	// attributes into a single spread expression, returns ok=true with
	// the replacement.
	HandleAttributes(attrs []*Attr, meta AttrHandlerMeta) (result AttrHandlingResult, ok bool)
	// AnnotateCaller returns an optional human string describing where a
	// component was called from, used by diagnostics; Unavailable (ok
	// false) is a legitimate answer.
	AnnotateCaller(file string, line uint32) (s string, ok bool)
	// AnnotateBody optionally wraps one compiled body's static text in a
	// prefix/suffix (spec §6.1's tag handler contract: "annotate_body(env)
	// -> Option<(prefix, suffix)>"), e.g. an HTML comment marking a
	// component's rendered boundary for development-mode debugging.
	// Unavailable (ok false) is a legitimate answer and leaves the body
	// untouched.
	AnnotateBody(env map[string]any) (prefix, suffix string, ok bool)
}

// AttrHandlerMeta is the "meta" half of handle_attributes(ast, meta):
// context about the tag the attrs belong to, since a handler's rewrite
// decision can depend on which tag it is, not just the attrs themselves.
type AttrHandlerMeta struct {
	TagName string
	Pos     Pos
}

// AttrNameValue is one literal (name, value) pair in the Attributes
// variant of handle_attributes's result.
type AttrNameValue struct {
	Name  string
	Value string
}

// AttrHandlingResult is the {Attributes([(name, value)]), Quoted(expr)}
// sum type handle_attributes returns (spec §6.1): either a literal
// attribute list replacing the tag's parsed attrs, or a single quoted
// expression standing in for the whole attribute set (the root-spread
// shape, `{...expr}`). Both nil/empty means "no attributes" — a handler
// returns ok=false from HandleAttributes instead if it means "no
// change."
type AttrHandlingResult struct {
	Attributes []AttrNameValue
	Quoted     *Expr
}

// DefaultTagHandler implements the naming convention spec §4.2 describes:
// a leading '.' is a local component, a leading uppercase letter is a
// remote component (module path split on '.'), a leading ':' is a slot,
// membership in voidTags is a void tag, anything else is a plain tag.
type DefaultTagHandler struct{}

var _ TagHandler = DefaultTagHandler{}

func (DefaultTagHandler) ClassifyType(name string) ClassifiedKind {
	switch {
	case strings.HasPrefix(name, "."):
		return ClassLocalComponent
	case strings.HasPrefix(name, ":"):
		return ClassSlot
	case isUpperStart(name):
		return ClassRemoteComponent
	case voidTags[name]:
		return ClassVoidTag
	default:
		return ClassTag
	}
}

func (DefaultTagHandler) Void(name string) bool {
	return voidTags[name]
}

func (DefaultTagHandler) HandleAttributes(attrs []*Attr, meta AttrHandlerMeta) (AttrHandlingResult, bool) {
	return AttrHandlingResult{}, false
}

func (DefaultTagHandler) AnnotateCaller(file string, line uint32) (string, bool) {
	return "", false
}

func (DefaultTagHandler) AnnotateBody(env map[string]any) (string, string, bool) {
	return "", "", false
}

func isUpperStart(name string) bool {
	if name == "" {
		return false
	}
	r := rune(name[0])
	return r >= 'A' && r <= 'Z'
}

// splitModulePath splits a remote component's raw tag name ("Foo.Bar.name")
// into its module path segments and final function name.
func splitModulePath(name string) (modulePath []string, fnName string) {
	parts := strings.Split(name, ".")
	if len(parts) == 1 {
		return nil, parts[0]
	}
	return parts[:len(parts)-1], parts[len(parts)-1]
}
