package livehtml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rewritingTagHandler wraps DefaultTagHandler to exercise the
// HandleAttributes hook's Attributes variant: it expands a "shorthand"
// attribute into a literal one.
type rewritingTagHandler struct {
	DefaultTagHandler
}

func (rewritingTagHandler) HandleAttributes(attrs []*Attr, meta AttrHandlerMeta) (AttrHandlingResult, bool) {
	for _, a := range attrs {
		if a.Name != "shorthand" {
			continue
		}
		out := make([]AttrNameValue, 0, len(attrs))
		for _, a2 := range attrs {
			if a2.Name == "shorthand" {
				out = append(out, AttrNameValue{Name: "id", Value: "generated"})
				continue
			}
			val, _ := staticAttrString(a2)
			out = append(out, AttrNameValue{Name: a2.Name, Value: val})
		}
		return AttrHandlingResult{Attributes: out}, true
	}
	return AttrHandlingResult{}, false
}

func TestCompile_HandleAttributesRewritesShorthandIntoID(t *testing.T) {
	th := rewritingTagHandler{}
	_, _, err := Compile(`<div phx-update="ignore" shorthand="x"></div>`, CompileOptions{File: "t.html", TagHandler: th})
	require.NoError(t, err)
}

// quotingTagHandler wraps DefaultTagHandler to exercise the
// HandleAttributes hook's Quoted variant: it folds a tag's attributes
// into a single root-spread expression, the same shape {@rest} produces
// in template source.
type quotingTagHandler struct {
	DefaultTagHandler
}

func (quotingTagHandler) HandleAttributes(attrs []*Attr, meta AttrHandlerMeta) (AttrHandlingResult, bool) {
	if meta.TagName != "div" {
		return AttrHandlingResult{}, false
	}
	expr, err := ParseExpr("@rest", meta.Pos)
	if err != nil {
		return AttrHandlingResult{}, false
	}
	return AttrHandlingResult{Quoted: expr}, true
}

func TestCompile_HandleAttributesQuotedSatisfiesIDRequirement(t *testing.T) {
	th := quotingTagHandler{}
	_, _, err := Compile(`<div phx-update="ignore"></div>`, CompileOptions{File: "t.html", TagHandler: th})
	require.NoError(t, err)
}

func TestCompile_HandleAttributesDefaultIsNoop(t *testing.T) {
	_, warnings, err := Compile(`<div id="x" phx-update="ignore"></div>`, CompileOptions{File: "t.html"})
	require.NoError(t, err)
	assert.Empty(t, warnings)
}
