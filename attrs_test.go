package livehtml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyAttrs_StringLiteralIsStatic(t *testing.T) {
	attrs := []*Attr{{Name: "class", Value: AttrValueStringLit, Text: "card", Delim: '"'}}
	out := ClassifyAttrs(attrs, nil)
	require.Len(t, out, 1)
	assert.Equal(t, AttrStatic, out[0].Kind)
	assert.Equal(t, "card", out[0].Literal)
}

func TestClassifyAttrs_ConstantExprFoldsToStatic(t *testing.T) {
	e, err := ParseExpr(`"card"`, Pos{})
	require.NoError(t, err)
	attrs := []*Attr{{Name: "class", Value: AttrValueExpr, Expr: e}}
	out := ClassifyAttrs(attrs, nil)
	require.Len(t, out, 1)
	assert.Equal(t, AttrStatic, out[0].Kind)
	assert.Equal(t, "card", out[0].Literal)
}

func TestClassifyAttrs_DynamicExprStaysDynamic(t *testing.T) {
	e, err := ParseExpr(rewriteSigils("@active"), Pos{})
	require.NoError(t, err)
	attrs := []*Attr{{Name: "class", Value: AttrValueExpr, Expr: e}}
	out := ClassifyAttrs(attrs, nil)
	require.Len(t, out, 1)
	assert.Equal(t, AttrDynamic, out[0].Kind)
}

func TestClassifyAttrs_RootSpread(t *testing.T) {
	e, err := ParseExpr(rewriteSigils("@rest"), Pos{})
	require.NoError(t, err)
	out := ClassifyAttrs(nil, []*RootAttr{{Expr: e}})
	require.Len(t, out, 1)
	assert.Equal(t, AttrRoot, out[0].Kind)
}

func TestEscapeHTML(t *testing.T) {
	assert.Equal(t, "&lt;b&gt;&amp;&quot;&#39;", EscapeHTML(`<b>&"'`))
}

func TestEncodeAttrValue_EmptyOnFalsy(t *testing.T) {
	ca := ClassifiedAttr{Name: "id", EmptyOnFalsy: true}
	assert.Equal(t, "", EncodeAttrValue(ca, nil))
	assert.Equal(t, "", EncodeAttrValue(ca, false))
}

func TestEncodeAttrValue_ClassListJoinsFilteringFalsy(t *testing.T) {
	ca := ClassifiedAttr{Name: "class", EmptyOnFalsy: true, ClassList: true}
	got := EncodeAttrValue(ca, []any{"a", false, nil, "b"})
	assert.Equal(t, "a b", got)
}
