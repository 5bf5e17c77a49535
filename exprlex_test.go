package livehtml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanBraceExpr_StopsAtMatchingClose(t *testing.T) {
	code, consumed, ok := scanBraceExpr(`@user.name} rest`)
	assert.True(t, ok)
	assert.Equal(t, "@user.name", code)
	assert.Equal(t, len(`@user.name}`), consumed)
}

func TestScanBraceExpr_TracksNestedBraces(t *testing.T) {
	code, _, ok := scanBraceExpr(`{a: 1}} tail`)
	assert.True(t, ok)
	assert.Equal(t, "{a: 1}", code)
}

func TestScanBraceExpr_EscapesDoNotCountToDepth(t *testing.T) {
	code, _, ok := scanBraceExpr(`\{literal\}}`)
	assert.True(t, ok)
	assert.Equal(t, "{literal}", code)
}

func TestScanBraceExpr_UnterminatedFails(t *testing.T) {
	_, _, ok := scanBraceExpr(`@user.name`)
	assert.False(t, ok)
}

func TestEExDelim(t *testing.T) {
	delim, output := eexDelim("<%= @x %>")
	assert.Equal(t, "<%=", delim)
	assert.True(t, output)

	delim, output = eexDelim("<% @x %>")
	assert.Equal(t, "<%", delim)
	assert.False(t, output)

	delim, _ = eexDelim("plain text")
	assert.Equal(t, "", delim)
}

func TestScanEExExpr_StopsAtCloseOutsideBraces(t *testing.T) {
	code, _, ok := scanEExExpr(` if @flag do %> rest`)
	assert.True(t, ok)
	assert.Equal(t, "if @flag do", code)
}

func TestScanEExExpr_BracesDoNotPrematurelyClose(t *testing.T) {
	code, _, ok := scanEExExpr(` {a: "%>"} %> rest`)
	assert.True(t, ok)
	assert.Equal(t, `{a: "%>"}`, code)
}

func TestRewriteSigils_AtNameToAssignsMember(t *testing.T) {
	assert.Equal(t, "assigns.user.name", rewriteSigils("@user.name"))
}

func TestRewriteSigils_BracketColonKeyToStringIndex(t *testing.T) {
	assert.Equal(t, `x["key"]`, rewriteSigils("x[:key]"))
}

func TestRewriteSigils_LeavesStringLiteralsAlone(t *testing.T) {
	assert.Equal(t, `"@not.rewritten"`, rewriteSigils(`"@not.rewritten"`))
}

func TestSplitGenerator_SplitsOnArrow(t *testing.T) {
	pattern, enum, ok := splitGenerator("item <- @items")
	assert.True(t, ok)
	assert.Equal(t, "item", pattern)
	assert.Equal(t, "@items", enum)
}

func TestSplitGenerator_NoArrowFails(t *testing.T) {
	_, _, ok := splitGenerator("@items")
	assert.False(t, ok)
}

func TestSplitGenerator_IgnoresArrowInsideString(t *testing.T) {
	_, _, ok := splitGenerator(`"a <- b"`)
	assert.False(t, ok)
}
