package livehtml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyze(t *testing.T, code string, bound map[string]bool) Keys {
	t.Helper()
	e, err := ParseExpr(rewriteSigils(code), Pos{})
	require.NoError(t, err)
	return AnalyzeTaint(nil, e, bound)
}

func TestAnalyzeTaint_ConstantPath(t *testing.T) {
	keys := analyze(t, "@user.profile.name", nil)
	assert.False(t, keys.All)
	assert.True(t, keys.Paths["user.profile.name"])
}

func TestAnalyzeTaint_ParentPrunesChild(t *testing.T) {
	keys := analyze(t, "@user.name + @user", nil)
	// "user" covers "user.name": checking the parent changed already
	// covers the child, so the more specific path must not survive
	// alongside it (spec §3.5).
	assert.False(t, keys.All)
	assert.Equal(t, map[string]bool{"user": true}, keys.Paths)
}

func TestAnalyzeTaint_BareAssignsIsStrong(t *testing.T) {
	keys := analyze(t, "assigns", nil)
	assert.True(t, keys.All)
}

func TestAnalyzeTaint_DynamicAccessorCollapses(t *testing.T) {
	keys := analyze(t, `@items[idx]`, map[string]bool{"idx": true})
	assert.True(t, keys.All)
}

func TestAnalyzeTaint_UnboundIdentifierWidens(t *testing.T) {
	keys := analyze(t, "freeVariable", nil)
	assert.True(t, keys.All)
}

func TestAnalyzeTaint_BoundLoopVariableDoesNotTaint(t *testing.T) {
	keys := analyze(t, "item", map[string]bool{"item": true})
	assert.False(t, keys.All)
	assert.Empty(t, keys.Paths)
}

func TestAnalyzeTaint_NoDependencies(t *testing.T) {
	keys := analyze(t, `"static"`, nil)
	assert.False(t, keys.All)
	assert.Empty(t, keys.Paths)
}

func TestAnalyzeTaint_LetBindingScoped(t *testing.T) {
	keys := analyze(t, "let x = 1; x", nil)
	assert.False(t, keys.All)
	assert.Empty(t, keys.Paths)
}

func TestAnalyzeTaint_ClosureParameterRestricted(t *testing.T) {
	keys := analyze(t, `filter(@items, # > 0)`, nil)
	assert.False(t, keys.All)
	assert.True(t, keys.Paths["items"])
}

func TestPrunePaths_ParentCoversChild(t *testing.T) {
	out := prunePaths(map[string]bool{"a": true, "a.b": true, "a.b.c": true, "x.y": true})
	assert.Equal(t, map[string]bool{"a": true, "x.y": true}, out)
}

func TestPatternNames_ExtractsIdentifiersNotUnderscore(t *testing.T) {
	names := patternNames("user, _index")
	assert.Equal(t, map[string]bool{"user": true}, names)
}
