package livehtml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_DefaultsFileAndLoggerWhenOmitted(t *testing.T) {
	tmpl, _, err := Compile(`<p>hi</p>`, CompileOptions{})
	require.NoError(t, err)
	require.NotNil(t, tmpl)
}

func TestCompile_ParseErrorPropagatesWithFileName(t *testing.T) {
	_, _, err := Compile(`<div>`, CompileOptions{File: "broken.html"})
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "broken.html", perr.File)
}

func TestCompile_PhxUpdateDeprecatedValueWarns(t *testing.T) {
	_, warnings, err := Compile(`<div id="x" phx-update="append"></div>`, CompileOptions{File: "t.html"})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Description, "deprecated")
}

func TestCompile_PhxUpdateWithoutIDErrors(t *testing.T) {
	_, _, err := Compile(`<div phx-update="ignore"></div>`, CompileOptions{File: "t.html"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phx-update requires an id attribute")
}

func TestCompile_PhxUpdateRootExpressedIDSatisfiesRequirement(t *testing.T) {
	_, _, err := Compile(`<div phx-update="ignore" {@rest}></div>`, CompileOptions{File: "t.html"})
	require.NoError(t, err)
}

func TestCompile_LocalVariableExpressionWarns(t *testing.T) {
	_, warnings, err := Compile(`<p>{localVar}</p>`, CompileOptions{File: "t.html"})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Description, "disables change tracking")
}

func TestCompile_InputNameIDWarns(t *testing.T) {
	_, warnings, err := Compile(`<input name="id">`, CompileOptions{File: "t.html"})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Description, `shadows the id attribute`)
}

func TestCompile_InputNameOtherThanIDDoesNotWarn(t *testing.T) {
	_, warnings, err := Compile(`<input name="email">`, CompileOptions{File: "t.html"})
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestCompile_PhxHookWithoutIDErrors(t *testing.T) {
	_, _, err := Compile(`<div phx-hook="Foo"></div>`, CompileOptions{File: "t.html"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phx-hook requires an id attribute")
}

func TestCompile_KeyWithoutForErrors(t *testing.T) {
	_, _, err := Compile(`<div :key={@id}>x</div>`, CompileOptions{File: "t.html"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":key requires :for")
}

func TestCompile_MismatchedCloseTagErrors(t *testing.T) {
	_, _, err := Compile(`<div><span></div></span>`, CompileOptions{File: "t.html"})
	require.Error(t, err)
}

func TestCompile_SlotOutsideComponentErrors(t *testing.T) {
	_, _, err := Compile(`<div><:row>x</:row></div>`, CompileOptions{File: "t.html"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a direct child of a component")
}

func TestCompile_ReservedInnerBlockSlotNameErrors(t *testing.T) {
	_, _, err := Compile(`<.table><:inner_block>x</:inner_block></.table>`, CompileOptions{File: "t.html"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved slot name")
}

func TestCompile_ForDirectiveRejectsNonGeneratorExpr(t *testing.T) {
	_, _, err := Compile(`<li :for={@items}>x</li>`, CompileOptions{File: "t.html"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generator pattern")
}

func TestCompile_CompiledTemplateReusableAcrossRenders(t *testing.T) {
	tmpl, _, err := Compile(`<p>{@n}</p>`, CompileOptions{File: "t.html"})
	require.NoError(t, err)
	r1 := tmpl.Render(map[string]any{"n": 1}, nil, false)
	r2 := tmpl.Render(map[string]any{"n": 2}, nil, false)
	assert.Equal(t, "1", string(r1.Dynamic(false)[0].Iodata))
	assert.Equal(t, "2", string(r2.Dynamic(false)[0].Iodata))
}
