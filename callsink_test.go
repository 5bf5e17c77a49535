package livehtml

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryCallSink_AppendAccumulates(t *testing.T) {
	sink := NewInMemoryCallSink()
	sink.Append(CallRecord{File: "a.html", Line: 1, Component: "card"})
	sink.Append(CallRecord{File: "a.html", Line: 2, Component: "button"})

	got := sink.Records()
	require.Len(t, got, 2)
	assert.Equal(t, "card", got[0].Component)
	assert.Equal(t, "button", got[1].Component)
}

func TestInMemoryCallSink_CloseStopsFurtherAppends(t *testing.T) {
	sink := NewInMemoryCallSink()
	sink.Append(CallRecord{Component: "card"})
	sink.Close()
	sink.Append(CallRecord{Component: "ignored"})

	got := sink.Records()
	require.Len(t, got, 1)
	assert.Equal(t, "card", got[0].Component)
}

func TestInMemoryCallSink_RecordsReturnsSnapshotCopy(t *testing.T) {
	sink := NewInMemoryCallSink()
	sink.Append(CallRecord{Component: "card"})

	snap := sink.Records()
	snap[0].Component = "mutated"

	got := sink.Records()
	assert.Equal(t, "card", got[0].Component)
}

func TestInMemoryCallSink_ConcurrentAppendIsSafe(t *testing.T) {
	sink := NewInMemoryCallSink()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Append(CallRecord{Component: "card"})
		}()
	}
	wg.Wait()

	assert.Len(t, sink.Records(), 50)
}

func TestCompile_CallSinkRecordsLocalComponentInvocation(t *testing.T) {
	sink := NewInMemoryCallSink()
	tmpl, warnings, err := Compile(
		`<.card title={@title} class="big"><:footer>{@note}</:footer>ok</.card>`,
		CompileOptions{File: "page.html", CallerModule: "pages.home", CallSink: sink},
	)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.NotNil(t, tmpl)

	got := sink.Records()
	require.Len(t, got, 1)
	rec := got[0]
	assert.Equal(t, "page.html", rec.File)
	assert.Equal(t, "pages.home", rec.CallerModule)
	assert.Equal(t, "card", rec.Component)
	assert.ElementsMatch(t, []string{"title", "class"}, rec.Attrs)
	assert.Contains(t, rec.Slots, "footer")
	assert.Contains(t, rec.Slots, "inner_block")
}

func TestCompile_CallSinkRecordsRemoteComponentDottedName(t *testing.T) {
	sink := NewInMemoryCallSink()
	_, _, err := Compile(`<Widgets.Card.render name={@name} />`, CompileOptions{File: "page.html", CallSink: sink})
	require.NoError(t, err)

	got := sink.Records()
	require.Len(t, got, 1)
	assert.Equal(t, "Widgets.Card.render", got[0].Component)
}

func TestCompile_NilCallSinkIsNoop(t *testing.T) {
	tmpl, _, err := Compile(`<.card title={@title} />`, CompileOptions{File: "page.html"})
	require.NoError(t, err)
	require.NotNil(t, tmpl)
}

func TestCompile_AnnotateBodyWrapsOutermostStatic(t *testing.T) {
	th := annotatingTagHandler{prefix: "<!--start-->", suffix: "<!--end-->"}
	tmpl, _, err := Compile(`<p>{@name}</p>`, CompileOptions{File: "page.html", TagHandler: th})
	require.NoError(t, err)

	r := tmpl.Render(map[string]any{"name": "Ada"}, nil, false)
	require.NotEmpty(t, r.Static)
	assert.Equal(t, "<!--start--><p>", r.Static[0])
	assert.Equal(t, "</p><!--end-->", r.Static[len(r.Static)-1])
}

// annotatingTagHandler wraps DefaultTagHandler to exercise the
// AnnotateBody hook without needing a real dev-mode debugging handler.
type annotatingTagHandler struct {
	DefaultTagHandler
	prefix, suffix string
}

func (h annotatingTagHandler) AnnotateBody(env map[string]any) (string, string, bool) {
	return h.prefix, h.suffix, true
}
