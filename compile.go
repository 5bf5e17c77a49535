package livehtml

import (
	"log/slog"
)

// CompileOptions configures Compile (spec §6.1, ambient config expanded
// per SPEC_FULL.md §7.2).
type CompileOptions struct {
	// File names the template for diagnostics (ParseError.File).
	File string

	// Indent is the compilation unit's indentation offset (spec §4.1's
	// tokenizer contract: "a starting position and an indentation" —
	// every fresh line inside the template starts at this column).
	Indent int

	// CallerModule identifies the module compiling this template, for
	// AnnotateCaller diagnostics and CallSink records (spec §6.1).
	CallerModule string

	// TagHandler overrides component/void-tag classification (spec
	// §4.1); DefaultTagHandler is used when nil.
	TagHandler TagHandler

	// RootFingerprintMode, when true, reports Root as always true (spec
	// §6.2's `root` flag means "safe to diff/patch in place starting at
	// the top static entry"; a caller that already knows it owns the
	// whole DOM subtree opts into treating any template as one rather
	// than only a single-top-level-tag one).
	RootFingerprintMode bool

	// CallSink optionally receives one CallRecord per component
	// invocation compiled (spec §5). A nil CallSink skips the append
	// silently.
	CallSink CallSink

	// Logger receives compile-time diagnostics — most notably taint
	// widen-to-:all notices (SPEC_FULL.md §7.1). A nil Logger falls
	// back to slog.Default().
	Logger *slog.Logger
}

// CompiledTemplate is the result of Compile: a reusable, immutable
// artifact that can be rendered repeatedly against different assigns
// (spec §6.1 "Compile is pure and safe to memoize/cache by source
// text").
type CompiledTemplate struct {
	body *compiledBody
	root *bool
	th   TagHandler
}

// Render produces one Outputs-contract Rendered tree for the given
// assigns (spec §6.2). A nil changed means the initial render: every
// dynamic slot is recomputed regardless of trackChanges. If the
// configured TagHandler's AnnotateBody returns ok for this render's
// assigns, its prefix/suffix wrap the outermost Static boundary.
func (t *CompiledTemplate) Render(assigns map[string]any, changed ChangedMap, trackChanges bool) *Rendered {
	a := NewAssigns(assigns, changed)
	r := t.body.toRendered(a, nil, t.root)
	if prefix, suffix, ok := t.th.AnnotateBody(assigns); ok && len(r.Static) > 0 {
		static := append([]string{}, r.Static...)
		static[0] = prefix + static[0]
		static[len(static)-1] = static[len(static)-1] + suffix
		r.Static = static
	}
	return r
}

// Compile parses source and lowers it into a CompiledTemplate (spec
// §4, §6.1). Parse errors and errors from engine.go's lowering share
// the same *ParseError shape so a caller sees one consistent error type
// for any static mistake in the template; ClassifyAttrs and AnalyzeTaint
// never fail.
func Compile(source string, opts CompileOptions) (*CompiledTemplate, []Warning, error) {
	file := opts.File
	if file == "" {
		file = "<template>"
	}
	th := opts.TagHandler
	if th == nil {
		th = DefaultTagHandler{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	nodes, warnings, err := Parse(source, ParseOptions{File: file, TagHandler: th, Indent: opts.Indent})
	if err != nil {
		return nil, warnings, err
	}

	ctx := &compileCtx{file: file, logger: logger, callSink: opts.CallSink, callerModule: opts.CallerModule}
	body, err := compileSequence(nodes, ctx, map[string]bool{})
	warnings = append(warnings, ctx.warnings...)
	if err != nil {
		return nil, warnings, err
	}

	var root *bool
	if opts.RootFingerprintMode {
		v := true
		root = &v
	} else if len(nodes) == 1 {
		switch nodes[0].Kind {
		case TagKind, VoidTagKind:
			v := true
			root = &v
		}
	}
	if root == nil {
		v := false
		root = &v
	}

	return &CompiledTemplate{body: body, root: root, th: th}, warnings, nil
}
