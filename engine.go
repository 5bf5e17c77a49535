package livehtml

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// dynSlot is one compiled dynamic position: a closure that, given the
// live assigns/bound-variable environment and whether change tracking
// is in effect, produces either Nil (unchanged) or a freshly computed
// value (spec §4.4.2).
type dynSlot struct {
	compute func(a *Assigns, bound map[string]any, trackChanges bool) (Dyn, error)
}

// compileCtx carries the state threaded through one Compile call: the
// file name for diagnostics and the logger for widen-to-:all notices
// (SPEC_FULL.md §7.1). warnings accumulates the non-fatal diagnostics
// produced during lowering (e.g. AnalyzeTaint's local-variable notice)
// so Compile can return them alongside the parser's own warnings.
type compileCtx struct {
	file         string
	logger       *slog.Logger
	callSink     CallSink // spec §5: optional, module-scoped component-call metadata
	callerModule string
	warnings     []Warning
}

// compiledBody is a compiled node sequence: a shared static list plus
// the dynamic slots that fill it in, with a compile-time fingerprint.
type compiledBody struct {
	static []string
	slots  []dynSlot
	fp     Fingerprint
}

func (cb *compiledBody) renderDynamic(a *Assigns, bound map[string]any, trackChanges bool) ([]Dyn, error) {
	out := make([]Dyn, len(cb.slots))
	for i, s := range cb.slots {
		d, err := s.compute(a, bound, trackChanges)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

func (cb *compiledBody) toRendered(a *Assigns, bound map[string]any, root *bool) *Rendered {
	static := cb.static
	fp := cb.fp
	slots := cb.slots
	return &Rendered{
		Static:      static,
		Fingerprint: fp,
		Root:        root,
		Dynamic: func(trackChanges bool) []Dyn {
			out := make([]Dyn, len(slots))
			for i, s := range slots {
				d, err := s.compute(a, bound, trackChanges)
				if err != nil {
					// Dynamic has no error return in the Outputs contract
					// (spec §6.2); a runtime evaluation failure here is a
					// programming error in the caller's assigns, so it
					// panics the way an out-of-bounds slice index would.
					// This holds for every slot kind, component slots
					// included: Render has no error return either.
					panic(err)
				}
				out[i] = d
			}
			return out
		},
	}
}

// seqBuilder accumulates a flat static/dynamic sequence while compiling
// one list of sibling Nodes (spec §4.4: plain HTML structure does not
// introduce its own nested Rendered — only :if, :for, components, and
// EExBlock clauses do).
type seqBuilder struct {
	buf    strings.Builder
	static []string
	slots  []dynSlot
	shape  []DynShapeEntry
}

func (b *seqBuilder) flush() {
	b.static = append(b.static, b.buf.String())
	b.buf.Reset()
}

func (b *seqBuilder) writeStatic(s string) { b.buf.WriteString(s) }

func (b *seqBuilder) addSlot(kind string, nested string, s dynSlot) {
	b.flush()
	b.slots = append(b.slots, s)
	b.shape = append(b.shape, DynShapeEntry{Kind: kind, Nested: nested})
}

func (b *seqBuilder) finish() *compiledBody {
	b.flush()
	return &compiledBody{static: b.static, slots: b.slots, fp: ComputeFingerprint(b.static, b.shape)}
}

// compileSequence compiles a list of sibling nodes into one flat
// compiledBody. bound holds the compile-time name scope (:for/:let/
// EExBlock-clause pattern names) visible to AnalyzeTaint at this
// nesting level; it never leaks back to the caller (spec §4.4.3:
// "Variables bound only in a pattern do not leak outward").
func compileSequence(nodes []*Node, ctx *compileCtx, bound map[string]bool) (*compiledBody, error) {
	b := &seqBuilder{}
	for _, n := range nodes {
		if err := compileNode(n, ctx, bound, b); err != nil {
			return nil, err
		}
	}
	return b.finish(), nil
}

func compileNode(n *Node, ctx *compileCtx, bound map[string]bool, b *seqBuilder) error {
	if n.Directives.For != nil {
		return compileForDirective(n, ctx, bound, b)
	}
	if n.Directives.If != nil {
		return compileIfDirective(n, ctx, bound, b)
	}

	switch n.Kind {
	case TextKind:
		b.writeStatic(n.Text)
		return nil

	case RawExprKind:
		return compileRawExpr(n, ctx, bound, b)

	case VoidTagKind:
		return compileTagLike(n.Name, n.Attrs, n.RootAttrs, nil, ctx, bound, b, true)

	case TagKind:
		return compileTagLike(n.Name, n.Attrs, n.RootAttrs, n.Children, ctx, bound, b, false)

	case LocalComponentKind, RemoteComponentKind:
		return compileComponent(n, ctx, bound, b)

	case SlotKind:
		return newParseError(ctx.file, n.Source.Span.Start, "slot %s must be a direct child of a component", n.tagName())

	case EExBlockKind:
		return compileEExBlock(n, ctx, bound, b)
	}
	return nil
}

func compileRawExpr(n *Node, ctx *compileCtx, bound map[string]bool, b *seqBuilder) error {
	if n.Marker == MarkerSideEffect {
		// Side-effect-only interpolations ("<% expr %>") do not
		// contribute output; there is no dynamic slot for "ran but
		// produced nothing" in the Outputs contract.
		return nil
	}
	expr, err := ParseExpr(n.Code, n.Source.Span.Start)
	if err != nil {
		return err
	}
	if lit, ok := constString(expr); ok {
		b.writeStatic(EscapeHTML(lit))
		return nil
	}
	keys := AnalyzeTaint(ctx, expr, bound)
	b.addSlot("iodata", "", dynSlot{compute: func(a *Assigns, bnd map[string]any, trackChanges bool) (Dyn, error) {
		if trackChanges && !KeysChanged(keys, a.Vars(), a.Changed(), a.Initial()) {
			return NilDyn, nil
		}
		v, err := expr.Eval(a.Env(bnd))
		if err != nil {
			return Dyn{}, err
		}
		return IodataDyn([]byte(EscapeHTML(fmt.Sprint(v)))), nil
	}})
	return nil
}

func compileTagLike(name string, attrs []*Attr, root []*RootAttr, children []*Node, ctx *compileCtx, bound map[string]bool, b *seqBuilder, void bool) error {
	b.writeStatic("<" + name)
	if err := compileAttrsInline(attrs, root, ctx, bound, b); err != nil {
		return err
	}
	if void {
		b.writeStatic("/>")
		return nil
	}
	b.writeStatic(">")
	for _, c := range children {
		if err := compileNode(c, ctx, bound, b); err != nil {
			return err
		}
	}
	b.writeStatic("</" + name + ">")
	return nil
}

// compileAttrsInline emits each attribute into the enclosing sequence:
// static attributes become literal text, dynamic and root-spread
// attributes become their own dynamic slots (spec §4.3).
func compileAttrsInline(attrs []*Attr, root []*RootAttr, ctx *compileCtx, bound map[string]bool, b *seqBuilder) error {
	for _, ca := range ClassifyAttrs(attrs, nil) {
		switch ca.Kind {
		case AttrStatic:
			if ca.Literal == "" && ca.Name != "" {
				b.writeStatic(" " + ca.Name)
				continue
			}
			delim := ca.Delim
			if delim == 0 {
				delim = '"'
			}
			b.writeStatic(fmt.Sprintf(" %s=%c%s%c", ca.Name, delim, ca.Literal, delim))
		case AttrDynamic:
			name := ca.Name
			caCopy := ca
			keys := AnalyzeTaint(ctx, ca.Expr, bound)
			expr := ca.Expr
			b.addSlot("iodata", "", dynSlot{compute: func(a *Assigns, bnd map[string]any, trackChanges bool) (Dyn, error) {
				if trackChanges && !KeysChanged(keys, a.Vars(), a.Changed(), a.Initial()) {
					return NilDyn, nil
				}
				v, err := expr.Eval(a.Env(bnd))
				if err != nil {
					return Dyn{}, err
				}
				return IodataDyn([]byte(fmt.Sprintf(` %s="%s"`, name, EncodeAttrValue(caCopy, v)))), nil
			}})
		}
	}
	for _, r := range root {
		keys := AnalyzeTaint(ctx, r.Expr, bound)
		expr := r.Expr
		b.addSlot("iodata", "", dynSlot{compute: func(a *Assigns, bnd map[string]any, trackChanges bool) (Dyn, error) {
			if trackChanges && !KeysChanged(keys, a.Vars(), a.Changed(), a.Initial()) {
				return NilDyn, nil
			}
			v, err := expr.Eval(a.Env(bnd))
			if err != nil {
				return Dyn{}, err
			}
			return IodataDyn([]byte(serializeRootAttrs(v))), nil
		}})
	}
	return nil
}

func serializeRootAttrs(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		val := m[k]
		if val == nil {
			continue
		}
		if bv, ok := val.(bool); ok {
			if bv {
				b.WriteString(" " + k)
			}
			continue
		}
		fmt.Fprintf(&b, ` %s="%s"`, k, EscapeHTML(fmt.Sprint(val)))
	}
	return b.String()
}

// compileIfDirective lowers a node carrying :if into the per-dynamic
// conditional of spec §4.4.3: present/absent are distinct nested
// Rendered fingerprints, so a flip of the condition is visible to the
// differ from the fingerprint mismatch alone.
func compileIfDirective(n *Node, ctx *compileCtx, bound map[string]bool, b *seqBuilder) error {
	cond := n.Directives.If
	stripped := *n
	stripped.Directives.If = nil
	present, err := compileSequence([]*Node{&stripped}, ctx, bound)
	if err != nil {
		return err
	}
	keys := AnalyzeTaint(ctx, cond, bound)
	b.addSlot("rendered", present.fp.String(), dynSlot{compute: func(a *Assigns, bnd map[string]any, trackChanges bool) (Dyn, error) {
		if trackChanges && !KeysChanged(keys, a.Vars(), a.Changed(), a.Initial()) {
			return NilDyn, nil
		}
		v, err := cond.Eval(a.Env(bnd))
		if err != nil {
			return Dyn{}, err
		}
		if !truthy(v) {
			return NilDyn, nil
		}
		return Dyn{Kind: DynRendered, Rendered: present.toRendered(a, bnd, nil)}, nil
	}})
	return nil
}

// compileForDirective lowers a node carrying :for into a Comprehension
// (spec §4.4.4). The shared static list is compiled once from the loop
// body (directive stripped, pattern names bound); each iteration
// contributes one dynamics row. Comprehensions recompute in full
// whenever the comprehension slot itself recomputes — there is no
// per-iteration change tracking below that.
func compileForDirective(n *Node, ctx *compileCtx, bound map[string]bool, b *seqBuilder) error {
	pattern := n.Directives.ForPattern
	innerBound := cloneBound(bound)
	for name := range patternNames(pattern) {
		innerBound[name] = true
	}

	stripped := *n
	stripped.Directives.For = nil
	stripped.Directives.Key = nil
	body, err := compileSequence([]*Node{&stripped}, ctx, innerBound)
	if err != nil {
		return err
	}

	enumExpr, err := ParseExpr(rewriteSigils(n.Directives.ForEnum), n.Source.Span.Start)
	if err != nil {
		return err
	}
	keys := AnalyzeTaint(ctx, enumExpr, bound)

	b.addSlot("comprehension", body.fp.String(), dynSlot{compute: func(a *Assigns, bnd map[string]any, trackChanges bool) (Dyn, error) {
		if trackChanges && !KeysChanged(keys, a.Vars(), a.Changed(), a.Initial()) {
			return NilDyn, nil
		}
		v, err := enumExpr.Eval(a.Env(bnd))
		if err != nil {
			return Dyn{}, err
		}
		items, err := toSlice(v)
		if err != nil {
			return Dyn{}, err
		}
		dynamics := make([][]Dyn, 0, len(items))
		for i, item := range items {
			itemBound := mergeBound(bnd, bindPattern(pattern, item))
			row, err := body.renderDynamic(a, itemBound, false)
			if err != nil {
				return Dyn{}, fmt.Errorf("for iteration %d: %w", i, err)
			}
			dynamics = append(dynamics, row)
		}
		return Dyn{Kind: DynComprehension, Comprehension: &Comprehension{
			Static: body.static, Dynamics: dynamics, Fingerprint: body.fp,
		}}, nil
	}})
	return nil
}

// bindPattern binds a :for pattern's variable names to one iteration
// item (spec §9 DESIGN NOTES records this as a best-effort
// approximation, not a destructuring language of its own — see
// taint.go's patternNames doc comment). A single bare identifier binds
// directly to item; a two-name pattern like "v, k" binds against a
// [2]any{value, index} item shape supplied by map-like enumerables.
func bindPattern(pattern string, item any) map[string]any {
	names := identRe.FindAllString(pattern, -1)
	switch {
	case len(names) == 0:
		return nil
	case len(names) == 1:
		return map[string]any{names[0]: item}
	default:
		if pair, ok := item.([2]any); ok {
			return map[string]any{names[0]: pair[0], names[1]: pair[1]}
		}
		return map[string]any{names[0]: item}
	}
}

func toSlice(v any) ([]any, error) {
	switch s := v.(type) {
	case []any:
		return s, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("livehtml: :for enumerable must be a list, got %T", v)
	}
}

func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	default:
		return true
	}
}

// cloneBoundAny/mergeBound operate on RUNTIME bound-value maps
// (name -> live value, for building expr-lang Env()s), distinct from
// the compile-time map[string]bool name scope AnalyzeTaint consumes.
func cloneBoundAny(b map[string]any) map[string]any {
	out := make(map[string]any, len(b)+2)
	for k, v := range b {
		out[k] = v
	}
	return out
}

func mergeBound(a, b map[string]any) map[string]any {
	out := cloneBoundAny(a)
	for k, v := range b {
		out[k] = v
	}
	return out
}

// eexClause is one compiled arm of an EExBlock (spec §3.3), paired with
// the pattern that selects it and the compile-time bound-name scope its
// body was compiled against.
type eexClause struct {
	pattern string
	body    *compiledBody
	bound   map[string]bool
}

// compileEExBlock lowers a compiler-level control-flow block
// (if/unless/case/cond/for/with/try/receive, spec §3.3) into a dynamic
// slot. A "for" head lowers to a Comprehension exactly like a :for
// directive; every other head lowers to a clause dispatch where each
// clause is its own nested Rendered with a distinct fingerprint (spec
// §4.4.3).
func compileEExBlock(n *Node, ctx *compileCtx, bound map[string]bool, b *seqBuilder) error {
	head := strings.TrimSpace(n.HeadCode)
	fields := strings.Fields(head)
	keyword := ""
	if len(fields) > 0 {
		keyword = fields[0]
	}

	if keyword == "for" {
		return compileEExFor(n, head, ctx, bound, b)
	}

	var clauses []eexClause
	for _, c := range n.Clauses {
		innerBound := cloneBound(bound)
		for name := range patternNames(c.Pattern) {
			innerBound[name] = true
		}
		cb, err := compileSequence(c.Body, ctx, innerBound)
		if err != nil {
			return err
		}
		clauses = append(clauses, eexClause{pattern: c.Pattern, body: cb, bound: innerBound})
	}

	var headExpr *Expr
	if rest := strings.TrimSpace(strings.TrimPrefix(head, keyword)); rest != "" {
		if e, err := ParseExpr(rewriteSigils(rest), n.Source.Span.Start); err == nil {
			headExpr = e
		}
	}

	b.addSlot("rendered", "", dynSlot{compute: func(a *Assigns, bnd map[string]any, trackChanges bool) (Dyn, error) {
		idx, iterBound, err := dispatchClause(keyword, headExpr, clauses, a, bnd)
		if err != nil {
			return Dyn{}, err
		}
		if idx < 0 {
			return NilDyn, nil
		}
		chosen := clauses[idx]
		return Dyn{Kind: DynRendered, Rendered: chosen.body.toRendered(a, mergeBound(bnd, iterBound), nil)}, nil
	}})
	return nil
}

// dispatchClause evaluates the EExBlock's controlling expression and
// picks which compiled clause applies. if/unless pick between exactly
// two clauses by truthiness; case/cond/with/try/receive fall back to
// the first clause whose pattern is empty ("else"-equivalent) or whose
// pattern text, read as a boolean expression, evaluates truthily — a
// deliberately conservative approximation given expr-lang has no
// pattern-matching grammar of its own to delegate to.
func dispatchClause(keyword string, headExpr *Expr, clauses []eexClause, a *Assigns, bnd map[string]any) (int, map[string]any, error) {
	switch keyword {
	case "if", "unless":
		var cond bool
		if headExpr != nil {
			v, err := headExpr.Eval(a.Env(bnd))
			if err != nil {
				return -1, nil, err
			}
			cond = truthy(v)
		}
		if keyword == "unless" {
			cond = !cond
		}
		if cond && len(clauses) > 0 {
			return 0, nil, nil
		}
		if !cond && len(clauses) > 1 {
			return 1, nil, nil
		}
		return -1, nil, nil
	default:
		for i, c := range clauses {
			p := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(c.pattern), "->"))
			if p == "" || p == "else" {
				return i, nil, nil
			}
			expr, err := ParseExpr(rewriteSigils(p), Pos{})
			if err != nil {
				continue
			}
			v, err := expr.Eval(a.Env(bnd))
			if err == nil && truthy(v) {
				return i, nil, nil
			}
		}
		return -1, nil, nil
	}
}

func compileEExFor(n *Node, head string, ctx *compileCtx, bound map[string]bool, b *seqBuilder) error {
	pattern, enum, ok := splitGenerator(strings.TrimSpace(strings.TrimPrefix(head, "for")))
	if !ok {
		return newParseError(ctx.file, n.Source.Span.Start, "for block must be a generator pattern (pattern <- enumerable)")
	}
	innerBound := cloneBound(bound)
	for name := range patternNames(pattern) {
		innerBound[name] = true
	}
	var body []*Node
	if len(n.Clauses) > 0 {
		body = n.Clauses[0].Body
	}
	compiled, err := compileSequence(body, ctx, innerBound)
	if err != nil {
		return err
	}
	enumExpr, err := ParseExpr(rewriteSigils(enum), n.Source.Span.Start)
	if err != nil {
		return err
	}
	keys := AnalyzeTaint(ctx, enumExpr, bound)

	b.addSlot("comprehension", compiled.fp.String(), dynSlot{compute: func(a *Assigns, bnd map[string]any, trackChanges bool) (Dyn, error) {
		if trackChanges && !KeysChanged(keys, a.Vars(), a.Changed(), a.Initial()) {
			return NilDyn, nil
		}
		v, err := enumExpr.Eval(a.Env(bnd))
		if err != nil {
			return Dyn{}, err
		}
		items, err := toSlice(v)
		if err != nil {
			return Dyn{}, err
		}
		dynamics := make([][]Dyn, 0, len(items))
		for _, item := range items {
			itemBound := mergeBound(bnd, bindPattern(pattern, item))
			row, err := compiled.renderDynamic(a, itemBound, false)
			if err != nil {
				return Dyn{}, err
			}
			dynamics = append(dynamics, row)
		}
		return Dyn{Kind: DynComprehension, Comprehension: &Comprehension{
			Static: compiled.static, Dynamics: dynamics, Fingerprint: compiled.fp,
		}}, nil
	}})
	return nil
}

// InnerBlock is a slot/default-body closure handed to an externally
// resolved component (spec §4.4.6). letArgs carries the value(s) a
// component passes back for the slot's :let pattern; a non-nil error
// signals the pattern was not satisfied (err.go's
// SlotPatternMismatchError).
type InnerBlock func(letArgs any) (*Rendered, error)

type slotThunk struct {
	assigns map[string]any
	block   func(a *Assigns, bnd map[string]any, letArgs any) (*Rendered, error)
}

// compileComponent lowers a Local/RemoteComponent node into a Component
// dynamic slot (spec §4.4.5): static attributes fold directly into
// Assigns, dynamic and root-spread attributes are evaluated per render
// with their own change tracking merged into a Changed sub-map, and
// slots/default body compile into InnerBlock closures threaded through
// Assigns exactly the way the component itself will see them.
func compileComponent(n *Node, ctx *compileCtx, bound map[string]bool, b *seqBuilder) error {
	ref := componentRef(n)
	recordComponentCall(n, ctx, ref)

	type compiledAttr struct {
		name string
		ca   ClassifiedAttr
		keys Keys
	}
	staticAssigns := map[string]any{}
	var dyn []compiledAttr
	for _, ca := range ClassifyAttrs(n.Attrs, n.RootAttrs) {
		switch ca.Kind {
		case AttrStatic:
			staticAssigns[ca.Name] = staticAttrValue(ca)
		case AttrDynamic:
			dyn = append(dyn, compiledAttr{name: ca.Name, ca: ca, keys: AnalyzeTaint(ctx, ca.Expr, bound)})
		case AttrRoot:
			dyn = append(dyn, compiledAttr{ca: ca, keys: AnalyzeTaint(ctx, ca.Expr, bound)})
		}
	}

	defaultBlock, err := compileInnerBlock(n.InnerBlock, n.Directives.Let, ctx, bound)
	if err != nil {
		return err
	}

	slotOrder := []string{}
	slotBlocks := map[string][]slotThunk{}
	for _, s := range n.Slots {
		name := strings.TrimPrefix(s.Name, ":")
		block, err := compileInnerBlock(s.InnerBlock, s.Directives.Let, ctx, bound)
		if err != nil {
			return err
		}
		slotAssigns := map[string]any{}
		for _, ca := range ClassifyAttrs(s.Attrs, s.RootAttrs) {
			if ca.Kind == AttrStatic {
				slotAssigns[ca.Name] = staticAttrValue(ca)
			}
		}
		if _, ok := slotBlocks[name]; !ok {
			slotOrder = append(slotOrder, name)
		}
		slotBlocks[name] = append(slotBlocks[name], slotThunk{assigns: slotAssigns, block: block})
	}

	b.addSlot("component", "", dynSlot{compute: func(a *Assigns, bnd map[string]any, trackChanges bool) (Dyn, error) {
		assigns := make(map[string]any, len(staticAssigns)+len(dyn)+len(slotBlocks)+1)
		for k, v := range staticAssigns {
			assigns[k] = v
		}
		changed := ChangedMap{}
		anyDynChanged := false
		for _, d := range dyn {
			changedHere := !trackChanges || KeysChanged(d.keys, a.Vars(), a.Changed(), a.Initial())
			v, err := d.ca.Expr.Eval(a.Env(bnd))
			if err != nil {
				return Dyn{}, err
			}
			if d.name == "" {
				// root-spread: merge a dynamic attrs map.
				if m, ok := v.(map[string]any); ok {
					for k, mv := range m {
						assigns[k] = mv
						if changedHere {
							changed[k] = true
							anyDynChanged = true
						}
					}
				}
				continue
			}
			assigns[d.name] = v
			if changedHere {
				changed[d.name] = true
				anyDynChanged = true
			}
		}
		if anyDynChanged {
			// Spec §4.4.5: if the dynamic part changed, every
			// statically-known key is marked changed too.
			for k := range staticAssigns {
				changed[k] = true
			}
		}
		if defaultBlock != nil {
			block := defaultBlock
			assigns["inner_block"] = InnerBlock(func(letArgs any) (*Rendered, error) {
				return block(a, bnd, letArgs)
			})
		}
		for _, name := range slotOrder {
			var list []map[string]any
			for _, st := range slotBlocks[name] {
				slotAssigns := make(map[string]any, len(st.assigns)+1)
				for k, v := range st.assigns {
					slotAssigns[k] = v
				}
				block := st.block
				if block != nil {
					slotAssigns["inner_block"] = InnerBlock(func(letArgs any) (*Rendered, error) {
						return block(a, bnd, letArgs)
					})
				}
				list = append(list, slotAssigns)
			}
			assigns[name] = list
		}
		return Dyn{Kind: DynComponent, Component: &Component{
			ID: ref, ComponentRef: ref, Assigns: assigns, Changed: changed,
		}}, nil
	}})
	return nil
}

// recordComponentCall appends this invocation's metadata to ctx's
// CallSink, if one is configured (spec §5). A nil CallSink is the
// common case and this is a no-op then.
func recordComponentCall(n *Node, ctx *compileCtx, ref string) {
	if ctx.callSink == nil {
		return
	}
	attrs := make([]string, 0, len(n.Attrs))
	for _, a := range n.Attrs {
		attrs = append(attrs, a.Name)
	}
	slots := make([]string, 0, len(n.Slots))
	for _, s := range n.Slots {
		slots = append(slots, s.Name)
	}
	if len(n.InnerBlock) > 0 {
		slots = append(slots, "inner_block")
	}
	ctx.callSink.Append(CallRecord{
		File: ctx.file, Line: n.Source.Span.Start.Line, CallerModule: ctx.callerModule,
		Component: ref, Attrs: attrs, Slots: slots,
	})
}

func componentRef(n *Node) string {
	if n.Kind == LocalComponentKind {
		return n.Name
	}
	parts := append(append([]string{}, n.ModulePath...), n.FnName)
	return strings.Join(parts, ".")
}

func staticAttrValue(ca ClassifiedAttr) any {
	if ca.Literal == "" && ca.Name != "" {
		return true
	}
	return ca.Literal
}

// compileInnerBlock compiles a slot/default-content body into a closure
// that, given the :let value(s) the (externally resolved) component
// passes back at call time, renders the caller's children (spec
// §4.4.6). A nil children list with no :let yields a nil InnerBlock.
func compileInnerBlock(children []*Node, let *Expr, ctx *compileCtx, bound map[string]bool) (func(a *Assigns, bnd map[string]any, letArgs any) (*Rendered, error), error) {
	if len(children) == 0 && let == nil {
		return nil, nil
	}
	var letNames []string
	innerBound := cloneBound(bound)
	if let != nil {
		seen := map[string]bool{}
		for _, name := range identRe.FindAllString(let.Raw, -1) {
			if name == "_" || seen[name] {
				continue
			}
			seen[name] = true
			letNames = append(letNames, name)
			innerBound[name] = true
		}
	}
	body, err := compileSequence(children, ctx, innerBound)
	if err != nil {
		return nil, err
	}
	return func(a *Assigns, bnd map[string]any, letArgs any) (*Rendered, error) {
		if let == nil {
			return body.toRendered(a, bnd, nil), nil
		}
		bindings, ok := bindLetArgs(letNames, letArgs)
		if !ok {
			return nil, &SlotPatternMismatchError{Slot: "inner_block", Pattern: let.Raw, Value: letArgs}
		}
		return body.toRendered(a, mergeBound(bnd, bindings), nil), nil
	}, nil
}

// bindLetArgs binds a :let pattern's names against the value(s) a
// component passed back. A single-name pattern binds directly to v; a
// multi-name pattern expects v to be a positional []any of at least
// that many elements.
func bindLetArgs(names []string, v any) (map[string]any, bool) {
	switch len(names) {
	case 0:
		return nil, true
	case 1:
		return map[string]any{names[0]: v}, true
	default:
		list, ok := v.([]any)
		if !ok || len(list) < len(names) {
			return nil, false
		}
		out := make(map[string]any, len(names))
		for i, n := range names {
			out[n] = list[i]
		}
		return out, true
	}
}
