package livehtml

import (
	"fmt"
	"regexp"
	"strings"
)

// ParseOptions configures the structural analyzer.
type ParseOptions struct {
	File       string
	TagHandler TagHandler
	// Indent is the compilation unit's indentation offset (spec §4.1);
	// every line the tokenizer starts fresh begins at this column.
	Indent int
}

var eexOpenRe = regexp.MustCompile(`(?s)^(if|unless|case|cond|for|with|try|receive)\b.*\bdo$`)
var eexArrowRe = regexp.MustCompile(`->\s*$`)

// frame is the structural analyzer's open-tag stack entry (spec §4.2
// "Tree building... matched on a LIFO stack"; §9 DESIGN NOTES: "the
// compiler holds a per-template tag stack by index, not by pointer").
type frame struct {
	kind       NodeKind
	name       string
	pos        Pos
	attrs      []*Attr
	rootAttrs  []*RootAttr
	directives Directives
	children   []*Node
	slots      []*Node
	modulePath []string
	fnName     string
	path       []string // ancestor path for error messages, root-first

	// EExBlockKind only
	headCode  string
	clausePat string
	clausePos Pos
	clauses   []EExClause
}

func (f *frame) closeName() string {
	switch f.kind {
	case TagKind:
		return f.name
	case LocalComponentKind:
		return "." + f.name
	case RemoteComponentKind:
		path := append(append([]string{}, f.modulePath...), f.fnName)
		return strings.Join(path, ".")
	case SlotKind:
		return ":" + f.name
	default:
		return ""
	}
}

type parser struct {
	opts     ParseOptions
	stack    []*frame
	warnings []Warning
}

// Parse runs the tokenizer and the structural analyzer over source,
// returning the top-level node list (spec §4.2).
func Parse(source string, opts ParseOptions) ([]*Node, []Warning, error) {
	if opts.TagHandler == nil {
		opts.TagHandler = DefaultTagHandler{}
	}
	toks, state, err := Tokenize(opts.File, source, NewTokenizerState(Pos{}, uint32(opts.Indent)))
	if err != nil {
		return nil, nil, err
	}
	if toks, err = Finalize(toks, opts.File, state, source); err != nil {
		return nil, nil, err
	}

	p := &parser{opts: opts}
	root := &frame{kind: -1}
	p.stack = []*frame{root}

	for _, tok := range toks {
		if err := p.feed(tok); err != nil {
			return nil, nil, err
		}
	}
	if len(p.stack) != 1 {
		top := p.top()
		return nil, nil, newParseError(opts.File, top.pos, "unclosed <%s>", top.closeName())
	}
	return root.children, p.warnings, nil
}

func (p *parser) top() *frame { return p.stack[len(p.stack)-1] }

func (p *parser) feed(tok Token) error {
	switch tok.Kind {
	case TextTok:
		if tok.Text == "" {
			return nil
		}
		return p.appendChild(&Node{Kind: TextKind, Text: tok.Text, Source: Source{File: p.opts.File, Span: Span{Start: tok.Pos}}})
	case CommentHTMLTok:
		return p.appendChild(&Node{Kind: TextKind, Text: "<!--" + tok.Raw + "-->", Source: Source{File: p.opts.File, Span: Span{Start: tok.Pos}}})
	case DoctypeTok:
		return p.appendChild(&Node{Kind: TextKind, Text: tok.Raw, Source: Source{File: p.opts.File, Span: Span{Start: tok.Pos}}})
	case CommentExprTok:
		return nil // stripped, no effect (spec §3.2)
	case InterpolationTok:
		return p.handleInterpolation(tok)
	case TagOpenTok:
		return p.handleTagOpen(tok)
	case TagCloseTok:
		return p.handleTagClose(tok)
	default:
		return nil
	}
}

func (p *parser) appendChild(n *Node) error {
	top := p.top()
	if n.Kind == SlotKind {
		if top.kind != LocalComponentKind && top.kind != RemoteComponentKind {
			return newParseError(p.opts.File, n.Source.Span.Start, "slot %s must be a direct child of a component", n.tagName())
		}
		if n.Name == "inner_block" {
			return newParseError(p.opts.File, n.Source.Span.Start, "inner_block is a reserved slot name")
		}
		top.slots = append(top.slots, n)
		return nil
	}
	top.children = append(top.children, n)
	return nil
}

func (p *parser) handleTagOpen(tok Token) error {
	cls := p.opts.TagHandler.ClassifyType(tok.TagName)
	directives, attrs, warnings, err := extractDirectives(p.opts.File, tok.Attrs)
	if err != nil {
		return err
	}
	p.warnings = append(p.warnings, warnings...)

	pos := tok.Pos
	rootAttrs := tok.RootAttrs
	if res, ok := p.opts.TagHandler.HandleAttributes(attrs, AttrHandlerMeta{TagName: tok.TagName, Pos: pos}); ok {
		if res.Quoted != nil {
			rootAttrs = append(append([]*RootAttr{}, rootAttrs...), &RootAttr{Expr: res.Quoted, Source: Source{File: p.opts.File, Span: Span{Start: pos}}})
		}
		if res.Attributes != nil {
			attrs = attrsFromNameValues(res.Attributes, p.opts.File, pos)
		}
	}

	if pw, err := validatePhx(p.opts.File, attrs, rootAttrs); err != nil {
		return err
	} else {
		p.warnings = append(p.warnings, pw...)
	}
	if w := checkInputNameID(p.opts.File, tok.TagName, attrs); w != nil {
		p.warnings = append(p.warnings, *w)
	}

	childPath := append(append([]string{}, p.top().path...), tok.TagName)

	switch cls {
	case ClassVoidTag:
		return p.appendChild(&Node{Kind: VoidTagKind, Name: tok.TagName, Attrs: attrs, Directives: directives,
			Source: Source{File: p.opts.File, Span: Span{Start: pos}}})

	case ClassTag:
		if tok.SelfClosing {
			return p.appendChild(&Node{Kind: TagKind, Name: tok.TagName, Attrs: attrs, RootAttrs: rootAttrs, Directives: directives,
				Source: Source{File: p.opts.File, Span: Span{Start: pos}}})
		}
		p.stack = append(p.stack, &frame{kind: TagKind, name: tok.TagName, pos: pos, attrs: attrs, rootAttrs: rootAttrs, directives: directives, path: childPath})
		return nil

	case ClassSlot:
		name := strings.TrimPrefix(tok.TagName, ":")
		if tok.SelfClosing {
			n := &Node{Kind: SlotKind, Name: name, Attrs: attrs, Directives: directives, Source: Source{File: p.opts.File, Span: Span{Start: pos}}}
			return p.appendChild(n)
		}
		p.stack = append(p.stack, &frame{kind: SlotKind, name: name, pos: pos, attrs: attrs, directives: directives, path: childPath})
		return nil

	case ClassLocalComponent, ClassRemoteComponent:
		var modulePath []string
		var fnName string
		var name string
		if cls == ClassRemoteComponent {
			modulePath, fnName = splitModulePath(tok.TagName)
			name = fnName
		} else {
			name = strings.TrimPrefix(tok.TagName, ".")
			fnName = name
		}
		kind := LocalComponentKind
		if cls == ClassRemoteComponent {
			kind = RemoteComponentKind
		}
		if tok.SelfClosing {
			return p.appendChild(&Node{Kind: kind, Name: name, ModulePath: modulePath, FnName: fnName, Attrs: attrs,
				RootAttrs: rootAttrs, Directives: directives, Source: Source{File: p.opts.File, Span: Span{Start: pos}}})
		}
		p.stack = append(p.stack, &frame{kind: kind, name: name, modulePath: modulePath, fnName: fnName, pos: pos,
			attrs: attrs, rootAttrs: rootAttrs, directives: directives, path: childPath})
		return nil
	}
	return nil
}

func (p *parser) handleTagClose(tok Token) error {
	top := p.top()
	if top.kind == -1 {
		return newParseError(p.opts.File, tok.Pos, "missing opening tag for </%s>", tok.TagName)
	}
	expected := top.closeName()
	if expected != tok.TagName {
		return newParseError(p.opts.File, tok.Pos, "mismatched closing tag: expected </%s> (opened at line %d) but found </%s>", expected, top.pos.Line, tok.TagName)
	}
	p.stack = p.stack[:len(p.stack)-1]

	var n *Node
	switch top.kind {
	case TagKind:
		n = &Node{Kind: TagKind, Name: top.name, Attrs: top.attrs, RootAttrs: top.rootAttrs, Directives: top.directives,
			Children: top.children, ClosePos: tok.Pos, Source: Source{File: p.opts.File, Span: Span{Start: top.pos}}}
	case SlotKind:
		n = &Node{Kind: SlotKind, Name: top.name, Attrs: top.attrs, Directives: top.directives,
			InnerBlock: top.children, ClosePos: tok.Pos, Source: Source{File: p.opts.File, Span: Span{Start: top.pos}}}
	case LocalComponentKind, RemoteComponentKind:
		n = &Node{Kind: top.kind, Name: top.name, ModulePath: top.modulePath, FnName: top.fnName, Attrs: top.attrs,
			RootAttrs: top.rootAttrs, Directives: top.directives, Slots: top.slots, InnerBlock: top.children,
			ClosePos: tok.Pos, Source: Source{File: p.opts.File, Span: Span{Start: top.pos}}}
	}
	return p.appendChild(n)
}

func (p *parser) handleInterpolation(tok Token) error {
	code := strings.TrimSpace(tok.Code)
	top := p.top()

	if top.kind == EExBlockKind {
		if code == "end" {
			p.finalizeClause(top, tok.Pos)
			p.stack = p.stack[:len(p.stack)-1]
			n := &Node{Kind: EExBlockKind, HeadCode: top.headCode, Clauses: top.clauses, Marker: MarkerOutput,
				ClosePos: tok.Pos, Source: Source{File: p.opts.File, Span: Span{Start: top.pos}}}
			return p.appendChild(n)
		}
		if isClauseSeparator(code) {
			p.finalizeClause(top, tok.Pos)
			top.clausePat = code
			top.clausePos = tok.Pos
			return nil
		}
	}

	if eexOpenRe.MatchString(code) {
		head := strings.TrimSpace(strings.TrimSuffix(code, "do"))
		p.stack = append(p.stack, &frame{
			kind: EExBlockKind, pos: tok.Pos, headCode: head, clausePos: tok.Pos,
			path: append(append([]string{}, top.path...), "<eex>"),
		})
		return nil
	}

	if code == "end" {
		return newParseError(p.opts.File, tok.Pos, "unexpected 'end' with no open block")
	}
	if isClauseSeparator(code) {
		return newParseError(p.opts.File, tok.Pos, "unexpected %q with no open block", code)
	}

	return p.appendChild(&Node{Kind: RawExprKind, Code: tok.Code, Marker: tok.Marker,
		Source: Source{File: p.opts.File, Span: Span{Start: tok.Pos}}})
}

// finalizeClause closes the frame's current clause (started either at
// the block's opening "do" or at the previous separator) and appends it
// to the block's clause list, resetting children for the next arm.
func (p *parser) finalizeClause(f *frame, pos Pos) {
	f.clauses = append(f.clauses, EExClause{Pattern: f.clausePat, Pos: f.clausePos, Body: f.children})
	f.children = nil
}

func isClauseSeparator(code string) bool {
	switch code {
	case "else", "after", "rescue", "catch":
		return true
	}
	return eexArrowRe.MatchString(code)
}

// extractDirectives pulls :if/:for/:let/:key out of attrs (spec §4.2
// "Directive recognition") and strips phx-no-format /
// phx-no-curly-interpolation (spec §6.3: "stripped from the attribute
// list before emission"). Remaining attrs are returned unchanged, in
// source order.
func extractDirectives(file string, attrs []*Attr) (Directives, []*Attr, []Warning, error) {
	var d Directives
	var kept []*Attr
	var warnings []Warning
	seen := map[string]bool{}

	for _, a := range attrs {
		switch a.Name {
		case ":if", ":for", ":let", ":key":
			if seen[a.Name] {
				return d, nil, nil, newParseError(file, a.Source.Span.Start, "duplicate %s directive", a.Name)
			}
			seen[a.Name] = true
			if a.Value != AttrValueExpr {
				return d, nil, nil, newParseError(file, a.Source.Span.Start, "%s requires an {expr} value", a.Name)
			}
			switch a.Name {
			case ":if":
				d.If = a.Expr
			case ":let":
				d.Let = a.Expr
			case ":key":
				d.Key = a.Expr
			case ":for":
				pat, enum, ok := splitGenerator(a.Expr.Raw)
				if !ok {
					return d, nil, nil, newParseError(file, a.Source.Span.Start, ":for must be a generator pattern (pattern <- enumerable)")
				}
				d.For = a.Expr
				d.ForPattern = pat
				d.ForEnum = enum
			}
		case "phx-no-format", "phx-no-curly-interpolation":
			// stripped, no further effect (spec §6.3)
		default:
			kept = append(kept, a)
		}
	}
	if d.Key != nil && d.For == nil {
		return d, nil, nil, newParseError(file, Pos{}, ":key requires :for")
	}
	return d, kept, warnings, nil
}

func staticAttrString(a *Attr) (string, bool) {
	if a.Value == AttrValueStringLit {
		return a.Text, true
	}
	return "", false
}

// validatePhx validates phx-update's value and the id requirement shared
// by phx-update and phx-hook (spec §3.3, §4.2, §6.3). The id requirement
// accepts a static id attribute or a root-expressed one: spec §3.3 asks
// for a "static or root-expressed id attribute", and a root-spread
// ({@rest}) can't be proven at compile time to supply (or omit) id, so
// its mere presence is treated as satisfying the requirement.
func validatePhx(file string, attrs []*Attr, rootAttrs []*RootAttr) ([]Warning, error) {
	var warnings []Warning
	hasID := len(rootAttrs) > 0
	var update, hook *Attr
	for _, a := range attrs {
		switch a.Name {
		case "id":
			hasID = true
		case "phx-update":
			update = a
		case "phx-hook":
			hook = a
		}
	}
	if update != nil {
		if val, ok := staticAttrString(update); ok {
			switch val {
			case "ignore", "stream", "replace":
			case "append", "prepend":
				warnings = append(warnings, Warning{File: file, Line: update.Source.Span.Start.Line,
					Column: update.Source.Span.Start.Column, Description: fmt.Sprintf("phx-update=%q is deprecated", val)})
			default:
				return nil, newParseError(file, update.Source.Span.Start, "invalid phx-update value %q", val)
			}
		}
		if !hasID {
			return nil, newParseError(file, update.Source.Span.Start, "phx-update requires an id attribute")
		}
	}
	if hook != nil && !hasID {
		return nil, newParseError(file, hook.Source.Span.Start, "phx-hook requires an id attribute")
	}
	return warnings, nil
}

// attrsFromNameValues converts the Attributes variant of a TagHandler's
// HandleAttributes result into the Attr list the rest of the parser
// expects, as plain string-literal attributes.
func attrsFromNameValues(nvs []AttrNameValue, file string, pos Pos) []*Attr {
	out := make([]*Attr, 0, len(nvs))
	for _, nv := range nvs {
		out = append(out, &Attr{Name: nv.Name, Value: AttrValueStringLit, Text: nv.Value, Delim: '"',
			Source: Source{File: file, Span: Span{Start: pos}}})
	}
	return out
}

// checkInputNameID warns when an <input> tag's name attribute is the
// static string "id" (spec §4.6): easy to confuse with the id attribute
// itself and a frequent source of bugs when the form field's name is
// meant to be data, not DOM identity.
func checkInputNameID(file, tagName string, attrs []*Attr) *Warning {
	if tagName != "input" {
		return nil
	}
	for _, a := range attrs {
		if a.Name != "name" {
			continue
		}
		if val, ok := staticAttrString(a); ok && val == "id" {
			return &Warning{File: file, Line: a.Source.Span.Start.Line,
				Column: a.Source.Span.Start.Column, Description: `<input name="id"> shadows the id attribute`}
		}
		return nil
	}
	return nil
}
