package livehtml

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// TokenKind discriminates the Token sum type (spec §3.2).
type TokenKind int

const (
	TextTok TokenKind = iota
	TagOpenTok
	TagCloseTok
	RootAttrTok
	InterpolationTok
	CommentHTMLTok
	CommentExprTok
	DoctypeTok
)

// Token is one element of the flat stream the tokenizer produces, in
// source emission order. Only the fields relevant to Kind are set.
type Token struct {
	Kind TokenKind
	Pos  Pos

	// TextTok
	Text    string
	PosEnd  Pos

	// TagOpenTok / TagCloseTok
	TagName     string
	Attrs       []*Attr  // TagOpenTok, already in source order
	RootAttrs   []*RootAttr
	SelfClosing bool // TagOpenTok

	// InterpolationTok / RootAttrTok
	Code   string
	Marker RawExprMarker // InterpolationTok only

	// CommentHTMLTok / CommentExprTok / DoctypeTok
	Raw string
}

// TokenizerState carries the tokenizer's continuation state between
// calls to Tokenize, so one template may be tokenized in pieces (spec
// §4.1: "a text fragment followed by an expression fragment followed by
// more text"). NewTokenizerState builds the initial state; the zero
// value starts positions at line 0, column 0 rather than at the 1-based
// origin Pos documents.
type TokenizerState struct {
	pos    Pos
	indent uint32
}

// NewTokenizerState returns the initial state for a compilation unit
// starting at startPos with the given indentation offset.
func NewTokenizerState(startPos Pos, indent uint32) TokenizerState {
	if startPos.Line == 0 {
		startPos.Line = 1
	}
	if startPos.Column == 0 {
		startPos.Column = indent + 1
	}
	return TokenizerState{pos: startPos, indent: indent}
}

// Tokenize scans source starting at state's position and returns the
// token stream plus the continuation state for any further fragment.
// Fatal lexical errors are returned as *ParseError.
func Tokenize(file, source string, state TokenizerState) ([]Token, TokenizerState, error) {
	t := &tokenizer{file: file, src: source, pos: state.pos, indent: state.indent}
	toks, err := t.run()
	if err != nil {
		return nil, state, err
	}
	return toks, TokenizerState{pos: t.pos, indent: t.indent}, nil
}

// Finalize asserts that no construct (unterminated comment, unterminated
// expression, unclosed tag) remained open across all fragments; state is
// the continuation state returned by the last Tokenize call. The
// tokenizer in this package never returns from Tokenize with an open
// construct (lexical errors are reported eagerly), so Finalize only
// exists to satisfy the contract of spec §4.1 when a future incremental
// caller accumulates raw continuation state of its own; it is a no-op
// today.
func Finalize(tokens []Token, file string, state TokenizerState, source string) ([]Token, error) {
	return tokens, nil
}

type tokenizer struct {
	file   string
	src    string
	off    int
	pos    Pos
	indent uint32
}

func (t *tokenizer) errorf(pos Pos, format string, args ...any) error {
	return newParseError(t.file, pos, format, args...)
}

func (t *tokenizer) rest() string { return t.src[t.off:] }

// advance consumes n bytes of t.src, updating off and pos.
func (t *tokenizer) advance(n int) {
	for _, r := range t.src[t.off : t.off+n] {
		t.pos = t.pos.advance(r, t.indent)
	}
	t.off += n
}

func (t *tokenizer) run() ([]Token, error) {
	var toks []Token
	for t.off < len(t.src) {
		startPos := t.pos
		rest := t.rest()

		switch {
		case strings.HasPrefix(rest, "<!--"):
			tok, err := t.lexComment(startPos)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)

		case strings.HasPrefix(rest, "<!") && hasDoctypePrefix(rest):
			tok, err := t.lexDoctype(startPos)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)

		case strings.HasPrefix(rest, "</"):
			tok, err := t.lexTagClose(startPos)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)

		case strings.HasPrefix(rest, "<") && tagNameStarts(rest):
			tok, err := t.lexTagOpen(startPos)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)

		case strings.HasPrefix(rest, "{"):
			t.advance(1)
			code, n, ok := scanBraceExpr(t.rest())
			if !ok {
				return nil, t.errorf(startPos, "unterminated brace expression")
			}
			t.advance(n)
			toks = append(toks, Token{Kind: InterpolationTok, Pos: startPos, Code: rewriteSigils(code)})

		case eexStarts(rest):
			tok, err := t.lexEEx(startPos)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)

		default:
			tok := t.lexText()
			toks = append(toks, tok)
		}
	}
	return toks, nil
}

// lexText consumes a literal run until the next '<', '{', or EEx
// delimiter, merging is the analyzer's job (adjacent Text tokens are
// never split by this tokenizer in the first place since it scans
// maximal runs).
func (t *tokenizer) lexText() Token {
	start := t.off
	startPos := t.pos
	for t.off < len(t.src) {
		rest := t.rest()
		if strings.HasPrefix(rest, "<") || strings.HasPrefix(rest, "{") || eexStarts(rest) {
			break
		}
		_, size := decodeRune(rest)
		t.advance(size)
	}
	return Token{Kind: TextTok, Pos: startPos, PosEnd: t.pos, Text: html.UnescapeString(t.src[start:t.off])}
}

func (t *tokenizer) lexComment(startPos Pos) (Token, error) {
	t.advance(len("<!--"))
	idx := strings.Index(t.rest(), "-->")
	if idx < 0 {
		return Token{}, t.errorf(startPos, "unterminated comment")
	}
	body := t.rest()[:idx]
	t.advance(idx + len("-->"))
	if isExprComment(body) {
		return Token{Kind: CommentExprTok, Pos: startPos, Raw: body}, nil
	}
	return Token{Kind: CommentHTMLTok, Pos: startPos, Raw: body}, nil
}

// isExprComment recognizes a comment whose body is itself an expression
// marker, "{# ... #}"-style, so CommentExprTok can be stripped with no
// effect per spec §3.2 ("CommentExpr... has no effect and is stripped").
func isExprComment(body string) bool {
	body = strings.TrimSpace(body)
	return strings.HasPrefix(body, "{#") && strings.HasSuffix(body, "#}")
}

func (t *tokenizer) lexDoctype(startPos Pos) (Token, error) {
	idx := strings.IndexByte(t.rest(), '>')
	if idx < 0 {
		return Token{}, t.errorf(startPos, "unterminated doctype, missing closing >")
	}
	raw := t.rest()[:idx+1]
	t.advance(idx + 1)
	return Token{Kind: DoctypeTok, Pos: startPos, Raw: raw}, nil
}

func hasDoctypePrefix(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), "<!doctype")
}

func tagNameStarts(s string) bool {
	if len(s) < 2 {
		return false
	}
	r, _ := decodeRune(s[1:])
	return isIdentStart(r)
}

func eexStarts(s string) bool {
	d, _ := eexDelim(s)
	return d != ""
}

func (t *tokenizer) lexEEx(startPos Pos) (Token, error) {
	delim, output := eexDelim(t.rest())
	t.advance(len(delim))
	code, n, ok := scanEExExpr(t.rest())
	if !ok {
		return Token{}, t.errorf(startPos, "unterminated EEx expression, missing closing %%>")
	}
	t.advance(n)
	marker := MarkerOutput
	if !output {
		marker = MarkerSideEffect
	}
	return Token{Kind: InterpolationTok, Pos: startPos, Code: rewriteSigils(code), Marker: marker}, nil
}

func (t *tokenizer) lexTagName() (string, error) {
	start := t.off
	for t.off < len(t.src) {
		r, size := decodeRune(t.rest())
		if r == ' ' || r == '\t' || r == '\n' || r == '/' || r == '>' || r == '=' {
			break
		}
		t.advance(size)
	}
	name := t.src[start:t.off]
	if name == "" {
		return "", t.errorf(t.pos, "expected tag name")
	}
	return name, nil
}

func (t *tokenizer) skipWhitespace() {
	for t.off < len(t.src) {
		r, size := decodeRune(t.rest())
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return
		}
		t.advance(size)
	}
}

func (t *tokenizer) lexTagClose(startPos Pos) (Token, error) {
	t.advance(len("</"))
	name, err := t.lexTagName()
	if err != nil {
		return Token{}, err
	}
	t.skipWhitespace()
	if !strings.HasPrefix(t.rest(), ">") {
		return Token{}, t.errorf(t.pos, "expected closing > after </%s", name)
	}
	t.advance(1)
	return Token{Kind: TagCloseTok, Pos: startPos, TagName: name}, nil
}

func (t *tokenizer) lexTagOpen(startPos Pos) (Token, error) {
	t.advance(1) // '<'
	name, err := t.lexTagName()
	if err != nil {
		return Token{}, err
	}

	var attrs []*Attr
	var rootAttrs []*RootAttr
	selfClosing := false

	for {
		t.skipWhitespace()
		rest := t.rest()
		switch {
		case strings.HasPrefix(rest, "/>"):
			t.advance(2)
			selfClosing = true
			return Token{Kind: TagOpenTok, Pos: startPos, TagName: name, Attrs: attrs, RootAttrs: rootAttrs, SelfClosing: selfClosing}, nil
		case strings.HasPrefix(rest, ">"):
			t.advance(1)
			return Token{Kind: TagOpenTok, Pos: startPos, TagName: name, Attrs: attrs, RootAttrs: rootAttrs, SelfClosing: selfClosing}, nil
		case strings.HasPrefix(rest, "{"):
			attrPos := t.pos
			t.advance(1)
			code, n, ok := scanBraceExpr(t.rest())
			if !ok {
				return Token{}, t.errorf(attrPos, "unterminated brace expression")
			}
			t.advance(n)
			expr, err := ParseExpr(rewriteSigils(code), attrPos)
			if err != nil {
				return Token{}, err
			}
			rootAttrs = append(rootAttrs, &RootAttr{Expr: expr, Source: Source{File: t.file, Span: Span{Start: attrPos, Length: n + 1}}})
		case rest == "":
			return Token{}, t.errorf(startPos, "unexpected EOF inside tag <%s", name)
		default:
			attr, err := t.lexAttr()
			if err != nil {
				return Token{}, err
			}
			attrs = append(attrs, attr)
		}
	}
}

func (t *tokenizer) lexAttr() (*Attr, error) {
	startPos := t.pos
	start := t.off
	for t.off < len(t.src) {
		r, size := decodeRune(t.rest())
		if r == ' ' || r == '\t' || r == '\n' || r == '/' || r == '>' || r == '=' {
			break
		}
		t.advance(size)
	}
	name := t.src[start:t.off]
	if name == "" {
		return nil, t.errorf(startPos, "expected attribute name")
	}

	save := *t
	t.skipWhitespace()
	if !strings.HasPrefix(t.rest(), "=") {
		*t = save
		return &Attr{Name: name, Value: AttrValueNone, Source: Source{File: t.file, Span: Span{Start: startPos, Length: len(name)}}}, nil
	}
	t.advance(1)
	t.skipWhitespace()

	rest := t.rest()
	switch {
	case strings.HasPrefix(rest, `"`) || strings.HasPrefix(rest, `'`):
		delim := rest[0]
		t.advance(1)
		valStart := t.off
		for t.off < len(t.src) && t.src[t.off] != delim {
			_, size := decodeRune(t.rest())
			t.advance(size)
		}
		if t.off >= len(t.src) {
			return nil, t.errorf(startPos, "unterminated string attribute value (did you mean {expr}? EEx inside attributes is not supported)")
		}
		text := t.src[valStart:t.off]
		t.advance(1)
		return &Attr{Name: name, Value: AttrValueStringLit, Text: html.UnescapeString(text), Delim: delim,
			Source: Source{File: t.file, Span: Span{Start: startPos, Length: t.off - start}}}, nil
	case strings.HasPrefix(rest, "{"):
		exprPos := t.pos
		t.advance(1)
		code, n, ok := scanBraceExpr(t.rest())
		if !ok {
			return nil, t.errorf(exprPos, "unterminated brace expression in attribute %q", name)
		}
		t.advance(n)
		var expr *Expr
		var err error
		switch name {
		case ":for":
			expr, err = parseForExpr(rewriteSigils(code), exprPos)
		case ":let":
			expr = parseLetExpr(rewriteSigils(code), exprPos)
		default:
			expr, err = ParseExpr(rewriteSigils(code), exprPos)
		}
		if err != nil {
			return nil, err
		}
		return &Attr{Name: name, Value: AttrValueExpr, Expr: expr,
			Source: Source{File: t.file, Span: Span{Start: startPos, Length: t.off - start}}}, nil
	default:
		return nil, t.errorf(t.pos, "attribute value must start with \", ', or { (attribute %q)", name)
	}
}

func decodeRune(s string) (rune, int) {
	return utf8.DecodeRuneInString(s)
}
