package livehtml

import (
	"errors"
	"fmt"
	"strings"
)

// ParseError is returned by the tokenizer, the structural analyzer, the
// expression parser binding, and the engine's lowering for any fatal,
// compile-time failure. It
// carries enough position information to render a code snippet with a
// caret (see Snippet).
type ParseError struct {
	File        string
	Line        uint32
	Column      uint32
	Description string
}

func newParseError(file string, pos Pos, format string, args ...any) *ParseError {
	return &ParseError{
		File:        file,
		Line:        pos.Line,
		Column:      pos.Column,
		Description: fmt.Sprintf(format, args...),
	}
}

func (e *ParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Description)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Description)
}

func (e *ParseError) Is(target error) bool {
	var pe *ParseError
	if errors.As(target, &pe) {
		return e.Line == pe.Line && e.Column == pe.Column && e.Description == pe.Description
	}
	return false
}

// Snippet renders up to contextLines before and after the error's line
// from source, with a caret line marking the column. Column is 1-based
// and counts runes; the caret is placed Column-1 spaces into the line as
// it appears in source. No indentation offset is subtracted: positions
// from a unit compiled with a non-zero Indent include that offset, and
// the caret is shifted right by it.
func (e *ParseError) Snippet(source string, contextLines int) string {
	lines := strings.Split(source, "\n")
	if int(e.Line) < 1 || int(e.Line) > len(lines) {
		return e.Error()
	}

	start := int(e.Line) - contextLines
	if start < 1 {
		start = 1
	}
	end := int(e.Line) + contextLines
	if end > len(lines) {
		end = len(lines)
	}

	width := len(fmt.Sprintf("%d", end))
	var b strings.Builder
	for n := start; n <= end; n++ {
		fmt.Fprintf(&b, "%*d | %s\n", width, n, lines[n-1])
		if n == int(e.Line) {
			col := int(e.Column)
			if col < 1 {
				col = 1
			}
			fmt.Fprintf(&b, "%*s | %s^\n", width, "", strings.Repeat(" ", col-1))
		}
	}
	return b.String()
}

// Warning is a non-fatal diagnostic produced during compilation:
// deprecated phx-update values, a local variable disabling change
// tracking for a fragment, an <input name="id">, etc.
type Warning struct {
	File        string
	Line        uint32
	Column      uint32
	Description string
}

func (w Warning) String() string {
	if w.File == "" {
		return fmt.Sprintf("%d:%d: warning: %s", w.Line, w.Column, w.Description)
	}
	return fmt.Sprintf("%s:%d:%d: warning: %s", w.File, w.Line, w.Column, w.Description)
}

// ErrLooseComponent describes a Component or Comprehension value used
// outside of a template (e.g. an attempt to convert it to HTML
// directly). No function in this package returns it: the package has no
// HTML conversion of Component or Comprehension values.
var ErrLooseComponent = errors.New("livehtml: Component or Comprehension value used outside of a template")

// SlotPatternMismatchError is raised when a slot's :let pattern fails to
// match the assigns handed to its inner-block closure.
type SlotPatternMismatchError struct {
	Slot    string
	Pattern string
	Value   any
}

func (e *SlotPatternMismatchError) Error() string {
	return fmt.Sprintf("livehtml: slot %q: :let pattern %q does not match %#v", e.Slot, e.Pattern, e.Value)
}

// buildErrorPath joins an ancestor tag-name path (outermost first, as
// maintained by the structural analyzer's open-tag stack) for prefixing
// semantic errors raised during node analysis. Nodes hold no
// back-pointers (spec DESIGN NOTES: "no back-pointers"), so callers pass
// the path they already have on the stack rather than walking upward.
func buildErrorPath(path []string) string {
	return strings.Join(path, "/")
}
