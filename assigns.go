package livehtml

import (
	"reflect"
	"strings"
)

// Assigns is the runtime carrier for a template's input parameters and
// the per-render changed map (spec §3.5), grounded on the teacher's
// Scope interface (chtml/scope.go) — generalized here to also carry
// Changed, since spec §4.4.2's per-dynamic conditional needs both
// together at every nesting level (component calls, comprehension
// iterations, slot inner-blocks all spawn their own Assigns).
type Assigns struct {
	vars    map[string]any
	changed ChangedMap
	initial bool // changed == nil in spec's vocabulary: recompute everything
}

// NewAssigns builds the root Assigns for a render. A nil changed map
// means the initial render (spec §8: "Running with changed = nil...
// recomputes every slot").
func NewAssigns(vars map[string]any, changed ChangedMap) *Assigns {
	return &Assigns{vars: vars, changed: changed, initial: changed == nil}
}

func (a *Assigns) Vars() map[string]any { return a.vars }
func (a *Assigns) Changed() ChangedMap  { return a.changed }
func (a *Assigns) Initial() bool        { return a.initial }

// Spawn creates a child Assigns (component invocation, comprehension
// iteration, slot inner-block) with vars merged over a copy of the
// parent's and its own changed sub-map. A nil childChanged with a
// non-initial parent means "this child's own inputs did not change",
// not "initial render" — only the root Assigns can be initial.
func (a *Assigns) Spawn(vars map[string]any, childChanged ChangedMap) *Assigns {
	merged := make(map[string]any, len(a.vars)+len(vars))
	for k, v := range a.vars {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}
	return &Assigns{vars: merged, changed: childChanged, initial: false}
}

// Env builds the evaluation environment expr-lang programs run against:
// the assigns map under the "assigns" key, plus any template-level
// bound names (loop/:let/EExBlock-clause variables) passed in by the
// caller.
func (a *Assigns) Env(bound map[string]any) map[string]any {
	env := make(map[string]any, len(bound)+1)
	for k, v := range bound {
		env[k] = v
	}
	env["assigns"] = a.vars
	return env
}

// KeysChanged decides, for one dynamic slot's Keys, whether the slot
// must be recomputed (spec §4.4.2's per-dynamic conditional):
//
//	Keys = All             -> always recompute
//	initial render          -> always recompute
//	Keys = {} (no deps)     -> never recompute after the initial render
//	otherwise                -> recompute iff any tracked path changed
func KeysChanged(keys Keys, assigns map[string]any, changed ChangedMap, initial bool) bool {
	if keys.All {
		return true
	}
	if initial {
		return true
	}
	if len(keys.Paths) == 0 {
		return false
	}
	for path := range keys.Paths {
		if partChanged(strings.Split(path, "."), changed, assigns) {
			return true
		}
	}
	return false
}

// partChanged walks one dotted path through the changed tree and the
// live assigns in lockstep (spec §4.4.2), returning changed when either
// side diverges.
func partChanged(parts []string, changed ChangedMap, vars map[string]any) bool {
	if changed == nil || len(parts) == 0 {
		return false
	}
	mark, ok := changed[parts[0]]
	if !ok {
		return false
	}
	if len(parts) == 1 {
		return markIndicatesChange(mark, vars[parts[0]])
	}
	switch m := mark.(type) {
	case ChangedMap:
		return partChanged(parts[1:], m, subVars(vars, parts[0]))
	case map[string]any:
		return partChanged(parts[1:], ChangedMap(m), subVars(vars, parts[0]))
	case bool:
		return m
	default:
		return true
	}
}

func subVars(vars map[string]any, key string) map[string]any {
	if vars == nil {
		return nil
	}
	if m, ok := vars[key].(map[string]any); ok {
		return m
	}
	return nil
}

// markIndicatesChange interprets one leaf changed-map entry. A bool is
// the common case. Any other value is treated as a previous-value
// sentinel (spec Scenario 4: "where the previous-value sentinel equals
// current => Nil (no actual change)") and compared against the live
// value by deep equality.
func markIndicatesChange(mark ChangedMark, current any) bool {
	switch m := mark.(type) {
	case bool:
		return m
	case nil:
		return false
	default:
		return !reflect.DeepEqual(m, current)
	}
}
