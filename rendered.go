package livehtml

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint is a 128-bit digest identifying the static shape of a
// Rendered or Comprehension (spec §3.4, §4.4.7).
type Fingerprint [16]byte

func (f Fingerprint) String() string { return hex.EncodeToString(f[:]) }

// DynKind discriminates the Dyn sum type (spec §3.4).
type DynKind int

const (
	DynNil DynKind = iota
	DynIodata
	DynRendered
	DynComprehension
	DynComponent
)

// Dyn is one computed dynamic slot value.
type Dyn struct {
	Kind          DynKind
	Iodata        []byte
	Rendered      *Rendered
	Comprehension *Comprehension
	Component     *Component
}

var NilDyn = Dyn{Kind: DynNil}

func IodataDyn(b []byte) Dyn { return Dyn{Kind: DynIodata, Iodata: b} }

// CallerInfo describes where a template (or a component invocation
// within it) was compiled from, per the `caller` field of the Outputs
// contract (spec §6.2).
type CallerInfo struct {
	Module string
	Fn     string
	Arity  int
	File   string
	Line   uint32
}

// Rendered is the output data model consumed by the runtime differ
// (spec §3.4, §6.2). Rendering interleaves Static and the values
// produced by Dynamic, starting and ending with a Static entry:
// len(Static) == len(Dynamic(...)) + 1.
type Rendered struct {
	Static      []string
	Dynamic     func(trackChanges bool) []Dyn
	Fingerprint Fingerprint
	Root        *bool // nil means "unknown/not applicable", matching spec's `bool | null`
	Caller      *CallerInfo
}

// StreamInsert is one insert entry of a Comprehension's stream
// annotation (spec §4.4.4).
type StreamInsert struct {
	ID    string
	At    int
	Limit *int
}

// StreamAnnot is the optional streaming annotation on a Comprehension.
// The engine never sets Comprehension.Stream. When it is set,
// Comprehension.MarshalJSON writes it under "stream" as a JSON object of
// these fields; neither the positional [ref, inserts, deletes] form nor
// the form with an appended reset flag is produced, and IncludeReset is
// carried but not read.
type StreamAnnot struct {
	Ref          string
	Inserts      []StreamInsert
	Deletes      []string
	Reset        bool
	IncludeReset bool
}

// Comprehension is the lowering of a `:for` node (spec §4.4.4). The
// static list is shared across all iterations; Dynamics holds one row
// of dynamic values per iteration.
type Comprehension struct {
	Static      []string
	Dynamics    [][]Dyn
	Fingerprint Fingerprint
	Stream      *StreamAnnot
}

// ChangedMark is a bool (true: the whole path changed), a nested
// ChangedMap or map[string]any describing which sub-fields changed (spec
// §4.4.2's "nested path walks assigns and the partial changed tree in
// lockstep"), or, at a leaf, any other value, read as the previous value
// and compared with the live one (see markIndicatesChange).
type ChangedMark = any

// ChangedMap is the per-render auxiliary input keyed by assign name
// (spec §3.5 GLOSSARY "Changed map"). A nil map at the top level means
// "initial render, recompute every slot"; an empty non-nil map means
// "no top-level assign changed".
type ChangedMap map[string]ChangedMark

// Component is the lowering of a component invocation (spec §4.4.5).
type Component struct {
	ID           string
	ComponentRef any
	Assigns      map[string]any
	Changed      ChangedMap // nil: stateful component defers tracking to its own engine
}

// DynShapeEntry is one entry of the structural shape fed into
// ComputeFingerprint — a description of what KIND of value a dynamic
// slot produces, never the value itself (spec §4.4.7: "must not embed
// source positions in the fingerprint", and must be stable across
// processes for the same template source).
type DynShapeEntry struct {
	Kind   string `json:"kind"`
	Nested string `json:"nested,omitempty"` // hex fingerprint of a statically-known nested Rendered/Comprehension
}

// MarshalJSON renders r into the Outputs contract's wire shape (spec
// §6.2): a {"s": static, "d": dynamic, "f": fingerprint, "r": root}
// object, computing Dynamic with change tracking off (a full,
// unconditional render — the shape a client doing its very first mount
// would receive).
func (r *Rendered) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	dyn := r.Dynamic(false)
	out := map[string]any{
		"s": r.Static,
		"d": dyn,
		"f": r.Fingerprint.String(),
	}
	if r.Root != nil {
		out["r"] = *r.Root
	}
	return json.Marshal(out)
}

// MarshalJSON renders one Dyn value per its Kind.
func (d Dyn) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case DynNil:
		return []byte("null"), nil
	case DynIodata:
		return json.Marshal(string(d.Iodata))
	case DynRendered:
		return json.Marshal(d.Rendered)
	case DynComprehension:
		return json.Marshal(d.Comprehension)
	case DynComponent:
		return json.Marshal(d.Component)
	default:
		return []byte("null"), nil
	}
}

// MarshalJSON renders a Comprehension as {"s": static, "d": rows, "f":
// fingerprint}, one entry of "d" per iteration.
func (c *Comprehension) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	out := map[string]any{
		"s": c.Static,
		"d": c.Dynamics,
		"f": c.Fingerprint.String(),
	}
	if c.Stream != nil {
		out["stream"] = c.Stream
	}
	return json.Marshal(out)
}

// MarshalJSON renders a Component as {"id", "component_ref", "assigns"}
// — Assigns values that are InnerBlock closures are not JSON-encodable
// and are replaced with a placeholder string, since a closure has no
// wire representation of its own; a real transport invokes it directly
// rather than serializing it.
func (c *Component) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	assigns := make(map[string]any, len(c.Assigns))
	for k, v := range c.Assigns {
		assigns[k] = sanitizeForJSON(v)
	}
	out := map[string]any{
		"id":            c.ID,
		"component_ref": c.ComponentRef,
		"assigns":       assigns,
	}
	return json.Marshal(out)
}

// sanitizeForJSON walks an assigns value replacing any InnerBlock
// closure with a placeholder string, since closures have no wire
// representation (spec §6.2: the Outputs contract describes the
// structural tree, not a transport for calling back into the caller).
func sanitizeForJSON(v any) any {
	switch val := v.(type) {
	case InnerBlock:
		return "<inner_block>"
	case []map[string]any:
		out := make([]any, len(val))
		for i, m := range val {
			out[i] = sanitizeForJSON(m)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, mv := range val {
			out[k] = sanitizeForJSON(mv)
		}
		return out
	default:
		return v
	}
}

// ComputeFingerprint computes the 128-bit digest over (static, shape)
// required by spec §3.4/§4.4.7, using crypto/md5 over a canonical JSON
// serialization — the same technique livetemplate-livetemplate's
// tree.go.calculateFingerprint uses (there truncated to 64 bits; kept
// here at the full 128 bits the spec calls for).
func ComputeFingerprint(static []string, shape []DynShapeEntry) Fingerprint {
	payload := struct {
		Static []string        `json:"static"`
		Shape  []DynShapeEntry `json:"shape"`
	}{Static: static, Shape: shape}
	b, err := json.Marshal(payload)
	if err != nil {
		// json.Marshal only fails on unsupported types (channels, funcs),
		// neither of which this payload ever contains.
		panic(err)
	}
	return md5.Sum(b)
}
