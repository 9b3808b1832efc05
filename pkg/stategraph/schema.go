package stategraph

import (
	"fmt"
	"strings"
)

// State is the data that flows through a graph: a mapping from schema
// field names to values. Nodes receive the full state and return a
// sparse State containing only the fields they want to change.
//
// State values must be JSON-serializable, since checkpoints round-trip
// state through JSON. After a round trip, numeric values come back as
// float64 and nested maps as map[string]any.
type State map[string]any

// Reducer merges an old field value with a new one when a partial
// update is applied. Reducers must be pure: the engine applies them in
// declared field order and relies on them for determinism.
type Reducer func(old, new any) any

// Field declares one schema field: its name, the default value used
// when a run starts, and an optional reducer. A nil Reduce means
// "replace": the new value wins.
type Field struct {
	Name    string
	Default any
	Reduce  Reducer
}

// Schema declares the fields a graph's state consists of, in order.
//
// Every state produced by the engine contains a value for every schema
// field. Partial updates may only touch declared fields; an unknown
// field is a merge error.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema creates a schema from the given fields.
//
// Panics if:
//   - a field name is empty or contains whitespace
//   - two fields share a name
func NewSchema(fields ...Field) *Schema {
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			panic("stategraph: field name cannot be empty")
		}
		if strings.ContainsAny(f.Name, " \t\n\r") {
			panic("stategraph: field name cannot contain whitespace")
		}
		if _, exists := index[f.Name]; exists {
			panic(fmt.Sprintf("stategraph: duplicate field name: %s", f.Name))
		}
		index[f.Name] = i
	}

	declared := make([]Field, len(fields))
	copy(declared, fields)

	return &Schema{fields: declared, index: index}
}

// FieldNames returns the declared field names in order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Has reports whether the schema declares the given field.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Defaults returns a fresh state with every field set to its default.
func (s *Schema) Defaults() State {
	state := make(State, len(s.fields))
	for _, f := range s.fields {
		state[f.Name] = f.Default
	}
	return state
}

// Apply merges a partial update onto the current state using each
// field's reducer and returns the merged state. The inputs are not
// modified. Fields are merged in declared order, so the result is
// deterministic regardless of map iteration.
//
// Returns an error wrapping ErrUnknownField if the update contains a
// field the schema does not declare.
func (s *Schema) Apply(current, update State) (State, error) {
	for name := range update {
		if !s.Has(name) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
	}

	merged := make(State, len(s.fields))
	for _, f := range s.fields {
		old, ok := current[f.Name]
		if !ok {
			old = f.Default
		}
		next, touched := update[f.Name]
		if !touched {
			merged[f.Name] = old
			continue
		}
		if f.Reduce == nil {
			merged[f.Name] = next
			continue
		}
		merged[f.Name] = f.Reduce(old, next)
	}
	return merged, nil
}

// Append is a Reducer that appends the new value to a sequence.
//
// The old value is treated as a []any (nil starts an empty sequence).
// If the new value is itself a []any its elements are appended
// individually; any other value is appended as a single element.
func Append(old, new any) any {
	seq := toSlice(old)
	if items, ok := new.([]any); ok {
		return append(seq, items...)
	}
	return append(seq, new)
}

// Union is a Reducer that merges the new value into a set, keeping the
// first-seen order and dropping duplicates. Elements must be
// comparable; both old and new follow the same []any-or-scalar
// convention as Append.
func Union(old, new any) any {
	merged := make([]any, 0)
	seen := make(map[any]struct{})

	add := func(v any) {
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		merged = append(merged, v)
	}

	for _, v := range toSlice(old) {
		add(v)
	}
	if items, ok := new.([]any); ok {
		for _, v := range items {
			add(v)
		}
	} else {
		add(new)
	}
	return merged
}

// toSlice normalizes a reducer operand into a []any.
func toSlice(v any) []any {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]any, len(val))
		copy(out, val)
		return out
	default:
		return []any{val}
	}
}

// Clone returns a shallow copy of the state. Top-level keys are
// independent; nested reference values are shared.
func (st State) Clone() State {
	if st == nil {
		return nil
	}
	out := make(State, len(st))
	for k, v := range st {
		out[k] = v
	}
	return out
}
