package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// ExecForm is the engine-ready workflow shape: node id → compiled record.
type ExecForm map[string]*CompiledNode

// CompiledNode is one execution-form record.
type CompiledNode struct {
	ClassType string                `json:"class_type"`
	Inputs    map[string]InputValue `json:"inputs"`
	Meta      *Meta                 `json:"_meta,omitempty"`
}

// Meta carries display-only node metadata the engine tolerates but ignores.
type Meta struct {
	Title string `json:"title,omitempty"`
}

// InputValue is one compiled node input: either a literal value or a
// reference to another node's output. Exactly one of the two is set.
type InputValue struct {
	Literal cty.Value
	Ref     *OutputRef
}

// OutputRef points at output slot Index of the node with id Node.
type OutputRef struct {
	Node  string
	Index int
}

// Literal wraps a cty value as a literal input.
func Literal(v cty.Value) InputValue { return InputValue{Literal: v} }

// RefTo builds a producer-reference input.
func RefTo(node string, index int) InputValue {
	return InputValue{Ref: &OutputRef{Node: node, Index: index}}
}

// MarshalJSON encodes a reference as the engine's [nodeID, outputIndex]
// pair and a literal as its naked JSON value.
func (v InputValue) MarshalJSON() ([]byte, error) {
	if v.Ref != nil {
		return json.Marshal([2]any{v.Ref.Node, v.Ref.Index})
	}
	if v.Literal == cty.NilVal {
		return []byte("null"), nil
	}
	return ctyjson.SimpleJSONValue{Value: v.Literal}.MarshalJSON()
}

// UnmarshalJSON applies the engine's convention in reverse: a two-element
// array of [string, integer] is a producer reference, anything else is a
// literal.
func (v *InputValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var pair []json.RawMessage
		if err := json.Unmarshal(trimmed, &pair); err == nil && len(pair) == 2 {
			var node string
			var index int
			if json.Unmarshal(pair[0], &node) == nil && json.Unmarshal(pair[1], &index) == nil {
				v.Ref = &OutputRef{Node: node, Index: index}
				v.Literal = cty.NilVal
				return nil
			}
		}
	}
	var sv ctyjson.SimpleJSONValue
	if err := sv.UnmarshalJSON(data); err != nil {
		return err
	}
	v.Literal = sv.Value
	v.Ref = nil
	return nil
}

// parseExecForm decodes an execution-form map, insisting that every record
// declares a class type so that arbitrary JSON objects are not silently
// misread as workflows.
func parseExecForm(data []byte) (ExecForm, error) {
	var form ExecForm
	if err := json.Unmarshal(data, &form); err != nil {
		return nil, err
	}
	for id, n := range form {
		if n == nil || n.ClassType == "" {
			return nil, fmt.Errorf("node %q: missing class_type", id)
		}
		if n.Inputs == nil {
			n.Inputs = map[string]InputValue{}
		}
	}
	return form, nil
}

func (f ExecForm) deepCopy() ExecForm {
	out := make(ExecForm, len(f))
	for id, n := range f {
		cp := &CompiledNode{
			ClassType: n.ClassType,
			Inputs:    make(map[string]InputValue, len(n.Inputs)),
		}
		if n.Meta != nil {
			meta := *n.Meta
			cp.Meta = &meta
		}
		for name, in := range n.Inputs {
			if in.Ref != nil {
				ref := *in.Ref
				in.Ref = &ref
			}
			cp.Inputs[name] = in
		}
		out[id] = cp
	}
	return out
}

// NodeIDs returns the form's node ids in sorted order, for deterministic
// iteration in logs and tests.
func (f ExecForm) NodeIDs() []string {
	ids := make([]string, 0, len(f))
	for id := range f {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FindClass returns the id of the first node (in sorted id order) whose
// class type matches any of classTypes.
func (f ExecForm) FindClass(classTypes ...string) (string, bool) {
	for _, want := range classTypes {
		for _, id := range f.NodeIDs() {
			if f[id].ClassType == want {
				return id, true
			}
		}
	}
	return "", false
}

// Validate checks the form's structural invariants: every inlined producer
// reference must itself be a key, and the reference graph must be acyclic.
// The remote engine enforces the same rules; catching them locally turns a
// slow remote rejection into an immediate error.
func (f ExecForm) Validate() error {
	for _, id := range f.NodeIDs() {
		for name, in := range f[id].Inputs {
			if in.Ref == nil {
				continue
			}
			if _, ok := f[in.Ref.Node]; !ok {
				return fmt.Errorf("node %s input %q references unknown node %s", id, name, in.Ref.Node)
			}
		}
	}
	return f.detectCycles()
}

// detectCycles walks producer references depth-first using the classic
// three-colour scheme: permanent marks are fully explored nodes, temporary
// marks are the current recursion stack.
func (f ExecForm) detectCycles() error {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(id string) error
	visit = func(id string) error {
		if permanent[id] {
			return nil
		}
		if temporary[id] {
			return fmt.Errorf("cycle detected involving node '%s'", id)
		}
		temporary[id] = true
		for _, in := range f[id].Inputs {
			if in.Ref != nil {
				if err := visit(in.Ref.Node); err != nil {
					return err
				}
			}
		}
		delete(temporary, id)
		permanent[id] = true
		return nil
	}

	for _, id := range f.NodeIDs() {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}
