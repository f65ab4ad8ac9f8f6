package workflow

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Form identifies which of the two workflow shapes a Document holds.
type Form int

const (
	// FormVisual is the editor-authored shape: node list plus link table.
	FormVisual Form = iota
	// FormExecution is the engine-ready shape: node id to compiled record.
	FormExecution
)

func (f Form) String() string {
	switch f {
	case FormVisual:
		return "visual"
	case FormExecution:
		return "execution"
	default:
		return fmt.Sprintf("Form(%d)", int(f))
	}
}

// Document is a parsed workflow tagged with its form. Exactly one of
// Visual and Exec is populated, matching Form.
type Document struct {
	Form   Form
	Visual *Graph
	Exec   ExecForm

	// Extra carries free-form metadata (e.g. node version pins) that must
	// be forwarded verbatim on submission.
	Extra map[string]ctyjson.SimpleJSONValue
}

// Graph is the visual form: a node collection plus the link table that
// wires producer outputs to consumer input slots.
type Graph struct {
	Nodes []*Node
	Links []Link
}

// Node is a single typed processing node. Identity and type are fixed at
// load time; only widget values are meant to change afterwards.
type Node struct {
	ID    int
	Type  string
	Title string

	// widgets holds the node's ordered configuration values. It is a
	// cty tuple for the common positional layout, or a cty object for
	// node types that save their configuration keyed by name.
	widgets cty.Value

	Inputs []InputSlot
}

// InputSlot is one declared input of a node, either unbound (Link nil) or
// bound to a row of the graph's link table.
type InputSlot struct {
	Name string
	Link *int
}

// Link is one row of the link table. Links are resolved here, never
// created: (FromNode, FromSlot) is the producer, (ToNode, ToSlot) the
// consumer.
type Link struct {
	ID       int
	FromNode int
	FromSlot int
	ToNode   int
	ToSlot   int
}

// Widgets returns the node's configuration values as a Widgets view.
func (n *Node) Widgets() Widgets {
	return Widgets{v: n.widgets}
}

// SetWidget overwrites the positional configuration value at index i. It
// fails when the node's widget layout is not positional or i is out of
// range; callers treat that as an arity mismatch and leave the node alone.
func (n *Node) SetWidget(i int, v cty.Value) error {
	w := n.Widgets()
	if !w.Positional() {
		return fmt.Errorf("node %d (%s): widget values are not positional", n.ID, n.Type)
	}
	if i < 0 || i >= w.Len() {
		return fmt.Errorf("node %d (%s): widget index %d out of range (have %d)", n.ID, n.Type, i, w.Len())
	}
	elems := make([]cty.Value, w.Len())
	for j := range elems {
		elems[j] = w.At(j)
	}
	elems[i] = v
	n.widgets = cty.TupleVal(elems)
	return nil
}

// SetKeyedWidget overwrites the named configuration value of a node whose
// widget layout is keyed by name rather than positional.
func (n *Node) SetKeyedWidget(key string, v cty.Value) error {
	w := n.Widgets()
	if !w.Keyed() {
		return fmt.Errorf("node %d (%s): widget values are not keyed", n.ID, n.Type)
	}
	attrs := n.widgets.AsValueMap()
	attrs[key] = v
	n.widgets = cty.ObjectVal(attrs)
	return nil
}

// FormatError reports workflow source data that could not be parsed into
// either form.
type FormatError struct {
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed workflow: %v", e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// rawDocument probes the top-level shape of a workflow file without
// committing to either form.
type rawDocument struct {
	Nodes     json.RawMessage            `json:"nodes"`
	Links     []Link                     `json:"links"`
	Prompt    json.RawMessage            `json:"prompt"`
	Extra     map[string]ctyjson.SimpleJSONValue `json:"extra"`
	ExtraData map[string]ctyjson.SimpleJSONValue `json:"extra_data"`
}

// rawNode is the wire shape of a visual-form node.
type rawNode struct {
	ID      int                      `json:"id"`
	Type    string                   `json:"type"`
	Title   string                   `json:"title"`
	Widgets ctyjson.SimpleJSONValue  `json:"widgets_values"`
	Inputs  []InputSlot              `json:"inputs"`
}

// UnmarshalJSON decodes a link-table row, which the wire format stores as
// a positional array: [id, fromNode, fromSlot, toNode, toSlot, type]. The
// trailing type tag is ignored.
func (l *Link) UnmarshalJSON(data []byte) error {
	var row []json.Number
	// The final element may be a string or null, so decode loosely first.
	var loose []json.RawMessage
	if err := json.Unmarshal(data, &loose); err != nil {
		return err
	}
	if len(loose) < 5 {
		return fmt.Errorf("link row has %d elements, want at least 5", len(loose))
	}
	row = make([]json.Number, 5)
	for i := 0; i < 5; i++ {
		if err := json.Unmarshal(loose[i], &row[i]); err != nil {
			return fmt.Errorf("link row element %d: %w", i, err)
		}
	}
	fields := []*int{&l.ID, &l.FromNode, &l.FromSlot, &l.ToNode, &l.ToSlot}
	for i, f := range fields {
		n, err := row[i].Int64()
		if err != nil {
			return fmt.Errorf("link row element %d: %w", i, err)
		}
		*f = int(n)
	}
	return nil
}

// Load parses a workflow from r and classifies it as visual or execution
// form. The decision is made once, here; callers and the compiler dispatch
// on Document.Form and never re-infer the shape.
func Load(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &FormatError{Err: err}
	}

	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &FormatError{Err: err}
	}

	extra := raw.Extra
	if extra == nil {
		extra = raw.ExtraData
	}

	switch {
	case len(raw.Nodes) > 0 && raw.Nodes[0] == '[':
		var rawNodes []rawNode
		if err := json.Unmarshal(raw.Nodes, &rawNodes); err != nil {
			return nil, &FormatError{Err: fmt.Errorf("node list: %w", err)}
		}
		g := &Graph{Links: raw.Links}
		for _, rn := range rawNodes {
			g.Nodes = append(g.Nodes, &Node{
				ID:      rn.ID,
				Type:    rn.Type,
				Title:   rn.Title,
				widgets: rn.Widgets.Value,
				Inputs:  rn.Inputs,
			})
		}
		return &Document{Form: FormVisual, Visual: g, Extra: extra}, nil

	case len(raw.Nodes) > 0 && raw.Nodes[0] == '{':
		// Some sources nest an execution-form map under "nodes".
		form, err := parseExecForm(raw.Nodes)
		if err != nil {
			return nil, &FormatError{Err: err}
		}
		return &Document{Form: FormExecution, Exec: form, Extra: extra}, nil

	case len(raw.Prompt) > 0:
		// A previously submitted payload: the compiled graph sits under "prompt".
		form, err := parseExecForm(raw.Prompt)
		if err != nil {
			return nil, &FormatError{Err: err}
		}
		return &Document{Form: FormExecution, Exec: form, Extra: extra}, nil

	default:
		// A bare execution-form map: every value must be a compiled record.
		form, err := parseExecForm(data)
		if err != nil {
			return nil, &FormatError{Err: err}
		}
		return &Document{Form: FormExecution, Exec: form, Extra: extra}, nil
	}
}

// DeepCopy returns a fully independent copy of the document. cty values
// are immutable and safe to share; all mutable containers around them are
// duplicated, so mutating the copy can never leak into the original.
func (d *Document) DeepCopy() *Document {
	out := &Document{Form: d.Form}
	if d.Extra != nil {
		out.Extra = make(map[string]ctyjson.SimpleJSONValue, len(d.Extra))
		for k, v := range d.Extra {
			out.Extra[k] = v
		}
	}
	if d.Visual != nil {
		g := &Graph{
			Nodes: make([]*Node, 0, len(d.Visual.Nodes)),
			Links: append([]Link(nil), d.Visual.Links...),
		}
		for _, n := range d.Visual.Nodes {
			cp := &Node{
				ID:      n.ID,
				Type:    n.Type,
				Title:   n.Title,
				widgets: n.widgets,
				Inputs:  make([]InputSlot, len(n.Inputs)),
			}
			for i, slot := range n.Inputs {
				cp.Inputs[i] = InputSlot{Name: slot.Name}
				if slot.Link != nil {
					id := *slot.Link
					cp.Inputs[i].Link = &id
				}
			}
			g.Nodes = append(g.Nodes, cp)
		}
		out.Visual = g
	}
	if d.Exec != nil {
		out.Exec = d.Exec.deepCopy()
	}
	return out
}
