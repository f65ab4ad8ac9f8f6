package workflow

import (
	"context"
	"fmt"
	"strconv"

	"github.com/vk/comfyrun/internal/ctxlog"
)

// annotationTypes are editor-only node types with no execution semantics;
// the engine rejects them, so compilation drops them entirely.
var annotationTypes = map[string]bool{
	"Note":         true,
	"MarkdownNote": true,
}

// CompileError reports a graph that cannot be lowered to execution form.
type CompileError struct {
	NodeID int
	Input  string
	LinkID int
	Reason string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile node %d input %q: %s", e.NodeID, e.Input, e.Reason)
}

// Compile lowers a document to execution form. An execution-form document
// compiles to itself (a copy, so the caller's document stays untouched).
// For a visual document, each non-annotation node gets an input map built
// from two sources: positional widget values translated through the schema
// registry, and bound input slots resolved through the link table into
// producer references. A bound slot always wins over a widget-derived
// value of the same name, matching the engine's own precedence for
// connected inputs. The only fatal condition is a slot bound to a link id
// that is missing from the link table.
func Compile(ctx context.Context, doc *Document) (ExecForm, error) {
	logger := ctxlog.FromContext(ctx)

	if doc.Form == FormExecution {
		logger.Debug("Workflow already in execution form, compilation is identity.")
		return doc.Exec.deepCopy(), nil
	}

	links := make(map[int]Link, len(doc.Visual.Links))
	for _, l := range doc.Visual.Links {
		links[l.ID] = l
	}

	form := make(ExecForm, len(doc.Visual.Nodes))
	for _, n := range doc.Visual.Nodes {
		if annotationTypes[n.Type] {
			logger.Debug("Dropping annotation node.", "node", n.ID, "type", n.Type)
			continue
		}

		record := &CompiledNode{
			ClassType: n.Type,
			Inputs:    map[string]InputValue{},
		}
		if n.Title != "" {
			record.Meta = &Meta{Title: n.Title}
		}

		if schema, ok := schemaFor(n.Type); ok {
			named := schema(n.Widgets())
			if named == nil {
				logger.Warn("Widget layout does not match schema, emitting link inputs only.",
					"node", n.ID, "type", n.Type, "widgets", n.Widgets().Len())
			}
			for name, v := range named {
				record.Inputs[name] = Literal(v)
			}
		} else {
			logger.Debug("No widget schema for class type, passing through.", "node", n.ID, "type", n.Type)
		}

		for _, slot := range n.Inputs {
			if slot.Link == nil {
				continue
			}
			link, ok := links[*slot.Link]
			if !ok {
				return nil, &CompileError{
					NodeID: n.ID,
					Input:  slot.Name,
					LinkID: *slot.Link,
					Reason: fmt.Sprintf("link %d not found in link table", *slot.Link),
				}
			}
			record.Inputs[slot.Name] = RefTo(strconv.Itoa(link.FromNode), link.FromSlot)
		}

		form[strconv.Itoa(n.ID)] = record
	}

	return form, nil
}
