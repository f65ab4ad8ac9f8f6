package workflow

import (
	"fmt"
	"sync"

	"github.com/zclconf/go-cty/cty"
)

// WidgetSchema translates a node's positional widget values into the named
// inputs the engine expects for that class type. A nil return means the
// widget layout did not match the schema's expectation; the compiler then
// emits only link-derived inputs for the node and logs the skip.
//
// The schema table is an open registry, not a closed enumeration: embedders
// register additional class types at init time exactly like the built-ins.
type WidgetSchema func(w Widgets) map[string]cty.Value

var (
	schemasMu sync.RWMutex
	schemas   = map[string]WidgetSchema{}
)

// RegisterSchema registers the widget translation for a class type. A
// duplicate registration is a programmer error.
func RegisterSchema(classType string, s WidgetSchema) {
	schemasMu.Lock()
	defer schemasMu.Unlock()
	if _, exists := schemas[classType]; exists {
		panic(fmt.Sprintf("widget schema for class type '%s' already registered", classType))
	}
	schemas[classType] = s
}

// schemaFor looks up the registered schema for a class type.
func schemaFor(classType string) (WidgetSchema, bool) {
	schemasMu.RLock()
	defer schemasMu.RUnlock()
	s, ok := schemas[classType]
	return s, ok
}
