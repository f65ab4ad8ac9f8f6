package workflow

import (
	"math/big"

	"github.com/zclconf/go-cty/cty"
)

// Widgets is a read-only view over a node's configuration values. Most
// node types save them positionally (a cty tuple); a few save them keyed
// by name (a cty object). The view is total: out-of-range or missing
// lookups yield cty.NilVal rather than panicking on engine-authored data.
type Widgets struct {
	v cty.Value
}

// Positional reports whether the values are a positional sequence.
func (w Widgets) Positional() bool {
	return w.v != cty.NilVal && !w.v.IsNull() && (w.v.Type().IsTupleType() || w.v.Type().IsListType())
}

// Keyed reports whether the values are stored keyed by name.
func (w Widgets) Keyed() bool {
	return w.v != cty.NilVal && !w.v.IsNull() && w.v.Type().IsObjectType()
}

// Len returns the number of positional values, or 0 for keyed or absent
// widget layouts.
func (w Widgets) Len() int {
	if !w.Positional() {
		return 0
	}
	return w.v.LengthInt()
}

// At returns the positional value at index i, or cty.NilVal out of range.
func (w Widgets) At(i int) cty.Value {
	if i < 0 || i >= w.Len() {
		return cty.NilVal
	}
	return w.v.Index(cty.NumberIntVal(int64(i)))
}

// Get returns the named value from a keyed layout, or cty.NilVal.
func (w Widgets) Get(key string) cty.Value {
	if !w.Keyed() || !w.v.Type().HasAttribute(key) {
		return cty.NilVal
	}
	return w.v.GetAttr(key)
}

// asString extracts a Go string from a cty value, reporting failure for
// nulls and non-strings.
func asString(v cty.Value) (string, bool) {
	if v == cty.NilVal || v.IsNull() || v.Type() != cty.String {
		return "", false
	}
	return v.AsString(), true
}

// asFloat extracts a Go float64 from a cty number.
func asFloat(v cty.Value) (float64, bool) {
	if v == cty.NilVal || v.IsNull() || v.Type() != cty.Number {
		return 0, false
	}
	f, _ := v.AsBigFloat().Float64()
	return f, true
}

// asBool extracts a Go bool. The engine occasionally stores booleans as
// the strings "true"/"false", so those are accepted too.
func asBool(v cty.Value) (bool, bool) {
	if v == cty.NilVal || v.IsNull() {
		return false, false
	}
	switch v.Type() {
	case cty.Bool:
		return v.True(), true
	case cty.String:
		switch v.AsString() {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// num builds a cty number from a float without accumulating binary noise
// for whole values.
func num(f float64) cty.Value {
	return cty.NumberVal(new(big.Float).SetFloat64(f))
}
