// Package value models component parameter values. Every value is a cty.Value
// restricted to the shapes a parameter can take: number, string, bool, a
// two-element numeric range, or null for "not assigned".
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Null is the value of a parameter that has neither an assignment nor a default.
var Null = cty.NullVal(cty.DynamicPseudoType)

// Number returns a numeric value.
func Number(f float64) cty.Value { return cty.NumberFloatVal(f) }

// String returns a string value.
func String(s string) cty.Value { return cty.StringVal(s) }

// Range returns an inclusive numeric range [lo, hi].
func Range(lo, hi float64) cty.Value {
	return cty.TupleVal([]cty.Value{cty.NumberFloatVal(lo), cty.NumberFloatVal(hi)})
}

// IsNull reports whether v carries no value. The zero cty.Value counts as null.
func IsNull(v cty.Value) bool {
	return v.IsNull()
}

// FromJSON converts a JSON document into a parameter value.
func FromJSON(data []byte) (cty.Value, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Null, nil
	}
	ty, err := ctyjson.ImpliedType(trimmed)
	if err != nil {
		return cty.NilVal, fmt.Errorf("infer value type: %w", err)
	}
	v, err := ctyjson.Unmarshal(trimmed, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("decode value: %w", err)
	}
	return Normalize(v)
}

// FromAny converts a decoded YAML/JSON scalar or list into a parameter value.
func FromAny(v any) (cty.Value, error) {
	if v == nil {
		return Null, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("encode value: %w", err)
	}
	return FromJSON(data)
}

// Normalize checks that v is one of the supported parameter shapes and
// converts lists and tuples of two numbers into the canonical range tuple.
func Normalize(v cty.Value) (cty.Value, error) {
	if v.IsNull() {
		return Null, nil
	}
	if !v.IsKnown() {
		return cty.NilVal, fmt.Errorf("value is not known")
	}
	ty := v.Type()
	switch {
	case ty.Equals(cty.Number), ty.Equals(cty.String), ty.Equals(cty.Bool):
		return v, nil
	case ty.IsTupleType() || ty.IsListType():
		if v.LengthInt() != 2 {
			return cty.NilVal, fmt.Errorf("range must have exactly two elements, got %d", v.LengthInt())
		}
		elems := v.AsValueSlice()
		bounds := make([]float64, 2)
		for i, elem := range elems {
			f, ok := numeric(elem)
			if !ok {
				return cty.NilVal, fmt.Errorf("range bound %d is not a number", i)
			}
			bounds[i] = f
		}
		return Range(bounds[0], bounds[1]), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}

// ToJSON encodes v the way it appears in payloads: null, a number, a string,
// a bool or a two-element array.
func ToJSON(v cty.Value) ([]byte, error) {
	if v.IsNull() {
		return []byte("null"), nil
	}
	return ctyjson.Marshal(v, v.Type())
}

// Float returns the numeric reading of v. Strings holding a plain number are
// accepted so that values typed in as text still compare numerically.
func Float(v cty.Value) (float64, bool) {
	if v.IsNull() {
		return 0, false
	}
	if f, ok := numeric(v); ok {
		return f, true
	}
	if v.Type().Equals(cty.String) {
		f, err := strconv.ParseFloat(strings.TrimSpace(v.AsString()), 64)
		if err == nil {
			return f, true
		}
	}
	return 0, false
}

// Text returns the string content of v when v is a string.
func Text(v cty.Value) (string, bool) {
	if v.IsNull() || !v.Type().Equals(cty.String) {
		return "", false
	}
	return v.AsString(), true
}

var rangeText = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)\s*(?:\.\.|-|to|–)\s*(-?\d+(?:\.\d+)?)\s*([A-Za-z%°³/]*)\s*$`)

// AsRange interprets v as an inclusive range. Both the canonical tuple form
// and text such as "0-10", "0..10 m" or "2 to 8" are accepted.
func AsRange(v cty.Value) (lo, hi float64, ok bool) {
	if v.IsNull() {
		return 0, 0, false
	}
	ty := v.Type()
	switch {
	case ty.IsTupleType() || ty.IsListType():
		if v.LengthInt() != 2 {
			return 0, 0, false
		}
		elems := v.AsValueSlice()
		lo, okLo := numeric(elems[0])
		hi, okHi := numeric(elems[1])
		if !okLo || !okHi || lo > hi {
			return 0, 0, false
		}
		return lo, hi, true
	case ty.Equals(cty.String):
		m := rangeText.FindStringSubmatch(v.AsString())
		if m == nil {
			return 0, 0, false
		}
		lo, errLo := strconv.ParseFloat(m[1], 64)
		hi, errHi := strconv.ParseFloat(m[2], 64)
		if errLo != nil || errHi != nil || lo > hi {
			return 0, 0, false
		}
		return lo, hi, true
	}
	return 0, 0, false
}

// Equal reports whether a and b hold the same value. Numbers compare by
// numeric value; everything else must match exactly, including its type.
func Equal(a, b cty.Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	fa, okA := numeric(a)
	fb, okB := numeric(b)
	if okA && okB {
		return fa == fb
	}
	if okA != okB {
		return false
	}
	return a.RawEquals(b)
}

// Kind names the shape of v for diagnostics.
func Kind(v cty.Value) string {
	if v.IsNull() {
		return "null"
	}
	ty := v.Type()
	switch {
	case ty.Equals(cty.Number):
		return "number"
	case ty.Equals(cty.String):
		return "string"
	case ty.Equals(cty.Bool):
		return "bool"
	case ty.IsTupleType() || ty.IsListType():
		return "range"
	}
	return ty.FriendlyName()
}

// Format renders v for human-readable reasons: strings are quoted, numbers use
// the shortest representation and ranges print as [lo, hi].
func Format(v cty.Value) string {
	if v.IsNull() {
		return "null"
	}
	ty := v.Type()
	switch {
	case ty.Equals(cty.Number):
		f, _ := numeric(v)
		return strconv.FormatFloat(f, 'g', -1, 64)
	case ty.Equals(cty.String):
		return strconv.Quote(v.AsString())
	case ty.Equals(cty.Bool):
		return strconv.FormatBool(v.True())
	case ty.IsTupleType() || ty.IsListType():
		parts := make([]string, 0, v.LengthInt())
		for _, elem := range v.AsValueSlice() {
			parts = append(parts, Format(elem))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return ty.FriendlyName()
}

func numeric(v cty.Value) (float64, bool) {
	if v.IsNull() || !v.IsKnown() || !v.Type().Equals(cty.Number) {
		return 0, false
	}
	f, _ := v.AsBigFloat().Float64()
	return f, true
}
