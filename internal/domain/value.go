package domain

import (
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Value is a JSON-shaped test input or output: nil, bool, float64, string,
// []any or map[string]any.
type Value = any

// floatTolerance is the relative tolerance used when comparing numbers.
const floatTolerance = 1e-9

// NormalizeValue converts decoded YAML or Go values into the JSON shape used
// throughout the engine. Integers become float64 and map keys become strings.
func NormalizeValue(v any) Value {
	switch x := v.(type) {
	case nil, bool, string, float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = NormalizeValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = NormalizeValue(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[HumanKey(k)] = NormalizeValue(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = NormalizeValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[HumanKey(iter.Key().Interface())] = NormalizeValue(iter.Value().Interface())
		}
		return out
	}
	return v
}

// HumanKey renders a map key as a plain string.
func HumanKey(k any) string {
	switch x := k.(type) {
	case string:
		return x
	case float64:
		return formatNumber(x)
	default:
		return strings.Trim(HumanReadable(NormalizeValue(k)), `"`)
	}
}

// ValuesEqual reports whether two normalized values are equal. Floating point
// numbers compare within a relative tolerance. Mapping key order never
// matters; sequence order matters unless orderIndependent is set, which only
// applies to the outermost sequence.
func ValuesEqual(a, b Value, orderIndependent bool) bool {
	a, b = NormalizeValue(a), NormalizeValue(b)

	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		return ok && floatsEqual(x, y)
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		if orderIndependent {
			return sameElements(x, y)
		}
		for i := range x {
			if !ValuesEqual(x[i], y[i], false) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !ValuesEqual(xv, yv, false) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func floatsEqual(a, b float64) bool {
	if a == b {
		return true
	}
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= floatTolerance*scale
}

// sameElements matches each element of x against a distinct element of y.
func sameElements(x, y []any) bool {
	used := make([]bool, len(y))
	for _, xv := range x {
		found := false
		for j, yv := range y {
			if !used[j] && ValuesEqual(xv, yv, false) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// HumanReadable renders a value the way Python would print it to a learner.
func HumanReadable(v Value) string {
	switch x := NormalizeValue(v).(type) {
	case nil:
		return "None"
	case string:
		escaped := strings.ReplaceAll(x, "\t", `\t`)
		escaped = strings.ReplaceAll(escaped, "\n", `\n`)
		return `"` + escaped + `"`
	case float64:
		return formatNumber(x)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = HumanReadable(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = HumanReadable(k) + ": " + HumanReadable(x[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		panic("domain: value cannot be made human-readable: " + reflect.TypeOf(x).String())
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
