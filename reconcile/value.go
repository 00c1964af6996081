package reconcile

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Comparison happens over a closed set of value kinds. Everything coming out
// of a spreadsheet cell, an XLSX reader or a snapshot JSON blob is folded
// into one of these before equality is decided, so "123" and 123, "TRUE" and
// true, and differently-formatted timestamps compare equal.
type valueKind uint8

const (
	kindNull valueKind = iota
	kindString
	kindNumber
	kindBool
	kindDate
	kindArray
	kindObject
)

type Value struct {
	kind valueKind
	str  string
	num  decimal.Decimal
	b    bool
	t    time.Time
	arr  []Value
	obj  map[string]Value
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// FromAny normalizes a raw cell or JSON value. Absent fields should be
// normalized via FromAny(nil).
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return Value{kind: kindNull}
	case bool:
		return Value{kind: kindBool, b: x}
	case string:
		return fromString(x)
	case float64:
		return Value{kind: kindNumber, num: decimal.NewFromFloat(x)}
	case float32:
		return Value{kind: kindNumber, num: decimal.NewFromFloat32(x)}
	case int:
		return Value{kind: kindNumber, num: decimal.NewFromInt(int64(x))}
	case int64:
		return Value{kind: kindNumber, num: decimal.NewFromInt(x)}
	case json.Number:
		if d, err := decimal.NewFromString(x.String()); err == nil {
			return Value{kind: kindNumber, num: d}
		}
		return fromString(x.String())
	case time.Time:
		return Value{kind: kindDate, t: x}
	case []any:
		arr := make([]Value, 0, len(x))
		for _, el := range x {
			arr = append(arr, FromAny(el))
		}
		return Value{kind: kindArray, arr: arr}
	case []string:
		arr := make([]Value, 0, len(x))
		for _, el := range x {
			arr = append(arr, fromString(el))
		}
		return Value{kind: kindArray, arr: arr}
	case map[string]any:
		obj := make(map[string]Value, len(x))
		for k, el := range x {
			obj[k] = FromAny(el)
		}
		return Value{kind: kindObject, obj: obj}
	default:
		return fromString(fmt.Sprintf("%v", x))
	}
}

// fromString coerces string cells into typed values. Spreadsheet adapters
// deliver everything as text, so a numeric or boolean column must not drift
// from the typed value the snapshot stored.
func fromString(s string) Value {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Value{kind: kindNull}
	}
	switch trimmed {
	case "true", "TRUE", "True":
		return Value{kind: kindBool, b: true}
	case "false", "FALSE", "False":
		return Value{kind: kindBool, b: false}
	}
	if d, err := decimal.NewFromString(trimmed); err == nil {
		return Value{kind: kindNumber, num: d}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return Value{kind: kindDate, t: t}
		}
	}
	return Value{kind: kindString, str: trimmed}
}

// IsEmpty reports whether the value collapses to the empty sentinel: null,
// empty string, or absent all behave the same during comparison.
func (v Value) IsEmpty() bool {
	return v.kind == kindNull
}

// Canonical renders the value as a comparison key. Equal canonical strings
// define value equality: numbers lose formatting, dates collapse to UTC
// RFC3339, arrays are order-insensitive, object keys are sorted.
func (v Value) Canonical() string {
	switch v.kind {
	case kindNull:
		return ""
	case kindString:
		return v.str
	case kindNumber:
		return v.num.String()
	case kindBool:
		return strconv.FormatBool(v.b)
	case kindDate:
		return v.t.UTC().Format(time.RFC3339)
	case kindArray:
		parts := make([]string, 0, len(v.arr))
		for _, el := range v.arr {
			parts = append(parts, el.Canonical())
		}
		sort.Strings(parts)
		return "[" + strings.Join(parts, "\x1f") + "]"
	case kindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+v.obj[k].Canonical())
		}
		return "{" + strings.Join(parts, "\x1f") + "}"
	}
	return ""
}

// ValuesEqual is the single equality rule used by change detection.
func ValuesEqual(a, b Value) bool {
	return a.Canonical() == b.Canonical()
}
