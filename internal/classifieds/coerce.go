package classifieds

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/cast"
)

// Node wrappers coming from a host adapter implement these to expose typed
// values. Each returns false when the value is unavailable.
type (
	NumberValuer interface {
		NumberValue() (float64, bool)
	}
	BoolValuer interface {
		BoolValue() (bool, bool)
	}
	TimeValuer interface {
		TimeValue() (time.Time, bool)
	}
	StringValuer interface {
		StringValue() (string, bool)
	}
)

// ToString renders scalars and string-like wrappers. Maps, slices and
// structs without a string accessor are rejected.
func ToString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case StringValuer:
		return x.StringValue()
	case fmt.Stringer:
		return x.String(), true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", false
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer, reflect.Func, reflect.Chan:
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	return s, true
}

// NonEmptyString is ToString trimmed, rejecting blank results.
func NonEmptyString(v any) (string, bool) {
	s, ok := ToString(v)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

var leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// parseFloatPrefix reads the longest numeric prefix of s, so "12.5 EUR"
// yields 12.5.
func parseFloatPrefix(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	m := leadingFloat.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseNumber coerces v to a finite float. Commas in strings are read as
// decimal points and booleans map to 1 and 0.
func ParseNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		return parseFloatPrefix(strings.ReplaceAll(x, ",", "."))
	case json.Number:
		return parseFloatPrefix(x.String())
	case time.Time:
		return 0, false
	case NumberValuer:
		f, ok := x.NumberValue()
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case StringValuer:
		s, ok := x.StringValue()
		if !ok {
			return 0, false
		}
		return ParseNumber(s)
	case fmt.Stringer:
		return ParseNumber(x.String())
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
	default:
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// BoolFrom never fails: unrecognised input is false.
func BoolFrom(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1", "yes", "on", "y":
			return true
		}
		return false
	case BoolValuer:
		b, ok := x.BoolValue()
		return ok && b
	case NumberValuer:
		f, ok := x.NumberValue()
		return ok && f != 0
	case StringValuer:
		s, ok := x.StringValue()
		return ok && BoolFrom(s)
	case fmt.Stringer:
		return BoolFrom(x.String())
	}
	if f, ok := ParseNumber(v); ok {
		return f != 0
	}
	return false
}

// ToTime accepts time values, epoch milliseconds and date strings in any
// layout dateparse recognises. Zone-less strings are read as UTC.
func ToTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return x, !x.IsZero()
	case *time.Time:
		if x == nil || x.IsZero() {
			return time.Time{}, false
		}
		return *x, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		t, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case TimeValuer:
		t, ok := x.TimeValue()
		return t, ok && !t.IsZero()
	case StringValuer:
		s, ok := x.StringValue()
		if !ok {
			return time.Time{}, false
		}
		return ToTime(s)
	case fmt.Stringer:
		return ToTime(x.String())
	case bool:
		return time.Time{}, false
	}
	if ms, ok := ParseNumber(v); ok {
		return time.UnixMilli(int64(ms)).UTC(), true
	}
	return time.Time{}, false
}

// ToSlice flattens a list value, dropping nil elements. A single non-list
// value becomes a one-element slice.
func ToSlice(v any) []any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return []any{v}
	}
	out := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i).Interface()
		if item == nil {
			continue
		}
		out = append(out, item)
	}
	return out
}
