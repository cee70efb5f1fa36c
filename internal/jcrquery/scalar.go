package jcrquery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the dynamic type held by a Scalar.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBool
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindDate:
		return "date"
	}
	return "invalid"
}

// isoMillis matches the round-trip form used for date literals.
const isoMillis = "2006-01-02T15:04:05.000Z"

// Scalar is a single constraint value: a string, number, boolean or date.
type Scalar struct {
	kind Kind
	str  string
	num  float64
	b    bool
	t    time.Time
}

func String(s string) Scalar { return Scalar{kind: KindString, str: s} }

func Number(n float64) Scalar { return Scalar{kind: KindNumber, num: n} }

func Bool(b bool) Scalar { return Scalar{kind: KindBool, b: b} }

func Date(t time.Time) Scalar { return Scalar{kind: KindDate, t: t.UTC()} }

// ScalarOf wraps a Go value. Non-finite numbers and unsupported types are rejected.
func ScalarOf(v any) (Scalar, bool) {
	switch x := v.(type) {
	case Scalar:
		return x, x.kind != KindInvalid
	case string:
		return String(x), true
	case bool:
		return Bool(x), true
	case time.Time:
		if x.IsZero() {
			return Scalar{}, false
		}
		return Date(x), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Scalar{}, false
		}
		return finite(f)
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return Number(float64(x)), true
	case int8:
		return Number(float64(x)), true
	case int16:
		return Number(float64(x)), true
	case int32:
		return Number(float64(x)), true
	case int64:
		return Number(float64(x)), true
	case uint:
		return Number(float64(x)), true
	case uint8:
		return Number(float64(x)), true
	case uint16:
		return Number(float64(x)), true
	case uint32:
		return Number(float64(x)), true
	case uint64:
		return Number(float64(x)), true
	}
	return Scalar{}, false
}

// Strings wraps each value as a string scalar.
func Strings(values ...string) []Scalar {
	out := make([]Scalar, len(values))
	for i, v := range values {
		out[i] = String(v)
	}
	return out
}

func finite(f float64) (Scalar, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Scalar{}, false
	}
	return Number(f), true
}

func (s Scalar) Kind() Kind { return s.kind }

// Value returns the wrapped Go value (string, float64, bool or time.Time).
func (s Scalar) Value() any {
	switch s.kind {
	case KindString:
		return s.str
	case KindNumber:
		return s.num
	case KindBool:
		return s.b
	case KindDate:
		return s.t
	}
	return nil
}

// String renders the value without quoting.
func (s Scalar) String() string {
	switch s.kind {
	case KindString:
		return s.str
	case KindNumber:
		return strconv.FormatFloat(s.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(s.b)
	case KindDate:
		return s.t.Format(isoMillis)
	}
	return ""
}

// Literal renders the value as a query literal. Quotes inside strings are doubled.
func (s Scalar) Literal() string {
	switch s.kind {
	case KindNumber, KindBool:
		return s.String()
	case KindString, KindDate:
		return "'" + escape(s.String()) + "'"
	}
	return "''"
}

// key distinguishes the string "1" from the number 1 when deduplicating.
func (s Scalar) key() string {
	return s.kind.String() + ":" + s.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case KindString:
		return json.Marshal(s.str)
	case KindNumber:
		return []byte(s.String()), nil
	case KindBool:
		return json.Marshal(s.b)
	case KindDate:
		return json.Marshal(map[string]string{"$date": s.t.Format(isoMillis)})
	}
	return []byte("null"), nil
}

func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Date *string `json:"$date"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return err
		}
		if wrapped.Date == nil {
			return fmt.Errorf("jcrquery: unsupported scalar object %s", data)
		}
		t, err := time.Parse(time.RFC3339Nano, *wrapped.Date)
		if err != nil {
			return fmt.Errorf("jcrquery: invalid date scalar: %w", err)
		}
		*s = Date(t)
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	v, ok := ScalarOf(raw)
	if !ok {
		return fmt.Errorf("jcrquery: unsupported scalar %s", data)
	}
	*s = v
	return nil
}
