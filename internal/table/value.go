// Package table holds the typed cell values and column-ordered tables that
// flow between the reshaping stages and the CSV writer.
package table

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies what a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
)

// Value is a single cell. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	i    int64
	f    float64
}

// Null returns the null value.
func Null() Value { return Value{} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int wraps an integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a float. NaN is a valid float and marks an undefined ratio.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool wraps a boolean.
func Bool(b bool) Value {
	if b {
		return Value{kind: KindBool, i: 1}
	}
	return Value{kind: KindBool}
}

// NaN is the non-numeric sentinel used for undefined ratios.
func NaN() Value { return Float(math.NaN()) }

// IntPtr returns Int(*p) or Null for a nil pointer.
func IntPtr(p *int) Value {
	if p == nil {
		return Null()
	}
	return Int(int64(*p))
}

// StringPtr returns String(*p) or Null for a nil pointer.
func StringPtr(p *string) Value {
	if p == nil {
		return Null()
	}
	return String(*p)
}

func (v Value) Kind() Kind       { return v.kind }
func (v Value) IsNull() bool     { return v.kind == KindNull }
func (v Value) IsNaN() bool      { return v.kind == KindFloat && math.IsNaN(v.f) }
func (v Value) Text() string     { return v.str }
func (v Value) Int64() int64     { return v.i }
func (v Value) Float64() float64 { return v.f }

// Number coerces the value to a float the way a lenient numeric parse
// would. Strings are trimmed and parsed; null, NaN, bools and unparsable
// strings report false.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		if math.IsNaN(v.f) {
			return 0, false
		}
		return v.f, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Format renders the value for a CSV cell. Null and NaN render empty,
// infinities as inf/-inf, floats in their shortest round-trip form.
func (v Value) Format() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		switch {
		case math.IsNaN(v.f):
			return ""
		case math.IsInf(v.f, 1):
			return "inf"
		case math.IsInf(v.f, -1):
			return "-inf"
		}
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		if v.i != 0 {
			return "True"
		}
		return "False"
	default:
		return ""
	}
}

// Equal reports whether two values hold the same kind and content. NaN
// equals NaN here so tables can be compared in tests.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindFloat:
		if math.IsNaN(v.f) || math.IsNaN(o.f) {
			return math.IsNaN(v.f) && math.IsNaN(o.f)
		}
		return v.f == o.f
	case KindString:
		return v.str == o.str
	case KindInt, KindBool:
		return v.i == o.i
	default:
		return true
	}
}

// ParseNumber turns a string fragment into Int or Float when it is
// numeric, and reports false otherwise.
func ParseNumber(s string) (Value, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Null(), false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f), true
	}
	return Null(), false
}
