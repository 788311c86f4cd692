package archive

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/go-scope/internal/signal"
)

// ValueKind tags the scalar held by a Value.
type ValueKind int

const (
	ValueFloat ValueKind = iota
	ValueString
	ValueBool
)

// Value is a typed metadata scalar.
type Value struct {
	kind ValueKind
	f    float64
	s    string
	b    bool
}

func FloatValue(v float64) Value { return Value{kind: ValueFloat, f: v} }
func StringValue(v string) Value { return Value{kind: ValueString, s: v} }
func BoolValue(v bool) Value     { return Value{kind: ValueBool, b: v} }

// Kind reports which scalar v holds.
func (v Value) Kind() ValueKind { return v.kind }

// Float returns the number held by v; ok is false for other kinds.
func (v Value) Float() (f float64, ok bool) { return v.f, v.kind == ValueFloat }

// Str returns the text held by v; ok is false for other kinds.
func (v Value) Str() (s string, ok bool) { return v.s, v.kind == ValueString }

// Bool returns the flag held by v; ok is false for other kinds.
func (v Value) Bool() (b, ok bool) { return v.b, v.kind == ValueBool }

// String formats v for display.
func (v Value) String() string {
	switch v.kind {
	case ValueFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

// encode renders v with a one-letter type prefix so decode can restore the kind.
func (v Value) encode() string {
	switch v.kind {
	case ValueFloat:
		return "f:" + strconv.FormatFloat(v.f, 'g', -1, 64)
	case ValueBool:
		return "b:" + strconv.FormatBool(v.b)
	default:
		return "s:" + v.s
	}
}

func decodeValue(s string) (Value, error) {
	tag, body, ok := strings.Cut(s, ":")
	if !ok {
		return Value{}, fmt.Errorf("untyped metadata value %q", s)
	}
	switch tag {
	case "f":
		f, err := strconv.ParseFloat(body, 64)
		if err != nil {
			return Value{}, fmt.Errorf("metadata float %q: %w", body, err)
		}
		return FloatValue(f), nil
	case "b":
		b, err := strconv.ParseBool(body)
		if err != nil {
			return Value{}, fmt.Errorf("metadata bool %q: %w", body, err)
		}
		return BoolValue(b), nil
	case "s":
		return StringValue(body), nil
	}
	return Value{}, fmt.Errorf("unknown metadata tag %q", tag)
}

// Metadata describes an archived capture.
type Metadata struct {
	ID        string
	Timestamp time.Time
	Rate      float64
	Kind      signal.Kind
	// Legacy is set for files written without a rate or kind.
	Legacy bool
	Extra  map[string]Value
}

// Float looks up a numeric extra field.
func (m Metadata) Float(key string) (float64, bool) {
	v, ok := m.Extra[key]
	if !ok {
		return 0, false
	}
	return v.Float()
}

// Display formats the rate and every extra field for listings. A few well-known
// fields get units.
func (m Metadata) Display() map[string]string {
	out := make(map[string]string, len(m.Extra)+1)
	out[keyRate] = fmt.Sprintf("%.0f", m.Rate)
	for k, v := range m.Extra {
		out[k] = v.String()
		f, ok := v.Float()
		if !ok {
			continue
		}
		switch k {
		case "dominant_freq":
			out[k] = fmt.Sprintf("%.1f Hz", f)
		case "peak_voltage":
			out[k] = fmt.Sprintf("%.3f V", f)
		}
	}
	return out
}
