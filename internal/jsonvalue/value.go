// Package jsonvalue parses JSON text into an untyped tree that keeps object
// keys in input order. It performs no schema checking: any syntactically
// valid document is accepted.
package jsonvalue

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind identifies the concrete type of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a node of the parsed tree. The set of implementations is closed:
// Null, Bool, Number, String, Array and *Object.
type Value interface {
	Kind() Kind
	isValue()
}

// Null is the JSON null literal.
type Null struct{}

// Bool is a JSON boolean.
type Bool bool

// Number holds the literal text of a JSON number. Conversions are explicit
// so callers decide whether fractions or out of range values are errors.
type Number string

// String is a JSON string.
type String string

// Array is a JSON array.
type Array []Value

func (Null) Kind() Kind    { return KindNull }
func (Bool) Kind() Kind    { return KindBool }
func (Number) Kind() Kind  { return KindNumber }
func (String) Kind() Kind  { return KindString }
func (Array) Kind() Kind   { return KindArray }
func (*Object) Kind() Kind { return KindObject }

func (Null) isValue()    {}
func (Bool) isValue()    {}
func (Number) isValue()  {}
func (String) isValue()  {}
func (Array) isValue()   {}
func (*Object) isValue() {}

// Int64 returns n as an integer. Literals with a fraction or exponent and
// values outside the int64 range fail.
func (n Number) Int64() (int64, error) {
	if strings.ContainsAny(string(n), ".eE") {
		return 0, fmt.Errorf("%s is not an integer", string(n))
	}
	return strconv.ParseInt(string(n), 10, 64)
}

// IntInRange returns n as an integer if it lies within [lo, hi].
func (n Number) IntInRange(lo, hi int64) (int64, error) {
	i, err := n.Int64()
	if err != nil {
		return 0, err
	}
	if i < lo || i > hi {
		return 0, fmt.Errorf("%d is out of range [%d, %d]", i, lo, hi)
	}
	return i, nil
}

// Uint32 returns n as an unsigned 32-bit integer.
func (n Number) Uint32() (uint32, error) {
	i, err := n.IntInRange(0, math.MaxUint32)
	return uint32(i), err
}

// Int32 returns n as a signed 32-bit integer.
func (n Number) Int32() (int32, error) {
	i, err := n.IntInRange(math.MinInt32, math.MaxInt32)
	return int32(i), err
}

// Float64 returns n as a float.
func (n Number) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// Object is a JSON object whose keys iterate in the order they were first
// seen in the input.
type Object struct {
	m *orderedmap.OrderedMap[string, Value]
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{m: orderedmap.New[string, Value]()}
}

// Set stores v under key and reports whether key was already present. An
// existing key keeps its original position.
func (o *Object) Set(key string, v Value) (replaced bool) {
	_, replaced = o.m.Set(key, v)
	return replaced
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return nil, false
	}
	return o.m.Get(key)
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return o.m.Len()
}

// Keys returns the keys in input order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	keys := make([]string, 0, o.m.Len())
	for pair := o.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Range calls fn for each entry in input order until fn returns false.
func (o *Object) Range(fn func(key string, v Value) bool) {
	if o == nil {
		return
	}
	for pair := o.m.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}
