// Package core holds the identity model and the remote boundary contracts
// shared by every batch helper in this library.
package core

import "strconv"

// Value is an identity value carried by a batch item: either a string
// external id or a numeric internal id. The zero Value is the empty
// string identity. Value is comparable and safe to use as a map key.
type Value struct {
	str   string
	num   int64
	isNum bool
}

// StringValue creates a Value holding a string identity.
func StringValue(s string) Value {
	return Value{str: s}
}

// IntValue creates a Value holding a numeric identity.
func IntValue(n int64) Value {
	return Value{num: n, isNum: true}
}

// IsNumeric reports whether the value holds a numeric identity.
func (v Value) IsNumeric() bool {
	return v.isNum
}

// Int returns the numeric identity, or 0 for string values.
func (v Value) Int() int64 {
	return v.num
}

// Str returns the string identity, or "" for numeric values.
func (v Value) Str() string {
	return v.str
}

// Raw returns the underlying identity as an any, for serialization.
func (v Value) Raw() any {
	if v.isNum {
		return v.num
	}
	return v.str
}

// String implements fmt.Stringer.
func (v Value) String() string {
	if v.isNum {
		return strconv.FormatInt(v.num, 10)
	}
	return v.str
}

// ValueSet is a membership set of identity values.
type ValueSet map[Value]struct{}

// NewValueSet builds a ValueSet from the given values.
func NewValueSet(values ...Value) ValueSet {
	set := make(ValueSet, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// Contains reports whether v is in the set.
func (s ValueSet) Contains(v Value) bool {
	_, ok := s[v]
	return ok
}

// Values returns the members of the set in unspecified order.
func (s ValueSet) Values() []Value {
	out := make([]Value, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	return out
}
