// Package query builds the store neutral filter used by record listings and runs it
// against a Finder.
package query

import (
	"errors"
	"strings"
)

// ErrInvalidSortKey is returned by a store that cannot represent a resume
// value, for example a non ObjectID id on MongoDB.
var ErrInvalidSortKey = errors.New("invalid sort key")

// Condition is a node of a store neutral filter tree. Stores translate the
// tree into their own query language.
type Condition interface {
	condition()
}

// And matches when every child matches. An empty And matches everything.
type And []Condition

// Or matches when any child matches. An empty Or matches nothing.
type Or []Condition

// Eq matches when Field equals Value exactly.
type Eq struct {
	Field string
	Value string
}

// ContainsFold matches when Field contains Value, ignoring case.
type ContainsFold struct {
	Field string
	Value string
}

// After matches when Field sorts strictly after Value.
type After struct {
	Field string
	Value string
}

func (And) condition()          {}
func (Or) condition()           {}
func (Eq) condition()           {}
func (ContainsFold) condition() {}
func (After) condition()        {}

// Sort orders results ascending by Field.
type Sort struct {
	Field string
}

// Evaluate reports whether the item described by get satisfies c.
// get returns the string value of a named field.
func Evaluate(c Condition, get func(field string) string) bool {
	switch c := c.(type) {
	case nil:
		return true
	case And:
		for _, child := range c {
			if !Evaluate(child, get) {
				return false
			}
		}
		return true
	case Or:
		for _, child := range c {
			if Evaluate(child, get) {
				return true
			}
		}
		return false
	case Eq:
		return get(c.Field) == c.Value
	case ContainsFold:
		return strings.Contains(strings.ToLower(get(c.Field)), strings.ToLower(c.Value))
	case After:
		return get(c.Field) > c.Value
	default:
		return false
	}
}
