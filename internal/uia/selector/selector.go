// Package selector defines the query language used to find accessibility
// elements and its parser. Parsing is total: malformed input yields an
// Invalid node carrying a human-readable message, never an error or panic.
package selector

import (
	"fmt"
	"sort"
	"strings"
)

// Selector is one node of a parsed selector expression.
type Selector interface {
	sel()
	String() string
}

// Role matches by role, optionally constrained by name.
type Role struct {
	Role string
	Name string
}

// Name matches by exact name.
type Name struct{ Value string }

// Text matches by descendant text content.
type Text struct{ Value string }

// ID matches the stable element identity hash (the "#id" form).
type ID struct{ Value string }

// NativeID matches the platform automation id.
type NativeID struct{ Value string }

// ClassName matches the platform class name.
type ClassName struct{ Value string }

// Visible filters by visibility.
type Visible struct{ Value bool }

// Nth selects by position; negative indexes count from the end.
type Nth struct{ Index int }

// Attributes matches free-form attribute pairs.
type Attributes struct{ Attrs map[string]string }

// Path navigates a slash-separated child-index path from the scope root.
type Path struct{ Value string }

// App scopes the search to an application by name. Matching applies a
// shallow depth bound by default.
type App struct{ Name string }

// And intersects its operands; it has at least two after parsing.
type And struct{ Operands []Selector }

// Or unions its operands in first-match-first order; at least two after
// parsing.
type Or struct{ Operands []Selector }

// Not complements its inner selector relative to the search scope.
type Not struct{ Inner Selector }

// Chain composes descendant scopes left to right.
type Chain struct{ Steps []Selector }

// Invalid preserves a parse failure. It short-circuits matching and
// propagates as an InvalidSelector error.
type Invalid struct{ Message string }

func (Role) sel()       {}
func (Name) sel()       {}
func (Text) sel()       {}
func (ID) sel()         {}
func (NativeID) sel()   {}
func (ClassName) sel()  {}
func (Visible) sel()    {}
func (Nth) sel()        {}
func (Attributes) sel() {}
func (Path) sel()       {}
func (App) sel()        {}
func (And) sel()        {}
func (Or) sel()         {}
func (Not) sel()        {}
func (Chain) sel()      {}
func (Invalid) sel()    {}

func (s Role) String() string {
	if s.Name != "" {
		return fmt.Sprintf("role:%s|%s", s.Role, s.Name)
	}
	return "role:" + s.Role
}
func (s Name) String() string      { return "name:" + s.Value }
func (s Text) String() string      { return "text:" + s.Value }
func (s ID) String() string        { return "#" + s.Value }
func (s NativeID) String() string  { return "nativeid:" + s.Value }
func (s ClassName) String() string { return "classname:" + s.Value }
func (s Visible) String() string   { return fmt.Sprintf("visible:%t", s.Value) }
func (s Nth) String() string       { return fmt.Sprintf("nth:%d", s.Index) }
func (s Path) String() string      { return "path:" + s.Value }
func (s App) String() string       { return "app:" + s.Name }
func (s Invalid) String() string   { return "invalid(" + s.Message + ")" }

func (s Attributes) String() string {
	keys := make([]string, 0, len(s.Attrs))
	for k := range s.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+s.Attrs[k])
	}
	return strings.Join(parts, " ")
}

func (s And) String() string   { return "(" + join(s.Operands, " && ") + ")" }
func (s Or) String() string    { return "(" + join(s.Operands, " || ") + ")" }
func (s Not) String() string   { return "!" + s.Inner.String() }
func (s Chain) String() string { return join(s.Steps, " >> ") }

func join(sels []Selector, sep string) string {
	parts := make([]string, 0, len(sels))
	for _, s := range sels {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, sep)
}

// IsInvalid reports whether any node of the selector tree is Invalid and
// returns its message.
func IsInvalid(s Selector) (string, bool) {
	switch t := s.(type) {
	case Invalid:
		return t.Message, true
	case Not:
		return IsInvalid(t.Inner)
	case And:
		return firstInvalid(t.Operands)
	case Or:
		return firstInvalid(t.Operands)
	case Chain:
		return firstInvalid(t.Steps)
	}
	return "", false
}

func firstInvalid(sels []Selector) (string, bool) {
	for _, s := range sels {
		if msg, bad := IsInvalid(s); bad {
			return msg, true
		}
	}
	return "", false
}
