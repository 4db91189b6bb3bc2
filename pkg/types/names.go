// Package types defines type names and the type expression tree walked by
// the alias dependency analysis.
//
// Names follow a Ruby-signature-like convention: namespaces are separated
// by "::", a leading "::" marks an absolute name, aliases start with a
// lowercase letter, interfaces with "_" and classes with an uppercase
// letter.
package types

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Separator joins namespace components.
const Separator = "::"

// Kind classifies a TypeName by its spelling.
type Kind int

const (
	KindClass Kind = iota
	KindAlias
	KindInterface
)

func (k Kind) String() string {
	switch k {
	case KindAlias:
		return "alias"
	case KindInterface:
		return "interface"
	default:
		return "class"
	}
}

// Namespace is a (possibly absolute) path of module names.
type Namespace struct {
	Path     []string
	Absolute bool
}

// Root is the absolute empty namespace "::".
var Root = Namespace{Absolute: true}

// ParseNamespace parses "::A::B::", "A::B" or "::".
func ParseNamespace(s string) Namespace {
	s = strings.TrimSpace(s)
	ns := Namespace{Absolute: strings.HasPrefix(s, Separator)}
	s = strings.TrimPrefix(s, Separator)
	s = strings.TrimSuffix(s, Separator)
	if s != "" {
		ns.Path = strings.Split(s, Separator)
	}
	return ns
}

// IsEmpty reports whether the namespace has no components.
func (ns Namespace) IsEmpty() bool {
	return len(ns.Path) == 0
}

// Append returns ns extended with name.
func (ns Namespace) Append(name string) Namespace {
	path := make([]string, 0, len(ns.Path)+1)
	path = append(path, ns.Path...)
	path = append(path, name)
	return Namespace{Path: path, Absolute: ns.Absolute}
}

// Parent drops the last component. The parent of an empty namespace is
// itself.
func (ns Namespace) Parent() Namespace {
	if ns.IsEmpty() {
		return ns
	}
	return Namespace{Path: ns.Path[:len(ns.Path)-1], Absolute: ns.Absolute}
}

// Join resolves other against ns. Absolute namespaces are returned as-is.
func (ns Namespace) Join(other Namespace) Namespace {
	if other.Absolute {
		return other
	}
	path := make([]string, 0, len(ns.Path)+len(other.Path))
	path = append(path, ns.Path...)
	path = append(path, other.Path...)
	return Namespace{Path: path, Absolute: ns.Absolute}
}

// ToTypeName converts "::A::B" into the type name "::A::B".
// The empty namespace has no type name and returns false.
func (ns Namespace) ToTypeName() (TypeName, bool) {
	if ns.IsEmpty() {
		return TypeName{}, false
	}
	return NewTypeName(ns.Parent(), ns.Path[len(ns.Path)-1]), true
}

// HasPrefix reports whether prefix's path leads ns's path.
func (ns Namespace) HasPrefix(prefix Namespace) bool {
	if len(prefix.Path) > len(ns.Path) {
		return false
	}
	return slices.Equal(ns.Path[:len(prefix.Path)], prefix.Path)
}

// Equal compares namespaces by value.
func (ns Namespace) Equal(other Namespace) bool {
	return ns.Absolute == other.Absolute && slices.Equal(ns.Path, other.Path)
}

func (ns Namespace) String() string {
	var b strings.Builder
	if ns.Absolute {
		b.WriteString(Separator)
	}
	for _, p := range ns.Path {
		b.WriteString(p)
		b.WriteString(Separator)
	}
	return b.String()
}

// TypeName identifies a class, interface or alias.
//
// TypeName is comparable and is used directly as a graph node. Namespace
// paths are stored joined so two equal names compare equal with ==.
type TypeName struct {
	ns   string
	Name string
}

// NewTypeName builds a type name inside ns.
func NewTypeName(ns Namespace, name string) TypeName {
	return TypeName{ns: ns.String(), Name: name}
}

// ParseTypeName parses "::Foo::bar", "Foo::bar" or "bar".
func ParseTypeName(s string) TypeName {
	s = strings.TrimSpace(s)
	abs := strings.HasPrefix(s, Separator)
	s = strings.TrimPrefix(s, Separator)
	parts := strings.Split(s, Separator)
	ns := Namespace{Path: parts[:len(parts)-1], Absolute: abs}
	return NewTypeName(ns, parts[len(parts)-1])
}

// Namespace returns the enclosing namespace.
func (n TypeName) Namespace() Namespace {
	return ParseNamespace(n.ns)
}

// IsAbsolute reports whether the name starts with "::".
func (n TypeName) IsAbsolute() bool {
	return strings.HasPrefix(n.ns, Separator)
}

// Absolute roots a relative name at "::".
func (n TypeName) Absolute() TypeName {
	if n.IsAbsolute() {
		return n
	}
	return TypeName{ns: Separator + n.ns, Name: n.Name}
}

// Relative strips the leading "::".
func (n TypeName) Relative() TypeName {
	return TypeName{ns: strings.TrimPrefix(n.ns, Separator), Name: n.Name}
}

// WithNamespace replaces the enclosing namespace.
func (n TypeName) WithNamespace(ns Namespace) TypeName {
	return NewTypeName(ns, n.Name)
}

// ToNamespace converts "::A::B" into the namespace "::A::B::".
func (n TypeName) ToNamespace() Namespace {
	return n.Namespace().Append(n.Name)
}

// Kind classifies the name by its first character.
func (n TypeName) Kind() Kind {
	r, _ := utf8.DecodeRuneInString(n.Name)
	switch {
	case r == '_':
		return KindInterface
	case unicode.IsLower(r):
		return KindAlias
	default:
		return KindClass
	}
}

// IsAlias reports whether the name spells a type alias.
func (n TypeName) IsAlias() bool {
	return n.Kind() == KindAlias
}

// IsZero reports whether n is the zero TypeName.
func (n TypeName) IsZero() bool {
	return n.ns == "" && n.Name == ""
}

func (n TypeName) String() string {
	return n.ns + n.Name
}

// MarshalText implements encoding.TextMarshaler so names render as
// strings in JSON output and map keys.
func (n TypeName) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *TypeName) UnmarshalText(b []byte) error {
	*n = ParseTypeName(string(b))
	return nil
}

// Compare orders names by their string form.
func Compare(a, b TypeName) int {
	return cmp.Compare(a.String(), b.String())
}

// SortNames sorts names in place.
func SortNames(names []TypeName) {
	slices.SortFunc(names, Compare)
}
