package types

import (
	"fmt"
	"strings"
)

// Type is a node of a type expression.
// EachType visits the direct sub-expressions in source order.
type Type interface {
	fmt.Stringer
	EachType(fn func(Type))
}

// BaseKind enumerates the built-in leaf types.
type BaseKind string

const (
	BaseBool     BaseKind = "bool"
	BaseVoid     BaseKind = "void"
	BaseUntyped  BaseKind = "untyped"
	BaseNil      BaseKind = "nil"
	BaseTop      BaseKind = "top"
	BaseBottom   BaseKind = "bot"
	BaseSelf     BaseKind = "self"
	BaseInstance BaseKind = "instance"
	BaseClass    BaseKind = "class"
)

// ParseBaseKind validates a base type keyword.
func ParseBaseKind(s string) (BaseKind, bool) {
	switch k := BaseKind(s); k {
	case BaseBool, BaseVoid, BaseUntyped, BaseNil, BaseTop, BaseBottom, BaseSelf, BaseInstance, BaseClass:
		return k, true
	}
	return "", false
}

// Base is a built-in leaf type.
type Base struct {
	Kind BaseKind
}

func (t *Base) String() string      { return string(t.Kind) }
func (t *Base) EachType(func(Type)) {}

// Variable is a type parameter reference.
type Variable struct {
	Name string
}

func (t *Variable) String() string      { return t.Name }
func (t *Variable) EachType(func(Type)) {}

// Literal is a literal type such as 1, :sym or "str".
type Literal struct {
	Value string
}

func (t *Literal) String() string      { return t.Value }
func (t *Literal) EachType(func(Type)) {}

// Alias references a type alias, optionally applied to arguments.
type Alias struct {
	Name TypeName
	Args []Type
	// Written is the name as it appeared in a relative reference and
	// Context the namespace it appeared in. Both are zero for absolute
	// references.
	Written TypeName
	Context Namespace
}

// Candidates yields the names the reference may denote, innermost first:
// Name, then Written in each namespace enclosing Context out to the root.
func (t *Alias) Candidates(yield func(TypeName) bool) {
	if !yield(t.Name) {
		return
	}
	if t.Written.IsZero() || t.Written.IsAbsolute() {
		return
	}
	for ns := t.Context; !ns.IsEmpty(); {
		ns = ns.Parent()
		if !yield(t.Written.WithNamespace(ns.Join(t.Written.Namespace()))) {
			return
		}
	}
}

func (t *Alias) String() string { return applied(t.Name.String(), t.Args) }
func (t *Alias) EachType(fn func(Type)) {
	each(t.Args, fn)
}

// ClassInstance references a class, optionally applied to arguments.
type ClassInstance struct {
	Name TypeName
	Args []Type
}

func (t *ClassInstance) String() string { return applied(t.Name.String(), t.Args) }
func (t *ClassInstance) EachType(fn func(Type)) {
	each(t.Args, fn)
}

// Interface references an interface, optionally applied to arguments.
type Interface struct {
	Name TypeName
	Args []Type
}

func (t *Interface) String() string { return applied(t.Name.String(), t.Args) }
func (t *Interface) EachType(fn func(Type)) {
	each(t.Args, fn)
}

// ClassSingleton is the singleton type of a class.
type ClassSingleton struct {
	Name TypeName
}

func (t *ClassSingleton) String() string      { return "singleton(" + t.Name.String() + ")" }
func (t *ClassSingleton) EachType(func(Type)) {}

// Union is T1 | T2 | ...
type Union struct {
	Types []Type
}

func (t *Union) String() string { return "(" + joined(t.Types, " | ") + ")" }
func (t *Union) EachType(fn func(Type)) {
	each(t.Types, fn)
}

// Intersection is T1 & T2 & ...
type Intersection struct {
	Types []Type
}

func (t *Intersection) String() string { return "(" + joined(t.Types, " & ") + ")" }
func (t *Intersection) EachType(fn func(Type)) {
	each(t.Types, fn)
}

// Optional is T?
type Optional struct {
	Type Type
}

func (t *Optional) String() string { return t.Type.String() + "?" }
func (t *Optional) EachType(fn func(Type)) {
	fn(t.Type)
}

// Tuple is [T1, T2, ...]
type Tuple struct {
	Types []Type
}

func (t *Tuple) String() string { return "[" + joined(t.Types, ", ") + "]" }
func (t *Tuple) EachType(fn func(Type)) {
	each(t.Types, fn)
}

// RecordField is one key of a record type.
type RecordField struct {
	Key  string
	Type Type
}

// Record is { key: T, ... }. Field order is preserved.
type Record struct {
	Fields []RecordField
}

func (t *Record) String() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.Key + ": " + f.Type.String()
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func (t *Record) EachType(fn func(Type)) {
	for _, f := range t.Fields {
		fn(f.Type)
	}
}

// Function is a parameter list with a return type.
type Function struct {
	Required []Type
	Optional []Type
	Rest     Type
	Return   Type
}

func (t *Function) String() string {
	params := make([]string, 0, len(t.Required)+len(t.Optional)+1)
	for _, p := range t.Required {
		params = append(params, p.String())
	}
	for _, p := range t.Optional {
		params = append(params, "?"+p.String())
	}
	if t.Rest != nil {
		params = append(params, "*"+t.Rest.String())
	}
	ret := "void"
	if t.Return != nil {
		ret = t.Return.String()
	}
	return "(" + strings.Join(params, ", ") + ") -> " + ret
}

func (t *Function) EachType(fn func(Type)) {
	each(t.Required, fn)
	each(t.Optional, fn)
	if t.Rest != nil {
		fn(t.Rest)
	}
	if t.Return != nil {
		fn(t.Return)
	}
}

// Block is the block signature accepted by a proc.
type Block struct {
	Func     *Function
	Required bool
}

func (t *Block) String() string {
	s := "{ " + t.Func.String() + " }"
	if !t.Required {
		s = "?" + s
	}
	return s
}

func (t *Block) EachType(fn func(Type)) {
	if t.Func != nil {
		fn(t.Func)
	}
}

// Proc is ^(params) { block } -> return.
type Proc struct {
	Func  *Function
	Block *Block
}

func (t *Proc) String() string {
	if t.Block == nil {
		return "^" + t.Func.String()
	}
	return "^" + t.Func.String() + " " + t.Block.String()
}

func (t *Proc) EachType(fn func(Type)) {
	if t.Func != nil {
		fn(t.Func)
	}
	if t.Block != nil {
		fn(t.Block)
	}
}

// Walk visits t and every nested sub-expression in pre-order.
func Walk(t Type, fn func(Type)) {
	if t == nil {
		return
	}
	fn(t)
	t.EachType(func(child Type) {
		Walk(child, fn)
	})
}

func each(ts []Type, fn func(Type)) {
	for _, t := range ts {
		fn(t)
	}
}

func joined(ts []Type, sep string) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, sep)
}

func applied(name string, args []Type) string {
	if len(args) == 0 {
		return name
	}
	return name + "[" + joined(args, ", ") + "]"
}
