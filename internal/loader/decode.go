package loader

import (
	"fmt"

	"github.com/leapstack-labs/aliasgraph/pkg/types"
	"gopkg.in/yaml.v3"
)

// decoder turns yaml.v3 nodes into declarations. It works on nodes rather
// than tagged structs so that every error carries a line number and
// unknown keys are rejected wherever they appear.
type decoder struct {
	file   string
	ns     types.Namespace
	params map[string]bool // type parameters of the alias being decoded
}

func (d *decoder) parseErr(n *yaml.Node, format string, args ...any) error {
	line := 0
	if n != nil {
		line = n.Line
	}
	return &ParseError{File: d.file, Line: line, Message: fmt.Sprintf(format, args...)}
}

// fields checks a mapping node against known keys and returns its values.
func (d *decoder) fields(n *yaml.Node, context string, known ...string) (map[string]*yaml.Node, error) {
	n = resolve(n)
	if n.Kind != yaml.MappingNode {
		return nil, d.parseErr(n, "%s must be a mapping", context)
	}

	allowed := make(map[string]bool, len(known))
	for _, k := range known {
		allowed[k] = true
	}

	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		if !allowed[key.Value] {
			return nil, &UnknownFieldError{File: d.file, Line: key.Line, Field: key.Value, Context: context}
		}
		if _, dup := out[key.Value]; dup {
			return nil, d.parseErr(key, "duplicate key %q in %s", key.Value, context)
		}
		out[key.Value] = resolve(value)
	}
	return out, nil
}

func (d *decoder) scalar(n *yaml.Node, what string) (string, error) {
	n = resolve(n)
	if n.Kind != yaml.ScalarNode {
		return "", d.parseErr(n, "%s must be a scalar", what)
	}
	return n.Value, nil
}

func (d *decoder) stringList(n *yaml.Node, what string) ([]string, error) {
	n = resolve(n)
	if n.Kind != yaml.SequenceNode {
		return nil, d.parseErr(n, "%s must be a list", what)
	}
	out := make([]string, 0, len(n.Content))
	for _, item := range n.Content {
		s, err := d.scalar(item, what)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *decoder) typeList(n *yaml.Node, what string) ([]types.Type, error) {
	n = resolve(n)
	if n.Kind != yaml.SequenceNode {
		return nil, d.parseErr(n, "%s must be a list", what)
	}
	out := make([]types.Type, 0, len(n.Content))
	for _, item := range n.Content {
		t, err := d.decodeType(item)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// qualify resolves a relative name against the file namespace.
func (d *decoder) qualify(name types.TypeName) types.TypeName {
	if name.IsAbsolute() {
		return name
	}
	return name.WithNamespace(d.ns.Join(name.Namespace()))
}

// decodeType decodes one type expression.
//
// A scalar is shorthand: a base keyword ("nil", "bool", ...) or a name
// classified by its spelling. A mapping carries exactly one kind key.
func (d *decoder) decodeType(n *yaml.Node) (types.Type, error) {
	n = resolve(n)
	switch n.Kind {
	case yaml.ScalarNode:
		return d.shorthand(n)
	case yaml.MappingNode:
	default:
		return nil, d.parseErr(n, "type must be a name or a mapping")
	}

	kind, err := d.kindKey(n)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "alias", "class", "interface":
		f, err := d.fields(n, kind, kind, "args")
		if err != nil {
			return nil, err
		}
		raw, err := d.scalar(f[kind], kind+" name")
		if err != nil {
			return nil, err
		}
		var args []types.Type
		if f["args"] != nil {
			if args, err = d.typeList(f["args"], "args"); err != nil {
				return nil, err
			}
		}
		return d.named(f[kind], kind, types.ParseTypeName(raw), args)

	case "singleton":
		if _, err := d.fields(n, kind, kind); err != nil {
			return nil, err
		}
		raw, err := d.scalar(n.Content[1], "singleton name")
		if err != nil {
			return nil, err
		}
		return &types.ClassSingleton{Name: types.ParseTypeName(raw)}, nil

	case "union", "intersection", "tuple":
		if _, err := d.fields(n, kind, kind); err != nil {
			return nil, err
		}
		members, err := d.typeList(n.Content[1], kind)
		if err != nil {
			return nil, err
		}
		switch kind {
		case "union":
			return &types.Union{Types: members}, nil
		case "intersection":
			return &types.Intersection{Types: members}, nil
		default:
			return &types.Tuple{Types: members}, nil
		}

	case "optional":
		if _, err := d.fields(n, kind, kind); err != nil {
			return nil, err
		}
		inner, err := d.decodeType(n.Content[1])
		if err != nil {
			return nil, err
		}
		return &types.Optional{Type: inner}, nil

	case "record":
		if _, err := d.fields(n, kind, kind); err != nil {
			return nil, err
		}
		return d.record(resolve(n.Content[1]))

	case "proc":
		if _, err := d.fields(n, kind, kind); err != nil {
			return nil, err
		}
		return d.proc(n.Content[1])

	case "literal":
		if _, err := d.fields(n, kind, kind); err != nil {
			return nil, err
		}
		v, err := d.scalar(n.Content[1], "literal")
		if err != nil {
			return nil, err
		}
		return &types.Literal{Value: v}, nil

	case "var":
		if _, err := d.fields(n, kind, kind); err != nil {
			return nil, err
		}
		v, err := d.scalar(n.Content[1], "type variable")
		if err != nil {
			return nil, err
		}
		return &types.Variable{Name: v}, nil

	case "base":
		if _, err := d.fields(n, kind, kind); err != nil {
			return nil, err
		}
		v, err := d.scalar(n.Content[1], "base type")
		if err != nil {
			return nil, err
		}
		k, ok := types.ParseBaseKind(v)
		if !ok {
			return nil, d.parseErr(n.Content[1], "unknown base type %q", v)
		}
		return &types.Base{Kind: k}, nil
	}

	return nil, &UnknownFieldError{File: d.file, Line: n.Line, Field: kind, Context: "type"}
}

var kindKeys = map[string]bool{
	"alias": true, "class": true, "interface": true, "singleton": true,
	"union": true, "intersection": true, "optional": true, "tuple": true,
	"record": true, "proc": true, "literal": true, "var": true, "base": true,
}

// kindKey finds the single key that names the type's kind.
func (d *decoder) kindKey(n *yaml.Node) (string, error) {
	var kind string
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		if !kindKeys[key.Value] {
			continue
		}
		if kind != "" {
			return "", d.parseErr(key, "type has both %q and %q", kind, key.Value)
		}
		kind = key.Value
	}
	if kind == "" {
		if len(n.Content) > 0 {
			key := n.Content[0]
			return "", &UnknownFieldError{File: d.file, Line: key.Line, Field: key.Value, Context: "type"}
		}
		return "", d.parseErr(n, "empty type")
	}
	return kind, nil
}

func (d *decoder) shorthand(n *yaml.Node) (types.Type, error) {
	if n.Value == "" {
		return nil, d.parseErr(n, "empty type")
	}
	if k, ok := types.ParseBaseKind(n.Value); ok {
		return &types.Base{Kind: k}, nil
	}
	if d.params[n.Value] {
		return &types.Variable{Name: n.Value}, nil
	}
	name := types.ParseTypeName(n.Value)
	switch name.Kind() {
	case types.KindAlias:
		return d.named(n, "alias", name, nil)
	case types.KindInterface:
		return d.named(n, "interface", name, nil)
	default:
		return d.named(n, "class", name, nil)
	}
}

func (d *decoder) named(n *yaml.Node, kind string, name types.TypeName, args []types.Type) (types.Type, error) {
	if name.Name == "" {
		return nil, d.parseErr(n, "empty %s name", kind)
	}
	switch kind {
	case "alias":
		if !name.IsAlias() {
			return nil, d.parseErr(n, "%s is not an alias name", name)
		}
		ref := &types.Alias{Name: d.qualify(name), Args: args}
		if !name.IsAbsolute() {
			ref.Written, ref.Context = name, d.ns
		}
		return ref, nil
	case "interface":
		return &types.Interface{Name: name, Args: args}, nil
	default:
		return &types.ClassInstance{Name: name, Args: args}, nil
	}
}

func (d *decoder) record(n *yaml.Node) (types.Type, error) {
	if n.Kind != yaml.MappingNode {
		return nil, d.parseErr(n, "record must be a mapping of field names to types")
	}
	rec := &types.Record{}
	seen := make(map[string]bool)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		if seen[key.Value] {
			return nil, d.parseErr(key, "duplicate record field %q", key.Value)
		}
		seen[key.Value] = true

		t, err := d.decodeType(n.Content[i+1])
		if err != nil {
			return nil, err
		}
		rec.Fields = append(rec.Fields, types.RecordField{Key: key.Value, Type: t})
	}
	return rec, nil
}

func (d *decoder) function(f map[string]*yaml.Node) (*types.Function, error) {
	fn := &types.Function{}
	var err error
	if n := f["params"]; n != nil {
		if fn.Required, err = d.typeList(n, "params"); err != nil {
			return nil, err
		}
	}
	if n := f["optional"]; n != nil {
		if fn.Optional, err = d.typeList(n, "optional"); err != nil {
			return nil, err
		}
	}
	if n := f["rest"]; n != nil {
		if fn.Rest, err = d.decodeType(n); err != nil {
			return nil, err
		}
	}
	if n := f["return"]; n != nil {
		if fn.Return, err = d.decodeType(n); err != nil {
			return nil, err
		}
	}
	return fn, nil
}

func (d *decoder) proc(n *yaml.Node) (types.Type, error) {
	f, err := d.fields(n, "proc", "params", "optional", "rest", "return", "block")
	if err != nil {
		return nil, err
	}
	fn, err := d.function(f)
	if err != nil {
		return nil, err
	}
	p := &types.Proc{Func: fn}

	if bn := f["block"]; bn != nil {
		bf, err := d.fields(bn, "block", "params", "optional", "rest", "return", "required")
		if err != nil {
			return nil, err
		}
		blockFn, err := d.function(bf)
		if err != nil {
			return nil, err
		}
		block := &types.Block{Func: blockFn, Required: true}
		if rn := bf["required"]; rn != nil {
			if err := rn.Decode(&block.Required); err != nil {
				return nil, d.parseErr(rn, "block.required must be a boolean")
			}
		}
		p.Block = block
	}
	return p, nil
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}
