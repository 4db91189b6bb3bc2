package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTypeName(t *testing.T) {
	tests := []struct {
		input    string
		want     string
		absolute bool
		kind     Kind
	}{
		{input: "::Foo::bar", want: "::Foo::bar", absolute: true, kind: KindAlias},
		{input: "Foo::bar", want: "Foo::bar", absolute: false, kind: KindAlias},
		{input: "bar", want: "bar", absolute: false, kind: KindAlias},
		{input: "::String", want: "::String", absolute: true, kind: KindClass},
		{input: "::Kernel::_Each", want: "::Kernel::_Each", absolute: true, kind: KindInterface},
		{input: "  ::json ", want: "::json", absolute: true, kind: KindAlias},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			name := ParseTypeName(tt.input)
			assert.Equal(t, tt.want, name.String())
			assert.Equal(t, tt.absolute, name.IsAbsolute())
			assert.Equal(t, tt.kind, name.Kind())
		})
	}
}

func TestTypeName_Comparable(t *testing.T) {
	a := ParseTypeName("::Foo::bar")
	b := NewTypeName(ParseNamespace("::Foo"), "bar")
	assert.True(t, a == b, "equal names must compare equal with ==")

	m := map[TypeName]int{a: 1}
	assert.Equal(t, 1, m[b])

	assert.Equal(t, a, ParseTypeName("Foo::bar").Absolute())
	assert.Equal(t, "Foo::bar", a.Relative().String())
	assert.Equal(t, "::Foo::", a.Namespace().String())
	assert.Equal(t, "::Foo::bar::", a.ToNamespace().String())
	assert.True(t, TypeName{}.IsZero())
}

func TestNamespace(t *testing.T) {
	ns := ParseNamespace("::A::B::")
	assert.True(t, ns.Absolute)
	assert.Equal(t, []string{"A", "B"}, ns.Path)
	assert.Equal(t, "::A::", ns.Parent().String())
	assert.Equal(t, "::A::B::C::", ns.Append("C").String())
	assert.True(t, ns.HasPrefix(ParseNamespace("::A")))
	assert.False(t, ns.HasPrefix(ParseNamespace("::B")))

	joined := ParseNamespace("::A").Join(ParseNamespace("B::C"))
	assert.Equal(t, "::A::B::C::", joined.String())
	assert.True(t, ParseNamespace("::X").Join(ParseNamespace("::Y")).Equal(ParseNamespace("::Y")))

	name, ok := ns.ToTypeName()
	require.True(t, ok)
	assert.Equal(t, "::A::B", name.String())

	_, ok = Root.ToTypeName()
	assert.False(t, ok)
	assert.Equal(t, "::", Root.String())
	assert.Equal(t, Root, Root.Parent())
}

func TestTypeName_JSON(t *testing.T) {
	data, err := json.Marshal(map[string][]TypeName{"deps": {ParseTypeName("::a"), ParseTypeName("::B::c")}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"deps":["::a","::B::c"]}`, string(data))

	var back []TypeName
	require.NoError(t, json.Unmarshal([]byte(`["::x::y"]`), &back))
	assert.Equal(t, []TypeName{ParseTypeName("::x::y")}, back)
}

func TestNameSet(t *testing.T) {
	s := NewNameSet(ParseTypeName("::b"), ParseTypeName("::a"))
	s.Add(ParseTypeName("::a"))

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has(ParseTypeName("::a")))
	assert.False(t, s.Has(ParseTypeName("::c")))
	assert.Equal(t, []string{"::a", "::b"}, s.Strings())

	c := s.Clone()
	c.Add(ParseTypeName("::c"))
	assert.Equal(t, 2, s.Len(), "clone must not alias")
}

func TestWalk(t *testing.T) {
	ty := &Union{Types: []Type{
		&Alias{Name: ParseTypeName("::a")},
		&Tuple{Types: []Type{&ClassInstance{Name: ParseTypeName("::Array"), Args: []Type{&Alias{Name: ParseTypeName("::b")}}}}},
		&Proc{
			Func:  &Function{Required: []Type{&Variable{Name: "T"}}, Return: &Alias{Name: ParseTypeName("::c")}},
			Block: &Block{Func: &Function{Rest: &Alias{Name: ParseTypeName("::d")}}, Required: true},
		},
		&Record{Fields: []RecordField{{Key: "k", Type: &Optional{Type: &Alias{Name: ParseTypeName("::e")}}}}},
	}}

	var aliases []string
	Walk(ty, func(t Type) {
		if a, ok := t.(*Alias); ok {
			aliases = append(aliases, a.Name.String())
		}
	})
	assert.Equal(t, []string{"::a", "::b", "::c", "::d", "::e"}, aliases)

	Walk(nil, func(Type) { t.Fatal("nil type must not be visited") })
}

func TestTypeString(t *testing.T) {
	decl := &AliasDecl{
		Name:   ParseTypeName("::list"),
		Params: []string{"T"},
		Type: &Union{Types: []Type{
			&Base{Kind: BaseNil},
			&Tuple{Types: []Type{&Variable{Name: "T"}, &Alias{Name: ParseTypeName("::list"), Args: []Type{&Variable{Name: "T"}}}}},
		}},
	}
	assert.Equal(t, "type ::list[T] = (nil | [T, ::list[T]])", decl.String())

	proc := &Proc{
		Func:  &Function{Required: []Type{&Literal{Value: "1"}}, Optional: []Type{&Base{Kind: BaseBool}}},
		Block: &Block{Func: &Function{Return: &Base{Kind: BaseUntyped}}},
	}
	assert.Equal(t, "^(1, ?bool) -> void ?{ () -> untyped }", proc.String())
	assert.Equal(t, "singleton(::String)", (&ClassSingleton{Name: ParseTypeName("::String")}).String())
}

func TestParseBaseKind(t *testing.T) {
	k, ok := ParseBaseKind("bot")
	assert.True(t, ok)
	assert.Equal(t, BaseBottom, k)

	_, ok = ParseBaseKind("integer")
	assert.False(t, ok)
}

func TestLocation(t *testing.T) {
	assert.Equal(t, "<unknown>", Location{}.String())
	assert.Equal(t, "sig/a.yaml", Location{File: "sig/a.yaml"}.String())
	assert.Equal(t, "sig/a.yaml:4", Location{File: "sig/a.yaml", Line: 4}.String())
}

func TestAlias_Candidates(t *testing.T) {
	collect := func(a *Alias) []string {
		var out []string
		a.Candidates(func(n TypeName) bool {
			out = append(out, n.String())
			return true
		})
		return out
	}

	t.Run("absolute reference", func(t *testing.T) {
		a := &Alias{Name: ParseTypeName("::A::y")}
		assert.Equal(t, []string{"::A::y"}, collect(a))
	})

	t.Run("relative reference searches outward", func(t *testing.T) {
		a := &Alias{
			Name:    ParseTypeName("::A::B::y"),
			Written: ParseTypeName("y"),
			Context: ParseNamespace("::A::B"),
		}
		assert.Equal(t, []string{"::A::B::y", "::A::y", "::y"}, collect(a))
	})

	t.Run("qualified relative reference", func(t *testing.T) {
		a := &Alias{
			Name:    ParseTypeName("::A::C::y"),
			Written: ParseTypeName("C::y"),
			Context: ParseNamespace("::A"),
		}
		assert.Equal(t, []string{"::A::C::y", "::C::y"}, collect(a))
	})

	t.Run("stops early", func(t *testing.T) {
		a := &Alias{
			Name:    ParseTypeName("::A::y"),
			Written: ParseTypeName("y"),
			Context: ParseNamespace("::A"),
		}
		var seen int
		a.Candidates(func(TypeName) bool {
			seen++
			return false
		})
		assert.Equal(t, 1, seen)
	})
}
