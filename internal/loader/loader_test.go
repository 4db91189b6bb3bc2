package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/aliasgraph/internal/testutil"
	"github.com/leapstack-labs/aliasgraph/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFile(t *testing.T) {
	content := `namespace: ::Shapes
module_aliases:
  - name: Geo
    target: ::Shapes::Geometry
aliases:
  - name: point
    type:
      tuple: [Integer, Integer]
  - name: path
    params: [T]
    type:
      union:
        - nil
        - tuple: [point, T, path]
`
	file, err := ParseFile("shapes.yaml", []byte(content))
	require.NoError(t, err)

	assert.Equal(t, "::Shapes::", file.Namespace.String())
	require.Len(t, file.ModuleAliases, 1)
	assert.Equal(t, "::Shapes::Geo::", file.ModuleAliases[0].Name.String())
	assert.Equal(t, "::Shapes::Geometry::", file.ModuleAliases[0].Target.String())
	assert.Equal(t, 3, file.ModuleAliases[0].Location.Line)

	require.Len(t, file.Decls, 2)
	point := file.Decls[0]
	assert.Equal(t, "::Shapes::point", point.Name.String())
	assert.Equal(t, types.Location{File: "shapes.yaml", Line: 6}, point.Location)
	assert.Equal(t, "[Integer, Integer]", point.Type.String())

	path := file.Decls[1]
	assert.Equal(t, []string{"T"}, path.Params)
	assert.Equal(t, "type ::Shapes::path[T] = (nil | [::Shapes::point, T, ::Shapes::path])", path.String())

	tuple := path.Type.(*types.Union).Types[1].(*types.Tuple)
	assert.IsType(t, &types.Variable{}, tuple.Types[1], "type parameters decode as variables")

	point0 := tuple.Types[0].(*types.Alias)
	assert.Equal(t, "point", point0.Written.String())
	assert.Equal(t, "::Shapes::", point0.Context.String())
}

func TestParseFile_AbsoluteReference(t *testing.T) {
	content := "namespace: ::A\naliases:\n  - name: x\n    type: ::y\n"
	file, err := ParseFile("a.yaml", []byte(content))
	require.NoError(t, err)

	require.Len(t, file.Decls, 1)
	ref := file.Decls[0].Type.(*types.Alias)
	assert.Equal(t, "::y", ref.Name.String())
	assert.True(t, ref.Written.IsZero(), "absolute references are not searched outward")
}

func TestParseFile_TypeForms(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "base keyword",
			yaml: "bool",
			want: "bool",
		},
		{
			name: "explicit base",
			yaml: "{base: untyped}",
			want: "untyped",
		},
		{
			name: "class with args",
			yaml: "{class: Array, args: [String]}",
			want: "Array[String]",
		},
		{
			name: "interface shorthand",
			yaml: "_Each",
			want: "_Each",
		},
		{
			name: "generic alias",
			yaml: "{alias: list, args: [Integer]}",
			want: "::list[Integer]",
		},
		{
			name: "absolute alias kept",
			yaml: "::Other::thing",
			want: "::Other::thing",
		},
		{
			name: "singleton",
			yaml: "{singleton: Integer}",
			want: "singleton(Integer)",
		},
		{
			name: "optional intersection",
			yaml: "{optional: {intersection: [_Each, _Sized]}}",
			want: "(_Each & _Sized)?",
		},
		{
			name: "literal and variable",
			yaml: "{union: [{literal: ':ok'}, {var: U}]}",
			want: "(:ok | U)",
		},
		{
			name: "record",
			yaml: "{record: {name: String, age: Integer}}",
			want: "{ name: String, age: Integer }",
		},
		{
			name: "proc with block",
			yaml: "{proc: {params: [String], optional: [Integer], rest: Symbol, return: bool, block: {params: [json], required: false}}}",
			want: "^(String, ?Integer, *Symbol) -> bool ?{ (::json) -> void }",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := "aliases:\n  - name: subject\n    type: " + tt.yaml + "\n"
			file, err := ParseFile("forms.yaml", []byte(content))
			require.NoError(t, err)
			require.Len(t, file.Decls, 1)
			assert.Equal(t, tt.want, file.Decls[0].Type.String())
		})
	}
}

func TestParseFile_Errors(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantUnknown string
		wantLine    int
		wantContain string
	}{
		{
			name:        "unknown top-level field",
			content:     "aliases: []\nextra: true\n",
			wantUnknown: "extra",
			wantLine:    2,
		},
		{
			name:        "unknown alias field",
			content:     "aliases:\n  - name: a\n    kind: x\n    type: nil\n",
			wantUnknown: "kind",
			wantLine:    3,
		},
		{
			name:        "unknown type kind",
			content:     "aliases:\n  - name: a\n    type:\n      sum: [nil]\n",
			wantUnknown: "sum",
			wantLine:    4,
		},
		{
			name:        "unknown proc field",
			content:     "aliases:\n  - name: a\n    type:\n      proc:\n        yields: nil\n",
			wantUnknown: "yields",
			wantLine:    5,
		},
		{
			name:        "two kinds",
			content:     "aliases:\n  - name: a\n    type:\n      union: [nil]\n      tuple: [nil]\n",
			wantLine:    5,
			wantContain: "both",
		},
		{
			name:        "class as alias name",
			content:     "aliases:\n  - name: Foo\n    type: nil\n",
			wantLine:    2,
			wantContain: "not an alias name",
		},
		{
			name:        "missing type",
			content:     "aliases:\n  - name: a\n",
			wantLine:    2,
			wantContain: "requires a type",
		},
		{
			name:        "unknown base",
			content:     "aliases:\n  - name: a\n    type: {base: maybe}\n",
			wantLine:    3,
			wantContain: "unknown base type",
		},
		{
			name:        "malformed yaml",
			content:     "aliases:\n  - name: a\n   type: [\n",
			wantContain: "invalid YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFile("bad.yaml", []byte(tt.content))
			require.Error(t, err)
			assert.True(t, IsParseError(err))
			assert.Contains(t, err.Error(), "bad.yaml")

			if tt.wantUnknown != "" {
				var ue *UnknownFieldError
				require.True(t, errors.As(err, &ue), "expected UnknownFieldError, got %T", err)
				assert.Equal(t, tt.wantUnknown, ue.Field)
				assert.Equal(t, tt.wantLine, ue.Line)
				return
			}

			var pe *ParseError
			require.True(t, errors.As(err, &pe), "expected ParseError, got %T", err)
			assert.Contains(t, pe.Message, tt.wantContain)
			if tt.wantLine > 0 {
				assert.Equal(t, tt.wantLine, pe.Line)
			}
		})
	}
}

func TestParseFile_Empty(t *testing.T) {
	file, err := ParseFile("empty.yaml", []byte("# nothing yet\n"))
	require.NoError(t, err)
	assert.Empty(t, file.Decls)
	assert.Equal(t, types.Root, file.Namespace)
}

func TestLoadDir(t *testing.T) {
	root := testutil.SetupSigProject(t)
	sig := filepath.Join(root, "sig")
	testutil.WriteSigFiles(t, sig, map[string]string{
		"notes.txt":         "not a declaration file",
		".hidden/skip.yaml": "aliases: [oops",
		"nested/extra.yml":  "aliases:\n  - name: extra\n    type: id\n",
	})

	project, err := LoadDir(sig, WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)

	var paths []string
	for _, f := range project.Files {
		rel, err := filepath.Rel(sig, f.Path)
		require.NoError(t, err)
		paths = append(paths, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{"app.yaml", "core.yaml", "nested/extra.yml", "tree.yaml"}, paths)

	assert.Len(t, project.Decls(), 8)
	require.Len(t, project.ModuleAliases(), 1)
	assert.Equal(t, "::T::", project.ModuleAliases()[0].Name.String())
}

func TestLoadDir_Extensions(t *testing.T) {
	dir := testutil.WriteSigFiles(t, t.TempDir(), map[string]string{
		"a.yaml": "aliases:\n  - name: a\n    type: nil\n",
		"b.sig":  "aliases:\n  - name: b\n    type: nil\n",
	})

	project, err := LoadDir(dir, WithExtensions(".sig"))
	require.NoError(t, err)
	require.Len(t, project.Decls(), 1)
	assert.Equal(t, "::b", project.Decls()[0].Name.String())
}

func TestLoadDir_Errors(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	file := filepath.Join(t.TempDir(), "file.yaml")
	require.NoError(t, os.WriteFile(file, []byte("aliases: []\n"), 0o644))
	_, err = LoadDir(file)
	assert.Error(t, err)

	dir := testutil.WriteSigFiles(t, t.TempDir(), map[string]string{
		"bad.yaml": "aliases:\n  - name: a\n    typo: nil\n",
	})
	_, err = LoadDir(dir)
	require.Error(t, err)
	var ue *UnknownFieldError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "typo", ue.Field)
}
