// Package loader reads type alias declaration files.
//
// A declaration file is YAML:
//
//	namespace: ::Shapes
//	module_aliases:
//	  - name: Geo
//	    target: ::Shapes::Geometry
//	aliases:
//	  - name: point
//	    type:
//	      tuple: [Integer, Integer]
//	  - name: path
//	    params: [T]
//	    type:
//	      union:
//	        - nil
//	        - tuple: [point, path]
//
// Relative alias names are qualified with the file namespace. A relative
// reference that names no alias there is looked up in each enclosing
// namespace in turn, so "y" written in ::A::B may denote ::A::B::y, ::A::y
// or ::y.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/leapstack-labs/aliasgraph/pkg/types"
	"gopkg.in/yaml.v3"
)

// DefaultExtensions are the file extensions LoadDir reads.
var DefaultExtensions = []string{".yaml", ".yml"}

// ModuleAlias is a "module name = target" declaration.
type ModuleAlias struct {
	Name     types.Namespace
	Target   types.Namespace
	Location types.Location
}

// File is one parsed declaration file.
type File struct {
	Path          string
	Namespace     types.Namespace
	Decls         []*types.AliasDecl
	ModuleAliases []ModuleAlias
}

// Project is every declaration file under a directory.
type Project struct {
	Dir   string
	Files []*File
}

// Decls returns all declarations in file order.
func (p *Project) Decls() []*types.AliasDecl {
	var out []*types.AliasDecl
	for _, f := range p.Files {
		out = append(out, f.Decls...)
	}
	return out
}

// ModuleAliases returns all module aliases in file order.
func (p *Project) ModuleAliases() []ModuleAlias {
	var out []ModuleAlias
	for _, f := range p.Files {
		out = append(out, f.ModuleAliases...)
	}
	return out
}

// Option configures LoadDir.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	extensions []string
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithExtensions overrides DefaultExtensions.
func WithExtensions(exts ...string) Option {
	return func(o *options) {
		if len(exts) > 0 {
			o.extensions = exts
		}
	}
}

// HasDeclarationExt reports whether path has one of exts.
func HasDeclarationExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(exts, ext)
}

// LoadDir parses every declaration file under dir, in lexical path order.
func LoadDir(dir string, opts ...Option) (*Project, error) {
	o := &options{
		logger:     slog.New(slog.DiscardHandler),
		extensions: DefaultExtensions,
	}
	for _, opt := range opts {
		opt(o)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("signature directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("signature directory %s is not a directory", dir)
	}

	project := &Project{Dir: dir}
	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if path != dir && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !HasDeclarationExt(path, o.extensions) {
			return nil
		}

		file, err := LoadFile(path)
		if err != nil {
			return err
		}
		o.logger.Debug("loaded declaration file",
			slog.String("path", path),
			slog.Int("aliases", len(file.Decls)),
			slog.Int("module_aliases", len(file.ModuleAliases)))
		project.Files = append(project.Files, file)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// LoadFile reads and parses one declaration file.
func LoadFile(path string) (*File, error) {
	content, err := os.ReadFile(path) //nolint:gosec // path comes from walking the signature dir
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseFile(path, content)
}

// ParseFile parses declaration file content. path is used for locations
// and error messages only.
func ParseFile(path string, content []byte) (*File, error) {
	file := &File{Path: path, Namespace: types.Root}

	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, yamlError(path, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return file, nil // empty file
	}

	d := &decoder{file: path, ns: types.Root}
	top, err := d.fields(doc.Content[0], "file", "namespace", "module_aliases", "aliases")
	if err != nil {
		return nil, err
	}

	if n := top["namespace"]; n != nil {
		raw, err := d.scalar(n, "namespace")
		if err != nil {
			return nil, err
		}
		file.Namespace = types.Root.Join(types.ParseNamespace(raw))
		d.ns = file.Namespace
	}

	if n := top["module_aliases"]; n != nil {
		if n.Kind != yaml.SequenceNode {
			return nil, d.parseErr(n, "module_aliases must be a list")
		}
		for _, item := range n.Content {
			ma, err := d.moduleAlias(item)
			if err != nil {
				return nil, err
			}
			file.ModuleAliases = append(file.ModuleAliases, ma)
		}
	}

	if n := top["aliases"]; n != nil {
		if n.Kind != yaml.SequenceNode {
			return nil, d.parseErr(n, "aliases must be a list")
		}
		for _, item := range n.Content {
			decl, err := d.aliasDecl(item)
			if err != nil {
				return nil, err
			}
			file.Decls = append(file.Decls, decl)
		}
	}

	return file, nil
}

func (d *decoder) moduleAlias(n *yaml.Node) (ModuleAlias, error) {
	f, err := d.fields(n, "module alias", "name", "target")
	if err != nil {
		return ModuleAlias{}, err
	}
	if f["name"] == nil || f["target"] == nil {
		return ModuleAlias{}, d.parseErr(n, "module alias requires name and target")
	}
	name, err := d.scalar(f["name"], "module alias name")
	if err != nil {
		return ModuleAlias{}, err
	}
	target, err := d.scalar(f["target"], "module alias target")
	if err != nil {
		return ModuleAlias{}, err
	}
	return ModuleAlias{
		Name:     d.ns.Join(types.ParseNamespace(name)),
		Target:   types.Root.Join(types.ParseNamespace(target)),
		Location: types.Location{File: d.file, Line: resolve(n).Line},
	}, nil
}

func (d *decoder) aliasDecl(n *yaml.Node) (*types.AliasDecl, error) {
	f, err := d.fields(n, "alias", "name", "params", "type")
	if err != nil {
		return nil, err
	}
	if f["name"] == nil {
		return nil, d.parseErr(resolve(n), "alias requires a name")
	}
	if f["type"] == nil {
		return nil, d.parseErr(resolve(n), "alias requires a type")
	}

	raw, err := d.scalar(f["name"], "alias name")
	if err != nil {
		return nil, err
	}
	name := types.ParseTypeName(raw)
	if name.Name == "" || !name.IsAlias() {
		return nil, d.parseErr(f["name"], "%q is not an alias name (aliases start with a lowercase letter)", raw)
	}

	decl := &types.AliasDecl{
		Name:     d.qualify(name),
		Location: types.Location{File: d.file, Line: f["name"].Line},
	}
	if pn := f["params"]; pn != nil {
		if decl.Params, err = d.stringList(pn, "params"); err != nil {
			return nil, err
		}
	}

	d.params = make(map[string]bool, len(decl.Params))
	for _, p := range decl.Params {
		d.params[p] = true
	}
	defer func() { d.params = nil }()

	if decl.Type, err = d.decodeType(f["type"]); err != nil {
		return nil, err
	}
	return decl, nil
}

// IsParseError reports whether err came from malformed declaration content.
func IsParseError(err error) bool {
	var pe *ParseError
	var ue *UnknownFieldError
	return errors.As(err, &pe) || errors.As(err, &ue)
}
