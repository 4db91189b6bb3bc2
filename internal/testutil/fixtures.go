package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// CoreSig declares ::json (self-referential through Array and Hash
// arguments) and the acyclic ::id.
const CoreSig = `aliases:
  - name: json
    type:
      union:
        - nil
        - bool
        - Integer
        - String
        - class: Array
          args: [json]
        - class: Hash
          args: [String, json]
  - name: id
    type: Integer
`

// TreeSig declares ::Tree::node (self-referential through a record field)
// and the mutually recursive ::Tree::a and ::Tree::b, the latter written
// through the module alias ::T.
const TreeSig = `namespace: ::Tree
module_aliases:
  - name: ::T
    target: ::Tree
aliases:
  - name: node
    type:
      record:
        value: ::json
        children:
          class: Array
          args: [node]
  - name: a
    type:
      union: [b, nil]
  - name: b
    type: ::T::a
`

// AppSig declares acyclic aliases that reach both other files.
const AppSig = `aliases:
  - name: config
    type:
      record:
        id: id
        payload: json
        tree: ::Tree::node
  - name: handler
    type:
      proc:
        params: [config]
        return: void
`

// WriteSigFiles writes files (relative path to content) under dir and
// returns dir.
func WriteSigFiles(t testing.TB, dir string, files map[string]string) string {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
	}
	return dir
}

// SetupSigProject creates a temporary project whose sig/ directory holds
// core.yaml, tree.yaml and app.yaml. It returns the project root.
func SetupSigProject(t testing.TB) string {
	t.Helper()
	root := t.TempDir()
	WriteSigFiles(t, filepath.Join(root, "sig"), map[string]string{
		"core.yaml": CoreSig,
		"tree.yaml": TreeSig,
		"app.yaml":  AppSig,
	})
	return root
}
