package arch_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"testing"
)

const internalPrefix = "github.com/papapumpkin/assoc/internal/"

// internalDir returns the internal/ directory this file lives under.
func internalDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Dir(filepath.Dir(file))
}

// packages lists the internal packages other than this one.
func packages(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(internalDir(t))
	if err != nil {
		t.Fatalf("reading internal/: %v", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != "arch_test" {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out
}

// parsePackage parses the non-test Go files of an internal package.
func parsePackage(t *testing.T, pkg string, mode parser.Mode) []*ast.File {
	t.Helper()
	dir := filepath.Join(internalDir(t), pkg)
	names, err := filepath.Glob(filepath.Join(dir, "*.go"))
	if err != nil {
		t.Fatalf("listing %s: %v", pkg, err)
	}
	fset := token.NewFileSet()
	var files []*ast.File
	for _, name := range names {
		if strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, name, nil, mode)
		if err != nil {
			t.Fatalf("parsing %s: %v", name, err)
		}
		files = append(files, f)
	}
	return files
}

// internalImports returns the internal packages pkg imports, sorted.
func internalImports(t *testing.T, pkg string) []string {
	t.Helper()
	seen := make(map[string]bool)
	for _, f := range parsePackage(t, pkg, parser.ImportsOnly) {
		for _, spec := range f.Imports {
			path, err := strconv.Unquote(spec.Path.Value)
			if err != nil {
				t.Fatalf("import path %s: %v", spec.Path.Value, err)
			}
			if rest, ok := strings.CutPrefix(path, internalPrefix); ok {
				seen[strings.SplitN(rest, "/", 2)[0]] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
