package arch_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"
)

// constructors lists the calls a package-level var may be initialized with.
// Sentinel errors never change and prometheus collectors are registered once
// at init and are safe for concurrent use.
var constructors = map[string]map[string]bool{
	"errors":   {"New": true},
	"fmt":      {"Errorf": true},
	"promauto": {"NewCounter": true, "NewCounterVec": true, "NewHistogram": true, "NewHistogramVec": true, "NewGauge": true, "NewGaugeVec": true},
}

// TestPackageVarsAreConstantLike rejects package-level state in internal
// packages. A var must be a sentinel error, a prometheus collector, a value
// literal table or a compile-time interface assertion.
func TestPackageVarsAreConstantLike(t *testing.T) {
	t.Parallel()
	for _, pkg := range packages(t) {
		for _, f := range parsePackage(t, pkg, 0) {
			for _, decl := range f.Decls {
				gd, ok := decl.(*ast.GenDecl)
				if !ok || gd.Tok != token.VAR {
					continue
				}
				for _, spec := range gd.Specs {
					vs := spec.(*ast.ValueSpec)
					for i, name := range vs.Names {
						if name.Name == "_" {
							continue
						}
						if i >= len(vs.Values) {
							t.Errorf("%s.%s is declared without a value", pkg, name.Name)
							continue
						}
						if !constantLike(vs.Values[i]) {
							t.Errorf("%s.%s holds mutable state", pkg, name.Name)
						}
					}
				}
			}
		}
	}
}

func constantLike(e ast.Expr) bool {
	switch v := e.(type) {
	case *ast.BasicLit:
		return true
	case *ast.CompositeLit:
		// Lookup tables.
		return true
	case *ast.CallExpr:
		sel, ok := v.Fun.(*ast.SelectorExpr)
		if !ok {
			return false
		}
		pkg, ok := sel.X.(*ast.Ident)
		return ok && constructors[pkg.Name][sel.Sel.Name]
	}
	return false
}

func TestConstantLikeDetection(t *testing.T) {
	t.Parallel()
	tests := []struct {
		src  string
		want bool
	}{
		{`errors.New("x")`, true},
		{`fmt.Errorf("%w: y", ErrX)`, true},
		{`promauto.NewCounterVec(prometheus.CounterOpts{}, nil)`, true},
		{`[]string{"a", "b"}`, true},
		{`Vec{X: 1}`, true},
		{`42`, true},
		{`make(map[string]int)`, false},
		{`&Registry{}`, false},
		{`NewRegistry()`, false},
		{`prometheus.NewRegistry()`, false},
		{`time.Now()`, false},
	}
	for _, tt := range tests {
		e, err := parser.ParseExpr(tt.src)
		if err != nil {
			t.Fatalf("ParseExpr(%q): %v", tt.src, err)
		}
		if got := constantLike(e); got != tt.want {
			t.Errorf("constantLike(%s) = %v, want %v", tt.src, got, tt.want)
		}
	}
}
