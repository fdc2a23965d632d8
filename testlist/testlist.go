// Package testlist discovers Go test functions in a package without
// running them, by parsing the test files' ASTs.
package testlist

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/flakewatch/flakewatch/types"
)

// FindTests takes a package path and working directory and returns the
// identity (file + function name) of every test function in the package.
func FindTests(pkgPath string, workingDir string) ([]types.TestIdentity, error) {
	relPath, err := resolvePackageDir(pkgPath, workingDir)
	if err != nil {
		return nil, err
	}

	pkgDir := filepath.Join(workingDir, relPath)
	entries, err := os.ReadDir(pkgDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read package directory: %w", err)
	}

	var tests []types.TestIdentity
	fset := token.NewFileSet()

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "_test.go") {
			continue
		}

		filePath := filepath.Join(pkgDir, entry.Name())
		f, err := parser.ParseFile(fset, filePath, nil, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", entry.Name(), err)
		}

		for _, decl := range f.Decls {
			funcDecl, ok := decl.(*ast.FuncDecl)
			if !ok {
				continue
			}
			// Test functions start with "Test" and take exactly one
			// parameter (*testing.T). TestMain is the harness, not a test.
			if !strings.HasPrefix(funcDecl.Name.Name, "Test") || funcDecl.Name.Name == "TestMain" {
				continue
			}
			if funcDecl.Type.Params == nil || len(funcDecl.Type.Params.List) != 1 {
				continue
			}
			tests = append(tests, types.NewTestIdentity(filepath.Join(relPath, entry.Name()), funcDecl.Name.Name))
		}
	}

	sort.Slice(tests, func(i, j int) bool { return tests[i].Less(tests[j]) })
	return tests, nil
}

// resolvePackageDir maps a package import path (or ./relative path) onto a
// directory relative to the working directory, using go.mod to strip the
// module prefix.
func resolvePackageDir(pkgPath string, workingDir string) (string, error) {
	if strings.HasPrefix(pkgPath, "./") {
		return strings.TrimPrefix(pkgPath, "./"), nil
	}
	if pkgPath == "." {
		return ".", nil
	}

	goModPath := filepath.Join(workingDir, "go.mod")
	goModContent, err := os.ReadFile(goModPath)
	if err != nil {
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}

	modFile, err := modfile.Parse(goModPath, goModContent, nil)
	if err != nil {
		return "", fmt.Errorf("failed to parse go.mod: %w", err)
	}

	moduleName := modFile.Module.Mod.Path
	if moduleName == "" {
		return "", fmt.Errorf("could not find module name in go.mod")
	}
	if !strings.HasPrefix(pkgPath, moduleName) {
		return "", fmt.Errorf("package %s is not in module %s", pkgPath, moduleName)
	}

	relPath := strings.TrimPrefix(strings.TrimPrefix(pkgPath, moduleName), "/")
	if relPath == "" {
		relPath = "."
	}
	return relPath, nil
}
