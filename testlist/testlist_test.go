package testlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flakewatch/flakewatch/types"
)

func writeModule(t *testing.T, modulePath string) string {
	t.Helper()
	dir := t.TempDir()
	goMod := "module " + modulePath + "\n\ngo 1.22\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte(goMod), 0644))
	return dir
}

const sampleTestFile = `package sample

import "testing"

func TestAdd(t *testing.T) {}

func TestSubtract(t *testing.T) {}

func TestMain(m *testing.M) {}

func helperNotATest() {}

func TestWithWrongSignature(t *testing.T, extra int) {}
`

func TestFindTestsInRelativePackage(t *testing.T) {
	dir := writeModule(t, "example.com/sample")
	pkgDir := filepath.Join(dir, "internal", "sample")
	require.NoError(t, os.MkdirAll(pkgDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "sample_test.go"), []byte(sampleTestFile), 0644))

	tests, err := FindTests("./internal/sample", dir)
	require.NoError(t, err)

	rel := filepath.Join("internal", "sample", "sample_test.go")
	assert.Equal(t, []types.TestIdentity{
		types.NewTestIdentity(rel, "TestAdd"),
		types.NewTestIdentity(rel, "TestSubtract"),
	}, tests)
}

func TestFindTestsResolvesImportPath(t *testing.T) {
	dir := writeModule(t, "example.com/sample")
	pkgDir := filepath.Join(dir, "pkg", "math")
	require.NoError(t, os.MkdirAll(pkgDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "math_test.go"), []byte(sampleTestFile), 0644))

	tests, err := FindTests("example.com/sample/pkg/math", dir)
	require.NoError(t, err)
	require.Len(t, tests, 2)
}

func TestFindTestsRejectsForeignPackage(t *testing.T) {
	dir := writeModule(t, "example.com/sample")

	_, err := FindTests("other.org/elsewhere", dir)
	require.ErrorContains(t, err, "is not in module")
}

func TestFindTestsEmptyPackage(t *testing.T) {
	dir := writeModule(t, "example.com/sample")
	pkgDir := filepath.Join(dir, "empty")
	require.NoError(t, os.MkdirAll(pkgDir, 0755))

	tests, err := FindTests("./empty", dir)
	require.NoError(t, err)
	assert.Empty(t, tests)
}
