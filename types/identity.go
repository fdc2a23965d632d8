package types

import (
	"fmt"
	"strings"
)

// TestIdentity is the stable key for one logical test: the file it lives in
// plus its fully qualified name. It is unique within a run and used to
// correlate the same test across runs.
type TestIdentity struct {
	File string
	Name string
}

// NewTestIdentity creates a TestIdentity from a file path and test name.
func NewTestIdentity(file, name string) TestIdentity {
	return TestIdentity{File: file, Name: name}
}

// ParseTestIdentity parses the "file::name" form produced by String.
// A bare name (no separator) yields an identity with an empty file.
func ParseTestIdentity(s string) TestIdentity {
	if file, name, ok := strings.Cut(s, "::"); ok {
		return TestIdentity{File: file, Name: name}
	}
	return TestIdentity{Name: s}
}

func (id TestIdentity) String() string {
	if id.File == "" {
		return id.Name
	}
	return fmt.Sprintf("%s::%s", id.File, id.Name)
}

// Less orders identities by file, then by name. Used wherever a
// deterministic ordering over identities is required.
func (id TestIdentity) Less(other TestIdentity) bool {
	if id.File != other.File {
		return id.File < other.File
	}
	return id.Name < other.Name
}

// DisplayName returns a short human-readable name for reports. The file is
// shortened to its last path element to avoid wrapping in tables.
func (id TestIdentity) DisplayName() string {
	if id.File == "" {
		return id.Name
	}
	parts := strings.Split(id.File, "/")
	return fmt.Sprintf("%s (%s)", id.Name, parts[len(parts)-1])
}
