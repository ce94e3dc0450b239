// Package path implements the immutable, root-anchored path values shared
// by the naming and storage protocols. A Path is a sequence of non-empty
// components none of which contains the separator; it is never mutated
// after construction.
package path

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Separator is the textual component separator and the string form of the root.
const Separator = "/"

// Path is an immutable, ordered sequence of path components.
type Path struct {
	components []string
}

// Root is the path with no components.
var Root = Path{}

// New builds a Path from already-split components. Callers must ensure
// components are non-empty and do not contain the separator; Parse should
// be preferred when parsing untrusted input.
func New(components ...string) Path {
	if len(components) == 0 {
		return Root
	}
	cp := make([]string, len(components))
	copy(cp, components)
	return Path{components: cp}
}

// Parse splits s on the separator, dropping empty components so that both
// "/a/b" and "a/b/" and "a//b" parse to the same path. The returned error
// is always nil: splitting on the separator leaves no component that
// contains it, and no other character is rejected.
func Parse(s string) (Path, error) {
	var components []string
	for _, c := range strings.Split(s, Separator) {
		if c == "" {
			continue
		}
		components = append(components, c)
	}
	return New(components...), nil
}

// Components returns a defensive copy of the path's components.
func (p Path) Components() []string {
	if len(p.components) == 0 {
		return nil
	}
	cp := make([]string, len(p.components))
	copy(cp, p.components)
	return cp
}

// IsRoot reports whether p has no components.
func (p Path) IsRoot() bool {
	return len(p.components) == 0
}

// Parent returns the path one level up. It fails for the root.
func (p Path) Parent() (Path, error) {
	if p.IsRoot() {
		return Root, fmt.Errorf("path: root has no parent")
	}
	return New(p.components[:len(p.components)-1]...), nil
}

// Last returns the final component. It fails for the root.
func (p Path) Last() (string, error) {
	if p.IsRoot() {
		return "", fmt.Errorf("path: root has no last component")
	}
	return p.components[len(p.components)-1], nil
}

// Join returns the path obtained by appending name as a new final component.
func (p Path) Join(name string) Path {
	return New(append(append([]string(nil), p.components...), name)...)
}

// StartsWith reports whether other is a prefix of p (component-wise).
func (p Path) StartsWith(other Path) bool {
	if len(other.components) > len(p.components) {
		return false
	}
	for i, c := range other.components {
		if p.components[i] != c {
			return false
		}
	}
	return true
}

// Equal reports whether p and other have the same component sequence.
func (p Path) Equal(other Path) bool {
	if len(p.components) != len(other.components) {
		return false
	}
	for i, c := range p.components {
		if other.components[i] != c {
			return false
		}
	}
	return true
}

// String renders p using the separator, with the root rendered as "/".
func (p Path) String() string {
	if p.IsRoot() {
		return Separator
	}
	return Separator + strings.Join(p.components, Separator)
}

// GobEncode implements gob.GobEncoder so Path can cross the wire as a
// self-delimited value without exposing its internal slice.
func (p Path) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(p.String())
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (p *Path) GobDecode(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// WalkLocalDirectory yields the path (relative to root, root-anchored) of
// every regular file found under the local directory root. It is the
// collaborator storage servers use at startup to discover what they
// already hold, for registration.
func WalkLocalDirectory(root string) ([]Path, error) {
	var found []Path
	err := filepath.Walk(root, func(name string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, name)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		p, err := Parse(rel)
		if err != nil {
			return err
		}
		found = append(found, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
