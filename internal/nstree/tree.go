package nstree

import (
	"sort"
	"sync"

	"github.com/lfcarvalho/distfs/internal/apierr"
	"github.com/lfcarvalho/distfs/internal/path"
)

// Tree is the naming server's in-memory directory tree. A single mutex
// guards both tree topology and every node's lock-decision state; lock
// *waits* (blocking on a grant channel) always happen outside this mutex,
// so a pending acquirer never blocks metadata operations.
type Tree struct {
	mu   sync.Mutex
	root *node
}

// New returns a tree containing only the root directory.
func New() *Tree {
	return &Tree{root: newNode(path.Root, true)}
}

func (t *Tree) lookupLocked(p path.Path) (*node, error) {
	n := t.root
	for _, c := range p.Components() {
		child, ok := n.children[c]
		if !ok {
			return nil, apierr.NotFoundf("Tree.lookup", "%s", p)
		}
		n = child
	}
	return n, nil
}

// IsDirectory reports whether p names a directory. The root is always a directory.
func (t *Tree) IsDirectory(p path.Path) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookupLocked(p)
	if err != nil {
		return false, err
	}
	return n.isDirectory, nil
}

// List returns the names of d's immediate children. d must be a directory.
func (t *Tree) List(d path.Path) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookupLocked(d)
	if err != nil {
		return nil, err
	}
	if !n.isDirectory {
		return nil, apierr.NotFoundf("Tree.List", "%s is not a directory", d)
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// InsertLeaf attaches a single new child, named p.Last(), under p's
// parent, which must already exist and be a directory. It does not
// create intermediate directories — that is the createFile/createDirectory
// contract, distinct from the bulk AddWithIntermediates used by
// registration. Returns false (no error) if p already exists or is root.
func (t *Tree) InsertLeaf(p path.Path, isDirectory bool) (bool, error) {
	if p.IsRoot() {
		return false, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	parentPath, _ := p.Parent()
	parent, err := t.lookupLocked(parentPath)
	if err != nil {
		return false, err
	}
	if !parent.isDirectory {
		return false, apierr.NotFoundf("Tree.InsertLeaf", "%s is not a directory", parentPath)
	}
	name, _ := p.Last()
	if _, exists := parent.children[name]; exists {
		return false, nil
	}
	parent.children[name] = newNode(p, isDirectory)
	return true, nil
}

// AddWithIntermediates inserts p, creating any missing intermediate
// directory nodes along the way. Used by registration, where a storage
// server's file list may name paths without their ancestors having been
// registered first. Returns false if p already existed (a duplicate).
func (t *Tree) AddWithIntermediates(p path.Path, isDirectory bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.lookupLocked(p); err == nil {
		return false
	}
	n := t.root
	comps := p.Components()
	for i, c := range comps {
		child, ok := n.children[c]
		if !ok {
			leaf := i == len(comps)-1
			child = newNode(path.New(comps[:i+1]...), !leaf || isDirectory)
			n.children[c] = child
		}
		n.isDirectory = true
		n = child
	}
	return true
}

// Remove deletes the subtree rooted at p from its parent's children.
func (t *Tree) Remove(p path.Path) error {
	if p.IsRoot() {
		return apierr.InvalidArgumentf("Tree.Remove", "cannot remove root")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	parentPath, _ := p.Parent()
	parent, err := t.lookupLocked(parentPath)
	if err != nil {
		return err
	}
	name, _ := p.Last()
	if _, ok := parent.children[name]; !ok {
		return apierr.NotFoundf("Tree.Remove", "%s", p)
	}
	delete(parent.children, name)
	return nil
}

// Enumerate returns the path of every file leaf under the given directory.
func (t *Tree) Enumerate(dir path.Path) ([]path.Path, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookupLocked(dir)
	if err != nil {
		return nil, err
	}
	if !n.isDirectory {
		return nil, apierr.NotFoundf("Tree.Enumerate", "%s is not a directory", dir)
	}
	var out []path.Path
	var walk func(*node)
	walk = func(cur *node) {
		names := make([]string, 0, len(cur.children))
		for name := range cur.children {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			child := cur.children[name]
			if child.isDirectory {
				walk(child)
			} else {
				out = append(out, child.path)
			}
		}
	}
	walk(n)
	return out, nil
}
