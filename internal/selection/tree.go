package selection

import (
	"path/filepath"

	"github.com/temirov/repotxt/internal/utils"
)

// RestoreSet holds the absolute paths of files that were checked.
type RestoreSet map[string]struct{}

// Contains reports whether path is part of the set.
func (set RestoreSet) Contains(path string) bool {
	_, exists := set[path]
	return exists
}

// NewRestoreSet builds a RestoreSet from paths.
func NewRestoreSet(paths ...string) RestoreSet {
	set := make(RestoreSet, len(paths))
	for _, path := range paths {
		set[path] = struct{}{}
	}
	return set
}

// Tree is a selection tree rooted at a directory.
type Tree struct {
	root       *Node
	rootPath   string
	extensions []string
	index      map[string]*Node
}

// NewTree wraps a fully linked root node. extensions lists the detected file
// extensions without dots.
func NewTree(root *Node, extensions []string) *Tree {
	tree := &Tree{root: root, rootPath: root.fullPath, index: make(map[string]*Node)}
	tree.Walk(func(node *Node) bool {
		tree.index[node.fullPath] = node
		return true
	})
	tree.extensions = append([]string(nil), extensions...)
	utils.SortFolded(tree.extensions)
	return tree
}

// Root returns the root directory node.
func (tree *Tree) Root() *Node { return tree.root }

// RootPath returns the absolute path of the root directory.
func (tree *Tree) RootPath() string { return tree.rootPath }

// Extensions returns the sorted extensions found while building. An empty
// entry stands for files without an extension.
func (tree *Tree) Extensions() []string {
	return append([]string(nil), tree.extensions...)
}

// Find returns the node at an absolute path or a path relative to the root.
func (tree *Tree) Find(path string) (*Node, bool) {
	if node, exists := tree.index[path]; exists {
		return node, true
	}
	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(tree.rootPath, filepath.FromSlash(candidate))
	}
	node, exists := tree.index[filepath.Clean(candidate)]
	return node, exists
}

// RelativePath returns the forward-slash path of node relative to the root.
func (tree *Tree) RelativePath(node *Node) string {
	return utils.RelativePathOrSelf(node.fullPath, tree.rootPath)
}

// Walk visits nodes depth-first in child order. Returning false from visit
// skips the node's descendants.
func (tree *Tree) Walk(visit func(node *Node) bool) {
	walkNode(tree.root, visit)
}

func walkNode(node *Node, visit func(node *Node) bool) {
	if !visit(node) {
		return
	}
	for _, child := range node.children {
		walkNode(child, visit)
	}
}

// CheckedFilePaths captures the absolute paths of every checked file.
func (tree *Tree) CheckedFilePaths() RestoreSet {
	set := make(RestoreSet)
	tree.Walk(func(node *Node) bool {
		if !node.isDirectory && node.state == Checked {
			set[node.fullPath] = struct{}{}
		}
		return true
	})
	return set
}

// Toggle sets the state of a single node with full propagation.
func (tree *Tree) Toggle(node *Node, state CheckState) {
	node.SetChecked(state, true, true)
}

// ApplyExtensionFilter sets every file with the given extension (lower-case,
// no dot, empty for extensionless files) to checked or unchecked without
// propagation, then recalculates each affected parent once. It returns the
// number of files whose state changed.
func (tree *Tree) ApplyExtensionFilter(extension string, checked bool) int {
	target := StateFromBool(checked)
	var affectedParents []*Node
	seenParents := make(map[*Node]struct{})
	changedCount := 0

	tree.Walk(func(node *Node) bool {
		if node.isDirectory || utils.FileExtension(node.name) != extension || node.state == target {
			return true
		}
		node.SetChecked(target, false, false)
		changedCount++
		if node.parent == nil {
			return true
		}
		if _, seen := seenParents[node.parent]; !seen {
			seenParents[node.parent] = struct{}{}
			affectedParents = append(affectedParents, node.parent)
		}
		return true
	})

	for _, parent := range affectedParents {
		parent.RecalculateFromChildren()
	}
	return changedCount
}

// RecalculateAll derives every directory state bottom-up. Directories without
// children keep their assigned state.
func (tree *Tree) RecalculateAll() {
	recalculateSubtree(tree.root)
}

func recalculateSubtree(node *Node) {
	if !node.isDirectory || len(node.children) == 0 {
		return
	}
	for _, child := range node.children {
		recalculateSubtree(child)
	}
	node.setState(deriveState(node.children))
}

// RestoreSelection checks exactly the files contained in set. Directories
// without any selected descendant become unchecked; the rest are checked when
// all their children are checked and indeterminate otherwise.
func (tree *Tree) RestoreSelection(set RestoreSet) {
	restoreSubtree(tree.root, set)
}

func restoreSubtree(node *Node, set RestoreSet) bool {
	if !node.isDirectory {
		node.setState(StateFromBool(set.Contains(node.fullPath)))
		return node.state == Checked
	}

	anySelected := false
	for _, child := range node.children {
		if restoreSubtree(child, set) {
			anySelected = true
		}
	}
	if !anySelected {
		node.setState(Unchecked)
		return false
	}

	allChecked := true
	for _, child := range node.children {
		if child.state != Checked {
			allChecked = false
			break
		}
	}
	if allChecked {
		node.setState(Checked)
	} else {
		node.setState(Indeterminate)
	}
	return true
}
