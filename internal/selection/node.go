// Package selection holds the in-memory file tree and its tri-state
// selection model. Directory states are derived from their children; any
// mutation leaves every directory with children in its derived state.
package selection

import (
	"sort"
	"strings"

	"github.com/temirov/repotxt/internal/utils"
)

// CheckState is the selection state of a node.
type CheckState int

const (
	// Unchecked excludes the node.
	Unchecked CheckState = iota
	// Checked includes the node.
	Checked
	// Indeterminate marks a directory whose children disagree.
	Indeterminate
)

const (
	checkStateUnchecked     = "unchecked"
	checkStateChecked       = "checked"
	checkStateIndeterminate = "indeterminate"
)

// String returns the lower-case name of the state.
func (state CheckState) String() string {
	switch state {
	case Checked:
		return checkStateChecked
	case Indeterminate:
		return checkStateIndeterminate
	default:
		return checkStateUnchecked
	}
}

// StateFromBool converts a boolean selection into a CheckState.
func StateFromBool(checked bool) CheckState {
	if checked {
		return Checked
	}
	return Unchecked
}

// Node is a file or directory in a selection tree.
type Node struct {
	name        string
	fullPath    string
	isDirectory bool
	state       CheckState
	parent      *Node
	children    []*Node
	updating    bool
}

// NewNode creates a detached node with the given initial state.
func NewNode(name, fullPath string, isDirectory bool, state CheckState) *Node {
	return &Node{name: name, fullPath: fullPath, isDirectory: isDirectory, state: state}
}

// Name returns the base name of the node.
func (node *Node) Name() string { return node.name }

// FullPath returns the absolute path of the node.
func (node *Node) FullPath() string { return node.fullPath }

// IsDirectory reports whether the node represents a directory.
func (node *Node) IsDirectory() bool { return node.isDirectory }

// State returns the current selection state.
func (node *Node) State() CheckState { return node.state }

// Parent returns the containing directory, nil for the root.
func (node *Node) Parent() *Node { return node.parent }

// Children returns the ordered children of a directory.
func (node *Node) Children() []*Node { return node.children }

// SetChildren attaches children to node, sorting them directories first and
// then by case-insensitive name.
func (node *Node) SetChildren(children []*Node) {
	sort.SliceStable(children, func(leftIndex, rightIndex int) bool {
		left, right := children[leftIndex], children[rightIndex]
		if left.isDirectory != right.isDirectory {
			return left.isDirectory
		}
		return utils.FoldedLess(left.name, right.name)
	})
	for _, child := range children {
		child.parent = node
	}
	node.children = children
}

// SetChecked assigns state to the node. Directories cascade a definite state
// to every descendant when propagateToChildren is set; propagateToParent makes
// the ancestors recompute their derived state. Calls reaching a node that is
// already mid-update are ignored.
func (node *Node) SetChecked(state CheckState, propagateToChildren, propagateToParent bool) {
	if node.updating || node.state == state {
		return
	}
	node.updating = true
	defer func() { node.updating = false }()

	node.state = state

	if propagateToChildren && state != Indeterminate && node.isDirectory {
		for _, child := range node.children {
			child.SetChecked(state, true, false)
		}
	}

	if propagateToParent && node.parent != nil {
		node.parent.RecalculateFromChildren()
	}
}

// RecalculateFromChildren derives the node's state from its children and
// bubbles a change up to the parent. Nodes without children are unchanged.
func (node *Node) RecalculateFromChildren() {
	if node.updating || len(node.children) == 0 {
		return
	}
	derived := deriveState(node.children)
	if derived == node.state {
		return
	}

	node.updating = true
	node.state = derived
	node.updating = false

	if node.parent != nil {
		node.parent.RecalculateFromChildren()
	}
}

// setState assigns state without any propagation.
func (node *Node) setState(state CheckState) {
	node.state = state
}

func deriveState(children []*Node) CheckState {
	checkedCount := 0
	for _, child := range children {
		switch child.state {
		case Indeterminate:
			return Indeterminate
		case Checked:
			checkedCount++
		}
	}
	switch checkedCount {
	case len(children):
		return Checked
	case 0:
		return Unchecked
	default:
		return Indeterminate
	}
}

// ParseCheckState converts a state name back into a CheckState.
func ParseCheckState(value string) (CheckState, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case checkStateChecked:
		return Checked, true
	case checkStateUnchecked:
		return Unchecked, true
	case checkStateIndeterminate:
		return Indeterminate, true
	}
	return Unchecked, false
}
