package output

import (
	"sort"
	"strings"

	"github.com/temirov/repotxt/internal/utils"
)

const (
	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "

	structureRootLine = "./"
	lineBreak         = "\n"
)

// structureNode is one segment of the path trie behind the directory listing.
// A nil children map marks a file.
type structureNode struct {
	children map[string]*structureNode
}

func (node *structureNode) isDirectory() bool {
	return node.children != nil
}

// RenderDirectoryStructure renders the listing block for forward-slash
// relative paths: "./" followed by one connector line per trie entry, with
// directories before files and names compared without regard to case.
func RenderDirectoryStructure(relativePaths []string) string {
	sortedPaths := append([]string(nil), relativePaths...)
	utils.SortFolded(sortedPaths)

	root := &structureNode{children: make(map[string]*structureNode)}
	for _, relativePath := range sortedPaths {
		insertStructurePath(root, relativePath)
	}

	var builder strings.Builder
	builder.WriteString(structureRootLine + lineBreak)
	writeStructureLevel(&builder, root, utils.EmptyString)
	return builder.String()
}

func insertStructurePath(root *structureNode, relativePath string) {
	var segments []string
	for _, segment := range strings.Split(relativePath, "/") {
		if segment != utils.EmptyString {
			segments = append(segments, segment)
		}
	}
	current := root
	for index, segment := range segments {
		isLastSegment := index == len(segments)-1
		child, exists := current.children[segment]
		if !exists {
			child = &structureNode{}
			current.children[segment] = child
		}
		if isLastSegment {
			break
		}
		if child.children == nil {
			child.children = make(map[string]*structureNode)
		}
		current = child
	}
}

func writeStructureLevel(builder *strings.Builder, node *structureNode, indent string) {
	names := make([]string, 0, len(node.children))
	for name := range node.children {
		names = append(names, name)
	}
	sort.SliceStable(names, func(leftIndex, rightIndex int) bool {
		left, right := node.children[names[leftIndex]], node.children[names[rightIndex]]
		if left.isDirectory() != right.isDirectory() {
			return left.isDirectory()
		}
		return utils.FoldedLess(names[leftIndex], names[rightIndex])
	})

	for index, name := range names {
		isLast := index == len(names)-1
		linePrefix, childIndent := treeNodeLinePrefix(indent, false, isLast)
		builder.WriteString(linePrefix + name + lineBreak)
		if child := node.children[name]; child.isDirectory() {
			writeStructureLevel(builder, child, childIndent)
		}
	}
}

// treeNodeLinePrefix returns the connector-prefixed line start for a node and
// the indentation its children use.
func treeNodeLinePrefix(prefix string, isRoot bool, isLast bool) (string, string) {
	if isRoot {
		return utils.EmptyString, utils.EmptyString
	}
	connector := treeBranchConnector
	childPrefix := prefix + treeBranchPadding
	if isLast {
		connector = treeLastConnector
		childPrefix = prefix + treeLastPadding
	}
	return prefix + connector, childPrefix
}
