package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/temirov/repotxt/internal/selection"
	"github.com/temirov/repotxt/internal/types"
	"github.com/temirov/repotxt/internal/utils"
)

const (
	indentPrefix = ""
	indentSpacer = "  "

	diffRuleWidth     = 80
	diffSectionHeader = "--- GIT DIFF ---"

	checkedMarker       = "[x] "
	uncheckedMarker     = "[ ] "
	indeterminateMarker = "[-] "
	directorySuffix     = "/"

	extensionlessLabel = "(no extension)"

	tokenLineFormat       = "Tokens: %d (%s: %s)"
	tokenExactLabel       = "tokenizer"
	tokenApproximateLabel = "proxy"
)

// AppendDiffSection appends a framed git diff block to text. An empty diff
// leaves text unchanged.
func AppendDiffSection(text string, diff string) string {
	if strings.TrimSpace(diff) == utils.EmptyString {
		return text
	}
	rule := strings.Repeat("-", diffRuleWidth)
	var builder strings.Builder
	builder.WriteString(text)
	builder.WriteString(lineBreak + rule + lineBreak + diffSectionHeader + lineBreak + rule + lineBreak + lineBreak)
	builder.WriteString(diff)
	builder.WriteString(lineBreak)
	return builder.String()
}

// BuildTreeOutput converts a selection subtree into its serializable form.
func BuildTreeOutput(tree *selection.Tree, node *selection.Node) *types.TreeOutputNode {
	outputNode := &types.TreeOutputNode{
		Path:  tree.RelativePath(node),
		Name:  node.Name(),
		Type:  types.NodeTypeFile,
		State: node.State().String(),
	}
	if node.IsDirectory() {
		outputNode.Type = types.NodeTypeDirectory
		for _, child := range node.Children() {
			outputNode.Children = append(outputNode.Children, BuildTreeOutput(tree, child))
		}
	}
	return outputNode
}

// WriteTreeRaw renders the selection tree with state markers and connectors.
func WriteTreeRaw(writer io.Writer, tree *selection.Tree) {
	renderTreeNode(writer, BuildTreeOutput(tree, tree.Root()), utils.EmptyString, true, true)
}

// WriteTreeJSON renders the selection tree as indented JSON.
func WriteTreeJSON(writer io.Writer, tree *selection.Tree) error {
	encoded, jsonEncodeError := json.MarshalIndent(BuildTreeOutput(tree, tree.Root()), indentPrefix, indentSpacer)
	if jsonEncodeError != nil {
		return jsonEncodeError
	}
	_, writeError := fmt.Fprintln(writer, string(encoded))
	return writeError
}

func renderTreeNode(writer io.Writer, node *types.TreeOutputNode, prefix string, isRoot bool, isLast bool) {
	if node == nil {
		return
	}
	linePrefix, childPrefix := treeNodeLinePrefix(prefix, isRoot, isLast)
	label := node.Name
	if node.Type == types.NodeTypeDirectory {
		label += directorySuffix
	}
	fmt.Fprintf(writer, "%s%s%s\n", linePrefix, stateMarker(node.State), label)
	for index, child := range node.Children {
		renderTreeNode(writer, child, childPrefix, false, index == len(node.Children)-1)
	}
}

func stateMarker(state string) string {
	switch state {
	case selection.Checked.String():
		return checkedMarker
	case selection.Indeterminate.String():
		return indeterminateMarker
	default:
		return uncheckedMarker
	}
}

// WriteExtensions prints one detected extension per line.
func WriteExtensions(writer io.Writer, extensions []string) {
	for _, extension := range extensions {
		if extension == utils.EmptyString {
			fmt.Fprintln(writer, extensionlessLabel)
			continue
		}
		fmt.Fprintln(writer, "."+extension)
	}
}

// FormatSummaryLine formats an OutputSummary into the raw summary line.
func FormatSummaryLine(summary *types.OutputSummary) string {
	if summary == nil {
		summary = &types.OutputSummary{}
	}
	label := "files"
	if summary.TotalFiles == 1 {
		label = "file"
	}
	extra := utils.EmptyString
	if summary.Failures > 0 {
		extra = fmt.Sprintf(", %d unreadable", summary.Failures)
	}
	return fmt.Sprintf("Summary: %d %s, %s%s", summary.TotalFiles, label, summary.TotalSize, extra)
}

// FormatTokenLine formats a token estimate. Approximate counts name their
// encoding as a proxy.
func FormatTokenLine(estimate types.TokenEstimate) string {
	label := tokenExactLabel
	if estimate.Approximate {
		label = tokenApproximateLabel
	}
	return fmt.Sprintf(tokenLineFormat, estimate.Count, label, estimate.Encoding)
}

// SummarizeGeneration builds the summary for a generation result.
func SummarizeGeneration(result types.GenerationResult) *types.OutputSummary {
	return &types.OutputSummary{
		TotalFiles: result.Files,
		TotalSize:  utils.FormatFileSize(result.Bytes),
		Failures:   result.Failures,
	}
}
