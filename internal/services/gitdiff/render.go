package gitdiff

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/utils/diff"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/temirov/repotxt/internal/utils"
)

const (
	contextLines       = 3
	hunkSeparator      = "@@ ... @@\n"
	binaryDiffFormat   = "Binary files a/%s and b/%s differ\n"
	devNull            = "/dev/null"
	headerDiffPrefix   = "diff --git a/"
	headerBeforePrefix = "--- "
	headerAfterPrefix  = "+++ "
)

// renderFileDiff renders a line diff for one file with a few lines of
// unchanged context around each change.
func renderFileDiff(path string, before string, after string) string {
	var builder strings.Builder
	builder.WriteString(headerDiffPrefix + path + " b/" + path + "\n")
	beforeName, afterName := "a/"+path, "b/"+path
	if before == utils.EmptyString {
		beforeName = devNull
	}
	if after == utils.EmptyString {
		afterName = devNull
	}
	builder.WriteString(headerBeforePrefix + beforeName + "\n")
	builder.WriteString(headerAfterPrefix + afterName + "\n")

	if utils.IsBinary([]byte(before)) || utils.IsBinary([]byte(after)) {
		builder.WriteString(fmt.Sprintf(binaryDiffFormat, path, path))
		return builder.String()
	}

	chunks := diff.Do(before, after)
	for index, chunk := range chunks {
		lines := splitLines(chunk.Text)
		switch chunk.Type {
		case diffmatchpatch.DiffInsert:
			writePrefixed(&builder, "+", lines)
		case diffmatchpatch.DiffDelete:
			writePrefixed(&builder, "-", lines)
		case diffmatchpatch.DiffEqual:
			writeContext(&builder, lines, index == 0, index == len(chunks)-1)
		}
	}
	return builder.String()
}

// writeContext keeps contextLines of unchanged text next to each change and
// elides the rest.
func writeContext(builder *strings.Builder, lines []string, isFirst bool, isLast bool) {
	leading, trailing := contextLines, contextLines
	if isFirst {
		leading = 0
	}
	if isLast {
		trailing = 0
	}
	if len(lines) <= leading+trailing {
		writePrefixed(builder, " ", lines)
		return
	}
	writePrefixed(builder, " ", lines[:leading])
	builder.WriteString(hunkSeparator)
	writePrefixed(builder, " ", lines[len(lines)-trailing:])
}

func writePrefixed(builder *strings.Builder, prefix string, lines []string) {
	for _, line := range lines {
		builder.WriteString(prefix + line + "\n")
	}
}

func splitLines(text string) []string {
	if text == utils.EmptyString {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
