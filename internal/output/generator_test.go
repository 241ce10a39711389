package output_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/temirov/repotxt/internal/output"
	"github.com/temirov/repotxt/internal/selection"
)

// generatedExpected is the document for the fixture with every file checked.
const generatedExpected = "Review this code.\n\n" +
	"Directory Structure:\n\n" +
	"./\n" +
	"├── b\n" +
	"│   ├── a.txt\n" +
	"│   └── z.txt\n" +
	"└── a.txt\n" +
	"\n--- File Contents ---\n\n" +
	"\n---\nFile: /a.txt\n---\nalpha\n" +
	"\n---\nFile: /b/a.txt\n---\nbeta\n" +
	"\n---\nFile: /b/z.txt\n---\nzeta\n"

type fixtureFile struct {
	relativePath string
	content      string
	state        selection.CheckState
}

// buildTree writes files under a temporary root and links a matching
// selection tree, deriving directory states from the file states.
func buildTree(testingInstance *testing.T, files []fixtureFile) *selection.Tree {
	testingInstance.Helper()
	rootDirectory := testingInstance.TempDir()
	root := selection.NewNode(filepath.Base(rootDirectory), rootDirectory, true, selection.Checked)
	directories := map[string]*selection.Node{"": root}
	childrenByDirectory := map[string][]*selection.Node{}

	var ensureDirectory func(relativeDirectory string) *selection.Node
	ensureDirectory = func(relativeDirectory string) *selection.Node {
		if node, exists := directories[relativeDirectory]; exists {
			return node
		}
		parentDirectory := filepath.ToSlash(filepath.Dir(relativeDirectory))
		if parentDirectory == "." {
			parentDirectory = ""
		}
		ensureDirectory(parentDirectory)
		node := selection.NewNode(filepath.Base(relativeDirectory), filepath.Join(rootDirectory, filepath.FromSlash(relativeDirectory)), true, selection.Checked)
		directories[relativeDirectory] = node
		childrenByDirectory[parentDirectory] = append(childrenByDirectory[parentDirectory], node)
		return node
	}

	for _, file := range files {
		fullPath := filepath.Join(rootDirectory, filepath.FromSlash(file.relativePath))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			testingInstance.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(file.content), 0o644); err != nil {
			testingInstance.Fatalf("write: %v", err)
		}
		parentDirectory := filepath.ToSlash(filepath.Dir(file.relativePath))
		if parentDirectory == "." {
			parentDirectory = ""
		}
		ensureDirectory(parentDirectory)
		childrenByDirectory[parentDirectory] = append(childrenByDirectory[parentDirectory], selection.NewNode(filepath.Base(fullPath), fullPath, false, file.state))
	}
	for relativeDirectory, node := range directories {
		node.SetChildren(childrenByDirectory[relativeDirectory])
	}
	tree := selection.NewTree(root, nil)
	tree.RecalculateAll()
	return tree
}

func TestGenerateDocument(testingInstance *testing.T) {
	tree := buildTree(testingInstance, []fixtureFile{
		{relativePath: "b/z.txt", content: "zeta", state: selection.Checked},
		{relativePath: "a.txt", content: "alpha", state: selection.Checked},
		{relativePath: "b/a.txt", content: "beta", state: selection.Checked},
	})
	generator := output.Generator{}

	result, err := generator.Generate(context.Background(), tree, "  Review this code.  \n")
	if err != nil {
		testingInstance.Fatalf("generate: %v", err)
	}
	if result.Text != generatedExpected {
		testingInstance.Fatalf("unexpected document:\n%q\nexpected:\n%q", result.Text, generatedExpected)
	}
	if result.Files != 3 || result.Bytes != int64(len("alpha")+len("beta")+len("zeta")) || result.Failures != 0 {
		testingInstance.Fatalf("unexpected result counters %+v", result)
	}

	repeated, err := generator.Generate(context.Background(), tree, "  Review this code.  \n")
	if err != nil {
		testingInstance.Fatalf("generate: %v", err)
	}
	if repeated.Text != result.Text {
		testingInstance.Fatalf("expected byte-identical output on an unchanged tree")
	}
}

func TestGenerateHonorsSelection(testingInstance *testing.T) {
	tree := buildTree(testingInstance, []fixtureFile{
		{relativePath: "keep.go", content: "package keep", state: selection.Checked},
		{relativePath: "skip.log", content: "noise", state: selection.Unchecked},
		{relativePath: "pkg/inner.go", content: "package pkg", state: selection.Checked},
		{relativePath: "pkg/inner.log", content: "noise", state: selection.Unchecked},
		{relativePath: "off/hidden.go", content: "package off", state: selection.Unchecked},
	})
	generator := output.Generator{Workers: 2}

	result, err := generator.Generate(context.Background(), tree, "")
	if err != nil {
		testingInstance.Fatalf("generate: %v", err)
	}
	if strings.Contains(result.Text, "noise") || strings.Contains(result.Text, "hidden.go") {
		testingInstance.Fatalf("unchecked files leaked into output:\n%s", result.Text)
	}
	if !strings.HasPrefix(result.Text, "Directory Structure:") {
		testingInstance.Fatalf("expected blank pre-prompt to be omitted")
	}
	for _, header := range []string{"File: /keep.go", "File: /pkg/inner.go"} {
		if !strings.Contains(result.Text, header) {
			testingInstance.Fatalf("expected %q in output", header)
		}
	}
	if result.Files != 2 {
		testingInstance.Fatalf("expected 2 files, got %d", result.Files)
	}
}

func TestGenerateNoSelection(testingInstance *testing.T) {
	tree := buildTree(testingInstance, []fixtureFile{
		{relativePath: "a.txt", content: "a", state: selection.Unchecked},
	})
	generator := output.Generator{}
	result, err := generator.Generate(context.Background(), tree, "Prompt")
	if err != nil {
		testingInstance.Fatalf("generate: %v", err)
	}
	expected := "Prompt\n\nNo files selected or found based on current selection.\n"
	if result.Text != expected {
		testingInstance.Fatalf("expected %q, got %q", expected, result.Text)
	}
}

func TestGenerateRejectsLargeFiles(testingInstance *testing.T) {
	tree := buildTree(testingInstance, []fixtureFile{
		{relativePath: "big.bin", content: strings.Repeat("x", 6*1024*1024), state: selection.Checked},
		{relativePath: "small.txt", content: "small", state: selection.Checked},
	})
	generator := output.Generator{}
	result, err := generator.Generate(context.Background(), tree, "")
	if err != nil {
		testingInstance.Fatalf("generate: %v", err)
	}
	if !strings.Contains(result.Text, "Error: File 'big.bin' is too large (6.00MB). Max 5MB.") {
		testingInstance.Fatalf("expected too large error, got:\n%.400s", result.Text)
	}
	if strings.Contains(result.Text, "xxxxxxxx") {
		testingInstance.Fatalf("large file content must not be embedded")
	}
	if !strings.Contains(result.Text, "File: /small.txt\n---\nsmall\n") {
		testingInstance.Fatalf("expected other files to be embedded")
	}
	if result.Failures != 1 {
		testingInstance.Fatalf("expected one failure, got %d", result.Failures)
	}
}

func TestGenerateReportsReadErrors(testingInstance *testing.T) {
	tree := buildTree(testingInstance, []fixtureFile{
		{relativePath: "gone.txt", content: "soon removed", state: selection.Checked},
	})
	node, _ := tree.Find("gone.txt")
	if err := os.Remove(node.FullPath()); err != nil {
		testingInstance.Fatalf("remove: %v", err)
	}
	generator := output.Generator{}
	result, err := generator.Generate(context.Background(), tree, "")
	if err != nil {
		testingInstance.Fatalf("generate: %v", err)
	}
	if !strings.Contains(result.Text, "Error reading file 'gone.txt': ") {
		testingInstance.Fatalf("expected inline read error, got %q", result.Text)
	}
}

func TestGenerateStripsByteOrderMark(testingInstance *testing.T) {
	tree := buildTree(testingInstance, []fixtureFile{
		{relativePath: "bom.txt", content: "\xEF\xBB\xBFhello", state: selection.Checked},
	})
	generator := output.Generator{}
	result, err := generator.Generate(context.Background(), tree, "")
	if err != nil {
		testingInstance.Fatalf("generate: %v", err)
	}
	if !strings.Contains(result.Text, "---\nhello\n") {
		testingInstance.Fatalf("expected BOM-free content, got %q", result.Text)
	}
}

func TestGenerateCancelled(testingInstance *testing.T) {
	tree := buildTree(testingInstance, []fixtureFile{
		{relativePath: "a.txt", content: "a", state: selection.Checked},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	generator := output.Generator{}
	if _, err := generator.Generate(ctx, tree, ""); !errors.Is(err, context.Canceled) {
		testingInstance.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSelectedRelativePathsDeduplicatesAndSorts(testingInstance *testing.T) {
	tree := buildTree(testingInstance, []fixtureFile{
		{relativePath: "Zeta.md", content: "z", state: selection.Checked},
		{relativePath: "alpha.md", content: "a", state: selection.Checked},
		{relativePath: "docs/Beta.md", content: "b", state: selection.Checked},
	})
	paths := output.SelectedRelativePaths(tree)
	expected := []string{"alpha.md", "docs/Beta.md", "Zeta.md"}
	if strings.Join(paths, ",") != strings.Join(expected, ",") {
		testingInstance.Fatalf("expected %v, got %v", expected, paths)
	}
}

func TestDefaultWorkerCount(testingInstance *testing.T) {
	workers := output.DefaultWorkerCount()
	if workers < 1 || workers > 16 {
		testingInstance.Fatalf("unexpected default worker count %d", workers)
	}
}
