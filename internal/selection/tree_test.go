package selection_test

import (
	"path/filepath"
	"testing"

	"github.com/temirov/repotxt/internal/selection"
)

const fixtureRoot = "/project"

// buildFixture assembles:
//
//	/project
//	├── src
//	│   ├── lib
//	│   │   └── util.go
//	│   ├── main.go
//	│   └── notes.txt
//	├── Makefile
//	└── README.md
func buildFixture(state selection.CheckState) *selection.Tree {
	root := selection.NewNode("project", fixtureRoot, true, state)
	source := selection.NewNode("src", filepath.Join(fixtureRoot, "src"), true, state)
	library := selection.NewNode("lib", filepath.Join(fixtureRoot, "src", "lib"), true, state)
	library.SetChildren([]*selection.Node{
		selection.NewNode("util.go", filepath.Join(fixtureRoot, "src", "lib", "util.go"), false, state),
	})
	source.SetChildren([]*selection.Node{
		selection.NewNode("notes.txt", filepath.Join(fixtureRoot, "src", "notes.txt"), false, state),
		selection.NewNode("main.go", filepath.Join(fixtureRoot, "src", "main.go"), false, state),
		library,
	})
	root.SetChildren([]*selection.Node{
		selection.NewNode("README.md", filepath.Join(fixtureRoot, "README.md"), false, state),
		selection.NewNode("Makefile", filepath.Join(fixtureRoot, "Makefile"), false, state),
		source,
	})
	return selection.NewTree(root, []string{"go", "txt", "md", ""})
}

func mustFind(t *testing.T, tree *selection.Tree, path string) *selection.Node {
	t.Helper()
	node, found := tree.Find(path)
	if !found {
		t.Fatalf("node %s not found", path)
	}
	return node
}

func TestSetChildrenOrdersDirectoriesFirst(t *testing.T) {
	tree := buildFixture(selection.Checked)
	var names []string
	for _, child := range tree.Root().Children() {
		names = append(names, child.Name())
	}
	expected := []string{"src", "Makefile", "README.md"}
	for index := range expected {
		if names[index] != expected[index] {
			t.Fatalf("expected order %v, got %v", expected, names)
		}
	}
	source := mustFind(t, tree, "src")
	if source.Children()[0].Name() != "lib" || source.Children()[1].Name() != "main.go" {
		t.Fatalf("unexpected src order")
	}
	if source.Parent() != tree.Root() {
		t.Fatalf("expected parent link to be set")
	}
}

func TestToggleCascadesAndBubbles(t *testing.T) {
	tree := buildFixture(selection.Checked)
	notes := mustFind(t, tree, "src/notes.txt")

	tree.Toggle(notes, selection.Unchecked)

	if got := mustFind(t, tree, "src").State(); got != selection.Indeterminate {
		t.Fatalf("expected src indeterminate, got %s", got)
	}
	if got := tree.Root().State(); got != selection.Indeterminate {
		t.Fatalf("expected root indeterminate, got %s", got)
	}

	tree.Toggle(notes, selection.Checked)
	if got := tree.Root().State(); got != selection.Checked {
		t.Fatalf("expected root checked after re-checking, got %s", got)
	}

	tree.Toggle(mustFind(t, tree, "src"), selection.Unchecked)
	for _, path := range []string{"src/lib", "src/lib/util.go", "src/main.go", "src/notes.txt"} {
		if got := mustFind(t, tree, path).State(); got != selection.Unchecked {
			t.Fatalf("expected %s unchecked, got %s", path, got)
		}
	}
	if got := tree.Root().State(); got != selection.Indeterminate {
		t.Fatalf("expected root indeterminate, got %s", got)
	}
}

func TestToggleUncheckAllFiles(t *testing.T) {
	tree := buildFixture(selection.Checked)
	tree.Walk(func(node *selection.Node) bool {
		if !node.IsDirectory() {
			tree.Toggle(node, selection.Unchecked)
		}
		return true
	})
	tree.Walk(func(node *selection.Node) bool {
		if node.State() != selection.Unchecked {
			t.Fatalf("expected %s unchecked, got %s", node.FullPath(), node.State())
		}
		return true
	})
}

func TestIndeterminateDoesNotCascade(t *testing.T) {
	tree := buildFixture(selection.Checked)
	source := mustFind(t, tree, "src")
	source.SetChecked(selection.Indeterminate, true, false)
	if got := mustFind(t, tree, "src/main.go").State(); got != selection.Checked {
		t.Fatalf("expected children untouched, got %s", got)
	}
}

func TestSameStateIsNoop(t *testing.T) {
	tree := buildFixture(selection.Checked)
	readme := mustFind(t, tree, "README.md")
	readme.SetChecked(selection.Checked, true, true)
	if tree.Root().State() != selection.Checked {
		t.Fatalf("expected no change")
	}
}

func TestRecalculateLeavesEmptyDirectory(t *testing.T) {
	empty := selection.NewNode("empty", "/empty", true, selection.Checked)
	empty.RecalculateFromChildren()
	if empty.State() != selection.Checked {
		t.Fatalf("expected childless directory to keep its state")
	}
}

func TestApplyExtensionFilter(t *testing.T) {
	tree := buildFixture(selection.Checked)

	changed := tree.ApplyExtensionFilter("go", false)
	if changed != 2 {
		t.Fatalf("expected 2 changed files, got %d", changed)
	}
	if got := mustFind(t, tree, "src/lib").State(); got != selection.Unchecked {
		t.Fatalf("expected lib unchecked, got %s", got)
	}
	if got := mustFind(t, tree, "src").State(); got != selection.Indeterminate {
		t.Fatalf("expected src indeterminate, got %s", got)
	}
	if got := tree.Root().State(); got != selection.Indeterminate {
		t.Fatalf("expected root indeterminate, got %s", got)
	}

	if repeated := tree.ApplyExtensionFilter("go", false); repeated != 0 {
		t.Fatalf("expected idempotent filter, got %d changes", repeated)
	}

	tree.ApplyExtensionFilter("", false)
	if got := mustFind(t, tree, "Makefile").State(); got != selection.Unchecked {
		t.Fatalf("expected extensionless file unchecked, got %s", got)
	}

	tree.ApplyExtensionFilter("go", true)
	tree.ApplyExtensionFilter("", true)
	if got := tree.Root().State(); got != selection.Checked {
		t.Fatalf("expected root checked after re-enabling, got %s", got)
	}
}

func TestRecalculateAll(t *testing.T) {
	root := selection.NewNode("project", fixtureRoot, true, selection.Checked)
	source := selection.NewNode("src", filepath.Join(fixtureRoot, "src"), true, selection.Checked)
	source.SetChildren([]*selection.Node{
		selection.NewNode("a.log", filepath.Join(fixtureRoot, "src", "a.log"), false, selection.Unchecked),
	})
	empty := selection.NewNode("empty", filepath.Join(fixtureRoot, "empty"), true, selection.Checked)
	root.SetChildren([]*selection.Node{
		source,
		empty,
		selection.NewNode("main.go", filepath.Join(fixtureRoot, "main.go"), false, selection.Checked),
	})
	tree := selection.NewTree(root, nil)

	tree.RecalculateAll()

	if source.State() != selection.Unchecked {
		t.Fatalf("expected src unchecked, got %s", source.State())
	}
	if empty.State() != selection.Checked {
		t.Fatalf("expected empty directory to keep checked, got %s", empty.State())
	}
	if root.State() != selection.Indeterminate {
		t.Fatalf("expected root indeterminate, got %s", root.State())
	}
}

func TestRestoreSelection(t *testing.T) {
	tree := buildFixture(selection.Checked)
	restore := selection.NewRestoreSet(
		filepath.Join(fixtureRoot, "src", "lib", "util.go"),
		filepath.Join(fixtureRoot, "README.md"),
	)

	tree.RestoreSelection(restore)

	expected := map[string]selection.CheckState{
		"src/lib/util.go": selection.Checked,
		"src/lib":         selection.Checked,
		"src/main.go":     selection.Unchecked,
		"src":             selection.Indeterminate,
		"README.md":       selection.Checked,
		"Makefile":        selection.Unchecked,
	}
	for path, state := range expected {
		if got := mustFind(t, tree, path).State(); got != state {
			t.Fatalf("expected %s %s, got %s", path, state, got)
		}
	}
	if tree.Root().State() != selection.Indeterminate {
		t.Fatalf("expected root indeterminate")
	}

	captured := tree.CheckedFilePaths()
	if len(captured) != 2 || !captured.Contains(filepath.Join(fixtureRoot, "README.md")) {
		t.Fatalf("unexpected checked paths %v", captured)
	}
}

func TestExtensionsAreSorted(t *testing.T) {
	tree := buildFixture(selection.Checked)
	extensions := tree.Extensions()
	expected := []string{"", "go", "md", "txt"}
	for index := range expected {
		if extensions[index] != expected[index] {
			t.Fatalf("expected %v, got %v", expected, extensions)
		}
	}
}

func TestParseCheckState(t *testing.T) {
	for _, state := range []selection.CheckState{selection.Checked, selection.Unchecked, selection.Indeterminate} {
		parsed, ok := selection.ParseCheckState(state.String())
		if !ok || parsed != state {
			t.Fatalf("expected %s to parse back", state)
		}
	}
	if _, ok := selection.ParseCheckState("maybe"); ok {
		t.Fatalf("expected unknown state to be rejected")
	}
}

func TestCheckingRootChecksEveryNode(t *testing.T) {
	tree := buildFixture(selection.Unchecked)
	tree.Toggle(tree.Root(), selection.Checked)
	tree.Walk(func(node *selection.Node) bool {
		if node.State() != selection.Checked {
			t.Fatalf("expected %s checked, got %s", node.FullPath(), node.State())
		}
		return true
	})
}

func TestRecalculateAllIsIdempotent(t *testing.T) {
	tree := buildFixture(selection.Checked)
	tree.Toggle(mustFind(t, tree, "src/notes.txt"), selection.Unchecked)
	tree.Toggle(mustFind(t, tree, "Makefile"), selection.Unchecked)

	snapshot := func() map[string]selection.CheckState {
		states := make(map[string]selection.CheckState)
		tree.Walk(func(node *selection.Node) bool {
			states[node.FullPath()] = node.State()
			return true
		})
		return states
	}
	before := snapshot()
	tree.RecalculateAll()
	tree.RecalculateAll()
	after := snapshot()
	for path, state := range before {
		if after[path] != state {
			t.Fatalf("expected %s to stay %s, got %s", path, state, after[path])
		}
	}
}

func TestRecalculateFromChildrenTwiceIsStable(t *testing.T) {
	tree := buildFixture(selection.Checked)
	source := mustFind(t, tree, "src")
	library := mustFind(t, tree, "src/lib")
	notes := mustFind(t, tree, "src/notes.txt")

	notes.SetChecked(selection.Unchecked, false, false)
	if source.State() != selection.Checked {
		t.Fatalf("expected src to keep its stale state before recalculation, got %s", source.State())
	}

	source.RecalculateFromChildren()
	first := map[string]selection.CheckState{
		"src":     source.State(),
		"src/lib": library.State(),
		"root":    tree.Root().State(),
	}
	if first["src"] != selection.Indeterminate || first["root"] != selection.Indeterminate {
		t.Fatalf("expected src and root indeterminate after recalculation, got %v", first)
	}

	source.RecalculateFromChildren()
	second := map[string]selection.CheckState{
		"src":     source.State(),
		"src/lib": library.State(),
		"root":    tree.Root().State(),
	}
	for name, state := range first {
		if second[name] != state {
			t.Fatalf("expected %s to stay %s on the second call, got %s", name, state, second[name])
		}
	}

	notes.RecalculateFromChildren()
	if notes.State() != selection.Unchecked {
		t.Fatalf("expected a file to keep its state, got %s", notes.State())
	}
}

func TestDeepChainPropagates(t *testing.T) {
	const depth = 1000
	root := selection.NewNode("project", fixtureRoot, true, selection.Checked)
	parent := root
	parentPath := fixtureRoot
	for level := 0; level < depth; level++ {
		directoryPath := filepath.Join(parentPath, "d")
		directory := selection.NewNode("d", directoryPath, true, selection.Checked)
		parent.SetChildren([]*selection.Node{directory})
		parent = directory
		parentPath = directoryPath
	}
	leaf := selection.NewNode("leaf.txt", filepath.Join(parentPath, "leaf.txt"), false, selection.Checked)
	sibling := selection.NewNode("other.txt", filepath.Join(parentPath, "other.txt"), false, selection.Checked)
	parent.SetChildren([]*selection.Node{leaf, sibling})
	tree := selection.NewTree(root, []string{"txt"})

	tree.Toggle(leaf, selection.Unchecked)
	if root.State() != selection.Indeterminate {
		t.Fatalf("expected root indeterminate after deep toggle, got %s", root.State())
	}
	tree.Toggle(sibling, selection.Unchecked)
	if root.State() != selection.Unchecked {
		t.Fatalf("expected root unchecked, got %s", root.State())
	}
	tree.Toggle(root, selection.Checked)
	if leaf.State() != selection.Checked {
		t.Fatalf("expected leaf checked after root toggle, got %s", leaf.State())
	}
}
