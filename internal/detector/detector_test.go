package detector

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		text   string
		id     string
		prefix string
		ok     bool
	}{
		{"feature/PROJ-7-login", "PROJ-7", "PROJ", true},
		{"TASK_123", "TASK-123", "TASK", true},
		{"fix #42 crash", "42", "", true},
		{"fix #12 for ABC-3", "ABC-3", "ABC", true},
		{"ABC-1 then XYZ-2", "ABC-1", "ABC", true},
		{"see #5 and #6", "5", "", true},
		{"A-1 is too short", "", "", false},
		{"lowercase proj-12", "", "", false},
		{"main", "", "", false},
	}
	for _, c := range cases {
		ref, ok := Parse(c.text)
		assert.Equal(t, c.ok, ok, c.text)
		assert.Equal(t, c.id, ref.ID, c.text)
		assert.Equal(t, c.prefix, ref.Prefix, c.text)
	}
}

func TestParseNormalizedIsStable(t *testing.T) {
	first, ok := Parse("TASK_123")
	require.True(t, ok)
	again, ok := Parse(first.ID)
	require.True(t, ok)
	assert.Equal(t, first, again)
}

func TestParseAll(t *testing.T) {
	refs := ParseAll("ABC-1 #7 ABC-1 FOO_2")
	require.Len(t, refs, 3)
	assert.Equal(t, "ABC-1", refs[0].ID)
	assert.Equal(t, "7", refs[1].ID)
	assert.Equal(t, "FOO-2", refs[2].ID)
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "12", IssueRef{ID: "PROJ-12"}.Number())
	assert.Equal(t, "12", IssueRef{ID: "12"}.Number())
}

// initTestRepo creates a git repo with one commit on main.
func initTestRepo(t *testing.T, commitMsg string) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("%v: %s\n%s", args, err, out)
		}
	}
	run("git", "init", "-b", "main")
	run("git", "config", "user.name", "Test")
	run("git", "config", "user.email", "test@test.com")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test\n"), 0o644))
	run("git", "add", ".")
	run("git", "commit", "-m", commitMsg)
	return dir
}

func checkout(t *testing.T, dir, branch string) {
	t.Helper()
	cmd := exec.Command("git", "checkout", "-b", branch)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("checkout: %s\n%s", err, out)
	}
}

func TestFindRepoRoot(t *testing.T) {
	dir := initTestRepo(t, "initial")
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	root, ok := FindRepoRoot(nested)
	require.True(t, ok)
	want, _ := filepath.EvalSymlinks(dir)
	got, _ := filepath.EvalSymlinks(root)
	assert.Equal(t, want, got)
}

func TestDetectFromBranch(t *testing.T) {
	dir := initTestRepo(t, "initial")
	checkout(t, dir, "feature/PROJ-7-login")

	d := New(zerolog.Nop())
	ref := d.Detect(context.Background(), dir, "window ZZZ-9")
	require.NotNil(t, ref)
	assert.Equal(t, "PROJ-7", ref.ID)
	assert.Equal(t, SourceBranch, ref.Source)
}

func TestDetectFromCommit(t *testing.T) {
	dir := initTestRepo(t, "PROJ-9 add login form")

	ref := New(zerolog.Nop()).Detect(context.Background(), dir, "")
	require.NotNil(t, ref)
	assert.Equal(t, "PROJ-9", ref.ID)
	assert.Equal(t, SourceCommit, ref.Source)
}

func TestDetectFromPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "work", "JIRA-55-spike")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	ref := New(zerolog.Nop()).Detect(context.Background(), dir, "")
	require.NotNil(t, ref)
	assert.Equal(t, "JIRA-55", ref.ID)
	assert.Equal(t, SourcePath, ref.Source)
}

func TestDetectFromWindowTitle(t *testing.T) {
	ref := New(zerolog.Nop()).Detect(context.Background(), "", "Review #314 - Firefox")
	require.NotNil(t, ref)
	assert.Equal(t, "314", ref.ID)
	assert.Equal(t, SourceWindowTitle, ref.Source)
}

func TestDetectNothing(t *testing.T) {
	dir := initTestRepo(t, "initial")
	assert.Nil(t, New(zerolog.Nop()).Detect(context.Background(), dir, "notes"))
}

func TestProjectFromTitle(t *testing.T) {
	cases := map[string]string{
		"main.go — toki — Cursor":           "toki",
		"toki - Visual Studio Code":         "toki",
		"README.md - notes":                 "notes",
		"parser.rs – detector – src – Code": "src",
		"Untitled":                          "",
	}
	for title, want := range cases {
		assert.Equal(t, want, ProjectFromTitle(title), title)
	}
}

func TestLastWorkspace(t *testing.T) {
	dir := t.TempDir()
	storage := filepath.Join(dir, "storage.json")
	body := `{
		"windowsState": {
			"lastActiveWindow": {"folder": "file:///home/u/src/other"},
			"openedWindows": [{"folder": "file:///home/u/src/toki"}]
		},
		"openedPathsList": {"entries": [{"folderUri": "file:///home/u/src/third"}]}
	}`
	require.NoError(t, os.WriteFile(storage, []byte(body), 0o644))

	got, ok := LastWorkspace("main.go — toki — Cursor", []string{storage, filepath.Join(dir, "missing.json")})
	require.True(t, ok)
	assert.Equal(t, filepath.FromSlash("/home/u/src/toki"), got)

	got, ok = LastWorkspace("", []string{storage})
	require.True(t, ok)
	assert.Equal(t, filepath.FromSlash("/home/u/src/other"), got)

	_, ok = LastWorkspace("", nil)
	assert.False(t, ok)
}

func TestWorkingDirUsesEditorState(t *testing.T) {
	repo := initTestRepo(t, "initial")
	storage := filepath.Join(t.TempDir(), "storage.json")
	body := `{"windowsState": {"lastActiveWindow": {"folder": "file://` + filepath.ToSlash(repo) + `"}}}`
	require.NoError(t, os.WriteFile(storage, []byte(body), 0o644))

	d := New(zerolog.Nop()).WithStoragePaths([]string{storage})
	assert.Equal(t, repo, d.WorkingDir(""))
}
