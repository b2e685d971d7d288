package detector

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// FindRepoRoot walks up from dir until it finds a .git entry (directory or
// worktree file). It reports false at the filesystem root.
func FindRepoRoot(dir string) (string, bool) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// CurrentBranch returns the short name of HEAD in repoDir. A detached HEAD
// yields "HEAD".
func CurrentBranch(ctx context.Context, repoDir string) (string, error) {
	return gitOutput(ctx, repoDir, "rev-parse", "--abbrev-ref", "HEAD")
}

// HeadMessage returns the full message of the HEAD commit.
func HeadMessage(ctx context.Context, repoDir string) (string, error) {
	return gitOutput(ctx, repoDir, "log", "-1", "--format=%B")
}

func gitOutput(ctx context.Context, repoDir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("detector: git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}
