// Package testutil provides shared test fixtures, primarily throwaway
// git repositories for exercising the version-control collaborators.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// InitRepo initializes a git repository in dir with a deterministic
// identity and "main" as the default branch.
func InitRepo(t *testing.T, dir string) {
	t.Helper()
	MustGit(t, dir, "init")
	MustGit(t, dir, "config", "user.name", "Test User")
	MustGit(t, dir, "config", "user.email", "test@example.com")
	MustGit(t, dir, "checkout", "-b", "main")
}

// CommitFile writes content to filename (creating directories as
// needed) and commits it.
func CommitFile(t *testing.T, dir, filename, content, msg string) {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", filename, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", filename, err)
	}
	MustGit(t, dir, "add", filename)
	MustGit(t, dir, "commit", "--allow-empty", "-m", msg)
}

// RemoveFile deletes a tracked file and commits the deletion.
func RemoveFile(t *testing.T, dir, filename, msg string) {
	t.Helper()
	MustGit(t, dir, "rm", filename)
	MustGit(t, dir, "commit", "-m", msg)
}

// Checkout switches to branch, creating it when create is true.
func Checkout(t *testing.T, dir, branch string, create bool) {
	t.Helper()
	if create {
		MustGit(t, dir, "checkout", "-b", branch)
	} else {
		MustGit(t, dir, "checkout", branch)
	}
}

// HeadSHA returns the full SHA of the current HEAD.
func HeadSHA(t *testing.T, dir string) string {
	t.Helper()
	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("rev-parse HEAD: %v", err)
	}
	return strings.TrimSpace(string(out))
}

// MustGit runs a git command in dir and fails the test on error.
func MustGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}
