// Package gitrev provides the version-control collaborators of the
// governance gate: fetching file content at a revision and listing the
// files changed between two revisions. Both shell out to git.
package gitrev

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// InfrastructureError is a version-control query that failed for
// reasons other than "the file does not exist at that revision". It is
// fatal to the run and maps to its own exit status.
type InfrastructureError struct {
	Op     string
	Stderr string
	Err    error
}

func (e *InfrastructureError) Error() string {
	msg := fmt.Sprintf("git %s failed: %v", e.Op, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

// Repo runs git against a repository. An empty Dir means the current
// working directory.
type Repo struct {
	Dir string
}

// Show returns the content of path at revision. The second return is
// false when the file does not exist at that revision, which is a
// normal condition, not an error. Any other git failure is an
// *InfrastructureError.
func (r *Repo) Show(ctx context.Context, revision, path string) ([]byte, bool, error) {
	out, stderr, err := r.run(ctx, "show", revision+":"+path)
	if err == nil {
		return out, true, nil
	}
	if pathAbsent(stderr) {
		return nil, false, nil
	}
	return nil, false, &InfrastructureError{Op: "show " + revision + ":" + path, Stderr: stderr, Err: err}
}

// ChangedFiles lists the paths changed between baseRevision and
// headRevision, in git's output order, using the merge-base form
// (base...head) so that only the head side's changes count.
func (r *Repo) ChangedFiles(ctx context.Context, baseRevision, headRevision string) ([]string, error) {
	out, stderr, err := r.run(ctx, "diff", "--name-only", baseRevision+"..."+headRevision)
	if err != nil {
		return nil, &InfrastructureError{Op: "diff --name-only", Stderr: stderr, Err: err}
	}

	var files []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

func (r *Repo) run(ctx context.Context, args ...string) ([]byte, string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.String(), err
}

// pathAbsent recognizes git's "path not there at this revision"
// complaints, as opposed to unknown revisions or transport failures.
// These messages are stable across git versions in practice.
func pathAbsent(stderr string) bool {
	return strings.Contains(stderr, "does not exist in") ||
		strings.Contains(stderr, "exists on disk, but not in")
}
