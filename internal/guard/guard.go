// Package guard implements the governance classifier: it walks the
// files changed between a base and a head revision, compares the
// changesets they contain, and turns unsanctioned mutations of
// already-applied changesets into violations.
package guard

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"changeguard/internal/changelog"
	"changeguard/internal/config"
	"changeguard/internal/diffing"
	"changeguard/internal/exceptions"
)

// ContentFetcher fetches file content at a revision. The boolean is
// false when the path does not exist at that revision.
type ContentFetcher interface {
	Show(ctx context.Context, revision, path string) ([]byte, bool, error)
}

// ChangeLister lists the paths changed between two revisions.
type ChangeLister interface {
	ChangedFiles(ctx context.Context, baseRevision, headRevision string) ([]string, error)
}

// Guard holds one run's inputs. Runs are self-contained: nothing is
// cached or carried across invocations.
type Guard struct {
	Config *config.Config
	Rules  exceptions.Rules

	Fetcher ContentFetcher
	Lister  ChangeLister

	// BaseName is the base branch name checked against the configured
	// patterns; BaseRef and HeadRef are the revisions actually compared.
	BaseName string
	BaseRef  string
	HeadRef  string

	// RunID correlates the report with audit records. Generated when
	// left empty.
	RunID string

	// Logf receives diagnostic output (duplicate-key warnings, skip
	// notices). Optional.
	Logf func(format string, args ...any)
}

// Check runs the whole gate. Violations are findings, not errors: a
// failing verdict returns a report with a non-empty Violations slice
// and a nil error. A non-nil error means the run itself could not
// complete (infrastructure failure or a malformed document), and any
// partial findings are discarded.
func (g *Guard) Check(ctx context.Context) (*Report, error) {
	rep := &Report{
		RunID:    g.RunID,
		BaseName: g.BaseName,
		BaseRef:  g.BaseRef,
		HeadRef:  g.HeadRef,
	}
	if rep.RunID == "" {
		rep.RunID = NewRunID()
	}

	// Skip decision comes before any version-control work.
	if !matchesAny(g.BaseName, g.Config.BaseBranchPatterns) {
		rep.Skipped = true
		rep.SkipReason = "base branch " + g.BaseName + " matches no configured pattern"
		g.logf("base branch %q matches none of %v, skipping check", g.BaseName, g.Config.BaseBranchPatterns)
		return rep, nil
	}

	changed, err := g.Lister.ChangedFiles(ctx, g.BaseRef, g.HeadRef)
	if err != nil {
		return nil, err
	}

	rep.Targets = g.targetFiles(changed)
	if len(rep.Targets) == 0 {
		g.logf("no governed changelog files changed between %s and %s", g.BaseRef, g.HeadRef)
		return rep, nil
	}

	// Files are classified independently; one file's findings never
	// influence another's. A malformed document aborts the whole run.
	for _, file := range rep.Targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := g.classifyFile(ctx, rep, file); err != nil {
			return nil, err
		}
	}
	return rep, nil
}

// classifyFile appends the violations of one changed file to the report.
func (g *Guard) classifyFile(ctx context.Context, rep *Report, file string) error {
	headBytes, ok, err := g.Fetcher.Show(ctx, g.HeadRef, file)
	if err != nil {
		return err
	}
	if !ok {
		// Deleted at head; deletions are never governed.
		return nil
	}

	headSnap, err := changelog.Extract(headBytes, file)
	if err != nil {
		return err
	}
	for _, k := range headSnap.Collisions() {
		g.logf("warning: %s: duplicate changeset id=%q author=%q, keeping the last occurrence", file, k.ID, k.Author)
	}

	baseSnap := changelog.NewSnapshot()
	baseBytes, ok, err := g.Fetcher.Show(ctx, g.BaseRef, file)
	if err != nil {
		return err
	}
	if ok {
		if baseSnap, err = changelog.Extract(baseBytes, file); err != nil {
			return err
		}
	}

	for _, ch := range diffing.Diff(baseSnap, headSnap) {
		if !ch.Changed {
			continue
		}
		if ch.Head.RunOnChange || ch.Head.RunAlways {
			continue
		}
		if g.Rules.Covers(file, ch.Key.ID, ch.Key.Author) {
			continue
		}
		rep.Violations = append(rep.Violations, Violation{
			File:   file,
			ID:     ch.Key.ID,
			Author: ch.Key.Author,
		})
	}
	return nil
}

// targetFiles filters the changed-file list down to governed
// changelogs: under a configured path prefix and carrying a configured
// extension.
func (g *Guard) targetFiles(changed []string) []string {
	var targets []string
	for _, f := range changed {
		if underAnyPrefix(f, g.Config.ChangelogPaths) && hasAnySuffix(f, g.Config.FileExtensions) {
			targets = append(targets, f)
		}
	}
	return targets
}

func underAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

func hasAnySuffix(path string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if exceptions.Match(p, name) {
			return true
		}
	}
	return false
}

func (g *Guard) logf(format string, args ...any) {
	if g.Logf != nil {
		g.Logf(format, args...)
	}
}

// NewRunID returns a time-sortable UUIDv7 identifier for one gate run.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}
