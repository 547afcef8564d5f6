package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changeguard/internal/changelog"
	"changeguard/internal/config"
	"changeguard/internal/exceptions"
)

// fakeRepo serves file content per revision from memory.
type fakeRepo struct {
	changed    []string
	changedErr error
	files      map[string]map[string]string // revision -> path -> content
	showErr    error
}

func (f *fakeRepo) Show(_ context.Context, revision, path string) ([]byte, bool, error) {
	if f.showErr != nil {
		return nil, false, f.showErr
	}
	content, ok := f.files[revision][path]
	if !ok {
		return nil, false, nil
	}
	return []byte(content), true, nil
}

func (f *fakeRepo) ChangedFiles(_ context.Context, _, _ string) ([]string, error) {
	if f.changedErr != nil {
		return nil, f.changedErr
	}
	return f.changed, nil
}

func newGuard(repo *fakeRepo, cfg *config.Config, rules exceptions.Rules) *Guard {
	if cfg == nil {
		cfg = &config.Config{
			ChangelogPaths:     []string{"db"},
			FileExtensions:     config.DefaultFileExtensions,
			BaseBranchPatterns: config.DefaultBaseBranchPatterns,
		}
	}
	return &Guard{
		Config:   cfg,
		Rules:    rules,
		Fetcher:  repo,
		Lister:   repo,
		BaseName: "main",
		BaseRef:  "origin/main",
		HeadRef:  "HEAD",
		RunID:    "test-run",
	}
}

const baseChangelog = `<databaseChangeLog>
  <changeSet id="1" author="bob"><createTable tableName="person"/></changeSet>
</databaseChangeLog>`

func TestCheckModifiedChangesetIsViolation(t *testing.T) {
	// Scenario A: content mutated, no re-run flag, no exception.
	repo := &fakeRepo{
		changed: []string{"db/changelog.xml"},
		files: map[string]map[string]string{
			"origin/main": {"db/changelog.xml": baseChangelog},
			"HEAD": {"db/changelog.xml": `<databaseChangeLog>
  <changeSet id="1" author="bob"><createTable tableName="person"><column name="age"/></createTable></changeSet>
</databaseChangeLog>`},
		},
	}

	rep, err := newGuard(repo, nil, nil).Check(context.Background())
	require.NoError(t, err)
	assert.False(t, rep.Passed())
	require.Len(t, rep.Violations, 1)
	assert.Equal(t, Violation{File: "db/changelog.xml", ID: "1", Author: "bob"}, rep.Violations[0])
}

func TestCheckRunOnChangeExempts(t *testing.T) {
	// Scenario B: same mutation, but head carries runOnChange="true".
	repo := &fakeRepo{
		changed: []string{"db/changelog.xml"},
		files: map[string]map[string]string{
			"origin/main": {"db/changelog.xml": baseChangelog},
			"HEAD": {"db/changelog.xml": `<databaseChangeLog>
  <changeSet id="1" author="bob" runOnChange="true"><createTable tableName="person"><column name="age"/></createTable></changeSet>
</databaseChangeLog>`},
		},
	}

	rep, err := newGuard(repo, nil, nil).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Passed())
	assert.Empty(t, rep.Violations)
}

func TestCheckWhitelistExempts(t *testing.T) {
	// Scenario C: mutation covered by an allow-list rule.
	repo := &fakeRepo{
		changed: []string{"db/changelog.xml"},
		files: map[string]map[string]string{
			"origin/main": {"db/changelog.xml": baseChangelog},
			"HEAD": {"db/changelog.xml": `<databaseChangeLog>
  <changeSet id="1" author="bob"><createTable tableName="person"><column name="age"/></createTable></changeSet>
</databaseChangeLog>`},
		},
	}
	rules := exceptions.Rules{{File: "db/*.xml", ID: "1", Author: "bob"}}

	rep, err := newGuard(repo, nil, rules).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Passed())
}

func TestCheckMalformedHeadAborts(t *testing.T) {
	// Scenario D: an unparsable head document fails the whole run and
	// reports no violations from other files.
	repo := &fakeRepo{
		changed: []string{"db/broken.xml", "db/changelog.xml"},
		files: map[string]map[string]string{
			"origin/main": {
				"db/broken.xml":    baseChangelog,
				"db/changelog.xml": baseChangelog,
			},
			"HEAD": {
				"db/broken.xml":    `<databaseChangeLog><changeSet id="1"`,
				"db/changelog.xml": `<databaseChangeLog><changeSet id="1" author="bob"><sql>mutated</sql></changeSet></databaseChangeLog>`,
			},
		},
	}

	rep, err := newGuard(repo, nil, nil).Check(context.Background())
	require.Error(t, err)
	assert.Nil(t, rep)

	var malformed *changelog.MalformedDocumentError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "db/broken.xml", malformed.Path)
}

func TestCheckMalformedBaseAborts(t *testing.T) {
	repo := &fakeRepo{
		changed: []string{"db/changelog.xml"},
		files: map[string]map[string]string{
			"origin/main": {"db/changelog.xml": `not xml`},
			"HEAD":        {"db/changelog.xml": baseChangelog},
		},
	}

	_, err := newGuard(repo, nil, nil).Check(context.Background())
	var malformed *changelog.MalformedDocumentError
	require.ErrorAs(t, err, &malformed)
}

func TestCheckBaseBranchSkip(t *testing.T) {
	// Scenario E: base branch outside the configured patterns skips all
	// work, including the changed-file listing.
	repo := &fakeRepo{changedErr: errors.New("must not be called")}
	cfg := &config.Config{
		ChangelogPaths:     []string{"db"},
		FileExtensions:     []string{".xml"},
		BaseBranchPatterns: []string{"main", "release/*"},
	}

	g := newGuard(repo, cfg, nil)
	g.BaseName = "feature-x"

	rep, err := g.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Skipped)
	assert.True(t, rep.Passed())
	assert.NotEmpty(t, rep.SkipReason)
}

func TestCheckBaseBranchPatternMatch(t *testing.T) {
	repo := &fakeRepo{changed: nil}
	cfg := &config.Config{
		ChangelogPaths:     []string{"db"},
		FileExtensions:     []string{".xml"},
		BaseBranchPatterns: []string{"main", "release/*"},
	}

	g := newGuard(repo, cfg, nil)
	g.BaseName = "release/2024.06"

	rep, err := g.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, rep.Skipped)
}

func TestCheckAdditionsAndDeletionsPass(t *testing.T) {
	repo := &fakeRepo{
		changed: []string{"db/new.xml", "db/gone.xml"},
		files: map[string]map[string]string{
			// new.xml only at head, gone.xml only at base.
			"origin/main": {"db/gone.xml": baseChangelog},
			"HEAD":        {"db/new.xml": baseChangelog},
		},
	}

	rep, err := newGuard(repo, nil, nil).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Passed())
	assert.Equal(t, []string{"db/new.xml", "db/gone.xml"}, rep.Targets)
}

func TestCheckTargetFiltering(t *testing.T) {
	repo := &fakeRepo{
		changed: []string{
			"db/changelog.xml",     // governed
			"db/notes.md",          // wrong extension
			"src/db/changelog.xml", // outside prefix
			"db",                   // prefix itself, not a changelog
			"database/x.xml",       // prefix is "db", not "database"
		},
		files: map[string]map[string]string{
			"origin/main": {"db/changelog.xml": baseChangelog},
			"HEAD":        {"db/changelog.xml": baseChangelog},
		},
	}

	rep, err := newGuard(repo, nil, nil).Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"db/changelog.xml"}, rep.Targets)
	assert.True(t, rep.Passed())
}

func TestCheckNoRelevantFiles(t *testing.T) {
	repo := &fakeRepo{changed: []string{"src/main.go"}}

	rep, err := newGuard(repo, nil, nil).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Passed())
	assert.Empty(t, rep.Targets)
}

func TestCheckInfrastructureFailure(t *testing.T) {
	boom := errors.New("git transport failure")
	repo := &fakeRepo{changedErr: boom}

	_, err := newGuard(repo, nil, nil).Check(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestCheckViolationOrdering(t *testing.T) {
	// Violations follow target-file order, then document order.
	mutated := func(ids ...string) string {
		doc := "<databaseChangeLog>"
		for _, id := range ids {
			doc += `<changeSet id="` + id + `" author="bob"><sql>new body ` + id + `</sql></changeSet>`
		}
		return doc + "</databaseChangeLog>"
	}
	original := func(ids ...string) string {
		doc := "<databaseChangeLog>"
		for _, id := range ids {
			doc += `<changeSet id="` + id + `" author="bob"><sql>old body</sql></changeSet>`
		}
		return doc + "</databaseChangeLog>"
	}

	repo := &fakeRepo{
		changed: []string{"db/b.xml", "db/a.xml"},
		files: map[string]map[string]string{
			"origin/main": {
				"db/b.xml": original("10", "11"),
				"db/a.xml": original("1"),
			},
			"HEAD": {
				"db/b.xml": mutated("10", "11"),
				"db/a.xml": mutated("1"),
			},
		},
	}

	rep, err := newGuard(repo, nil, nil).Check(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Violations, 3)
	assert.Equal(t, "db/b.xml", rep.Violations[0].File)
	assert.Equal(t, "10", rep.Violations[0].ID)
	assert.Equal(t, "11", rep.Violations[1].ID)
	assert.Equal(t, "db/a.xml", rep.Violations[2].File)
}

func TestCheckEveryNonExemptMutationReported(t *testing.T) {
	// Exhaustiveness: one finding per mutated changeset, not just the first.
	repo := &fakeRepo{
		changed: []string{"db/changelog.xml"},
		files: map[string]map[string]string{
			"origin/main": {"db/changelog.xml": `<databaseChangeLog>
  <changeSet id="1" author="bob"><sql>one</sql></changeSet>
  <changeSet id="2" author="eve"><sql>two</sql></changeSet>
  <changeSet id="3" author="kim"><sql>three</sql></changeSet>
</databaseChangeLog>`},
			"HEAD": {"db/changelog.xml": `<databaseChangeLog>
  <changeSet id="1" author="bob"><sql>one changed</sql></changeSet>
  <changeSet id="2" author="eve" runAlways="true"><sql>two changed</sql></changeSet>
  <changeSet id="3" author="kim"><sql>three changed</sql></changeSet>
</databaseChangeLog>`},
		},
	}

	rep, err := newGuard(repo, nil, nil).Check(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Violations, 2)
	assert.Equal(t, "1", rep.Violations[0].ID)
	assert.Equal(t, "3", rep.Violations[1].ID)
}

func TestCheckGeneratesRunID(t *testing.T) {
	repo := &fakeRepo{changed: nil}
	g := newGuard(repo, nil, nil)
	g.RunID = ""

	rep, err := g.Check(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, rep.RunID)
}

func TestCheckDuplicateKeyWarning(t *testing.T) {
	repo := &fakeRepo{
		changed: []string{"db/changelog.xml"},
		files: map[string]map[string]string{
			"origin/main": {"db/changelog.xml": `<databaseChangeLog><changeSet id="1" author="bob"><sql>old</sql></changeSet></databaseChangeLog>`},
			"HEAD": {"db/changelog.xml": `<databaseChangeLog>
  <changeSet id="1" author="bob"><sql>old</sql></changeSet>
  <changeSet id="1" author="bob"><sql>old</sql></changeSet>
</databaseChangeLog>`},
		},
	}

	var logged []string
	g := newGuard(repo, nil, nil)
	g.Logf = func(format string, args ...any) {
		logged = append(logged, format)
	}

	_, err := g.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "duplicate changeset")
}
