package guard

import (
	"fmt"
	"io"
)

// Violation is one changeset that was modified between base and head
// without a re-run flag or an allow-list entry. Violations appear in
// target-file order, then document order within a file.
type Violation struct {
	File   string `json:"file"`
	ID     string `json:"id"`
	Author string `json:"author"`
}

// Report is the outcome of one gate run.
type Report struct {
	RunID      string      `json:"run_id"`
	BaseName   string      `json:"base_name"`
	BaseRef    string      `json:"base_ref"`
	HeadRef    string      `json:"head_ref"`
	Skipped    bool        `json:"skipped"`
	SkipReason string      `json:"skip_reason,omitempty"`
	Targets    []string    `json:"targets,omitempty"`
	Violations []Violation `json:"violations,omitempty"`
}

// Passed reports the run verdict: pass iff no violations were found.
// A skipped run passes by definition.
func (r *Report) Passed() bool {
	return len(r.Violations) == 0
}

// WriteViolations prints the findings one per line, matching the
// long-standing report shape consumed by CI log scrapers.
func (r *Report) WriteViolations(w io.Writer) {
	if len(r.Violations) == 0 {
		return
	}
	fmt.Fprintln(w, "Liquibase governance violations:")
	for _, v := range r.Violations {
		fmt.Fprintf(w, " - %s :: id=%s author=%s (modified without re-run flag)\n", v.File, v.ID, v.Author)
	}
}
