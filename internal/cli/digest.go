package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"changeguard/internal/changelog"
)

// ChangesetDigest is one row of the digest command's output.
type ChangesetDigest struct {
	ID          string `json:"id"`
	Author      string `json:"author"`
	RunOnChange bool   `json:"run_on_change"`
	RunAlways   bool   `json:"run_always"`
	Digest      string `json:"digest"`
}

// NewDigestCommand creates the digest command, a debugging aid that
// prints the content digest of every changeset in a changelog file.
// Comparing two revisions' output shows exactly which changeset
// tripped the gate.
func NewDigestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "digest <changelog-file>",
		Short:         "Print the content digest of each changeset in a changelog",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

func runDigest(cmd *cobra.Command, rootOpts *RootOptions, path string) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return commandError(formatter, ErrCodeGeneric, err)
	}

	snap, err := changelog.Extract(data, path)
	if err != nil {
		return commandError(formatter, ErrCodeMalformed, err)
	}

	rows := make([]ChangesetDigest, 0, snap.Len())
	for _, k := range snap.Keys() {
		rec, _ := snap.Lookup(k)
		rows = append(rows, ChangesetDigest{
			ID:          k.ID,
			Author:      k.Author,
			RunOnChange: rec.RunOnChange,
			RunAlways:   rec.RunAlways,
			Digest:      rec.Digest,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(rows)
	}

	for _, row := range rows {
		flags := ""
		if row.RunOnChange {
			flags += " runOnChange"
		}
		if row.RunAlways {
			flags += " runAlways"
		}
		fmt.Fprintf(formatter.Writer, "%s  id=%s author=%s%s\n", row.Digest, row.ID, row.Author, flags)
	}
	return nil
}
