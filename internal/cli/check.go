package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"changeguard/internal/audit"
	"changeguard/internal/changelog"
	"changeguard/internal/config"
	"changeguard/internal/exceptions"
	"changeguard/internal/gitrev"
	"changeguard/internal/guard"
)

// ErrCodeViolations tags the JSON envelope of a failed verdict. It is a
// finding, not a fault; the run completed.
const ErrCodeViolations = "E100"

// CheckOptions holds the flags of the check command.
type CheckOptions struct {
	ConfigPath string
	HeadRef    string
	BaseName   string
	BaseRef    string
	RepoDir    string
	AuditDB    string
	Timeout    time.Duration
}

// NewCheckCommand creates the check command, the actual gate.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Fail when applied changesets were modified without a re-run flag",
		Long: `Compares every governed changelog changed between the base and head
revisions. A changeset whose content digest changed is a violation
unless head marks it runOnChange/runAlways or an allow-list entry
covers it.

Exit codes: 0 pass or skip, 1 violations found, 2 configuration or
infrastructure failure.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to the governance configuration YAML (required)")
	cmd.Flags().StringVar(&opts.HeadRef, "head", "HEAD", "head revision to check")
	cmd.Flags().StringVar(&opts.BaseName, "base-name", "", "base branch name (defaults to $GITHUB_BASE_REF, then \"main\")")
	cmd.Flags().StringVar(&opts.BaseRef, "base-ref", "", "base revision to compare against (defaults to origin/<base-name>)")
	cmd.Flags().StringVar(&opts.RepoDir, "repo-dir", "", "repository directory (defaults to the working directory)")
	cmd.Flags().StringVar(&opts.AuditDB, "audit-db", "", "optional SQLite file recording run history")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "overall deadline for the check, 0 for none")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runCheck(cmd *cobra.Command, rootOpts *RootOptions, opts *CheckOptions) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return commandError(formatter, ErrCodeConfig, err)
	}

	rules, err := exceptions.Load(cfg.ExceptionsFile)
	if err != nil {
		return commandError(formatter, ErrCodeConfig, err)
	}
	formatter.VerboseLog("loaded %d exception rule(s)", len(rules))

	baseName := opts.BaseName
	if baseName == "" {
		baseName = os.Getenv("GITHUB_BASE_REF")
	}
	if baseName == "" {
		baseName = "main"
	}
	baseRef := opts.BaseRef
	if baseRef == "" {
		baseRef = "origin/" + baseName
	}

	ctx := cmd.Context()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	repo := &gitrev.Repo{Dir: opts.RepoDir}
	g := &guard.Guard{
		Config:   cfg,
		Rules:    rules,
		Fetcher:  repo,
		Lister:   repo,
		BaseName: baseName,
		BaseRef:  baseRef,
		HeadRef:  opts.HeadRef,
		Logf: func(format string, args ...any) {
			fmt.Fprintf(formatter.GetErrWriter(), format+"\n", args...)
		},
	}

	startedAt := time.Now()
	rep, err := g.Check(ctx)
	if err != nil {
		return commandError(formatter, classifyCheckError(err), err)
	}

	if opts.AuditDB != "" {
		if err := recordRun(ctx, opts.AuditDB, rep, startedAt); err != nil {
			return commandError(formatter, ErrCodeAudit, err)
		}
	}

	return outputCheckReport(formatter, rep)
}

// classifyCheckError maps a failed run to its error code.
func classifyCheckError(err error) string {
	var malformed *changelog.MalformedDocumentError
	if errors.As(err, &malformed) {
		return ErrCodeMalformed
	}
	var infra *gitrev.InfrastructureError
	if errors.As(err, &infra) {
		return ErrCodeInfrastructure
	}
	return ErrCodeGeneric
}

func recordRun(ctx context.Context, path string, rep *guard.Report, startedAt time.Time) error {
	store, err := audit.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.RecordRun(ctx, rep, startedAt, time.Now())
}

// commandError reports err and converts it into an exit-2 failure.
func commandError(formatter *OutputFormatter, code string, err error) error {
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, code, err)
}

func outputCheckReport(formatter *OutputFormatter, rep *guard.Report) error {
	if rep.Passed() {
		if formatter.Format == "json" {
			return formatter.Success(rep)
		}
		if rep.Skipped {
			fmt.Fprintln(formatter.Writer, rep.SkipReason+", check skipped")
		}
		fmt.Fprintln(formatter.Writer, "✓ Liquibase governance check passed")
		return nil
	}

	message := fmt.Sprintf("%d governance violation(s) found", len(rep.Violations))

	if formatter.Format == "json" {
		if err := encodeJSON(formatter.Writer, CLIResponse{
			Status: "error",
			Data:   rep,
			Error:  &CLIError{Code: ErrCodeViolations, Message: message},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, message)
	}

	rep.WriteViolations(formatter.GetErrWriter())
	return NewExitError(ExitFailure, message)
}
