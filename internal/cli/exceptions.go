package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"changeguard/internal/config"
	"changeguard/internal/exceptions"
)

// NewExceptionsCommand creates the exceptions command group.
func NewExceptionsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exceptions",
		Short: "Inspect the governance allow-list",
	}
	cmd.AddCommand(newExceptionsListCommand(rootOpts))
	return cmd
}

func newExceptionsListCommand(rootOpts *RootOptions) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List the allow-list rules the gate would apply",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExceptionsList(cmd, rootOpts, configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the governance configuration YAML (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runExceptionsList(cmd *cobra.Command, rootOpts *RootOptions, configPath string) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return commandError(formatter, ErrCodeConfig, err)
	}

	rules, err := exceptions.Load(cfg.ExceptionsFile)
	if err != nil {
		return commandError(formatter, ErrCodeConfig, err)
	}

	if formatter.Format == "json" {
		// An empty allow-list renders as [], not null.
		if rules == nil {
			rules = exceptions.Rules{}
		}
		return formatter.Success(rules)
	}

	if len(rules) == 0 {
		fmt.Fprintln(formatter.Writer, "no exception rules configured")
		return nil
	}

	fmt.Fprintf(formatter.Writer, "%-40s %-20s %s\n", "FILE", "ID", "AUTHOR")
	for _, r := range rules {
		fmt.Fprintf(formatter.Writer, "%-40s %-20s %s\n", r.File, r.ID, r.Author)
	}
	return nil
}
