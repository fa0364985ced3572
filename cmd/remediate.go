package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var remediateRetry bool

var remediateCmd = &cobra.Command{
	Use:   "remediate <alert-id>",
	Short: "Remediate a single alert now",
	Long: `Runs one remediation attempt for the given alert: resolves the
repository's auto-fix policy, plans the dependency bump, creates a fix
branch, and opens a pull request.

Use --retry to re-enter a previously failed alert into the queue first.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemediate,
}

func init() {
	remediateCmd.Flags().BoolVar(&remediateRetry, "retry", false,
		"requeue the alert if it previously failed")
}

func runRemediate(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := context.Background()

	if remediateRetry {
		if err := s.exec.Retry(ctx, id); err != nil {
			return err
		}
	}

	out := s.exec.Execute(ctx, id)
	switch {
	case out.Success:
		fmt.Printf("PR opened: %s (#%d)\n", out.PRURL, out.PRNumber)
		if out.Degraded {
			fmt.Println("Note: the manifest could not be edited; the PR carries an advisory note instead.")
		}
	case out.Skipped:
		fmt.Printf("Skipped: %s\n", out.SkipReason)
	default:
		return fmt.Errorf("remediation failed: %s", out.Error)
	}
	return nil
}
