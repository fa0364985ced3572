package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/kev765740/dependencywarden/internal/policy"
	"github.com/kev765740/dependencywarden/models"
)

var (
	policyRepoID     int64
	policySetSevs    []string
	policyImportYAML string
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Show, change, and validate per-repository auto-fix policies",
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective policy for a repository",
	RunE:  runPolicyShow,
}

var policySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Apply a partial policy update",
	Long: `Applies the given flags as a partial update to the repository's policy.
The merged result is validated first; an invalid result changes nothing.`,
	RunE: runPolicySet,
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the stored policy for a repository",
	RunE:  runPolicyValidate,
}

var policyImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-apply policy updates from a YAML file",
	Long: `Reads a YAML document mapping repository ids to partial policy updates
and applies them independently; a rejected update for one repository never
blocks the others.

Example file:

  policies:
    7:
      max_daily_prs: 10
      allowed_severities: [critical, high, medium]
    12:
      enabled: false`,
	RunE: runPolicyImport,
}

func init() {
	policyCmd.PersistentFlags().Int64Var(&policyRepoID, "repo", 0, "repository id")

	f := policySetCmd.Flags()
	f.Bool("enabled", true, "enable or disable auto-fix")
	f.Bool("auto-merge", false, "auto-merge fix PRs when checks pass")
	f.Bool("requires-review", true, "require human review on fix PRs")
	f.Bool("test-required", true, "require passing tests before merge")
	f.Int("max-daily-prs", 0, "daily PR quota per repository (1-50)")
	f.String("branch-prefix", "", "fix branch prefix")
	f.StringSliceVar(&policySetSevs, "severities", nil, "allowed severities (comma-separated)")

	policyImportCmd.Flags().StringVarP(&policyImportYAML, "file", "f", "", "YAML file to import (required)")
	_ = policyImportCmd.MarkFlagRequired("file")

	policyCmd.AddCommand(policyShowCmd, policySetCmd, policyValidateCmd, policyImportCmd)
}

func requireRepoID() error {
	if policyRepoID <= 0 {
		return fmt.Errorf("--repo is required")
	}
	return nil
}

func runPolicyShow(cmd *cobra.Command, args []string) error {
	if err := requireRepoID(); err != nil {
		return err
	}
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := s.resolver.Resolve(context.Background(), policyRepoID)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runPolicySet(cmd *cobra.Command, args []string) error {
	if err := requireRepoID(); err != nil {
		return err
	}
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()

	patch := buildPatch(cmd)
	updated, report, err := s.resolver.Update(context.Background(), policyRepoID, patch)
	if err != nil {
		return err
	}
	if report.HasErrors() {
		printReport(report)
		return fmt.Errorf("policy update rejected; nothing was changed")
	}
	printReport(report)
	fmt.Printf("Policy for repo %d updated (max daily PRs: %d, enabled: %v).\n",
		policyRepoID, updated.MaxDailyPRs, updated.Enabled)
	return nil
}

func runPolicyValidate(cmd *cobra.Command, args []string) error {
	if err := requireRepoID(); err != nil {
		return err
	}
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := s.resolver.Resolve(context.Background(), policyRepoID)
	if err != nil {
		return err
	}
	report := policy.Validate(p)
	printReport(report)
	if report.HasErrors() {
		return fmt.Errorf("policy for repo %d is invalid", policyRepoID)
	}
	fmt.Printf("Policy for repo %d is valid.\n", policyRepoID)
	return nil
}

func runPolicyImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(policyImportYAML)
	if err != nil {
		return fmt.Errorf("reading %s: %w", policyImportYAML, err)
	}
	var doc struct {
		Policies map[int64]*models.PolicyPatch `yaml:"policies"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", policyImportYAML, err)
	}
	if len(doc.Policies) == 0 {
		return fmt.Errorf("%s contains no policies", policyImportYAML)
	}

	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()

	succeeded, failed, results := s.resolver.BulkUpdate(context.Background(), doc.Policies)
	for _, res := range results {
		if res.OK {
			fmt.Printf("repo %d: ok\n", res.RepoID)
		} else {
			fmt.Printf("repo %d: REJECTED (%s)\n", res.RepoID, res.Error)
		}
	}
	fmt.Printf("%d updated, %d rejected.\n", succeeded, failed)
	if failed > 0 {
		return fmt.Errorf("some policy updates were rejected")
	}
	return nil
}

// buildPatch converts only the flags the user actually set into a patch.
func buildPatch(cmd *cobra.Command) *models.PolicyPatch {
	patch := &models.PolicyPatch{}
	f := cmd.Flags()
	if f.Changed("enabled") {
		v, _ := f.GetBool("enabled")
		patch.Enabled = &v
	}
	if f.Changed("auto-merge") {
		v, _ := f.GetBool("auto-merge")
		patch.AutoMerge = &v
	}
	if f.Changed("requires-review") {
		v, _ := f.GetBool("requires-review")
		patch.RequiresReview = &v
	}
	if f.Changed("test-required") {
		v, _ := f.GetBool("test-required")
		patch.TestRequired = &v
	}
	if f.Changed("max-daily-prs") {
		v, _ := f.GetInt("max-daily-prs")
		patch.MaxDailyPRs = &v
	}
	if f.Changed("branch-prefix") {
		v, _ := f.GetString("branch-prefix")
		patch.BranchPrefix = &v
	}
	if f.Changed("severities") {
		for _, raw := range policySetSevs {
			patch.AllowedSeverities = append(patch.AllowedSeverities,
				models.Severity(strings.ToLower(strings.TrimSpace(raw))))
		}
	}
	return patch
}

func printReport(report *policy.Report) {
	for _, e := range report.Errors {
		fmt.Printf("error: %s\n", e.Error())
	}
	for _, w := range report.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
}
