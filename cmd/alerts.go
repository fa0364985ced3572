package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kev765740/dependencywarden/models"
)

var alertsStatus string
var alertsLimit int

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Inspect tracked vulnerability alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts and their remediation state",
	RunE:  runAlertsList,
}

var alertsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one alert in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertsShow,
}

func init() {
	alertsListCmd.Flags().StringVar(&alertsStatus, "status", "",
		"filter by status (pending, pr_created, failed, dismissed)")
	alertsListCmd.Flags().IntVar(&alertsLimit, "limit", 50, "maximum alerts to list")
	alertsCmd.AddCommand(alertsListCmd, alertsShowCmd)
}

func runAlertsList(cmd *cobra.Command, args []string) error {
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := context.Background()

	alerts, err := listAlerts(ctx, s, alertsStatus, alertsLimit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Println("No alerts.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREPO\tDEPENDENCY\tSEVERITY\tSTATUS\tPR")
	for _, a := range alerts {
		pr := a.PRURL
		if pr == "" {
			pr = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.RepoURL, a.Dependency, a.Severity, a.Status, pr)
	}
	return w.Flush()
}

func runAlertsShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()

	a, err := s.alerts.GetByID(context.Background(), id)
	if err != nil {
		return err
	}

	fmt.Printf("Alert #%d\n", a.ID)
	fmt.Printf("  Repository:    %s (repo id %d)\n", a.RepoURL, a.RepoID)
	fmt.Printf("  Dependency:    %s\n", a.Dependency)
	fmt.Printf("  Type:          %s\n", a.AlertType)
	fmt.Printf("  Severity:      %s\n", a.Severity)
	fmt.Printf("  Status:        %s\n", a.Status)
	if a.FixedVersion != "" {
		fmt.Printf("  Fixed version: %s\n", a.FixedVersion)
	}
	if a.Description != "" {
		fmt.Printf("  Description:   %s\n", a.Description)
	}
	if a.PRURL != "" {
		fmt.Printf("  Pull request:  %s (#%d)\n", a.PRURL, a.PRNumber)
	}
	if a.RemediationError != "" {
		fmt.Printf("  Last error:    %s\n", a.RemediationError)
	}
	return nil
}

func listAlerts(ctx context.Context, s *stack, status string, limit int) ([]models.Alert, error) {
	if status != "" {
		return s.alerts.ListByStatus(ctx, status, limit)
	}
	return s.alerts.List(ctx, limit)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid alert id %q", raw)
	}
	return id, nil
}
