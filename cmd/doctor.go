package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kev765740/dependencywarden/internal/config"
	"github.com/kev765740/dependencywarden/internal/database"
	"github.com/kev765740/dependencywarden/internal/notify"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify credentials, database, and notification health",
	Long: `Checks that the database can be reached, hosting credentials are
configured, and at least one notification channel is ready.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	allOK := true

	fmt.Println("=== depwarden doctor ===")
	fmt.Println()

	fmt.Print("Database ................. ")
	db, err := database.New(cfg.Database)
	if err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else {
		if err := db.Ping(ctx); err != nil {
			fmt.Printf("FAIL (%s)\n", err)
			allOK = false
		} else {
			fmt.Printf("OK (%s: %s)\n", db.Driver(), cfg.Database.Path)
		}
		db.Close()
	}

	fmt.Print("GitHub token ............. ")
	if len(cfg.Git.GitHub) == 0 || cfg.Git.GitHub[0].Token == "" {
		fmt.Println("WARN (not configured)")
	} else {
		host := cfg.Git.GitHub[0].Host
		if host == "" {
			host = "github.com"
		}
		fmt.Printf("OK (%s)\n", host)
	}

	fmt.Print("GitLab token ............. ")
	if len(cfg.Git.GitLab) == 0 || cfg.Git.GitLab[0].Token == "" {
		fmt.Println("WARN (not configured)")
	} else {
		host := cfg.Git.GitLab[0].Host
		if host == "" {
			host = "gitlab.com"
		}
		fmt.Printf("OK (%s)\n", host)
	}

	if len(cfg.Git.GitHub) == 0 && len(cfg.Git.GitLab) == 0 {
		allOK = false
	}

	fmt.Print("Notifications ............ ")
	d := notify.NewDispatcher(cfg.Notify)
	if d.IsAnyConfigured() {
		fmt.Println("OK")
	} else {
		fmt.Println("none configured (remediation outcomes will only be logged)")
	}

	fmt.Print("Agent settings ........... ")
	fmt.Printf("workers=%d drain=%s timeout=%s attempts=%d\n",
		cfg.Agent.Workers, cfg.Agent.DrainInterval, cfg.Agent.CallTimeout, cfg.Agent.MaxAttempts)

	fmt.Println()
	if !allOK {
		return fmt.Errorf("some checks failed; fix the FAIL items above")
	}
	fmt.Println("All checks passed.")
	return nil
}
