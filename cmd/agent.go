package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kev765740/dependencywarden/internal/remediation"
)

var agentOnce bool

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the background remediation loop",
	Long: `Starts the remediation agent: every drain interval it picks up pending
alerts whose repository policy allows auto-fixing and opens fix pull
requests with a bounded worker pool.

Use --once to drain the queue a single time and exit.`,
	RunE: runAgent,
}

func init() {
	agentCmd.Flags().BoolVar(&agentOnce, "once", false, "drain pending alerts once and exit")
}

func runAgent(cmd *cobra.Command, args []string) error {
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()

	runner, err := remediation.NewRunner(s.exec, s.alerts, s.cfg.Agent, nil)
	if err != nil {
		return err
	}

	if agentOnce {
		runner.Drain(context.Background())
		return nil
	}

	if err := runner.Start(); err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	fmt.Println("\nShutting down agent gracefully...")
	runner.Stop()
	return nil
}
