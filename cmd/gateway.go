package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kev765740/dependencywarden/internal/gateway"
	"github.com/kev765740/dependencywarden/internal/remediation"
)

var gatewayPort int

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the local REST control plane",
	Long: `Starts the depwarden gateway: the remediation agent plus a local HTTP
API (default: http://127.0.0.1:6180) for inspecting alerts, triggering and
retrying remediations, and managing policies.

Quick API reference:
  GET   /health                              liveness check
  GET   /api/alerts                          list alerts (?status=pending&limit=50)
  GET   /api/alerts/{id}                     one alert with remediation state
  POST  /api/alerts/{id}/remediate           run a remediation attempt now
  POST  /api/alerts/{id}/retry               requeue a failed alert
  GET   /api/repos/{id}/policy               effective auto-fix policy
  PATCH /api/repos/{id}/policy               partial policy update (422 if invalid)
  POST  /api/repos/{id}/policy/validate      dry-run validation of a patch`,
	RunE: runGateway,
}

func init() {
	gatewayCmd.Flags().IntVar(&gatewayPort, "port", 0,
		"HTTP port to listen on (default 6180, overrides config)")
}

func runGateway(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println("\nShutting down gateway gracefully...")
		cancel()
	}()

	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()
	if gatewayPort != 0 {
		s.cfg.Gateway.Port = gatewayPort
	}

	runner, err := remediation.NewRunner(s.exec, s.alerts, s.cfg.Agent, nil)
	if err != nil {
		return err
	}
	if err := runner.Start(); err != nil {
		return err
	}
	defer runner.Stop()

	gw := gateway.New(s.cfg, s.alerts, s.resolver, s.exec, nil)
	return gw.Start(ctx)
}
