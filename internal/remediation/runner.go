package remediation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kev765740/dependencywarden/internal/config"
	"github.com/kev765740/dependencywarden/internal/store"
	"github.com/kev765740/dependencywarden/models"
)

const drainBatchSize = 50

// Runner periodically drains pending alerts through the executor with a
// bounded worker pool.
type Runner struct {
	exec     *Executor
	alerts   *store.AlertStore
	interval time.Duration
	workers  int
	cron     *cron.Cron
	log      *slog.Logger

	mu       sync.Mutex
	draining bool
}

// NewRunner builds the background drain loop from agent config.
func NewRunner(exec *Executor, alerts *store.AlertStore, cfg config.AgentConfig, log *slog.Logger) (*Runner, error) {
	interval := 5 * time.Minute
	if cfg.DrainInterval != "" {
		d, err := time.ParseDuration(cfg.DrainInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid drain_interval %q: %w", cfg.DrainInterval, err)
		}
		interval = d
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 3
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		exec:     exec,
		alerts:   alerts,
		interval: interval,
		workers:  workers,
		cron:     cron.New(),
		log:      log,
	}, nil
}

// Start drains once immediately, then on every interval tick.
func (r *Runner) Start() error {
	expr := fmt.Sprintf("@every %s", r.interval)
	if _, err := r.cron.AddFunc(expr, func() { r.Drain(context.Background()) }); err != nil {
		return fmt.Errorf("registering drain schedule: %w", err)
	}
	r.cron.Start()
	r.log.Info("remediation runner started", "interval", r.interval, "workers", r.workers)
	go r.Drain(context.Background())
	return nil
}

// Stop halts the schedule and waits for a running drain's jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// Drain remediates all currently pending alerts. Overlapping drains are
// collapsed: a tick that fires while one is running is dropped.
func (r *Runner) Drain(ctx context.Context) {
	r.mu.Lock()
	if r.draining {
		r.mu.Unlock()
		return
	}
	r.draining = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.draining = false
		r.mu.Unlock()
	}()

	alerts, err := r.alerts.ListByStatus(ctx, models.StatusPending, drainBatchSize)
	if err != nil {
		r.log.Error("listing pending alerts failed", "error", err)
		return
	}
	if len(alerts) == 0 {
		return
	}
	r.log.Info("draining pending alerts", "count", len(alerts))

	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup
	for _, alert := range alerts {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			defer func() { <-sem }()
			out := r.exec.Execute(ctx, id)
			if out.Error != "" {
				r.log.Warn("drain: remediation failed", "alert", id, "error", out.Error)
			}
		}(alert.ID)
	}
	wg.Wait()
}
