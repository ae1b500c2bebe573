package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"

	"bizrent_ledger/internal/app"
	"bizrent_ledger/internal/config"
	"bizrent_ledger/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Create context that cancels on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()

	runner := tasks.NewRunner(tasks.DefaultRegistry(), a.TaskDeps())

	// Tasks left running by a crashed worker go back to the queue
	if n, err := runner.RecoverStale(ctx); err != nil {
		log.Errorf("Failed to recover stale tasks: %v", err)
	} else if n > 0 {
		log.Warnf("Recovered %d stale task(s)", n)
	}

	if created, err := tasks.SweepOverdueTask.Ensure(a.DB, cfg.OverdueSweepRule, time.Now()); err != nil {
		log.Errorf("Failed to schedule overdue sweep: %v", err)
	} else if created {
		log.Infof("Scheduled overdue sweep (%s)", cfg.OverdueSweepRule)
	}

	log.Infof("Worker started, checking every %s", cfg.WorkerInterval)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	// Run once at startup, then on every tick
	processScheduledTasks(ctx, runner)

	for {
		select {
		case <-ticker.C:
			processScheduledTasks(ctx, runner)
		case <-ctx.Done():
			log.Info("Shutting down worker...")
			return
		}
	}
}

func processScheduledTasks(ctx context.Context, runner *tasks.Runner) {
	n, err := runner.RunDue(ctx)
	if err != nil {
		log.Errorf("Error processing scheduled tasks: %v", err)
		return
	}
	if n == 0 {
		log.Debug("No pending tasks found.")
		return
	}
	log.Infof("Processed %d task(s).", n)
}
