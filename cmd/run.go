package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/KunlingLio/project-timer/internal/activity"
	"github.com/KunlingLio/project-timer/internal/history"
	"github.com/KunlingLio/project-timer/internal/timecalc"
	"github.com/KunlingLio/project-timer/internal/tracker"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Track time in the workspace until interrupted",
	Long: `run watches the workspace for edits and records active time every tick.
Time stops counting after the configured idle threshold without edits.
Recorded time is flushed on the configured interval and on exit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(runRun)
	},
}

func runRun(ctx context.Context, a *app) error {
	rec, err := a.store.Get(ctx)
	if err != nil {
		return err
	}
	startToday := history.OnDate(rec.History, timecalc.DateKey(time.Now()))

	watcher, err := activity.NewWatcher(a.root, a.logger,
		a.cfg.DataDir, a.cfg.Store.Path, a.cfg.Log.File)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		_ = watcher.Stop()
		return err
	}

	tr := tracker.New(tracker.Options{
		Store:         a.store,
		Logger:        a.logger,
		Tick:          a.cfg.Timer.Tick,
		PauseWhenIdle: a.cfg.Timer.PauseWhenIdle,
		IdleThreshold: a.cfg.Timer.IdleThreshold,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Tracking %q in %s. Press Ctrl+C to stop.\n", rec.Name(), a.root)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tr.Run(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev, ok := <-watcher.Events():
				if !ok {
					return nil
				}
				tr.Touch(ev.File, ev.Language)
			case err, ok := <-watcher.Errors():
				if !ok {
					return nil
				}
				a.logger.Warn("workspace watcher error", "err", err)
			}
		}
	})

	runErr := g.Wait()
	if err := watcher.Stop(); err != nil {
		a.logger.Warn("stopping watcher", "err", err)
	}
	if runErr != nil {
		return runErr
	}

	// Close flushes what is still cached; read the result back afterwards.
	if err := a.store.Close(context.Background()); err != nil {
		return err
	}
	rec, err = a.store.Get(context.Background())
	if err != nil {
		return err
	}
	recorded := history.OnDate(rec.History, timecalc.DateKey(time.Now())) - startToday
	if recorded < 0 {
		recorded = 0
	}
	fmt.Printf("\nStopped. Recorded %s this session.\n", timecalc.FormatSeconds(recorded))
	return nil
}
