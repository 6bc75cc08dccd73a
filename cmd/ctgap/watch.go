package main

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/guarzo/ctgap/internal/history"
	"github.com/guarzo/ctgap/internal/model"
	"github.com/guarzo/ctgap/internal/scan"
)

// cronLogger routes cron's own messages to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}

func (a *app) runWatch(ctx context.Context, args []string) error {
	fs := a.flagSet("watch")
	schedule := fs.String("schedule", a.cfg.WatchSchedule, "cron spec or @every interval")
	immediate := fs.Bool("now", true, "run once at startup before waiting for the schedule")
	c, err := a.prepareCriteria(fs, args)
	if err != nil {
		return err
	}

	hist, err := history.Open(a.cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer hist.Close()

	w := &watcher{scanner: a.scanner(), hist: hist, criteria: c, announce: func(m model.Match) {
		fmt.Fprintln(a.stdout, scan.FormatMatch(m))
	}}
	if err := w.scanner.Validate(c); err != nil {
		return err
	}

	logger := cronLogger{}
	sched := cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger)))
	if _, err := sched.AddFunc(*schedule, func() { w.runOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", *schedule, err)
	}

	log.Info().Str("schedule", *schedule).Ints("expansions", c.ExpansionIDs).Msg("watching")
	if *immediate {
		w.runOnce(ctx)
	}

	sched.Start()
	<-ctx.Done()
	<-sched.Stop().Done()
	return nil
}

// watcher runs one scan per tick and announces matches not seen before.
type watcher struct {
	scanner  *scan.Scanner
	hist     *history.Store
	criteria model.Criteria
	announce func(model.Match)
}

func (w *watcher) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	runID, err := w.hist.StartRun(w.criteria)
	if err != nil {
		log.Error().Err(err).Msg("failed to start run")
		return
	}

	fresh := 0
	sum, err := w.scanner.Run(ctx, w.criteria, func(e model.Event) {
		if !e.IsMatch() {
			return
		}
		added, err := w.hist.Record(runID, *e.Match)
		if err != nil {
			log.Warn().Err(err).Msg("failed to record match")
			return
		}
		if added {
			fresh++
			w.announce(*e.Match)
		}
	})
	if err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("watch scan ended early")
	}

	if ferr := w.hist.FinishRun(runID, sum.CardsAnalyzed, fresh, sum.Cancelled); ferr != nil {
		log.Error().Err(ferr).Str("run_id", runID).Msg("failed to finish run")
	}
	log.Info().
		Str("run_id", runID).
		Int("cards", sum.CardsAnalyzed).
		Int("matches", sum.Matches).
		Int("new", fresh).
		Dur("duration", sum.Duration).
		Msg("watch scan done")
}
