package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/guarzo/ctgap/internal/config"
	"github.com/guarzo/ctgap/internal/history"
	"github.com/guarzo/ctgap/internal/model"
	"github.com/guarzo/ctgap/internal/progress"
	"github.com/guarzo/ctgap/internal/report"
	"github.com/guarzo/ctgap/internal/scan"
)

func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *app) runSync(ctx context.Context, args []string) error {
	fs := a.flagSet("sync")
	exp := fs.String("exp", "", "comma-separated expansion codes to download (default: all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rep, err := a.store.Sync(ctx, a.client, splitList(*exp))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s: %d/%d expansions synced, %d cards\n", a.game.Name, rep.Synced, rep.Expansions, rep.Cards)
	if len(rep.Failed) > 0 {
		fmt.Fprintf(a.stdout, "failed: %s\n", strings.Join(rep.Failed, ", "))
	}
	return nil
}

func (a *app) runExpansions(args []string) error {
	fs := a.flagSet("expansions")
	if err := fs.Parse(args); err != nil {
		return err
	}

	exps, err := a.store.Selectable()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCODE\tNAME")
	for _, e := range exps {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", e.ID, e.Code, e.Name)
	}
	return tw.Flush()
}

func (a *app) runExclude(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: ctgap exclude add|remove|list [codes...]")
	}

	switch args[0] {
	case "list":
	case "add", "remove":
		if len(args) < 2 {
			return fmt.Errorf("exclude %s needs at least one expansion code", args[0])
		}
		for _, code := range args[1:] {
			if err := a.store.SetExcluded(code, args[0] == "add"); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown exclude action %q", args[0])
	}

	codes, err := a.store.Excluded()
	if err != nil {
		return err
	}
	if len(codes) == 0 {
		fmt.Fprintln(a.stdout, "no excluded expansions")
		return nil
	}
	fmt.Fprintln(a.stdout, strings.Join(codes, "\n"))
	return nil
}

// prepareCriteria parses the selection flags of a scan command. When -save
// is set the selection is persisted before the scan starts.
func (a *app) prepareCriteria(fs *flag.FlagSet, args []string) (model.Criteria, error) {
	sel, err := config.LoadSelection(a.cfg.DataDir, a.game.Key)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring saved selection")
		sel = config.Selection{}
	}
	cf := bindCriteria(fs, sel)
	if err := fs.Parse(args); err != nil {
		return model.Criteria{}, err
	}

	c, err := cf.criteria(a.store)
	if err != nil {
		return model.Criteria{}, err
	}
	if cf.save {
		if err := config.SaveSelection(a.cfg.DataDir, a.game.Key, cf.selection()); err != nil {
			return model.Criteria{}, err
		}
		log.Info().Str("game", a.game.Key).Msg("selection saved")
	}
	return c, nil
}

func (a *app) runScan(ctx context.Context, args []string) error {
	c, err := a.prepareCriteria(a.flagSet("scan"), args)
	if err != nil {
		return err
	}
	_, err = a.scanner().Batch(ctx, c, a.stdout)
	return err
}

func (a *app) runStream(ctx context.Context, args []string) error {
	fs := a.flagSet("stream")
	csvPath := fs.String("csv", "", "also write matches to this CSV file")
	quiet := fs.Bool("quiet", false, "hide the progress line")
	c, err := a.prepareCriteria(fs, args)
	if err != nil {
		return err
	}

	var export *report.MatchWriter
	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			return fmt.Errorf("create csv: %w", err)
		}
		defer f.Close()
		export = report.NewMatchWriter(f)
	}

	indicator := progress.NewIndicator(a.stderr, "Scanning", a.store.CountCards(c), !*quiet)
	indicator.Format = scan.FormatMatch

	g, gctx := errgroup.WithContext(ctx)
	events, err := a.scanner().Stream(gctx, c, 16)
	if err != nil {
		return err
	}

	indicator.Start()
	g.Go(func() error {
		for e := range events {
			indicator.Observe(e)
			if *quiet && e.IsMatch() {
				fmt.Fprintln(a.stdout, scan.FormatMatch(*e.Match))
			}
			if export != nil && e.IsMatch() {
				if err := export.Write(*e.Match); err != nil {
					return err
				}
			}
		}
		return gctx.Err()
	})

	err = g.Wait()
	if export != nil {
		if cerr := export.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		indicator.FinishWithError(err)
		return err
	}
	indicator.Finish()
	if export != nil {
		log.Info().Str("path", *csvPath).Int("matches", export.Rows()).Msg("csv written")
	}
	return nil
}

func (a *app) runHistory(args []string) error {
	fs := a.flagSet("history")
	limit := fs.Int("limit", 20, "number of rows to show")
	runs := fs.Bool("runs", false, "list scan runs instead of matches")
	if err := fs.Parse(args); err != nil {
		return err
	}

	hist, err := history.Open(a.cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer hist.Close()

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	if *runs {
		list, err := hist.Runs(*limit)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "RUN\tSTARTED\tCARDS\tMATCHES\tSTATUS")
		for _, r := range list {
			status := "running"
			switch {
			case r.Cancelled:
				status = "cancelled"
			case r.FinishedAt != nil:
				status = "done"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Cards, r.Matches, status)
		}
		return tw.Flush()
	}

	entries, err := hist.Recent(*limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "SEEN\tMATCH\tP1\tP2\tGAP%\tLINK")
	for _, e := range entries {
		m := e.Match
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%.2f\t%s\n",
			e.FirstSeen.Local().Format("2006-01-02 15:04"), m.Label, m.CheapestPrice, m.SecondPrice, m.GapPct, m.ReferenceURL)
	}
	return tw.Flush()
}
