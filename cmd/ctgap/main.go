package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lithammer/dedent"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/guarzo/ctgap/internal/cardtrader"
	"github.com/guarzo/ctgap/internal/catalog"
	"github.com/guarzo/ctgap/internal/config"
	"github.com/guarzo/ctgap/internal/ratelimit"
	"github.com/guarzo/ctgap/internal/scan"
)

const usageText = `
	ctgap finds CardTrader listings priced well below the next cheapest copy
	in the same language.

	Usage:
	  ctgap <command> [flags]

	Commands:
	  sync        download the expansion list and card catalogs
	  expansions  list expansions available for scanning
	  exclude     add|remove|list excluded expansion codes
	  scan        run a scan and print matches (batch mode)
	  stream      run a scan with a live progress line, optional CSV export
	  watch       re-run the saved selection on a schedule, announcing new matches
	  history     show matches recorded by watch

	Run "ctgap <command> -h" for the flags of a command.
	Settings come from the environment or a .env file: CARDTRADER_TOKEN,
	CTGAP_DATA_DIR, CTGAP_GAME, CTGAP_PACING, CTGAP_WATCH_SCHEDULE, CTGAP_LOG_LEVEL.
`

func usage(w io.Writer) {
	fmt.Fprintln(w, strings.TrimSpace(dedent.Dedent(usageText)))
}

type app struct {
	cfg    *config.Config
	game   catalog.Game
	store  *catalog.Store
	client *cardtrader.Client
	stdout io.Writer
	stderr io.Writer
}

func newApp(cfg *config.Config, stdout, stderr io.Writer) (*app, error) {
	game, err := catalog.LookupGame(cfg.Game)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:   cfg,
		game:  game,
		store: catalog.NewStore(cfg.DataDir, game),
		client: cardtrader.NewClient(cardtrader.ClientOpts{
			BaseURL:          cfg.BaseURL,
			Tokens:           cfg.Tokens(),
			Timeout:          cfg.FetchTimeout,
			LanguageProperty: game.LanguageProperty,
		}),
		stdout: stdout,
		stderr: stderr,
	}, nil
}

func (a *app) scanner() *scan.Scanner {
	return scan.New(a.client, a.store, ratelimit.NewPacer(a.cfg.Pacing))
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}

func main() {
	config.LoadEnvFile()
	setupLogging(os.Getenv("CTGAP_LOG_LEVEL"))

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(cfg, os.Stdout, os.Stderr)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("interrupted")
			os.Exit(130)
		}
		log.Error().Err(err).Str("command", os.Args[1]).Msg("command failed")
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "sync":
		return a.runSync(ctx, args)
	case "expansions":
		return a.runExpansions(args)
	case "exclude":
		return a.runExclude(args)
	case "scan":
		return a.runScan(ctx, args)
	case "stream":
		return a.runStream(ctx, args)
	case "watch":
		return a.runWatch(ctx, args)
	case "history":
		return a.runHistory(args)
	case "help", "-h", "--help":
		usage(a.stdout)
		return nil
	default:
		usage(a.stderr)
		return fmt.Errorf("unknown command %q", command)
	}
}
