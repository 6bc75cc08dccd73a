package scan

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/guarzo/ctgap/internal/analysis"
	"github.com/guarzo/ctgap/internal/model"
)

// ListingFetcher retrieves the current listings of one card.
type ListingFetcher interface {
	FetchListings(ctx context.Context, blueprintID int) (model.ListingsByCard, error)
}

// CatalogProvider looks up the cards of an expansion.
type CatalogProvider interface {
	Cards(expansionID int) ([]model.Card, error)
}

// Pacer pauses after every fetch attempt.
type Pacer interface {
	Pause(ctx context.Context) error
}

// Summary describes a finished (or cancelled) scan.
type Summary struct {
	Expansions        int
	SkippedExpansions int
	CardsAnalyzed     int
	FetchFailures     int
	Matches           int
	Cancelled         bool
	Duration          time.Duration
}

// sink receives the output of a scan. Streaming and batch modes differ only
// in their sink.
type sink interface {
	expansion(id int, cards []model.Card)
	match(m model.Match, analyzed int)
	progress(analyzed int)
}

// Scanner runs opportunity scans. Cards are processed one at a time in
// catalog order; a Scanner runs at most one scan at a time.
type Scanner struct {
	fetcher  ListingFetcher
	catalog  CatalogProvider
	pacer    Pacer
	validate *validator.Validate
	running  atomic.Bool
}

func New(fetcher ListingFetcher, catalog CatalogProvider, pacer Pacer) *Scanner {
	return &Scanner{
		fetcher:  fetcher,
		catalog:  catalog,
		pacer:    pacer,
		validate: validator.New(),
	}
}

// Validate checks criteria before a scan starts.
func (s *Scanner) Validate(c model.Criteria) error {
	if err := s.validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCriteria, err)
	}
	return nil
}

func (s *Scanner) acquire(c model.Criteria) error {
	if err := s.Validate(c); err != nil {
		return err
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrScanInProgress
	}
	return nil
}

// Run scans in streaming mode, passing every match and one progress tick
// per card to onEvent. onEvent is called from the scanning goroutine; the
// events of a card are delivered before the next card is fetched.
func (s *Scanner) Run(ctx context.Context, c model.Criteria, onEvent func(model.Event)) (Summary, error) {
	if err := s.acquire(c); err != nil {
		return Summary{}, err
	}
	defer s.running.Store(false)

	return s.run(ctx, c, callbackSink(onEvent))
}

// Stream starts a scan in the background and returns its events. The
// channel is closed when the scan ends; after ctx is cancelled pending
// events may be dropped.
func (s *Scanner) Stream(ctx context.Context, c model.Criteria, buffer int) (<-chan model.Event, error) {
	if err := s.acquire(c); err != nil {
		return nil, err
	}

	events := make(chan model.Event, buffer)
	go func() {
		defer close(events)
		defer s.running.Store(false)

		sum, err := s.run(ctx, c, callbackSink(func(e model.Event) {
			select {
			case events <- e:
			case <-ctx.Done():
			}
		}))
		logSummary(sum, err)
	}()
	return events, nil
}

func (s *Scanner) run(ctx context.Context, c model.Criteria, out sink) (Summary, error) {
	start := time.Now()
	var sum Summary

	log.Info().
		Ints("expansions", c.ExpansionIDs).
		Strs("languages", c.Languages).
		Strs("rarities", c.Rarities).
		Float64("min_price", c.MinPrice).
		Float64("max_price", c.MaxPrice).
		Float64("min_gap", c.MinGap).
		Bool("hub_only", c.HubOnly).
		Msg("starting scan")

	for _, expID := range c.ExpansionIDs {
		if err := ctx.Err(); err != nil {
			sum.Cancelled = true
			sum.Duration = time.Since(start)
			return sum, err
		}

		cards, err := s.catalog.Cards(expID)
		if err != nil {
			log.Warn().Err(err).Int("expansion_id", expID).Str("kind", Classify(err)).Msg("skipping expansion")
			sum.SkippedExpansions++
			continue
		}
		sum.Expansions++

		selected := make([]model.Card, 0, len(cards))
		for _, card := range cards {
			if c.AcceptsRarity(card.Rarity) {
				selected = append(selected, card)
			}
		}
		out.expansion(expID, selected)

		for _, card := range selected {
			if err := ctx.Err(); err != nil {
				sum.Cancelled = true
				sum.Duration = time.Since(start)
				return sum, err
			}

			listings, fetchErr := s.fetcher.FetchListings(ctx, card.ID)
			pauseErr := s.pacer.Pause(ctx)
			sum.CardsAnalyzed++

			if fetchErr != nil {
				sum.FetchFailures++
				log.Warn().Err(fetchErr).
					Int("blueprint_id", card.ID).
					Str("card", card.Name).
					Str("kind", Classify(fetchErr)).
					Msg("fetch failed, skipping card")
			} else {
				for _, sig := range analysis.Analyze(listings, card.ID, c.Languages, c.HubOnly) {
					if !analysis.Passes(sig, c) {
						continue
					}
					sum.Matches++
					out.match(newMatch(expID, card, sig), sum.CardsAnalyzed)
				}
			}
			out.progress(sum.CardsAnalyzed)

			if pauseErr != nil {
				sum.Cancelled = true
				sum.Duration = time.Since(start)
				return sum, pauseErr
			}
		}
	}

	sum.Duration = time.Since(start)
	return sum, nil
}

func newMatch(expID int, card model.Card, sig model.LanguageSignal) model.Match {
	return model.Match{
		Label:             analysis.Label(card.Name, sig.Language),
		CardID:            card.ID,
		CardName:          card.Name,
		ExpansionID:       expID,
		Language:          sig.Language,
		ImageURL:          card.ImageURL,
		ReferenceURL:      sig.ReferenceURL,
		CheapestPrice:     sig.CheapestPrice,
		SecondPrice:       sig.SecondPrice,
		GapPct:            sig.GapPct,
		GapAbs:            sig.GapAbs,
		CheapestListingID: sig.CheapestListingID,
	}
}

func logSummary(sum Summary, err error) {
	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Int("expansions", sum.Expansions).
		Int("skipped_expansions", sum.SkippedExpansions).
		Int("cards", sum.CardsAnalyzed).
		Int("fetch_failures", sum.FetchFailures).
		Int("matches", sum.Matches).
		Bool("cancelled", sum.Cancelled).
		Dur("duration", sum.Duration).
		Msg("scan finished")
}

type callbackSink func(model.Event)

func (f callbackSink) expansion(int, []model.Card) {}

func (f callbackSink) match(m model.Match, analyzed int) {
	if f == nil {
		return
	}
	f(model.Event{Kind: model.EventMatch, Match: &m, CardsAnalyzed: analyzed})
}

func (f callbackSink) progress(analyzed int) {
	if f == nil {
		return
	}
	f(model.Event{Kind: model.EventProgress, CardsAnalyzed: analyzed})
}
