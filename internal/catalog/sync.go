package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/guarzo/ctgap/internal/cardtrader"
	"github.com/guarzo/ctgap/internal/concurrent"
	"github.com/guarzo/ctgap/internal/model"
)

const imageHost = "https://cardtrader.com"

// Source is the remote side of a catalog download.
type Source interface {
	Expansions(ctx context.Context, gameID int) ([]model.Expansion, error)
	ExportBlueprints(ctx context.Context, expansionID int) ([]cardtrader.Blueprint, error)
}

// SyncReport summarises a catalog download.
type SyncReport struct {
	Expansions int
	Synced     int
	Cards      int
	Failed     []string
}

// Sync downloads the expansion list and the card catalog of the requested
// expansion codes (all of the game's expansions when codes is empty) and
// overwrites the local files. A failing expansion is logged and skipped.
func (s *Store) Sync(ctx context.Context, src Source, codes []string) (SyncReport, error) {
	var report SyncReport

	exps, err := src.Expansions(ctx, s.game.ID)
	if err != nil {
		return report, fmt.Errorf("fetch expansions: %w", err)
	}
	if len(exps) == 0 {
		return report, fmt.Errorf("no expansions returned for %s", s.game.Name)
	}
	if err := s.SaveExpansions(exps); err != nil {
		return report, fmt.Errorf("save expansions: %w", err)
	}
	log.Info().Str("game", s.game.Key).Int("expansions", len(exps)).Msg("saved expansion list")

	wanted := make(map[string]bool, len(codes))
	for _, c := range codes {
		wanted[strings.ToLower(c)] = true
	}

	var selected []model.Expansion
	for _, exp := range exps {
		if len(wanted) == 0 || wanted[strings.ToLower(exp.Code)] {
			selected = append(selected, exp)
		}
	}
	report.Expansions = len(selected)

	results, metrics := concurrent.FetchAll(ctx, selected, s.fetchConfig, func(ctx context.Context, exp model.Expansion) ([]cardtrader.Blueprint, error) {
		return src.ExportBlueprints(ctx, exp.ID)
	})

	for _, res := range results {
		exp := res.Item
		if res.Err != nil {
			log.Warn().Err(res.Err).Str("expansion", exp.Code).Int("attempts", res.Attempts).Msg("blueprint export failed")
			report.Failed = append(report.Failed, exp.Code)
			continue
		}
		cards := CardsFromBlueprints(res.Value, s.game)
		if len(cards) == 0 {
			log.Warn().Str("expansion", exp.Code).Msg("no cards in blueprint export")
			report.Failed = append(report.Failed, exp.Code)
			continue
		}
		if err := s.SaveCards(exp.ID, cards); err != nil {
			log.Warn().Err(err).Str("expansion", exp.Code).Msg("saving catalog failed")
			report.Failed = append(report.Failed, exp.Code)
			continue
		}

		report.Synced++
		report.Cards += len(cards)
		log.Info().Str("expansion", exp.Code).Str("name", exp.Name).Int("cards", len(cards)).Msg("catalog saved")
	}

	log.Info().
		Int("synced", report.Synced).
		Int("failed", len(report.Failed)).
		Int("retries", metrics.Retries).
		Dur("elapsed", metrics.Elapsed).
		Msg("catalog sync finished")

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// retryableExport reports whether a failed blueprint export is worth
// another attempt. Credential and decoding failures are permanent.
func retryableExport(err error, _ int) bool {
	switch {
	case cardtrader.IsAuth(err),
		errors.Is(err, cardtrader.ErrMalformedResponse),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// CardsFromBlueprints keeps the single-card blueprints of a game and reduces
// them to catalog records.
func CardsFromBlueprints(bps []cardtrader.Blueprint, game Game) []model.Card {
	cards := make([]model.Card, 0, len(bps))
	for _, bp := range bps {
		if game.CardCategoryID != 0 && bp.CategoryID != game.CardCategoryID {
			continue
		}
		rarity, _ := bp.FixedProperties[game.RarityProperty].(string)
		if rarity == "" {
			rarity = "Unknown"
		}
		number, _ := bp.FixedProperties["collector_number"].(string)

		card := model.Card{
			ID:              bp.ID,
			Name:            bp.Name,
			Rarity:          rarity,
			CollectorNumber: number,
			CardURL:         cardtrader.CardURL(bp.ID),
		}
		if bp.Image != nil && bp.Image.URL != "" {
			card.ImageURL = imageHost + bp.Image.URL
		}
		cards = append(cards, card)
	}
	return cards
}
