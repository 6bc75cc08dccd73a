package scan

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/guarzo/ctgap/internal/model"
)

// Batch scans in batch mode: the scan parameters, the compatible cards of
// every expansion and one line per match are written to w. No progress
// ticks are produced.
func (s *Scanner) Batch(ctx context.Context, c model.Criteria, w io.Writer) (Summary, error) {
	if err := s.acquire(c); err != nil {
		return Summary{}, err
	}
	defer s.running.Store(false)

	out := &batchSink{w: w}
	out.params(c)

	sum, err := s.run(ctx, c, out)
	if out.err != nil && err == nil {
		err = fmt.Errorf("writing batch output: %w", out.err)
	}
	logSummary(sum, err)
	return sum, err
}

// FormatMatch renders a match the way batch mode prints it.
func FormatMatch(m model.Match) string {
	return fmt.Sprintf("%s - P1: %.2f€ P2: %.2f€ P%%: %.2f%% Diff: %.2f€ Link: %s",
		m.Label, m.CheapestPrice, m.SecondPrice, m.GapPct, m.GapAbs, m.ReferenceURL)
}

type batchSink struct {
	w   io.Writer
	err error
}

func (b *batchSink) printf(format string, args ...any) {
	if b.err != nil {
		return
	}
	_, b.err = fmt.Fprintf(b.w, format, args...)
}

func (b *batchSink) params(c model.Criteria) {
	b.printf("Scan parameters:\n")
	b.printf("- Expansions: %v\n", c.ExpansionIDs)
	b.printf("- Languages: %s\n", strings.Join(c.Languages, ", "))
	b.printf("- Rarities: %s\n", strings.Join(c.Rarities, ", "))
	b.printf("- Min price: %.2f€\n", c.MinPrice)
	b.printf("- Max price: %.2f€\n", c.MaxPrice)
	b.printf("- Min gap: %.2f€\n", c.MinGap)
	b.printf("- Hub only: %t\n", c.HubOnly)
}

func (b *batchSink) expansion(id int, cards []model.Card) {
	b.printf("\nExpansion %d: %d compatible cards\n", id, len(cards))
	for _, card := range cards {
		b.printf("  - %s (rarity: %s, id: %d)\n", card.Name, card.Rarity, card.ID)
	}
}

func (b *batchSink) match(m model.Match, _ int) {
	b.printf("%s\n", FormatMatch(m))
}

func (b *batchSink) progress(int) {}
