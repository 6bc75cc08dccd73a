package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/guarzo/ctgap/internal/model"
)

// MatchHeader is the header row of a match export.
var MatchHeader = []string{
	"label", "card_id", "card_name", "expansion_id", "language",
	"price1", "price2", "diff_abs", "diff_pct", "product_id", "url", "image_url",
}

// EscapeCell neutralizes spreadsheet formula injection by quoting cells
// that start with a formula trigger.
func EscapeCell(value string) string {
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@', '|', '%', '\t', '\r', '\n':
		return "'" + value
	}
	return value
}

// MatchRow renders m as an escaped CSV row in MatchHeader order.
func MatchRow(m model.Match) []string {
	row := []string{
		m.Label,
		strconv.Itoa(m.CardID),
		m.CardName,
		strconv.Itoa(m.ExpansionID),
		m.Language,
		money(m.CheapestPrice),
		money(m.SecondPrice),
		money(m.GapAbs),
		money(m.GapPct),
		strconv.FormatInt(m.CheapestListingID, 10),
		m.ReferenceURL,
		m.ImageURL,
	}
	for i, cell := range row {
		row[i] = EscapeCell(cell)
	}
	return row
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// MatchWriter streams matches to a CSV destination, writing the header
// before the first row and flushing after every match.
type MatchWriter struct {
	w      *csv.Writer
	header bool
	rows   int
}

func NewMatchWriter(w io.Writer) *MatchWriter {
	return &MatchWriter{w: csv.NewWriter(w)}
}

// Write appends one match.
func (mw *MatchWriter) Write(m model.Match) error {
	if !mw.header {
		if err := mw.w.Write(MatchHeader); err != nil {
			return fmt.Errorf("writing csv header: %w", err)
		}
		mw.header = true
	}
	if err := mw.w.Write(MatchRow(m)); err != nil {
		return fmt.Errorf("writing match %d: %w", m.CheapestListingID, err)
	}
	mw.w.Flush()
	mw.rows++
	return mw.w.Error()
}

// Close writes the header if no match was written and flushes.
func (mw *MatchWriter) Close() error {
	if !mw.header {
		if err := mw.w.Write(MatchHeader); err != nil {
			return fmt.Errorf("writing csv header: %w", err)
		}
		mw.header = true
	}
	mw.w.Flush()
	return mw.w.Error()
}

// Rows returns the number of matches written.
func (mw *MatchWriter) Rows() int { return mw.rows }

// WriteMatches writes a complete export of matches to w.
func WriteMatches(w io.Writer, matches []model.Match) error {
	mw := NewMatchWriter(w)
	for _, m := range matches {
		if err := mw.Write(m); err != nil {
			return err
		}
	}
	return mw.Close()
}
