package progress

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/guarzo/ctgap/internal/model"
)

const (
	barWidth       = 30
	redrawInterval = 100 * time.Millisecond
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Indicator renders scan progress on a terminal line. It is driven by scan
// events and is not safe for concurrent use.
type Indicator struct {
	// Format renders a match line. Defaults to the match label.
	Format func(model.Match) string

	w       io.Writer
	enabled bool
	message string
	total   int

	cards   int
	matches int

	now        func() time.Time
	startTime  time.Time
	lastUpdate time.Time
}

// NewIndicator creates an indicator for a scan of total cards. A total of
// zero shows a spinner instead of a bar.
func NewIndicator(w io.Writer, message string, total int, enabled bool) *Indicator {
	return &Indicator{
		w:       w,
		enabled: enabled,
		message: message,
		total:   total,
		now:     time.Now,
	}
}

// Start prints the header line.
func (p *Indicator) Start() {
	p.startTime = p.now()
	p.lastUpdate = time.Time{}
	if !p.enabled {
		return
	}
	fmt.Fprintf(p.w, "%s...\n", p.message)
}

// Observe consumes one scan event. Match events are printed on their own
// line above the progress line; every event updates the counters.
func (p *Indicator) Observe(e model.Event) {
	if e.CardsAnalyzed > p.cards {
		p.cards = e.CardsAnalyzed
	}
	if e.IsMatch() {
		p.matches++
		if p.enabled {
			line := e.Match.Label
			if p.Format != nil {
				line = p.Format(*e.Match)
			}
			fmt.Fprintf(p.w, "\r\033[K%s\n", line)
			p.lastUpdate = time.Time{}
		}
	}
	p.render()
}

// Cards returns the number of cards analyzed so far.
func (p *Indicator) Cards() int { return p.cards }

// Matches returns the number of matches seen so far.
func (p *Indicator) Matches() int { return p.matches }

func (p *Indicator) render() {
	if !p.enabled {
		return
	}

	now := p.now()
	if now.Sub(p.lastUpdate) < redrawInterval && (p.total == 0 || p.cards < p.total) {
		return
	}
	p.lastUpdate = now

	fmt.Fprintf(p.w, "\r%s", p.line(now.Sub(p.startTime)))
}

func (p *Indicator) line(elapsed time.Duration) string {
	if p.total <= 0 {
		return fmt.Sprintf("%s %s (%d cards, %d matches)", p.message, spinner(elapsed), p.cards, p.matches)
	}

	percentage := float64(p.cards) / float64(p.total) * 100
	if percentage > 100 {
		percentage = 100
	}

	var eta string
	if p.cards > 0 && p.cards < p.total && elapsed > 0 {
		perCard := elapsed / time.Duration(p.cards)
		eta = " ETA: " + formatDuration(perCard*time.Duration(p.total-p.cards))
	}

	return fmt.Sprintf("%s [%s] %d/%d (%.1f%%) %d matches%s",
		p.message, progressBar(percentage), p.cards, p.total, percentage, p.matches, eta)
}

// Finish prints the completion line.
func (p *Indicator) Finish() {
	if !p.enabled {
		return
	}
	fmt.Fprintf(p.w, "\r\033[K%s ✓ %d cards, %d matches in %s\n",
		p.message, p.cards, p.matches, formatDuration(p.now().Sub(p.startTime)))
}

// FinishWithError prints the failure line.
func (p *Indicator) FinishWithError(err error) {
	if !p.enabled {
		return
	}
	fmt.Fprintf(p.w, "\r\033[K%s ✗ stopped after %d cards (%s): %v\n",
		p.message, p.cards, formatDuration(p.now().Sub(p.startTime)), err)
}

func progressBar(percentage float64) string {
	filled := int(percentage / 100.0 * barWidth)

	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		switch {
		case i < filled:
			bar.WriteString("█")
		case i == filled && percentage < 100:
			bar.WriteString("▓")
		default:
			bar.WriteString("░")
		}
	}
	return bar.String()
}

func spinner(elapsed time.Duration) string {
	return spinnerFrames[int(elapsed.Milliseconds()/100)%len(spinnerFrames)]
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
