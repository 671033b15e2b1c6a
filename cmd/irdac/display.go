package main

import (
	"fmt"
	"strings"
	"time"
)

// Frame is what a display sink renders. A hidden frame blanks the panel.
type Frame struct {
	Visible bool     `json:"visible"`
	Lines   []string `json:"lines,omitempty"`
}

// NowPlaying is informational text from the streamer. It never changes the
// selected source.
type NowPlaying struct {
	Source  string `json:"source,omitempty"`
	Details string `json:"details,omitempty"`
}

// FrontPanel owns the selected source and the display visibility timer.
//
// Visible -> Hidden when now - lastActivity > timeout (checked on Tick).
// Any source change or volume activity forces Visible and restarts the timer.
type FrontPanel struct {
	cfg    *DisplayConfig
	labels map[Source]string

	source       Source
	visible      bool
	lastActivity time.Time

	message    string
	nowPlaying NowPlaying
}

// NewFrontPanel starts Visible with the given source, as at power-on.
func NewFrontPanel(cfg *DisplayConfig, labels map[Source]string, initial Source, now time.Time) *FrontPanel {
	return &FrontPanel{
		cfg:          cfg,
		labels:       labels,
		source:       initial,
		visible:      true,
		lastActivity: now,
	}
}

func (p *FrontPanel) Source() Source { return p.source }
func (p *FrontPanel) Visible() bool  { return p.visible }

// Label is the display text for the current source.
func (p *FrontPanel) Label() string {
	if l, ok := p.labels[p.source]; ok && l != "" {
		return l
	}
	return strings.ToUpper(p.source.String())
}

// SelectSource switches the input and wakes the display. It reports whether
// the source actually changed; the display is woken either way.
func (p *FrontPanel) SelectSource(src Source, now time.Time) bool {
	changed := src != p.source
	p.source = src
	if changed {
		p.message = ""
	}
	p.NoteActivity(now)
	return changed
}

// NoteActivity forces the display on and restarts the timeout.
func (p *FrontPanel) NoteActivity(now time.Time) {
	p.visible = true
	p.lastActivity = now
}

// Tick hides the display once the timeout has elapsed. It reports whether the
// display just went dark.
func (p *FrontPanel) Tick(now time.Time) bool {
	if !p.visible {
		return false
	}
	if now.Sub(p.lastActivity) <= p.timeout() {
		return false
	}
	p.visible = false
	p.message = ""
	return true
}

// SetMessage shows free text until the display next times out.
func (p *FrontPanel) SetMessage(text string, now time.Time) {
	p.message = strings.TrimSpace(text)
	p.NoteActivity(now)
}

// SetNowPlaying updates streamer details. It does not wake the display.
func (p *FrontPanel) SetNowPlaying(np NowPlaying) {
	p.nowPlaying = np
}

func (p *FrontPanel) NowPlaying() NowPlaying { return p.nowPlaying }

// Frame composes the panel for the given volume readout.
func (p *FrontPanel) Frame(step int, db float64) Frame {
	if !p.visible {
		return Frame{Visible: false}
	}

	var lines []string
	lines = append(lines, wrapText(p.Label(), p.cfg.MaxLineLength)...)
	lines = append(lines, fitLine(fmt.Sprintf("VOL %d  %.1fdB", step, db), p.cfg.MaxLineLength))

	switch {
	case p.message != "":
		lines = append(lines, wrapText(p.message, p.cfg.MaxLineLength)...)
	case p.source == SourceI2S && p.nowPlaying.Details != "":
		lines = append(lines, wrapText(p.nowPlaying.Details, p.cfg.MaxLineLength)...)
	}

	if len(lines) > p.cfg.MaxLines {
		lines = lines[:p.cfg.MaxLines]
	}
	return Frame{Visible: true, Lines: lines}
}

func (p *FrontPanel) timeout() time.Duration {
	return time.Duration(p.cfg.ScreenTimeoutMS) * time.Millisecond
}

// wrapText breaks s into lines of at most width runes on word boundaries.
// Words longer than a line are split.
func wrapText(s string, width int) []string {
	if width <= 0 {
		return nil
	}
	var lines []string
	var cur []rune
	for _, word := range strings.Fields(s) {
		w := []rune(word)
		for len(w) > width {
			if len(cur) > 0 {
				lines = append(lines, string(cur))
				cur = nil
			}
			lines = append(lines, string(w[:width]))
			w = w[width:]
		}
		switch {
		case len(w) == 0:
		case len(cur) == 0:
			cur = w
		case len(cur)+1+len(w) <= width:
			cur = append(append(cur, ' '), w...)
		default:
			lines = append(lines, string(cur))
			cur = w
		}
	}
	if len(cur) > 0 {
		lines = append(lines, string(cur))
	}
	return lines
}

// fitLine truncates s to width runes.
func fitLine(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width])
}
