// Package progress parses Ghostscript's textual log output into progress
// ticks. Lines of the form "<label>(<current>/<total>)" become ticks;
// everything else is forwarded verbatim as human-readable status.
package progress

import (
	"regexp"
	"strconv"
	"sync"
	"time"
)

// DefaultCoalesceWindow is how long an identical line suppresses repeats.
const DefaultCoalesceWindow = 30 * time.Millisecond

// tickPattern matches the trailing "(current/total)" group Ghostscript
// appends to per-page status lines, e.g. "Page 3 (3/10)".
var tickPattern = regexp.MustCompile(`^(.*)\((\d+)/(\d+)\)\s*$`)

// Tick is one parsed progress update. Current and Total are the raw
// values multiplied by 100 so callers keep sub-integer precision when
// dividing.
type Tick struct {
	Label   string
	Current int
	Total   int
}

// Percent returns the completion percentage, or 0 when Total is zero.
func (t Tick) Percent() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Current) / float64(t.Total) * 100
}

// ParseLine extracts a progress tick from a single output line.
// The second return value is false when the line carries no tick.
func ParseLine(line string) (Tick, bool) {
	m := tickPattern.FindStringSubmatch(line)
	if m == nil {
		return Tick{}, false
	}

	current, err := strconv.Atoi(m[2])
	if err != nil {
		return Tick{}, false
	}
	total, err := strconv.Atoi(m[3])
	if err != nil {
		return Tick{}, false
	}

	return Tick{
		Label:   m[1],
		Current: current * 100,
		Total:   total * 100,
	}, true
}

// Config holds tracker callbacks and the duplicate-suppression window.
type Config struct {
	// OnTick receives parsed progress ticks.
	OnTick func(Tick)
	// OnStatus receives non-tick lines verbatim.
	OnStatus func(string)
	// CoalesceWindow suppresses identical lines repeated within this
	// duration (default: 30ms).
	CoalesceWindow time.Duration
}

// Tracker consumes engine output lines, coalescing duplicates and
// dispatching ticks and status lines to the configured callbacks.
// It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	onTick   func(Tick)
	onStatus func(string)
	window   time.Duration
	now      func() time.Time

	lastLine string
	lastAt   time.Time
}

// NewTracker creates a tracker with the given configuration.
func NewTracker(cfg Config) *Tracker {
	window := cfg.CoalesceWindow
	if window == 0 {
		window = DefaultCoalesceWindow
	}

	return &Tracker{
		onTick:   cfg.OnTick,
		onStatus: cfg.OnStatus,
		window:   window,
		now:      time.Now,
	}
}

// Line feeds one output line to the tracker. Identical lines arriving
// within the coalesce window are dropped.
func (t *Tracker) Line(line string) {
	t.mu.Lock()

	now := t.now()
	if line == t.lastLine && now.Sub(t.lastAt) < t.window {
		t.mu.Unlock()
		return
	}
	t.lastLine = line
	t.lastAt = now

	onTick := t.onTick
	onStatus := t.onStatus
	t.mu.Unlock()

	if tick, ok := ParseLine(line); ok {
		if onTick != nil {
			onTick(tick)
		}
		return
	}
	if onStatus != nil {
		onStatus(line)
	}
}
