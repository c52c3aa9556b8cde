package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseLine verifies progress fractions are extracted from lines
// carrying a "(current/total)" group.
func TestParseLine(t *testing.T) {
	tests := []struct {
		line        string
		wantOK      bool
		wantLabel   string
		wantCurrent int
		wantTotal   int
	}{
		{"Page 3 (3/10)", true, "Page 3 ", 300, 1000},
		{"Page 1 (1/1)", true, "Page 1 ", 100, 100},
		{"Processing pages (7/42)", true, "Processing pages ", 700, 4200},
		{"(0/5)", true, "", 0, 500},
		{"GPL Ghostscript 9.55.0", false, "", 0, 0},
		{"Loading font Helvetica", false, "", 0, 0},
		{"Page 3 (3/10) done", false, "", 0, 0},
		{"(three/ten)", false, "", 0, 0},
		{"", false, "", 0, 0},
	}

	for _, tt := range tests {
		tick, ok := ParseLine(tt.line)
		require.Equal(t, tt.wantOK, ok, "line: %q", tt.line)
		if !ok {
			continue
		}
		assert.Equal(t, tt.wantLabel, tick.Label, "line: %q", tt.line)
		assert.Equal(t, tt.wantCurrent, tick.Current, "line: %q", tt.line)
		assert.Equal(t, tt.wantTotal, tick.Total, "line: %q", tt.line)
	}
}

// TestTickPercent verifies percentage calculation, including the zero
// total edge case.
func TestTickPercent(t *testing.T) {
	assert.InDelta(t, 30.0, Tick{Current: 300, Total: 1000}.Percent(), 0.001)
	assert.InDelta(t, 100.0, Tick{Current: 100, Total: 100}.Percent(), 0.001)
	assert.Equal(t, 0.0, Tick{Current: 100, Total: 0}.Percent())
}

// newTestTracker returns a tracker with a controllable clock.
func newTestTracker(cfg Config) (*Tracker, *time.Time) {
	tr := NewTracker(cfg)
	now := time.Unix(1000, 0)
	tr.now = func() time.Time { return now }
	return tr, &now
}

// TestTrackerDispatch verifies ticks and status lines reach the right
// callbacks.
func TestTrackerDispatch(t *testing.T) {
	var ticks []Tick
	var statuses []string

	tr, now := newTestTracker(Config{
		OnTick:   func(tick Tick) { ticks = append(ticks, tick) },
		OnStatus: func(line string) { statuses = append(statuses, line) },
	})

	tr.Line("GPL Ghostscript 9.55.0")
	*now = now.Add(time.Second)
	tr.Line("Page 1 (1/3)")
	*now = now.Add(time.Second)
	tr.Line("Page 2 (2/3)")

	require.Len(t, ticks, 2)
	assert.Equal(t, 100, ticks[0].Current)
	assert.Equal(t, 200, ticks[1].Current)
	require.Len(t, statuses, 1)
	assert.Equal(t, "GPL Ghostscript 9.55.0", statuses[0])
}

// TestTrackerCoalescesDuplicates verifies identical lines within the
// 30ms window produce a single update.
func TestTrackerCoalescesDuplicates(t *testing.T) {
	var ticks []Tick

	tr, now := newTestTracker(Config{
		OnTick: func(tick Tick) { ticks = append(ticks, tick) },
	})

	tr.Line("Page 1 (1/3)")
	*now = now.Add(10 * time.Millisecond)
	tr.Line("Page 1 (1/3)")
	*now = now.Add(10 * time.Millisecond)
	tr.Line("Page 1 (1/3)")

	assert.Len(t, ticks, 1)
}

// TestTrackerDuplicateOutsideWindow verifies identical lines separated
// by more than the window are both delivered.
func TestTrackerDuplicateOutsideWindow(t *testing.T) {
	var ticks []Tick

	tr, now := newTestTracker(Config{
		OnTick: func(tick Tick) { ticks = append(ticks, tick) },
	})

	tr.Line("Page 1 (1/3)")
	*now = now.Add(31 * time.Millisecond)
	tr.Line("Page 1 (1/3)")

	assert.Len(t, ticks, 2)
}

// TestTrackerDifferentLinesNotCoalesced verifies distinct lines inside
// the window are all delivered.
func TestTrackerDifferentLinesNotCoalesced(t *testing.T) {
	var ticks []Tick

	tr, now := newTestTracker(Config{
		OnTick: func(tick Tick) { ticks = append(ticks, tick) },
	})

	tr.Line("Page 1 (1/3)")
	*now = now.Add(time.Millisecond)
	tr.Line("Page 2 (2/3)")
	*now = now.Add(time.Millisecond)
	tr.Line("Page 3 (3/3)")

	assert.Len(t, ticks, 3)
}

// TestLineWriterSplitsLines verifies the writer splits byte chunks on
// newlines and handles partial writes.
func TestLineWriterSplitsLines(t *testing.T) {
	var statuses []string
	tr, _ := newTestTracker(Config{
		OnStatus: func(line string) { statuses = append(statuses, line) },
	})

	w := tr.Writer()
	_, err := w.Write([]byte("first line\nsecond "))
	require.NoError(t, err)
	_, err = w.Write([]byte("line\r\nthird"))
	require.NoError(t, err)

	assert.Equal(t, []string{"first line", "second line"}, statuses)

	w.Flush()
	assert.Equal(t, []string{"first line", "second line", "third"}, statuses)
}

// TestLineWriterSkipsEmptyLines verifies blank lines are dropped.
func TestLineWriterSkipsEmptyLines(t *testing.T) {
	var statuses []string
	tr, _ := newTestTracker(Config{
		OnStatus: func(line string) { statuses = append(statuses, line) },
	})

	w := tr.Writer()
	_, err := w.Write([]byte("\n\nreal line\n\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"real line"}, statuses)
}
