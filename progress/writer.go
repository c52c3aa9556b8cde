package progress

import (
	"bytes"
	"io"
	"sync"
)

// Writer returns a line-splitting writer that feeds the tracker.
// Suitable for attaching to a module's stdout and stderr.
func (t *Tracker) Writer() *LineWriter {
	return &LineWriter{tracker: t}
}

// LineWriter splits a byte stream into lines for a Tracker.
type LineWriter struct {
	tracker *Tracker
	mu      sync.Mutex
	buf     bytes.Buffer
}

var _ io.Writer = (*LineWriter)(nil)

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Partial line stays buffered until the next write.
			w.buf.WriteString(line)
			break
		}
		w.emit(line)
	}
	return len(p), nil
}

// Flush dispatches any buffered partial line. The engine calls this
// after the module exits, since the last line may lack a newline.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *LineWriter) emit(line string) {
	line = trimEOL(line)
	if line == "" {
		return
	}
	w.tracker.Line(line)
}

func trimEOL(line string) string {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
