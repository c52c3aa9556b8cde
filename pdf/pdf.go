// Package pdf inspects raw PDF bytes before they are handed to the
// engine, so malformed uploads fail fast instead of burning a worker.
package pdf

import (
	"bytes"

	"github.com/pkg/errors"
)

// headerWindow is how far into the file the %PDF- marker may appear.
// Some producers prepend junk bytes before the header.
const headerWindow = 1024

// trailerWindow is how far from the end the %%EOF marker may appear.
const trailerWindow = 1024

var headerMarker = []byte("%PDF-")
var trailerMarker = []byte("%%EOF")

// ErrNotPDF is returned when the content has no PDF header.
var ErrNotPDF = errors.New("content is not a PDF document")

// Info summarizes what a sniff found.
type Info struct {
	// Version is the header version, e.g. "1.4".
	Version string
	// HasTrailer reports whether an %%EOF marker was found near the
	// end. A missing trailer usually means a truncated upload.
	HasTrailer bool
}

// Sniff checks the content for a PDF header and reads the version out
// of it. It never parses the document body.
func Sniff(content []byte) (Info, error) {
	window := content
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}

	idx := bytes.Index(window, headerMarker)
	if idx < 0 {
		return Info{}, ErrNotPDF
	}

	return Info{
		Version:    readVersion(content[idx+len(headerMarker):]),
		HasTrailer: hasTrailer(content),
	}, nil
}

// Validate returns an error unless the content looks like a PDF.
func Validate(content []byte) error {
	if len(content) == 0 {
		return errors.New("content is empty")
	}
	if _, err := Sniff(content); err != nil {
		return err
	}
	return nil
}

func readVersion(rest []byte) string {
	end := 0
	for end < len(rest) {
		c := rest[end]
		if (c < '0' || c > '9') && c != '.' {
			break
		}
		end++
	}
	return string(rest[:end])
}

func hasTrailer(content []byte) bool {
	tail := content
	if len(tail) > trailerWindow {
		tail = tail[len(tail)-trailerWindow:]
	}
	return bytes.Contains(tail, trailerMarker)
}
