package operation

import (
	"fmt"
	"strings"
)

// Operation selects a fixed Ghostscript argument set.
type Operation string

const (
	// Compress rewrites the PDF through the pdfwrite device with a
	// downsampling preset.
	Compress Operation = "compress"
	// Grayscale converts all color to DeviceGray.
	Grayscale Operation = "grayscale"
	// CMYK converts all color to DeviceCMYK for print workflows.
	CMYK Operation = "cmyk"
	// Extract pulls plain text out of the PDF via the txtwrite device.
	Extract Operation = "extract"
)

const (
	defaultCompatibilityLevel = "1.4"
	defaultPDFSettings        = "/ebook"
)

// All returns the supported operations in a stable order.
func All() []Operation {
	return []Operation{Compress, Grayscale, CMYK, Extract}
}

// Parse validates an operation name. Unknown names are rejected here,
// before any file is opened or read.
func Parse(name string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(name)))
	switch op {
	case Compress, Grayscale, CMYK, Extract:
		return op, nil
	}
	return "", fmt.Errorf("unsupported operation %q (supported: %s)", name, supportedList())
}

func supportedList() string {
	names := make([]string, 0, len(All()))
	for _, op := range All() {
		names = append(names, string(op))
	}
	return strings.Join(names, ", ")
}

// String returns the operation name.
func (o Operation) String() string {
	return string(o)
}

// Description returns a short human-readable summary of the operation.
func (o Operation) Description() string {
	switch o {
	case Compress:
		return "Reduce PDF file size via the pdfwrite device"
	case Grayscale:
		return "Convert all color to grayscale"
	case CMYK:
		return "Convert all color to CMYK"
	case Extract:
		return "Extract plain text from the PDF"
	}
	return ""
}

// ContentType returns the MIME type of the operation's artifact.
func (o Operation) ContentType() string {
	if o == Extract {
		return "text/plain; charset=utf-8"
	}
	return "application/pdf"
}

// ModuleOutputFile returns the fixed filename the Ghostscript module
// writes its result to, relative to the mounted work directory.
func (o Operation) ModuleOutputFile() string {
	if o == Extract {
		return "output.txt"
	}
	return "output-" + string(o) + ".pdf"
}

// OutputName derives the download filename from the original name.
// A trailing ".pdf" is stripped (case-insensitively) before the
// operation suffix is appended.
func (o Operation) OutputName(original string) string {
	base := original
	if len(base) >= 4 && strings.EqualFold(base[len(base)-4:], ".pdf") {
		base = base[:len(base)-4]
	}
	switch o {
	case Compress:
		return base + "-compressed.pdf"
	case Grayscale:
		return base + "-grayscale.pdf"
	case CMYK:
		return base + "-cmyk.pdf"
	case Extract:
		return base + ".txt"
	}
	return base
}

// ArgOptions tune the argument vector for a single run. Zero values
// fall back to the fixed defaults.
type ArgOptions struct {
	// PDFSettings is a pdfwrite quality preset such as "/screen" or "/ebook".
	PDFSettings string
	// CompatibilityLevel is the output PDF version, e.g. "1.4".
	CompatibilityLevel string
	// Extra arguments appended verbatim before the input path.
	Extra []string
}

// Args returns the fixed Ghostscript argument vector for the operation,
// reading from input and writing to output. Paths are as seen from
// inside the module filesystem.
func (o Operation) Args(input, output string, opts ArgOptions) []string {
	level := opts.CompatibilityLevel
	if level == "" {
		level = defaultCompatibilityLevel
	}

	var args []string
	switch o {
	case Extract:
		args = []string{"-sDEVICE=txtwrite"}
	case Grayscale:
		args = []string{
			"-sDEVICE=pdfwrite",
			"-dCompatibilityLevel=" + level,
			"-sColorConversionStrategy=Gray",
			"-dProcessColorModel=/DeviceGray",
		}
	case CMYK:
		args = []string{
			"-sDEVICE=pdfwrite",
			"-dCompatibilityLevel=" + level,
			"-sColorConversionStrategy=CMYK",
			"-dProcessColorModel=/DeviceCMYK",
		}
	default:
		settings := opts.PDFSettings
		if settings == "" {
			settings = defaultPDFSettings
		}
		args = []string{
			"-sDEVICE=pdfwrite",
			"-dCompatibilityLevel=" + level,
			"-dPDFSETTINGS=" + settings,
		}
	}

	args = append(args, "-dNOPAUSE", "-dBATCH", "-sOutputFile="+output)
	args = append(args, opts.Extra...)
	args = append(args, input)
	return args
}
