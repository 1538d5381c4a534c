package export

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Page geometry in points. Courier is fixed-pitch at 600/1000 em, which
// keeps line wrapping and highlight rectangles exact without font
// metric tables.
const (
	pageWidth  = 595 // A4 portrait
	pageHeight = 842
	margin     = 50
	fontSize   = 10
	leading    = 12
	charWidth  = 6 // Courier advance at 10pt

	maxCols  = (pageWidth - 2*margin) / charWidth
	maxLines = (pageHeight - 2*margin) / leading
)

// Highlight paints a colored box behind the text between the byte
// offsets [Start, End) of the rendered string.
type Highlight struct {
	Start int
	End   int
	Color [3]float64
}

// line is one wrapped output line with its offsets into the source
// text.
type line struct {
	text  string
	start int
}

// RenderPDF lays text out on A4 pages in Courier and returns the PDF
// bytes. Highlights are drawn as filled rectangles behind the glyphs
// they cover. Streams stay uncompressed so rendered text remains
// inspectable.
func RenderPDF(text string, highlights []Highlight) ([]byte, error) {
	doc := fpdf.New("P", "pt", "A4", "")
	doc.SetCompression(false)
	doc.SetAutoPageBreak(false, 0)
	doc.SetFont("Courier", "", fontSize)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	for i, ln := range wrapText(text) {
		if i%maxLines == 0 {
			doc.AddPage()
		}
		y := margin + float64(i%maxLines+1)*leading

		for _, h := range highlights {
			lo, hi := h.Start-ln.start, h.End-ln.start
			if lo < 0 {
				lo = 0
			}
			if hi > len(ln.text) {
				hi = len(ln.text)
			}
			if lo >= hi {
				continue
			}
			x := margin + float64(len(winAnsi(tr, ln.text[:lo])))*charWidth
			w := float64(len(winAnsi(tr, ln.text[lo:hi]))) * charWidth
			doc.SetFillColor(int(h.Color[0]*255), int(h.Color[1]*255), int(h.Color[2]*255))
			doc.Rect(x, y-fontSize, w, leading, "F")
		}

		if ln.text != "" {
			doc.Text(margin, y, winAnsi(tr, ln.text))
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// winAnsi maps text onto the single-byte encoding the core Courier
// font uses. Every rune becomes exactly one byte so column positions
// stay aligned with the highlight rectangles. The block character that
// masks redacted spans has no WinAnsi glyph and renders as a fill
// character instead.
func winAnsi(tr func(string) string, s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '█':
			sb.WriteByte('X')
		case r < 0x80:
			sb.WriteRune(r)
		default:
			if t := tr(string(r)); len(t) == 1 {
				sb.WriteString(t)
			} else {
				sb.WriteByte('?')
			}
		}
	}
	return sb.String()
}

// wrapText splits text into lines of at most maxCols characters,
// breaking at spaces where possible and keeping each line's start
// offset into the original string.
func wrapText(text string) []line {
	var out []line
	for _, para := range splitKeepOffsets(text) {
		p := para.text
		off := para.start
		for {
			if len(p) <= maxCols {
				out = append(out, line{text: p, start: off})
				break
			}
			cut := strings.LastIndexByte(p[:maxCols+1], ' ')
			if cut <= 0 {
				cut = maxCols
			}
			out = append(out, line{text: p[:cut], start: off})
			rest := cut
			for rest < len(p) && p[rest] == ' ' {
				rest++
			}
			p = p[rest:]
			off += rest
		}
	}
	return out
}

func splitKeepOffsets(text string) []line {
	var out []line
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '\n' {
			// Tabs map to single spaces so offsets stay one-to-one
			// with the source text.
			out = append(out, line{text: strings.ReplaceAll(text[start:i], "\t", " "), start: start})
			start = i + 1
		}
	}
	return out
}

// ValidatePDF runs a structural validation over rendered PDF bytes.
func ValidatePDF(data []byte) error {
	tmp, err := os.CreateTemp("", "render-*.pdf")
	if err != nil {
		return fmt.Errorf("create temp pdf: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp pdf: %w", err)
	}
	tmp.Close()

	if err := api.ValidateFile(tmp.Name(), model.NewDefaultConfiguration()); err != nil {
		return fmt.Errorf("pdf validation: %w", err)
	}
	return nil
}
