package extract

import "strings"

// textBuffer assembles document text while keeping offsets stable for
// callers. Runs of blank lines are capped at one empty line (two
// consecutive newlines) as the text is written, so recorded offsets
// always refer to the final buffer.
type textBuffer struct {
	sb       strings.Builder
	newlines int
}

// WriteString appends s and returns the [start, end) range the written
// text occupies in the buffer. The range reflects what was actually
// written after newline capping, which may be shorter than s.
func (b *textBuffer) WriteString(s string) (start, end int) {
	start = b.sb.Len()
	for _, r := range s {
		if r == '\n' {
			b.newlines++
			if b.newlines > 2 {
				continue
			}
		} else {
			b.newlines = 0
		}
		b.sb.WriteRune(r)
	}
	return start, b.sb.Len()
}

// WriteSeparator appends a paragraph separator.
func (b *textBuffer) WriteSeparator() {
	b.WriteString("\n")
}

func (b *textBuffer) Len() int { return b.sb.Len() }

func (b *textBuffer) String() string { return b.sb.String() }

// collapseNewlines caps runs of newlines at two in an already-built
// string. Used where text is assembled outside a textBuffer.
func collapseNewlines(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	run := 0
	for _, r := range s {
		if r == '\n' {
			run++
			if run > 2 {
				continue
			}
		} else {
			run = 0
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
