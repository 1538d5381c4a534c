package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextBufferCapsBlankLines(t *testing.T) {
	var buf textBuffer

	buf.WriteString("first")
	buf.WriteSeparator()
	buf.WriteSeparator()
	buf.WriteSeparator()
	buf.WriteSeparator()
	start, end := buf.WriteString("second")
	buf.WriteSeparator()

	assert.Equal(t, "first\n\nsecond\n", buf.String())
	assert.Equal(t, "second", buf.String()[start:end])
}

func TestTextBufferCollapsesInsideWrites(t *testing.T) {
	var buf textBuffer

	start, end := buf.WriteString("a\n\n\n\nb")

	assert.Equal(t, "a\n\nb", buf.String())
	assert.Equal(t, 0, start)
	assert.Equal(t, buf.Len(), end)
}

func TestCollapseNewlines(t *testing.T) {
	assert.Equal(t, "a\n\nb", collapseNewlines("a\n\n\n\n\nb"))
	assert.Equal(t, "no newlines", collapseNewlines("no newlines"))
	assert.Equal(t, "a\nb", collapseNewlines("a\nb"))
}
