package extract

import (
	"archive/zip"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackline/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// writeTestDocx builds a minimal DOCX archive whose word/document.xml
// is the given body markup.
func writeTestDocx(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return path
}

func para(text string) string {
	return `<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p>`
}

func TestExtractDocxParagraphs(t *testing.T) {
	path := writeTestDocx(t, para("Dear Sir or Madam,")+para("")+para("")+para("Yours faithfully"))

	res, err := NewExtractor(testLogger()).Extract(path)
	require.NoError(t, err)

	assert.Equal(t, "Dear Sir or Madam,\n\nYours faithfully\n", res.Text)
	require.Len(t, res.Structure, 2)
	assert.Equal(t, "paragraph", res.Structure[0].Type)
	assert.Equal(t, "Dear Sir or Madam,", res.Text[res.Structure[0].Start:res.Structure[0].End])
	assert.Equal(t, "Yours faithfully", res.Text[res.Structure[1].Start:res.Structure[1].End])
}

func TestExtractDocxHeading(t *testing.T) {
	body := `<w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Case Summary</w:t></w:r></w:p>` +
		para("Body text.")

	res, err := NewExtractor(testLogger()).Extract(writeTestDocx(t, body))
	require.NoError(t, err)

	require.Len(t, res.Structure, 2)
	assert.Equal(t, "heading", res.Structure[0].Type)
	assert.Equal(t, 2, res.Structure[0].Level)
	assert.Equal(t, "Case Summary", res.Text[res.Structure[0].Start:res.Structure[0].End])
}

func TestExtractDocxTableOffsets(t *testing.T) {
	body := para("Before the table.") +
		`<w:tbl><w:tblPr/>` +
		`<w:tr><w:tc><w:p><w:r><w:t>Name</w:t></w:r></w:p></w:tc>` +
		`<w:tc><w:p><w:r><w:t>Role</w:t></w:r></w:p></w:tc></w:tr>` +
		`<w:tr><w:tc><w:p><w:r><w:t>Ann Smith</w:t></w:r></w:p></w:tc>` +
		`<w:tc><w:p><w:r><w:t>Witness</w:t></w:r></w:p></w:tc></w:tr>` +
		`</w:tbl>` +
		para("After the table.")

	res, err := NewExtractor(testLogger()).Extract(writeTestDocx(t, body))
	require.NoError(t, err)

	require.Len(t, res.Tables, 1)
	tbl := res.Tables[0]

	// Table text appears in the linear buffer between the paragraphs.
	assert.Equal(t, "Name\tRole\nAnn Smith\tWitness", res.Text[tbl.NERStart:tbl.NEREnd])

	// Cell offsets are local to the table's plain text.
	local := res.Text[tbl.NERStart:tbl.NEREnd]
	require.Len(t, tbl.Rows, 2)
	cell := tbl.Rows[1][0]
	assert.Equal(t, "Ann Smith", local[cell.Start:cell.End])
	cell = tbl.Rows[1][1]
	assert.Equal(t, "Witness", local[cell.Start:cell.End])
}

func TestExtractDocxTableBorders(t *testing.T) {
	borderless := `<w:tbl><w:tblPr><w:tblBorders>` +
		`<w:top w:val="none"/><w:left w:val="none"/><w:bottom w:val="none"/>` +
		`<w:right w:val="none"/><w:insideH w:val="none"/><w:insideV w:val="none"/>` +
		`</w:tblBorders></w:tblPr>` +
		`<w:tr><w:tc><w:p><w:r><w:t>a</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`
	defaulted := `<w:tbl><w:tblPr/>` +
		`<w:tr><w:tc><w:p><w:r><w:t>b</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`
	partial := `<w:tbl><w:tblPr><w:tblBorders>` +
		`<w:top w:val="none"/><w:left w:val="none"/>` +
		`</w:tblBorders></w:tblPr>` +
		`<w:tr><w:tc><w:p><w:r><w:t>c</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`

	res, err := NewExtractor(testLogger()).Extract(writeTestDocx(t, borderless+defaulted+partial))
	require.NoError(t, err)

	require.Len(t, res.Tables, 3)
	assert.True(t, res.Tables[0].Borderless)
	assert.False(t, res.Tables[1].Borderless, "absent border properties default to drawn borders")
	assert.False(t, res.Tables[2].Borderless, "edges not explicitly disabled default to drawn borders")
}

func TestExtractDocxCellStyling(t *testing.T) {
	body := `<w:tbl><w:tblPr/>` +
		`<w:tr><w:tc><w:tcPr><w:shd w:fill="D9E2F3"/></w:tcPr>` +
		`<w:p><w:r><w:rPr><w:b/></w:rPr><w:t>Shaded bold</w:t></w:r></w:p></w:tc></w:tr>` +
		`</w:tbl>`

	res, err := NewExtractor(testLogger()).Extract(writeTestDocx(t, body))
	require.NoError(t, err)

	require.Len(t, res.Tables, 1)
	cell := res.Tables[0].Rows[0][0]
	assert.Equal(t, "D9E2F3", cell.Background)
	require.Len(t, cell.Runs, 1)
	assert.True(t, cell.Runs[0].Bold)
	assert.Contains(t, res.Tables[0].HTML, "background-color:#D9E2F3")
}

func TestExtractDocxEmpty(t *testing.T) {
	path := writeTestDocx(t, para("")+para(""))

	_, err := NewExtractor(testLogger()).Extract(path)
	assert.ErrorIs(t, err, domain.ErrNoText)
}

func TestDocxHighlights(t *testing.T) {
	body := `<w:p>` +
		`<w:r><w:t>Contact </w:t></w:r>` +
		`<w:r><w:rPr><w:highlight w:val="green"/></w:rPr><w:t>Jane Doe</w:t></w:r>` +
		`<w:r><w:t> for details.</w:t></w:r>` +
		`</w:p>` +
		`<w:p><w:r><w:rPr><w:highlight w:val="cyan"/></w:rPr><w:t>Payroll Dept</w:t></w:r></w:p>`

	paras, err := DocxHighlights(writeTestDocx(t, body))
	require.NoError(t, err)
	require.Len(t, paras, 2)

	require.Len(t, paras[0].Runs, 1)
	run := paras[0].Runs[0]
	assert.Equal(t, "Jane Doe", run.Text)
	assert.Equal(t, "green", run.Color)
	assert.Equal(t, "Jane Doe", paras[0].Text[run.Start:run.End])

	require.Len(t, paras[1].Runs, 1)
	assert.Equal(t, "cyan", paras[1].Runs[0].Color)
}

func TestExtractPlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("line one\r\n\r\n\r\n\r\nline two"), 0o644))

	res, err := NewExtractor(testLogger()).Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "line one\n\nline two", res.Text)
}
