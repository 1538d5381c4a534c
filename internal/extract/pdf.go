package extract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"blackline/internal/domain/models"
)

// pdfTablePlaceholder marks where an intercepted table block sits in
// the page text until its tab-separated form is substituted back in.
// The NUL bytes cannot occur in extracted text.
const pdfTablePlaceholder = "\x00TBL\x00"

func (e *Extractor) extractPDF(path string) (*Result, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	var (
		lines  []string
		tables [][]string
	)
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		p := r.Page(pageNum)
		if p.V.IsNull() {
			continue
		}
		pageLines, err := pageRowTexts(p)
		if err != nil {
			e.logger.Warn("pdf row extraction failed, falling back to plain text",
				"path", path, "page", pageNum, "error", err)
			plain, perr := p.GetPlainText(nil)
			if perr != nil {
				continue
			}
			pageLines = strings.Split(strings.ReplaceAll(plain, "\r\n", "\n"), "\n")
		}
		pl, pt := interceptTables(pageLines)
		lines = append(lines, pl...)
		tables = append(tables, pt...)
	}

	return assemblePDFResult(lines, tables)
}

// pageRowTexts returns the visual rows of a page top to bottom, each
// reconstructed left to right. Column gaps wider than the font size
// become tabs so that table-shaped content keeps its cell boundaries.
func pageRowTexts(p pdf.Page) ([]string, error) {
	rows, err := p.GetTextByRow()
	if err != nil {
		return nil, err
	}

	sorted := make([]*pdf.Row, 0, len(rows))
	for _, row := range rows {
		if row != nil && len(row.Content) > 0 {
			sorted = append(sorted, row)
		}
	}
	// PDF Y grows upward, so higher Y means higher on the page.
	sort.Slice(sorted, func(i, j int) bool {
		return averageY(sorted[i].Content) > averageY(sorted[j].Content)
	})

	lines := make([]string, 0, len(sorted))
	for _, row := range sorted {
		lines = append(lines, reconstructRow(row.Content))
	}
	return lines, nil
}

func averageY(elements []pdf.Text) float64 {
	var total float64
	for _, el := range elements {
		total += el.Y
	}
	return total / float64(len(elements))
}

func reconstructRow(elements []pdf.Text) string {
	sorted := make([]pdf.Text, len(elements))
	copy(sorted, elements)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].X < sorted[j].X
	})

	var sb strings.Builder
	for i, el := range sorted {
		sb.WriteString(el.S)
		if i == len(sorted)-1 {
			break
		}
		gap := sorted[i+1].X - (el.X + el.W)
		fontSize := el.FontSize
		if fontSize <= 0 {
			fontSize = 12
		}
		switch {
		case gap > fontSize*1.5:
			sb.WriteByte('\t')
		case gap > fontSize*0.2:
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

// interceptTables replaces runs of two or more consecutive tab-bearing
// lines with a placeholder line and returns the captured blocks. Each
// block is the cell rows of one table.
func interceptTables(lines []string) ([]string, [][]string) {
	var (
		out    []string
		tables [][]string
		block  []string
	)
	flush := func() {
		if len(block) >= 2 {
			tables = append(tables, block)
			out = append(out, pdfTablePlaceholder)
		} else {
			out = append(out, block...)
		}
		block = nil
	}
	for _, line := range lines {
		if strings.Contains(line, "\t") {
			block = append(block, line)
			continue
		}
		flush()
		out = append(out, line)
	}
	flush()
	return out, tables
}

// assemblePDFResult builds the final text buffer, substituting each
// table block back for its placeholder so that the recorded offsets
// refer to the finished text.
func assemblePDFResult(lines []string, blocks [][]string) (*Result, error) {
	var (
		buf    textBuffer
		res    Result
		tblIdx int
	)
	for _, line := range lines {
		if line != pdfTablePlaceholder {
			buf.WriteString(line)
			buf.WriteSeparator()
			continue
		}

		table := buildPDFTable(tblIdx, blocks[tblIdx])
		start, end := buf.WriteString(tablePlainText(&table))
		buf.WriteSeparator()
		table.NERStart = start
		table.NEREnd = end
		table.HTML = tableHTML(&table)
		res.Tables = append(res.Tables, table)
		res.Structure = append(res.Structure, models.StructureElement{
			Type:  "table",
			Start: start,
			End:   end,
		})
		tblIdx++
	}

	res.Text = buf.String()
	return &res, nil
}

func buildPDFTable(index int, rows []string) models.DocumentTable {
	// PDF pages carry no border or shading information, so tables
	// recovered from column alignment are always borderless.
	table := models.DocumentTable{Index: index, Borderless: true}
	pos := 0
	for ri, row := range rows {
		if ri > 0 {
			pos++
		}
		var cells []models.TableCell
		for ci, text := range strings.Split(row, "\t") {
			if ci > 0 {
				pos++
			}
			cells = append(cells, models.TableCell{
				Text:  text,
				Start: pos,
				End:   pos + len(text),
			})
			pos += len(text)
		}
		table.Rows = append(table.Rows, cells)
	}
	return table
}

func tablePlainText(t *models.DocumentTable) string {
	rows := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			cells = append(cells, cell.Text)
		}
		rows = append(rows, strings.Join(cells, "\t"))
	}
	return strings.Join(rows, "\n")
}
