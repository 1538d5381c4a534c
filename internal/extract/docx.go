package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"

	"blackline/internal/domain/models"
)

// OOXML document body elements, decoded by local name so the w:
// namespace prefix is irrelevant.

type xmlBody struct {
	Items []xmlBodyItem `xml:",any"`
}

type xmlBodyItem struct {
	XMLName xml.Name
	Para    *xmlParagraph
	Table   *xmlTable
}

func (it *xmlBodyItem) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	switch start.Name.Local {
	case "p":
		it.XMLName = start.Name
		it.Para = &xmlParagraph{}
		return d.DecodeElement(it.Para, &start)
	case "tbl":
		it.XMLName = start.Name
		it.Table = &xmlTable{}
		return d.DecodeElement(it.Table, &start)
	default:
		it.XMLName = start.Name
		return d.Skip()
	}
}

type xmlParagraph struct {
	Props xmlParaProps `xml:"pPr"`
	Runs  []xmlRun     `xml:"r"`
	Links []struct {
		Runs []xmlRun `xml:"r"`
	} `xml:"hyperlink"`
}

type xmlParaProps struct {
	Style struct {
		Val string `xml:"val,attr"`
	} `xml:"pStyle"`
}

type xmlRun struct {
	Props xmlRunProps `xml:"rPr"`
	Texts []xmlText   `xml:"t"`
}

type xmlRunProps struct {
	Bold   *xmlToggle `xml:"b"`
	Italic *xmlToggle `xml:"i"`
	Color  struct {
		Val string `xml:"val,attr"`
	} `xml:"color"`
	Highlight struct {
		Val string `xml:"val,attr"`
	} `xml:"highlight"`
}

type xmlToggle struct {
	Val string `xml:"val,attr"`
}

// On returns whether a toggle property such as w:b is enabled. The
// bare element means true; an explicit val of 0/false means false.
func (t *xmlToggle) On() bool {
	if t == nil {
		return false
	}
	return t.Val != "0" && t.Val != "false" && t.Val != "off"
}

type xmlText struct {
	Value string `xml:",chardata"`
}

type xmlTable struct {
	Props struct {
		Borders *xmlTableBorders `xml:"tblBorders"`
	} `xml:"tblPr"`
	Rows []xmlTableRow `xml:"tr"`
}

type xmlTableBorders struct {
	Top     *xmlBorder `xml:"top"`
	Left    *xmlBorder `xml:"left"`
	Bottom  *xmlBorder `xml:"bottom"`
	Right   *xmlBorder `xml:"right"`
	InsideH *xmlBorder `xml:"insideH"`
	InsideV *xmlBorder `xml:"insideV"`
}

type xmlBorder struct {
	Val string `xml:"val,attr"`
}

type xmlTableRow struct {
	Cells []xmlTableCell `xml:"tc"`
}

type xmlTableCell struct {
	Props struct {
		Shading struct {
			Fill string `xml:"fill,attr"`
		} `xml:"shd"`
	} `xml:"tcPr"`
	Paras []xmlParagraph `xml:"p"`
}

func (e *Extractor) extractDocx(path string) (*Result, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx %s: %w", path, err)
	}
	defer zr.Close()

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open word/document.xml: %w", err)
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("read word/document.xml: %w", err)
			}
			break
		}
	}
	if docXML == nil {
		return nil, fmt.Errorf("docx %s: missing word/document.xml", path)
	}

	var doc struct {
		Body xmlBody `xml:"body"`
	}
	if err := xml.Unmarshal(docXML, &doc); err != nil {
		return nil, fmt.Errorf("parse word/document.xml: %w", err)
	}

	var (
		buf        textBuffer
		res        Result
		tableIndex int
	)
	for _, item := range doc.Body.Items {
		switch {
		case item.Para != nil:
			writeParagraph(&buf, &res, item.Para)
		case item.Table != nil:
			writeTable(&buf, &res, item.Table, tableIndex)
			tableIndex++
		}
	}

	res.Text = buf.String()
	return &res, nil
}

func writeParagraph(buf *textBuffer, res *Result, p *xmlParagraph) {
	text := paragraphText(p)
	start, end := buf.WriteString(text)
	buf.WriteSeparator()

	if strings.TrimSpace(text) == "" {
		return
	}

	elemType := "paragraph"
	level := 0
	if lvl := headingLevel(p.Props.Style.Val); lvl > 0 {
		elemType = "heading"
		level = lvl
	}
	res.Structure = append(res.Structure, models.StructureElement{
		Type:  elemType,
		Level: level,
		Start: start,
		End:   end,
	})
}

func paragraphText(p *xmlParagraph) string {
	var sb strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Texts {
			sb.WriteString(t.Value)
		}
	}
	for _, h := range p.Links {
		for _, r := range h.Runs {
			for _, t := range r.Texts {
				sb.WriteString(t.Value)
			}
		}
	}
	return sb.String()
}

// paragraphRuns returns the styled runs of a paragraph, merging the
// hyperlink-wrapped runs after the direct ones.
func paragraphRuns(p *xmlParagraph) []xmlRun {
	runs := p.Runs
	for _, h := range p.Links {
		runs = append(runs, h.Runs...)
	}
	return runs
}

func headingLevel(style string) int {
	if style == "Title" {
		return 1
	}
	rest, ok := strings.CutPrefix(style, "Heading")
	if !ok {
		return 0
	}
	lvl, err := strconv.Atoi(rest)
	if err != nil || lvl < 1 || lvl > 9 {
		return 0
	}
	return lvl
}

func writeTable(buf *textBuffer, res *Result, t *xmlTable, index int) {
	table := models.DocumentTable{
		Index:      index,
		Borderless: tableBorderless(t.Props.Borders),
	}

	// Cell offsets are local to the table's plain text, which joins
	// cells with tabs and rows with newlines. Each separator is one
	// character, so a cell advances the cursor by len(text)+1.
	var plain strings.Builder
	pos := 0
	for ri, row := range t.Rows {
		if ri > 0 {
			plain.WriteByte('\n')
			pos++
		}
		var cells []models.TableCell
		for ci, cell := range row.Cells {
			if ci > 0 {
				plain.WriteByte('\t')
				pos++
			}
			text := cellText(&cell)
			plain.WriteString(text)
			cells = append(cells, models.TableCell{
				Text:       text,
				Background: cellBackground(&cell),
				Start:      pos,
				End:        pos + len(text),
				Runs:       cellRuns(&cell),
			})
			pos += len(text)
		}
		table.Rows = append(table.Rows, cells)
	}

	start, end := buf.WriteString(plain.String())
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
}

// tableBorderless reports whether the table explicitly declares every
// border as absent. A table with no border properties at all uses the
// application default, which draws borders, so it is not borderless.
func tableBorderless(b *xmlTableBorders) bool {
	if b == nil {
		return false
	}
	for _, edge := range []*xmlBorder{b.Top, b.Left, b.Bottom, b.Right, b.InsideH, b.InsideV} {
		if edge == nil {
			return false
		}
		if edge.Val != "none" && edge.Val != "nil" {
			return false
		}
	}
	return true
}

func cellText(c *xmlTableCell) string {
	parts := make([]string, 0, len(c.Paras))
	for i := range c.Paras {
		parts = append(parts, paragraphText(&c.Paras[i]))
	}
	return collapseNewlines(strings.Join(parts, "\n"))
}

func cellBackground(c *xmlTableCell) string {
	fill := c.Props.Shading.Fill
	if fill == "" || strings.EqualFold(fill, "auto") {
		return ""
	}
	return fill
}

func cellRuns(c *xmlTableCell) []models.StyledRun {
	var runs []models.StyledRun
	for i := range c.Paras {
		for _, r := range paragraphRuns(&c.Paras[i]) {
			var text strings.Builder
			for _, t := range r.Texts {
				text.WriteString(t.Value)
			}
			if text.Len() == 0 {
				continue
			}
			runs = append(runs, models.StyledRun{
				Text:   text.String(),
				Bold:   r.Props.Bold.On(),
				Italic: r.Props.Italic.On(),
				Color:  r.Props.Color.Val,
			})
		}
	}
	return runs
}

func tableHTML(t *models.DocumentTable) string {
	var sb strings.Builder
	if t.Borderless {
		sb.WriteString(`<table>`)
	} else {
		sb.WriteString(`<table border="1">`)
	}
	for _, row := range t.Rows {
		sb.WriteString("<tr>")
		for _, cell := range row {
			if cell.Background != "" {
				fmt.Fprintf(&sb, `<td style="background-color:#%s">`, cell.Background)
			} else {
				sb.WriteString("<td>")
			}
			sb.WriteString(html.EscapeString(cell.Text))
			sb.WriteString("</td>")
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString("</table>")
	return sb.String()
}
