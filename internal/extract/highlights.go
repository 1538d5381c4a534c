package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// HighlightRun is one highlighted stretch of run text inside a
// paragraph, with offsets local to that paragraph.
type HighlightRun struct {
	Text  string
	Color string
	Start int
	End   int
}

// HighlightParagraph is a paragraph of a training document with its
// highlighted runs.
type HighlightParagraph struct {
	Text string
	Runs []HighlightRun
}

// DocxHighlights extracts every paragraph of a DOCX file together with
// the highlighted runs it contains. Table cell paragraphs are included
// after the body paragraphs of their table, each as its own paragraph.
func DocxHighlights(path string) ([]HighlightParagraph, error) {
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

	var out []HighlightParagraph
	for _, item := range doc.Body.Items {
		switch {
		case item.Para != nil:
			out = append(out, highlightParagraph(item.Para))
		case item.Table != nil:
			for _, row := range item.Table.Rows {
				for i := range row.Cells {
					for j := range row.Cells[i].Paras {
						out = append(out, highlightParagraph(&row.Cells[i].Paras[j]))
					}
				}
			}
		}
	}
	return out, nil
}

func highlightParagraph(p *xmlParagraph) HighlightParagraph {
	var (
		para HighlightParagraph
		sb   strings.Builder
	)
	for _, r := range paragraphRuns(p) {
		var text strings.Builder
		for _, t := range r.Texts {
			text.WriteString(t.Value)
		}
		start := sb.Len()
		sb.WriteString(text.String())
		if hl := r.Props.Highlight.Val; hl != "" && hl != "none" && text.Len() > 0 {
			para.Runs = append(para.Runs, HighlightRun{
				Text:  text.String(),
				Color: hl,
				Start: start,
				End:   sb.Len(),
			})
		}
	}
	para.Text = sb.String()
	return para
}
