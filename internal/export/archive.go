package export

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"
)

// Entry is one document's contribution to a disclosure package.
type Entry struct {
	// Filename is the document's original upload name, extension
	// included.
	Filename string

	// Original streams the unedited source file. Nil when the source
	// file is no longer available.
	Original io.Reader

	// RedactedPDF shows the document text with its redactions boxed.
	RedactedPDF []byte

	// DisclosurePDF is the release copy with redacted text replaced.
	DisclosurePDF []byte
}

// ArchiveName returns the package filename for a case reference.
func ArchiveName(caseReference string) string {
	return fmt.Sprintf("disclosure_package_%s.zip", caseReference)
}

// WriteArchive composes the disclosure package: each document appears
// as its untouched original under unedited/, with the redacted and
// disclosure renderings as PDFs under their own directories.
func WriteArchive(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)

	for _, e := range entries {
		pdfName := pdfFileName(e.Filename)

		if e.Original != nil {
			f, err := zw.Create(path.Join("unedited", e.Filename))
			if err != nil {
				return fmt.Errorf("archive unedited/%s: %w", e.Filename, err)
			}
			if _, err := io.Copy(f, e.Original); err != nil {
				return fmt.Errorf("copy unedited/%s: %w", e.Filename, err)
			}
		}

		f, err := zw.Create(path.Join("redacted", pdfName))
		if err != nil {
			return fmt.Errorf("archive redacted/%s: %w", pdfName, err)
		}
		if _, err := f.Write(e.RedactedPDF); err != nil {
			return fmt.Errorf("write redacted/%s: %w", pdfName, err)
		}

		f, err = zw.Create(path.Join("disclosure", pdfName))
		if err != nil {
			return fmt.Errorf("archive disclosure/%s: %w", pdfName, err)
		}
		if _, err := f.Write(e.DisclosurePDF); err != nil {
			return fmt.Errorf("write disclosure/%s: %w", pdfName, err)
		}
	}

	return zw.Close()
}

// pdfFileName appends .pdf to the full original name, so letter.docx
// becomes letter.docx.pdf and the source format stays visible.
func pdfFileName(filename string) string {
	if strings.EqualFold(path.Ext(filename), ".pdf") {
		return filename
	}
	return filename + ".pdf"
}
