package detect

import "regexp"

// Recognizer finds spans of one entity class with a compiled pattern.
type Recognizer struct {
	Label   string
	Pattern *regexp.Regexp
}

// Built-in recognizers for the structured identifiers that a statistical
// model handles poorly. Patterns assume UK-format documents.
var builtinRecognizers = []Recognizer{
	{
		Label:   "EMAIL",
		Pattern: regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
	},
	{
		Label:   "PHONE",
		Pattern: regexp.MustCompile(`\b(?:\+44\s?\d{4}|\(?0\d{4}\)?)\s?\d{3}\s?\d{3}\b|\b(?:\+44\s?\d{3}|\(?0\d{3}\)?)\s?\d{3}\s?\d{4}\b`),
	},
	{
		Label:   "DATE",
		Pattern: regexp.MustCompile(`\b\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}\b|\b\d{1,2}(?:st|nd|rd|th)?\s+(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\s+\d{4}\b`),
	},
	{
		Label:   "POSTCODE",
		Pattern: regexp.MustCompile(`\b[A-Z]{1,2}\d[A-Z\d]?\s*\d[A-Z]{2}\b`),
	},
	{
		Label:   "NINO",
		Pattern: regexp.MustCompile(`\b[A-CEGHJ-PR-TW-Z]{2}\s?\d{2}\s?\d{2}\s?\d{2}\s?[A-D]\b`),
	},
	{
		Label:   "PERSON",
		Pattern: regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Miss|Dr|Prof)\.?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?\b`),
	},
}

// runBase applies the allowed recognizers to text and returns their
// matches as spans, deduplicated so that when two matches overlap the
// longer one wins.
func runBase(text string, allowed map[string]bool) []Span {
	var raw []Span
	for _, rec := range builtinRecognizers {
		if len(allowed) > 0 && !allowed[rec.Label] {
			continue
		}
		for _, loc := range rec.Pattern.FindAllStringIndex(text, -1) {
			raw = append(raw, Span{
				Text:  text[loc[0]:loc[1]],
				Label: rec.Label,
				Start: loc[0],
				End:   loc[1],
			})
		}
	}

	// Longer matches take precedence over shorter overlapping ones.
	for i := 1; i < len(raw); i++ {
		for j := i; j > 0 && spanLonger(raw[j], raw[j-1]); j-- {
			raw[j], raw[j-1] = raw[j-1], raw[j]
		}
	}
	var out []Span
	for _, s := range raw {
		clash := false
		for _, kept := range out {
			if s.overlaps(kept) {
				clash = true
				break
			}
		}
		if !clash {
			out = append(out, s)
		}
	}
	sortSpans(out)
	return out
}

func spanLonger(a, b Span) bool {
	la, lb := a.End-a.Start, b.End-b.Start
	if la != lb {
		return la > lb
	}
	return a.Start < b.Start
}
