package detect

import (
	"unicode"
	"unicode/utf8"
)

// Token is one lexical unit of a text with its byte offsets.
type Token struct {
	Text  string
	Start int
	End   int
}

// Tokenize splits text into word and punctuation tokens. Runs of
// letters and digits (with internal apostrophes and hyphens) form one
// token; every other non-space rune is a token of its own.
func Tokenize(text string) []Token {
	var tokens []Token
	i := 0
	for i < len(text) {
		r, size := decodeRune(text[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case isWordRune(r):
			start := i
			i += size
			for i < len(text) {
				r, size = decodeRune(text[i:])
				if isWordRune(r) || ((r == '\'' || r == '-') && i+size < len(text) && wordFollows(text[i+size:])) {
					i += size
					continue
				}
				break
			}
			tokens = append(tokens, Token{Text: text[start:i], Start: start, End: i})
		default:
			tokens = append(tokens, Token{Text: text[i : i+size], Start: i, End: i + size})
			i += size
		}
	}
	return tokens
}

func decodeRune(s string) (rune, int) {
	return utf8.DecodeRuneInString(s)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func wordFollows(s string) bool {
	r, _ := decodeRune(s)
	return isWordRune(r)
}

// AlignToTokens snaps a character span to the boundaries of the tokens
// it fully contains. Returns false when no token lies entirely inside
// the span, in which case the span cannot be used as an annotation.
func AlignToTokens(tokens []Token, start, end int) (int, int, bool) {
	alignedStart, alignedEnd := -1, -1
	for _, tok := range tokens {
		if tok.Start >= start && tok.End <= end {
			if alignedStart == -1 {
				alignedStart = tok.Start
			}
			alignedEnd = tok.End
		}
	}
	if alignedStart == -1 {
		return 0, 0, false
	}
	return alignedStart, alignedEnd, true
}
