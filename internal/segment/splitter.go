package segment

import (
	"regexp"
	"strings"
	"unicode"
)

// RuleSplitter is a rule-based English sentence splitter. A sentence ends at
// terminal punctuation followed by whitespace, unless the preceding word is
// a known abbreviation or a single-letter initial.
type RuleSplitter struct {
	boundary      *regexp.Regexp
	abbreviations map[string]struct{}
}

// NewRuleSplitter creates a splitter with the default abbreviation list.
func NewRuleSplitter() *RuleSplitter {
	abbr := make(map[string]struct{})
	for _, a := range []string{
		"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st", "vs",
		"e.g", "i.e", "fig", "no", "inc", "ltd", "co", "approx",
	} {
		abbr[a] = struct{}{}
	}
	return &RuleSplitter{
		boundary:      regexp.MustCompile(`[.!?]+["'”’)\]]*\s+`),
		abbreviations: abbr,
	}
}

// Split implements SentenceSplitter.
func (s *RuleSplitter) Split(text string) []Span {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var spans []Span
	start := 0
	for _, m := range s.boundary.FindAllStringIndex(text, -1) {
		if s.isAbbreviation(text[start:m[0]]) {
			continue
		}
		spans = append(spans, Span{Start: start, End: m[1]})
		start = m[1]
	}
	if start < len(text) {
		spans = append(spans, Span{Start: start, End: len(text)})
	}
	return spans
}

// isAbbreviation checks the last word of a candidate sentence.
func (s *RuleSplitter) isAbbreviation(sentence string) bool {
	fields := strings.Fields(sentence)
	if len(fields) == 0 {
		return false
	}
	word := strings.TrimLeft(fields[len(fields)-1], `"'“‘([`)
	if r := []rune(word); len(r) == 1 && unicode.IsUpper(r[0]) {
		return true
	}
	_, ok := s.abbreviations[strings.ToLower(word)]
	return ok
}
