// Package keywords turns free text into normalized search terms.
package keywords

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jdkato/prose/v2"
)

var stopWords = map[string]bool{
	// articles and determiners
	"a": true, "an": true, "the": true, "this": true, "that": true, "these": true,
	"those": true, "some": true, "any": true,
	// prepositions and conjunctions
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "about": true, "into": true,
	"over": true, "under": true, "up": true, "out": true, "as": true,
	"and": true, "or": true, "but": true, "if": true, "so": true,
	// auxiliary and modal verbs
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"being": true, "am": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "will": true, "would": true,
	"shall": true, "should": true, "can": true, "could": true, "may": true,
	"might": true, "must": true,
	// wh-words
	"what": true, "when": true, "where": true, "which": true, "who": true,
	"whom": true, "whose": true, "why": true, "how": true,
	// pronouns
	"i": true, "me": true, "my": true, "you": true, "your": true, "we": true,
	"us": true, "our": true, "it": true, "its": true, "they": true,
	"them": true, "their": true, "there": true, "here": true,
	// filler
	"please": true, "tell": true, "know": true,
}

type Options struct {
	// MinLength is the minimum token length in runes.
	MinLength int
	// KeepStopWords disables stop-word removal.
	KeepStopWords bool
}

// Extract returns the keyword set of text: lowercase tokens of at least two
// characters with punctuation and stop words removed.
func Extract(text string) []string {
	return Tokenize(text, Options{MinLength: 2})
}

// Tokenize returns the sorted, deduplicated token set of text.
func Tokenize(text string, opts Options) []string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return []string{}
	}
	if opts.MinLength < 1 {
		opts.MinLength = 1
	}

	seen := make(map[string]bool)
	for _, raw := range rawTokens(text) {
		if isContractionSuffix(raw) {
			continue
		}
		for _, tok := range splitWords(raw) {
			if utf8.RuneCountInString(tok) < opts.MinLength {
				continue
			}
			if !opts.KeepStopWords && stopWords[tok] {
				continue
			}
			seen[tok] = true
		}
	}

	out := make([]string, 0, len(seen))
	for tok := range seen {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

func rawTokens(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return strings.Fields(text)
	}

	toks := doc.Tokens()
	out := make([]string, 0, len(toks))
	for _, t := range toks {
		out = append(out, t.Text)
	}
	return out
}

// splitWords strips punctuation, splitting on it, so "e-mail/phone" yields
// "e", "mail" and "phone".
func splitWords(tok string) []string {
	return strings.FieldsFunc(tok, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isContractionSuffix(tok string) bool {
	switch tok {
	case "n't", "'s", "'re", "'ll", "'ve", "'m", "'d", "’s", "n’t":
		return true
	}
	return false
}
