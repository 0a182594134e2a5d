package service

import (
	"slices"
	"strings"
	"unicode"
)

// negationWindow is how many words before a keyword are checked for a negator.
const negationWindow = 3

var negators = []string{
	"not", "no", "never", "without",
	"havent", "hasnt", "hadnt", "didnt", "dont", "doesnt",
	"cant", "cannot", "couldnt", "wont", "wasnt", "werent", "isnt", "arent",
}

// mentionsPayment reports whether body confirms a payment. Keywords match whole
// words only, and a keyword preceded by a negator or a body saying "not yet"
// does not count.
func mentionsPayment(body string, keywords []string) bool {
	words := tokenize(body)
	if len(words) == 0 || containsPhrase(words, []string{"not", "yet"}) {
		return false
	}
	for _, keyword := range keywords {
		phrase := tokenize(keyword)
		if len(phrase) == 0 {
			continue
		}
		for i := 0; i+len(phrase) <= len(words); i++ {
			if slices.Equal(words[i:i+len(phrase)], phrase) && !negated(words, i) {
				return true
			}
		}
	}
	return false
}

func negated(words []string, at int) bool {
	from := max(0, at-negationWindow)
	for _, w := range words[from:at] {
		if slices.Contains(negators, w) {
			return true
		}
	}
	return false
}

func containsPhrase(words, phrase []string) bool {
	for i := 0; i+len(phrase) <= len(words); i++ {
		if slices.Equal(words[i:i+len(phrase)], phrase) {
			return true
		}
	}
	return false
}

// tokenize lowercases text and splits it into words. Apostrophes are dropped so
// "haven't" and "havent" compare equal.
func tokenize(text string) []string {
	text = strings.NewReplacer("'", "", "’", "").Replace(strings.ToLower(text))
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
