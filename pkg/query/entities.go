package query

import (
	"regexp"
	"strings"
	"unicode"
)

// questionStopwords are words that look like entity names when capitalized
// but never are: question openers, auxiliaries, request verbs and the role
// titles the intents already key on.
var questionStopwords = map[string]struct{}{
	"what": {}, "who": {}, "when": {}, "where": {}, "why": {}, "how": {},
	"is": {}, "are": {}, "was": {}, "were": {},
	"the": {}, "a": {}, "an": {}, "in": {}, "on": {}, "at": {}, "to": {},
	"for": {}, "of": {}, "with": {}, "about": {},
	"does": {}, "do": {}, "did": {}, "can": {}, "could": {}, "would": {},
	"should": {}, "founded": {}, "created": {}, "made": {}, "built": {},
	"developed": {}, "invented": {},
	"tell": {}, "me": {}, "show": {}, "give": {}, "find": {}, "list": {},
	"describe": {}, "explain": {}, "please": {},
	"ceo": {}, "cto": {}, "cfo": {}, "coo": {},
	"founder": {}, "founders": {}, "president": {},
	"price": {}, "cost": {}, "much": {},
}

// extractEntities pulls candidate entity names out of a question as maximal
// runs of capitalized words, minus the stopword set. "Who founded Acme
// Corp?" yields ["Acme Corp"].
func extractEntities(question string) []string {
	var entities []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			entities = append(entities, strings.Join(current, " "))
			current = nil
		}
	}

	for _, word := range strings.Fields(question) {
		clean := stripPunct(word)
		if clean == "" {
			continue
		}
		if isCapitalized(clean) {
			if _, stop := questionStopwords[strings.ToLower(clean)]; !stop {
				current = append(current, clean)
			}
			// A capitalized stopword ("The") does not break the phrase.
			continue
		}
		flush()
	}
	flush()

	return entities
}

func stripPunct(word string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return -1
	}, word)
}

func isCapitalized(word string) bool {
	runes := []rune(word)
	if unicode.IsUpper(runes[0]) {
		return true
	}
	hasUpper := false
	for _, r := range runes {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
	}
	return hasUpper
}

// entityPattern builds one case-insensitive contains-any regex for the
// candidate names, passed to Cypher as a parameter.
func entityPattern(entities []string) string {
	parts := make([]string, 0, len(entities))
	for _, e := range entities {
		parts = append(parts, "(?i).*"+regexp.QuoteMeta(e)+".*")
	}
	return strings.Join(parts, "|")
}
