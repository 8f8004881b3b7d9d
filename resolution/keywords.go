package resolution

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
)

// Служебные слова, бесполезные как подсказки категории
var keywordStopwords = map[string]struct{}{
	"and": {}, "the": {}, "for": {}, "with": {}, "inch": {}, "long": {},
}

// Keywords извлекает стеммированные ключевые термины описания для
// подсказок категории в промпте выбора. Порядок следования сохраняется,
// дубликаты после стемминга отбрасываются.
func Keywords(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(tokens))
	keywords := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if len(tok) < 3 {
			continue
		}
		if _, stop := keywordStopwords[tok]; stop {
			continue
		}
		stemmed, err := snowball.Stem(tok, "english", true)
		if err != nil || stemmed == "" {
			stemmed = tok
		}
		if _, ok := seen[stemmed]; ok {
			continue
		}
		seen[stemmed] = struct{}{}
		keywords = append(keywords, stemmed)
	}
	return keywords
}
