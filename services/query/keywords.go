package query

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// BroadenMarker is appended as an extra keyword when a query yields too few
// search terms, to widen recall toward the daily-report corpus.
const BroadenMarker = "日報"

// Function words in both inventories, dropped before searching.
var stopWords = map[string]struct{}{
	"について": {}, "とは": {}, "の": {}, "を": {}, "に": {}, "は": {}, "で": {},
	"が": {}, "と": {}, "から": {}, "へ": {}, "より": {}, "内容": {}, "知りたい": {},
	"あったのか": {}, "何": {}, "教えて": {}, "どのような": {}, "どんな": {}, "ありました": {},
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {},
	"in": {}, "for": {}, "on": {}, "by": {},
}

var japaneseScriptRe = regexp.MustCompile(`[ぁ-んァ-ン一-龥]`)

const tokenPunctuation = `,.;:!?()[]{}"'`

// HasJapanese reports whether s contains hiragana, katakana or kanji.
func HasJapanese(s string) bool {
	return japaneseScriptRe.MatchString(s)
}

// Keywords derives the keyword set for a query. The extracted date, when
// present, leads the set in its long form and its digits are excluded from
// the generic tokens; remaining tokens are cleaned of punctuation and
// filtered against the stoplist. When fewer than two keywords survive and the
// query does not already carry the broadening marker, the marker is appended.
func Keywords(queryText string, date *Date) []string {
	var keywords []string

	var dateStr string
	if date != nil {
		dateStr = date.Japanese()
		keywords = append(keywords, dateStr)
	}

	for _, word := range strings.Fields(queryText) {
		clean := strings.Trim(word, tokenPunctuation)
		if clean == "" || utf8.RuneCountInString(clean) <= 1 {
			continue
		}
		if _, stop := stopWords[strings.ToLower(clean)]; stop {
			continue
		}
		if dateStr != "" && strings.Contains(clean, dateStr) {
			continue
		}
		keywords = append(keywords, clean)
	}

	if len(keywords) < 2 && !strings.Contains(queryText, BroadenMarker) && !anyContains(keywords, BroadenMarker) {
		keywords = append(keywords, BroadenMarker)
	}

	return keywords
}

func anyContains(words []string, sub string) bool {
	for _, w := range words {
		if strings.Contains(w, sub) {
			return true
		}
	}
	return false
}
