package search

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kyoden/chatrelay/services/query"
)

const (
	// defaultMaxChars bounds the assembled context blob.
	defaultMaxChars = 8000
	// previewLimit bounds the extracted content taken per file.
	previewLimit = 2000
	// truncationReserve keeps room for the omission marker when a block
	// must be cut to fit the budget.
	truncationReserve = 100
)

// RelevantContent searches for files matching the query and assembles their
// extracted content into a size-bounded text blob, one labeled block per
// file. The output never exceeds maxChars; truncation is always marked.
func (s *Service) RelevantContent(queryText string, maxFiles, maxChars int) string {
	if maxFiles <= 0 {
		maxFiles = s.maxResults
	}
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}

	var date *query.Date
	if d, ok := s.recognizer.Extract(queryText); ok {
		date = &d
		s.logger.Info("date detected in query", "date", d.Japanese(), "style", string(d.Style))
	}

	keywords := query.Keywords(queryText, date)
	if len(keywords) == 0 {
		return "検索キーワードが見つかりませんでした。具体的な日付や単語で検索してください。"
	}
	s.logger.Info("extracted keywords", "keywords", keywords)

	results := s.Search(keywords, nil, maxFiles)
	if len(results) == 0 {
		if date != nil {
			return fmt.Sprintf("%sの日報は見つかりませんでした。日付の表記が正しいか確認してください。", date.Japanese())
		}
		return fmt.Sprintf("キーワード '%s' に関連するファイルは見つかりませんでした。", strings.Join(keywords, ", "))
	}

	out := fmt.Sprintf("--- %d件の関連ファイルが見つかりました ---\n\n", len(results))
	total := utf8.RuneCountInString(out)

	for i, record := range results {
		content := s.extractor.Extract(record.Path)
		preview := truncateRunes(content, previewLimit)

		block := fmt.Sprintf("=== ファイル %d: %s ===\n更新日時: %s\n%s\n\n",
			i+1, record.Name, record.Modified.Format("2006-01-02 15:04:05"), preview)
		blockLen := utf8.RuneCountInString(block)

		if total+blockLen > maxChars {
			remaining := maxChars - total - truncationReserve
			if remaining > 0 {
				block = truncateRunes(block, remaining) + "...\n"
				out += block
				total += utf8.RuneCountInString(block)
				continue
			}

			marker := fmt.Sprintf("\n（残り%d件のファイルは文字数制限のため表示されません）", len(results)-i)
			markerLen := utf8.RuneCountInString(marker)
			if total+markerLen > maxChars {
				out = truncateRunes(out, maxChars-markerLen)
			}
			out += marker
			break
		}

		out += block
		total += blockLen
	}

	return out
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
