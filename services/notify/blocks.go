package notify

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// maxBlockLen bounds a single display block; the chat client renders
	// long unbroken blocks poorly.
	maxBlockLen = 900
	maxBlocks   = 10
	maxTotalLen = 9000

	truncationNotice = "（一部省略されています。全文は管理者にお問い合わせください）"
)

// Control characters and non-characters that break the downstream JSON
// transport. Lone surrogates arrive as invalid UTF-8 and are dropped by
// sanitize before this class applies.
var controlCharsRe = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x{FFFE}\x{FFFF}]`)

func sanitize(s string) string {
	s = strings.ToValidUTF8(s, "")
	return controlCharsRe.ReplaceAllString(s, "")
}

// splitBlocks cuts text into display blocks of at most maxBlockLen runes,
// breaking on line boundaries and rewriting lightweight markdown emphasis
// and bullets into plain punctuation.
func splitBlocks(text string) []string {
	var blocks []string
	var buf string
	bufLen := 0

	for _, line := range strings.Split(text, "\n") {
		line = strings.ReplaceAll(line, "**", "")
		line = strings.ReplaceAll(line, "* ", "・")
		lineLen := utf8.RuneCountInString(line)

		if bufLen+lineLen+1 > maxBlockLen && buf != "" {
			blocks = append(blocks, buf)
			buf = line
			bufLen = lineLen
			continue
		}
		if buf != "" {
			buf += "\n"
			bufLen++
		}
		buf += line
		bufLen += lineLen
	}
	if buf != "" {
		blocks = append(blocks, buf)
	}

	return blocks
}

// limitBlocks applies the block-count and total-length caps, appending an
// explicit notice when content was cut.
func limitBlocks(text string) []string {
	blocks := splitBlocks(text)

	var limited []string
	total := 0
	for _, block := range blocks {
		if len(limited) >= maxBlocks || total+utf8.RuneCountInString(block) > maxTotalLen {
			break
		}
		limited = append(limited, block)
		total += utf8.RuneCountInString(block)
	}

	if len(limited) < len(blocks) {
		limited = append(limited, truncationNotice)
	}

	return limited
}
