package notify

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	assert := require.New(t)

	assert.Equal("日報テスト", sanitize("日報テスト"))
	assert.Equal("ab", sanitize("a\x00\x01b"))
	// Newlines and tabs survive; they carry formatting.
	assert.Equal("a\nb\tc", sanitize("a\nb\tc"))
	// Invalid UTF-8 is dropped, not replaced.
	assert.Equal("ab", sanitize("a\xffb"))
}

func TestSplitBlocks(t *testing.T) {
	assert := require.New(t)

	blocks := splitBlocks("短い回答です")
	assert.Equal([]string{"短い回答です"}, blocks)

	// Markdown emphasis and bullets are rewritten.
	blocks = splitBlocks("**重要** な点\n* 一つ目\n* 二つ目")
	assert.Equal([]string{"重要 な点\n・一つ目\n・二つ目"}, blocks)

	// Long content splits on line boundaries under the block cap.
	var lines []string
	for i := 0; i < 40; i++ {
		lines = append(lines, strings.Repeat("あ", 100))
	}
	blocks = splitBlocks(strings.Join(lines, "\n"))
	assert.Greater(len(blocks), 1)
	for _, block := range blocks {
		assert.LessOrEqual(utf8.RuneCountInString(block), maxBlockLen)
	}
}

func TestLimitBlocks(t *testing.T) {
	assert := require.New(t)

	// Under the caps nothing is added.
	blocks := limitBlocks("そのままの回答")
	assert.Equal([]string{"そのままの回答"}, blocks)

	// Far over the caps, blocks are dropped and the notice appended.
	long := strings.Repeat(strings.Repeat("あ", 100)+"\n", 200)
	blocks = limitBlocks(long)
	assert.LessOrEqual(len(blocks), maxBlocks+1)
	assert.Equal(truncationNotice, blocks[len(blocks)-1])

	total := 0
	for _, block := range blocks[:len(blocks)-1] {
		total += utf8.RuneCountInString(block)
	}
	assert.LessOrEqual(total, maxTotalLen)
}
