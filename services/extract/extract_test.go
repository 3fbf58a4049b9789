package extract

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestExtractor() *Extractor {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	return New(slog.New(handler))
}

func TestExtractTextFile(t *testing.T) {
	assert := require.New(t)
	extractor := newTestExtractor()

	path := filepath.Join(t.TempDir(), "日報_20241026.txt")
	content := "本日の作業内容:\n- 定例会議\n- 資料作成"
	assert.NoError(os.WriteFile(path, []byte(content), 0644))

	out := extractor.Extract(path)
	assert.Contains(out, "ファイル名: 日報_20241026.txt")
	assert.Contains(out, "ファイルサイズ:")
	assert.Contains(out, content)
}

func TestExtractMissingFile(t *testing.T) {
	assert := require.New(t)
	extractor := newTestExtractor()

	out := extractor.Extract(filepath.Join(t.TempDir(), "gone.txt"))
	assert.Contains(out, "ファイル 'gone.txt' が見つかりません")
}

func TestExtractOversizedFile(t *testing.T) {
	assert := require.New(t)
	extractor := newTestExtractor()

	path := filepath.Join(t.TempDir(), "huge.txt")
	f, err := os.Create(path)
	assert.NoError(err)
	// A sparse file trips the size gate without writing 100MB to disk.
	assert.NoError(f.Truncate(maxFileSize + 1))
	assert.NoError(f.Close())

	out := extractor.Extract(path)
	assert.Contains(out, "大きすぎるため、処理できません")
}

func TestExtractUnsupportedExtension(t *testing.T) {
	assert := require.New(t)
	extractor := newTestExtractor()

	path := filepath.Join(t.TempDir(), "archive.bin")
	assert.NoError(os.WriteFile(path, []byte{0x00, 0x01, 0x02}, 0644))

	out := extractor.Extract(path)
	assert.Contains(out, "未対応のファイル形式 (.bin)")
	assert.Contains(out, "ファイル名: archive.bin")
}

func TestExtractCorruptRichDocumentFallsBackToMetadata(t *testing.T) {
	assert := require.New(t)
	extractor := newTestExtractor()

	for _, name := range []string{"broken.pdf", "broken.docx", "broken.xlsx", "broken.pptx"} {
		path := filepath.Join(t.TempDir(), name)
		assert.NoError(os.WriteFile(path, []byte("this is not a real document"), 0644))

		out := extractor.Extract(path)
		assert.Contains(out, "ファイル名: "+name)
		assert.Contains(out, "本文抽出は利用できません", "expected metadata fallback for %s", name)
	}
}

func TestDecodeText(t *testing.T) {
	assert := require.New(t)

	// Valid UTF-8 passes through untouched.
	content, note := decodeText([]byte("日報テスト"))
	assert.Equal("日報テスト", content)
	assert.Empty(note)

	// ShiftJIS bytes for 日報 decode via the fallback chain.
	sjis := []byte{0x93, 0xfa, 0x95, 0xf1}
	content, note = decodeText(sjis)
	assert.Equal("日報", content)
	assert.Empty(note)
}

func TestHumanSize(t *testing.T) {
	assert := require.New(t)

	assert.Equal("512 bytes", humanSize(512))
	assert.Equal("2.0 KB", humanSize(2048))
	assert.Equal("1.5 MB", humanSize(1572864))
}
