package search

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/kyoden/chatrelay/services/extract"
)

func TestRelevantContent(t *testing.T) {
	assert := require.New(t)
	service := setupTestService(t, assert, Config{MaxResults: 10})

	out := service.RelevantContent("2024年10月26日の日報について", 0, 0)

	assert.Contains(out, "件の関連ファイルが見つかりました")
	assert.Contains(out, "=== ファイル 1:")
	assert.Contains(out, "更新日時:")
	assert.Contains(out, "定例会議と資料作成")
}

func TestRelevantContentBroadening(t *testing.T) {
	assert := require.New(t)
	service := setupTestService(t, assert, Config{MaxResults: 10})

	// A single sparse keyword gets broadened with the report marker, which
	// matches the report files in the fixture tree.
	out := service.RelevantContent("会議", 0, 0)
	assert.Contains(out, "件の関連ファイルが見つかりました")
	assert.Contains(out, "日報_20241026.txt")
}

func TestRelevantContentDateNotFound(t *testing.T) {
	assert := require.New(t)
	service := setupTestService(t, assert, Config{MaxResults: 10})

	out := service.RelevantContent("2019年01月01日の日報", 0, 0)
	assert.Contains(out, "2019年01月01日の日報は見つかりませんでした")
	assert.Contains(out, "日付の表記が正しいか確認してください")
}

func TestRelevantContentKeywordNotFound(t *testing.T) {
	assert := require.New(t)
	service := setupTestService(t, assert, Config{MaxResults: 10})

	out := service.RelevantContent("存在しない プロジェクトレポート", 0, 0)
	assert.Contains(out, "関連するファイルは見つかりませんでした")
}

func TestRelevantContentBudget(t *testing.T) {
	assert := require.New(t)

	tempDir := t.TempDir()
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("日報_2024102%d.txt", i)
		content := strings.Repeat("長い本文です。", 100)
		assert.NoError(os.WriteFile(filepath.Join(tempDir, name), []byte(content), 0644))
	}

	testLogger := newTestLogger()
	service := New(testLogger, extract.New(testLogger), Config{BaseDir: tempDir, MaxResults: 10})

	for _, maxChars := range []int{200, 500, 1000} {
		out := service.RelevantContent("日報 まとめ", 10, maxChars)
		assert.LessOrEqual(utf8.RuneCountInString(out), maxChars, "budget %d exceeded", maxChars)
	}

	out := service.RelevantContent("日報 まとめ", 10, 1000)
	assert.Contains(out, "文字数制限のため表示されません")
}
