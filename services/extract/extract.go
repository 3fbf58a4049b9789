package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kyoden/chatrelay/logger"
)

// maxFileSize is the hard gate above which extraction is skipped entirely.
const maxFileSize = 100 << 20 // 100 MiB

const sectionSeparator = "----------------------------------------"

// parserFunc converts a rich-document file into bounded plain text.
type parserFunc func(path string) (string, error)

var textExtensions = map[string]struct{}{
	".txt": {}, ".md": {}, ".csv": {}, ".json": {}, ".xml": {},
	".html": {}, ".htm": {}, ".log": {}, ".py": {}, ".js": {},
	".css": {}, ".go": {}, ".yaml": {}, ".yml": {},
}

// Extractor converts files on disk into bounded plain-text representations.
// Rich formats go through the capability table; an absent or failing parser
// falls back to a metadata-only report. Extract never fails: every error
// path yields a descriptive string.
type Extractor struct {
	logger  logger.Logger
	parsers map[string]parserFunc
}

func New(logger logger.Logger) *Extractor {
	e := &Extractor{logger: logger}
	e.parsers = map[string]parserFunc{
		".pdf":  e.extractPDF,
		".docx": e.extractDOCX,
		".xlsx": e.extractXLSX,
		".pptx": e.extractPPTX,
	}
	return e
}

func (e *Extractor) Extract(path string) string {
	name := filepath.Base(path)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("ファイル '%s' が見つかりません。削除または移動された可能性があります。", name)
		}
		if os.IsPermission(err) {
			return fmt.Sprintf("ファイル '%s' へのアクセス権限がありません。", name)
		}
		e.logger.Error("failed to stat file", "path", path, "err", err.Error())
		return fmt.Sprintf("ファイル抽出エラー: %s", err)
	}

	if info.Size() > maxFileSize {
		return fmt.Sprintf("ファイル '%s' は%.1fMBと大きすぎるため、処理できません。", name, float64(info.Size())/(1024*1024))
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Sprintf("ファイル '%s' へのアクセス権限がありません。", name)
		}
		e.logger.Error("failed to open file", "path", path, "err", err.Error())
		return fmt.Sprintf("ファイル抽出エラー: %s", err)
	}
	f.Close()

	ext := strings.ToLower(filepath.Ext(path))

	if parser, ok := e.parsers[ext]; ok {
		return e.runParser(parser, path, ext)
	}

	if _, ok := textExtensions[ext]; ok {
		return e.extractText(path)
	}

	return fmt.Sprintf("未対応のファイル形式 (%s):\n%s", ext, e.fileInfo(path))
}

// runParser isolates a capability parser: an error or a panic mid-extraction
// degrades to the metadata-only report instead of aborting the batch.
func (e *Extractor) runParser(parser parserFunc, path, ext string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("parser panicked", "path", path, "ext", ext, "panic", fmt.Sprint(r))
			result = e.unavailable(path, ext)
		}
	}()

	out, err := parser(path)
	if err != nil {
		e.logger.Error("extraction failed, using metadata fallback", "path", path, "ext", ext, "err", err.Error())
		return e.unavailable(path, ext)
	}
	return out
}

func (e *Extractor) unavailable(path, ext string) string {
	return fmt.Sprintf("%s\n%s\nこのファイル (%s) からの本文抽出は利用できません。ファイル情報のみ表示しています。",
		e.fileInfo(path), sectionSeparator, ext)
}

// fileInfo renders the metadata header. It degrades to the bare file name
// rather than failing.
func (e *Extractor) fileInfo(path string) string {
	name := filepath.Base(path)

	info, err := os.Stat(path)
	if err != nil {
		e.logger.Error("failed to read file info", "path", path, "err", err.Error())
		return fmt.Sprintf("ファイル名: %s", name)
	}

	return fmt.Sprintf("ファイル名: %s\nファイルサイズ: %s\n最終更新日時: %s",
		name, humanSize(info.Size()), info.ModTime().Format("2006年01月02日 15:04:05"))
}

func humanSize(size int64) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%d bytes", size)
	case size < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	}
}
