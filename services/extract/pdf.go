package extract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

const maxPDFPages = 10

func (e *Extractor) extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	var lines []string

	info := reader.Trailer().Key("Info")
	if !info.IsNull() {
		lines = append(lines,
			fmt.Sprintf("タイトル: %s", orUnknown(info.Key("Title").Text())),
			fmt.Sprintf("作成者: %s", orUnknown(info.Key("Author").Text())),
			fmt.Sprintf("作成日: %s", orUnknown(info.Key("CreationDate").Text())))
	}

	totalPages := reader.NumPage()
	lines = append(lines, fmt.Sprintf("ページ数: %d", totalPages), sectionSeparator)

	for i := 1; i <= totalPages && i <= maxPDFPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("failed to extract pdf page text", "path", path, "page", i, "err", err.Error())
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("--- ページ %d ---", i), text)
	}

	if totalPages > maxPDFPages {
		lines = append(lines, fmt.Sprintf("\n...(残り %d ページは省略)...", totalPages-maxPDFPages))
	}

	return fmt.Sprintf("%s\n\n%s", e.fileInfo(path), strings.Join(lines, "\n")), nil
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "不明"
	}
	return s
}
