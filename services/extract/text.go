package extract

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
)

// Decoders tried in order when the content is not valid UTF-8.
var fallbackEncodings = []encoding.Encoding{
	japanese.ShiftJIS,
	japanese.EUCJP,
	japanese.ISO2022JP,
}

func (e *Extractor) extractText(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		e.logger.Error("failed to read text file", "path", path, "err", err.Error())
		return fmt.Sprintf("テキストファイル読み込みエラー: %s", err)
	}

	content, note := decodeText(raw)
	return fmt.Sprintf("%s\n\n%s%s", e.fileInfo(path), content, note)
}

// decodeText returns the decoded content plus a note when only a lossy
// replacement-character decode was possible.
func decodeText(raw []byte) (string, string) {
	if utf8.Valid(raw) {
		return string(raw), ""
	}

	for _, enc := range fallbackEncodings {
		decoded, err := enc.NewDecoder().Bytes(raw)
		if err == nil && utf8.Valid(decoded) {
			return string(decoded), ""
		}
	}

	lossy := strings.ToValidUTF8(string(raw), string(utf8.RuneError))
	return lossy, " (エンコーディングの問題があるため、一部文字化けしている可能性があります)"
}
