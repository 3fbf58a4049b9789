package notify

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const defaultPathLabel = "デフォルト検索ディレクトリ"

// shortenedPathThreshold is the display length above which paths get
// abbreviated.
const shortenedPathThreshold = 50

var oneDriveCompanyRe = regexp.MustCompile(`OneDrive - ([^\\/]+)`)

// ShortenPath abbreviates a long filesystem path for display in a chat
// message, keeping the drive/root and the trailing segments. Windows and
// POSIX separators are both handled.
func ShortenPath(path string) string {
	if path == "" {
		return defaultPathLabel
	}
	if utf8.RuneCountInString(path) <= shortenedPathThreshold {
		return path
	}

	sep := "/"
	if strings.Contains(path, "\\") {
		sep = "\\"
	}
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '\\' || r == '/'
	})

	if strings.Contains(path, "OneDrive") {
		if m := oneDriveCompanyRe.FindStringSubmatch(path); m != nil && len(parts) > 3 {
			company := m[1]
			if utf8.RuneCountInString(company) > 10 {
				company = string([]rune(company)[:10]) + "..."
			}
			last := parts[len(parts)-3:]
			return "OneDrive - " + company + sep + "..." + sep + strings.Join(last, sep)
		}
	}

	if len(parts) > 3 {
		first := parts[0]
		if strings.Contains(first, ":") {
			first = parts[0] + sep + parts[1]
		}
		last := parts[len(parts)-2:]
		return first + sep + "..." + sep + strings.Join(last, sep)
	}

	return path
}
