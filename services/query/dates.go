package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DateStyle identifies which written form a date was recognized from.
type DateStyle string

const (
	StyleJapanese  DateStyle = "japanese"  // 2024年10月26日
	StyleSeparated DateStyle = "separated" // 2024/10/26, 2024-10-26
	StyleNumeric   DateStyle = "numeric"   // 20241026 found anywhere
	StyleToken     DateStyle = "token"     // standalone 8-digit token
)

// Date is a calendar date extracted from free text. Month and day are always
// zero-padded to two digits.
type Date struct {
	Year  string
	Month string
	Day   string
	Style DateStyle
}

var (
	japaneseDateRe  = regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`)
	separatedDateRe = regexp.MustCompile(`(\d{4})[/-](\d{1,2})[/-](\d{1,2})`)
	numericDateRe   = regexp.MustCompile(`\b(\d{4})(\d{2})(\d{2})\b`)
	digitsOnlyRe    = regexp.MustCompile(`^\d{8}$`)
)

// Recognizer extracts dates from query text. With Strict set, the month/day
// range check applied to standalone 8-digit tokens is extended to every
// style; historically only the token style was validated.
type Recognizer struct {
	Strict bool
}

// Extract returns the first date found in text, trying the four recognized
// styles in fixed priority order.
func (r Recognizer) Extract(text string) (Date, bool) {
	if m := japaneseDateRe.FindStringSubmatch(text); m != nil {
		if d, ok := r.build(m[1], m[2], m[3], StyleJapanese); ok {
			return d, true
		}
	}

	if m := separatedDateRe.FindStringSubmatch(text); m != nil {
		if d, ok := r.build(m[1], m[2], m[3], StyleSeparated); ok {
			return d, true
		}
	}

	if m := numericDateRe.FindStringSubmatch(text); m != nil {
		if d, ok := r.build(m[1], m[2], m[3], StyleNumeric); ok {
			return d, true
		}
	}

	for _, token := range strings.Fields(text) {
		if !digitsOnlyRe.MatchString(token) {
			continue
		}
		month, day := token[4:6], token[6:8]
		if !validMonthDay(month, day) {
			continue
		}
		return Date{Year: token[:4], Month: month, Day: day, Style: StyleToken}, true
	}

	return Date{}, false
}

func (r Recognizer) build(year, month, day string, style DateStyle) (Date, bool) {
	month = zeroPad(month)
	day = zeroPad(day)
	if r.Strict && !validMonthDay(month, day) {
		return Date{}, false
	}
	return Date{Year: year, Month: month, Day: day, Style: style}, true
}

// Variants returns the three sibling representations a date keyword expands
// into for filename and path matching.
func (d Date) Variants() []string {
	return []string{
		d.Year + d.Month + d.Day,
		d.Year + "-" + d.Month + "-" + d.Day,
		d.Year + "/" + d.Month + "/" + d.Day,
	}
}

// Japanese renders the date in long form, e.g. 2024年10月26日.
func (d Date) Japanese() string {
	return fmt.Sprintf("%s年%s月%s日", d.Year, d.Month, d.Day)
}

func zeroPad(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

func validMonthDay(month, day string) bool {
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return false
	}
	return true
}
