package search

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/kyoden/chatrelay/logger"
	"github.com/kyoden/chatrelay/services/extract"
	"github.com/kyoden/chatrelay/services/query"
)

// FileRecord is an immutable snapshot of a matched file at search time.
type FileRecord struct {
	Path     string
	Name     string
	Modified time.Time
	Size     int64
}

// Config carries the operator-set search parameters. Now is the cache time
// source, injectable for deterministic expiry tests; nil means time.Now.
type Config struct {
	BaseDir    string
	FileTypes  []string
	MaxResults int
	DateStrict bool
	Now        func() time.Time
}

// Service walks the configured base directory matching files against query
// keywords. Results are first-N in walk order (no ranking) and cached per
// request parameters.
type Service struct {
	logger     logger.Logger
	extractor  *extract.Extractor
	baseDir    string
	fileTypes  []string
	maxResults int
	recognizer query.Recognizer
	cache      *resultCache

	walkCount atomic.Int64 // instrumentation for cache tests
}

func New(logger logger.Logger, extractor *extract.Extractor, cfg Config) *Service {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	return &Service{
		logger:     logger,
		extractor:  extractor,
		baseDir:    cfg.BaseDir,
		fileTypes:  cfg.FileTypes,
		maxResults: maxResults,
		recognizer: query.Recognizer{Strict: cfg.DateStrict},
		cache:      newResultCache(cfg.Now),
	}
}

// BaseDir returns the directory searches run against.
func (s *Service) BaseDir() string {
	return s.baseDir
}

var errStopWalk = errors.New("enough results collected")

// Search matches files under the base directory against the keywords.
// A file is included if it matches any active keyword (OR across terms and
// across date variants); scanning stops once maxResults are collected.
// Errors never propagate: a failed walk yields an empty list.
func (s *Service) Search(keywords, fileTypes []string, maxResults int) []FileRecord {
	if len(fileTypes) == 0 {
		fileTypes = s.fileTypes
	}
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	dateKeys, terms := s.classify(keywords)

	key := cacheKey(keywords, fileTypes, maxResults)
	if results, ok := s.cache.get(key); ok {
		s.logger.Info("returning search results from cache", "count", len(results))
		return results
	}

	s.logger.Info("searching files", "terms", terms, "date_keys", dateKeys, "file_types", fileTypes)

	s.walkCount.Add(1)
	results := make([]FileRecord, 0, maxResults)
	err := filepath.Walk(s.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			s.logger.Warn("could not walk through file or directory", "path", path, "err", err.Error())
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		name := info.Name()
		if len(fileTypes) > 0 && !matchesExtension(name, fileTypes) {
			return nil
		}
		if !matchesKeywords(name, path, dateKeys, terms) {
			return nil
		}

		results = append(results, FileRecord{
			Path:     path,
			Name:     name,
			Modified: info.ModTime(),
			Size:     info.Size(),
		})
		if len(results) >= maxResults {
			return errStopWalk
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopWalk) {
		s.logger.Error("file search failed", "err", err.Error())
		return []FileRecord{}
	}

	s.logger.Info("search finished", "count", len(results))
	s.cache.put(key, results)

	return results
}

// classify splits keywords into date keywords (expanded into their three
// sibling representations) and plain search terms. Date keywords join the
// term set; degenerate input falls back to the first two original keywords,
// then to the whole original string.
func (s *Service) classify(keywords []string) (dateKeys, terms []string) {
	for _, k := range keywords {
		if d, ok := s.recognizer.Extract(k); ok {
			dateKeys = append(dateKeys, d.Variants()...)
			continue
		}
		// An 8-digit numeral that failed date validation is noise, not a
		// search term.
		if len(k) == 8 && isDigits(k) {
			continue
		}
		if utf8.RuneCountInString(k) > 2 || query.HasJapanese(k) {
			terms = append(terms, k)
		}
	}

	terms = append(terms, dateKeys...)

	if len(terms) == 0 && len(keywords) > 0 {
		if len(keywords) > 2 {
			terms = keywords[:2]
		} else {
			terms = keywords
		}
	}
	if len(terms) == 0 {
		if raw := strings.TrimSpace(strings.Join(keywords, " ")); raw != "" {
			terms = []string{raw}
		}
	}

	return dateKeys, terms
}

func matchesExtension(name string, fileTypes []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range fileTypes {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// matchesKeywords applies the OR-match: a date keyword matches literally in
// the filename or path, or by its year/month/day substrings each appearing
// somewhere in the path (date-partitioned folder layouts); a plain term
// matches as a filename substring.
func matchesKeywords(name, path string, dateKeys, terms []string) bool {
	for _, dateKey := range dateKeys {
		if strings.Contains(name, dateKey) || strings.Contains(path, dateKey) {
			return true
		}
		if len(dateKey) == 8 && isDigits(dateKey) {
			year, month, day := dateKey[:4], dateKey[4:6], dateKey[6:8]
			if strings.Contains(path, year) && strings.Contains(path, month) && strings.Contains(path, day) {
				return true
			}
		}
	}
	for _, term := range terms {
		if strings.Contains(name, term) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
