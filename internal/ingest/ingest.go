// Package ingest validates webhook payloads and turns them into inbox files.
//
// Filenames are derived from the delivery timestamp plus a sanitized title and
// made unique against the inbox directory. The uniqueness check and the final
// write must happen while the mutation serializer is held; callers own that
// sequencing.
package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// MaxTranscriptBytes caps the accepted transcript size. Covers very long
// meetings while keeping single commits reasonable.
const MaxTranscriptBytes = 256 * 1024

const maxSlugLength = 50

// ErrValidation marks payload rejections that map to HTTP 400.
var ErrValidation = errors.New("validation error")

// ErrTooLarge marks oversized transcripts that map to HTTP 413.
var ErrTooLarge = errors.New("transcript too large")

// Payload is the body of a webhook delivery.
type Payload struct {
	Title      string `json:"title"`
	Transcript string `json:"transcript"`
}

// Validate checks required fields and the transcript size bound.
func (p Payload) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: missing required field: 'title'", ErrValidation)
	}
	if strings.TrimSpace(p.Transcript) == "" {
		return fmt.Errorf("%w: transcript cannot be empty", ErrValidation)
	}
	if size := len(p.Transcript); size > MaxTranscriptBytes {
		return fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrTooLarge, size, MaxTranscriptBytes)
	}
	return nil
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	disallowed    = regexp.MustCompile(`[^a-z0-9\-_]`)
	hyphenRun     = regexp.MustCompile(`-+`)
)

// SanitizeTitle reduces a meeting title to a filesystem-safe slug: lowercase,
// whitespace collapsed to hyphens, everything else stripped, length capped.
func SanitizeTitle(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = whitespaceRun.ReplaceAllString(slug, "-")
	slug = disallowed.ReplaceAllString(slug, "")
	slug = hyphenRun.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return "untitled"
	}
	return slug
}

// Filename derives the inbox filename for a delivery received at the given
// time: YYYYMMDD-HHMMSS-<slug>.txt.
func Filename(now time.Time, title string) string {
	return fmt.Sprintf("%s-%s.txt", now.Format("20060102-150405"), SanitizeTitle(title))
}

// UniqueName resolves name against dir, appending -1, -2, ... before the
// extension until no file with that name exists. Two deliveries in the same
// second with the same title therefore still get distinct files, provided the
// caller holds the mutation serializer across this check and the write.
func UniqueName(dir, name string) string {
	if !exists(filepath.Join(dir, name)) {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for counter := 1; ; counter++ {
		candidate := fmt.Sprintf("%s-%d%s", base, counter, ext)
		if !exists(filepath.Join(dir, candidate)) {
			return candidate
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WriteAtomic durably writes content to dir/name via a temporary file and
// rename, so a crash mid-write never leaves a partial file at the final path.
func WriteAtomic(dir, name, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create inbox directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write transcript: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("sync transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close transcript: %w", err)
	}

	final := filepath.Join(dir, name)
	if err := os.Rename(tmpPath, final); err != nil {
		return "", fmt.Errorf("finalize transcript: %w", err)
	}
	tmpPath = ""
	return final, nil
}
