// Package ingest scans directories for processable documents.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mkarwowski/receipt2ledger/constants"
)

// Candidate is one file the scanner picked up.
type Candidate struct {
	Path        string
	Ext         string
	Size        int64
	ContentHash string // sha256 hex, for pre-pipeline dedupe
}

// Stats summarizes one scan.
type Stats struct {
	Scanned      int
	Matched      int
	Deduplicated int
}

// Scanner walks directories for files with allowed extensions.
type Scanner struct {
	logger *slog.Logger
}

func NewScanner(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger}
}

// ScanDirectory returns the processable files under dir, skipping content
// duplicates within the scan. recursive controls whether subdirectories are
// walked.
func (s *Scanner) ScanDirectory(dir string, recursive bool) ([]Candidate, Stats, error) {
	var stats Stats
	var out []Candidate
	seen := map[string]string{} // content hash -> first path

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		stats.Scanned++

		ext := constants.NormalizeExt(filepath.Ext(path))
		if _, ok := constants.AllowedExtensions[ext]; !ok {
			return nil
		}
		stats.Matched++

		hash, size, err := hashFile(path)
		if err != nil {
			s.logger.Warn("ingest.hash_failed", "path", path, "error", err)
			return nil
		}
		if first, dup := seen[hash]; dup {
			stats.Deduplicated++
			s.logger.Info("ingest.duplicate_content", "path", path, "same_as", first)
			return nil
		}
		seen[hash] = path

		out = append(out, Candidate{Path: path, Ext: ext, Size: size, ContentHash: hash})
		return nil
	})
	if err != nil {
		return nil, stats, fmt.Errorf("scan %s: %w", dir, err)
	}

	s.logger.Info("ingest.scan_complete",
		"dir", dir,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"deduplicated", stats.Deduplicated,
	)
	return out, stats, nil
}

func hashFile(path string) (string, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), int64(len(data)), nil
}
