// Package moderation implements the tiered content-safety pipeline:
// synchronous keyword/pattern prefilter, asynchronous remote classification,
// and the local heuristic fallback.
package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"strings"

	"sanctuary/errors"
)

//go:embed lexicon/*
var lexiconFS embed.FS

// LexiconData carries the result of the loading process including metadata
// for logging.
type LexiconData struct {
	CrisisTerms      []string
	ToxicityPatterns []string
}

// LoadLexicon reads the embedded crisis term list and toxicity regex list.
// One entry per line; blank lines and #-comments are skipped.
func LoadLexicon() (*LexiconData, error) {
	crisis, err := readLines("lexicon/crisis.txt")
	if err != nil {
		return nil, err
	}
	patterns, err := readLines("lexicon/toxicity.txt")
	if err != nil {
		return nil, err
	}
	if len(crisis) == 0 {
		return nil, errors.ErrEmptyLexicon
	}
	return &LexiconData{CrisisTerms: crisis, ToxicityPatterns: patterns}, nil
}

func readLines(path string) ([]string, error) {
	data, err := fs.ReadFile(lexiconFS, path)
	if err != nil {
		return nil, err
	}

	var lines []string
	// A scanner handles different line endings (\n vs \r\n) correctly.
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
