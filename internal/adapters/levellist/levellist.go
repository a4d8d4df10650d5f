// Package levellist reads the bulk level import source.
//
// The source is line oriented. Each line may be a CSV row, in which case
// the first field is the level name; any further fields are ignored.
package levellist

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/okian/scorekeeper/pkg/logger"
)

var (
	// ErrRead is returned when the source cannot be opened or read.
	ErrRead = errors.New("read level list")
	// errUnclosedQuote marks a line whose quoted first field never closes.
	errUnclosedQuote = errors.New("unclosed quote in first field")
)

// Read returns the trimmed, non-blank level names of r in source order.
// Lines are parsed independently; a malformed line is logged and skipped.
// Duplicates are kept; the registry ignores names it already holds.
func Read(ctx context.Context, r io.Reader) ([]string, error) {
	log := logger.Get().Named("levellist")

	var names []string
	sc := bufio.NewScanner(r)
	for lineNo := 1; sc.Scan(); lineNo++ {
		name, err := firstField(sc.Text())
		if err != nil {
			log.Warn(ctx, "skipping malformed level list line",
				logger.Int("line", lineNo), logger.Error(err))
			continue
		}
		if name != "" {
			names = append(names, name)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	return names, nil
}

// ReadFile reads the level list at path.
func ReadFile(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	defer f.Close()
	return Read(ctx, f)
}

// Exists reports whether path names a readable regular file.
func Exists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// firstField returns the trimmed first CSV field of line.
func firstField(line string) (string, error) {
	if strings.TrimSpace(line) == "" {
		return "", nil
	}
	if !quoteClosed(strings.TrimLeft(line, " \t")) {
		return "", errUnclosedQuote
	}
	cr := csv.NewReader(strings.NewReader(line))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	record, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if len(record) == 0 {
		return "", nil
	}
	return strings.TrimSpace(record[0]), nil
}

// quoteClosed reports whether a field starting with '"' has its closing
// quote on the same line. Unquoted fields always report true.
func quoteClosed(field string) bool {
	if !strings.HasPrefix(field, `"`) {
		return true
	}
	for i := 1; i < len(field); i++ {
		if field[i] != '"' {
			continue
		}
		if i+1 < len(field) && field[i+1] == '"' {
			i++
			continue
		}
		return true
	}
	return false
}
