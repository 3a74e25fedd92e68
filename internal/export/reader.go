// Package export reads raw chat-export files into RawRecords. Two formats
// are supported: JSONL (one Slack-shaped record per line) and CSV (named
// columns, reactions as embedded JSON).
package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/MikeSquared-Agency/pythia/internal/normalize"
)

// DiscoverFiles walks dir and returns every .jsonl and .csv file found.
func DiscoverFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if info.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(info.Name())) {
		case ".jsonl", ".csv":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return files, nil
}

// ReadFile parses one export file into raw records. The second return value
// counts lines/rows that could not be parsed at all; those are skipped, not
// fatal. Field-level validation happens later in normalize.
func ReadFile(path string) ([]normalize.RawRecord, int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		return readJSONL(path)
	case ".csv":
		return readCSV(path)
	default:
		return nil, 0, fmt.Errorf("unsupported export format: %s", path)
	}
}

func readJSONL(path string) ([]normalize.RawRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var records []normalize.RawRecord
	skipped := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024) // 10MB line buffer
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec normalize.RawRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			skipped++
			continue
		}
		rec.SourceRef = fmt.Sprintf("%s:%d", path, lineNo)
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("scan: %w", err)
	}

	return records, skipped, nil
}

// csv columns, matched by header name: channel, thread, ts, user, text,
// reactions (JSON array, may be empty).
func readCSV(path string) ([]normalize.RawRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"channel", "ts", "user"} {
		if _, ok := cols[required]; !ok {
			return nil, 0, fmt.Errorf("csv %s: missing %q column", path, required)
		}
	}

	var records []normalize.RawRecord
	skipped := 0
	rowNo := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		rowNo++
		if err != nil {
			skipped++
			continue
		}

		rec := normalize.RawRecord{
			Channel:   field(row, cols, "channel"),
			Thread:    field(row, cols, "thread"),
			TS:        field(row, cols, "ts"),
			User:      field(row, cols, "user"),
			Text:      field(row, cols, "text"),
			SourceRef: fmt.Sprintf("%s:%d", path, rowNo),
		}
		if raw := field(row, cols, "reactions"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &rec.Reactions); err != nil {
				skipped++
				continue
			}
		}
		records = append(records, rec)
	}

	return records, skipped, nil
}

func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}
