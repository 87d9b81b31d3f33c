// Package export writes batches of records to timestamped CSV and JSON
// artifacts.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// TimestampLayout is YYYYMMDD_HHMMSS.
const TimestampLayout = "20060102_150405"

// Exporter writes artifacts named <Prefix>_<timestamp>.<ext> into Dir.
type Exporter struct {
	Dir    string
	Prefix string
	// Now defaults to time.Now
	Now func() time.Time
}

func (e Exporter) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Filename derives an artifact name from the prefix and the current time.
func (e Exporter) Filename(ext string) string {
	return fmt.Sprintf("%s_%s.%s", e.Prefix, e.now().Format(TimestampLayout), ext)
}

// Batch returns a copy of the exporter whose clock is frozen at the current
// time, so every artifact written through it shares one timestamp.
func (e Exporter) Batch() Exporter {
	t := e.now()
	e.Now = func() time.Time { return t }
	return e
}

func (e Exporter) path(filename, ext string) string {
	if filename == "" {
		filename = e.Filename(ext)
	}
	if filepath.IsAbs(filename) || e.Dir == "" {
		return filename
	}
	return filepath.Join(e.Dir, filename)
}

// Header is the sorted union of the keys of every row.
func Header(rows []map[string]string) []string {
	seen := map[string]struct{}{}
	for _, row := range rows {
		for k := range row {
			seen[k] = struct{}{}
		}
	}
	header := make([]string, 0, len(seen))
	for k := range seen {
		header = append(header, k)
	}
	sort.Strings(header)
	return header
}

// SaveCSV writes rows with a header computed from the batch, missing keys
// become empty cells. An empty batch writes nothing and returns "".
func (e Exporter) SaveCSV(ctx context.Context, rows []map[string]string, filename string) (string, error) {
	if len(rows) == 0 {
		slog.InfoContext(ctx, "no records to save", "format", "csv")
		return "", nil
	}

	path := e.path(filename, "csv")
	header := Header(rows)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	err = w.Write(header)
	if err != nil {
		return "", err
	}
	record := make([]string, len(header))
	for _, row := range rows {
		for i, k := range header {
			record[i] = row[k]
		}
		err = w.Write(record)
		if err != nil {
			return "", err
		}
	}
	w.Flush()
	err = w.Error()
	if err != nil {
		return "", err
	}
	err = f.Close()
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "data saved", "path", path, "records", len(rows))
	return path, nil
}

// SaveJSON writes the records unmodified as a pretty printed JSON array.
// An empty batch writes nothing and returns "".
func SaveJSON[T any](ctx context.Context, e Exporter, records []T, filename string) (string, error) {
	if len(records) == 0 {
		slog.InfoContext(ctx, "no records to save", "format", "json")
		return "", nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	err := enc.Encode(records)
	if err != nil {
		return "", err
	}
	data := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))

	path := e.path(filename, "json")
	err = os.WriteFile(path, data, 0644)
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "data saved", "path", path, "records", len(records))
	return path, nil
}

// Rows converts any record type with a Row method into CSV rows.
func Rows[T interface{ Row() map[string]string }](records []T) []map[string]string {
	rows := make([]map[string]string, len(records))
	for i, r := range records {
		rows[i] = r.Row()
	}
	return rows
}
