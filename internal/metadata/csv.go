package metadata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// RowReader streams the data rows of a column-metadata CSV file one at a
// time, keyed by header column. It is single-pass: reading again means
// reopening the file. The underlying handle is released when iteration
// finishes or when the caller abandons it early via Close.
type RowReader struct {
	file   *os.File
	reader *csv.Reader
	header []string
	row    map[string]string
	err    error
}

// OpenColumnCSV opens a column-metadata CSV and consumes its header row.
func OpenColumnCSV(path string) (*RowReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transformation csv %q: %w", path, err)
	}

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read csv header from %q: %w", path, err)
	}

	return &RowReader{file: file, reader: reader, header: header}, nil
}

// Next advances to the next data row, returning false at end of input or
// on error. The file is closed as soon as iteration cannot continue.
func (r *RowReader) Next() bool {
	if r.file == nil {
		return false
	}
	record, err := r.reader.Read()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		r.Close()
		return false
	}

	row := make(map[string]string, len(r.header))
	for i, col := range r.header {
		if i < len(record) {
			row[col] = record[i]
		}
	}
	r.row = row
	return true
}

// Row returns the row read by the last successful call to Next.
func (r *RowReader) Row() map[string]string {
	return r.row
}

// Err reports any error other than reaching the end of the file.
func (r *RowReader) Err() error {
	return r.err
}

// Close releases the underlying file handle. Safe to call more than once.
func (r *RowReader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
