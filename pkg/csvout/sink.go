package csvout

import (
	"encoding/csv"
	"fmt"
	"os"

	"shopexport/pkg/format"
)

// Sink is an append-capable CSV writer with a fixed column schema. It is
// opened once per run and reused across writes; the header row is emitted
// exactly once, and only when the file is fresh, so appending to the
// output of an interrupted run never duplicates it. Rows are flushed
// after every Append so the file stays valid mid-run.
type Sink struct {
	file    *os.File
	writer  *csv.Writer
	columns []string
	path    string
	lines   int
}

// Open opens (or creates) the sink at path. When the file already exists
// and is non-empty the sink appends without re-emitting the header.
func Open(path string, columns []string) (*Sink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat output file: %w", err)
	}

	sink := &Sink{
		file:    file,
		writer:  csv.NewWriter(file),
		columns: columns,
		path:    path,
	}

	if info.Size() == 0 {
		if err := sink.writer.Write(columns); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write header row: %w", err)
		}
		sink.writer.Flush()
		if err := sink.writer.Error(); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to flush header row: %w", err)
		}
	}

	return sink, nil
}

// Append writes the rows in order. Short rows are padded with empty
// strings so every record matches the column schema.
func (s *Sink) Append(rows []format.Row) error {
	for _, row := range rows {
		record := make([]string, len(s.columns))
		copy(record, row)
		if err := s.writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		s.lines++
	}

	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush rows: %w", err)
	}
	return nil
}

// Lines returns the number of data rows written through this sink.
func (s *Sink) Lines() int {
	return s.lines
}

// Path returns the output file path.
func (s *Sink) Path() string {
	return s.path
}

// Close flushes and closes the underlying file.
func (s *Sink) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return s.file.Close()
}
