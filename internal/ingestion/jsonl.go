package ingestion

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/qanoonhub/lawrag/internal/corpus"
)

// Record is the persisted chunk artifact written between the chunking and
// embedding stages: one JSON object per line, UTF-8, arbitrary order. Other
// tooling depends on this shape.
type Record struct {
	ID         string              `json:"id"`
	Payload    corpus.ChunkPayload `json:"payload"`
	VectorText string              `json:"vector_text"`
}

// RecordWriter writes chunk records as JSONL.
type RecordWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewRecordWriter creates a RecordWriter over w.
func NewRecordWriter(w io.Writer) *RecordWriter {
	bw := bufio.NewWriter(w)
	return &RecordWriter{w: bw, enc: json.NewEncoder(bw)}
}

// Write appends one chunk as a JSON line.
func (rw *RecordWriter) Write(chunk Chunk) error {
	rec := Record{ID: chunk.ID, Payload: chunk.Payload, VectorText: chunk.VectorText}
	if err := rw.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to write chunk record: %w", err)
	}
	return nil
}

// Flush flushes buffered records to the underlying writer.
func (rw *RecordWriter) Flush() error {
	return rw.w.Flush()
}

// ReadRecords streams chunk records from a JSONL artifact, invoking fn for
// each. Blank lines are ignored; undecodable lines are counted as skipped and
// the stream continues. A non-nil error from fn stops the read.
func ReadRecords(r io.Reader, fn func(Record) error) (read, skipped int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			skipped++
			continue
		}

		read++
		if err := fn(rec); err != nil {
			return read, skipped, err
		}
	}

	if err := scanner.Err(); err != nil {
		return read, skipped, fmt.Errorf("failed to read chunk records: %w", err)
	}
	return read, skipped, nil
}
