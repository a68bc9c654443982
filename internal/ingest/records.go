// Package ingest loads patients and clinical notes in batch: patients from a
// CSV upsert keyed by MRN, notes from JSON records that are resolved to
// patients, stored and tagged with clinical pillars.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/medisync/medisync/internal/platform/stream"
)

type PatientRecord struct {
	Line      int
	MRN       string
	FirstName string
	LastName  string
	DOB       string
}

// NoteRecord is one note to ingest. Older producers send the category as
// "type", which is accepted in place of "note_type".
type NoteRecord struct {
	MRN      string `json:"mrn"`
	NoteType string `json:"note_type,omitempty"`
	Type     string `json:"type,omitempty"`
	Content  string `json:"content"`
}

// Kind returns the note category from either field.
func (r NoteRecord) Kind() string {
	if s := strings.TrimSpace(r.NoteType); s != "" {
		return s
	}
	return strings.TrimSpace(r.Type)
}

var patientColumns = []string{"mrn", "first_name", "last_name", "dob"}

// ReadPatientsCSV parses a CSV with a header row. Columns are located by
// header name, so order does not matter and extra columns are ignored.
func ReadPatientsCSV(r io.Reader) ([]PatientRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("patient csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		index[name] = i
	}
	for _, col := range patientColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("patient csv is missing column %q", col)
		}
	}

	field := func(row []string, col string) string {
		i := index[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []PatientRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		line, _ := cr.FieldPos(0)
		records = append(records, PatientRecord{
			Line:      line,
			MRN:       field(row, "mrn"),
			FirstName: field(row, "first_name"),
			LastName:  field(row, "last_name"),
			DOB:       field(row, "dob"),
		})
	}
	return records, nil
}

// NoteSource yields raw JSON note records to fn in order. An error from fn
// stops the source.
type NoteSource interface {
	Each(ctx context.Context, fn func(ctx context.Context, raw []byte) error) error
}

// JSONLinesSource reads one JSON object per line. Blank lines are ignored.
type JSONLinesSource struct {
	r io.Reader
}

func NewJSONLinesSource(r io.Reader) *JSONLinesSource {
	return &JSONLinesSource{r: r}
}

const maxLineBytes = 1 << 20

func (s *JSONLinesSource) Each(ctx context.Context, fn func(ctx context.Context, raw []byte) error) error {
	sc := bufio.NewScanner(s.r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		if err := fn(ctx, raw); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read notes: %w", err)
	}
	return nil
}

// KafkaSource drains a bounded run of messages from the notes topic.
type KafkaSource struct {
	reader *stream.NoteReader
}

func NewKafkaSource(reader *stream.NoteReader) *KafkaSource {
	return &KafkaSource{reader: reader}
}

func (s *KafkaSource) Each(ctx context.Context, fn func(ctx context.Context, raw []byte) error) error {
	_, err := s.reader.Consume(ctx, fn)
	return err
}
