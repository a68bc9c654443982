package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/medisync/medisync/internal/platform/blobstore"
)

const (
	SamplePatientsFile = "patients.csv"
	SampleNotesFile    = "notes.jsonl"
)

const samplePatientsCSV = `mrn,first_name,last_name,dob
MRN-001,Alice,Smith,1985-04-12
MRN-002,Bob,Jones,1990-06-23
MRN-003,Charlie,Day,1978-11-02
`

// SampleNotes are the demo notes written alongside the sample patients.
var SampleNotes = []NoteRecord{
	{MRN: "MRN-001", NoteType: "Intake", Content: "Patient reports history of Diabetes and frequent thirst."},
	{MRN: "MRN-002", NoteType: "Lab Report", Content: "URGENT: Blood pressure critical. Hypertension detected."},
	{MRN: "MRN-003", NoteType: "General", Content: "Routine checkup. No issues."},
}

// SampleWriter abstracts the blob store for sample generation.
type SampleWriter interface {
	Exists(ctx context.Context, loc blobstore.Location) (bool, error)
	Write(ctx context.Context, loc blobstore.Location, data []byte, contentType string) error
}

// WriteSamples writes the demo patients.csv and notes.jsonl under dir,
// leaving existing files alone. It returns the locations it created.
func WriteSamples(ctx context.Context, w SampleWriter, dir blobstore.Location) ([]blobstore.Location, error) {
	var notes bytes.Buffer
	enc := json.NewEncoder(&notes)
	for _, n := range SampleNotes {
		if err := enc.Encode(n); err != nil {
			return nil, fmt.Errorf("encode sample note: %w", err)
		}
	}

	files := []struct {
		name, contentType string
		data              []byte
	}{
		{SamplePatientsFile, "text/csv", []byte(samplePatientsCSV)},
		{SampleNotesFile, "application/x-ndjson", notes.Bytes()},
	}

	var created []blobstore.Location
	for _, f := range files {
		loc := dir.Join(f.name)
		exists, err := w.Exists(ctx, loc)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		if err := w.Write(ctx, loc, f.data, f.contentType); err != nil {
			return created, fmt.Errorf("write %s: %w", loc, err)
		}
		created = append(created, loc)
	}
	return created, nil
}
