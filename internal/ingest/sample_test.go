package ingest

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/medisync/medisync/internal/platform/blobstore"
)

type memWriter struct {
	files map[string][]byte
	err   error
}

func (m *memWriter) Exists(_ context.Context, loc blobstore.Location) (bool, error) {
	_, ok := m.files[loc.String()]
	return ok, nil
}

func (m *memWriter) Write(_ context.Context, loc blobstore.Location, data []byte, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.files[loc.String()] = data
	return nil
}

func TestWriteSamples(t *testing.T) {
	w := &memWriter{files: map[string][]byte{}}
	dir := blobstore.Location{Path: "/tmp/medisync"}

	created, err := WriteSamples(context.Background(), w, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 files, got %d", len(created))
	}

	// Samples must round-trip through the pipeline.
	p := NewPipeline(newFakePatients(), &fakeNotes{}, nil, zerolog.Nop())
	recs, err := ReadPatientsCSV(bytes.NewReader(w.files[dir.Join(SamplePatientsFile).String()]))
	if err != nil {
		t.Fatalf("read sample csv: %v", err)
	}
	if _, err := p.IngestPatients(context.Background(), recs); err != nil {
		t.Fatalf("ingest sample patients: %v", err)
	}
	res, err := p.IngestNotes(context.Background(),
		NewJSONLinesSource(bytes.NewReader(w.files[dir.Join(SampleNotesFile).String()])))
	if err != nil {
		t.Fatalf("ingest sample notes: %v", err)
	}
	if res.Processed != len(SampleNotes) || res.Skipped != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestWriteSamples_KeepsExisting(t *testing.T) {
	dir := blobstore.Location{Path: "/tmp/medisync"}
	existing := dir.Join(SamplePatientsFile).String()
	w := &memWriter{files: map[string][]byte{existing: []byte("mine")}}

	created, err := WriteSamples(context.Background(), w, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 1 || created[0].String() != dir.Join(SampleNotesFile).String() {
		t.Errorf("expected only notes file created, got %v", created)
	}
	if string(w.files[existing]) != "mine" {
		t.Error("existing file was overwritten")
	}
}

func TestWriteSamples_WriteError(t *testing.T) {
	w := &memWriter{files: map[string][]byte{}, err: errors.New("read-only")}
	if _, err := WriteSamples(context.Background(), w, blobstore.Location{Path: "/ro"}); !errors.Is(err, w.err) {
		t.Fatalf("expected write error, got %v", err)
	}
}
