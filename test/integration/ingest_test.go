package integration

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/medisync/medisync/internal/domain/note"
	"github.com/medisync/medisync/internal/domain/patient"
	"github.com/medisync/medisync/internal/ingest"
	"github.com/medisync/medisync/internal/platform/blobstore"
	"github.com/medisync/medisync/internal/platform/db"
)

func TestIngestSampleTwice(t *testing.T) {
	pool := newSchemaPool(t)
	ctx := context.Background()

	dir := blobstore.Location{Path: t.TempDir()}
	store := blobstore.New(blobstore.S3Config{})
	if _, err := ingest.WriteSamples(ctx, store, dir); err != nil {
		t.Fatalf("write samples: %v", err)
	}

	patients := patient.NewService(patient.NewRepo(pool))
	pipeline := ingest.NewPipeline(patients, note.NewService(note.NewRepo(pool), patients, nil), nil, zerolog.Nop())

	run := func() (ingest.Result, ingest.Result) {
		var pr, nr ingest.Result
		err := db.WithConn(ctx, pool, func(ctx context.Context) error {
			rc, err := store.Open(ctx, dir.Join(ingest.SamplePatientsFile).String())
			if err != nil {
				return err
			}
			defer rc.Close()
			records, err := ingest.ReadPatientsCSV(rc)
			if err != nil {
				return err
			}
			if pr, err = pipeline.IngestPatients(ctx, records); err != nil {
				return err
			}

			notes, err := store.Open(ctx, dir.Join(ingest.SampleNotesFile).String())
			if err != nil {
				return err
			}
			defer notes.Close()
			nr, err = pipeline.IngestNotes(ctx, ingest.NewJSONLinesSource(notes))
			return err
		})
		if err != nil {
			t.Fatalf("ingest: %v", err)
		}
		return pr, nr
	}

	pr, nr := run()
	if pr.Inserted != 3 || nr.Processed != 3 {
		t.Fatalf("first run: patients %+v notes %+v", pr, nr)
	}
	pr, _ = run()
	if pr.Inserted != 0 || pr.Processed != 3 {
		t.Errorf("second run should only update: %+v", pr)
	}

	if n := countRows(t, pool, "patients"); n != 3 {
		t.Errorf("expected 3 patients, got %d", n)
	}
	// Tags are shared; the second run adds notes but no new tags.
	if n := countRows(t, pool, "tags"); n != 3 {
		t.Errorf("expected 3 tags, got %d", n)
	}
	var updated int
	if err := pool.QueryRow(ctx, "SELECT count(*) FROM patients WHERE updated_at IS NOT NULL").Scan(&updated); err != nil {
		t.Fatal(err)
	}
	if updated != 3 {
		t.Errorf("expected updated_at set on all patients, got %d", updated)
	}
}

func TestIngestNotesSkipsUnknownMRN(t *testing.T) {
	pool := newSchemaPool(t)
	ctx := context.Background()

	patients := patient.NewService(patient.NewRepo(pool))
	pipeline := ingest.NewPipeline(patients, note.NewService(note.NewRepo(pool), patients, nil), nil, zerolog.Nop())

	input := `{"mrn":"MRN-404","note_type":"General","content":"urgent"}` + "\n"
	var res ingest.Result
	err := db.WithConn(ctx, pool, func(ctx context.Context) error {
		var err error
		res, err = pipeline.IngestNotes(ctx, ingest.NewJSONLinesSource(bytes.NewReader([]byte(input))))
		return err
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Skipped != 1 || res.Processed != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
	if n := countRows(t, pool, "clinical_notes"); n != 0 {
		t.Errorf("expected no notes, got %d", n)
	}
}
