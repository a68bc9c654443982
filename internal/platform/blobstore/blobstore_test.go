package blobstore

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		raw      string
		emptyKey bool
		want     Location
		wantErr  bool
	}{
		{raw: "s3://ingest/patients.csv", want: Location{Bucket: "ingest", Key: "patients.csv"}},
		{raw: "s3://ingest/2026/10/notes.jsonl", want: Location{Bucket: "ingest", Key: "2026/10/notes.jsonl"}},
		{raw: "s3://ingest", wantErr: true},
		{raw: "s3://ingest/", emptyKey: true, want: Location{Bucket: "ingest"}},
		{raw: "s3:///key", wantErr: true},
		{raw: "file:///data/patients.csv", want: Location{Path: "/data/patients.csv"}},
		{raw: "./data/patients.csv", want: Location{Path: "./data/patients.csv"}},
		{raw: "gs://bucket/key", wantErr: true},
		{raw: "  ", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseURI(tt.raw, tt.emptyKey)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseURI(%q): expected error, got %+v", tt.raw, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseURI(%q): unexpected error: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseURI(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
}

func TestLocation_Join(t *testing.T) {
	if got := (Location{Bucket: "b", Key: "samples/"}).Join("patients.csv"); got.String() != "s3://b/samples/patients.csv" {
		t.Errorf("unexpected s3 join: %s", got)
	}
	if got := (Location{Bucket: "b"}).Join("patients.csv"); got.String() != "s3://b/patients.csv" {
		t.Errorf("unexpected bucket-root join: %s", got)
	}
	if got := (Location{Path: "data"}).Join("notes.jsonl"); got.Path != filepath.Join("data", "notes.jsonl") {
		t.Errorf("unexpected path join: %s", got)
	}
}

func TestStore_LocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := New(S3Config{})
	loc := Location{Path: filepath.Join(t.TempDir(), "nested", "patients.csv")}

	exists, err := store.Exists(ctx, loc)
	if err != nil || exists {
		t.Fatalf("expected missing file, got exists=%v err=%v", exists, err)
	}

	if err := store.Write(ctx, loc, []byte("mrn,first_name\n"), "text/csv"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if exists, _ := store.Exists(ctx, loc); !exists {
		t.Fatal("expected file to exist after write")
	}

	rc, err := store.Open(ctx, loc.Path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "mrn,first_name\n" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestStore_OpenMissingLocalFile(t *testing.T) {
	_, err := New(S3Config{}).Open(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
