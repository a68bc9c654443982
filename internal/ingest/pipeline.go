package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/medisync/medisync/internal/domain/note"
	"github.com/medisync/medisync/internal/domain/patient"
)

const (
	KindPatient = "patient"
	KindNote    = "note"
)

// Skip reasons reported to metrics.
const (
	reasonMissingMRN = "missing_mrn"
	reasonUnknownMRN = "unknown_mrn"
	reasonMalformed  = "malformed"
	reasonInvalid    = "invalid"
)

// PatientStore is satisfied by *patient.Service.
type PatientStore interface {
	Upsert(ctx context.Context, p *patient.Patient) (bool, error)
	GetByMRN(ctx context.Context, mrn string) (*patient.Patient, error)
}

// NoteTagger is satisfied by *note.Service.
type NoteTagger interface {
	CreateAndTag(ctx context.Context, n *note.ClinicalNote) error
}

type Recorder interface {
	RecordProcessed(kind string)
	RecordSkipped(kind, reason string)
}

type Result struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	// Inserted counts patients that did not exist before the run.
	Inserted int `json:"inserted"`
}

// Pipeline runs records sequentially. Row problems are logged and skipped;
// storage failures abort the batch.
type Pipeline struct {
	patients PatientStore
	notes    NoteTagger
	metrics  Recorder
	logger   zerolog.Logger
}

func NewPipeline(patients PatientStore, notes NoteTagger, metrics Recorder, logger zerolog.Logger) *Pipeline {
	return &Pipeline{patients: patients, notes: notes, metrics: metrics, logger: logger}
}

func (p *Pipeline) skipped(res *Result, kind, reason string) {
	res.Skipped++
	if p.metrics != nil {
		p.metrics.RecordSkipped(kind, reason)
	}
}

func (p *Pipeline) processed(res *Result, kind string) {
	res.Processed++
	if p.metrics != nil {
		p.metrics.RecordProcessed(kind)
	}
}

// IngestPatients upserts records by MRN. Existing patients only have
// updated_at touched. A record without MRN is skipped; an unparseable dob
// aborts the batch.
func (p *Pipeline) IngestPatients(ctx context.Context, records []PatientRecord) (Result, error) {
	var res Result
	for _, rec := range records {
		if rec.MRN == "" {
			p.logger.Warn().Int("line", rec.Line).Msg("skipping patient row missing mrn")
			p.skipped(&res, KindPatient, reasonMissingMRN)
			continue
		}

		dob, err := patient.ParseDate(rec.DOB)
		if err != nil {
			return res, fmt.Errorf("patient %s (line %d): %w", rec.MRN, rec.Line, err)
		}

		pt := &patient.Patient{MRN: rec.MRN, FirstName: rec.FirstName, LastName: rec.LastName, DOB: dob}
		inserted, err := p.patients.Upsert(ctx, pt)
		if err != nil {
			return res, fmt.Errorf("patient %s (line %d): %w", rec.MRN, rec.Line, err)
		}
		if inserted {
			res.Inserted++
		}
		p.processed(&res, KindPatient)
	}

	p.logger.Info().
		Int("processed", res.Processed).
		Int("inserted", res.Inserted).
		Int("skipped", res.Skipped).
		Msg("patient ingestion complete")
	return res, nil
}

// IngestNotes stores and tags every note the source yields. Malformed
// records, records without content and notes for unknown MRNs are skipped.
func (p *Pipeline) IngestNotes(ctx context.Context, src NoteSource) (Result, error) {
	var res Result
	err := src.Each(ctx, func(ctx context.Context, raw []byte) error {
		var rec NoteRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			p.logger.Warn().Err(err).Msg("skipping malformed note record")
			p.skipped(&res, KindNote, reasonMalformed)
			return nil
		}
		return p.ingestNote(ctx, rec, &res)
	})
	if err != nil {
		return res, fmt.Errorf("ingest notes: %w", err)
	}

	p.logger.Info().
		Int("processed", res.Processed).
		Int("skipped", res.Skipped).
		Msg("note ingestion complete")
	return res, nil
}

func (p *Pipeline) ingestNote(ctx context.Context, rec NoteRecord, res *Result) error {
	if rec.MRN == "" {
		p.logger.Warn().Msg("skipping note missing mrn")
		p.skipped(res, KindNote, reasonMissingMRN)
		return nil
	}

	pt, err := p.patients.GetByMRN(ctx, rec.MRN)
	if errors.Is(err, patient.ErrNotFound) {
		p.logger.Warn().Str("mrn", rec.MRN).Msg("patient not found, skipping note")
		p.skipped(res, KindNote, reasonUnknownMRN)
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve mrn %s: %w", rec.MRN, err)
	}

	n := &note.ClinicalNote{PatientID: pt.ID, NoteType: rec.Kind(), Content: rec.Content}
	if err := p.notes.CreateAndTag(ctx, n); err != nil {
		if errors.Is(err, note.ErrInvalid) {
			p.logger.Warn().Err(err).Str("mrn", rec.MRN).Msg("skipping invalid note")
			p.skipped(res, KindNote, reasonInvalid)
			return nil
		}
		return fmt.Errorf("store note for %s: %w", rec.MRN, err)
	}

	p.logger.Debug().
		Str("mrn", rec.MRN).
		Str("note_id", n.ID.String()).
		Strs("tags", n.Tags).
		Msg("note tagged")
	p.processed(res, KindNote)
	return nil
}
