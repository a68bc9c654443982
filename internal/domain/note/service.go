package note

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/medisync/medisync/internal/domain/patient"
)

// maxNoteTypeLength is the width of clinical_notes.note_type.
const maxNoteTypeLength = 50

var (
	ErrInvalid         = errors.New("invalid note")
	ErrPatientNotFound = errors.New("patient not found")
)

// PatientChecker is satisfied by *patient.Service.
type PatientChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Recorder counts newly attached pillar tags.
type Recorder interface {
	RecordNoteTag(pillar string)
}

type Service struct {
	repo     Repository
	patients PatientChecker
	metrics  Recorder
}

func NewService(repo Repository, patients PatientChecker, metrics Recorder) *Service {
	return &Service{repo: repo, patients: patients, metrics: metrics}
}

func Validate(n *ClinicalNote) error {
	n.NoteType = strings.TrimSpace(n.NoteType)
	if n.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrInvalid)
	}
	if n.NoteType == "" {
		return fmt.Errorf("%w: note_type is required", ErrInvalid)
	}
	if utf8.RuneCountInString(n.NoteType) > maxNoteTypeLength {
		return fmt.Errorf("%w: note_type must be at most %d characters", ErrInvalid, maxNoteTypeLength)
	}
	if strings.TrimSpace(n.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalid)
	}
	return nil
}

// Create stores a note for an existing patient and applies pillar tags.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*ClinicalNote, error) {
	n := &ClinicalNote{PatientID: req.PatientID, NoteType: req.NoteType, Content: req.Content}
	if err := Validate(n); err != nil {
		return nil, err
	}
	ok, err := s.patients.Exists(ctx, n.PatientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPatientNotFound
	}
	if err := s.CreateAndTag(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// CreateAndTag inserts n, derives its pillars from the content and links
// each one. Existing tags and links are reused, so repeating the workflow
// for the same note adds nothing.
func (s *Service) CreateAndTag(ctx context.Context, n *ClinicalNote) error {
	if err := Validate(n); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	return s.Tag(ctx, n)
}

// Tag attaches the pillars derived from n.Content to the stored note n.
func (s *Service) Tag(ctx context.Context, n *ClinicalNote) error {
	n.Tags = make([]string, 0, len(Rules))
	for _, pillar := range DeriveTags(n.Content) {
		tagID, err := s.repo.EnsureTag(ctx, pillar)
		if err != nil {
			return err
		}
		attached, err := s.repo.AttachTag(ctx, n.ID, tagID)
		if err != nil {
			return err
		}
		if attached && s.metrics != nil {
			s.metrics.RecordNoteTag(pillar)
		}
		n.Tags = append(n.Tags, pillar)
	}
	return nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ClinicalNote, error) {
	ok, err := s.patients.Exists(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPatientNotFound
	}
	notes, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []*ClinicalNote{}
	}
	return notes, nil
}

func (s *Service) ListPillars(ctx context.Context) ([]Tag, error) {
	tags, err := s.repo.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []Tag{}
	}
	return tags, nil
}

// PatientsByPillar looks patients up by exact pillar name, ignoring case.
// Unknown or blank pillars yield an empty list.
func (s *Service) PatientsByPillar(ctx context.Context, pillar string) ([]patient.Summary, error) {
	pillar = strings.TrimSpace(pillar)
	if pillar == "" {
		return []patient.Summary{}, nil
	}
	out, err := s.repo.PatientsByPillar(ctx, pillar)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []patient.Summary{}
	}
	return out, nil
}
