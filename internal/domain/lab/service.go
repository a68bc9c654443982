package lab

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Column limits of the labs table. Result values are NUMERIC(10,2), so the
// rounded magnitude must stay below 10^8.
const (
	maxCodeLength  = 50
	maxNameLength  = 255
	maxUnitLength  = 20
	maxResultValue = 1e8
)

var (
	ErrInvalid         = errors.New("invalid lab")
	ErrPatientNotFound = errors.New("patient not found")
)

// PatientChecker is satisfied by *patient.Service.
type PatientChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Recorder receives a count of stored labs by abnormal flag.
type Recorder interface {
	RecordLabCreated(abnormal bool)
}

type Service struct {
	repo     Repository
	patients PatientChecker
	metrics  Recorder
	now      func() time.Time
}

func NewService(repo Repository, patients PatientChecker, metrics Recorder) *Service {
	return &Service{repo: repo, patients: patients, metrics: metrics, now: time.Now}
}

// Build validates req and produces the Lab to store. The abnormal flag is
// computed here once and never recomputed.
func (s *Service) Build(req CreateRequest) (*Lab, error) {
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrInvalid)
	}
	code := strings.TrimSpace(req.LabCode)
	name := strings.TrimSpace(req.LabName)
	if code == "" || name == "" {
		return nil, fmt.Errorf("%w: lab_code and lab_name are required", ErrInvalid)
	}
	if utf8.RuneCountInString(code) > maxCodeLength {
		return nil, fmt.Errorf("%w: lab_code must be at most %d characters", ErrInvalid, maxCodeLength)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, fmt.Errorf("%w: lab_name must be at most %d characters", ErrInvalid, maxNameLength)
	}
	if req.ResultUnit != nil && utf8.RuneCountInString(*req.ResultUnit) > maxUnitLength {
		return nil, fmt.Errorf("%w: result_unit must be at most %d characters", ErrInvalid, maxUnitLength)
	}

	collected := s.now().UTC()
	if req.CollectedAt != nil && !req.CollectedAt.IsZero() {
		collected = *req.CollectedAt
	}

	value := roundValue(req.ResultValue)
	if value != nil && (math.IsNaN(*value) || math.Abs(*value) >= maxResultValue) {
		return nil, fmt.Errorf("%w: result_value out of range", ErrInvalid)
	}
	return &Lab{
		PatientID:   req.PatientID,
		LabCode:     code,
		LabName:     name,
		ResultValue: value,
		ResultUnit:  req.ResultUnit,
		IsAbnormal:  IsAbnormal(value),
		CollectedAt: collected,
	}, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Lab, error) {
	l, err := s.Build(req)
	if err != nil {
		return nil, err
	}
	if err := s.requirePatient(ctx, l.PatientID); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordLabCreated(l.IsAbnormal)
	}
	return l, nil
}

// ListByPatient returns ErrPatientNotFound for an unknown patient and an
// empty slice for a known patient without labs.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Lab, error) {
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}
	labs, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if labs == nil {
		labs = []*Lab{}
	}
	return labs, nil
}

func (s *Service) requirePatient(ctx context.Context, id uuid.UUID) error {
	ok, err := s.patients.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPatientNotFound
	}
	return nil
}
