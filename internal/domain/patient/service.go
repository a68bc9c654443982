package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MinMRNLength is the shortest accepted medical record number.
const MinMRNLength = 3

// Column widths of the patients table, counted in characters.
const (
	MaxMRNLength  = 50
	MaxNameLength = 100
)

var (
	ErrNotFound     = errors.New("patient not found")
	ErrDuplicateMRN = errors.New("patient with this MRN already exists")
	ErrInvalid      = errors.New("invalid patient")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Validate normalises req and converts it to a Patient without touching
// storage.
func Validate(req CreateRequest) (*Patient, error) {
	mrn := strings.TrimSpace(req.MRN)
	if len(mrn) < MinMRNLength {
		return nil, fmt.Errorf("%w: mrn must be at least %d characters", ErrInvalid, MinMRNLength)
	}
	if utf8.RuneCountInString(mrn) > MaxMRNLength {
		return nil, fmt.Errorf("%w: mrn must be at most %d characters", ErrInvalid, MaxMRNLength)
	}
	first := strings.TrimSpace(req.FirstName)
	last := strings.TrimSpace(req.LastName)
	if first == "" || last == "" {
		return nil, fmt.Errorf("%w: first_name and last_name are required", ErrInvalid)
	}
	if utf8.RuneCountInString(first) > MaxNameLength || utf8.RuneCountInString(last) > MaxNameLength {
		return nil, fmt.Errorf("%w: names must be at most %d characters", ErrInvalid, MaxNameLength)
	}
	if strings.TrimSpace(req.DOB) == "" {
		return nil, fmt.Errorf("%w: dob is required", ErrInvalid)
	}
	dob, err := ParseDate(req.DOB)
	if err != nil {
		return nil, fmt.Errorf("%w: dob: %v", ErrInvalid, err)
	}
	return &Patient{MRN: mrn, FirstName: first, LastName: last, DOB: dob}, nil
}

// Create rejects a known MRN with ErrDuplicateMRN. A concurrent insert that
// slips past the lookup is caught by the unique constraint in the repository.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Patient, error) {
	p, err := Validate(req)
	if err != nil {
		return nil, err
	}

	_, err = s.repo.GetByMRN(ctx, p.MRN)
	switch {
	case err == nil:
		return nil, ErrDuplicateMRN
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Upsert stores an ingested patient keyed by MRN. Existing rows keep their
// names and date of birth.
func (s *Service) Upsert(ctx context.Context, p *Patient) (bool, error) {
	p.MRN = strings.TrimSpace(p.MRN)
	if p.MRN == "" {
		return false, fmt.Errorf("%w: mrn is required", ErrInvalid)
	}
	if utf8.RuneCountInString(p.MRN) > MaxMRNLength {
		return false, fmt.Errorf("%w: mrn must be at most %d characters", ErrInvalid, MaxMRNLength)
	}
	return s.repo.Upsert(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByMRN(ctx context.Context, mrn string) (*Patient, error) {
	return s.repo.GetByMRN(ctx, strings.TrimSpace(mrn))
}

func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.Exists(ctx, id)
}

// Delete removes the patient together with its labs, notes and note tags.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
