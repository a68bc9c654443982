package lab

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	labs []*Lab
}

func (m *mockRepo) Create(_ context.Context, l *Lab) error {
	l.ID = uuid.New()
	stored := *l
	m.labs = append(m.labs, &stored)
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Lab, error) {
	var out []*Lab
	for _, l := range m.labs {
		if l.PatientID == patientID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CollectedAt.After(out[j].CollectedAt) })
	return out, nil
}

type mockPatients map[uuid.UUID]bool

func (m mockPatients) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return m[id], nil
}

type countingRecorder struct{ abnormal, normal int }

func (r *countingRecorder) RecordLabCreated(abnormal bool) {
	if abnormal {
		r.abnormal++
	} else {
		r.normal++
	}
}

func float(v float64) *float64 { return &v }

func newTestService() (*Service, *mockRepo, uuid.UUID, *countingRecorder) {
	pid := uuid.New()
	repo := &mockRepo{}
	rec := &countingRecorder{}
	return NewService(repo, mockPatients{pid: true}, rec), repo, pid, rec
}

func TestIsAbnormal(t *testing.T) {
	tests := []struct {
		name  string
		value *float64
		want  bool
	}{
		{"absent", nil, false},
		{"zero", float(0), false},
		{"normal", float(99.99), false},
		{"threshold", float(100.0), false},
		{"just above", float(100.01), true},
		{"high", float(150.0), true},
		{"negative", float(-5), false},
	}
	for _, tt := range tests {
		if got := IsAbnormal(tt.value); got != tt.want {
			t.Errorf("%s: IsAbnormal = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCreate_DerivesAbnormalFlag(t *testing.T) {
	svc, _, pid, rec := newTestService()

	l, err := svc.Create(context.Background(), CreateRequest{PatientID: pid, LabCode: "GLU", LabName: "Glucose", ResultValue: float(150.0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !l.IsAbnormal {
		t.Error("expected 150.0 to be abnormal")
	}

	l, err = svc.Create(context.Background(), CreateRequest{PatientID: pid, LabCode: "GLU", LabName: "Glucose"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.IsAbnormal || l.ResultValue != nil {
		t.Error("expected lab without result to be normal")
	}
	if rec.abnormal != 1 || rec.normal != 1 {
		t.Errorf("unexpected recorder counts %+v", rec)
	}
}

func TestCreate_RoundsResultValue(t *testing.T) {
	svc, _, pid, _ := newTestService()
	l, err := svc.Create(context.Background(), CreateRequest{PatientID: pid, LabCode: "K", LabName: "Potassium", ResultValue: float(100.004)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *l.ResultValue != 100.0 || l.IsAbnormal {
		t.Errorf("expected rounded 100.00 and normal, got %v abnormal=%v", *l.ResultValue, l.IsAbnormal)
	}
}

func TestCreate_DefaultsCollectedAt(t *testing.T) {
	svc, _, pid, _ := newTestService()
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	l, _ := svc.Create(context.Background(), CreateRequest{PatientID: pid, LabCode: "A1C", LabName: "HbA1c"})
	if !l.CollectedAt.Equal(fixed) {
		t.Errorf("expected collected_at %v, got %v", fixed, l.CollectedAt)
	}

	given := fixed.Add(-48 * time.Hour)
	l, _ = svc.Create(context.Background(), CreateRequest{PatientID: pid, LabCode: "A1C", LabName: "HbA1c", CollectedAt: &given})
	if !l.CollectedAt.Equal(given) {
		t.Errorf("expected collected_at %v, got %v", given, l.CollectedAt)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, repo, pid, _ := newTestService()
	longUnit := strings.Repeat("u", 21)
	tests := []CreateRequest{
		{LabCode: "GLU", LabName: "Glucose"},
		{PatientID: pid, LabName: "Glucose"},
		{PatientID: pid, LabCode: "GLU", LabName: "  "},
		{PatientID: pid, LabCode: strings.Repeat("G", 51), LabName: "Glucose"},
		{PatientID: pid, LabCode: "GLU", LabName: strings.Repeat("n", 256)},
		{PatientID: pid, LabCode: "GLU", LabName: "Glucose", ResultUnit: &longUnit},
		{PatientID: pid, LabCode: "GLU", LabName: "Glucose", ResultValue: float(1e8)},
		{PatientID: pid, LabCode: "GLU", LabName: "Glucose", ResultValue: float(-123456789)},
		{PatientID: pid, LabCode: "GLU", LabName: "Glucose", ResultValue: float(99999999.999)},
	}
	for i, req := range tests {
		if _, err := svc.Create(context.Background(), req); !errors.Is(err, ErrInvalid) {
			t.Errorf("case %d: expected ErrInvalid, got %v", i, err)
		}
	}
	if len(repo.labs) != 0 {
		t.Error("invalid labs must not be stored")
	}
}

func TestCreate_LargestStorableValue(t *testing.T) {
	svc, _, pid, _ := newTestService()
	l, err := svc.Create(context.Background(), CreateRequest{PatientID: pid, LabCode: "GLU", LabName: "Glucose", ResultValue: float(-99999999.99)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *l.ResultValue != -99999999.99 {
		t.Errorf("expected value kept, got %v", *l.ResultValue)
	}
}

func TestCreate_UnknownPatient(t *testing.T) {
	svc, repo, _, _ := newTestService()
	_, err := svc.Create(context.Background(), CreateRequest{PatientID: uuid.New(), LabCode: "GLU", LabName: "Glucose"})
	if !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
	if len(repo.labs) != 0 {
		t.Error("lab for unknown patient must not be stored")
	}
}

func TestListByPatient_NewestFirst(t *testing.T) {
	svc, _, pid, _ := newTestService()
	ctx := context.Background()
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	for _, at := range []time.Time{t2, t1, t3} {
		at := at
		if _, err := svc.Create(ctx, CreateRequest{PatientID: pid, LabCode: "GLU", LabName: "Glucose", CollectedAt: &at}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	labs, err := svc.ListByPatient(ctx, pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Time{t3, t2, t1}
	if len(labs) != 3 {
		t.Fatalf("expected 3 labs, got %d", len(labs))
	}
	for i, l := range labs {
		if !l.CollectedAt.Equal(want[i]) {
			t.Errorf("lab %d: expected %v, got %v", i, want[i], l.CollectedAt)
		}
	}
}

func TestListByPatient_EmptyAndUnknown(t *testing.T) {
	svc, _, pid, _ := newTestService()

	labs, err := svc.ListByPatient(context.Background(), pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if labs == nil || len(labs) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", labs)
	}

	if _, err := svc.ListByPatient(context.Background(), uuid.New()); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("expected ErrPatientNotFound, got %v", err)
	}
}
