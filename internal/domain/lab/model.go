package lab

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// AbnormalThreshold is the result value above which a lab is flagged.
const AbnormalThreshold = 100.0

// IsAbnormal reports whether a result exceeds AbnormalThreshold. A missing
// result is never abnormal and exactly the threshold is not abnormal.
func IsAbnormal(value *float64) bool {
	return value != nil && *value > AbnormalThreshold
}

type Lab struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	LabCode     string    `json:"lab_code"`
	LabName     string    `json:"lab_name"`
	ResultValue *float64  `json:"result_value"`
	ResultUnit  *string   `json:"result_unit"`
	IsAbnormal  bool      `json:"is_abnormal"`
	CollectedAt time.Time `json:"collected_at"`
}

// CreateRequest is the POST /labs body. is_abnormal is derived, never read
// from the client.
type CreateRequest struct {
	PatientID   uuid.UUID  `json:"patient_id"`
	LabCode     string     `json:"lab_code"`
	LabName     string     `json:"lab_name"`
	ResultValue *float64   `json:"result_value"`
	ResultUnit  *string    `json:"result_unit"`
	CollectedAt *time.Time `json:"collected_at"`
}

// roundValue keeps two fractional digits to match NUMERIC(10,2).
func roundValue(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*100) / 100
	return &r
}
