package note

import (
	"time"

	"github.com/google/uuid"
)

type ClinicalNote struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	NoteType  string    `json:"note_type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	// Tags holds pillar names attached to the note.
	Tags []string `json:"tags"`
}

type Tag struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type CreateRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	NoteType  string    `json:"note_type"`
	Content   string    `json:"content"`
}
