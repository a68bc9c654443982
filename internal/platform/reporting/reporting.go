// Package reporting serves fixed aggregate measures over the clinical tables
// for analysts.
package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medisync/medisync/internal/platform/auth"
	"github.com/medisync/medisync/internal/platform/db"
)

// Measure is a named aggregate query. The SQL is never exposed to clients.
type Measure struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SQL         string `json:"-"`
}

type Report struct {
	MeasureID   string           `json:"measure_id"`
	MeasureName string           `json:"measure_name"`
	GeneratedAt time.Time        `json:"generated_at"`
	Results     []map[string]any `json:"results"`
}

var Measures = []Measure{
	{
		ID:          "patient-count",
		Name:        "Patient Count",
		Description: "Total number of patients",
		SQL:         `SELECT COUNT(*) AS total FROM patients`,
	},
	{
		ID:          "abnormal-labs-by-code",
		Name:        "Abnormal Labs by Code",
		Description: "Lab results per lab code with the number flagged abnormal",
		SQL: `SELECT lab_code, COUNT(*) AS total, COUNT(*) FILTER (WHERE is_abnormal) AS abnormal
FROM labs GROUP BY lab_code ORDER BY lab_code`,
	},
	{
		ID:          "patients-by-pillar",
		Name:        "Patients by Pillar",
		Description: "Distinct patients with at least one note tagged with each pillar",
		SQL: `SELECT t.name AS pillar, COUNT(DISTINCT n.patient_id) AS patients
FROM tags t
LEFT JOIN note_tags nt ON nt.tag_id = t.id
LEFT JOIN clinical_notes n ON n.id = nt.note_id
GROUP BY t.name ORDER BY t.name`,
	},
	{
		ID:          "notes-by-type",
		Name:        "Notes by Type",
		Description: "Clinical notes grouped by note type",
		SQL:         `SELECT note_type, COUNT(*) AS total FROM clinical_notes GROUP BY note_type ORDER BY total DESC, note_type`,
	},
}

func FindMeasure(id string) *Measure {
	for i := range Measures {
		if Measures[i].ID == id {
			return &Measures[i]
		}
	}
	return nil
}

type Handler struct {
	pool db.Querier
	now  func() time.Time
}

func NewHandler(pool db.Querier) *Handler {
	return &Handler{pool: pool, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports", auth.RequireRole(auth.RoleAnalyst))
	g.GET("/measures", h.ListMeasures)
	g.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, Measures)
}

func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	results, err := h.query(c.Request().Context(), measure.SQL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").
			SetInternal(fmt.Errorf("evaluate %s: %w", measure.ID, err))
	}

	return c.JSON(http.StatusOK, Report{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: h.now().UTC(),
		Results:     results,
	})
}

// query returns each row as a column-name map.
func (h *Handler) query(ctx context.Context, sql string) ([]map[string]any, error) {
	rows, err := db.From(ctx, h.pool).Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	results := []map[string]any{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
