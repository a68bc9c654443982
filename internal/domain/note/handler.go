package note

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medisync/medisync/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleAnalyst))
	read.GET("/patients/:id/notes", h.ListPatientNotes)
	read.GET("/pillars", h.ListPillars)
	read.GET("/pillars/:pillar/patients", h.PatientsByPillar)

	write := api.Group("", auth.RequireRole(auth.RoleClinician))
	write.POST("/notes", h.CreateNote)
}

func (h *Handler) CreateNote(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	n, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) ListPatientNotes(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	notes, err := h.svc.ListByPatient(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, notes)
}

func (h *Handler) ListPillars(c echo.Context) error {
	tags, err := h.svc.ListPillars(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tags)
}

func (h *Handler) PatientsByPillar(c echo.Context) error {
	pillar := c.Param("pillar")
	// Params come from the decoded path unless the router matched on RawPath.
	if c.Request().URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(pillar); err == nil {
			pillar = unescaped
		}
	}
	patients, err := h.svc.PatientsByPillar(c.Request().Context(), pillar)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, patients)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
