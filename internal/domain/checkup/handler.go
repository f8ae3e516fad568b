package checkup

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/envelope"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/checkups/available", h.FindAvailable)
	api.GET("/checkups/:id", h.GetCheckup)

	api.POST("/checkups", h.CreateSlot, auth.RequireRole(identity.RoleDoctor))
	api.POST("/checkups/:id/book", h.Book, auth.RequireRole(identity.RolePatient))
	api.POST("/checkups/:id/cancel", h.Cancel, auth.RequireRole(identity.RolePatient, identity.RoleDoctor, identity.RoleAdmin))
	api.GET("/checkups/patient", h.GetPatientCheckUps, auth.RequireRole(identity.RolePatient))
}

// failJSON maps domain errors onto the response envelope.
func failJSON(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrConflict):
		status = http.StatusConflict
	}
	return c.JSON(status, envelope.Fail[*Checkup](err.Error()))
}

type createSlotRequest struct {
	StartTime time.Time `json:"start_time"`
}

func (h *Handler) CreateSlot(c echo.Context) error {
	var req createSlotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	doctorID := auth.UserIDFromContext(c.Request().Context())
	slot, err := h.svc.CreateSlot(c.Request().Context(), doctorID, req.StartTime)
	if err != nil {
		return failJSON(c, err)
	}
	return c.JSON(http.StatusCreated, envelope.OK(slot))
}

func (h *Handler) FindAvailable(c echo.Context) error {
	q := AvailabilityQuery{Priority: c.QueryParam("priority")}

	if v := c.QueryParam("doctorId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctorId")
		}
		q.DoctorID = &id
	}

	var err error
	if q.From, err = time.Parse(time.RFC3339, c.QueryParam("start")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid start")
	}
	if q.To, err = time.Parse(time.RFC3339, c.QueryParam("end")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid end")
	}

	slots, err := h.svc.FindAvailable(c.Request().Context(), q)
	if err != nil {
		return failJSON(c, err)
	}
	if len(slots) == 0 {
		return c.JSON(http.StatusNotFound, envelope.Fail[[]*Checkup]("no available checkups"))
	}
	return c.JSON(http.StatusOK, envelope.OK(slots))
}

func (h *Handler) GetCheckup(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ch, err := h.svc.GetCheckup(c.Request().Context(), id)
	if err != nil {
		return failJSON(c, err)
	}
	return c.JSON(http.StatusOK, envelope.OK(ch))
}

func (h *Handler) Book(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	patientID := auth.UserIDFromContext(c.Request().Context())
	ch, err := h.svc.Book(c.Request().Context(), id, patientID)
	if err != nil {
		return failJSON(c, err)
	}
	return c.JSON(http.StatusOK, envelope.OK(ch))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	callerID := auth.UserIDFromContext(c.Request().Context())
	callerRole := auth.RoleFromContext(c.Request().Context())
	ch, err := h.svc.Cancel(c.Request().Context(), id, callerID, callerRole, req.Reason)
	if err != nil {
		return failJSON(c, err)
	}
	return c.JSON(http.StatusOK, envelope.OK(ch))
}

func (h *Handler) GetPatientCheckUps(c echo.Context) error {
	pg := pagination.FromContext(c)
	patientID := auth.UserIDFromContext(c.Request().Context())
	filter := c.QueryParam("filter")
	if filter == "" {
		filter = "upcoming"
	}
	items, total, err := h.svc.GetPatientCheckUps(c.Request().Context(), patientID, filter, pg.Limit, pg.Offset)
	if err != nil {
		return failJSON(c, err)
	}
	if total == 0 {
		return c.JSON(http.StatusNotFound, envelope.Fail[[]*Checkup]("no checkups for this patient"))
	}
	return c.JSON(http.StatusOK, envelope.OK(pagination.NewResponse(items, total, pg.Limit, pg.Offset)))
}
