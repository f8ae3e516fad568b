package feedback

import (
	"errors"
	"net/http"
	"strconv"

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
	api.POST("/checkups/:id/feedback", h.AddFeedback, auth.RequireRole(identity.RolePatient))
	api.GET("/feedbacks", h.GetAllFeedbacks)
	api.GET("/feedbacks/:id", h.ShowFeedback)
	api.GET("/doctors/:id/grade", h.DoctorGrade)
}

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
	return c.JSON(status, envelope.Fail[*Feedback](err.Error()))
}

func (h *Handler) AddFeedback(c echo.Context) error {
	checkupID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in AddInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	in.CheckupID = checkupID

	patientID := auth.UserIDFromContext(c.Request().Context())
	f, err := h.svc.AddFeedback(c.Request().Context(), patientID, in)
	if err != nil {
		return failJSON(c, err)
	}
	return c.JSON(http.StatusCreated, envelope.OK(f))
}

func (h *Handler) GetAllFeedbacks(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.GetAllFeedbacks(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if total == 0 {
		return c.JSON(http.StatusNotFound, envelope.Fail[[]*Feedback]("no feedback recorded"))
	}
	return c.JSON(http.StatusOK, envelope.OK(pagination.NewResponse(items, total, pg.Limit, pg.Offset)))
}

func (h *Handler) ShowFeedback(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	// Only admins may reveal an incognito patient.
	reveal := c.QueryParam("reveal") == "true" &&
		auth.RoleFromContext(c.Request().Context()) == identity.RoleAdmin

	f, err := h.svc.ShowFeedback(c.Request().Context(), id, reveal)
	if err != nil {
		return failJSON(c, err)
	}
	return c.JSON(http.StatusOK, envelope.OK(f))
}

type doctorGradeResponse struct {
	DoctorID int64   `json:"doctor_id"`
	Grade    float64 `json:"grade"`
	Count    int     `json:"count"`
}

func (h *Handler) DoctorGrade(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	mean, count, err := h.svc.DoctorGrade(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, envelope.Fail[*doctorGradeResponse]("no feedback for this doctor"))
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, envelope.OK(&doctorGradeResponse{DoctorID: id, Grade: mean, Count: count}))
}
