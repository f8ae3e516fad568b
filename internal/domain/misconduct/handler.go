package misconduct

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
	adminGroup := api.Group("/users", auth.RequireRole(identity.RoleAdmin))
	adminGroup.GET("/malicious", h.GetMaliciousUsers)
	adminGroup.GET("/blocked", h.GetBlockedUsers)
	adminGroup.PUT("/:id/status", h.ChangeUserStatus)
}

func (h *Handler) GetMaliciousUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	users, total, err := h.svc.GetMaliciousUsers(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, envelope.OK(pagination.NewResponse(users, total, pg.Limit, pg.Offset)))
}

func (h *Handler) GetBlockedUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	users, total, err := h.svc.GetBlockedUsers(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, envelope.OK(pagination.NewResponse(users, total, pg.Limit, pg.Offset)))
}

type changeStatusRequest struct {
	Status int `json:"status"`
}

func (h *Handler) ChangeUserStatus(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req changeStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	u, err := h.svc.ChangeUserStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return c.JSON(http.StatusNotFound, envelope.Fail[*identity.User]("user not found"))
		}
		return c.JSON(http.StatusBadRequest, envelope.Fail[*identity.User](err.Error()))
	}
	return c.JSON(http.StatusOK, envelope.OK(u))
}
