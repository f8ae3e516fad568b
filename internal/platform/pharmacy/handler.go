package pharmacy

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/envelope"
)

// Handler proxies medicine lookups and prescription hand-off. Pharmacy
// failures surface as 400 responses with success=false envelopes, never
// as hard faults.
type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/pharmacy/medicine", h.LookupMedicine, auth.RequireRole("doctor", "admin"))
	api.POST("/pharmacy/recipe", h.PostRecipe, auth.RequireRole("doctor"))
}

func (h *Handler) LookupMedicine(c echo.Context) error {
	name := c.QueryParam("name")
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	quantity := 1
	if v := c.QueryParam("quantity"); v != "" {
		q, err := strconv.Atoi(v)
		if err != nil || q < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid quantity")
		}
		quantity = q
	}

	med, err := h.client.LookupMedicine(c.Request().Context(), name, quantity)
	if err != nil {
		return c.JSON(http.StatusBadRequest, envelope.Fail[*Medicine]("pharmacy unavailable: "+err.Error()))
	}
	if !med.Supplies {
		msg := med.ErrorMsg
		if msg == "" {
			msg = fmt.Sprintf("pharmacy cannot supply %d of %s", quantity, name)
		}
		return c.JSON(http.StatusBadRequest, envelope.Fail[*Medicine](msg))
	}
	return c.JSON(http.StatusOK, envelope.OK(med))
}

type recipeRequest struct {
	DoctorName string `json:"doctor_name"`
	Medicine   string `json:"medicine"`
	Therapy    string `json:"therapy"`
	Quantity   int    `json:"quantity"`
}

// PostRecipe verifies the pharmacy can supply the medicine before
// handing the prescription off.
func (h *Handler) PostRecipe(c echo.Context) error {
	var req recipeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Medicine == "" || req.DoctorName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_name and medicine are required")
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	ctx := c.Request().Context()
	med, err := h.client.LookupMedicine(ctx, req.Medicine, req.Quantity)
	if err != nil {
		return c.JSON(http.StatusBadRequest, envelope.Fail[*Recipe]("pharmacy unavailable: "+err.Error()))
	}
	if !med.Supplies {
		msg := med.ErrorMsg
		if msg == "" {
			msg = fmt.Sprintf("pharmacy cannot supply %d of %s", req.Quantity, req.Medicine)
		}
		return c.JSON(http.StatusBadRequest, envelope.Fail[*Recipe](msg))
	}

	recipe := Recipe{DoctorName: req.DoctorName, Medicine: req.Medicine, Therapy: req.Therapy}
	if err := h.client.PostRecipe(ctx, recipe); err != nil {
		return c.JSON(http.StatusBadRequest, envelope.Fail[*Recipe]("prescription hand-off failed: "+err.Error()))
	}
	return c.JSON(http.StatusCreated, envelope.OK(&recipe))
}
