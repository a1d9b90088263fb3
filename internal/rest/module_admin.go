package rest

import (
	"context"
	"net/http"

	"furusatoReco/domain"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type ModuleService interface {
	EffectiveModules(ctx context.Context) []domain.JudgmentModule
	UpdateModule(ctx context.Context, m domain.JudgmentModule) error
}

type ModuleAdminHandler struct {
	validate *validator.Validate
	modules  ModuleService
}

func NewModuleAdminHandler(svc ModuleService) *ModuleAdminHandler {
	return &ModuleAdminHandler{
		validate: validator.New(),
		modules:  svc,
	}
}

// GET /api/v1/admin/modules
func (h *ModuleAdminHandler) List(c echo.Context) error {
	mods := h.modules.EffectiveModules(c.Request().Context())
	return c.JSON(http.StatusOK, fres.Response.StatusOK(mods))
}

// PUT /api/v1/admin/modules
// body: { "name": "price_fit", "enabled": true, "priority": 3, "weight": 0.2 }
func (h *ModuleAdminHandler) Upsert(c echo.Context) error {
	var body domain.JudgmentModule
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid body: " + err.Error(), Code: "bad_request"})
	}
	if err := h.validate.Struct(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error(), Code: "bad_request"})
	}

	if err := h.modules.UpdateModule(c.Request().Context(), body); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(h.modules.EffectiveModules(c.Request().Context())))
}
