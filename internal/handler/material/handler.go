package material

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/dental-api/internal/handler"
	"github.com/jwalitptl/dental-api/internal/model"
	"github.com/jwalitptl/dental-api/internal/service/material"
	"github.com/jwalitptl/dental-api/pkg/errors"
	"github.com/jwalitptl/dental-api/pkg/httputil"
)

type Handler struct {
	service material.MaterialService
}

func NewHandler(service material.MaterialService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	materials := r.Group("/materials")
	{
		materials.POST("", h.CreateMaterial)
		materials.GET("", h.ListMaterials)
		materials.GET("/:id", h.GetMaterial)
		materials.PUT("/:id", h.UpdateMaterial)
		materials.DELETE("/:id", h.DeleteMaterial)

		materials.PATCH("/:id/stock/add", h.AddStock)
		materials.PATCH("/:id/stock/remove", h.RemoveStock)
		materials.GET("/:id/stock/check", h.CheckStock)
	}
}

func (h *Handler) CreateMaterial(c *gin.Context) {
	var req model.MaterialRequest
	if err := handler.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	m, err := h.service.CreateMaterial(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, m)
}

func (h *Handler) GetMaterial(c *gin.Context) {
	id, err := handler.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	m, err := h.service.GetMaterial(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, m)
}

// ListMaterials supports name (substring), reusable, low_stock (quantity at
// or below) and min_stock (quantity above) query filters.
func (h *Handler) ListMaterials(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	materials, err := h.service.ListMaterials(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithList(c, materials)
}

func (h *Handler) UpdateMaterial(c *gin.Context) {
	id, err := handler.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.MaterialRequest
	if err := handler.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	m, err := h.service.UpdateMaterial(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, m)
}

func (h *Handler) DeleteMaterial(c *gin.Context) {
	id, err := handler.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.DeleteMaterial(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"message": "material deleted"})
}

func (h *Handler) AddStock(c *gin.Context) {
	h.adjustStock(c, h.service.AddStock)
}

func (h *Handler) RemoveStock(c *gin.Context) {
	h.adjustStock(c, h.service.RemoveStock)
}

func (h *Handler) CheckStock(c *gin.Context) {
	id, err := handler.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	amount, err := requireAmount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	check, err := h.service.CheckStock(c.Request.Context(), id, amount)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, check)
}

type stockFunc func(ctx context.Context, id uuid.UUID, amount int) (*model.Material, error)

func (h *Handler) adjustStock(c *gin.Context, fn stockFunc) {
	id, err := handler.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	amount, err := requireAmount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	m, err := fn(c.Request.Context(), id, amount)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, m)
}

func requireAmount(c *gin.Context) (int, error) {
	var req model.StockRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		return 0, errors.InvalidArgument("amount must be an integer")
	}
	if _, ok := c.GetQuery("amount"); !ok {
		return 0, errors.InvalidArgument("amount is required")
	}
	return req.Amount, nil
}

func parseFilter(c *gin.Context) (*model.MaterialFilter, error) {
	filter := &model.MaterialFilter{Name: c.Query("name")}

	var err error
	if filter.Reusable, err = handler.QueryBool(c, "reusable"); err != nil {
		return nil, err
	}
	if filter.MaxQuantity, err = handler.QueryInt(c, "low_stock"); err != nil {
		return nil, err
	}
	if filter.MinQuantity, err = handler.QueryInt(c, "min_stock"); err != nil {
		return nil, err
	}
	return filter, nil
}
