package procedure

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/dental-api/internal/handler"
	"github.com/jwalitptl/dental-api/internal/model"
	"github.com/jwalitptl/dental-api/internal/service/procedure"
	"github.com/jwalitptl/dental-api/pkg/httputil"
)

type Handler struct {
	service procedure.ProcedureService
}

func NewHandler(service procedure.ProcedureService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	procedures := r.Group("/procedures")
	{
		procedures.POST("", h.CreateProcedure)
		procedures.GET("", h.ListProcedures)
		procedures.GET("/:id", h.GetProcedure)
		procedures.DELETE("/:id", h.DeleteProcedure)
		procedures.GET("/:id/breakdown", h.GetBreakdown)
	}
}

func (h *Handler) CreateProcedure(c *gin.Context) {
	var req model.CreateProcedureRequest
	if err := handler.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	proc, err := h.service.CreateProcedure(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, proc)
}

func (h *Handler) GetProcedure(c *gin.Context) {
	id, err := handler.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	proc, err := h.service.GetProcedure(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, proc)
}

// ListProcedures supports name (substring), patient_id and assistant query filters.
func (h *Handler) ListProcedures(c *gin.Context) {
	filter := &model.ProcedureFilter{Name: c.Query("name")}

	var err error
	if filter.PatientID, err = handler.QueryUUID(c, "patient_id"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if filter.AssistantUsed, err = handler.QueryBool(c, "assistant"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	procs, err := h.service.ListProcedures(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithList(c, procs)
}

func (h *Handler) DeleteProcedure(c *gin.Context) {
	id, err := handler.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.DeleteProcedure(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"message": "procedure deleted"})
}

// GetBreakdown returns the itemised calculation. With Accept: text/plain only
// the printable breakdown is written.
func (h *Handler) GetBreakdown(c *gin.Context) {
	id, err := handler.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	breakdown, err := h.service.GetBreakdown(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if c.NegotiateFormat(gin.MIMEJSON, gin.MIMEPlain) == gin.MIMEPlain {
		c.String(http.StatusOK, breakdown.Text)
		return
	}
	httputil.RespondWithSuccess(c, breakdown)
}
