package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maxviazov/experiment-service/internal/model"
	"github.com/maxviazov/experiment-service/internal/pagination"
	"github.com/maxviazov/experiment-service/internal/service"
	"github.com/maxviazov/experiment-service/pkg/response"
)

type ExperimentHandler struct {
	svc service.ExperimentService
}

func NewExperimentHandler(svc service.ExperimentService) *ExperimentHandler {
	return &ExperimentHandler{svc: svc}
}

func (h *ExperimentHandler) Register(r *gin.RouterGroup) {
	g := r.Group("/experiment")
	{
		g.POST("", h.create)
		g.GET("", h.list)
		g.GET("/:id", h.getByID)
		g.PATCH("/:id/status", h.updateStatus)
		g.DELETE("/:id", h.delete)
	}
}

func (h *ExperimentHandler) create(c *gin.Context) {
	var req service.CreateExperimentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteError(c, service.ErrInvalidInput) // parse details stay internal
		return
	}
	exp, err := h.svc.CreateExperiment(c.Request.Context(), req)
	if err != nil {
		response.WriteError(c, err)
		return
	}
	response.WriteData(c, http.StatusCreated, exp)
}

type listQuery struct {
	pagination.Request
	Status    string `form:"status"`
	Namespace string `form:"namespace"`
	Name      string `form:"name"`
}

// list serves GET /experiment?pageNum=&pageSize=&status=&namespace=&name=.
// Missing or non-positive paging values fall back to defaults in the service.
func (h *ExperimentHandler) list(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.WriteError(c, service.ErrInvalidInput)
		return
	}
	filter := model.ListFilter{Status: q.Status, Namespace: q.Namespace, Name: q.Name}
	res, err := h.svc.ListExperiments(c.Request.Context(), filter, q.Request)
	if err != nil {
		response.WriteError(c, err)
		return
	}
	response.WritePage(c, http.StatusOK, pagination.Map(res, newExperimentView))
}

// experimentView is a list row: the experiment plus how long it ran once finished.
type experimentView struct {
	model.Experiment
	Duration string `json:"duration,omitempty"`
}

func newExperimentView(e model.Experiment) experimentView {
	v := experimentView{Experiment: e}
	finished := e.Status == model.StatusSucceeded || e.Status == model.StatusFailed
	if finished && !e.CreatedAt.IsZero() && e.UpdatedAt.After(e.CreatedAt) {
		v.Duration = e.UpdatedAt.Sub(e.CreatedAt).Round(time.Second).String()
	}
	return v
}

func (h *ExperimentHandler) getByID(c *gin.Context) {
	exp, err := h.svc.GetExperiment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.WriteError(c, err)
		return
	}
	response.WriteData(c, http.StatusOK, exp)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *ExperimentHandler) updateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Status) == "" {
		response.WriteError(c, service.ErrInvalidInput)
		return
	}
	exp, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		response.WriteError(c, err)
		return
	}
	response.WriteData(c, http.StatusOK, exp)
}

func (h *ExperimentHandler) delete(c *gin.Context) {
	if err := h.svc.DeleteExperiment(c.Request.Context(), c.Param("id")); err != nil {
		response.WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
