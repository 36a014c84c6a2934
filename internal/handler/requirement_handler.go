package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/trainproof/trainproof/internal/pkg/response"
	"github.com/trainproof/trainproof/internal/service"
)

type RequirementHandler struct {
	requirements *service.RequirementService
}

func NewRequirementHandler(requirements *service.RequirementService) *RequirementHandler {
	return &RequirementHandler{requirements: requirements}
}

type createRequirementsRequest struct {
	Requirements []service.RequirementInput `json:"requirements"`
}

func (h *RequirementHandler) CreateBatch(c *gin.Context) {
	var req createRequirementsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	created, err := h.requirements.CreateBatch(c.Request.Context(), req.Requirements)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, created)
}

func (h *RequirementHandler) ListByUnit(c *gin.Context) {
	items, err := h.requirements.ListByUnit(c.Request.Context(), c.Query("unit_code"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, items)
}
