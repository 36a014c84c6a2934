package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/trainproof/trainproof/internal/pkg/response"
	"github.com/trainproof/trainproof/internal/service"
)

type JobHandler struct {
	validation *service.ValidationService
}

func NewJobHandler(validation *service.ValidationService) *JobHandler {
	return &JobHandler{validation: validation}
}

type createJobRequest struct {
	Provider       string   `json:"provider"`
	Strategy       string   `json:"strategy"`
	DocumentType   string   `json:"document_type"`
	DocumentIDs    []string `json:"document_ids"`
	RequirementIDs []string `json:"requirement_ids"`
}

func (h *JobHandler) Create(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	job, err := h.validation.CreateJob(c.Request.Context(), service.CreateJobParams{
		Provider:       req.Provider,
		Strategy:       req.Strategy,
		DocumentType:   req.DocumentType,
		DocumentIDs:    req.DocumentIDs,
		RequirementIDs: req.RequirementIDs,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, job)
}

func (h *JobHandler) Validate(c *gin.Context) {
	if err := h.validation.StartValidation(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"status": "accepted"})
}

func (h *JobHandler) Cancel(c *gin.Context) {
	if err := h.validation.CancelJob(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"status": "accepted"})
}

func (h *JobHandler) Revalidate(c *gin.Context) {
	result, err := h.validation.RevalidateRequirement(c.Request.Context(), c.Param("id"), c.Param("rid"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *JobHandler) Status(c *gin.Context) {
	snap, err := h.validation.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, snap)
}

func (h *JobHandler) Results(c *gin.Context) {
	results, err := h.validation.Results(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, results)
}
