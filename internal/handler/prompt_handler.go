package handler

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/trainproof/trainproof/internal/model"
	"github.com/trainproof/trainproof/internal/pkg/response"
	"github.com/trainproof/trainproof/internal/service"
)

type PromptHandler struct {
	prompts *service.PromptService
}

func NewPromptHandler(prompts *service.PromptService) *PromptHandler {
	return &PromptHandler{prompts: prompts}
}

type publishPromptRequest struct {
	TaskType          string                 `json:"task_type"`
	RequirementType   string                 `json:"requirement_type"`
	DocumentType      string                 `json:"document_type"`
	SystemInstruction string                 `json:"system_instruction"`
	PromptText        string                 `json:"prompt_text"`
	OutputSchema      json.RawMessage        `json:"output_schema"`
	GenerationConfig  model.GenerationConfig `json:"generation_config"`
}

func (h *PromptHandler) Publish(c *gin.Context) {
	var req publishPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	saved, err := h.prompts.Publish(c.Request.Context(), &model.PromptTemplate{
		TaskType:          req.TaskType,
		RequirementType:   req.RequirementType,
		DocumentType:      req.DocumentType,
		SystemInstruction: req.SystemInstruction,
		PromptText:        req.PromptText,
		OutputSchema:      req.OutputSchema,
		GenerationConfig:  req.GenerationConfig,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, saved)
}

func (h *PromptHandler) List(c *gin.Context) {
	taskType := c.Query("task_type")
	requirementType := c.Query("requirement_type")
	documentType := c.Query("document_type")
	if taskType == "" {
		badRequest(c, "task_type is required")
		return
	}
	if requirementType == "" {
		requirementType = model.RequirementTypeAll
	}
	if documentType == "" {
		documentType = model.DocumentTypeBoth
	}
	items, err := h.prompts.ListVersions(c.Request.Context(), taskType, requirementType, documentType)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, items)
}
