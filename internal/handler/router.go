package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trainproof/trainproof/internal/middleware"
)

type RouterDeps struct {
	Documents    *DocumentHandler
	Requirements *RequirementHandler
	Prompts      *PromptHandler
	Jobs         *JobHandler

	// TriggerWindow throttles the trigger endpoints per (ip, path).
	// Zero disables the guard.
	TriggerWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/documents", deps.Documents.Create)
	api.GET("/documents/:id", deps.Documents.Get)
	api.GET("/documents/:id/text", deps.Documents.Text)

	api.POST("/requirements", deps.Requirements.CreateBatch)
	api.GET("/requirements", deps.Requirements.ListByUnit)

	api.POST("/prompts", deps.Prompts.Publish)
	api.GET("/prompts", deps.Prompts.List)

	api.POST("/jobs", deps.Jobs.Create)
	api.POST("/jobs/:id/cancel", deps.Jobs.Cancel)
	api.GET("/jobs/:id/status", deps.Jobs.Status)
	api.GET("/jobs/:id/results", deps.Jobs.Results)

	triggers := api.Group("")
	if deps.TriggerWindow > 0 {
		triggers.Use(middleware.RateLimit(deps.TriggerWindow))
	}
	triggers.POST("/documents/:id/index", deps.Documents.Index)
	triggers.POST("/jobs/:id/validate", deps.Jobs.Validate)
	triggers.POST("/jobs/:id/requirements/:rid/revalidate", deps.Jobs.Revalidate)
}
