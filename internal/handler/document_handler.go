package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/trainproof/trainproof/internal/pkg/response"
	"github.com/trainproof/trainproof/internal/service"
)

type DocumentHandler struct {
	documents *service.DocumentService
	indexer   *service.IndexerService
}

func NewDocumentHandler(documents *service.DocumentService, indexer *service.IndexerService) *DocumentHandler {
	return &DocumentHandler{documents: documents, indexer: indexer}
}

type createDocumentRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

func (h *DocumentHandler) Create(c *gin.Context) {
	var req createDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	doc, err := h.documents.Create(c.Request.Context(), req.Name, req.Text)
	if err != nil {
		handleError(c, err)
		return
	}
	// The full text is not echoed back.
	doc.Text = ""
	response.Success(c, doc)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	doc.Text = ""
	response.Success(c, doc)
}

// Text serves the archived original upload, the one place the full
// document body is exposed.
func (h *DocumentHandler) Text(c *gin.Context) {
	text, err := h.documents.ArchivedText(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"text": text})
}

func (h *DocumentHandler) Index(c *gin.Context) {
	status, err := h.indexer.StartIndexing(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"status": status})
}
