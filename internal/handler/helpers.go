package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/trainproof/trainproof/internal/pkg/errcode"
	apperr "github.com/trainproof/trainproof/internal/pkg/errors"
	"github.com/trainproof/trainproof/internal/pkg/response"
)

// handleError maps service errors onto HTTP status and API code. The
// message keeps the rejection reason so trigger callers can tell a
// recoverable barrier from a dead job.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Warn("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case apperr.IsNotFound(err):
		response.Error(c, http.StatusNotFound, errcode.ErrNotFound, "not found")
	case errors.Is(err, apperr.ErrInvalid):
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, err.Error())
	case apperr.IsConflict(err):
		response.Error(c, http.StatusConflict, errcode.ErrConflict, err.Error())
	case errors.Is(err, apperr.ErrUnavailable):
		response.Error(c, http.StatusBadRequest, errcode.ErrProviderUnavailable, err.Error())
	case errors.Is(err, apperr.ErrJobNotFinalized):
		response.Error(c, http.StatusConflict, errcode.ErrJobNotFinalized, err.Error())
	case errors.Is(err, apperr.ErrJobPrerequisite):
		response.Error(c, http.StatusConflict, errcode.ErrJobRejected, err.Error())
	case errors.Is(err, apperr.ErrIndexingFailure):
		response.Error(c, http.StatusConflict, errcode.ErrDocumentNotIndexed, err.Error())
	case errors.Is(err, apperr.ErrTooMany), errors.Is(err, apperr.ErrRateLimited):
		response.Error(c, http.StatusTooManyRequests, errcode.ErrTooMany, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, errcode.ErrInternal, "internal error")
	}
}

func badRequest(c *gin.Context, message string) {
	response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, message)
}
