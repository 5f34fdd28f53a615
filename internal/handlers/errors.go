package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	jww "github.com/spf13/jwalterweatherman"
	"go.opentelemetry.io/otel/trace"

	"crewlink/internal/apperrors"
)

// writeError maps err onto the status of its code and the shared error body.
func writeError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	if code == apperrors.CodeInternal {
		traceID := trace.SpanContextFromContext(c.Request.Context()).TraceID()
		jww.ERROR.Printf("%s %s trace_id=%s: %v", c.Request.Method, c.FullPath(), traceID, err)
	}
	c.JSON(code.HTTPStatus(), gin.H{"error": apperrors.MessageOf(err), "code": code})
}

func badRequest(c *gin.Context, reason string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": reason, "code": apperrors.CodeInvalidArgument})
}
