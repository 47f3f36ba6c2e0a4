package http

import (
	"net/http"

	"github.com/GriffinCanCode/cosmos-pty/internal/providers/terminal"
	"github.com/gin-gonic/gin"
)

// CodeInvalidRequest marks a body that failed to bind.
const CodeInvalidRequest = "InvalidRequest"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusFor maps a terminal error code to an HTTP status.
func StatusFor(code string) int {
	switch code {
	case terminal.CodeInvalidWorkingDirectory,
		terminal.CodeInvalidDimensions,
		terminal.CodeInvalidShellPath,
		terminal.CodeShellNotAllowed,
		terminal.CodeShellNotFound,
		terminal.CodeInvalidSessionID,
		CodeInvalidRequest:
		return http.StatusBadRequest
	case terminal.CodeSessionNotFound:
		return http.StatusNotFound
	case terminal.CodeSessionClosed:
		return http.StatusConflict
	case terminal.CodeTooManySessions:
		return http.StatusTooManyRequests
	case terminal.CodeSpawnUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	code := terminal.Code(err)
	c.JSON(StatusFor(code), ErrorResponse{Code: code, Message: err.Error()})
}

func respondBadRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Code: code, Message: message})
}
