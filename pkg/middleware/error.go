package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id"`
	Meta      map[string]any `json:"meta"`
}

// Error renders httperror and echo errors with their own status. Anything else is a 500
// whose cause is logged but not returned to the caller.
func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		ctx := c.Request().Context()
		code, body := describe(err)
		body.RequestID = context.GetRequestID(ctx)
		body.TraceID = tracing.GetTraceID(ctx)

		entry := logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"status":     code,
			"request_id": body.RequestID,
		})
		if code >= http.StatusInternalServerError {
			entry.Error("Request returned a server error")
		} else {
			entry.Debug("Request returned a client error")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func describe(err error) (int, ErrorResponse) {
	body := ErrorResponse{Message: http.StatusText(http.StatusInternalServerError), Meta: map[string]any{}}

	if httperror.IsHTTPError(err) {
		herr := httperror.ToHTTPError(err)
		body.Message = herr.Error()
		if herr.Meta != nil {
			body.Meta = herr.Meta
		}
		return httperror.GetStatusCode(err), body
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		body.Message = fmt.Sprint(echoErr.Message)
		return echoErr.Code, body
	}

	return http.StatusInternalServerError, body
}
