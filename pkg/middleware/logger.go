package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/context"
)

// quietRoutes are probed constantly and only logged when they fail
var quietRoutes = map[string]bool{
	"/metrics":             true,
	"/api/v1/health":       true,
	"/api/v1/health/live":  true,
	"/api/v1/health/ready": true,
}

// Logger writes one entry per request. 5xx responses log at error, 4xx at warn.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)

			req := c.Request()
			res := c.Response()
			if quietRoutes[c.Path()] && res.Status < http.StatusBadRequest {
				return nil
			}

			entry := logger.WithContext(req.Context()).WithFields(map[string]any{
				"request_id":    context.GetRequestID(req.Context()),
				"method":        req.Method,
				"uri":           req.RequestURI,
				"route":         c.Path(),
				"status":        res.Status,
				"remote_ip":     c.RealIP(),
				"user_agent":    req.UserAgent(),
				"response_time": elapsed.String(),
				"request_size":  req.Header.Get(echo.HeaderContentLength),
				"response_size": strconv.FormatInt(res.Size, 10),
			})

			switch {
			case res.Status >= http.StatusInternalServerError:
				entry.Error("Request failed")
			case res.Status >= http.StatusBadRequest:
				entry.Warn("Request rejected")
			default:
				entry.Info("Request")
			}
			return nil
		}
	}
}
