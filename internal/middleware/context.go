package middleware

import (
	"github.com/Ramsey-B/fern/internal/context"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HeaderProject selects the project a request works on.
const HeaderProject = "X-Project"

// Context stores request metadata and the project on the request context.
// Requests without an X-Project header use defaultProject.
func Context(defaultProject string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			project := req.Header.Get(HeaderProject)
			if project == "" {
				project = defaultProject
			}

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			ctx = context.SetProject(ctx, project)

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
