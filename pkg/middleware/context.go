package middleware

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/bramble/pkg/context"
)

const (
	// HeaderAgencyID carries the acting agency of the request
	HeaderAgencyID = "X-Agency-ID"
	// HeaderTrackingID ties an update to the caller's workflow system
	HeaderTrackingID = "X-Tracking-ID"
)

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			agencyID, _ := strconv.Atoi(req.Header.Get(HeaderAgencyID))

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			ctx = context.SetAgencyID(ctx, agencyID)
			ctx = context.SetTrackingID(ctx, req.Header.Get(HeaderTrackingID))

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
