// Package doublerecord exposes the duplicate screening used by
// cataloging frontends before they submit a new shared record.
package doublerecord

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/bramble/pkg/marc"
	"github.com/Ramsey-B/bramble/pkg/rules"
)

// Register registers the double-record routes.
func Register(g *echo.Group) {
	g.POST("/check", Check)
}

// CheckRequest carries the record to screen.
type CheckRequest struct {
	Record *marc.Record `json:"record"`
}

// CheckResponse lists the likely duplicates, if any.
type CheckResponse struct {
	Matches []rules.DoubleRecordMatch `json:"matches"`
}

// Check screens a record against the stored shared records without
// touching the graph.
func Check(c echo.Context) error {
	ctx := c.Request().Context()

	var req CheckRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "the request body could not be parsed")
	}
	if req.Record == nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "no record in request")
	}

	ctx, client, err := ectoinject.GetContext[*rules.Client](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	matches, err := client.CheckDoubleRecord(ctx, req.Record)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CheckResponse{Matches: matches})
}
