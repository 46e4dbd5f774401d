// Package record exposes the update endpoint: one POST carries one
// record and comes back with one aggregated outcome.
package record

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	bramblecontext "github.com/Ramsey-B/bramble/pkg/context"
	bramblerrors "github.com/Ramsey-B/bramble/pkg/errors"
	"github.com/Ramsey-B/bramble/pkg/marc"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/rawrepo"
	"github.com/Ramsey-B/bramble/pkg/update"
)

var validate = validator.New()

// Register registers the record update routes.
func Register(g *echo.Group) {
	g.POST("/updates", UpdateRecord)
	g.GET("/:agencyId/:bibliographicRecordId", GetRecord)
}

// UpdateRequest is the inbound update DTO.
type UpdateRequest struct {
	Record          *marc.Record `json:"record" validate:"required"`
	AgencyID        int          `json:"agencyId" validate:"required,min=1"`
	Template        string       `json:"template"`
	ValidateOnly    bool         `json:"validateOnly"`
	DoubleRecordKey string       `json:"doubleRecordKey"`
	Provider        string       `json:"provider"`
	Priority        int          `json:"priority" validate:"min=0"`
	TrackingID      string       `json:"trackingId"`
}

// UpdateResponse is the aggregated outcome of one update.
type UpdateResponse struct {
	Status          string                `json:"status"`
	Entries         []models.MessageEntry `json:"entries,omitempty"`
	DoubleRecordKey string                `json:"doubleRecordKey,omitempty"`
}

// UpdateRecord runs one record update end to end.
func UpdateRecord(c echo.Context) error {
	ctx := c.Request().Context()

	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "the request body could not be parsed")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.TrackingID != "" {
		ctx = bramblecontext.SetTrackingID(ctx, req.TrackingID)
	}

	ctx, updater, err := ectoinject.GetContext[*update.Updater](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := updater.Update(ctx, update.Request{
		Record:          req.Record,
		AgencyID:        req.AgencyID,
		Template:        req.Template,
		ValidateOnly:    req.ValidateOnly,
		DoubleRecordKey: req.DoubleRecordKey,
		Provider:        req.Provider,
		Priority:        req.Priority,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, UpdateResponse{
		Status:          string(result.Status),
		Entries:         result.Entries,
		DoubleRecordKey: result.DoubleRecordKey,
	})
}

// GetRecord fetches one stored record, tombstoned or not.
func GetRecord(c echo.Context) error {
	ctx := c.Request().Context()

	agencyID, err := strconv.Atoi(c.Param("agencyId"))
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "agencyId must be numeric")
	}
	id := models.NewRecordID(c.Param("bibliographicRecordId"), agencyID)

	ctx, store, err := ectoinject.GetContext[*rawrepo.Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	stored, err := store.FetchRecord(ctx, id)
	if err != nil {
		return err
	}
	record, err := marc.Decode(stored.Content)
	if err != nil {
		return bramblerrors.WrapFatal("stored record content is unreadable", err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"record":   record,
		"deleted":  stored.Deleted,
		"created":  stored.Created,
		"modified": stored.Modified,
	})
}
