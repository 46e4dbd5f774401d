// Package rules talks to the record-rules service that validates
// records and screens new shared records for duplicates.
package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"

	bramblerrors "github.com/Ramsey-B/bramble/pkg/errors"
	"github.com/Ramsey-B/bramble/pkg/marc"
	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// Config holds the connection settings for the rules service.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client evaluates validation rules against records.
type Client struct {
	cfg    Config
	http   *http.Client
	logger ectologger.Logger
}

func NewClient(cfg Config, logger ectologger.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type validateRequest struct {
	AgencyID int          `json:"agencyId"`
	Template string       `json:"template"`
	Record   *marc.Record `json:"record"`
}

type validateResponse struct {
	Entries []models.MessageEntry `json:"entries"`
}

// Validate runs the agency's validation template over the record and
// returns whatever entries the rules produce. An empty slice means
// the record passed; error entries mean it failed.
func (c *Client) Validate(ctx context.Context, agencyID int, template string, record *marc.Record) ([]models.MessageEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "rules.Client.Validate")
	defer span.End()

	payload := validateRequest{AgencyID: agencyID, Template: template, Record: record}
	var resp validateResponse
	if err := c.post(ctx, "validate", "/api/v1/validate", payload, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

type doubleRecordRequest struct {
	Record *marc.Record `json:"record"`
}

type doubleRecordResponse struct {
	Matches []DoubleRecordMatch `json:"matches"`
}

// DoubleRecordMatch is a stored record that looks like a duplicate of
// an incoming one.
type DoubleRecordMatch struct {
	BibliographicRecordID string `json:"bibliographicRecordId"`
	AgencyID              int    `json:"agencyId"`
	Reason                string `json:"reason"`
}

// CheckDoubleRecord asks the rules service whether the record is a
// likely duplicate of an existing shared record. Matches do not block
// an update by themselves; the caller decides what a match means.
func (c *Client) CheckDoubleRecord(ctx context.Context, record *marc.Record) ([]DoubleRecordMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "rules.Client.CheckDoubleRecord")
	defer span.End()

	var resp doubleRecordResponse
	if err := c.post(ctx, "doublerecord", "/api/v1/doublerecord/check", doubleRecordRequest{Record: record}, &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

func (c *Client) post(ctx context.Context, op, path string, payload any, out any) error {
	start := time.Now()

	body, err := json.Marshal(payload)
	if err != nil {
		return bramblerrors.NewCollaboratorError("rules", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return bramblerrors.NewCollaboratorError("rules", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveCollaboratorCall("rules", op, "error", time.Since(start))
		return bramblerrors.NewCollaboratorError("rules", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.ObserveCollaboratorCall("rules", op, "error", time.Since(start))
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return bramblerrors.NewCollaboratorError("rules", op, fmt.Errorf("status %d: %s", resp.StatusCode, string(errBody)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.ObserveCollaboratorCall("rules", op, "error", time.Since(start))
		return bramblerrors.NewCollaboratorError("rules", op, err)
	}

	metrics.ObserveCollaboratorCall("rules", op, "ok", time.Since(start))
	return nil
}
