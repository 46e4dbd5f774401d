// Package holdings talks to the holdings-items service, which knows
// which agencies keep physical or licensed copies of a record.
package holdings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Gobusters/ectologger"

	bramblerrors "github.com/Ramsey-B/bramble/pkg/errors"
	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// Config holds the connection settings for the holdings service.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client looks up which agencies hold a bibliographic record.
type Client struct {
	cfg    Config
	http   *http.Client
	logger ectologger.Logger
}

func NewClient(cfg Config, logger ectologger.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type holdingsResponse struct {
	Agencies []int `json:"agencies"`
}

// AgenciesWithHoldings returns the set of agencies that have holdings
// on the record. The set form makes membership checks cheap for
// callers that fan out over holdings agencies.
func (c *Client) AgenciesWithHoldings(ctx context.Context, bibliographicRecordID string) (map[int]bool, error) {
	ctx, span := tracing.StartSpan(ctx, "holdings.Client.AgenciesWithHoldings")
	defer span.End()
	start := time.Now()

	endpoint := fmt.Sprintf("%s/api/holdings-by-agency-id/%s", c.cfg.BaseURL, url.PathEscape(bibliographicRecordID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, bramblerrors.NewCollaboratorError("holdings", "agencies", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveCollaboratorCall("holdings", "agencies", "error", time.Since(start))
		return nil, bramblerrors.NewCollaboratorError("holdings", "agencies", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.ObserveCollaboratorCall("holdings", "agencies", "error", time.Since(start))
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, bramblerrors.NewCollaboratorError("holdings", "agencies", fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var payload holdingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		metrics.ObserveCollaboratorCall("holdings", "agencies", "error", time.Since(start))
		return nil, bramblerrors.NewCollaboratorError("holdings", "agencies", err)
	}

	metrics.ObserveCollaboratorCall("holdings", "agencies", "ok", time.Since(start))

	agencies := make(map[int]bool, len(payload.Agencies))
	for _, agency := range payload.Agencies {
		agencies[agency] = true
	}
	return agencies, nil
}
