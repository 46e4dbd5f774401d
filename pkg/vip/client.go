// Package vip talks to the library-rules service that knows which
// agencies may do what.
package vip

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"

	bramblerrors "github.com/Ramsey-B/bramble/pkg/errors"
	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/Ramsey-B/bramble/pkg/redis"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// Feature names a library rule an agency may or may not have.
type Feature string

const (
	FeatureAuthRoot            Feature = "auth_root"
	FeatureAuthCentralBureau   Feature = "auth_cb"
	FeatureCommonNotes         Feature = "auth_common_notes"
	FeatureCommonSubjects      Feature = "auth_common_subjects"
	FeatureAddDK5ToPhd         Feature = "auth_add_dk5_to_phd_allowed"
	FeatureCreateCommonRecord  Feature = "auth_create_common_record"
	FeatureExportHoldings      Feature = "auth_export_holdings"
	FeatureUseEnrichments      Feature = "use_enrichments"
	FeatureAuthCommonAgencyIDs Feature = "auth_agency_common_record"
)

// LibraryGroup is the coarse classification of an agency used for
// provider-tag resolution.
type LibraryGroup string

const (
	GroupDBC LibraryGroup = "dbc"
	GroupFBS LibraryGroup = "fbs"
	GroupPH  LibraryGroup = "ph"
)

// Config holds the connection settings for the rules service.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Client looks up agency permissions. Lookups are cached in redis for
// CacheTTL; a nil cache disables caching. Failures are never treated
// as permission granted.
type Client struct {
	cfg    Config
	http   *http.Client
	cache  *redis.Client
	logger ectologger.Logger
}

func NewClient(cfg Config, cache *redis.Client, logger ectologger.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		cache:  cache,
		logger: logger,
	}
}

type libraryRules struct {
	AgencyID     int             `json:"agencyId"`
	LibraryGroup string          `json:"libraryGroup"`
	Rules        map[string]bool `json:"rules"`
}

// HasFeature reports whether the agency has the given rule enabled.
func (c *Client) HasFeature(ctx context.Context, agencyID int, feature Feature) (bool, error) {
	rules, err := c.rulesFor(ctx, agencyID)
	if err != nil {
		return false, err
	}
	return rules.Rules[string(feature)], nil
}

// IsAuthRootOrCB reports whether the agency is a root authority or a
// central bureau. Those agencies may touch catalog codes on shared
// records.
func (c *Client) IsAuthRootOrCB(ctx context.Context, agencyID int) (bool, error) {
	rules, err := c.rulesFor(ctx, agencyID)
	if err != nil {
		return false, err
	}
	return rules.Rules[string(FeatureAuthRoot)] || rules.Rules[string(FeatureAuthCentralBureau)], nil
}

// GroupOf returns the library group of the agency.
func (c *Client) GroupOf(ctx context.Context, agencyID int) (LibraryGroup, error) {
	rules, err := c.rulesFor(ctx, agencyID)
	if err != nil {
		return "", err
	}
	return LibraryGroup(rules.LibraryGroup), nil
}

func (c *Client) rulesFor(ctx context.Context, agencyID int) (*libraryRules, error) {
	ctx, span := tracing.StartSpan(ctx, "vip.Client.rulesFor")
	defer span.End()

	cacheKey := fmt.Sprintf("vip:rules:%d", agencyID)
	if c.cache != nil {
		cached, err := c.cache.Get(ctx, cacheKey)
		if err == nil {
			var rules libraryRules
			if jsonErr := json.Unmarshal([]byte(cached), &rules); jsonErr == nil {
				return &rules, nil
			}
		} else if !redis.IsNotFound(err) {
			c.logger.WithContext(ctx).WithError(err).Warnf("vip cache read failed for agency %d", agencyID)
		}
	}

	rules, err := c.fetchRules(ctx, agencyID)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if payload, jsonErr := json.Marshal(rules); jsonErr == nil {
			if cacheErr := c.cache.Set(ctx, cacheKey, payload, c.cfg.CacheTTL); cacheErr != nil {
				c.logger.WithContext(ctx).WithError(cacheErr).Warnf("vip cache write failed for agency %d", agencyID)
			}
		}
	}

	return rules, nil
}

func (c *Client) fetchRules(ctx context.Context, agencyID int) (*libraryRules, error) {
	start := time.Now()

	url := fmt.Sprintf("%s/api/libraryrules/%d", c.cfg.BaseURL, agencyID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, bramblerrors.NewCollaboratorError("vip", "libraryrules", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveCollaboratorCall("vip", "libraryrules", "error", time.Since(start))
		return nil, bramblerrors.NewCollaboratorError("vip", "libraryrules", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.ObserveCollaboratorCall("vip", "libraryrules", "error", time.Since(start))
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, bramblerrors.NewCollaboratorError("vip", "libraryrules", fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var rules libraryRules
	if err := json.NewDecoder(resp.Body).Decode(&rules); err != nil {
		metrics.ObserveCollaboratorCall("vip", "libraryrules", "error", time.Since(start))
		return nil, bramblerrors.NewCollaboratorError("vip", "libraryrules", err)
	}

	metrics.ObserveCollaboratorCall("vip", "libraryrules", "ok", time.Since(start))
	return &rules, nil
}
