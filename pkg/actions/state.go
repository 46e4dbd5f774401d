package actions

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/extensions"
	"github.com/Ramsey-B/bramble/pkg/marc"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/rawrepo"
	"github.com/Ramsey-B/bramble/pkg/vip"
)

// RecordStore is the record-graph surface actions mutate through.
type RecordStore interface {
	RecordExists(ctx context.Context, id models.RecordID) (bool, error)
	FetchRecord(ctx context.Context, id models.RecordID) (*rawrepo.StoredRecord, error)
	SaveRecord(ctx context.Context, rec *rawrepo.StoredRecord) error
	RemoveLinks(ctx context.Context, id models.RecordID) error
	SetParent(ctx context.Context, child, parent models.RecordID) error
	LinkEnrichment(ctx context.Context, enrichment, common models.RecordID) error
	LinkAuthority(ctx context.Context, from, to models.RecordID) error
	Children(ctx context.Context, id models.RecordID) ([]models.RecordID, error)
	Enrichments(ctx context.Context, id models.RecordID) ([]models.RecordID, error)
	AgenciesForRecord(ctx context.Context, bibliographicRecordID string) ([]int, error)
	Enqueue(ctx context.Context, id models.RecordID, provider string, priority int, deleted bool) error
}

// PermissionOracle answers agency capability questions. Failures
// propagate; a lookup error is never treated as permission granted.
type PermissionOracle interface {
	HasFeature(ctx context.Context, agencyID int, feature vip.Feature) (bool, error)
	IsAuthRootOrCB(ctx context.Context, agencyID int) (bool, error)
	GroupOf(ctx context.Context, agencyID int) (vip.LibraryGroup, error)
}

// HoldingsService reports which agencies hold copies of a record.
type HoldingsService interface {
	AgenciesWithHoldings(ctx context.Context, bibliographicRecordID string) (map[int]bool, error)
}

// Settings carries the queue-provider configuration an update runs
// under.
type Settings struct {
	ProviderDBC      string
	ProviderFBS      string
	ProviderPH       string
	ProviderOverride string
	Priority         int
}

// State is the shared context one update's action tree runs against.
// It is built once per update and never shared across updates.
type State struct {
	Store       RecordStore
	Permissions PermissionOracle
	Holdings    HoldingsService
	Extensions  *extensions.Handler
	Settings    Settings
	Logger      ectologger.Logger

	Record   *marc.Record
	AgencyID int

	// Now is swappable so tests can pin the stamp written into stored
	// records.
	Now func() time.Time
}

func (s *State) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// provider resolves the queue provider tag for an agency: the
// settings override wins, then the agency's library group picks
// between the configured tags.
func (s *State) provider(ctx context.Context, agencyID int) (string, error) {
	if s.Settings.ProviderOverride != "" {
		return s.Settings.ProviderOverride, nil
	}
	group, err := s.Permissions.GroupOf(ctx, agencyID)
	if err != nil {
		return "", err
	}
	switch group {
	case vip.GroupDBC:
		return s.Settings.ProviderDBC, nil
	case vip.GroupPH:
		return s.Settings.ProviderPH, nil
	default:
		return s.Settings.ProviderFBS, nil
	}
}
