// Package update orchestrates one record update end to end: validate,
// classify, screen for duplicates, build the action tree and run it.
package update

import (
	"context"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/actions"
	bramblerrors "github.com/Ramsey-B/bramble/pkg/errors"
	"github.com/Ramsey-B/bramble/pkg/extensions"
	"github.com/Ramsey-B/bramble/pkg/marc"
	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/rules"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// RuleEvaluator is the slice of the rules service the updater needs.
type RuleEvaluator interface {
	Validate(ctx context.Context, agencyID int, template string, record *marc.Record) ([]models.MessageEntry, error)
	CheckDoubleRecord(ctx context.Context, record *marc.Record) ([]rules.DoubleRecordMatch, error)
}

// KeyStore issues and consumes the one-time keys that let a caller
// push a record past a double-record warning.
type KeyStore interface {
	IssueKey(ctx context.Context) (string, error)
	ConsumeIfValid(ctx context.Context, key string) (bool, error)
}

// Request is one update as the transport layer hands it over.
type Request struct {
	Record          *marc.Record
	AgencyID        int
	Template        string
	ValidateOnly    bool
	DoubleRecordKey string
	Provider        string
	Priority        int
}

// Updater runs updates against the record graph. One Updater serves
// many concurrent updates; per-update state lives in the action tree.
type Updater struct {
	store       actions.RecordStore
	permissions actions.PermissionOracle
	holdings    actions.HoldingsService
	rules       RuleEvaluator
	keys        KeyStore
	extensions  *extensions.Handler
	engine      *actions.Engine
	settings    actions.Settings
	logger      ectologger.Logger
}

func NewUpdater(
	store actions.RecordStore,
	permissions actions.PermissionOracle,
	holdings actions.HoldingsService,
	ruleEvaluator RuleEvaluator,
	keys KeyStore,
	extensionsHandler *extensions.Handler,
	settings actions.Settings,
	logger ectologger.Logger,
) *Updater {
	return &Updater{
		store:       store,
		permissions: permissions,
		holdings:    holdings,
		rules:       ruleEvaluator,
		keys:        keys,
		extensions:  extensionsHandler,
		engine:      actions.NewEngine(logger),
		settings:    settings,
		logger:      logger,
	}
}

// Update processes one request and returns the aggregated outcome.
// Structural and fatal faults surface as errors; everything the caller
// can act on comes back inside the result.
func (u *Updater) Update(ctx context.Context, req Request) (*actions.Result, error) {
	ctx, span := tracing.StartSpan(ctx, "update.Updater.Update")
	defer span.End()
	start := time.Now()

	kind, result, err := u.update(ctx, req)
	status := "error"
	if result != nil {
		status = string(result.Status)
	}
	metrics.UpdatesTotal.WithLabelValues(kind.String(), status).Inc()
	metrics.UpdateDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
	return result, err
}

func (u *Updater) update(ctx context.Context, req Request) (models.Kind, *actions.Result, error) {
	if req.Record == nil {
		return models.KindLocal, nil, bramblerrors.NewValidationError("no record in request")
	}
	reader := marc.NewReader(req.Record)
	recordAgency, err := reader.AgencyID()
	if err != nil {
		return models.KindLocal, nil, bramblerrors.NewValidationErrorf("record has no readable agency id: %v", err).AddField("001")
	}
	if reader.RecordID() == "" {
		return models.KindLocal, nil, bramblerrors.NewValidationError("record has no id").AddField("001").AddSubField("a")
	}

	kind, err := u.classify(ctx, req.Record, recordAgency)
	if err != nil {
		return kind, nil, err
	}

	log := u.logger.WithContext(ctx).WithFields(map[string]any{
		"record": reader.RecordID(),
		"agency": recordAgency,
		"kind":   kind.String(),
	})
	log.Infof("processing update")

	entries, err := u.rules.Validate(ctx, req.AgencyID, req.Template, req.Record)
	if err != nil {
		return kind, nil, err
	}
	if hasErrorEntry(entries) {
		return kind, actions.NewFailedValidationResult(entries...), nil
	}
	if req.ValidateOnly {
		return kind, actions.NewValidateOnlyResult(entries...), nil
	}

	doubleRecordResult, err := u.screenDoubleRecord(ctx, req, kind, recordAgency)
	if err != nil {
		return kind, nil, err
	}
	if doubleRecordResult != nil {
		doubleRecordResult.Entries = append(entries, doubleRecordResult.Entries...)
		return kind, doubleRecordResult, nil
	}

	state := &actions.State{
		Store:       u.store,
		Permissions: u.permissions,
		Holdings:    u.holdings,
		Extensions:  u.extensions,
		Settings:    u.settingsFor(req),
		Logger:      u.logger,
		Record:      req.Record,
		AgencyID:    req.AgencyID,
	}

	result, err := u.engine.Run(ctx, u.rootAction(state, kind, recordAgency))
	if err != nil {
		return kind, nil, err
	}
	result.Entries = append(entries, result.Entries...)
	return kind, result, nil
}

func (u *Updater) classify(ctx context.Context, record *marc.Record, agencyID int) (models.Kind, error) {
	reader := marc.NewReader(record)
	hasParent := reader.ParentID() != ""

	commonExists := false
	if !models.IsCommonAgency(agencyID) {
		// school libraries layer onto the shared school description
		// when one exists, so it counts as a shared record too
		shared := []models.RecordID{models.NewRecordID(reader.RecordID(), models.CommonAgency)}
		if models.IsSchoolAgency(agencyID) {
			shared = append(shared, models.NewRecordID(reader.RecordID(), models.SchoolCommonAgency))
		}
		for _, id := range shared {
			exists, err := u.store.RecordExists(ctx, id)
			if err != nil {
				return models.KindLocal, err
			}
			if exists {
				commonExists = true
				break
			}
		}
	}
	return models.Classify(agencyID, reader.TypeCode(), hasParent, commonExists), nil
}

// screenDoubleRecord guards creation of new shared records: a likely
// duplicate fails validation and carries a one-time key; presenting
// the key in a retry within its lifetime waves the record through.
func (u *Updater) screenDoubleRecord(ctx context.Context, req Request, kind models.Kind, recordAgency int) (*actions.Result, error) {
	if kind != models.KindCommon || marc.NewReader(req.Record).MarkedForDeletion() {
		return nil, nil
	}
	exists, err := u.store.RecordExists(ctx, models.NewRecordID(marc.NewReader(req.Record).RecordID(), recordAgency))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	if req.DoubleRecordKey != "" {
		valid, err := u.keys.ConsumeIfValid(ctx, req.DoubleRecordKey)
		if err != nil {
			return nil, err
		}
		if !valid {
			metrics.DoubleRecordKeysTotal.WithLabelValues("rejected").Inc()
			return actions.NewFailedValidationResult(models.NewErrorEntry("the double record key is expired or unknown")), nil
		}
		metrics.DoubleRecordKeysTotal.WithLabelValues("consumed").Inc()
		return nil, nil
	}

	matches, err := u.rules.CheckDoubleRecord(ctx, req.Record)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	key, err := u.keys.IssueKey(ctx)
	if err != nil {
		return nil, err
	}
	metrics.DoubleRecordKeysTotal.WithLabelValues("issued").Inc()

	result := actions.NewFailedValidationResult()
	result.DoubleRecordKey = key
	for _, match := range matches {
		entry := models.NewErrorEntry("the record looks like a duplicate of an existing record: " + match.Reason)
		entry.RecordID = match.BibliographicRecordID
		entry.AgencyID = match.AgencyID
		result.Append(entry)
	}
	return result, nil
}

func (u *Updater) settingsFor(req Request) actions.Settings {
	settings := u.settings
	if req.Provider != "" {
		settings.ProviderOverride = req.Provider
	}
	if req.Priority != 0 {
		settings.Priority = req.Priority
	}
	return settings
}

func (u *Updater) rootAction(state *actions.State, kind models.Kind, recordAgency int) actions.Action {
	switch kind {
	case models.KindCommon, models.KindVolume:
		if recordAgency == models.SchoolCommonAgency {
			return actions.NewUpdateSchoolCommonRecordAction(state, state.Record)
		}
		return actions.NewUpdateCommonRecordAction(state, state.Record, kind)
	case models.KindEnrichment:
		return actions.NewUpdateEnrichmentRecordAction(state, state.Record)
	default:
		return actions.NewUpdateLocalRecordAction(state, state.Record)
	}
}

func hasErrorEntry(entries []models.MessageEntry) bool {
	return len(ectolinq.Filter(entries, func(entry models.MessageEntry) bool {
		return entry.Type == models.EntryError
	})) > 0
}
