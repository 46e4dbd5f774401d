package update

import (
	"context"
	"strconv"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/bramble/pkg/actions"
	bramblerrors "github.com/Ramsey-B/bramble/pkg/errors"
	"github.com/Ramsey-B/bramble/pkg/extensions"
	"github.com/Ramsey-B/bramble/pkg/marc"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/rawrepo"
	"github.com/Ramsey-B/bramble/pkg/rules"
	"github.com/Ramsey-B/bramble/pkg/vip"
)

type fakeStore struct {
	records  map[models.RecordID]*rawrepo.StoredRecord
	enqueues []models.RecordID
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[models.RecordID]*rawrepo.StoredRecord{}}
}

func (s *fakeStore) RecordExists(_ context.Context, id models.RecordID) (bool, error) {
	_, ok := s.records[id]
	return ok, nil
}

func (s *fakeStore) FetchRecord(_ context.Context, id models.RecordID) (*rawrepo.StoredRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return nil, bramblerrors.NewNotFoundError(id.BibliographicRecordID, id.AgencyID)
	}
	return rec, nil
}

func (s *fakeStore) SaveRecord(_ context.Context, rec *rawrepo.StoredRecord) error {
	s.records[rec.ID] = rec
	return nil
}

func (s *fakeStore) RemoveLinks(_ context.Context, _ models.RecordID) error { return nil }

func (s *fakeStore) SetParent(_ context.Context, _, _ models.RecordID) error { return nil }

func (s *fakeStore) LinkEnrichment(_ context.Context, _, _ models.RecordID) error { return nil }

func (s *fakeStore) LinkAuthority(_ context.Context, _, _ models.RecordID) error { return nil }

func (s *fakeStore) Children(_ context.Context, _ models.RecordID) ([]models.RecordID, error) {
	return nil, nil
}

func (s *fakeStore) Enrichments(_ context.Context, _ models.RecordID) ([]models.RecordID, error) {
	return nil, nil
}

func (s *fakeStore) AgenciesForRecord(_ context.Context, _ string) ([]int, error) {
	return nil, nil
}

func (s *fakeStore) Enqueue(_ context.Context, id models.RecordID, _ string, _ int, _ bool) error {
	s.enqueues = append(s.enqueues, id)
	return nil
}

type fakePermissions struct{}

func (fakePermissions) HasFeature(_ context.Context, _ int, _ vip.Feature) (bool, error) {
	return false, nil
}

func (fakePermissions) IsAuthRootOrCB(_ context.Context, _ int) (bool, error) { return false, nil }

func (fakePermissions) GroupOf(_ context.Context, _ int) (vip.LibraryGroup, error) {
	return vip.GroupFBS, nil
}

type fakeHoldings struct{}

func (fakeHoldings) AgenciesWithHoldings(_ context.Context, _ string) (map[int]bool, error) {
	return nil, nil
}

type fakeRules struct {
	entries []models.MessageEntry
	matches []rules.DoubleRecordMatch
}

func (r *fakeRules) Validate(_ context.Context, _ int, _ string, _ *marc.Record) ([]models.MessageEntry, error) {
	return r.entries, nil
}

func (r *fakeRules) CheckDoubleRecord(_ context.Context, _ *marc.Record) ([]rules.DoubleRecordMatch, error) {
	return r.matches, nil
}

type fakeKeys struct {
	issued   string
	valid    map[string]bool
	consumed []string
}

func (k *fakeKeys) IssueKey(_ context.Context) (string, error) {
	return k.issued, nil
}

func (k *fakeKeys) ConsumeIfValid(_ context.Context, key string) (bool, error) {
	k.consumed = append(k.consumed, key)
	return k.valid[key], nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestUpdater(store *fakeStore, ruleEvaluator *fakeRules, keys *fakeKeys) *Updater {
	logger := testLogger()
	if ruleEvaluator == nil {
		ruleEvaluator = &fakeRules{}
	}
	if keys == nil {
		keys = &fakeKeys{valid: map[string]bool{}}
	}
	permissions := fakePermissions{}
	return NewUpdater(
		store,
		permissions,
		fakeHoldings{},
		ruleEvaluator,
		keys,
		extensions.NewHandler(permissions, logger),
		actions.Settings{ProviderDBC: "dbc-queue", ProviderFBS: "fbs-queue", ProviderPH: "ph-queue", Priority: 500},
		logger,
	)
}

func newTestRecord(bibID string, agencyID int) *marc.Record {
	record := &marc.Record{}
	writer := marc.NewWriter(record)
	writer.AddSubField("001", "a", bibID)
	writer.AddSubField("001", "b", strconv.Itoa(agencyID))
	writer.AddSubField("004", "r", "n")
	writer.AddSubField("004", "a", "e")
	writer.AddSubField("245", "a", "en titel")
	return record
}

func TestUpdateCreatesNewCommonRecord(t *testing.T) {
	store := newFakeStore()
	updater := newTestUpdater(store, nil, nil)

	result, err := updater.Update(context.Background(), Request{
		Record:   newTestRecord("11111111", models.CommonAgency),
		AgencyID: models.CommonAgency,
		Template: "dbc",
	})
	require.NoError(t, err)

	assert.Equal(t, actions.StatusOK, result.Status)
	assert.Contains(t, store.records, models.NewRecordID("11111111", models.CommonAgency))
	assert.NotEmpty(t, store.enqueues)
}

func TestUpdateValidateOnlyStopsBeforeMutation(t *testing.T) {
	store := newFakeStore()
	updater := newTestUpdater(store, nil, nil)

	result, err := updater.Update(context.Background(), Request{
		Record:       newTestRecord("11111111", models.CommonAgency),
		AgencyID:     models.CommonAgency,
		ValidateOnly: true,
	})
	require.NoError(t, err)

	assert.Equal(t, actions.StatusValidateOnly, result.Status)
	assert.Empty(t, store.records)
}

func TestUpdateFailsValidationOnRuleErrors(t *testing.T) {
	store := newFakeStore()
	ruleEvaluator := &fakeRules{entries: []models.MessageEntry{models.NewErrorEntry("mandatory field 245 missing")}}
	updater := newTestUpdater(store, ruleEvaluator, nil)

	result, err := updater.Update(context.Background(), Request{
		Record:   newTestRecord("11111111", models.CommonAgency),
		AgencyID: models.CommonAgency,
	})
	require.NoError(t, err)

	assert.Equal(t, actions.StatusFailedValidation, result.Status)
	assert.Empty(t, store.records)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "mandatory field 245 missing", result.Entries[0].Message)
}

func TestUpdateScreensNewCommonRecordForDuplicates(t *testing.T) {
	store := newFakeStore()
	ruleEvaluator := &fakeRules{matches: []rules.DoubleRecordMatch{{
		BibliographicRecordID: "99999999",
		AgencyID:              models.CommonAgency,
		Reason:                "same isbn",
	}}}
	keys := &fakeKeys{issued: "key-1", valid: map[string]bool{}}
	updater := newTestUpdater(store, ruleEvaluator, keys)

	result, err := updater.Update(context.Background(), Request{
		Record:   newTestRecord("11111111", models.CommonAgency),
		AgencyID: models.CommonAgency,
	})
	require.NoError(t, err)

	assert.Equal(t, actions.StatusFailedValidation, result.Status)
	assert.Equal(t, "key-1", result.DoubleRecordKey)
	assert.Empty(t, store.records)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "99999999", result.Entries[0].RecordID)
}

func TestUpdateAcceptsValidDoubleRecordKey(t *testing.T) {
	store := newFakeStore()
	ruleEvaluator := &fakeRules{matches: []rules.DoubleRecordMatch{{Reason: "same isbn"}}}
	keys := &fakeKeys{valid: map[string]bool{"key-1": true}}
	updater := newTestUpdater(store, ruleEvaluator, keys)

	result, err := updater.Update(context.Background(), Request{
		Record:          newTestRecord("11111111", models.CommonAgency),
		AgencyID:        models.CommonAgency,
		DoubleRecordKey: "key-1",
	})
	require.NoError(t, err)

	assert.Equal(t, actions.StatusOK, result.Status)
	assert.Equal(t, []string{"key-1"}, keys.consumed)
	assert.Contains(t, store.records, models.NewRecordID("11111111", models.CommonAgency))
}

func TestUpdateRejectsExpiredDoubleRecordKey(t *testing.T) {
	store := newFakeStore()
	keys := &fakeKeys{valid: map[string]bool{}}
	updater := newTestUpdater(store, &fakeRules{}, keys)

	result, err := updater.Update(context.Background(), Request{
		Record:          newTestRecord("11111111", models.CommonAgency),
		AgencyID:        models.CommonAgency,
		DoubleRecordKey: "stale",
	})
	require.NoError(t, err)

	assert.Equal(t, actions.StatusFailedValidation, result.Status)
	assert.Empty(t, store.records)
}

func TestUpdateSkipsDuplicateScreeningForExistingRecord(t *testing.T) {
	store := newFakeStore()
	existing := newTestRecord("11111111", models.CommonAgency)
	content, err := marc.Encode(existing)
	require.NoError(t, err)
	id := models.NewRecordID("11111111", models.CommonAgency)
	store.records[id] = &rawrepo.StoredRecord{ID: id, Content: content, MimeType: rawrepo.MimeTypeMARC}

	ruleEvaluator := &fakeRules{matches: []rules.DoubleRecordMatch{{Reason: "same isbn"}}}
	updater := newTestUpdater(store, ruleEvaluator, nil)

	result, err := updater.Update(context.Background(), Request{
		Record:   newTestRecord("11111111", models.CommonAgency),
		AgencyID: models.CommonAgency,
	})
	require.NoError(t, err)
	assert.Equal(t, actions.StatusOK, result.Status)
}

func TestUpdateRoutesEnrichmentKind(t *testing.T) {
	store := newFakeStore()
	common := newTestRecord("11111111", models.CommonAgency)
	content, err := marc.Encode(common)
	require.NoError(t, err)
	commonID := models.NewRecordID("11111111", models.CommonAgency)
	store.records[commonID] = &rawrepo.StoredRecord{ID: commonID, Content: content, MimeType: rawrepo.MimeTypeMARC}

	updater := newTestUpdater(store, nil, nil)
	record := newTestRecord("11111111", 710100)
	marc.NewWriter(record).AddSubField("530", "a", "lokal note")

	result, err := updater.Update(context.Background(), Request{Record: record, AgencyID: 710100})
	require.NoError(t, err)

	assert.Equal(t, actions.StatusOK, result.Status)
	enrichmentID := models.NewRecordID("11111111", 710100)
	require.Contains(t, store.records, enrichmentID)
	assert.Equal(t, rawrepo.MimeTypeEnrichment, store.records[enrichmentID].MimeType)
}

func TestUpdateRejectsRecordWithoutID(t *testing.T) {
	updater := newTestUpdater(newFakeStore(), nil, nil)
	record := &marc.Record{}
	marc.NewWriter(record).AddSubField("001", "b", "710100")

	_, err := updater.Update(context.Background(), Request{Record: record, AgencyID: 710100})
	require.Error(t, err)
	assert.True(t, bramblerrors.IsValidationError(err))
}

func TestUpdateRoutesSchoolCommonRecord(t *testing.T) {
	store := newFakeStore()
	common := newTestRecord("11111111", models.CommonAgency)
	content, err := marc.Encode(common)
	require.NoError(t, err)
	commonID := models.NewRecordID("11111111", models.CommonAgency)
	store.records[commonID] = &rawrepo.StoredRecord{ID: commonID, Content: content, MimeType: rawrepo.MimeTypeMARC}

	updater := newTestUpdater(store, nil, nil)
	record := newTestRecord("11111111", models.SchoolCommonAgency)
	marc.NewWriter(record).AddSubField("530", "a", "skolenote")

	result, err := updater.Update(context.Background(), Request{Record: record, AgencyID: models.SchoolCommonAgency})
	require.NoError(t, err)

	// the school description is itself stored as an enrichment of the
	// common record
	assert.Equal(t, actions.StatusOK, result.Status)
	schoolID := models.NewRecordID("11111111", models.SchoolCommonAgency)
	require.Contains(t, store.records, schoolID)
	assert.Equal(t, rawrepo.MimeTypeEnrichment, store.records[schoolID].MimeType)
}

func TestUpdateRoutesSchoolLibraryOntoSchoolDescription(t *testing.T) {
	store := newFakeStore()
	school := newTestRecord("11111111", models.SchoolCommonAgency)
	marc.NewWriter(school).AddSubField("530", "a", "skolenote")
	content, err := marc.Encode(school)
	require.NoError(t, err)
	schoolID := models.NewRecordID("11111111", models.SchoolCommonAgency)
	store.records[schoolID] = &rawrepo.StoredRecord{ID: schoolID, Content: content, MimeType: rawrepo.MimeTypeEnrichment}

	updater := newTestUpdater(store, nil, nil)
	record := newTestRecord("11111111", 300200)
	marc.NewWriter(record).AddSubField("530", "a", "egen note")

	result, err := updater.Update(context.Background(), Request{Record: record, AgencyID: 300200})
	require.NoError(t, err)

	assert.Equal(t, actions.StatusOK, result.Status)
	require.Contains(t, store.records, models.NewRecordID("11111111", 300200))
}
