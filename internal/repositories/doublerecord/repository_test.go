package doublerecord

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct {
	keys map[string]time.Time

	execQueries []string
}

func newFakeDB() *fakeDB {
	return &fakeDB{keys: map[string]time.Time{}}
}

func (db *fakeDB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	db.execQueries = append(db.execQueries, query)
	if len(args) >= 2 {
		// insert: request_uuid, created_dtm
		if key, ok := args[0].(string); ok {
			if created, ok := args[1].(time.Time); ok {
				db.keys[key] = created
				return nil, nil
			}
		}
	}
	if len(args) == 1 {
		// delete by request_uuid
		if key, ok := args[0].(string); ok {
			delete(db.keys, key)
		}
	}
	return nil, nil
}

func (db *fakeDB) GetContext(_ context.Context, dest any, _ string, args ...any) error {
	key, _ := args[0].(string)
	created, ok := db.keys[key]
	if !ok {
		return sql.ErrNoRows
	}
	stored, ok := dest.(*doubleRecordKey)
	if !ok {
		return sql.ErrNoRows
	}
	stored.RequestUUID = key
	stored.CreatedDTM = created
	return nil
}

func (db *fakeDB) SelectContext(_ context.Context, _ any, _ string, _ ...any) error { return nil }

func (db *fakeDB) QueryRowxContext(_ context.Context, _ string, _ ...any) *sqlx.Row { return nil }

func (db *fakeDB) PingContext(_ context.Context) error { return nil }

func (db *fakeDB) Close() error { return nil }

func newTestRepository(db *fakeDB, now time.Time) *Repository {
	repo := NewRepository(db, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	repo.now = func() time.Time { return now }
	return repo
}

func TestIssueAndConsumeKey(t *testing.T) {
	db := newFakeDB()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newTestRepository(db, now)

	key, err := repo.IssueKey(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, key)

	valid, err := repo.ConsumeIfValid(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestConsumeDeletesKeyEvenWhenValid(t *testing.T) {
	db := newFakeDB()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newTestRepository(db, now)

	key, err := repo.IssueKey(context.Background())
	require.NoError(t, err)

	_, err = repo.ConsumeIfValid(context.Background(), key)
	require.NoError(t, err)

	valid, err := repo.ConsumeIfValid(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestConsumeRejectsExpiredKey(t *testing.T) {
	db := newFakeDB()
	issuedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newTestRepository(db, issuedAt)

	key, err := repo.IssueKey(context.Background())
	require.NoError(t, err)

	repo.now = func() time.Time { return issuedAt.Add(25 * time.Hour) }
	valid, err := repo.ConsumeIfValid(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, valid)

	// expired keys are deleted on consumption too
	assert.Empty(t, db.keys)
}

func TestConsumeUnknownKey(t *testing.T) {
	repo := newTestRepository(newFakeDB(), time.Now())

	valid, err := repo.ConsumeIfValid(context.Background(), "never-issued")
	require.NoError(t, err)
	assert.False(t, valid)
}
