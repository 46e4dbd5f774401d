// Package doublerecord persists the one-time keys that let a caller
// push a record past a double-record warning.
package doublerecord

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/bramble/pkg/database"
	bramblerrors "github.com/Ramsey-B/bramble/pkg/errors"
)

const table = "double_record_keys"

// keys expire this long after being issued
const keyLifetime = 24 * time.Hour

type doubleRecordKey struct {
	RequestUUID string    `db:"request_uuid"`
	CreatedDTM  time.Time `db:"created_dtm"`
}

var keyStruct = database.NewStruct(new(doubleRecordKey))

// Repository stores issued keys in postgres so any instance can
// consume a key another instance issued.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
	now    func() time.Time
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// IssueKey mints a fresh key and persists it.
func (r *Repository) IssueKey(ctx context.Context) (string, error) {
	key := doubleRecordKey{
		RequestUUID: uuid.New().String(),
		CreatedDTM:  r.now(),
	}

	query, args := keyStruct.InsertInto(table, key).Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return "", bramblerrors.NewCollaboratorError("doublerecord", "issue", err)
	}

	r.logger.WithContext(ctx).Debugf("issued double record key %s", key.RequestUUID)
	return key.RequestUUID, nil
}

// ConsumeIfValid removes the key and reports whether it was still
// inside its lifetime. The key is deleted even when expired so it can
// never be presented twice.
func (r *Repository) ConsumeIfValid(ctx context.Context, key string) (bool, error) {
	sb := database.NewSelectBuilder()
	sb.Select("request_uuid", "created_dtm").From(table)
	sb.Where(sb.Equal("request_uuid", key))
	query, args := sb.Build()

	var stored doubleRecordKey
	err := r.db.GetContext(ctx, &stored, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, bramblerrors.NewCollaboratorError("doublerecord", "consume", err)
	}

	db := database.NewDeleteBuilder()
	db.DeleteFrom(table)
	db.Where(db.Equal("request_uuid", key))
	query, args = db.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return false, bramblerrors.NewCollaboratorError("doublerecord", "consume", err)
	}

	return r.now().Sub(stored.CreatedDTM) < keyLifetime, nil
}
