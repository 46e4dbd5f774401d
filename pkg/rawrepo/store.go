package rawrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	bramblerrors "github.com/Ramsey-B/bramble/pkg/errors"
	"github.com/Ramsey-B/bramble/pkg/events"
	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// content types stored on record nodes
const (
	MimeTypeMARC       = "application/marc+json"
	MimeTypeEnrichment = "application/enrichment+json"
)

// relation types between record nodes
const (
	relChildOf      = "CHILD_OF"
	relEnrichmentOf = "ENRICHMENT_OF"
	relRefersTo     = "REFERS_TO"
)

// StoredRecord is a record as the graph store holds it: encoded
// content plus bookkeeping. Deleted records stay in the graph as
// tombstones and remain fetchable.
type StoredRecord struct {
	ID       models.RecordID
	Content  []byte
	MimeType string
	Created  time.Time
	Modified time.Time
	Deleted  bool
}

// Store performs record operations against the graph. Every failure
// surfaces as a CollaboratorError; the store never retries.
type Store struct {
	client  *Client
	emitter *events.Emitter
	logger  ectologger.Logger
}

func NewStore(client *Client, emitter *events.Emitter, logger ectologger.Logger) *Store {
	return &Store{
		client:  client,
		emitter: emitter,
		logger:  logger,
	}
}

func (s *Store) observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ObserveCollaboratorCall("rawrepo", op, status, time.Since(start))
}

// RecordExists reports whether the record is present, tombstoned or
// not.
func (s *Store) RecordExists(ctx context.Context, id models.RecordID) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "rawrepo.Store.RecordExists")
	defer span.End()
	start := time.Now()

	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (r:Record {bibliographicRecordId: $id, agencyId: $agency})
			RETURN count(r) > 0 AS exists`,
			map[string]any{"id": id.BibliographicRecordID, "agency": id.AgencyID})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		exists, _ := record.Get("exists")
		return exists, nil
	})
	s.observe("exists", start, err)
	if err != nil {
		return false, bramblerrors.NewCollaboratorError("rawrepo", "exists", err)
	}
	return result.(bool), nil
}

// FetchRecord returns the stored record. Tombstoned records are
// returned with Deleted set; a record that was never stored yields a
// NotFoundError.
func (s *Store) FetchRecord(ctx context.Context, id models.RecordID) (*StoredRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "rawrepo.Store.FetchRecord")
	defer span.End()
	start := time.Now()

	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (r:Record {bibliographicRecordId: $id, agencyId: $agency})
			RETURN r.content AS content, r.mimeType AS mimeType,
			       r.created AS created, r.modified AS modified, r.deleted AS deleted`,
			map[string]any{"id": id.BibliographicRecordID, "agency": id.AgencyID})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, nil
		}
		return recordFromRow(id, records[0]), nil
	})
	s.observe("fetch", start, err)
	if err != nil {
		return nil, bramblerrors.NewCollaboratorError("rawrepo", "fetch", err)
	}
	if result == nil {
		return nil, bramblerrors.NewNotFoundError(id.BibliographicRecordID, id.AgencyID)
	}
	return result.(*StoredRecord), nil
}

func recordFromRow(id models.RecordID, row *neo4j.Record) *StoredRecord {
	rec := &StoredRecord{ID: id}
	if v, ok := row.Get("content"); ok && v != nil {
		rec.Content = []byte(v.(string))
	}
	if v, ok := row.Get("mimeType"); ok && v != nil {
		rec.MimeType = v.(string)
	}
	if v, ok := row.Get("created"); ok && v != nil {
		rec.Created, _ = time.Parse(time.RFC3339, v.(string))
	}
	if v, ok := row.Get("modified"); ok && v != nil {
		rec.Modified, _ = time.Parse(time.RFC3339, v.(string))
	}
	if v, ok := row.Get("deleted"); ok && v != nil {
		rec.Deleted = v.(bool)
	}
	return rec
}

// SaveRecord overwrites the record wholesale. The first-seen instant
// survives overwrites and resurrections; everything else is replaced.
func (s *Store) SaveRecord(ctx context.Context, rec *StoredRecord) error {
	ctx, span := tracing.StartSpan(ctx, "rawrepo.Store.SaveRecord")
	defer span.End()
	start := time.Now()

	modified := rec.Modified
	if modified.IsZero() {
		modified = time.Now().UTC()
	}

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MERGE (r:Record {bibliographicRecordId: $id, agencyId: $agency})
			ON CREATE SET r.created = $now
			SET r.content = $content,
			    r.mimeType = $mimeType,
			    r.modified = $now,
			    r.deleted = $deleted`,
			map[string]any{
				"id":       rec.ID.BibliographicRecordID,
				"agency":   rec.ID.AgencyID,
				"content":  string(rec.Content),
				"mimeType": rec.MimeType,
				"now":      modified.Format(time.RFC3339),
				"deleted":  rec.Deleted,
			})
		if err != nil {
			return nil, err
		}
		return nil, res.Err()
	})
	s.observe("save", start, err)
	if err != nil {
		return bramblerrors.NewCollaboratorError("rawrepo", "save", err)
	}
	return nil
}

// RemoveLinks drops every outgoing relation of the record.
func (s *Store) RemoveLinks(ctx context.Context, id models.RecordID) error {
	ctx, span := tracing.StartSpan(ctx, "rawrepo.Store.RemoveLinks")
	defer span.End()
	start := time.Now()

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (r:Record {bibliographicRecordId: $id, agencyId: $agency})-[l]->(:Record)
			DELETE l`,
			map[string]any{"id": id.BibliographicRecordID, "agency": id.AgencyID})
		if err != nil {
			return nil, err
		}
		return nil, res.Err()
	})
	s.observe("removeLinks", start, err)
	if err != nil {
		return bramblerrors.NewCollaboratorError("rawrepo", "removeLinks", err)
	}
	return nil
}

func (s *Store) link(ctx context.Context, op, relType string, from, to models.RecordID) error {
	start := time.Now()
	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, fmt.Sprintf(`
			MATCH (from:Record {bibliographicRecordId: $fromId, agencyId: $fromAgency})
			MATCH (to:Record {bibliographicRecordId: $toId, agencyId: $toAgency})
			MERGE (from)-[:%s]->(to)`, relType),
			map[string]any{
				"fromId":     from.BibliographicRecordID,
				"fromAgency": from.AgencyID,
				"toId":       to.BibliographicRecordID,
				"toAgency":   to.AgencyID,
			})
		if err != nil {
			return nil, err
		}
		return nil, res.Err()
	})
	s.observe(op, start, err)
	if err != nil {
		return bramblerrors.NewCollaboratorError("rawrepo", op, err)
	}
	return nil
}

// SetParent links a volume to its head record.
func (s *Store) SetParent(ctx context.Context, child, parent models.RecordID) error {
	ctx, span := tracing.StartSpan(ctx, "rawrepo.Store.SetParent")
	defer span.End()
	return s.link(ctx, "setParent", relChildOf, child, parent)
}

// LinkEnrichment links an enrichment to the shared record it layers
// onto.
func (s *Store) LinkEnrichment(ctx context.Context, enrichment, common models.RecordID) error {
	ctx, span := tracing.StartSpan(ctx, "rawrepo.Store.LinkEnrichment")
	defer span.End()
	return s.link(ctx, "linkEnrichment", relEnrichmentOf, enrichment, common)
}

// LinkAuthority links a record to an authority record it references.
func (s *Store) LinkAuthority(ctx context.Context, from, to models.RecordID) error {
	ctx, span := tracing.StartSpan(ctx, "rawrepo.Store.LinkAuthority")
	defer span.End()
	return s.link(ctx, "linkAuthority", relRefersTo, from, to)
}

func (s *Store) incomingRelations(ctx context.Context, op, relType string, id models.RecordID) ([]models.RecordID, error) {
	start := time.Now()
	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, fmt.Sprintf(`
			MATCH (other:Record)-[:%s]->(r:Record {bibliographicRecordId: $id, agencyId: $agency})
			WHERE coalesce(other.deleted, false) = false
			RETURN other.bibliographicRecordId AS id, other.agencyId AS agency`, relType),
			map[string]any{"id": id.BibliographicRecordID, "agency": id.AgencyID})
		if err != nil {
			return nil, err
		}
		rows, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]models.RecordID, 0, len(rows))
		for _, row := range rows {
			bibID, _ := row.Get("id")
			agency, _ := row.Get("agency")
			ids = append(ids, models.NewRecordID(bibID.(string), int(agency.(int64))))
		}
		return ids, nil
	})
	s.observe(op, start, err)
	if err != nil {
		return nil, bramblerrors.NewCollaboratorError("rawrepo", op, err)
	}
	return result.([]models.RecordID), nil
}

// Children returns the live volume records under a head record.
func (s *Store) Children(ctx context.Context, id models.RecordID) ([]models.RecordID, error) {
	ctx, span := tracing.StartSpan(ctx, "rawrepo.Store.Children")
	defer span.End()
	return s.incomingRelations(ctx, "children", relChildOf, id)
}

// Enrichments returns the live enrichments layered onto a record.
func (s *Store) Enrichments(ctx context.Context, id models.RecordID) ([]models.RecordID, error) {
	ctx, span := tracing.StartSpan(ctx, "rawrepo.Store.Enrichments")
	defer span.End()
	return s.incomingRelations(ctx, "enrichments", relEnrichmentOf, id)
}

// AgenciesForRecord returns every agency that holds a live record with
// the given bibliographic id.
func (s *Store) AgenciesForRecord(ctx context.Context, bibliographicRecordID string) ([]int, error) {
	ctx, span := tracing.StartSpan(ctx, "rawrepo.Store.AgenciesForRecord")
	defer span.End()
	start := time.Now()

	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (r:Record {bibliographicRecordId: $id})
			WHERE coalesce(r.deleted, false) = false
			RETURN r.agencyId AS agency`,
			map[string]any{"id": bibliographicRecordID})
		if err != nil {
			return nil, err
		}
		rows, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		agencies := make([]int, 0, len(rows))
		for _, row := range rows {
			agency, _ := row.Get("agency")
			agencies = append(agencies, int(agency.(int64)))
		}
		return agencies, nil
	})
	s.observe("agenciesForRecord", start, err)
	if err != nil {
		return nil, bramblerrors.NewCollaboratorError("rawrepo", "agenciesForRecord", err)
	}
	return result.([]int), nil
}

// Enqueue writes a queue job for the record and emits the matching
// change event. Downstream workers pick jobs up by provider tag.
func (s *Store) Enqueue(ctx context.Context, id models.RecordID, provider string, priority int, deleted bool) error {
	ctx, span := tracing.StartSpan(ctx, "rawrepo.Store.Enqueue")
	defer span.End()
	start := time.Now()

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			CREATE (:QueueJob {
				jobId: $jobId,
				bibliographicRecordId: $id,
				agencyId: $agency,
				provider: $provider,
				priority: $priority,
				queuedAt: $queuedAt
			})`,
			map[string]any{
				"jobId":    uuid.New().String(),
				"id":       id.BibliographicRecordID,
				"agency":   id.AgencyID,
				"provider": provider,
				"priority": priority,
				"queuedAt": time.Now().UTC().Format(time.RFC3339),
			})
		if err != nil {
			return nil, err
		}
		return nil, res.Err()
	})
	s.observe("enqueue", start, err)
	if err != nil {
		return bramblerrors.NewCollaboratorError("rawrepo", "enqueue", err)
	}

	if s.emitter != nil {
		if err := s.emitter.EmitRecordChange(ctx, id, provider, priority, deleted); err != nil {
			return bramblerrors.NewCollaboratorError("rawrepo", "enqueue", err)
		}
	}
	return nil
}
