package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/store"
)

const (
	// DefaultPageSize and DefaultMaxPages bound LatestMatching scans.
	DefaultPageSize = 10
	DefaultMaxPages = 100

	// NoFoodRecorded is stored when a nutrition entry has no description.
	NoFoodRecorded = "No food recorded"
)

// LogRepository reads and writes glucose, insulin and activity records
type LogRepository struct {
	store store.Store
}

// NewLogRepository creates a new log repository
func NewLogRepository(s store.Store) *LogRepository {
	return &LogRepository{store: s}
}

// Put writes one record, replacing any record with the same id.
func (r *LogRepository) Put(ctx context.Context, rec domain.Record) error {
	w, err := encode(rec)
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, w.Collection, w.Doc); err != nil {
		return fmt.Errorf("failed to save %s record: %w", rec.Kind(), err)
	}
	return nil
}

// Get returns the record with the given id, or nil when there is none.
func (r *LogRepository) Get(ctx context.Context, kind domain.Kind, id string) (*domain.Record, error) {
	doc, err := r.store.Get(ctx, kind.Collection(), id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s record %s: %w", kind, id, err)
	}
	rec, err := decode(kind, *doc)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// BatchUpsert writes all records in one atomic batch. Records may be of
// different kinds. When two records share an id the later one wins.
func (r *LogRepository) BatchUpsert(ctx context.Context, recs []domain.Record) error {
	if len(recs) == 0 {
		return nil
	}
	writes := make([]store.Write, 0, len(recs))
	for _, rec := range recs {
		w, err := encode(rec)
		if err != nil {
			return err
		}
		writes = append(writes, w)
	}
	if err := r.store.BatchPut(ctx, store.DedupeWrites(writes)); err != nil {
		return fmt.Errorf("failed to write batch of %d records: %w", len(writes), err)
	}
	return nil
}

// QueryRange returns the owner's records with start <= timestamp <= end,
// most recent first. An empty window yields an empty slice.
func (r *LogRepository) QueryRange(ctx context.Context, kind domain.Kind, ownerID string, start, end time.Time) ([]domain.Record, error) {
	start, end = start.UTC(), end.UTC()
	if end.Before(start) {
		return []domain.Record{}, nil
	}
	return r.find(ctx, r.store, kind, store.Query{OwnerID: ownerID, From: &start, To: &end})
}

// QueryRecent returns up to limit of the owner's records newer than or equal
// to since, most recent first. A limit of zero means no limit.
func (r *LogRepository) QueryRecent(ctx context.Context, kind domain.Kind, ownerID string, since time.Time, limit int) ([]domain.Record, error) {
	since = since.UTC()
	return r.find(ctx, r.store, kind, store.Query{OwnerID: ownerID, From: &since, Limit: limit})
}

// Latest returns the owner's most recent record, or nil.
func (r *LogRepository) Latest(ctx context.Context, kind domain.Kind, ownerID string) (*domain.Record, error) {
	recs, err := r.find(ctx, r.store, kind, store.Query{OwnerID: ownerID, Limit: 1})
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

// LatestMatching pages backward from the most recent record and returns the
// first one accepted by match. It gives up with nil after maxPages pages.
func (r *LogRepository) LatestMatching(ctx context.Context, kind domain.Kind, ownerID string, match func(domain.Record) bool, pageSize, maxPages int) (*domain.Record, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var after *store.Cursor
	for page := 0; page < maxPages; page++ {
		recs, err := r.find(ctx, r.store, kind, store.Query{OwnerID: ownerID, Limit: pageSize, After: after})
		if err != nil {
			return nil, err
		}
		for i := range recs {
			if match(recs[i]) {
				return &recs[i], nil
			}
		}
		if len(recs) < pageSize {
			break
		}
		last := recs[len(recs)-1]
		after = &store.Cursor{Timestamp: last.Timestamp, ID: last.ID}
	}
	return nil, nil
}

// FindAt returns the owner's record whose timestamp equals at exactly.
func (r *LogRepository) FindAt(ctx context.Context, kind domain.Kind, ownerID string, at time.Time) (*domain.Record, error) {
	return r.findAt(ctx, r.store, kind, ownerID, at)
}

// Delete removes one record. Deleting a missing id succeeds.
func (r *LogRepository) Delete(ctx context.Context, kind domain.Kind, id string) error {
	if err := r.store.Delete(ctx, kind.Collection(), id); err != nil {
		return fmt.Errorf("failed to delete %s record %s: %w", kind, id, err)
	}
	return nil
}

// DeleteMany removes the given ids in one atomic batch.
func (r *LogRepository) DeleteMany(ctx context.Context, kind domain.Kind, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]store.Key, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, store.Key{Collection: kind.Collection(), ID: id})
	}
	if err := r.store.BatchDelete(ctx, keys); err != nil {
		return fmt.Errorf("failed to delete %d %s records: %w", len(ids), kind, err)
	}
	return nil
}

// DeleteRange removes every record of the owner inside [start, end] and
// returns how many were removed.
func (r *LogRepository) DeleteRange(ctx context.Context, kind domain.Kind, ownerID string, start, end time.Time) (int, error) {
	start, end = start.UTC(), end.UTC()
	removed := 0
	err := r.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		recs, err := r.find(ctx, tx, kind, store.Query{OwnerID: ownerID, From: &start, To: &end})
		if err != nil {
			return err
		}
		keys := make([]store.Key, 0, len(recs))
		for _, rec := range recs {
			keys = append(keys, store.Key{Collection: kind.Collection(), ID: rec.ID})
		}
		if len(keys) == 0 {
			return nil
		}
		removed = len(keys)
		return tx.BatchDelete(ctx, keys)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s range: %w", kind, err)
	}
	return removed, nil
}

// UpsertNutrition sets the carb and food fields of the owner's insulin record
// at exactly at, creating the record when none exists. The lookup and the
// write run in one store transaction. It reports whether a record was created.
func (r *LogRepository) UpsertNutrition(ctx context.Context, ownerID string, at time.Time, carbs float64, food string) (domain.Record, bool, error) {
	at = at.UTC().Truncate(time.Second)
	if strings.TrimSpace(food) == "" {
		food = NoFoodRecorded
	}

	var (
		out     domain.Record
		created bool
	)
	err := r.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		existing, err := r.findAt(ctx, tx, domain.KindInsulin, ownerID, at)
		if err != nil {
			return err
		}

		if existing != nil {
			ins, ok := existing.Insulin()
			if !ok {
				return fmt.Errorf("record %s is not an insulin record", existing.ID)
			}
			ins.CarbInput = carbs
			ins.FoodIntake = food
			out = *existing
		} else {
			out = domain.NewRecord(ownerID, at, &domain.Insulin{CarbInput: carbs, FoodIntake: food})
			created = true
		}

		w, err := encode(out)
		if err != nil {
			return err
		}
		if err := tx.Put(ctx, w.Collection, w.Doc); err != nil {
			return err
		}

		// read back for the store-assigned timestamps
		doc, err := tx.Get(ctx, w.Collection, w.Doc.ID)
		if err != nil {
			return err
		}
		out, err = decode(domain.KindInsulin, *doc)
		return err
	})
	if err != nil {
		return domain.Record{}, false, fmt.Errorf("failed to upsert nutrition entry: %w", err)
	}
	return out, created, nil
}

func (r *LogRepository) findAt(ctx context.Context, s store.Store, kind domain.Kind, ownerID string, at time.Time) (*domain.Record, error) {
	at = at.UTC()
	recs, err := r.find(ctx, s, kind, store.Query{OwnerID: ownerID, At: &at, Limit: 1})
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

func (r *LogRepository) find(ctx context.Context, s store.Store, kind domain.Kind, q store.Query) ([]domain.Record, error) {
	docs, err := s.Find(ctx, kind.Collection(), q)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s records: %w", kind, err)
	}
	recs := make([]domain.Record, 0, len(docs))
	for _, doc := range docs {
		rec, err := decode(kind, doc)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func encode(rec domain.Record) (store.Write, error) {
	if rec.Payload == nil {
		return store.Write{}, fmt.Errorf("record %s has no payload", rec.ID)
	}
	if rec.ID == "" || rec.OwnerID == "" {
		return store.Write{}, fmt.Errorf("record is missing id or owner")
	}
	data, err := json.Marshal(rec.Payload)
	if err != nil {
		return store.Write{}, fmt.Errorf("failed to encode %s payload: %w", rec.Kind(), err)
	}
	return store.Write{
		Collection: rec.Kind().Collection(),
		Doc: store.Document{
			ID:        rec.ID,
			OwnerID:   rec.OwnerID,
			Timestamp: rec.Timestamp.UTC(),
			Data:      data,
		},
	}, nil
}

func decode(kind domain.Kind, doc store.Document) (domain.Record, error) {
	payload, err := kind.NewPayload()
	if err != nil {
		return domain.Record{}, err
	}
	if len(doc.Data) > 0 {
		if err := json.Unmarshal(doc.Data, payload); err != nil {
			return domain.Record{}, fmt.Errorf("failed to decode %s record %s: %w", kind, doc.ID, err)
		}
	}
	return domain.Record{
		ID:        doc.ID,
		OwnerID:   doc.OwnerID,
		Timestamp: doc.Timestamp.UTC(),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
		Payload:   payload,
	}, nil
}
