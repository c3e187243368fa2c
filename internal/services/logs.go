package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/errors"
	"github.com/vladimiradmaev/wellnest/internal/owner"
	"github.com/vladimiradmaev/wellnest/internal/repository"
	"github.com/vladimiradmaev/wellnest/internal/utils"
)

// logService holds the operations every record kind shares. All of them act
// for the owner resolved from the context.
type logService struct {
	kind   domain.Kind
	logs   *repository.LogRepository
	owners owner.Resolver
	now    func() time.Time
}

func newLogService(kind domain.Kind, logs *repository.LogRepository, owners owner.Resolver) logService {
	return logService{kind: kind, logs: logs, owners: owners, now: time.Now}
}

func (s *logService) ownerID(ctx context.Context) (string, error) {
	return s.owners.Resolve(ctx)
}

// Range returns the owner's records with start <= timestamp <= end, newest first.
func (s *logService) Range(ctx context.Context, start, end time.Time) ([]domain.Record, error) {
	id, err := s.ownerID(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := s.logs.QueryRange(ctx, s.kind, id, start, end)
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	return recs, nil
}

// Recent returns up to limit records newer than since, newest first.
func (s *logService) Recent(ctx context.Context, since time.Time, limit int) ([]domain.Record, error) {
	id, err := s.ownerID(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := s.logs.QueryRecent(ctx, s.kind, id, since, limit)
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	return recs, nil
}

// Latest returns the owner's most recent record, or nil.
func (s *logService) Latest(ctx context.Context) (*domain.Record, error) {
	id, err := s.ownerID(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.logs.Latest(ctx, s.kind, id)
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	return rec, nil
}

// Get returns the record with the given id, or nil when it does not exist or
// belongs to someone else.
func (s *logService) Get(ctx context.Context, recordID string) (*domain.Record, error) {
	id, err := s.ownerID(ctx)
	if err != nil {
		return nil, err
	}
	if !ownsID(s.kind, id, recordID) {
		return nil, nil
	}
	rec, err := s.logs.Get(ctx, s.kind, recordID)
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	if rec != nil && rec.OwnerID != id {
		return nil, nil
	}
	return rec, nil
}

// GetAt returns the record stored for the given instant, looked up by its
// derived id.
func (s *logService) GetAt(ctx context.Context, at time.Time) (*domain.Record, error) {
	id, err := s.ownerID(ctx)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, utils.GenerateDocID(s.kind.Prefix(), id, at))
}

// Delete removes one of the owner's records.
func (s *logService) Delete(ctx context.Context, recordID string) error {
	return s.DeleteMany(ctx, []string{recordID})
}

// DeleteMany removes the given records in one batch. Every id must belong to
// the owner.
func (s *logService) DeleteMany(ctx context.Context, recordIDs []string) error {
	id, err := s.ownerID(ctx)
	if err != nil {
		return err
	}
	for _, rid := range recordIDs {
		if !ownsID(s.kind, id, rid) {
			return errors.NewValidationError(fmt.Sprintf("record %s is not a %s record of this account", rid, s.kind))
		}
	}
	if err := s.logs.DeleteMany(ctx, s.kind, recordIDs); err != nil {
		return errors.NewDatabaseError(err)
	}
	return nil
}

// DeleteRange removes the owner's records inside [start, end].
func (s *logService) DeleteRange(ctx context.Context, start, end time.Time) (int, error) {
	id, err := s.ownerID(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.logs.DeleteRange(ctx, s.kind, id, start, end)
	if err != nil {
		return 0, errors.NewDatabaseError(err)
	}
	return n, nil
}

func (s *logService) put(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if err := s.logs.Put(ctx, rec); err != nil {
		return domain.Record{}, errors.NewDatabaseError(err)
	}
	return rec, nil
}

// ownsID reports whether recordID was derived for this kind and owner.
func ownsID(kind domain.Kind, ownerID, recordID string) bool {
	rest, ok := strings.CutPrefix(recordID, kind.Prefix()+"_"+ownerID+"_")
	if !ok || len(rest) != len("20060102_150405") || rest[8] != '_' {
		return false
	}
	for i, c := range rest {
		if i != 8 && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// distinctRecords counts the records of kind with different ids. Records that
// share an id collapse into one stored document.
func distinctRecords(recs []domain.Record, kind domain.Kind) int {
	seen := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		if r.Kind() == kind {
			seen[r.ID] = struct{}{}
		}
	}
	return len(seen)
}

func timestampOrNow(at, now time.Time) time.Time {
	if at.IsZero() {
		return now.UTC()
	}
	return at.UTC()
}
