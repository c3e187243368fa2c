package services

import (
	"context"
	"time"

	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/errors"
	"github.com/vladimiradmaev/wellnest/internal/logger"
	"github.com/vladimiradmaev/wellnest/internal/owner"
	"github.com/vladimiradmaev/wellnest/internal/repository"
	"github.com/vladimiradmaev/wellnest/internal/utils"
)

// CGMService records glucose monitor readings
type CGMService struct {
	logService
	tracking *repository.TrackingRepository
}

func NewCGMService(logs *repository.LogRepository, tracking *repository.TrackingRepository, owners owner.Resolver) *CGMService {
	return &CGMService{
		logService: newLogService(domain.KindGlucose, logs, owners),
		tracking:   tracking,
	}
}

// AddLog stores one reading. A zero timestamp means now.
func (s *CGMService) AddLog(ctx context.Context, at time.Time, value float64) (domain.Record, error) {
	if value <= 0 {
		return domain.Record{}, errors.NewValidationError("glucose value must be positive")
	}
	id, err := s.ownerID(ctx)
	if err != nil {
		return domain.Record{}, err
	}
	rec := domain.NewRecord(id, timestampOrNow(at, s.now()), &domain.Glucose{Value: value})
	return s.put(ctx, rec)
}

// UploadNewLogs stores the readings newer than the owner's last tracked
// reading in one batch and advances the watermark to the newest of them.
func (s *CGMService) UploadNewLogs(ctx context.Context, readings []domain.RawReading) (domain.UploadResult, error) {
	result := domain.UploadResult{Received: len(readings)}
	id, err := s.ownerID(ctx)
	if err != nil {
		return result, err
	}

	tracking, err := s.tracking.Get(ctx, id)
	if err != nil {
		return result, errors.NewDatabaseError(err)
	}

	var (
		recs   []domain.Record
		newest time.Time
	)
	for _, r := range readings {
		ts, ok := utils.ParseFlexibleTimestamp(r.Date)
		if !ok || r.Value <= 0 {
			result.Invalid++
			continue
		}
		ts = ts.Truncate(time.Second)
		if tracking.LastTrackedCGM != nil && !ts.After(*tracking.LastTrackedCGM) {
			result.Older++
			continue
		}
		recs = append(recs, domain.NewRecord(id, ts, &domain.Glucose{Value: r.Value}))
		if ts.After(newest) {
			newest = ts
		}
	}

	if len(recs) == 0 {
		logger.Info("No new glucose readings", "owner_id", id, "received", result.Received)
		return result, nil
	}

	if err := s.logs.BatchUpsert(ctx, recs); err != nil {
		return result, errors.NewDatabaseError(err)
	}
	if err := s.tracking.Mark(ctx, id, domain.LastTrackedCGM, newest); err != nil {
		return result, errors.NewDatabaseError(err)
	}
	result.Saved = distinctRecords(recs, s.kind)

	logger.Info("Uploaded glucose readings",
		"owner_id", id,
		"collection", s.kind.Collection(),
		"count", result.Saved,
		"older", result.Older,
		"invalid", result.Invalid,
	)
	return result, nil
}
