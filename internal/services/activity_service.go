package services

import (
	"context"
	"time"

	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/errors"
	"github.com/vladimiradmaev/wellnest/internal/owner"
	"github.com/vladimiradmaev/wellnest/internal/repository"
	"github.com/vladimiradmaev/wellnest/internal/utils"
)

// ActivityEntry is one tracker sample submitted by a user or an import
type ActivityEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Steps      int       `json:"steps"`
	DistanceKm float64   `json:"distance_km"`
	HeartRate  *int      `json:"heart_rate"`
}

type ActivityService struct {
	logService
}

func NewActivityService(logs *repository.LogRepository, owners owner.Resolver) *ActivityService {
	return &ActivityService{logService: newLogService(domain.KindActivity, logs, owners)}
}

// AddLog stores a sample with its step difference against the owner's
// latest sample.
func (s *ActivityService) AddLog(ctx context.Context, entry ActivityEntry) (domain.Record, error) {
	if err := validateActivityEntry(entry); err != nil {
		return domain.Record{}, err
	}
	id, err := s.ownerID(ctx)
	if err != nil {
		return domain.Record{}, err
	}

	lastSteps := 0
	latest, err := s.logs.Latest(ctx, s.kind, id)
	if err != nil {
		return domain.Record{}, errors.NewDatabaseError(err)
	}
	if latest != nil {
		if a, ok := latest.Activity(); ok {
			lastSteps = a.Steps
		}
	}

	rec := domain.NewRecord(id, timestampOrNow(entry.Timestamp, s.now()), entry.payload(entry.Steps-lastSteps))
	return s.put(ctx, rec)
}

// AddLogs stores samples in one batch. Step differences run across the
// entries in the order given, starting from zero.
func (s *ActivityService) AddLogs(ctx context.Context, entries []ActivityEntry) ([]domain.Record, error) {
	id, err := s.ownerID(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	recs := make([]domain.Record, 0, len(entries))
	lastSteps := 0
	for _, e := range entries {
		if err := validateActivityEntry(e); err != nil {
			return nil, err
		}
		recs = append(recs, domain.NewRecord(id, timestampOrNow(e.Timestamp, now), e.payload(e.Steps-lastSteps)))
		lastSteps = e.Steps
	}
	if err := s.logs.BatchUpsert(ctx, recs); err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	return recs, nil
}

// ForDate returns the samples of one local calendar day (YYYY-MM-DD).
func (s *ActivityService) ForDate(ctx context.Context, day string) ([]domain.Record, error) {
	start, end, err := utils.LocalDayBounds(day)
	if err != nil {
		return nil, errors.NewValidationError("date must be YYYY-MM-DD")
	}
	return s.Range(ctx, start, end)
}

// LatestHeartRateToday returns today's most recent sample with a heart
// rate, or nil.
func (s *ActivityService) LatestHeartRateToday(ctx context.Context) (*domain.Record, error) {
	recs, err := s.ForDate(ctx, utils.LocalDate(s.now()))
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if a, ok := recs[i].Activity(); ok && a.HeartRate != nil && *a.HeartRate > 0 {
			return &recs[i], nil
		}
	}
	return nil, nil
}

// DeleteAt removes the sample stored for the given instant.
func (s *ActivityService) DeleteAt(ctx context.Context, at time.Time) error {
	id, err := s.ownerID(ctx)
	if err != nil {
		return err
	}
	return s.Delete(ctx, utils.GenerateDocID(s.kind.Prefix(), id, at))
}

func (e ActivityEntry) payload(stepDifference int) *domain.Activity {
	return &domain.Activity{
		Steps:          e.Steps,
		DistanceKm:     e.DistanceKm,
		HeartRate:      e.HeartRate,
		StepDifference: stepDifference,
	}
}

func validateActivityEntry(e ActivityEntry) error {
	if e.Steps < 0 || e.DistanceKm < 0 {
		return errors.NewValidationError("steps and distance cannot be negative")
	}
	if e.HeartRate != nil && *e.HeartRate < 0 {
		return errors.NewValidationError("heart rate cannot be negative")
	}
	return nil
}
