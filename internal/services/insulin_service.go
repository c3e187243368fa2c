package services

import (
	"context"
	"time"

	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/errors"
	"github.com/vladimiradmaev/wellnest/internal/owner"
	"github.com/vladimiradmaev/wellnest/internal/repository"
)

// InsulinEntry is one dose as submitted by a user or an import
type InsulinEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Bolus     float64   `json:"bolus"`
	BasalRate *float64  `json:"basal_rate"`
	CarbInput float64   `json:"carb_input"`
	Calories  float64   `json:"calories"`
}

// DoseEntry is a bolus/basal pair read back for display
type DoseEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Bolus     float64   `json:"bolus"`
	BasalRate *float64  `json:"basal_rate"`
}

type InsulinService struct {
	logService
	tracking *repository.TrackingRepository
}

func NewInsulinService(logs *repository.LogRepository, tracking *repository.TrackingRepository, owners owner.Resolver) *InsulinService {
	return &InsulinService{
		logService: newLogService(domain.KindInsulin, logs, owners),
		tracking:   tracking,
	}
}

func (s *InsulinService) AddLog(ctx context.Context, entry InsulinEntry) (domain.Record, error) {
	if err := validateInsulinEntry(entry); err != nil {
		return domain.Record{}, err
	}
	id, err := s.ownerID(ctx)
	if err != nil {
		return domain.Record{}, err
	}
	return s.put(ctx, domain.NewRecord(id, timestampOrNow(entry.Timestamp, s.now()), entry.payload()))
}

// AddLogs stores all entries in one batch
func (s *InsulinService) AddLogs(ctx context.Context, entries []InsulinEntry) ([]domain.Record, error) {
	id, err := s.ownerID(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	recs := make([]domain.Record, 0, len(entries))
	for _, e := range entries {
		if err := validateInsulinEntry(e); err != nil {
			return nil, err
		}
		recs = append(recs, domain.NewRecord(id, timestampOrNow(e.Timestamp, now), e.payload()))
	}
	if err := s.logs.BatchUpsert(ctx, recs); err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	return recs, nil
}

// BolusBasalRange returns the doses in [start, end], newest first, leaving
// out entries without a bolus.
func (s *InsulinService) BolusBasalRange(ctx context.Context, start, end time.Time) ([]DoseEntry, error) {
	recs, err := s.Range(ctx, start, end)
	if err != nil {
		return nil, err
	}
	out := make([]DoseEntry, 0, len(recs))
	for _, rec := range recs {
		ins, ok := rec.Insulin()
		if !ok || ins.Bolus == 0 {
			continue
		}
		out = append(out, DoseEntry{Timestamp: rec.Timestamp, Bolus: ins.Bolus, BasalRate: ins.BasalRate})
	}
	return out, nil
}

// LatestBolus pages back through the owner's history for the most recent
// record with a positive bolus. It returns nil when none is found.
func (s *InsulinService) LatestBolus(ctx context.Context) (*domain.Record, error) {
	id, err := s.ownerID(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.logs.LatestMatching(ctx, s.kind, id, func(r domain.Record) bool {
		ins, ok := r.Insulin()
		return ok && ins.Bolus > 0
	}, repository.DefaultPageSize, repository.DefaultMaxPages)
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	return rec, nil
}

// RecordPrediction remembers when a bolus suggestion was last produced
func (s *InsulinService) RecordPrediction(ctx context.Context, at time.Time) error {
	id, err := s.ownerID(ctx)
	if err != nil {
		return err
	}
	if err := s.tracking.Mark(ctx, id, domain.LastPredictedBolus, timestampOrNow(at, s.now())); err != nil {
		return errors.NewDatabaseError(err)
	}
	return nil
}

func (e InsulinEntry) payload() *domain.Insulin {
	return &domain.Insulin{
		Bolus:     e.Bolus,
		BasalRate: e.BasalRate,
		CarbInput: e.CarbInput,
		Calories:  e.Calories,
	}
}

func validateInsulinEntry(e InsulinEntry) error {
	if e.Bolus < 0 || e.CarbInput < 0 || e.Calories < 0 {
		return errors.NewValidationError("insulin, carbs and calories cannot be negative")
	}
	if e.BasalRate != nil && *e.BasalRate < 0 {
		return errors.NewValidationError("basal rate cannot be negative")
	}
	return nil
}
