package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vladimiradmaev/wellnest/internal/analytics"
	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/errors"
	"github.com/vladimiradmaev/wellnest/internal/owner"
	"github.com/vladimiradmaev/wellnest/internal/repository"
)

// FeatureService builds model features from the owner's recent logs
type FeatureService struct {
	logs     *repository.LogRepository
	tracking *repository.TrackingRepository
	owners   owner.Resolver
	now      func() time.Time
}

func NewFeatureService(logs *repository.LogRepository, tracking *repository.TrackingRepository, owners owner.Resolver) *FeatureService {
	return &FeatureService{logs: logs, tracking: tracking, owners: owners, now: time.Now}
}

// Recent returns the joined rows of the query window, oldest first
func (s *FeatureService) Recent(ctx context.Context, q analytics.RecentQuery) ([]analytics.Row, error) {
	if err := q.Normalize(); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	id, err := s.owners.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	since := s.now().UTC().Add(-q.Lookback())
	var cgm, activity, insulin []domain.Record
	g, gctx := errgroup.WithContext(ctx)
	fetch := func(kind domain.Kind, dst *[]domain.Record) {
		g.Go(func() error {
			recs, err := s.logs.QueryRecent(gctx, kind, id, since, q.Limit)
			if err != nil {
				return err
			}
			*dst = recs
			return nil
		})
	}
	fetch(domain.KindGlucose, &cgm)
	fetch(domain.KindActivity, &activity)
	fetch(domain.KindInsulin, &insulin)
	if err := g.Wait(); err != nil {
		return nil, errors.NewDatabaseError(err)
	}

	return analytics.BuildMasterRows(cgm, activity, insulin, q.Unit), nil
}

// Sequences returns the sliding feature windows over the recent rows
func (s *FeatureService) Sequences(ctx context.Context, q analytics.RecentQuery, window int) ([]analytics.Sequence, error) {
	if window == 0 {
		window = analytics.DefaultWindow
	}
	if window < analytics.MinWindow || window > analytics.MaxWindow {
		return nil, errors.NewValidationError("window must be between 3 and 24")
	}
	rows, err := s.Recent(ctx, q)
	if err != nil {
		return nil, err
	}
	seqs, err := analytics.BuildSequences(rows, window)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	return seqs, nil
}

// Snapshot scores the trailing rows for the dashboard
func (s *FeatureService) Snapshot(ctx context.Context, q analytics.RecentQuery) (analytics.Snapshot, error) {
	rows, err := s.Recent(ctx, q)
	if err != nil {
		return analytics.Snapshot{}, err
	}
	return analytics.DashboardSnapshot(rows), nil
}

// MarkTrained records when a model was last trained on the owner's data
func (s *FeatureService) MarkTrained(ctx context.Context, at time.Time) error {
	id, err := s.owners.Resolve(ctx)
	if err != nil {
		return err
	}
	if err := s.tracking.Mark(ctx, id, domain.LastTrained, timestampOrNow(at, s.now())); err != nil {
		return errors.NewDatabaseError(err)
	}
	return nil
}
