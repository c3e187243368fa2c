package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/errors"
	"github.com/vladimiradmaev/wellnest/internal/logger"
	"github.com/vladimiradmaev/wellnest/internal/owner"
	"github.com/vladimiradmaev/wellnest/internal/repository"
	"github.com/vladimiradmaev/wellnest/internal/utils"
)

const (
	defaultSyncLookback = 24 * time.Hour
	maxConcurrentDays   = 3
	maxConcurrentUsers  = 4
)

// FitbitSyncResult reports one owner's sync
type FitbitSyncResult struct {
	OwnerID   string    `json:"owner_id"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Days      int       `json:"days"`
	Saved     int       `json:"saved"`
	Refreshed bool      `json:"refreshed"`
}

// FitbitSyncService copies intraday tracker data into activity records
type FitbitSyncService struct {
	users     *repository.UserRepository
	tracking  *repository.TrackingRepository
	logs      *repository.LogRepository
	source    domain.ActivitySource
	refresher domain.TokenRefresher
	owners    owner.Resolver
	now       func() time.Time
}

func NewFitbitSyncService(
	users *repository.UserRepository,
	tracking *repository.TrackingRepository,
	logs *repository.LogRepository,
	source domain.ActivitySource,
	refresher domain.TokenRefresher,
	owners owner.Resolver,
) *FitbitSyncService {
	return &FitbitSyncService{
		users:     users,
		tracking:  tracking,
		logs:      logs,
		source:    source,
		refresher: refresher,
		owners:    owners,
		now:       time.Now,
	}
}

// Sync runs the tracker sync for the owner in ctx
func (s *FitbitSyncService) Sync(ctx context.Context) (FitbitSyncResult, error) {
	id, err := s.owners.Resolve(ctx)
	if err != nil {
		return FitbitSyncResult{}, err
	}
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return FitbitSyncResult{}, errors.NewDatabaseError(err)
	}
	if user == nil || !user.FitbitPermission || user.FitbitAccessToken == "" {
		return FitbitSyncResult{}, errors.NewValidationError("Fitbit is not connected for this account")
	}
	return s.syncUser(ctx, *user)
}

// SyncAll syncs every user that granted tracker access. Failures are logged
// per user and the first one is returned after all users ran.
func (s *FitbitSyncService) SyncAll(ctx context.Context) error {
	users, err := s.users.ListFitbitUsers(ctx)
	if err != nil {
		return errors.NewDatabaseError(err)
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentUsers)
	errs := make([]error, len(users))
	for i, u := range users {
		i, u := i, u
		g.Go(func() error {
			res, err := s.syncUser(owner.WithOwner(ctx, u.ID), u)
			if err != nil {
				logger.Error("Fitbit sync failed", "owner_id", u.ID, "error", err)
				errs[i] = err
				return nil
			}
			logger.Info("Fitbit sync finished", "owner_id", u.ID, "days", res.Days, "count", res.Saved)
			return nil
		})
	}
	_ = g.Wait()
	return stderrors.Join(errs...)
}

func (s *FitbitSyncService) syncUser(ctx context.Context, user domain.User) (FitbitSyncResult, error) {
	tracking, err := s.tracking.Get(ctx, user.ID)
	if err != nil {
		return FitbitSyncResult{}, errors.NewDatabaseError(err)
	}

	end := s.now().UTC().Truncate(time.Second)
	start := end.Add(-defaultSyncLookback)
	if tracking.LastTrackedFitbit != nil {
		start = *tracking.LastTrackedFitbit
	}
	result := FitbitSyncResult{OwnerID: user.ID, From: start, To: end}
	days := localDays(start, end)
	result.Days = len(days)

	samples, err := s.fetchDays(ctx, user.FitbitAccessToken, days)
	if stderrors.Is(err, domain.ErrCredentialExpired) && s.refresher != nil && user.FitbitRefreshToken != "" {
		logger.Warn("Fitbit token expired, refreshing", "owner_id", user.ID)
		access, refresh, expiresAt, rerr := s.refresher.Refresh(ctx, user.FitbitRefreshToken)
		if rerr != nil {
			return result, errors.Wrap(rerr, errors.ErrorTypePermission, errors.ErrCredentialExpired.Code, "failed to refresh tracker token")
		}
		if err := s.users.UpdateFitbitCredentials(ctx, user.ID, access, refresh, expiresAt); err != nil {
			return result, errors.NewDatabaseError(err)
		}
		result.Refreshed = true
		samples, err = s.fetchDays(ctx, access, days)
	}
	if stderrors.Is(err, domain.ErrCredentialExpired) {
		return result, errors.Wrap(err, errors.ErrorTypePermission, errors.ErrCredentialExpired.Code, "tracker credentials expired")
	}
	if err != nil {
		return result, errors.NewExternalAPIError(err, "Fitbit")
	}

	recs := activityRecords(user.ID, samples, start, end)
	if err := s.logs.BatchUpsert(ctx, recs); err != nil {
		return result, errors.NewDatabaseError(err)
	}
	if err := s.tracking.Mark(ctx, user.ID, domain.LastTrackedFitbit, end); err != nil {
		return result, errors.NewDatabaseError(err)
	}
	result.Saved = len(recs)
	return result, nil
}

// fetchDays downloads the given local days concurrently
func (s *FitbitSyncService) fetchDays(ctx context.Context, accessToken string, days []string) ([]domain.ActivitySample, error) {
	perDay := make([][]domain.ActivitySample, len(days))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentDays)
	for i, day := range days {
		i, day := i, day
		g.Go(func() error {
			samples, err := s.source.Intraday(gctx, accessToken, day)
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", day, err)
			}
			perDay[i] = samples
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []domain.ActivitySample
	for _, d := range perDay {
		out = append(out, d...)
	}
	return out, nil
}

// activityRecords keeps the samples in (start, end], oldest first, with each
// step difference taken against the previous sample.
func activityRecords(ownerID string, samples []domain.ActivitySample, start, end time.Time) []domain.Record {
	kept := make([]domain.ActivitySample, 0, len(samples))
	for _, smp := range samples {
		if smp.Time.After(start) && !smp.Time.After(end) {
			kept = append(kept, smp)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Time.Before(kept[j].Time) })

	recs := make([]domain.Record, 0, len(kept))
	for i, smp := range kept {
		diff := 0
		if i > 0 {
			diff = smp.Steps - kept[i-1].Steps
		}
		recs = append(recs, domain.NewRecord(ownerID, smp.Time, &domain.Activity{
			Steps:          smp.Steps,
			DistanceKm:     smp.DistanceKm,
			HeartRate:      smp.HeartRate,
			StepDifference: diff,
		}))
	}
	return recs
}

// localDays lists the local calendar days touched by [start, end]
func localDays(start, end time.Time) []string {
	var days []string
	last := utils.LocalDate(end)
	for d := utils.ToLocal(start); ; d = d.AddDate(0, 0, 1) {
		day := d.Format("2006-01-02")
		days = append(days, day)
		if day >= last {
			return days
		}
	}
}
