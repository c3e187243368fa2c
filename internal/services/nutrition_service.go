package services

import (
	"context"
	"strings"
	"time"

	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/errors"
	"github.com/vladimiradmaev/wellnest/internal/logger"
	"github.com/vladimiradmaev/wellnest/internal/owner"
	"github.com/vladimiradmaev/wellnest/internal/repository"
)

// MealEntry is a nutrition log submitted by a user
type MealEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	CarbInput  float64   `json:"carb_input"`
	FoodIntake string    `json:"food_intake"`
}

// MealResult reports what UpsertMeal stored
type MealResult struct {
	Record    domain.Record `json:"record"`
	Created   bool          `json:"created"`
	Estimated bool          `json:"estimated"`
}

// CarbEntry is a meal read back for display
type CarbEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	CarbInput  float64   `json:"carb_input"`
	FoodIntake string    `json:"food_intake"`
}

// NutritionService keeps the carb and food fields of insulin records
type NutritionService struct {
	logs      *repository.LogRepository
	owners    owner.Resolver
	estimator domain.CarbEstimator
	now       func() time.Time
}

// NewNutritionService creates the service. estimator may be nil.
func NewNutritionService(logs *repository.LogRepository, owners owner.Resolver, estimator domain.CarbEstimator) *NutritionService {
	return &NutritionService{
		logs:      logs,
		owners:    owners,
		estimator: estimator,
		now:       time.Now,
	}
}

// UpsertMeal sets carbs and food on the owner's insulin record at exactly
// entry.Timestamp, or creates one. When no carbs are given and an estimator
// is configured, carbs are estimated from the food description.
func (s *NutritionService) UpsertMeal(ctx context.Context, entry MealEntry) (MealResult, error) {
	if entry.CarbInput < 0 {
		return MealResult{}, errors.NewValidationError("carbs cannot be negative")
	}
	id, err := s.owners.Resolve(ctx)
	if err != nil {
		return MealResult{}, err
	}

	var result MealResult
	carbs := entry.CarbInput
	food := strings.TrimSpace(entry.FoodIntake)
	if carbs == 0 && food != "" && s.estimator != nil {
		estimated, err := s.estimator.EstimateCarbs(ctx, food)
		if err != nil {
			logger.Warn("Carb estimation failed, storing zero carbs",
				"owner_id", id,
				"error", err,
			)
		} else {
			carbs = estimated
			result.Estimated = true
		}
	}

	rec, created, err := s.logs.UpsertNutrition(ctx, id, timestampOrNow(entry.Timestamp, s.now()), carbs, food)
	if err != nil {
		return MealResult{}, errors.NewDatabaseError(err)
	}
	result.Record = rec
	result.Created = created

	logger.Info("Saved meal", "owner_id", id, "created", created, "carbs", carbs)
	return result, nil
}

// CarbsAndFoodRange returns the meals in [start, end], newest first,
// leaving out records without carbs.
func (s *NutritionService) CarbsAndFoodRange(ctx context.Context, start, end time.Time) ([]CarbEntry, error) {
	id, err := s.owners.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := s.logs.QueryRange(ctx, domain.KindInsulin, id, start, end)
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	out := make([]CarbEntry, 0, len(recs))
	for _, rec := range recs {
		ins, ok := rec.Insulin()
		if !ok || ins.CarbInput == 0 {
			continue
		}
		food := ins.FoodIntake
		if food == "" {
			food = repository.NoFoodRecorded
		}
		out = append(out, CarbEntry{Timestamp: rec.Timestamp, CarbInput: ins.CarbInput, FoodIntake: food})
	}
	return out, nil
}
