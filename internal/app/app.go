// Package app wires the store, repositories and services from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vladimiradmaev/wellnest/internal/api"
	"github.com/vladimiradmaev/wellnest/internal/bot/handlers"
	"github.com/vladimiradmaev/wellnest/internal/config"
	"github.com/vladimiradmaev/wellnest/internal/database"
	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/errors"
	"github.com/vladimiradmaev/wellnest/internal/fitbit"
	"github.com/vladimiradmaev/wellnest/internal/librelink"
	"github.com/vladimiradmaev/wellnest/internal/logger"
	"github.com/vladimiradmaev/wellnest/internal/owner"
	"github.com/vladimiradmaev/wellnest/internal/repository"
	"github.com/vladimiradmaev/wellnest/internal/services"
	"github.com/vladimiradmaev/wellnest/internal/store"
)

// KindLogs is what every record service offers for its kind
type KindLogs interface {
	Range(ctx context.Context, start, end time.Time) ([]domain.Record, error)
	Latest(ctx context.Context) (*domain.Record, error)
	Get(ctx context.Context, recordID string) (*domain.Record, error)
	DeleteMany(ctx context.Context, recordIDs []string) error
}

// Container holds the long-lived objects of one process. FitbitSync,
// LibreLink and AI are nil when their integration is not configured.
type Container struct {
	Config *config.Config
	Store  store.Store
	Errors *errors.Handler

	Logs     *repository.LogRepository
	Users    *repository.UserRepository
	Tracking *repository.TrackingRepository

	UserSvc    *services.UserService
	CGM        *services.CGMService
	Insulin    *services.InsulinService
	Nutrition  *services.NutritionService
	Activity   *services.ActivityService
	Import     *services.ImportService
	Features   *services.FeatureService
	FitbitSync *services.FitbitSyncService
	LibreLink  *services.LibreLinkService
	AI         *services.AIService
}

// New opens the configured store and builds every service on top of it
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	s, err := database.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}
	c, err := NewWithStore(ctx, cfg, s)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return c, nil
}

// NewWithStore builds the services on an already open store
func NewWithStore(ctx context.Context, cfg *config.Config, s store.Store) (*Container, error) {
	c := &Container{
		Config:   cfg,
		Store:    s,
		Errors:   errors.NewHandler(logger.GetLogger()),
		Logs:     repository.NewLogRepository(s),
		Users:    repository.NewUserRepository(s),
		Tracking: repository.NewTrackingRepository(s),
	}
	owners := owner.ContextResolver{Fallback: cfg.DevFallbackOwner}

	ai, err := services.NewAIService(ctx, cfg.AI)
	if err != nil {
		return nil, err
	}
	var estimator domain.CarbEstimator
	if ai != nil {
		c.AI = ai
		estimator = ai
	}

	c.UserSvc = services.NewUserService(c.Users, c.Tracking)
	c.CGM = services.NewCGMService(c.Logs, c.Tracking, owners)
	c.Insulin = services.NewInsulinService(c.Logs, c.Tracking, owners)
	c.Nutrition = services.NewNutritionService(c.Logs, owners, estimator)
	c.Activity = services.NewActivityService(c.Logs, owners)
	c.Import = services.NewImportService(c.Logs, owners)
	c.Features = services.NewFeatureService(c.Logs, c.Tracking, owners)

	if cfg.Fitbit.ClientID != "" {
		c.FitbitSync = services.NewFitbitSyncService(
			c.Users, c.Tracking, c.Logs,
			fitbit.NewClient(cfg.Fitbit.APIBase, cfg.Fitbit.Timeout),
			fitbit.NewRefresher(cfg.Fitbit.ClientID, cfg.Fitbit.ClientSecret, cfg.Fitbit.TokenURL, cfg.Fitbit.Timeout),
			owners,
		)
	}
	if cfg.LibreLink.URL != "" {
		client := librelink.NewClient(cfg.LibreLink.URL, cfg.LibreLink.Username, cfg.LibreLink.Password, cfg.LibreLink.Timeout)
		c.LibreLink = services.NewLibreLinkService(client, c.CGM)
	}

	logger.Info("Services initialized",
		"store", cfg.Store.Driver,
		"ai", c.AI != nil,
		"fitbit", c.FitbitSync != nil,
		"librelink", c.LibreLink != nil,
	)
	return c, nil
}

// LogsFor returns the service that owns records of kind
func (c *Container) LogsFor(kind domain.Kind) KindLogs {
	switch kind {
	case domain.KindGlucose:
		return c.CGM
	case domain.KindInsulin:
		return c.Insulin
	default:
		return c.Activity
	}
}

// APIServices returns the services the HTTP API serves
func (c *Container) APIServices() api.Services {
	return api.Services{
		CGM:        c.CGM,
		Insulin:    c.Insulin,
		Nutrition:  c.Nutrition,
		Activity:   c.Activity,
		Import:     c.Import,
		FitbitSync: c.FitbitSync,
		LibreLink:  c.LibreLink,
		Features:   c.Features,
		Errors:     c.Errors,
	}
}

// BotDependencies returns the services the chat handlers use
func (c *Container) BotDependencies() handlers.Dependencies {
	deps := handlers.Dependencies{
		UserService:  c.UserSvc,
		GlucoseSvc:   c.CGM,
		InsulinSvc:   c.Insulin,
		NutritionSvc: c.Nutrition,
		ActivitySvc:  c.Activity,
		ImportSvc:    c.Import,
		Errors:       c.Errors,
	}
	if c.FitbitSync != nil {
		deps.FitbitSvc = c.FitbitSync
	}
	return deps
}

// Close releases the AI clients and the store
func (c *Container) Close() error {
	if c.AI != nil {
		if err := c.AI.Close(); err != nil {
			logger.Warn("Failed to close AI clients", "error", err)
		}
	}
	return c.Store.Close()
}
