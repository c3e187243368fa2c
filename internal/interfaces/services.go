package interfaces

import (
	"context"
	"io"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/services"
)

// BotAPI is the part of the Telegram client the bot handlers use
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// UserServiceInterface defines the contract for user operations
type UserServiceInterface interface {
	RegisterUser(ctx context.Context, telegramID int64, username, firstName, lastName string) (*domain.User, error)
}

// GlucoseServiceInterface defines the contract for glucose log operations
type GlucoseServiceInterface interface {
	AddLog(ctx context.Context, at time.Time, value float64) (domain.Record, error)
	Latest(ctx context.Context) (*domain.Record, error)
	Range(ctx context.Context, start, end time.Time) ([]domain.Record, error)
}

// InsulinServiceInterface defines the contract for insulin log operations
type InsulinServiceInterface interface {
	AddLog(ctx context.Context, entry services.InsulinEntry) (domain.Record, error)
	LatestBolus(ctx context.Context) (*domain.Record, error)
}

// NutritionServiceInterface defines the contract for meal logging
type NutritionServiceInterface interface {
	UpsertMeal(ctx context.Context, entry services.MealEntry) (services.MealResult, error)
}

// ActivityServiceInterface defines the contract for activity reads
type ActivityServiceInterface interface {
	Latest(ctx context.Context) (*domain.Record, error)
}

// ImportServiceInterface defines the contract for spreadsheet imports
type ImportServiceInterface interface {
	ImportFile(ctx context.Context, filename string, r io.Reader) (domain.ImportSummary, error)
}

// FitbitSyncServiceInterface defines the contract for on-demand tracker sync
type FitbitSyncServiceInterface interface {
	Sync(ctx context.Context) (services.FitbitSyncResult, error)
}
