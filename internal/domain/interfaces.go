package domain

import (
	"context"
	"errors"
	"time"
)

// ErrCredentialExpired is returned by tracker clients when the access token is rejected.
var ErrCredentialExpired = errors.New("credential expired")

// CarbEstimator estimates the carbohydrate content of a free-text meal description
type CarbEstimator interface {
	EstimateCarbs(ctx context.Context, food string) (float64, error)
}

// CGMReadingSource fetches raw glucose readings from a device cloud
type CGMReadingSource interface {
	History(ctx context.Context) ([]RawReading, error)
}

// ActivitySample is one intraday point from a fitness tracker
type ActivitySample struct {
	Time       time.Time
	Steps      int
	DistanceKm float64
	HeartRate  *int
}

// ActivitySource fetches intraday activity for one local day
type ActivitySource interface {
	Intraday(ctx context.Context, accessToken, localDay string) ([]ActivitySample, error)
}

// TokenRefresher exchanges a refresh token for new credentials
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (accessToken, newRefreshToken string, expiresAt time.Time, err error)
}

// BotService handles telegram bot operations
type BotService interface {
	Start(ctx context.Context) error
	Stop()
}
