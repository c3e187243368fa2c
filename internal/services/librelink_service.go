package services

import (
	"context"

	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/errors"
	"github.com/vladimiradmaev/wellnest/internal/logger"
)

// LibreLinkService pulls glucose history from the sensor cloud
type LibreLinkService struct {
	source domain.CGMReadingSource
	cgm    *CGMService
}

func NewLibreLinkService(source domain.CGMReadingSource, cgm *CGMService) *LibreLinkService {
	return &LibreLinkService{source: source, cgm: cgm}
}

// Sync fetches the history and stores the readings not seen before
func (s *LibreLinkService) Sync(ctx context.Context) (domain.UploadResult, error) {
	readings, err := s.source.History(ctx)
	if err != nil {
		return domain.UploadResult{}, errors.NewExternalAPIError(err, "LibreLink")
	}
	logger.Debug("Fetched LibreLink history", "count", len(readings))
	return s.cgm.UploadNewLogs(ctx, readings)
}
