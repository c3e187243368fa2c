package handlers

import (
	"github.com/vladimiradmaev/wellnest/internal/errors"
	"github.com/vladimiradmaev/wellnest/internal/interfaces"
)

// Dependencies holds all service dependencies for handlers. FitbitSvc is nil
// when no tracker integration is configured.
type Dependencies struct {
	UserService  interfaces.UserServiceInterface
	GlucoseSvc   interfaces.GlucoseServiceInterface
	InsulinSvc   interfaces.InsulinServiceInterface
	NutritionSvc interfaces.NutritionServiceInterface
	ActivitySvc  interfaces.ActivityServiceInterface
	ImportSvc    interfaces.ImportServiceInterface
	FitbitSvc    interfaces.FitbitSyncServiceInterface
	Errors       *errors.Handler
}
