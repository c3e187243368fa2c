package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vladimiradmaev/wellnest/internal/bot/menus"
	"github.com/vladimiradmaev/wellnest/internal/bot/state"
	"github.com/vladimiradmaev/wellnest/internal/errors"
	"github.com/vladimiradmaev/wellnest/internal/interfaces"
	"github.com/vladimiradmaev/wellnest/internal/logger"
	"github.com/vladimiradmaev/wellnest/internal/owner"
	"github.com/vladimiradmaev/wellnest/internal/services"
)

const (
	defaultHistoryHours = 6
	maxHistoryHours     = 72
	historyLines        = 20
)

// actions are the operations reachable from commands, buttons and prompts
type actions struct {
	api          interfaces.BotAPI
	deps         Dependencies
	stateManager state.StateManager
	errs         *errors.Handler
	now          func() time.Time
}

func newActions(api interfaces.BotAPI, deps Dependencies, stateManager state.StateManager) *actions {
	errs := deps.Errors
	if errs == nil {
		errs = errors.NewHandler(logger.GetLogger())
	}
	return &actions{api: api, deps: deps, stateManager: stateManager, errs: errs, now: time.Now}
}

// replyError tells the user what went wrong without leaking internals
func (a *actions) replyError(ctx context.Context, chatID int64, err error) error {
	args := []any{"chat_id", chatID}
	if id, ok := owner.FromContext(ctx); ok {
		args = append(args, "owner_id", id)
	}
	a.errs.Handle(ctx, err, args...)
	return menus.SendText(a.api, chatID, "⚠️ "+errors.UserMessage(err))
}

func parseAmount(text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(text), ",", "."), 64)
	if err != nil {
		return 0, errors.NewValidationError(fmt.Sprintf("%q is not a number", strings.TrimSpace(text)))
	}
	return v, nil
}

func (a *actions) promptGlucose(chatID, userID int64) error {
	a.stateManager.SetUserState(userID, state.WaitingForGlucose)
	return menus.SendPrompt(a.api, chatID, "Enter your glucose reading in mg/dL (for example 112):")
}

func (a *actions) saveGlucose(ctx context.Context, chatID, userID int64, text string) error {
	value, err := parseAmount(text)
	if err != nil {
		return a.replyError(ctx, chatID, err)
	}
	rec, err := a.deps.GlucoseSvc.AddLog(ctx, time.Time{}, value)
	if err != nil {
		return a.replyError(ctx, chatID, err)
	}
	a.stateManager.SetUserState(userID, state.None)
	return menus.SendText(a.api, chatID, "✅ Glucose saved: "+menus.FormatRecord(&rec))
}

func (a *actions) promptInsulin(chatID, userID int64) error {
	a.stateManager.SetUserState(userID, state.WaitingForInsulin)
	return menus.SendPrompt(a.api, chatID, "Enter the bolus dose in units (for example 4.5):")
}

func (a *actions) saveInsulin(ctx context.Context, chatID, userID int64, text string) error {
	units, err := parseAmount(text)
	if err != nil {
		return a.replyError(ctx, chatID, err)
	}
	if units <= 0 {
		return a.replyError(ctx, chatID, errors.NewValidationError("The dose must be greater than 0"))
	}
	rec, err := a.deps.InsulinSvc.AddLog(ctx, services.InsulinEntry{Bolus: units})
	if err != nil {
		return a.replyError(ctx, chatID, err)
	}
	a.stateManager.SetUserState(userID, state.None)
	return menus.SendText(a.api, chatID, "✅ Insulin saved: "+menus.FormatRecord(&rec))
}

func (a *actions) promptMeal(chatID, userID int64) error {
	a.stateManager.ClearTempData(userID)
	a.stateManager.SetUserState(userID, state.WaitingForMealFood)
	return menus.SendPrompt(a.api, chatID, "What did you eat?")
}

func (a *actions) saveMealFood(chatID, userID int64, text string) error {
	a.stateManager.SetTempData(userID, state.KeyMealFood, strings.TrimSpace(text))
	a.stateManager.SetUserState(userID, state.WaitingForCarbs)
	return menus.SendPrompt(a.api, chatID, "How many grams of carbs? Send 0 and I will estimate them.")
}

func (a *actions) saveMealCarbs(ctx context.Context, chatID, userID int64, text string) error {
	carbs, err := parseAmount(text)
	if err != nil {
		return a.replyError(ctx, chatID, err)
	}
	food, _ := a.stateManager.GetTempData(userID, state.KeyMealFood)
	return a.saveMeal(ctx, chatID, userID, carbs, food)
}

func (a *actions) saveMeal(ctx context.Context, chatID, userID int64, carbs float64, food string) error {
	res, err := a.deps.NutritionSvc.UpsertMeal(ctx, services.MealEntry{CarbInput: carbs, FoodIntake: food})
	if err != nil {
		return a.replyError(ctx, chatID, err)
	}
	a.stateManager.ClearTempData(userID)
	a.stateManager.SetUserState(userID, state.None)

	text := "✅ Meal saved"
	if ins, ok := res.Record.Insulin(); ok {
		text = fmt.Sprintf("✅ Meal saved: %s, %.0f g carbs", ins.FoodIntake, ins.CarbInput)
		if res.Estimated {
			text += " (estimated)"
		}
	}
	return menus.SendText(a.api, chatID, text)
}

func (a *actions) showLatest(ctx context.Context, chatID int64) error {
	glucose, err := a.deps.GlucoseSvc.Latest(ctx)
	if err != nil {
		return a.replyError(ctx, chatID, err)
	}
	bolus, err := a.deps.InsulinSvc.LatestBolus(ctx)
	if err != nil {
		return a.replyError(ctx, chatID, err)
	}
	activity, err := a.deps.ActivitySvc.Latest(ctx)
	if err != nil {
		return a.replyError(ctx, chatID, err)
	}
	text := fmt.Sprintf("🩸 Glucose: %s\n💉 Bolus: %s\n🚶 Activity: %s",
		menus.FormatRecord(glucose), menus.FormatRecord(bolus), menus.FormatRecord(activity))
	return menus.SendText(a.api, chatID, text)
}

func (a *actions) showHistory(ctx context.Context, chatID int64, hours int) error {
	if hours <= 0 {
		hours = defaultHistoryHours
	}
	hours = min(hours, maxHistoryHours)
	end := a.now().UTC()
	recs, err := a.deps.GlucoseSvc.Range(ctx, end.Add(-time.Duration(hours)*time.Hour), end)
	if err != nil {
		return a.replyError(ctx, chatID, err)
	}
	return menus.SendText(a.api, chatID, menus.FormatGlucoseHistory(recs, hours, historyLines))
}

func (a *actions) syncTracker(ctx context.Context, chatID int64) error {
	if a.deps.FitbitSvc == nil {
		return menus.SendText(a.api, chatID, "No fitness tracker integration is configured.")
	}
	res, err := a.deps.FitbitSvc.Sync(ctx)
	if err != nil {
		return a.replyError(ctx, chatID, err)
	}
	return menus.SendText(a.api, chatID, fmt.Sprintf("🔄 Synced %d activity samples over %d day(s).", res.Saved, res.Days))
}

func (a *actions) promptImport(chatID, userID int64) error {
	a.stateManager.SetUserState(userID, state.WaitingForImport)
	return menus.SendPrompt(a.api, chatID, "Send your .xlsx or .csv export as a document.")
}
