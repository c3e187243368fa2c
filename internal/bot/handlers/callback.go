package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/wellnest/internal/bot/keyboards"
	"github.com/vladimiradmaev/wellnest/internal/bot/menus"
	"github.com/vladimiradmaev/wellnest/internal/bot/state"
	"github.com/vladimiradmaev/wellnest/internal/logger"
)

// CallbackHandler handles callback query messages
type CallbackHandler struct {
	*actions
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(acts *actions) *CallbackHandler {
	return &CallbackHandler{actions: acts}
}

// Handle processes a callback query. The query is answered by the caller.
func (h *CallbackHandler) Handle(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query.Message == nil {
		return nil
	}
	chatID, userID := query.Message.Chat.ID, query.From.ID

	switch query.Data {
	case keyboards.LogGlucose:
		return h.promptGlucose(chatID, userID)
	case keyboards.LogInsulin:
		return h.promptInsulin(chatID, userID)
	case keyboards.LogMeal:
		return h.promptMeal(chatID, userID)
	case keyboards.Latest:
		return h.showLatest(ctx, chatID)
	case keyboards.History:
		return h.showHistory(ctx, chatID, defaultHistoryHours)
	case keyboards.Sync:
		return h.syncTracker(ctx, chatID)
	case keyboards.Import:
		return h.promptImport(chatID, userID)
	case keyboards.Help:
		return menus.SendText(h.api, chatID, menus.HelpText)
	case keyboards.MainMenuCB:
		h.stateManager.ClearTempData(userID)
		h.stateManager.SetUserState(userID, state.None)
		return menus.SendMainMenu(h.api, chatID)
	default:
		logger.WithContext(ctx).Warn("Unknown callback", "data", query.Data)
		return nil
	}
}
