package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/wellnest/internal/bot/menus"
	"github.com/vladimiradmaev/wellnest/internal/bot/state"
)

// TextHandler handles text messages
type TextHandler struct {
	*actions
}

// NewTextHandler creates a new text handler
func NewTextHandler(acts *actions) *TextHandler {
	return &TextHandler{actions: acts}
}

// Handle processes a text message as the answer to the pending prompt
func (h *TextHandler) Handle(ctx context.Context, message *tgbotapi.Message) error {
	chatID, userID := message.Chat.ID, message.From.ID

	switch h.stateManager.GetUserState(userID) {
	case state.WaitingForGlucose:
		return h.saveGlucose(ctx, chatID, userID, message.Text)
	case state.WaitingForInsulin:
		return h.saveInsulin(ctx, chatID, userID, message.Text)
	case state.WaitingForMealFood:
		return h.saveMealFood(chatID, userID, message.Text)
	case state.WaitingForCarbs:
		return h.saveMealCarbs(ctx, chatID, userID, message.Text)
	case state.WaitingForImport:
		return menus.SendText(h.api, chatID, "Please send the export as a document, not as text.")
	default:
		return menus.SendText(h.api, chatID, "Please use the menu or /help to choose an action.")
	}
}
