package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/wellnest/internal/bot/state"
	"github.com/vladimiradmaev/wellnest/internal/interfaces"
	"github.com/vladimiradmaev/wellnest/internal/logger"
	"github.com/vladimiradmaev/wellnest/internal/owner"
)

// UpdateHandler handles telegram updates and coordinates other handlers
type UpdateHandler struct {
	api             interfaces.BotAPI
	userService     interfaces.UserServiceInterface
	callbackHandler *CallbackHandler
	commandHandler  *CommandHandler
	textHandler     *TextHandler
	documentHandler *DocumentHandler
}

// NewUpdateHandler creates a new update handler
func NewUpdateHandler(api interfaces.BotAPI, deps Dependencies, stateManager state.StateManager) *UpdateHandler {
	acts := newActions(api, deps, stateManager)
	return &UpdateHandler{
		api:             api,
		userService:     deps.UserService,
		callbackHandler: NewCallbackHandler(acts),
		commandHandler:  NewCommandHandler(acts),
		textHandler:     NewTextHandler(acts),
		documentHandler: NewDocumentHandler(acts),
	}
}

// Handle processes a telegram update. Every handler below runs with the
// sender's owner id in the context.
func (h *UpdateHandler) Handle(ctx context.Context, update tgbotapi.Update) error {
	var from *tgbotapi.User
	switch {
	case update.CallbackQuery != nil:
		from = update.CallbackQuery.From
	case update.Message != nil:
		from = update.Message.From
	}
	if from == nil {
		return nil
	}

	user, err := h.userService.RegisterUser(ctx, from.ID, from.UserName, from.FirstName, from.LastName)
	if err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}
	ctx = owner.WithOwner(ctx, user.ID)

	if update.CallbackQuery != nil {
		if _, err := h.api.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "")); err != nil {
			logger.WithContext(ctx).Warn("Failed to answer callback query", "error", err)
		}
		return h.callbackHandler.Handle(ctx, update.CallbackQuery)
	}

	msg := update.Message
	switch {
	case msg.IsCommand():
		return h.commandHandler.Handle(ctx, msg)
	case msg.Document != nil:
		return h.documentHandler.Handle(ctx, msg)
	case msg.Text != "":
		return h.textHandler.Handle(ctx, msg)
	}
	return nil
}
