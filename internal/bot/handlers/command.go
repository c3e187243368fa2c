package handlers

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/wellnest/internal/bot/menus"
	"github.com/vladimiradmaev/wellnest/internal/bot/state"
	"github.com/vladimiradmaev/wellnest/internal/errors"
	"github.com/vladimiradmaev/wellnest/internal/logger"
)

// CommandHandler handles bot commands
type CommandHandler struct {
	*actions
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(acts *actions) *CommandHandler {
	return &CommandHandler{actions: acts}
}

// Handle processes a command message. Commands that take a value act
// directly when it is given and prompt for it otherwise.
func (h *CommandHandler) Handle(ctx context.Context, message *tgbotapi.Message) error {
	chatID, userID := message.Chat.ID, message.From.ID
	args := strings.Fields(message.CommandArguments())
	logger.WithContext(ctx).Info("Handling command", "command", message.Command(), "args", len(args))

	switch message.Command() {
	case "start":
		h.stateManager.SetUserState(userID, state.None)
		return menus.SendMainMenu(h.api, chatID)
	case "help":
		return menus.SendText(h.api, chatID, menus.HelpText)
	case "cancel":
		h.stateManager.ClearTempData(userID)
		h.stateManager.SetUserState(userID, state.None)
		return menus.SendMainMenu(h.api, chatID)
	case "glucose":
		if len(args) == 0 {
			return h.promptGlucose(chatID, userID)
		}
		return h.saveGlucose(ctx, chatID, userID, args[0])
	case "insulin":
		if len(args) == 0 {
			return h.promptInsulin(chatID, userID)
		}
		return h.saveInsulin(ctx, chatID, userID, args[0])
	case "meal":
		if len(args) == 0 {
			return h.promptMeal(chatID, userID)
		}
		carbs, err := parseAmount(args[0])
		if err != nil {
			return h.replyError(ctx, chatID, err)
		}
		return h.saveMeal(ctx, chatID, userID, carbs, strings.Join(args[1:], " "))
	case "latest":
		return h.showLatest(ctx, chatID)
	case "history":
		hours := 0
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return h.replyError(ctx, chatID, errors.NewValidationError("Hours must be a positive whole number"))
			}
			hours = n
		}
		return h.showHistory(ctx, chatID, hours)
	case "sync":
		return h.syncTracker(ctx, chatID)
	case "import":
		return h.promptImport(chatID, userID)
	default:
		return menus.SendText(h.api, chatID, "Unknown command. Use /help to see what I can do.")
	}
}
