package keyboards

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data
const (
	LogGlucose = "log_glucose"
	LogInsulin = "log_insulin"
	LogMeal    = "log_meal"
	Latest     = "latest"
	History    = "history"
	Sync       = "sync"
	Import     = "import"
	Help       = "help"
	MainMenuCB = "main_menu"
)

// MainMenu creates the main menu keyboard
func MainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🩸 Glucose", LogGlucose),
			tgbotapi.NewInlineKeyboardButtonData("💉 Insulin", LogInsulin),
			tgbotapi.NewInlineKeyboardButtonData("🍽️ Meal", LogMeal),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📍 Latest", Latest),
			tgbotapi.NewInlineKeyboardButtonData("📈 History", History),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Sync tracker", Sync),
			tgbotapi.NewInlineKeyboardButtonData("📄 Import", Import),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❓ Help", Help),
		),
	)
}

// CancelMenu offers a way back while a prompt is open
func CancelMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Main menu", MainMenuCB),
		),
	)
}
