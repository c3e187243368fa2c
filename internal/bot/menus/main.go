package menus

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/wellnest/internal/bot/keyboards"
	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/interfaces"
	"github.com/vladimiradmaev/wellnest/internal/utils"
)

const HelpText = `Commands:
/start - show the main menu
/glucose [mg/dL] - log a glucose reading
/insulin [units] - log a bolus dose
/meal [carbs] [food] - log a meal, carbs 0 asks for an estimate
/latest - show your latest readings
/history [hours] - glucose readings of the last hours (default 6)
/sync - pull activity from your fitness tracker
/cancel - drop the current prompt

Send an .xlsx or .csv export as a document to import it.
Times are shown in local time.`

// SendMainMenu sends the main menu to a chat
func SendMainMenu(api interfaces.BotAPI, chatID int64) error {
	text := `🩺 *WellNest* keeps your glucose, insulin, meals and activity in one place.

Choose an action:`

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = keyboards.MainMenu()
	_, err := api.Send(msg)
	return err
}

// SendText sends a plain message
func SendText(api interfaces.BotAPI, chatID int64, text string) error {
	_, err := api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// SendPrompt asks for input and offers a way back to the menu
func SendPrompt(api interfaces.BotAPI, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboards.CancelMenu()
	_, err := api.Send(msg)
	return err
}

// FormatRecord renders one record as a single line with its local time
func FormatRecord(rec *domain.Record) string {
	if rec == nil {
		return "none yet"
	}
	when := utils.LocalDisplayString(rec.Timestamp)
	switch p := rec.Payload.(type) {
	case *domain.Glucose:
		return fmt.Sprintf("%.0f mg/dL at %s", p.Value, when)
	case *domain.Insulin:
		return fmt.Sprintf("%.1f U at %s", p.Bolus, when)
	case *domain.Activity:
		line := fmt.Sprintf("%d steps", p.Steps)
		if p.HeartRate != nil {
			line += fmt.Sprintf(", %d bpm", *p.HeartRate)
		}
		return line + " at " + when
	default:
		return when
	}
}

// FormatGlucoseHistory lists readings oldest first, showing at most limit lines
func FormatGlucoseHistory(recs []domain.Record, hours, limit int) string {
	if len(recs) == 0 {
		return fmt.Sprintf("No glucose readings in the last %d hours.", hours)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Glucose, last %d hours (%d readings):\n", hours, len(recs))

	shown := recs
	if len(shown) > limit {
		shown = shown[:limit]
	}
	for i := len(shown) - 1; i >= 0; i-- {
		g, ok := shown[i].Glucose()
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s  %.0f\n", utils.ToLocal(shown[i].Timestamp).Format("02 Jan 15:04"), g.Value)
	}
	if len(recs) > limit {
		fmt.Fprintf(&b, "…and %d older", len(recs)-limit)
	}
	return strings.TrimRight(b.String(), "\n")
}
