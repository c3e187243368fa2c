package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/wellnest/internal/bot/menus"
	"github.com/vladimiradmaev/wellnest/internal/bot/state"
	"github.com/vladimiradmaev/wellnest/internal/errors"
)

const maxImportSize = 16 << 20

// DocumentHandler imports spreadsheet exports sent as documents
type DocumentHandler struct {
	*actions
	httpClient *http.Client
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(acts *actions) *DocumentHandler {
	return &DocumentHandler{actions: acts, httpClient: &http.Client{Timeout: time.Minute}}
}

// Handle downloads the document from telegram and imports it
func (h *DocumentHandler) Handle(ctx context.Context, message *tgbotapi.Message) error {
	chatID, userID := message.Chat.ID, message.From.ID
	doc := message.Document

	ext := strings.ToLower(filepath.Ext(doc.FileName))
	if ext != ".xlsx" && ext != ".csv" {
		return h.replyError(ctx, chatID, errors.NewValidationError("Only .xlsx and .csv files can be imported"))
	}
	if doc.FileSize > maxImportSize {
		return h.replyError(ctx, chatID, errors.NewValidationError("The file is too large to import"))
	}

	url, err := h.api.GetFileDirectURL(doc.FileID)
	if err != nil {
		return h.replyError(ctx, chatID, errors.NewExternalAPIError(err, "telegram"))
	}
	body, err := h.download(ctx, url)
	if err != nil {
		return h.replyError(ctx, chatID, errors.NewExternalAPIError(err, "telegram"))
	}
	defer body.Close()

	summary, err := h.deps.ImportSvc.ImportFile(ctx, doc.FileName, io.LimitReader(body, maxImportSize))
	if err != nil {
		return h.replyError(ctx, chatID, err)
	}
	h.stateManager.SetUserState(userID, state.None)

	return menus.SendText(h.api, chatID, fmt.Sprintf(
		"📥 Imported %d rows: %d glucose and %d insulin records, %d rows skipped.",
		summary.Rows, summary.Glucose, summary.Insulin, summary.Skipped))
}

func (h *DocumentHandler) download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
