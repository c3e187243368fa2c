package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/wellnest/internal/bot/keyboards"
	"github.com/vladimiradmaev/wellnest/internal/bot/state"
	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/errors"
	"github.com/vladimiradmaev/wellnest/internal/owner"
	"github.com/vladimiradmaev/wellnest/internal/repository"
	"github.com/vladimiradmaev/wellnest/internal/services"
	"github.com/vladimiradmaev/wellnest/internal/store"
)

const testUserID int64 = 42

type fakeBotAPI struct {
	mu        sync.Mutex
	texts     []string
	callbacks int
	fileURL   string
}

func (f *fakeBotAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.texts = append(f.texts, msg.Text)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeBotAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := c.(tgbotapi.CallbackConfig); ok {
		f.callbacks++
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBotAPI) GetFileDirectURL(fileID string) (string, error) {
	return f.fileURL, nil
}

func (f *fakeBotAPI) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

type fixedEstimator float64

func (e fixedEstimator) EstimateCarbs(ctx context.Context, food string) (float64, error) {
	return float64(e), nil
}

type fixture struct {
	api     *fakeBotAPI
	handler *UpdateHandler
	states  *state.Manager
	logs    *repository.LogRepository
	errLog  *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemory()
	logs := repository.NewLogRepository(s)
	tracking := repository.NewTrackingRepository(s)
	owners := owner.ContextResolver{}
	errLog := &bytes.Buffer{}

	deps := Dependencies{
		UserService:  services.NewUserService(repository.NewUserRepository(s), tracking),
		GlucoseSvc:   services.NewCGMService(logs, tracking, owners),
		InsulinSvc:   services.NewInsulinService(logs, tracking, owners),
		NutritionSvc: services.NewNutritionService(logs, owners, fixedEstimator(55)),
		ActivitySvc:  services.NewActivityService(logs, owners),
		ImportSvc:    services.NewImportService(logs, owners),
		Errors:       errors.NewHandler(slog.New(slog.NewTextHandler(errLog, nil))),
	}
	api := &fakeBotAPI{}
	states := state.NewManager()
	return &fixture{
		api:     api,
		handler: NewUpdateHandler(api, deps, states),
		states:  states,
		logs:    logs,
		errLog:  errLog,
	}
}

func (f *fixture) send(t *testing.T, text string) {
	t.Helper()
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: testUserID, FirstName: "Asha"},
		Chat: &tgbotapi.Chat{ID: testUserID},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		cmd := strings.Fields(text)[0]
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	if err := f.handler.Handle(context.Background(), tgbotapi.Update{Message: msg}); err != nil {
		t.Fatalf("handle %q: %v", text, err)
	}
}

func (f *fixture) press(t *testing.T, data string) {
	t.Helper()
	q := &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: testUserID},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: testUserID}},
		Data:    data,
	}
	if err := f.handler.Handle(context.Background(), tgbotapi.Update{CallbackQuery: q}); err != nil {
		t.Fatalf("press %q: %v", data, err)
	}
}

func (f *fixture) records(t *testing.T, kind domain.Kind) []domain.Record {
	t.Helper()
	now := time.Now().UTC()
	recs, err := f.logs.QueryRange(context.Background(), kind, services.TelegramOwnerID(testUserID), now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	return recs
}

func TestGlucoseCommandWithValue(t *testing.T) {
	f := newFixture(t)
	f.send(t, "/glucose 123")

	if got := f.last(); !strings.Contains(got, "Glucose saved: 123 mg/dL") {
		t.Fatalf("reply = %q", got)
	}
	recs := f.records(t, domain.KindGlucose)
	if len(recs) != 1 || recs[0].OwnerID != "tg42" {
		t.Fatalf("records = %+v", recs)
	}
}

func (f *fixture) last() string { return f.api.last() }

func TestGlucosePromptFlow(t *testing.T) {
	f := newFixture(t)
	f.press(t, keyboards.LogGlucose)
	if f.api.callbacks != 1 {
		t.Fatalf("callback answered %d times", f.api.callbacks)
	}
	if got := f.states.GetUserState(testUserID); got != state.WaitingForGlucose {
		t.Fatalf("state = %q", got)
	}

	f.send(t, "abc")
	if got := f.last(); !strings.Contains(got, "is not a number") {
		t.Fatalf("reply = %q", got)
	}
	if got := f.states.GetUserState(testUserID); got != state.WaitingForGlucose {
		t.Fatalf("state after bad input = %q", got)
	}

	f.send(t, "98,5")
	if got := f.states.GetUserState(testUserID); got != state.None {
		t.Fatalf("state after save = %q", got)
	}
	recs := f.records(t, domain.KindGlucose)
	if g, _ := recs[0].Glucose(); g.Value != 98.5 {
		t.Fatalf("value = %v", g.Value)
	}
}

func TestMealFlowEstimatesCarbs(t *testing.T) {
	f := newFixture(t)
	f.send(t, "/meal")
	f.send(t, "rice and dal")
	if got := f.states.GetUserState(testUserID); got != state.WaitingForCarbs {
		t.Fatalf("state = %q", got)
	}
	f.send(t, "0")

	if got := f.last(); !strings.Contains(got, "55 g carbs (estimated)") {
		t.Fatalf("reply = %q", got)
	}
	if _, ok := f.states.GetTempData(testUserID, state.KeyMealFood); ok {
		t.Fatal("temp data not cleared")
	}
	recs := f.records(t, domain.KindInsulin)
	if len(recs) != 1 {
		t.Fatalf("got %d insulin records", len(recs))
	}
	if ins, _ := recs[0].Insulin(); ins.FoodIntake != "rice and dal" || ins.CarbInput != 55 {
		t.Fatalf("meal = %+v", ins)
	}
}

func TestInsulinRejectsZeroDose(t *testing.T) {
	f := newFixture(t)
	f.send(t, "/insulin 0")
	if got := f.last(); !strings.Contains(got, "greater than 0") {
		t.Fatalf("reply = %q", got)
	}
	if out := f.errLog.String(); !strings.Contains(out, `level=WARN msg="Validation error"`) || !strings.Contains(out, "owner_id=tg42") {
		t.Fatalf("error log = %q", out)
	}
	f.send(t, "/insulin 3.5")
	if got := f.last(); !strings.Contains(got, "3.5 U") {
		t.Fatalf("reply = %q", got)
	}
}

func TestLatestAndHistory(t *testing.T) {
	f := newFixture(t)
	f.send(t, "/latest")
	if got := f.last(); !strings.Contains(got, "Glucose: none yet") {
		t.Fatalf("reply = %q", got)
	}

	f.send(t, "/glucose 140")
	f.send(t, "/history 2")
	if got := f.last(); !strings.Contains(got, "140") {
		t.Fatalf("history = %q", got)
	}

	f.send(t, "/history soon")
	if got := f.last(); !strings.Contains(got, "positive whole number") {
		t.Fatalf("reply = %q", got)
	}
}

func TestSyncWithoutTracker(t *testing.T) {
	f := newFixture(t)
	f.press(t, keyboards.Sync)
	if got := f.last(); !strings.Contains(got, "No fitness tracker") {
		t.Fatalf("reply = %q", got)
	}
}

func TestCancelResetsState(t *testing.T) {
	f := newFixture(t)
	f.send(t, "/insulin")
	f.send(t, "/cancel")
	if got := f.states.GetUserState(testUserID); got != state.None {
		t.Fatalf("state = %q", got)
	}
	f.send(t, "hello")
	if got := f.last(); !strings.Contains(got, "use the menu") {
		t.Fatalf("reply = %q", got)
	}
}

func TestDocumentImport(t *testing.T) {
	f := newFixture(t)
	csv := "Timestamp,Glucose_mg/dL,Bolus_Insulin_U\n" + time.Now().Format("2006-01-02 15:04") + ",150,2\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(csv))
	}))
	defer srv.Close()
	f.api.fileURL = srv.URL

	msg := &tgbotapi.Message{
		From:     &tgbotapi.User{ID: testUserID},
		Chat:     &tgbotapi.Chat{ID: testUserID},
		Document: &tgbotapi.Document{FileID: "f1", FileName: "export.csv", FileSize: len(csv)},
	}
	if err := f.handler.Handle(context.Background(), tgbotapi.Update{Message: msg}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := f.last(); !strings.Contains(got, "Imported 1 rows") {
		t.Fatalf("reply = %q", got)
	}

	msg.Document = &tgbotapi.Document{FileID: "f2", FileName: "notes.txt"}
	if err := f.handler.Handle(context.Background(), tgbotapi.Update{Message: msg}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := f.last(); !strings.Contains(got, "Only .xlsx and .csv") {
		t.Fatalf("reply = %q", got)
	}
}
