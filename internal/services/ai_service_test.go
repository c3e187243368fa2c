package services

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/vladimiradmaev/wellnest/internal/errors"
)

type fakeModel struct {
	name  string
	reply string
	err   error
	calls int
}

func (m *fakeModel) Name() string { return m.name }

func (m *fakeModel) Complete(ctx context.Context, prompt string) (string, error) {
	m.calls++
	return m.reply, m.err
}

func TestEstimateCarbsFallsBack(t *testing.T) {
	gemini := &fakeModel{name: "gemini", err: stderrors.New("quota exceeded")}
	openai := &fakeModel{name: "openai", reply: "```json\n{\"food_items\": [\"rice\"], \"carbs\": 55.5, \"confidence\": \"high\"}\n```"}
	svc := &AIService{models: []textModel{gemini, openai}}

	carbs, err := svc.EstimateCarbs(context.Background(), "one bowl of rice")
	if err != nil {
		t.Fatalf("EstimateCarbs: %v", err)
	}
	if carbs != 55.5 || gemini.calls != 1 || openai.calls != 1 {
		t.Fatalf("carbs = %v, calls %d/%d", carbs, gemini.calls, openai.calls)
	}
}

func TestEstimateCarbsFailures(t *testing.T) {
	bad := &fakeModel{name: "gemini", reply: "I cannot tell"}
	svc := &AIService{models: []textModel{bad}}

	_, err := svc.EstimateCarbs(context.Background(), "mystery")
	assertType(t, err, errors.ErrorTypeExternal)

	_, err = svc.EstimateCarbs(context.Background(), "  ")
	assertType(t, err, errors.ErrorTypeValidation)

	_, err = (&AIService{}).EstimateCarbs(context.Background(), "rice")
	assertType(t, err, errors.ErrorTypeExternal)
}

func TestParseCarbEstimate(t *testing.T) {
	est, err := parseCarbEstimate(`Sure! {"carbs": 30, "confidence": "medium"} Hope that helps.`)
	if err != nil || est.Carbs != 30 || est.Confidence != "medium" {
		t.Fatalf("estimate = %+v, %v", est, err)
	}
	if _, err := parseCarbEstimate(`{"carbs": -4}`); err == nil {
		t.Fatal("negative carbs accepted")
	}
	if extractJSON("no braces") != "" {
		t.Fatal("extractJSON invented an object")
	}
}
