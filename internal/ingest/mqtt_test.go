package ingest

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/vladimiradmaev/wellnest/internal/config"
	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/owner"
)

type recordingUploader struct {
	ownerID  string
	readings []domain.RawReading
}

func (u *recordingUploader) UploadNewLogs(ctx context.Context, readings []domain.RawReading) (domain.UploadResult, error) {
	u.ownerID, _ = owner.FromContext(ctx)
	u.readings = readings
	return domain.UploadResult{Received: len(readings), Saved: len(readings)}, nil
}

// fakeMessage satisfies mqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func newTestSubscriber(u ReadingUploader) *Subscriber {
	return NewSubscriber(config.MQTTConfig{Topic: "wellnest/+/cgm"}, u, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestOwnerFromTopic(t *testing.T) {
	tests := []struct {
		topic string
		owner string
		ok    bool
	}{
		{"wellnest/u1/cgm", "u1", true},
		{"wellnest/tg42/cgm", "tg42", true},
		{"wellnest//cgm", "", false},
		{"wellnest/u1/steps", "", false},
		{"other/u1/cgm", "", false},
		{"wellnest/u1/cgm/extra", "", false},
	}
	for _, tt := range tests {
		got, ok := OwnerFromTopic(tt.topic)
		if got != tt.owner || ok != tt.ok {
			t.Errorf("OwnerFromTopic(%q) = %q, %v; want %q, %v", tt.topic, got, ok, tt.owner, tt.ok)
		}
	}
}

func TestHandleMessage(t *testing.T) {
	u := &recordingUploader{}
	s := newTestSubscriber(u)

	res, err := s.HandleMessage(context.Background(), "wellnest/u7/cgm", []byte(`[{"date":"2024-03-10 08:00:00","value":120},{"date":45361.5,"value":130}]`))
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if res.Saved != 2 || u.ownerID != "u7" || len(u.readings) != 2 {
		t.Fatalf("res %+v owner %q readings %v", res, u.ownerID, u.readings)
	}
	if v, ok := u.readings[1].Date.(float64); !ok || v != 45361.5 {
		t.Fatalf("serial date decoded as %#v", u.readings[1].Date)
	}

	if _, err := s.HandleMessage(context.Background(), "wellnest/u7/cgm", []byte(`{"date":1}`)); err == nil {
		t.Fatal("expected decode error for non-array payload")
	}
	if _, err := s.HandleMessage(context.Background(), "devices/u7", []byte(`[]`)); err == nil {
		t.Fatal("expected topic error")
	}
}

func TestMessageHandlerRoutesPahoMessages(t *testing.T) {
	u := &recordingUploader{}
	s := newTestSubscriber(u)

	s.messageHandler(context.Background())(nil, fakeMessage{
		topic:   "wellnest/u9/cgm",
		payload: []byte(`[{"date":"2024-03-10T08:00:00+05:30","value":101}]`),
	})
	if u.ownerID != "u9" || len(u.readings) != 1 || u.readings[0].Value != 101 {
		t.Fatalf("owner %q readings %v", u.ownerID, u.readings)
	}
}
