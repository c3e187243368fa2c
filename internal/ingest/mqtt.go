// Package ingest receives glucose readings that devices publish over MQTT.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/vladimiradmaev/wellnest/internal/config"
	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/owner"
)

const (
	topicRoot    = "wellnest"
	topicSuffix  = "cgm"
	storeTimeout = 10 * time.Second
)

// ReadingUploader stores device readings for the owner in the context.
type ReadingUploader interface {
	UploadNewLogs(ctx context.Context, readings []domain.RawReading) (domain.UploadResult, error)
}

type Subscriber struct {
	cfg      config.MQTTConfig
	uploader ReadingUploader
	logger   *slog.Logger
}

func NewSubscriber(cfg config.MQTTConfig, uploader ReadingUploader, logger *slog.Logger) *Subscriber {
	return &Subscriber{cfg: cfg, uploader: uploader, logger: logger}
}

// OwnerFromTopic extracts the owner id from wellnest/<owner>/cgm.
func OwnerFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != topicRoot || parts[2] != topicSuffix || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Run connects, subscribes and blocks until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(true).
		SetOrderMatters(false).
		SetConnectTimeout(10 * time.Second)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn("MQTT connection lost", "error", err)
	})

	handler := s.messageHandler(ctx)
	// Resubscribe after every (re)connect; the session is not persistent.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		token := c.Subscribe(s.cfg.Topic, 1, handler)
		token.Wait()
		if err := token.Error(); err != nil {
			s.logger.Error("MQTT subscribe failed", "topic", s.cfg.Topic, "error", err)
			return
		}
		s.logger.Info("Subscribed to device readings", "topic", s.cfg.Topic)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", s.cfg.Broker, token.Error())
	}
	s.logger.Info("Connected to MQTT broker", "broker", s.cfg.Broker, "client_id", s.cfg.ClientID)

	<-ctx.Done()

	client.Unsubscribe(s.cfg.Topic).WaitTimeout(time.Second)
	client.Disconnect(250)
	s.logger.Info("Disconnected from MQTT broker")
	return nil
}

func (s *Subscriber) messageHandler(ctx context.Context) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("MQTT handler panic", "topic", msg.Topic(), "panic", r)
			}
		}()
		if _, err := s.HandleMessage(ctx, msg.Topic(), msg.Payload()); err != nil {
			s.logger.Warn("Dropped device readings", "topic", msg.Topic(), "error", err)
		}
	}
}

// HandleMessage decodes a JSON array of {date, value} readings and stores them
// for the owner named in the topic.
func (s *Subscriber) HandleMessage(ctx context.Context, topic string, payload []byte) (domain.UploadResult, error) {
	ownerID, ok := OwnerFromTopic(topic)
	if !ok {
		return domain.UploadResult{}, fmt.Errorf("unexpected topic %q", topic)
	}

	var readings []domain.RawReading
	if err := json.Unmarshal(payload, &readings); err != nil {
		return domain.UploadResult{}, fmt.Errorf("decode payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(owner.WithOwner(ctx, ownerID), storeTimeout)
	defer cancel()

	res, err := s.uploader.UploadNewLogs(ctx, readings)
	if err != nil {
		return res, fmt.Errorf("store readings for %s: %w", ownerID, err)
	}
	s.logger.Info("Ingested device readings", "owner_id", ownerID, "saved", res.Saved, "older", res.Older, "invalid", res.Invalid)
	return res, nil
}
