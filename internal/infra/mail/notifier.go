// Package mail turns OTP requests into events and delivers them by email from a worker.
package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quiz-attempt-service/internal/app"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	DefaultTopic     = "otp.requested"
	eventTypeOTP     = "otp.requested"
	eventVersion     = "1"
	metadataType     = "event_type"
	metadataVersion  = "version"
	metadataOccurred = "timestamp"
)

// OTPRequested is the payload published for every password reset request.
type OTPRequested struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Notifier publishes OTP requests; it implements app.Notifier.
type Notifier struct {
	publisher message.Publisher
	topic     string
}

func NewNotifier(publisher message.Publisher, topic string) *Notifier {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Notifier{publisher: publisher, topic: topic}
}

func (n *Notifier) NotifyOTP(ctx context.Context, msg app.OTPMessage) error {
	event := OTPRequested{
		ID:        watermill.NewUUID(),
		Email:     msg.Email,
		Code:      msg.Code,
		ExpiresAt: msg.ExpiresAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal otp event: %w", err)
	}

	m := message.NewMessage(event.ID, payload)
	m.SetContext(ctx)
	m.Metadata.Set(metadataType, eventTypeOTP)
	m.Metadata.Set(metadataVersion, eventVersion)
	m.Metadata.Set(metadataOccurred, time.Now().UTC().Format(time.RFC3339))

	if err := n.publisher.Publish(n.topic, m); err != nil {
		return fmt.Errorf("publish otp event: %w", err)
	}
	return nil
}
