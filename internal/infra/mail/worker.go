package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
)

// Worker consumes OTP events and emails the code. Delivery failures are logged and the
// message is acked; the stored code is unaffected either way.
type Worker struct {
	subscriber message.Subscriber
	topic      string
	sender     Sender
	log        zerolog.Logger
}

func NewWorker(subscriber message.Subscriber, topic string, sender Sender, log zerolog.Logger) *Worker {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Worker{
		subscriber: subscriber,
		topic:      topic,
		sender:     sender,
		log:        log.With().Str("component", "mail-worker").Logger(),
	}
}

// Start subscribes before returning, so nothing published afterwards is missed, then
// consumes in the background. The returned channel closes once consumption stops.
func (w *Worker) Start(ctx context.Context) (<-chan struct{}, error) {
	messages, err := w.subscriber.Subscribe(ctx, w.topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", w.topic, err)
	}
	w.log.Info().Str("topic", w.topic).Msg("mail worker started")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				w.handle(ctx, msg)
				msg.Ack()
			}
		}
	}()
	return done, nil
}

func (w *Worker) handle(ctx context.Context, msg *message.Message) {
	var event OTPRequested
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		w.log.Error().Err(err).Str("message_id", msg.UUID).Msg("dropping malformed otp event")
		return
	}
	if err := w.sender.Send(ctx, otpMail(event)); err != nil {
		w.log.Error().Err(err).Str("message_id", msg.UUID).Str("to", event.Email).Msg("otp mail delivery failed")
		return
	}
	w.log.Info().Str("message_id", msg.UUID).Str("to", event.Email).Msg("otp mail sent")
}

func otpMail(event OTPRequested) Mail {
	minutes := int(time.Until(event.ExpiresAt).Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return Mail{
		To:      event.Email,
		Subject: "Your password reset code",
		Body: fmt.Sprintf("Your one-time password reset code is %s.\nIt expires in %d minutes. If you did not ask for a reset, ignore this email.\n",
			event.Code, minutes),
	}
}
