package consumer

import (
	"encoding/json"
	"fmt"
	"time"

	"ride-share/pkg/logger"
)

// Notifier pushes a message to a connected user.
type Notifier interface {
	SendToUser(userID string, message interface{}) error
}

// inboundEvent mirrors domain.EventEnvelope with the payload left raw.
type inboundEvent struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Recipients []string        `json:"recipients"`
	Payload    json.RawMessage `json:"payload"`
}

// Notification is the websocket frame sent to each recipient.
type Notification struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// Dispatcher turns ride events into websocket notifications.
type Dispatcher struct {
	notifier Notifier
	log      logger.Logger
}

func NewDispatcher(notifier Notifier, log logger.Logger) *Dispatcher {
	return &Dispatcher{notifier: notifier, log: log}
}

// Dispatch decodes one event body and notifies its recipients. A malformed
// body is an error; delivery failures to single users are only logged.
func (d *Dispatcher) Dispatch(body []byte) error {
	var evt inboundEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if evt.Type == "" {
		return fmt.Errorf("decode event: missing type")
	}

	log := d.log.WithFields(logger.LogFields{"event_type": evt.Type})
	if len(evt.Recipients) == 0 {
		log.Debug("event_without_recipients", "Nothing to notify")
		return nil
	}

	msg := Notification{Type: evt.Type, OccurredAt: evt.OccurredAt, Data: evt.Payload}
	for _, userID := range evt.Recipients {
		if err := d.notifier.SendToUser(userID, msg); err != nil {
			log.WithFields(logger.LogFields{"user_id": userID}).Error("notification_send_failed", err)
		}
	}
	log.WithFields(logger.LogFields{"recipients": len(evt.Recipients)}).Info("notification_dispatched", "Event pushed to recipients")
	return nil
}
