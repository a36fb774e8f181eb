package notifier

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"wisefido-shift/internal/domain"
)

// Publisher subset of the MQTT client used for notifications
type Publisher interface {
	Publish(topic string, retained bool, payload []byte) error
}

// MQTTNotifier publishes messages on "<prefix>/<owner id>" for devices or
// bridges subscribed per owner.
type MQTTNotifier struct {
	pub    Publisher
	prefix string
	logger *zap.Logger
}

func NewMQTTNotifier(pub Publisher, topicPrefix string, logger *zap.Logger) *MQTTNotifier {
	return &MQTTNotifier{pub: pub, prefix: strings.TrimSuffix(topicPrefix, "/"), logger: logger}
}

var (
	_ Notifier  = (*MQTTNotifier)(nil)
	_ Addresser = (*MQTTNotifier)(nil)
)

// Address topics are keyed by owner id, not email.
func (n *MQTTNotifier) Address(c domain.Contact) string {
	return c.OwnerID
}

// Topic where messages for to are published.
func (n *MQTTNotifier) Topic(to string) string {
	return n.prefix + "/" + to
}

func (n *MQTTNotifier) Send(ctx context.Context, to, templateID string, vars map[string]any) error {
	if err := ctx.Err(); err != nil {
		return wrap("mqtt", err)
	}
	msg, err := Render(templateID, vars)
	if err != nil {
		return wrap("mqtt", err)
	}
	payload, err := json.Marshal(WebhookPayload{To: to, TemplateID: templateID, Message: msg, Vars: vars})
	if err != nil {
		return wrap("mqtt", err)
	}

	// publish waits on the client's own timeout
	if err := n.pub.Publish(n.Topic(to), false, payload); err != nil {
		return wrap("mqtt", err)
	}
	n.logger.Debug("Notification published", zap.String("topic", n.Topic(to)))
	return nil
}
