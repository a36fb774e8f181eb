package notifier

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes notifications to the log (demo mode).
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, to, templateID string, vars map[string]any) error {
	msg, err := Render(templateID, vars)
	if err != nil {
		return wrap("log", err)
	}
	n.logger.Info("Notification",
		zap.String("to", to),
		zap.String("template", templateID),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
	)
	return nil
}
