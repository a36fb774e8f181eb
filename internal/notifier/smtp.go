package notifier

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"wisefido-shift/owl-common/config"
)

// SMTPNotifier sends multipart (text + html) mail.
type SMTPNotifier struct {
	cfg    config.SMTPConfig
	logger *zap.Logger

	// dial is replaced in tests
	dial func(ctx context.Context, msg *mail.Msg) error
}

func NewSMTPNotifier(cfg config.SMTPConfig, logger *zap.Logger) *SMTPNotifier {
	n := &SMTPNotifier{cfg: cfg, logger: logger}
	n.dial = n.dialAndSend
	return n
}

var _ Notifier = (*SMTPNotifier)(nil)

func (n *SMTPNotifier) Send(ctx context.Context, to, templateID string, vars map[string]any) error {
	msg, err := Render(templateID, vars)
	if err != nil {
		return wrap("smtp", err)
	}

	m, err := n.buildMessage(to, msg)
	if err != nil {
		return wrap("smtp", err)
	}
	if err := n.dial(ctx, m); err != nil {
		n.logger.Warn("SMTP delivery failed",
			zap.String("to", to),
			zap.String("template", templateID),
			zap.Error(err),
		)
		return wrap("smtp", err)
	}

	n.logger.Info("Reminder mail sent", zap.String("to", to), zap.String("template", templateID))
	return nil
}

func (n *SMTPNotifier) buildMessage(to string, msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("from %q: %w", n.cfg.From, err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("to %q: %w", to, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	return m, nil
}

func (n *SMTPNotifier) dialAndSend(ctx context.Context, m *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(n.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if n.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(n.cfg.Timeout))
	}
	if n.cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password),
		)
	}

	c, err := mail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return c.DialAndSendWithContext(ctx, m)
}
