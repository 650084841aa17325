package services

import (
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ayasync/backend/internal/config"
	"github.com/ayasync/backend/internal/models"
	"github.com/ayasync/backend/pkg/logger"
	"gopkg.in/gomail.v2"
)

// Notifier sends best-effort email notifications. Implementations never
// block the caller and never report delivery failures back to it.
type Notifier interface {
	LoginAlert(user *models.User, ipAddress string, at time.Time)
	NewMessage(recipient, sender *models.User, body string)
	ConnectionRequest(target, requester *models.User)
	Close()
}

type NoopNotifier struct{}

func (NoopNotifier) LoginAlert(*models.User, string, time.Time)    {}
func (NoopNotifier) NewMessage(*models.User, *models.User, string) {}
func (NoopNotifier) ConnectionRequest(*models.User, *models.User)  {}
func (NoopNotifier) Close()                                        {}

type EmailNotifier struct {
	cfg     config.SMTPConfig
	deliver func(*gomail.Message) error
	wg      sync.WaitGroup
}

// NewNotifier returns an SMTP-backed notifier, or a no-op one when no SMTP
// host is configured.
func NewNotifier(cfg config.SMTPConfig) Notifier {
	if !cfg.Enabled() {
		return NoopNotifier{}
	}

	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.TLSConfig = &tls.Config{ServerName: cfg.Host}
	dialer.SSL = cfg.Port == 465

	return NewEmailNotifier(cfg, dialer.DialAndSend)
}

func NewEmailNotifier(cfg config.SMTPConfig, deliver func(...*gomail.Message) error) *EmailNotifier {
	return &EmailNotifier{
		cfg: cfg,
		deliver: func(m *gomail.Message) error {
			return deliver(m)
		},
	}
}

func (n *EmailNotifier) LoginAlert(user *models.User, ipAddress string, at time.Time) {
	if !n.cfg.NotifyOnLogin {
		return
	}
	body := fmt.Sprintf(
		"Hi %s,\n\nYour AyaSync account signed in at %s from %s.\nIf this wasn't you, change your password right away.\n",
		displayName(user), at.UTC().Format(time.RFC1123), ipAddress,
	)
	n.send(user.Email, "New sign-in to your AyaSync account", body, "login_alert")
}

func (n *EmailNotifier) NewMessage(recipient, sender *models.User, body string) {
	if !n.cfg.NotifyOnMessage {
		return
	}
	text := fmt.Sprintf("%s sent you a message on AyaSync:\n\n%s\n", displayName(sender), messagePreview(body))
	n.send(recipient.Email, "New message from "+displayName(sender), text, "new_message")
}

const previewRunes = 280

// messagePreview cuts body to previewRunes characters.
func messagePreview(body string) string {
	if utf8.RuneCountInString(body) <= previewRunes {
		return body
	}
	return string([]rune(body)[:previewRunes]) + "..."
}

func (n *EmailNotifier) ConnectionRequest(target, requester *models.User) {
	if !n.cfg.NotifyOnConnection {
		return
	}
	text := fmt.Sprintf("%s would like to connect with you on AyaSync.\n", displayName(requester))
	n.send(target.Email, displayName(requester)+" wants to connect", text, "connection_request")
}

// Close waits for in-flight deliveries.
func (n *EmailNotifier) Close() {
	n.wg.Wait()
}

func (n *EmailNotifier) send(to, subject, body, kind string) {
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.deliver(m); err != nil {
			logger.Error("email_send_failed", err, map[string]interface{}{
				"kind": kind,
				"to":   to,
			})
			return
		}
		logger.Info("email_sent", map[string]interface{}{
			"kind": kind,
			"to":   to,
		})
	}()
}

func displayName(user *models.User) string {
	if name := strings.TrimSpace(user.Name); name != "" {
		return name
	}
	return user.Email
}
