package services

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ayasync/backend/internal/config"
	"github.com/ayasync/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type mailbox struct {
	mu   sync.Mutex
	sent []*gomail.Message
	err  error
}

func (m *mailbox) deliver(msgs ...*gomail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msgs...)
	return m.err
}

func TestNewNotifier_DisabledWithoutHost(t *testing.T) {
	_, ok := NewNotifier(config.SMTPConfig{}).(NoopNotifier)
	assert.True(t, ok)

	_, ok = NewNotifier(config.SMTPConfig{Host: "smtp.example.com", Port: 587}).(*EmailNotifier)
	assert.True(t, ok)
}

func TestEmailNotifier(t *testing.T) {
	alice := &models.User{Email: "alice@example.com", Name: "Alice"}
	bob := &models.User{Email: "bob@example.com"}

	t.Run("sends each notification kind", func(t *testing.T) {
		box := &mailbox{}
		n := NewEmailNotifier(config.SMTPConfig{
			From:               "AyaSync <no-reply@example.com>",
			NotifyOnLogin:      true,
			NotifyOnMessage:    true,
			NotifyOnConnection: true,
		}, box.deliver)

		n.LoginAlert(alice, "10.0.0.1", time.Now())
		n.NewMessage(bob, alice, "hello")
		n.ConnectionRequest(bob, alice)
		n.Close()

		require.Len(t, box.sent, 3)
		subjects := map[string]string{}
		for _, m := range box.sent {
			subjects[m.GetHeader("Subject")[0]] = m.GetHeader("To")[0]
		}
		assert.Equal(t, "alice@example.com", subjects["New sign-in to your AyaSync account"])
		assert.Equal(t, "bob@example.com", subjects["New message from Alice"])
		assert.Equal(t, "bob@example.com", subjects["Alice wants to connect"])
	})

	t.Run("respects toggles", func(t *testing.T) {
		box := &mailbox{}
		n := NewEmailNotifier(config.SMTPConfig{}, box.deliver)

		n.LoginAlert(alice, "10.0.0.1", time.Now())
		n.NewMessage(bob, alice, "hello")
		n.ConnectionRequest(bob, alice)
		n.Close()

		assert.Empty(t, box.sent)
	})

	t.Run("swallows delivery errors", func(t *testing.T) {
		box := &mailbox{err: errors.New("smtp down")}
		n := NewEmailNotifier(config.SMTPConfig{NotifyOnLogin: true}, box.deliver)

		assert.NotPanics(t, func() {
			n.LoginAlert(bob, "10.0.0.1", time.Now())
			n.Close()
		})
		assert.Len(t, box.sent, 1)
	})
}

func TestMessagePreview(t *testing.T) {
	assert.Equal(t, "hello", messagePreview("hello"))

	exact := strings.Repeat("a", previewRunes)
	assert.Equal(t, exact, messagePreview(exact))

	long := strings.Repeat("é", previewRunes+20)
	preview := messagePreview(long)
	assert.True(t, utf8.ValidString(preview))
	assert.Equal(t, strings.Repeat("é", previewRunes)+"...", preview)
}
