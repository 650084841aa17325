package handlers

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"github.com/ayasync/backend/internal/middleware"
	"github.com/ayasync/backend/internal/models"
	"github.com/ayasync/backend/internal/services"
	"github.com/ayasync/backend/internal/storage"
	"github.com/ayasync/backend/pkg/logger"
	"github.com/ayasync/backend/pkg/utils"
)

type publishedEvent struct {
	Room    string
	Event   string
	Payload any
}

// recordingPublisher captures realtime events instead of delivering them.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(room, event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Room: room, Event: event, Payload: payload})
}

func (p *recordingPublisher) Broadcast(event string, payload any) {
	p.Publish("*", event, payload)
}

func (p *recordingPublisher) find(room, event string) (publishedEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e.Room == room && e.Event == event {
			return e, true
		}
	}
	return publishedEvent{}, false
}

func (p *recordingPublisher) count(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Event == event {
			n++
		}
	}
	return n
}

// payloadJSON round-trips a captured payload so tests can inspect it the way
// a websocket client would.
func payloadJSON(t *testing.T, payload any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed encoding payload: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("failed decoding payload: %v", err)
	}
	return out
}

type recordingNotifier struct {
	mu          sync.Mutex
	logins      []string
	messages    []string
	connections []string
}

func (n *recordingNotifier) LoginAlert(user *models.User, _ string, _ time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.logins = append(n.logins, user.Email)
}

func (n *recordingNotifier) NewMessage(recipient, _ *models.User, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, recipient.Email)
}

func (n *recordingNotifier) ConnectionRequest(target, _ *models.User) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connections = append(n.connections, target.Email)
}

func (n *recordingNotifier) Close() {}

type testEnv struct {
	app       *fiber.App
	db        *gorm.DB
	audit     *services.AuditService
	publisher *recordingPublisher
	notifier  *recordingNotifier
}

type testOptions struct {
	allowAdminRegistration bool
	requireTaskMembership  bool
	store                  storage.ObjectStore
}

// memoryStore is an in-process object store for avatar tests.
type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryStore) Upload(_ context.Context, objectName string, reader io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectName] = data
	m.types[objectName] = contentType
	return nil
}

func (m *memoryStore) Delete(_ context.Context, objectName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectName)
	delete(m.types, objectName)
	return nil
}

func (m *memoryStore) PresignedGetURL(_ context.Context, objectName string, _ time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[objectName]; !ok {
		return "", errors.New("object not found")
	}
	return "https://objects.test/" + objectName + "?signature=abc", nil
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	return setupTestEnvWith(t, testOptions{})
}

func setupTestEnvWith(t *testing.T, opts testOptions) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.InitWithOutput(io.Discard)
		utils.ConfigureJWT("test-secret", 24*time.Hour)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.TeamMember{},
		&models.Task{},
		&models.Message{},
		&models.Connection{},
		&models.Board{},
		&models.BoardMember{},
		&models.Activity{},
		&models.AuditLog{},
		&models.AuditExportCursor{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	audit := services.NewAuditService(db, nil, 100)
	publisher := &recordingPublisher{}
	notifier := &recordingNotifier{}

	t.Cleanup(func() {
		audit.Close()
		_ = sqlDB.Close()
	})

	h := New(Deps{
		DB:                     db,
		Audit:                  audit,
		Notifier:               notifier,
		Publisher:              publisher,
		Storage:                opts.store,
		AllowAdminRegistration: opts.allowAdminRegistration,
		RequireTaskMembership:  opts.requireTaskMembership,
	})

	app := fiber.New()
	app.Use(recover.New())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())
	RegisterRoutes(app, h, middleware.NewAuthMiddleware(db), nil)

	return &testEnv{app: app, db: db, audit: audit, publisher: publisher, notifier: notifier}
}

func createTestUser(t *testing.T, db *gorm.DB, email, password string, role models.UserRole) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         "Test User",
		Role:         role,
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if ok, _ := body["ok"].(bool); ok {
		t.Fatalf("expected ok=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

func assertOK(t *testing.T, body map[string]any) {
	t.Helper()
	if ok, _ := body["ok"].(bool); !ok {
		t.Fatalf("expected ok=true, got %+v", body)
	}
}

// waitForAudit closes the audit queue so every queued row and its derived
// activities are written before the test inspects them.
func waitForAudit(t *testing.T, env *testEnv) {
	t.Helper()
	env.audit.Close()
}
