package handlers

import (
	"encoding/base64"
	"io"
	"net/http"
	"testing"

	"github.com/ayasync/backend/internal/models"
	"github.com/ayasync/backend/internal/realtime"
	"github.com/ayasync/backend/internal/storage"
)

var tinyPNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func tinyPNGDataURI() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(tinyPNG)
}

func TestMeRequiresAuth(t *testing.T) {
	env := setupTestEnv(t)

	resp := performRequest(t, env.app, http.MethodGet, "/api/users/me", nil, nil)
	assertStatus(t, resp, http.StatusUnauthorized)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "missing authorization header")
}

func TestMeReturnsCurrentUser(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "me@example.com", "password123", models.UserRoleAdmin)

	resp := performRequest(t, env.app, http.MethodGet, "/api/users/me", nil, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)
	body := decodeJSONMap(t, resp)
	assertOK(t, body)

	me := body["user"].(map[string]any)
	if me["id"] != user.ID.String() || me["email"] != "me@example.com" {
		t.Fatalf("unexpected user payload: %+v", me)
	}
	if me["isAdmin"] != true {
		t.Fatalf("expected isAdmin=true for admin, got %v", me["isAdmin"])
	}
}

func TestUpdateMe(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "patch@example.com", "password123", models.UserRoleUser)

	t.Run("name", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPatch, "/api/users/me", map[string]any{"name": "  Renamed "}, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)
		body := decodeJSONMap(t, resp)
		if got := body["user"].(map[string]any)["name"]; got != "Renamed" {
			t.Fatalf("expected trimmed name, got %v", got)
		}
	})

	t.Run("external avatar", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPatch, "/api/users/me", map[string]any{"avatarUrl": "https://cdn.example.com/me.png"}, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)
		body := decodeJSONMap(t, resp)
		if got := body["user"].(map[string]any)["avatarUrl"]; got != "https://cdn.example.com/me.png" {
			t.Fatalf("expected stored avatar url, got %v", got)
		}
	})

	t.Run("invalid avatar", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPatch, "/api/users/me", map[string]any{"avatarUrl": "ftp://nope"}, authHeaders(token))
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, decodeJSONMap(t, resp), "avatarUrl must be an http(s) URL or an image data URI")
	})

	t.Run("data uri kept inline without storage", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPatch, "/api/users/me", map[string]any{"avatarUrl": tinyPNGDataURI()}, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)

		var stored models.User
		env.db.First(&stored, "id = ?", user.ID)
		if stored.AvatarURL == nil || *stored.AvatarURL != tinyPNGDataURI() {
			t.Fatalf("expected inline data uri, got %v", stored.AvatarURL)
		}

		avatar := performRequest(t, env.app, http.MethodGet, "/api/users/"+user.ID.String()+"/avatar", nil, nil)
		assertStatus(t, avatar, http.StatusOK)
		if ct := avatar.Header.Get("Content-Type"); ct != "image/png" {
			t.Fatalf("expected image/png, got %q", ct)
		}
		raw, _ := io.ReadAll(avatar.Body)
		avatar.Body.Close()
		if string(raw) != string(tinyPNG) {
			t.Fatalf("avatar bytes mismatch")
		}
	})

	t.Run("clear avatar", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPatch, "/api/users/me", map[string]any{"avatarUrl": ""}, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)

		avatar := performRequest(t, env.app, http.MethodGet, "/api/users/"+user.ID.String()+"/avatar", nil, nil)
		assertStatus(t, avatar, http.StatusNotFound)
		assertEnvelopeError(t, decodeJSONMap(t, avatar), "avatar not found")
	})

	t.Run("empty body", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPatch, "/api/users/me", map[string]any{}, authHeaders(token))
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, decodeJSONMap(t, resp), "no valid fields to update")
	})
}

func TestUpdateMeUploadsAvatarToStorage(t *testing.T) {
	store := newMemoryStore()
	env := setupTestEnvWith(t, testOptions{store: store})
	user, token := createTestUser(t, env.db, "stored@example.com", "password123", models.UserRoleUser)

	resp := performJSONRequest(t, env.app, http.MethodPatch, "/api/users/me", map[string]any{"avatarUrl": tinyPNGDataURI()}, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)
	body := decodeJSONMap(t, resp)

	expected := "/api/users/" + user.ID.String() + "/avatar"
	if got := body["user"].(map[string]any)["avatarUrl"]; got != expected {
		t.Fatalf("expected avatar url %q, got %v", expected, got)
	}

	objectName := storage.AvatarObjectName(user.ID)
	store.mu.Lock()
	data, ok := store.objects[objectName]
	contentType := store.types[objectName]
	store.mu.Unlock()
	if !ok || string(data) != string(tinyPNG) || contentType != "image/png" {
		t.Fatalf("expected avatar uploaded as %s, ok=%v type=%q", objectName, ok, contentType)
	}

	avatar := performRequest(t, env.app, http.MethodGet, expected, nil, nil)
	assertStatus(t, avatar, http.StatusFound)
	if loc := avatar.Header.Get("Location"); loc != "https://objects.test/"+objectName+"?signature=abc" {
		t.Fatalf("unexpected redirect location %q", loc)
	}
}

func TestAvatarUnknownUser(t *testing.T) {
	env := setupTestEnv(t)

	for _, id := range []string{"not-a-uuid", "9a4b3f5e-0000-4000-8000-000000000000"} {
		resp := performRequest(t, env.app, http.MethodGet, "/api/users/"+id+"/avatar", nil, nil)
		assertStatus(t, resp, http.StatusNotFound)
		assertEnvelopeError(t, decodeJSONMap(t, resp), "user not found")
	}
}

func TestDirectoryListsActiveUsers(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "one@example.com", "password123", models.UserRoleUser)
	createTestUser(t, env.db, "two@example.com", "password123", models.UserRoleUser)
	off, _ := createTestUser(t, env.db, "off@example.com", "password123", models.UserRoleUser)
	env.db.Model(off).Update("is_active", false)

	resp := performRequest(t, env.app, http.MethodGet, "/api/users", nil, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)
	body := decodeJSONMap(t, resp)

	users := body["users"].([]any)
	if len(users) != 2 {
		t.Fatalf("expected 2 active users, got %d", len(users))
	}
	for _, raw := range users {
		entry := raw.(map[string]any)
		if entry["email"] == "off@example.com" {
			t.Fatalf("inactive user listed in directory")
		}
		if _, leaked := entry["passwordHash"]; leaked {
			t.Fatalf("directory leaked password hash")
		}
	}
}

func TestPing(t *testing.T) {
	env := setupTestEnv(t)
	sender, token := createTestUser(t, env.db, "sender@example.com", "password123", models.UserRoleUser)
	target, _ := createTestUser(t, env.db, "target@example.com", "password123", models.UserRoleUser)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/users/ping", map[string]any{"toUserId": target.ID.String()}, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)
	body := decodeJSONMap(t, resp)
	if body["message"] != defaultPingMessage {
		t.Fatalf("expected default ping message, got %v", body["message"])
	}

	event, ok := env.publisher.find(realtime.UserRoom(target.ID.String()), realtime.EventPing)
	if !ok {
		t.Fatalf("expected ping event in target's room")
	}
	payload := payloadJSON(t, event.Payload)
	if payload["from"] != sender.ID.String() || payload["fromName"] != "Test User" {
		t.Fatalf("unexpected ping payload: %+v", payload)
	}

	waitForAudit(t, env)
	var activities []models.Activity
	env.db.Where("user_id = ? AND action = ?", target.ID, "user.ping").Find(&activities)
	if len(activities) != 1 || activities[0].Message != "Test User pinged you" {
		t.Fatalf("expected ping activity for target, got %+v", activities)
	}
}

func TestPingValidation(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "sender@example.com", "password123", models.UserRoleUser)

	tests := []struct {
		name    string
		payload map[string]any
		status  int
		message string
	}{
		{"missing target", map[string]any{}, http.StatusBadRequest, "toUserId is required"},
		{"malformed target", map[string]any{"toUserId": "abc"}, http.StatusBadRequest, "invalid user id"},
		{"unknown target", map[string]any{"toUserId": "9a4b3f5e-0000-4000-8000-000000000000"}, http.StatusNotFound, "user not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := performJSONRequest(t, env.app, http.MethodPost, "/api/users/ping", tt.payload, authHeaders(token))
			assertStatus(t, resp, tt.status)
			assertEnvelopeError(t, decodeJSONMap(t, resp), tt.message)
		})
	}
	if n := env.publisher.count(realtime.EventPing); n != 0 {
		t.Fatalf("expected no ping events, got %d", n)
	}
}
