package handlers

import (
	"net/http"
	"testing"

	"github.com/ayasync/backend/internal/models"
)

func requestConnection(t *testing.T, env *testEnv, token, targetID string) map[string]any {
	t.Helper()
	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/users/connections", map[string]any{"userId": targetID}, authHeaders(token))
	assertStatus(t, resp, http.StatusCreated)
	return decodeJSONMap(t, resp)["connection"].(map[string]any)
}

func TestConnectionLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	alice, aliceToken := createTestUser(t, env.db, "alice@example.com", "password123", models.UserRoleUser)
	bob, bobToken := createTestUser(t, env.db, "bob@example.com", "password123", models.UserRoleUser)

	connection := requestConnection(t, env, aliceToken, bob.ID.String())
	if connection["status"] != "pending" || connection["requesterId"] != alice.ID.String() {
		t.Fatalf("unexpected connection payload: %+v", connection)
	}
	id := connection["id"].(string)

	env.notifier.mu.Lock()
	notified := append([]string(nil), env.notifier.connections...)
	env.notifier.mu.Unlock()
	if len(notified) != 1 || notified[0] != "bob@example.com" {
		t.Fatalf("expected connection email to bob, got %v", notified)
	}

	// Either direction of the pair counts as the same connection.
	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/users/connections", map[string]any{"userId": alice.ID.String()}, authHeaders(bobToken))
	assertStatus(t, resp, http.StatusConflict)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "connection already exists")

	resp = performJSONRequest(t, env.app, http.MethodPatch, "/api/users/connections/"+id, map[string]any{"status": "accepted"}, authHeaders(aliceToken))
	assertStatus(t, resp, http.StatusForbidden)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "only the requested user can respond")

	resp = performJSONRequest(t, env.app, http.MethodPatch, "/api/users/connections/"+id, map[string]any{"status": "accepted"}, authHeaders(bobToken))
	assertStatus(t, resp, http.StatusOK)
	accepted := decodeJSONMap(t, resp)["connection"].(map[string]any)
	if accepted["status"] != "accepted" || accepted["respondedAt"] == nil {
		t.Fatalf("expected accepted connection, got %+v", accepted)
	}

	resp = performJSONRequest(t, env.app, http.MethodPatch, "/api/users/connections/"+id, map[string]any{"status": "declined"}, authHeaders(bobToken))
	assertStatus(t, resp, http.StatusConflict)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "connection already resolved")

	resp = performRequest(t, env.app, http.MethodGet, "/api/users/connections", nil, authHeaders(aliceToken))
	assertStatus(t, resp, http.StatusOK)
	if list := decodeJSONMap(t, resp)["connections"].([]any); len(list) != 1 {
		t.Fatalf("expected one connection for alice, got %d", len(list))
	}

	resp = performRequest(t, env.app, http.MethodDelete, "/api/users/connections/"+id, nil, authHeaders(bobToken))
	assertStatus(t, resp, http.StatusOK)
	if deleted := decodeJSONMap(t, resp)["deleted"]; deleted != true {
		t.Fatalf("expected deleted=true, got %v", deleted)
	}

	waitForAudit(t, env)
	var activities []models.Activity
	env.db.Where("user_id = ?", alice.ID).Order("created_at ASC").Find(&activities)
	found := false
	for _, a := range activities {
		if a.Action == "connection.respond" && a.Message == "Test User accepted your connection request" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected acceptance activity for requester, got %+v", activities)
	}
}

func TestConnectionRequestValidation(t *testing.T) {
	env := setupTestEnv(t)
	me, token := createTestUser(t, env.db, "me@example.com", "password123", models.UserRoleUser)

	tests := []struct {
		name    string
		userID  string
		status  int
		message string
	}{
		{"missing user", "", http.StatusBadRequest, "userId is required"},
		{"malformed user", "abc", http.StatusBadRequest, "invalid user id"},
		{"self", me.ID.String(), http.StatusBadRequest, "cannot connect to yourself"},
		{"unknown user", "9a4b3f5e-0000-4000-8000-000000000000", http.StatusNotFound, "user not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := performJSONRequest(t, env.app, http.MethodPost, "/api/users/connections", map[string]any{"userId": tt.userID}, authHeaders(token))
			assertStatus(t, resp, tt.status)
			assertEnvelopeError(t, decodeJSONMap(t, resp), tt.message)
		})
	}
}

func TestConnectionDeleteRequiresParty(t *testing.T) {
	env := setupTestEnv(t)
	_, aliceToken := createTestUser(t, env.db, "alice@example.com", "password123", models.UserRoleUser)
	bob, _ := createTestUser(t, env.db, "bob@example.com", "password123", models.UserRoleUser)
	_, eveToken := createTestUser(t, env.db, "eve@example.com", "password123", models.UserRoleUser)

	id := requestConnection(t, env, aliceToken, bob.ID.String())["id"].(string)

	resp := performRequest(t, env.app, http.MethodDelete, "/api/users/connections/"+id, nil, authHeaders(eveToken))
	assertStatus(t, resp, http.StatusForbidden)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "not a party to this connection")

	resp = performJSONRequest(t, env.app, http.MethodPatch, "/api/users/connections/"+id, map[string]any{"status": "maybe"}, authHeaders(eveToken))
	assertStatus(t, resp, http.StatusBadRequest)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "status must be accepted or declined")
}
