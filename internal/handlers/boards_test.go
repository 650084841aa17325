package handlers

import (
	"net/http"
	"testing"

	"github.com/ayasync/backend/internal/models"
	"github.com/ayasync/backend/internal/realtime"
)

func TestBoardShareFlow(t *testing.T) {
	env := setupTestEnv(t)
	owner, ownerToken := createTestUser(t, env.db, "owner@example.com", "password123", models.UserRoleUser)
	friend, friendToken := createTestUser(t, env.db, "friend@example.com", "password123", models.UserRoleUser)
	_, strangerToken := createTestUser(t, env.db, "stranger@example.com", "password123", models.UserRoleUser)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/boards", map[string]any{
		"title": "Roadmap",
		"data":  map[string]any{"notes": []string{"ship v1"}},
	}, authHeaders(ownerToken))
	assertStatus(t, resp, http.StatusCreated)
	board := decodeJSONMap(t, resp)["board"].(map[string]any)
	boardID := board["id"].(string)
	if board["ownerId"] != owner.ID.String() || board["title"] != "Roadmap" {
		t.Fatalf("unexpected board payload: %+v", board)
	}

	resp = performRequest(t, env.app, http.MethodGet, "/api/boards/"+boardID, nil, authHeaders(friendToken))
	assertStatus(t, resp, http.StatusForbidden)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "no access to this board")

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/boards/"+boardID+"/share", map[string]any{"email": "friend@example.com"}, authHeaders(strangerToken))
	assertStatus(t, resp, http.StatusForbidden)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "only the board owner can share it")

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/boards/"+boardID+"/share", map[string]any{"email": "FRIEND@example.com"}, authHeaders(ownerToken))
	assertStatus(t, resp, http.StatusOK)

	event, ok := env.publisher.find(realtime.UserRoom(friend.ID.String()), realtime.EventBoardShared)
	if !ok {
		t.Fatalf("expected board:shared in friend's room")
	}
	if payload := payloadJSON(t, event.Payload); payload["boardId"] != boardID || payload["title"] != "Roadmap" {
		t.Fatalf("unexpected board:shared payload: %+v", payload)
	}

	resp = performJSONRequest(t, env.app, http.MethodPut, "/api/boards/"+boardID, map[string]any{"title": "Roadmap 2"}, authHeaders(friendToken))
	assertStatus(t, resp, http.StatusOK)
	if title := decodeJSONMap(t, resp)["board"].(map[string]any)["title"]; title != "Roadmap 2" {
		t.Fatalf("expected shared member to edit title, got %v", title)
	}
	if _, ok := env.publisher.find(realtime.TeamBoardRoom(boardID), realtime.EventTeamBoardUpdate); !ok {
		t.Fatalf("expected teamBoard:update for board edit")
	}

	resp = performRequest(t, env.app, http.MethodGet, "/api/boards", nil, authHeaders(friendToken))
	assertStatus(t, resp, http.StatusOK)
	if boards := decodeJSONMap(t, resp)["boards"].([]any); len(boards) != 1 {
		t.Fatalf("expected shared board listed for friend, got %d", len(boards))
	}

	resp = performRequest(t, env.app, http.MethodGet, "/api/boards", nil, authHeaders(strangerToken))
	assertStatus(t, resp, http.StatusOK)
	if boards := decodeJSONMap(t, resp)["boards"].([]any); len(boards) != 0 {
		t.Fatalf("expected no boards for stranger, got %d", len(boards))
	}

	waitForAudit(t, env)
	var activities []models.Activity
	env.db.Where("user_id = ? AND action = ?", friend.ID, "board.share").Find(&activities)
	if len(activities) != 1 || activities[0].Message != `Test User shared "Roadmap" with you` {
		t.Fatalf("expected share activity for friend, got %+v", activities)
	}
}

func TestBoardDefaultsAndErrors(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "owner@example.com", "password123", models.UserRoleUser)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/boards", map[string]any{}, authHeaders(token))
	assertStatus(t, resp, http.StatusCreated)
	board := decodeJSONMap(t, resp)["board"].(map[string]any)
	if board["title"] != models.DefaultBoardTitle {
		t.Fatalf("expected default title, got %v", board["title"])
	}

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/boards/"+board["id"].(string)+"/share", map[string]any{"email": "nobody@example.com"}, authHeaders(token))
	assertStatus(t, resp, http.StatusNotFound)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "user not found")

	resp = performRequest(t, env.app, http.MethodGet, "/api/boards/9a4b3f5e-0000-4000-8000-000000000000", nil, authHeaders(token))
	assertStatus(t, resp, http.StatusNotFound)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "board not found")
}
