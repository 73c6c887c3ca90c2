package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/engram-notes/engram-backend/internal/handler"
	"github.com/engram-notes/engram-backend/internal/model"
	"github.com/engram-notes/engram-backend/internal/session"
)

func TestSessionHandler_AcquireAndRelease(t *testing.T) {
	h := handler.NewSessionHandler(session.NewMockLocker(), testJWTSecret)
	ctx := context.Background()

	req := makeRequest("POST", "/sessions/groceries/lock", "")
	req.PathParameters["title"] = "groceries"

	resp, err := h.AcquireLock(ctx, req)
	if err != nil {
		t.Fatalf("AcquireLock returned error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 OK, got %d: %s", resp.StatusCode, resp.Body)
	}

	var sess model.EditingSession
	if err := json.Unmarshal([]byte(resp.Body), &sess); err != nil {
		t.Fatalf("Failed to unmarshal session: %v", err)
	}
	if sess.Title != "groceries" || sess.UserID != testUserID {
		t.Errorf("Unexpected session: %+v", sess)
	}

	relReq := makeRequest("DELETE", "/sessions/groceries/lock", "")
	relReq.PathParameters["title"] = "groceries"
	relResp, err := h.ReleaseLock(ctx, relReq)
	if err != nil {
		t.Fatalf("ReleaseLock returned error: %v", err)
	}
	if relResp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", relResp.StatusCode)
	}
}

func TestSessionHandler_AcquireLockedByOther(t *testing.T) {
	locker := session.NewMockLocker()
	h := handler.NewSessionHandler(locker, testJWTSecret)
	ctx := context.Background()

	if _, err := locker.AcquireLock(ctx, "groceries", "someone-else"); err != nil {
		t.Fatalf("Setup lock failed: %v", err)
	}

	req := makeRequest("POST", "/sessions/groceries/lock", "")
	req.PathParameters["title"] = "groceries"
	resp, err := h.AcquireLock(ctx, req)
	if err != nil {
		t.Fatalf("AcquireLock returned error: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 Conflict, got %d: %s", resp.StatusCode, resp.Body)
	}
}

func TestSessionHandler_MissingTitle(t *testing.T) {
	h := handler.NewSessionHandler(session.NewMockLocker(), testJWTSecret)

	req := makeRequest("POST", "/sessions//lock", "")
	resp, err := h.AcquireLock(context.Background(), req)
	if err != nil {
		t.Fatalf("AcquireLock returned error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestSessionHandler_Heartbeat(t *testing.T) {
	h := handler.NewSessionHandler(session.NewMockLocker(), testJWTSecret)
	ctx := context.Background()

	req := makeRequest("POST", "/sessions/groceries/lock", "")
	req.PathParameters["title"] = "groceries"
	if resp, _ := h.AcquireLock(ctx, req); resp.StatusCode != http.StatusOK {
		t.Fatal("Setup acquire failed")
	}

	hbReq := makeRequest("POST", "/sessions/groceries/heartbeat", "")
	hbReq.PathParameters["title"] = "groceries"
	resp, err := h.Heartbeat(ctx, hbReq)
	if err != nil {
		t.Fatalf("Heartbeat returned error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 OK, got %d: %s", resp.StatusCode, resp.Body)
	}
}

func TestSessionHandler_HeartbeatWithoutLock(t *testing.T) {
	h := handler.NewSessionHandler(session.NewMockLocker(), testJWTSecret)

	req := makeRequest("POST", "/sessions/groceries/heartbeat", "")
	req.PathParameters["title"] = "groceries"
	resp, err := h.Heartbeat(context.Background(), req)
	if err != nil {
		t.Fatalf("Heartbeat returned error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}
