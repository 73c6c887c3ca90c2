package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/engram-notes/engram-backend/internal/session"
)

// SessionHandler handles advisory editing-lock requests.
type SessionHandler struct {
	lockManager session.Locker
	jwtSecret   string
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(lockManager session.Locker, jwtSecret string) *SessionHandler {
	return &SessionHandler{lockManager: lockManager, jwtSecret: jwtSecret}
}

// AcquireLock
func (h *SessionHandler) AcquireLock(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}

	title := req.PathParameters["title"]
	if title == "" {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Missing title"}, nil
	}

	sess, err := h.lockManager.AcquireLock(ctx, title, userID)
	if err != nil {
		if err.Error() == "note is locked by another user" {
			return events.APIGatewayProxyResponse{StatusCode: http.StatusConflict, Body: "Engram is locked by another user"}, nil
		}
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Failed to acquire lock"}, nil
	}

	body, _ := json.Marshal(sess)
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Body: string(body)}, nil
}

// Heartbeat
func (h *SessionHandler) Heartbeat(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}

	title := req.PathParameters["title"]
	if title == "" {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Missing title"}, nil
	}

	sess, err := h.lockManager.Heartbeat(ctx, title, userID)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNotFound, Body: "Lock not found or expired"}, nil
	}

	body, _ := json.Marshal(sess)
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Body: string(body)}, nil
}

// ReleaseLock
func (h *SessionHandler) ReleaseLock(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}

	title := req.PathParameters["title"]
	if title == "" {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Missing title"}, nil
	}

	err = h.lockManager.ReleaseLock(ctx, title, userID)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Failed to release lock"}, nil
	}

	return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}, nil
}
