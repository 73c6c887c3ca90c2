package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/engram-notes/engram-backend/internal/engram"
	"github.com/engram-notes/engram-backend/internal/model"
	"github.com/engram-notes/engram-backend/internal/store"
)

// EngramHandler exposes the synchronization layer over HTTP: read-all,
// save-one, delete-many, freshness check and search. It owns the mapping
// from the store error taxonomy to response codes.
type EngramHandler struct {
	service   *engram.Service
	jwtSecret string
}

// NewEngramHandler creates a new EngramHandler.
func NewEngramHandler(service *engram.Service, jwtSecret string) *EngramHandler {
	return &EngramHandler{service: service, jwtSecret: jwtSecret}
}

// errorResponse maps a service error to an API Gateway response.
func errorResponse(op string, err error) events.APIGatewayProxyResponse {
	fmt.Printf("%s error: %v\n", op, err)

	var rateErr *store.RateLimitError
	switch {
	case errors.Is(err, store.ErrAuth):
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "GitHub credential rejected"}
	case errors.Is(err, store.ErrConflict):
		return events.APIGatewayProxyResponse{StatusCode: http.StatusConflict, Body: "Note changed since it was read"}
	case errors.Is(err, store.ErrNotFound):
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNotFound, Body: "Note not found"}
	case errors.Is(err, store.ErrNoRepository):
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnprocessableEntity, Body: "No repository accessible for this account"}
	case errors.As(err, &rateErr):
		headers := map[string]string{}
		if !rateErr.Reset.IsZero() {
			headers["Retry-After"] = rateErr.Reset.UTC().Format(http.TimeFormat)
		}
		return events.APIGatewayProxyResponse{StatusCode: http.StatusTooManyRequests, Body: "Rate limited by GitHub", Headers: headers}
	default:
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadGateway, Body: fmt.Sprintf("Remote store error: %v", err)}
	}
}

func jsonResponse(status int, v interface{}) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(v)
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

func toAPI(notes []engram.Note, withContent bool) []model.Engram {
	out := make([]model.Engram, 0, len(notes))
	for _, n := range notes {
		e := model.Engram{Title: n.Title, SHA: n.SHA}
		if withContent {
			e.Content = base64.StdEncoding.EncodeToString(n.Content)
		}
		out = append(out, e)
	}
	return out
}

// readAll fetches every note, bootstrapping the directory on first use so
// a brand-new account sees the default note instead of an error.
func (h *EngramHandler) readAll(ctx context.Context, userID string) ([]engram.Note, error) {
	notes, err := h.service.ReadAll(ctx, userID)
	if err == nil || !errors.Is(err, store.ErrDirectoryNotFound) {
		return notes, err
	}

	if _, err := h.service.EnsureDirectory(ctx, userID); err != nil {
		return nil, err
	}
	return h.service.ReadAll(ctx, userID)
}

// ListEngrams returns every note with its content (base64).
func (h *EngramHandler) ListEngrams(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: err.Error()}, nil
	}

	notes, err := h.readAll(ctx, userID)
	if err != nil {
		return errorResponse("ReadAll", err), nil
	}
	return jsonResponse(http.StatusOK, toAPI(notes, true)), nil
}

// ListTitles returns the directory listing without content.
func (h *EngramHandler) ListTitles(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: err.Error()}, nil
	}

	refs, err := h.service.List(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrDirectoryNotFound) {
			return jsonResponse(http.StatusOK, []model.Engram{}), nil
		}
		return errorResponse("List", err), nil
	}

	out := make([]model.Engram, 0, len(refs))
	for _, r := range refs {
		out = append(out, model.Engram{Title: r.Title, SHA: r.SHA})
	}
	return jsonResponse(http.StatusOK, out), nil
}

// SaveEngram creates or updates one note. Content arrives base64 encoded.
func (h *EngramHandler) SaveEngram(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: err.Error()}, nil
	}

	var input struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		IsNew   bool   `json:"is_new"`
	}
	if err := json.Unmarshal([]byte(req.Body), &input); err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Invalid request body"}, nil
	}
	if !validTitle(input.Title) {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Invalid title"}, nil
	}

	content, err := base64.StdEncoding.DecodeString(input.Content)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Content must be base64"}, nil
	}

	sha, err := h.service.Save(ctx, userID, input.Title, content, input.IsNew)
	if err != nil {
		return errorResponse("Save", err), nil
	}
	return jsonResponse(http.StatusOK, model.Engram{Title: input.Title, SHA: sha}), nil
}

// DeleteEngrams removes a set of notes in a single commit.
func (h *EngramHandler) DeleteEngrams(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: err.Error()}, nil
	}

	var input struct {
		Titles  []string `json:"titles"`
		Message string   `json:"message"`
	}
	if err := json.Unmarshal([]byte(req.Body), &input); err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Invalid request body"}, nil
	}
	if len(input.Titles) == 0 {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "No titles given"}, nil
	}
	for _, title := range input.Titles {
		if !validTitle(title) {
			return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Invalid title"}, nil
		}
	}
	if input.Message == "" {
		input.Message = fmt.Sprintf("delete %d engram(s)", len(input.Titles))
	}

	if err := h.service.Delete(ctx, userID, input.Titles, input.Message); err != nil {
		return errorResponse("Delete", err), nil
	}
	return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}, nil
}

// CheckEngram reports whether the caller's copy of a note is still
// current, by comparing shas against the latest listing.
func (h *EngramHandler) CheckEngram(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: err.Error()}, nil
	}

	var input struct {
		Title string `json:"title"`
		SHA   string `json:"sha"`
	}
	if err := json.Unmarshal([]byte(req.Body), &input); err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Invalid request body"}, nil
	}

	current, err := h.service.CurrentSHA(ctx, userID, input.Title)
	if err != nil {
		return errorResponse("CurrentSHA", err), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"fresh": current == input.SHA,
		"sha":   current,
	}), nil
}

// SearchEngrams filters the full note set by a case-insensitive substring
// match on title or content.
func (h *EngramHandler) SearchEngrams(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: err.Error()}, nil
	}

	query := strings.ToLower(req.QueryStringParameters["q"])
	if query == "" {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Missing query"}, nil
	}

	notes, err := h.readAll(ctx, userID)
	if err != nil {
		return errorResponse("Search", err), nil
	}

	matched := notes[:0]
	for _, n := range notes {
		if strings.Contains(strings.ToLower(n.Title), query) ||
			strings.Contains(strings.ToLower(string(n.Content)), query) {
			matched = append(matched, n)
		}
	}
	return jsonResponse(http.StatusOK, toAPI(matched, true)), nil
}

// validTitle rejects titles that would escape the engram directory or
// collide with the file extension.
func validTitle(title string) bool {
	if title == "" || strings.Contains(title, "/") || strings.Contains(title, "\\") {
		return false
	}
	if title == "." || title == ".." {
		return false
	}
	return !strings.HasSuffix(title, engram.Ext)
}
