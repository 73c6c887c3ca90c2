package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"
	gh "github.com/google/go-github/v68/github"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/engram-notes/engram-backend/internal/auth"
	"github.com/engram-notes/engram-backend/internal/engram"
)

// AuthHandler handles authentication requests.
type AuthHandler struct {
	authService   *auth.AuthService
	engramService *engram.Service
	jwtSecret     string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(s *auth.AuthService, es *engram.Service, jwtSecret string) *AuthHandler {
	return &AuthHandler{authService: s, engramService: es, jwtSecret: jwtSecret}
}

// Login initiates the GitHub OAuth2 flow.
func (h *AuthHandler) Login(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	// TODO: persist the state in a short-lived cookie and verify it in
	// Callback to close the CSRF hole.
	state := uuid.NewString()
	url := h.authService.GenerateAuthURL(state)

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location": url,
		},
	}, nil
}

// Callback handles the OAuth2 callback from GitHub: exchange the code,
// look up the GitHub account, persist the encrypted token, bootstrap the
// engram directory and hand out a session JWT.
func (h *AuthHandler) Callback(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	code := req.QueryStringParameters["code"]
	if code == "" {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Missing code"}, nil
	}

	token, err := h.authService.ExchangeCode(ctx, code)
	if err != nil {
		fmt.Printf("ExchangeCode error: %v\n", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Failed to exchange code"}, nil
	}

	client := gh.NewClient(oauth2.NewClient(ctx, oauth2.StaticTokenSource(token)))
	ghUser, _, err := client.Users.Get(ctx, "")
	if err != nil {
		fmt.Printf("Users.Get error: %v\n", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Failed to get user info"}, nil
	}

	userID := fmt.Sprintf("%d", ghUser.GetID())
	login := ghUser.GetLogin()

	if err := h.authService.SaveToken(ctx, userID, login, token); err != nil {
		fmt.Printf("SaveToken error: %v\n", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Failed to save token"}, nil
	}

	// First-login bootstrap; the engram endpoints retry this themselves,
	// so a failure here must not block the login.
	if created, err := h.engramService.EnsureDirectory(ctx, userID); err != nil {
		fmt.Printf("EnsureDirectory error: %v\n", err)
	} else if created {
		fmt.Printf("Bootstrapped engram directory for %s\n", login)
	}

	return h.sessionResponse(userID, login, 24*time.Hour)
}

// DemoLogin creates a throwaway identity served by the in-memory store
// (DEV_MODE only).
func (h *AuthHandler) DemoLogin(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if os.Getenv("DEV_MODE") != "true" {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusForbidden, Body: "Demo login disabled"}, nil
	}

	userID := "demo-user-" + uuid.NewString()

	dummyToken := &oauth2.Token{AccessToken: "demo-token"}
	if err := h.authService.SaveToken(ctx, userID, "demo", dummyToken); err != nil {
		fmt.Printf("DemoLogin SaveToken error: %v\n", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Failed to save demo token"}, nil
	}

	if _, err := h.engramService.EnsureDirectory(ctx, userID); err != nil {
		fmt.Printf("DemoLogin EnsureDirectory error: %v\n", err)
	}

	return h.sessionResponse(userID, "demo", 1*time.Hour)
}

// Logout drops the stored credential, the cached repository resolution
// and the session cookie.
func (h *AuthHandler) Logout(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}

	h.engramService.Forget(userID)
	if err := h.authService.DeleteToken(ctx, userID); err != nil {
		fmt.Printf("DeleteToken error: %v\n", err)
	}

	expired := fmt.Sprintf("%s=; HttpOnly; Path=/; Max-Age=0; SameSite=%s; Secure", sessionCookie, cookieSameSite())
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusNoContent,
		MultiValueHeaders: map[string][]string{
			"Set-Cookie": {expired},
		},
	}, nil
}

// GetUser returns the current user's profile.
func (h *AuthHandler) GetUser(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}

	token, err := h.authService.GetUserToken(ctx, userID)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Failed to get user profile"}, nil
	}

	return jsonResponse(http.StatusOK, map[string]string{
		"id":    token.UserID,
		"login": token.Login,
	}), nil
}

// sessionResponse signs a session JWT, sets the cookie and redirects to
// the frontend.
func (h *AuthHandler) sessionResponse(userID, login string, ttl time.Duration) (events.APIGatewayProxyResponse, error) {
	claims := jwt.MapClaims{
		"sub":   userID,
		"login": login,
		"exp":   time.Now().Add(ttl).Unix(),
	}
	jwtToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := jwtToken.SignedString([]byte(h.jwtSecret))
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Failed to sign token"}, nil
	}

	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:3000"
	}

	cookie := fmt.Sprintf("%s=%s; HttpOnly; Path=/; Max-Age=%d; SameSite=%s; Secure",
		sessionCookie, signedToken, int(ttl.Seconds()), cookieSameSite())

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location": fmt.Sprintf("%s/?success=true", frontendURL),
		},
		MultiValueHeaders: map[string][]string{
			"Set-Cookie": {cookie},
		},
	}, nil
}

func cookieSameSite() string {
	if os.Getenv("DEV_MODE") == "true" {
		return "Lax"
	}
	// Frontend and API sit on different origins in production; strict
	// policies drop the cookie without None.
	return "None"
}
