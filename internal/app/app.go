package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	"github.com/engram-notes/engram-backend/internal/auth"
	"github.com/engram-notes/engram-backend/internal/crypto"
	"github.com/engram-notes/engram-backend/internal/engram"
	"github.com/engram-notes/engram-backend/internal/handler"
	"github.com/engram-notes/engram-backend/internal/secret"
	"github.com/engram-notes/engram-backend/internal/session"
	"github.com/engram-notes/engram-backend/internal/store"
	"github.com/engram-notes/engram-backend/internal/store/github"
	"github.com/engram-notes/engram-backend/internal/store/memory"
)

// HybridProvider delegates to either the GitHub or the in-memory provider
// based on user ID.
type HybridProvider struct {
	githubProvider store.Provider
	memoryProvider store.Provider
}

func (h *HybridProvider) GetStore(ctx context.Context, userID string) (store.Store, error) {
	if strings.HasPrefix(userID, "demo-user-") {
		return h.memoryProvider.GetStore(ctx, userID)
	}
	return h.githubProvider.GetStore(ctx, userID)
}

// App holds the dependencies for the Lambda function.
type App struct {
	authHandler      *handler.AuthHandler
	engramHandler    *handler.EngramHandler
	sessionHandler   *handler.SessionHandler
	apiGatewaySecret string
}

// NewApp initializes the application dependencies.
func NewApp(ctx context.Context) *App {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		panic(fmt.Sprintf("unable to load SDK config, %v", err))
	}

	// DynamoDB Client
	dynamoClient := dynamodb.NewFromConfig(cfg)

	// KMS Client
	var kmsService crypto.Encryptor
	if os.Getenv("DEV_MODE") == "true" {
		kmsService = crypto.NewMockEncryptor()
		fmt.Println("Using MockEncryptor (DEV_MODE=true)")
	} else {
		kmsClient := kms.NewFromConfig(cfg)
		kmsKeyID := os.Getenv("KMS_KEY_ID")
		if kmsKeyID == "" {
			kmsKeyID = "alias/engram-token-key"
		}
		kmsService = crypto.NewKMSService(kmsClient, kmsKeyID)
	}

	// Auth Service (UserTokens Table)
	userTokensTable := os.Getenv("USER_TOKENS_TABLE")
	if userTokensTable == "" {
		userTokensTable = "UserTokens"
	}

	// ---------- Secret Resolver ----------
	var resolver secret.Resolver
	if os.Getenv("DEV_MODE") == "true" {
		resolver = secret.NewEnvResolver()
		fmt.Println("Using EnvResolver (DEV_MODE=true)")
	} else {
		resolver = secret.NewSSMResolver(ssm.NewFromConfig(cfg))
		fmt.Println("Using SSMResolver (SSM Parameter Store)")
	}

	// Resolve secrets from SSM Parameter Store (or env vars in DEV_MODE)
	githubClientSecretParam := os.Getenv("GITHUB_CLIENT_SECRET_PARAM")
	if githubClientSecretParam == "" {
		githubClientSecretParam = "/engram/github-client-secret"
	}
	githubClientSecret, err := resolver.GetSecret(ctx, githubClientSecretParam)
	if err != nil {
		log.Printf("WARNING: failed to resolve GITHUB_CLIENT_SECRET: %v", err)
	}

	jwtSecretParam := os.Getenv("JWT_SECRET_PARAM")
	if jwtSecretParam == "" {
		jwtSecretParam = "/engram/jwt-secret"
	}
	jwtSecret, err := resolver.GetSecret(ctx, jwtSecretParam)
	if err != nil {
		log.Printf("WARNING: failed to resolve JWT_SECRET: %v", err)
		jwtSecret = "default-dev-secret"
	}

	apiGatewaySecretParam := os.Getenv("API_GATEWAY_SECRET_PARAM")
	if apiGatewaySecretParam == "" {
		apiGatewaySecretParam = "/engram/api-gateway-secret"
	}
	apiGatewaySecret, err := resolver.GetSecret(ctx, apiGatewaySecretParam)
	if err != nil {
		log.Printf("WARNING: failed to resolve API_GATEWAY_SECRET: %v", err)
	}

	// OAuth2 Config
	redirectURL := os.Getenv("GITHUB_REDIRECT_URL")
	if redirectURL == "" {
		if os.Getenv("DEV_MODE") == "true" {
			redirectURL = "http://localhost:8080/auth/callback"
		} else {
			frontendURL := os.Getenv("FRONTEND_URL")
			if frontendURL == "" {
				frontendURL = "http://localhost:3000"
			}
			redirectURL = frontendURL + "/api/auth/callback"
		}
	}

	oauthConfig := &oauth2.Config{
		ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		ClientSecret: githubClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"repo", "read:user"},
		Endpoint:     githuboauth.Endpoint,
	}

	authService := auth.NewAuthService(oauthConfig, dynamoClient, userTokensTable, kmsService)

	// Store Provider
	var storeProvider store.Provider
	if os.Getenv("DEV_MODE") == "true" {
		storeProvider = memory.NewProvider()
		fmt.Println("Using MemoryProvider (DEV_MODE=true)")
	} else {
		storeProvider = &HybridProvider{
			githubProvider: github.NewProvider(authService),
			memoryProvider: memory.NewProvider(),
		}
	}

	engramService := engram.NewService(storeProvider)

	// Auth Handler (needs Auth Service and Engram Service for bootstrap)
	authHandler := handler.NewAuthHandler(authService, engramService, jwtSecret)

	// Engram Handler
	engramHandler := handler.NewEngramHandler(engramService, jwtSecret)

	// Session Manager (EditingSessions Table)
	sessionsTable := os.Getenv("EDITING_SESSIONS_TABLE")
	if sessionsTable == "" {
		sessionsTable = "EditingSessions"
	}
	var lockManager session.Locker
	if os.Getenv("DEV_MODE") == "true" {
		lockManager = session.NewMockLocker()
	} else {
		lockManager = session.NewLockManager(dynamoClient, sessionsTable)
	}
	sessionHandler := handler.NewSessionHandler(lockManager, jwtSecret)

	return &App{
		authHandler:      authHandler,
		engramHandler:    engramHandler,
		sessionHandler:   sessionHandler,
		apiGatewaySecret: apiGatewaySecret,
	}
}

// HandleRequest routes API Gateway requests to the appropriate handler.
func (app *App) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	path := req.Path
	method := req.HTTPMethod

	fmt.Printf("Request: %s %s\n", method, path)

	// CORS Preflight
	if method == "OPTIONS" {
		return corsResponse(events.APIGatewayProxyResponse{StatusCode: 204}), nil
	}

	// Security: Verify Request Origin (CloudFront only)
	// Skip check for OPTIONS (preflight) and if DEV_MODE is true
	if os.Getenv("DEV_MODE") != "true" {
		if req.Headers["X-Origin-Verify"] != app.apiGatewaySecret && req.Headers["x-origin-verify"] != app.apiGatewaySecret {
			fmt.Printf("Security Block: Missing or invalid X-Origin-Verify header\n")
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusForbidden,
				Body:       "Forbidden: Access denied",
			}, nil
		}
	}

	// Strip /api prefix if present (for CloudFront proxying)
	if strings.HasPrefix(path, "/api") {
		path = strings.TrimPrefix(path, "/api")
	}

	if req.PathParameters == nil {
		req.PathParameters = make(map[string]string)
	}

	// /auth
	if strings.HasPrefix(path, "/auth") {
		if path == "/auth/login" && method == "GET" {
			return corsResponse(must(app.authHandler.Login(ctx, req))), nil
		}
		if path == "/auth/callback" && method == "GET" {
			return corsResponse(must(app.authHandler.Callback(ctx, req))), nil
		}
		if path == "/auth/demo-login" && method == "GET" {
			return corsResponse(must(app.authHandler.DemoLogin(ctx, req))), nil
		}
		if path == "/auth/logout" && method == "POST" {
			return corsResponse(must(app.authHandler.Logout(ctx, req))), nil
		}
		if path == "/auth/user" && method == "GET" {
			return corsResponse(must(app.authHandler.GetUser(ctx, req))), nil
		}
	}

	// /engrams
	if strings.HasPrefix(path, "/engrams") {
		if path == "/engrams" && method == "GET" {
			return corsResponse(must(app.engramHandler.ListEngrams(ctx, req))), nil
		}
		if path == "/engrams" && method == "POST" {
			return corsResponse(must(app.engramHandler.SaveEngram(ctx, req))), nil
		}
		if path == "/engrams/titles" && method == "GET" {
			return corsResponse(must(app.engramHandler.ListTitles(ctx, req))), nil
		}
		if path == "/engrams/delete" && method == "POST" {
			return corsResponse(must(app.engramHandler.DeleteEngrams(ctx, req))), nil
		}
		if path == "/engrams/check" && method == "POST" {
			return corsResponse(must(app.engramHandler.CheckEngram(ctx, req))), nil
		}
		if path == "/engrams/search" && method == "GET" {
			return corsResponse(must(app.engramHandler.SearchEngrams(ctx, req))), nil
		}
	}

	// /sessions
	if strings.HasPrefix(path, "/sessions/") {
		parts := strings.Split(strings.TrimPrefix(path, "/sessions/"), "/")
		if len(parts) >= 2 {
			req.PathParameters["title"] = parts[0]
			action := parts[1]

			if action == "lock" {
				if method == "POST" {
					return corsResponse(must(app.sessionHandler.AcquireLock(ctx, req))), nil
				}
				if method == "DELETE" {
					return corsResponse(must(app.sessionHandler.ReleaseLock(ctx, req))), nil
				}
			}
			if action == "heartbeat" && method == "POST" {
				return corsResponse(must(app.sessionHandler.Heartbeat(ctx, req))), nil
			}
		}
	}

	return corsResponse(events.APIGatewayProxyResponse{
		StatusCode: http.StatusNotFound,
		Body:       fmt.Sprintf("Not Found: %s %s", method, path),
	}), nil
}

// corsResponse adds CORS headers to an API Gateway response.
func corsResponse(resp events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	resp.Headers["Access-Control-Allow-Origin"] = os.Getenv("FRONTEND_URL")
	if resp.Headers["Access-Control-Allow-Origin"] == "" {
		resp.Headers["Access-Control-Allow-Origin"] = "http://localhost:3000"
	}
	resp.Headers["Access-Control-Allow-Credentials"] = "true"
	resp.Headers["Access-Control-Allow-Methods"] = "GET,POST,PUT,DELETE,OPTIONS"
	resp.Headers["Access-Control-Allow-Headers"] = "Content-Type,Authorization"
	return resp
}

// must unwraps a handler response, ignoring the error.
func must(resp events.APIGatewayProxyResponse, err error) events.APIGatewayProxyResponse {
	if err != nil {
		fmt.Printf("Handler error: %v\n", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Internal Server Error"}
	}
	return resp
}
