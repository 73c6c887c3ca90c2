package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/oauth2"

	"github.com/engram-notes/engram-backend/internal/crypto"
	"github.com/engram-notes/engram-backend/internal/model"
)

// AuthService handles the GitHub OAuth2 flow and token management. Tokens
// are encrypted at rest; the credential never outlives the user's record.
type AuthService struct {
	oauthConfig  *oauth2.Config
	dynamoClient *dynamodb.Client
	tableName    string
	encryptor    crypto.Encryptor

	// In-memory fallback when no DynamoDB client is configured.
	tokens map[string]model.UserToken
	mu     sync.RWMutex
}

// NewAuthService creates a new AuthService. The oauthConfig should be
// constructed by the caller (e.g., from environment variables).
func NewAuthService(oauthConfig *oauth2.Config, dynamoClient *dynamodb.Client, tableName string, encryptor crypto.Encryptor) *AuthService {
	return &AuthService{
		oauthConfig:  oauthConfig,
		dynamoClient: dynamoClient,
		tableName:    tableName,
		encryptor:    encryptor,
		tokens:       make(map[string]model.UserToken),
	}
}

// Config returns the OAuth2 config.
func (s *AuthService) Config() *oauth2.Config {
	return s.oauthConfig
}

// GenerateAuthURL returns the URL to redirect the user to for GitHub login.
func (s *AuthService) GenerateAuthURL(state string) string {
	return s.oauthConfig.AuthCodeURL(state)
}

// ExchangeCode exchanges the authorization code for an access token.
func (s *AuthService) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return s.oauthConfig.Exchange(ctx, code)
}

// SaveToken encrypts the token and stores it. GitHub only issues a refresh
// token when token expiration is enabled for the app, so that field may
// stay empty.
func (s *AuthService) SaveToken(ctx context.Context, userID, login string, token *oauth2.Token) error {
	if token.AccessToken == "" {
		return fmt.Errorf("no access token in response")
	}

	encryptedAccess, err := s.encryptor.Encrypt(ctx, token.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	var encryptedRefresh string
	if token.RefreshToken != "" {
		encryptedRefresh, err = s.encryptor.Encrypt(ctx, token.RefreshToken)
		if err != nil {
			return fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
	}

	userToken := model.UserToken{
		UserID:                userID,
		Login:                 login,
		EncryptedAccessToken:  encryptedAccess,
		EncryptedRefreshToken: encryptedRefresh,
		UpdatedAt:             time.Now(),
	}

	if s.dynamoClient == nil {
		s.mu.Lock()
		s.tokens[userID] = userToken
		s.mu.Unlock()
		return nil
	}

	item, err := attributevalue.MarshalMap(userToken)
	if err != nil {
		return fmt.Errorf("failed to marshal user token: %w", err)
	}

	_, err = s.dynamoClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save token to DynamoDB: %w", err)
	}

	return nil
}

// GetUserToken retrieves the UserToken record.
func (s *AuthService) GetUserToken(ctx context.Context, userID string) (*model.UserToken, error) {
	var userToken model.UserToken

	if s.dynamoClient == nil {
		s.mu.RLock()
		t, ok := s.tokens[userID]
		s.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("user not found")
		}
		userToken = t
	} else {
		out, err := s.dynamoClient.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				"user_id": &types.AttributeValueMemberS{Value: userID},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get item from DynamoDB: %w", err)
		}
		if out.Item == nil {
			return nil, fmt.Errorf("user not found")
		}

		if err := attributevalue.UnmarshalMap(out.Item, &userToken); err != nil {
			return nil, fmt.Errorf("failed to unmarshal user token: %w", err)
		}
	}
	return &userToken, nil
}

// DeleteToken removes the user's token record (logout).
func (s *AuthService) DeleteToken(ctx context.Context, userID string) error {
	if s.dynamoClient == nil {
		s.mu.Lock()
		delete(s.tokens, userID)
		s.mu.Unlock()
		return nil
	}

	_, err := s.dynamoClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// GetClient returns an authenticated http.Client for the user. With a
// refresh token present it refreshes through the OAuth endpoint; plain
// GitHub OAuth tokens do not expire and are used as-is.
func (s *AuthService) GetClient(ctx context.Context, userID string) (*http.Client, error) {
	userToken, err := s.GetUserToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.encryptor.Decrypt(ctx, userToken.EncryptedAccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}

	if userToken.EncryptedRefreshToken == "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
		return oauth2.NewClient(ctx, src), nil
	}

	refreshToken, err := s.encryptor.Decrypt(ctx, userToken.EncryptedRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-1 * time.Hour), // Force refresh
	}
	return oauth2.NewClient(ctx, s.oauthConfig.TokenSource(ctx, token)), nil
}
