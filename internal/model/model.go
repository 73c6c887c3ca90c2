package model

import "time"

// UserToken represents a user's encrypted GitHub OAuth token stored in
// DynamoDB. The repository resolved for the user is deliberately not
// persisted here; it is cached in-process for the session only.
type UserToken struct {
	UserID                string    `json:"user_id" dynamodbav:"user_id"`
	Login                 string    `json:"login" dynamodbav:"login"`
	EncryptedAccessToken  string    `json:"encrypted_access_token" dynamodbav:"encrypted_access_token"`
	EncryptedRefreshToken string    `json:"encrypted_refresh_token,omitempty" dynamodbav:"encrypted_refresh_token,omitempty"`
	UpdatedAt             time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// EditingSession represents an advisory editing lock on a note title.
// Purely a UI hint: the write path's sha check is the only lost-update
// guard.
type EditingSession struct {
	Title     string `json:"title" dynamodbav:"title"`
	UserID    string `json:"user_id" dynamodbav:"user_id"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix timestamp)
}

// Engram is the note representation used in the API. Content is base64
// encoded at this boundary.
type Engram struct {
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
	SHA     string `json:"sha,omitempty"`
}
