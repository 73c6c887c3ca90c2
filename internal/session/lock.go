package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/engram-notes/engram-backend/internal/model"
)

const DefaultTTL = 5 * time.Minute

// LockManager implements Locker on a DynamoDB table with TTL expiry.
type LockManager struct {
	client      *dynamodb.Client
	tableName   string
	ttlDuration time.Duration
}

// NewLockManager creates a new LockManager.
func NewLockManager(client *dynamodb.Client, tableName string) *LockManager {
	return &LockManager{
		client:      client,
		tableName:   tableName,
		ttlDuration: DefaultTTL,
	}
}

// AcquireLock attempts to acquire a lock on a note for the given user.
// It succeeds if no lock exists, the existing lock has expired, or the
// existing lock belongs to the same user (refresh).
func (m *LockManager) AcquireLock(ctx context.Context, title, userID string) (*model.EditingSession, error) {
	now := time.Now().Unix()

	session := model.EditingSession{
		Title:     title,
		UserID:    userID,
		ExpiresAt: now + int64(m.ttlDuration.Seconds()),
	}

	item, err := attributevalue.MarshalMap(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = m.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(m.tableName),
		Item:      item,
		ConditionExpression: aws.String(
			"attribute_not_exists(title) OR expires_at < :now OR user_id = :user_id",
		),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now)},
			":user_id": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return nil, fmt.Errorf("note is locked by another user")
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	return &session, nil
}

// Heartbeat extends the lock TTL if the user owns the lock.
func (m *LockManager) Heartbeat(ctx context.Context, title, userID string) (*model.EditingSession, error) {
	expiresAt := time.Now().Unix() + int64(m.ttlDuration.Seconds())

	out, err := m.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(m.tableName),
		Key: map[string]types.AttributeValue{
			"title": &types.AttributeValueMemberS{Value: title},
		},
		UpdateExpression:    aws.String("SET expires_at = :expires_at"),
		ConditionExpression: aws.String("user_id = :user_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expires_at": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expiresAt)},
			":user_id":    &types.AttributeValueMemberS{Value: userID},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send heartbeat: %w", err)
	}

	var session model.EditingSession
	if err := attributevalue.UnmarshalMap(out.Attributes, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// ReleaseLock removes the lock if the user owns it.
func (m *LockManager) ReleaseLock(ctx context.Context, title, userID string) error {
	_, err := m.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(m.tableName),
		Key: map[string]types.AttributeValue{
			"title": &types.AttributeValueMemberS{Value: title},
		},
		ConditionExpression: aws.String("user_id = :user_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":user_id": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// GetLockStatus retrieves the current lock status. A nil session means
// the note is unlocked (or the lock expired).
func (m *LockManager) GetLockStatus(ctx context.Context, title string) (*model.EditingSession, error) {
	out, err := m.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(m.tableName),
		Key: map[string]types.AttributeValue{
			"title": &types.AttributeValueMemberS{Value: title},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get lock status: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var session model.EditingSession
	if err := attributevalue.UnmarshalMap(out.Item, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if session.ExpiresAt < time.Now().Unix() {
		return nil, nil
	}
	return &session, nil
}
