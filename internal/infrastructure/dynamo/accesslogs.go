package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/meditrack-api/internal/domain"
)

// AccessLogRepo provides typed DynamoDB operations for the access log table.
// PK: log_id; GSI profile_id-created_at-index serves the per-profile timeline.
// Entries are append-only: the only permitted mutation is MarkNotified.
type AccessLogRepo struct {
	client    *dynamodb.Client
	tableName string
}

const logTimelineIndex = "profile_id-created_at-index"

func NewAccessLogRepo(client *dynamodb.Client, tableName string) *AccessLogRepo {
	return &AccessLogRepo{client: client, tableName: tableName}
}

func (r *AccessLogRepo) Put(ctx context.Context, e *domain.AccessLogEntry) error {
	item, err := attributevalue.MarshalMap(e)
	if err != nil {
		return fmt.Errorf("marshal access log entry: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *AccessLogRepo) Get(ctx context.Context, logID string) (*domain.AccessLogEntry, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("log_id", logID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("access log entry not found: %w", domain.ErrNotFound)
	}
	var e domain.AccessLogEntry
	if err := attributevalue.UnmarshalMap(out.Item, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListByProfile returns up to limit entries for a profile, newest first.
func (r *AccessLogRepo) ListByProfile(ctx context.Context, profileID string, limit int32) ([]domain.AccessLogEntry, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(logTimelineIndex),
		KeyConditionExpression: aws.String("profile_id = :pid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pid": &types.AttributeValueMemberS{Value: profileID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(limit),
	})
	if err != nil {
		return nil, err
	}
	var entries []domain.AccessLogEntry
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// HasNotifiedSince reports whether any entry for (profile, event) with
// notified=true was created at or after since. Drives the notification cooldown.
func (r *AccessLogRepo) HasNotifiedSince(ctx context.Context, profileID string, event domain.AccessEvent, since time.Time) (bool, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(logTimelineIndex),
		KeyConditionExpression: aws.String("profile_id = :pid AND created_at >= :since"),
		FilterExpression:       aws.String("event_type = :evt AND notified = :yes"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pid":   &types.AttributeValueMemberS{Value: profileID},
			":since": &types.AttributeValueMemberS{Value: since.UTC().Format(time.RFC3339)},
			":evt":   &types.AttributeValueMemberS{Value: string(event)},
			":yes":   &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return false, err
	}
	return len(out.Items) > 0, nil
}

// MarkNotified flips the notified flag on a single entry. No other field is
// ever updated; entries stay immutable otherwise.
func (r *AccessLogRepo) MarkNotified(ctx context.Context, logID string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldNotified: true})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("log_id", logID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

// DeleteByProfile removes every entry for a profile. Called only from the
// profile-deletion cascade.
func (r *AccessLogRepo) DeleteByProfile(ctx context.Context, profileID string) error {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(logTimelineIndex),
		KeyConditionExpression: aws.String("profile_id = :pid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pid": &types.AttributeValueMemberS{Value: profileID},
		},
	})
	if err != nil {
		return err
	}
	var firstErr error
	for _, item := range out.Items {
		idAttr, ok := item["log_id"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key:       strKey("log_id", idAttr.Value),
		}); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CountByEvent scans the table and aggregates entry counts per event kind.
func (r *AccessLogRepo) CountByEvent(ctx context.Context) (map[domain.AccessEvent]int64, error) {
	counts := make(map[domain.AccessEvent]int64)
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:            aws.String(r.tableName),
			ProjectionExpression: aws.String("event_type"),
			ExclusiveStartKey:    startKey,
		})
		if err != nil {
			return nil, err
		}
		for _, item := range out.Items {
			if ev, ok := item["event_type"].(*types.AttributeValueMemberS); ok {
				counts[domain.AccessEvent(ev.Value)]++
			}
		}
		if out.LastEvaluatedKey == nil {
			return counts, nil
		}
		startKey = out.LastEvaluatedKey
	}
}
