package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/meditrack-api/internal/domain"
)

// ProfileRepo provides typed DynamoDB operations for the medical profiles table.
// PK: national_id.
type ProfileRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewProfileRepo(client *dynamodb.Client, tableName string) *ProfileRepo {
	return &ProfileRepo{client: client, tableName: tableName}
}

// Put creates a profile. Fails with ErrConflict when the national ID is
// already registered.
func (r *ProfileRepo) Put(ctx context.Context, p *domain.MedicalProfile) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(national_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("national_id already registered: %w", domain.ErrConflict)
		}
		return err
	}
	return nil
}

func (r *ProfileRepo) Get(ctx context.Context, nationalID string) (*domain.MedicalProfile, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("national_id", nationalID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("profile not found: %w", domain.ErrNotFound)
	}
	var p domain.MedicalProfile
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepo) Update(ctx context.Context, nationalID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("national_id", nationalID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ConditionExpression:       aws.String("attribute_exists(national_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("profile not found: %w", domain.ErrNotFound)
		}
	}
	return err
}

func (r *ProfileRepo) Delete(ctx context.Context, nationalID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("national_id", nationalID),
	})
	return err
}

// ScanPage returns a page of profiles. The cursor is the last national_id of
// the previous page; an empty returned cursor means the scan is complete.
func (r *ProfileRepo) ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.MedicalProfile, string, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
		Limit:     aws.Int32(limit),
	}
	if cursor != "" {
		input.ExclusiveStartKey = strKey("national_id", cursor)
	}
	out, err := r.client.Scan(ctx, input)
	if err != nil {
		return nil, "", err
	}
	var profiles []domain.MedicalProfile
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &profiles); err != nil {
		return nil, "", err
	}
	next := ""
	if lek, ok := out.LastEvaluatedKey["national_id"].(*types.AttributeValueMemberS); ok {
		next = lek.Value
	}
	return profiles, next, nil
}

// Count returns the number of registered profiles.
func (r *ProfileRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(r.tableName),
			Select:            types.SelectCount,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return 0, err
		}
		total += int64(out.Count)
		if out.LastEvaluatedKey == nil {
			return total, nil
		}
		startKey = out.LastEvaluatedKey
	}
}
