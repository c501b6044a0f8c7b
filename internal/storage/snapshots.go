package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/ignite/engagement-tracker/internal/domain"
)

type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

const snapshotSK = "SNAPSHOT"

// snapshotItem is the table layout: PK CAMPAIGN#<id>, SK SNAPSHOT, then the
// snapshot fields flattened.
type snapshotItem struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
	domain.CampaignAnalyticsSnapshot
}

// SnapshotTable keeps analytics snapshots in a single DynamoDB table, one
// item per campaign. PutItem overwrites, so the last writer wins.
type SnapshotTable struct {
	client    dynamoAPI
	tableName string
}

func NewSnapshotTable(cfg aws.Config, tableName string) *SnapshotTable {
	return &SnapshotTable{client: dynamodb.NewFromConfig(cfg), tableName: tableName}
}

func snapshotPK(campaignID int64) string {
	return "CAMPAIGN#" + strconv.FormatInt(campaignID, 10)
}

func (t *SnapshotTable) GetSnapshot(ctx context.Context, campaignID int64) (*domain.CampaignAnalyticsSnapshot, error) {
	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(t.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: snapshotPK(campaignID)},
			"SK": &types.AttributeValueMemberS{Value: snapshotSK},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting snapshot from DynamoDB: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, domain.ErrNotFound
	}

	var item snapshotItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &item.CampaignAnalyticsSnapshot, nil
}

func (t *SnapshotTable) UpsertSnapshot(ctx context.Context, s domain.CampaignAnalyticsSnapshot) error {
	av, err := attributevalue.MarshalMap(snapshotItem{
		PK:                        snapshotPK(s.CampaignID),
		SK:                        snapshotSK,
		CampaignAnalyticsSnapshot: s,
	})
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	if _, err := t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.tableName),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("putting snapshot to DynamoDB: %w", err)
	}
	return nil
}
