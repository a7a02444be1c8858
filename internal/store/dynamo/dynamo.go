// Package dynamo keeps scheduled posts in a DynamoDB table keyed by id.
package dynamo

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"inspiro/internal/logging"
	"inspiro/internal/model"
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	dynamodb.ScanAPIClient
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

type Store struct {
	api   API
	table string
}

// New connects using the default AWS credential chain. A non-empty endpoint
// overrides the service URL, e.g. for DynamoDB Local.
func New(ctx context.Context, table, endpoint string) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewWithAPI(client, table), nil
}

func NewWithAPI(api API, table string) *Store {
	return &Store{api: api, table: table}
}

// Load scans the table. Items that fail to decode or validate are dropped
// with a warning. Posts come back ordered by creation time.
func (s *Store) Load(ctx context.Context) ([]model.ScheduledPost, error) {
	out := []model.ScheduledPost{}
	p := dynamodb.NewScanPaginator(s.api, &dynamodb.ScanInput{TableName: aws.String(s.table)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table, err)
		}
		for _, item := range page.Items {
			var post model.ScheduledPost
			err := attributevalue.UnmarshalMap(item, &post)
			if err == nil {
				err = post.Validate()
			}
			if err != nil {
				logging.Warn("post_record_dropped", map[string]any{"table": s.table, "error": err.Error()})
				continue
			}
			out = append(out, post)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Save writes every post and deletes table items absent from posts.
func (s *Store) Save(ctx context.Context, posts []model.ScheduledPost) error {
	existing, err := s.ids(ctx)
	if err != nil {
		return err
	}
	for _, post := range posts {
		item, err := attributevalue.MarshalMap(post)
		if err != nil {
			return fmt.Errorf("marshal post %s: %w", post.ID, err)
		}
		if _, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: item}); err != nil {
			return fmt.Errorf("put post %s: %w", post.ID, err)
		}
		delete(existing, post.ID)
	}
	for id := range existing {
		key, err := attributevalue.MarshalMap(map[string]string{"id": id})
		if err != nil {
			return err
		}
		if _, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{TableName: aws.String(s.table), Key: key}); err != nil {
			return fmt.Errorf("delete post %s: %w", id, err)
		}
	}
	return nil
}

func (s *Store) ids(ctx context.Context) (map[string]bool, error) {
	out := map[string]bool{}
	p := dynamodb.NewScanPaginator(s.api, &dynamodb.ScanInput{
		TableName:            aws.String(s.table),
		ProjectionExpression: aws.String("id"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table, err)
		}
		var keys []struct {
			ID string `dynamodbav:"id"`
		}
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &keys); err != nil {
			return nil, err
		}
		for _, k := range keys {
			out[k.ID] = true
		}
	}
	return out, nil
}

func (s *Store) Close() error { return nil }
