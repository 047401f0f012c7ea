package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TableClient is the subset of the DynamoDB API used by CreateTable.
type TableClient interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	dynamodb.DescribeTableAPIClient
}

// CreateTable provisions an on-demand counter table keyed by cfg.KeyAttribute
// and waits up to maxWait for it to become active. An existing table is
// left untouched.
func CreateTable(ctx context.Context, client TableClient, cfg Config, maxWait time.Duration) error {
	cfg.validate()

	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(cfg.TableName),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(cfg.KeyAttribute), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(cfg.KeyAttribute), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return fmt.Errorf("create table %s: %w", cfg.TableName, err)
		}
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(cfg.TableName),
	}, maxWait); err != nil {
		return fmt.Errorf("wait for table %s: %w", cfg.TableName, err)
	}
	return nil
}
