package customer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultDynamoTable is the table used when none is configured
const DefaultDynamoTable = "customers_records"

// DefaultTableWait bounds how long NewDynamoStore waits for the table to become ACTIVE
const DefaultTableWait = 2 * time.Minute

// poll interval of the table waiter
var tableWaitDelay = 5 * time.Second

// DynamoAPI is the subset of *dynamodb.Client used by DynamoStore
type DynamoAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoStoreOptions contains the configuration for DynamoStore
type DynamoStoreOptions struct {
	Client DynamoAPI
	Table  string
	// TableWait defaults to DefaultTableWait
	TableWait time.Duration
	Logger    *zap.Logger
}

// DynamoStore keeps customers as documents in a DynamoDB table keyed by id
type DynamoStore struct {
	DynamoStoreOptions
}

var _ Store = &DynamoStore{}

// NewDynamoStore returns a DynamoStore, creating the table if it does not exist
func NewDynamoStore(ctx context.Context, option DynamoStoreOptions) (*DynamoStore, error) {
	if option.Client == nil {
		return nil, fmt.Errorf("nil Client is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if len(option.Table) == 0 {
		option.Table = DefaultDynamoTable
	}
	if option.TableWait <= 0 {
		option.TableWait = DefaultTableWait
	}
	s := &DynamoStore{
		DynamoStoreOptions: option,
	}
	if err := s.createTableIfNotExists(ctx); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize customer.DynamoStore")
	}
	return s, nil
}

func (s *DynamoStore) createTableIfNotExists(ctx context.Context) error {
	_, err := s.Client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.Table),
		AttributeDefinitions: []ddbTypes.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: ddbTypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbTypes.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: ddbTypes.KeyTypeHash},
		},
		BillingMode: ddbTypes.BillingModePayPerRequest,
	})
	var inUse *ddbTypes.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return err
	}

	// a new table, or one another replica just created, may still be CREATING
	waiter := dynamodb.NewTableExistsWaiter(s.Client, func(o *dynamodb.TableExistsWaiterOptions) {
		o.MinDelay = tableWaitDelay
		o.MaxDelay = tableWaitDelay
	})
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.Table),
	}, s.TableWait); err != nil {
		return extErrors.Wrap(err, "Cannot wait for table to become active")
	}
	return nil
}

// List scans the whole table, following LastEvaluatedKey across pages
func (s *DynamoStore) List(ctx context.Context) ([]Customer, error) {
	results := make([]Customer, 0)

	pages := dynamodb.NewScanPaginator(s.Client, &dynamodb.ScanInput{
		TableName: aws.String(s.Table),
	})
	for pages.HasMorePages() {
		out, err := pages.NextPage(ctx)
		if err != nil {
			s.Logger.Error("DynamoDB returned error",
				zap.Error(err),
			)
			return nil, extErrors.Wrap(err, "Cannot list customers")
		}
		var page []Customer
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, extErrors.Wrap(err, "Cannot decode customers")
		}
		results = append(results, page...)
	}

	return results, nil
}

// Insert puts c as a new document. An existing id is never overwritten.
func (s *DynamoStore) Insert(ctx context.Context, c *Customer) (string, error) {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now().UTC()

	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return "", extErrors.Wrap(err, "Cannot encode customer")
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.Table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		s.Logger.Error("DynamoDB returned error",
			zap.Error(err),
		)
		return "", extErrors.Wrap(err, "Cannot create a new Customer")
	}

	return c.ID, nil
}
