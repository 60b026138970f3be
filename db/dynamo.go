package db

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/pkg/errors"
)

// DynamoOptions contains the configuration for the DynamoDB client
type DynamoOptions struct {
	// Endpoint overrides the AWS endpoint, e.g. for DynamoDB Local
	Endpoint string
	Region   string
}

// NewDynamo returns a DynamoDB client using the default AWS credential chain.
// With an Endpoint override, static test credentials are used instead.
func NewDynamo(ctx context.Context, option DynamoOptions) (*dynamodb.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if option.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(option.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Cannot load AWS config")
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if option.Endpoint == "" {
			return
		}
		o.BaseEndpoint = aws.String(option.Endpoint)
		if o.Region == "" {
			o.Region = "us-east-1"
		}
		o.Credentials = credentials.NewStaticCredentialsProvider("test", "test", "")
	}), nil
}
