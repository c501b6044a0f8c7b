// Package storage selects and opens the configured store backends. It also
// holds the AWS-backed pieces: shared SDK configuration and the DynamoDB
// snapshot store.
package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// AWSOptions selects region and credentials. Static keys win over a shared
// profile; with neither, the default chain (env, instance role) is used.
type AWSOptions struct {
	Region    string
	Profile   string
	AccessKey string
	SecretKey string
}

// LoadAWSConfig resolves an SDK config for SES, SQS and DynamoDB clients.
func LoadAWSConfig(ctx context.Context, o AWSOptions) (aws.Config, error) {
	region := o.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	switch {
	case o.AccessKey != "" && o.SecretKey != "":
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")))
	case o.Profile != "":
		opts = append(opts, config.WithSharedConfigProfile(o.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}
