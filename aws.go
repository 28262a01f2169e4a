package luzidos

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/workmailmessageflow"
)

// AWSClients bundles the service clients behind the production collaborators.
type AWSClients struct {
	S3          *s3.Client
	DynamoDB    *dynamodb.Client
	EventBridge *eventbridge.Client
	SES         *ses.Client
	WorkMail    *workmailmessageflow.Client
}

// NewAWSClients loads the default credential chain for the configured region
// and constructs all service clients.
func NewAWSClients(ctx context.Context, region string) (*AWSClients, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return &AWSClients{
		S3:          s3.NewFromConfig(cfg),
		DynamoDB:    dynamodb.NewFromConfig(cfg),
		EventBridge: eventbridge.NewFromConfig(cfg),
		SES:         ses.NewFromConfig(cfg),
		WorkMail:    workmailmessageflow.NewFromConfig(cfg),
	}, nil
}

// NewProductionStack wires the full set of collaborators for a deployment:
// S3 document store, DynamoDB identity lookup, EventBridge scheduler, and
// SES/WorkMail transport.
func NewProductionStack(ctx context.Context, config *Config) (DocumentStore, IdentityLookup, *Scheduler, MailTransport, error) {
	if config.Bucket == "" {
		return nil, nil, nil, nil, fmt.Errorf("bucket is required")
	}
	clients, err := NewAWSClients(ctx, config.Region)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	scheduler, err := NewScheduler(SchedulerOptions{
		Bus:       NewEventBridgeBus(clients.EventBridge),
		Target:    config.TimebombTarget,
		Alignment: config.Alignment(),
		Logger:    NewLogger(),
	})
	if err != nil {
		return nil, nil, nil, nil, err
	}
	store := NewS3DocumentStore(clients.S3, config.Bucket)
	identity := NewDynamoDBIdentityLookup(clients.DynamoDB, config.IdentityTable)
	transport := NewSESTransport(clients.SES, clients.WorkMail)
	return store, identity, scheduler, transport, nil
}
