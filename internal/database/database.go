package database

import (
	"context"
	"fmt"

	"roleplay-training-backend/internal/env"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-redis/redis/v8"
)

type DynamoDBClient struct {
	svc *dynamodb.Client
}

func NewDynamoDBClient(cfg env.Config) (*DynamoDBClient, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.AWSRegion),
	}

	if cfg.AWSID != "" && cfg.AWSSecret != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(cfg.AWSID, cfg.AWSSecret, cfg.AWSToken)),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	clientOpts := []func(*dynamodb.Options){}
	if cfg.DynamoDBEndpoint != "" {
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		})
	}

	return &DynamoDBClient{
		svc: dynamodb.NewFromConfig(awsCfg, clientOpts...),
	}, nil
}

// Database bundles the durable store with the optional Redis connection used
// for rate limiting and room fan-out.
type Database struct {
	Client *DynamoDBClient
	Redis  *redis.Client
}

func NewDatabase(cfg env.Config) (*Database, error) {
	dbClient, err := NewDynamoDBClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("init dynamodb client: %w", err)
	}

	return &Database{
		Client: dbClient,
		Redis:  NewRedisClient(cfg),
	}, nil
}

// NewRedisClient returns nil when no Redis URL is configured.
func NewRedisClient(cfg env.Config) *redis.Client {
	if cfg.ChatRedisURL == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.ChatRedisURL,
		Password: cfg.ChatRedisPass,
		DB:       0,
	})
}

func (d *Database) Close() error {
	if d == nil || d.Redis == nil {
		return nil
	}
	return d.Redis.Close()
}
