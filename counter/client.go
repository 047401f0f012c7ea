package counter

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Client is the subset of the DynamoDB API used by counters.
// *dynamodb.Client satisfies it.
type Client interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

var _ Client = (*dynamodb.Client)(nil)

// ClientFactory builds the shared client on first use.
type ClientFactory func(ctx context.Context) (Client, error)

// DefaultClientFactory loads the default AWS configuration (environment,
// shared config files, instance role) and returns a DynamoDB client for it.
func DefaultClientFactory(ctx context.Context) (Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}

// ClientManager owns the shared DynamoDB client handle.
//
// The handle is created lazily with the factory unless one was supplied or
// set. Per-call overrides bypass the manager entirely and are never cached.
type ClientManager struct {
	mu      sync.Mutex
	client  Client
	factory ClientFactory
}

// NewClientManager creates a manager holding client (which may be nil).
// A nil factory means DefaultClientFactory.
func NewClientManager(client Client, factory ClientFactory) *ClientManager {
	if factory == nil {
		factory = DefaultClientFactory
	}
	return &ClientManager{
		client:  client,
		factory: factory,
	}
}

// Resolve returns override when it is non-nil. Otherwise it returns the
// shared client, creating it on first use. A factory failure is returned
// and not cached, so the next call tries again.
func (m *ClientManager) Resolve(ctx context.Context, override Client) (Client, error) {
	if override != nil {
		return override, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		client, err := m.factory(ctx)
		if err != nil {
			return nil, err
		}
		m.client = client
	}
	return m.client, nil
}

// SetClient replaces the shared client for all later operations.
func (m *ClientManager) SetClient(client Client) {
	m.mu.Lock()
	m.client = client
	m.mu.Unlock()
}

// Client returns the shared client, creating it if needed.
func (m *ClientManager) Client(ctx context.Context) (Client, error) {
	return m.Resolve(ctx, nil)
}
