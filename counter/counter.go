package counter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	countName   = "#count"
	amountValue = ":amount"
)

// Counters issues atomic counter operations against a DynamoDB table.
type Counters struct {
	clients *ClientManager
	config  Config
	logger  *slog.Logger
}

// New creates Counters using client as the shared handle. A nil client is
// created on first use with DefaultClientFactory.
func New(client Client, config Config) *Counters {
	return NewWithManager(NewClientManager(client, nil), config)
}

// NewWithManager creates Counters that resolve their client through manager.
func NewWithManager(manager *ClientManager, config Config) *Counters {
	config.validate()
	if manager == nil {
		manager = NewClientManager(nil, nil)
	}
	return &Counters{
		clients: manager,
		config:  config,
		logger:  slog.Default(),
	}
}

// SetLogger sets the logger. A nil logger restores slog.Default().
func (c *Counters) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	c.logger = logger
}

// Config returns the effective configuration.
func (c *Counters) Config() Config {
	return c.config
}

// SetClient replaces the shared client for operations started afterwards.
func (c *Counters) SetClient(client Client) {
	c.clients.SetClient(client)
}

// Client returns the shared client, creating it if needed.
func (c *Counters) Client(ctx context.Context) (Client, error) {
	return c.clients.Client(ctx)
}

// Increment atomically adds the configured amount (default 1) to the counter
// and settles the returned Result with the new value. The counter item is
// created on its first increment.
//
// Values are bounded to int64. DynamoDB numbers are wider, so an increment
// that leaves the int64 range is still applied by the store; it fails with
// ErrValueOutOfRange.
//
// The request runs on its own goroutine. Cancelling ctx after Increment
// returns does not abort it.
func (c *Counters) Increment(ctx context.Context, counterID string, opts ...Option) *Result {
	o := c.callOptions(opts)
	result := newResult()
	o.attach(result)

	if counterID == "" {
		result.reject(ErrEmptyCounterID)
		return result
	}

	input, err := updateInput(counterID, o)
	if err != nil {
		result.reject(err)
		return result
	}

	client, err := c.clients.Resolve(ctx, o.client)
	if err != nil {
		c.logger.Error("failed to resolve dynamodb client", "counterID", counterID, "error", err)
		result.reject(&StoreError{Op: "ResolveClient", CounterID: counterID, Err: err})
		return result
	}

	ctx = context.WithoutCancel(ctx)
	go func() {
		out, err := client.UpdateItem(ctx, input)
		if err != nil {
			c.logger.Warn("increment failed",
				"counterID", counterID,
				"table", aws.ToString(input.TableName),
				"error", err,
			)
			result.reject(&StoreError{Op: "UpdateItem", CounterID: counterID, Err: err})
			return
		}

		var (
			value int64
			found bool
		)
		if out == nil {
			err = fmt.Errorf("%w: empty UpdateItem response", ErrMalformedResponse)
		} else {
			value, found, err = parseCount(out.Attributes, o.countAttribute)
		}
		if err == nil && !found {
			err = fmt.Errorf("%w: %s missing from UpdateItem response", ErrMalformedResponse, o.countAttribute)
		}
		if err != nil {
			c.logger.Error("unexpected increment response",
				"counterID", counterID,
				"error", err,
			)
			result.reject(err)
			return
		}

		c.logger.Debug("counter incremented",
			"counterID", counterID,
			"amount", o.amount,
			"value", value,
		)
		result.resolve(value)
	}()

	return result
}

// Add increments the counter and waits for the new value.
func (c *Counters) Add(ctx context.Context, counterID string, opts ...Option) (int64, error) {
	return c.Increment(ctx, counterID, opts...).Wait(ctx)
}

// GetLastValue reads the current value of the counter. A counter that was
// never incremented, or whose item lacks the count attribute, reads as 0.
func (c *Counters) GetLastValue(ctx context.Context, counterID string, opts ...Option) *Result {
	o := c.callOptions(opts)
	result := newResult()
	o.attach(result)

	if counterID == "" {
		result.reject(ErrEmptyCounterID)
		return result
	}

	input, err := getInput(counterID, o)
	if err != nil {
		result.reject(err)
		return result
	}

	client, err := c.clients.Resolve(ctx, o.client)
	if err != nil {
		c.logger.Error("failed to resolve dynamodb client", "counterID", counterID, "error", err)
		result.reject(&StoreError{Op: "ResolveClient", CounterID: counterID, Err: err})
		return result
	}

	ctx = context.WithoutCancel(ctx)
	go func() {
		out, err := client.GetItem(ctx, input)
		if err != nil {
			c.logger.Warn("read failed",
				"counterID", counterID,
				"table", aws.ToString(input.TableName),
				"error", err,
			)
			result.reject(&StoreError{Op: "GetItem", CounterID: counterID, Err: err})
			return
		}

		var (
			value int64
			found bool
		)
		if out == nil {
			err = fmt.Errorf("%w: empty GetItem response", ErrMalformedResponse)
		} else {
			value, found, err = parseCount(out.Item, o.countAttribute)
		}
		if err != nil {
			c.logger.Error("unexpected read response",
				"counterID", counterID,
				"error", err,
			)
			result.reject(err)
			return
		}

		c.logger.Debug("counter read",
			"counterID", counterID,
			"found", found,
			"value", value,
		)
		result.resolve(value)
	}()

	return result
}

// Get reads the counter and waits for the value.
func (c *Counters) Get(ctx context.Context, counterID string, opts ...Option) (int64, error) {
	return c.GetLastValue(ctx, counterID, opts...).Wait(ctx)
}

// attach registers the option callbacks ahead of any caller observers.
func (o callOptions) attach(r *Result) {
	if o.onSuccess != nil {
		r.OnSuccess(o.onSuccess)
	}
	if o.onError != nil {
		r.OnFailure(o.onError)
	}
	if o.onComplete != nil {
		r.OnSettled(o.onComplete)
	}
}

// counterKey builds the primary key of a counter item.
func counterKey(keyAttribute, counterID string) (map[string]types.AttributeValue, error) {
	id, err := attributevalue.Marshal(counterID)
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	return map[string]types.AttributeValue{keyAttribute: id}, nil
}

// baseUpdateInput builds the conditionless atomic-add request.
func baseUpdateInput(counterID string, o callOptions) (*dynamodb.UpdateItemInput, error) {
	key, err := counterKey(o.keyAttribute, counterID)
	if err != nil {
		return nil, err
	}
	return &dynamodb.UpdateItemInput{
		TableName:                aws.String(o.tableName),
		Key:                      key,
		UpdateExpression:         aws.String("ADD " + countName + " " + amountValue),
		ExpressionAttributeNames: map[string]string{countName: o.countAttribute},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			amountValue: &types.AttributeValueMemberN{Value: strconv.FormatInt(o.amount, 10)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	}, nil
}

// updateInput builds the request and applies caller overrides, rejecting
// overrides that change what the request does.
func updateInput(counterID string, o callOptions) (*dynamodb.UpdateItemInput, error) {
	input, err := baseUpdateInput(counterID, o)
	if err != nil || len(o.updateOverrides) == 0 {
		return input, err
	}

	for _, fn := range o.updateOverrides {
		fn(input)
	}

	want, _ := baseUpdateInput(counterID, o)
	switch {
	case !reflect.DeepEqual(input.Key, want.Key):
		return nil, fmt.Errorf("%w: Key", ErrProtectedOverride)
	case aws.ToString(input.UpdateExpression) != aws.ToString(want.UpdateExpression):
		return nil, fmt.Errorf("%w: UpdateExpression", ErrProtectedOverride)
	case input.ConditionExpression != nil:
		return nil, fmt.Errorf("%w: ConditionExpression", ErrProtectedOverride)
	case !reflect.DeepEqual(input.ExpressionAttributeNames, want.ExpressionAttributeNames):
		return nil, fmt.Errorf("%w: ExpressionAttributeNames", ErrProtectedOverride)
	case !reflect.DeepEqual(input.ExpressionAttributeValues, want.ExpressionAttributeValues):
		return nil, fmt.Errorf("%w: ExpressionAttributeValues", ErrProtectedOverride)
	case input.ReturnValues != want.ReturnValues:
		return nil, fmt.Errorf("%w: ReturnValues", ErrProtectedOverride)
	case len(input.AttributeUpdates) > 0 || len(input.Expected) > 0:
		return nil, fmt.Errorf("%w: legacy update parameters", ErrProtectedOverride)
	}
	if aws.ToString(input.TableName) == "" {
		input.TableName = want.TableName
	}
	return input, nil
}

// baseGetInput builds the point read projecting only the count attribute.
func baseGetInput(counterID string, o callOptions) (*dynamodb.GetItemInput, error) {
	key, err := counterKey(o.keyAttribute, counterID)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemInput{
		TableName:                aws.String(o.tableName),
		Key:                      key,
		ProjectionExpression:     aws.String(countName),
		ExpressionAttributeNames: map[string]string{countName: o.countAttribute},
		ConsistentRead:           aws.Bool(o.consistentRead),
	}, nil
}

// getInput builds the read request and applies caller overrides.
func getInput(counterID string, o callOptions) (*dynamodb.GetItemInput, error) {
	input, err := baseGetInput(counterID, o)
	if err != nil || len(o.getOverrides) == 0 {
		return input, err
	}

	for _, fn := range o.getOverrides {
		fn(input)
	}

	want, _ := baseGetInput(counterID, o)
	switch {
	case !reflect.DeepEqual(input.Key, want.Key):
		return nil, fmt.Errorf("%w: Key", ErrProtectedOverride)
	case aws.ToString(input.ProjectionExpression) != aws.ToString(want.ProjectionExpression):
		return nil, fmt.Errorf("%w: ProjectionExpression", ErrProtectedOverride)
	case !reflect.DeepEqual(input.ExpressionAttributeNames, want.ExpressionAttributeNames):
		return nil, fmt.Errorf("%w: ExpressionAttributeNames", ErrProtectedOverride)
	case len(input.AttributesToGet) > 0:
		return nil, fmt.Errorf("%w: AttributesToGet", ErrProtectedOverride)
	}
	if aws.ToString(input.TableName) == "" {
		input.TableName = want.TableName
	}
	return input, nil
}

// parseCount extracts the integral count attribute from an item.
// found is false when the attribute is absent, which is not an error here.
func parseCount(item map[string]types.AttributeValue, countAttribute string) (value int64, found bool, err error) {
	av, ok := item[countAttribute]
	if !ok || av == nil {
		return 0, false, nil
	}

	n, ok := av.(*types.AttributeValueMemberN)
	if !ok || n == nil {
		return 0, true, fmt.Errorf("%w: %s is %T, not a number", ErrMalformedResponse, countAttribute, av)
	}
	if err := attributevalue.Unmarshal(n, &value); err != nil {
		if _, perr := strconv.ParseInt(n.Value, 10, 64); errors.Is(perr, strconv.ErrRange) {
			return 0, true, fmt.Errorf("%w: %s = %s", ErrValueOutOfRange, countAttribute, n.Value)
		}
		return 0, true, fmt.Errorf("%w: %s = %q: %v", ErrMalformedResponse, countAttribute, n.Value, err)
	}
	return value, true, nil
}
