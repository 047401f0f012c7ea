package counter

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Option customizes a single Increment or GetLastValue call.
type Option func(*callOptions)

type callOptions struct {
	tableName      string
	keyAttribute   string
	countAttribute string
	amount         int64
	consistentRead bool
	client         Client

	updateOverrides []func(*dynamodb.UpdateItemInput)
	getOverrides    []func(*dynamodb.GetItemInput)

	onSuccess  func(int64)
	onError    func(error)
	onComplete func(int64, error)
}

func (c *Counters) callOptions(opts []Option) callOptions {
	o := callOptions{
		tableName:      c.config.TableName,
		keyAttribute:   c.config.KeyAttribute,
		countAttribute: c.config.CountAttribute,
		amount:         1,
		consistentRead: !c.config.EventuallyConsistent,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithTableName overrides the table for this call.
func WithTableName(name string) Option {
	return func(o *callOptions) {
		if name != "" {
			o.tableName = name
		}
	}
}

// WithKeyAttribute overrides the key attribute name for this call.
func WithKeyAttribute(name string) Option {
	return func(o *callOptions) {
		if name != "" {
			o.keyAttribute = name
		}
	}
}

// WithCountAttribute overrides the count attribute name for this call.
func WithCountAttribute(name string) Option {
	return func(o *callOptions) {
		if name != "" {
			o.countAttribute = name
		}
	}
}

// WithAmount sets the amount added by Increment. Negative amounts decrement.
// Default: 1
func WithAmount(amount int64) Option {
	return func(o *callOptions) {
		o.amount = amount
	}
}

// WithConsistentRead sets the read consistency of GetLastValue.
func WithConsistentRead(consistent bool) Option {
	return func(o *callOptions) {
		o.consistentRead = consistent
	}
}

// WithClient issues this call through client instead of the shared one.
func WithClient(client Client) Option {
	return func(o *callOptions) {
		o.client = client
	}
}

// WithUpdateOverride edits the UpdateItem request after it is built.
// Only TableName, ReturnConsumedCapacity and ReturnItemCollectionMetrics may
// be changed; touching any other field fails the call with ErrProtectedOverride.
func WithUpdateOverride(fn func(*dynamodb.UpdateItemInput)) Option {
	return func(o *callOptions) {
		if fn != nil {
			o.updateOverrides = append(o.updateOverrides, fn)
		}
	}
}

// WithGetOverride edits the GetItem request after it is built.
// Only TableName, ConsistentRead and ReturnConsumedCapacity may be changed.
func WithGetOverride(fn func(*dynamodb.GetItemInput)) Option {
	return func(o *callOptions) {
		if fn != nil {
			o.getOverrides = append(o.getOverrides, fn)
		}
	}
}

// OnSuccess registers a callback run with the value when the call succeeds.
func OnSuccess(cb func(value int64)) Option {
	return func(o *callOptions) {
		o.onSuccess = cb
	}
}

// OnError registers a callback run with the error when the call fails.
func OnError(cb func(err error)) Option {
	return func(o *callOptions) {
		o.onError = cb
	}
}

// OnComplete registers a callback run when the call finishes either way.
func OnComplete(cb func(value int64, err error)) Option {
	return func(o *callOptions) {
		o.onComplete = cb
	}
}
