// Package ddbfake provides an in-memory stand-in for the DynamoDB operations
// used by counters. It understands only the request shapes counters produce:
// "ADD #name :value" updates and comma separated projection expressions.
package ddbfake

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type item = map[string]types.AttributeValue

// Client is an in-memory DynamoDB. The zero value is not usable; call New.
type Client struct {
	mu     sync.Mutex
	tables map[string]map[string]item

	// failures queued by FailNext, consumed one per call.
	failures []error

	updateCalls int
	getCalls    int
	lastUpdate  *dynamodb.UpdateItemInput
	lastGet     *dynamodb.GetItemInput
}

// New creates an empty fake.
func New() *Client {
	return &Client{tables: make(map[string]map[string]item)}
}

// FailNext makes the next UpdateItem or GetItem call return err.
func (c *Client) FailNext(err error) {
	c.mu.Lock()
	c.failures = append(c.failures, err)
	c.mu.Unlock()
}

// Put stores an item verbatim under the hash key named keyAttr, creating
// the table if needed.
func (c *Client) Put(table, keyAttr string, it map[string]types.AttributeValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table(table)[keyString(item{keyAttr: it[keyAttr]})] = copyItem(it)
}

// Item returns a copy of the item with the given key, or nil.
func (c *Client) Item(table string, key map[string]types.AttributeValue) map[string]types.AttributeValue {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.tables[table][keyString(key)]
	if !ok {
		return nil
	}
	return copyItem(it)
}

// UpdateCalls returns the number of UpdateItem calls received.
func (c *Client) UpdateCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateCalls
}

// GetCalls returns the number of GetItem calls received.
func (c *Client) GetCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getCalls
}

// LastUpdate returns the most recent UpdateItem input.
func (c *Client) LastUpdate() *dynamodb.UpdateItemInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdate
}

// LastGet returns the most recent GetItem input.
func (c *Client) LastGet() *dynamodb.GetItemInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastGet
}

// UpdateItem applies an "ADD" update expression atomically.
func (c *Client) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.updateCalls++
	c.lastUpdate = params
	if err := c.popFailure(); err != nil {
		return nil, err
	}

	parts := strings.Fields(aws.ToString(params.UpdateExpression))
	if len(parts) != 3 || parts[0] != "ADD" {
		return nil, validationError("unsupported update expression %q", aws.ToString(params.UpdateExpression))
	}
	attr := resolveName(parts[1], params.ExpressionAttributeNames)
	delta, ok := params.ExpressionAttributeValues[parts[2]].(*types.AttributeValueMemberN)
	if !ok {
		return nil, validationError("value %s must be a number", parts[2])
	}
	d, err := strconv.ParseInt(delta.Value, 10, 64)
	if err != nil {
		return nil, validationError("value %s: %v", parts[2], err)
	}

	table := c.table(aws.ToString(params.TableName))
	k := keyString(params.Key)
	it, exists := table[k]
	if !exists {
		it = copyItem(params.Key)
	}

	var current int64
	if existing, ok := it[attr]; ok {
		n, ok := existing.(*types.AttributeValueMemberN)
		if !ok {
			return nil, validationError("operand type mismatch for %s", attr)
		}
		current, err = strconv.ParseInt(n.Value, 10, 64)
		if err != nil {
			return nil, validationError("stored %s: %v", attr, err)
		}
	}

	next := &types.AttributeValueMemberN{Value: strconv.FormatInt(current+d, 10)}
	it[attr] = next
	table[k] = it

	out := &dynamodb.UpdateItemOutput{}
	if params.ReturnValues == types.ReturnValueUpdatedNew || params.ReturnValues == types.ReturnValueAllNew {
		out.Attributes = item{attr: &types.AttributeValueMemberN{Value: next.Value}}
	}
	return out, nil
}

// GetItem returns the item, restricted to the projection if one is given.
func (c *Client) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.getCalls++
	c.lastGet = params
	if err := c.popFailure(); err != nil {
		return nil, err
	}

	it, ok := c.tables[aws.ToString(params.TableName)][keyString(params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}

	projection := aws.ToString(params.ProjectionExpression)
	if projection == "" {
		return &dynamodb.GetItemOutput{Item: copyItem(it)}, nil
	}
	out := item{}
	for _, p := range strings.Split(projection, ",") {
		name := resolveName(strings.TrimSpace(p), params.ExpressionAttributeNames)
		if v, ok := it[name]; ok {
			out[name] = v
		}
	}
	return &dynamodb.GetItemOutput{Item: out}, nil
}

// CreateTable registers an empty table.
func (c *Client) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := aws.ToString(params.TableName)
	if _, ok := c.tables[name]; ok {
		return nil, &types.ResourceInUseException{Message: aws.String("Table already exists: " + name)}
	}
	c.tables[name] = make(map[string]item)
	return &dynamodb.CreateTableOutput{
		TableDescription: &types.TableDescription{
			TableName:   params.TableName,
			TableStatus: types.TableStatusActive,
			KeySchema:   params.KeySchema,
		},
	}, nil
}

// DescribeTable reports every known table as active.
func (c *Client) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := aws.ToString(params.TableName)
	if _, ok := c.tables[name]; !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("Requested resource not found: " + name)}
	}
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{
			TableName:   params.TableName,
			TableStatus: types.TableStatusActive,
		},
	}, nil
}

// HasTable reports whether the table exists.
func (c *Client) HasTable(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.tables[name]
	return ok
}

func (c *Client) table(name string) map[string]item {
	t, ok := c.tables[name]
	if !ok {
		t = make(map[string]item)
		c.tables[name] = t
	}
	return t
}

func (c *Client) popFailure() error {
	if len(c.failures) == 0 {
		return nil
	}
	err := c.failures[0]
	c.failures = c.failures[1:]
	return err
}

func resolveName(name string, names map[string]string) string {
	if strings.HasPrefix(name, "#") {
		if resolved, ok := names[name]; ok {
			return resolved
		}
	}
	return name
}

// keyString identifies an item by its string key attributes.
func keyString(key item) string {
	var parts []string
	for name, v := range key {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			parts = append(parts, name+"="+s.Value)
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

func copyItem(it item) item {
	out := make(item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("ValidationException: "+format, args...)
}
