package counter

import (
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func testOptions(opts ...Option) callOptions {
	return New(nil, DefaultConfig()).callOptions(opts)
}

// --- Config Tests ---

func TestConfigValidate_Defaults(t *testing.T) {
	cfg := Config{}
	cfg.validate()

	if cfg.TableName != "AtomicCounters" {
		t.Errorf("expected TableName 'AtomicCounters', got %q", cfg.TableName)
	}
	if cfg.KeyAttribute != "id" {
		t.Errorf("expected KeyAttribute 'id', got %q", cfg.KeyAttribute)
	}
	if cfg.CountAttribute != "lastValue" {
		t.Errorf("expected CountAttribute 'lastValue', got %q", cfg.CountAttribute)
	}
}

func TestConfigValidate_PreservesCustomValues(t *testing.T) {
	cfg := Config{TableName: "ids", KeyAttribute: "pk", CountAttribute: "seq", EventuallyConsistent: true}
	cfg.validate()

	if cfg.TableName != "ids" || cfg.KeyAttribute != "pk" || cfg.CountAttribute != "seq" || !cfg.EventuallyConsistent {
		t.Errorf("expected custom values to be preserved, got %+v", cfg)
	}
}

// --- callOptions Tests ---

func TestCallOptions_Defaults(t *testing.T) {
	o := testOptions()

	if o.amount != 1 {
		t.Errorf("expected default amount 1, got %d", o.amount)
	}
	if o.tableName != "AtomicCounters" {
		t.Errorf("expected default table, got %q", o.tableName)
	}
	if !o.consistentRead {
		t.Error("expected consistent reads by default")
	}
	if o.client != nil {
		t.Error("expected no client override by default")
	}
}

func TestCallOptions_EmptyNamesKeepDefaults(t *testing.T) {
	o := testOptions(WithTableName(""), WithKeyAttribute(""), WithCountAttribute(""))

	if o.tableName != "AtomicCounters" || o.keyAttribute != "id" || o.countAttribute != "lastValue" {
		t.Errorf("expected defaults to survive empty overrides, got %+v", o)
	}
}

func TestCallOptions_ZeroAmountIsExplicit(t *testing.T) {
	o := testOptions(WithAmount(0))
	if o.amount != 0 {
		t.Errorf("expected explicit amount 0, got %d", o.amount)
	}
}

// --- updateInput Tests ---

func TestUpdateInput_Derived(t *testing.T) {
	o := testOptions(WithTableName("ids"), WithKeyAttribute("pk"), WithCountAttribute("seq"), WithAmount(-3))

	input, err := updateInput("Users", o)
	if err != nil {
		t.Fatalf("updateInput failed: %v", err)
	}

	if aws.ToString(input.TableName) != "ids" {
		t.Errorf("expected table 'ids', got %q", aws.ToString(input.TableName))
	}
	if v, ok := input.Key["pk"].(*types.AttributeValueMemberS); !ok || v.Value != "Users" {
		t.Errorf("expected key pk='Users', got %#v", input.Key)
	}
	if aws.ToString(input.UpdateExpression) != "ADD #count :amount" {
		t.Errorf("unexpected update expression %q", aws.ToString(input.UpdateExpression))
	}
	if input.ExpressionAttributeNames["#count"] != "seq" {
		t.Errorf("expected #count -> 'seq', got %v", input.ExpressionAttributeNames)
	}
	if v, ok := input.ExpressionAttributeValues[":amount"].(*types.AttributeValueMemberN); !ok || v.Value != "-3" {
		t.Errorf("expected :amount = -3, got %#v", input.ExpressionAttributeValues[":amount"])
	}
	if input.ReturnValues != types.ReturnValueUpdatedNew {
		t.Errorf("expected UPDATED_NEW, got %q", input.ReturnValues)
	}
	if input.ConditionExpression != nil {
		t.Error("expected no condition expression")
	}
}

func TestUpdateInput_EligibleOverridesWin(t *testing.T) {
	o := testOptions(WithUpdateOverride(func(in *dynamodb.UpdateItemInput) {
		in.TableName = aws.String("other")
		in.ReturnConsumedCapacity = types.ReturnConsumedCapacityTotal
	}))

	input, err := updateInput("Users", o)
	if err != nil {
		t.Fatalf("updateInput failed: %v", err)
	}
	if aws.ToString(input.TableName) != "other" {
		t.Errorf("expected override table 'other', got %q", aws.ToString(input.TableName))
	}
	if input.ReturnConsumedCapacity != types.ReturnConsumedCapacityTotal {
		t.Errorf("expected ReturnConsumedCapacity TOTAL, got %q", input.ReturnConsumedCapacity)
	}
}

func TestUpdateInput_ProtectedOverridesRejected(t *testing.T) {
	tests := []struct {
		name     string
		override func(*dynamodb.UpdateItemInput)
	}{
		{"key", func(in *dynamodb.UpdateItemInput) {
			in.Key = map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "other"}}
		}},
		{"key mutated in place", func(in *dynamodb.UpdateItemInput) {
			in.Key["id"].(*types.AttributeValueMemberS).Value = "other"
		}},
		{"update expression", func(in *dynamodb.UpdateItemInput) {
			in.UpdateExpression = aws.String("SET #count = :amount")
		}},
		{"condition expression", func(in *dynamodb.UpdateItemInput) {
			in.ConditionExpression = aws.String("attribute_exists(id)")
		}},
		{"attribute names", func(in *dynamodb.UpdateItemInput) {
			in.ExpressionAttributeNames["#count"] = "other"
		}},
		{"attribute values", func(in *dynamodb.UpdateItemInput) {
			in.ExpressionAttributeValues[":amount"] = &types.AttributeValueMemberN{Value: "100"}
		}},
		{"return values", func(in *dynamodb.UpdateItemInput) {
			in.ReturnValues = types.ReturnValueNone
		}},
		{"legacy attribute updates", func(in *dynamodb.UpdateItemInput) {
			in.AttributeUpdates = map[string]types.AttributeValueUpdate{"x": {}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := updateInput("Users", testOptions(WithUpdateOverride(tt.override)))
			if !errors.Is(err, ErrProtectedOverride) {
				t.Errorf("expected ErrProtectedOverride, got %v", err)
			}
		})
	}
}

func TestUpdateInput_ClearedTableNameFallsBack(t *testing.T) {
	o := testOptions(WithUpdateOverride(func(in *dynamodb.UpdateItemInput) {
		in.TableName = nil
	}))

	input, err := updateInput("Users", o)
	if err != nil {
		t.Fatalf("updateInput failed: %v", err)
	}
	if aws.ToString(input.TableName) != "AtomicCounters" {
		t.Errorf("expected default table, got %q", aws.ToString(input.TableName))
	}
}

// --- getInput Tests ---

func TestGetInput_Derived(t *testing.T) {
	o := testOptions(WithCountAttribute("seq"), WithConsistentRead(false))

	input, err := getInput("Users", o)
	if err != nil {
		t.Fatalf("getInput failed: %v", err)
	}
	if v, ok := input.Key["id"].(*types.AttributeValueMemberS); !ok || v.Value != "Users" {
		t.Errorf("expected key id='Users', got %#v", input.Key)
	}
	if aws.ToString(input.ProjectionExpression) != "#count" {
		t.Errorf("expected projection '#count', got %q", aws.ToString(input.ProjectionExpression))
	}
	if input.ExpressionAttributeNames["#count"] != "seq" {
		t.Errorf("expected #count -> 'seq', got %v", input.ExpressionAttributeNames)
	}
	if aws.ToBool(input.ConsistentRead) {
		t.Error("expected eventually consistent read")
	}
}

func TestGetInput_Overrides(t *testing.T) {
	_, err := getInput("Users", testOptions(WithGetOverride(func(in *dynamodb.GetItemInput) {
		in.ConsistentRead = aws.Bool(false)
		in.ReturnConsumedCapacity = types.ReturnConsumedCapacityIndexes
	})))
	if err != nil {
		t.Errorf("expected eligible override to pass, got %v", err)
	}

	_, err = getInput("Users", testOptions(WithGetOverride(func(in *dynamodb.GetItemInput) {
		in.ProjectionExpression = aws.String("#count, secret")
	})))
	if !errors.Is(err, ErrProtectedOverride) {
		t.Errorf("expected ErrProtectedOverride for projection change, got %v", err)
	}

	_, err = getInput("Users", testOptions(WithGetOverride(func(in *dynamodb.GetItemInput) {
		in.AttributesToGet = []string{"lastValue"}
	})))
	if !errors.Is(err, ErrProtectedOverride) {
		t.Errorf("expected ErrProtectedOverride for AttributesToGet, got %v", err)
	}
}

// --- parseCount Tests ---

func TestParseCount(t *testing.T) {
	tests := []struct {
		name      string
		item      map[string]types.AttributeValue
		value     int64
		found     bool
		malformed bool
	}{
		{
			name: "nil item",
			item: nil,
		},
		{
			name: "attribute missing",
			item: map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "x"}},
		},
		{
			name:  "positive",
			item:  map[string]types.AttributeValue{"lastValue": &types.AttributeValueMemberN{Value: "12"}},
			value: 12,
			found: true,
		},
		{
			name:  "negative",
			item:  map[string]types.AttributeValue{"lastValue": &types.AttributeValueMemberN{Value: "-4"}},
			value: -4,
			found: true,
		},
		{
			name:      "string value",
			item:      map[string]types.AttributeValue{"lastValue": &types.AttributeValueMemberS{Value: "12"}},
			found:     true,
			malformed: true,
		},
		{
			name:      "typed nil number",
			item:      map[string]types.AttributeValue{"lastValue": (*types.AttributeValueMemberN)(nil)},
			found:     true,
			malformed: true,
		},
		{
			name:      "beyond int64",
			item:      map[string]types.AttributeValue{"lastValue": &types.AttributeValueMemberN{Value: "-9223372036854775809"}},
			found:     true,
			malformed: true,
		},
		{
			name:      "null value",
			item:      map[string]types.AttributeValue{"lastValue": &types.AttributeValueMemberNULL{Value: true}},
			found:     true,
			malformed: true,
		},
		{
			name:      "fractional number",
			item:      map[string]types.AttributeValue{"lastValue": &types.AttributeValueMemberN{Value: "1.5"}},
			found:     true,
			malformed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, found, err := parseCount(tt.item, "lastValue")
			if tt.malformed {
				if !errors.Is(err, ErrMalformedResponse) {
					t.Errorf("expected ErrMalformedResponse, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if value != tt.value || found != tt.found {
				t.Errorf("expected (%d, %v), got (%d, %v)", tt.value, tt.found, value, found)
			}
		})
	}
}
