package counter

const (
	// DefaultTableName is the table used when Config.TableName is empty.
	DefaultTableName = "AtomicCounters"

	// DefaultKeyAttribute is the hash key attribute holding the counter ID.
	DefaultKeyAttribute = "id"

	// DefaultCountAttribute is the numeric attribute holding the last value.
	DefaultCountAttribute = "lastValue"
)

// Config holds configuration for Counters.
type Config struct {
	// TableName is the DynamoDB table holding the counters.
	// Default: "AtomicCounters"
	TableName string

	// KeyAttribute is the name of the string hash key attribute.
	// Default: "id"
	KeyAttribute string

	// CountAttribute is the name of the numeric attribute holding the value.
	// Default: "lastValue"
	CountAttribute string

	// EventuallyConsistent makes GetLastValue use eventually consistent
	// reads. The zero value reads strongly, so a read issued after an
	// increment observes that increment.
	EventuallyConsistent bool
}

// DefaultConfig returns the default counter table layout.
func DefaultConfig() Config {
	return Config{
		TableName:      DefaultTableName,
		KeyAttribute:   DefaultKeyAttribute,
		CountAttribute: DefaultCountAttribute,
	}
}

// validate fills in defaults for empty fields.
func (c *Config) validate() {
	if c.TableName == "" {
		c.TableName = DefaultTableName
	}
	if c.KeyAttribute == "" {
		c.KeyAttribute = DefaultKeyAttribute
	}
	if c.CountAttribute == "" {
		c.CountAttribute = DefaultCountAttribute
	}
}
