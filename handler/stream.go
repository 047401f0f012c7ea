package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/tally/counter"
)

// Change describes one counter update observed on the table's stream.
type Change struct {
	CounterID string

	// Old is the value before the update; 0 when the counter was created.
	Old int64

	// New is the value after the update.
	New int64
}

// Delta returns the amount applied by the update.
func (c Change) Delta() int64 {
	return c.New - c.Old
}

// StreamHandler turns DynamoDB stream records from a counter table into
// Change values. The stream must use NEW_AND_OLD_IMAGES.
type StreamHandler struct {
	config   counter.Config
	onChange func(context.Context, Change) error
	logger   *slog.Logger
}

// NewStreamHandler creates a stream handler for tables laid out as cfg.
// onChange is called once per insert or modify record, in stream order.
func NewStreamHandler(cfg counter.Config, onChange func(context.Context, Change) error, logger *slog.Logger) *StreamHandler {
	def := counter.DefaultConfig()
	if cfg.KeyAttribute == "" {
		cfg.KeyAttribute = def.KeyAttribute
	}
	if cfg.CountAttribute == "" {
		cfg.CountAttribute = def.CountAttribute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{
		config:   cfg,
		onChange: onChange,
		logger:   logger,
	}
}

// HandleStream processes a batch of stream records.
func (h *StreamHandler) HandleStream(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		change, ok := h.changeFor(record)
		if !ok {
			continue
		}

		h.logger.Debug("counter changed",
			"counterID", change.CounterID,
			"old", change.Old,
			"new", change.New,
		)

		if h.onChange == nil {
			continue
		}
		if err := h.onChange(ctx, change); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"counterID", change.CounterID,
				"error", err,
			)
			return fmt.Errorf("record %s: %w", record.EventID, err) // Will retry, eventually DLQ
		}
	}
	return nil
}

// changeFor extracts a Change from INSERT and MODIFY records.
func (h *StreamHandler) changeFor(record events.DynamoDBEventRecord) (Change, bool) {
	if record.EventName != "INSERT" && record.EventName != "MODIFY" {
		return Change{}, false
	}

	counterID := getStringAttr(record.Change.Keys, h.config.KeyAttribute)
	if counterID == "" {
		counterID = getStringAttr(record.Change.NewImage, h.config.KeyAttribute)
	}

	newValue, ok := getNumberAttr(record.Change.NewImage, h.config.CountAttribute)
	if counterID == "" || !ok {
		return Change{}, false
	}
	oldValue, _ := getNumberAttr(record.Change.OldImage, h.config.CountAttribute)

	if record.EventName == "MODIFY" && oldValue == newValue {
		return Change{}, false
	}
	return Change{CounterID: counterID, Old: oldValue, New: newValue}, true
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getNumberAttr extracts an integer attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) (int64, bool) {
	v, ok := image[key]
	if !ok || v.DataType() != events.DataTypeNumber {
		return 0, false
	}
	n, err := strconv.ParseInt(v.Number(), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
