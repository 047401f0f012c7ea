// Command tally-lambda serves counters from AWS Lambda.
//
// TALLY_MODE selects the entry point: "invoke" (default) for direct
// invocations, "http" for API Gateway HTTP APIs, "stream" to log counter
// changes from the table's DynamoDB stream.
//
// TALLY_ALLOWED_TABLES is a comma separated list of extra tables that direct
// invocations may name. Other tables are rejected.
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/tally/counter"
	"github.com/jacentio/tally/handler"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := counter.DefaultConfig()
	if v := os.Getenv("TALLY_TABLE"); v != "" {
		cfg.TableName = v
	}
	if v := os.Getenv("TALLY_KEY_ATTRIBUTE"); v != "" {
		cfg.KeyAttribute = v
	}
	if v := os.Getenv("TALLY_COUNT_ATTRIBUTE"); v != "" {
		cfg.CountAttribute = v
	}

	// The client is created on the first request and reused by warm invocations.
	c := counter.New(nil, cfg)
	c.SetLogger(logger)
	h := handler.New(c, logger)
	h.AllowTables(strings.Split(os.Getenv("TALLY_ALLOWED_TABLES"), ",")...)

	switch mode := os.Getenv("TALLY_MODE"); mode {
	case "", "invoke":
		lambda.Start(h.HandleInvoke)
	case "http":
		lambda.Start(h.HandleHTTP)
	case "stream":
		s := handler.NewStreamHandler(cfg, func(ctx context.Context, change handler.Change) error {
			logger.Info("counter advanced",
				"counterID", change.CounterID,
				"old", change.Old,
				"new", change.New,
				"delta", change.Delta(),
			)
			return nil
		}, logger)
		lambda.Start(s.HandleStream)
	default:
		logger.Error("unknown TALLY_MODE", "mode", mode)
		os.Exit(1)
	}
}
