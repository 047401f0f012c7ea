// Command tally increments and reads DynamoDB atomic counters.
//
//	tally [flags] incr <counter-id> [amount]
//	tally [flags] get <counter-id>
//	tally [flags] create-table
//	tally [flags] bench [counter-id]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"

	"github.com/jacentio/tally/counter"
)

var (
	myName = filepath.Base(os.Args[0])
	logger *slog.Logger
)

var (
	optTable     *string
	optKeyAttr   *string
	optCountAttr *string
	optProfile   *string
	optRegion    *string
	optEndpoint  *string
	optLogLevel  *string
	optN         *int
	optWorkers   *int
)

func init() {
	// .env is optional; it only seeds flag defaults.
	_ = godotenv.Load()

	optTable = flag.String("table", envOr("TALLY_TABLE", counter.DefaultTableName), "counter table name")
	optKeyAttr = flag.String("key-attr", envOr("TALLY_KEY_ATTRIBUTE", counter.DefaultKeyAttribute), "key attribute name")
	optCountAttr = flag.String("count-attr", envOr("TALLY_COUNT_ATTRIBUTE", counter.DefaultCountAttribute), "count attribute name")
	optProfile = flag.String("profile", os.Getenv("AWS_PROFILE"), "AWS shared config profile")
	optRegion = flag.String("region", "", "AWS region (default from environment)")
	optEndpoint = flag.String("endpoint", os.Getenv("TALLY_ENDPOINT"), "DynamoDB endpoint override, e.g. http://localhost:8000")
	optLogLevel = flag.String("log-level", envOr("TALLY_LOG_LEVEL", "info"), "debug|info|warn|error")
	optN = flag.Int("n", 1000, "bench: number of increments")
	optWorkers = flag.Int("workers", 32, "bench: concurrent requests")
}

func main() {
	flag.Usage = usage
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*optLogLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level %q\n", *optLogLevel)
		os.Exit(2)
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})).With("app", myName)

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newClient(ctx)
	if err != nil {
		logger.Error("failed to create dynamodb client", "error", err)
		os.Exit(1)
	}

	cfg := counter.DefaultConfig()
	cfg.TableName = *optTable
	cfg.KeyAttribute = *optKeyAttr
	cfg.CountAttribute = *optCountAttr

	c := counter.New(client, cfg)
	c.SetLogger(logger)

	if err := run(ctx, c, client, cfg, flag.Args()); err != nil {
		logger.Error("command failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *counter.Counters, client *dynamodb.Client, cfg counter.Config, args []string) error {
	switch args[0] {
	case "incr":
		if len(args) < 2 {
			return fmt.Errorf("usage: %s incr <counter-id> [amount]", myName)
		}
		var opts []counter.Option
		if len(args) > 2 {
			amount, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[2], err)
			}
			opts = append(opts, counter.WithAmount(amount))
		}
		value, err := c.Add(ctx, args[1], opts...)
		if err != nil {
			return err
		}
		fmt.Println(value)

	case "get":
		if len(args) < 2 {
			return fmt.Errorf("usage: %s get <counter-id>", myName)
		}
		value, err := c.Get(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Println(value)

	case "create-table":
		if err := counter.CreateTable(ctx, client, cfg, 2*time.Minute); err != nil {
			return err
		}
		logger.Info("table ready", "table", cfg.TableName)

	case "bench":
		counterID := ""
		if len(args) > 1 {
			counterID = args[1]
		}
		return bench(ctx, c, counterID, *optN, *optWorkers)

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

func newClient(ctx context.Context) (*dynamodb.Client, error) {
	var opts []func(*config.LoadOptions) error
	if *optProfile != "" {
		opts = append(opts, config.WithSharedConfigProfile(*optProfile))
	}
	if *optRegion != "" {
		opts = append(opts, config.WithRegion(*optRegion))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if *optEndpoint != "" {
			o.BaseEndpoint = aws.String(*optEndpoint)
		}
	}), nil
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] incr|get|create-table|bench [args]\n", myName)
	flag.PrintDefaults()
}
