// ai-invoker - CLI entrypoint for the resilient AI invoker.
// Reads a prompt, runs it through the retry/fallback pipeline, validates
// the JSON response, and prints the validated object.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/resilient-ai-invoker/internal/cache"
	"github.com/resilient-ai-invoker/internal/invoker"
	"github.com/resilient-ai-invoker/internal/jsonx"
)

func main() {
	var (
		prompt     = flag.String("prompt", "", "prompt to send (required; use - to read from stdin)")
		fields     = flag.String("fields", "", "comma-separated expected response fields")
		configPath = flag.String("config", "", "optional YAML config file overlaying environment values")
		stream     = flag.Bool("stream", false, "stream fragments to stdout instead of validating JSON")
		debug      = flag.Bool("debug", false, "enable verbose diagnostic logging")
	)
	flag.Parse()

	cfg := invoker.ConfigFromEnv()
	if *configPath != "" {
		if err := cfg.LoadFile(*configPath); err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
	}
	if *debug {
		cfg.Debug = true
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	text := *prompt
	if text == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			logger.Fatal("Failed to read prompt from stdin", zap.Error(err))
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		flag.Usage()
		os.Exit(2)
	}

	inv := invoker.New(func() *invoker.Config { return cfg }, logger)
	ctx := context.Background()

	if *stream {
		runStream(ctx, inv, text, logger)
		return
	}

	expectedFields := splitFields(*fields)
	results, err := newResultCache(logger)
	if err != nil {
		logger.Warn("Result cache unavailable, continuing without it", zap.Error(err))
	}

	key := cache.Key(text, expectedFields)
	if results != nil {
		if data, found := results.Get(ctx, key); found {
			logger.Debug("Serving analysis from cache")
			printJSON(data)
			return
		}
	}

	data, err := inv.Analyze(ctx, text, expectedFields)
	if err != nil {
		fail(err)
	}

	if results != nil {
		if err := results.Set(ctx, key, data); err != nil {
			logger.Warn("Failed to cache analysis result", zap.Error(err))
		}
	}
	printJSON(data)
}

func runStream(ctx context.Context, inv *invoker.Invoker, prompt string, logger *zap.Logger) {
	var streamErr error
	inv.GenerateStream(ctx, prompt,
		func(fragment string) {
			fmt.Print(fragment)
		},
		func(err error) {
			streamErr = err
		})
	fmt.Println()
	if streamErr != nil {
		fail(streamErr)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newResultCache wires the optional result cache. REDIS_ADDR enables the
// shared L2 tier.
func newResultCache(logger *zap.Logger) (*cache.ResultCache, error) {
	var redisClient *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: addr})
	}
	return cache.NewResultCache(0, 0, redisClient, logger)
}

func splitFields(raw string) []string {
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func printJSON(data map[string]interface{}) {
	out, err := jsonx.MarshalToString(data)
	if err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	fmt.Println(out)
}

// fail prints the short technical message plus the remediation hint for
// configuration and exhaustion errors, then exits non-zero.
func fail(err error) {
	if ie, ok := err.(*invoker.InvokeError); ok {
		fmt.Fprintf(os.Stderr, "error (%s): %s\n", ie.Category, ie.Message)
		if ie.Remediation != "" {
			fmt.Fprintln(os.Stderr, ie.Remediation)
		}
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
