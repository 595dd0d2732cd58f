// Package main is the entrypoint for the alert dispatcher Lambda.
//
// An EventBridge rule invokes it on a fixed schedule; each invocation runs
// one dispatch pass, the same pass GET /api/cron/alerts runs. Outside the
// Lambda runtime it runs a single pass and exits, which is how local
// development and one-off operator runs drive it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"wellness/internal/alerts"
	"wellness/internal/app"
	"wellness/internal/config"
)

// passRunner runs one dispatch pass. Implemented by alerts.Dispatcher.
type passRunner interface {
	Run(ctx context.Context) (alerts.DispatchResult, error)
}

// Handler adapts the dispatcher to the Lambda runtime.
type Handler struct {
	dispatcher passRunner
	logger     *slog.Logger
}

// Handle runs a pass for a scheduled event. An error makes Lambda record
// the invocation as failed; the next scheduled event retries naturally.
func (h *Handler) Handle(ctx context.Context, event events.CloudWatchEvent) (alerts.DispatchResult, error) {
	h.logger.Info("dispatch triggered", "event_id", event.ID, "source", event.Source)

	result, err := h.dispatcher.Run(ctx)
	if err != nil {
		h.logger.Error("dispatch pass failed", "error", err)
		return result, err
	}

	h.logger.Info("dispatch pass complete",
		"processed", result.Processed,
		"sent", result.Sent,
		"failed", result.Failed,
		"rescheduled", result.Rescheduled,
		"expired", result.Expired,
		"cancelled", result.Cancelled,
		"skipped", result.Skipped,
	)
	return result, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := app.NewLogger(cfg.LogLevel).With("service", "alert-dispatcher")

	ctx := context.Background()
	infra, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	dispatcher, err := infra.Dispatcher()
	if err != nil {
		return err
	}
	h := &Handler{dispatcher: dispatcher, logger: logger}

	if isLambdaEnvironment() {
		logger.Info("alert dispatcher Lambda initialised (cold start)")
		lambda.Start(h.Handle)
		return nil
	}

	result, err := h.Handle(ctx, events.CloudWatchEvent{ID: "cli", Source: "cli"})
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(result)
}

// isLambdaEnvironment reports whether the process runs inside the Lambda
// runtime.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}
