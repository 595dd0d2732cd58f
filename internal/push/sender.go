// Package push implements the push delivery adapters used by the alert
// dispatcher. Every adapter reports ordinary delivery failures through
// types.PushResult and reserves the error return for misconfiguration.
package push

import (
	"context"
	"fmt"
	"net/http"

	"wellness/internal/config"
	"wellness/internal/external"
	"wellness/internal/types"
)

// Sender delivers one push notification to every device of a user.
type Sender interface {
	SendPushToUser(ctx context.Context, userID, notificationType string, msg types.PushMessage) (types.PushResult, error)
}

// Deps are the collaborators the provider adapters may need. Only the ones
// relevant to the configured provider must be set.
type Deps struct {
	Devices    DeviceStore
	SQS        SQSSender
	HTTPClient *http.Client
	Logger     types.Logger
}

// NewSender builds the adapter selected by cfg.Provider.
func NewSender(cfg config.PushConfig, queueURL string, deps Deps) (Sender, error) {
	logger := deps.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}

	switch cfg.Provider {
	case config.PushProviderExpo:
		if deps.Devices == nil {
			return nil, fmt.Errorf("push: expo provider requires a device store")
		}
		httpClient := deps.HTTPClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: cfg.Timeout}
		}
		base := external.NewBaseClient(httpClient, "expo", external.DefaultRetryPolicy(), "wellness-alerts/1.0")
		client := external.NewExpoClient(base, cfg.ExpoURL, cfg.ExpoAccessToken)
		return NewExpoSender(client, deps.Devices, logger), nil

	case config.PushProviderSQS:
		if deps.SQS == nil || queueURL == "" {
			return nil, fmt.Errorf("push: sqs provider requires PUSH_QUEUE_URL and an SQS client")
		}
		return NewQueueSender(deps.SQS, queueURL, logger), nil

	case config.PushProviderLog, "":
		return NewLogSender(logger), nil

	default:
		return nil, fmt.Errorf("push: unknown provider %q", cfg.Provider)
	}
}

// LogSender only logs. It reports success so local runs exercise the full
// dispatch path.
type LogSender struct {
	logger types.Logger
}

func NewLogSender(logger types.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendPushToUser(_ context.Context, userID, notificationType string, msg types.PushMessage) (types.PushResult, error) {
	s.logger.Info("push notification (log provider)",
		"user_id", userID,
		"type", notificationType,
		"title", msg.Title,
	)
	return types.PushResult{Success: true}, nil
}
