package push

import (
	"context"
	"errors"
	"fmt"

	"wellness/internal/external"
	"wellness/internal/types"
)

// DeviceStore resolves and prunes a user's push tokens.
type DeviceStore interface {
	ListTokens(ctx context.Context, userID string) ([]string, error)
	Prune(ctx context.Context, userID string, tokens []string) error
}

// ExpoAPI is the subset of external.ExpoClient the sender uses.
type ExpoAPI interface {
	Send(ctx context.Context, msgs []external.ExpoMessage) ([]external.ExpoTicket, error)
}

const errNoDevices = "no registered devices"

// ExpoSender fans a message out to every Expo token the user registered.
// Delivery counts as successful when Expo accepts at least one message.
type ExpoSender struct {
	client  ExpoAPI
	devices DeviceStore
	logger  types.Logger
}

func NewExpoSender(client ExpoAPI, devices DeviceStore, logger types.Logger) *ExpoSender {
	return &ExpoSender{client: client, devices: devices, logger: logger}
}

func (s *ExpoSender) SendPushToUser(ctx context.Context, userID, notificationType string, msg types.PushMessage) (types.PushResult, error) {
	tokens, err := s.devices.ListTokens(ctx, userID)
	if err != nil {
		return types.PushResult{Error: fmt.Sprintf("listing devices: %v", err)}, nil
	}
	if len(tokens) == 0 {
		return types.PushResult{Error: errNoDevices}, nil
	}

	data := make(map[string]any, len(msg.Data)+1)
	for k, v := range msg.Data {
		data[k] = v
	}
	data["type"] = notificationType

	var (
		accepted int
		dead     []string
		lastErr  string
	)
	for start := 0; start < len(tokens); start += external.ExpoMaxBatch {
		end := min(start+external.ExpoMaxBatch, len(tokens))
		batch := tokens[start:end]

		msgs := make([]external.ExpoMessage, len(batch))
		for i, tok := range batch {
			msgs[i] = external.ExpoMessage{
				To:       tok,
				Title:    msg.Title,
				Body:     msg.Body,
				Data:     data,
				Sound:    "default",
				Priority: "high",
			}
		}

		tickets, err := s.client.Send(ctx, msgs)
		if err != nil {
			lastErr = errorMessage(err)
			s.logger.Warn("expo batch failed", "user_id", userID, "batch_size", len(batch), "error", err)
			continue
		}
		for i, t := range tickets {
			if t.OK() {
				accepted++
				continue
			}
			lastErr = t.Message
			if t.Details.Error == external.ExpoErrDeviceNotRegistered {
				dead = append(dead, batch[i])
			}
		}
	}

	if len(dead) > 0 {
		if err := s.devices.Prune(ctx, userID, dead); err != nil {
			s.logger.Warn("failed to prune dead push tokens", "user_id", userID, "count", len(dead), "error", err)
		} else {
			s.logger.Info("pruned dead push tokens", "user_id", userID, "count", len(dead))
		}
	}

	if accepted == 0 {
		if lastErr == "" {
			lastErr = "expo rejected every message"
		}
		return types.PushResult{Error: lastErr}, nil
	}
	return types.PushResult{Success: true}, nil
}

func errorMessage(err error) string {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
