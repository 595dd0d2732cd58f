package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"wellness/internal/types"
)

const (
	// DefaultExpoPushURL is the Expo push send endpoint.
	DefaultExpoPushURL = "https://exp.host/--/api/v2/push/send"

	// ExpoMaxBatch is the most messages Expo accepts per request.
	ExpoMaxBatch = 100

	// ExpoErrDeviceNotRegistered means the token is dead and should be dropped.
	ExpoErrDeviceNotRegistered = "DeviceNotRegistered"
)

// ExpoMessage is one entry of an Expo push request.
type ExpoMessage struct {
	To       string         `json:"to"`
	Title    string         `json:"title,omitempty"`
	Body     string         `json:"body,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Sound    string         `json:"sound,omitempty"`
	Priority string         `json:"priority,omitempty"`
}

// ExpoTicket is Expo's per-message receipt, returned in request order.
type ExpoTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details,omitempty"`
}

// OK reports whether Expo accepted the message.
func (t ExpoTicket) OK() bool { return t.Status == "ok" }

type expoResponse struct {
	Data   []ExpoTicket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// ExpoClient talks to the Expo push service.
type ExpoClient struct {
	base        *BaseClient
	url         string
	accessToken types.SecretString
}

func NewExpoClient(base *BaseClient, url string, accessToken types.SecretString) *ExpoClient {
	if url == "" {
		url = DefaultExpoPushURL
	}
	return &ExpoClient{base: base, url: url, accessToken: accessToken}
}

// Send posts msgs (at most ExpoMaxBatch) and returns one ticket per message.
func (c *ExpoClient) Send(ctx context.Context, msgs []ExpoMessage) ([]ExpoTicket, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	if len(msgs) > ExpoMaxBatch {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			fmt.Sprintf("expo batch of %d exceeds %d", len(msgs), ExpoMaxBatch), nil)
	}

	payload, err := json.Marshal(msgs)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal expo payload", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build expo request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if !c.accessToken.IsZero() {
		req.Header.Set("Authorization", "Bearer "+c.accessToken.Unmask())
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamPush, "failed to read expo response", err)
	}

	var out expoResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamPush,
			fmt.Sprintf("expo returned %d with unreadable body", resp.StatusCode), err)
	}
	if resp.StatusCode >= 300 || len(out.Errors) > 0 {
		msg := fmt.Sprintf("expo returned %d", resp.StatusCode)
		if len(out.Errors) > 0 {
			msg = fmt.Sprintf("%s: %s", out.Errors[0].Code, out.Errors[0].Message)
		}
		return nil, types.NewAppError(types.ErrCodeUpstreamPush, msg, nil)
	}
	if len(out.Data) != len(msgs) {
		return nil, types.NewAppError(types.ErrCodeUpstreamPush,
			fmt.Sprintf("expo returned %d tickets for %d messages", len(out.Data), len(msgs)), nil)
	}
	return out.Data, nil
}
