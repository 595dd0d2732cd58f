package types

// PushMessage is the provider-agnostic content of a push notification.
type PushMessage struct {
	Title string    `json:"title"`
	Body  string    `json:"body"`
	Data  AlertData `json:"data,omitempty"`
}

// PushResult reports the outcome of one delivery attempt. Ordinary delivery
// failures are reported here with Success=false rather than as an error.
type PushResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
