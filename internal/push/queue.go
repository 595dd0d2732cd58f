package push

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"wellness/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Job is the message body consumed by the push worker.
type Job struct {
	JobID            string            `json:"job_id"`
	UserID           string            `json:"user_id"`
	NotificationType string            `json:"notification_type"`
	Message          types.PushMessage `json:"message"`
	EnqueuedAt       time.Time         `json:"enqueued_at"`
}

// QueueSender hands push jobs to a downstream worker over SQS. A job counts
// as delivered once SQS accepts it.
type QueueSender struct {
	client   SQSSender
	queueURL string
	logger   types.Logger
	now      func() time.Time
}

func NewQueueSender(client SQSSender, queueURL string, logger types.Logger) *QueueSender {
	return &QueueSender{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *QueueSender) SendPushToUser(ctx context.Context, userID, notificationType string, msg types.PushMessage) (types.PushResult, error) {
	job := Job{
		JobID:            uuid.NewString(),
		UserID:           userID,
		NotificationType: notificationType,
		Message:          msg,
		EnqueuedAt:       s.now().UTC(),
	}
	body, err := json.Marshal(job)
	if err != nil {
		// Data holds something JSON cannot encode; retrying will not help.
		return types.PushResult{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal push job", err)
	}

	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"notification_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(notificationType),
			},
		},
	})
	if err != nil {
		s.logger.Warn("failed to enqueue push job", "user_id", userID, "job_id", job.JobID, "error", err)
		return types.PushResult{Error: err.Error()}, nil
	}

	s.logger.Info("push job enqueued",
		"job_id", job.JobID,
		"user_id", userID,
		"type", notificationType,
		"request_id", types.GetRequestID(ctx),
	)
	return types.PushResult{Success: true}, nil
}
