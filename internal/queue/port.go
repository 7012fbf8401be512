package queue

import (
	"context"
	"time"
)

// Queue is the generic port over a single message shape T. Discovery,
// crawl and index each get their own typed Queue instance rather than
// sharing one interface keyed by an untyped message, so a consumer can
// never accidentally receive the wrong stage's message.
type Queue[T any] interface {
	Send(ctx context.Context, body T) error
	SendBatch(ctx context.Context, bodies []T) error

	// Receive long-polls for up to maxMessages, each leased for
	// visibilityTimeout until Ack/ExtendVisibility/DeadLetter is called.
	Receive(ctx context.Context, maxMessages int, visibilityTimeout time.Duration) ([]Envelope[T], error)

	Ack(ctx context.Context, receiptHandle string) error
	ExtendVisibility(ctx context.Context, receiptHandle string, timeout time.Duration) error
	DeadLetter(ctx context.Context, receiptHandle string, reason DeadLetterReason) error

	// ApproxDepth backs the discovery coordinator's backpressure check.
	ApproxDepth(ctx context.Context) (Depth, error)
}
