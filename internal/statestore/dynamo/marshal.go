package dynamo

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/rohmanhakim/crawlcore/internal/statestore"
)

type itemShape struct {
	URLHash        string `dynamodbav:"url_hash"`
	URL            string `dynamodbav:"url"`
	Domain         string `dynamodbav:"domain"`
	State          string `dynamodbav:"state"`
	Owner          string `dynamodbav:"owner"`
	LeaseExpiresAt string `dynamodbav:"lease_expires_at"`
	Attempts       int    `dynamodbav:"attempts"`
	LastCrawledAt  string `dynamodbav:"last_crawled_at"`
	LastError      string `dynamodbav:"last_error"`
	RawLocation    string `dynamodbav:"raw_location"`
	CreatedAt      string `dynamodbav:"created_at"`
	UpdatedAt      string `dynamodbav:"updated_at"`
}

func unmarshalRecord(item map[string]types.AttributeValue) (statestore.URLRecord, *statestore.StoreError) {
	var shape itemShape
	if err := attributevalue.UnmarshalMap(item, &shape); err != nil {
		return statestore.URLRecord{}, &statestore.StoreError{
			Message: err.Error(), Retryable: false, Cause: statestore.ErrCauseTransport,
		}
	}

	return statestore.URLRecord{
		URLHash:        shape.URLHash,
		URL:            shape.URL,
		Domain:         shape.Domain,
		State:          statestore.URLState(shape.State),
		Owner:          shape.Owner,
		LeaseExpiresAt: parseTimeOrZero(shape.LeaseExpiresAt),
		Attempts:       shape.Attempts,
		LastCrawledAt:  parseTimeOrZero(shape.LastCrawledAt),
		LastError:      shape.LastError,
		RawLocation:    shape.RawLocation,
		CreatedAt:      parseTimeOrZero(shape.CreatedAt),
		UpdatedAt:      parseTimeOrZero(shape.UpdatedAt),
	}, nil
}

func rfc3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeOrZero(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
