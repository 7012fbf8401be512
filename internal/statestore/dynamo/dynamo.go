package dynamo

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/rohmanhakim/crawlcore/internal/statestore"
)

/*
Responsibilities

- Render the state-store primitives as DynamoDB conditional writes
- Distinguish conditional-check-failure (lost race) from transient store
  errors (throttling, network) so callers retry only the latter
- Back the lease-expiry GSI scan used by ReclaimExpired

Table layout: partition key url_hash. gsi-lease-expiry projects
(state, lease_expires_at) for the reclaim scan; gsi-domain-recency
projects (domain, last_crawled_at) for the out-of-scope serving API and
is never read here.
*/

const (
	attrURLHash        = "url_hash"
	attrURL            = "url"
	attrDomain         = "domain"
	attrState          = "state"
	attrOwner          = "owner"
	attrLeaseExpiresAt = "lease_expires_at"
	attrAttempts       = "attempts"
	attrLastCrawledAt  = "last_crawled_at"
	attrLastError      = "last_error"
	attrRawLocation    = "raw_location"
	attrCreatedAt      = "created_at"
	attrUpdatedAt      = "updated_at"

	leaseExpiryIndex = "gsi-lease-expiry"
)

// Client implements statestore.Store against a live DynamoDB table.
type Client struct {
	ddb       *dynamodb.Client
	tableName string
}

func NewClient(ddb *dynamodb.Client, tableName string) *Client {
	return &Client{ddb: ddb, tableName: tableName}
}

func (c *Client) TryAcquire(
	ctx context.Context,
	urlHash, owner string,
	leaseTTL time.Duration,
	seed statestore.URLRecord,
) (statestore.AcquireResult, statestore.URLRecord, *statestore.StoreError) {
	now := time.Now()
	leaseExpiresAt := now.Add(leaseTTL)

	// Acquire succeeds when the record doesn't exist, or is "pending",
	// or is leased with an expired lease_expires_at; done and failed
	// records never match. This
	// mirrors TryAcquire's three branches as a single disjunctive
	// condition expression, same primitive the teacher's own config
	// loader uses expression.Builder for (attribute composition, not
	// string concatenation).
	cond := expression.Or(
		expression.AttributeNotExists(expression.Name(attrURLHash)),
		expression.Name(attrState).Equal(expression.Value(string(statestore.StatePending))),
		expression.And(
			expression.Name(attrState).Equal(expression.Value(string(statestore.StateLeased))),
			expression.Name(attrLeaseExpiresAt).LessThan(expression.Value(rfc3339(now))),
		),
	)
	update := expression.
		Set(expression.Name(attrState), expression.Value(string(statestore.StateLeased))).
		Set(expression.Name(attrOwner), expression.Value(owner)).
		Set(expression.Name(attrLeaseExpiresAt), expression.Value(rfc3339(leaseExpiresAt))).
		Set(expression.Name(attrUpdatedAt), expression.Value(rfc3339(now))).
		Set(expression.Name(attrURL), expression.IfNotExists(expression.Name(attrURL), expression.Value(seed.URL))).
		Set(expression.Name(attrDomain), expression.IfNotExists(expression.Name(attrDomain), expression.Value(seed.Domain))).
		Set(expression.Name(attrAttempts), expression.IfNotExists(expression.Name(attrAttempts), expression.Value(0))).
		Set(expression.Name(attrCreatedAt), expression.IfNotExists(expression.Name(attrCreatedAt), expression.Value(rfc3339(now))))

	expr, exprErr := expression.NewBuilder().WithCondition(cond).WithUpdate(update).Build()
	if exprErr != nil {
		return statestore.AlreadyHeld, statestore.URLRecord{}, &statestore.StoreError{
			Message: exprErr.Error(), Retryable: false, Cause: statestore.ErrCauseTransport,
		}
	}

	out, err := c.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(c.tableName),
		Key:                       urlHashKey(urlHash),
		ConditionExpression:       expr.Condition(),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			existing, getErr := c.Get(ctx, urlHash)
			if getErr != nil {
				return statestore.AlreadyHeld, statestore.URLRecord{}, getErr
			}
			if existing.State == statestore.StateDone || existing.State == statestore.StateFailed {
				return statestore.Terminal, existing, nil
			}
			return statestore.AlreadyHeld, existing, nil
		}
		return statestore.AlreadyHeld, statestore.URLRecord{}, transientError(err)
	}

	rec, unmarshalErr := unmarshalRecord(out.Attributes)
	if unmarshalErr != nil {
		return statestore.AlreadyHeld, statestore.URLRecord{}, unmarshalErr
	}
	return statestore.Acquired, rec, nil
}

func (c *Client) RenewLease(
	ctx context.Context,
	urlHash, owner string,
	leaseTTL time.Duration,
) (statestore.RenewResult, *statestore.StoreError) {
	now := time.Now()
	cond := expression.And(
		expression.Name(attrOwner).Equal(expression.Value(owner)),
		expression.Name(attrState).Equal(expression.Value(string(statestore.StateLeased))),
	)
	update := expression.
		Set(expression.Name(attrLeaseExpiresAt), expression.Value(rfc3339(now.Add(leaseTTL)))).
		Set(expression.Name(attrUpdatedAt), expression.Value(rfc3339(now)))

	expr, exprErr := expression.NewBuilder().WithCondition(cond).WithUpdate(update).Build()
	if exprErr != nil {
		return statestore.Lost, &statestore.StoreError{Message: exprErr.Error(), Retryable: false, Cause: statestore.ErrCauseTransport}
	}

	_, err := c.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(c.tableName),
		Key:                       urlHashKey(urlHash),
		ConditionExpression:       expr.Condition(),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return statestore.Lost, nil
		}
		return statestore.Lost, transientError(err)
	}
	return statestore.Renewed, nil
}

func (c *Client) Complete(ctx context.Context, urlHash, owner string, at time.Time, rawLocation string) *statestore.StoreError {
	cond := expression.Name(attrOwner).Equal(expression.Value(owner))
	update := expression.
		Set(expression.Name(attrState), expression.Value(string(statestore.StateDone))).
		Remove(expression.Name(attrOwner)).
		Set(expression.Name(attrLastCrawledAt), expression.Value(rfc3339(at))).
		Set(expression.Name(attrRawLocation), expression.Value(rawLocation)).
		Set(expression.Name(attrUpdatedAt), expression.Value(rfc3339(at)))

	expr, exprErr := expression.NewBuilder().WithCondition(cond).WithUpdate(update).Build()
	if exprErr != nil {
		return &statestore.StoreError{Message: exprErr.Error(), Retryable: false, Cause: statestore.ErrCauseTransport}
	}

	_, err := c.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(c.tableName),
		Key:                       urlHashKey(urlHash),
		ConditionExpression:       expr.Condition(),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return &statestore.StoreError{Message: "complete: owner mismatch", Retryable: false, Cause: statestore.ErrCauseConditionFailed}
		}
		return transientError(err)
	}
	return nil
}

func (c *Client) ScheduleRetry(
	ctx context.Context,
	urlHash, owner string,
	maxAttempts int,
	lastError string,
) (statestore.URLRecord, *statestore.StoreError) {
	existing, getErr := c.Get(ctx, urlHash)
	if getErr != nil {
		return statestore.URLRecord{}, getErr
	}
	if existing.Owner != owner {
		return statestore.URLRecord{}, &statestore.StoreError{Message: "schedule retry: owner mismatch", Retryable: false, Cause: statestore.ErrCauseConditionFailed}
	}

	nextAttempts := existing.Attempts + 1
	nextState := statestore.StatePending
	if nextAttempts >= maxAttempts {
		nextState = statestore.StateFailed
	}

	cond := expression.Name(attrOwner).Equal(expression.Value(owner))
	update := expression.
		Set(expression.Name(attrState), expression.Value(string(nextState))).
		Set(expression.Name(attrAttempts), expression.Value(nextAttempts)).
		Set(expression.Name(attrLastError), expression.Value(lastError)).
		Set(expression.Name(attrUpdatedAt), expression.Value(rfc3339(time.Now()))).
		Remove(expression.Name(attrOwner))

	expr, exprErr := expression.NewBuilder().WithCondition(cond).WithUpdate(update).Build()
	if exprErr != nil {
		return statestore.URLRecord{}, &statestore.StoreError{Message: exprErr.Error(), Retryable: false, Cause: statestore.ErrCauseTransport}
	}

	out, err := c.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(c.tableName),
		Key:                       urlHashKey(urlHash),
		ConditionExpression:       expr.Condition(),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return statestore.URLRecord{}, &statestore.StoreError{Message: "schedule retry: owner mismatch", Retryable: false, Cause: statestore.ErrCauseConditionFailed}
		}
		return statestore.URLRecord{}, transientError(err)
	}

	return unmarshalRecord(out.Attributes)
}

// Fail transitions the record straight to failed without incrementing
// Attempts - used for outcomes that are terminal on the first
// observation (permanent HTTP status), as distinct from ScheduleRetry's
// attempts-exhausted path.
func (c *Client) Fail(ctx context.Context, urlHash, owner string, lastError string, at time.Time) *statestore.StoreError {
	cond := expression.Name(attrOwner).Equal(expression.Value(owner))
	update := expression.
		Set(expression.Name(attrState), expression.Value(string(statestore.StateFailed))).
		Remove(expression.Name(attrOwner)).
		Set(expression.Name(attrLastError), expression.Value(lastError)).
		Set(expression.Name(attrUpdatedAt), expression.Value(rfc3339(at)))

	expr, exprErr := expression.NewBuilder().WithCondition(cond).WithUpdate(update).Build()
	if exprErr != nil {
		return &statestore.StoreError{Message: exprErr.Error(), Retryable: false, Cause: statestore.ErrCauseTransport}
	}

	_, err := c.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(c.tableName),
		Key:                       urlHashKey(urlHash),
		ConditionExpression:       expr.Condition(),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return &statestore.StoreError{Message: "fail: owner mismatch", Retryable: false, Cause: statestore.ErrCauseConditionFailed}
		}
		return transientError(err)
	}
	return nil
}

// ReclaimExpired queries gsi-lease-expiry for leased records whose
// lease_expires_at has passed and flips them back to pending. Query, not
// Scan, so the reclaim sweep stays cheap as the table grows.
func (c *Client) ReclaimExpired(ctx context.Context, now time.Time, limit int) (int, *statestore.StoreError) {
	keyCond := expression.Key(attrState).Equal(expression.Value(string(statestore.StateLeased))).
		And(expression.Key(attrLeaseExpiresAt).LessThan(expression.Value(rfc3339(now))))
	expr, exprErr := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if exprErr != nil {
		return 0, &statestore.StoreError{Message: exprErr.Error(), Retryable: false, Cause: statestore.ErrCauseTransport}
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(c.tableName),
		IndexName:                 aws.String(leaseExpiryIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	out, err := c.ddb.Query(ctx, input)
	if err != nil {
		return 0, transientError(err)
	}

	reclaimed := 0
	for _, item := range out.Items {
		rec, unmarshalErr := unmarshalRecord(item)
		if unmarshalErr != nil {
			continue
		}
		update := expression.
			Set(expression.Name(attrState), expression.Value(string(statestore.StatePending))).
			Remove(expression.Name(attrOwner)).
			Set(expression.Name(attrUpdatedAt), expression.Value(rfc3339(now)))
		cond := expression.Name(attrLeaseExpiresAt).LessThan(expression.Value(rfc3339(now)))
		updateExpr, buildErr := expression.NewBuilder().WithCondition(cond).WithUpdate(update).Build()
		if buildErr != nil {
			continue
		}
		_, updateErr := c.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(c.tableName),
			Key:                       urlHashKey(rec.URLHash),
			ConditionExpression:       updateExpr.Condition(),
			UpdateExpression:          updateExpr.Update(),
			ExpressionAttributeNames:  updateExpr.Names(),
			ExpressionAttributeValues: updateExpr.Values(),
		})
		if updateErr == nil {
			reclaimed++
		}
	}
	return reclaimed, nil
}

func (c *Client) Get(ctx context.Context, urlHash string) (statestore.URLRecord, *statestore.StoreError) {
	out, err := c.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key:       urlHashKey(urlHash),
	})
	if err != nil {
		return statestore.URLRecord{}, transientError(err)
	}
	if out.Item == nil {
		return statestore.URLRecord{}, &statestore.StoreError{Message: "not found", Retryable: false, Cause: statestore.ErrCauseNotFound}
	}
	return unmarshalRecord(out.Item)
}

func urlHashKey(urlHash string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrURLHash: &types.AttributeValueMemberS{Value: urlHash},
	}
}

func transientError(err error) *statestore.StoreError {
	return &statestore.StoreError{Message: err.Error(), Retryable: true, Cause: statestore.ErrCauseTransport}
}
