// Package dynamodb stores conversation history in a single DynamoDB table
// keyed by PK = CONV#<id> and SK = TURN#<index>, with a META item holding the
// turn count.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/pdnchat/pdnchat/internal/history"
)

const (
	skPrefixTurn = "TURN#"
	skMeta       = "META#"
)

// dynamodbAPI is the subset of the DynamoDB client the store needs.
type dynamodbAPI interface {
	Query(ctx context.Context, in *awsdynamodb.QueryInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *awsdynamodb.TransactWriteItemsInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, in *awsdynamodb.DescribeTableInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.DescribeTableOutput, error)
}

type Store struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
}

var _ history.Store = (*Store)(nil)

// New wraps api for tableName. ttl > 0 sets the ttl attribute on every item.
func New(api dynamodbAPI, tableName string, ttl time.Duration) (*Store, error) {
	if api == nil {
		return nil, errors.New("dynamodb history: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("dynamodb history: table name must not be empty")
	}
	return &Store{api: api, tableName: tableName, ttl: ttl}, nil
}

func convPK(conversationID string) string {
	return "CONV#" + conversationID
}

// turnSK zero-pads the index so lexical sort order matches turn order.
func turnSK(index int) string {
	return fmt.Sprintf("%s%08d", skPrefixTurn, index)
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.api.DescribeTable(ctx, &awsdynamodb.DescribeTableInput{TableName: aws.String(s.tableName)})
	if err != nil {
		return fmt.Errorf("dynamodb history: describe table: %w", err)
	}
	return nil
}

// Append writes the turn and bumps the META turn count in one transaction.
// The META condition enforces that turn.Index equals the stored count.
func (s *Store) Append(ctx context.Context, conversationID string, turn history.Turn) error {
	if err := history.ValidateAppend(conversationID, turn); err != nil {
		return err
	}
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	meta := &types.Put{
		TableName: aws.String(s.tableName),
		Item:      s.metaItem(conversationID, turn.Index+1, createdAt),
	}
	if turn.Index == 0 {
		meta.ConditionExpression = aws.String("attribute_not_exists(PK)")
	} else {
		meta.ConditionExpression = aws.String("turns = :expected")
		meta.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.Itoa(turn.Index)},
		}
	}

	_, err := s.api.TransactWriteItems(ctx, &awsdynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(s.tableName),
					Item:                s.turnItem(conversationID, turn, createdAt),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{Put: meta},
		},
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		var conditional *types.ConditionalCheckFailedException
		if errors.As(err, &canceled) || errors.As(err, &conditional) {
			return fmt.Errorf("%w: index %d for %s: %v", history.ErrIndexConflict, turn.Index, conversationID, err)
		}
		return fmt.Errorf("dynamodb history: append: %w", err)
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, conversationID string, limit int) ([]history.Turn, error) {
	if limit <= 0 {
		return s.List(ctx, conversationID)
	}
	// Read newest first so the limit keeps the most recent context.
	turns, err := s.query(ctx, conversationID, false, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *Store) List(ctx context.Context, conversationID string) ([]history.Turn, error) {
	return s.query(ctx, conversationID, true, 0)
}

func (s *Store) query(ctx context.Context, conversationID string, forward bool, limit int) ([]history.Turn, error) {
	turns := make([]history.Turn, 0)
	var startKey map[string]types.AttributeValue
	for {
		in := &awsdynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: convPK(conversationID)},
				":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
			},
			ScanIndexForward:  aws.Bool(forward),
			ConsistentRead:    aws.Bool(true),
			ExclusiveStartKey: startKey,
		}
		if limit > 0 {
			in.Limit = aws.Int32(int32(limit - len(turns)))
		}
		out, err := s.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("dynamodb history: query: %w", err)
		}
		for _, item := range out.Items {
			turn, err := itemToTurn(item)
			if err != nil {
				return nil, fmt.Errorf("dynamodb history: decode turn: %w", err)
			}
			turns = append(turns, turn)
		}
		if len(out.LastEvaluatedKey) == 0 || (limit > 0 && len(turns) >= limit) {
			return turns, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (s *Store) turnItem(conversationID string, turn history.Turn, createdAt time.Time) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: convPK(conversationID)},
		"SK":             &types.AttributeValueMemberS{Value: turnSK(turn.Index)},
		"conversationId": &types.AttributeValueMemberS{Value: conversationID},
		"turnIndex":      &types.AttributeValueMemberN{Value: strconv.Itoa(turn.Index)},
		"question":       &types.AttributeValueMemberS{Value: turn.Question},
		"sql":            &types.AttributeValueMemberS{Value: turn.SQL},
		"result":         &types.AttributeValueMemberS{Value: turn.Result},
		"answer":         &types.AttributeValueMemberS{Value: turn.Answer},
		"error":          &types.AttributeValueMemberS{Value: turn.Error},
		"outcome":        &types.AttributeValueMemberS{Value: string(turn.Outcome)},
		"createdAt":      &types.AttributeValueMemberS{Value: createdAt.UTC().Format(time.RFC3339Nano)},
	}
	s.setTTL(item, createdAt)
	return item
}

func (s *Store) metaItem(conversationID string, turns int, at time.Time) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: convPK(conversationID)},
		"SK":             &types.AttributeValueMemberS{Value: skMeta},
		"conversationId": &types.AttributeValueMemberS{Value: conversationID},
		"lastActivity":   &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339)},
		"turns":          &types.AttributeValueMemberN{Value: strconv.Itoa(turns)},
	}
	s.setTTL(item, at)
	return item
}

func (s *Store) setTTL(item map[string]types.AttributeValue, at time.Time) {
	if s.ttl <= 0 {
		return
	}
	item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(at.Add(s.ttl).Unix(), 10)}
}

func itemToTurn(item map[string]types.AttributeValue) (history.Turn, error) {
	index, err := intAttr(item, "turnIndex")
	if err != nil {
		return history.Turn{}, err
	}
	question, err := strAttr(item, "question")
	if err != nil {
		return history.Turn{}, err
	}
	answer, err := strAttr(item, "answer")
	if err != nil {
		return history.Turn{}, err
	}
	outcome, err := strAttr(item, "outcome")
	if err != nil {
		return history.Turn{}, err
	}
	sqlText, _ := strAttr(item, "sql")
	result, _ := strAttr(item, "result")
	errText, _ := strAttr(item, "error")

	turn := history.Turn{
		Index:    index,
		Question: question,
		SQL:      sqlText,
		Result:   result,
		Answer:   answer,
		Error:    errText,
		Outcome:  history.Outcome(outcome),
	}
	if raw, err := strAttr(item, "createdAt"); err == nil {
		createdAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return history.Turn{}, fmt.Errorf("parse createdAt: %w", err)
		}
		turn.CreatedAt = createdAt
	}
	return turn, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
