// Package dynamodb implements repository.Repository on a single DynamoDB
// table. Every element of an owner lives under PK USER#<owner> with a sort
// key of <KIND>#<id>, so an element owned by somebody else is simply absent.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"brain2-canvas/internal/domain"
	"brain2-canvas/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Store is the DynamoDB store of record.
type Store struct {
	client    API
	tableName string
	logger    *zap.Logger
}

var _ repository.Repository = (*Store)(nil)

// NewStore creates a store on an existing table.
func NewStore(client API, tableName string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, tableName: tableName, logger: logger}
}

// Ping checks that the table is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)})
	return classify(err)
}

func (s *Store) GetDot(ctx context.Context, ownerID, id string) (*domain.Dot, error) {
	it, err := s.getItem(ctx, ownerID, domain.KindDot, id)
	if err != nil {
		return nil, err
	}
	return it.dot()
}

func (s *Store) GetWheel(ctx context.Context, ownerID, id string) (*domain.Wheel, error) {
	it, err := s.getItem(ctx, ownerID, domain.KindWheel, id)
	if err != nil {
		return nil, err
	}
	return it.wheel()
}

func (s *Store) GetChakra(ctx context.Context, ownerID, id string) (*domain.Chakra, error) {
	it, err := s.getItem(ctx, ownerID, domain.KindChakra, id)
	if err != nil {
		return nil, err
	}
	return it.chakra()
}

func (s *Store) ListDots(ctx context.Context, ownerID string) ([]*domain.Dot, error) {
	items, err := s.listItems(ctx, ownerID, domain.KindDot)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Dot, 0, len(items))
	for _, it := range items {
		d, err := it.dot()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) ListWheels(ctx context.Context, ownerID string) ([]*domain.Wheel, error) {
	items, err := s.listItems(ctx, ownerID, domain.KindWheel)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Wheel, 0, len(items))
	for _, it := range items {
		w, err := it.wheel()
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func (s *Store) ListChakras(ctx context.Context, ownerID string) ([]*domain.Chakra, error) {
	items, err := s.listItems(ctx, ownerID, domain.KindChakra)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Chakra, 0, len(items))
	for _, it := range items {
		c, err := it.chakra()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// SaveDotParent sets the new parent attribute and removes the other one in
// the same update.
func (s *Store) SaveDotParent(ctx context.Context, dot *domain.Dot) error {
	if dot.Parent != nil {
		if _, err := s.getItem(ctx, dot.OwnerID, dot.Parent.Kind, dot.Parent.ID); err != nil {
			return err
		}
	}

	update := expression.Set(expression.Name("UpdatedAt"), expression.Value(formatTime(dot.UpdatedAt)))
	switch {
	case dot.WheelID() != "":
		update = update.Set(expression.Name("WheelID"), expression.Value(dot.WheelID())).
			Remove(expression.Name("ChakraID"))
	case dot.ChakraID() != "":
		update = update.Set(expression.Name("ChakraID"), expression.Value(dot.ChakraID())).
			Remove(expression.Name("WheelID"))
	default:
		update = update.Remove(expression.Name("WheelID")).Remove(expression.Name("ChakraID"))
	}
	return s.updateExisting(ctx, dot.OwnerID, domain.KindDot, dot.ID, update)
}

func (s *Store) SaveWheelParent(ctx context.Context, wheel *domain.Wheel) error {
	update := expression.Set(expression.Name("UpdatedAt"), expression.Value(formatTime(wheel.UpdatedAt)))
	if wheel.ChakraID != "" {
		if _, err := s.getItem(ctx, wheel.OwnerID, domain.KindChakra, wheel.ChakraID); err != nil {
			return err
		}
		update = update.Set(expression.Name("ChakraID"), expression.Value(wheel.ChakraID))
	} else {
		update = update.Remove(expression.Name("ChakraID"))
	}
	return s.updateExisting(ctx, wheel.OwnerID, domain.KindWheel, wheel.ID, update)
}

func (s *Store) SavePosition(ctx context.Context, ownerID string, kind domain.Kind, id string, pos domain.Position, at time.Time) error {
	if !kind.Valid() {
		return domain.ErrInvalidKind
	}
	update := expression.Set(expression.Name("X"), expression.Value(pos.X)).
		Set(expression.Name("Y"), expression.Value(pos.Y)).
		Set(expression.Name("UpdatedAt"), expression.Value(formatTime(at)))
	return s.updateExisting(ctx, ownerID, kind, id, update)
}

func (s *Store) CreateDot(ctx context.Context, dot *domain.Dot) error {
	if err := repository.PrepareNew(domain.KindDot, &dot.Element); err != nil {
		return err
	}
	if dot.Parent != nil {
		if _, err := s.getItem(ctx, dot.OwnerID, dot.Parent.Kind, dot.Parent.ID); err != nil {
			return err
		}
	}
	return s.putNew(ctx, dotItem(dot))
}

func (s *Store) CreateWheel(ctx context.Context, wheel *domain.Wheel) error {
	if err := repository.PrepareNew(domain.KindWheel, &wheel.Element); err != nil {
		return err
	}
	if wheel.ChakraID != "" {
		if _, err := s.getItem(ctx, wheel.OwnerID, domain.KindChakra, wheel.ChakraID); err != nil {
			return err
		}
	}
	return s.putNew(ctx, wheelItem(wheel))
}

func (s *Store) CreateChakra(ctx context.Context, chakra *domain.Chakra) error {
	if err := repository.PrepareNew(domain.KindChakra, &chakra.Element); err != nil {
		return err
	}
	return s.putNew(ctx, chakraItem(chakra))
}

// Delete detaches children first, then removes the element.
func (s *Store) Delete(ctx context.Context, ownerID string, kind domain.Kind, id string) error {
	if !kind.Valid() {
		return domain.ErrInvalidKind
	}
	if _, err := s.getItem(ctx, ownerID, kind, id); err != nil {
		return err
	}
	now := time.Now().UTC()

	detach := func(childKind domain.Kind, attr string) error {
		items, err := s.listItems(ctx, ownerID, childKind)
		if err != nil {
			return err
		}
		for _, it := range items {
			if (attr == "WheelID" && it.WheelID != id) || (attr == "ChakraID" && it.ChakraID != id) {
				continue
			}
			update := expression.Remove(expression.Name(attr)).
				Set(expression.Name("UpdatedAt"), expression.Value(formatTime(now)))
			if err := s.updateExisting(ctx, ownerID, childKind, it.ID, update); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}
		return nil
	}

	switch kind {
	case domain.KindWheel:
		if err := detach(domain.KindDot, "WheelID"); err != nil {
			return err
		}
	case domain.KindChakra:
		if err := detach(domain.KindWheel, "ChakraID"); err != nil {
			return err
		}
		if err := detach(domain.KindDot, "ChakraID"); err != nil {
			return err
		}
	}

	key, err := itemKey(ownerID, kind, id)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       key,
	})
	if err != nil {
		return classify(err)
	}
	s.logger.Debug("element deleted",
		zap.String("kind", string(kind)),
		zap.String("id", id),
		zap.String("owner", ownerID),
	)
	return nil
}

func (s *Store) getItem(ctx context.Context, ownerID string, kind domain.Kind, id string) (elementItem, error) {
	key, err := itemKey(ownerID, kind, id)
	if err != nil {
		return elementItem{}, err
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return elementItem{}, classify(err)
	}
	if out.Item == nil {
		return elementItem{}, domain.ErrNotFound
	}
	var it elementItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return elementItem{}, fmt.Errorf("unmarshal %s: %w", kind, err)
	}
	return it, nil
}

func (s *Store) listItems(ctx context.Context, ownerID string, kind domain.Kind) ([]elementItem, error) {
	keyEx := expression.Key("PK").Equal(expression.Value(ownerKey(ownerID))).
		And(expression.Key("SK").BeginsWith(sortKeyPrefix(kind)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyEx).Build()
	if err != nil {
		return nil, fmt.Errorf("build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var items []elementItem
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, classify(err)
		}
		var page []elementItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal %s list: %w", kind, err)
		}
		items = append(items, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return items, nil
}

func (s *Store) updateExisting(ctx context.Context, ownerID string, kind domain.Kind, id string, update expression.UpdateBuilder) error {
	key, err := itemKey(ownerID, kind, id)
	if err != nil {
		return err
	}
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.Name("PK").AttributeExists()).
		Build()
	if err != nil {
		return fmt.Errorf("build expression: %w", err)
	}
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return classify(err)
}

func (s *Store) putNew(ctx context.Context, it elementItem) error {
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", it.Kind, err)
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()).
		Build()
	if err != nil {
		return fmt.Errorf("build expression: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.tableName),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%s %q already exists", it.Kind, it.ID)
		}
		return classify(err)
	}
	return nil
}

// classify maps DynamoDB API errors onto domain errors. A failed existence
// condition means the element is missing for this owner.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return err
	}
	switch ae.ErrorCode() {
	case "ConditionalCheckFailedException":
		return domain.ErrNotFound
	case "ResourceNotFoundException":
		return fmt.Errorf("dynamodb table missing: %w", err)
	case "ProvisionedThroughputExceededException", "RequestLimitExceeded", "ThrottlingException":
		return fmt.Errorf("dynamodb throttled: %w", err)
	}
	return fmt.Errorf("dynamodb %s: %w", ae.ErrorCode(), err)
}
