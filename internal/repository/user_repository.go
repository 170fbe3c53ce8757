package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SvetlanaSumets11/CarRental/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserConflict = errors.New("user write conflict")
)

// UserChanges lists the attributes an update rewrites; nil fields are kept.
type UserChanges struct {
	FirstName        *string
	LastName         *string
	PasswordHash     *string
	EmailConfirmedAt *time.Time
}

// UserRepository stores users in a table keyed by user_id with a global
// secondary index on email.
type UserRepository struct {
	client     DynamoDBAPI
	tableName  string
	emailIndex string
	now        func() time.Time
}

func NewUserRepository(client DynamoDBAPI, tableName, emailIndex string) *UserRepository {
	return &UserRepository{
		client:     client,
		tableName:  tableName,
		emailIndex: emailIndex,
		now:        time.Now,
	}
}

func userKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id": &types.AttributeValueMemberS{Value: id},
	}
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	keyCond := expression.Key("email").Equal(expression.Value(email))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.emailIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, ErrUserNotFound
	}

	var user domain.User
	if err := attributevalue.UnmarshalMap(out.Items[0], &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}

// Create assigns the user an id and creation time and stores it. An existing
// account with the same email is a conflict.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, err := r.GetByEmail(ctx, user.Email); err == nil {
		return fmt.Errorf("%w: email %s is taken", ErrUserConflict, user.Email)
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	user.ID = uuid.NewString()
	user.CreatedAt = r.now().UTC()

	av, err := attributevalue.MarshalMap(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(user_id)"),
	})
	if err != nil {
		if isConditionFailed(err) || isTransactionConflict(err) {
			return fmt.Errorf("%w: cannot create user %s: %v", ErrUserConflict, user.Email, err)
		}
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

// Update applies changes to the stored user and returns the result.
func (r *UserRepository) Update(ctx context.Context, id string, changes UserChanges) (*domain.User, error) {
	var update expression.UpdateBuilder
	set := func(name string, value any) {
		update = update.Set(expression.Name(name), expression.Value(value))
	}
	if changes.FirstName != nil {
		set("first_name", *changes.FirstName)
	}
	if changes.LastName != nil {
		set("last_name", *changes.LastName)
	}
	if changes.PasswordHash != nil {
		set("password", *changes.PasswordHash)
	}
	if changes.EmailConfirmedAt != nil {
		set("email_confirmed_at", changes.EmailConfirmedAt.UTC())
	}
	if !update.IsSet() {
		return nil, errors.New("no user attributes to update")
	}
	cond := expression.AttributeExists(expression.Name("user_id"))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build update expression: %w", err)
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       userKey(id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, ErrUserNotFound
		}
		if isTransactionConflict(err) {
			return nil, fmt.Errorf("%w: cannot update user %s: %v", ErrUserConflict, id, err)
		}
		return nil, fmt.Errorf("failed to update item: %w", err)
	}

	var user domain.User
	if err := attributevalue.UnmarshalMap(out.Attributes, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 userKey(id),
		ConditionExpression: aws.String("attribute_exists(user_id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}
