package repository_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SvetlanaSumets11/CarRental/internal/domain"
	"github.com/SvetlanaSumets11/CarRental/internal/repository"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUserTable is a users table keyed by user_id whose Query serves the
// email index.
type fakeUserTable struct {
	mu      sync.Mutex
	items   map[string]map[string]types.AttributeValue
	failErr error
}

func newFakeUserTable() *fakeUserTable {
	return &fakeUserTable{items: map[string]map[string]types.AttributeValue{}}
}

func userIDOf(item map[string]types.AttributeValue) string {
	return item["user_id"].(*types.AttributeValueMemberS).Value
}

func (f *fakeUserTable) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	k := userIDOf(in.Item)
	_, exists := f.items[k]
	if err := checkCondition(in.ConditionExpression, exists); err != nil {
		return nil, err
	}
	f.items[k] = copyItem(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeUserTable) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[userIDOf(in.Key)]}, nil
}

func (f *fakeUserTable) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	k := userIDOf(in.Key)
	item, exists := f.items[k]
	if err := checkCondition(in.ConditionExpression, exists); err != nil {
		return nil, err
	}
	item = copyItem(item)

	expr := strings.TrimSpace(aws.ToString(in.UpdateExpression))
	expr = strings.TrimSpace(strings.TrimPrefix(expr, "SET"))
	for _, assignment := range strings.Split(expr, ",") {
		parts := strings.Split(assignment, "=")
		name := in.ExpressionAttributeNames[strings.TrimSpace(parts[0])]
		item[name] = in.ExpressionAttributeValues[strings.TrimSpace(parts[1])]
	}
	f.items[k] = item
	return &dynamodb.UpdateItemOutput{Attributes: copyItem(item)}, nil
}

func (f *fakeUserTable) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := userIDOf(in.Key)
	_, exists := f.items[k]
	if err := checkCondition(in.ConditionExpression, exists); err != nil {
		return nil, err
	}
	delete(f.items, k)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeUserTable) Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return nil, errors.New("users are never scanned")
}

func (f *fakeUserTable) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	if aws.ToString(in.IndexName) != "email-index" {
		return nil, errors.New("unexpected index " + aws.ToString(in.IndexName))
	}
	var want string
	for _, v := range in.ExpressionAttributeValues {
		want = v.(*types.AttributeValueMemberS).Value
	}
	var items []map[string]types.AttributeValue
	for _, item := range f.items {
		if email, ok := item["email"].(*types.AttributeValueMemberS); ok && email.Value == want {
			items = append(items, copyItem(item))
		}
	}
	return &dynamodb.QueryOutput{Items: items}, nil
}

func newUser(email string) *domain.User {
	return &domain.User{Email: email, FirstName: "Anna", LastName: "Koval", PasswordHash: "$2a$10$hash"}
}

func TestUserRepository_CreateAndGetByEmail(t *testing.T) {
	repo := repository.NewUserRepository(newFakeUserTable(), "users", "email-index")
	user := newUser("anna@example.com")

	require.NoError(t, repo.Create(t.Context(), user))
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	got, err := repo.GetByEmail(t.Context(), "anna@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "$2a$10$hash", got.PasswordHash)
	assert.False(t, got.Confirmed())

	_, err = repo.GetByEmail(t.Context(), "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	repo := repository.NewUserRepository(newFakeUserTable(), "users", "email-index")
	require.NoError(t, repo.Create(t.Context(), newUser("anna@example.com")))

	err := repo.Create(t.Context(), newUser("anna@example.com"))
	assert.ErrorIs(t, err, repository.ErrUserConflict)
}

func TestUserRepository_Update(t *testing.T) {
	repo := repository.NewUserRepository(newFakeUserTable(), "users", "email-index")
	user := newUser("anna@example.com")
	require.NoError(t, repo.Create(t.Context(), user))

	name := "Hanna"
	confirmed := time.Date(2030, 3, 4, 5, 6, 7, 0, time.UTC)
	got, err := repo.Update(t.Context(), user.ID, repository.UserChanges{FirstName: &name, EmailConfirmedAt: &confirmed})
	require.NoError(t, err)
	assert.Equal(t, "Hanna", got.FirstName)
	assert.Equal(t, "Koval", got.LastName)
	require.True(t, got.Confirmed())
	assert.True(t, confirmed.Equal(*got.EmailConfirmedAt))

	_, err = repo.Update(t.Context(), "missing", repository.UserChanges{FirstName: &name})
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	_, err = repo.Update(t.Context(), user.ID, repository.UserChanges{})
	assert.Error(t, err)
}

func TestUserRepository_Delete(t *testing.T) {
	repo := repository.NewUserRepository(newFakeUserTable(), "users", "email-index")
	user := newUser("anna@example.com")
	require.NoError(t, repo.Create(t.Context(), user))

	require.NoError(t, repo.Delete(t.Context(), user.ID))
	assert.ErrorIs(t, repo.Delete(t.Context(), user.ID), repository.ErrUserNotFound)

	_, err := repo.GetByEmail(t.Context(), "anna@example.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestUserRepository_StorageFailure(t *testing.T) {
	table := newFakeUserTable()
	table.failErr = errors.New("throughput exceeded")
	repo := repository.NewUserRepository(table, "users", "email-index")

	err := repo.Create(t.Context(), newUser("anna@example.com"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrUserConflict)

	_, err = repo.GetByEmail(t.Context(), "anna@example.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrUserNotFound)
}
