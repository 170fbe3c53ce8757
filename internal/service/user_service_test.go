package service_test

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/SvetlanaSumets11/CarRental/internal/auth"
	"github.com/SvetlanaSumets11/CarRental/internal/domain"
	"github.com/SvetlanaSumets11/CarRental/internal/repository"
	"github.com/SvetlanaSumets11/CarRental/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memUserStore struct {
	mu     sync.Mutex
	users  map[string]domain.User
	nextID int
	err    error
}

func (m *memUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memUserStore) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrUserConflict
		}
	}
	m.nextID++
	user.ID = "user-" + strconv.Itoa(m.nextID)
	m.users[user.ID] = *user
	return nil
}

func (m *memUserStore) Update(_ context.Context, id string, changes repository.UserChanges) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if changes.FirstName != nil {
		u.FirstName = *changes.FirstName
	}
	if changes.LastName != nil {
		u.LastName = *changes.LastName
	}
	if changes.PasswordHash != nil {
		u.PasswordHash = *changes.PasswordHash
	}
	if changes.EmailConfirmedAt != nil {
		at := *changes.EmailConfirmedAt
		u.EmailConfirmedAt = &at
	}
	m.users[id] = u
	return &u, nil
}

func (m *memUserStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

// outbox records the tokens the service mails out.
type outbox struct {
	verify map[string]string
	reset  map[string]string
	err    error
}

func (o *outbox) SendVerification(_ context.Context, email, token string) error {
	if o.err != nil {
		return o.err
	}
	o.verify[email] = token
	return nil
}

func (o *outbox) SendPasswordReset(_ context.Context, email, token string) error {
	if o.err != nil {
		return o.err
	}
	o.reset[email] = token
	return nil
}

type userFixture struct {
	svc    *service.UserService
	store  *memUserStore
	mail   *outbox
	tokens *auth.Issuer
}

func newUserFixture() *userFixture {
	store := &memUserStore{users: map[string]domain.User{}}
	mail := &outbox{verify: map[string]string{}, reset: map[string]string{}}
	tokens := auth.NewIssuer("test-secret", auth.TTLs{Access: 15 * time.Minute, Refresh: 720 * time.Hour, Mail: time.Hour})
	return &userFixture{
		svc:    service.NewUserService(store, tokens, mail, zap.NewNop()),
		store:  store,
		mail:   mail,
		tokens: tokens,
	}
}

func registration(email string) domain.RegistrationRequest {
	return domain.RegistrationRequest{Email: email, Password: "s3cret-pass", FirstName: "Anna", LastName: "Koval"}
}

// registerConfirmed walks an account through registration and email
// confirmation.
func (f *userFixture) registerConfirmed(t *testing.T, email string) *domain.User {
	t.Helper()
	user, err := f.svc.Register(t.Context(), registration(email))
	require.NoError(t, err)
	require.NoError(t, f.svc.RequestVerification(t.Context(), email))
	require.NoError(t, f.svc.VerifyEmail(t.Context(), f.mail.verify[email]))
	return user
}

func TestUserService_Register(t *testing.T) {
	f := newUserFixture()

	user, err := f.svc.Register(t.Context(), registration(" Anna@Example.com "))
	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", user.Email)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)
	assert.False(t, user.Confirmed())

	_, err = f.svc.Register(t.Context(), registration("anna@example.com"))
	assertServiceError(t, err, domain.ErrUserCreation, http.StatusConflict)
}

func TestUserService_Login(t *testing.T) {
	f := newUserFixture()
	_, err := f.svc.Register(t.Context(), registration("anna@example.com"))
	require.NoError(t, err)

	_, err = f.svc.Login(t.Context(), domain.LoginRequest{Email: "anna@example.com", Password: "s3cret-pass"})
	assertServiceError(t, err, domain.ErrUserLogin, http.StatusBadRequest)

	require.NoError(t, f.svc.RequestVerification(t.Context(), "anna@example.com"))
	require.NoError(t, f.svc.VerifyEmail(t.Context(), f.mail.verify["anna@example.com"]))

	_, err = f.svc.Login(t.Context(), domain.LoginRequest{Email: "anna@example.com", Password: "wrong-pass"})
	assertServiceError(t, err, domain.ErrUserLogin, http.StatusUnauthorized)

	_, err = f.svc.Login(t.Context(), domain.LoginRequest{Email: "nobody@example.com", Password: "s3cret-pass"})
	assertServiceError(t, err, domain.ErrUserLogin, http.StatusUnauthorized)

	pair, err := f.svc.Login(t.Context(), domain.LoginRequest{Email: "anna@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	email, err := f.tokens.Parse(pair.AccessToken, auth.PurposeAccess)
	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", email)

	user, err := f.svc.Authenticate(t.Context(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "Anna", user.FirstName)

	_, err = f.svc.Authenticate(t.Context(), pair.RefreshToken)
	assertServiceError(t, err, domain.ErrUserGetting, http.StatusUnauthorized)
}

func TestUserService_Refresh(t *testing.T) {
	f := newUserFixture()
	user := f.registerConfirmed(t, "anna@example.com")
	pair, err := f.svc.Login(t.Context(), domain.LoginRequest{Email: "anna@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	refreshed, err := f.svc.Refresh(t.Context(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Empty(t, refreshed.RefreshToken)

	_, err = f.svc.Refresh(t.Context(), pair.AccessToken)
	assertServiceError(t, err, domain.ErrUserLogin, http.StatusUnauthorized)

	require.NoError(t, f.svc.DeleteUser(t.Context(), user))
	_, err = f.svc.Refresh(t.Context(), pair.RefreshToken)
	assertServiceError(t, err, domain.ErrUserLogin, http.StatusUnauthorized)
}

func TestUserService_Verification(t *testing.T) {
	f := newUserFixture()
	_, err := f.svc.Register(t.Context(), registration("anna@example.com"))
	require.NoError(t, err)

	err = f.svc.RequestVerification(t.Context(), "nobody@example.com")
	assertServiceError(t, err, domain.ErrUserVerification, http.StatusNotFound)

	err = f.svc.VerifyEmail(t.Context(), "garbage")
	assertServiceError(t, err, domain.ErrUserVerification, http.StatusBadRequest)

	require.NoError(t, f.svc.RequestVerification(t.Context(), "anna@example.com"))
	token := f.mail.verify["anna@example.com"]
	require.NotEmpty(t, token)

	reset, err := f.tokens.Issue("anna@example.com", auth.PurposeResetPassword)
	require.NoError(t, err)
	err = f.svc.VerifyEmail(t.Context(), reset)
	assertServiceError(t, err, domain.ErrUserVerification, http.StatusBadRequest)

	require.NoError(t, f.svc.VerifyEmail(t.Context(), token))
	user, err := f.store.GetByEmail(t.Context(), "anna@example.com")
	require.NoError(t, err)
	assert.True(t, user.Confirmed())

	err = f.svc.VerifyEmail(t.Context(), token)
	assertServiceError(t, err, domain.ErrUserVerification, http.StatusBadRequest)
	err = f.svc.RequestVerification(t.Context(), "anna@example.com")
	assertServiceError(t, err, domain.ErrUserVerification, http.StatusBadRequest)
}

func TestUserService_PasswordReset(t *testing.T) {
	f := newUserFixture()
	f.registerConfirmed(t, "anna@example.com")

	err := f.svc.ForgotPassword(t.Context(), "nobody@example.com")
	assertServiceError(t, err, domain.ErrUserVerification, http.StatusNotFound)

	require.NoError(t, f.svc.ForgotPassword(t.Context(), "anna@example.com"))
	token := f.mail.reset["anna@example.com"]
	require.NotEmpty(t, token)

	err = f.svc.ResetPassword(t.Context(), f.mail.verify["anna@example.com"], "n3w-password")
	assertServiceError(t, err, domain.ErrUserVerification, http.StatusBadRequest)

	require.NoError(t, f.svc.ResetPassword(t.Context(), token, "n3w-password"))

	_, err = f.svc.Login(t.Context(), domain.LoginRequest{Email: "anna@example.com", Password: "s3cret-pass"})
	assertServiceError(t, err, domain.ErrUserLogin, http.StatusUnauthorized)
	_, err = f.svc.Login(t.Context(), domain.LoginRequest{Email: "anna@example.com", Password: "n3w-password"})
	assert.NoError(t, err)
}

func TestUserService_MailFailure(t *testing.T) {
	f := newUserFixture()
	_, err := f.svc.Register(t.Context(), registration("anna@example.com"))
	require.NoError(t, err)
	f.mail.err = errors.New("smtp: 421 service not available")

	err = f.svc.RequestVerification(t.Context(), "anna@example.com")
	assertServiceError(t, err, domain.ErrUserVerification, http.StatusBadGateway)

	err = f.svc.ForgotPassword(t.Context(), "anna@example.com")
	assertServiceError(t, err, domain.ErrUserVerification, http.StatusBadGateway)
}

func TestUserService_UpdateAndDelete(t *testing.T) {
	f := newUserFixture()
	user := f.registerConfirmed(t, "anna@example.com")

	last := "Shevchenko"
	updated, err := f.svc.UpdateUser(t.Context(), user, domain.UserUpdateRequest{LastName: &last})
	require.NoError(t, err)
	assert.Equal(t, "Anna", updated.FirstName)
	assert.Equal(t, "Shevchenko", updated.LastName)

	unchanged, err := f.svc.UpdateUser(t.Context(), updated, domain.UserUpdateRequest{})
	require.NoError(t, err)
	assert.Equal(t, updated, unchanged)

	require.NoError(t, f.svc.DeleteUser(t.Context(), user))
	err = f.svc.DeleteUser(t.Context(), user)
	assertServiceError(t, err, domain.ErrUserDeleting, http.StatusNotFound)

	_, err = f.svc.UpdateUser(t.Context(), user, domain.UserUpdateRequest{LastName: &last})
	assertServiceError(t, err, domain.ErrUserUpdate, http.StatusNotFound)
}

func TestUserService_StorageUnavailable(t *testing.T) {
	f := newUserFixture()
	f.store.err = errors.New("connection reset")

	_, err := f.svc.Register(t.Context(), registration("anna@example.com"))
	assertServiceError(t, err, domain.ErrUserCreation, http.StatusServiceUnavailable)

	_, err = f.svc.Login(t.Context(), domain.LoginRequest{Email: "anna@example.com", Password: "s3cret-pass"})
	assertServiceError(t, err, domain.ErrUserLogin, http.StatusServiceUnavailable)
}
