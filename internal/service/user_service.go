package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/SvetlanaSumets11/CarRental/internal/auth"
	"github.com/SvetlanaSumets11/CarRental/internal/domain"
	"github.com/SvetlanaSumets11/CarRental/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, id string, changes repository.UserChanges) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}

type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// UserService manages customer accounts: registration, JWT login, email
// confirmation and password reset.
type UserService struct {
	users  UserStore
	tokens *auth.Issuer
	mailer Mailer
	logger *zap.Logger
	now    func() time.Time
}

func NewUserService(users UserStore, tokens *auth.Issuer, mailer Mailer, logger *zap.Logger) *UserService {
	return &UserService{users: users, tokens: tokens, mailer: mailer, logger: logger, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) Register(ctx context.Context, req domain.RegistrationRequest) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.NewError(domain.ErrUserCreation, http.StatusBadRequest, "Cannot hash password, err=%v", err)
	}

	user := &domain.User{
		Email:        normalizeEmail(req.Email),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserConflict) {
			return nil, domain.NewError(domain.ErrUserCreation, http.StatusConflict, "User with that email already exists")
		}
		return nil, userError(domain.ErrUserCreation, user.Email, err)
	}
	s.logger.Info("User registered", zap.String("user_id", user.ID))
	return user, nil
}

// Login checks the credentials and issues an access and a refresh token.
// Unconfirmed accounts cannot log in.
func (s *UserService) Login(ctx context.Context, req domain.LoginRequest) (*domain.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, userError(domain.ErrUserLogin, req.Email, err)
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, domain.NewError(domain.ErrUserLogin, http.StatusUnauthorized, "Invalid email or password")
	}
	if !user.Confirmed() {
		return nil, domain.NewError(domain.ErrUserLogin, http.StatusBadRequest, "Email has not been confirmed yet")
	}

	access, err := s.tokens.Issue(user.Email, auth.PurposeAccess)
	if err != nil {
		return nil, domain.Rewrap(domain.ErrUserLogin, err)
	}
	refresh, err := s.tokens.Issue(user.Email, auth.PurposeRefresh)
	if err != nil {
		return nil, domain.Rewrap(domain.ErrUserLogin, err)
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh exchanges a refresh token of an existing user for a new access
// token.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	email, err := s.tokens.Parse(refreshToken, auth.PurposeRefresh)
	if err != nil {
		return nil, domain.NewError(domain.ErrUserLogin, http.StatusUnauthorized, "Invalid refresh token")
	}
	if _, err := s.users.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domain.NewError(domain.ErrUserLogin, http.StatusUnauthorized, "Invalid refresh token")
		}
		return nil, userError(domain.ErrUserLogin, email, err)
	}

	access, err := s.tokens.Issue(email, auth.PurposeAccess)
	if err != nil {
		return nil, domain.Rewrap(domain.ErrUserLogin, err)
	}
	return &domain.TokenPair{AccessToken: access}, nil
}

// Authenticate resolves the user an access token was issued to.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (*domain.User, error) {
	email, err := s.tokens.Parse(accessToken, auth.PurposeAccess)
	if err != nil {
		return nil, domain.NewError(domain.ErrUserGetting, http.StatusUnauthorized, "Invalid access token")
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, userError(domain.ErrUserGetting, email, err)
	}
	return user, nil
}

func (s *UserService) UpdateUser(ctx context.Context, user *domain.User, req domain.UserUpdateRequest) (*domain.User, error) {
	if req.FirstName == nil && req.LastName == nil {
		return user, nil
	}
	updated, err := s.users.Update(ctx, user.ID, repository.UserChanges{FirstName: req.FirstName, LastName: req.LastName})
	if err != nil {
		return nil, userError(domain.ErrUserUpdate, user.Email, err)
	}
	return updated, nil
}

func (s *UserService) DeleteUser(ctx context.Context, user *domain.User) error {
	if err := s.users.Delete(ctx, user.ID); err != nil {
		return userError(domain.ErrUserDeleting, user.Email, err)
	}
	s.logger.Info("User deleted", zap.String("user_id", user.ID))
	return nil
}

// RequestVerification mails a confirmation link to an unconfirmed account.
func (s *UserService) RequestVerification(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return userError(domain.ErrUserVerification, email, err)
	}
	if user.Confirmed() {
		return domain.NewError(domain.ErrUserVerification, http.StatusBadRequest, "Email %s has already been confirmed", user.Email)
	}

	token, err := s.tokens.Issue(user.Email, auth.PurposeVerifyEmail)
	if err != nil {
		return domain.Rewrap(domain.ErrUserVerification, err)
	}
	if err := s.mailer.SendVerification(ctx, user.Email, token); err != nil {
		return mailError(err)
	}
	return nil
}

func (s *UserService) VerifyEmail(ctx context.Context, token string) error {
	user, err := s.userByToken(ctx, token, auth.PurposeVerifyEmail)
	if err != nil {
		return err
	}
	if user.Confirmed() {
		return domain.NewError(domain.ErrUserVerification, http.StatusBadRequest, "Email %s has already been confirmed", user.Email)
	}

	now := s.now().UTC()
	if _, err := s.users.Update(ctx, user.ID, repository.UserChanges{EmailConfirmedAt: &now}); err != nil {
		return userError(domain.ErrUserVerification, user.Email, err)
	}
	s.logger.Info("User email confirmed", zap.String("user_id", user.ID))
	return nil
}

// ForgotPassword mails a password reset link.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return userError(domain.ErrUserVerification, email, err)
	}

	token, err := s.tokens.Issue(user.Email, auth.PurposeResetPassword)
	if err != nil {
		return domain.Rewrap(domain.ErrUserVerification, err)
	}
	if err := s.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
		return mailError(err)
	}
	return nil
}

func (s *UserService) ResetPassword(ctx context.Context, token, password string) error {
	user, err := s.userByToken(ctx, token, auth.PurposeResetPassword)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.NewError(domain.ErrUserVerification, http.StatusBadRequest, "Cannot hash password, err=%v", err)
	}
	encoded := string(hash)
	if _, err := s.users.Update(ctx, user.ID, repository.UserChanges{PasswordHash: &encoded}); err != nil {
		return userError(domain.ErrUserVerification, user.Email, err)
	}
	s.logger.Info("User password reset", zap.String("user_id", user.ID))
	return nil
}

func (s *UserService) userByToken(ctx context.Context, token string, purpose auth.Purpose) (*domain.User, error) {
	email, err := s.tokens.Parse(token, purpose)
	if err != nil {
		return nil, domain.NewError(domain.ErrUserVerification, http.StatusBadRequest, "Invalid or expired token")
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, userError(domain.ErrUserVerification, email, err)
	}
	return user, nil
}

func userError(kind error, email string, err error) *domain.ServiceError {
	var se *domain.ServiceError
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		se = domain.NewError(kind, http.StatusNotFound, "User with email %s does not exist", email)
	case errors.Is(err, repository.ErrUserConflict):
		se = domain.NewError(kind, http.StatusConflict, "User was changed concurrently, err=%v", err)
	default:
		se = domain.NewError(kind, http.StatusServiceUnavailable, "User storage unavailable, err=%v", err)
	}
	se.Err = err
	return se
}

func mailError(err error) *domain.ServiceError {
	se := domain.NewError(domain.ErrUserVerification, http.StatusBadGateway, "Cannot send mail, err=%v", err)
	se.Err = err
	return se
}
