package domain

import "time"

// User is a rental customer account. The password hash never leaves the
// service.
type User struct {
	ID               string     `json:"user_id" dynamodbav:"user_id"`
	Email            string     `json:"email" dynamodbav:"email"`
	FirstName        string     `json:"first_name" dynamodbav:"first_name"`
	LastName         string     `json:"last_name" dynamodbav:"last_name"`
	PasswordHash     string     `json:"-" dynamodbav:"password"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at" dynamodbav:"email_confirmed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at" dynamodbav:"created_at"`
}

func (u User) Confirmed() bool {
	return u.EmailConfirmedAt != nil
}

type RegistrationRequest struct {
	Email     string `json:"email" binding:"required,email,max=254"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
	FirstName string `json:"first_name" binding:"max=64"`
	LastName  string `json:"last_name" binding:"max=64"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserUpdateRequest changes the profile of the signed-in user; nil fields are
// left untouched.
type UserUpdateRequest struct {
	FirstName *string `json:"first_name" binding:"omitempty,max=64"`
	LastName  *string `json:"last_name" binding:"omitempty,max=64"`
}

type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type PasswordResetRequest struct {
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// TokenPair is returned by login; refresh only issues a new access token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}
