package handler

import (
	"net/http"
	"strings"

	"github.com/SvetlanaSumets11/CarRental/internal/domain"
	"github.com/SvetlanaSumets11/CarRental/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const currentUserKey = "current_user"

type UserHandler struct {
	userService *service.UserService
	logger      *zap.Logger
}

func NewUserHandler(userService *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{userService: userService, logger: logger}
}

func (h *UserHandler) Register(r gin.IRouter) {
	register := r.Group("/register")
	{
		register.POST("", h.RegisterUser)
		register.POST("/forgot-password", h.ForgotPassword)
		register.POST("/reset-password/:token", h.ResetPassword)
	}

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
	}

	mail := r.Group("/mail")
	{
		mail.POST("/verify", h.RequestVerification)
		mail.POST("/verify/:token", h.VerifyEmail)
	}

	user := r.Group("/user", h.RequireUser)
	{
		user.GET("", h.GetUser)
		user.PUT("", h.UpdateUser)
		user.DELETE("", h.DeleteUser)
	}
}

// RequireUser resolves the bearer access token into the current user.
func (h *UserHandler) RequireUser(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		return
	}
	user, err := h.userService.Authenticate(c.Request.Context(), token)
	if err != nil {
		if domain.StatusCode(err) == http.StatusUnauthorized {
			c.Header("WWW-Authenticate", "Bearer")
		}
		writeError(c, h.logger, "Failed to authenticate user", err)
		c.Abort()
		return
	}
	c.Set(currentUserKey, user)
	c.Next()
}

func (h *UserHandler) RegisterUser(c *gin.Context) {
	var req domain.RegistrationRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, "Failed to register user", err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) ForgotPassword(c *gin.Context) {
	var req domain.EmailRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	if err := h.userService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.logger, "Failed to send password reset mail", err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req domain.PasswordResetRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	if err := h.userService.ResetPassword(c.Request.Context(), c.Param("token"), req.Password); err != nil {
		writeError(c, h.logger, "Failed to reset password", err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *UserHandler) Login(c *gin.Context) {
	var req domain.LoginRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	tokens, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, "Failed to log in", err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// Refresh takes the refresh token as the bearer credential.
func (h *UserHandler) Refresh(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		return
	}

	tokens, err := h.userService.Refresh(c.Request.Context(), token)
	if err != nil {
		writeError(c, h.logger, "Failed to refresh token", err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *UserHandler) RequestVerification(c *gin.Context) {
	var req domain.EmailRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	if err := h.userService.RequestVerification(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.logger, "Failed to send verification mail", err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *UserHandler) VerifyEmail(c *gin.Context) {
	if err := h.userService.VerifyEmail(c.Request.Context(), c.Param("token")); err != nil {
		writeError(c, h.logger, "Failed to verify email", err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req domain.UserUpdateRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	if _, err := h.userService.UpdateUser(c.Request.Context(), currentUser(c), req); err != nil {
		writeError(c, h.logger, "Failed to update user", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.userService.DeleteUser(c.Request.Context(), currentUser(c)); err != nil {
		writeError(c, h.logger, "Failed to delete user", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func currentUser(c *gin.Context) *domain.User {
	return c.MustGet(currentUserKey).(*domain.User)
}

func bearerToken(c *gin.Context) (string, bool) {
	scheme, token, found := strings.Cut(c.GetHeader("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		c.Header("WWW-Authenticate", "Bearer")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No authorization credentials found"})
		return "", false
	}
	return strings.TrimSpace(token), true
}

func bindJSON(c *gin.Context, logger *zap.Logger, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		logger.Warn("Invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return false
	}
	return true
}
