package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/planflow/backend/internal/config"
	"github.com/planflow/backend/internal/middleware"
	"github.com/planflow/backend/internal/services"
	"github.com/planflow/backend/pkg/response"
	"gorm.io/gorm"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(db *gorm.DB, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: services.NewAuthService(db, &cfg.LDAP, &cfg.JWT),
	}
}

type loginResponse struct {
	Token           string      `json:"token"`
	ExpireAt        int64       `json:"expire_at"`
	RefreshToken    string      `json:"refresh_token"`
	RefreshExpireAt int64       `json:"refresh_expire_at"`
	User            interface{} `json:"user"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "username and password are required")
		return
	}

	result, err := h.authService.Login(&req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		services.LogWarning("auth", "login_failed", "login failed for "+req.Username, nil, c.ClientIP(), c.Request.UserAgent(), nil)
		response.Error(c, err)
		return
	}

	services.LogInfo("auth", "login", req.Username+" logged in", &result.User.ID, c.ClientIP(), c.Request.UserAgent(), nil)

	response.Success(c, loginResponse{
		Token:           result.AccessToken,
		ExpireAt:        result.AccessExpireAt.Unix(),
		RefreshToken:    result.RefreshToken,
		RefreshExpireAt: result.RefreshExpireAt.Unix(),
		User:            result.User,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh handles POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "refresh_token is required")
		return
	}

	result, err := h.authService.Refresh(req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"token":             result.AccessToken,
		"expire_at":         result.AccessExpireAt.Unix(),
		"refresh_token":     result.RefreshToken,
		"refresh_expire_at": result.RefreshExpireAt.Unix(),
	})
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req logoutRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.authService.RevokeRefreshToken(req.RefreshToken); err != nil {
		response.Error(c, err)
		return
	}

	userID := middleware.GetUserID(c)
	services.LogInfo("auth", "logout", middleware.GetUsername(c)+" logged out", &userID, c.ClientIP(), c.Request.UserAgent(), nil)

	response.Success(c, nil)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authService.GetUserByID(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// ChangePassword handles POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req services.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "old_password and new_password (min 6 chars) are required")
		return
	}

	if err := h.authService.ChangePassword(middleware.GetUserID(c), &req); err != nil {
		response.Error(c, err)
		return
	}

	userID := middleware.GetUserID(c)
	services.LogInfo("auth", "change_password", middleware.GetUsername(c)+" changed password", &userID, c.ClientIP(), c.Request.UserAgent(), nil)

	response.Success(c, nil)
}

// Config handles GET /api/auth/config, exposing which login methods are
// available.
func (h *AuthHandler) Config(c *gin.Context) {
	response.Success(c, gin.H{
		"ldap_enabled": h.authService.IsLDAPEnabled(),
	})
}
