package auth

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ticketline/backend/pkg/response"
)

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Handler handles session authentication endpoints.
type Handler struct {
	repo   *Repository
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	u, err := h.repo.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("login lookup", zap.Error(err))
		response.Internal(c, "login failed")
		return
	}
	if u == nil || !u.IsActive || !CheckPassword(req.Password, u.PasswordHash) {
		response.Unauthorized(c, "invalid credentials")
		return
	}

	token, err := h.jwt.Generate(u.ID, u.Email)
	if err != nil {
		h.logger.Error("token generation", zap.Error(err))
		response.Internal(c, "login failed")
		return
	}
	response.OK(c, gin.H{"token": token, "user": u})
}
