package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sentrywall/core/internal/services"
	"github.com/sentrywall/core/internal/waferr"
)

// AuthHandler exposes the one admin-session endpoint the core owns
// (spec.md §6 "AMBIENT": POST /api/auth/login). Everything else about
// a session — verification, role resolution — lives in
// middleware.RequireAuth once a token has been issued here.
type AuthHandler struct {
	auth *services.AuthService
}

// NewAuthHandler returns an AuthHandler backed by auth.
func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login validates credentials and returns a signed session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var wErr *waferr.Error
		if errors.As(err, &wErr) && wErr.Kind == waferr.KindForbidden {
			c.JSON(http.StatusForbidden, gin.H{"error": wErr.Message})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
