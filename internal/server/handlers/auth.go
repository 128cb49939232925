// Package handlers adapts the store operations to request/response types.
package handlers

import (
	"context"

	"github.com/its-mr-monday/WebDB/internal/errors"
	"github.com/its-mr-monday/WebDB/internal/identity"
	"github.com/its-mr-monday/WebDB/internal/server/reqctx"
)

// AuthHandler handles authentication requests.
type AuthHandler struct {
	ids *identity.Service
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(ids *identity.Service) *AuthHandler {
	return &AuthHandler{ids: ids}
}

// LoginRequest is a request to log in.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is a response from logging in.
type LoginResponse struct {
	Token string `json:"token"`
}

// Login verifies the credentials and returns a session token.
func (h *AuthHandler) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, errors.MissingField("username or password")
	}
	token, err := h.ids.Login(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{Token: token}, nil
}

// currentUser returns the username set by the auth middleware.
func currentUser(ctx context.Context) (string, error) {
	user := reqctx.User(ctx)
	if user == "" {
		return "", errors.Unauthorized("Unauthorized")
	}
	return user, nil
}
