package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ernie/trinity-arena/internal/auth"
	"github.com/ernie/trinity-arena/internal/storage"
)

// LoginRequest is the request body for login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the response body for successful login
type LoginResponse struct {
	Token                  string `json:"token"`
	Username               string `json:"username"`
	IsAdmin                bool   `json:"is_admin"`
	PasswordChangeRequired bool   `json:"password_change_required"`
}

// handleLogin authenticates a user and returns a JWT token
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var login LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&login); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if login.Username == "" || login.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	token, user, err := r.auth.Login(req.Context(), r.store, login.Username, login.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		writeInternal(w, req, err, "failed to log in")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:                  token,
		Username:               user.Username,
		IsAdmin:                user.IsAdmin,
		PasswordChangeRequired: user.PasswordChangeRequired,
	})
}

// handleAuthCheck reports whether the current token is valid
func (r *Router) handleAuthCheck(w http.ResponseWriter, req *http.Request) {
	claims := r.getAuthClaims(req)
	if claims == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"authenticated": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated":            true,
		"username":                 claims.Username,
		"is_admin":                 claims.IsAdmin,
		"password_change_required": claims.PasswordChangeRequired,
	})
}

// requireAuth is middleware that validates JWT before calling the handler
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if r.getAuthClaims(req) == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, req)
	}
}

// requireAdmin is middleware that validates JWT and checks admin status
func (r *Router) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		claims := r.getAuthClaims(req)
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !claims.IsAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, req)
	}
}

// getAuthClaims extracts and validates JWT from Authorization header
func (r *Router) getAuthClaims(req *http.Request) *auth.Claims {
	token, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return nil
	}
	claims, err := r.auth.ValidateToken(token)
	if err != nil {
		return nil
	}
	return claims
}

// ChangePasswordRequest is the request body for password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// handleChangePassword allows users to change their own password
func (r *Router) handleChangePassword(w http.ResponseWriter, req *http.Request) {
	claims := r.getAuthClaims(req)

	var body ChangePasswordRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body.NewPassword) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	user, err := r.store.GetUserByID(req.Context(), claims.UserID)
	if err != nil {
		writeInternal(w, req, err, "failed to get user")
		return
	}
	if !auth.CheckPassword(body.CurrentPassword, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(body.NewPassword)
	if err != nil {
		writeInternal(w, req, err, "failed to hash password")
		return
	}
	if err := r.store.UpdateUserPassword(req.Context(), claims.UserID, hash); err != nil {
		writeInternal(w, req, err, "failed to update password")
		return
	}

	user.PasswordChangeRequired = false
	newToken, err := r.auth.GenerateToken(user)
	if err != nil {
		writeInternal(w, req, err, "failed to generate new token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "password changed successfully",
		"token":   newToken,
	})
}

// UserResponse is a user without the password hash
type UserResponse struct {
	ID                     int64      `json:"id"`
	Username               string     `json:"username"`
	IsAdmin                bool       `json:"is_admin"`
	PasswordChangeRequired bool       `json:"password_change_required"`
	CreatedAt              time.Time  `json:"created_at"`
	LastLogin              *time.Time `json:"last_login,omitempty"`
}

// handleListUsers returns all users (admin only)
func (r *Router) handleListUsers(w http.ResponseWriter, req *http.Request) {
	users, err := r.store.ListUsers(req.Context())
	if err != nil {
		writeInternal(w, req, err, "failed to list users")
		return
	}

	response := make([]UserResponse, len(users))
	for i, u := range users {
		response[i] = UserResponse{
			ID:                     u.ID,
			Username:               u.Username,
			IsAdmin:                u.IsAdmin,
			PasswordChangeRequired: u.PasswordChangeRequired,
			CreatedAt:              u.CreatedAt,
			LastLogin:              u.LastLogin,
		}
	}
	writeJSON(w, http.StatusOK, response)
}

// handleDeleteUser deletes a user (admin only)
func (r *Router) handleDeleteUser(w http.ResponseWriter, req *http.Request) {
	username := req.PathValue("username")

	if claims := r.getAuthClaims(req); claims != nil && claims.Username == username {
		writeError(w, http.StatusForbidden, "cannot delete yourself")
		return
	}

	if err := r.store.DeleteUser(req.Context(), username); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeInternal(w, req, err, "failed to delete user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
