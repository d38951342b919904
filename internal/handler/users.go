package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/web3-frozen/kpi-dashboard/internal/auth"
	"github.com/web3-frozen/kpi-dashboard/internal/store"
)

// UserStore is satisfied by *store.Store.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error)
	GetUserByUsername(ctx context.Context, username string) (*store.User, error)
}

// TokenIssuer is satisfied by *auth.Issuer.
type TokenIssuer interface {
	Issue(userID int64) (string, error)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func decodeCredentials(r *http.Request) (credentials, bool) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		return c, false
	}
	c.Username = strings.TrimSpace(c.Username)
	return c, c.Username != "" && c.Password != ""
}

func Register(users UserStore, iss TokenIssuer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := decodeCredentials(r)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "username and password required"})
			return
		}

		hash, err := auth.HashPassword(c.Password)
		if errors.Is(err, auth.ErrPasswordTooLong) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"msg": err.Error()})
			return
		}
		if err != nil {
			logger.Error("register: hash password", "error", err)
			http.Error(w, "Server error", http.StatusInternalServerError)
			return
		}
		user, err := users.CreateUser(r.Context(), c.Username, hash)
		if errors.Is(err, store.ErrUserExists) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "User already exists"})
			return
		}
		if err != nil {
			logger.Error("register: create user", "error", err)
			http.Error(w, "Server error", http.StatusInternalServerError)
			return
		}

		token, err := iss.Issue(user.ID)
		if err != nil {
			logger.Error("register: issue token", "error", err)
			http.Error(w, "Server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

func Login(users UserStore, iss TokenIssuer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := decodeCredentials(r)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "Invalid Credentials"})
			return
		}

		user, err := users.GetUserByUsername(r.Context(), c.Username)
		if errors.Is(err, store.ErrUserNotFound) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "Invalid Credentials"})
			return
		}
		if err != nil {
			logger.Error("login: get user", "error", err)
			http.Error(w, "Server error", http.StatusInternalServerError)
			return
		}
		if !auth.CheckPassword(user.PasswordHash, c.Password) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "Invalid Credentials"})
			return
		}

		token, err := iss.Issue(user.ID)
		if err != nil {
			logger.Error("login: issue token", "error", err)
			http.Error(w, "Server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}
