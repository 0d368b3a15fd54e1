package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	auth2 "github.com/go-pkgz/auth/v2"
	"github.com/go-pkgz/auth/v2/avatar"
	"github.com/go-pkgz/auth/v2/token"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/icco/minesduel"
	"github.com/icco/minesduel/store"
)

// Define context key type to avoid collisions
type contextKey string

const (
	userContextKey contextKey = "user"

	issuer        = "minesduel-app"
	tokenDuration = 24 * time.Hour

	maxHandleLen   = 50
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLen = 72
)

func newAuthService(cfg *config) *auth2.Service {
	secret := cfg.JWTSecret
	return auth2.NewService(auth2.Opts{
		SecretReader:  token.SecretFunc(func(aud string) (string, error) { return secret, nil }),
		TokenDuration: tokenDuration,
		Issuer:        issuer,
		URL:           cfg.BaseURL,
		DisableXSRF:   true,             // for API only
		AvatarStore:   avatar.NewNoOp(), // disable avatars support
	})
}

// CredentialsRequest is used for both registration and login.
type CredentialsRequest struct {
	Handle   string `json:"handle" example:"alice"`
	Password string `json:"password" example:"secretpassword"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type" example:"bearer"`
}

func (s *server) authRoutes() http.Handler {
	r := chi.NewRouter()

	// Add rate limiting to auth endpoints
	r.Use(middleware.Throttle(5)) // 5 concurrent requests max

	authHandler, _ := s.auth.Handlers() // avatarHandler not used here
	r.Mount("/", authHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.ThrottleBacklog(10, 60, 50))

		r.Post("/register", s.registerHandler)
		r.Post("/login", s.loginHandler)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/me", s.meHandler)
	})

	return r
}

func (req *CredentialsRequest) validate() error {
	if req.Handle == "" || req.Password == "" {
		return minesduel.Invalidf("handle and password required")
	}
	if len(req.Password) > maxPasswordLen {
		return minesduel.Invalidf("password too long (max %d bytes)", maxPasswordLen)
	}
	return nil
}

// @Summary Register a new account
// @Description Register a handle and password. The handle is used as the player name in matches.
// @Tags auth
// @Accept json
// @Produce json
// @Param user body CredentialsRequest true "Handle and password"
// @Success 201 {object} TokenResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/register [post]
func (s *server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warnw("invalid registration request body", "error", err.Error(), "remote_addr", r.RemoteAddr)
		renderMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		renderError(w, r, err)
		return
	}
	if len(req.Password) < minPasswordLen {
		renderMessage(w, http.StatusBadRequest, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
		return
	}
	if len(req.Handle) > maxHandleLen || !slug.IsSlug(req.Handle) {
		renderMessage(w, http.StatusBadRequest, "handle must be lowercase letters, digits and dashes")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		renderError(w, r, fmt.Errorf("hash password: %w", err))
		return
	}

	user, err := s.store.CreateUser(r.Context(), req.Handle, string(hashed))
	if err != nil {
		renderError(w, r, err)
		return
	}

	tok, err := s.issueToken(user)
	if err != nil {
		renderError(w, r, err)
		return
	}

	log.Infow("user registered", "user_id", user.ID, "handle", user.Handle, "remote_addr", r.RemoteAddr)
	renderJSON(w, http.StatusCreated, TokenResponse{AccessToken: tok, TokenType: "bearer"})
}

// @Summary Log in
// @Description Exchange a handle and password for a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param user body CredentialsRequest true "Handle and password"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (s *server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		renderError(w, r, err)
		return
	}

	user, err := s.store.UserByHandle(r.Context(), req.Handle)
	if errors.Is(err, minesduel.ErrNotFound) {
		log.Warnw("login attempt for unknown handle", "handle", req.Handle, "remote_addr", r.RemoteAddr)
		renderMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		renderError(w, r, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Warnw("login attempt with invalid password", "user_id", user.ID, "remote_addr", r.RemoteAddr)
		renderMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	tok, err := s.issueToken(user)
	if err != nil {
		renderError(w, r, err)
		return
	}

	log.Infow("user logged in", "user_id", user.ID, "remote_addr", r.RemoteAddr)
	renderJSON(w, http.StatusOK, TokenResponse{AccessToken: tok, TokenType: "bearer"})
}

// @Summary Current account
// @Description Returns the account behind the bearer token
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} store.User
// @Failure 401 {object} ErrorResponse
// @Router /auth/me [get]
func (s *server) meHandler(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, getMustUserFromContext(r))
}

func (s *server) issueToken(user *store.User) (string, error) {
	now := time.Now()
	id := strconv.FormatInt(user.ID, 10)
	claims := token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id,
			Audience:  []string{minesduel.Service},
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenDuration)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		User: &token.User{
			ID:   id,
			Name: user.Handle,
		},
	}

	tokenString, err := s.auth.TokenService().Token(claims)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

var errNoCredentials = errors.New("missing or invalid authorization header")

func (s *server) currentUser(r *http.Request) (*store.User, error) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, errNoCredentials
	}

	claims, err := s.auth.TokenService().Parse(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		return nil, err
	}
	if claims.User == nil {
		return nil, fmt.Errorf("token has no user")
	}

	id, err := strconv.ParseInt(claims.User.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad user id in token: %w", err)
	}
	return s.store.UserByID(r.Context(), id)
}

// authMiddleware rejects requests without a valid bearer token.
func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.currentUser(r)
		if err != nil {
			log.Warnw("authentication failed", "path", r.URL.Path, zap.Error(err))
			renderMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// optionalAuth attaches the caller's account when a valid bearer token is
// sent and lets anonymous requests through.
func (s *server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.currentUser(r)
		if err != nil {
			if !errors.Is(err, errNoCredentials) {
				log.Warnw("ignoring bad credentials", "path", r.URL.Path, zap.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Helper to get user from request context
func getUserFromContext(r *http.Request) *store.User {
	if user, ok := r.Context().Value(userContextKey).(*store.User); ok && user != nil {
		return user
	}
	return nil
}

// Helper to get user from request context with panic on nil (for protected routes)
func getMustUserFromContext(r *http.Request) *store.User {
	user := getUserFromContext(r)
	if user == nil {
		panic("user is nil in protected route - auth middleware failed")
	}
	return user
}
