package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/conduct-console/internal/config"
	"github.com/stemsi/conduct-console/internal/model"
	"github.com/stemsi/conduct-console/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenInvalid        = errors.New("token invalid")
	ErrSessionInvalidated  = errors.New("session invalidated")
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	UserID    int        `json:"user_id"`
	Role      model.Role `json:"role"`
	SessionID string     `json:"sid"`
}

// AuthService handles passwords, access tokens and refresh token rotation.
type AuthService struct {
	cfg      *config.Config
	sessions SessionStore
	users    *repository.UserRepository
	now      func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, sessions SessionStore, users *repository.UserRepository) *AuthService {
	return &AuthService{cfg: cfg, sessions: sessions, users: users, now: time.Now}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Login checks the username and password and opens a new session.
func (s *AuthService) Login(ctx context.Context, username, password string) (*model.TokenResponse, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, err
	}

	sessionID := uuid.New().String()
	if err := s.sessions.CreateSession(ctx, sessionID, user.ID, s.cfg.RefreshTokenTTL); err != nil {
		return nil, err
	}
	return s.issue(ctx, user, sessionID)
}

// Refresh exchanges a refresh token for a new pair. The old refresh token is spent
// whether or not the exchange succeeds.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	rec, err := s.sessions.ConsumeRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrRefreshTokenInvalid
		}
		return nil, err
	}

	active, err := s.sessions.SessionActive(ctx, rec.SessionID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrSessionInvalidated
	}

	user, err := s.users.GetByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionInvalidated
		}
		return nil, err
	}
	return s.issue(ctx, user, rec.SessionID)
}

// Logout ends the session the claims belong to. Its refresh token dies with it.
func (s *AuthService) Logout(ctx context.Context, claims *Claims) error {
	return s.sessions.DeleteSession(ctx, claims.SessionID)
}

// ValidateToken parses an access token and checks that its session is still live.
func (s *AuthService) ValidateToken(ctx context.Context, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	active, err := s.sessions.SessionActive(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrSessionInvalidated
	}
	return claims, nil
}

func (s *AuthService) issue(ctx context.Context, user *model.User, sessionID string) (*model.TokenResponse, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
		},
		UserID:    user.ID,
		Role:      user.Role,
		SessionID: sessionID,
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	refresh, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}
	rec := RefreshRecord{UserID: user.ID, SessionID: sessionID}
	if err := s.sessions.SaveRefreshToken(ctx, refresh, rec, s.cfg.RefreshTokenTTL); err != nil {
		return nil, err
	}

	identity := user.Identity()
	return &model.TokenResponse{AccessToken: access, RefreshToken: refresh, User: &identity}, nil
}

func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
