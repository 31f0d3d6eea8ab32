package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ernie/trinity-arena/internal/storage"
)

const issuer = "trinity-arena"

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Claims identifies an operator of the arena web API
type Claims struct {
	Username               string `json:"username"`
	UserID                 int64  `json:"user_id"`
	IsAdmin                bool   `json:"is_admin"`
	PasswordChangeRequired bool   `json:"password_change_required"`
	jwt.RegisteredClaims
}

// UserStore is the subset of storage the login flow needs
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*storage.User, error)
	UpdateUserLastLogin(ctx context.Context, userID int64) error
}

// Service signs and checks operator tokens
type Service struct {
	jwtSecret     []byte
	tokenDuration time.Duration
	now           func() time.Time
}

func NewService(jwtSecret string, tokenDuration time.Duration) *Service {
	if tokenDuration == 0 {
		tokenDuration = 24 * time.Hour
	}
	return &Service{
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: tokenDuration,
		now:           time.Now,
	}
}

// HashPassword creates a bcrypt hash of a password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// CheckPassword compares a password against a hash
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Login verifies credentials and returns a signed token for the user.
// Unknown users and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, users UserStore, username, password string) (string, *storage.User, error) {
	user, err := users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !CheckPassword(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return "", nil, err
	}
	// a failed timestamp update should not lock anyone out
	_ = users.UpdateUserLastLogin(ctx, user.ID)
	return token, user, nil
}

// GenerateToken creates a JWT for an authenticated user
func (s *Service) GenerateToken(user *storage.User) (string, error) {
	now := s.now()
	claims := Claims{
		Username:               user.Username,
		UserID:                 user.ID,
		IsAdmin:                user.IsAdmin,
		PasswordChangeRequired: user.PasswordChangeRequired,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken validates a JWT and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
