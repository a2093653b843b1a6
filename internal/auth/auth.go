package auth

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
	"github.com/xtrntr/lutinex/internal/market"
	"github.com/xtrntr/lutinex/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by Login for an unknown username or a
// wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrInvalidToken is returned for a token that is malformed, expired or
// signed with another key.
var ErrInvalidToken = errors.New("invalid or expired token")

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// UserStore is the account storage the auth service needs
type UserStore interface {
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, p models.ProfileUpdate) (models.User, error)
}

// Config holds the auth settings
type Config struct {
	Secret          []byte
	TokenTTL        time.Duration
	StartingBalance decimal.Decimal
	CacheSize       int
	CacheTTL        time.Duration
}

// AuthService handles user authentication
type AuthService struct {
	Users   UserStore
	secret  []byte
	ttl     time.Duration
	balance decimal.Decimal
	cache   *expirable.LRU[uuid.UUID, models.User]
	now     func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(users UserStore, cfg Config) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	return &AuthService{
		Users:   users,
		secret:  cfg.Secret,
		ttl:     cfg.TokenTTL,
		balance: cfg.StartingBalance,
		cache:   expirable.NewLRU[uuid.UUID, models.User](cfg.CacheSize, nil, cfg.CacheTTL),
		now:     time.Now,
	}
}

// Registration is the input to Register. Name falls back to the username and
// Color to a random one.
type Registration struct {
	Username string
	Password string
	Name     string
	Color    string
}

// Register creates a new user with hashed password
func (s *AuthService) Register(ctx context.Context, r Registration) (models.User, error) {
	if r.Username == "" {
		return models.User{}, fmt.Errorf("%w: username cannot be empty", market.ErrValidation)
	}
	if r.Password == "" {
		return models.User{}, fmt.Errorf("%w: password cannot be empty", market.ErrValidation)
	}
	if len(r.Username) > 50 {
		return models.User{}, fmt.Errorf("%w: username too long (max 50 characters)", market.ErrValidation)
	}
	if len(r.Password) > 72 {
		return models.User{}, fmt.Errorf("%w: password too long (max 72 characters)", market.ErrValidation)
	}
	if r.Name == "" {
		r.Name = r.Username
	}
	if r.Color == "" {
		r.Color = fmt.Sprintf("#%06x", rand.Intn(0x1000000))
	} else if !colorPattern.MatchString(r.Color) {
		return models.User{}, fmt.Errorf("%w: color must look like #rrggbb", market.ErrValidation)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(r.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.Users.CreateUser(ctx, models.User{
		Name:         r.Name,
		Username:     r.Username,
		PasswordHash: string(hashedPassword),
		Color:        r.Color,
		Balance:      s.balance,
	})
	if err != nil {
		return models.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login verifies credentials and generates a JWT
func (s *AuthService) Login(ctx context.Context, username, password string) (string, models.User, error) {
	user, err := s.Users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, market.ErrNotFound) {
			return "", models.User{}, ErrInvalidCredentials
		}
		return "", models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", models.User{}, ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      user.ID.String(),
		"username": user.Username,
		"exp":      s.now().Add(s.ttl).Unix(),
	})
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", models.User{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, user, nil
}

// GetUserFromToken extracts the user id from a JWT
func (s *AuthService) GetUserFromToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

// Resolve maps a bearer token to its user. Users are cached for a short
// while; profile edits through this service evict the entry.
func (s *AuthService) Resolve(ctx context.Context, tokenString string) (models.User, error) {
	id, err := s.GetUserFromToken(tokenString)
	if err != nil {
		return models.User{}, err
	}
	if u, ok := s.cache.Get(id); ok {
		return u, nil
	}

	u, err := s.Users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, market.ErrNotFound) {
			return models.User{}, ErrInvalidToken
		}
		return models.User{}, err
	}
	s.cache.Add(id, u)
	return u, nil
}

// UpdateProfile changes a user's name, color or company marker.
func (s *AuthService) UpdateProfile(ctx context.Context, id uuid.UUID, p models.ProfileUpdate) (models.User, error) {
	if p.Name != nil && *p.Name == "" {
		return models.User{}, fmt.Errorf("%w: name cannot be empty", market.ErrValidation)
	}
	if p.Color != nil && !colorPattern.MatchString(*p.Color) {
		return models.User{}, fmt.Errorf("%w: color must look like #rrggbb", market.ErrValidation)
	}

	u, err := s.Users.UpdateProfile(ctx, id, p)
	s.cache.Remove(id)
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}
