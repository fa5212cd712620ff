package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminDisabled      = errors.New("admin login disabled")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidToken       = errors.New("invalid token")
)

const (
	adminSubject       = "admin"
	adminRole          = "admin"
	defaultTokenExpiry = 24 * time.Hour
	issuer             = "video-parser"
)

// Config configures the authentication service
type Config struct {
	AdminPassword string
	JWTSecret     string
	TokenExpiry   time.Duration
	Logger        *zerolog.Logger
}

// Claims are the JWT claims issued to administrators
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService verifies the administrator password and issues tokens that guard
// credential updates
type AuthService struct {
	adminHash   []byte
	jwtSecret   []byte
	tokenExpiry time.Duration
	logger      zerolog.Logger
}

// NewAuthService creates a new authentication service. An empty admin password
// disables login. An empty JWT secret is replaced by a random one, so tokens do
// not survive a restart.
func NewAuthService(config Config) (*AuthService, error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "auth").Logger()
	if config.Logger != nil {
		logger = *config.Logger
	}

	s := &AuthService{
		tokenExpiry: config.TokenExpiry,
		logger:      logger,
	}
	if s.tokenExpiry <= 0 {
		s.tokenExpiry = defaultTokenExpiry
	}

	if config.AdminPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(config.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
		s.adminHash = hash
	}

	if config.JWTSecret != "" {
		s.jwtSecret = []byte(config.JWTSecret)
	} else {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		s.jwtSecret = []byte(hex.EncodeToString(secret))
		logger.Warn().Msg("No JWT secret configured, using a random one")
	}

	return s, nil
}

// AdminEnabled reports whether an admin password is configured
func (s *AuthService) AdminEnabled() bool {
	return len(s.adminHash) > 0
}

// Authenticate checks the admin password and returns a signed token
func (s *AuthService) Authenticate(password string) (string, time.Time, error) {
	if !s.AdminEnabled() {
		return "", time.Time{}, ErrAdminDisabled
	}

	if err := bcrypt.CompareHashAndPassword(s.adminHash, []byte(password)); err != nil {
		s.logger.Warn().Msg("Admin login rejected")
		return "", time.Time{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.generateToken()
	if err != nil {
		return "", time.Time{}, err
	}

	s.logger.Info().Time("expires_at", expiresAt).Msg("Admin authenticated successfully")
	return token, expiresAt, nil
}

// ValidateToken validates a JWT token and returns its claims
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid || claims.Role != adminRole {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// generateToken generates an admin JWT token
func (s *AuthService) generateToken() (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.tokenExpiry)

	claims := Claims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminSubject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// secretMatches compares tokens in constant time
func secretMatches(expected, given string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}
