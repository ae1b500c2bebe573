package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"bizrent_ledger/internal/identity"
	"bizrent_ledger/internal/models"
)

// Claims represents the JWT claims
type Claims struct {
	UserID uint        `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 bearer tokens
type TokenService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, expiry time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return &TokenService{secret: []byte(secret), expiry: expiry, now: time.Now}, nil
}

// Issue creates a token for the user, returning it with its expiry
func (s *TokenService) Issue(user *models.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.expiry)
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(user.ID),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Parse validates the signature and expiry of a token
func (s *TokenService) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token has expired", identity.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%w: invalid token", identity.ErrUnauthenticated)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", identity.ErrUnauthenticated)
	}
	return claims, nil
}

// JWTAuthenticator resolves bearer tokens issued by TokenService to sessions
type JWTAuthenticator struct {
	db     *gorm.DB
	tokens *TokenService
}

func NewJWTAuthenticator(db *gorm.DB, tokens *TokenService) *JWTAuthenticator {
	return &JWTAuthenticator{db: db, tokens: tokens}
}

func (a *JWTAuthenticator) Authenticate(ctx context.Context, token string) (identity.Session, *models.User, error) {
	claims, err := a.tokens.Parse(token)
	if err != nil {
		return nil, nil, err
	}

	// The account must still exist and keep the role the token was issued for
	var user models.User
	if err := a.db.WithContext(ctx).First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: account no longer exists", identity.ErrUnauthenticated)
		}
		return nil, nil, err
	}
	if user.Role != claims.Role {
		return nil, nil, fmt.Errorf("%w: role changed", identity.ErrUnauthenticated)
	}

	session, err := identity.ForUser(&user)
	if err != nil {
		return nil, nil, err
	}
	return session, &user, nil
}
