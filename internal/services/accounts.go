package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"bizrent_ledger/internal/identity"
	"bizrent_ledger/internal/ledger"
	"bizrent_ledger/internal/models"
)

type RegisterRequest struct {
	Email     string      `json:"email" validate:"required,email"`
	Password  string      `json:"password" validate:"required,min=8"`
	FirstName string      `json:"firstName" validate:"required,max=100"`
	LastName  string      `json:"lastName" validate:"required,max=100"`
	Role      models.Role `json:"role" validate:"required,oneof=TENANT LANDLORD"`
	Phone     string      `json:"phone" validate:"max=50"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned by register and login
type AuthResult struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

var errBadCredentials = fmt.Errorf("%w: invalid email or password", identity.ErrUnauthenticated)

// AccountService registers users and exchanges passwords for tokens
type AccountService struct {
	db     *gorm.DB
	tokens *TokenService
	cost   int
}

func NewAccountService(db *gorm.DB, tokens *TokenService) *AccountService {
	return &AccountService{db: db, tokens: tokens, cost: bcrypt.DefaultCost}
}

func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	email := models.NormalizeEmail(req.Email)
	if !req.Role.Valid() {
		return nil, &ledger.ValidationError{Field: "role", Message: "role must be TENANT or LANDLORD"}
	}
	if len(req.Password) < 8 {
		return nil, &ledger.ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:        email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        strings.TrimSpace(req.Phone),
		Role:         req.Role,
		PasswordHash: string(hash),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Unscoped().Model(&models.User{}).Where("email = ?", email).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return &ledger.ValidationError{Field: "email", Message: "email is already registered"}
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		pref := models.DefaultNotifPreference(user.ID)
		return tx.Create(&pref).Error
	})
	if err != nil {
		return nil, err
	}

	return s.issue(&user)
}

func (s *AccountService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	email := models.NormalizeEmail(req.Email)

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errBadCredentials
	}

	return s.issue(&user)
}

// Me returns the account behind a session
func (s *AccountService) Me(ctx context.Context, session identity.Session) (*models.User, error) {
	if session == nil {
		return nil, identity.ErrUnauthenticated
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, session.UserID()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identity.ErrUnauthenticated
		}
		return nil, err
	}
	return &user, nil
}

func (s *AccountService) issue(user *models.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}
