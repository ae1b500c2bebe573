package services

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
	"gorm.io/gorm"

	"bizrent_ledger/internal/identity"
	"bizrent_ledger/internal/models"
)

// InitFirebase initializes the Firebase Admin SDK. bucket may be empty when storage is unused.
func InitFirebase(ctx context.Context, credPath, bucket string) (*firebase.App, error) {
	opt := option.WithCredentialsFile(credPath)
	var conf *firebase.Config
	if bucket != "" {
		conf = &firebase.Config{StorageBucket: bucket}
	}
	return firebase.NewApp(ctx, conf, opt)
}

// IDTokenVerifier is the part of the Firebase auth client used to authenticate requests
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseAuthenticator accepts Firebase ID tokens and maps them to local users,
// linking the Firebase UID to the account with the same email on first use
type FirebaseAuthenticator struct {
	db       *gorm.DB
	verifier IDTokenVerifier
}

// NewFirebaseAuthenticator builds an authenticator from a Firebase app
func NewFirebaseAuthenticator(ctx context.Context, app *firebase.App, db *gorm.DB) (*FirebaseAuthenticator, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return &FirebaseAuthenticator{db: db, verifier: client}, nil
}

// NewFirebaseAuthenticatorWithVerifier allows injecting a test verifier
func NewFirebaseAuthenticatorWithVerifier(db *gorm.DB, verifier IDTokenVerifier) *FirebaseAuthenticator {
	return &FirebaseAuthenticator{db: db, verifier: verifier}
}

func (a *FirebaseAuthenticator) Authenticate(ctx context.Context, token string) (identity.Session, *models.User, error) {
	decoded, err := a.verifier.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", identity.ErrUnauthenticated, err)
	}

	db := a.db.WithContext(ctx)
	var user models.User
	err = db.Where("firebase_uid = ?", decoded.UID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		email, _ := decoded.Claims["email"].(string)
		email = models.NormalizeEmail(email)
		if email == "" {
			return nil, nil, fmt.Errorf("%w: token has no email", identity.ErrUnauthenticated)
		}
		if err := db.Where("email = ?", email).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, fmt.Errorf("%w: no account for %s", identity.ErrUnauthenticated, email)
			}
			return nil, nil, err
		}
		uid := decoded.UID
		if err := db.Model(&user).Update("firebase_uid", uid).Error; err != nil {
			return nil, nil, err
		}
		user.FirebaseUID = &uid
	} else if err != nil {
		return nil, nil, err
	}

	session, err := identity.ForUser(&user)
	if err != nil {
		return nil, nil, err
	}
	return session, &user, nil
}
