package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"bizrent_ledger/internal/identity"
	"bizrent_ledger/internal/ledger"
	"bizrent_ledger/internal/models"
)

func newAccounts(t *testing.T) (*AccountService, *TokenService) {
	t.Helper()
	tokens, err := NewTokenService("test-secret", time.Hour)
	require.NoError(t, err)
	svc := NewAccountService(newTestDB(t), tokens)
	svc.cost = bcrypt.MinCost
	return svc, tokens
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, tokens := newAccounts(t)

	res, err := svc.Register(ctx, RegisterRequest{
		Email:     " Owner@Example.com ",
		Password:  "correct horse",
		FirstName: "Olive",
		LastName:  "Owner",
		Role:      models.RoleLandlord,
	})
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", res.User.Email)
	assert.NotEmpty(t, res.Token)

	claims, err := tokens.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, models.RoleLandlord, claims.Role)

	var pref models.UserNotifPreference
	require.NoError(t, svc.db.Where("user_id = ?", res.User.ID).First(&pref).Error)
	assert.Equal(t, models.NotificationChannelEmail, pref.Channel)

	_, err = svc.Register(ctx, RegisterRequest{Email: "owner@example.com", Password: "another one", Role: models.RoleTenant})
	require.ErrorIs(t, err, ledger.ErrValidation)
	assert.Contains(t, err.Error(), "email")

	login, err := svc.Login(ctx, LoginRequest{Email: "OWNER@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, login.User.ID)

	_, err = svc.Login(ctx, LoginRequest{Email: "owner@example.com", Password: "wrong password"})
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)
	_, err2 := svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "wrong password"})
	assert.ErrorIs(t, err2, identity.ErrUnauthenticated)
	assert.Equal(t, err.Error(), err2.Error())
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newAccounts(t)
	_, err := svc.Register(context.Background(), RegisterRequest{Email: "a@b.co", Password: "short", Role: models.RoleTenant})
	assert.ErrorIs(t, err, ledger.ErrValidation)
	_, err = svc.Register(context.Background(), RegisterRequest{Email: "a@b.co", Password: "long enough", Role: "ADMIN"})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestJWTAuthenticator(t *testing.T) {
	ctx := context.Background()
	svc, tokens := newAccounts(t)
	res, err := svc.Register(ctx, RegisterRequest{Email: "t@example.com", Password: "password1", Role: models.RoleTenant})
	require.NoError(t, err)

	auth := NewJWTAuthenticator(svc.db, tokens)
	session, user, err := auth.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, session.UserID())
	assert.Equal(t, models.RoleTenant, session.Role())
	assert.Equal(t, "t@example.com", user.Email)

	_, _, err = auth.Authenticate(ctx, res.Token+"x")
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)

	tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, _, err = auth.Authenticate(ctx, res.Token)
	require.ErrorIs(t, err, identity.ErrUnauthenticated)
	assert.Contains(t, err.Error(), "expired")
	tokens.now = time.Now

	require.NoError(t, svc.db.Delete(&models.User{}, res.User.ID).Error)
	_, _, err = auth.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)
}

func TestTokenServiceRejectsOtherSecrets(t *testing.T) {
	a, err := NewTokenService("one", time.Hour)
	require.NoError(t, err)
	b, err := NewTokenService("two", time.Hour)
	require.NoError(t, err)

	token, _, err := a.Issue(&models.User{ID: 1, Role: models.RoleTenant})
	require.NoError(t, err)
	_, err = b.Parse(token)
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)

	_, err = NewTokenService("", time.Hour)
	assert.Error(t, err)
}
