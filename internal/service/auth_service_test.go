package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/skipd/skipd-api/internal/models"
	appErrors "github.com/skipd/skipd-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail   *models.User
	userByID      *models.User
	refreshTokens map[string]*models.RefreshToken
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.userByEmail == nil || m.userByEmail.Email != email {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if m.userByID != nil && m.userByID.ID == id {
		return m.userByID, nil
	}
	if m.userByEmail != nil && m.userByEmail.ID == id {
		return m.userByEmail, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	stored, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return stored, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID int64) error {
	now := time.Now().UTC()
	for _, token := range m.refreshTokens {
		if token.UserID == userID {
			token.Revoked = true
			token.RevokedAt = &now
		}
	}
	return nil
}

func newAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "skipd-api",
	})
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: 1, Name: "Alice", Email: "alice@example.com", PasswordHash: string(hash)}}
	svc := newAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "alice@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "bearer", res.TokenType)
	assert.Equal(t, int64(1), res.User.ID)
	assert.NotEmpty(t, repo.refreshTokens)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: 1, Email: "alice@example.com", PasswordHash: string(hash)}}
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "alice@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshRotates(t *testing.T) {
	user := &models.User{ID: 1, Email: "alice@example.com", PasswordHash: "hash"}
	repo := &mockAuthRepo{userByEmail: user, refreshTokens: map[string]*models.RefreshToken{
		"old-token": {ID: "rt1", UserID: 1, Token: "old-token", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := newAuthService(repo)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "old-token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["old-token"].Revoked)
}

func TestAuthServiceRefreshExpired(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"stale": {ID: "rt1", UserID: 1, Token: "stale", ExpiresAt: time.Now().Add(-time.Minute)},
	}}
	svc := newAuthService(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogoutForeignToken(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"token": {ID: "rt1", UserID: 2, Token: "token", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := newAuthService(repo)

	err := svc.Logout(context.Background(), "token", 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogout(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"token": {ID: "rt1", UserID: 1, Token: "token", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := newAuthService(repo)

	require.NoError(t, svc.Logout(context.Background(), "token", 1))
	assert.True(t, repo.refreshTokens["token"].Revoked)
}

func TestValidateToken(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{})
	user := &models.User{ID: 1, Email: "alice@example.com"}
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
}

func TestResolveIdentity(t *testing.T) {
	user := &models.User{ID: 1, Email: "alice@example.com"}
	repo := &mockAuthRepo{userByEmail: user}
	svc := newAuthService(repo)
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	resolved, err := svc.ResolveIdentity(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
}

// A structurally valid token pointing at a since-deleted account must be
// rejected when the identity is re-resolved.
func TestResolveIdentityDeletedAccount(t *testing.T) {
	user := &models.User{ID: 1, Email: "alice@example.com"}
	repo := &mockAuthRepo{userByEmail: user}
	svc := newAuthService(repo)
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	repo.userByEmail = nil

	_, err = svc.ResolveIdentity(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestResolveIdentityBadToken(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{})

	_, err := svc.ResolveIdentity(context.Background(), "not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
