package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tahfidz-admin-api/internal/models"
	appErrors "github.com/noah-isme/tahfidz-admin-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail      *models.User
	findByEmailErr   error
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func newTestAuthService(repo authUserRepository) *AuthService {
	return NewAuthService(repo, NewBcryptHasher(4), validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "tahfidz-admin-api",
	})
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	hash, err := NewBcryptHasher(4).Hash("0012345678")
	require.NoError(t, err)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u-1", Email: "ahmad.s1@siswa.tahfidz.sch.id", PasswordHash: hash, Active: true, Role: models.RoleStudent}}
	svc := newTestAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "ahmad.s1@siswa.tahfidz.sch.id", Password: "0012345678"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, models.RoleStudent, res.User.Role)
	assert.True(t, repo.lastLoginUpdated)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "tahfidz-admin-api", claims.Issuer)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	hash, err := NewBcryptHasher(4).Hash("right")
	require.NoError(t, err)
	svc := newTestAuthService(&mockAuthRepo{userByEmail: &models.User{ID: "u-1", Email: "a@b.c", PasswordHash: hash, Active: true}})

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "a@b.c", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc := newTestAuthService(&mockAuthRepo{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@b.c", Password: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthServiceLoginInactive(t *testing.T) {
	hash, err := NewBcryptHasher(4).Hash("pw")
	require.NoError(t, err)
	svc := newTestAuthService(&mockAuthRepo{userByEmail: &models.User{ID: "u-1", Email: "a@b.c", PasswordHash: hash}})

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "a@b.c", Password: "pw"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInactiveAccount))
}

func TestAuthServiceLoginValidation(t *testing.T) {
	svc := newTestAuthService(&mockAuthRepo{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceLoginRepositoryFailure(t *testing.T) {
	svc := newTestAuthService(&mockAuthRepo{findByEmailErr: errors.New("connection reset")})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "a@b.c", Password: "pw"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestAuthServiceValidateTokenRejectsForeignSecret(t *testing.T) {
	svc := newTestAuthService(&mockAuthRepo{})
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{
		UserID: "u-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "tahfidz-admin-api",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte("other"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceValidateTokenExpired(t *testing.T) {
	svc := newTestAuthService(&mockAuthRepo{})
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{
		UserID: "u-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "tahfidz-admin-api",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	require.Error(t, err)
}
