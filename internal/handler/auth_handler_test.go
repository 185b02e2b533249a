package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tahfidz-admin-api/internal/models"
	appErrors "github.com/noah-isme/tahfidz-admin-api/pkg/errors"
)

type authenticatorStub struct {
	got models.LoginRequest
	err error
}

func (s *authenticatorStub) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.LoginResponse{AccessToken: "token", ExpiresIn: 3600, User: models.UserInfo{ID: "u-1", Email: req.Email}}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	stub := &authenticatorStub{}
	h := NewAuthHandler(stub)

	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":"ahmad.2024001@siswa.tahfidz.sch.id","password":"0012345678"}`))
	h.Login(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0012345678", stub.got.Password)
	assert.Contains(t, w.Body.String(), `"access_token":"token"`)
}

func TestAuthHandlerLoginErrors(t *testing.T) {
	h := NewAuthHandler(&authenticatorStub{err: appErrors.ErrInvalidCredentials})

	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":"a@b.c","password":"nope"}`))
	h.Login(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodPost, "/auth/login", []byte(`not-json`))
	h.Login(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
