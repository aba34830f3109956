package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hr-admin-api/internal/models"
	"github.com/noah-isme/hr-admin-api/internal/service"
	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
)

type fakeAuthSrv struct {
	loginReq    models.LoginRequest
	loginErr    error
	logoutActor service.Actor
	logoutOwner string
	forgotCalls int
	activateErr error
	profile     *models.UserInfo
}

func (f *fakeAuthSrv) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	f.loginReq = req
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &models.LoginResponse{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}, nil
}

func (f *fakeAuthSrv) RefreshToken(context.Context, models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "next"}, nil
}

func (f *fakeAuthSrv) Logout(_ context.Context, _ string, employeeID string, actor service.Actor) error {
	f.logoutOwner = employeeID
	f.logoutActor = actor
	return nil
}

func (f *fakeAuthSrv) Profile(context.Context, string) (*models.UserInfo, error) {
	if f.profile == nil {
		return nil, appErrors.ErrNotFound
	}
	return f.profile, nil
}

func (f *fakeAuthSrv) ChangePassword(context.Context, string, models.ChangePasswordRequest) error {
	return nil
}

func (f *fakeAuthSrv) ForgotPassword(context.Context, models.ForgotPasswordRequest) error {
	f.forgotCalls++
	return nil
}

func (f *fakeAuthSrv) ResetPassword(context.Context, models.ConfirmResetPasswordRequest) error {
	return nil
}

func (f *fakeAuthSrv) ActivateAccount(context.Context, models.ActivateAccountRequest) error {
	return f.activateErr
}

func TestAuthHandlerLoginCapturesClient(t *testing.T) {
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv)

	c, rec := newTestContext(http.MethodPost, "/auth/login", map[string]string{"email": "a@corp.tn", "password": "secret"})
	c.Request.Header.Set("User-Agent", "test-agent")

	handler.Login(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@corp.tn", srv.loginReq.Email)
	assert.Equal(t, "test-agent", srv.loginReq.UserAgent)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "Bearer", envelope.Data["token_type"])
}

func TestAuthHandlerLoginMapsServiceError(t *testing.T) {
	handler := NewAuthHandler(&fakeAuthSrv{loginErr: appErrors.ErrDisabledAccount})

	c, rec := newTestContext(http.MethodPost, "/auth/login", map[string]string{"email": "a@corp.tn", "password": "secret"})
	handler.Login(c)

	assert.Equal(t, appErrors.ErrDisabledAccount.Status, rec.Code)
	assert.Equal(t, appErrors.ErrDisabledAccount.Code, decodeEnvelope(t, rec).Error.Code)
}

func TestAuthHandlerLoginRejectsMalformedBody(t *testing.T) {
	handler := NewAuthHandler(&fakeAuthSrv{})

	c, rec := newTestContext(http.MethodPost, "/auth/login", nil)
	handler.Login(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandlerLogoutRequiresClaims(t *testing.T) {
	handler := NewAuthHandler(&fakeAuthSrv{})

	c, rec := newTestContext(http.MethodPost, "/auth/logout", map[string]string{"refresh_token": "r"})
	handler.Logout(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandlerLogoutPassesActor(t *testing.T) {
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv)

	c, rec := newTestContext(http.MethodPost, "/auth/logout", map[string]string{"refresh_token": "r"})
	withClaims(c, "emp-1", models.RoleEmployee)
	handler.Logout(c)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "emp-1", srv.logoutOwner)
	assert.Equal(t, "emp-1", srv.logoutActor.ID)
}

func TestAuthHandlerForgotPasswordAlwaysAccepted(t *testing.T) {
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv)

	c, rec := newTestContext(http.MethodPost, "/auth/forgot-password", map[string]string{"email": "ghost@corp.tn"})
	handler.ForgotPassword(c)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, srv.forgotCalls)
}

func TestAuthHandlerActivateInvalidToken(t *testing.T) {
	handler := NewAuthHandler(&fakeAuthSrv{activateErr: appErrors.ErrTokenInvalid})

	c, rec := newTestContext(http.MethodPost, "/auth/activate", map[string]string{"token": "t", "password": "longenough"})
	handler.Activate(c)

	assert.Equal(t, appErrors.ErrTokenInvalid.Status, rec.Code)
}

func TestAuthHandlerMeReturnsProfile(t *testing.T) {
	handler := NewAuthHandler(&fakeAuthSrv{profile: &models.UserInfo{ID: "emp-1", Email: "a@corp.tn", Roles: []models.Role{models.RoleHR}}})

	c, rec := newTestContext(http.MethodGet, "/auth/me", nil)
	withClaims(c, "emp-1", models.RoleHR)
	handler.Me(c)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "emp-1", envelope.Data["id"])
	assert.Equal(t, []interface{}{"HR"}, envelope.Data["roles"])
}
