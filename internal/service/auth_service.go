package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/hr-admin-api/internal/models"
	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
)

type authEmployeeRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Employee, error)
	FindByID(ctx context.Context, id string) (*models.Employee, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	UpdatePasswordWithTx(ctx context.Context, tx *sqlx.Tx, id, passwordHash string, updatedAt time.Time) error
	ActivateWithTx(ctx context.Context, tx *sqlx.Tx, id, passwordHash string, ts time.Time) error
	RevokeEmployeeRefreshTokens(ctx context.Context, employeeID string) error
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type roleLister interface {
	ListByEmployee(ctx context.Context, employeeID string) ([]models.Role, error)
}

type oneTimeTokenStore interface {
	Create(ctx context.Context, token *models.OneTimeToken) error
	FindByToken(ctx context.Context, token string) (*models.OneTimeToken, error)
	ExpireWithTx(ctx context.Context, tx *sqlx.Tx, id string) error
	ExpireByEmployee(ctx context.Context, employeeID string) error
}

type resetNotifier interface {
	SendPasswordReset(ctx context.Context, r Recipient) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	ResetTokenExpiry   time.Duration
	Issuer             string
	Audience           []string
	SingleSession      bool
}

// AuthTokens groups the one-time token stores used by the auth flows.
type AuthTokens struct {
	Activations oneTimeTokenStore
	Resets      oneTimeTokenStore
}

// AuthService provides authentication use cases.
type AuthService struct {
	db        txProvider
	repo      authEmployeeRepository
	roles     roleLister
	tokens    AuthTokens
	notifier  resetNotifier
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(db txProvider, repo authEmployeeRepository, roles roleLister, tokens AuthTokens, notifier resetNotifier, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.ResetTokenExpiry <= 0 {
		config.ResetTokenExpiry = time.Hour
	}
	return &AuthService{
		db:        db,
		repo:      repo,
		roles:     roles,
		tokens:    tokens,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Login authenticates an employee and returns issued tokens.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	emp, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch employee")
	}

	if emp.Disabled {
		return nil, appErrors.Clone(appErrors.ErrDisabledAccount, "account is disabled")
	}
	if !emp.CanLogin() {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is not activated")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*emp.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	if err := s.loadRoles(ctx, emp); err != nil {
		return nil, err
	}

	if s.config.SingleSession {
		if err := s.repo.RevokeEmployeeRefreshTokens(ctx, emp.ID); err != nil {
			s.logger.Warn("failed to revoke previous refresh tokens", zap.Error(err))
		}
	}

	accessToken, _, err := s.generateAccessToken(emp)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	refreshToken, err := s.issueRefreshToken(ctx, emp.ID, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateLastLogin(ctx, emp.ID, s.now()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	s.audit(ctx, emp.ID, models.AuditActionLogin, `{"status":"success"}`, req.IP, req.UserAgent)

	return &models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken.Token,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     s.now(),
		User:         userInfo(emp),
	}, nil
}

// RefreshToken exchanges a refresh token for a new access token pair.
func (s *AuthService) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload")
	}

	storedToken, err := s.repo.FindRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch refresh token")
	}

	if storedToken.Revoked || s.now().After(storedToken.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token is expired or revoked")
	}

	emp, err := s.repo.FindByID(ctx, storedToken.EmployeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "associated employee no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	if emp.Disabled {
		return nil, appErrors.Clone(appErrors.ErrDisabledAccount, "account is disabled")
	}
	if err := s.loadRoles(ctx, emp); err != nil {
		return nil, err
	}

	if err := s.repo.RevokeRefreshToken(ctx, storedToken.ID, s.now()); err != nil {
		s.logger.Warn("failed to revoke used refresh token", zap.Error(err))
	}

	accessToken, _, err := s.generateAccessToken(emp)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate access token")
	}

	newRefresh, err := s.issueRefreshToken(ctx, emp.ID, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}

	return &models.RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefresh.Token,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     s.now(),
	}, nil
}

// Logout revokes the provided refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, employeeID string, actor Actor) error {
	storedToken, err := s.repo.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load refresh token")
	}

	if storedToken.EmployeeID != employeeID {
		return appErrors.Clone(appErrors.ErrForbidden, "token does not belong to employee")
	}

	if err := s.repo.RevokeRefreshToken(ctx, storedToken.ID, s.now()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke refresh token")
	}

	s.audit(ctx, employeeID, models.AuditActionLogout, `{"status":"logout"}`, actor.IP, actor.UserAgent)
	return nil
}

// Profile returns the authenticated employee.
func (s *AuthService) Profile(ctx context.Context, employeeID string) (*models.UserInfo, error) {
	emp, err := s.repo.FindByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	if err := s.loadRoles(ctx, emp); err != nil {
		return nil, err
	}
	info := userInfo(emp)
	return &info, nil
}

// ChangePassword changes the password for the given employee.
func (s *AuthService) ChangePassword(ctx context.Context, employeeID string, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change password payload")
	}

	emp, err := s.repo.FindByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}

	if emp.PasswordHash == nil || bcrypt.CompareHashAndPassword([]byte(*emp.PasswordHash), []byte(req.OldPassword)) != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "old password does not match")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.repo.UpdatePassword(ctx, employeeID, string(newHash), s.now()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	if err := s.repo.RevokeEmployeeRefreshTokens(ctx, employeeID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after password change", zap.Error(err))
	}

	s.audit(ctx, employeeID, models.AuditActionPasswordChange, `{"status":"changed"}`, "", "")
	return nil
}

// ForgotPassword emails a reset token. Unknown or disabled accounts succeed
// silently so the endpoint does not reveal which emails exist.
func (s *AuthService) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid forgot password payload")
	}

	emp, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch employee")
	}
	if emp.Disabled {
		s.logger.Info("password reset requested for disabled account", zap.String("employee_id", emp.ID))
		return nil
	}

	if err := s.tokens.Resets.ExpireByEmployee(ctx, emp.ID); err != nil {
		s.logger.Warn("failed to expire previous reset tokens", zap.String("employee_id", emp.ID), zap.Error(err))
	}

	now := s.now()
	token := &models.OneTimeToken{
		EmployeeID: emp.ID,
		Email:      emp.Email,
		Token:      uuid.NewString(),
		Status:     models.TokenValid,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.config.ResetTokenExpiry),
	}
	if err := s.tokens.Resets.Create(ctx, token); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reset token")
	}

	if s.notifier != nil {
		if err := s.notifier.SendPasswordReset(ctx, Recipient{Email: emp.Email, Name: emp.FullName(), Token: token.Token}); err != nil {
			s.logger.Warn("password reset email not delivered", zap.String("employee_id", emp.ID), zap.Error(err))
		}
	}
	return nil
}

// ResetPassword consumes a reset token and stores the new password.
func (s *AuthService) ResetPassword(ctx context.Context, req models.ConfirmResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset password payload")
	}

	token, err := s.usableToken(ctx, s.tokens.Resets, req.Token)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	err = s.consume(ctx, s.tokens.Resets, token, func(tx *sqlx.Tx) error {
		return s.repo.UpdatePasswordWithTx(ctx, tx, token.EmployeeID, string(hash), s.now())
	})
	if err != nil {
		return err
	}

	if err := s.repo.RevokeEmployeeRefreshTokens(ctx, token.EmployeeID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after password reset", zap.Error(err))
	}
	s.audit(ctx, token.EmployeeID, models.AuditActionPasswordReset, `{"status":"reset"}`, "", "")
	return nil
}

// ActivateAccount consumes an activation token, sets the first password and
// marks the account Active.
func (s *AuthService) ActivateAccount(ctx context.Context, req models.ActivateAccountRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activation payload")
	}

	token, err := s.usableToken(ctx, s.tokens.Activations, req.Token)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	err = s.consume(ctx, s.tokens.Activations, token, func(tx *sqlx.Tx) error {
		return s.repo.ActivateWithTx(ctx, tx, token.EmployeeID, string(hash), s.now())
	})
	if err != nil {
		return err
	}

	s.audit(ctx, token.EmployeeID, models.AuditActionAccountActivate, `{"status":"active"}`, "", "")
	return nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) usableToken(ctx context.Context, store oneTimeTokenStore, value string) (*models.OneTimeToken, error) {
	token, err := store.FindByToken(ctx, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrTokenInvalid, "token is invalid or expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load token")
	}
	if !token.Usable(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrTokenInvalid, "token is invalid or expired")
	}
	return token, nil
}

// consume runs apply and expires the token in the same transaction. A token
// spent concurrently by another request rolls the change back.
func (s *AuthService) consume(ctx context.Context, store oneTimeTokenStore, token *models.OneTimeToken, apply func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = apply(tx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrTokenInvalid, "token is invalid or expired")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update employee")
	}
	if err = store.ExpireWithTx(ctx, tx, token.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrTokenInvalid, "token is invalid or expired")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expire token")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit")
	}
	return nil
}

func (s *AuthService) loadRoles(ctx context.Context, emp *models.Employee) error {
	if s.roles == nil {
		return nil
	}
	roles, err := s.roles.ListByEmployee(ctx, emp.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roles")
	}
	emp.Roles = roles
	return nil
}

func (s *AuthService) issueRefreshToken(ctx context.Context, employeeID, ip, userAgent string) (*models.RefreshToken, error) {
	value, err := s.generateRefreshTokenString()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}
	now := s.now()
	token := &models.RefreshToken{
		ID:         uuid.NewString(),
		EmployeeID: employeeID,
		Token:      value,
		ExpiresAt:  now.Add(s.config.RefreshTokenExpiry),
		CreatedAt:  now,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}
	if err := s.repo.CreateRefreshToken(ctx, token); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}
	return token, nil
}

func (s *AuthService) audit(ctx context.Context, employeeID, action, payload, ip, userAgent string) {
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		ActorID:    &employeeID,
		Action:     action,
		Resource:   "auth",
		ResourceID: &employeeID,
		NewValues:  []byte(payload),
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record auth audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *AuthService) generateAccessToken(emp *models.Employee) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	roles := emp.Roles
	if roles == nil {
		roles = []models.Role{}
	}
	claims := &models.JWTClaims{
		EmployeeID: emp.ID,
		Roles:      roles,
		Email:      emp.Email,
		FullName:   emp.FullName(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   emp.ID,
			Audience:  s.config.Audience,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *AuthService) generateRefreshTokenString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func userInfo(emp *models.Employee) models.UserInfo {
	roles := emp.Roles
	if roles == nil {
		roles = []models.Role{}
	}
	return models.UserInfo{
		ID:       emp.ID,
		Email:    emp.Email,
		FullName: emp.FullName(),
		Roles:    roles,
	}
}
