package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/uni-records-api/internal/models"
	appErrors "github.com/noah-isme/uni-records-api/pkg/errors"
)

type accountStore interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	UpdateEmail(ctx context.Context, id, email string) error
}

type orphanLinkStore interface {
	LinkAccountByEmail(ctx context.Context, accountID, email string) (int64, error)
}

// TokenConfig defines access token issuance parameters.
type TokenConfig struct {
	Secret     string
	Expiration time.Duration
}

// RegisterRequest describes account creation.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest describes a login attempt.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateEmailRequest describes an account email change.
type UpdateEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// AccountService manages portal accounts. Whenever an account gains an email,
// either at registration or by a later change, unlinked students with the
// same address are claimed by that account.
type AccountService struct {
	accounts  accountStore
	students  orphanLinkStore
	validator *validator.Validate
	logger    *zap.Logger
	tokens    TokenConfig
}

// NewAccountService constructs AccountService.
func NewAccountService(accounts accountStore, students orphanLinkStore, validate *validator.Validate, logger *zap.Logger, tokens TokenConfig) *AccountService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{accounts: accounts, students: students, validator: validate, logger: logger, tokens: tokens}
}

// Register creates an account and links any orphan students sharing its email.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*models.Account, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	existing, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	account := &models.Account{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
		Role:         models.RoleStudent,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}

	s.linkOrphans(ctx, account.ID, account.Email)
	return account, nil
}

// Login authenticates an account and issues an access token.
func (s *AccountService) Login(ctx context.Context, req LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	account, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch account")
	}
	if account == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	token, err := s.generateAccessToken(account)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.tokens.Expiration.Seconds()),
		Account:     *account,
	}, nil
}

// UpdateEmail changes the account email and claims orphan students matching
// the new address.
func (s *AccountService) UpdateEmail(ctx context.Context, accountID string, req UpdateEmailRequest) (*models.Account, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid email payload")
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
	}

	taken, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if taken != nil && taken.ID != accountID {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	}

	if err := s.accounts.UpdateEmail(ctx, accountID, req.Email); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update email")
	}
	account.Email = req.Email

	s.linkOrphans(ctx, accountID, req.Email)
	return account, nil
}

// ValidateToken parses and validates an access token, returning its claims.
func (s *AccountService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.tokens.Secret), nil
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

func (s *AccountService) generateAccessToken(account *models.Account) (string, error) {
	issuedAt := time.Now().UTC()
	claims := &models.JWTClaims{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.tokens.Expiration)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.tokens.Secret))
}

// linkOrphans is best effort: a failed link never fails the account write, it
// only logs. The UPDATE itself is idempotent.
func (s *AccountService) linkOrphans(ctx context.Context, accountID, email string) {
	linked, err := s.students.LinkAccountByEmail(ctx, accountID, email)
	if err != nil {
		s.logger.Sugar().Warnw("orphan student linking failed", "account_id", accountID, "error", err)
		return
	}
	if linked > 0 {
		s.logger.Sugar().Infow("linked orphan students", "account_id", accountID, "count", linked)
	}
}
