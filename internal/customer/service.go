package customer

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"smartqueue/internal/auth"
	"smartqueue/internal/logger"
	"smartqueue/internal/models"
	"smartqueue/internal/utils"
)

type DBLayer interface {
	CreateCustomer(ctx context.Context, c *models.Customer) error
	EmailExists(ctx context.Context, email string) (bool, error)
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
}

// Service manages customer accounts. Customers log in with their email and
// receive customer-scope tokens whose subject is the customer ID.
type Service struct {
	DB          DBLayer
	Tokens      *auth.TokenManager
	Revocations auth.RevocationStore
	Logger      *logger.Logger

	now func() time.Time
}

func NewService(db DBLayer, tokens *auth.TokenManager, revocations auth.RevocationStore, logger *logger.Logger) *Service {
	return &Service{
		DB:          db,
		Tokens:      tokens,
		Revocations: revocations,
		Logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) SignUp(ctx context.Context, input models.CustomerSignUpRequest) (*models.Customer, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" || email == "" {
		return nil, fmt.Errorf("%w: name and email are required", ErrInvalidSignUp)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email is not valid", ErrInvalidSignUp)
	}
	if len(input.Password) < auth.MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidSignUp, auth.MinPasswordLength)
	}

	exists, err := s.DB.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrCustomerExists
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	c := &models.Customer{
		ID:           utils.GenerateID(),
		Name:         name,
		Email:        email,
		Phone:        strings.TrimSpace(input.Phone),
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := s.DB.CreateCustomer(ctx, c); err != nil {
		return nil, err
	}
	s.Logger.Info("CUSTOMER", fmt.Sprintf("Customer %s signed up", c.ID))
	return c, nil
}

// Login takes the email as identifier.
func (s *Service) Login(ctx context.Context, input models.LoginRequest) (*models.TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(input.Identifier))
	c, err := s.DB.GetCustomerByEmail(ctx, email)
	if err != nil {
		s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("customer %q: %v", email, err))
		return nil, ErrInvalidCredentials
	}
	ok, err := auth.CheckPassword(c.PasswordHash, input.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("customer %q: wrong password", email))
		return nil, ErrInvalidCredentials
	}

	token, claims, err := s.Tokens.Issue(auth.ScopeCustomer, c.ID)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("AUTH", fmt.Sprintf("customer %s logged in", c.ID))
	return &models.TokenResponse{
		Token:     token,
		ID:        c.ID,
		ExpiresAt: claims.ExpiresAt.Time,
		Scope:     string(auth.ScopeCustomer),
		Subject:   c.ID,
	}, nil
}

func (s *Service) Profile(ctx context.Context, customerID string) (*models.Customer, error) {
	return s.DB.GetCustomer(ctx, customerID)
}

// Logout revokes the presented token until it expires.
func (s *Service) Logout(ctx context.Context, principal auth.Principal) error {
	if s.Revocations == nil || principal.TokenID == "" {
		return nil
	}
	if err := s.Revocations.Revoke(ctx, principal.TokenID, principal.ExpiresAt); err != nil {
		return err
	}
	s.Logger.Info("AUTH", fmt.Sprintf("customer %s logged out", principal.Subject))
	return nil
}
