package admin

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"smartqueue/internal/auth"
	"smartqueue/internal/config"
	"smartqueue/internal/logger"
	"smartqueue/internal/models"
	"smartqueue/internal/utils"
)

type DBLayer interface {
	CreateRequest(ctx context.Context, req *models.AdminAccessRequest) error
	GetRequest(ctx context.Context, id string) (*models.AdminAccessRequest, error)
	ListRequests(ctx context.Context, status models.RequestStatus) ([]models.AdminAccessRequest, error)
	// ResolveRequest moves a PENDING request to status and reports whether
	// a row was updated.
	ResolveRequest(ctx context.Context, id string, status models.RequestStatus, reviewer string, at time.Time) (bool, error)
	FindApprovedRequest(ctx context.Context, email string) (*models.AdminAccessRequest, error)

	CreateAccount(ctx context.Context, account *models.AdminAccount) error
	AccountExists(ctx context.Context, identifier, email string) (bool, error)
	GetAccountByLogin(ctx context.Context, login string) (*models.AdminAccount, error)
}

type Service struct {
	DB          DBLayer
	Tokens      *auth.TokenManager
	Revocations auth.RevocationStore
	Logger      *logger.Logger

	superIdentifier string
	superHash       string
	now             func() time.Time
}

// NewService hashes the configured super-admin password once. An empty
// password disables super-admin login.
func NewService(db DBLayer, tokens *auth.TokenManager, revocations auth.RevocationStore, cfg config.AuthConfig, logger *logger.Logger) (*Service, error) {
	s := &Service{
		DB:              db,
		Tokens:          tokens,
		Revocations:     revocations,
		Logger:          logger,
		superIdentifier: cfg.SuperAdminIdentifier,
		now:             func() time.Time { return time.Now().UTC() },
	}
	if cfg.SuperAdminPassword != "" {
		hash, err := auth.HashPassword(cfg.SuperAdminPassword)
		if err != nil {
			return nil, err
		}
		s.superHash = hash
	}
	return s, nil
}

func (s *Service) SubmitRequest(ctx context.Context, input models.AccessRequestInput) (*models.AdminAccessRequest, error) {
	req := &models.AdminAccessRequest{
		BusinessName: strings.TrimSpace(input.BusinessName),
		OwnerName:    strings.TrimSpace(input.OwnerName),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:        strings.TrimSpace(input.Phone),
		BusinessType: strings.TrimSpace(input.BusinessType),
	}

	var missing []string
	for field, value := range map[string]string{
		"businessName": req.BusinessName,
		"ownerName":    req.OwnerName,
		"email":        req.Email,
		"phone":        req.Phone,
		"businessType": req.BusinessType,
	} {
		if value == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, fmt.Errorf("%w: email is not valid", ErrInvalidRequest)
	}

	req.ID = utils.GenerateID()
	req.Status = models.RequestStatusPending
	req.CreatedAt = s.now()
	if err := s.DB.CreateRequest(ctx, req); err != nil {
		return nil, err
	}
	s.Logger.Info("ADMIN", fmt.Sprintf("Access request %s submitted for %q", req.ID, req.BusinessName))
	return req, nil
}

// ListRequests accepts an empty status for every request.
func (s *Service) ListRequests(ctx context.Context, status string) ([]models.AdminAccessRequest, error) {
	var filter models.RequestStatus
	if status != "" {
		filter = models.RequestStatus(strings.ToUpper(status))
		switch filter {
		case models.RequestStatusPending, models.RequestStatusApproved, models.RequestStatusRejected:
		default:
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, status)
		}
	}
	return s.DB.ListRequests(ctx, filter)
}

func (s *Service) Approve(ctx context.Context, id, reviewer string) (*models.AdminAccessRequest, error) {
	return s.resolve(ctx, id, reviewer, models.RequestStatusApproved)
}

func (s *Service) Reject(ctx context.Context, id, reviewer string) (*models.AdminAccessRequest, error) {
	return s.resolve(ctx, id, reviewer, models.RequestStatusRejected)
}

func (s *Service) resolve(ctx context.Context, id, reviewer string, status models.RequestStatus) (*models.AdminAccessRequest, error) {
	updated, err := s.DB.ResolveRequest(ctx, id, status, reviewer, s.now())
	if err != nil {
		return nil, err
	}
	if !updated {
		// Nothing matched: either no such request or it is no longer PENDING.
		if _, err := s.DB.GetRequest(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrRequestResolved
	}

	req, err := s.DB.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("ADMIN", fmt.Sprintf("Access request %s %s by %s", id, strings.ToLower(string(status)), reviewer))
	return req, nil
}

// SignUp creates an admin account for an email whose request was approved.
func (s *Service) SignUp(ctx context.Context, input models.SignUpRequest) (*models.AdminAccount, error) {
	identifier := strings.TrimSpace(input.Identifier)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if identifier == "" || email == "" {
		return nil, fmt.Errorf("%w: identifier and email are required", ErrInvalidRequest)
	}
	if len(input.Password) < auth.MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidRequest, auth.MinPasswordLength)
	}

	approved, err := s.DB.FindApprovedRequest(ctx, email)
	if err != nil {
		return nil, err
	}
	exists, err := s.DB.AccountExists(ctx, identifier, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAccountExists
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	account := &models.AdminAccount{
		ID:           utils.GenerateID(),
		Identifier:   identifier,
		Email:        email,
		BusinessName: approved.BusinessName,
		PasswordHash: hash,
		RequestID:    approved.ID,
		CreatedAt:    s.now(),
	}
	if err := s.DB.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	s.Logger.Info("ADMIN", fmt.Sprintf("Admin account %s created for %s", account.ID, email))
	return account, nil
}

func (s *Service) Login(ctx context.Context, input models.LoginRequest) (*models.TokenResponse, error) {
	account, err := s.DB.GetAccountByLogin(ctx, strings.TrimSpace(input.Identifier))
	if err != nil {
		s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("admin %q: %v", input.Identifier, err))
		return nil, ErrInvalidCredentials
	}
	ok, err := auth.CheckPassword(account.PasswordHash, input.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("admin %q: wrong password", input.Identifier))
		return nil, ErrInvalidCredentials
	}
	return s.issue(auth.ScopeAdmin, account.ID)
}

func (s *Service) SuperAdminLogin(_ context.Context, input models.LoginRequest) (*models.TokenResponse, error) {
	if s.superHash == "" || strings.TrimSpace(input.Identifier) != s.superIdentifier {
		s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("super-admin %q", input.Identifier))
		return nil, ErrInvalidCredentials
	}
	ok, err := auth.CheckPassword(s.superHash, input.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("super-admin %q: wrong password", input.Identifier))
		return nil, ErrInvalidCredentials
	}
	return s.issue(auth.ScopeSuperAdmin, s.superIdentifier)
}

// Logout revokes the presented token until it expires.
func (s *Service) Logout(ctx context.Context, principal auth.Principal) error {
	if s.Revocations == nil || principal.TokenID == "" {
		return nil
	}
	if err := s.Revocations.Revoke(ctx, principal.TokenID, principal.ExpiresAt); err != nil {
		return err
	}
	s.Logger.Info("AUTH", fmt.Sprintf("%s %s logged out", principal.Scope, principal.Subject))
	return nil
}

func (s *Service) issue(scope auth.Scope, subject string) (*models.TokenResponse, error) {
	token, claims, err := s.Tokens.Issue(scope, subject)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("AUTH", fmt.Sprintf("%s %s logged in", scope, subject))
	return &models.TokenResponse{
		Token:     token,
		ID:        subject,
		ExpiresAt: claims.ExpiresAt.Time,
		Scope:     string(scope),
		Subject:   subject,
	}, nil
}
