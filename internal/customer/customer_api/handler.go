package customer_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"smartqueue/internal/apperr"
	"smartqueue/internal/auth"
	"smartqueue/internal/logger"
	"smartqueue/internal/models"
	"smartqueue/internal/utils"
)

type CustomerService interface {
	SignUp(ctx context.Context, input models.CustomerSignUpRequest) (*models.Customer, error)
	Login(ctx context.Context, input models.LoginRequest) (*models.TokenResponse, error)
	Profile(ctx context.Context, customerID string) (*models.Customer, error)
	Logout(ctx context.Context, principal auth.Principal) error
}

type Handler struct {
	Service CustomerService
	Logger  *logger.Logger
}

func NewHandler(service CustomerService, logger *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: logger}
}

func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/customer/signup", h.SignUp)
	r.Post("/customer/login", h.Login)
}

// RegisterCustomerRoutes expects the customer scope to be enforced by the caller.
func (h *Handler) RegisterCustomerRoutes(r chi.Router) {
	r.Get("/customer/profile", h.Profile)
	r.Post("/customer/logout", h.Logout)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	utils.WriteError(w, err)
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var input models.CustomerSignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.fail(w, "CustomerSignUp", fmt.Errorf("request body is not valid JSON: %w", apperr.ErrInvalidInput))
		return
	}
	c, err := h.Service.SignUp(r.Context(), input)
	if err != nil {
		h.fail(w, "CustomerSignUp", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Customer account created", c))
}

// Login accepts {"email": ...} as well as the shared {"identifier": ...}.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		models.LoginRequest
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.fail(w, "CustomerLogin", fmt.Errorf("request body is not valid JSON: %w", apperr.ErrInvalidInput))
		return
	}
	if strings.TrimSpace(input.Identifier) == "" {
		input.Identifier = input.Email
	}
	resp, err := h.Service.Login(r.Context(), input.LoginRequest)
	if err != nil {
		h.fail(w, "CustomerLogin", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	c, err := h.Service.Profile(r.Context(), auth.Subject(r.Context()))
	if err != nil {
		h.fail(w, "CustomerProfile", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())
	if err := h.Service.Logout(r.Context(), principal); err != nil {
		h.fail(w, "CustomerLogout", err)
		return
	}
	utils.WriteMessage(w, http.StatusOK, "Logged out")
}
