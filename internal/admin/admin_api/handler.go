package admin_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"smartqueue/internal/apperr"
	"smartqueue/internal/auth"
	"smartqueue/internal/logger"
	"smartqueue/internal/models"
	"smartqueue/internal/utils"
)

type AdminService interface {
	SubmitRequest(ctx context.Context, input models.AccessRequestInput) (*models.AdminAccessRequest, error)
	ListRequests(ctx context.Context, status string) ([]models.AdminAccessRequest, error)
	Approve(ctx context.Context, id, reviewer string) (*models.AdminAccessRequest, error)
	Reject(ctx context.Context, id, reviewer string) (*models.AdminAccessRequest, error)
	SignUp(ctx context.Context, input models.SignUpRequest) (*models.AdminAccount, error)
	Login(ctx context.Context, input models.LoginRequest) (*models.TokenResponse, error)
	SuperAdminLogin(ctx context.Context, input models.LoginRequest) (*models.TokenResponse, error)
	Logout(ctx context.Context, principal auth.Principal) error
}

type Handler struct {
	Service AdminService
	Logger  *logger.Logger
}

func NewHandler(service AdminService, logger *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: logger}
}

// RegisterPublicRoutes mounts the unauthenticated access and login routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/admin-request", h.SubmitRequest)
	r.Post("/admin/signup", h.SignUp)
	r.Post("/admin/login", h.Login)
	r.Post("/super-admin/login", h.SuperAdminLogin)
}

// RegisterAdminRoutes expects the admin scope to be enforced by the caller.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/admin/logout", h.Logout)
}

// RegisterSuperAdminRoutes expects the super-admin scope to be enforced by the caller.
func (h *Handler) RegisterSuperAdminRoutes(r chi.Router) {
	r.Post("/super-admin/logout", h.Logout)
	r.Get("/super-admin/requests", h.ListRequests)
	r.Post("/super-admin/requests/{requestId}/approve", h.Approve)
	r.Post("/super-admin/requests/{requestId}/reject", h.Reject)
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("request body is not valid JSON: %w", apperr.ErrInvalidInput)
	}
	return nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	utils.WriteError(w, err)
}

func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var input models.AccessRequestInput
	if err := decode(r, &input); err != nil {
		h.fail(w, "SubmitRequest", err)
		return
	}
	req, err := h.Service.SubmitRequest(r.Context(), input)
	if err != nil {
		h.fail(w, "SubmitRequest", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("SubmitRequest: request %s created", req.ID))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Access request submitted", req))
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var input models.SignUpRequest
	if err := decode(r, &input); err != nil {
		h.fail(w, "SignUp", err)
		return
	}
	account, err := h.Service.SignUp(r.Context(), input)
	if err != nil {
		h.fail(w, "SignUp", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Admin account created", account))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, "Login", h.Service.Login)
}

func (h *Handler) SuperAdminLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, "SuperAdminLogin", h.Service.SuperAdminLogin)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, models.LoginRequest) (*models.TokenResponse, error)) {
	var input models.LoginRequest
	if err := decode(r, &input); err != nil {
		h.fail(w, op, err)
		return
	}
	resp, err := fn(r.Context(), input)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())
	if err := h.Service.Logout(r.Context(), principal); err != nil {
		h.fail(w, "Logout", err)
		return
	}
	utils.WriteMessage(w, http.StatusOK, "Logged out")
}

func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Service.ListRequests(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, "ListRequests", err)
		return
	}
	if reqs == nil {
		reqs = []models.AdminAccessRequest{}
	}
	utils.WriteJSON(w, http.StatusOK, reqs)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, "Approve", "Access request approved", h.Service.Approve)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, "Reject", "Access request rejected", h.Service.Reject)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, op, message string, fn func(context.Context, string, string) (*models.AdminAccessRequest, error)) {
	id := chi.URLParam(r, "requestId")
	req, err := fn(r.Context(), id, auth.Subject(r.Context()))
	if err != nil {
		h.fail(w, op, err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("%s: request %s", op, id))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(message, req))
}
