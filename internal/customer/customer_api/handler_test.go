package customer_api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"smartqueue/internal/auth"
	"smartqueue/internal/customer"
	"smartqueue/internal/customer/customer_api"
	"smartqueue/internal/logger"
	"smartqueue/internal/models"
	"smartqueue/internal/utils"
)

type MockCustomerService struct {
	mock.Mock
}

func (m *MockCustomerService) SignUp(ctx context.Context, input models.CustomerSignUpRequest) (*models.Customer, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Customer), args.Error(1)
}

func (m *MockCustomerService) Login(ctx context.Context, input models.LoginRequest) (*models.TokenResponse, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenResponse), args.Error(1)
}

func (m *MockCustomerService) Profile(ctx context.Context, customerID string) (*models.Customer, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Customer), args.Error(1)
}

func (m *MockCustomerService) Logout(ctx context.Context, principal auth.Principal) error {
	args := m.Called(ctx, principal)
	return args.Error(0)
}

var testPrincipal = auth.Principal{Subject: "cust-1", Scope: auth.ScopeCustomer, TokenID: "jti-1"}

func newRouter(svc customer_api.CustomerService) http.Handler {
	h := customer_api.NewHandler(svc, logger.NewWriter(io.Discard))
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.RegisterPublicRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					next.ServeHTTP(w, req.WithContext(auth.WithPrincipal(req.Context(), testPrincipal)))
				})
			})
			h.RegisterCustomerRoutes(r)
		})
	})
	return r
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSignUpHandler(t *testing.T) {
	svc := new(MockCustomerService)
	svc.On("SignUp", mock.Anything, models.CustomerSignUpRequest{Name: "Asha", Email: "asha@example.com", Password: "correct-horse"}).
		Return(&models.Customer{ID: "cust-1", Name: "Asha", Email: "asha@example.com", PasswordHash: "secret-hash"}, nil)

	rec := serve(newRouter(svc), http.MethodPost, "/api/customer/signup", `{"name":"Asha","email":"asha@example.com","password":"correct-horse"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret-hash")
	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestSignUpHandlerErrors(t *testing.T) {
	svc := new(MockCustomerService)
	svc.On("SignUp", mock.Anything, mock.Anything).Return(nil, customer.ErrCustomerExists)
	router := newRouter(svc)

	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/api/customer/signup", `{`).Code)
	assert.Equal(t, http.StatusConflict, serve(router, http.MethodPost, "/api/customer/signup", `{"name":"A","email":"a@example.com","password":"correct-horse"}`).Code)
}

func TestLoginHandlerAcceptsEmail(t *testing.T) {
	svc := new(MockCustomerService)
	svc.On("Login", mock.Anything, models.LoginRequest{Identifier: "asha@example.com", Password: "correct-horse"}).
		Return(&models.TokenResponse{Token: "tok", ID: "cust-1", Scope: "customer", Subject: "cust-1"}, nil)
	router := newRouter(svc)

	for _, body := range []string{
		`{"email":"asha@example.com","password":"correct-horse"}`,
		`{"identifier":"asha@example.com","password":"correct-horse"}`,
	} {
		rec := serve(router, http.MethodPost, "/api/customer/login", body)
		require.Equal(t, http.StatusOK, rec.Code, body)
		var resp models.TokenResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "tok", resp.Token)
		assert.Equal(t, "cust-1", resp.ID)
	}
}

func TestLoginHandlerRejectsBadCredentials(t *testing.T) {
	svc := new(MockCustomerService)
	svc.On("Login", mock.Anything, mock.Anything).Return(nil, customer.ErrInvalidCredentials)

	rec := serve(newRouter(svc), http.MethodPost, "/api/customer/login", `{"email":"asha@example.com","password":"nope"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileHandler(t *testing.T) {
	svc := new(MockCustomerService)
	svc.On("Profile", mock.Anything, "cust-1").Return(&models.Customer{ID: "cust-1", Name: "Asha", Email: "asha@example.com"}, nil)

	rec := serve(newRouter(svc), http.MethodGet, "/api/customer/profile", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Asha", got["name"])
	assert.Equal(t, "cust-1", got["id"])
	assert.NotContains(t, got, "passwordHash")
}

func TestProfileHandlerMissingCustomer(t *testing.T) {
	svc := new(MockCustomerService)
	svc.On("Profile", mock.Anything, "cust-1").Return(nil, customer.ErrCustomerNotFound)

	assert.Equal(t, http.StatusNotFound, serve(newRouter(svc), http.MethodGet, "/api/customer/profile", "").Code)
}

func TestLogoutHandler(t *testing.T) {
	svc := new(MockCustomerService)
	svc.On("Logout", mock.Anything, testPrincipal).Return(nil)

	rec := serve(newRouter(svc), http.MethodPost, "/api/customer/logout", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}
