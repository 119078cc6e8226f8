package queue_api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"smartqueue/internal/auth"
	"smartqueue/internal/logger"
	"smartqueue/internal/models"
	"smartqueue/internal/qr"
	"smartqueue/internal/queue"
	"smartqueue/internal/queue/queue_api"
	"smartqueue/internal/sse"
	"smartqueue/internal/utils"
)

type MockQueueService struct {
	mock.Mock
}

func (m *MockQueueService) CreateEvent(ctx context.Context, adminID string, req models.CreateEventRequest) (*models.Event, error) {
	args := m.Called(ctx, adminID, req)
	return eventArg(args)
}

func (m *MockQueueService) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	args := m.Called(ctx, eventID)
	return eventArg(args)
}

func (m *MockQueueService) ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *MockQueueService) SetEventActive(ctx context.Context, eventID string, active bool) (*models.Event, error) {
	args := m.Called(ctx, eventID, active)
	return eventArg(args)
}

func (m *MockQueueService) CloseEvent(ctx context.Context, eventID string) (*models.Event, error) {
	args := m.Called(ctx, eventID)
	return eventArg(args)
}

func (m *MockQueueService) BookTicketFor(ctx context.Context, eventID, customerName, customerID string) (*models.Ticket, error) {
	args := m.Called(ctx, eventID, customerName, customerID)
	return ticketArg(args)
}

func (m *MockQueueService) CustomerTickets(ctx context.Context, customerID string) ([]models.Ticket, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ticket), args.Error(1)
}

func (m *MockQueueService) CallNext(ctx context.Context, eventID, counter string) (*models.Ticket, error) {
	args := m.Called(ctx, eventID, counter)
	return ticketArg(args)
}

func (m *MockQueueService) MarkDone(ctx context.Context, ticketID string) (*models.Ticket, error) {
	args := m.Called(ctx, ticketID)
	return ticketArg(args)
}

func (m *MockQueueService) Skip(ctx context.Context, ticketID string) (*models.Ticket, error) {
	args := m.Called(ctx, ticketID)
	return ticketArg(args)
}

func (m *MockQueueService) Cancel(ctx context.Context, ticketCode string) (*models.Ticket, error) {
	args := m.Called(ctx, ticketCode)
	return ticketArg(args)
}

func (m *MockQueueService) GetTicket(ctx context.Context, code string) (*models.Ticket, error) {
	args := m.Called(ctx, code)
	return ticketArg(args)
}

func (m *MockQueueService) GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	args := m.Called(ctx, ticketID)
	return ticketArg(args)
}

func (m *MockQueueService) Notification(ctx context.Context, code string) (*models.TurnNotification, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TurnNotification), args.Error(1)
}

func (m *MockQueueService) CurrentlyServing(ctx context.Context, eventID string) ([]models.Ticket, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ticket), args.Error(1)
}

func (m *MockQueueService) ListTickets(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ticket), args.Error(1)
}

func (m *MockQueueService) Stats(ctx context.Context, eventID string) (*models.QueueStats, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueueStats), args.Error(1)
}

func eventArg(args mock.Arguments) (*models.Event, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func ticketArg(args mock.Arguments) (*models.Ticket, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

const adminID = "admin-1"

func setup(t *testing.T) (*MockQueueService, *sse.QueueEventHub, *queue_api.Handler, *chi.Mux) {
	t.Helper()
	svc := new(MockQueueService)
	hub := sse.NewQueueEventHub()
	h := queue_api.NewHandler(svc, hub, qr.NewGenerator("http://localhost:5173"), logger.NewWriter(io.Discard))

	r := chi.NewRouter()
	h.RegisterPublicRoutes(r)
	h.RegisterBookingRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := auth.WithPrincipal(req.Context(), auth.Principal{Subject: adminID, Scope: auth.ScopeAdmin})
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
		h.RegisterAdminRoutes(r)
	})
	return svc, hub, h, r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) utils.APIResponse {
	t.Helper()
	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestBookTicket(t *testing.T) {
	svc, _, _, r := setup(t)
	ticket := &models.Ticket{ID: "t1", EventID: "e1", TicketCode: "ABC23456", QueuePosition: 1, Status: models.TicketStatusWaiting}
	svc.On("BookTicketFor", mock.Anything, "e1", "Asha", "").Return(ticket, nil)

	rec := do(r, http.MethodPost, "/tickets/book/e1", `{"customerName":"Asha"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var got models.Ticket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ABC23456", got.TicketCode)
	assert.Equal(t, 1, got.QueuePosition)
	svc.AssertExpectations(t)
}

func TestBookTicketEmptyBody(t *testing.T) {
	svc, _, _, r := setup(t)
	svc.On("BookTicketFor", mock.Anything, "e1", "", "").Return(&models.Ticket{ID: "t1"}, nil)

	rec := do(r, http.MethodPost, "/tickets/book/e1", "")

	assert.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestBookTicketErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"capacity", queue.ErrCapacityExceeded, http.StatusBadRequest},
		{"inactive", queue.ErrEventInactive, http.StatusBadRequest},
		{"missing event", queue.ErrEventNotFound, http.StatusNotFound},
		{"busy", queue.ErrLockTimeout, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _, r := setup(t)
			svc.On("BookTicketFor", mock.Anything, "e1", "", "").Return(nil, tt.err)

			rec := do(r, http.MethodPost, "/tickets/book/e1", "")

			assert.Equal(t, tt.status, rec.Code)
			resp := errorBody(t, rec)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestBookTicketMalformedBody(t *testing.T) {
	svc, _, _, r := setup(t)

	rec := do(r, http.MethodPost, "/tickets/book/e1", "{not json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "BookTicketFor", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// customerRouter serves booking and the customer routes as cust-1.
func customerRouter(h *queue_api.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := auth.WithPrincipal(req.Context(), auth.Principal{Subject: "cust-1", Scope: auth.ScopeCustomer})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.RegisterBookingRoutes(r)
	h.RegisterCustomerRoutes(r)
	return r
}

func TestBookTicketLinksCustomer(t *testing.T) {
	svc, _, h, _ := setup(t)
	svc.On("BookTicketFor", mock.Anything, "e1", "Asha", "cust-1").Return(&models.Ticket{ID: "t1", CustomerID: "cust-1"}, nil)

	rec := do(customerRouter(h), http.MethodPost, "/tickets/book/e1", `{"customerName":"Asha"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"customerId":"cust-1"`)
	svc.AssertExpectations(t)
}

func TestCustomerTickets(t *testing.T) {
	svc, _, h, _ := setup(t)
	svc.On("CustomerTickets", mock.Anything, "cust-1").Return(nil, nil).Once()

	rec := do(customerRouter(h), http.MethodGet, "/customer/tickets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	svc.On("CustomerTickets", mock.Anything, "cust-1").Return([]models.Ticket{{ID: "t1", TicketCode: "AAA", CustomerID: "cust-1"}}, nil).Once()
	rec = do(customerRouter(h), http.MethodGet, "/customer/tickets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.Ticket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "AAA", got[0].TicketCode)
}

func TestListEventsActiveFilter(t *testing.T) {
	svc, _, _, r := setup(t)
	svc.On("ListEvents", mock.Anything, models.EventFilter{ActiveOnly: true}).Return(nil, nil)

	rec := do(r, http.MethodGet, "/events?active=true", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	svc.AssertExpectations(t)
}

func TestNotification(t *testing.T) {
	svc, _, _, r := setup(t)
	svc.On("Notification", mock.Anything, "ABC23456").Return(&models.TurnNotification{
		TicketCode: "ABC23456", IsYourTurn: true, Status: models.TicketStatusCalled, QueuePosition: 3, Counter: "2",
	}, nil)

	rec := do(r, http.MethodGet, "/tickets/ABC23456/notification", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var got models.TurnNotification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.IsYourTurn)
	assert.Equal(t, "2", got.Counter)
}

func TestCancelTerminalTicket(t *testing.T) {
	svc, _, _, r := setup(t)
	svc.On("Cancel", mock.Anything, "ABC23456").Return(nil, queue.ErrInvalidTransition)

	rec := do(r, http.MethodPost, "/tickets/ABC23456/cancel", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTicketQR(t *testing.T) {
	svc, _, _, r := setup(t)
	svc.On("GetTicket", mock.Anything, "ABC23456").Return(&models.Ticket{TicketCode: "ABC23456"}, nil)

	rec := do(r, http.MethodGet, "/tickets/ABC23456/qr", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))
}

func TestTicketQREncodesIssuedCode(t *testing.T) {
	svc, _, h, r := setup(t)
	svc.On("GetTicket", mock.Anything, "abc23456").Return(&models.Ticket{TicketCode: "ABC23456"}, nil)

	rec := do(r, http.MethodGet, "/tickets/abc23456/qr", "")

	require.Equal(t, http.StatusOK, rec.Code)
	want, err := h.QR.TicketPNG("ABC23456")
	require.NoError(t, err)
	assert.Equal(t, want, rec.Body.Bytes())
}

func TestTicketQRUnknownCode(t *testing.T) {
	svc, _, _, r := setup(t)
	svc.On("GetTicket", mock.Anything, "NOPE").Return(nil, queue.ErrTicketNotFound)

	rec := do(r, http.MethodGet, "/tickets/NOPE/qr", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCurrentServing(t *testing.T) {
	svc, _, _, r := setup(t)
	svc.On("CurrentlyServing", mock.Anything, "e1").Return([]models.Ticket{
		{ID: "t1", TicketCode: "AAA", Status: models.TicketStatusCalled, Counter: "1"},
	}, nil)

	rec := do(r, http.MethodGet, "/display/current-serving/e1", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var got []models.Ticket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "AAA", got[0].TicketCode)
}

func TestCreateEventUsesCaller(t *testing.T) {
	svc, _, _, r := setup(t)
	req := models.CreateEventRequest{EventName: "Clinic", MaxTokens: 50}
	svc.On("CreateEvent", mock.Anything, adminID, req).Return(&models.Event{ID: "e1", Name: "Clinic", CreatedBy: adminID, MaxTokens: 50}, nil)

	rec := do(r, http.MethodPost, "/admin/events", `{"eventName":"Clinic","maxTokens":50}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestCallNext(t *testing.T) {
	svc, _, _, r := setup(t)
	svc.On("GetEvent", mock.Anything, "e1").Return(&models.Event{ID: "e1", CreatedBy: adminID}, nil)
	svc.On("CallNext", mock.Anything, "e1", "3").Return(&models.Ticket{ID: "t1", Status: models.TicketStatusCalled, Counter: "3"}, nil)

	rec := do(r, http.MethodPost, "/admin/call-next/e1", `{"counter":"3"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestCallNextEmptyQueue(t *testing.T) {
	svc, _, _, r := setup(t)
	svc.On("GetEvent", mock.Anything, "e1").Return(&models.Event{ID: "e1", CreatedBy: adminID}, nil)
	svc.On("CallNext", mock.Anything, "e1", "").Return(nil, queue.ErrQueueEmpty)

	rec := do(r, http.MethodPost, "/admin/call-next/e1", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCallNextForeignEvent(t *testing.T) {
	svc, _, _, r := setup(t)
	svc.On("GetEvent", mock.Anything, "e1").Return(&models.Event{ID: "e1", CreatedBy: "someone-else"}, nil)

	rec := do(r, http.MethodPost, "/admin/call-next/e1", "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	svc.AssertNotCalled(t, "CallNext", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkDoneChecksTicketOwner(t *testing.T) {
	svc, _, _, r := setup(t)
	svc.On("GetTicketByID", mock.Anything, "t1").Return(&models.Ticket{ID: "t1", EventID: "e2"}, nil)
	svc.On("GetEvent", mock.Anything, "e2").Return(&models.Event{ID: "e2", CreatedBy: "someone-else"}, nil)

	rec := do(r, http.MethodPost, "/admin/mark-done/t1", "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	svc.AssertNotCalled(t, "MarkDone", mock.Anything, mock.Anything)
}

func TestSkipInvalidTransition(t *testing.T) {
	svc, _, _, r := setup(t)
	svc.On("GetTicketByID", mock.Anything, "t1").Return(&models.Ticket{ID: "t1", EventID: "e1"}, nil)
	svc.On("GetEvent", mock.Anything, "e1").Return(&models.Event{ID: "e1", CreatedBy: adminID}, nil)
	svc.On("Skip", mock.Anything, "t1").Return(nil, queue.ErrInvalidTransition)

	rec := do(r, http.MethodPost, "/admin/skip/t1", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMarkDoneUnknownTicket(t *testing.T) {
	svc, _, _, r := setup(t)
	svc.On("GetTicketByID", mock.Anything, "nope").Return(nil, queue.ErrTicketNotFound)

	rec := do(r, http.MethodPost, "/admin/mark-done/nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAdminTicketsScopedToOwnEvents(t *testing.T) {
	svc, _, _, r := setup(t)
	svc.On("ListEvents", mock.Anything, models.EventFilter{CreatedBy: adminID}).Return([]models.Event{{ID: "e1"}, {ID: "e2"}}, nil)
	svc.On("ListTickets", mock.Anything, models.TicketFilter{
		EventIDs: []string{"e1", "e2"},
		Statuses: []models.TicketStatus{models.TicketStatusServed, models.TicketStatusWaiting},
	}).Return([]models.Ticket{{ID: "t1"}}, nil)

	rec := do(r, http.MethodGet, "/admin/tickets?status=done,waiting", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestListAdminTicketsNoEvents(t *testing.T) {
	svc, _, _, r := setup(t)
	svc.On("ListEvents", mock.Anything, models.EventFilter{CreatedBy: adminID}).Return(nil, nil)

	rec := do(r, http.MethodGet, "/admin/tickets", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	svc.AssertNotCalled(t, "ListTickets", mock.Anything, mock.Anything)
}

func TestListAdminTicketsBadStatus(t *testing.T) {
	_, _, _, r := setup(t)

	rec := do(r, http.MethodGet, "/admin/tickets?status=LOST", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeactivateEvent(t *testing.T) {
	svc, _, _, r := setup(t)
	svc.On("GetEvent", mock.Anything, "e1").Return(&models.Event{ID: "e1", CreatedBy: adminID, IsActive: true}, nil)
	svc.On("SetEventActive", mock.Anything, "e1", false).Return(&models.Event{ID: "e1", CreatedBy: adminID}, nil)

	rec := do(r, http.MethodPost, "/admin/events/e1/deactivate", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestStats(t *testing.T) {
	svc, _, _, r := setup(t)
	svc.On("GetEvent", mock.Anything, "e1").Return(&models.Event{ID: "e1", CreatedBy: adminID}, nil)
	svc.On("Stats", mock.Anything, "e1").Return(&models.QueueStats{EventID: "e1", Waiting: 4}, nil)

	rec := do(r, http.MethodGet, "/admin/events/e1/stats", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var got models.QueueStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 4, got.Waiting)
}

// syncRecorder guards the body so the test can read it while the stream writes.
type syncRecorder struct {
	mu  sync.Mutex
	rec *httptest.ResponseRecorder
}

func (s *syncRecorder) Header() http.Header { return s.rec.Header() }

func (s *syncRecorder) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Write(b)
}

func (s *syncRecorder) WriteHeader(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.WriteHeader(code)
}

func (s *syncRecorder) Flush() {}

func (s *syncRecorder) body() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Body.String()
}

func TestStreamPushesServingList(t *testing.T) {
	svc, hub, h, r := setup(t)
	h.KeepAlive = time.Hour
	called := []models.Ticket{{ID: "t1", EventID: "e1", TicketCode: "AAA", Status: models.TicketStatusCalled}}
	svc.On("CurrentlyServing", mock.Anything, "e1").Return([]models.Ticket{}, nil).Once()
	svc.On("CurrentlyServing", mock.Anything, "e1").Return(called, nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/display/stream/e1", nil).WithContext(ctx)
	w := &syncRecorder{rec: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		r.ServeHTTP(w, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return hub.Subscribers("e1") == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, hub.Publish(ctx, models.NewTicketEvent(models.QueueEventTicketCalled, called[0], time.Now())))

	require.Eventually(t, func() bool {
		return strings.Contains(w.body(), "event: serving\ndata: [{")
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	body := w.body()
	assert.Equal(t, "text/event-stream;charset=UTF-8", w.Header().Get("Content-Type"))
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: serving\ndata: []")
	assert.Contains(t, body, "event: queue")
}

func TestStreamUnknownEvent(t *testing.T) {
	svc, _, _, r := setup(t)
	svc.On("CurrentlyServing", mock.Anything, "nope").Return(nil, queue.ErrEventNotFound)

	rec := do(r, http.MethodGet, "/display/stream/nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
